package cmd

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewVersionCmd(t *testing.T) {
	versionCmd := newVersionCmd()

	if versionCmd.Use != "version" {
		t.Errorf("Expected Use to be 'version', got %s", versionCmd.Use)
	}
	if versionCmd.Short == "" {
		t.Error("Expected Short description to be set")
	}
	if versionCmd.Long == "" {
		t.Error("Expected Long description to be set")
	}
	if versionCmd.Run == nil {
		t.Error("Expected Run function to be set")
	}
}

func TestVersionCommandExecution(t *testing.T) {
	testVersion := "1.2.3-test"
	originalVersion := rootCmd.Version
	defer func() { rootCmd.Version = originalVersion }()
	rootCmd.Version = testVersion

	versionCmd := newVersionCmd()
	versionCmd.SetArgs([]string{"--endpoint", "http://127.0.0.1:1"})

	var buf bytes.Buffer
	versionCmd.SetOut(&buf)

	if err := versionCmd.Execute(); err != nil {
		t.Fatalf("Error executing version command: %v", err)
	}

	output := buf.String()
	if !strings.HasPrefix(output, "mcp-proxy-studio version "+testVersion+"\n") {
		t.Errorf("Expected output to start with version line, got %q", output)
	}
	if !strings.Contains(output, "not reachable") {
		t.Errorf("Expected output to report an unreachable supervisor, got %q", output)
	}
}

func TestVersionCommandWithEmptyVersion(t *testing.T) {
	originalVersion := rootCmd.Version
	defer func() { rootCmd.Version = originalVersion }()
	rootCmd.Version = ""

	versionCmd := newVersionCmd()
	versionCmd.SetArgs([]string{"--endpoint", "http://127.0.0.1:1"})
	var buf bytes.Buffer
	versionCmd.SetOut(&buf)

	if err := versionCmd.Execute(); err != nil {
		t.Fatalf("Error executing version command: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "mcp-proxy-studio version") {
		t.Error("Output should contain 'mcp-proxy-studio version' even with empty version")
	}
}

func TestVersionCommandHelp(t *testing.T) {
	versionCmd := newVersionCmd()
	var buf bytes.Buffer
	versionCmd.SetOut(&buf)
	versionCmd.SetErr(&buf)
	versionCmd.SetArgs([]string{"--help"})

	if err := versionCmd.Execute(); err != nil {
		t.Fatalf("Error executing version help: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "Displays the mcp-proxy-studio") {
		t.Errorf("Help output should contain description. Got: %q", output)
	}
}
