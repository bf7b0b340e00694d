//go:build windows

package procexec

import "os/exec"

// configureProcAttr is a no-op on Windows: process groups in the POSIX
// sense don't exist, so descendant cleanup relies on the child's own
// behavior on termination.
func configureProcAttr(cmd *exec.Cmd) {}

func terminateGroup(cmd *exec.Cmd) error {
	return cmd.Process.Kill()
}

func killGroup(cmd *exec.Cmd) error {
	return cmd.Process.Kill()
}
