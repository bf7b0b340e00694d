package main

import "github.com/lucasiscovici/mcp-proxy-studio/cmd"

// Version can be set during build with -ldflags
var version = "dev"

func main() {
	cmd.SetVersion(version)
	cmd.Execute()
}
