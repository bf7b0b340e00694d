//go:build unix

package procexec

import (
	"os/exec"
	"syscall"
)

// configureProcAttr puts the child in its own process group so a
// SIGTERM/SIGKILL to the group reaches any descendants it spawns (e.g.
// the OpenAPI helper launched via `npx`).
func configureProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func terminateGroup(cmd *exec.Cmd) error {
	return syscall.Kill(-cmd.Process.Pid, syscall.SIGTERM)
}

func killGroup(cmd *exec.Cmd) error {
	return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
}
