//go:build !windows
// +build !windows

package scheduler

import (
	"os/exec"
	"syscall"
)

// setSetpgid puts a child in its own process group so a grace-period
// signal can be delivered to the whole group (spec §4.I, §5
// cancellation/timeout: terminate the task's process tree, not just
// the immediate child).
func setSetpgid(cmd *exec.Cmd, value bool) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: value}
}

func processNotFoundErr(err error) bool {
	return err == syscall.ESRCH
}
