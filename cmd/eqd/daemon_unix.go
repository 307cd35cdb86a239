//go:build !windows

package main

import (
	"os/exec"
	"syscall"
)

// detach moves the service into its own session so signals sent to the
// control terminal do not reach it.
func detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}
