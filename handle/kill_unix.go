//go:build unix

// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

package handle

import (
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

// killProcessGroup sends SIGKILL to the worker's entire process group, not
// just its direct PID: a worker that has itself forked children (a
// misbehaving Work Unit, a stuck subprocess) must not survive a Kill.
func killProcessGroup(proc *os.Process) error {
	if proc == nil {
		return nil
	}
	err := unix.Kill(-proc.Pid, syscall.SIGKILL)
	if err != nil && err != unix.ESRCH {
		return err
	}
	return nil
}
