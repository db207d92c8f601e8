//go:build !unix

// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

package handle

import "os"

// killProcessGroup falls back to killing just the worker's own process:
// platforms without POSIX process groups get no child-of-child cleanup.
func killProcessGroup(proc *os.Process) error {
	if proc == nil {
		return nil
	}
	err := proc.Kill()
	if err != nil && err.Error() == "os: process already finished" {
		return nil
	}
	return err
}
