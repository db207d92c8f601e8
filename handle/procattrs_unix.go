//go:build unix

// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

package handle

import (
	"os/exec"
	"syscall"
)

// setProcAttrs puts the worker in its own process group so killProcessGroup
// can target it without also reaching the parent's group.
func setProcAttrs(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}
