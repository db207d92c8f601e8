//go:build !unix

// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

package handle

import "os/exec"

// setProcAttrs is a no-op on platforms without POSIX process groups.
func setProcAttrs(cmd *exec.Cmd) {}
