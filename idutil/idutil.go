// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

// Package idutil provides small identifier helpers; procpipe uses New to
// give each Pipe pair its ID.
package idutil

import (
	"strings"

	"github.com/google/uuid"
)

// New returns a fresh random identifier.
func New() string { return uuid.NewString() }

// Short returns the first hyphen-delimited segment of a UUID v4 string, for
// compact log lines; the full string is returned unchanged if it contains
// no hyphen.
func Short(id string) string {
	if i := strings.Index(id, "-"); i != -1 {
		return id[:i]
	}
	return id
}
