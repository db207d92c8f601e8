// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

package proxy

import "sync"

// registry is the process-wide holder that lets DialRegistered find the
// coordinator without threading the address through every constructor.
// It is a package variable, so it covers only the process that called
// Install: a separate worker process sees nothing installed until it calls
// Install itself. It is initialized on the first Install and torn down by
// Uninstall, which is idempotent.
var registry struct {
	mu     sync.RWMutex
	target string
	live   bool
}

// Install records the coordinator's dial target for later DialRegistered
// calls. Safe to call concurrently; the last call wins.
func Install(target string) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.target = target
	registry.live = true
}

// Uninstall clears the process-wide registry. Idempotent: calling it more
// than once, or before any Install, is a no-op.
func Uninstall() {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.target = ""
	registry.live = false
}

// Registered reports the installed coordinator target, if any.
func Registered() (target string, ok bool) {
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	return registry.target, registry.live
}
