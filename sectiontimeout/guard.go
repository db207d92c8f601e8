// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

// Package sectiontimeout enforces a lifecycle section's optional timeout.
// It uses github.com/desertbit/timer's safely resettable/stoppable timer
// instead of ad hoc time.AfterFunc bookkeeping.
package sectiontimeout

import (
	"time"

	dtimer "github.com/desertbit/timer"
)

// Run executes fn, racing it against d (if d > 0). If fn returns before the
// deadline, its error (nil or not) is returned and timedOut is false. If
// the deadline fires first, timedOut is true and fn's eventual return value
// is discarded — the function body may continue running to completion in
// the background since Go has no preemptive goroutine cancellation, but
// the caller only ever observes the timeout.
func Run(d time.Duration, fn func() error) (timedOut bool, err error) {
	if d <= 0 {
		return false, fn()
	}

	done := make(chan error, 1)
	go func() {
		done <- fn()
	}()

	t := dtimer.NewTimer(d)
	defer t.Stop()

	select {
	case err := <-done:
		return false, err
	case <-t.C:
		return true, nil
	}
}
