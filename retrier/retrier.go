// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

// Package retrier tracks a Work Unit's "lives" attempt budget using
// github.com/cenkalti/backoff/v4's retry bookkeeping. The budget is
// consulted by kernelproc to decide whether a crash in prerun/run/postrun
// may restart the iteration at prerun, or must fall through to onfinish.
// Lives are an attempt count, not a timed backoff policy, so a
// ZeroBackOff is used and only the exhaustion signal matters.
package retrier

import "github.com/cenkalti/backoff/v4"

// Budget tracks how many additional attempts remain after the first.
type Budget struct {
	b backoff.BackOff
}

// NewBudget returns a Budget allowing lives-1 further attempts beyond the
// initial one.
func NewBudget(lives int) *Budget {
	extra := lives - 1
	if extra < 0 {
		extra = 0
	}
	return &Budget{b: backoff.WithMaxRetries(&backoff.ZeroBackOff{}, uint64(extra))}
}

// Consume records one crash. It returns true if another attempt is still
// permitted (lives remain), false once the budget is exhausted.
func (r *Budget) Consume() bool {
	return r.b.NextBackOff() != backoff.Stop
}
