// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

// Package counter provides a multi-iteration Work Unit used for
// demonstration and integration testing: it counts up from a starting
// value, telling the parent its running total on every iteration and
// listening for an optional reset instruction.
package counter

import (
	"encoding/gob"
	"fmt"
	"time"

	"github.com/ceetaro/suitkaise/unit"
)

// Name is the constructor's registered name.
const Name = "counter"

// Input configures a counter run.
type Input struct {
	Start int
	Runs  int
}

type state struct {
	total int
}

func init() {
	gob.Register(Input{})
}

// New builds a Work Unit that runs Input.Runs iterations (unbounded if
// zero), incrementing a running total by one each time, telling the
// parent the new total, and resetting to zero if it ever listens a
// value equal to "reset".
func New(input any) (*unit.Unit, error) {
	in, ok := input.(Input)
	if !ok {
		return nil, fmt.Errorf("counter: input must be counter.Input, got %T", input)
	}

	cfg := unit.NewProcessConfig()
	if in.Runs > 0 {
		if err := cfg.SetRuns(in.Runs); err != nil {
			return nil, err
		}
	}

	u, err := unit.New(func(ctx *unit.Context) error {
		s := ctx.State.(*state)
		s.total++
		if err := ctx.Tell(s.total); err != nil {
			return err
		}
		if v, ok := ctx.Listen(10 * time.Millisecond); ok {
			if v == "reset" {
				s.total = 0
			}
		}
		return nil
	}, cfg)
	if err != nil {
		return nil, err
	}
	u.State = &state{total: in.Start}
	u.OnResult = func(ctx *unit.Context) (any, error) {
		return ctx.State.(*state).total, nil
	}
	return u, nil
}
