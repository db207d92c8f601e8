// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

// Package doubler provides a minimal single-iteration Work Unit used for
// demonstration and integration testing: it doubles an integer input.
package doubler

import (
	"fmt"

	"github.com/ceetaro/suitkaise/unit"
)

// Name is the constructor's registered name.
const Name = "doubler"

type state struct {
	value int
}

// New builds a Work Unit that doubles input (expected to be an int) once
// and returns the doubled value as its result.
func New(input any) (*unit.Unit, error) {
	n, ok := input.(int)
	if !ok {
		return nil, fmt.Errorf("doubler: input must be an int, got %T", input)
	}

	cfg := unit.NewProcessConfig()
	if err := cfg.SetRuns(1); err != nil {
		return nil, err
	}

	u, err := unit.New(func(ctx *unit.Context) error {
		s := ctx.State.(*state)
		s.value = n * 2
		return nil
	}, cfg)
	if err != nil {
		return nil, err
	}
	u.State = &state{value: n}
	u.OnResult = func(ctx *unit.Context) (any, error) {
		return ctx.State.(*state).value, nil
	}
	return u, nil
}
