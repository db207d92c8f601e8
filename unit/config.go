// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

// Package unit implements the worker runtime's core data model: the Work
// Unit and its Process Config.
package unit

import (
	"sync/atomic"
	"time"

	"github.com/ceetaro/suitkaise/errorkinds"
)

// Unbounded marks ProcessConfig.Runs as having no iteration limit.
const Unbounded = -1

// ProcessConfig holds the per-Work-Unit process parameters. It may only
// be mutated during construction of the owning Unit; Freeze, which
// kernelproc.NewLifecycle calls when the lifecycle starts, makes the
// setters reject further mutation.
type ProcessConfig struct {
	// Runs is the max iteration count, or Unbounded.
	Runs int
	// JoinIn is the max wall-clock budget, or 0 for unbounded.
	JoinIn time.Duration
	// Lives is the max attempt count; must be >= 1.
	Lives int
	// Timeouts maps a section name to its timeout, or absent (zero value)
	// for no timeout.
	Timeouts map[errorkinds.Section]time.Duration

	frozen atomic.Bool
}

// NewProcessConfig returns a ProcessConfig with the engine's defaults:
// unbounded runs, unbounded join_in, a single life, and no timeouts.
func NewProcessConfig() *ProcessConfig {
	return &ProcessConfig{
		Runs:     Unbounded,
		Lives:    1,
		Timeouts: make(map[errorkinds.Section]time.Duration),
	}
}

// Freeze marks the config immutable. Idempotent.
func (c *ProcessConfig) Freeze() { c.frozen.Store(true) }

// Frozen reports whether Freeze has been called.
func (c *ProcessConfig) Frozen() bool { return c.frozen.Load() }

// SetRuns sets the max iteration count; rejected once frozen.
func (c *ProcessConfig) SetRuns(runs int) error {
	if c.frozen.Load() {
		return errorkinds.ErrConfigFrozen
	}
	c.Runs = runs
	return nil
}

// SetJoinIn sets the max wall-clock budget; rejected once frozen.
func (c *ProcessConfig) SetJoinIn(d time.Duration) error {
	if c.frozen.Load() {
		return errorkinds.ErrConfigFrozen
	}
	c.JoinIn = d
	return nil
}

// SetLives sets the max attempt count; rejected once frozen.
func (c *ProcessConfig) SetLives(lives int) error {
	if c.frozen.Load() {
		return errorkinds.ErrConfigFrozen
	}
	c.Lives = lives
	return nil
}

// SetTimeout sets the timeout for a section; rejected once frozen.
func (c *ProcessConfig) SetTimeout(section errorkinds.Section, d time.Duration) error {
	if c.frozen.Load() {
		return errorkinds.ErrConfigFrozen
	}
	c.Timeouts[section] = d
	return nil
}

// validate enforces the invariants a ProcessConfig must satisfy before use.
func (c *ProcessConfig) validate() error {
	if c.Runs != Unbounded && c.Runs <= 0 {
		return errInvalidConfig("runs must be a positive integer or Unbounded")
	}
	if c.Lives < 1 {
		return errInvalidConfig("lives must be >= 1")
	}
	for sec, d := range c.Timeouts {
		if d < 0 {
			return errInvalidConfig("timeout for " + string(sec) + " must be positive")
		}
	}
	return nil
}

type configError string

func (e configError) Error() string { return string(e) }

func errInvalidConfig(msg string) error { return configError("invalid process config: " + msg) }
