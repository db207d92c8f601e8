// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

package kernelproc

import (
	"time"

	"github.com/ceetaro/suitkaise/clog"
	"github.com/ceetaro/suitkaise/errorkinds"
	"github.com/ceetaro/suitkaise/retrier"
	"github.com/ceetaro/suitkaise/sectiontimeout"
	"github.com/ceetaro/suitkaise/timerstat"
	"github.com/ceetaro/suitkaise/unit"
)

// Hooks supplies a Lifecycle with its messaging and stop-signal wiring,
// letting the same ENTER..RESULT/ERROR state machine run either across a
// process boundary (Run, via Channels) or in-process (the pool dispatcher,
// with no parent to tell/listen to).
type Hooks struct {
	Tell    func(value any) error
	Listen  func(timeout time.Duration) (value any, ok bool)
	Stopped <-chan struct{}
}

// Lifecycle drives one Work Unit through ENTER, PRERUN, RUN, POSTRUN
// (repeated until a stop condition fires or a section's lives are
// exhausted), then ONFINISH and exactly one of RESULT or ERROR.
type Lifecycle struct {
	*clog.CLogger
	u      *unit.Unit
	cfg    *unit.ProcessConfig
	hooks  Hooks
	timers *timerstat.Set
	budget *retrier.Budget
}

// NewLifecycle builds a Lifecycle for u. cfg is frozen before use, matching
// "forbidden after start" config-mutation semantics.
func NewLifecycle(u *unit.Unit, cfg *unit.ProcessConfig, hooks Hooks) *Lifecycle {
	cfg.Freeze()
	return &Lifecycle{
		CLogger: clog.New("kernelproc "),
		u:       u,
		cfg:     cfg,
		hooks:   hooks,
		timers:  timerstat.NewSet(),
		budget:  retrier.NewBudget(cfg.Lives),
	}
}

// Timers returns a snapshot of every section's recorded timings so far.
func (lc *Lifecycle) Timers() timerstat.Snapshot {
	return lc.timers.Snapshot()
}

// Run executes the full state machine and returns the terminal value and
// whether it is an error-kind outcome.
func (lc *Lifecycle) Run() (value any, isError bool) {
	ctx := &unit.Context{State: lc.u.State, Tell: lc.hooks.Tell, Listen: lc.hooks.Listen}

	start := time.Now()
	completedRuns := 0

	var cause error
iterations:
	for {
		select {
		case <-lc.hooks.Stopped:
			break iterations
		default:
		}
		if lc.cfg.Runs != unit.Unbounded && completedRuns >= lc.cfg.Runs {
			break
		}
		if lc.cfg.JoinIn > 0 && time.Since(start) >= lc.cfg.JoinIn {
			break
		}

		ctx.CurrentRun = completedRuns
		if err := lc.runIteration(ctx); err != nil {
			cause = err
			break iterations
		}
		completedRuns++
		lc.timers.RecordFullRun()
	}

	if finishErr := lc.runSection(errorkinds.SectionOnFinish, lc.u.OnFinishOrNoop(), ctx); finishErr != nil {
		cause = finishErr
	}

	if cause != nil {
		result, handlerErr := lc.u.OnErrorOrDefault()(ctx, cause)
		if handlerErr != nil {
			return errorkinds.NewErrorHandlerError(ctx.CurrentRun, handlerErr), true
		}
		return result, true
	}

	result, resultErr := lc.u.OnResultOrDefault()(ctx)
	if resultErr != nil {
		return errorkinds.NewResultError(ctx.CurrentRun, resultErr), true
	}
	return result, false
}

// runIteration executes prerun/run/postrun, restarting at prerun on any
// section crash while the lives budget allows, and returns the terminal
// cause once it is exhausted.
func (lc *Lifecycle) runIteration(ctx *unit.Context) error {
	for {
		if err := lc.runSection(errorkinds.SectionPreRun, lc.u.PreRunOrNoop(), ctx); err != nil {
			if lc.budget.Consume() {
				continue
			}
			return err
		}
		if err := lc.runSection(errorkinds.SectionRun, lc.u.Run, ctx); err != nil {
			if lc.budget.Consume() {
				continue
			}
			return err
		}
		if err := lc.runSection(errorkinds.SectionPostRun, lc.u.PostRunOrNoop(), ctx); err != nil {
			if lc.budget.Consume() {
				continue
			}
			return err
		}
		return nil
	}
}

// runSection times and timeout-guards one lifecycle function, discarding
// the timer sample and wrapping the failure on either a raised error or a
// timeout.
func (lc *Lifecycle) runSection(section errorkinds.Section, fn unit.Func, ctx *unit.Context) error {
	timer := lc.timers.For(section)
	d := lc.cfg.Timeouts[section]

	timer.Start()
	timedOut, err := sectiontimeout.Run(d, func() error { return fn(ctx) })

	switch {
	case timedOut:
		timer.Discard()
		return &errorkinds.TimeoutError{Section: section, Timeout: d, CurrentRun: ctx.CurrentRun}
	case err != nil:
		timer.Discard()
		return wrapSectionError(section, ctx.CurrentRun, err)
	default:
		timer.Stop()
		return nil
	}
}

func wrapSectionError(section errorkinds.Section, currentRun int, cause error) error {
	switch section {
	case errorkinds.SectionPreRun:
		return errorkinds.NewPreRunError(currentRun, cause)
	case errorkinds.SectionRun:
		return errorkinds.NewRunError(currentRun, cause)
	case errorkinds.SectionPostRun:
		return errorkinds.NewPostRunError(currentRun, cause)
	case errorkinds.SectionOnFinish:
		return errorkinds.NewOnFinishError(currentRun, cause)
	default:
		return cause
	}
}
