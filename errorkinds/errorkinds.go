// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

// Package errorkinds implements the structured error taxonomy of the
// worker runtime: a single ProcessError root with section-scoped
// subclasses, timeout errors, and infrastructural errors raised by the
// pool, pipe, and shared-state coordinator.
package errorkinds

import (
	"encoding/gob"
	"errors"
	"fmt"
	"time"
)

// Section identifies a lifecycle section of a Work Unit.
type Section string

const (
	SectionPreRun    Section = "prerun"
	SectionRun       Section = "run"
	SectionPostRun   Section = "postrun"
	SectionOnFinish  Section = "onfinish"
	SectionOnResult  Section = "result"
	SectionOnError   Section = "error"
)

// ProcessError is the root of every structured failure the engine surfaces
// through a Worker Handle. Concrete section errors embed it.
type ProcessError struct {
	Section    Section
	CurrentRun int
	Cause      error
}

func (e *ProcessError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s failed at run %d: %v", e.Section, e.CurrentRun, e.Cause)
	}
	return fmt.Sprintf("%s failed at run %d", e.Section, e.CurrentRun)
}

func (e *ProcessError) Unwrap() error { return e.Cause }

// Retryable reports whether this section's failures are eligible to
// consume a life and restart at prerun: only prerun, run and postrun
// failures are retryable; onfinish/result/error are terminal.
func (e *ProcessError) Retryable() bool {
	switch e.Section {
	case SectionPreRun, SectionRun, SectionPostRun:
		return true
	default:
		return false
	}
}

// PreRunError wraps a failure of the prerun section.
type PreRunError struct{ *ProcessError }

func NewPreRunError(currentRun int, cause error) *PreRunError {
	return &PreRunError{&ProcessError{Section: SectionPreRun, CurrentRun: currentRun, Cause: cause}}
}

// RunError wraps a failure of the run section.
type RunError struct{ *ProcessError }

func NewRunError(currentRun int, cause error) *RunError {
	return &RunError{&ProcessError{Section: SectionRun, CurrentRun: currentRun, Cause: cause}}
}

// PostRunError wraps a failure of the postrun section.
type PostRunError struct{ *ProcessError }

func NewPostRunError(currentRun int, cause error) *PostRunError {
	return &PostRunError{&ProcessError{Section: SectionPostRun, CurrentRun: currentRun, Cause: cause}}
}

// OnFinishError wraps a failure of the onfinish section, including when
// onfinish is reached by way of the error handler.
type OnFinishError struct{ *ProcessError }

func NewOnFinishError(currentRun int, cause error) *OnFinishError {
	return &OnFinishError{&ProcessError{Section: SectionOnFinish, CurrentRun: currentRun, Cause: cause}}
}

// ResultError wraps a failure of the result section.
type ResultError struct{ *ProcessError }

func NewResultError(currentRun int, cause error) *ResultError {
	return &ResultError{&ProcessError{Section: SectionOnResult, CurrentRun: currentRun, Cause: cause}}
}

// ErrorHandlerError wraps a failure of the error section itself.
type ErrorHandlerError struct{ *ProcessError }

func NewErrorHandlerError(currentRun int, cause error) *ErrorHandlerError {
	return &ErrorHandlerError{&ProcessError{Section: SectionOnError, CurrentRun: currentRun, Cause: cause}}
}

// TimeoutError signals that a section exceeded its configured timeout.
type TimeoutError struct {
	Section    Section
	Timeout    time.Duration
	CurrentRun int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %s at run %d", e.Section, e.Timeout, e.CurrentRun)
}

// Retryable mirrors ProcessError.Retryable for timeouts.
func (e *TimeoutError) Retryable() bool {
	switch e.Section {
	case SectionPreRun, SectionRun, SectionPostRun:
		return true
	default:
		return false
	}
}

// ResultTimeoutError reports a missed deadline: a pool item exceeding
// Pool.Timeout, Coordinator.Stop exceeding its deadline, or a TIMEOUT reply
// to Proxy.Stop. Handle.Wait reports its own timeout as ok=false instead.
type ResultTimeoutError struct {
	Timeout time.Duration
}

func (e *ResultTimeoutError) Error() string {
	return fmt.Sprintf("result not available within %s", e.Timeout)
}

// CoordinatorError wraps infrastructural failures of the Shared-State
// Coordinator (crash, unavailability, RPC failure).
type CoordinatorError struct {
	Name  string
	Cause error
	// Transient marks a Cause the caller classified as a recoverable
	// session interruption (a canceled or deadline-exceeded gRPC stream,
	// or the coordinator being known-down) rather than a rejected
	// request; package share/proxy sets this to decide whether a
	// mutation should be queued for Replay instead of surfaced.
	Transient bool
}

func (e *CoordinatorError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("coordinator: %s: %v", e.Name, e.Cause)
	}
	return fmt.Sprintf("coordinator: %v", e.Cause)
}

func (e *CoordinatorError) Unwrap() error { return e.Cause }

// EndpointError signals misuse of a Pipe endpoint (pinned anchor transfer,
// double transfer of a point, wrong-direction send/recv on a one-way pipe).
type EndpointError struct {
	Reason string
}

func (e *EndpointError) Error() string { return "pipe endpoint: " + e.Reason }

var (
	ErrEndpointPinned    = &EndpointError{Reason: "anchor endpoint cannot be transferred"}
	ErrEndpointLocked    = &EndpointError{Reason: "point endpoint already transferred"}
	ErrEndpointDirection = &EndpointError{Reason: "operation not permitted by endpoint direction"}
	ErrEndpointClosed    = &EndpointError{Reason: "endpoint is closed"}
)

// SerializationError signals that a value could not be encoded by the
// (external) Serializer.
type SerializationError struct {
	OriginalType string
	Path         string
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("cannot serialize %s at %s", e.OriginalType, e.Path)
}

// DeserializationError signals that bytes could not be decoded by the
// (external) Serializer.
type DeserializationError struct {
	Offset int
	Cause  error
}

func (e *DeserializationError) Error() string {
	return fmt.Sprintf("deserialization failed at offset %d: %v", e.Offset, e.Cause)
}

func (e *DeserializationError) Unwrap() error { return e.Cause }

// ErrConfigFrozen is returned when a ProcessConfig is mutated after the
// owning Work Unit has started.
var ErrConfigFrozen = errors.New("process config is frozen after start")

// ErrStarArgument is returned by the pool's star() modifier when an input
// element is not a finite ordered sequence.
var ErrStarArgument = errors.New("star() input element is not a sequence")

// ErrForbiddenSharedValue is returned when assigning a live-resource or
// host IPC primitive to a Share attribute.
var ErrForbiddenSharedValue = errors.New("value cannot be held in shared state")

// ErrCoordinatorUnavailable is the Cause wrapped by a CoordinatorError
// returned for reads attempted while the coordinator is stopped.
var ErrCoordinatorUnavailable = errors.New("coordinator unavailable")

// ErrNoResult is the sentinel returned by Handle.Result when the worker was
// killed before sending any result message.
var ErrNoResult = errors.New("no result: worker produced none")

// ErrPoolCancelled names the pool-dispatch-cancelled error kind. Package pool
// does not return it: an Iterator the caller stops pulling from early still
// runs its remaining items to completion.
var ErrPoolCancelled = errors.New("pool dispatch cancelled")

// WireError is a gob-encodable stand-in for an error that crossed the
// worker↔parent Pipe boundary. The original Go type generally cannot be
// reconstructed on the other side, so the wrapper preserves the rendered
// message and type name instead.
type WireError struct {
	TypeName string
	Message  string
}

func (e *WireError) Error() string { return e.Message }

// NewWireError renders err (which may itself be a *ProcessError chain) into
// a WireError suitable for gob transport across a Pipe.
func NewWireError(err error) *WireError {
	if err == nil {
		return nil
	}
	return &WireError{TypeName: fmt.Sprintf("%T", err), Message: err.Error()}
}

func init() {
	gob.Register(&ProcessError{})
	gob.Register(&PreRunError{})
	gob.Register(&RunError{})
	gob.Register(&PostRunError{})
	gob.Register(&OnFinishError{})
	gob.Register(&ResultError{})
	gob.Register(&ErrorHandlerError{})
	gob.Register(&TimeoutError{})
	gob.Register(&ResultTimeoutError{})
	gob.Register(&CoordinatorError{})
	gob.Register(&EndpointError{})
	gob.Register(&SerializationError{})
	gob.Register(&DeserializationError{})
	gob.Register(&WireError{})

	// Register the two common unexported stdlib error concretes by name.
	// gob still cannot encode them, since they have no exported fields: a
	// value whose cause is a plain errors.New/fmt.Errorf error fails to
	// encode, and kernelproc.Run then sends a WireError in its place. Any
	// other concrete error type is the caller's own responsibility to
	// register, same as for any other interface-typed gob payload.
	gob.Register(errors.New(""))
	gob.Register(fmt.Errorf("%w", errors.New("")))
}
