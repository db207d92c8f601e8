// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

// Package handle implements the parent-side control plane for a worker
// process: spawning it, driving its lifecycle state, and retrieving its
// terminal result.
package handle

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/ceetaro/suitkaise/clog"
	"github.com/ceetaro/suitkaise/errorkinds"
	"github.com/ceetaro/suitkaise/kernelproc"
	"github.com/ceetaro/suitkaise/procpipe"
	"github.com/ceetaro/suitkaise/serializer"
	"github.com/ceetaro/suitkaise/timerstat"
)

// State is the observable lifecycle state of a Handle.
type State int

const (
	StateNew State = iota
	StateStarting
	StateRunning
	StateDraining
	StateFinished
	StateKilled
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateFinished:
		return "finished"
	case StateKilled:
		return "killed"
	default:
		return "unknown"
	}
}

// WorkerBinaryPath is the executable Start spawns for every worker. It
// defaults to a "kernelworker" binary alongside the current executable;
// override it (e.g. in tests, or when the worker binary is installed
// elsewhere) before calling Start.
var WorkerBinaryPath = defaultWorkerBinaryPath()

func defaultWorkerBinaryPath() string {
	exe, err := os.Executable()
	if err != nil {
		return "kernelworker"
	}
	return filepath.Join(filepath.Dir(exe), "kernelworker")
}

var errNotStarted = errors.New("handle: not started")
var errRecvTimeout = errors.New("handle: recv deadline elapsed")

// Handle drives one worker process through new → starting → running →
// draining → finished, also reachable via killed. Unlike the in-worker
// engine's transparent crash/retry loop, a retry never becomes visible to
// the Handle: it only ever observes the single terminal envelope.
type Handle struct {
	*clog.CLogger

	mu    sync.Mutex
	state State
	spec  Spec
	cmd   *exec.Cmd

	descAnchor   *procpipe.Anchor
	tellAnchor   *procpipe.Anchor
	listenAnchor *procpipe.Anchor
	resultAnchor *procpipe.Anchor

	stopOnce sync.Once

	waitOnce sync.Once
	waitDone chan struct{}
	waitErr  error

	resultOnce     sync.Once
	resultReceived bool
	resultVal      any
	resultErr      error
	timers         timerstat.Snapshot
}

// New returns an unstarted Handle for spec.
func New(spec Spec) *Handle {
	return &Handle{
		CLogger: clog.New("handle "),
		state:   StateNew,
		spec:    spec,
	}
}

// State reports the Handle's current lifecycle state.
func (h *Handle) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// IsAlive reports whether the worker process is presumed running.
func (h *Handle) IsAlive() bool {
	switch h.State() {
	case StateRunning, StateDraining:
		return true
	default:
		return false
	}
}

// CurrentRun reports the number of completed iterations, derived from the
// full_run timer sample count once the terminal envelope has arrived
// (0 beforehand).
func (h *Handle) CurrentRun() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.timers.FullRun.Count
}

// Start spawns the worker process and sends it spec. Forbidden once the
// Handle has left the new state.
func (h *Handle) Start() error {
	h.mu.Lock()
	if h.state != StateNew {
		h.mu.Unlock()
		return fmt.Errorf("handle: start forbidden in state %s", h.state)
	}
	h.state = StateStarting
	h.mu.Unlock()

	descAnchor, descPoint, err := procpipe.Pair(procpipe.ModeAnchorToPoint)
	if err != nil {
		return err
	}
	tellAnchor, tellPoint, err := procpipe.Pair(procpipe.ModeAnchorToPoint)
	if err != nil {
		return err
	}
	listenAnchor, listenPoint, err := procpipe.Pair(procpipe.ModePointToAnchor)
	if err != nil {
		return err
	}
	resultAnchor, resultPoint, err := procpipe.Pair(procpipe.ModePointToAnchor)
	if err != nil {
		return err
	}

	descFiles, err := descPoint.Transfer()
	if err != nil {
		return err
	}
	tellFiles, err := tellPoint.Transfer()
	if err != nil {
		return err
	}
	listenFiles, err := listenPoint.Transfer()
	if err != nil {
		return err
	}
	resultFiles, err := resultPoint.Transfer()
	if err != nil {
		return err
	}

	cmd := exec.Command(WorkerBinaryPath)
	cmd.ExtraFiles = []*os.File{descFiles[0], tellFiles[0], listenFiles[0], resultFiles[0]}
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	setProcAttrs(cmd)

	if err := cmd.Start(); err != nil {
		h.mu.Lock()
		h.state = StateNew
		h.mu.Unlock()
		return fmt.Errorf("handle: spawning %s: %w", WorkerBinaryPath, err)
	}
	// The child now owns its dup'd copies; the parent's copies must be
	// closed or the pipe's write end never observes EOF when it exits.
	descFiles[0].Close()
	tellFiles[0].Close()
	listenFiles[0].Close()
	resultFiles[0].Close()

	h.mu.Lock()
	h.cmd = cmd
	h.descAnchor = descAnchor
	h.tellAnchor = tellAnchor
	h.listenAnchor = listenAnchor
	h.resultAnchor = resultAnchor
	h.state = StateRunning
	h.mu.Unlock()

	if err := descAnchor.Send(h.spec); err != nil {
		return fmt.Errorf("handle: sending spec: %w", err)
	}
	return descAnchor.Close()
}

// Stop is idempotent: it asks the worker to stop at its next cooperative
// check, without blocking on the worker actually exiting.
func (h *Handle) Stop() error {
	h.mu.Lock()
	state := h.state
	tellAnchor := h.tellAnchor
	h.mu.Unlock()

	if state == StateNew {
		return errNotStarted
	}
	if state == StateFinished || state == StateKilled {
		return nil
	}

	h.mu.Lock()
	if h.state == StateRunning {
		h.state = StateDraining
	}
	h.mu.Unlock()

	var sendErr error
	h.stopOnce.Do(func() {
		sendErr = tellAnchor.Send(kernelproc.QueueMessage{Kind: kernelproc.MsgStop})
	})
	return sendErr
}

// Kill force-terminates the worker process. A killed worker's result()
// always returns errorkinds.ErrNoResult.
func (h *Handle) Kill() error {
	h.mu.Lock()
	if h.state == StateNew {
		h.mu.Unlock()
		return errNotStarted
	}
	if h.state == StateFinished || h.state == StateKilled {
		h.mu.Unlock()
		return nil
	}
	h.state = StateKilled
	cmd := h.cmd
	h.mu.Unlock()

	if cmd == nil {
		// Still mid-Start: nothing spawned yet to kill or reap.
		return nil
	}
	err := killProcessGroup(cmd.Process)
	h.ensureWaiter()
	<-h.waitDone
	return err
}

// Wait drains at most one message from result_queue, then joins the
// worker. Draining before joining avoids a classic producer-blocked-on-
// queue deadlock. timeout <= 0 blocks indefinitely. Returns whether the
// worker has exited within the deadline.
func (h *Handle) Wait(timeout time.Duration) (bool, error) {
	if h.State() == StateNew {
		return false, errNotStarted
	}

	h.drainResult(timeout)

	h.ensureWaiter()
	if timeout <= 0 {
		<-h.waitDone
	} else {
		select {
		case <-h.waitDone:
		case <-time.After(timeout):
			return false, nil
		}
	}

	h.mu.Lock()
	if h.state != StateKilled {
		h.state = StateFinished
	}
	h.mu.Unlock()
	return true, nil
}

// Result calls Wait with no deadline, then returns the decoded outcome:
// the result payload on success, the structured error on a propagated
// worker failure, or errorkinds.ErrNoResult if the worker was killed
// before sending anything.
func (h *Handle) Result() (any, error) {
	if _, err := h.Wait(0); err != nil {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.resultReceived {
		return nil, errorkinds.ErrNoResult
	}
	return h.resultVal, h.resultErr
}

// Run is a convenience for Start, then Result.
func (h *Handle) Run() (any, error) {
	if err := h.Start(); err != nil {
		return nil, err
	}
	return h.Result()
}

// Tell enqueues value onto tell_queue, non-blocking.
func (h *Handle) Tell(value any) error {
	h.mu.Lock()
	tellAnchor := h.tellAnchor
	h.mu.Unlock()
	if tellAnchor == nil {
		return errNotStarted
	}
	return tellAnchor.Send(kernelproc.QueueMessage{Kind: kernelproc.MsgTell, Value: value})
}

// Listen dequeues the next value from listen_queue, or reports ok=false
// if timeout elapses first or the worker has closed its feeder.
func (h *Handle) Listen(timeout time.Duration) (value any, ok bool) {
	h.mu.Lock()
	listenAnchor := h.listenAnchor
	h.mu.Unlock()
	if listenAnchor == nil {
		return nil, false
	}
	v, err := recvWithTimeout(listenAnchor, timeout)
	if err != nil || v == procpipe.Empty {
		return nil, false
	}
	return v, true
}

func (h *Handle) ensureWaiter() {
	h.waitOnce.Do(func() {
		h.waitDone = make(chan struct{})
		go func() {
			h.waitErr = h.cmd.Wait()
			close(h.waitDone)
		}()
	})
}

func (h *Handle) drainResult(timeout time.Duration) {
	h.resultOnce.Do(func() {
		h.mu.Lock()
		resultAnchor := h.resultAnchor
		h.mu.Unlock()

		v, err := recvWithTimeout(resultAnchor, timeout)
		if err != nil || v == procpipe.Empty {
			return
		}
		env, ok := v.(kernelproc.Envelope)
		if !ok {
			h.Errorf("result_queue carried unexpected type %T", v)
			return
		}
		h.applyEnvelope(env)
	})
}

func (h *Handle) applyEnvelope(env kernelproc.Envelope) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.resultReceived = true

	if len(env.Timers) > 0 {
		if snap, err := serializer.Decode(env.Timers); err == nil {
			if s, ok := snap.(timerstat.Snapshot); ok {
				h.timers = s
			}
		}
	}

	payload, err := serializer.Decode(env.Payload)
	if err != nil {
		h.resultErr = err
		return
	}

	if env.Kind == kernelproc.KindError {
		if e, ok := payload.(error); ok {
			h.resultErr = e
		} else {
			h.resultErr = fmt.Errorf("worker error: %v", payload)
		}
		return
	}

	h.resultVal = payload
}

// recvWithTimeout adapts Anchor.Recv's blocking call to an optional
// deadline, the way every other "X(timeout?)" operation in this control
// plane does.
func recvWithTimeout(a *procpipe.Anchor, timeout time.Duration) (any, error) {
	type result struct {
		v   any
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := a.Recv()
		ch <- result{v, err}
	}()

	if timeout <= 0 {
		r := <-ch
		return r.v, r.err
	}
	select {
	case r := <-ch:
		return r.v, r.err
	case <-time.After(timeout):
		return nil, errRecvTimeout
	}
}
