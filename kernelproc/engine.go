// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

// Package kernelproc drives a Work Unit through its lifecycle state
// machine inside a worker process: ENTER, PRERUN, RUN, POSTRUN (repeated
// until a stop condition fires or a section's lives are exhausted), then
// ONFINISH and exactly one of RESULT or ERROR before exit.
package kernelproc

import (
	"time"

	"github.com/ceetaro/suitkaise/clog"
	"github.com/ceetaro/suitkaise/errorkinds"
	"github.com/ceetaro/suitkaise/procpipe"
	"github.com/ceetaro/suitkaise/serializer"
	"github.com/ceetaro/suitkaise/unit"
)

// engine wires a Lifecycle's Hooks to the three business queues of a
// process-boundary worker.
type engine struct {
	*clog.CLogger
	chans Channels

	tellIn  chan any
	stopped chan struct{}
}

// Run executes u's lifecycle to completion and sends exactly one envelope
// on chans.Result before returning. It never returns an error itself:
// failures are folded into the error envelope, matching a worker process
// that always exits cleanly regardless of what the Work Unit did.
func Run(u *unit.Unit, cfg *unit.ProcessConfig, chans Channels) {
	e := &engine{
		CLogger: clog.New("kernelproc "),
		chans:   chans,
		tellIn:  make(chan any, 256),
		stopped: make(chan struct{}),
	}

	go e.drainTell()

	lc := NewLifecycle(u, cfg, Hooks{Tell: e.tell, Listen: e.listen, Stopped: e.stopped})
	value, isError := lc.Run()

	payload, err := serializer.Encode(value)
	if err != nil {
		// The value itself failed to serialize; fall back to a wire-safe
		// rendering so the parent still observes a terminal message.
		payload, _ = serializer.Encode(errorkinds.NewWireError(err))
		isError = true
	}
	timersBytes, _ := serializer.Encode(lc.Timers())

	kind := KindResult
	if isError {
		kind = KindError
	}
	if sendErr := chans.Result.Send(Envelope{Kind: kind, Payload: payload, Timers: timersBytes}); sendErr != nil {
		e.Errorf("failed sending %s envelope: %v", kind, sendErr)
	}

	// Cancel the tell/listen feeders so the worker can exit even if the
	// parent never drains them; the result feeder is left untouched since
	// it just carried the only message it will ever carry.
	chans.Tell.Close()
	chans.Listen.Close()
}

// tell implements unit.Context.Tell: the worker's outgoing message is
// enqueued on listen_queue, since tell/listen are named from the caller's
// vantage point and the parent's listen() dequeues from there.
func (e *engine) tell(value any) error {
	return e.chans.Listen.Send(value)
}

// listen implements unit.Context.Listen: it dequeues a value the parent
// told via Handle.Tell, which this engine's drainTell goroutine has
// already pulled off tell_queue and separated from stop control messages.
func (e *engine) listen(timeout time.Duration) (any, bool) {
	if timeout <= 0 {
		v, ok := <-e.tellIn
		return v, ok
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case v, ok := <-e.tellIn:
		return v, ok
	case <-t.C:
		return nil, false
	}
}

// drainTell continuously receives off tell_queue, routing MsgStop into
// the stopped signal and MsgTell payloads into tellIn for listen() to
// consume.
func (e *engine) drainTell() {
	defer close(e.tellIn)
	for {
		v, err := e.chans.Tell.Recv()
		if err != nil || v == procpipe.Empty {
			return
		}
		msg, ok := v.(QueueMessage)
		if !ok {
			continue
		}
		switch msg.Kind {
		case MsgStop:
			select {
			case <-e.stopped:
			default:
				close(e.stopped)
			}
		case MsgTell:
			e.tellIn <- msg.Value
		}
	}
}
