// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

// Package procpipe implements the Pipe primitive: an anchored
// point-to-point duplex channel between two endpoints, one of which (the
// anchor) cannot be transferred out of its creating process.
package procpipe

import (
	"encoding/gob"
	"errors"
	"io"
	"os"
	"sync"

	"github.com/ceetaro/suitkaise/errorkinds"
)

// Direction constrains which operations an endpoint permits.
type Direction int

const (
	Duplex Direction = iota
	SendOnly
	RecvOnly
)

// empty is the sentinel Recv returns to signal a closed, fully-drained pipe.
type empty struct{}

// Empty is returned by Recv when the pipe is closed and has no more
// buffered frames: recv drains remaining frames before reporting closed.
var Empty = empty{}

// endpoint is the shared machinery behind Anchor and Point: a gob-framed
// duplex (or one-way) byte channel over a pair of os.Pipe files. gob's
// Encoder/Decoder are themselves self-delimiting over a persistent stream,
// so no additional length-prefixing is required.
type endpoint struct {
	mu     sync.Mutex
	read   *os.File
	write  *os.File
	dec    *gob.Decoder
	enc    *gob.Encoder
	dir    Direction
	closed bool
}

func newEndpoint(read, write *os.File, dir Direction) *endpoint {
	e := &endpoint{read: read, write: write, dir: dir}
	if read != nil {
		e.dec = gob.NewDecoder(read)
	}
	if write != nil {
		e.enc = gob.NewEncoder(write)
	}
	return e
}

// send serializes and writes value, non-blocking up to the OS pipe buffer.
func (e *endpoint) send(value any) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return errorkinds.ErrEndpointClosed
	}
	if e.dir == RecvOnly {
		return errorkinds.ErrEndpointDirection
	}
	return e.enc.Encode(&value)
}

// recv blocks for the next frame, returning Empty once the peer has closed
// and no more frames are buffered.
func (e *endpoint) recv() (any, error) {
	e.mu.Lock()
	closed := e.closed
	dir := e.dir
	dec := e.dec
	e.mu.Unlock()

	if dir == SendOnly {
		return nil, errorkinds.ErrEndpointDirection
	}
	if closed {
		return Empty, nil
	}

	var value any
	if err := dec.Decode(&value); err != nil {
		if errors.Is(err, io.EOF) {
			return Empty, nil
		}
		return nil, &errorkinds.DeserializationError{Cause: err}
	}
	return value, nil
}

// close is idempotent.
func (e *endpoint) close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	var firstErr error
	if e.write != nil {
		if err := e.write.Close(); err != nil {
			firstErr = err
		}
	}
	if e.read != nil {
		if err := e.read.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
