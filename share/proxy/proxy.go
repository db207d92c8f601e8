// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

// Package proxy implements the worker-side half of the Shared-State
// Coordinator (C6): a Proxy is the in-worker stand-in for one tracked
// object, routing GET/CALL/SET/DELETE/RECONNECT_ALL/CLEAR/STOP over a
// single bidirectional gRPC session to the Coordinator that owns it.
package proxy

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ceetaro/suitkaise/clog"
	"github.com/ceetaro/suitkaise/errorkinds"
	"github.com/ceetaro/suitkaise/serializer"
	"github.com/ceetaro/suitkaise/share/rpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
)

// Proxy is one worker's handle onto a single named tracked object. Its
// requests are serialized behind an internal mutex, so calls from several
// goroutines each complete their request/response pair in turn, matching
// the "within a single proxy handle, requests are serialized and responses
// arrive in issuing order" guarantee.
type Proxy struct {
	*clog.CLogger
	name   string
	conn   *grpc.ClientConn
	stream grpc.ClientStream
	ownsConn bool

	mu      sync.Mutex
	stopped bool
	queue   []rpc.Request
}

// Dial opens a new session with the coordinator at target and returns a
// Proxy for the tracked object name. The caller owns the returned Proxy's
// underlying connection and should call Close when done.
func Dial(ctx context.Context, target, name string) (*Proxy, error) {
	conn, err := grpc.DialContext(ctx, target,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithBlock(),
	)
	if err != nil {
		return nil, &errorkinds.CoordinatorError{Name: name, Cause: err}
	}
	p, err := newProxy(ctx, conn, name)
	if err != nil {
		conn.Close()
		return nil, err
	}
	p.ownsConn = true
	return p, nil
}

// DialRegistered behaves like Dial but reads the target from the
// process-wide registry installed by whoever started the coordinator.
func DialRegistered(ctx context.Context, name string) (*Proxy, error) {
	target, ok := Registered()
	if !ok {
		return nil, &errorkinds.CoordinatorError{Name: name, Cause: errorkinds.ErrCoordinatorUnavailable}
	}
	return Dial(ctx, target, name)
}

// New wraps an already-dialed connection, letting callers share one
// grpc.ClientConn across Proxies for several names. The caller retains
// ownership of conn.
func New(ctx context.Context, conn *grpc.ClientConn, name string) (*Proxy, error) {
	return newProxy(ctx, conn, name)
}

func newProxy(ctx context.Context, conn *grpc.ClientConn, name string) (*Proxy, error) {
	stream, err := rpc.OpenSession(ctx, conn)
	if err != nil {
		return nil, &errorkinds.CoordinatorError{Name: name, Cause: err}
	}
	return &Proxy{
		CLogger: clog.New("share "),
		name:    name,
		conn:    conn,
		stream:  stream,
	}, nil
}

// Close ends the session. If the Proxy owns its connection (created via
// Dial), the connection is closed too.
func (p *Proxy) Close() error {
	err := p.stream.CloseSend()
	if p.ownsConn {
		if cerr := p.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// Get reads member of the tracked object, or the whole object when member
// is empty.
func (p *Proxy) Get(member string) (any, error) {
	resp, err := p.roundTrip(rpc.Request{Op: rpc.OpGet, Name: p.name, Member: member})
	if err != nil {
		return nil, err
	}
	return serializer.Decode(resp.Payload)
}

// Call invokes member as a method on the tracked object with args,
// returning its (value, error) result.
func (p *Proxy) Call(member string, args ...any) (any, error) {
	argsBytes, err := serializer.Encode(args)
	if err != nil {
		return nil, &errorkinds.SerializationError{OriginalType: "args", Path: member}
	}
	resp, err := p.roundTrip(rpc.Request{Op: rpc.OpCall, Name: p.name, Member: member, Args: argsBytes})
	if err != nil {
		return nil, err
	}
	return serializer.Decode(resp.Payload)
}

// Set writes member (or the whole object, when member is empty) to value,
// classifying it first per the tracked-object rules.
func (p *Proxy) Set(member string, value any) error {
	payload, err := Classify(value)
	if err != nil {
		return err
	}
	_, err = p.roundTrip(rpc.Request{Op: rpc.OpSet, Name: p.name, Member: member, Value: payload})
	return err
}

// Delete drops the tracked object entirely.
func (p *Proxy) Delete() error {
	_, err := p.roundTrip(rpc.Request{Op: rpc.OpDelete, Name: p.name})
	return err
}

// ReconnectAll asks the coordinator for every currently tracked object's
// encoded value, for the caller to resolve deferred-reconnect placeholders
// against locally (see package autoreconnect).
func (p *Proxy) ReconnectAll() (map[string]any, error) {
	resp, err := p.roundTrip(rpc.Request{Op: rpc.OpReconnectAll})
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(resp.Map))
	for name, b := range resp.Map {
		v, err := serializer.Decode(b)
		if err != nil {
			return nil, err
		}
		out[name] = v
	}
	return out, nil
}

// Clear drops every tracked name coordinator-wide.
func (p *Proxy) Clear() error {
	_, err := p.roundTrip(rpc.Request{Op: rpc.OpClear})
	return err
}

// Stop asks the coordinator to shut down within deadline. A TIMEOUT
// response is surfaced as a *errorkinds.ResultTimeoutError.
func (p *Proxy) Stop(deadline time.Duration) error {
	resp, err := p.roundTrip(rpc.Request{Op: rpc.OpStop, Deadline: int64(deadline)})
	if err != nil {
		return err
	}
	if resp.Kind == rpc.KindTimeout {
		return &errorkinds.ResultTimeoutError{Timeout: deadline}
	}
	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()
	return nil
}

// isMutation reports whether op changes coordinator-side state, and so
// must be queued locally (rather than dropped) while the coordinator is
// known to be unavailable.
func isMutation(op rpc.Op) bool {
	switch op {
	case rpc.OpSet, rpc.OpDelete, rpc.OpCall, rpc.OpClear:
		return true
	default:
		return false
	}
}

// isTransientStreamErr reports whether err reflects the gRPC session itself
// going away (canceled, timed out, or the coordinator unreachable) as
// opposed to the coordinator rejecting the request outright. These are the
// codes under which a mutation is safe to queue for Replay rather than
// fail: the request never reached (or was never answered by) a live
// Coordinator, so nothing observed it twice.
func isTransientStreamErr(err error) bool {
	switch status.Code(err) {
	case codes.Canceled, codes.DeadlineExceeded, codes.Unavailable:
		return true
	default:
		return false
	}
}

// queueOrFail is the shared fate of a request that hit a known- or newly-
// discovered transient coordinator outage: mutations are queued for Replay,
// reads fail immediately since there is no stale value worth returning.
func (p *Proxy) queueOrFail(req rpc.Request, cause error) (rpc.Response, error) {
	p.stopped = true
	if isMutation(req.Op) {
		p.queue = append(p.queue, req)
		return rpc.Response{Kind: rpc.KindAck}, nil
	}
	return rpc.Response{}, &errorkinds.CoordinatorError{Name: p.name, Cause: cause, Transient: true}
}

func (p *Proxy) roundTrip(req rpc.Request) (rpc.Response, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return p.queueOrFail(req, errorkinds.ErrCoordinatorUnavailable)
	}

	if err := p.stream.SendMsg(&req); err != nil {
		if isTransientStreamErr(err) {
			return p.queueOrFail(req, err)
		}
		return rpc.Response{}, &errorkinds.CoordinatorError{Name: p.name, Cause: err}
	}
	var resp rpc.Response
	if err := p.stream.RecvMsg(&resp); err != nil {
		if isTransientStreamErr(err) {
			return p.queueOrFail(req, err)
		}
		return rpc.Response{}, &errorkinds.CoordinatorError{Name: p.name, Cause: err}
	}
	if resp.Kind == rpc.KindError {
		return resp, &errorkinds.CoordinatorError{Name: p.name, Cause: errors.New(resp.Err)}
	}
	return resp, nil
}

// Replay resends every request queued while the coordinator was
// unavailable, in issuing order, against a freshly reopened session. It
// is the caller's responsibility to call Replay after reconnecting (e.g.
// after the coordinator's start() completes).
func (p *Proxy) Replay(ctx context.Context) error {
	p.mu.Lock()
	pending := p.queue
	p.queue = nil
	p.stopped = false
	p.mu.Unlock()

	for _, req := range pending {
		if _, err := p.roundTrip(req); err != nil {
			return err
		}
	}
	return nil
}
