// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

// Package coordinator implements the Shared-State Coordinator (C6): the
// single authoritative process that owns every tracked object and serves
// GET/CALL/SET/DELETE/RECONNECT_ALL/CLEAR/STOP requests from Proxies, one
// request at a time, over the gob-over-gRPC session defined in package
// share/rpc.
package coordinator

import (
	"fmt"
	"io"
	"net"
	"reflect"
	"sync"
	"time"

	"github.com/ceetaro/suitkaise/clog"
	"github.com/ceetaro/suitkaise/errorkinds"
	"github.com/ceetaro/suitkaise/serializer"
	"github.com/ceetaro/suitkaise/share/proxy"
	"github.com/ceetaro/suitkaise/share/rpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

type trackedObject struct {
	value []byte
	caps  proxy.Capabilities
}

// Coordinator is the authoritative supervisor of shared state. Its zero
// value is not usable; construct one with New.
type Coordinator struct {
	*clog.CLogger

	// dispatchMu serializes every request coordinator-wide: the spec's
	// "at-most-one mutation at a time" and "no intra-request
	// interleaving" invariants both fall directly out of holding this
	// lock for the duration of one request's handling, so no separate
	// in-flight bookkeeping is needed for stop() to drain safely.
	dispatchMu sync.Mutex
	objects    map[string]*trackedObject
	stopped    bool

	server   *grpc.Server
	listener net.Listener
	hasError bool
}

// New constructs an empty Coordinator. Call Serve (or ListenAndServe) to
// start accepting Proxy sessions.
func New() *Coordinator {
	return &Coordinator{
		CLogger: clog.New("coordinator "),
		objects: make(map[string]*trackedObject),
	}
}

// HasError reports whether the coordinator's gRPC server exited
// unexpectedly, per the "coordinator crash marks itself with
// has_error=true" failure model.
func (c *Coordinator) HasError() bool {
	c.dispatchMu.Lock()
	defer c.dispatchMu.Unlock()
	return c.hasError
}

// ListenAndServe starts the coordinator on addr and blocks until Stop is
// called or the server fails. Run it in its own goroutine.
func (c *Coordinator) ListenAndServe(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return c.Serve(lis)
}

// Serve registers the Session RPC on lis and blocks until Stop is called
// or the server fails.
func (c *Coordinator) Serve(lis net.Listener) error {
	c.listener = lis
	c.server = grpc.NewServer()
	c.server.RegisterService(rpc.NewServiceDesc(c.handleSession), nil)
	err := c.server.Serve(lis)
	if err != nil && err != grpc.ErrServerStopped {
		c.dispatchMu.Lock()
		c.hasError = true
		c.dispatchMu.Unlock()
	}
	return err
}

// Addr returns the coordinator's bound network address. Valid only after
// Serve/ListenAndServe has started listening.
func (c *Coordinator) Addr() net.Addr {
	return c.listener.Addr()
}

// Stop gracefully shuts down the gRPC server, waiting up to deadline for
// in-flight sessions to end before forcing a stop.
func (c *Coordinator) Stop(deadline time.Duration) error {
	if c.server == nil {
		return nil
	}
	done := make(chan struct{})
	go func() {
		c.server.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-time.After(deadline):
		c.server.Stop()
		return &errorkinds.ResultTimeoutError{Timeout: deadline}
	}
}

// Clear drops every tracked name and resets internal state, matching the
// wire CLEAR op.
func (c *Coordinator) Clear() {
	c.dispatchMu.Lock()
	defer c.dispatchMu.Unlock()
	c.objects = make(map[string]*trackedObject)
}

func (c *Coordinator) handleSession(stream grpc.ServerStream) error {
	for {
		var req rpc.Request
		if err := stream.RecvMsg(&req); err != nil {
			if err == io.EOF {
				return nil
			}
			// A session torn down by context cancellation or deadline
			// surfaces as a plain context error from RecvMsg, not a
			// status error; classify it so the Proxy sees the same
			// codes.Canceled/codes.DeadlineExceeded it would get from a
			// server that returned status.Error directly.
			if ctxErr := stream.Context().Err(); ctxErr != nil {
				return status.FromContextError(ctxErr).Err()
			}
			return err
		}
		resp := c.dispatch(req)
		if err := stream.SendMsg(&resp); err != nil {
			return err
		}
	}
}

func (c *Coordinator) dispatch(req rpc.Request) rpc.Response {
	c.dispatchMu.Lock()
	defer c.dispatchMu.Unlock()

	if c.stopped && req.Op != rpc.OpStop && req.Op != rpc.OpClear {
		return errResponse(&errorkinds.CoordinatorError{Name: req.Name, Cause: errorkinds.ErrCoordinatorUnavailable})
	}

	switch req.Op {
	case rpc.OpGet:
		return c.handleGet(req)
	case rpc.OpCall:
		return c.handleCall(req)
	case rpc.OpSet:
		return c.handleSet(req)
	case rpc.OpDelete:
		return c.handleDelete(req)
	case rpc.OpReconnectAll:
		return c.handleReconnectAll()
	case rpc.OpClear:
		c.objects = make(map[string]*trackedObject)
		return rpc.Response{Kind: rpc.KindAck}
	case rpc.OpStop:
		// The dispatch lock already serializes every request
		// coordinator-wide, so by the time this handler runs no other
		// request can be in flight: there is nothing left to drain.
		c.stopped = true
		return rpc.Response{Kind: rpc.KindAck}
	default:
		return errResponse(fmt.Errorf("coordinator: unknown operation %q", req.Op))
	}
}

func (c *Coordinator) handleGet(req rpc.Request) rpc.Response {
	obj, ok := c.objects[req.Name]
	if !ok {
		return errResponse(fmt.Errorf("coordinator: no tracked object %q", req.Name))
	}
	if req.Member == "" {
		return rpc.Response{Kind: rpc.KindValue, Payload: cloneBytes(obj.value)}
	}
	decoded, err := serializer.Decode(obj.value)
	if err != nil {
		return errResponse(err)
	}
	field, ok := fieldByName(decoded, req.Member)
	if !ok {
		return errResponse(fmt.Errorf("coordinator: %s has no member %q", req.Name, req.Member))
	}
	payload, err := serializer.Encode(field)
	if err != nil {
		return errResponse(err)
	}
	return rpc.Response{Kind: rpc.KindValue, Payload: payload}
}

func (c *Coordinator) handleCall(req rpc.Request) rpc.Response {
	obj, ok := c.objects[req.Name]
	if !ok {
		return errResponse(fmt.Errorf("coordinator: no tracked object %q", req.Name))
	}
	decoded, err := serializer.Decode(obj.value)
	if err != nil {
		return errResponse(err)
	}
	var args []any
	if len(req.Args) > 0 {
		decodedArgs, err := serializer.Decode(req.Args)
		if err != nil {
			return errResponse(err)
		}
		args, _ = decodedArgs.([]any)
	}

	ptr := reflect.New(reflect.TypeOf(decoded))
	ptr.Elem().Set(reflect.ValueOf(decoded))
	method := ptr.MethodByName(req.Member)
	if !method.IsValid() {
		return errResponse(fmt.Errorf("coordinator: %s has no callable member %q", req.Name, req.Member))
	}
	in := make([]reflect.Value, len(args))
	for i, a := range args {
		in[i] = reflect.ValueOf(a)
	}
	out := method.Call(in)
	value, callErr := splitCallResult(out)
	if callErr != nil {
		return errResponse(callErr)
	}

	if !obj.caps.IsReader(req.Member) {
		encoded, err := serializer.Encode(ptr.Elem().Interface())
		if err != nil {
			return errResponse(err)
		}
		obj.value = encoded
	}

	payload, err := serializer.Encode(value)
	if err != nil {
		return errResponse(err)
	}
	return rpc.Response{Kind: rpc.KindValue, Payload: payload}
}

func (c *Coordinator) handleSet(req rpc.Request) rpc.Response {
	obj, ok := c.objects[req.Name]
	if !ok {
		obj = &trackedObject{}
		c.objects[req.Name] = obj
	}

	if req.Member == "" {
		if decoded, err := serializer.Decode(req.Value); err == nil {
			obj.caps = proxy.CapabilitiesOf(decoded)
		}
		obj.value = cloneBytes(req.Value)
		return rpc.Response{Kind: rpc.KindAck}
	}

	var decoded any
	if obj.value != nil {
		var err error
		decoded, err = serializer.Decode(obj.value)
		if err != nil {
			return errResponse(err)
		}
	}
	newField, err := serializer.Decode(req.Value)
	if err != nil {
		return errResponse(err)
	}
	if decoded == nil {
		return errResponse(fmt.Errorf("coordinator: %s is not yet tracked, cannot set member %q", req.Name, req.Member))
	}
	ptr := reflect.New(reflect.TypeOf(decoded))
	ptr.Elem().Set(reflect.ValueOf(decoded))
	field := ptr.Elem().FieldByName(req.Member)
	if !field.IsValid() || !field.CanSet() {
		return errResponse(fmt.Errorf("coordinator: %s has no settable member %q", req.Name, req.Member))
	}
	field.Set(reflect.ValueOf(newField))
	encoded, err := serializer.Encode(ptr.Elem().Interface())
	if err != nil {
		return errResponse(err)
	}
	obj.value = encoded
	return rpc.Response{Kind: rpc.KindAck}
}

func (c *Coordinator) handleDelete(req rpc.Request) rpc.Response {
	delete(c.objects, req.Name)
	return rpc.Response{Kind: rpc.KindAck}
}

func (c *Coordinator) handleReconnectAll() rpc.Response {
	m := make(map[string][]byte, len(c.objects))
	for name, obj := range c.objects {
		m[name] = cloneBytes(obj.value)
	}
	return rpc.Response{Kind: rpc.KindMap, Map: m}
}

func errResponse(err error) rpc.Response {
	return rpc.Response{Kind: rpc.KindError, Err: err.Error()}
}

func cloneBytes(b []byte) []byte {
	return append([]byte(nil), b...)
}

func fieldByName(value any, name string) (any, bool) {
	rv := reflect.ValueOf(value)
	for rv.Kind() == reflect.Ptr {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil, false
	}
	field := rv.FieldByName(name)
	if !field.IsValid() {
		return nil, false
	}
	return field.Interface(), true
}

// splitCallResult extracts a (value, error) pair from a reflect.Call
// result, matching the (any, error) convention every callable member of a
// tracked object is expected to follow.
func splitCallResult(out []reflect.Value) (any, error) {
	switch len(out) {
	case 0:
		return nil, nil
	case 1:
		if errVal, ok := out[0].Interface().(error); ok {
			return nil, errVal
		}
		return out[0].Interface(), nil
	case 2:
		var err error
		if e, ok := out[1].Interface().(error); ok {
			err = e
		}
		return out[0].Interface(), err
	default:
		return nil, fmt.Errorf("coordinator: callable members must return at most (value, error)")
	}
}
