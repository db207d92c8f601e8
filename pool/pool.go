// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

// Package pool implements the Batch Pool Dispatcher: bounded fan-out of a
// work function or Work Unit constructor over a list of inputs, in four
// ordering/iteration modes.
package pool

import (
	"fmt"
	"reflect"
	"runtime"
	"time"

	"github.com/ceetaro/suitkaise/errorkinds"
	"github.com/ceetaro/suitkaise/kernelproc"
	"github.com/ceetaro/suitkaise/sectiontimeout"
	"github.com/ceetaro/suitkaise/unit"
	"golang.org/x/sync/errgroup"
)

// Pool fans work out over a bounded number of concurrent workers. The zero
// value is not usable; construct with New.
type Pool struct {
	workers int
	star    bool
	timeout time.Duration
}

// New returns a Pool bounded to workers concurrent dispatches. workers <= 0
// defaults to runtime.NumCPU().
func New(workers int) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Pool{workers: workers}
}

// Star returns a derived Pool whose dispatch unpacks each input element as
// positional arguments to the work function (or, for a Work Unit
// constructor, as a single []any argument — a constructor has no variadic
// arity to unpack into). Rejects non-sequence inputs with
// errorkinds.ErrStarArgument.
func (p *Pool) Star() *Pool {
	q := *p
	q.star = true
	return &q
}

// Timeout returns a derived Pool that bounds every individual item's
// dispatch to d; exceeding items report errorkinds.ResultTimeoutError.
// This is the one pool-owned composition hook the spec calls out by name;
// background()/asynced() are left to an external modifier layer that wraps
// a Pool call, not implemented here.
func (p *Pool) Timeout(d time.Duration) *Pool {
	q := *p
	q.timeout = d
	return &q
}

type item struct {
	v   any
	err error
}

// Map runs work over inputs, blocking until every item completes, and
// returns results in input order. If any item raised, the first such
// failure in input order is returned (other items still run to
// completion; the pool never drops work silently).
func (p *Pool) Map(work any, inputs []any) ([]any, error) {
	results := make([]any, len(inputs))
	errs := make([]error, len(inputs))

	g := new(errgroup.Group)
	g.SetLimit(p.workers)
	for i, in := range inputs {
		i, in := i, in
		g.Go(func() error {
			v, err := p.dispatch(work, in)
			results[i] = v
			errs[i] = err
			return nil
		})
	}
	g.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}

// UnorderedMap runs work over inputs and returns results in completion
// order, blocking until every item completes. If an item raised, its error
// is returned as soon as it arrives, without waiting for the remaining
// items (they still run to completion in the background).
func (p *Pool) UnorderedMap(work any, inputs []any) ([]any, error) {
	ch := make(chan item, len(inputs))
	g := new(errgroup.Group)
	g.SetLimit(p.workers)
	for _, in := range inputs {
		in := in
		g.Go(func() error {
			v, err := p.dispatch(work, in)
			ch <- item{v, err}
			return nil
		})
	}
	go func() {
		g.Wait()
		close(ch)
	}()

	results := make([]any, 0, len(inputs))
	for it := range ch {
		if it.err != nil {
			return nil, it.err
		}
		results = append(results, it.v)
	}
	return results, nil
}

// Iterator streams pool results incrementally. Next reports ok=false once
// every item has been delivered.
type Iterator struct {
	next func() (value any, err error, ok bool)
}

// Next returns the next available result, or ok=false once exhausted.
func (it *Iterator) Next() (value any, err error, ok bool) { return it.next() }

// IMap is the streaming, input-ordered counterpart to Map: results become
// available incrementally but are only yielded in input order, so pulling
// index k may block on an earlier, still in-flight item.
func (p *Pool) IMap(work any, inputs []any) *Iterator {
	n := len(inputs)
	slots := make([]chan item, n)
	for i := range slots {
		slots[i] = make(chan item, 1)
	}

	go func() {
		g := new(errgroup.Group)
		g.SetLimit(p.workers)
		for i, in := range inputs {
			i, in := i, in
			g.Go(func() error {
				v, err := p.dispatch(work, in)
				slots[i] <- item{v, err}
				return nil
			})
		}
		g.Wait()
	}()

	idx := 0
	return &Iterator{next: func() (any, error, bool) {
		if idx >= n {
			return nil, nil, false
		}
		it := <-slots[idx]
		idx++
		return it.v, it.err, true
	}}
}

// UnorderedIMap is the streaming, completion-ordered counterpart to
// UnorderedMap: each item is yielded as soon as it finishes.
func (p *Pool) UnorderedIMap(work any, inputs []any) *Iterator {
	ch := make(chan item, len(inputs))
	go func() {
		g := new(errgroup.Group)
		g.SetLimit(p.workers)
		for _, in := range inputs {
			in := in
			g.Go(func() error {
				v, err := p.dispatch(work, in)
				ch <- item{v, err}
				return nil
			})
		}
		g.Wait()
		close(ch)
	}()

	return &Iterator{next: func() (any, error, bool) {
		it, ok := <-ch
		if !ok {
			return nil, nil, false
		}
		return it.v, it.err, true
	}}
}

// dispatch invokes work on input, bounding it to p.timeout if set.
func (p *Pool) dispatch(work any, input any) (any, error) {
	if p.timeout <= 0 {
		return p.invoke(work, input)
	}
	var v any
	timedOut, err := sectiontimeout.Run(p.timeout, func() error {
		var innerErr error
		v, innerErr = p.invoke(work, input)
		return innerErr
	})
	if timedOut {
		return nil, &errorkinds.ResultTimeoutError{Timeout: p.timeout}
	}
	return v, err
}

// invoke dispatches to either a plain callable (reflect-invoked so star can
// unpack positional arguments of any arity) or a Work Unit constructor
// (run through the same in-process Lifecycle the worker engine uses, with
// no tell/listen peer since a pool item has no parent to talk to).
func (p *Pool) invoke(work any, input any) (any, error) {
	if ctor, ok := work.(unit.Constructor); ok {
		return p.invokeConstructor(ctor, input)
	}
	if ctor, ok := work.(func(any) (*unit.Unit, error)); ok {
		return p.invokeConstructor(unit.Constructor(ctor), input)
	}
	return p.invokeCallable(work, input)
}

func (p *Pool) invokeCallable(work any, input any) (any, error) {
	fv := reflect.ValueOf(work)
	if fv.Kind() != reflect.Func {
		return nil, fmt.Errorf("pool: work must be a callable or unit.Constructor, got %T", work)
	}

	var args []any
	if p.star {
		elems, err := unpackSequence(input)
		if err != nil {
			return nil, err
		}
		args = elems
	} else {
		args = []any{input}
	}

	in := make([]reflect.Value, len(args))
	for i, a := range args {
		in[i] = reflect.ValueOf(a)
	}
	out := fv.Call(in)
	if len(out) != 2 {
		return nil, fmt.Errorf("pool: work function must return (any, error), got %d results", len(out))
	}
	var err error
	if e, ok := out[1].Interface().(error); ok {
		err = e
	}
	return out[0].Interface(), err
}

func (p *Pool) invokeConstructor(ctor unit.Constructor, input any) (any, error) {
	ctorInput := input
	if p.star {
		elems, err := unpackSequence(input)
		if err != nil {
			return nil, err
		}
		ctorInput = elems
	}

	u, err := ctor(ctorInput)
	if err != nil {
		return nil, err
	}
	return runUnit(u)
}

// runUnit drives a pool-dispatched Work Unit through the same lifecycle
// state machine a forked worker process uses, minus the process boundary:
// Tell is a no-op and Listen never has anything to deliver, since nothing
// external is driving this item's tell_queue.
func runUnit(u *unit.Unit) (any, error) {
	lc := kernelproc.NewLifecycle(u, u.Config, kernelproc.Hooks{
		Tell:   func(any) error { return nil },
		Listen: func(time.Duration) (any, bool) { return nil, false },
	})
	value, isError := lc.Run()
	if isError {
		if e, ok := value.(error); ok {
			return nil, e
		}
		return nil, fmt.Errorf("%v", value)
	}
	return value, nil
}

func unpackSequence(input any) ([]any, error) {
	v := reflect.ValueOf(input)
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		out := make([]any, v.Len())
		for i := range out {
			out[i] = v.Index(i).Interface()
		}
		return out, nil
	default:
		return nil, errorkinds.ErrStarArgument
	}
}
