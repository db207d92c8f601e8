// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

// Package registry manages predefined Work Unit constructors for lookup by
// a worker process, which cannot receive a Go closure across the re-exec
// boundary and so looks up behavior by name instead.
package registry

import (
	"fmt"
	"slices"
	"sync"

	"github.com/ceetaro/suitkaise/registry/counter"
	"github.com/ceetaro/suitkaise/registry/doubler"
	"github.com/ceetaro/suitkaise/unit"
)

// A Registry manages predefined Work Unit constructors for lookup by name.
type Registry struct {
	mu           sync.RWMutex
	constructors map[string]unit.Constructor
}

// global is the process-wide registry consulted by cmd/kernelworker; a
// worker binary only knows the names burned into it at link time.
var global = NewRegistry()

// NewRegistry returns a Registry preloaded with every predefined Work Unit.
func NewRegistry() *Registry {
	r := &Registry{constructors: make(map[string]unit.Constructor)}
	r.Register(doubler.Name, doubler.New)
	r.Register(counter.Name, counter.New)
	return r
}

// Register adds or replaces the constructor for name.
func (r *Registry) Register(name string, ctor unit.Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.constructors[name] = ctor
}

// ConstructorByName gets the constructor registered under name, if any.
func (r *Registry) ConstructorByName(name string) (unit.Constructor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ctor, ok := r.constructors[name]
	return ctor, ok
}

// Names gets a slice of all registered names ordered ascendingly.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.constructors))
	for k := range r.constructors {
		names = append(names, k)
	}
	slices.Sort(names)
	return names
}

// Register adds name to the global registry consulted by cmd/kernelworker.
func Register(name string, ctor unit.Constructor) { global.Register(name, ctor) }

// ConstructorByName looks name up in the global registry.
func ConstructorByName(name string) (unit.Constructor, bool) { return global.ConstructorByName(name) }

// Names lists every name in the global registry.
func Names() []string { return global.Names() }

// Build constructs a fresh Unit for name, or an error if name is unknown.
func Build(name string, input any) (*unit.Unit, error) {
	ctor, ok := ConstructorByName(name)
	if !ok {
		return nil, fmt.Errorf("registry: no work unit registered under %q", name)
	}
	return ctor(input)
}
