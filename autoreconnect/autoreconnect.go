// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

// Package autoreconnect turns serializer.Placeholder values embedded in a
// freshly decoded Work Unit's state back into live resources, inside the
// worker process that will actually use them.
package autoreconnect

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/ceetaro/suitkaise/serializer"
	"github.com/ceetaro/suitkaise/unit"
)

var (
	mu             sync.RWMutex
	reconstructors = make(map[string]serializer.Reconstructor)
)

// Register adds or replaces the Reconstructor used for placeholders of the
// given ReconnectType. Call from an init() in whatever package defines the
// Reconnectable resource.
func Register(reconnectType string, r serializer.Reconstructor) {
	mu.Lock()
	defer mu.Unlock()
	reconstructors[reconnectType] = r
}

func lookup(reconnectType string) (serializer.Reconstructor, bool) {
	mu.RLock()
	defer mu.RUnlock()
	r, ok := reconstructors[reconnectType]
	return r, ok
}

// Reconnect walks u.State, replacing every serializer.Placeholder it finds
// with the live resource its registered Reconstructor builds. It descends
// into structs, pointers, slices, arrays, and maps; a Placeholder nested
// inside an unexported field is left untouched, since reflect cannot set it
// back.
func Reconnect(u *unit.Unit) error {
	if u == nil || u.State == nil {
		return nil
	}
	v := reflect.ValueOf(u.State)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		// State is conventionally a pointer to a private state struct; a
		// non-pointer State can never hold a settable Placeholder field.
		return nil
	}
	return walk(v.Elem())
}

func walk(v reflect.Value) error {
	switch v.Kind() {
	case reflect.Interface:
		if v.IsNil() || !v.CanSet() {
			return nil
		}
		inner := v.Elem()
		if ph, ok := inner.Interface().(serializer.Placeholder); ok {
			live, err := resolve(ph)
			if err != nil {
				return err
			}
			v.Set(reflect.ValueOf(live))
			return nil
		}
		return walkValue(inner)

	case reflect.Ptr:
		if v.IsNil() {
			return nil
		}
		return walk(v.Elem())

	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			f := v.Field(i)
			if !f.CanSet() {
				continue
			}
			if ph, ok := asPlaceholder(f); ok {
				live, err := resolve(ph)
				if err != nil {
					return err
				}
				f.Set(reflect.ValueOf(live))
				continue
			}
			if err := walk(f); err != nil {
				return err
			}
		}
		return nil

	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			if err := walk(v.Index(i)); err != nil {
				return err
			}
		}
		return nil

	case reflect.Map:
		for _, k := range v.MapKeys() {
			mv := v.MapIndex(k)
			if ph, ok := mv.Interface().(serializer.Placeholder); ok {
				live, err := resolve(ph)
				if err != nil {
					return err
				}
				v.SetMapIndex(k, reflect.ValueOf(live))
			}
		}
		return nil

	default:
		return nil
	}
}

// walkValue handles an interface's dynamic value, which reflect hands back
// as a non-addressable copy; only the map/slice/struct-of-pointer cases
// below it can still be mutated in place.
func walkValue(v reflect.Value) error {
	switch v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice:
		return walk(v)
	default:
		return nil
	}
}

func asPlaceholder(v reflect.Value) (serializer.Placeholder, bool) {
	if !v.CanInterface() {
		return serializer.Placeholder{}, false
	}
	ph, ok := v.Interface().(serializer.Placeholder)
	return ph, ok
}

func resolve(ph serializer.Placeholder) (any, error) {
	r, ok := lookup(ph.Type)
	if !ok {
		return nil, fmt.Errorf("autoreconnect: no reconstructor registered for %q", ph.Type)
	}
	return r(ph.Attrs)
}
