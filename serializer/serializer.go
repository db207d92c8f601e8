// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

// Package serializer is the engine's boundary to value serialization. The
// engine never walks user objects itself; it only ever calls Encode/Decode
// and treats the result as opaque bytes.
package serializer

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/ceetaro/suitkaise/errorkinds"
)

// Encode renders value to its opaque wire representation. Any value
// registered with gob.Register round-trips its exported fields; unexported
// fields are not encoded, and a struct with no exported fields at all
// fails to encode. Types gob cannot handle
// (chan, func, unsafe.Pointer, live OS resources) fail with a
// SerializationError.
func Encode(value any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&value); err != nil {
		return nil, &errorkinds.SerializationError{OriginalType: fmt.Sprintf("%T", value), Path: "$"}
	}
	return buf.Bytes(), nil
}

// Decode reconstructs a value from bytes produced by Encode. The returned
// value's dynamic type matches whatever was encoded, via the any wrapper.
func Decode(data []byte) (any, error) {
	var value any
	dec := gob.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&value); err != nil {
		return nil, &errorkinds.DeserializationError{Offset: len(data), Cause: err}
	}
	return value, nil
}

// Register must be called (once, typically in an init func) for every
// concrete type that will flow through Encode/Decode as an any, mirroring
// gob's own registration requirement.
func Register(value any) {
	gob.Register(value)
}

func init() {
	Register(Placeholder{})
}
