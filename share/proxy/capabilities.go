// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

package proxy

import (
	"fmt"

	"github.com/ceetaro/suitkaise/errorkinds"
	"github.com/ceetaro/suitkaise/serializer"
)

// Capabilities is a tracked object type's declared _shared_meta: which
// members are non-mutating (readers). A member absent from Readers is a
// writer, the safe conservative choice. Every Proxy request still
// round-trips and executes in the coordinator; the coordinator uses
// Readers only to skip storing the receiver back after a CALL.
type Capabilities struct {
	Readers map[string]bool
}

// IsReader reports whether member is declared non-mutating.
func (c Capabilities) IsReader(member string) bool {
	if c.Readers == nil {
		return false
	}
	return c.Readers[member]
}

// CapabilityProvider is implemented by a tracked object type that wants to
// declare its own Capabilities instead of taking the all-writer default.
type CapabilityProvider interface {
	SharedMeta() Capabilities
}

// Forbidden is implemented by host-runtime IPC primitives (multiprocess
// queues, managers, semaphores, shared-memory handles) that must never be
// held as tracked shared state. Assigning one to a Share attribute raises
// errorkinds.ErrForbiddenSharedValue instead of creating a proxy.
type Forbidden interface {
	ForbiddenSharedValue() string
}

// Classify renders value to its wire representation for a SET request,
// rejecting Forbidden host IPC primitives and converting Reconnectable
// live resources to deferred-reconnect placeholders first, per the
// classification rules every tracked object is subject to.
func Classify(value any) ([]byte, error) {
	if f, ok := value.(Forbidden); ok {
		return nil, fmt.Errorf("%w: %s", errorkinds.ErrForbiddenSharedValue, f.ForbiddenSharedValue())
	}
	if r, ok := value.(serializer.Reconnectable); ok {
		value = serializer.NewPlaceholder(r)
	}
	return serializer.Encode(value)
}

// CapabilitiesOf inspects a freshly decoded tracked object and returns the
// Capabilities it declares, defaulting to all-writer.
func CapabilitiesOf(value any) Capabilities {
	if provider, ok := value.(CapabilityProvider); ok {
		return provider.SharedMeta()
	}
	return Capabilities{}
}
