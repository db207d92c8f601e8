// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

package proxy

import (
	"testing"

	"github.com/ceetaro/suitkaise/errorkinds"
	"github.com/ceetaro/suitkaise/share/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeForbidden struct{}

func (fakeForbidden) ForbiddenSharedValue() string { return "fake host IPC primitive" }

func TestClassifyRejectsForbiddenValues(t *testing.T) {
	_, err := Classify(fakeForbidden{})
	assert.ErrorIs(t, err, errorkinds.ErrForbiddenSharedValue)
}

func TestClassifyEncodesPlainValues(t *testing.T) {
	b, err := Classify(42)
	require.NoError(t, err)
	assert.NotEmpty(t, b)
}

func TestRegistryInstallAndUninstall(t *testing.T) {
	defer Uninstall()

	_, ok := Registered()
	assert.False(t, ok)

	Install("localhost:9999")
	target, ok := Registered()
	require.True(t, ok)
	assert.Equal(t, "localhost:9999", target)

	Uninstall()
	_, ok = Registered()
	assert.False(t, ok)
}

func TestRoundTripQueuesMutationsWhileStopped(t *testing.T) {
	p := &Proxy{name: "x", stopped: true}

	resp, err := p.roundTrip(rpc.Request{Op: rpc.OpSet, Name: "x", Value: []byte("v")})
	require.NoError(t, err)
	assert.Equal(t, rpc.KindAck, resp.Kind)
	assert.Len(t, p.queue, 1)
}

func TestRoundTripRejectsReadsWhileStopped(t *testing.T) {
	p := &Proxy{name: "x", stopped: true}

	_, err := p.roundTrip(rpc.Request{Op: rpc.OpGet, Name: "x"})
	var coordErr *errorkinds.CoordinatorError
	assert.ErrorAs(t, err, &coordErr)
	assert.Empty(t, p.queue)
}
