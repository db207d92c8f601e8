// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

package coordinator_test

import (
	"context"
	"encoding/gob"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/ceetaro/suitkaise/errorkinds"
	"github.com/ceetaro/suitkaise/share/coordinator"
	"github.com/ceetaro/suitkaise/share/proxy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"
)

type counter struct{ N int }

func (c *counter) Increment(by int) (any, error) {
	c.N += by
	return c.N, nil
}

func init() {
	gob.Register(counter{})
}

// dialedCoordinator starts a Coordinator on an in-memory bufconn listener
// and returns a function that dials fresh Proxies against it.
func dialedCoordinator(t *testing.T) (c *coordinator.Coordinator, dial func(name string) *proxy.Proxy, stop func()) {
	t.Helper()
	lis := bufconn.Listen(1024 * 1024)
	c = coordinator.New()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = c.Serve(lis)
	}()

	dialer := func(ctx context.Context, _ string) (net.Conn, error) { return lis.Dial() }
	dial = func(name string) *proxy.Proxy {
		conn, err := grpc.DialContext(context.Background(), "bufnet",
			grpc.WithContextDialer(dialer),
			grpc.WithTransportCredentials(insecure.NewCredentials()),
			grpc.WithBlock(),
		)
		require.NoError(t, err)
		p, err := proxy.New(context.Background(), conn, name)
		require.NoError(t, err)
		t.Cleanup(func() { conn.Close() })
		return p
	}
	stop = func() {
		_ = c.Stop(time.Second)
		wg.Wait()
	}
	return c, dial, stop
}

func TestSetGetRoundTripsWholeObject(t *testing.T) {
	_, dial, stop := dialedCoordinator(t)
	defer stop()

	p := dial("cfg")
	require.NoError(t, p.Set("", "hello"))
	v, err := p.Get("")
	require.NoError(t, err)
	assert.Equal(t, "hello", v)
}

func TestSetGetMemberRoundTrips(t *testing.T) {
	_, dial, stop := dialedCoordinator(t)
	defer stop()

	p := dial("obj")
	require.NoError(t, p.Set("", counter{N: 1}))
	require.NoError(t, p.Set("N", 7))
	v, err := p.Get("N")
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestDeleteRemovesTrackedObject(t *testing.T) {
	_, dial, stop := dialedCoordinator(t)
	defer stop()

	p := dial("gone")
	require.NoError(t, p.Set("", 1))
	require.NoError(t, p.Delete())
	_, err := p.Get("")
	assert.Error(t, err)
}

func TestClearDropsEveryName(t *testing.T) {
	_, dial, stop := dialedCoordinator(t)
	defer stop()

	a := dial("a")
	require.NoError(t, a.Set("", 1))
	require.NoError(t, a.Clear())
	_, err := a.Get("")
	assert.Error(t, err)
}

// TestSharedCounterNoLostUpdates is scenario S5: four workers each call
// Increment 10 times against one tracked counter; the coordinator's
// single dispatch lock must linearize every call so the final total
// reflects all 40 increments with none lost.
func TestSharedCounterNoLostUpdates(t *testing.T) {
	_, dial, stop := dialedCoordinator(t)
	defer stop()

	setup := dial("counter")
	require.NoError(t, setup.Set("", counter{}))

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p := dial("counter")
			for i := 0; i < 10; i++ {
				_, err := p.Call("Increment", 1)
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	v, err := setup.Get("N")
	require.NoError(t, err)
	assert.Equal(t, 40, v)
}

func TestReconnectAllReturnsEveryTrackedName(t *testing.T) {
	_, dial, stop := dialedCoordinator(t)
	defer stop()

	a, b := dial("a"), dial("b")
	require.NoError(t, a.Set("", 1))
	require.NoError(t, b.Set("", 2))

	all, err := a.ReconnectAll()
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": 1, "b": 2}, all)
}

func TestStopRejectsSubsequentReads(t *testing.T) {
	_, dial, stop := dialedCoordinator(t)
	defer stop()

	p := dial("x")
	require.NoError(t, p.Set("", 1))
	require.NoError(t, p.Stop(time.Second))

	_, err := p.Get("")
	var coordErr *errorkinds.CoordinatorError
	assert.ErrorAs(t, err, &coordErr)
}
