// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

package handle_test

import (
	"os"
	"testing"
	"time"

	"github.com/ceetaro/suitkaise/autoreconnect"
	"github.com/ceetaro/suitkaise/errorkinds"
	"github.com/ceetaro/suitkaise/handle"
	"github.com/ceetaro/suitkaise/kernelproc"
	"github.com/ceetaro/suitkaise/procpipe"
	"github.com/ceetaro/suitkaise/registry"
	"github.com/ceetaro/suitkaise/registry/counter"
	"github.com/ceetaro/suitkaise/unit"
	"github.com/stretchr/testify/require"
)

// reexecEnvVar, when set in the spawned process's environment, tells
// TestMain to act as the worker binary instead of running the test suite.
// handle.Start never passes argv to the worker, so this is the only hook
// available to stand a real child process in for cmd/kernelworker without
// a separately built executable.
const reexecEnvVar = "SUITKAISE_HANDLE_TEST_WORKER"

func TestMain(m *testing.M) {
	if os.Getenv(reexecEnvVar) == "1" {
		runAsWorker()
		os.Exit(0)
	}
	os.Exit(m.Run())
}

// runAsWorker reproduces cmd/kernelworker/main.go's bootstrap so this same
// test binary, re-exec'd with the four extra file descriptors a Handle
// always opens, behaves exactly like the real worker process.
func runAsWorker() {
	const (
		fdDescriptor = 3
		fdTell       = 4
		fdListen     = 5
		fdResult     = 6
	)

	descPoint := procpipe.AdoptPoint(fdDescriptor, procpipe.RecvOnly)
	specAny, err := descPoint.Recv()
	if err != nil {
		os.Exit(1)
	}
	descPoint.Close()

	spec, ok := specAny.(handle.Spec)
	if !ok {
		os.Exit(1)
	}

	u, err := registry.Build(spec.Name, spec.Input)
	if err != nil {
		os.Exit(1)
	}
	priorPreRun := u.PreRunOrNoop()
	u.PreRun = func(ctx *unit.Context) error {
		if err := autoreconnect.Reconnect(u); err != nil {
			return err
		}
		return priorPreRun(ctx)
	}

	chans := kernelproc.Channels{
		Tell:   procpipe.AdoptPoint(fdTell, procpipe.RecvOnly),
		Listen: procpipe.AdoptPoint(fdListen, procpipe.SendOnly),
		Result: procpipe.AdoptPoint(fdResult, procpipe.SendOnly),
	}
	kernelproc.Run(u, u.Config, chans)
}

// withWorkerReexec points handle.WorkerBinaryPath at this test binary and
// arranges for the spawned copy to take the runAsWorker branch, restoring
// both on cleanup.
func withWorkerReexec(t *testing.T) {
	t.Helper()
	self, err := os.Executable()
	require.NoError(t, err)

	prevPath := handle.WorkerBinaryPath
	require.NoError(t, os.Setenv(reexecEnvVar, "1"))
	handle.WorkerBinaryPath = self

	t.Cleanup(func() {
		handle.WorkerBinaryPath = prevPath
		os.Unsetenv(reexecEnvVar)
	})
}

func TestHandleRunReturnsFinalCount(t *testing.T) {
	withWorkerReexec(t)

	h := handle.New(handle.Spec{Name: counter.Name, Input: counter.Input{Start: 0, Runs: 3}})
	result, err := h.Run()
	require.NoError(t, err)
	require.Equal(t, 3, result)
	require.Equal(t, handle.StateFinished, h.State())
}

func TestHandleListenObservesToldValues(t *testing.T) {
	withWorkerReexec(t)

	h := handle.New(handle.Spec{Name: counter.Name, Input: counter.Input{Start: 10, Runs: 2}})
	require.NoError(t, h.Start())

	var told []any
	for {
		v, ok := h.Listen(2 * time.Second)
		if !ok {
			break
		}
		told = append(told, v)
	}
	require.Equal(t, []any{11, 12}, told)

	ok, err := h.Wait(2 * time.Second)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestHandleStopDrainsCooperatively(t *testing.T) {
	withWorkerReexec(t)

	// Runs unbounded (0 == unbounded in counter.New) so the worker is
	// still alive for Stop to actually interrupt.
	h := handle.New(handle.Spec{Name: counter.Name, Input: counter.Input{Start: 0, Runs: 0}})
	require.NoError(t, h.Start())

	_, ok := h.Listen(time.Second)
	require.True(t, ok, "expected at least one told value before stopping")

	require.NoError(t, h.Stop())
	// Stop is idempotent and must not error or block when called again.
	require.NoError(t, h.Stop())

	ok, err := h.Wait(5 * time.Second)
	require.NoError(t, err)
	require.True(t, ok, "worker did not join after Stop")
	require.NotEqual(t, handle.StateKilled, h.State())
}

func TestHandleKillTerminatesAndResultIsEmpty(t *testing.T) {
	withWorkerReexec(t)

	h := handle.New(handle.Spec{Name: counter.Name, Input: counter.Input{Start: 0, Runs: 0}})
	require.NoError(t, h.Start())

	_, ok := h.Listen(time.Second)
	require.True(t, ok)

	require.NoError(t, h.Kill())
	require.Equal(t, handle.StateKilled, h.State())

	_, err := h.Result()
	require.ErrorIs(t, err, errorkinds.ErrNoResult)
}

func TestHandleWaitDrainsResultBeforeJoiningProcess(t *testing.T) {
	withWorkerReexec(t)

	// A single-iteration run whose result sits in result_queue: Wait must
	// drain it before joining, or a worker that blocks writing to an
	// unread queue would deadlock Wait forever.
	h := handle.New(handle.Spec{Name: counter.Name, Input: counter.Input{Start: 0, Runs: 1}})
	require.NoError(t, h.Start())

	ok, err := h.Wait(5 * time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	result, err := h.Result()
	require.NoError(t, err)
	require.Equal(t, 1, result)
}

func TestHandleStartForbiddenAfterStart(t *testing.T) {
	withWorkerReexec(t)

	h := handle.New(handle.Spec{Name: counter.Name, Input: counter.Input{Start: 0, Runs: 1}})
	require.NoError(t, h.Start())
	require.Error(t, h.Start())

	_, err := h.Wait(5 * time.Second)
	require.NoError(t, err)
}
