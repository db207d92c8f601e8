package kernelproc_test

import (
	"errors"
	"testing"
	"time"

	"github.com/ceetaro/suitkaise/errorkinds"
	"github.com/ceetaro/suitkaise/kernelproc"
	"github.com/ceetaro/suitkaise/procpipe"
	"github.com/ceetaro/suitkaise/unit"
	"github.com/stretchr/testify/require"
)

// harness wires up the three queues with the parent holding the anchors,
// exactly as handle.Handle will, but without spawning a real process —
// Run executes in a goroutine standing in for the worker process.
type harness struct {
	tellAnchor   *procpipe.Anchor
	listenAnchor *procpipe.Anchor
	resultAnchor *procpipe.Anchor
	done         chan struct{}
}

func newHarness(t *testing.T, u *unit.Unit, cfg *unit.ProcessConfig) *harness {
	t.Helper()
	tellAnchor, tellPoint, err := procpipe.Pair(procpipe.ModeAnchorToPoint)
	require.NoError(t, err)
	listenAnchor, listenPoint, err := procpipe.Pair(procpipe.ModePointToAnchor)
	require.NoError(t, err)
	resultAnchor, resultPoint, err := procpipe.Pair(procpipe.ModePointToAnchor)
	require.NoError(t, err)

	h := &harness{tellAnchor: tellAnchor, listenAnchor: listenAnchor, resultAnchor: resultAnchor, done: make(chan struct{})}
	go func() {
		defer close(h.done)
		kernelproc.Run(u, cfg, kernelproc.Channels{Tell: tellPoint, Listen: listenPoint, Result: resultPoint})
	}()
	return h
}

func (h *harness) awaitEnvelope(t *testing.T) kernelproc.Envelope {
	t.Helper()
	v, err := h.resultAnchor.Recv()
	require.NoError(t, err)
	env, ok := v.(kernelproc.Envelope)
	require.True(t, ok, "expected Envelope, got %T", v)
	select {
	case <-h.done:
	case <-time.After(time.Second):
		t.Fatal("worker goroutine did not exit after sending result")
	}
	return env
}

func simpleUnit(run unit.Func) *unit.Unit {
	cfg := unit.NewProcessConfig()
	u, err := unit.New(run, cfg)
	if err != nil {
		panic(err)
	}
	return u
}

func TestRunSuccessfulSingleIteration(t *testing.T) {
	ranCount := 0
	u := simpleUnit(func(ctx *unit.Context) error {
		ranCount++
		ctx.State = "done"
		return nil
	})
	require.NoError(t, u.Config.SetRuns(1))

	h := newHarness(t, u, u.Config)
	env := h.awaitEnvelope(t)

	require.Equal(t, kernelproc.KindResult, env.Kind)
	require.Equal(t, 1, ranCount)
}

func TestRunRetriesOnCrashWithLivesRemaining(t *testing.T) {
	attempts := 0
	u := simpleUnit(func(ctx *unit.Context) error {
		attempts++
		if attempts == 1 {
			return errors.New("transient failure")
		}
		return nil
	})
	require.NoError(t, u.Config.SetRuns(1))
	require.NoError(t, u.Config.SetLives(2))

	h := newHarness(t, u, u.Config)
	env := h.awaitEnvelope(t)

	require.Equal(t, kernelproc.KindResult, env.Kind)
	require.Equal(t, 2, attempts)
}

func TestRunExhaustsLivesAndReachesErrorPath(t *testing.T) {
	u := simpleUnit(func(ctx *unit.Context) error {
		return errors.New("permanent failure")
	})
	require.NoError(t, u.Config.SetRuns(1))
	require.NoError(t, u.Config.SetLives(1))

	h := newHarness(t, u, u.Config)
	env := h.awaitEnvelope(t)

	require.Equal(t, kernelproc.KindError, env.Kind)
}

func TestRunTimeoutOnPreRun(t *testing.T) {
	cfg := unit.NewProcessConfig()
	require.NoError(t, cfg.SetTimeout(errorkinds.SectionPreRun, 10*time.Millisecond))
	require.NoError(t, cfg.SetLives(1))
	require.NoError(t, cfg.SetRuns(1))

	u, err := unit.New(func(ctx *unit.Context) error { return nil }, cfg)
	require.NoError(t, err)
	u.PreRun = func(ctx *unit.Context) error {
		time.Sleep(200 * time.Millisecond)
		return nil
	}

	h := newHarness(t, u, cfg)
	env := h.awaitEnvelope(t)

	require.Equal(t, kernelproc.KindError, env.Kind)
}

func TestTellAndListenRouteAcrossQueues(t *testing.T) {
	heard := make(chan any, 1)
	u := simpleUnit(func(ctx *unit.Context) error {
		require.NoError(t, ctx.Tell("from-worker"))
		v, ok := ctx.Listen(time.Second)
		if ok {
			heard <- v
		}
		return nil
	})
	require.NoError(t, u.Config.SetRuns(1))

	h := newHarness(t, u, u.Config)

	v, err := h.listenAnchor.Recv()
	require.NoError(t, err)
	require.Equal(t, "from-worker", v)

	require.NoError(t, h.tellAnchor.Send(kernelproc.QueueMessage{Kind: kernelproc.MsgTell, Value: "from-parent"}))

	select {
	case got := <-heard:
		require.Equal(t, "from-parent", got)
	case <-time.After(time.Second):
		t.Fatal("worker never observed the told value")
	}

	h.awaitEnvelope(t)
}
