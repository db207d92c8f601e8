package procpipe_test

import (
	"testing"

	"github.com/ceetaro/suitkaise/errorkinds"
	"github.com/ceetaro/suitkaise/procpipe"
	"github.com/stretchr/testify/require"
)

func TestPairDuplexSendRecv(t *testing.T) {
	anchor, point, err := procpipe.Pair(procpipe.ModeDuplex)
	require.NoError(t, err)
	defer anchor.Close()
	defer point.Close()

	require.NoError(t, anchor.Send("hello"))
	v, err := point.Recv()
	require.NoError(t, err)
	require.Equal(t, "hello", v)

	require.NoError(t, point.Send(42))
	v, err = anchor.Recv()
	require.NoError(t, err)
	require.Equal(t, 42, v)
}

func TestAnchorTransferAlwaysFails(t *testing.T) {
	anchor, point, err := procpipe.Pair(procpipe.ModeDuplex)
	require.NoError(t, err)
	defer anchor.Close()
	defer point.Close()

	require.ErrorIs(t, anchor.Transfer(), errorkinds.ErrEndpointPinned)
}

func TestPointTransferOnce(t *testing.T) {
	anchor, point, err := procpipe.Pair(procpipe.ModeDuplex)
	require.NoError(t, err)
	defer anchor.Close()

	files, err := point.Transfer()
	require.NoError(t, err)
	require.Len(t, files, 2)
	defer func() {
		for _, f := range files {
			f.Close()
		}
	}()

	_, err = point.Transfer()
	require.ErrorIs(t, err, errorkinds.ErrEndpointLocked)

	require.ErrorIs(t, point.Send("x"), errorkinds.ErrEndpointLocked)
}

func TestAnchorToPointDirectionEnforced(t *testing.T) {
	anchor, point, err := procpipe.Pair(procpipe.ModeAnchorToPoint)
	require.NoError(t, err)
	defer anchor.Close()
	defer point.Close()

	require.NoError(t, anchor.Send("ping"))
	_, err = anchor.Recv()
	require.ErrorIs(t, err, errorkinds.ErrEndpointDirection)

	v, err := point.Recv()
	require.NoError(t, err)
	require.Equal(t, "ping", v)

	require.ErrorIs(t, point.Send("pong"), errorkinds.ErrEndpointDirection)
}

func TestPointToAnchorDirectionEnforced(t *testing.T) {
	anchor, point, err := procpipe.Pair(procpipe.ModePointToAnchor)
	require.NoError(t, err)
	defer anchor.Close()
	defer point.Close()

	require.NoError(t, point.Send("ping"))
	_, err = point.Recv()
	require.ErrorIs(t, err, errorkinds.ErrEndpointDirection)

	v, err := anchor.Recv()
	require.NoError(t, err)
	require.Equal(t, "ping", v)

	require.ErrorIs(t, anchor.Send("pong"), errorkinds.ErrEndpointDirection)
}

func TestCloseIsIdempotentAndDrains(t *testing.T) {
	anchor, point, err := procpipe.Pair(procpipe.ModeDuplex)
	require.NoError(t, err)

	require.NoError(t, anchor.Send("last"))
	require.NoError(t, anchor.Close())
	require.NoError(t, anchor.Close())

	v, err := point.Recv()
	require.NoError(t, err)
	require.Equal(t, "last", v)

	v, err = point.Recv()
	require.NoError(t, err)
	require.Equal(t, procpipe.Empty, v)

	point.Close()
}

func TestAnchorUnlockRaises(t *testing.T) {
	anchor, point, err := procpipe.Pair(procpipe.ModeDuplex)
	require.NoError(t, err)
	defer anchor.Close()
	defer point.Close()

	anchor.Lock()
	require.ErrorIs(t, anchor.Unlock(), errorkinds.ErrEndpointPinned)
}
