package procpipe

import "github.com/ceetaro/suitkaise/errorkinds"

// Anchor is the endpoint pinned to the process that created the Pipe pair.
// It is always open and ready to use; it can never be transferred to a
// worker.
type Anchor struct {
	ID string
	ep *endpoint

	locked bool
}

// Send serializes and enqueues value on the anchor side.
func (a *Anchor) Send(value any) error {
	if a.locked {
		return errorkinds.ErrEndpointLocked
	}
	return a.ep.send(value)
}

// Recv blocks for the next value sent by the point side, or returns Empty
// once closed and drained.
func (a *Anchor) Recv() (any, error) {
	if a.locked {
		return nil, errorkinds.ErrEndpointLocked
	}
	return a.ep.recv()
}

// Close closes the anchor's underlying files. Idempotent.
func (a *Anchor) Close() error { return a.ep.close() }

// Transfer always fails: the anchor can never leave its creating process.
func (a *Anchor) Transfer() error { return errorkinds.ErrEndpointPinned }

// Lock marks the anchor locked, preventing further Send/Recv. Since Unlock
// always fails, the lock is permanent. Calling Lock on an already-locked
// anchor is a no-op.
func (a *Anchor) Lock() { a.locked = true }

// Unlock always raises: the anchor's pin is permanent, so there is nothing
// a cooperative unlock could restore.
func (a *Anchor) Unlock() error { return errorkinds.ErrEndpointPinned }

// Locked reports the lock state set by Lock, which Send and Recv enforce.
func (a *Anchor) Locked() bool { return a.locked }
