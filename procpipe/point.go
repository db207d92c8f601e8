package procpipe

import (
	"os"
	"sync"

	"github.com/ceetaro/suitkaise/errorkinds"
)

// Point is the endpoint that may be transferred, exactly once, from its
// creating process to a worker process. Before transfer
// it behaves exactly like Anchor (usable directly, e.g. in tests that do
// not actually fork a worker); after transfer it is locked and local use
// raises errorkinds.ErrEndpointLocked.
type Point struct {
	ID string

	mu          sync.Mutex
	ep          *endpoint
	files       []*os.File // raw files to hand to exec.Cmd.ExtraFiles; nil after Transfer
	dir         Direction
	locked      bool
	transferred bool // set permanently by Transfer; distinguishes it from a plain Lock
}

// Send serializes and enqueues value on the point side.
func (p *Point) Send(value any) error {
	p.mu.Lock()
	ep, locked := p.ep, p.locked
	p.mu.Unlock()
	if locked {
		return errorkinds.ErrEndpointLocked
	}
	return ep.send(value)
}

// Recv blocks for the next value sent by the anchor side, or returns Empty
// once closed and drained.
func (p *Point) Recv() (any, error) {
	p.mu.Lock()
	ep, locked := p.ep, p.locked
	p.mu.Unlock()
	if locked {
		return nil, errorkinds.ErrEndpointLocked
	}
	return ep.recv()
}

// Close closes the point's underlying files. Idempotent; a no-op once
// transferred (the child process owns the descriptors at that point).
func (p *Point) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.transferred {
		return nil
	}
	return p.ep.close()
}

// Transfer hands back the raw files backing this point for use in
// exec.Cmd.ExtraFiles, and locks the point so it cannot be transferred or
// used locally again. A second call returns errorkinds.ErrEndpointLocked.
func (p *Point) Transfer() ([]*os.File, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.locked {
		return nil, errorkinds.ErrEndpointLocked
	}
	p.locked = true
	p.transferred = true
	files := p.files
	p.files = nil
	return files, nil
}

// Lock marks the point locked, preventing further local Send/Recv.
func (p *Point) Lock() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.locked = true
}

// Unlock reverses a local Lock call. Unlike Anchor.Unlock, this succeeds as
// long as the point has not been Transfer-locked permanently; callers
// cannot distinguish the two lock causes from outside this package, so
// Unlock after Transfer still returns ErrEndpointLocked, matching "point
// endpoint already transferred" being terminal.
func (p *Point) Unlock() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.transferred {
		return errorkinds.ErrEndpointLocked
	}
	p.locked = false
	return nil
}

// Locked reports the current lock state.
func (p *Point) Locked() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.locked
}

// AdoptPoint reconstructs a Point from an inherited file descriptor number
// inside a freshly exec'd worker process, given the direction the pair was
// created with. fd 3 is the first of exec.Cmd.ExtraFiles.
func AdoptPoint(fd int, dir Direction) *Point {
	f := os.NewFile(uintptr(fd), "procpipe-point")
	var read, write *os.File
	switch dir {
	case SendOnly:
		write = f
	case RecvOnly:
		read = f
	}
	return &Point{ep: newEndpoint(read, write, dir), dir: dir}
}

// AdoptDuplexPoint reconstructs a duplex Point from two inherited file
// descriptors (read then write).
func AdoptDuplexPoint(readFd, writeFd int) *Point {
	read := os.NewFile(uintptr(readFd), "procpipe-point-r")
	write := os.NewFile(uintptr(writeFd), "procpipe-point-w")
	return &Point{ep: newEndpoint(read, write, Duplex), dir: Duplex}
}
