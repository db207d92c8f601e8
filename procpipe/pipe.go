package procpipe

import (
	"os"

	"github.com/ceetaro/suitkaise/idutil"
)

// Mode selects the direction configuration of a Pipe pair, fixed at
// creation time.
type Mode int

const (
	// ModeDuplex gives both endpoints full send/recv capability.
	ModeDuplex Mode = iota
	// ModeAnchorToPoint is one-way: the anchor is send-only, the point is
	// recv-only.
	ModeAnchorToPoint
	// ModePointToAnchor is one-way: the point is send-only, the anchor is
	// recv-only.
	ModePointToAnchor
)

// Pair creates an anchor/point pair in the given Mode. ModeDuplex is the
// default full-duplex pipe; the two one-way modes cover both directions a
// worker's queues need (result/listen flow worker→parent, tell flows
// parent→worker).
func Pair(mode Mode) (*Anchor, *Point, error) {
	id := idutil.New()

	switch mode {
	case ModeAnchorToPoint:
		r, w, err := os.Pipe()
		if err != nil {
			return nil, nil, err
		}
		anchor := &Anchor{ID: id, ep: newEndpoint(nil, w, SendOnly)}
		point := &Point{ID: id, ep: newEndpoint(r, nil, RecvOnly), files: []*os.File{r}, dir: RecvOnly}
		return anchor, point, nil

	case ModePointToAnchor:
		r, w, err := os.Pipe()
		if err != nil {
			return nil, nil, err
		}
		anchor := &Anchor{ID: id, ep: newEndpoint(r, nil, RecvOnly)}
		point := &Point{ID: id, ep: newEndpoint(nil, w, SendOnly), files: []*os.File{w}, dir: SendOnly}
		return anchor, point, nil

	default: // ModeDuplex
		apRead, apWrite, err := os.Pipe() // anchor -> point
		if err != nil {
			return nil, nil, err
		}
		paRead, paWrite, err := os.Pipe() // point -> anchor
		if err != nil {
			apRead.Close()
			apWrite.Close()
			return nil, nil, err
		}
		anchor := &Anchor{ID: id, ep: newEndpoint(paRead, apWrite, Duplex)}
		point := &Point{ID: id, ep: newEndpoint(apRead, paWrite, Duplex), files: []*os.File{apRead, paWrite}, dir: Duplex}
		return anchor, point, nil
	}
}

// PairDuplex is a convenience for Pair(ModeDuplex).
func PairDuplex() (*Anchor, *Point, error) { return Pair(ModeDuplex) }
