package kernelproc

import (
	"encoding/gob"

	"github.com/ceetaro/suitkaise/procpipe"
)

// Channels bundles the three Pipe points a worker process inherits on fds
// 4 to 6 (fd 3 carries the bootstrap descriptor): tell (parent→worker
// messages), listen (worker→parent messages), and result (worker→parent,
// exactly one terminal envelope).
type Channels struct {
	Tell   *procpipe.Point
	Listen *procpipe.Point
	Result *procpipe.Point
}

// Envelope is the single message the engine sends on Result before exit.
type Envelope struct {
	Kind    string // "result" or "error"
	Payload []byte
	Timers  []byte
}

const (
	KindResult = "result"
	KindError  = "error"
)

// QueueMessage is the envelope carried over tell_queue; listen_queue
// carries the worker's told values bare, since it has no control messages
// to tell apart from them. A Kind of MsgStop never surfaces to user code; it is how Handle.Stop
// reaches into the worker, since tell_queue is the only parent-to-worker
// channel available once the process has forked off. Handle constructs
// these directly when calling Tell or Stop; the engine's drainTell
// goroutine is the only reader.
type QueueMessage struct {
	Kind  string
	Value any
}

const (
	MsgTell = "tell"
	MsgStop = "stop"
)

func init() {
	gob.Register(Envelope{})
	gob.Register(QueueMessage{})
}
