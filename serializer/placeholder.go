package serializer

// Reconnectable is implemented by live-resource values (DB connections,
// sockets, file handles, thread handles) that can be faithfully
// reconstructed in a new process from a small set of identifying
// attributes, even though the live resource itself cannot cross a process
// boundary. Encode never calls this directly — callers that know they hold
// a live resource construct a Placeholder explicitly before handing the
// value to Encode (see proxy.Classify in share/proxy for the shared-state
// case).
type Reconnectable interface {
	// ReconnectType names the registered constructor to use on the other
	// side, e.g. "db.Conn" or "os.Pipe".
	ReconnectType() string
	// ReconnectAttrs are the identifying attributes needed to rebuild the
	// resource (e.g. a DSN, a host:port, a file descriptor path).
	ReconnectAttrs() map[string]any
}

// Placeholder is the serialized stand-in for a live resource that cannot
// be encoded faithfully. Decode reconstructs a Placeholder, not the live
// resource; package autoreconnect is responsible for turning it into a
// live resource inside a worker.
type Placeholder struct {
	Type  string
	Attrs map[string]any
}

// NewPlaceholder builds a Placeholder from a Reconnectable value.
func NewPlaceholder(v Reconnectable) Placeholder {
	return Placeholder{Type: v.ReconnectType(), Attrs: v.ReconnectAttrs()}
}

// Reconstructor builds a live resource from a Placeholder's attributes.
// Registered per type with autoreconnect.Register.
type Reconstructor func(attrs map[string]any) (any, error)
