package unit

import "time"

// Context is passed to every lifecycle function. It exposes the user state
// container, the current iteration counter, and the in-worker messaging
// hooks: Tell sends parent-ward, Listen receives values the parent told.
// Listen's timeout is the maximum time to block; 0 or negative blocks
// indefinitely. ok is false once the channel has been drained and closed.
type Context struct {
	State      any
	CurrentRun int
	Tell       func(value any) error
	Listen     func(timeout time.Duration) (value any, ok bool)
}

// Func is the signature of prerun, run, and postrun.
type Func func(ctx *Context) error

// ResultFunc produces the Work Unit's final result value from accumulated
// state once the success path reaches RESULT.
type ResultFunc func(ctx *Context) (any, error)

// ErrorFunc produces the Work Unit's final error object from accumulated
// state once the failure path reaches ERROR. cause is the ProcessError (or
// TimeoutError) that triggered the failure path.
type ErrorFunc func(ctx *Context, cause error) (any, error)

// Unit is a user-defined job: an opaque state value plus an optional
// subset of lifecycle methods (run is mandatory).
type Unit struct {
	State any

	PreRun   Func
	Run      Func
	PostRun  Func
	OnFinish Func
	OnResult ResultFunc
	OnError  ErrorFunc

	Config *ProcessConfig
}

// Constructor builds a fresh Unit for one input item; used by the pool
// dispatcher when it is handed a Work Unit template instead of a plain
// callable.
type Constructor func(input any) (*Unit, error)

// New constructs a Unit: run must be set, and the process config
// (defaulted if nil) must itself be valid.
func New(run Func, cfg *ProcessConfig) (*Unit, error) {
	if run == nil {
		return nil, errInvalidConfig("run is mandatory")
	}
	if cfg == nil {
		cfg = NewProcessConfig()
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Unit{Run: run, Config: cfg}, nil
}

// noop lifecycle defaults, used by the engine whenever a Unit omits an
// optional section.
func (u *Unit) preRun() Func {
	if u.PreRun != nil {
		return u.PreRun
	}
	return func(*Context) error { return nil }
}

func (u *Unit) postRun() Func {
	if u.PostRun != nil {
		return u.PostRun
	}
	return func(*Context) error { return nil }
}

func (u *Unit) onFinish() Func {
	if u.OnFinish != nil {
		return u.OnFinish
	}
	return func(*Context) error { return nil }
}

func (u *Unit) onResult() ResultFunc {
	if u.OnResult != nil {
		return u.OnResult
	}
	return func(ctx *Context) (any, error) { return ctx.State, nil }
}

func (u *Unit) onError() ErrorFunc {
	if u.OnError != nil {
		return u.OnError
	}
	return func(_ *Context, cause error) (any, error) { return cause, nil }
}

// PreRun, PostRun, OnFinish, OnResult, OnError are exported accessors that
// always return a callable, hiding the optionality from kernelproc. The
// Func sections default to a no-op; OnResult defaults to returning the
// state and OnError to returning the cause as the error object.
func (u *Unit) PreRunOrNoop() Func           { return u.preRun() }
func (u *Unit) PostRunOrNoop() Func          { return u.postRun() }
func (u *Unit) OnFinishOrNoop() Func         { return u.onFinish() }
func (u *Unit) OnResultOrDefault() ResultFunc { return u.onResult() }
func (u *Unit) OnErrorOrDefault() ErrorFunc   { return u.onError() }
