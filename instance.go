package gojabridge

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/console"
	"github.com/dop251/goja_nodejs/require"
	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/logiface"
)

// Instance is one isolated script execution environment.
//
// An instance must only be entered (used) by one goroutine at a time.
// Nested use, e.g. from within a native callback, is permitted. The
// exceptions are [Instance.Terminate] and [Instance.Stats], which may be
// called from any goroutine.
type Instance struct {
	rt        *goja.Runtime
	logger    *logiface.Logger[logiface.Event]
	limiter   *catrate.Limiter
	slots     map[uint32]any
	helpers   helpers
	callbacks callbackTable
	handles   handleTable
	id        uint64

	// owner is the goroutine with an active scope, or zero
	owner atomic.Uint64
	// depth is the scope nesting depth, only accessed by the owner
	depth int
	// fired is set once an interrupt surfaced, only accessed by the owner
	fired bool

	closed         atomic.Bool
	externalMemory atomic.Int64
	utf8Views      atomic.Int64
	slotsMu        sync.Mutex
}

// helpers are intrinsics captured from the prelude.
type helpers struct {
	dateCtor  goja.Value
	errorCtor goja.Value
	get       goja.Callable
	set       goja.Callable
	has       goja.Callable
	del       goja.Callable
	ownKeys   goja.Callable
	allKeys   goja.Callable
	toNumber  goja.Callable
	toString  goja.Callable
}

// Origin attributes evaluated source for diagnostics. LineOffset and
// ColumnOffset shift the reported position of the first character of the
// source: an offset of zero reports it as line 1, column 1.
type Origin struct {
	Name         string
	LineOffset   int
	ColumnOffset int
}

// New creates an instance: a new runtime, with its own global object.
func New(opts ...Option) (*Instance, error) {
	if err := initPlatform(); err != nil {
		return nil, fmt.Errorf("gojabridge: platform: %w", err)
	}

	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, fmt.Errorf("gojabridge: %w", err)
	}

	i := &Instance{
		rt:        goja.New(),
		logger:    cfg.logger,
		limiter:   cfg.logLimiter,
		slots:     make(map[uint32]any),
		callbacks: newCallbackTable(),
		handles:   newHandleTable(),
		id:        platform.nextInstance.Add(1),
	}
	if cfg.fieldNameMapper != nil {
		i.rt.SetFieldNameMapper(cfg.fieldNameMapper)
	}
	if cfg.maxCallStackSize > 0 {
		i.rt.SetMaxCallStackSize(cfg.maxCallStackSize)
	}

	if err := i.loadPrelude(); err != nil {
		return nil, fmt.Errorf("gojabridge: prelude: %w", err)
	}

	if cfg.console || cfg.registry != nil {
		registry := cfg.registry
		if registry == nil {
			registry = require.NewRegistry()
		}
		if cfg.console {
			registry.RegisterNativeModule(console.ModuleName, console.RequireWithPrinter(&consolePrinter{
				logger:   i.logger,
				instance: i.id,
			}))
		}
		registry.Enable(i.rt)
		if cfg.console {
			console.Enable(i.rt)
		}
	}

	i.logger.Debug().
		Uint64(`instance`, i.id).
		Bool(`console`, cfg.console).
		Log(`instance created`)

	return i, nil
}

func (i *Instance) loadPrelude() error {
	v, err := i.rt.RunProgram(platform.prelude)
	if err != nil {
		return err
	}
	obj := v.ToObject(i.rt)
	fn := func(name string) goja.Callable {
		if err != nil {
			return nil
		}
		f, ok := goja.AssertFunction(obj.Get(name))
		if !ok {
			err = fmt.Errorf("missing helper %q", name)
		}
		return f
	}
	i.helpers = helpers{
		dateCtor:  obj.Get(`dateCtor`),
		errorCtor: obj.Get(`errorCtor`),
		get:       fn(`get`),
		set:       fn(`set`),
		has:       fn(`has`),
		del:       fn(`del`),
		ownKeys:   fn(`ownKeys`),
		allKeys:   fn(`allKeys`),
		toNumber:  fn(`toNumber`),
		toString:  fn(`toString`),
	}
	return err
}

// ID returns the process-unique id of the instance.
func (i *Instance) ID() uint64 { return i.id }

// Runtime returns the underlying runtime. It must only be used within a
// scope, see [Instance.Scope].
func (i *Instance) Runtime() *goja.Runtime { return i.rt }

// Scope runs fn with the instance entered. Every use of engine values must
// happen within a scope. Scopes nest.
func (i *Instance) Scope(fn func(rt *goja.Runtime)) {
	i.enter()
	defer i.exit()
	fn(i.rt)
}

// withScope is [Instance.Scope] with a result.
func withScope[T any](i *Instance, fn func(rt *goja.Runtime) T) T {
	i.enter()
	defer i.exit()
	return fn(i.rt)
}

func (i *Instance) enter() {
	if i.closed.Load() {
		protocolViolation(ErrClosed, "instance %d", i.id)
	}
	gid := getGoroutineID()
	if !i.owner.CompareAndSwap(0, gid) && i.owner.Load() != gid {
		protocolViolation(ErrConcurrentEntry, "instance %d", i.id)
	}
	i.depth++
}

func (i *Instance) exit() {
	i.depth--
	if i.depth != 0 {
		return
	}
	if i.fired {
		// the termination request has been delivered
		i.fired = false
		i.rt.ClearInterrupt()
	}
	i.owner.Store(0)
}

// Eval compiles and runs source as a script. Compilation and runtime
// failures are returned as exception outcomes. The origin may be nil.
func (i *Instance) Eval(source string, origin *Origin) Outcome {
	return i.TryCatch(func(rt *goja.Runtime, tc *TryCatch) Outcome {
		name, src := origin.apply(source)
		v, err := rt.RunScript(name, src)
		if tc.Catch(err) {
			return i.captureErr(tc)
		}
		return i.captureOk(v)
	})
}

// apply pads source so that positions reported by the engine account for
// the offsets.
func (o *Origin) apply(source string) (string, string) {
	if o == nil {
		return ``, source
	}
	if o.LineOffset <= 0 && o.ColumnOffset <= 0 {
		return o.Name, source
	}
	var b strings.Builder
	b.Grow(max(o.LineOffset, 0) + max(o.ColumnOffset, 0) + len(source))
	for range o.LineOffset {
		b.WriteByte('\n')
	}
	for range o.ColumnOffset {
		b.WriteByte(' ')
	}
	b.WriteString(source)
	return o.Name, b.String()
}

// Terminate requests that execution on this instance halt, at the next
// point the engine checks for interrupts. If nothing is running, the next
// execution is interrupted instead. The interrupted operation returns an
// exception outcome: an Error with [TimeoutMessage] as its message.
//
// Terminate may be called from any goroutine.
func (i *Instance) Terminate() {
	if i.closed.Load() {
		return
	}
	i.rt.Interrupt(errTerminated)
	i.logger.Debug().
		Uint64(`instance`, i.id).
		Log(`termination requested`)
}

// Global returns a handle to the global object.
func (i *Instance) Global() Handle {
	return withScope(i, func(rt *goja.Runtime) Handle {
		return i.newHandle(rt.GlobalObject())
	})
}

// SetSlot stores host data against the instance. The bridge does not
// interpret or own data.
func (i *Instance) SetSlot(index uint32, data any) {
	i.slotsMu.Lock()
	defer i.slotsMu.Unlock()
	if data == nil {
		delete(i.slots, index)
		return
	}
	i.slots[index] = data
}

// Slot returns the data stored by [Instance.SetSlot], or nil.
func (i *Instance) Slot(index uint32) any {
	i.slotsMu.Lock()
	defer i.slotsMu.Unlock()
	return i.slots[index]
}

// Close destroys the instance. Every native callback that has not yet been
// finalized is finalized, then all remaining handles are released.
//
// Execution must have halted before Close is called. Calling Close again
// returns [ErrClosed].
func (i *Instance) Close() error {
	if !i.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}

	swept := i.sweep()
	leaked := i.handles.reset()

	i.slotsMu.Lock()
	clear(i.slots)
	i.slotsMu.Unlock()

	i.logger.Debug().
		Uint64(`instance`, i.id).
		Int(`callbacks_swept`, swept).
		Int(`handles_released`, leaked).
		Log(`instance closed`)

	return nil
}
