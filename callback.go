package gojabridge

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"unsafe"
	"weak"

	"github.com/dop251/goja"
)

// finalization reasons
const (
	reasonCollected = `collected`
	reasonClosed    = `closed`
)

// callbackRecord is the bridge-side state of one native callback.
type callbackRecord struct {
	closure any
	object  weak.Pointer[goja.Object]
	cleanup runtime.Cleanup
	// reason is the first finalization reason, guarded by mu
	reason    string
	id        uint64
	size      uintptr
	mu        sync.Mutex
	finalized atomic.Bool
}

const recordOverhead = int64(unsafe.Sizeof(callbackRecord{}))

// cost is the amount of external memory attributed to the record.
func (r *callbackRecord) cost() int64 {
	return recordOverhead + int64(r.size)
}

// callbackTable tracks the live native callbacks of an instance, keyed by
// function object identity.
type callbackTable struct {
	records    map[weak.Pointer[goja.Object]]*callbackRecord
	nextID     uint64
	registered uint64
	finalized  uint64
	mu         sync.Mutex
}

func newCallbackTable() callbackTable {
	return callbackTable{
		records: make(map[weak.Pointer[goja.Object]]*callbackRecord),
		nextID:  1,
	}
}

// add assigns rec an id, and stores it, rec.object must be set.
func (t *callbackTable) add(rec *callbackRecord) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec.id = t.nextID
	t.nextID++
	t.records[rec.object] = rec
	t.registered++
}

func (t *callbackTable) get(obj *goja.Object) *callbackRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.records[weak.Make(obj)]
}

func (t *callbackTable) remove(rec *callbackRecord) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.records[rec.object] == rec {
		delete(t.records, rec.object)
		t.finalized++
	}
}

// snapshot returns every live record.
func (t *callbackTable) snapshot() []*callbackRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	records := make([]*callbackRecord, 0, len(t.records))
	for _, rec := range t.records {
		records = append(records, rec)
	}
	return records
}

func (t *callbackTable) stats(s *Stats) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s.Callbacks = len(t.records)
	s.CallbacksRegistered = t.registered
	s.CallbacksFinalized = t.finalized
}

// RegisterFunction creates a script function which, when called, invokes
// the process-wide [CallDispatcher] with closure. The size of the closure
// (in bytes, if known) is added to the external memory accounted against
// the instance, see [Stats].
//
// Once the function is no longer reachable (or the instance is closed),
// the [DropDispatcher] is called with closure, exactly once.
func (i *Instance) RegisterFunction(closure any, size uintptr) Handle {
	return withScope(i, func(rt *goja.Runtime) Handle {
		rec := &callbackRecord{closure: closure, size: size}

		fn := rt.ToValue(i.trampoline(rec))
		obj, ok := fn.(*goja.Object)
		if !ok {
			obj = fn.ToObject(rt)
		}

		rec.object = weak.Make(obj)
		i.callbacks.add(rec)
		rec.cleanup = runtime.AddCleanup(obj, i.collected, rec)
		i.externalMemory.Add(rec.cost())

		i.logger.Trace().
			Uint64(`instance`, i.id).
			Uint64(`callback`, rec.id).
			Uint64(`size`, uint64(size)).
			Log(`native callback registered`)

		return i.newHandle(obj)
	})
}

// NewFunction is [Instance.RegisterFunction] for a [Func], which is only
// understood by the default [CallDispatcher].
func (i *Instance) NewFunction(fn Func) Handle {
	return i.RegisterFunction(fn, 0)
}

// IsNativeCallback reports whether h refers to a function created by this
// instance's [Instance.RegisterFunction], which has not been finalized.
func (i *Instance) IsNativeCallback(h Handle) bool {
	return withScope(i, func(*goja.Runtime) bool {
		obj, ok := i.deref(h).(*goja.Object)
		if !ok {
			return false
		}
		rec := i.callbacks.get(obj)
		return rec != nil && !rec.finalized.Load()
	})
}

// trampoline adapts rec to a native function.
func (i *Instance) trampoline(rec *callbackRecord) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		if rec.finalized.Load() {
			panic(i.rt.NewTypeError(`native callback %d has been finalized`, rec.id))
		}

		i.enter()
		defer i.exit()

		this := i.encode(call.This)
		args := make([]Value, len(call.Arguments))
		for n, arg := range call.Arguments {
			args[n] = i.encode(arg)
		}

		out := i.dispatch(rec, this, args)
		if out.terminated {
			// keep unwinding, even if script catches the timeout error
			i.rt.Interrupt(errTerminated)
		}

		v := i.decode(out.Value)
		if out.IsException {
			panic(v)
		}
		return v
	}
}

// dispatch calls the dispatcher, converting panics into exceptions. Bridge
// contract violations are propagated.
func (i *Instance) dispatch(rec *callbackRecord, this Value, args []Value) (out Outcome) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		switch x := r.(type) {
		case goja.Value:
			out = Throw(i.encode(x))
		case *goja.Exception, *goja.InterruptedError:
			tc := &TryCatch{inst: i}
			tc.Catch(x.(error))
			out = i.captureErr(tc)
		case error:
			if isProtocolViolation(x) {
				panic(r)
			}
			if i.allowLog(`panic`, rec.id) {
				i.logger.Err().
					Uint64(`instance`, i.id).
					Uint64(`callback`, rec.id).
					Err(x).
					Log(`native callback panicked`)
			}
			out = Throw(i.encode(i.rt.NewGoError(x)))
		default:
			if i.allowLog(`panic`, rec.id) {
				i.logger.Err().
					Uint64(`instance`, i.id).
					Uint64(`callback`, rec.id).
					Str(`panic`, fmt.Sprint(r)).
					Log(`native callback panicked`)
			}
			out = Throw(i.encode(i.newError(fmt.Sprint(r))))
		}
	}()
	return callDispatcher()(i, rec.closure, this, args)
}

func isProtocolViolation(err error) bool {
	return errors.Is(err, ErrClosed) ||
		errors.Is(err, ErrForeignHandle) ||
		errors.Is(err, ErrHandleReleased) ||
		errors.Is(err, ErrConcurrentEntry)
}

// collected is run by the garbage collector, on an arbitrary goroutine,
// once the function object of rec is unreachable.
func (i *Instance) collected(rec *callbackRecord) {
	i.finalize(rec, reasonCollected)
}

// finalize tombstones rec, calling the drop dispatcher. Only the first call
// per record has any effect, and later calls block until it has completed.
// It never touches the runtime.
func (i *Instance) finalize(rec *callbackRecord, reason string) bool {
	rec.mu.Lock()
	defer rec.mu.Unlock()

	if rec.finalized.Load() {
		if !isFinalizeRace(rec.reason, reason) && i.allowLog(`finalize`, rec.id) {
			i.logger.Warning().
				Uint64(`instance`, i.id).
				Uint64(`callback`, rec.id).
				Str(`reason`, reason).
				Str(`finalized_by`, rec.reason).
				Log(`native callback already finalized`)
		}
		return false
	}
	rec.finalized.Store(true)
	rec.reason = reason

	rec.cleanup.Stop()
	i.externalMemory.Add(-rec.cost())

	closure := rec.closure
	rec.closure = nil
	if err := dropClosure(closure); err != nil && i.allowLog(`drop`, rec.id) {
		i.logger.Err().
			Uint64(`instance`, i.id).
			Uint64(`callback`, rec.id).
			Err(err).
			Log(`drop dispatcher failed`)
	}

	// removed last, the close sweep must find records still being dropped
	i.callbacks.remove(rec)

	i.logger.Trace().
		Uint64(`instance`, i.id).
		Uint64(`callback`, rec.id).
		Str(`reason`, reason).
		Log(`native callback finalized`)

	return true
}

// isFinalizeRace reports whether a repeated finalization is the collector
// and the close sweep racing, which is expected.
func isFinalizeRace(first, second string) bool {
	return first != second &&
		(first == reasonCollected || first == reasonClosed) &&
		(second == reasonCollected || second == reasonClosed)
}

// dropClosure calls the drop dispatcher, converting a panic to an error.
func dropClosure(closure any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("drop dispatcher panicked: %v", r)
		}
	}()
	return dropDispatcher()(closure)
}

// logCategory is the rate limiting category of a log event.
type logCategory struct {
	event    string
	callback uint64
}

// allowLog reports whether a log event about a callback may be written.
func (i *Instance) allowLog(event string, callback uint64) bool {
	_, ok := i.limiter.Allow(logCategory{event: event, callback: callback})
	return ok
}

// sweep finalizes every live callback, returning the number finalized.
func (i *Instance) sweep() int {
	var n int
	for _, rec := range i.callbacks.snapshot() {
		if i.finalize(rec, reasonClosed) {
			n++
		}
	}
	return n
}
