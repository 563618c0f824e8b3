package gojabridge

import (
	"errors"
	"io"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/dop251/goja"
)

// CallDispatcher invokes the host closure of a native callback. It is
// called on the goroutine executing the script, with the instance entered.
// The dispatcher owns this and args, and must release (or return) them.
type CallDispatcher func(inst *Instance, closure any, this Value, args []Value) Outcome

// DropDispatcher is called exactly once per native callback registration,
// after the engine can no longer invoke it. It may be called from any
// goroutine. A returned error is logged.
type DropDispatcher func(closure any) error

// Func is the closure type understood by the default [CallDispatcher].
// this and args are borrowed: they are released once Func returns, except
// for a value returned as-is in the outcome.
type Func func(inst *Instance, this Value, args []Value) Outcome

// Init installs the process-wide dispatchers used by every native callback
// of every instance. A nil argument selects the default. It may be called
// at any time, but is intended to be called once, at process start.
func Init(call CallDispatcher, drop DropDispatcher) {
	if call == nil {
		call = defaultCallDispatcher
	}
	if drop == nil {
		drop = defaultDropDispatcher
	}
	platform.call.Store(&call)
	platform.drop.Store(&drop)
}

var platform struct {
	call         atomic.Pointer[CallDispatcher]
	drop         atomic.Pointer[DropDispatcher]
	prelude      *goja.Program
	err          error
	nextInstance atomic.Uint64
	once         sync.Once
}

// errTerminated is the interrupt value passed to the runtime.
var errTerminated = errors.New(TimeoutMessage)

// preludeSource is evaluated in each new runtime, before any other script,
// capturing the intrinsics used by the bridge.
const preludeSource = `(function () {
	'use strict';
	var R = Reflect, S = String, T = TypeError;
	return {
		dateCtor: Date,
		errorCtor: Error,
		get: function (o, k) { return R.get(o, k); },
		set: function (o, k, v) { R.set(o, k, v); },
		has: function (o, k) { return R.has(o, k); },
		del: function (o, k) { R.deleteProperty(o, k); },
		ownKeys: Object.keys,
		allKeys: function (o) {
			var keys = [];
			for (var k in o) {
				keys.push(k);
			}
			return keys;
		},
		toNumber: function (v) { return +v; },
		toString: function (v) {
			if (typeof v === 'symbol') {
				throw new T('Cannot convert a Symbol value to a string');
			}
			return S(v);
		}
	};
})()`

// initPlatform performs one-time, process-wide initialisation. Concurrent
// first calls are serialised.
func initPlatform() error {
	platform.once.Do(func() {
		if platform.call.Load() == nil {
			Init(nil, nil)
		}
		platform.prelude, platform.err = goja.Compile(`gojabridge:prelude`, preludeSource, true)
	})
	return platform.err
}

func callDispatcher() CallDispatcher {
	if p := platform.call.Load(); p != nil {
		return *p
	}
	return defaultCallDispatcher
}

func dropDispatcher() DropDispatcher {
	if p := platform.drop.Load(); p != nil {
		return *p
	}
	return defaultDropDispatcher
}

func defaultCallDispatcher(inst *Instance, closure any, this Value, args []Value) (out Outcome) {
	defer func() {
		if out.Value.sameHandle(this) {
			out.Value = out.Value.cloneHandle()
		}
		this.Release()
		for _, arg := range args {
			if out.Value.sameHandle(arg) {
				out.Value = out.Value.cloneHandle()
			}
			arg.Release()
		}
	}()
	fn, ok := closure.(Func)
	if !ok {
		return inst.throwTypeError("unsupported native callback closure")
	}
	return fn(inst, this, args)
}

func defaultDropDispatcher(closure any) error {
	if c, ok := closure.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// getGoroutineID returns the current goroutine's ID.
func getGoroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] >= '0' && buf[i] <= '9' {
			id = id*10 + uint64(buf[i]-'0')
		} else {
			break
		}
	}
	return id
}
