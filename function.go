package gojabridge

import (
	"github.com/dop251/goja"
)

// Call calls the referent of fn, which remains owned by the caller, with
// the given receiver and arguments, all of which are consumed. Calling a
// non-function throws a TypeError.
func (i *Instance) Call(fn Handle, this Value, args ...Value) Outcome {
	return i.TryCatch(func(rt *goja.Runtime, tc *TryCatch) Outcome {
		recv, argv := i.decode(this), i.decodeAll(args)
		callable, ok := goja.AssertFunction(i.deref(fn))
		if !ok {
			return i.throwTypeError(`value is not a function`)
		}
		v, err := callable(recv, argv...)
		if tc.Catch(err) {
			return i.captureErr(tc)
		}
		return i.captureOk(v)
	})
}

// Construct calls the referent of fn as a constructor (new fn(...args)),
// consuming args. A successful result is always of kind object, whatever
// its class.
func (i *Instance) Construct(fn Handle, args ...Value) Outcome {
	return i.TryCatch(func(rt *goja.Runtime, tc *TryCatch) Outcome {
		argv := i.decodeAll(args)
		obj, err := rt.New(i.deref(fn), argv...)
		if tc.Catch(err) {
			return i.captureErr(tc)
		}
		return Ok(i.reference(KindObject, obj))
	})
}
