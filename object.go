package gojabridge

import (
	"github.com/dop251/goja"
)

// NewObject creates an empty plain object.
func (i *Instance) NewObject() Value {
	return withScope(i, func(rt *goja.Runtime) Value {
		return i.reference(KindObject, rt.NewObject())
	})
}

// NewArray creates an empty array.
func (i *Instance) NewArray() Value {
	return withScope(i, func(rt *goja.Runtime) Value {
		return i.reference(KindArray, rt.NewArray())
	})
}

// ObjectGet reads property key of the referent of obj, which remains owned
// by the caller. The key is consumed. Getters may run script, and throw.
func (i *Instance) ObjectGet(obj Handle, key Value) Outcome {
	return i.TryCatch(func(rt *goja.Runtime, tc *TryCatch) Outcome {
		k := i.decode(key)
		v, err := i.helpers.get(goja.Undefined(), i.derefObject(obj), k)
		if tc.Catch(err) {
			return i.captureErr(tc)
		}
		return i.captureOk(v)
	})
}

// ObjectSet assigns property key of the referent of obj. The key and value
// are consumed. The result is undefined, unless an exception was thrown.
// Assignments rejected by the object (e.g. read-only properties) are
// silently ignored.
func (i *Instance) ObjectSet(obj Handle, key, value Value) Outcome {
	return i.TryCatch(func(rt *goja.Runtime, tc *TryCatch) Outcome {
		k, v := i.decode(key), i.decode(value)
		_, err := i.helpers.set(goja.Undefined(), i.derefObject(obj), k, v)
		if tc.Catch(err) {
			return i.captureErr(tc)
		}
		return Ok(Undefined())
	})
}

// ObjectHas reports, as a boolean value, whether the referent of obj has
// property key, own or inherited. The key is consumed.
func (i *Instance) ObjectHas(obj Handle, key Value) Outcome {
	return i.TryCatch(func(rt *goja.Runtime, tc *TryCatch) Outcome {
		k := i.decode(key)
		v, err := i.helpers.has(goja.Undefined(), i.derefObject(obj), k)
		if tc.Catch(err) {
			return i.captureErr(tc)
		}
		return Ok(Boolean(v.ToBoolean()))
	})
}

// ObjectDelete deletes property key of the referent of obj. The key is
// consumed.
func (i *Instance) ObjectDelete(obj Handle, key Value) Outcome {
	return i.TryCatch(func(rt *goja.Runtime, tc *TryCatch) Outcome {
		k := i.decode(key)
		_, err := i.helpers.del(goja.Undefined(), i.derefObject(obj), k)
		if tc.Catch(err) {
			return i.captureErr(tc)
		}
		return Ok(Undefined())
	})
}

// ObjectKeys returns an array of the enumerable string keys of the referent
// of obj. Only own keys are included, in property creation order, unless
// includeInherited is set, in which case keys are listed in for-in order.
func (i *Instance) ObjectKeys(obj Handle, includeInherited bool) Outcome {
	return i.TryCatch(func(rt *goja.Runtime, tc *TryCatch) Outcome {
		fn := i.helpers.ownKeys
		if includeInherited {
			fn = i.helpers.allKeys
		}
		v, err := fn(goja.Undefined(), i.derefObject(obj))
		if tc.Catch(err) {
			return i.captureErr(tc)
		}
		return i.captureOk(v)
	})
}

// ArrayGet reads element index of the referent of arr.
func (i *Instance) ArrayGet(arr Handle, index uint32) Outcome {
	return i.ObjectGet(arr, Number(float64(index)))
}

// ArraySet assigns element index of the referent of arr, consuming value.
func (i *Instance) ArraySet(arr Handle, index uint32, value Value) Outcome {
	return i.ObjectSet(arr, Number(float64(index)), value)
}

// ArrayLen returns the length of the referent of arr, or zero if it is not
// an array.
func (i *Instance) ArrayLen(arr Handle) uint32 {
	return withScope(i, func(*goja.Runtime) uint32 {
		obj, ok := i.deref(arr).(*goja.Object)
		if !ok || i.classOf(obj) != classArray {
			return 0
		}
		length := obj.Get(`length`)
		if length == nil {
			return 0
		}
		n := length.ToInteger()
		if n < 0 || n > int64(^uint32(0)) {
			return 0
		}
		return uint32(n)
	})
}
