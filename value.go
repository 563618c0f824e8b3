package gojabridge

import (
	"math"
	"strconv"
	"time"

	"github.com/dop251/goja"
)

// Kind is the tag of a [Value].
type Kind uint8

const (
	// KindUndefined is the zero Kind, so the zero Value is undefined.
	KindUndefined Kind = iota
	KindNull
	KindNumber
	KindBoolean
	KindDate
	KindArray
	KindFunction
	KindObject
	KindString
)

const (
	classArray  = "Array"
	classDate   = "Date"
	classError  = "Error"
	classObject = "Object"
)

var kindNames = [...]string{
	KindUndefined: "undefined",
	KindNull:      "null",
	KindNumber:    "number",
	KindBoolean:   "boolean",
	KindDate:      "date",
	KindArray:     "array",
	KindFunction:  "function",
	KindObject:    "object",
	KindString:    "string",
}

// String returns the lower case name of the kind.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

// IsReference reports whether values of this kind carry a [Handle].
func (k Kind) IsReference() bool {
	switch k {
	case KindArray, KindFunction, KindObject, KindString:
		return true
	default:
		return false
	}
}

// Value is the tagged value descriptor used to move values across the
// boundary between Go and the engine.
//
// Values of a reference kind (array, function, object, string) own exactly
// one [Handle]. A Value is a one-shot transfer: passing it to any
// [Instance] method that consumes values (object setters, calls, coercion)
// releases that handle, as does [Value.Release]. Copying a Value does not
// copy the handle, so only one copy may be consumed.
type Value struct {
	handle Handle
	number float64
	kind   Kind
}

// Undefined returns the undefined value.
func Undefined() Value { return Value{kind: KindUndefined} }

// Null returns the null value.
func Null() Value { return Value{kind: KindNull} }

// Number returns a number value.
func Number(f float64) Value { return Value{kind: KindNumber, number: f} }

// Boolean returns a boolean value.
func Boolean(b bool) Value {
	v := Value{kind: KindBoolean}
	if b {
		v.number = 1
	}
	return v
}

// Date returns a date value, ms being milliseconds since the Unix epoch
// (NaN for an invalid date).
func Date(ms float64) Value { return Value{kind: KindDate, number: ms} }

// Kind returns the tag of the value.
func (v Value) Kind() Kind { return v.kind }

// IsReference reports whether the value carries a handle.
func (v Value) IsReference() bool { return v.kind.IsReference() }

// Float returns the payload of a number or date value, and zero otherwise.
func (v Value) Float() float64 {
	switch v.kind {
	case KindNumber, KindDate:
		return v.number
	default:
		return 0
	}
}

// Bool returns the payload of a boolean value, and false otherwise.
func (v Value) Bool() bool { return v.kind == KindBoolean && v.number != 0 }

// Time converts a date value to a [time.Time]. The second return is false
// for non-date values and invalid dates.
func (v Value) Time() (time.Time, bool) {
	if v.kind != KindDate || math.IsNaN(v.number) || math.IsInf(v.number, 0) {
		return time.Time{}, false
	}
	return time.UnixMilli(int64(v.number)), true
}

// Handle returns the handle carried by a reference value. The handle
// remains owned by the value.
func (v Value) Handle() Handle {
	if !v.kind.IsReference() {
		return Handle{}
	}
	return v.handle
}

// Release releases the handle of a reference value, without decoding it.
// It is a no-op for other kinds.
func (v Value) Release() {
	if v.kind.IsReference() {
		v.handle.Drop()
	}
}

// String formats the value for diagnostics. It never enters the engine.
func (v Value) String() string {
	switch v.kind {
	case KindNumber:
		return strconv.FormatFloat(v.number, 'g', -1, 64)
	case KindBoolean:
		return strconv.FormatBool(v.Bool())
	case KindDate:
		if t, ok := v.Time(); ok {
			return t.UTC().Format(time.RFC3339Nano)
		}
		return "Invalid Date"
	case KindArray, KindFunction, KindObject, KindString:
		return v.kind.String() + "#" + strconv.FormatUint(v.handle.id, 10)
	default:
		return v.kind.String()
	}
}

// sameHandle reports whether both values are references sharing one handle
// entry.
func (v Value) sameHandle(o Value) bool {
	return v.kind.IsReference() && o.kind.IsReference() &&
		v.handle.inst == o.handle.inst && v.handle.id == o.handle.id
}

// cloneHandle returns a copy of v owning a clone of its handle.
func (v Value) cloneHandle() Value {
	v.handle = v.handle.Clone()
	return v
}

// encode classifies an engine value. It never fails: anything it cannot
// classify (symbols, bigints) is encoded as undefined. Must be called
// within a scope.
func (i *Instance) encode(v goja.Value) Value {
	if v == nil || goja.IsUndefined(v) {
		return Undefined()
	}
	if goja.IsNull(v) {
		return Null()
	}
	if obj, ok := v.(*goja.Object); ok {
		switch i.classOf(obj) {
		case classDate:
			return Date(dateMillis(obj))
		case classArray:
			return i.reference(KindArray, obj)
		}
		if _, ok := goja.AssertFunction(obj); ok {
			return i.reference(KindFunction, obj)
		}
		return i.reference(KindObject, obj)
	}
	if _, ok := v.(*goja.Symbol); ok {
		return Undefined()
	}
	switch x := v.Export().(type) {
	case bool:
		return Boolean(x)
	case int64:
		return Number(float64(x))
	case float64:
		return Number(x)
	case string:
		return i.reference(KindString, v)
	}
	return Undefined()
}

// classOf returns the class of obj, which is "Object" for a revoked proxy.
func (i *Instance) classOf(obj *goja.Object) (class string) {
	if ex := i.rt.Try(func() { class = obj.ClassName() }); ex != nil {
		return classObject
	}
	return class
}

// reference returns a value of the given kind, owning a new handle to v.
func (i *Instance) reference(kind Kind, v goja.Value) Value {
	return Value{kind: kind, handle: i.newHandle(v)}
}

// decode converts a value back into an engine value, releasing its handle
// (if any). Must be called within a scope.
func (i *Instance) decode(v Value) goja.Value {
	switch v.kind {
	case KindNull:
		return goja.Null()
	case KindNumber:
		return i.rt.ToValue(v.number)
	case KindBoolean:
		return i.rt.ToValue(v.Bool())
	case KindDate:
		return i.newDate(v.number)
	case KindArray, KindFunction, KindObject, KindString:
		return i.takeHandle(v.handle)
	default:
		return goja.Undefined()
	}
}

// decodeAll decodes every value, in order.
func (i *Instance) decodeAll(values []Value) []goja.Value {
	if len(values) == 0 {
		return nil
	}
	out := make([]goja.Value, len(values))
	for n, v := range values {
		out[n] = i.decode(v)
	}
	return out
}

func (i *Instance) newDate(ms float64) goja.Value {
	obj, err := i.rt.New(i.helpers.dateCtor, i.rt.ToValue(ms))
	if err != nil {
		return goja.Undefined()
	}
	return obj
}

// dateMillis returns the time value of a Date object.
func dateMillis(obj *goja.Object) float64 {
	if t, ok := obj.Export().(time.Time); ok {
		return float64(t.UnixMilli())
	}
	return math.NaN()
}
