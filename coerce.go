package gojabridge

import (
	"math"

	"github.com/dop251/goja"
)

// CoerceBoolean converts v to a boolean, consuming it. It never throws.
func (i *Instance) CoerceBoolean(v Value) bool {
	switch v.kind {
	case KindUndefined, KindNull:
		return false
	case KindBoolean:
		return v.Bool()
	case KindNumber:
		return v.number != 0 && !math.IsNaN(v.number)
	case KindDate, KindArray, KindFunction, KindObject:
		v.Release()
		return true
	}
	return withScope(i, func(*goja.Runtime) bool {
		return i.decode(v).ToBoolean()
	})
}

// CoerceNumber converts v to a number, consuming it. Conversion of objects
// may run script (valueOf), and throw, as does conversion of a symbol.
func (i *Instance) CoerceNumber(v Value) Outcome {
	switch v.kind {
	case KindNumber:
		return Ok(v)
	case KindDate:
		return Ok(Number(v.number))
	}
	return i.TryCatch(func(rt *goja.Runtime, tc *TryCatch) Outcome {
		x, err := i.helpers.toNumber(goja.Undefined(), i.decode(v))
		if tc.Catch(err) {
			return i.captureErr(tc)
		}
		return Ok(Number(x.ToFloat()))
	})
}

// CoerceString converts v to a string value, consuming it. Conversion of
// objects may run script (toString), and throw, as does conversion of a
// symbol.
func (i *Instance) CoerceString(v Value) Outcome {
	if v.kind == KindString {
		return Ok(v)
	}
	return i.TryCatch(func(rt *goja.Runtime, tc *TryCatch) Outcome {
		x, err := i.helpers.toString(goja.Undefined(), i.decode(v))
		if tc.Catch(err) {
			return i.captureErr(tc)
		}
		return i.captureOk(x)
	})
}
