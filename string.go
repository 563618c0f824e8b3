package gojabridge

import (
	"strings"
	"sync/atomic"

	"github.com/dop251/goja"
)

// NewString creates a string from UTF-8 encoded bytes. Invalid sequences
// are replaced with U+FFFD.
func (i *Instance) NewString(b []byte) Value {
	s := strings.ToValidUTF8(string(b), "�")
	return withScope(i, func(rt *goja.Runtime) Value {
		return i.reference(KindString, rt.ToValue(s))
	})
}

// UTF8View is a UTF-8 encoding of a string referent, see [Instance.UTF8].
type UTF8View struct {
	inst     *Instance
	data     []byte
	released atomic.Bool
}

// UTF8 encodes the string referent of h (which remains owned by the
// caller) as UTF-8. Lone surrogates are replaced with U+FFFD. Other
// referents are described, e.g. "[object Object]", or "TypeError: msg" for
// errors, without ever throwing. Use [Instance.CoerceString] for full
// string conversion.
//
// The view must be released, see [UTF8View.Release].
func (i *Instance) UTF8(h Handle) *UTF8View {
	data := withScope(i, func(*goja.Runtime) []byte {
		v := i.deref(h)
		if _, ok := v.(*goja.Object); ok {
			return []byte(i.describe(v))
		}
		return []byte(strings.ToValidUTF8(v.String(), "�"))
	})
	i.utf8Views.Add(1)
	return &UTF8View{inst: i, data: data}
}

// Bytes returns the encoded string. The slice must not be retained after
// the view is released.
func (v *UTF8View) Bytes() []byte { return v.data }

// Len returns the length of the encoding, in bytes.
func (v *UTF8View) Len() int { return len(v.data) }

// String returns a copy of the encoded string.
func (v *UTF8View) String() string { return string(v.data) }

// Release releases the view. Subsequent calls are no-ops.
func (v *UTF8View) Release() {
	if v.released.CompareAndSwap(false, true) {
		v.data = nil
		v.inst.utf8Views.Add(-1)
	}
}
