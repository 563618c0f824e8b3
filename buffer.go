package gojabridge

import (
	"fmt"
	"math"

	"github.com/dop251/goja"
)

// maxDataNodeBuffers is the maximum length of the buffers property of a
// data node.
const maxDataNodeBuffers = 2

// DataNode is a columnar data node, exported from a script object of the
// shape {len, null_count, buffers: [ArrayBuffer...], null_bits: ArrayBuffer}.
//
// The byte slices alias the memory of the ArrayBuffers. They are only
// valid while the buffers are reachable, and not detached.
type DataNode struct {
	// Buffers has at most two entries.
	Buffers [][]byte
	// NullBits is nil if the null_bits property was null or undefined.
	NullBits  []byte
	Len       int
	NullCount int
}

// NewArrayBuffer creates an ArrayBuffer backed by mem, without copying.
// Writes by script are visible in mem, and vice versa.
func (i *Instance) NewArrayBuffer(mem []byte) Value {
	return withScope(i, func(rt *goja.Runtime) Value {
		return i.reference(KindObject, rt.ToValue(rt.NewArrayBuffer(mem)))
	})
}

// ExportDataNode reads a [DataNode] from v, which is consumed. An error
// wrapping [ErrDataNodeShape] is returned if v is not shaped like a data
// node, [ErrDetachedBuffer] if any of its buffers are detached, or a
// [*ScriptError] if reading a property threw.
func (i *Instance) ExportDataNode(v Value) (node DataNode, err error) {
	out := i.TryCatch(func(rt *goja.Runtime, tc *TryCatch) Outcome {
		obj, ok := i.decode(v).(*goja.Object)
		if !ok {
			err = fmt.Errorf("%w: not an object", ErrDataNodeShape)
			return Ok(Undefined())
		}
		get := func(key string) goja.Value {
			val, e := i.helpers.get(goja.Undefined(), obj, rt.ToValue(key))
			if e != nil {
				panic(e)
			}
			return val
		}

		node.Len, err = dataNodeCount(`len`, get(`len`))
		if err != nil {
			return Ok(Undefined())
		}
		node.NullCount, err = dataNodeCount(`null_count`, get(`null_count`))
		if err != nil {
			return Ok(Undefined())
		}

		buffers, ok := get(`buffers`).(*goja.Object)
		if !ok || i.classOf(buffers) != classArray {
			err = fmt.Errorf("%w: buffers is not an array", ErrDataNodeShape)
			return Ok(Undefined())
		}
		n := buffers.Get(`length`).ToInteger()
		if n > maxDataNodeBuffers {
			err = fmt.Errorf("%w: %d buffers, expected at most %d", ErrDataNodeShape, n, maxDataNodeBuffers)
			return Ok(Undefined())
		}
		node.Buffers = make([][]byte, n)
		for idx := range node.Buffers {
			node.Buffers[idx], err = arrayBufferBytes(fmt.Sprintf(`buffers[%d]`, idx), buffers.Get(fmt.Sprint(idx)))
			if err != nil {
				return Ok(Undefined())
			}
		}

		if bits := get(`null_bits`); bits != nil && !goja.IsUndefined(bits) && !goja.IsNull(bits) {
			node.NullBits, err = arrayBufferBytes(`null_bits`, bits)
		}
		return Ok(Undefined())
	})
	if out.IsException {
		return DataNode{}, out.Err()
	}
	if err != nil {
		return DataNode{}, err
	}
	return node, nil
}

func dataNodeCount(name string, v goja.Value) (int, error) {
	var f float64
	switch x := v.Export().(type) {
	case int64:
		f = float64(x)
	case float64:
		f = x
	default:
		return 0, fmt.Errorf("%w: %s is not a number", ErrDataNodeShape, name)
	}
	if f < 0 || f != math.Trunc(f) || f > math.MaxInt32 {
		return 0, fmt.Errorf("%w: %s is not a valid count: %v", ErrDataNodeShape, name, f)
	}
	return int(f), nil
}

func arrayBufferBytes(name string, v goja.Value) ([]byte, error) {
	obj, ok := v.(*goja.Object)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not an ArrayBuffer", ErrDataNodeShape, name)
	}
	buf, ok := obj.Export().(goja.ArrayBuffer)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not an ArrayBuffer", ErrDataNodeShape, name)
	}
	if buf.Detached() {
		return nil, fmt.Errorf("%w: %s", ErrDetachedBuffer, name)
	}
	return buf.Bytes(), nil
}
