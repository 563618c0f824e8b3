package gojabridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObject_Properties(t *testing.T) {
	inst := newTestInstance(t)

	obj := inst.NewObject()
	require.Equal(t, KindObject, obj.Kind())
	defer obj.Release()
	h := obj.Handle()

	mustOk(t, inst.ObjectSet(h, key(inst, `a`), Number(1)))
	mustOk(t, inst.ObjectSet(h, Number(2), inst.NewString([]byte(`two`))))

	assert.Equal(t, 1.0, mustOk(t, inst.ObjectGet(h, key(inst, `a`))).Float())
	assert.Equal(t, `two`, stringOf(t, inst, mustOk(t, inst.ObjectGet(h, key(inst, `2`)))))
	assert.Equal(t, KindUndefined, mustOk(t, inst.ObjectGet(h, key(inst, `missing`))).Kind())

	has := mustOk(t, inst.ObjectHas(h, key(inst, `a`)))
	assert.Equal(t, KindBoolean, has.Kind())
	assert.True(t, has.Bool())
	// inherited
	assert.True(t, mustOk(t, inst.ObjectHas(h, key(inst, `toString`))).Bool())

	mustOk(t, inst.ObjectDelete(h, key(inst, `a`)))
	assert.False(t, mustOk(t, inst.ObjectHas(h, key(inst, `a`))).Bool())

	assert.Equal(t, 1, inst.Stats().LiveHandles)
}

func TestObject_GetterThrows(t *testing.T) {
	inst := newTestInstance(t)

	obj := mustEval(t, inst, `({ get x() { throw new Error('nope') }, set x(v) { throw v } })`)
	defer obj.Release()

	out := inst.ObjectGet(obj.Handle(), key(inst, `x`))
	require.True(t, out.IsException)
	assert.Contains(t, out.Err().Error(), `nope`)

	out = inst.ObjectSet(obj.Handle(), key(inst, `x`), Number(9))
	require.True(t, out.IsException)
	assert.Equal(t, 9.0, out.Value.Float())

	assert.Equal(t, 1, inst.Stats().LiveHandles)
}

func TestObject_SetRejected(t *testing.T) {
	inst := newTestInstance(t)

	obj := mustEval(t, inst, `Object.freeze({ a: 1 })`)
	defer obj.Release()

	out := inst.ObjectSet(obj.Handle(), key(inst, `a`), Number(2))
	require.False(t, out.IsException)
	assert.Equal(t, 1.0, mustOk(t, inst.ObjectGet(obj.Handle(), key(inst, `a`))).Float())
}

func TestObject_Keys(t *testing.T) {
	inst := newTestInstance(t)

	obj := mustEval(t, inst, `
var proto = { inherited: 1 };
Object.defineProperty(proto, 'hidden', { value: 1, enumerable: false });
var o = Object.create(proto);
o.own = 2;
o.z = 3;
o[Symbol('s')] = 4;
o`)
	defer obj.Release()

	assert.Equal(t, []string{`own`, `z`}, stringsOf(t, inst, mustOk(t, inst.ObjectKeys(obj.Handle(), false))))
	assert.Equal(t, []string{`own`, `z`, `inherited`}, stringsOf(t, inst, mustOk(t, inst.ObjectKeys(obj.Handle(), true))))

	arr := mustEval(t, inst, `['a', 'b']`)
	defer arr.Release()
	assert.Equal(t, []string{`0`, `1`}, stringsOf(t, inst, mustOk(t, inst.ObjectKeys(arr.Handle(), false))))

	assert.Equal(t, 2, inst.Stats().LiveHandles)
}

func TestObject_PrimitiveReceiver(t *testing.T) {
	inst := newTestInstance(t)

	str := mustEval(t, inst, `'abc'`)
	defer str.Release()
	assert.Equal(t, 3.0, mustOk(t, inst.ObjectGet(str.Handle(), key(inst, `length`))).Float())
	assert.Equal(t, `b`, stringOf(t, inst, mustOk(t, inst.ObjectGet(str.Handle(), Number(1)))))
}

func TestArray(t *testing.T) {
	inst := newTestInstance(t)

	arr := inst.NewArray()
	require.Equal(t, KindArray, arr.Kind())
	defer arr.Release()
	h := arr.Handle()

	assert.Zero(t, inst.ArrayLen(h))
	mustOk(t, inst.ArraySet(h, 0, inst.NewString([]byte(`x`))))
	mustOk(t, inst.ArraySet(h, 2, Number(3)))
	assert.Equal(t, uint32(3), inst.ArrayLen(h))

	assert.Equal(t, `x`, stringOf(t, inst, mustOk(t, inst.ArrayGet(h, 0))))
	assert.Equal(t, KindUndefined, mustOk(t, inst.ArrayGet(h, 1)).Kind())
	assert.Equal(t, 3.0, mustOk(t, inst.ArrayGet(h, 2)).Float())

	obj := inst.NewObject()
	defer obj.Release()
	assert.Zero(t, inst.ArrayLen(obj.Handle()))

	assert.Equal(t, 2, inst.Stats().LiveHandles)
}
