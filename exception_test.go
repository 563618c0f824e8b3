package gojabridge

import (
	"errors"
	"testing"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutcome_ThrownValuePassthrough(t *testing.T) {
	inst := newTestInstance(t)

	out := inst.Eval(`throw 42`, nil)
	require.True(t, out.IsException)
	assert.False(t, out.Terminated())
	assert.Equal(t, KindNumber, out.Value.Kind())
	assert.Equal(t, 42.0, out.Value.Float())

	out = inst.Eval(`throw 'boom'`, nil)
	require.True(t, out.IsException)
	assert.Equal(t, `boom`, stringOf(t, inst, out.Value))

	out = inst.Eval(`throw null`, nil)
	require.True(t, out.IsException)
	assert.Equal(t, KindNull, out.Value.Kind())

	assert.Zero(t, inst.Stats().LiveHandles)
}

func TestOutcome_Err(t *testing.T) {
	inst := newTestInstance(t)

	assert.NoError(t, Ok(Number(1)).Err())

	for _, tc := range []struct {
		source  string
		kind    Kind
		message string
	}{
		{`throw 42`, KindNumber, `42`},
		{`throw 'boom'`, KindString, `boom`},
		{`throw new Error('plain')`, KindObject, `plain`},
		{`throw new TypeError('bad')`, KindObject, `TypeError: bad`},
		{`null.x`, KindObject, `TypeError`},
		{`throw {}`, KindObject, `[object Object]`},
		{`throw undefined`, KindUndefined, `undefined`},
	} {
		t.Run(tc.source, func(t *testing.T) {
			err := inst.Eval(tc.source, nil).Err()
			var se *ScriptError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, tc.kind, se.Kind)
			assert.Contains(t, se.Message, tc.message)
			assert.False(t, se.Terminated)
			assert.False(t, IsTerminated(err))
		})
	}

	assert.Zero(t, inst.Stats().LiveHandles)
}

func TestOutcome_Constructors(t *testing.T) {
	out := Ok(Number(1))
	assert.False(t, out.IsException)
	out = Throw(Number(2))
	assert.True(t, out.IsException)
	assert.False(t, out.Terminated())
	assert.EqualError(t, out.Err(), `script exception: 2`)
	assert.EqualError(t, &ScriptError{}, `script exception`)
}

func TestInstance_TryCatch(t *testing.T) {
	inst := newTestInstance(t)

	out := inst.TryCatch(func(rt *goja.Runtime, tc *TryCatch) Outcome {
		assert.False(t, tc.HasCaught())
		_, err := rt.RunString(`throw 1`)
		require.True(t, tc.Catch(err))
		assert.True(t, tc.HasCaught())
		assert.False(t, tc.HasTerminated())
		assert.Equal(t, int64(1), tc.Exception().Export())
		return inst.captureErr(tc)
	})
	require.True(t, out.IsException)
	assert.Equal(t, 1.0, out.Value.Float())

	// engine values panicked through are thrown
	out = inst.TryCatch(func(rt *goja.Runtime, tc *TryCatch) Outcome {
		panic(rt.ToValue(7))
	})
	require.True(t, out.IsException)
	assert.Equal(t, 7.0, out.Value.Float())

	// host errors are materialised as errors
	out = inst.TryCatch(func(rt *goja.Runtime, tc *TryCatch) Outcome {
		tc.Catch(errors.New(`host failure`))
		return inst.captureErr(tc)
	})
	assert.Contains(t, out.Err().Error(), `host failure`)

	// anything else propagates
	assert.PanicsWithValue(t, `unrelated`, func() {
		inst.TryCatch(func(*goja.Runtime, *TryCatch) Outcome {
			panic(`unrelated`)
		})
	})
	assert.Zero(t, inst.depth)

	out = inst.TryCatch(func(rt *goja.Runtime, tc *TryCatch) Outcome {
		assert.False(t, tc.Catch(nil))
		return inst.captureOk(rt.ToValue(`fine`))
	})
	assert.Equal(t, `fine`, stringOf(t, inst, mustOk(t, out)))
}

func TestInstance_ExceptionLogging(t *testing.T) {
	var buf syncBuffer
	inst := newTestInstance(t, WithLogger(newTestLogger(&buf)))

	inst.Eval(`function fail() { throw new Error('logged') }; fail()`, &Origin{Name: `logged.js`}).Value.Release()
	assert.Contains(t, buf.String(), `script exception`)
	assert.Contains(t, buf.String(), `logged.js`)
}

func TestOutcome_UnconvertibleThrownValues(t *testing.T) {
	var buf syncBuffer
	inst := newTestInstance(t, WithLogger(newTestLogger(&buf)))

	out := inst.Eval(`var bare = Object.create(null); bare.x = 1; throw bare`, &Origin{Name: `bare.js`})
	require.True(t, out.IsException)
	require.Equal(t, KindObject, out.Value.Kind())
	assert.Equal(t, 1.0, mustOk(t, inst.ObjectGet(out.Value.Handle(), key(inst, `x`))).Float())
	setGlobal(t, inst, `caught`, out.Value)
	assert.True(t, mustEval(t, inst, `caught === bare`).Bool())
	assert.EqualError(t, inst.Eval(`throw bare`, nil).Err(), `script exception: [object Object]`)

	out = inst.Eval(`throw { toString() { throw 1 } }`, nil)
	require.True(t, out.IsException)
	assert.Equal(t, KindObject, out.Value.Kind())
	assert.EqualError(t, out.Err(), `script exception: [object Object]`)

	// thrown from within a callback
	fn := inst.NewFunction(func(inst *Instance, this Value, args []Value) Outcome {
		return inst.Eval(`throw Object.create(null)`, nil)
	})
	setGlobal(t, inst, `f`, fn.Value())
	assert.True(t, mustEval(t, inst, `try { f(); false } catch (e) { Object.getPrototypeOf(e) === null }`).Bool())

	assert.Contains(t, buf.String(), `script exception`)
	assert.Contains(t, buf.String(), `bare.js`)
	assert.Zero(t, inst.Stats().LiveHandles)
}

func TestOutcome_ErrThrowingErrorProperties(t *testing.T) {
	inst := newTestInstance(t)

	for _, source := range []string{
		`var e = new Error('m'); Object.defineProperty(e, 'message', { get() { throw new Error('getter') } }); throw e`,
		`var e = new Error('m'); Object.defineProperty(e, 'name', { get() { throw new TypeError('boom') } }); throw e`,
		`var e = new Error('m'); e.name = { toString() { throw 1 } }; throw e`,
		`var e = new Error(); e.message = Object.create(null); throw e`,
	} {
		t.Run(source, func(t *testing.T) {
			err := inst.Eval(source, nil).Err()
			var se *ScriptError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, `[object Error]`, se.Message)
		})
	}

	// the instance is still usable
	assert.Equal(t, 3.0, mustEval(t, inst, `1 + 2`).Float())
}
