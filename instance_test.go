package gojabridge

import (
	"fmt"
	"testing"
	"time"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestNew_ConcurrentInit(t *testing.T) {
	var g errgroup.Group
	ids := make([]uint64, 16)
	for n := range ids {
		g.Go(func() error {
			inst, err := New()
			if err != nil {
				return err
			}
			defer inst.Close()
			ids[n] = inst.ID()
			out := inst.Eval(fmt.Sprintf(`%d * 2`, n), nil)
			if err := out.Err(); err != nil {
				return err
			}
			if got := out.Value.Float(); got != float64(n*2) {
				return fmt.Errorf("instance %d: got %v", n, got)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	seen := make(map[uint64]struct{})
	for _, id := range ids {
		assert.NotZero(t, id)
		seen[id] = struct{}{}
	}
	assert.Len(t, seen, len(ids))
}

func TestInstance_Close(t *testing.T) {
	var buf syncBuffer
	inst, err := New(WithLogger(newTestLogger(&buf)))
	require.NoError(t, err)

	require.NoError(t, inst.Close())
	require.ErrorIs(t, inst.Close(), ErrClosed)
	assert.Contains(t, buf.String(), `instance created`)
	assert.Contains(t, buf.String(), `instance closed`)

	requirePanicsIs(t, ErrClosed, func() { inst.Eval(`1`, nil) })
	requirePanicsIs(t, ErrClosed, func() { inst.Global() })

	// no-op
	inst.Terminate()
	_ = inst.Stats()
}

func TestInstance_Eval(t *testing.T) {
	inst := newTestInstance(t)

	v := mustEval(t, inst, `var a = 40; a + 2`)
	assert.Equal(t, KindNumber, v.Kind())
	assert.Equal(t, 42.0, v.Float())

	// globals persist
	assert.Equal(t, 40.0, mustEval(t, inst, `a`).Float())

	out := inst.Eval(`(`, &Origin{Name: `broken.js`})
	require.True(t, out.IsException)
	assert.Contains(t, out.Err().Error(), `SyntaxError`)
}

func TestInstance_EvalOrigin(t *testing.T) {
	inst := newTestInstance(t)

	out := inst.Eval(`new Error('x').stack`, &Origin{Name: `origin.js`, LineOffset: 4, ColumnOffset: 2})
	assert.Contains(t, stringOf(t, inst, mustOk(t, out)), `origin.js:5:`)

	out = inst.Eval(`new Error('x').stack`, &Origin{Name: `plain.js`})
	assert.Contains(t, stringOf(t, inst, mustOk(t, out)), `plain.js:1:`)

	name, src := (*Origin)(nil).apply(`x`)
	assert.Empty(t, name)
	assert.Equal(t, `x`, src)

	_, src = (&Origin{LineOffset: -1, ColumnOffset: 2}).apply(`x`)
	assert.Equal(t, `  x`, src)
}

func TestInstance_Terminate(t *testing.T) {
	inst := newTestInstance(t)

	timer := time.AfterFunc(50*time.Millisecond, inst.Terminate)
	defer timer.Stop()

	out := inst.Eval(`try { while (true) {} } catch (e) { 'caught' }`, nil)
	require.True(t, out.IsException)
	assert.True(t, out.Terminated())
	assert.Equal(t, KindObject, out.Value.Kind())

	err := out.Err()
	assert.True(t, IsTerminated(err))
	assert.Contains(t, err.Error(), TimeoutMessage)

	// the instance remains usable
	assert.Equal(t, 3.0, mustEval(t, inst, `1 + 2`).Float())
}

func TestInstance_TerminateIdle(t *testing.T) {
	inst := newTestInstance(t)

	inst.Terminate()

	out := inst.Eval(`1`, nil)
	require.True(t, out.Terminated())
	out.Value.Release()

	assert.Equal(t, 1.0, mustEval(t, inst, `1`).Float())
}

func TestInstance_Global(t *testing.T) {
	inst := newTestInstance(t)

	setGlobal(t, inst, `answer`, Number(42))
	assert.Equal(t, 42.0, mustEval(t, inst, `answer`).Float())

	g := inst.Global()
	defer g.Drop()
	assert.Equal(t, `object`, stringOf(t, inst, mustEval(t, inst, `typeof globalThis`)))
	assert.Equal(t, KindFunction, mustOk(t, inst.ObjectGet(g, key(inst, `parseInt`))).Kind())
}

func TestInstance_Slots(t *testing.T) {
	inst := newTestInstance(t)

	assert.Nil(t, inst.Slot(0))
	inst.SetSlot(0, `zero`)
	inst.SetSlot(7, 7)
	assert.Equal(t, `zero`, inst.Slot(0))
	assert.Equal(t, 7, inst.Slot(7))

	inst.SetSlot(0, nil)
	assert.Nil(t, inst.Slot(0))
	assert.Equal(t, 7, inst.Slot(7))
}

func TestInstance_NestedScope(t *testing.T) {
	inst := newTestInstance(t)

	inst.Scope(func(rt *goja.Runtime) {
		inst.Scope(func(inner *goja.Runtime) {
			assert.Same(t, rt, inner)
		})
		assert.Equal(t, 2.0, mustEval(t, inst, `1 + 1`).Float())
	})
	assert.Zero(t, inst.owner.Load())
	assert.Zero(t, inst.depth)
}

func TestInstance_ConcurrentEntry(t *testing.T) {
	inst := newTestInstance(t)

	inst.Scope(func(*goja.Runtime) {
		var r any
		done := make(chan struct{})
		go func() {
			defer close(done)
			defer func() { r = recover() }()
			inst.Scope(func(*goja.Runtime) {})
		}()
		<-done
		err, _ := r.(error)
		require.ErrorIs(t, err, ErrConcurrentEntry)
	})

	// usable from another goroutine once released
	done := make(chan float64)
	go func() {
		out := inst.Eval(`5`, nil)
		done <- out.Value.Float()
	}()
	assert.Equal(t, 5.0, <-done)
}

func TestInstance_Runtime(t *testing.T) {
	inst := newTestInstance(t)
	inst.Scope(func(rt *goja.Runtime) {
		assert.Same(t, rt, inst.Runtime())
	})
}
