package gojabridge

import (
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
	"github.com/stretchr/testify/require"
)

func newTestInstance(t *testing.T, opts ...Option) *Instance {
	t.Helper()
	inst, err := New(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = inst.Close() })
	return inst
}

func newTestLogger(w io.Writer) *logiface.Logger[logiface.Event] {
	return stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(w), stumpy.WithTimeField(``)),
		stumpy.L.WithLevel(logiface.LevelTrace),
	).Logger()
}

// syncBuffer is a goroutine-safe log sink.
type syncBuffer struct {
	b  []byte
	mu sync.Mutex
}

func (x *syncBuffer) Write(p []byte) (int, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.b = append(x.b, p...)
	return len(p), nil
}

func (x *syncBuffer) String() string {
	x.mu.Lock()
	defer x.mu.Unlock()
	return string(x.b)
}

func mustEval(t *testing.T, inst *Instance, source string) Value {
	t.Helper()
	out := inst.Eval(source, nil)
	if out.IsException {
		t.Fatalf("unexpected exception: %v", out.Err())
	}
	return out.Value
}

func mustOk(t *testing.T, out Outcome) Value {
	t.Helper()
	if out.IsException {
		t.Fatalf("unexpected exception: %v", out.Err())
	}
	return out.Value
}

// stringOf consumes v, returning its UTF-8 encoding.
func stringOf(t *testing.T, inst *Instance, v Value) string {
	t.Helper()
	require.Equal(t, KindString, v.Kind())
	view := inst.UTF8(v.Handle())
	defer view.Release()
	defer v.Release()
	return view.String()
}

// setGlobal assigns v (consumed) to the named global.
func setGlobal(t *testing.T, inst *Instance, name string, v Value) {
	t.Helper()
	g := inst.Global()
	defer g.Drop()
	mustOk(t, inst.ObjectSet(g, inst.NewString([]byte(name)), v))
}

func key(inst *Instance, s string) Value {
	return inst.NewString([]byte(s))
}

// requirePanicsIs asserts fn panics with an error matching target.
func requirePanicsIs(t *testing.T, target error, fn func()) {
	t.Helper()
	var r any
	func() {
		defer func() { r = recover() }()
		fn()
	}()
	require.NotNil(t, r, "expected panic")
	err, ok := r.(error)
	require.Truef(t, ok, "unexpected panic value: %v", r)
	require.Truef(t, errors.Is(err, target), "unexpected panic error: %v", err)
}

// stringsOf consumes an array of strings.
func stringsOf(t *testing.T, inst *Instance, v Value) []string {
	t.Helper()
	require.Equal(t, KindArray, v.Kind())
	defer v.Release()
	n := inst.ArrayLen(v.Handle())
	out := make([]string, 0, n)
	for idx := range n {
		out = append(out, stringOf(t, inst, mustOk(t, inst.ArrayGet(v.Handle(), idx))))
	}
	return out
}
