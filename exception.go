package gojabridge

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/dop251/goja"
	"github.com/joeycumines/logiface"
)

// Outcome is the result of an operation which may throw. If IsException
// is set, Value is the thrown value, otherwise it is the result.
type Outcome struct {
	Value       Value
	IsException bool
	terminated  bool
}

// Ok returns a successful outcome.
func Ok(v Value) Outcome { return Outcome{Value: v} }

// Throw returns an outcome which throws v.
func Throw(v Value) Outcome { return Outcome{Value: v, IsException: true} }

// Terminated reports whether the exception was caused by
// [Instance.Terminate].
func (o Outcome) Terminated() bool { return o.IsException && o.terminated }

// Err converts an exception outcome to a [*ScriptError], consuming Value.
// It returns nil, and leaves Value untouched, if the outcome is not an
// exception.
func (o Outcome) Err() error {
	if !o.IsException {
		return nil
	}
	err := &ScriptError{Kind: o.Value.kind, Terminated: o.terminated}
	if !o.Value.IsReference() {
		err.Message = o.Value.String()
		return err
	}
	inst := o.Value.handle.inst
	if inst == nil || inst.closed.Load() {
		err.Message = o.Value.kind.String()
		return err
	}
	err.Message = withScope(inst, func(*goja.Runtime) string {
		return inst.describe(inst.decode(o.Value))
	})
	return err
}

// describe formats a value for diagnostics. Only errors may run script,
// to read their name and message, and fall back to "[object Error]" if
// that throws.
func (i *Instance) describe(v goja.Value) string {
	switch x := v.(type) {
	case nil:
		return `undefined`
	case *goja.Symbol:
		return `Symbol()`
	case *goja.Object:
		class := i.classOf(x)
		if class == classError {
			if s, ok := i.errorString(x); ok {
				return s
			}
		}
		return `[object ` + class + `]`
	}
	return v.String()
}

// errorString formats obj as "name: message", or just the message if the
// name is "Error". It returns false if obj has no message, or if reading
// either property throws.
func (i *Instance) errorString(obj *goja.Object) (s string, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			if _, interrupted := r.(*goja.InterruptedError); !interrupted {
				panic(r)
			}
			// the interrupt remains pending
			s, ok = ``, false
		}
	}()
	ex := i.rt.Try(func() {
		msg := obj.Get(`message`)
		if msg == nil || goja.IsUndefined(msg) {
			return
		}
		s, ok = msg.String(), true
		if name := obj.Get(`name`); name != nil && !goja.IsUndefined(name) {
			if n := name.String(); n != `` && n != classError {
				s = n + `: ` + s
			}
		}
	})
	if ex != nil {
		return ``, false
	}
	return s, ok
}

// TryCatch captures exceptions raised within [Instance.TryCatch].
type TryCatch struct {
	inst  *Instance
	err   error
	value goja.Value
}

// Catch records err, if it is non-nil, reporting whether it did so. The
// first caught error is retained.
func (tc *TryCatch) Catch(err error) bool {
	if err == nil {
		return false
	}
	if tc.err == nil && tc.value == nil {
		tc.err = err
	}
	return true
}

// Throw records a thrown engine value.
func (tc *TryCatch) Throw(v goja.Value) {
	if tc.err == nil && tc.value == nil {
		tc.value = v
	}
}

// HasCaught reports whether anything has been caught.
func (tc *TryCatch) HasCaught() bool { return tc.err != nil || tc.value != nil }

// HasTerminated reports whether the caught error is a termination.
func (tc *TryCatch) HasTerminated() bool {
	var interrupted *goja.InterruptedError
	return errors.As(tc.err, &interrupted)
}

// Exception returns the caught engine value. Terminations and host errors
// are materialised as Error objects. It returns nil if nothing was caught.
func (tc *TryCatch) Exception() goja.Value {
	switch {
	case tc.value != nil:
		return tc.value
	case tc.err == nil:
		return nil
	case tc.HasTerminated():
		return tc.inst.newError(TimeoutMessage)
	}
	var ex *goja.Exception
	if errors.As(tc.err, &ex) {
		return ex.Value()
	}
	return tc.inst.newError(tc.err.Error())
}

// TryCatch enters the instance and runs fn, converting any exception
// panicking out of fn into a capture by tc, followed by an exception
// outcome. Panics unrelated to the engine are propagated.
func (i *Instance) TryCatch(fn func(rt *goja.Runtime, tc *TryCatch) Outcome) Outcome {
	return withScope(i, func(rt *goja.Runtime) (out Outcome) {
		tc := &TryCatch{inst: i}
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			switch x := r.(type) {
			case *goja.Exception:
				tc.Catch(x)
			case *goja.InterruptedError:
				tc.Catch(x)
			case goja.Value:
				tc.Throw(x)
			default:
				panic(r)
			}
			out = i.captureErr(tc)
		}()
		return fn(rt, tc)
	})
}

// captureOk wraps a successful engine result.
func (i *Instance) captureOk(v goja.Value) Outcome {
	return Outcome{Value: i.encode(v)}
}

// captureErr wraps the exception caught by tc.
func (i *Instance) captureErr(tc *TryCatch) Outcome {
	terminated := tc.HasTerminated()
	if terminated {
		i.fired = true
	}
	ex := tc.Exception()
	if ex == nil {
		return Outcome{}
	}
	var gex *goja.Exception
	if errors.As(tc.err, &gex) {
		i.logger.Debug().
			Uint64(`instance`, i.id).
			Call(func(b *logiface.Builder[logiface.Event]) {
				b.Str(`stack`, formatStack(gex.Stack()))
			}).
			Log(`script exception`)
	} else if terminated {
		i.logger.Debug().
			Uint64(`instance`, i.id).
			Log(`script terminated`)
	}
	return Outcome{
		Value:       i.encode(ex),
		IsException: true,
		terminated:  terminated,
	}
}

// formatStack renders stack frames, one per line. Unlike
// [goja.Exception.String], it never converts the thrown value.
func formatStack(frames []goja.StackFrame) string {
	var b bytes.Buffer
	for n := range frames {
		if n != 0 {
			b.WriteByte('\n')
		}
		frames[n].Write(&b)
	}
	return b.String()
}

// newError constructs an Error with the given message, using the
// intrinsic captured at instance creation.
func (i *Instance) newError(msg string) goja.Value {
	obj, err := i.rt.New(i.helpers.errorCtor, i.rt.ToValue(msg))
	if err != nil {
		return i.rt.ToValue(msg)
	}
	return obj
}

// throwTypeError returns an outcome throwing a TypeError.
func (i *Instance) throwTypeError(format string, args ...any) Outcome {
	return Outcome{
		Value:       i.encode(i.rt.NewTypeError(`%s`, fmt.Sprintf(format, args...))),
		IsException: true,
	}
}
