// Package gojabridge moves values between Go and the [goja] JavaScript
// runtime, and manages the lifetime of the engine objects that host code
// holds on to.
//
// # Overview
//
// An [Instance] wraps a [goja.Runtime]. Engine values cross the boundary as
// [Value], a small tagged descriptor: scalars (undefined, null, number,
// boolean, date) are carried inline, while strings, arrays, functions, and
// other objects are carried as a [Handle], a strong reference which keeps
// the referent alive until it is dropped.
//
// Every operation that may run script returns an [Outcome]: the result, or
// the thrown value, flagged by IsException. Script failures are never Go
// panics or errors on the core API. [Outcome.Err] converts an exception to a
// [*ScriptError], for callers that prefer Go errors.
//
// # Ownership
//
//   - Each [Handle] must be dropped exactly once.
//   - A reference [Value] owns its handle. Methods documented as consuming
//     a value take ownership of it, whether they succeed or throw.
//   - Methods accepting a [Handle] borrow it.
//
// Contract violations, such as dropping a handle twice, using a handle with
// the wrong instance, or entering an instance from two goroutines at once,
// panic with an error wrapping one of the package's sentinel errors.
//
// # Native callbacks
//
// [Instance.RegisterFunction] creates a script function backed by a host
// closure. Calls are routed through the process-wide [CallDispatcher], see
// [Init]. Once the function becomes unreachable, or the instance is closed,
// the [DropDispatcher] is called exactly once with the closure.
//
// # Termination
//
// [Instance.Terminate] may be called from any goroutine, to halt runaway
// script. The interrupted operation returns an exception outcome, an Error
// with the message [TimeoutMessage], for which [Outcome.Terminated] is true.
//
// # Usage
//
//	inst, err := gojabridge.New(gojabridge.WithConsole(true))
//	if err != nil {
//		return err
//	}
//	defer inst.Close()
//
//	out := inst.Eval(`({answer: 6 * 7})`, &gojabridge.Origin{Name: `main.js`})
//	if err := out.Err(); err != nil {
//		return err
//	}
//	defer out.Value.Release()
package gojabridge
