package gojabridge

import (
	"sync"

	"github.com/dop251/goja"
)

// Handle is a strong reference to an engine value, scoped to the
// [Instance] that created it. The referent stays alive (is not collected)
// until every handle to it has been dropped.
//
// Handles are small values, and may be copied freely, but each handle
// (each result of creation or [Handle.Clone]) must be dropped exactly once.
// The zero Handle refers to nothing.
type Handle struct {
	inst *Instance
	id   uint64
}

// Instance returns the instance the handle belongs to.
func (h Handle) Instance() *Instance { return h.inst }

// IsZero reports whether h is the zero Handle.
func (h Handle) IsZero() bool { return h.inst == nil }

// Clone returns a new handle sharing the referent of h. Both must be
// dropped.
func (h Handle) Clone() Handle {
	if h.inst == nil {
		return Handle{}
	}
	v, ok := h.inst.handles.get(h.id)
	if !ok {
		protocolViolation(ErrHandleReleased, "clone of handle %d", h.id)
	}
	return h.inst.newHandle(v)
}

// Drop releases the handle. Dropping a handle twice panics.
func (h Handle) Drop() {
	if h.inst == nil {
		return
	}
	if _, ok := h.inst.handles.remove(h.id); !ok {
		protocolViolation(ErrHandleReleased, "drop of handle %d", h.id)
	}
}

// Value classifies the referent, returning a value which owns a new handle
// (h itself remains owned by the caller).
func (h Handle) Value() Value {
	if h.inst == nil {
		return Undefined()
	}
	return withScope(h.inst, func(*goja.Runtime) Value {
		return h.inst.encode(h.inst.deref(h))
	})
}

// handleTable is an id-keyed table of strong references.
type handleTable struct {
	entries  map[uint64]goja.Value
	nextID   uint64
	created  uint64
	released uint64
	mu       sync.Mutex
}

func newHandleTable() handleTable {
	return handleTable{
		entries: make(map[uint64]goja.Value),
		nextID:  1, // 0 is never a valid id
	}
}

func (t *handleTable) add(v goja.Value) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := t.nextID
	t.nextID++
	t.entries[id] = v
	t.created++
	return id
}

func (t *handleTable) get(id uint64) (goja.Value, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.entries[id]
	return v, ok
}

func (t *handleTable) remove(id uint64) (goja.Value, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.entries[id]
	if ok {
		delete(t.entries, id)
		t.released++
	}
	return v, ok
}

// reset releases every entry, returning how many were still live.
func (t *handleTable) reset() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := len(t.entries)
	t.released += uint64(n)
	t.entries = make(map[uint64]goja.Value)
	return n
}

func (t *handleTable) stats(s *Stats) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s.HandlesCreated = t.created
	s.HandlesReleased = t.released
	s.LiveHandles = len(t.entries)
}

func (i *Instance) newHandle(v goja.Value) Handle {
	return Handle{inst: i, id: i.handles.add(v)}
}

// deref returns the referent of h, without releasing it.
func (i *Instance) deref(h Handle) goja.Value {
	i.checkHandle(h)
	v, ok := i.handles.get(h.id)
	if !ok {
		protocolViolation(ErrHandleReleased, "use of handle %d", h.id)
	}
	return v
}

// takeHandle returns the referent of h, releasing h.
func (i *Instance) takeHandle(h Handle) goja.Value {
	i.checkHandle(h)
	v, ok := i.handles.remove(h.id)
	if !ok {
		protocolViolation(ErrHandleReleased, "decode of handle %d", h.id)
	}
	return v
}

// derefObject returns the referent of h as an object. Non-object referents
// are converted using the engine's ToObject semantics.
func (i *Instance) derefObject(h Handle) *goja.Object {
	v := i.deref(h)
	if obj, ok := v.(*goja.Object); ok {
		return obj
	}
	return v.ToObject(i.rt)
}

func (i *Instance) checkHandle(h Handle) {
	if h.inst == nil {
		protocolViolation(ErrHandleReleased, "use of zero handle")
	}
	if h.inst != i {
		protocolViolation(ErrForeignHandle, "handle %d of instance %d used with instance %d", h.id, h.inst.id, i.id)
	}
}
