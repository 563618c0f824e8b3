package gojabridge

// Stats is a point-in-time snapshot of the bookkeeping of an [Instance].
type Stats struct {
	// HandlesCreated is the total number of handles ever created.
	HandlesCreated uint64
	// HandlesReleased is the total number of handles ever released,
	// including those released by [Instance.Close].
	HandlesReleased uint64
	// LiveHandles is the number of handles not yet released.
	LiveHandles int

	// Callbacks is the number of native callbacks not yet finalized.
	Callbacks int
	// CallbacksRegistered is the total number of native callbacks created.
	CallbacksRegistered uint64
	// CallbacksFinalized is the total number of native callbacks finalized,
	// by either the collector or [Instance.Close].
	CallbacksFinalized uint64

	// ExternalMemory is the number of bytes of host memory attributed to the
	// instance by its native callbacks. It is advisory: the engine's
	// collector is not informed of it.
	ExternalMemory int64

	// UTF8Views is the number of [UTF8View] values not yet released.
	UTF8Views int64
}

// Stats returns a snapshot of the instance bookkeeping. It may be called
// from any goroutine, including after [Instance.Close].
func (i *Instance) Stats() Stats {
	var s Stats
	i.handles.stats(&s)
	i.callbacks.stats(&s)
	s.ExternalMemory = i.externalMemory.Load()
	s.UTF8Views = i.utf8Views.Load()
	return s
}
