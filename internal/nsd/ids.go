package nsd

// invalidID is the sentinel the allocator must never hand out.
const invalidID = 0

// idAllocator is a monotone counter over the process lifetime, skipping the
// sentinel value 0. It is only ever touched from the state-machine goroutine,
// so it carries no internal locking, matching the "single writer" rule of
// the rest of the registries.
type idAllocator struct {
	last int32
}

// next returns the next unique id, never invalidID. Grounded on
// NsdService.getUniqueId(): increment, and if that lands on the sentinel,
// increment once more.
func (a *idAllocator) next() int32 {
	a.last++
	if a.last == invalidID {
		a.last++
	}
	return a.last
}
