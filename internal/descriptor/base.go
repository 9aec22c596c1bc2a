package descriptor

import (
	"fmt"
	"slices"
)

// Base implements the bookkeeping shared by every descriptor. Types embed it
// and call Init from their constructor.
type Base struct {
	self      Descriptor
	handle    Handle
	kind      Kind
	status    Status
	refs      int
	listeners []StatusListener
	free      func()
}

// Init sets up b for the descriptor self, which must be the value embedding b.
// The caller holds the initial reference. free runs once the last reference
// is released and may be nil.
func (b *Base) Init(self Descriptor, kind Kind, handle Handle, free func()) {
	b.self = self
	b.kind = kind
	b.handle = handle
	b.refs = 1
	b.free = free
}

func (b *Base) Handle() Handle { return b.handle }

func (b *Base) Kind() Kind { return b.kind }

func (b *Base) Status() Status { return b.status }

// References returns the current reference count.
func (b *Base) References() int { return b.refs }

// AdjustStatus sets or clears the given bits, notifying listeners when the
// resulting bitset differs from the previous one.
func (b *Base) AdjustStatus(s Status, on bool) {
	old := b.status
	if on {
		b.status |= s
	} else {
		b.status &^= s
	}
	if b.status == old {
		return
	}

	// listeners may remove themselves while being notified
	for _, l := range slices.Clone(b.listeners) {
		if slices.Contains(b.listeners, l) {
			l.DescriptorStatusChanged(b.self)
		}
	}
}

func (b *Base) AddStatusListener(l StatusListener) {
	if slices.Contains(b.listeners, l) {
		return
	}
	b.listeners = append(b.listeners, l)
}

func (b *Base) RemoveStatusListener(l StatusListener) {
	if i := slices.Index(b.listeners, l); i >= 0 {
		b.listeners = slices.Delete(b.listeners, i, i+1)
	}
}

// Listeners returns the number of registered status listeners.
func (b *Base) Listeners() int { return len(b.listeners) }

func (b *Base) Retain() {
	if b.refs <= 0 {
		panic(fmt.Sprintf("descriptor %d: retain after free", b.handle))
	}
	b.refs++
}

func (b *Base) Release() {
	if b.refs <= 0 {
		panic(fmt.Sprintf("descriptor %d: release after free", b.handle))
	}
	b.refs--
	if b.refs == 0 && b.free != nil {
		b.free()
	}
}

// Close marks the descriptor closed and asks c to drop it immediately.
func (b *Base) Close(c Closer) {
	b.AdjustStatus(StatusClosed, true)
	c.CloseDescriptor(b.handle)
}
