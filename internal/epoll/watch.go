package epoll

import (
	"fmt"

	"github.com/Viet-ph/simepoll/internal/descriptor"
)

type watchFlags uint16

const (
	// the watched descriptor is initialized and operational
	watchActive watchFlags = 1 << iota
	// the watched descriptor is readable
	watchReadable
	// the caller is waiting for a read event
	watchWaitingRead
	// readable changed and has not been collected yet (edge-triggered)
	watchReadChanged
	// the watched descriptor is writable
	watchWritable
	// the caller is waiting for a write event
	watchWaitingWrite
	// writable changed and has not been collected yet (edge-triggered)
	watchWriteChanged
	// the watched descriptor is closed
	watchClosed
	// the watch is still in the table; cleared on removal so that references
	// held by an in-progress pass see it as gone
	watchWatching
	watchEdgeTrigger
	watchEdgeReported
	watchOneShot
	// an event was collected in one-shot mode and the interest has not been
	// modified since
	watchOneShotReported
)

// latched flags survive updateStatus, everything else is recomputed
const watchLatched = watchReadChanged | watchWriteChanged | watchWatching |
	watchEdgeReported | watchOneShotReported

// watch is one registration of interest in one descriptor.
type watch struct {
	desc  descriptor.Descriptor
	event Event
	flags watchFlags
	refs  int
}

// newWatch takes a reference on d, which also covers the listener
// registration made by the multiplexer.
func newWatch(d descriptor.Descriptor, ev Event) *watch {
	d.Retain()
	return &watch{
		desc:  d,
		event: ev,
		refs:  1,
	}
}

func (w *watch) retain() {
	if w.refs <= 0 {
		panic(fmt.Sprintf("watch on descriptor %d: retain after free", w.desc.Handle()))
	}
	w.refs++
}

func (w *watch) release() {
	if w.refs <= 0 {
		panic("watch: release after free")
	}
	w.refs--
	if w.refs == 0 {
		w.desc.Release()
	}
}

// setInterest replaces the interest and re-arms edge-triggered and one-shot
// reporting.
func (w *watch) setInterest(ev Event) {
	w.event = ev
	w.flags &^= watchEdgeReported | watchOneShotReported
}

func (w *watch) has(f watchFlags) bool { return w.flags&f != 0 }

// updateStatus refreshes the flags from the descriptor status and the
// interest, latching read/write changes since the last collection.
func (w *watch) updateStatus() {
	old := w.flags
	flags := old & watchLatched

	status := w.desc.Status()
	if status&descriptor.StatusActive != 0 {
		flags |= watchActive
	}
	if status&descriptor.StatusReadable != 0 {
		flags |= watchReadable
	}
	if status&descriptor.StatusWritable != 0 {
		flags |= watchWritable
	}
	if status&descriptor.StatusClosed != 0 {
		flags |= watchClosed
	}
	if w.event.Events&EventIn != 0 {
		flags |= watchWaitingRead
	}
	if w.event.Events&EventOut != 0 {
		flags |= watchWaitingWrite
	}
	if w.event.Events&EventEdgeTriggered != 0 {
		flags |= watchEdgeTrigger
	}
	if w.event.Events&EventOneShot != 0 {
		flags |= watchOneShot
	}

	if old&watchReadable != flags&watchReadable {
		flags |= watchReadChanged
	}
	if old&watchWritable != flags&watchWritable {
		flags |= watchWriteChanged
	}
	w.flags = flags
}

func (w *watch) hasReadEvent() bool {
	return w.has(watchReadable) && w.has(watchWaitingRead)
}

func (w *watch) hasWriteEvent() bool {
	return w.has(watchWritable) && w.has(watchWaitingWrite)
}

// isReady reports whether the watch has an event to report right now. It
// always refreshes the status first.
func (w *watch) isReady() bool {
	w.updateStatus()

	if w.has(watchClosed) || !w.has(watchActive) || !w.has(watchWatching) {
		return false
	}

	hasRead, hasWrite := w.hasReadEvent(), w.hasWriteEvent()

	var ready bool
	if w.has(watchEdgeTrigger) {
		// only on a change, unless there is an event that was never reported
		reported := w.has(watchEdgeReported)
		ready = (hasRead && (w.has(watchReadChanged) || !reported)) ||
			(hasWrite && (w.has(watchWriteChanged) || !reported))
	} else {
		ready = hasRead || hasWrite
	}

	if ready && w.has(watchOneShot) && w.has(watchOneShotReported) {
		return false
	}
	return ready
}

// collect builds the event for a ready watch and marks it as reported.
func (w *watch) collect() Event {
	ev := Event{Data: w.event.Data}
	if w.hasReadEvent() {
		ev.Events |= EventIn
	}
	if w.hasWriteEvent() {
		ev.Events |= EventOut
	}
	if w.has(watchEdgeTrigger) {
		ev.Events |= EventEdgeTriggered
	}

	w.flags &^= watchReadChanged | watchWriteChanged
	if w.has(watchEdgeTrigger) {
		w.flags |= watchEdgeReported
	}
	if w.has(watchOneShot) {
		w.flags |= watchOneShotReported
	}
	return ev
}
