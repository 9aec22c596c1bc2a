// Package host is the slice of a simulated host the descriptors and
// multiplexers need: a descriptor table and access to the task scheduler.
package host

import (
	"github.com/google/uuid"
	"github.com/joeycumines/logiface"

	"github.com/Viet-ph/simepoll/internal/descriptor"
	custom_err "github.com/Viet-ph/simepoll/internal/error"
	"github.com/Viet-ph/simepoll/internal/queue"
)

// firstHandle leaves room for stdin, stdout and stderr.
const firstHandle descriptor.Handle = 3

type Host struct {
	ID          uuid.UUID
	Name        string
	tasks       *queue.TaskQueue
	descriptors map[descriptor.Handle]descriptor.Descriptor
	nextHandle  descriptor.Handle
	log         *logiface.Logger[logiface.Event]
}

func New(name string, tasks *queue.TaskQueue, log *logiface.Logger[logiface.Event]) *Host {
	return &Host{
		ID:          uuid.New(),
		Name:        name,
		tasks:       tasks,
		descriptors: make(map[descriptor.Handle]descriptor.Descriptor),
		nextHandle:  firstHandle,
		log:         log,
	}
}

func (h *Host) Tasks() *queue.TaskQueue { return h.tasks }

func (h *Host) Logger() *logiface.Logger[logiface.Event] { return h.log }

// NextHandle reserves a handle for a descriptor about to be created.
func (h *Host) NextHandle() descriptor.Handle {
	handle := h.nextHandle
	h.nextHandle++
	return handle
}

// Register adds d to the descriptor table. The table takes over the
// reference the caller got from the descriptor's constructor.
func (h *Host) Register(d descriptor.Descriptor) {
	h.descriptors[d.Handle()] = d
	h.log.Debug().
		Stringer("host", h.ID).
		Int("handle", int(d.Handle())).
		Stringer("kind", d.Kind()).
		Log("descriptor registered")
}

func (h *Host) Lookup(handle descriptor.Handle) (descriptor.Descriptor, bool) {
	d, ok := h.descriptors[handle]
	return d, ok
}

// Len returns the number of descriptors in the table.
func (h *Host) Len() int { return len(h.descriptors) }

// Close is the application level close of handle. The descriptor decides when
// it actually leaves the table.
func (h *Host) Close(handle descriptor.Handle) error {
	d, ok := h.descriptors[handle]
	if !ok {
		return custom_err.ErrorBadDescriptor
	}
	d.Close(h)
	return nil
}

// CloseDescriptor drops handle from the table and releases the table's
// reference.
func (h *Host) CloseDescriptor(handle descriptor.Handle) {
	d, ok := h.descriptors[handle]
	if !ok {
		return
	}
	delete(h.descriptors, handle)
	h.log.Debug().
		Stringer("host", h.ID).
		Int("handle", int(handle)).
		Log("descriptor closed")
	d.Release()
}

// ScheduleTask runs cb delay units of simulated time from now.
func (h *Host) ScheduleTask(cb func(), delay queue.SimTime) bool {
	return h.tasks.Schedule(queue.NewTask(cb), delay)
}
