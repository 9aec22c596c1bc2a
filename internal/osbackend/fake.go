package osbackend

import (
	"syscall"
)

// Fake is an in-memory Backend. Events are queued with Push and handed out by
// Drain in order.
type Fake struct {
	registered map[int]Event
	pending    []Event
	closed     bool

	// DrainErr, when set, is returned by Drain instead of any events.
	DrainErr error
}

func NewFake() *Fake {
	return &Fake{
		registered: make(map[int]Event),
	}
}

func (f *Fake) Control(op Op, fd int, events uint32, data uint64) error {
	if f.closed || fd < 0 {
		return syscall.EBADF
	}

	_, exists := f.registered[fd]
	switch op {
	case OpAdd:
		if exists {
			return syscall.EEXIST
		}
		f.registered[fd] = Event{Events: events, Data: data}
	case OpMod:
		if !exists {
			return syscall.ENOENT
		}
		f.registered[fd] = Event{Events: events, Data: data}
	case OpDel:
		if !exists {
			return syscall.ENOENT
		}
		delete(f.registered, fd)
	default:
		return syscall.EINVAL
	}
	return nil
}

// Registered returns the registration for fd.
func (f *Fake) Registered(fd int) (Event, bool) {
	ev, ok := f.registered[fd]
	return ev, ok
}

// Push queues an event for the next Drain.
func (f *Fake) Push(ev Event) {
	f.pending = append(f.pending, ev)
}

func (f *Fake) IsReady() bool {
	return !f.closed && len(f.pending) > 0
}

func (f *Fake) Drain(capacity int) ([]Event, error) {
	if f.DrainErr != nil {
		return nil, f.DrainErr
	}
	if capacity <= 0 || f.closed {
		return nil, nil
	}

	n := min(capacity, len(f.pending))
	events := append([]Event(nil), f.pending[:n]...)
	f.pending = f.pending[n:]
	return events, nil
}

func (f *Fake) Close() error {
	f.closed = true
	return nil
}

func (f *Fake) Closed() bool { return f.closed }
