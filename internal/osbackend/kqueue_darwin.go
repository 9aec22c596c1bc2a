//go:build darwin

package osbackend

import (
	"fmt"

	"fortio.org/safecast"
	"golang.org/x/sys/unix"
)

type registration struct {
	events uint32
	data   uint64
}

// Kqueue emulates the epoll registration contract on top of kqueue.
type Kqueue struct {
	fd         int
	kqEvents   []unix.Kevent_t
	registered map[uint64]registration
}

// New creates a kqueue instance. size is only a hint for the event buffer.
func New(size int) (*Kqueue, error) {
	if size < 0 {
		return nil, fmt.Errorf("invalid kqueue size %d", size)
	}

	kqFD, err := unix.Kqueue()
	if err != nil {
		return nil, err
	}
	unix.CloseOnExec(kqFD)

	return &Kqueue{
		fd:         kqFD,
		kqEvents:   make([]unix.Kevent_t, 0, size),
		registered: make(map[uint64]registration),
	}, nil
}

func (kq *Kqueue) Fd() int { return kq.fd }

func (kq *Kqueue) Control(op Op, fd int, events uint32, data uint64) error {
	ident, err := safecast.Conv[uint64](fd)
	if err != nil {
		return unix.EBADF
	}

	reg, exists := kq.registered[ident]
	switch op {
	case OpAdd:
		if exists {
			return unix.EEXIST
		}
		if err := kq.apply(ident, filters(events), unix.EV_ADD|unix.EV_ENABLE|filterFlags(events)); err != nil {
			return err
		}
		kq.registered[ident] = registration{events: events, data: data}

	case OpMod:
		if !exists {
			return unix.ENOENT
		}
		if err := kq.apply(ident, filters(reg.events), unix.EV_DELETE); err != nil && err != unix.ENOENT {
			return err
		}
		if err := kq.apply(ident, filters(events), unix.EV_ADD|unix.EV_ENABLE|filterFlags(events)); err != nil {
			delete(kq.registered, ident)
			return err
		}
		kq.registered[ident] = registration{events: events, data: data}

	case OpDel:
		if !exists {
			return unix.ENOENT
		}
		delete(kq.registered, ident)
		if err := kq.apply(ident, filters(reg.events), unix.EV_DELETE); err != nil && err != unix.ENOENT {
			return err
		}

	default:
		return unix.EINVAL
	}

	return nil
}

func (kq *Kqueue) apply(ident uint64, filters []int16, flags uint16) error {
	if len(filters) == 0 {
		return nil
	}
	changes := make([]unix.Kevent_t, len(filters))
	for i, filter := range filters {
		changes[i] = unix.Kevent_t{
			Ident:  ident,
			Filter: filter,
			Flags:  flags,
		}
	}
	_, err := unix.Kevent(kq.fd, changes, nil, nil)
	return err
}

func (kq *Kqueue) IsReady() bool {
	if kq.fd < 3 {
		return false
	}

	readinessFD, err := unix.Kqueue()
	if err != nil {
		return false
	}
	defer unix.Close(readinessFD)

	change := unix.Kevent_t{
		Ident:  uint64(kq.fd),
		Filter: unix.EVFILT_READ,
		Flags:  unix.EV_ADD | unix.EV_ENABLE,
	}
	out := make([]unix.Kevent_t, 1)
	n, err := unix.Kevent(readinessFD, []unix.Kevent_t{change}, out, &unix.Timespec{})
	return err == nil && n > 0
}

func (kq *Kqueue) Drain(capacity int) ([]Event, error) {
	if capacity <= 0 {
		return nil, nil
	}
	if cap(kq.kqEvents) < capacity {
		kq.kqEvents = make([]unix.Kevent_t, 0, capacity)
	}

	buf := kq.kqEvents[:capacity]
	numEvents, err := unix.Kevent(kq.fd, nil, buf, &unix.Timespec{})
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, err
	}

	// kqueue reports each filter separately, epoll one event per fd
	events := make([]Event, 0, numEvents)
	index := make(map[uint64]int, numEvents)
	for i := range buf[:numEvents] {
		ev := &buf[i]
		reg, ok := kq.registered[ev.Ident]
		if !ok {
			continue
		}
		if j, seen := index[ev.Ident]; seen {
			events[j].Events |= toEvents(ev)
			continue
		}
		index[ev.Ident] = len(events)
		events = append(events, Event{Events: toEvents(ev), Data: reg.data})
	}
	return events, nil
}

func (kq *Kqueue) Close() error {
	return unix.Close(kq.fd)
}
