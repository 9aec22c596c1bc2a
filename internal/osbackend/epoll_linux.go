//go:build linux

package osbackend

import (
	"fmt"

	"fortio.org/safecast"
	"golang.org/x/sys/unix"
)

type Epoll struct {
	fd         int
	pollEvents []unix.EpollEvent
}

// New creates an epoll instance. size is only a hint for the event buffer.
func New(size int) (*Epoll, error) {
	if size < 0 {
		return nil, fmt.Errorf("invalid epoll size %d", size)
	}

	epollFD, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}

	return &Epoll{
		fd:         epollFD,
		pollEvents: make([]unix.EpollEvent, 0, size),
	}, nil
}

// Fd returns the epoll file descriptor.
func (epoll *Epoll) Fd() int { return epoll.fd }

func (epoll *Epoll) Control(op Op, fd int, events uint32, data uint64) error {
	if _, err := safecast.Conv[int32](fd); err != nil {
		return unix.EBADF
	}

	var ev *unix.EpollEvent
	if op != OpDel {
		ev = &unix.EpollEvent{Events: events}
		setEventData(ev, data)
	}
	return unix.EpollCtl(epoll.fd, int(op), fd, ev)
}

func (epoll *Epoll) IsReady() bool {
	if epoll.fd < 3 {
		return false
	}

	readinessFD, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return false
	}
	defer unix.Close(readinessFD)

	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(epoll.fd)}
	if err := unix.EpollCtl(readinessFD, unix.EPOLL_CTL_ADD, epoll.fd, &ev); err != nil {
		return false
	}
	defer unix.EpollCtl(readinessFD, unix.EPOLL_CTL_DEL, epoll.fd, nil)

	out := make([]unix.EpollEvent, 1)
	n, err := unix.EpollWait(readinessFD, out, 0)
	return err == nil && n > 0
}

func (epoll *Epoll) Drain(capacity int) ([]Event, error) {
	if capacity <= 0 {
		return nil, nil
	}
	if cap(epoll.pollEvents) < capacity {
		epoll.pollEvents = make([]unix.EpollEvent, 0, capacity)
	}

	buf := epoll.pollEvents[:capacity]
	numEvents, err := unix.EpollWait(epoll.fd, buf, 0)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, err
	}

	events := make([]Event, numEvents)
	for i, ev := range buf[:numEvents] {
		events[i] = Event{Events: ev.Events, Data: eventData(&ev)}
	}
	return events, nil
}

func (epoll *Epoll) Close() error {
	return unix.Close(epoll.fd)
}
