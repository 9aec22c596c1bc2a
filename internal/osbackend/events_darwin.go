//go:build darwin

package osbackend

import (
	"golang.org/x/sys/unix"
)

// filters returns the kqueue filters for an epoll style mask.
func filters(events uint32) []int16 {
	var out []int16
	if events&EventIn != 0 {
		out = append(out, unix.EVFILT_READ)
	}
	if events&EventOut != 0 {
		out = append(out, unix.EVFILT_WRITE)
	}
	return out
}

// filterFlags returns the kevent flags emulating the edge and one-shot bits.
func filterFlags(events uint32) uint16 {
	var flags uint16
	if events&EventEdge != 0 {
		flags |= unix.EV_CLEAR
	}
	if events&EventOneShot != 0 {
		flags |= unix.EV_ONESHOT
	}
	return flags
}

func toEvents(ev *unix.Kevent_t) uint32 {
	var events uint32
	switch ev.Filter {
	case unix.EVFILT_READ:
		events |= EventIn
	case unix.EVFILT_WRITE:
		events |= EventOut
	}
	if ev.Flags&unix.EV_EOF != 0 {
		events |= EventHup
	}
	if ev.Flags&unix.EV_ERROR != 0 {
		events |= EventErr
	}
	return events
}
