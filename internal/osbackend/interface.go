// Package osbackend mirrors registrations onto a real, kernel provided polling
// instance, for descriptors the simulation does not virtualize. Every call is
// non-blocking: a blocking poll here would stall the whole simulation.
package osbackend

import (
	"syscall"
)

// Op is a control operation, numbered like EPOLL_CTL_*.
type Op int

const (
	OpAdd Op = 1
	OpDel Op = 2
	OpMod Op = 3
)

func (op Op) String() string {
	switch op {
	case OpAdd:
		return "EPOLL_CTL_ADD"
	case OpDel:
		return "EPOLL_CTL_DEL"
	case OpMod:
		return "EPOLL_CTL_MOD"
	default:
		return "unknown"
	}
}

// Event mask bits, with the Linux epoll values. Other platforms translate.
const (
	EventIn      uint32 = 0x001
	EventOut     uint32 = 0x004
	EventErr     uint32 = 0x008
	EventHup     uint32 = 0x010
	EventOneShot uint32 = 1 << 30
	EventEdge    uint32 = 1 << 31
)

// Event is a raw event collected from the OS instance.
type Event struct {
	Events uint32
	Data   uint64
}

type Backend interface {
	// Control forwards op for fd. Failures are returned as the raw errno.
	Control(op Op, fd int, events uint32, data uint64) error
	// IsReady reports whether the instance has a pending event, without
	// consuming it.
	IsReady() bool
	// Drain collects up to capacity events with a zero timeout.
	Drain(capacity int) ([]Event, error)
	Close() error
}

// Unavailable returns a Backend for when the OS instance could not be
// created: it is never ready and rejects every registration with EBADF.
func Unavailable(cause error) Backend {
	return unavailable{cause: cause}
}

type unavailable struct {
	cause error
}

func (unavailable) Control(Op, int, uint32, uint64) error { return syscall.EBADF }

func (unavailable) IsReady() bool { return false }

func (unavailable) Drain(int) ([]Event, error) { return nil, nil }

func (unavailable) Close() error { return nil }

func (u unavailable) String() string {
	return "unavailable: " + u.cause.Error()
}
