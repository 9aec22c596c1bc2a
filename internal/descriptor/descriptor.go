// Package descriptor models the virtual descriptors a simulated host hands out
// to its processes: anything that has a status bitset and can tell listeners
// when that bitset changes.
package descriptor

import (
	"fmt"
	"strings"
)

// Handle is the per-host integer an application uses to refer to a descriptor.
type Handle int

// Status is the readiness bitset of a descriptor.
type Status uint8

const (
	// StatusActive means the descriptor is initialized and operational.
	StatusActive Status = 1 << iota
	// StatusReadable means a read would not block.
	StatusReadable
	// StatusWritable means a write would not block.
	StatusWritable
	// StatusClosed means the descriptor was closed.
	StatusClosed

	StatusNone Status = 0
)

func (s Status) String() string {
	if s == StatusNone {
		return "none"
	}
	var parts []string
	for _, f := range []struct {
		bit  Status
		name string
	}{
		{StatusActive, "active"},
		{StatusReadable, "readable"},
		{StatusWritable, "writable"},
		{StatusClosed, "closed"},
	} {
		if s&f.bit != 0 {
			parts = append(parts, f.name)
		}
	}
	return strings.Join(parts, "|")
}

// Kind identifies the variant of a descriptor.
type Kind uint8

const (
	KindGeneric Kind = iota
	KindPipe
	KindEpoll
)

func (k Kind) String() string {
	switch k {
	case KindGeneric:
		return "generic"
	case KindPipe:
		return "pipe"
	case KindEpoll:
		return "epoll"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// StatusListener is notified every time a watched descriptor's status changes.
type StatusListener interface {
	DescriptorStatusChanged(d Descriptor)
}

// Closer drops a descriptor from the table of the host that owns it.
type Closer interface {
	CloseDescriptor(h Handle)
}

// Descriptor is a pollable object. Descriptors are shared by counted
// reference: every holder calls Retain when it starts holding one and Release
// when it stops.
type Descriptor interface {
	Handle() Handle
	Kind() Kind
	Status() Status
	AddStatusListener(l StatusListener)
	RemoveStatusListener(l StatusListener)
	Retain()
	Release()
	// Close is the application level close. The descriptor asks c to drop it
	// once it is actually done, which may happen later.
	Close(c Closer)
}
