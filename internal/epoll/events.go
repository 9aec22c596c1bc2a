package epoll

import (
	"fmt"
	"strings"

	"github.com/Viet-ph/simepoll/internal/osbackend"
)

// Op is a registration operation.
type Op = osbackend.Op

const (
	OpAdd = osbackend.OpAdd
	OpDel = osbackend.OpDel
	OpMod = osbackend.OpMod
)

// Events is an interest or event mask, bit compatible with the Linux epoll
// flags so pass-through events need no translation.
type Events uint32

const (
	EventIn            = Events(osbackend.EventIn)
	EventOut           = Events(osbackend.EventOut)
	EventErr           = Events(osbackend.EventErr)
	EventHup           = Events(osbackend.EventHup)
	EventOneShot       = Events(osbackend.EventOneShot)
	EventEdgeTriggered = Events(osbackend.EventEdge)
)

func (e Events) String() string {
	var parts []string
	for _, f := range []struct {
		bit  Events
		name string
	}{
		{EventIn, "EPOLLIN"},
		{EventOut, "EPOLLOUT"},
		{EventErr, "EPOLLERR"},
		{EventHup, "EPOLLHUP"},
		{EventOneShot, "EPOLLONESHOT"},
		{EventEdgeTriggered, "EPOLLET"},
	} {
		if e&f.bit != 0 {
			parts = append(parts, f.name)
		}
	}
	if len(parts) == 0 {
		return "0"
	}
	return strings.Join(parts, "|")
}

// Event is both the interest passed to Control and the record returned by
// Collect. Data is an opaque caller tag, returned untouched.
type Event struct {
	Events Events
	Data   uint64
}

// ParseEvents builds a mask from flag names, either the EPOLL* names or the
// short forms in, out, err, hup, oneshot and et.
func ParseEvents(names []string) (Events, error) {
	var e Events
	for _, name := range names {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "in", "epollin":
			e |= EventIn
		case "out", "epollout":
			e |= EventOut
		case "err", "epollerr":
			e |= EventErr
		case "hup", "epollhup":
			e |= EventHup
		case "oneshot", "epolloneshot":
			e |= EventOneShot
		case "et", "edge", "epollet":
			e |= EventEdgeTriggered
		default:
			return 0, fmt.Errorf("unknown event flag %q", name)
		}
	}
	return e, nil
}
