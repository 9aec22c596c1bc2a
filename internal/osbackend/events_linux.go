//go:build linux

package osbackend

import (
	"golang.org/x/sys/unix"
)

// The kernel treats epoll_data as an opaque 64 bit union; x/sys exposes it as
// the Fd and Pad halves.
func setEventData(ev *unix.EpollEvent, data uint64) {
	ev.Fd = int32(uint32(data))
	ev.Pad = int32(uint32(data >> 32))
}

func eventData(ev *unix.EpollEvent) uint64 {
	return uint64(uint32(ev.Fd)) | uint64(uint32(ev.Pad))<<32
}
