//go:build darwin

package osbackend_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/Viet-ph/simepoll/internal/osbackend"
)

func TestKqueueMergesFilters(t *testing.T) {
	kq, err := osbackend.New(16)
	require.NoError(t, err)
	defer kq.Close()

	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	require.NoError(t, err)
	defer unix.Close(fds[0])
	defer unix.Close(fds[1])

	require.NoError(t, kq.Control(osbackend.OpAdd, fds[0], osbackend.EventIn|osbackend.EventOut, 42))
	assert.Equal(t, unix.EEXIST, kq.Control(osbackend.OpAdd, fds[0], osbackend.EventIn, 42))

	_, err = unix.Write(fds[1], []byte("x"))
	require.NoError(t, err)

	events, err := kq.Drain(8)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, uint64(42), events[0].Data)
	assert.Equal(t, osbackend.EventIn|osbackend.EventOut, events[0].Events&(osbackend.EventIn|osbackend.EventOut))
}
