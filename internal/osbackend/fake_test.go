package osbackend_test

import (
	"errors"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Viet-ph/simepoll/internal/osbackend"
)

func TestFakeControl(t *testing.T) {
	f := osbackend.NewFake()

	assert.Equal(t, syscall.EBADF, f.Control(osbackend.OpAdd, -1, osbackend.EventIn, 0))
	assert.Equal(t, syscall.ENOENT, f.Control(osbackend.OpMod, 5, osbackend.EventIn, 0))
	require.NoError(t, f.Control(osbackend.OpAdd, 5, osbackend.EventIn, 1))
	assert.Equal(t, syscall.EEXIST, f.Control(osbackend.OpAdd, 5, osbackend.EventIn, 1))
	require.NoError(t, f.Control(osbackend.OpMod, 5, osbackend.EventOut, 2))

	ev, ok := f.Registered(5)
	require.True(t, ok)
	assert.Equal(t, osbackend.Event{Events: osbackend.EventOut, Data: 2}, ev)

	require.NoError(t, f.Control(osbackend.OpDel, 5, 0, 0))
	_, ok = f.Registered(5)
	assert.False(t, ok)
	assert.Equal(t, syscall.EINVAL, f.Control(osbackend.Op(9), 5, 0, 0))
}

func TestFakeDrain(t *testing.T) {
	f := osbackend.NewFake()
	assert.False(t, f.IsReady())

	for i := range 3 {
		f.Push(osbackend.Event{Events: osbackend.EventIn, Data: uint64(i)})
	}
	assert.True(t, f.IsReady())

	events, err := f.Drain(2)
	require.NoError(t, err)
	assert.Equal(t, []osbackend.Event{
		{Events: osbackend.EventIn, Data: 0},
		{Events: osbackend.EventIn, Data: 1},
	}, events)

	f.DrainErr = errors.New("boom")
	_, err = f.Drain(2)
	require.Error(t, err)
	f.DrainErr = nil

	events, err = f.Drain(2)
	require.NoError(t, err)
	assert.Len(t, events, 1)
	assert.False(t, f.IsReady())

	require.NoError(t, f.Close())
	assert.True(t, f.Closed())
}

func TestUnavailable(t *testing.T) {
	b := osbackend.Unavailable(errors.New("no kernel"))
	assert.Equal(t, syscall.EBADF, b.Control(osbackend.OpAdd, 3, osbackend.EventIn, 0))
	assert.False(t, b.IsReady())
	events, err := b.Drain(4)
	assert.NoError(t, err)
	assert.Empty(t, events)
	assert.NoError(t, b.Close())
}

func TestOpString(t *testing.T) {
	assert.Equal(t, "EPOLL_CTL_ADD", osbackend.OpAdd.String())
	assert.Equal(t, "EPOLL_CTL_DEL", osbackend.OpDel.String())
	assert.Equal(t, "EPOLL_CTL_MOD", osbackend.OpMod.String())
	assert.Equal(t, "unknown", osbackend.Op(0).String())
}
