package epoll_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Viet-ph/simepoll/internal/epoll"
)

func TestParseEvents(t *testing.T) {
	e, err := epoll.ParseEvents([]string{"in", "EPOLLOUT", " et ", "oneshot"})
	require.NoError(t, err)
	assert.Equal(t, epoll.EventIn|epoll.EventOut|epoll.EventEdgeTriggered|epoll.EventOneShot, e)
	assert.Equal(t, "EPOLLIN|EPOLLOUT|EPOLLONESHOT|EPOLLET", e.String())

	e, err = epoll.ParseEvents(nil)
	require.NoError(t, err)
	assert.Equal(t, "0", e.String())

	_, err = epoll.ParseEvents([]string{"pri"})
	assert.Error(t, err)
}
