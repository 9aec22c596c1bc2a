package epoll

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Viet-ph/simepoll/internal/descriptor"
)

func armedWatch(d descriptor.Descriptor, events Events) *watch {
	w := newWatch(d, Event{Events: events, Data: 7})
	w.flags |= watchWatching
	return w
}

func TestWatchLevelTriggered(t *testing.T) {
	g := descriptor.NewGeneric(3)
	w := armedWatch(g, EventIn)

	require.False(t, w.isReady())

	g.AdjustStatus(descriptor.StatusReadable, true)
	require.True(t, w.isReady())

	ev := w.collect()
	assert.Equal(t, Event{Events: EventIn, Data: 7}, ev)

	// collecting does not clear a level
	require.True(t, w.isReady())
	require.True(t, w.isReady())

	g.AdjustStatus(descriptor.StatusReadable, false)
	require.False(t, w.isReady())
}

func TestWatchLevelTriggeredWrite(t *testing.T) {
	g := descriptor.NewGeneric(3)
	w := armedWatch(g, EventIn|EventOut)

	g.AdjustStatus(descriptor.StatusWritable, true)
	require.True(t, w.isReady())
	assert.Equal(t, Event{Events: EventOut, Data: 7}, w.collect())

	g.AdjustStatus(descriptor.StatusReadable, true)
	require.True(t, w.isReady())
	assert.Equal(t, Event{Events: EventIn | EventOut, Data: 7}, w.collect())
}

func TestWatchEdgeTriggered(t *testing.T) {
	g := descriptor.NewGeneric(3)
	w := armedWatch(g, EventIn|EventEdgeTriggered)

	require.False(t, w.isReady())

	g.AdjustStatus(descriptor.StatusReadable, true)
	require.True(t, w.isReady())
	// still reportable until collected
	require.True(t, w.isReady())

	ev := w.collect()
	assert.Equal(t, EventIn|EventEdgeTriggered, ev.Events)

	// no transition since the collection
	require.False(t, w.isReady())

	g.AdjustStatus(descriptor.StatusReadable, false)
	require.False(t, w.isReady())
	g.AdjustStatus(descriptor.StatusReadable, true)
	require.True(t, w.isReady())

	w.collect()
	require.False(t, w.isReady())
}

func TestWatchEdgeTriggeredFiresOnArm(t *testing.T) {
	g := descriptor.NewGeneric(3)
	g.AdjustStatus(descriptor.StatusReadable, true)

	w := armedWatch(g, EventIn|EventEdgeTriggered)
	require.True(t, w.isReady())
	w.collect()
	require.False(t, w.isReady())

	// modify re-arms without any transition
	w.setInterest(Event{Events: EventIn | EventEdgeTriggered, Data: 8})
	require.True(t, w.isReady())
	assert.Equal(t, uint64(8), w.collect().Data)
	require.False(t, w.isReady())
}

func TestWatchOneShot(t *testing.T) {
	g := descriptor.NewGeneric(3)
	g.AdjustStatus(descriptor.StatusReadable, true)

	w := armedWatch(g, EventIn|EventOneShot)
	require.True(t, w.isReady())
	w.collect()

	require.False(t, w.isReady())
	g.AdjustStatus(descriptor.StatusReadable, false)
	g.AdjustStatus(descriptor.StatusReadable, true)
	require.False(t, w.isReady())

	w.setInterest(Event{Events: EventIn | EventOneShot})
	require.True(t, w.isReady())
}

func TestWatchNotReportable(t *testing.T) {
	for _, tc := range []struct {
		name  string
		setup func(g *descriptor.Generic, w *watch)
	}{
		{"closed", func(g *descriptor.Generic, w *watch) {
			g.AdjustStatus(descriptor.StatusClosed, true)
		}},
		{"inactive", func(g *descriptor.Generic, w *watch) {
			g.AdjustStatus(descriptor.StatusActive, false)
		}},
		{"removed", func(g *descriptor.Generic, w *watch) {
			w.flags &^= watchWatching
		}},
		{"no interest", func(g *descriptor.Generic, w *watch) {
			w.setInterest(Event{Events: EventOut})
		}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			g := descriptor.NewGeneric(3)
			g.AdjustStatus(descriptor.StatusReadable, true)
			w := armedWatch(g, EventIn)
			require.True(t, w.isReady())

			tc.setup(g, w)
			require.False(t, w.isReady())
		})
	}
}

func TestWatchReferences(t *testing.T) {
	g := descriptor.NewGeneric(3)
	require.Equal(t, 1, g.References())

	w := armedWatch(g, EventIn)
	require.Equal(t, 2, g.References())

	w.retain()
	w.release()
	require.Equal(t, 2, g.References())

	w.release()
	require.Equal(t, 1, g.References())

	require.Panics(t, func() { w.release() })
}
