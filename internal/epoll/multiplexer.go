// Package epoll emulates the Linux epoll interface for simulated processes.
//
// A Multiplexer watches virtual descriptors and reproduces level-triggered,
// edge-triggered and one-shot reporting on top of their status bits. It is
// itself a descriptor, so multiplexers nest. Registrations of descriptors
// backed by the real kernel are forwarded to an OS polling instance whose
// events are merged into Collect.
//
// The simulation is cooperatively scheduled: a Multiplexer is never used from
// two goroutines, but its owner may call back into it while being resumed.
package epoll

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/joeycumines/logiface"

	"github.com/Viet-ph/simepoll/internal/descriptor"
	custom_err "github.com/Viet-ph/simepoll/internal/error"
	"github.com/Viet-ph/simepoll/internal/osbackend"
	"github.com/Viet-ph/simepoll/internal/queue"
)

// Process is the simulated application owning a Multiplexer.
type Process interface {
	// WantsNotify reports whether the process is waiting for events on the
	// multiplexer with the given handle.
	WantsNotify(handle descriptor.Handle) bool
	IsRunning() bool
	// Continue resumes the process until it blocks again. The process may
	// call back into the Multiplexer before Continue returns.
	Continue()
	Retain()
	Release()
}

// Host gives the Multiplexer access to the task scheduler and descriptor
// table of the host it lives on.
type Host interface {
	// ScheduleTask runs cb once, delay units from now. It reports false when
	// the task could not be scheduled, e.g. because the simulation is ending.
	ScheduleTask(cb func(), delay queue.SimTime) bool
	descriptor.Closer
}

type state uint8

const (
	stateIdle state = iota
	// a notification task is pending
	stateScheduled
	// inside the owner's Continue
	stateNotifying
	// close requested while a notification task is pending
	stateClosing
	stateClosed
)

func (s state) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateScheduled:
		return "scheduled"
	case stateNotifying:
		return "notifying"
	case stateClosing:
		return "closing"
	case stateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

type Multiplexer struct {
	descriptor.Base

	state       state
	watching    map[descriptor.Handle]*watch
	backend     osbackend.Backend
	owner       Process
	host        Host
	log         *logiface.Logger[logiface.Event]
	notifyDelay queue.SimTime
}

// New creates a multiplexer with the given handle, owned by owner. The caller
// holds the initial reference, normally handed over to the host's descriptor
// table.
func New(handle descriptor.Handle, owner Process, host Host, opts ...Option) *Multiplexer {
	o := resolveOptions(opts)

	m := &Multiplexer{
		watching:    make(map[descriptor.Handle]*watch),
		backend:     o.backend,
		owner:       owner,
		host:        host,
		log:         o.log,
		notifyDelay: o.notifyDelay,
	}
	m.Init(m, descriptor.KindEpoll, handle, m.free)

	// the application may want us to watch real OS files, which we offload
	// to a kernel instance
	if m.backend == nil {
		b, err := osbackend.New(o.backendSize)
		if err != nil {
			m.log.Warning().
				Int("epoll", int(handle)).
				Err(err).
				Log("error creating os polling instance")
			m.backend = osbackend.Unavailable(err)
		} else {
			m.backend = b
		}
	}

	owner.Retain()

	// a multiplexer can always be watched by another one
	m.AdjustStatus(descriptor.StatusActive, true)

	return m
}

// Len returns the number of registered descriptors.
func (m *Multiplexer) Len() int { return len(m.watching) }

// IsReadable reports whether the last readiness check found events.
func (m *Multiplexer) IsReadable() bool {
	return m.Status()&descriptor.StatusReadable != 0
}

// Closed reports whether the application closed the multiplexer.
func (m *Multiplexer) Closed() bool {
	return m.state == stateClosing || m.state == stateClosed
}

// Control adds, modifies or removes the registration of d. ev is ignored for
// OpDel. A failed call leaves the registrations unchanged.
func (m *Multiplexer) Control(op Op, d descriptor.Descriptor, ev *Event) error {
	if d == nil || m.state == stateClosed {
		return custom_err.ErrorBadDescriptor
	}

	m.log.Debug().
		Int("epoll", int(m.Handle())).
		Stringer("op", op).
		Int("descriptor", int(d.Handle())).
		Log("epoll control")

	if d == descriptor.Descriptor(m) {
		return custom_err.ErrorInvalidOperation
	}

	w := m.watching[d.Handle()]

	switch op {
	case OpAdd:
		if w != nil {
			return custom_err.ErrorAlreadyRegistered
		}
		if ev == nil {
			return custom_err.ErrorMissingEvent
		}

		w = newWatch(d, *ev)
		w.flags |= watchWatching
		m.watching[d.Handle()] = w
		d.AddStatusListener(m)

		// the descriptor may already be ready
		m.check()

	case OpMod:
		if w == nil {
			return custom_err.ErrorNotRegistered
		}
		if ev == nil {
			return custom_err.ErrorMissingEvent
		}

		w.setInterest(*ev)
		m.check()

	case OpDel:
		if w == nil {
			return custom_err.ErrorNotRegistered
		}

		// anyone still holding w now sees it as gone; it is freed once the
		// last of them releases it
		w.flags &^= watchWatching
		w.desc.RemoveStatusListener(m)
		delete(m.watching, d.Handle())
		w.release()

		m.check()

	default:
		return custom_err.ErrorInvalidOperation
	}

	return nil
}

// ControlOS forwards a registration of a kernel backed file descriptor to
// the OS polling instance, returning its errno unchanged.
func (m *Multiplexer) ControlOS(op Op, fd int, ev *Event) error {
	if m.state == stateClosed {
		return custom_err.ErrorBadDescriptor
	}

	var (
		events Events
		data   uint64
	)
	if ev != nil {
		events, data = ev.Events, ev.Data
	}

	err := m.backend.Control(op, fd, uint32(events), data)
	if err != nil {
		m.log.Debug().
			Int("epoll", int(m.Handle())).
			Stringer("op", op).
			Int("fd", fd).
			Err(err).
			Log("os epoll control failed")
	}
	return err
}

// Collect fills events with the currently reportable events, virtual ones
// first, then events from the OS polling instance. It returns the number of
// events written.
func (m *Multiplexer) Collect(events []Event) int {
	var n int

	if len(events) > 0 {
		// the pass holds its own references, so removals made while it runs
		// cannot free a watch under it
		pass := make([]*watch, 0, len(m.watching))
		for _, w := range m.watching {
			w.retain()
			pass = append(pass, w)
		}
		for _, w := range pass {
			if n < len(events) && w.isReady() {
				events[n] = w.collect()
				n++
			}
			w.release()
		}
	}

	if space := len(events) - n; space > 0 {
		osEvents, err := m.backend.Drain(space)
		if err != nil {
			m.log.Warning().
				Int("epoll", int(m.Handle())).
				Err(err).
				Log("error collecting os events")
		}
		for _, ev := range osEvents {
			if n == len(events) {
				break
			}
			events[n] = Event{Events: Events(ev.Events), Data: ev.Data}
			n++
		}
	}

	m.log.Debug().
		Int("epoll", int(m.Handle())).
		Int("events", n).
		Log("epoll collected events")

	// we may have consumed everything there was to report
	m.check()

	return n
}

// DescriptorStatusChanged is called by watched descriptors.
func (m *Multiplexer) DescriptorStatusChanged(d descriptor.Descriptor) {
	w, ok := m.watching[d.Handle()]
	if !ok || w.desc != d {
		m.log.Crit().
			Int("epoll", int(m.Handle())).
			Int("descriptor", int(d.Handle())).
			Log("status change from a descriptor that is not watched")
		panic(fmt.Errorf("epoll %d, descriptor %d: %w", m.Handle(), d.Handle(), custom_err.ErrorInconsistentWatch))
	}

	m.log.Trace().
		Int("epoll", int(m.Handle())).
		Int("descriptor", int(d.Handle())).
		Stringer("status", d.Status()).
		Log("watched descriptor status changed")

	m.check()
}

// Close requests the application level close. The multiplexer closes itself
// through the host it was created with; if a notification is pending, that
// happens when it fires.
func (m *Multiplexer) Close(descriptor.Closer) {
	switch m.state {
	case stateIdle, stateNotifying:
		m.teardown()
	case stateScheduled:
		m.state = stateClosing
	}
}

// ChildrenStatus renders the watched handles, marking ready ones with '!' and
// expanding nested multiplexers in braces.
func (m *Multiplexer) ChildrenStatus() string {
	var sb strings.Builder
	m.writeChildrenStatus(&sb)
	return sb.String()
}

func (m *Multiplexer) writeChildrenStatus(sb *strings.Builder) {
	for _, h := range slices.Sorted(maps.Keys(m.watching)) {
		w := m.watching[h]
		fmt.Fprintf(sb, " %d", h)
		if w.isReady() {
			sb.WriteByte('!')
		}
		if child, ok := w.desc.(*Multiplexer); ok {
			sb.WriteByte('{')
			child.writeChildrenStatus(sb)
			sb.WriteByte('}')
		}
	}
}

func (m *Multiplexer) isReady() bool {
	for _, w := range m.watching {
		if w.isReady() {
			return true
		}
	}
	// the OS instance is comparatively expensive to ask
	return m.backend.IsReady()
}

// check refreshes the readable status and schedules a notification for the
// owner if needed.
func (m *Multiplexer) check() {
	// while notifying, the check after Continue returns covers this one
	if m.state != stateIdle && m.state != stateScheduled {
		return
	}

	ready := m.isReady()
	m.AdjustStatus(descriptor.StatusReadable, ready)

	if !ready || m.state != stateIdle || !m.owner.WantsNotify(m.Handle()) {
		return
	}

	// the pending task holds a reference until it ran
	m.Retain()
	if m.host.ScheduleTask(m.notify, m.notifyDelay) {
		m.state = stateScheduled
	} else {
		m.Release()
	}
}

func (m *Multiplexer) notify() {
	defer m.Release()

	switch m.state {
	case stateScheduled:
		m.state = stateIdle
	case stateClosing:
		m.teardown()
		return
	default:
		m.log.Err().
			Int("epoll", int(m.Handle())).
			Stringer("state", m.state).
			Log("notification fired without being scheduled")
		return
	}

	if !m.owner.IsRunning() {
		m.teardown()
		return
	}

	// things may have changed since the task was scheduled
	if !m.isReady() {
		m.log.Trace().
			Int("epoll", int(m.Handle())).
			Log("stale epoll notification")
		return
	}

	m.logChildren("epoll before continue")

	m.state = stateNotifying
	m.owner.Continue()
	if m.state == stateNotifying {
		m.state = stateIdle
	}

	m.logChildren("epoll after continue")

	m.check()
}

func (m *Multiplexer) logChildren(msg string) {
	if b := m.log.Debug(); b.Enabled() {
		b.Int("epoll", int(m.Handle())).
			Str("children", m.ChildrenStatus()).
			Log(msg)
	}
}

func (m *Multiplexer) clearWatchListeners() {
	for _, w := range m.watching {
		w.desc.RemoveStatusListener(m)
	}
}

func (m *Multiplexer) teardown() {
	m.state = stateClosed
	// a parent multiplexer stops reporting us
	m.AdjustStatus(descriptor.StatusClosed, true)
	m.clearWatchListeners()
	m.host.CloseDescriptor(m.Handle())
}

// free runs once the last reference is released.
func (m *Multiplexer) free() {
	for h, w := range m.watching {
		delete(m.watching, h)
		w.desc.RemoveStatusListener(m)
		w.release()
	}

	if err := m.backend.Close(); err != nil {
		m.log.Warning().
			Int("epoll", int(m.Handle())).
			Err(err).
			Log("error closing os polling instance")
	}

	m.owner.Release()

	m.log.Debug().Int("epoll", int(m.Handle())).Log("epoll freed")
}
