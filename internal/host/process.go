package host

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/Viet-ph/simepoll/internal/descriptor"
)

// Process is a simulated application. It is resumed by calling Continue,
// which runs its resume callback to completion.
type Process struct {
	ID      uuid.UUID
	Name    string
	host    *Host
	running bool
	refs    int
	waiting map[descriptor.Handle]struct{}
	resume  func(p *Process)
	resumes int
}

// NewProcess creates a running process on h. resume is called every time
// the process is continued.
func (h *Host) NewProcess(name string, resume func(p *Process)) *Process {
	return &Process{
		ID:      uuid.New(),
		Name:    name,
		host:    h,
		running: true,
		refs:    1,
		waiting: make(map[descriptor.Handle]struct{}),
		resume:  resume,
	}
}

func (p *Process) Host() *Host { return p.host }

func (p *Process) IsRunning() bool { return p.running }

// Stop marks the process as exited. Pending notifications for it turn into
// teardowns.
func (p *Process) Stop() {
	p.running = false
	p.waiting = make(map[descriptor.Handle]struct{})
}

// WaitOn records that the process is blocked waiting for events on handle.
func (p *Process) WaitOn(handle descriptor.Handle) {
	p.waiting[handle] = struct{}{}
}

func (p *Process) StopWaiting(handle descriptor.Handle) {
	delete(p.waiting, handle)
}

// WantsNotify reports whether the process wants to be woken for handle.
func (p *Process) WantsNotify(handle descriptor.Handle) bool {
	if !p.running {
		return false
	}
	_, ok := p.waiting[handle]
	return ok
}

func (p *Process) Continue() {
	if !p.running {
		return
	}
	p.resumes++
	p.host.log.Debug().
		Stringer("host", p.host.ID).
		Stringer("process", p.ID).
		Str("name", p.Name).
		Int("resumes", p.resumes).
		Log("continuing process")
	if p.resume != nil {
		p.resume(p)
	}
}

// Resumes returns how many times the process has been continued.
func (p *Process) Resumes() int { return p.resumes }

func (p *Process) Retain() { p.refs++ }

func (p *Process) Release() {
	if p.refs <= 0 {
		panic(fmt.Sprintf("process %s: release after free", p.Name))
	}
	p.refs--
}

// References returns the current reference count.
func (p *Process) References() int { return p.refs }
