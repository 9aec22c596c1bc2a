package descriptor

import (
	"io"
	"syscall"

	custom_err "github.com/Viet-ph/simepoll/internal/error"
)

// Generic is a descriptor whose status is driven entirely by its owner
// through AdjustStatus. It stands in for sockets and timers the simulation
// does not model in detail.
type Generic struct {
	Base
}

func NewGeneric(handle Handle) *Generic {
	g := &Generic{}
	g.Init(g, KindGeneric, handle, nil)
	g.AdjustStatus(StatusActive, true)
	return g
}

type pipe struct {
	buf          []byte
	capacity     int
	reader       *PipeEnd
	writer       *PipeEnd
	readerClosed bool
	writerClosed bool
}

// PipeEnd is one side of a bounded in-memory pipe.
type PipeEnd struct {
	Base
	p    *pipe
	read bool
}

// NewPipe returns the read and write ends of a pipe holding at most capacity
// bytes.
func NewPipe(readHandle, writeHandle Handle, capacity int) (*PipeEnd, *PipeEnd) {
	p := &pipe{capacity: capacity}
	p.reader = &PipeEnd{p: p, read: true}
	p.reader.Init(p.reader, KindPipe, readHandle, nil)
	p.writer = &PipeEnd{p: p}
	p.writer.Init(p.writer, KindPipe, writeHandle, nil)

	p.reader.AdjustStatus(StatusActive, true)
	p.writer.AdjustStatus(StatusActive, true)
	p.update()
	return p.reader, p.writer
}

// Buffered returns the number of bytes waiting to be read.
func (e *PipeEnd) Buffered() int { return len(e.p.buf) }

// Write appends as much of b as fits. It returns EAGAIN when nothing fits and
// EPIPE once the read end is closed.
func (e *PipeEnd) Write(b []byte) (int, error) {
	if e.read || e.p.writerClosed {
		return 0, custom_err.ErrorBadDescriptor
	}
	if e.p.readerClosed {
		return 0, syscall.EPIPE
	}

	space := e.p.capacity - len(e.p.buf)
	if space <= 0 {
		return 0, syscall.EAGAIN
	}
	n := min(space, len(b))
	e.p.buf = append(e.p.buf, b[:n]...)
	e.p.update()
	return n, nil
}

// Read drains up to len(b) bytes. It returns EAGAIN while the pipe is empty
// and the writer is open, and io.EOF after the writer closed.
func (e *PipeEnd) Read(b []byte) (int, error) {
	if !e.read || e.p.readerClosed {
		return 0, custom_err.ErrorBadDescriptor
	}
	if len(e.p.buf) == 0 {
		if e.p.writerClosed {
			return 0, io.EOF
		}
		return 0, syscall.EAGAIN
	}

	n := copy(b, e.p.buf)
	e.p.buf = e.p.buf[n:]
	e.p.update()
	return n, nil
}

func (e *PipeEnd) Close(c Closer) {
	if e.read {
		e.p.readerClosed = true
	} else {
		e.p.writerClosed = true
	}
	e.Base.Close(c)
	e.p.update()
}

func (p *pipe) update() {
	if !p.readerClosed {
		p.reader.AdjustStatus(StatusReadable, len(p.buf) > 0 || p.writerClosed)
	}
	if !p.writerClosed {
		p.writer.AdjustStatus(StatusWritable, len(p.buf) < p.capacity && !p.readerClosed)
	}
}
