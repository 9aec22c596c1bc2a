package scenario

import (
	"errors"
	"fmt"
	"io"

	"github.com/joeycumines/logiface"

	"github.com/Viet-ph/simepoll/config"
	"github.com/Viet-ph/simepoll/internal/descriptor"
	"github.com/Viet-ph/simepoll/internal/epoll"
	custom_err "github.com/Viet-ph/simepoll/internal/error"
	"github.com/Viet-ph/simepoll/internal/host"
	"github.com/Viet-ph/simepoll/internal/queue"
)

// Record is one event handed to the process.
type Record struct {
	At     queue.SimTime
	Epoll  string
	Tag    string
	Events epoll.Events
	// Bytes is how much the process read from the pipe in response.
	Bytes int
	// EOF is set when the read hit end of file, after which the process
	// unregistered and closed the read end.
	EOF bool
}

// Failure is an action of the scenario that returned an error.
type Failure struct {
	At     queue.SimTime
	Action string
	Err    error
}

type Result struct {
	Records  []Record
	Failures []Failure
	Resumes  int
	Executed uint64
	// Tree is the ChildrenStatus of the main multiplexer when the run ended,
	// empty if it was closed.
	Tree string
}

type options struct {
	log          *logiface.Logger[logiface.Event]
	maxEvents    int
	pipeCapacity int
}

type Option func(*options)

func WithLogger(log *logiface.Logger[logiface.Event]) Option {
	return func(o *options) { o.log = log }
}

// WithMaxEvents sets the capacity of each Collect call made by the process.
func WithMaxEvents(n int) Option {
	return func(o *options) { o.maxEvents = n }
}

// WithPipeCapacity sets the capacity of pipes that do not specify one.
func WithPipeCapacity(n int) Option {
	return func(o *options) { o.pipeCapacity = n }
}

type runner struct {
	s       *Scenario
	opts    options
	tasks   *queue.TaskQueue
	host    *host.Host
	proc    *host.Process
	epolls  map[string]*epoll.Multiplexer
	targets map[string]descriptor.Descriptor
	handles []descriptor.Handle
	done    bool
	res     Result
}

// Run plays s until its end time, then closes everything it created.
func Run(s *Scenario, opts ...Option) (*Result, error) {
	o := options{
		maxEvents:    config.MaxEvents,
		pipeCapacity: config.PipeCapacity,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.maxEvents <= 0 {
		return nil, fmt.Errorf("max events must be positive, got %d", o.maxEvents)
	}

	r := &runner{
		s:       s,
		opts:    o,
		tasks:   queue.NewTaskQueue(),
		epolls:  make(map[string]*epoll.Multiplexer),
		targets: make(map[string]descriptor.Descriptor),
	}
	r.host = host.New("simepoll", r.tasks, o.log)
	r.proc = r.host.NewProcess("scenario", r.resume)

	r.newEpoll(MainEpoll)
	for _, e := range s.Epolls {
		r.newEpoll(e.Name)
	}
	r.proc.WaitOn(r.epolls[MainEpoll].Handle())

	for _, p := range s.Pipes {
		capacity := p.Capacity
		if capacity == 0 {
			capacity = o.pipeCapacity
		}
		rd, wr := descriptor.NewPipe(r.host.NextHandle(), r.host.NextHandle(), capacity)
		r.register(p.Name+".read", rd)
		r.register(p.Name+".write", wr)
	}

	// same-time actions run controls first, then writes, then closes
	for i, c := range s.Controls {
		r.at(c.At, func() { r.control(i) })
	}
	for _, w := range s.Writes {
		r.at(w.At, func() { r.write(w) })
	}
	for _, c := range s.Closes {
		r.at(c.At, func() { r.close(c) })
	}

	r.tasks.RunUntil(queue.SimTime(s.Until))

	if m := r.epolls[MainEpoll]; !m.Closed() {
		r.res.Tree = m.ChildrenStatus()
	}
	r.res.Resumes = r.proc.Resumes()
	r.res.Executed = r.tasks.Executed()

	r.shutdown()
	return &r.res, nil
}

func (r *runner) newEpoll(name string) {
	m := epoll.New(r.host.NextHandle(), r.proc, r.host, epoll.WithLogger(r.opts.log))
	r.epolls[name] = m
	r.register(name, m)
}

func (r *runner) register(name string, d descriptor.Descriptor) {
	r.host.Register(d)
	r.targets[name] = d
	r.handles = append(r.handles, d.Handle())
}

func (r *runner) at(t uint64, fn func()) {
	r.tasks.Schedule(queue.NewTask(func() {
		if !r.done {
			fn()
		}
	}), queue.SimTime(t))
}

// lookup returns the named target if the host still has it open.
func (r *runner) lookup(name string) (descriptor.Descriptor, error) {
	d := r.targets[name]
	if cur, ok := r.host.Lookup(d.Handle()); !ok || cur != d {
		return nil, custom_err.ErrorBadDescriptor
	}
	if m, ok := d.(*epoll.Multiplexer); ok && m.Closed() {
		return nil, custom_err.ErrorBadDescriptor
	}
	return d, nil
}

func (r *runner) fail(action string, err error) {
	r.opts.log.Warning().
		Uint64("at", uint64(r.tasks.Now())).
		Str("action", action).
		Err(err).
		Log("scenario action failed")
	r.res.Failures = append(r.res.Failures, Failure{At: r.tasks.Now(), Action: action, Err: err})
}

func (r *runner) control(i int) {
	c := r.s.Controls[i]
	action := fmt.Sprintf("%s %s on %s", c.op, c.Target, c.Epoll)

	m, err := r.lookup(c.Epoll)
	if err != nil {
		r.fail(action, err)
		return
	}
	d, err := r.lookup(c.Target)
	if err != nil {
		r.fail(action, err)
		return
	}

	var ev *epoll.Event
	if c.op != epoll.OpDel {
		// the index leads back to the tag when the event is collected
		ev = &epoll.Event{Events: c.events, Data: uint64(i)}
	}
	if err := m.(*epoll.Multiplexer).Control(c.op, d, ev); err != nil {
		r.fail(action, err)
	}
}

func (r *runner) write(w Write) {
	action := "write " + w.Pipe
	d, err := r.lookup(w.Pipe + ".write")
	if err != nil {
		r.fail(action, err)
		return
	}
	n, err := d.(*descriptor.PipeEnd).Write([]byte(w.Data))
	if err != nil {
		r.fail(action, err)
		return
	}
	if n < len(w.Data) {
		r.fail(action, fmt.Errorf("short write of %d/%d bytes: %w", n, len(w.Data), io.ErrShortWrite))
	}
}

func (r *runner) close(c Close) {
	action := "close " + c.Target
	d, err := r.lookup(c.Target)
	if err != nil {
		r.fail(action, err)
		return
	}
	if err := r.host.Close(d.Handle()); err != nil {
		r.fail(action, err)
	}
}

func (r *runner) resume(*host.Process) {
	r.collect(MainEpoll, r.epolls[MainEpoll])
}

func (r *runner) collect(name string, m *epoll.Multiplexer) {
	events := make([]epoll.Event, r.opts.maxEvents)
	n := m.Collect(events)

	for _, ev := range events[:n] {
		rec := Record{At: r.tasks.Now(), Epoll: name, Events: ev.Events}
		if ev.Data >= uint64(len(r.s.Controls)) {
			rec.Tag = fmt.Sprintf("os:%d", ev.Data)
			r.res.Records = append(r.res.Records, rec)
			continue
		}

		c := r.s.Controls[ev.Data]
		rec.Tag = c.Tag
		target := r.targets[c.Target]

		if pe, ok := target.(*descriptor.PipeEnd); ok && ev.Events&epoll.EventIn != 0 {
			rec.Bytes, rec.EOF = drain(pe)
			if rec.EOF {
				r.hangUp(m, c.Target, pe)
			}
		}
		r.res.Records = append(r.res.Records, rec)

		if nested, ok := target.(*epoll.Multiplexer); ok && ev.Events&epoll.EventIn != 0 {
			r.collect(c.Target, nested)
		}
	}
}

// hangUp is what the process does on end of file: stop watching the read end
// and close it.
func (r *runner) hangUp(m *epoll.Multiplexer, name string, pe *descriptor.PipeEnd) {
	if err := m.Control(epoll.OpDel, pe, nil); err != nil {
		r.fail("EPOLL_CTL_DEL "+name, err)
	}
	if err := r.host.Close(pe.Handle()); err != nil {
		r.fail("close "+name, err)
	}
}

func drain(pe *descriptor.PipeEnd) (int, bool) {
	var (
		total int
		buf   = make([]byte, 4096)
	)
	for {
		n, err := pe.Read(buf)
		total += n
		if errors.Is(err, io.EOF) {
			return total, true
		}
		if err != nil {
			return total, false
		}
	}
}

func (r *runner) shutdown() {
	r.done = true
	r.tasks.Stop()
	r.proc.Stop()

	for _, h := range r.handles {
		if _, ok := r.host.Lookup(h); ok {
			if err := r.host.Close(h); err != nil {
				r.fail(fmt.Sprintf("close %d", h), err)
			}
		}
	}
	// lets deferred closes of multiplexers with a pending notification finish
	r.tasks.Drain()
}
