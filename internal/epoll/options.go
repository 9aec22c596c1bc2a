package epoll

import (
	"github.com/joeycumines/logiface"

	"github.com/Viet-ph/simepoll/config"
	"github.com/Viet-ph/simepoll/internal/osbackend"
	"github.com/Viet-ph/simepoll/internal/queue"
)

type options struct {
	log         *logiface.Logger[logiface.Event]
	backend     osbackend.Backend
	backendSize int
	notifyDelay queue.SimTime
}

// Option configures a Multiplexer.
type Option func(*options)

// WithLogger sets the logger. A nil logger disables logging.
func WithLogger(log *logiface.Logger[logiface.Event]) Option {
	return func(o *options) {
		o.log = log
	}
}

// WithBackend replaces the OS polling instance the multiplexer would create.
// The multiplexer takes ownership and closes it when freed.
func WithBackend(b osbackend.Backend) Option {
	return func(o *options) {
		o.backend = b
	}
}

// WithBackendSize sets the event buffer hint of the OS polling instance.
func WithBackendSize(size int) Option {
	return func(o *options) {
		o.backendSize = size
	}
}

// WithNotifyDelay sets how long after becoming ready the owner is woken.
func WithNotifyDelay(delay queue.SimTime) Option {
	return func(o *options) {
		o.notifyDelay = delay
	}
}

func resolveOptions(opts []Option) *options {
	o := &options{
		backendSize: config.OSBackendSize,
		notifyDelay: queue.SimTime(config.NotifyDelay),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o
}
