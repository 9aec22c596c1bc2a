package config

import (
	"github.com/BurntSushi/toml"
)

var (
	// NotifyDelay is how many simulated time units after becoming ready a
	// multiplexer wakes its owner.
	NotifyDelay uint64 = 1
	// OSBackendSize is the event buffer hint for the OS polling instance.
	OSBackendSize = 1000
	MaxEvents     = 64
	PipeCapacity  = 65536
	LogLevel      = "info"
)

// File is the TOML layout accepted by Load. Absent keys leave the current
// values untouched.
type File struct {
	Epoll struct {
		NotifyDelay   *uint64 `toml:"notify_delay"`
		OSBackendSize *int    `toml:"os_backend_size"`
		MaxEvents     *int    `toml:"max_events"`
		PipeCapacity  *int    `toml:"pipe_capacity"`
	} `toml:"epoll"`
	Log struct {
		Level *string `toml:"level"`
	} `toml:"log"`
}

// Load decodes the TOML file at path into the package variables.
func Load(path string) error {
	var f File
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return err
	}
	f.Apply()
	return nil
}

func (f *File) Apply() {
	if f.Epoll.NotifyDelay != nil {
		NotifyDelay = *f.Epoll.NotifyDelay
	}
	if f.Epoll.OSBackendSize != nil {
		OSBackendSize = *f.Epoll.OSBackendSize
	}
	if f.Epoll.MaxEvents != nil {
		MaxEvents = *f.Epoll.MaxEvents
	}
	if f.Epoll.PipeCapacity != nil {
		PipeCapacity = *f.Epoll.PipeCapacity
	}
	if f.Log.Level != nil {
		LogLevel = *f.Log.Level
	}
}
