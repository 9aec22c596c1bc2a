// Package scenario describes small simulations in TOML and runs them against
// a host with one process blocked on a multiplexer.
package scenario

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/Viet-ph/simepoll/internal/epoll"
)

// MainEpoll is the name of the multiplexer the process waits on. It always
// exists.
const MainEpoll = "main"

type Scenario struct {
	// Until is the simulated time the run stops at.
	Until    uint64    `toml:"until"`
	Pipes    []Pipe    `toml:"pipe"`
	Epolls   []Epoll   `toml:"epoll"`
	Controls []Control `toml:"control"`
	Writes   []Write   `toml:"write"`
	Closes   []Close   `toml:"close"`
}

// Pipe creates the targets "<name>.read" and "<name>.write".
type Pipe struct {
	Name     string `toml:"name"`
	Capacity int    `toml:"capacity"`
}

// Epoll is an extra multiplexer owned by the process, usually watched by
// another one.
type Epoll struct {
	Name string `toml:"name"`
}

// Control is one registration change, applied at time At.
type Control struct {
	At     uint64   `toml:"at"`
	Epoll  string   `toml:"epoll"`
	Op     string   `toml:"op"`
	Target string   `toml:"target"`
	Events []string `toml:"events"`
	// Tag names the registration in the output. Defaults to the target.
	Tag string `toml:"tag"`

	op     epoll.Op
	events epoll.Events
}

type Write struct {
	At   uint64 `toml:"at"`
	Pipe string `toml:"pipe"`
	Data string `toml:"data"`
}

// Close is an application close of any target.
type Close struct {
	At     uint64 `toml:"at"`
	Target string `toml:"target"`
}

// Load reads and validates the scenario file at path.
func Load(path string) (*Scenario, error) {
	var s Scenario
	if _, err := toml.DecodeFile(path, &s); err != nil {
		return nil, err
	}
	if err := s.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &s, nil
}

// Parse decodes and validates a scenario held in memory.
func Parse(data string) (*Scenario, error) {
	var s Scenario
	if _, err := toml.Decode(data, &s); err != nil {
		return nil, err
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func parseOp(name string) (epoll.Op, error) {
	switch strings.ToLower(name) {
	case "", "add":
		return epoll.OpAdd, nil
	case "mod":
		return epoll.OpMod, nil
	case "del":
		return epoll.OpDel, nil
	default:
		return 0, fmt.Errorf("unknown control op %q", name)
	}
}

func (s *Scenario) validate() error {
	targets := map[string]bool{MainEpoll: true}
	epolls := map[string]bool{MainEpoll: true}
	pipes := make(map[string]bool)

	add := func(name string) error {
		if name == "" {
			return fmt.Errorf("missing name")
		}
		if targets[name] {
			return fmt.Errorf("duplicate target %q", name)
		}
		targets[name] = true
		return nil
	}

	for _, p := range s.Pipes {
		if p.Name == "" {
			return fmt.Errorf("pipe: missing name")
		}
		if p.Capacity < 0 {
			return fmt.Errorf("pipe %q: negative capacity", p.Name)
		}
		if err := add(p.Name + ".read"); err != nil {
			return fmt.Errorf("pipe: %w", err)
		}
		if err := add(p.Name + ".write"); err != nil {
			return fmt.Errorf("pipe: %w", err)
		}
		pipes[p.Name] = true
	}
	for _, e := range s.Epolls {
		if err := add(e.Name); err != nil {
			return fmt.Errorf("epoll: %w", err)
		}
		epolls[e.Name] = true
	}

	for i := range s.Controls {
		c := &s.Controls[i]
		if c.Epoll == "" {
			c.Epoll = MainEpoll
		}
		if !epolls[c.Epoll] {
			return fmt.Errorf("control %d: unknown epoll %q", i, c.Epoll)
		}
		if !targets[c.Target] {
			return fmt.Errorf("control %d: unknown target %q", i, c.Target)
		}
		if c.Tag == "" {
			c.Tag = c.Target
		}

		var err error
		if c.op, err = parseOp(c.Op); err != nil {
			return fmt.Errorf("control %d: %w", i, err)
		}
		if c.events, err = epoll.ParseEvents(c.Events); err != nil {
			return fmt.Errorf("control %d: %w", i, err)
		}
	}
	for i, w := range s.Writes {
		if !pipes[w.Pipe] {
			return fmt.Errorf("write %d: unknown pipe %q", i, w.Pipe)
		}
	}
	for i, c := range s.Closes {
		if !targets[c.Target] {
			return fmt.Errorf("close %d: unknown target %q", i, c.Target)
		}
	}
	return nil
}
