package scenario_test

import (
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Viet-ph/simepoll/internal/epoll"
	"github.com/Viet-ph/simepoll/internal/queue"
	"github.com/Viet-ph/simepoll/internal/scenario"
)

func run(t *testing.T, data string, opts ...scenario.Option) *scenario.Result {
	t.Helper()
	s, err := scenario.Parse(data)
	require.NoError(t, err)
	res, err := scenario.Run(s, opts...)
	require.NoError(t, err)
	return res
}

func TestLevelTriggeredPipe(t *testing.T) {
	res := run(t, `
until = 10

[[pipe]]
name = "a"

[[control]]
target = "a.read"
events = ["in"]
tag = "reader"

[[write]]
at = 2
pipe = "a"
data = "hello"
`)

	assert.Empty(t, res.Failures)
	assert.Equal(t, []scenario.Record{
		{At: 3, Epoll: "main", Tag: "reader", Events: epoll.EventIn, Bytes: 5},
	}, res.Records)
	assert.Equal(t, 1, res.Resumes)
	assert.Equal(t, " 4", res.Tree)
}

func TestPipeHangUp(t *testing.T) {
	res := run(t, `
until = 10

[[pipe]]
name = "a"

[[control]]
target = "a.read"
events = ["in"]

[[write]]
at = 1
pipe = "a"
data = "abc"

[[close]]
at = 5
target = "a.write"
`)

	assert.Empty(t, res.Failures)
	require.Len(t, res.Records, 2)
	assert.Equal(t, scenario.Record{At: 2, Epoll: "main", Tag: "a.read", Events: epoll.EventIn, Bytes: 3}, res.Records[0])
	assert.Equal(t, scenario.Record{At: 6, Epoll: "main", Tag: "a.read", Events: epoll.EventIn, EOF: true}, res.Records[1])
	assert.Equal(t, "", res.Tree)
}

func TestNestedEdgeTriggered(t *testing.T) {
	res := run(t, `
until = 10

[[pipe]]
name = "a"

[[epoll]]
name = "inner"

[[control]]
target = "inner"
events = ["in"]

[[control]]
epoll = "inner"
target = "a.read"
events = ["in", "et"]
tag = "a"

[[write]]
at = 1
pipe = "a"
data = "x"

[[write]]
at = 4
pipe = "a"
data = "yz"
`)

	assert.Empty(t, res.Failures)
	assert.Equal(t, []scenario.Record{
		{At: 2, Epoll: "main", Tag: "inner", Events: epoll.EventIn},
		{At: 2, Epoll: "inner", Tag: "a", Events: epoll.EventIn | epoll.EventEdgeTriggered, Bytes: 1},
		{At: 5, Epoll: "main", Tag: "inner", Events: epoll.EventIn},
		{At: 5, Epoll: "inner", Tag: "a", Events: epoll.EventIn | epoll.EventEdgeTriggered, Bytes: 2},
	}, res.Records)
	assert.Equal(t, 2, res.Resumes)
	assert.Equal(t, " 4{ 5}", res.Tree)
}

func TestFailures(t *testing.T) {
	res := run(t, `
until = 5

[[pipe]]
name = "a"

[[control]]
target = "a.read"
events = ["in"]

[[control]]
target = "a.read"
events = ["out"]

[[control]]
at = 1
op = "mod"
target = "a.write"
events = ["out"]

[[close]]
at = 1
target = "a.read"

[[close]]
at = 2
target = "a.read"

[[write]]
at = 3
pipe = "a"
data = "x"
`)

	require.Len(t, res.Failures, 4)
	for i, want := range []struct {
		at    queue.SimTime
		errno syscall.Errno
	}{
		{0, syscall.EEXIST},
		{1, syscall.ENOENT},
		{2, syscall.EBADF},
		{3, syscall.EPIPE},
	} {
		assert.Equal(t, want.at, res.Failures[i].At, i)
		assert.ErrorIs(t, res.Failures[i].Err, want.errno, i)
	}
	assert.Equal(t, "EPOLL_CTL_ADD a.read on main", res.Failures[0].Action)
	assert.Empty(t, res.Records)
}

func TestMaxEvents(t *testing.T) {
	s, err := scenario.Parse(`
until = 3

[[pipe]]
name = "a"

[[pipe]]
name = "b"

[[control]]
target = "a.write"
events = ["out", "oneshot"]

[[control]]
target = "b.write"
events = ["out", "oneshot"]
`)
	require.NoError(t, err)

	res, err := scenario.Run(s, scenario.WithMaxEvents(1))
	require.NoError(t, err)
	// one event per resume
	require.Len(t, res.Records, 2)
	assert.Equal(t, queue.SimTime(1), res.Records[0].At)
	assert.Equal(t, queue.SimTime(2), res.Records[1].At)
	assert.Equal(t, 2, res.Resumes)

	_, err = scenario.Run(s, scenario.WithMaxEvents(0))
	assert.Error(t, err)
}

func TestValidation(t *testing.T) {
	for name, data := range map[string]string{
		"unknown target": `
[[control]]
target = "nope"`,
		"unknown epoll": `
[[pipe]]
name = "a"
[[control]]
epoll = "other"
target = "a.read"`,
		"bad op": `
[[pipe]]
name = "a"
[[control]]
op = "toggle"
target = "a.read"`,
		"bad event": `
[[pipe]]
name = "a"
[[control]]
target = "a.read"
events = ["rdhup"]`,
		"duplicate": `
[[epoll]]
name = "main"`,
		"unnamed pipe": `
[[pipe]]
capacity = 4`,
		"unknown pipe": `
[[write]]
pipe = "a"`,
		"unknown close": `
[[close]]
target = "a.read"`,
		"syntax": `until = `,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := scenario.Parse(data)
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenario.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
until = 4

[[pipe]]
name = "a"
capacity = 2

[[control]]
target = "a.write"
events = ["out", "et"]
`), 0o600))

	s, err := scenario.Load(path)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), s.Until)
	require.Len(t, s.Pipes, 1)
	assert.Equal(t, 2, s.Pipes[0].Capacity)
	assert.Equal(t, "main", s.Controls[0].Epoll)

	res, err := scenario.Run(s)
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	assert.Equal(t, epoll.EventOut|epoll.EventEdgeTriggered, res.Records[0].Events)

	_, err = scenario.Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}
