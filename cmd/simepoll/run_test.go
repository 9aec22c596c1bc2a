package main

import (
	"bytes"
	"errors"
	"syscall"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"

	"github.com/Viet-ph/simepoll/internal/epoll"
	"github.com/Viet-ph/simepoll/internal/scenario"
)

func TestPrintResult(t *testing.T) {
	saved := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = saved })

	var buf bytes.Buffer
	printResult(&buf, &scenario.Result{
		Records: []scenario.Record{
			{At: 3, Epoll: "main", Tag: "reader", Events: epoll.EventIn, Bytes: 5},
			{At: 6, Epoll: "main", Tag: "reader", Events: epoll.EventIn, EOF: true},
		},
		Failures: []scenario.Failure{
			{At: 0, Action: "write a", Err: syscall.EPIPE},
			{At: 1, Action: "close a", Err: errors.New("gone")},
		},
		Resumes:  2,
		Executed: 7,
		Tree:     " 4",
	}, true)

	out := buf.String()
	assert.Contains(t, out, "t=3     main     reader       EPOLLIN read 5 bytes\n")
	assert.Contains(t, out, "EPOLLIN eof\n")
	assert.Contains(t, out, "! t=0     write a: broken pipe (errno 32)\n")
	assert.Contains(t, out, "close a: gone\n")
	assert.Contains(t, out, "2 events, 2 failures, 2 resumes, 7 tasks\n")
	assert.Contains(t, out, "tree: 4\n")
}
