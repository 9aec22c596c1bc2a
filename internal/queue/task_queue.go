package queue

import (
	"container/heap"

	fifo "github.com/eapache/queue"
)

// SimTime is a point in (or a distance of) simulated time, in abstract units.
type SimTime uint64

type Task struct {
	callback func()
}

func NewTask(cb func()) *Task {
	return &Task{
		callback: cb,
	}
}

func (task *Task) Execute() {
	if task.callback != nil {
		task.callback()
	}
}

// TaskQueue is the discrete-event scheduler of a simulation. Tasks run one at
// a time on the caller's goroutine; tasks due at the same time run in the
// order they were scheduled.
type TaskQueue struct {
	now      SimTime
	buckets  map[SimTime]*fifo.Queue
	due      timeHeap
	pending  int
	executed uint64
	stopped  bool
}

func NewTaskQueue() *TaskQueue {
	return &TaskQueue{
		buckets: make(map[SimTime]*fifo.Queue),
	}
}

// Now returns the current simulated time.
func (tq *TaskQueue) Now() SimTime { return tq.now }

// Len returns the number of tasks waiting to run.
func (tq *TaskQueue) Len() int { return tq.pending }

// Executed returns the number of tasks run so far.
func (tq *TaskQueue) Executed() uint64 { return tq.executed }

// Schedule runs task delay units after the current time. It reports false,
// without queueing, once the queue has been stopped.
func (tq *TaskQueue) Schedule(task *Task, delay SimTime) bool {
	if tq.stopped || task == nil {
		return false
	}

	at := tq.now + delay
	bucket, ok := tq.buckets[at]
	if !ok {
		bucket = fifo.New()
		tq.buckets[at] = bucket
		heap.Push(&tq.due, at)
	}
	bucket.Add(task)
	tq.pending++
	return true
}

// Step advances the clock to the next due task and runs it. It reports false
// when nothing is left to run.
func (tq *TaskQueue) Step() bool {
	if tq.pending == 0 {
		return false
	}

	at := tq.due[0]
	bucket := tq.buckets[at]
	task := bucket.Remove().(*Task)
	if bucket.Length() == 0 {
		heap.Pop(&tq.due)
		delete(tq.buckets, at)
	}
	tq.pending--

	tq.now = at
	task.Execute()
	tq.executed++
	return true
}

// RunUntil runs every task due at or before end and leaves the clock at end.
// It returns the number of tasks run.
func (tq *TaskQueue) RunUntil(end SimTime) int {
	var n int
	for tq.pending > 0 && tq.due[0] <= end {
		tq.Step()
		n++
	}
	if tq.now < end {
		tq.now = end
	}
	return n
}

// Drain runs tasks until none are left, including tasks scheduled by the
// tasks being run.
func (tq *TaskQueue) Drain() int {
	var n int
	for tq.Step() {
		n++
	}
	return n
}

// Stop makes further Schedule calls fail. Already queued tasks still run.
func (tq *TaskQueue) Stop() {
	tq.stopped = true
}

func (tq *TaskQueue) Stopped() bool { return tq.stopped }

type timeHeap []SimTime

func (h timeHeap) Len() int           { return len(h) }
func (h timeHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h timeHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *timeHeap) Push(x any) { *h = append(*h, x.(SimTime)) }

func (h *timeHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
