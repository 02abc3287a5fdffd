package run

import (
	"bytes"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// Loop is the real Executor: a single long-lived goroutine draining a task
// queue. Everything submitted via Execute and ExecuteDelayed runs there, in
// submission order for same-time tasks.
type Loop struct {
	mu      sync.Mutex
	tasks   chan func()
	done    chan struct{}
	stopped bool
	gid     int64
}

// NewLoop starts the confinement goroutine and returns the Loop.
func NewLoop() *Loop {
	l := &Loop{
		tasks: make(chan func(), 64),
		done:  make(chan struct{}),
	}
	ready := make(chan struct{})
	go l.loop(ready)
	<-ready
	return l
}

func (l *Loop) loop(ready chan struct{}) {
	atomic.StoreInt64(&l.gid, goroutineID())
	close(ready)
	defer close(l.done)
	for f := range l.tasks {
		f()
	}
}

// Execute enqueues f on the loop goroutine. Tasks submitted after Stop are
// dropped.
func (l *Loop) Execute(f func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped {
		return
	}
	l.tasks <- f
}

// ExecuteDelayed schedules f to run on the loop goroutine after at least
// delay. The cancelled flag is checked on the loop goroutine itself, so a
// cancel that races the timer still wins if it lands before the task runs.
func (l *Loop) ExecuteDelayed(f func(), delay time.Duration) CancelFunc {
	var cancelled atomic.Bool
	timer := time.AfterFunc(delay, func() {
		l.Execute(func() {
			if cancelled.Load() {
				return
			}
			f()
		})
	})
	return func() {
		cancelled.Store(true)
		timer.Stop()
	}
}

// AssertCurrent panics unless called from the loop goroutine.
func (l *Loop) AssertCurrent() {
	if goroutineID() != atomic.LoadInt64(&l.gid) {
		panic("run: method called off the confinement loop")
	}
}

// Stop drains queued tasks and shuts down the loop goroutine. It blocks
// until the loop has exited. Safe to call more than once.
func (l *Loop) Stop() {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		<-l.done
		return
	}
	l.stopped = true
	close(l.tasks)
	l.mu.Unlock()
	<-l.done
}

// goroutineID parses the current goroutine's id from its stack header
// ("goroutine 42 [running]:"). Only used for the confinement assertion.
func goroutineID() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	fields := bytes.Fields(buf[:n])
	if len(fields) < 2 {
		return -1
	}
	id, err := strconv.ParseInt(string(fields[1]), 10, 64)
	if err != nil {
		return -1
	}
	return id
}
