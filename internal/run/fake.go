package run

import "time"

// FakeExecutor is a test double that runs Execute tasks inline and holds
// delayed tasks until the clock is advanced manually. Time never moves on
// its own; tests control it with Advance/AdvanceTo.
type FakeExecutor struct {
	// Now is the fake clock. Starts at whatever NewFakeExecutor was given.
	Now time.Time

	delayed []*fakeTask
}

type fakeTask struct {
	due       time.Time
	f         func()
	cancelled bool
	fired     bool
	seq       int
}

// NewFakeExecutor creates a FakeExecutor with the clock set to start.
func NewFakeExecutor(start time.Time) *FakeExecutor {
	return &FakeExecutor{Now: start}
}

// Execute runs f immediately on the calling goroutine.
func (e *FakeExecutor) Execute(f func()) {
	f()
}

// ExecuteDelayed records f to run when the clock reaches Now+delay.
func (e *FakeExecutor) ExecuteDelayed(f func(), delay time.Duration) CancelFunc {
	t := &fakeTask{due: e.Now.Add(delay), f: f, seq: len(e.delayed)}
	e.delayed = append(e.delayed, t)
	return func() {
		t.cancelled = true
	}
}

// AssertCurrent is a no-op: tests drive everything from one goroutine.
func (e *FakeExecutor) AssertCurrent() {}

// Advance moves the clock forward by d, firing due tasks in due order.
func (e *FakeExecutor) Advance(d time.Duration) {
	e.AdvanceTo(e.Now.Add(d))
}

// AdvanceTo moves the clock to t, firing due tasks in due order. Tasks
// scheduled by a firing task are considered in the same pass.
func (e *FakeExecutor) AdvanceTo(t time.Time) {
	for {
		next := e.nextDue(t)
		if next == nil {
			break
		}
		next.fired = true
		if next.due.After(e.Now) {
			e.Now = next.due
		}
		next.f()
	}
	if t.After(e.Now) {
		e.Now = t
	}
}

func (e *FakeExecutor) nextDue(limit time.Time) *fakeTask {
	var next *fakeTask
	for _, task := range e.delayed {
		if task.fired || task.cancelled || task.due.After(limit) {
			continue
		}
		if next == nil || task.due.Before(next.due) ||
			(task.due.Equal(next.due) && task.seq < next.seq) {
			next = task
		}
	}
	return next
}

// Pending returns the number of scheduled tasks that have neither fired nor
// been cancelled.
func (e *FakeExecutor) Pending() int {
	n := 0
	for _, task := range e.delayed {
		if !task.fired && !task.cancelled {
			n++
		}
	}
	return n
}
