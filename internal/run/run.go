// Package run provides a serial executor that confines work to a single
// goroutine. All sensor state mutation happens on one Loop; delayed tasks
// (re-arm pings, probe timeouts) are scheduled back onto the same goroutine.
package run

import "time"

// CancelFunc cancels a scheduled task. Calling it more than once, or after
// the task has already run, is a no-op.
type CancelFunc func()

// Executor runs tasks on a single confinement goroutine.
type Executor interface {
	// Execute enqueues f to run on the confinement goroutine.
	Execute(f func())

	// ExecuteDelayed runs f on the confinement goroutine after at least
	// delay has elapsed. The returned CancelFunc prevents f from running
	// if it has not started yet.
	ExecuteDelayed(f func(), delay time.Duration) CancelFunc

	// AssertCurrent panics unless the caller is on the confinement
	// goroutine. State-machine methods call this at entry; running off
	// the loop is a programming error, not a recoverable condition.
	AssertCurrent()
}
