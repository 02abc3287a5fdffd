package sensor

import (
	"time"

	"github.com/sweeney/prox-fusion/internal/run"
)

// Check performs one-shot, bounded-time proximity probes against a Fusion.
// Callers that ask while a probe is already in flight share the underlying
// registration; every queued callback is flushed together when the first
// event arrives or the timeout fires, whichever comes first.
type Check struct {
	sensor        *Fusion
	exec          run.Executor
	callbacks     []func(near, ok bool)
	registered    bool
	cancelTimeout run.CancelFunc
	listener      Listener
}

type checkForwarder struct{ c *Check }

func (l *checkForwarder) OnThresholdCrossed(event Event) {
	l.c.resolve(event.Below, true)
}

// NewCheck creates a Check over the given fusion sensor.
func NewCheck(sensor *Fusion, exec run.Executor) *Check {
	c := &Check{sensor: sensor, exec: exec}
	c.listener = &checkForwarder{c}
	sensor.SetTag("prox_check")
	return c
}

// SetTag sets a descriptive tag for the sensor registration.
func (c *Check) SetTag(tag string) {
	c.sensor.SetTag(tag)
}

// Check queries the proximity sensor, delivering (near, true) to callback on
// the first fused event, or (false, false) if the sensor is unavailable or
// no event arrives within timeout.
func (c *Check) Check(timeout time.Duration, callback func(near, ok bool)) {
	c.exec.AssertCurrent()
	if !c.sensor.IsLoaded() {
		callback(false, false)
		return
	}
	c.callbacks = append(c.callbacks, callback)
	if !c.registered {
		c.registered = true
		c.sensor.Register(c.listener)
		c.cancelTimeout = c.exec.ExecuteDelayed(func() {
			c.resolve(false, false)
		}, timeout)
	}
}

// resolve delivers exactly once to all queued callbacks and resets the
// probe. Unregistering happens before the callbacks run, so a callback that
// starts a fresh Check gets a clean registration.
func (c *Check) resolve(near, ok bool) {
	callbacks := c.callbacks
	c.callbacks = nil
	if c.cancelTimeout != nil {
		c.cancelTimeout()
		c.cancelTimeout = nil
	}
	c.sensor.Unregister(c.listener)
	c.registered = false
	for _, callback := range callbacks {
		callback(near, ok)
	}
}
