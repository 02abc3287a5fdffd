// Package sensor contains the proximity sensing core: the binary threshold
// sensor contract, a GPIO-backed implementation, and the Fusion state machine
// that combines a primary and a secondary sensor into one debounced,
// confirmed near/far signal.
//
// All sensor state is confined to a single run.Executor goroutine. Methods
// assert the confinement at entry; there is no internal locking.
package sensor

import "time"

// Event is a single threshold crossing reported by a sensor. Below means the
// reading crossed below the threshold: an object is near.
type Event struct {
	Below     bool
	Timestamp time.Time
}

// Listener receives threshold crossing events. Listeners are identified by
// interface equality for Register/Unregister, so implementations must be
// comparable; use a pointer receiver. Bare func types are not comparable
// and cannot serve as listeners.
type Listener interface {
	OnThresholdCrossed(Event)
}

// ThresholdSensor is a binary near/far sensor.
//
// Pause and Resume are idempotent and do not touch the listener set: a
// Resume after Pause resubscribes sampling without duplicating listener
// registrations. A sensor with IsLoaded() == false never calls back and
// treats every other operation as a no-op.
type ThresholdSensor interface {
	// SetTag sets a descriptive tag used in log output.
	SetTag(tag string)

	// SetDelay sets the sampling delay.
	SetDelay(delay time.Duration)

	// Pause stops hardware sampling, keeping listener registrations.
	Pause()

	// Resume restarts hardware sampling if listeners are registered.
	Resume()

	// IsLoaded reports whether the underlying hardware exists.
	IsLoaded() bool

	// Register adds a listener. Registering the same listener twice is
	// logged and ignored.
	Register(listener Listener)

	// Unregister removes a listener.
	Unregister(listener Listener)
}
