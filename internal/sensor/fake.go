package sensor

import (
	"log"
	"time"
)

// FakeThresholdSensor is a test double that triggers scripted threshold
// events. It starts paused, like real hardware before anyone resumes it, and
// drops triggers while paused or unloaded: a sensor that is not sampling
// does not call back.
type FakeThresholdSensor struct {
	// Loaded controls IsLoaded.
	Loaded bool

	// Paused tracks the pause state. Starts true.
	Paused bool

	// PauseCount and ResumeCount count calls for assertions.
	PauseCount  int
	ResumeCount int

	// Tag and Delay record the last configuration passthrough.
	Tag   string
	Delay time.Duration

	listeners []Listener
}

// NewFakeThresholdSensor creates a fake sensor. loaded controls whether it
// reports hardware as present.
func NewFakeThresholdSensor(loaded bool) *FakeThresholdSensor {
	return &FakeThresholdSensor{Loaded: loaded, Paused: true}
}

// SetTag records the tag.
func (s *FakeThresholdSensor) SetTag(tag string) {
	s.Tag = tag
}

// SetDelay records the delay.
func (s *FakeThresholdSensor) SetDelay(delay time.Duration) {
	s.Delay = delay
}

// Pause marks the sensor paused.
func (s *FakeThresholdSensor) Pause() {
	s.Paused = true
	s.PauseCount++
}

// Resume marks the sensor sampling.
func (s *FakeThresholdSensor) Resume() {
	s.Paused = false
	s.ResumeCount++
}

// IsLoaded reports the configured loaded state.
func (s *FakeThresholdSensor) IsLoaded() bool {
	return s.Loaded
}

// Register adds a listener. Duplicate registration is logged and ignored.
func (s *FakeThresholdSensor) Register(listener Listener) {
	for _, l := range s.listeners {
		if l == listener {
			log.Printf("sensor: fake listener registered multiple times: %v", listener)
			return
		}
	}
	s.listeners = append(s.listeners, listener)
}

// Unregister removes a listener.
func (s *FakeThresholdSensor) Unregister(listener Listener) {
	for i, l := range s.listeners {
		if l == listener {
			s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
			return
		}
	}
}

// ListenerCount returns the number of registered listeners.
func (s *FakeThresholdSensor) ListenerCount() int {
	return len(s.listeners)
}

// Trigger delivers a threshold event to all listeners. Dropped when the
// sensor is unloaded or paused.
func (s *FakeThresholdSensor) Trigger(below bool) {
	s.TriggerAt(below, time.Now())
}

// TriggerAt delivers a threshold event with an explicit timestamp.
func (s *FakeThresholdSensor) TriggerAt(below bool, timestamp time.Time) {
	if !s.Loaded || s.Paused {
		return
	}
	listeners := make([]Listener, len(s.listeners))
	copy(listeners, s.listeners)
	for _, listener := range listeners {
		listener.OnThresholdCrossed(Event{Below: below, Timestamp: timestamp})
	}
}
