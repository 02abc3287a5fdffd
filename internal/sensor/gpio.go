package sensor

import (
	"log"
	"time"

	"github.com/sweeney/prox-fusion/internal/gpio"
	"github.com/sweeney/prox-fusion/internal/run"
)

// DefaultSamplingDelay is how often a GPIOSensor reads its line unless
// SetDelay says otherwise.
const DefaultSamplingDelay = 100 * time.Millisecond

// GPIOSensor is a ThresholdSensor over a single binary GPIO line (IR
// proximity module style: line active = object near = below threshold).
//
// The line is polled on the confinement executor via a self-rescheduling
// delayed task. An event is emitted on the first sample after sampling
// starts and on every level change after that; the raw history resets on
// Resume so consumers get a fresh reading after a pause cycle.
type GPIOSensor struct {
	exec   run.Executor
	reader gpio.Reader

	tag       string
	delay     time.Duration
	listeners []Listener
	paused    bool
	sampling  bool
	lastRaw   *bool

	cancelSample run.CancelFunc
	now          func() time.Time
}

// NewGPIOSensor creates a GPIOSensor polling the given reader. A nil reader
// means no hardware: the sensor reports IsLoaded() == false and never emits.
func NewGPIOSensor(reader gpio.Reader, exec run.Executor) *GPIOSensor {
	return &GPIOSensor{
		exec:   exec,
		reader: reader,
		delay:  DefaultSamplingDelay,
		now:    time.Now,
	}
}

// SetTag sets the log tag.
func (s *GPIOSensor) SetTag(tag string) {
	s.tag = tag
}

// SetDelay sets the sampling delay. Takes effect on the next sample.
func (s *GPIOSensor) SetDelay(delay time.Duration) {
	s.exec.AssertCurrent()
	if delay <= 0 {
		delay = DefaultSamplingDelay
	}
	s.delay = delay
}

// IsLoaded reports whether a GPIO line is attached.
func (s *GPIOSensor) IsLoaded() bool {
	return s.reader != nil
}

// Register adds a listener and starts sampling if not paused. No-op when no
// hardware is attached.
func (s *GPIOSensor) Register(listener Listener) {
	s.exec.AssertCurrent()
	if !s.IsLoaded() {
		return
	}
	for _, l := range s.listeners {
		if l == listener {
			s.logf("listener registered multiple times: %v", listener)
			return
		}
	}
	s.listeners = append(s.listeners, listener)
	s.startSampling()
}

// Unregister removes a listener, stopping sampling when none remain.
func (s *GPIOSensor) Unregister(listener Listener) {
	s.exec.AssertCurrent()
	for i, l := range s.listeners {
		if l == listener {
			s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
			break
		}
	}
	if len(s.listeners) == 0 {
		s.stopSampling()
	}
}

// Pause stops sampling without touching the listener set. Idempotent.
func (s *GPIOSensor) Pause() {
	s.exec.AssertCurrent()
	s.paused = true
	s.stopSampling()
}

// Resume restarts sampling if listeners are registered. Idempotent.
func (s *GPIOSensor) Resume() {
	s.exec.AssertCurrent()
	s.paused = false
	s.startSampling()
}

func (s *GPIOSensor) startSampling() {
	if s.sampling || s.paused || len(s.listeners) == 0 || !s.IsLoaded() {
		return
	}
	s.sampling = true
	s.lastRaw = nil // fresh reading after resubscription
	s.exec.Execute(s.sample)
}

func (s *GPIOSensor) stopSampling() {
	s.sampling = false
	if s.cancelSample != nil {
		s.cancelSample()
		s.cancelSample = nil
	}
}

func (s *GPIOSensor) sample() {
	if !s.sampling {
		return
	}

	raw, err := s.reader.Read()
	if err != nil {
		s.logf("read error: %v", err)
	} else if s.lastRaw == nil || *s.lastRaw != raw {
		v := raw
		s.lastRaw = &v
		s.emit(Event{Below: raw, Timestamp: s.now()})
	}

	s.cancelSample = s.exec.ExecuteDelayed(s.sample, s.delay)
}

func (s *GPIOSensor) emit(event Event) {
	listeners := make([]Listener, len(s.listeners))
	copy(listeners, s.listeners)
	for _, listener := range listeners {
		listener.OnThresholdCrossed(event)
	}
}

func (s *GPIOSensor) logf(format string, args ...any) {
	if s.tag != "" {
		log.Printf("sensor: [%s] "+format, append([]any{s.tag}, args...)...)
		return
	}
	log.Printf("sensor: "+format, args...)
}
