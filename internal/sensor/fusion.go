package sensor

import (
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/sweeney/prox-fusion/internal/run"
)

// secondaryPingInterval is how long the secondary sensor stays off after it
// contradicted a primary "near" reading before it is resumed for another
// confirmation attempt.
const secondaryPingInterval = 5000 * time.Millisecond

// Fusion combines a primary and a secondary ThresholdSensor into a single
// fused near/far signal.
//
// The primary sensor is a first-pass check. When it reports near, the
// secondary sensor (if present) is woken to confirm, and no fused event is
// emitted until it does; the secondary is the source of truth while both
// are loaded. Far readings are the exception: while not in secondary-safe
// mode a primary "far" is reported immediately without confirmation, since a
// false far is cheap and a false near is not. Keeping the secondary off
// between confirmations is what makes the extra sensor affordable.
//
// Fusion itself implements ThresholdSensor, so consumers see one sensor.
// All methods and sensor callbacks must run on the confinement executor.
type Fusion struct {
	primary   ThresholdSensor
	secondary ThresholdSensor
	exec      run.Executor

	tag                  string
	listeners            []Listener
	paused               bool
	registered           bool
	initializedListeners bool
	secondarySafe        bool
	lastPrimaryEvent     *Event
	lastEvent            *Event

	// cancelSecondary is the pending re-arm of the secondary sensor.
	// At most one may be outstanding; it is nil when none is scheduled.
	cancelSecondary run.CancelFunc

	// alerting guards AlertListeners against re-entrancy: a listener
	// callback may itself call AlertListeners.
	alerting atomic.Bool

	primaryListener   Listener
	secondaryListener Listener
}

// primaryForwarder and secondaryForwarder route sensor callbacks into the
// fusion state machine. Pointer types so they are comparable Listeners.
type primaryForwarder struct{ f *Fusion }

func (l *primaryForwarder) OnThresholdCrossed(event Event) {
	l.f.onPrimarySensorEvent(event)
}

type secondaryForwarder struct{ f *Fusion }

func (l *secondaryForwarder) OnThresholdCrossed(event Event) {
	l.f.onSecondarySensorEvent(event)
}

// NewFusion creates a Fusion over the given sensors. The secondary may
// report IsLoaded() == false, meaning no secondary sensor is configured;
// fusion then passes primary readings through directly.
func NewFusion(primary, secondary ThresholdSensor, exec run.Executor) *Fusion {
	f := &Fusion{
		primary:   primary,
		secondary: secondary,
		exec:      exec,
	}
	f.primaryListener = &primaryForwarder{f}
	f.secondaryListener = &secondaryForwarder{f}
	return f
}

// SetTag sets the log tag, fanned out to both underlying sensors.
func (f *Fusion) SetTag(tag string) {
	f.tag = tag
	f.primary.SetTag(tag + ":primary")
	f.secondary.SetTag(tag + ":secondary")
}

// SetDelay sets the sampling delay on both underlying sensors.
func (f *Fusion) SetDelay(delay time.Duration) {
	f.exec.AssertCurrent()
	f.primary.SetDelay(delay)
	f.secondary.SetDelay(delay)
}

// Pause stops hardware sampling without touching the listener set. Event
// history is forgotten; the next reading after Resume starts fresh.
func (f *Fusion) Pause() {
	f.exec.AssertCurrent()
	f.paused = true
	f.unregisterInternal()
}

// Resume restarts hardware sampling. No-op if no listeners are registered.
func (f *Fusion) Resume() {
	f.exec.AssertCurrent()
	f.paused = false
	f.registerInternal()
}

// SetSecondarySafe marks whether the secondary sensor may stay on
// indefinitely. When safe, the secondary runs regardless of what the primary
// reports; when unsafe it is paused immediately and reverts to on-demand
// confirmation.
func (f *Fusion) SetSecondarySafe(safe bool) {
	f.exec.AssertCurrent()
	f.secondarySafe = safe
	if safe {
		f.secondary.Resume()
	} else {
		f.secondary.Pause()
	}
}

// IsRegistered reports whether fusion is actively subscribed to hardware.
func (f *Fusion) IsRegistered() bool {
	return f.registered
}

// IsSecondarySafe reports whether the secondary sensor may stay on
// indefinitely.
func (f *Fusion) IsSecondarySafe() bool {
	return f.secondarySafe
}

// ListenerCount returns the number of registered listeners.
func (f *Fusion) ListenerCount() int {
	return len(f.listeners)
}

// IsLoaded reports whether a proximity sensor is available at all. The
// primary sensor is required; the secondary is optional.
func (f *Fusion) IsLoaded() bool {
	return f.primary.IsLoaded()
}

// IsNear returns the polarity of the last fused event. ok is false when the
// sensor is not loaded or no fused event has been observed since activation.
func (f *Fusion) IsNear() (near, ok bool) {
	if !f.IsLoaded() || f.lastEvent == nil {
		return false, false
	}
	return f.lastEvent.Below, true
}

// Register adds a listener, subscribing to hardware on the first one. No-op
// if no proximity sensor is available. If fusion is paused the hardware
// subscription waits for Resume.
func (f *Fusion) Register(listener Listener) {
	f.exec.AssertCurrent()
	if !f.IsLoaded() {
		return
	}
	if f.hasListener(listener) {
		f.logf("listener registered multiple times: %v", listener)
	} else {
		f.listeners = append(f.listeners, listener)
	}
	f.registerInternal()
}

// Unregister removes a listener. When the last listener is removed fusion
// unsubscribes from hardware and forgets its event history.
func (f *Fusion) Unregister(listener Listener) {
	f.exec.AssertCurrent()
	f.removeListener(listener)
	if len(f.listeners) == 0 {
		f.unregisterInternal()
	}
}

func (f *Fusion) registerInternal() {
	f.exec.AssertCurrent()
	if f.registered || f.paused || len(f.listeners) == 0 {
		return
	}
	if !f.initializedListeners {
		f.primary.Register(f.primaryListener)
		if !f.secondarySafe {
			f.secondary.Pause()
		}
		f.secondary.Register(f.secondaryListener)
		f.initializedListeners = true
	}
	f.logf("registering sensor listener")
	f.primary.Resume()
	f.registered = true
}

func (f *Fusion) unregisterInternal() {
	f.exec.AssertCurrent()
	if !f.registered {
		return
	}
	f.logf("unregistering sensor listener")
	f.primary.Pause()
	f.secondary.Pause()
	f.cancelSecondaryPing()
	f.lastPrimaryEvent = nil // Forget what we know.
	f.lastEvent = nil
	f.registered = false
}

// AlertListeners re-delivers the last fused event to every current listener.
// A re-entrant call while a broadcast is in flight returns immediately.
func (f *Fusion) AlertListeners() {
	f.exec.AssertCurrent()
	if !f.alerting.CompareAndSwap(false, true) {
		return
	}
	if f.lastEvent != nil {
		event := *f.lastEvent // listeners can clear lastEvent
		listeners := make([]Listener, len(f.listeners))
		copy(listeners, f.listeners)
		for _, listener := range listeners {
			listener.OnThresholdCrossed(event)
		}
	}
	f.alerting.Store(false)
}

func (f *Fusion) onPrimarySensorEvent(event Event) {
	f.exec.AssertCurrent()
	if f.lastPrimaryEvent != nil && event.Below == f.lastPrimaryEvent.Below {
		return
	}

	f.lastPrimaryEvent = &event

	if f.secondarySafe && f.secondary.IsLoaded() {
		f.logf("primary reported %s, checking secondary", nearFar(event.Below))
		if f.cancelSecondary == nil {
			f.secondary.Resume()
		}
		return
	}

	if !f.secondary.IsLoaded() { // No secondary.
		f.onSensorEvent(event)
	} else if event.Below { // Covered? Wake the secondary to confirm.
		f.logf("primary reported near, checking secondary")
		f.cancelSecondaryPing()
		f.secondary.Resume()
	} else { // Uncovered. Report immediately.
		f.onSensorEvent(event)
	}
}

func (f *Fusion) onSecondarySensorEvent(event Event) {
	f.exec.AssertCurrent()

	// Once there is no "near" signal left to confirm and the secondary is
	// not considered safe, it has to go back off.
	if !f.secondarySafe &&
		(f.lastPrimaryEvent == nil || !f.lastPrimaryEvent.Below || !event.Below) {
		f.secondary.Pause()
		if f.lastPrimaryEvent == nil || !f.lastPrimaryEvent.Below {
			// Only check the secondary as long as the primary thinks
			// we're near.
			f.cancelSecondaryPing()
			return
		}
		// Secondary disagrees while the primary still reads near.
		// Check it again in a moment.
		f.cancelSecondaryPing()
		f.cancelSecondary = f.exec.ExecuteDelayed(func() {
			f.cancelSecondary = nil
			f.secondary.Resume()
		}, secondaryPingInterval)
	}
	f.logf("secondary sensor event: %v", event.Below)

	if !f.paused {
		f.onSensorEvent(event)
	}
}

// onSensorEvent is fused-event delivery: debounce on polarity, then store
// and broadcast.
func (f *Fusion) onSensorEvent(event Event) {
	f.exec.AssertCurrent()
	if f.lastEvent != nil && event.Below == f.lastEvent.Below {
		return
	}

	if !f.secondarySafe && !event.Below {
		// Far is settled; nobody needs the secondary right now.
		f.secondary.Pause()
	}

	f.lastEvent = &event
	f.AlertListeners()
}

func (f *Fusion) cancelSecondaryPing() {
	if f.cancelSecondary != nil {
		f.cancelSecondary()
		f.cancelSecondary = nil
	}
}

func (f *Fusion) hasListener(listener Listener) bool {
	for _, l := range f.listeners {
		if l == listener {
			return true
		}
	}
	return false
}

func (f *Fusion) removeListener(listener Listener) {
	for i, l := range f.listeners {
		if l == listener {
			f.listeners = append(f.listeners[:i], f.listeners[i+1:]...)
			return
		}
	}
}

func (f *Fusion) String() string {
	near := "unknown"
	if n, ok := f.IsNear(); ok {
		near = nearFar(n)
	}
	return fmt.Sprintf("{registered=%t paused=%t near=%s secondarySafe=%t}",
		f.registered, f.paused, near, f.secondarySafe)
}

func (f *Fusion) logf(format string, args ...any) {
	if f.tag != "" {
		log.Printf("sensor: [%s] "+format, append([]any{f.tag}, args...)...)
		return
	}
	log.Printf("sensor: "+format, args...)
}

func nearFar(below bool) string {
	if below {
		return "near"
	}
	return "far"
}
