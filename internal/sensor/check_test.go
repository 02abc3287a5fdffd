package sensor

import (
	"testing"
	"time"
)

type checkResult struct {
	near  bool
	ok    bool
	count int
}

func (r *checkResult) callback(near, ok bool) {
	r.near = near
	r.ok = ok
	r.count++
}

func TestCheckDeliversFirstEvent(t *testing.T) {
	fusion, primary, _, exec := newTestFusion(true, false)
	check := NewCheck(fusion, exec)

	var result checkResult
	check.Check(time.Second, result.callback)

	if fusion.ListenerCount() != 1 {
		t.Fatalf("expected one probe registration, got %d", fusion.ListenerCount())
	}

	primary.Trigger(true)

	if result.count != 1 {
		t.Fatalf("callback count: got %d, want 1", result.count)
	}
	if !result.near || !result.ok {
		t.Errorf("result: got (%t, %t), want (true, true)", result.near, result.ok)
	}
	if fusion.ListenerCount() != 0 {
		t.Error("probe should unregister after delivering")
	}

	// The timeout was cancelled; it must not deliver a second result.
	exec.Advance(2 * time.Second)
	if result.count != 1 {
		t.Errorf("callback count after timeout window: got %d, want 1", result.count)
	}
}

func TestCheckTimeout(t *testing.T) {
	fusion, _, _, exec := newTestFusion(true, false)
	check := NewCheck(fusion, exec)

	var result checkResult
	check.Check(time.Second, result.callback)

	exec.Advance(time.Second)

	if result.count != 1 {
		t.Fatalf("callback count: got %d, want 1", result.count)
	}
	if result.ok {
		t.Error("timeout should deliver no value")
	}
	if fusion.ListenerCount() != 0 {
		t.Error("probe should unregister after timing out")
	}
}

func TestCheckNotLoaded(t *testing.T) {
	fusion, _, _, exec := newTestFusion(false, false)
	check := NewCheck(fusion, exec)

	var result checkResult
	check.Check(time.Second, result.callback)

	if result.count != 1 || result.ok {
		t.Errorf("expected immediate empty result, got count=%d ok=%t", result.count, result.ok)
	}
	if exec.Pending() != 0 {
		t.Error("no timeout should be armed for an unloaded sensor")
	}
}

func TestCheckSharesRegistration(t *testing.T) {
	fusion, primary, _, exec := newTestFusion(true, false)
	check := NewCheck(fusion, exec)

	var first, second checkResult
	check.Check(time.Second, first.callback)
	check.Check(time.Second, second.callback)

	if fusion.ListenerCount() != 1 {
		t.Fatalf("concurrent probes should share one registration, got %d", fusion.ListenerCount())
	}

	primary.Trigger(false)

	if first.count != 1 || second.count != 1 {
		t.Errorf("both callbacks should flush together: got %d and %d", first.count, second.count)
	}
	if first.near || !first.ok {
		t.Errorf("first result: got (%t, %t), want (false, true)", first.near, first.ok)
	}
}

func TestCheckReusableAfterResolution(t *testing.T) {
	fusion, primary, _, exec := newTestFusion(true, false)
	check := NewCheck(fusion, exec)

	var first checkResult
	check.Check(time.Second, first.callback)
	primary.Trigger(true)

	var second checkResult
	check.Check(time.Second, second.callback)
	if fusion.ListenerCount() != 1 {
		t.Fatalf("expected a fresh registration, got %d listeners", fusion.ListenerCount())
	}

	// History was cleared by the probe's unregister, so a new event is
	// needed for the second probe.
	primary.Trigger(false)

	if second.count != 1 {
		t.Fatalf("second callback count: got %d, want 1", second.count)
	}
	if second.near || !second.ok {
		t.Errorf("second result: got (%t, %t), want (false, true)", second.near, second.ok)
	}
}
