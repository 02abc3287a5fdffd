package main

import (
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/sweeney/prox-fusion/internal/mqtt"
	"github.com/sweeney/prox-fusion/internal/run"
	"github.com/sweeney/prox-fusion/internal/sensor"
	"github.com/sweeney/prox-fusion/internal/status"
)

// TestEnvVarNames verifies the env var constants match what pi-helper writes
// to /run/pi-helper.env. If pi-helper changes its var names, this test fails
// and we update the constants, not the other way around.
func TestEnvVarNames(t *testing.T) {
	// These are the canonical names from pi-helper.
	want := map[string]string{
		"NETWORK_TYPE":        envNetworkType,
		"NETWORK_IP":          envNetworkIP,
		"NETWORK_STATUS":      envNetworkStatus,
		"NETWORK_GATEWAY":     envNetworkGateway,
		"NETWORK_WIFI_STATUS": envNetworkWifiStatus,
		"NETWORK_WIFI_SSID":   envNetworkWifiSSID,
	}
	for canonical, got := range want {
		if got != canonical {
			t.Errorf("env var constant: got %q, want %q", got, canonical)
		}
	}
}

func TestReadNetworkInfoAllSet(t *testing.T) {
	t.Setenv(envNetworkType, "wifi")
	t.Setenv(envNetworkIP, "192.168.1.100")
	t.Setenv(envNetworkStatus, "connected")
	t.Setenv(envNetworkGateway, "192.168.1.1")
	t.Setenv(envNetworkWifiStatus, "connected")
	t.Setenv(envNetworkWifiSSID, "MyNetwork")

	info := readNetworkInfo()
	if info == nil {
		t.Fatal("expected non-nil NetworkInfo")
	}

	want := &status.NetworkInfo{
		Type:       "wifi",
		IP:         "192.168.1.100",
		Status:     "connected",
		Gateway:    "192.168.1.1",
		WifiStatus: "connected",
		SSID:       "MyNetwork",
	}

	if *info != *want {
		t.Errorf("NetworkInfo: got %+v, want %+v", info, want)
	}
}

func TestReadNetworkInfoNoneSet(t *testing.T) {
	info := readNetworkInfo()
	if info != nil {
		t.Errorf("expected nil when NETWORK_STATUS is unset, got %+v", info)
	}
}

func TestReadNetworkInfoPartial(t *testing.T) {
	t.Setenv(envNetworkStatus, "connected")

	info := readNetworkInfo()
	if info == nil {
		t.Fatal("expected non-nil NetworkInfo when NETWORK_STATUS is set")
	}
	if info.Status != "connected" {
		t.Errorf("Status: got %q, want %q", info.Status, "connected")
	}
	if info.Type != "" || info.IP != "" || info.Gateway != "" || info.SSID != "" {
		t.Errorf("unset fields should be empty, got %+v", info)
	}
}

func TestStateString(t *testing.T) {
	if got := stateString(true); got != "NEAR" {
		t.Errorf("stateString(true): got %q", got)
	}
	if got := stateString(false); got != "FAR" {
		t.Errorf("stateString(false): got %q", got)
	}
}

// --- runLoop tests ---

// daemonHarness wires a real confinement loop, fake sensors, fusion, and a
// fake publisher the way runDaemon does.
type daemonHarness struct {
	loop      *run.Loop
	primary   *sensor.FakeThresholdSensor
	secondary *sensor.FakeThresholdSensor
	fusion    *sensor.Fusion
	publisher *mqtt.FakePublisher
	tracker   *status.Tracker

	tick chan time.Time
	sig  chan os.Signal
	done chan error
}

func newDaemonHarness(t *testing.T) *daemonHarness {
	t.Helper()
	h := &daemonHarness{
		loop:      run.NewLoop(),
		primary:   sensor.NewFakeThresholdSensor(true),
		secondary: sensor.NewFakeThresholdSensor(true),
		publisher: mqtt.NewFakePublisher(),
		tracker:   status.NewTracker(time.Now(), status.Config{}),
		tick:      make(chan time.Time),
		sig:       make(chan os.Signal, 1),
		done:      make(chan error, 1),
	}
	t.Cleanup(h.loop.Stop)

	h.fusion = sensor.NewFusion(h.primary, h.secondary, h.loop)
	listener := &proximityPublisher{fusion: h.fusion, publisher: h.publisher, tracker: h.tracker}
	onLoop(h.loop, func() {
		h.fusion.SetTag("test")
		h.fusion.Register(listener)
	})

	go func() {
		h.done <- runLoop(h.loop, h.fusion, h.publisher, nil, h.tracker, time.Now, h.tick, h.sig)
	}()
	return h
}

// trigger fires a primary (and optionally confirming secondary) event on the
// confinement loop.
func (h *daemonHarness) trigger(t *testing.T, below bool) {
	t.Helper()
	onLoop(h.loop, func() {
		h.primary.Trigger(below)
		h.secondary.Trigger(below)
	})
}

func (h *daemonHarness) shutdown(t *testing.T, sig os.Signal) {
	t.Helper()
	h.sig <- sig
	select {
	case err := <-h.done:
		if err != nil {
			t.Fatalf("runLoop returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("runLoop did not return after signal")
	}
}

func TestRunLoopShutdownOnSigterm(t *testing.T) {
	h := newDaemonHarness(t)
	h.shutdown(t, syscall.SIGTERM)

	if len(h.publisher.SystemEvents) != 1 {
		t.Fatalf("system events: got %d, want 1", len(h.publisher.SystemEvents))
	}
	se := h.publisher.SystemEvents[0]
	if se.Event != "SHUTDOWN" {
		t.Errorf("event: got %q, want SHUTDOWN", se.Event)
	}
	if se.Reason != "SIGTERM" {
		t.Errorf("reason: got %q, want SIGTERM", se.Reason)
	}
	if !se.Retained {
		t.Error("shutdown event should be retained")
	}

	// The signal handler pauses fusion before publishing.
	onLoop(h.loop, func() {
		if h.fusion.IsRegistered() {
			t.Error("fusion should be unregistered from hardware after shutdown")
		}
	})
}

func TestRunLoopShutdownOnSigint(t *testing.T) {
	h := newDaemonHarness(t)
	h.shutdown(t, syscall.SIGINT)

	if len(h.publisher.SystemEvents) != 1 {
		t.Fatalf("system events: got %d, want 1", len(h.publisher.SystemEvents))
	}
	if got := h.publisher.SystemEvents[0].Reason; got != "SIGINT" {
		t.Errorf("reason: got %q, want SIGINT", got)
	}
}

func TestRunLoopPublishesFusedEvents(t *testing.T) {
	h := newDaemonHarness(t)

	h.trigger(t, false)
	h.trigger(t, true)
	h.trigger(t, false)
	h.shutdown(t, syscall.SIGTERM)

	if len(h.publisher.Events) != 3 {
		t.Fatalf("events: got %d, want 3", len(h.publisher.Events))
	}
	want := []bool{false, true, false}
	for i, w := range want {
		if h.publisher.Events[i].Near != w {
			t.Errorf("event %d: near=%t, want %t", i, h.publisher.Events[i].Near, w)
		}
		if h.publisher.Events[i].Source != "fused" {
			t.Errorf("event %d: source=%q, want fused", i, h.publisher.Events[i].Source)
		}
	}

	snap := h.tracker.Snapshot()
	if snap.Counts.Near != 1 || snap.Counts.Far != 2 {
		t.Errorf("counts: near=%d far=%d, want 1/2", snap.Counts.Near, snap.Counts.Far)
	}
	if snap.Near != status.StateFar {
		t.Errorf("tracked state: got %q, want FAR", snap.Near)
	}
}

func TestRunLoopHeartbeat(t *testing.T) {
	h := newDaemonHarness(t)

	h.trigger(t, false)
	h.tick <- time.Time{}
	h.tick <- time.Time{}
	h.shutdown(t, syscall.SIGTERM)

	heartbeats := 0
	for _, se := range h.publisher.SystemEvents {
		if se.Event == "HEARTBEAT" {
			heartbeats++
			if se.Retained {
				t.Error("heartbeat must not be retained")
			}
			if len(se.RawPayload) == 0 {
				t.Error("heartbeat should carry a status snapshot")
			}
		}
	}
	if heartbeats != 2 {
		t.Errorf("heartbeats: got %d, want 2", heartbeats)
	}
	if last := h.publisher.SystemEvents[len(h.publisher.SystemEvents)-1]; last.Event != "SHUTDOWN" {
		t.Errorf("last system event: got %q, want SHUTDOWN", last.Event)
	}
}
