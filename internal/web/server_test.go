package web

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sweeney/prox-fusion/internal/status"
)

func newTestServer(t *testing.T) (*httptest.Server, *status.Tracker) {
	t.Helper()
	tracker := status.NewTracker(time.Now().Add(-90*time.Second), status.Config{
		SampleMs:     100,
		HeartbeatMs:  900000,
		Broker:       "tcp://192.168.1.200:1883",
		HTTPAddr:     ":80",
		PrimaryPin:   23,
		SecondaryPin: 24,
	})
	srv := New(":0", tracker)
	ts := httptest.NewServer(srv.httpServer.Handler)
	t.Cleanup(ts.Close)
	return ts, tracker
}

func get(t *testing.T, url string) (int, string, string) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("get %s: %v", url, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, resp.Header.Get("Content-Type"), string(body)
}

func TestIndexHTML(t *testing.T) {
	ts, tracker := newTestServer(t)
	tracker.Update(status.StateNear, true, false, 1)
	tracker.RecordEvent(true)
	tracker.SetMQTTConnected(true)

	code, ctype, body := get(t, ts.URL+"/")
	if code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", code)
	}
	if !strings.HasPrefix(ctype, "text/html") {
		t.Errorf("content type: %s", ctype)
	}
	for _, want := range []string{"Proximity Fusion", "NEAR", "connected", "tcp://192.168.1.200:1883"} {
		if !strings.Contains(body, want) {
			t.Errorf("page missing %q", want)
		}
	}
}

func TestIndexHTMLUnknownState(t *testing.T) {
	ts, _ := newTestServer(t)

	_, _, body := get(t, ts.URL+"/index.html")
	if !strings.Contains(body, "UNKNOWN") {
		t.Error("page should show UNKNOWN before the first fused event")
	}
}

func TestIndexJSON(t *testing.T) {
	ts, tracker := newTestServer(t)
	tracker.Update(status.StateFar, true, true, 2)
	tracker.RecordEvent(false)

	code, ctype, body := get(t, ts.URL+"/index.json")
	if code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", code)
	}
	if !strings.HasPrefix(ctype, "application/json") {
		t.Errorf("content type: %s", ctype)
	}

	var sj status.StatusJSON
	if err := json.Unmarshal([]byte(body), &sj); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if sj.Status.Proximity != "FAR" {
		t.Errorf("proximity: got %q, want FAR", sj.Status.Proximity)
	}
	if sj.Status.Counts.Far != 1 {
		t.Errorf("far count: got %d, want 1", sj.Status.Counts.Far)
	}
	if sj.Status.Listeners != 2 {
		t.Errorf("listeners: got %d, want 2", sj.Status.Listeners)
	}
}

func TestNotFound(t *testing.T) {
	ts, _ := newTestServer(t)

	code, _, _ := get(t, ts.URL+"/nope")
	if code != http.StatusNotFound {
		t.Errorf("status: got %d, want 404", code)
	}
}
