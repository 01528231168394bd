package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sweeney/antenna-control/internal/pattern"
	"github.com/sweeney/antenna-control/internal/poller"
	"github.com/sweeney/antenna-control/internal/status"
)

type fakeController struct {
	mu      sync.Mutex
	modes   []bool
	starts  int
	stops   int
	setErr  error
	stopErr error
}

func (c *fakeController) SetMode(on bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.setErr != nil {
		return c.setErr
	}
	c.modes = append(c.modes, on)
	return nil
}

func (c *fakeController) Start() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.starts++
	return c.starts == 1
}

func (c *fakeController) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stops++
	return c.stopErr
}

func (c *fakeController) calls() (modes []bool, starts, stops int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]bool(nil), c.modes...), c.starts, c.stops
}

func newTestServer(t *testing.T, ctrl *fakeController, opts ...Option) (*httptest.Server, *status.Tracker) {
	t.Helper()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := status.Config{
		PollMs:        100,
		StopTimeoutMs: 2000,
		HeartbeatMs:   900000,
		Broker:        "tcp://192.168.1.200:1883",
		HTTPAddr:      ":80",
		Chip:          "gpiochip0",
		Pins:          [4]int{17, 21, 22, 27},
	}
	tr := status.NewTracker(start, cfg)
	srv := New(":0", tr, ctrl, opts...)
	ts := httptest.NewServer(srv.httpServer.Handler)
	t.Cleanup(ts.Close)
	return ts, tr
}

func do(t *testing.T, method, url, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeStatus(t *testing.T, r io.Reader) status.StatusJSON {
	t.Helper()
	var sj status.StatusJSON
	if err := json.NewDecoder(r).Decode(&sj); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	return sj
}

func TestJSONEndpoint(t *testing.T) {
	ts, tr := newTestServer(t, &fakeController{})
	tr.Update(true, "RUNNING", 2, pattern.Counts{Samples: 10, Changes: 3})
	tr.SetMQTTConnected(true)

	resp := do(t, http.MethodGet, ts.URL+"/index.json", "")
	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Errorf("Content-Type: got %q, want application/json", ct)
	}

	sj := decodeStatus(t, resp.Body)
	if !sj.Status.DFMode {
		t.Error("expected DFMode=true")
	}
	if sj.Status.Loop != "RUNNING" {
		t.Errorf("Loop: got %q, want RUNNING", sj.Status.Loop)
	}
	if sj.Status.SwitchPattern.Value != 2 || sj.Status.SwitchPattern.Antenna != "2-3" {
		t.Errorf("SwitchPattern: got %+v", sj.Status.SwitchPattern)
	}
	if !sj.Status.MQTT.Connected {
		t.Error("expected MQTT.Connected=true")
	}
	if sj.Status.MQTT.Broker != "tcp://192.168.1.200:1883" {
		t.Errorf("MQTT.Broker: got %q", sj.Status.MQTT.Broker)
	}
	if sj.Status.Counts.Changes != 3 {
		t.Errorf("Counts.Changes: got %d, want 3", sj.Status.Counts.Changes)
	}
	if sj.Status.Config.Pins.Pattern0 != 21 {
		t.Errorf("Config.Pins.Pattern0: got %d, want 21", sj.Status.Config.Pins.Pattern0)
	}
}

func TestJSONNetworkInfo(t *testing.T) {
	ts, tr := newTestServer(t, &fakeController{})
	tr.SetNetwork(&status.NetworkInfo{Type: "wifi", IP: "192.168.1.42", Status: "connected", SSID: "MyNet"})

	sj := decodeStatus(t, do(t, http.MethodGet, ts.URL+"/index.json", "").Body)
	if sj.Status.Network == nil {
		t.Fatal("expected Network in JSON")
	}
	if sj.Status.Network.IP != "192.168.1.42" {
		t.Errorf("Network.IP: got %q, want 192.168.1.42", sj.Status.Network.IP)
	}
}

func TestHTMLEndpoints(t *testing.T) {
	ts, tr := newTestServer(t, &fakeController{})
	tr.Update(true, "RUNNING", 7, pattern.Counts{})

	for _, path := range []string{"/", "/index.html"} {
		resp := do(t, http.MethodGet, ts.URL+path, "")
		if resp.StatusCode != 200 {
			t.Errorf("%s: status got %d, want 200", path, resp.StatusCode)
		}
		if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
			t.Errorf("%s: Content-Type got %q, want text/html", path, ct)
		}
		body, _ := io.ReadAll(resp.Body)
		for _, want := range []string{"Antenna Control", "4-1", "ENABLED", "RUNNING", "Pi GPIO Control"} {
			if !strings.Contains(string(body), want) {
				t.Errorf("%s: body missing %q", path, want)
			}
		}
	}
}

func TestNotFoundForUnknownPath(t *testing.T) {
	ts, _ := newTestServer(t, &fakeController{})

	if resp := do(t, http.MethodGet, ts.URL+"/nonexistent", ""); resp.StatusCode != 404 {
		t.Errorf("status: got %d, want 404", resp.StatusCode)
	}
}

func TestWrongMethod(t *testing.T) {
	ts, _ := newTestServer(t, &fakeController{})

	if resp := do(t, http.MethodGet, ts.URL+"/mode", ""); resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("GET /mode: got %d, want 405", resp.StatusCode)
	}
	if resp := do(t, http.MethodGet, ts.URL+"/stop", ""); resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("GET /stop: got %d, want 405", resp.StatusCode)
	}
}

func TestPutMode(t *testing.T) {
	ctrl := &fakeController{}
	var mu sync.Mutex
	var heard []bool
	var refreshes int
	ts, tr := newTestServer(t, ctrl,
		WithModeListener(func(on bool) {
			mu.Lock()
			heard = append(heard, on)
			mu.Unlock()
		}),
		WithRefresh(func() {
			mu.Lock()
			refreshes++
			mu.Unlock()
		}),
	)
	tr.Update(true, "RUNNING", 0, pattern.Counts{})

	resp := do(t, http.MethodPut, ts.URL+"/mode", `{"enabled":true}`)
	if resp.StatusCode != 200 {
		t.Fatalf("status: got %d, want 200", resp.StatusCode)
	}
	if sj := decodeStatus(t, resp.Body); !sj.Status.DFMode {
		t.Error("response should carry the status")
	}

	resp = do(t, http.MethodPut, ts.URL+"/mode", `{"enabled":false}`)
	if resp.StatusCode != 200 {
		t.Fatalf("status: got %d, want 200", resp.StatusCode)
	}

	if modes, _, _ := ctrl.calls(); len(modes) != 2 || modes[0] != true || modes[1] != false {
		t.Errorf("SetMode calls: got %v", modes)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(heard) != 2 {
		t.Errorf("mode listener calls: got %v", heard)
	}
	if refreshes != 2 {
		t.Errorf("refreshes: got %d, want 2", refreshes)
	}
}

func TestPutModeBadBody(t *testing.T) {
	ctrl := &fakeController{}
	ts, _ := newTestServer(t, ctrl)

	for _, body := range []string{"", "not json", `{}`, `{"enabled":"yes"}`} {
		resp := do(t, http.MethodPut, ts.URL+"/mode", body)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("body %q: got %d, want 400", body, resp.StatusCode)
		}
		var er ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&er); err != nil || er.Error == "" {
			t.Errorf("body %q: expected error JSON, got %v %+v", body, err, er)
		}
	}
	if modes, _, _ := ctrl.calls(); len(modes) != 0 {
		t.Errorf("SetMode should not be called, got %v", modes)
	}
}

func TestPutModeWriteFailure(t *testing.T) {
	ctrl := &fakeController{setErr: errors.New("set df mode: line busy")}
	var called int32
	ts, _ := newTestServer(t, ctrl, WithModeListener(func(bool) { atomic.StoreInt32(&called, 1) }))

	resp := do(t, http.MethodPut, ts.URL+"/mode", `{"enabled":true}`)
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status: got %d, want 500", resp.StatusCode)
	}
	if atomic.LoadInt32(&called) != 0 {
		t.Error("mode listener must not run on failure")
	}
}

func TestStartStop(t *testing.T) {
	ctrl := &fakeController{}
	ts, _ := newTestServer(t, ctrl)

	for i := 0; i < 2; i++ {
		if resp := do(t, http.MethodPost, ts.URL+"/start", ""); resp.StatusCode != 200 {
			t.Errorf("start %d: got %d, want 200", i, resp.StatusCode)
		}
	}
	if resp := do(t, http.MethodPost, ts.URL+"/stop", ""); resp.StatusCode != 200 {
		t.Errorf("stop: got %d, want 200", resp.StatusCode)
	}
	if _, starts, stops := ctrl.calls(); starts != 2 || stops != 1 {
		t.Errorf("calls: starts=%d stops=%d", starts, stops)
	}
}

func TestStopTimeout(t *testing.T) {
	ctrl := &fakeController{stopErr: fmt.Errorf("stop polling: %w", poller.ErrStopTimeout)}
	ts, _ := newTestServer(t, ctrl)

	if resp := do(t, http.MethodPost, ts.URL+"/stop", ""); resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status: got %d, want 503", resp.StatusCode)
	}
}

func TestStopOtherError(t *testing.T) {
	ctrl := &fakeController{stopErr: errors.New("boom")}
	ts, _ := newTestServer(t, ctrl)

	if resp := do(t, http.MethodPost, ts.URL+"/stop", ""); resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status: got %d, want 500", resp.StatusCode)
	}
}

func TestStateChangesReflectedInResponse(t *testing.T) {
	ts, tr := newTestServer(t, &fakeController{})

	sj1 := decodeStatus(t, do(t, http.MethodGet, ts.URL+"/index.json", "").Body)
	if sj1.Status.Loop != "STOPPED" {
		t.Errorf("expected STOPPED initially, got %q", sj1.Status.Loop)
	}

	tr.Update(false, "RUNNING", 3, pattern.Counts{Changes: 1})
	tr.SetMQTTConnected(true)

	sj2 := decodeStatus(t, do(t, http.MethodGet, ts.URL+"/index.json", "").Body)
	if sj2.Status.Loop != "RUNNING" {
		t.Errorf("Loop: got %q, want RUNNING", sj2.Status.Loop)
	}
	if sj2.Status.SwitchPattern.Antenna != "3-4" {
		t.Errorf("Antenna: got %q, want 3-4", sj2.Status.SwitchPattern.Antenna)
	}
	if !sj2.Status.MQTT.Connected {
		t.Error("expected MQTT connected after update")
	}
}
