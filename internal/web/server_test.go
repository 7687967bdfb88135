package web

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/sweeney/energy-dashboard/internal/engine"
	"github.com/sweeney/energy-dashboard/internal/export"
	"github.com/sweeney/energy-dashboard/internal/seed"
	"github.com/sweeney/energy-dashboard/internal/status"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T) *engine.Engine {
	t.Helper()
	ticks := make(chan time.Time)
	eng, err := engine.New(seed.Default(), engine.Config{
		Clock:      func() time.Time { return testNow },
		TickSource: func(time.Duration) (<-chan time.Time, func()) { return ticks, func() {} },
		Logger:     zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	t.Cleanup(eng.Dispose)
	return eng
}

func newTestServer(t *testing.T, hub *Hub) (*httptest.Server, *engine.Engine, *status.Tracker) {
	t.Helper()
	eng := newTestEngine(t)
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := status.Config{
		IntervalMs:  30000,
		HeartbeatMs: 900000,
		Tariff:      0.12,
		DriftPolicy: "none",
		Broker:      "tcp://192.168.1.200:1883",
		HTTPAddr:    ":8080",
	}
	tr := status.NewTracker(start, cfg, eng)
	srv := New(":0", eng, tr, hub, zap.NewNop())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, eng, tr
}

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func get(t *testing.T, url string) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
}

func TestJSONEndpoint(t *testing.T) {
	ts, eng, tr := newTestServer(t, nil)
	tr.SetMQTTConnected(true)

	resp := get(t, ts.URL+"/index.json")
	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q, want application/json", ct)
	}

	var sj status.StatusJSON
	decode(t, resp, &sj)

	if sj.Status.Session != eng.Session().String() {
		t.Errorf("Session: got %q, want %q", sj.Status.Session, eng.Session())
	}
	if sj.Status.Energy.TotalPower != 9200 {
		t.Errorf("TotalPower: got %v, want 9200", sj.Status.Energy.TotalPower)
	}
	if sj.Status.Energy.TotalAppliances != 10 {
		t.Errorf("TotalAppliances: got %d, want 10", sj.Status.Energy.TotalAppliances)
	}
	if !sj.Status.MQTT.Connected {
		t.Error("expected MQTT.Connected=true")
	}
	if sj.Status.Config.IntervalMs != 30000 {
		t.Errorf("Config.IntervalMs: got %d, want 30000", sj.Status.Config.IntervalMs)
	}
}

func TestHTMLEndpointRoot(t *testing.T) {
	ts, _, _ := newTestServer(t, nil)

	resp := get(t, ts.URL+"/")
	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	ct := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type: got %q, want text/html", ct)
	}
	body, _ := io.ReadAll(resp.Body)
	for _, want := range []string{"Energy Dashboard", "9.2 kW", "$26.50", "Smart TV", "Weekend Energy Challenge", "/export.csv"} {
		if !strings.Contains(string(body), want) {
			t.Errorf("page missing %q", want)
		}
	}
	if strings.Contains(string(body), "/ws") {
		t.Error("page should not open a websocket when the hub is disabled")
	}
}

func TestHTMLEndpointIndexHTML(t *testing.T) {
	ts, _, _ := newTestServer(t, nil)

	resp := get(t, ts.URL+"/index.html")
	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
}

func TestNotFoundForUnknownPath(t *testing.T) {
	ts, _, _ := newTestServer(t, nil)

	resp := get(t, ts.URL+"/nonexistent")
	if resp.StatusCode != 404 {
		t.Errorf("status: got %d, want 404", resp.StatusCode)
	}
}

func TestLive(t *testing.T) {
	ts, _, _ := newTestServer(t, nil)

	resp := get(t, ts.URL+"/health/live")
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != 200 || string(body) != "OK" {
		t.Errorf("got %d %q, want 200 OK", resp.StatusCode, body)
	}
}

func TestToggle(t *testing.T) {
	ts, eng, _ := newTestServer(t, nil)

	resp := post(t, ts.URL+"/api/appliances/4/toggle", "")
	if resp.StatusCode != 200 {
		t.Fatalf("status: got %d, want 200", resp.StatusCode)
	}
	var tr ToggleResponse
	decode(t, resp, &tr)

	if tr.Name != "Smart TV" || tr.Status != "on" || tr.Previous != "off" {
		t.Errorf("toggle: got %+v", tr)
	}
	if tr.Message != "Smart TV has been turned on" {
		t.Errorf("Message: got %q", tr.Message)
	}
	if tr.Snapshot.TotalPower != 9450 {
		t.Errorf("TotalPower: got %v, want 9450", tr.Snapshot.TotalPower)
	}
	if tr.Snapshot.ActiveAppliances != 8 {
		t.Errorf("ActiveAppliances: got %d, want 8", tr.Snapshot.ActiveAppliances)
	}
	if tr.Snapshot.EstimatedDailyCost != 27.22 {
		t.Errorf("EstimatedDailyCost: got %v, want 27.22", tr.Snapshot.EstimatedDailyCost)
	}
	if got := eng.Snapshot().TotalPower; got != 9450 {
		t.Errorf("engine TotalPower: got %v, want 9450", got)
	}
}

func TestToggleErrors(t *testing.T) {
	ts, eng, _ := newTestServer(t, nil)
	before := eng.Snapshot()

	tests := []struct {
		path string
		code int
	}{
		{"/api/appliances/99/toggle", 404},
		{"/api/appliances/abc/toggle", 400},
	}
	for _, tt := range tests {
		resp := post(t, ts.URL+tt.path, "")
		if resp.StatusCode != tt.code {
			t.Errorf("%s: got %d, want %d", tt.path, resp.StatusCode, tt.code)
		}
		var er ErrorResponse
		decode(t, resp, &er)
		if er.Error == "" {
			t.Errorf("%s: empty error message", tt.path)
		}
	}
	if eng.Snapshot() != before {
		t.Error("failed toggles changed the snapshot")
	}
}

func TestToggleAfterDispose(t *testing.T) {
	ts, eng, _ := newTestServer(t, nil)
	eng.Dispose()

	resp := post(t, ts.URL+"/api/appliances/1/toggle", "")
	if resp.StatusCode != 503 {
		t.Errorf("status: got %d, want 503", resp.StatusCode)
	}
}

func TestAppliancesFilter(t *testing.T) {
	ts, _, _ := newTestServer(t, nil)

	var all AppliancesResponse
	decode(t, get(t, ts.URL+"/api/appliances"), &all)
	if len(all.Appliances) != 10 {
		t.Errorf("all: got %d appliances, want 10", len(all.Appliances))
	}

	var kitchen AppliancesResponse
	decode(t, get(t, ts.URL+"/api/appliances?type=Kitchen"), &kitchen)
	if len(kitchen.Appliances) != 2 {
		t.Errorf("Kitchen: got %d appliances, want 2", len(kitchen.Appliances))
	}
	if kitchen.Summary.Total != 10 || kitchen.Summary.Active != 7 {
		t.Errorf("summary should cover every appliance: got %+v", kitchen.Summary)
	}
}

func TestApplianceByID(t *testing.T) {
	ts, _, _ := newTestServer(t, nil)

	resp := get(t, ts.URL+"/api/appliances/6")
	if resp.StatusCode != 200 {
		t.Fatalf("status: got %d, want 200", resp.StatusCode)
	}
	var a struct {
		Name        string  `json:"name"`
		PowerRating float64 `json:"power_rating"`
	}
	decode(t, resp, &a)
	if a.Name != "Water Heater" || a.PowerRating != 4500 {
		t.Errorf("got %+v", a)
	}

	if resp := get(t, ts.URL+"/api/appliances/42"); resp.StatusCode != 404 {
		t.Errorf("missing appliance: got %d, want 404", resp.StatusCode)
	}
}

func TestHistory(t *testing.T) {
	ts, _, _ := newTestServer(t, nil)

	var hr HistoryResponse
	decode(t, get(t, ts.URL+"/api/history"), &hr)
	if len(hr.Records) != 3 {
		t.Fatalf("records: got %d, want 3", len(hr.Records))
	}
	if hr.Records[0].Date.String() != "2025-08-29" {
		t.Errorf("first date: got %s", hr.Records[0].Date)
	}
	if hr.Summary.Days != 3 {
		t.Errorf("summary days: got %d, want 3", hr.Summary.Days)
	}
}

func TestVisibility(t *testing.T) {
	ts, eng, _ := newTestServer(t, nil)

	var rr RealtimeResponse
	decode(t, post(t, ts.URL+"/api/visibility", `{"state":"visible"}`), &rr)
	if !rr.Running || !eng.RealtimeRunning() {
		t.Error("visible page should start the loop")
	}

	decode(t, post(t, ts.URL+"/api/visibility", `{"state":"hidden"}`), &rr)
	if rr.Running || eng.RealtimeRunning() {
		t.Error("hidden page should stop the loop")
	}

	if resp := post(t, ts.URL+"/api/visibility", `{"state":"minimised"}`); resp.StatusCode != 400 {
		t.Errorf("bad state: got %d, want 400", resp.StatusCode)
	}
	if resp := post(t, ts.URL+"/api/visibility", `not json`); resp.StatusCode != 400 {
		t.Errorf("bad body: got %d, want 400", resp.StatusCode)
	}
}

func TestRealtimeStartStop(t *testing.T) {
	ts, _, _ := newTestServer(t, nil)

	var rr RealtimeResponse
	decode(t, post(t, ts.URL+"/api/realtime/start", ""), &rr)
	if !rr.Running {
		t.Error("expected running after start")
	}
	decode(t, get(t, ts.URL+"/api/realtime"), &rr)
	if !rr.Running {
		t.Error("expected GET to report running")
	}
	decode(t, post(t, ts.URL+"/api/realtime/stop", ""), &rr)
	if rr.Running {
		t.Error("expected stopped after stop")
	}
}

func TestExportCSV(t *testing.T) {
	ts, _, _ := newTestServer(t, nil)

	resp := get(t, ts.URL+"/export.csv")
	if ct := resp.Header.Get("Content-Type"); ct != export.CSVContentType {
		t.Errorf("Content-Type: got %q", ct)
	}
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, export.CSVFilename) {
		t.Errorf("Content-Disposition: got %q", cd)
	}
	body, _ := io.ReadAll(resp.Body)
	lines := strings.Split(string(body), "\n")
	if len(lines) != 4 {
		t.Fatalf("lines: got %d, want 4", len(lines))
	}
	if lines[0] != strings.Join(export.CSVHeader, ",") {
		t.Errorf("header: got %q", lines[0])
	}
	if lines[1] != "2025-08-29,42.3,5.08,16.92,78" {
		t.Errorf("first row: got %q", lines[1])
	}
}

func TestExportJSON(t *testing.T) {
	ts, _, _ := newTestServer(t, nil)
	post(t, ts.URL+"/api/appliances/4/toggle", "")

	resp := get(t, ts.URL+"/export.json")
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, export.JSONFilename) {
		t.Errorf("Content-Disposition: got %q", cd)
	}
	var ds struct {
		Appliances []struct {
			ID     int    `json:"id"`
			Status string `json:"status"`
		} `json:"appliances"`
		RealTime struct {
			TotalPower float64 `json:"total_power"`
		} `json:"real_time"`
	}
	decode(t, resp, &ds)
	if ds.Appliances[3].Status != "on" {
		t.Errorf("exported Smart TV status: got %q, want on", ds.Appliances[3].Status)
	}
	if ds.RealTime.TotalPower != 9450 {
		t.Errorf("exported total power: got %v, want 9450", ds.RealTime.TotalPower)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ts, _, _ := newTestServer(t, nil)

	resp := get(t, ts.URL+"/metrics")
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "energy_total_power_watts") {
		t.Error("metrics missing energy_total_power_watts")
	}
}

func TestWebsocketFeed(t *testing.T) {
	hub := NewHub(zap.NewNop())
	ts, eng, _ := newTestServer(t, hub)

	updates, cancel := eng.Subscribe(8)
	defer cancel()
	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	go hub.Run(ctx, updates)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var first struct {
		Kind     string `json:"kind"`
		Snapshot struct {
			TotalPower float64 `json:"total_power"`
		} `json:"snapshot"`
	}
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("read initial: %v", err)
	}
	if first.Kind != "snapshot" || first.Snapshot.TotalPower != 9200 {
		t.Errorf("initial: got %+v", first)
	}

	post(t, ts.URL+"/api/appliances/4/toggle", "")

	var next struct {
		Kind   string `json:"kind"`
		Toggle struct {
			ID     int    `json:"id"`
			Status string `json:"status"`
		} `json:"toggle"`
	}
	if err := conn.ReadJSON(&next); err != nil {
		t.Fatalf("read toggle: %v", err)
	}
	if next.Kind != "toggle" || next.Toggle.ID != 4 || next.Toggle.Status != "on" {
		t.Errorf("toggle update: got %+v", next)
	}
	if hub.Clients() != 1 {
		t.Errorf("clients: got %d, want 1", hub.Clients())
	}
}

func TestServerBoundsHeaderRead(t *testing.T) {
	srv := New(":0", newTestEngine(t), nil, nil, zap.NewNop())
	if got := srv.httpServer.ReadHeaderTimeout; got != 10*time.Second {
		t.Errorf("ReadHeaderTimeout: got %v, want 10s", got)
	}
}
