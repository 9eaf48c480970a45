package web

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/invigilab/go-invigil/pkg/event"
	"github.com/invigilab/go-invigil/pkg/monitor"
)

func newTestServer(t *testing.T) (*Server, *monitor.Monitor) {
	t.Helper()
	mon := monitor.New(monitor.DefaultConfig())
	srv := NewServer(DefaultConfig(), mon, nil)
	return srv, mon
}

func startSession(t *testing.T, mon *monitor.Monitor) {
	t.Helper()
	if err := mon.Initialize(); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if err := mon.Start("sess-1", "cand-1"); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
}

func doJSON(t *testing.T, srv *Server, method, path string, body interface{}) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := srv.app.Test(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestStatusBeforeSession(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, srv, "GET", "/api/status", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code = %d, want 200", resp.StatusCode)
	}

	var status map[string]interface{}
	decodeBody(t, resp, &status)
	if active, _ := status["monitoring_active"].(bool); active {
		t.Error("monitoring_active should be false before a session starts")
	}
}

func TestStatusDuringSession(t *testing.T) {
	srv, mon := newTestServer(t)
	startSession(t, mon)

	resp := doJSON(t, srv, "GET", "/api/status", nil)
	var status map[string]interface{}
	decodeBody(t, resp, &status)

	if active, _ := status["monitoring_active"].(bool); !active {
		t.Error("monitoring_active should be true")
	}
	if status["session_id"] != "sess-1" {
		t.Errorf("session_id = %v, want sess-1", status["session_id"])
	}
}

func TestStatsEndpoint(t *testing.T) {
	srv, mon := newTestServer(t)
	startSession(t, mon)

	resp := doJSON(t, srv, "GET", "/api/stats", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code = %d, want 200", resp.StatusCode)
	}

	var stats monitor.Stats
	decodeBody(t, resp, &stats)
	if !stats.MonitoringActive {
		t.Error("MonitoringActive should be true")
	}
	if stats.CandidateID != "cand-1" {
		t.Errorf("CandidateID = %q, want cand-1", stats.CandidateID)
	}
}

func TestFlagWithoutSessionConflicts(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, srv, "POST", "/api/flag", FlagRequest{Description: "suspicious"})
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("status code = %d, want 409", resp.StatusCode)
	}
}

func TestFlagValidation(t *testing.T) {
	srv, mon := newTestServer(t)
	startSession(t, mon)

	tests := []struct {
		name string
		req  FlagRequest
		want int
	}{
		{"missing description", FlagRequest{Severity: event.SeverityHigh}, http.StatusBadRequest},
		{"unknown severity", FlagRequest{Description: "x", Severity: "urgent"}, http.StatusBadRequest},
		{"default severity", FlagRequest{Description: "talking to someone"}, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doJSON(t, srv, "POST", "/api/flag", tt.req)
			if resp.StatusCode != tt.want {
				t.Errorf("status code = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}

func TestFlagAppearsInEvents(t *testing.T) {
	srv, mon := newTestServer(t)
	startSession(t, mon)

	resp := doJSON(t, srv, "POST", "/api/flag", FlagRequest{
		Description: "candidate left frame with phone",
		Severity:    event.SeverityHigh,
		FlaggedBy:   "proctor-7",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("flag status code = %d, want 200", resp.StatusCode)
	}

	var flagged event.Event
	decodeBody(t, resp, &flagged)
	if flagged.Type != event.TypeManualFlag {
		t.Errorf("event type = %v, want %v", flagged.Type, event.TypeManualFlag)
	}
	if flagged.SessionID != "sess-1" {
		t.Errorf("session id = %q, want sess-1", flagged.SessionID)
	}

	resp = doJSON(t, srv, "GET", "/api/events", nil)
	var events []event.Event
	decodeBody(t, resp, &events)
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}
	if events[0].ID != flagged.ID {
		t.Errorf("recent event id = %q, want %q", events[0].ID, flagged.ID)
	}
}

func TestEventsLimit(t *testing.T) {
	srv, mon := newTestServer(t)
	startSession(t, mon)

	for i := 0; i < 5; i++ {
		if _, err := mon.FlagManual("note", event.SeverityLow, "proctor-7"); err != nil {
			t.Fatalf("FlagManual() error = %v", err)
		}
	}

	resp := doJSON(t, srv, "GET", "/api/events?limit=2", nil)
	var events []event.Event
	decodeBody(t, resp, &events)
	if len(events) != 2 {
		t.Errorf("events = %d, want 2", len(events))
	}
}

func TestSummaryEndpoint(t *testing.T) {
	srv, mon := newTestServer(t)
	startSession(t, mon)

	if _, err := mon.FlagManual("note", event.SeverityLow, "proctor-7"); err != nil {
		t.Fatalf("FlagManual() error = %v", err)
	}

	resp := doJSON(t, srv, "GET", "/api/summary", nil)
	var summary []monitor.TypeSummary
	decodeBody(t, resp, &summary)
	if len(summary) != 1 {
		t.Fatalf("summary entries = %d, want 1", len(summary))
	}
	if summary[0].Type != event.TypeManualFlag || summary[0].Count != 1 {
		t.Errorf("summary = %+v, want one manual_flag", summary[0])
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, srv, "GET", "/metrics", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code = %d, want 200", resp.StatusCode)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read metrics body: %v", err)
	}
	if !strings.Contains(string(body), "invigil_engine") {
		t.Error("metrics exposition should contain the invigil_engine namespace")
	}
}

func TestPublishReachesHub(t *testing.T) {
	srv, mon := newTestServer(t)
	startSession(t, mon)

	go srv.events.Run()
	defer srv.events.Stop()

	e, err := mon.FlagManual("note", event.SeverityLow, "proctor-7")
	if err != nil {
		t.Fatalf("FlagManual() error = %v", err)
	}

	// No clients connected; Publish must still encode without error.
	srv.Publish(e)
}
