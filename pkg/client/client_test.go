package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{BaseURL: srv.URL})
}

func TestStatus(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/status" || r.Method != http.MethodGet {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(Status{State: "running", PID: 42, Version: "1.21.8"})
	})
	st, err := c.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.State != "running" || st.PID != 42 {
		t.Errorf("status=%+v", st)
	}
}

func TestStartAcceptsAccepted(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
}

func TestSendCommandBody(t *testing.T) {
	var got map[string]string
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/send" {
			t.Errorf("path=%s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	if err := c.Send(context.Background(), "say hi"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got["command"] != "say hi" {
		t.Errorf("command=%q", got["command"])
	}
}

func TestErrorResponseSurfaced(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":"server is not running"}`))
	})
	err := c.Send(context.Background(), "list")
	if err == nil {
		t.Fatal("expected error")
	}
	if err.Error() != "API error: server is not running" {
		t.Errorf("err=%q", err)
	}
}

func TestIsReachable(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(Status{State: "stopped"})
	})
	if !c.IsReachable(context.Background()) {
		t.Error("running server reported unreachable")
	}
	down := New(Config{BaseURL: "http://127.0.0.1:1"})
	if down.IsReachable(context.Background()) {
		t.Error("closed port reported reachable")
	}
}

func TestHistoryLimitQuery(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.RawQuery != "limit=5" {
			t.Errorf("query=%q", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`[{"id":1,"type":"start","at":"2026-01-02T03:04:05Z"}]`))
	})
	events, err := c.History(context.Background(), 5)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(events) != 1 || events[0].Type != "start" {
		t.Errorf("events=%+v", events)
	}
}
