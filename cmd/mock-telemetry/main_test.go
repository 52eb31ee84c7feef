package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kx0101/sessioncheck/internal/input"
	"github.com/kx0101/sessioncheck/internal/sessiongen"
	"github.com/kx0101/sessioncheck/internal/telemetry"
)

func newMockAPI(t *testing.T) (*httptest.Server, *Handlers) {
	t.Helper()

	sessions := sessiongen.New(5, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)).Generate(30)
	h := newHandlers(sessions, "demo", "secret")

	ts := httptest.NewServer(h.routes())
	t.Cleanup(ts.Close)

	return ts, h
}

func newClient(t *testing.T, baseURL, password string) *telemetry.Client {
	t.Helper()

	client, err := telemetry.NewClient(telemetry.Options{BaseURL: baseURL, Username: "demo", Password: password})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	return client
}

func TestMockAPI_WithTelemetryClient(t *testing.T) {
	ts, h := newMockAPI(t)
	client := newClient(t, ts.URL, "secret")
	ctx := context.Background()

	all, err := client.ListSessions(ctx, input.Filter{})
	if err != nil {
		t.Fatalf("list sessions: %v", err)
	}

	if len(all) != len(h.sessions) {
		t.Fatalf("expected %d sessions, got %d", len(h.sessions), len(all))
	}

	limited, err := client.ListSessions(ctx, input.Filter{App: "racer", Limit: 3})
	if err != nil {
		t.Fatalf("list filtered sessions: %v", err)
	}

	if len(limited) > 3 {
		t.Errorf("limit not applied: %d sessions", len(limited))
	}

	for _, s := range limited {
		if s["appName"] != "Racer" {
			t.Errorf("unexpected app %v", s["appName"])
		}
	}

	want := h.sessions[7].ID()
	session, err := client.GetSession(ctx, want)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}

	if session.ID() != want {
		t.Errorf("expected %s, got %s", want, session.ID())
	}

	if _, err := client.GetSession(ctx, "missing"); !errors.Is(err, input.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestMockAPI_RejectsBadCredentials(t *testing.T) {
	ts, _ := newMockAPI(t)

	_, err := newClient(t, ts.URL, "wrong").ListSessions(context.Background(), input.Filter{})
	if !errors.Is(err, telemetry.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}

	resp, err := http.Get(ts.URL + "/v1/sessions")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", resp.StatusCode)
	}
}
