package handlers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/colloquy-dev/colloquy/internal/config"
	"github.com/colloquy-dev/colloquy/internal/core"
	"github.com/colloquy-dev/colloquy/internal/gateway"
	"github.com/colloquy-dev/colloquy/internal/session"
	"github.com/colloquy-dev/colloquy/internal/vault"
)

func newTestHandler(t *testing.T) (*Handler, http.Handler) {
	t.Helper()

	cfg := config.Default()
	cfg.Defaults.Pacing = string(core.PacingAuto)
	cfg.Defaults.AutoDelaySeconds = 0

	registry := gateway.NewRegistry()
	registry.Register(gateway.Backend{
		ID:          "mock",
		DisplayName: "Mock",
		Stream:      gateway.Simulated(0),
	})
	gw := gateway.New(registry)

	store, err := vault.Open(filepath.Join(t.TempDir(), "vault.db"))
	if err != nil {
		t.Fatalf("open vault: %v", err)
	}
	if err := store.Initialize(); err != nil {
		t.Fatalf("init vault: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	h := New(cfg, gw, session.NewStore(), store)
	return h, h.Router()
}

func decodeJSON(t *testing.T, body *bytes.Buffer, v any) {
	t.Helper()
	if err := json.Unmarshal(body.Bytes(), v); err != nil {
		t.Fatalf("response is not valid JSON: %v\n%s", err, body.String())
	}
}

func createDebate(t *testing.T, router http.Handler, cfg core.DebateConfig) *session.Snapshot {
	t.Helper()
	body, _ := json.Marshal(cfg)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("POST", "/api/debates", bytes.NewReader(body)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create returned %d: %s", rec.Code, rec.Body.String())
	}
	var snap session.Snapshot
	decodeJSON(t, rec.Body, &snap)
	return &snap
}

func TestHealth(t *testing.T) {
	_, router := newTestHandler(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}

	var resp struct {
		Status     string `json:"status"`
		Sessions   int    `json:"sessions"`
		VaultReady bool   `json:"vault_ready"`
	}
	decodeJSON(t, rec.Body, &resp)
	if resp.Status != "ok" || !resp.VaultReady || resp.Sessions != 0 {
		t.Errorf("health response: %+v", resp)
	}
}

func TestProviders(t *testing.T) {
	_, router := newTestHandler(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/providers", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}

	var providers []map[string]any
	decodeJSON(t, rec.Body, &providers)
	if len(providers) != 1 || providers[0]["id"] != "mock" {
		t.Errorf("providers: %v", providers)
	}
}

func TestCreateDebateValidation(t *testing.T) {
	_, router := newTestHandler(t)

	tests := []struct {
		name string
		body string
	}{
		{"empty topic", `{"participants":["mock"]}`},
		{"no participants", `{"topic":"x"}`},
		{"bad json", `{`},
		{"reserved id", `{"topic":"x","participants":["user"]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest("POST", "/api/debates", strings.NewReader(tt.body)))
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status %d, want 400", rec.Code)
			}
		})
	}
}

func TestCreateDebateAppliesDefaults(t *testing.T) {
	_, router := newTestHandler(t)

	snap := createDebate(t, router, core.DebateConfig{
		Topic:        "defaults test",
		Participants: []string{"mock"},
	})

	if snap.Config.Mode != core.ModeRoundRobin {
		t.Errorf("mode %s, want roundRobin default", snap.Config.Mode)
	}
	if snap.Config.MaxRounds != 3 {
		t.Errorf("rounds %d, want 3", snap.Config.MaxRounds)
	}
}

func TestDebateLifecycle(t *testing.T) {
	_, router := newTestHandler(t)

	snap := createDebate(t, router, core.DebateConfig{
		Topic:        "lifecycle",
		Mode:         core.ModeRoundRobin,
		MaxRounds:    1,
		Participants: []string{"mock"},
		Pacing:       core.PacingConfig{Mode: core.PacingAuto, AutoDelaySeconds: 0},
	})
	if snap.ID == "" {
		t.Fatal("no session id")
	}

	// The single mock turn completes quickly.
	deadline := time.After(5 * time.Second)
	for {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/debates/"+snap.ID, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("get returned %d", rec.Code)
		}
		var got session.Snapshot
		decodeJSON(t, rec.Body, &got)
		if got.Status == core.StatusCompleted {
			if len(got.Messages) != 1 {
				t.Errorf("messages %d, want 1", len(got.Messages))
			}
			break
		}
		select {
		case <-deadline:
			t.Fatalf("discussion never completed, status %s", got.Status)
		case <-time.After(20 * time.Millisecond):
		}
	}

	// List includes it.
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/debates", nil))
	var list []session.Snapshot
	decodeJSON(t, rec.Body, &list)
	if len(list) != 1 {
		t.Errorf("list has %d entries", len(list))
	}

	// Delete removes it.
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("DELETE", "/api/debates/"+snap.ID, nil))
	if rec.Code != http.StatusNoContent {
		t.Errorf("delete returned %d", rec.Code)
	}
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/debates/"+snap.ID, nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("get after delete returned %d", rec.Code)
	}
}

func TestDebateNotFound(t *testing.T) {
	_, router := newTestHandler(t)

	for _, req := range []*http.Request{
		httptest.NewRequest("GET", "/api/debates/nope", nil),
		httptest.NewRequest("POST", "/api/debates/nope/pause", nil),
		httptest.NewRequest("POST", "/api/debates/nope/stop", nil),
		httptest.NewRequest("GET", "/api/debates/nope/export", nil),
	} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s %s returned %d, want 404", req.Method, req.URL.Path, rec.Code)
		}
	}
}

func TestPauseResumeStop(t *testing.T) {
	h, router := newTestHandler(t)

	// A manually paced run sits waiting, which keeps the session stable
	// while we poke at it.
	snap := createDebate(t, router, core.DebateConfig{
		Topic:        "controls",
		Mode:         core.ModeRoundRobin,
		MaxRounds:    3,
		Participants: []string{"mock"},
		Pacing:       core.PacingConfig{Mode: core.PacingManual},
	})

	// Wait for the run goroutine to take its first turn and settle into
	// the manual-pacing wait before poking at it.
	s, _ := h.sessions.Get(snap.ID)
	deadline := time.After(5 * time.Second)
	for len(s.Messages()) == 0 {
		select {
		case <-deadline:
			t.Fatal("first turn never completed")
		case <-time.After(10 * time.Millisecond):
		}
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("POST", "/api/debates/"+snap.ID+"/pause", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("pause returned %d", rec.Code)
	}
	if s.Status() != core.StatusPaused {
		t.Errorf("status %s after pause", s.Status())
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("POST", "/api/debates/"+snap.ID+"/resume", nil))
	if s.Status() != core.StatusRunning {
		t.Errorf("status %s after resume", s.Status())
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("POST", "/api/debates/"+snap.ID+"/advance", nil))
	if rec.Code != http.StatusAccepted {
		t.Errorf("advance returned %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("POST", "/api/debates/"+snap.ID+"/stop", nil))
	if s.Status() != core.StatusStopped {
		t.Errorf("status %s after stop", s.Status())
	}
}

func TestInterject(t *testing.T) {
	_, router := newTestHandler(t)

	snap := createDebate(t, router, core.DebateConfig{
		Topic:        "interject",
		Mode:         core.ModeRoundRobin,
		MaxRounds:    2,
		Participants: []string{"mock"},
		Pacing:       core.PacingConfig{Mode: core.PacingManual},
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("POST", "/api/debates/"+snap.ID+"/interject",
		strings.NewReader(`{"content":"what about costs?"}`)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("interject returned %d: %s", rec.Code, rec.Body.String())
	}

	var msg core.Message
	decodeJSON(t, rec.Body, &msg)
	if msg.Provider != core.UserProvider || msg.Content != "what about costs?" {
		t.Errorf("interjection: %+v", msg)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("POST", "/api/debates/"+snap.ID+"/interject",
		strings.NewReader(`{"content":"  "}`)))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("blank interjection returned %d", rec.Code)
	}
}

func TestExportFormats(t *testing.T) {
	_, router := newTestHandler(t)

	snap := createDebate(t, router, core.DebateConfig{
		Topic:        "export me",
		Mode:         core.ModeRoundRobin,
		MaxRounds:    1,
		Participants: []string{"mock"},
		Pacing:       core.PacingConfig{Mode: core.PacingManual},
	})

	tests := []struct {
		query       string
		contentType string
	}{
		{"", "text/markdown"},
		{"?format=markdown", "text/markdown"},
		{"?format=json", "application/json"},
		{"?format=pdf", "application/pdf"},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/debates/"+snap.ID+"/export"+tt.query, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("export%s returned %d", tt.query, rec.Code)
			continue
		}
		if got := rec.Header().Get("Content-Type"); got != tt.contentType {
			t.Errorf("export%s content type %q, want %q", tt.query, got, tt.contentType)
		}
		if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "attachment") {
			t.Errorf("export%s disposition %q", tt.query, cd)
		}
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/debates/"+snap.ID+"/export?format=docx", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown format returned %d", rec.Code)
	}
}

func TestVaultEndpoints(t *testing.T) {
	_, router := newTestHandler(t)

	// Index inline content.
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("POST", "/api/vault/index",
		strings.NewReader(`{"content":"bus ridership rose forty percent","title":"transit"}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("index returned %d: %s", rec.Code, rec.Body.String())
	}
	var indexed struct {
		Document string `json:"document"`
		Chunks   int    `json:"chunks"`
	}
	decodeJSON(t, rec.Body, &indexed)
	if indexed.Chunks == 0 || indexed.Document != "transit" {
		t.Errorf("index response: %+v", indexed)
	}

	// Search finds it.
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/vault/search?q=ridership", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("search returned %d", rec.Code)
	}
	var hits []vault.Hit
	decodeJSON(t, rec.Body, &hits)
	if len(hits) != 1 {
		t.Errorf("hits: %v", hits)
	}

	// Missing query is a client error.
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/vault/search", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("blank search returned %d", rec.Code)
	}

	// Stats reflect the document.
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/vault/stats", nil))
	var stats vault.Stats
	decodeJSON(t, rec.Body, &stats)
	if stats.Documents != 1 {
		t.Errorf("stats: %+v", stats)
	}

	// Clear empties it.
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("POST", "/api/vault/clear", nil))
	if rec.Code != http.StatusNoContent {
		t.Errorf("clear returned %d", rec.Code)
	}
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/vault/stats", nil))
	decodeJSON(t, rec.Body, &stats)
	if stats.Chunks != 0 {
		t.Errorf("stats after clear: %+v", stats)
	}
}

func TestVaultUnavailable(t *testing.T) {
	cfg := config.Default()
	gw := cfg.CreateGateway()
	h := New(cfg, gw, session.NewStore(), nil)
	router := h.Router()

	for _, req := range []*http.Request{
		httptest.NewRequest("POST", "/api/vault/index", strings.NewReader(`{}`)),
		httptest.NewRequest("GET", "/api/vault/search?q=x", nil),
		httptest.NewRequest("GET", "/api/vault/stats", nil),
		httptest.NewRequest("POST", "/api/vault/clear", nil),
	} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("%s %s returned %d, want 503", req.Method, req.URL.Path, rec.Code)
		}
	}

	// Health still answers, reporting the vault as unavailable.
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("health returned %d", rec.Code)
	}
	var resp struct {
		VaultReady bool `json:"vault_ready"`
	}
	decodeJSON(t, rec.Body, &resp)
	if resp.VaultReady {
		t.Error("health reports vault ready with no vault")
	}
}

func TestStreamDeliversSnapshotAndEvents(t *testing.T) {
	_, router := newTestHandler(t)

	// Manual pacing keeps the run waiting so events arrive while the
	// stream is attached.
	snap := createDebate(t, router, core.DebateConfig{
		Topic:        "stream me",
		Mode:         core.ModeRoundRobin,
		MaxRounds:    3,
		Participants: []string{"mock"},
		Pacing:       core.PacingConfig{Mode: core.PacingManual},
	})

	server := httptest.NewServer(router)
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, _ := http.NewRequestWithContext(ctx, "GET",
		fmt.Sprintf("%s/api/debates/%s/stream", server.URL, snap.ID), nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("stream request: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type %q", ct)
	}

	// Trigger a status event once the stream is attached.
	go func() {
		time.Sleep(200 * time.Millisecond)
		http.Post(server.URL+"/api/debates/"+snap.ID+"/pause", "application/json", nil)
	}()

	sawSnapshot := false
	sawStatus := false
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "event: snapshot" {
			sawSnapshot = true
		}
		if line == "event: status" {
			sawStatus = true
		}
		if sawSnapshot && sawStatus {
			break
		}
	}

	if !sawSnapshot {
		t.Error("no snapshot event received")
	}
	if !sawStatus {
		t.Error("no status event received")
	}
}
