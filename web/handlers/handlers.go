// Package handlers provides the JSON API and SSE stream for the web
// interface. The desktop shell owns all UI; nothing here renders HTML.
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/colloquy-dev/colloquy/internal/config"
	"github.com/colloquy-dev/colloquy/internal/core"
	"github.com/colloquy-dev/colloquy/internal/debate"
	"github.com/colloquy-dev/colloquy/internal/export"
	"github.com/colloquy-dev/colloquy/internal/gateway"
	"github.com/colloquy-dev/colloquy/internal/session"
	"github.com/colloquy-dev/colloquy/internal/vault"
)

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	cfg      *config.Config
	gateway  *gateway.Gateway
	sessions *session.Store
	vault    *vault.Store // nil when the vault is not opened
}

// New creates a new Handler. The vault store may be nil; vault endpoints
// then report unavailable.
func New(cfg *config.Config, gw *gateway.Gateway, sessions *session.Store, store *vault.Store) *Handler {
	return &Handler{
		cfg:      cfg,
		gateway:  gw,
		sessions: sessions,
		vault:    store,
	}
}

// Router builds the chi router with all routes registered.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.handleHealth)
		r.Get("/providers", h.handleProviders)

		r.Route("/debates", func(r chi.Router) {
			r.Get("/", h.handleListDebates)
			r.Post("/", h.handleCreateDebate)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.handleGetDebate)
				r.Delete("/", h.handleDeleteDebate)
				r.Get("/stream", h.handleDebateStream)
				r.Post("/pause", h.handlePause)
				r.Post("/resume", h.handleResume)
				r.Post("/advance", h.handleAdvance)
				r.Post("/stop", h.handleStop)
				r.Post("/interject", h.handleInterject)
				r.Get("/export", h.handleExport)
			})
		})

		r.Route("/vault", func(r chi.Router) {
			r.Post("/index", h.handleVaultIndex)
			r.Get("/search", h.handleVaultSearch)
			r.Get("/stats", h.handleVaultStats)
			r.Post("/clear", h.handleVaultClear)
		})
	})

	return r
}

// requestLogger logs each request through slog at debug level.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

// handleHealth never errors; it reports what the server can do right now.
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	vaultReady := h.vault != nil && h.vault.Ready()
	h.json(w, map[string]any{
		"status":      "ok",
		"sessions":    h.sessions.Count(),
		"vault_ready": vaultReady,
	})
}

func (h *Handler) handleProviders(w http.ResponseWriter, r *http.Request) {
	backends := h.gateway.Registry().List()
	result := make([]map[string]any, 0, len(backends))
	for _, b := range backends {
		result = append(result, map[string]any{
			"id":           b.ID,
			"display_name": b.DisplayName,
			"model":        b.DefaultModel,
		})
	}
	h.json(w, result)
}

// Debate handlers

func (h *Handler) handleListDebates(w http.ResponseWriter, r *http.Request) {
	sessions := h.sessions.List()
	result := make([]*session.Snapshot, 0, len(sessions))
	for _, s := range sessions {
		result = append(result, s.Snapshot())
	}
	h.json(w, result)
}

func (h *Handler) handleCreateDebate(w http.ResponseWriter, r *http.Request) {
	var cfg core.DebateConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	// Unset fields fall back to configured defaults.
	defaults := h.cfg.DebateDefaults()
	if cfg.Mode == "" {
		cfg.Mode = defaults.Mode
	}
	if cfg.MaxRounds == 0 {
		cfg.MaxRounds = defaults.MaxRounds
	}
	if cfg.Pacing.Mode == "" {
		cfg.Pacing = defaults.Pacing
	}

	if err := core.ValidateConfig(cfg); err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	s := session.New(cfg)
	h.sessions.Add(s)

	ctx, cancel := context.WithCancel(context.Background())
	s.BindCancel(cancel)

	runner := debate.NewRunner(cfg, s, h.gateway)
	go func() {
		defer cancel()
		if err := runner.Run(ctx); err != nil {
			slog.Debug("discussion run ended", "id", s.ID, "error", err)
		}
	}()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(s.Snapshot())
}

func (h *Handler) handleGetDebate(w http.ResponseWriter, r *http.Request) {
	s, err := h.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusNotFound)
		return
	}
	h.json(w, s.Snapshot())
}

func (h *Handler) handleDeleteDebate(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Delete(chi.URLParam(r, "id")); err != nil {
		h.jsonError(w, err.Error(), http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handlePause(w http.ResponseWriter, r *http.Request) {
	s, err := h.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusNotFound)
		return
	}
	s.Pause()
	h.json(w, map[string]any{"status": s.Status()})
}

func (h *Handler) handleResume(w http.ResponseWriter, r *http.Request) {
	s, err := h.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusNotFound)
		return
	}
	s.Resume()
	h.json(w, map[string]any{"status": s.Status()})
}

func (h *Handler) handleAdvance(w http.ResponseWriter, r *http.Request) {
	s, err := h.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusNotFound)
		return
	}
	s.Advance()
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) handleStop(w http.ResponseWriter, r *http.Request) {
	s, err := h.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusNotFound)
		return
	}
	s.Stop()
	h.json(w, map[string]any{"status": s.Status()})
}

func (h *Handler) handleInterject(w http.ResponseWriter, r *http.Request) {
	s, err := h.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusNotFound)
		return
	}

	var req struct {
		Content string            `json:"content"`
		Files   []core.Attachment `json:"files,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		h.jsonError(w, "content is required", http.StatusBadRequest)
		return
	}

	msg := s.Interject(req.Content, req.Files...)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(msg)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	s, err := h.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusNotFound)
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = string(export.FormatMarkdown)
	}
	exporter, err := export.GetExporter(export.Format(format))
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	snap := s.Snapshot()
	filename := export.GenerateFilename(snap.Config.Topic, snap.CreatedAt, exporter.FileExtension())

	switch export.Format(format) {
	case export.FormatPDF:
		w.Header().Set("Content-Type", "application/pdf")
	case export.FormatJSON:
		w.Header().Set("Content-Type", "application/json")
	default:
		w.Header().Set("Content-Type", "text/markdown")
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	if err := exporter.Export(snap, w); err != nil {
		slog.Error("export failed", "id", snap.ID, "format", format, "error", err)
		http.Error(w, "export failed", http.StatusInternalServerError)
	}
}

// Vault handlers

func (h *Handler) handleVaultIndex(w http.ResponseWriter, r *http.Request) {
	if h.vault == nil {
		h.jsonError(w, "vault is not available", http.StatusServiceUnavailable)
		return
	}

	var req struct {
		Path    string `json:"path,omitempty"`
		Content string `json:"content,omitempty"`
		Title   string `json:"title,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	doc := vault.Document{ID: req.Path, Title: req.Title, Content: req.Content}
	if req.Path != "" {
		data, err := os.ReadFile(req.Path)
		if err != nil {
			h.jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
		doc.Content = string(data)
		if doc.Title == "" {
			doc.Title = strings.TrimSuffix(filepath.Base(req.Path), filepath.Ext(req.Path))
		}
	} else {
		if strings.TrimSpace(req.Content) == "" {
			h.jsonError(w, "path or content is required", http.StatusBadRequest)
			return
		}
		if doc.Title == "" {
			h.jsonError(w, "title is required for inline content", http.StatusBadRequest)
			return
		}
		doc.ID = doc.Title
	}

	n, err := h.vault.Index(r.Context(), doc)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.json(w, map[string]any{"document": doc.ID, "chunks": n})
}

func (h *Handler) handleVaultSearch(w http.ResponseWriter, r *http.Request) {
	if h.vault == nil {
		h.jsonError(w, "vault is not available", http.StatusServiceUnavailable)
		return
	}

	query := r.URL.Query().Get("q")
	if strings.TrimSpace(query) == "" {
		h.jsonError(w, "q is required", http.StatusBadRequest)
		return
	}
	topK, _ := strconv.Atoi(r.URL.Query().Get("k"))

	hits, err := h.vault.Search(r.Context(), query, topK)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if hits == nil {
		hits = []vault.Hit{}
	}
	h.json(w, hits)
}

func (h *Handler) handleVaultStats(w http.ResponseWriter, r *http.Request) {
	if h.vault == nil {
		h.jsonError(w, "vault is not available", http.StatusServiceUnavailable)
		return
	}
	stats, err := h.vault.Stats(r.Context())
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.json(w, stats)
}

func (h *Handler) handleVaultClear(w http.ResponseWriter, r *http.Request) {
	if h.vault == nil {
		h.jsonError(w, "vault is not available", http.StatusServiceUnavailable)
		return
	}
	if err := h.vault.Clear(r.Context()); err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Helper methods

func (h *Handler) json(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func (h *Handler) jsonError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
