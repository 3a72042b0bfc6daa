// Package gateway adapts the uniform (systemPrompt, history) turn call onto
// heterogeneous streaming LLM backends, returning a uniform (content, isError)
// result. Failures never escape as errors or panics; every outcome of a call
// is representable as a transcript entry.
package gateway

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/colloquy-dev/colloquy/internal/core"
	"github.com/colloquy-dev/colloquy/internal/history"
)

// CanceledMessage is the content of every result produced by a failed or
// aborted streaming call. Hosts can rely on it to tell cancellation apart
// from configuration problems, which carry descriptive text instead.
const CanceledMessage = "request was canceled"

// Streamer performs one streaming completion against a concrete backend.
// It must invoke onToken for each emitted fragment and return the full
// text. Implementations are injected by the host; this module ships only
// the simulated one.
type Streamer func(ctx context.Context, apiKey, model, systemPrompt string,
	entries []history.Entry, onToken func(string)) (string, error)

// Backend describes one registered provider.
type Backend struct {
	ID           string
	DisplayName  string
	DefaultModel string
	KeyEnv       string // environment variable holding the API key; empty = no credential needed
	Stream       Streamer
}

// Registry manages the available backends.
type Registry struct {
	mu       sync.RWMutex
	backends map[string]Backend
}

// NewRegistry creates an empty backend registry.
func NewRegistry() *Registry {
	return &Registry{
		backends: make(map[string]Backend),
	}
}

// Register adds a backend. Display name, default model, and key variable
// fall back to the builtin provider tables when left empty.
func (r *Registry) Register(b Backend) {
	if b.DisplayName == "" {
		b.DisplayName = core.DisplayName(b.ID)
	}
	if b.DefaultModel == "" {
		b.DefaultModel = core.DefaultModelForProvider[b.ID]
	}
	if b.KeyEnv == "" {
		b.KeyEnv = core.KeyEnvForProvider[b.ID]
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.backends[b.ID] = b
}

// Get retrieves a backend by provider id.
func (r *Registry) Get(id string) (Backend, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.backends[id]
	return b, ok
}

// List returns all registered backends, sorted by id.
func (r *Registry) List() []Backend {
	r.mu.RLock()
	defer r.mu.RUnlock()

	backends := make([]Backend, 0, len(r.backends))
	for _, b := range r.backends {
		backends = append(backends, b)
	}
	sort.Slice(backends, func(i, j int) bool { return backends[i].ID < backends[j].ID })
	return backends
}

// Gateway resolves credentials and models, delegates to backend streamers,
// and shapes every outcome into (content, isError).
type Gateway struct {
	registry *Registry

	// Keys overrides environment credentials, keyed by provider id.
	// Populated from configuration.
	Keys map[string]string

	// OnToken, when set, receives every streamed fragment. The turn
	// scheduler does not use it; hosts wire it for live output.
	OnToken func(providerID, token string)
}

// New creates a gateway over a registry.
func New(registry *Registry) *Gateway {
	return &Gateway{registry: registry}
}

// Registry returns the gateway's backend registry.
func (g *Gateway) Registry() *Registry {
	return g.registry
}

// Call runs one completion for providerID. It never returns an error and
// never panics: configuration problems and transport failures both come
// back as (text, true) results suitable for an error-flagged message.
func (g *Gateway) Call(ctx context.Context, providerID, systemPrompt string, entries []history.Entry) (content string, isErr bool) {
	// A misbehaving streamer must not take down the run.
	defer func() {
		if r := recover(); r != nil {
			content, isErr = CanceledMessage, true
		}
	}()

	backend, ok := g.registry.Get(providerID)
	if !ok {
		return fmt.Sprintf("no provider registered for id %q", providerID), true
	}

	if backend.Stream == nil {
		return fmt.Sprintf("no streaming backend wired for %s", backend.DisplayName), true
	}

	apiKey := g.credential(backend)
	if apiKey == "" && backend.KeyEnv != "" {
		return fmt.Sprintf("no API key configured for %s", backend.DisplayName), true
	}

	if ctx.Err() != nil {
		return CanceledMessage, true
	}

	var (
		mu  sync.Mutex
		buf strings.Builder
	)
	onToken := func(token string) {
		// Accumulation stops the instant cancellation fires; late tokens
		// from a still-draining stream are dropped.
		if ctx.Err() != nil {
			return
		}
		mu.Lock()
		buf.WriteString(token)
		mu.Unlock()
		if g.OnToken != nil {
			g.OnToken(providerID, token)
		}
	}

	full, err := backend.Stream(ctx, apiKey, backend.DefaultModel, systemPrompt, entries, onToken)
	if err != nil || ctx.Err() != nil {
		return CanceledMessage, true
	}

	if full == "" {
		mu.Lock()
		full = buf.String()
		mu.Unlock()
	}
	return full, false
}

func (g *Gateway) credential(b Backend) string {
	if key, ok := g.Keys[b.ID]; ok && key != "" {
		return key
	}
	if b.KeyEnv == "" {
		return ""
	}
	return os.Getenv(b.KeyEnv)
}
