package gateway

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/colloquy-dev/colloquy/internal/history"
)

func TestCallUnknownProvider(t *testing.T) {
	gw := New(NewRegistry())
	content, isErr := gw.Call(context.Background(), "ghost", "", nil)
	if !isErr {
		t.Fatal("unknown provider did not produce an error result")
	}
	if !strings.Contains(content, "ghost") {
		t.Errorf("error text does not name the provider: %q", content)
	}
}

func TestCallUnwiredBackend(t *testing.T) {
	registry := NewRegistry()
	registry.Register(Backend{ID: "anthropic"})

	content, isErr := New(registry).Call(context.Background(), "anthropic", "", nil)
	if !isErr {
		t.Fatal("unwired backend did not produce an error result")
	}
	if !strings.Contains(content, "no streaming backend") || !strings.Contains(content, "Claude") {
		t.Errorf("unexpected error text: %q", content)
	}
}

func TestCallMissingCredential(t *testing.T) {
	registry := NewRegistry()
	registry.Register(Backend{
		ID:     "locked",
		KeyEnv: "COLLOQUY_TEST_NO_SUCH_KEY",
		Stream: func(ctx context.Context, apiKey, model, systemPrompt string,
			entries []history.Entry, onToken func(string)) (string, error) {
			t.Fatal("streamer must not run without a credential")
			return "", nil
		},
	})

	gw := New(registry)
	content, isErr := gw.Call(context.Background(), "locked", "", nil)
	if !isErr {
		t.Fatal("missing credential did not produce an error result")
	}
	if !strings.Contains(content, "no API key") {
		t.Errorf("unexpected error text: %q", content)
	}
}

func TestCallConfigKeyOverridesEnvironment(t *testing.T) {
	registry := NewRegistry()
	var seenKey string
	registry.Register(Backend{
		ID:     "keyed",
		KeyEnv: "COLLOQUY_TEST_NO_SUCH_KEY",
		Stream: func(ctx context.Context, apiKey, model, systemPrompt string,
			entries []history.Entry, onToken func(string)) (string, error) {
			seenKey = apiKey
			return "done", nil
		},
	})

	gw := New(registry)
	gw.Keys = map[string]string{"keyed": "sk-test"}
	content, isErr := gw.Call(context.Background(), "keyed", "", nil)
	if isErr {
		t.Fatalf("unexpected error result: %q", content)
	}
	if seenKey != "sk-test" {
		t.Errorf("streamer saw key %q, want config-supplied key", seenKey)
	}
}

func TestCallStreamerErrorBecomesCanceledResult(t *testing.T) {
	registry := NewRegistry()
	registry.Register(Backend{
		ID: "flaky",
		Stream: func(ctx context.Context, apiKey, model, systemPrompt string,
			entries []history.Entry, onToken func(string)) (string, error) {
			return "", errors.New("connection reset")
		},
	})

	content, isErr := New(registry).Call(context.Background(), "flaky", "", nil)
	if !isErr || content != CanceledMessage {
		t.Errorf("got (%q, %v), want (%q, true)", content, isErr, CanceledMessage)
	}
}

func TestCallStreamerPanicIsContained(t *testing.T) {
	registry := NewRegistry()
	registry.Register(Backend{
		ID: "bomb",
		Stream: func(ctx context.Context, apiKey, model, systemPrompt string,
			entries []history.Entry, onToken func(string)) (string, error) {
			panic("boom")
		},
	})

	content, isErr := New(registry).Call(context.Background(), "bomb", "", nil)
	if !isErr || content != CanceledMessage {
		t.Errorf("got (%q, %v), want (%q, true)", content, isErr, CanceledMessage)
	}
}

func TestCallCancelledContext(t *testing.T) {
	registry := NewRegistry()
	registry.Register(Backend{ID: "mock", Stream: Simulated(0)})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	content, isErr := New(registry).Call(ctx, "mock", "", nil)
	if !isErr || content != CanceledMessage {
		t.Errorf("got (%q, %v), want (%q, true)", content, isErr, CanceledMessage)
	}
}

func TestCallAccumulatesTokens(t *testing.T) {
	registry := NewRegistry()
	registry.Register(Backend{
		ID: "streamy",
		Stream: func(ctx context.Context, apiKey, model, systemPrompt string,
			entries []history.Entry, onToken func(string)) (string, error) {
			for _, tok := range []string{"a ", "b ", "c"} {
				onToken(tok)
			}
			// Full text left empty: the gateway falls back to the
			// accumulated stream.
			return "", nil
		},
	})

	content, isErr := New(registry).Call(context.Background(), "streamy", "", nil)
	if isErr {
		t.Fatalf("unexpected error result: %q", content)
	}
	if content != "a b c" {
		t.Errorf("accumulated %q, want %q", content, "a b c")
	}
}

func TestCallOnTokenTap(t *testing.T) {
	registry := NewRegistry()
	registry.Register(Backend{ID: "mock", Stream: Simulated(0)})

	gw := New(registry)
	var tokens []string
	gw.OnToken = func(providerID, token string) {
		tokens = append(tokens, token)
	}

	if _, isErr := gw.Call(context.Background(), "mock", "", nil); isErr {
		t.Fatal("simulated call failed")
	}
	if len(tokens) == 0 {
		t.Error("OnToken tap saw no tokens")
	}
}

func TestRegistryDefaultsFromBuiltinTables(t *testing.T) {
	registry := NewRegistry()
	registry.Register(Backend{ID: "anthropic", Stream: Simulated(0)})

	b, ok := registry.Get("anthropic")
	if !ok {
		t.Fatal("backend not registered")
	}
	if b.DisplayName != "Claude" {
		t.Errorf("display name %q, want Claude", b.DisplayName)
	}
	if b.DefaultModel == "" {
		t.Error("default model not filled from builtin table")
	}
	if b.KeyEnv != "ANTHROPIC_API_KEY" {
		t.Errorf("key env %q, want ANTHROPIC_API_KEY", b.KeyEnv)
	}
}

func TestRegistryListSorted(t *testing.T) {
	registry := NewRegistry()
	for _, id := range []string{"zeta", "alpha", "mid"} {
		registry.Register(Backend{ID: id, Stream: Simulated(0)})
	}
	list := registry.List()
	if len(list) != 3 || list[0].ID != "alpha" || list[1].ID != "mid" || list[2].ID != "zeta" {
		t.Errorf("list not sorted by id: %v", []string{list[0].ID, list[1].ID, list[2].ID})
	}
}

func TestSimulatedHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Simulated(10*time.Millisecond)(ctx, "", "m", "", []history.Entry{{Role: "user", Content: "hi"}}, func(string) {})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("got %v, want context.Canceled", err)
	}
}
