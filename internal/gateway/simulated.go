package gateway

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/colloquy-dev/colloquy/internal/history"
)

// Simulated returns a Streamer that emits a deterministic response word by
// word, honoring cancellation between words. It backs the "mock" provider
// so discussions can run end to end with no network or credentials.
func Simulated(tokenDelay time.Duration) Streamer {
	return func(ctx context.Context, apiKey, model, systemPrompt string,
		entries []history.Entry, onToken func(string)) (string, error) {

		last := ""
		if len(entries) > 0 {
			last = entries[len(entries)-1].Text()
		}
		response := fmt.Sprintf("Simulated %s response to: %s [generated content]",
			model, truncate(last, 60))

		for _, token := range strings.SplitAfter(response, " ") {
			if tokenDelay > 0 {
				select {
				case <-ctx.Done():
					return "", ctx.Err()
				case <-time.After(tokenDelay):
				}
			} else if ctx.Err() != nil {
				return "", ctx.Err()
			}
			onToken(token)
		}

		return response, nil
	}
}

// SimulatedBackend builds a ready-to-register backend around Simulated.
func SimulatedBackend(id string, tokenDelay time.Duration) Backend {
	return Backend{
		ID:     id,
		Stream: Simulated(tokenDelay),
	}
}

func truncate(s string, max int) string {
	if len(s) > max {
		return s[:max]
	}
	return s
}
