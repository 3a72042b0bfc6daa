package debate

import (
	"context"
	"time"

	"github.com/colloquy-dev/colloquy/internal/core"
)

// pace advances time between turns and reports whether the run should
// continue. Auto pacing counts AutoDelaySeconds down to zero in one-second
// steps; manual pacing suspends until the host confirms. Both disciplines
// honor the same pause/abort contract: a paused status holds the countdown
// in place, and cancellation ends the run immediately.
func pace(ctx context.Context, p core.PacingConfig, cb Callbacks) bool {
	if p.Mode == core.PacingManual {
		return paceManual(ctx, cb)
	}
	return paceAuto(ctx, p.AutoDelaySeconds, cb)
}

func paceAuto(ctx context.Context, delaySeconds int, cb Callbacks) bool {
	for remaining := delaySeconds; remaining >= 1; remaining-- {
		cb.SetCountdown(remaining)
		if !holdWhilePaused(ctx, cb) {
			return false
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(time.Second):
		}
	}
	cb.SetCountdown(0)
	return true
}

func paceManual(ctx context.Context, cb Callbacks) bool {
	cb.SetCountdown(-1)
	if err := cb.WaitForNextTurn(ctx); err != nil {
		return false
	}
	// A stop or pause may have raced the confirmation; only a running
	// status lets the next turn proceed.
	if cb.Status() != core.StatusRunning {
		return false
	}
	cb.SetCountdown(0)
	return true
}

// holdWhilePaused blocks while the host holds the run paused, polling the
// status at pollInterval. It returns false when ctx is cancelled.
func holdWhilePaused(ctx context.Context, cb Callbacks) bool {
	for cb.Status() == core.StatusPaused {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(pollInterval):
		}
	}
	return ctx.Err() == nil
}
