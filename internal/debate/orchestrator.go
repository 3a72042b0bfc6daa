package debate

import (
	"context"
	"log/slog"
	"time"

	"github.com/colloquy-dev/colloquy/internal/core"
	"github.com/colloquy-dev/colloquy/internal/gateway"
	"github.com/colloquy-dev/colloquy/internal/history"
	"github.com/colloquy-dev/colloquy/internal/prompt"
)

// errorThreshold is the number of consecutive failed turns that forces the
// run into paused for human triage. The counter is shared across all
// participants rather than tracked per provider: a burst of failures from
// any mix of backends reads as a systemic signal (rate limiting, network
// partition), and halting is safer than emitting silent error turns.
const errorThreshold = 2

// Runner executes one discussion to completion, a terminal stop, or
// cancellation. Turns are strictly sequential; each prompt depends on the
// fully committed history through the preceding turn.
type Runner struct {
	cfg core.DebateConfig
	cb  Callbacks
	gw  *gateway.Gateway

	// firstFramed records providers whose history has been framed at least
	// once this run; reference files attach only on that first framing.
	firstFramed map[string]bool

	consecutiveErrors int
}

// NewRunner creates a Runner for one discussion. The config must already be
// validated; the host sets status running before calling Run.
func NewRunner(cfg core.DebateConfig, cb Callbacks, gw *gateway.Gateway) *Runner {
	return &Runner{
		cfg:         cfg,
		cb:          cb,
		gw:          gw,
		firstFramed: make(map[string]bool),
	}
}

// Run drives the discussion. It returns ctx.Err() on cancellation and nil
// otherwise; provider failures never surface as Run errors, they travel
// through the append channel as error-flagged messages.
func (r *Runner) Run(ctx context.Context) error {
	r.cb.SetStatus(core.StatusRunning)

	takers := r.cfg.TurnTakers()
	judge := ""
	if r.cfg.Mode == core.ModeBattle {
		judge = r.cfg.JudgeProvider
	}

	slog.Debug("discussion started",
		"mode", r.cfg.Mode, "rounds", r.cfg.MaxRounds, "participants", len(takers))

	for round := 1; round <= r.cfg.MaxRounds; round++ {
		for turnIndex, providerID := range takers {
			last := round == r.cfg.MaxRounds && turnIndex == len(takers)-1 && judge == ""
			if done := r.step(ctx, providerID, round, turnIndex, false, last); done != nil {
				return done.err
			}
		}

		if judge != "" {
			last := round == r.cfg.MaxRounds
			if done := r.step(ctx, judge, round, len(takers), true, last); done != nil {
				return done.err
			}
		}
	}

	r.cb.SetStatus(core.StatusCompleted)
	r.cb.SetLoadingProvider("")
	r.cb.SetCountdown(0)
	slog.Debug("discussion completed", "rounds", r.cfg.MaxRounds)
	return nil
}

// stepResult is non-nil when the run must end after a step.
type stepResult struct {
	err error
}

// step executes one turn: abort check, pause wait, prompt, framing, gateway
// call, append, error policy, pacing. A nil result means continue.
func (r *Runner) step(ctx context.Context, providerID string, round, turnIndex int, isJudge, isLast bool) *stepResult {
	// Abort leaves the status as-is; the host tells stop from abort by
	// who cancelled.
	if ctx.Err() != nil {
		return &stepResult{err: ctx.Err()}
	}
	if !holdWhilePaused(ctx, r.cb) {
		return &stepResult{err: ctx.Err()}
	}

	r.cb.SetRoundAndTurn(round, turnIndex)
	r.cb.SetLoadingProvider(providerID)

	systemPrompt := prompt.Build(r.cfg, providerID)
	entries := r.frame(providerID, isJudge)

	content, isErr := r.gw.Call(ctx, providerID, systemPrompt, entries)
	r.cb.SetLoadingProvider("")

	msg := core.Message{
		ID:        core.NewID(),
		Provider:  providerID,
		Content:   content,
		Round:     round,
		Timestamp: time.Now(),
	}
	if isErr {
		msg.Err = content
	}
	if isJudge {
		msg.Type = core.TypeJudgeEvaluation
	}
	if r.cfg.Mode == core.ModeRoleAssignment || r.cfg.Mode == core.ModeBattle {
		if role, ok := r.cfg.Roles[providerID]; ok {
			msg.RoleName = prompt.GetRole(role).Name
		} else if isJudge {
			msg.RoleName = "Judge"
		}
	}
	r.cb.Append(msg)

	if isErr {
		r.consecutiveErrors++
		slog.Debug("turn failed", "provider", providerID, "round", round,
			"consecutive", r.consecutiveErrors)
		if r.consecutiveErrors >= errorThreshold {
			r.cb.SetStatus(core.StatusPaused)
			if !holdWhilePaused(ctx, r.cb) {
				return &stepResult{err: ctx.Err()}
			}
			r.consecutiveErrors = 0
		}
	} else {
		r.consecutiveErrors = 0
	}

	if !isLast {
		if !pace(ctx, r.cfg.Pacing, r.cb) {
			return &stepResult{err: ctx.Err()}
		}
	}
	return nil
}

// frame re-reads the current log and builds the payload for providerID,
// marking the provider's first framing exactly once for the whole run.
func (r *Runner) frame(providerID string, isJudge bool) []history.Entry {
	firstCall := !r.firstFramed[providerID]
	r.firstFramed[providerID] = true

	var refs []core.Attachment
	if r.cfg.UseReference {
		refs = r.cfg.ReferenceFiles
	}

	log := r.cb.Messages()
	if isJudge {
		return history.FrameForJudge(log, providerID, refs, firstCall)
	}
	return history.Frame(log, providerID, refs, firstCall)
}
