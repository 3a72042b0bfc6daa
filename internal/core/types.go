// Package core contains the core domain types for colloquy.
package core

import (
	"fmt"
	"strings"
	"time"
)

// Mode selects how turns are ordered and prompted in a discussion.
type Mode string

const (
	ModeRoundRobin     Mode = "roundRobin"
	ModeFreeDiscussion Mode = "freeDiscussion"
	ModeRoleAssignment Mode = "roleAssignment"
	ModeBattle         Mode = "battle"
)

// PacingMode selects how the engine advances between turns.
type PacingMode string

const (
	PacingAuto   PacingMode = "auto"
	PacingManual PacingMode = "manual"
)

// Status represents the lifecycle state of a discussion.
//
// The engine drives running→completed and may force running→paused under
// the error-threshold policy. Only the host drives paused→running or
// any→stopped. StatusIdle is the host-owned pre-start state; the engine
// never sets it.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusRunning   Status = "running"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusStopped   Status = "stopped"
)

// UserProvider is the sentinel provider id for human interjections.
const UserProvider = "user"

// TypeJudgeEvaluation marks a message produced by the battle-mode judge.
const TypeJudgeEvaluation = "judge-evaluation"

// Attachment is a file carried into the discussion, either as shared
// reference material or embedded in a single interjection. Non-text
// attachments are treated as images when framing multimodal requests.
type Attachment struct {
	Name string `json:"name"`
	MIME string `json:"mime"`
	Data []byte `json:"data,omitempty"`
}

// IsImage reports whether the attachment should be framed as an image part.
func (a Attachment) IsImage() bool {
	return strings.HasPrefix(a.MIME, "image/")
}

// PacingConfig describes the delay discipline between turns.
type PacingConfig struct {
	Mode             PacingMode `json:"mode"`
	AutoDelaySeconds int        `json:"auto_delay_seconds"`
}

// DebateConfig describes one discussion. It is created once by the host and
// read-only for the lifetime of the run.
type DebateConfig struct {
	Mode           Mode              `json:"mode"`
	Topic          string            `json:"topic"`
	MaxRounds      int               `json:"max_rounds"`
	Participants   []string          `json:"participants"` // ordered, unique provider ids
	Roles          map[string]string `json:"roles,omitempty"`
	JudgeProvider  string            `json:"judge_provider,omitempty"` // battle only; never takes a debater turn
	UseReference   bool              `json:"use_reference"`
	ReferenceText  string            `json:"reference_text,omitempty"`
	ReferenceFiles []Attachment      `json:"reference_files,omitempty"`
	Pacing         PacingConfig      `json:"pacing"`
}

// TurnTakers returns the participants that take debater turns, in config
// order. In battle mode the judge is excluded even when it appears in the
// participant list.
func (c DebateConfig) TurnTakers() []string {
	if c.Mode != ModeBattle || c.JudgeProvider == "" {
		return c.Participants
	}
	takers := make([]string, 0, len(c.Participants))
	for _, p := range c.Participants {
		if p != c.JudgeProvider {
			takers = append(takers, p)
		}
	}
	return takers
}

// Message is one committed transcript entry. Messages are append-only and
// immutable once created; the log itself is owned by the host.
type Message struct {
	ID        string       `json:"id"`
	Provider  string       `json:"provider"` // provider id, or "user"
	Content   string       `json:"content"`
	Round     int          `json:"round"`
	Timestamp time.Time    `json:"timestamp"`
	Err       string       `json:"error,omitempty"`     // failure text when the turn failed
	Type      string       `json:"type,omitempty"`      // "judge-evaluation" for judge turns
	RoleName  string       `json:"role_name,omitempty"` // display label for assigned roles
	Files     []Attachment `json:"files,omitempty"`     // echoed from interjections
}

// IsError reports whether the message records a failed turn.
func (m Message) IsError() bool {
	return m.Err != ""
}

// ValidateConfig checks a configuration before a run is started. The engine
// itself surfaces per-turn problems (unknown provider, missing credential)
// as error-flagged messages instead; this catches what would make the run
// meaningless before it begins.
func ValidateConfig(cfg DebateConfig) error {
	if strings.TrimSpace(cfg.Topic) == "" {
		return fmt.Errorf("topic cannot be empty")
	}
	if cfg.MaxRounds < 1 {
		return fmt.Errorf("max rounds must be at least 1, got %d", cfg.MaxRounds)
	}
	if len(cfg.Participants) == 0 {
		return fmt.Errorf("at least one participant is required")
	}
	seen := make(map[string]bool, len(cfg.Participants))
	for _, p := range cfg.Participants {
		if strings.TrimSpace(p) == "" {
			return fmt.Errorf("participant ids cannot be empty")
		}
		if p == UserProvider {
			return fmt.Errorf("%q is reserved for human interjections", UserProvider)
		}
		if seen[p] {
			return fmt.Errorf("duplicate participant: %s", p)
		}
		seen[p] = true
	}
	switch cfg.Mode {
	case ModeRoundRobin, ModeFreeDiscussion, ModeRoleAssignment, ModeBattle:
	default:
		return fmt.Errorf("unknown mode: %s", cfg.Mode)
	}
	if cfg.JudgeProvider != "" && cfg.Mode != ModeBattle {
		return fmt.Errorf("judge provider is only valid in battle mode")
	}
	if cfg.Mode == ModeBattle && len(cfg.TurnTakers()) == 0 {
		return fmt.Errorf("battle mode needs at least one debater besides the judge")
	}
	switch cfg.Pacing.Mode {
	case PacingAuto, PacingManual, "":
	default:
		return fmt.Errorf("unknown pacing mode: %s", cfg.Pacing.Mode)
	}
	return nil
}
