// Package session holds the host side of a running discussion: the
// transcript, lifecycle status, and the live state the scheduler reports.
// A Session implements debate.Callbacks and fans every change out to
// subscribed watchers, which is how the web surface streams updates.
// Sessions live only in memory; exporting a snapshot is an explicit user
// action, never automatic persistence.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/colloquy-dev/colloquy/internal/core"
)

// Event types broadcast to watchers.
const (
	EventMessage   = "message"
	EventStatus    = "status"
	EventRound     = "round"
	EventLoading   = "loading"
	EventCountdown = "countdown"
)

// Event is one incremental update pushed to watchers.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// RoundTurn pairs the current round with the turn index inside it.
type RoundTurn struct {
	Round int `json:"round"`
	Turn  int `json:"turn"`
}

// Session owns one discussion's observable state.
type Session struct {
	ID        string
	Config    core.DebateConfig
	CreatedAt time.Time

	mu        sync.RWMutex
	messages  []core.Message
	status    core.Status
	round     int
	turn      int
	loading   string
	countdown int
	watchers  map[chan Event]struct{}
	advance   chan struct{}
	cancel    context.CancelFunc
}

// New creates an idle session for a validated config.
func New(cfg core.DebateConfig) *Session {
	return &Session{
		ID:        core.NewID(),
		Config:    cfg,
		CreatedAt: time.Now(),
		status:    core.StatusIdle,
		watchers:  make(map[chan Event]struct{}),
		advance:   make(chan struct{}, 1),
	}
}

// BindCancel attaches the run's cancel function so Stop can abort it.
func (s *Session) BindCancel(cancel context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancel = cancel
}

// Append commits one message and notifies watchers.
func (s *Session) Append(msg core.Message) {
	s.mu.Lock()
	s.messages = append(s.messages, msg)
	s.mu.Unlock()
	s.broadcast(Event{Type: EventMessage, Data: msg})
}

// SetStatus records a lifecycle transition.
func (s *Session) SetStatus(status core.Status) {
	s.mu.Lock()
	s.status = status
	s.mu.Unlock()
	s.broadcast(Event{Type: EventStatus, Data: status})
}

// SetRoundAndTurn records the scheduler's position.
func (s *Session) SetRoundAndTurn(round, turn int) {
	s.mu.Lock()
	s.round, s.turn = round, turn
	s.mu.Unlock()
	s.broadcast(Event{Type: EventRound, Data: RoundTurn{Round: round, Turn: turn}})
}

// SetLoadingProvider records which provider's call is in flight.
func (s *Session) SetLoadingProvider(id string) {
	s.mu.Lock()
	s.loading = id
	s.mu.Unlock()
	s.broadcast(Event{Type: EventLoading, Data: id})
}

// SetCountdown records pacing progress.
func (s *Session) SetCountdown(seconds int) {
	s.mu.Lock()
	s.countdown = seconds
	s.mu.Unlock()
	s.broadcast(Event{Type: EventCountdown, Data: seconds})
}

// Messages returns a copy of the current log.
func (s *Session) Messages() []core.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Status returns the current lifecycle status.
func (s *Session) Status() core.Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// WaitForNextTurn blocks until Advance is called or ctx is cancelled.
func (s *Session) WaitForNextTurn(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.advance:
		return nil
	}
}

// Advance confirms the next turn under manual pacing. Confirmations do not
// stack: one pending confirmation at most.
func (s *Session) Advance() {
	select {
	case s.advance <- struct{}{}:
	default:
	}
}

// Pause asks the scheduler to hold before its next turn.
func (s *Session) Pause() {
	s.SetStatus(core.StatusPaused)
}

// Resume releases a pause.
func (s *Session) Resume() {
	s.SetStatus(core.StatusRunning)
}

// Stop terminates the run: status goes to stopped and the run context is
// cancelled so in-flight calls unwind.
func (s *Session) Stop() {
	s.SetStatus(core.StatusStopped)
	s.mu.RLock()
	cancel := s.cancel
	s.mu.RUnlock()
	if cancel != nil {
		cancel()
	}
	// Unblock a manual-pacing wait; the scheduler re-checks status on wake.
	s.Advance()
}

// Interject appends a human message at the current round. The scheduler
// picks it up on its next framing read.
func (s *Session) Interject(content string, files ...core.Attachment) core.Message {
	s.mu.Lock()
	round := s.round
	if round < 1 {
		round = 1
	}
	msg := core.Message{
		ID:        core.NewID(),
		Provider:  core.UserProvider,
		Content:   content,
		Round:     round,
		Timestamp: time.Now(),
		Files:     files,
	}
	s.messages = append(s.messages, msg)
	s.mu.Unlock()
	s.broadcast(Event{Type: EventMessage, Data: msg})
	return msg
}

// Subscribe registers a watcher. The returned cancel function must be
// called when the watcher is done. Slow watchers lose events rather than
// blocking the scheduler.
func (s *Session) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 64)
	s.mu.Lock()
	s.watchers[ch] = struct{}{}
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.watchers[ch]; ok {
			delete(s.watchers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *Session) broadcast(e Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for ch := range s.watchers {
		select {
		case ch <- e:
		default:
		}
	}
}

// Snapshot is a point-in-time copy of a session for handlers and exporters.
type Snapshot struct {
	ID        string             `json:"id"`
	Config    core.DebateConfig  `json:"config"`
	Messages  []core.Message     `json:"messages"`
	Status    core.Status        `json:"status"`
	Round     int                `json:"round"`
	Turn      int                `json:"turn"`
	Loading   string             `json:"loading_provider,omitempty"`
	Countdown int                `json:"countdown"`
	CreatedAt time.Time          `json:"created_at"`
}

// Snapshot returns a consistent copy of the session state.
func (s *Session) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := make([]core.Message, len(s.messages))
	copy(msgs, s.messages)
	return &Snapshot{
		ID:        s.ID,
		Config:    s.Config,
		Messages:  msgs,
		Status:    s.status,
		Round:     s.round,
		Turn:      s.turn,
		Loading:   s.loading,
		Countdown: s.countdown,
		CreatedAt: s.CreatedAt,
	}
}
