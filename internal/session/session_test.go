package session

import (
	"context"
	"testing"
	"time"

	"github.com/colloquy-dev/colloquy/internal/core"
)

func testConfig() core.DebateConfig {
	return core.DebateConfig{
		Mode:         core.ModeRoundRobin,
		Topic:        "test",
		MaxRounds:    1,
		Participants: []string{"anthropic", "openai"},
	}
}

func TestSessionAppendAndSnapshot(t *testing.T) {
	s := New(testConfig())
	if s.Status() != core.StatusIdle {
		t.Errorf("new session status %s, want idle", s.Status())
	}

	s.Append(core.Message{ID: "m1", Provider: "anthropic", Content: "hi", Round: 1})
	s.SetRoundAndTurn(1, 0)
	s.SetLoadingProvider("openai")
	s.SetCountdown(3)

	snap := s.Snapshot()
	if len(snap.Messages) != 1 || snap.Messages[0].ID != "m1" {
		t.Errorf("snapshot messages: %+v", snap.Messages)
	}
	if snap.Round != 1 || snap.Turn != 0 || snap.Loading != "openai" || snap.Countdown != 3 {
		t.Errorf("snapshot state: %+v", snap)
	}

	// Snapshot and Messages return copies, not aliases.
	snap.Messages[0].Content = "mutated"
	if s.Messages()[0].Content != "hi" {
		t.Error("snapshot mutation leaked into the session")
	}
}

func TestSessionWatchersReceiveEvents(t *testing.T) {
	s := New(testConfig())
	ch, cancel := s.Subscribe()
	defer cancel()

	s.Append(core.Message{ID: "m1", Provider: "anthropic", Content: "hi", Round: 1})
	s.SetStatus(core.StatusRunning)

	var types []string
	timeout := time.After(time.Second)
	for len(types) < 2 {
		select {
		case e := <-ch:
			types = append(types, e.Type)
		case <-timeout:
			t.Fatalf("watcher saw %v before timeout", types)
		}
	}
	if types[0] != EventMessage || types[1] != EventStatus {
		t.Errorf("event order %v", types)
	}
}

func TestSubscribeCancelIsIdempotent(t *testing.T) {
	s := New(testConfig())
	_, cancel := s.Subscribe()
	cancel()
	cancel() // second cancel must not panic on a closed channel
	s.Append(core.Message{ID: "m1", Provider: "anthropic", Round: 1})
}

func TestWaitForNextTurnAndAdvance(t *testing.T) {
	s := New(testConfig())

	done := make(chan error, 1)
	go func() {
		done <- s.WaitForNextTurn(context.Background())
	}()
	s.Advance()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("wait returned %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("advance did not release the wait")
	}

	// Cancellation releases the wait too.
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		done <- s.WaitForNextTurn(ctx)
	}()
	cancel()
	select {
	case err := <-done:
		if err == nil {
			t.Fatal("cancelled wait returned nil")
		}
	case <-time.After(time.Second):
		t.Fatal("cancellation did not release the wait")
	}
}

func TestStopCancelsRunContext(t *testing.T) {
	s := New(testConfig())
	ctx, cancel := context.WithCancel(context.Background())
	s.BindCancel(cancel)

	s.Stop()
	if s.Status() != core.StatusStopped {
		t.Errorf("status %s, want stopped", s.Status())
	}
	select {
	case <-ctx.Done():
	default:
		t.Error("stop did not cancel the run context")
	}
}

func TestInterjectUsesCurrentRound(t *testing.T) {
	s := New(testConfig())

	// Before the run starts, interjections land in round 1.
	m := s.Interject("early thought")
	if m.Provider != core.UserProvider || m.Round != 1 {
		t.Errorf("pre-start interjection: %+v", m)
	}

	s.SetRoundAndTurn(3, 1)
	files := []core.Attachment{{Name: "pic.png", MIME: "image/png"}}
	m = s.Interject("mid-debate", files...)
	if m.Round != 3 {
		t.Errorf("interjection round %d, want 3", m.Round)
	}
	if len(m.Files) != 1 {
		t.Errorf("interjection files dropped: %+v", m.Files)
	}
	if len(s.Messages()) != 2 {
		t.Errorf("log has %d messages, want 2", len(s.Messages()))
	}
}

func TestStore(t *testing.T) {
	st := NewStore()
	a := New(testConfig())
	st.Add(a)
	time.Sleep(2 * time.Millisecond)
	b := New(testConfig())
	st.Add(b)

	if _, err := st.Get(a.ID); err != nil {
		t.Errorf("get: %v", err)
	}
	if _, err := st.Get("missing"); err == nil {
		t.Error("missing session lookup succeeded")
	}

	list := st.List()
	if len(list) != 2 || list[0].ID != b.ID {
		t.Errorf("list not newest-first: %v", []string{list[0].ID, list[1].ID})
	}

	if err := st.Delete(a.ID); err != nil {
		t.Errorf("delete: %v", err)
	}
	if st.Count() != 1 {
		t.Errorf("count %d after delete, want 1", st.Count())
	}
	if a.Status() != core.StatusStopped {
		t.Error("deleted session was not stopped")
	}
}
