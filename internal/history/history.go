// Package history converts the shared discussion log into the
// provider-specific request payload for the next turn.
//
// The framing asymmetry is the load-bearing rule: a participant's own past
// turns are replayed verbatim under the assistant role, while every other
// speaker's turns arrive as user entries prefixed with a bracketed label.
// That lets each participant read the dialogue uniformly no matter how many
// others are present.
package history

import (
	"github.com/colloquy-dev/colloquy/internal/core"
)

// Entry roles.
const (
	RoleAssistant = "assistant"
	RoleUser      = "user"
)

// Part types for multimodal entries.
const (
	PartText  = "text"
	PartImage = "image"
)

// Window sizes. Judge turns see a longer window because evaluation needs
// the full round, and their own non-evaluation noise is filtered out first.
const (
	windowSize      = 15
	judgeWindowSize = 20
)

// Part is one ordered block of a multimodal entry.
type Part struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
	MIME string `json:"mime,omitempty"`
	Data []byte `json:"data,omitempty"`
}

// Entry is one role-tagged element of a framed request payload. Content is
// used when the entry is plain text; Parts is set only when the entry
// carries attachments and then holds the ordered text/image blocks.
type Entry struct {
	Role    string `json:"role"`
	Content string `json:"content,omitempty"`
	Parts   []Part `json:"parts,omitempty"`
}

// Text returns the textual content of the entry regardless of shape.
func (e Entry) Text() string {
	if e.Parts == nil {
		return e.Content
	}
	var s string
	for _, p := range e.Parts {
		if p.Type == PartText {
			s += p.Text
		}
	}
	return s
}

// Frame builds the request payload for a normal turn: the most recent
// messages, labeled for providerID. Reference files attach only when
// firstCall is true; the orchestrator sets it exactly once per provider
// for the whole run.
func Frame(log []core.Message, providerID string, refs []core.Attachment, firstCall bool) []Entry {
	return frame(log, providerID, refs, firstCall, windowSize)
}

// FrameForJudge builds the request payload for a battle-mode judge turn.
// The log is first reduced to the debaters' turns plus the judge's own
// prior evaluations, so stray judge output never pollutes its view.
func FrameForJudge(log []core.Message, judgeID string, refs []core.Attachment, firstCall bool) []Entry {
	kept := make([]core.Message, 0, len(log))
	for _, m := range log {
		if m.Provider != judgeID || m.Type == core.TypeJudgeEvaluation {
			kept = append(kept, m)
		}
	}
	return frame(kept, judgeID, refs, firstCall, judgeWindowSize)
}

func frame(log []core.Message, providerID string, refs []core.Attachment, firstCall bool, window int) []Entry {
	if len(log) > window {
		log = log[len(log)-window:]
	}

	if len(log) == 0 {
		opener := Entry{
			Role:    RoleUser,
			Content: "No one has spoken yet. Please begin the discussion according to your instructions.",
		}
		if firstCall && len(refs) > 0 {
			opener = withAttachments(opener, refs)
		}
		return []Entry{opener}
	}

	entries := make([]Entry, 0, len(log))
	for _, m := range log {
		var e Entry
		if m.Provider == providerID {
			e = Entry{Role: RoleAssistant, Content: m.Content}
		} else {
			label := speakerLabel(m)
			e = Entry{Role: RoleUser, Content: "[" + label + "] " + m.Content}
		}
		// Interjection-embedded files always ride along, however often the
		// provider has been called.
		if len(m.Files) > 0 {
			e = withAttachments(e, m.Files)
		}
		entries = append(entries, e)
	}

	if firstCall && len(refs) > 0 {
		entries[0] = withAttachments(entries[0], refs)
	}

	return entries
}

func speakerLabel(m core.Message) string {
	label := core.DisplayName(m.Provider)
	if m.Type == core.TypeJudgeEvaluation {
		label += " (judge evaluation)"
	}
	return label
}

// withAttachments converts a plain entry into a multimodal one, keeping the
// text first and appending one part per attachment in order. Image files
// become image parts; anything else is referenced by name so the model
// knows the file exists even when its bytes cannot be framed.
func withAttachments(e Entry, files []core.Attachment) Entry {
	parts := e.Parts
	if parts == nil {
		parts = []Part{{Type: PartText, Text: e.Content}}
	}
	for _, f := range files {
		if f.IsImage() {
			parts = append(parts, Part{Type: PartImage, MIME: f.MIME, Data: f.Data})
		} else {
			parts = append(parts, Part{Type: PartText, Text: "[attached file: " + f.Name + "]"})
		}
	}
	return Entry{Role: e.Role, Parts: parts}
}
