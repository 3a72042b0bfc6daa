package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/colloquy-dev/colloquy/internal/core"
	"github.com/colloquy-dev/colloquy/internal/session"
)

// MarkdownExporter exports discussions to Markdown format.
type MarkdownExporter struct{}

// Export writes the discussion as Markdown.
func (e *MarkdownExporter) Export(snap *session.Snapshot, w io.Writer) error {
	var sb strings.Builder

	// Title
	sb.WriteString(fmt.Sprintf("# %s\n\n", snap.Config.Topic))

	// Metadata
	sb.WriteString("## Discussion Information\n\n")
	sb.WriteString(fmt.Sprintf("- **ID:** `%s`\n", snap.ID))
	sb.WriteString(fmt.Sprintf("- **Mode:** %s\n", snap.Config.Mode))
	sb.WriteString(fmt.Sprintf("- **Status:** %s\n", snap.Status))
	sb.WriteString(fmt.Sprintf("- **Rounds:** %d\n", snap.Config.MaxRounds))
	sb.WriteString(fmt.Sprintf("- **Created:** %s\n", snap.CreatedAt.Format("January 2, 2006 at 3:04 PM")))
	sb.WriteString("\n")

	// Participants
	sb.WriteString("## Participants\n\n")
	for _, p := range snap.Config.Participants {
		line := fmt.Sprintf("- **%s**", core.DisplayName(p))
		if role, ok := snap.Config.Roles[p]; ok {
			line += fmt.Sprintf(" — role: %s", role)
		}
		if snap.Config.Mode == core.ModeBattle && p == snap.Config.JudgeProvider {
			line += " (judge)"
		}
		sb.WriteString(line + "\n")
	}
	if snap.Config.Mode == core.ModeBattle && snap.Config.JudgeProvider != "" {
		judgeListed := false
		for _, p := range snap.Config.Participants {
			if p == snap.Config.JudgeProvider {
				judgeListed = true
			}
		}
		if !judgeListed {
			sb.WriteString(fmt.Sprintf("- **%s** (judge)\n", core.DisplayName(snap.Config.JudgeProvider)))
		}
	}
	sb.WriteString("\n")

	// Transcript
	sb.WriteString("## Transcript\n\n")

	if len(snap.Messages) == 0 {
		sb.WriteString("*No messages recorded.*\n\n")
	} else {
		rounds, maxRound := groupByRound(snap.Messages)
		for r := 1; r <= maxRound; r++ {
			turns := rounds[r]
			if len(turns) == 0 {
				continue
			}
			if maxRound > 1 {
				sb.WriteString(fmt.Sprintf("### Round %d\n\n", r))
			}

			for _, msg := range turns {
				header := speakerLabel(msg)
				if msg.Type == core.TypeJudgeEvaluation {
					header += " — Judge Evaluation"
				}
				sb.WriteString(fmt.Sprintf("#### %s\n\n", header))
				sb.WriteString(fmt.Sprintf("*%s*\n\n", msg.Timestamp.Format("3:04 PM")))
				if msg.IsError() {
					sb.WriteString(fmt.Sprintf("> ⚠️ Turn failed: %s\n\n", msg.Err))
				} else {
					sb.WriteString(msg.Content)
					sb.WriteString("\n\n")
				}
				sb.WriteString("---\n\n")
			}
		}
	}

	// Footer
	sb.WriteString("*Exported from colloquy*\n")

	_, err := w.Write([]byte(sb.String()))
	return err
}

// FileExtension returns the file extension for Markdown.
func (e *MarkdownExporter) FileExtension() string {
	return "md"
}
