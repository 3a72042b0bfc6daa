// Package export renders discussion snapshots to shareable formats.
package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/colloquy-dev/colloquy/internal/core"
	"github.com/colloquy-dev/colloquy/internal/session"
)

// Format represents an export format.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatPDF      Format = "pdf"
	FormatJSON     Format = "json"
)

// Exporter defines the interface for exporting discussions.
type Exporter interface {
	Export(snap *session.Snapshot, w io.Writer) error
	FileExtension() string
}

// GetExporter returns an exporter for the given format.
func GetExporter(format Format) (Exporter, error) {
	switch format {
	case FormatMarkdown:
		return &MarkdownExporter{}, nil
	case FormatPDF:
		return &PDFExporter{}, nil
	case FormatJSON:
		return &JSONExporter{}, nil
	default:
		return nil, fmt.Errorf("unsupported export format: %s", format)
	}
}

// GenerateFilename creates a filename for the export.
func GenerateFilename(topic string, createdAt time.Time, ext string) string {
	if len(topic) > 50 {
		topic = topic[:50]
	}

	// Replace unsafe characters
	replacer := strings.NewReplacer(
		" ", "_",
		"/", "-",
		"\\", "-",
		":", "-",
		"*", "",
		"?", "",
		"\"", "",
		"<", "",
		">", "",
		"|", "",
	)
	topic = replacer.Replace(topic)

	timestamp := createdAt.Format("20060102")
	return fmt.Sprintf("discussion_%s_%s.%s", timestamp, topic, ext)
}

// speakerLabel resolves a message to its display heading: the assigned role
// name when one exists, the provider display name otherwise, and a fixed
// label for human interjections.
func speakerLabel(msg core.Message) string {
	if msg.Provider == core.UserProvider {
		return "User"
	}
	name := core.DisplayName(msg.Provider)
	if msg.RoleName != "" {
		return fmt.Sprintf("%s (%s)", name, msg.RoleName)
	}
	return name
}

// groupByRound partitions messages by round, preserving order, and returns
// the highest round seen.
func groupByRound(messages []core.Message) (map[int][]core.Message, int) {
	rounds := make(map[int][]core.Message)
	maxRound := 0
	for _, m := range messages {
		rounds[m.Round] = append(rounds[m.Round], m)
		if m.Round > maxRound {
			maxRound = m.Round
		}
	}
	return rounds, maxRound
}
