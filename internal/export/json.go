package export

import (
	"encoding/json"
	"io"

	"github.com/colloquy-dev/colloquy/internal/session"
)

// JSONExporter exports discussions to JSON format.
type JSONExporter struct{}

// Export writes the discussion snapshot as indented JSON.
func (e *JSONExporter) Export(snap *session.Snapshot, w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(snap)
}

// FileExtension returns the file extension for JSON.
func (e *JSONExporter) FileExtension() string {
	return "json"
}
