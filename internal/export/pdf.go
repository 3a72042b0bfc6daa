package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"github.com/colloquy-dev/colloquy/internal/core"
	"github.com/colloquy-dev/colloquy/internal/session"
)

// PDFExporter exports discussions to PDF format.
type PDFExporter struct{}

// Export writes the discussion as PDF.
func (e *PDFExporter) Export(snap *session.Snapshot, w io.Writer) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 20)

	pdf.AddPage()

	// Title
	pdf.SetFont("Arial", "B", 18)
	pdf.MultiCell(0, 10, e.sanitizeText(snap.Config.Topic), "", "C", false)
	pdf.Ln(5)

	// Metadata section
	pdf.SetFont("Arial", "B", 12)
	pdf.Cell(0, 8, "Discussion Information")
	pdf.Ln(8)

	pdf.SetFont("Arial", "", 10)
	id := snap.ID
	if len(id) > 8 {
		id = id[:8] + "..."
	}
	e.addMetadataRow(pdf, "ID:", id)
	e.addMetadataRow(pdf, "Mode:", string(snap.Config.Mode))
	e.addMetadataRow(pdf, "Status:", string(snap.Status))
	e.addMetadataRow(pdf, "Rounds:", fmt.Sprintf("%d", snap.Config.MaxRounds))
	e.addMetadataRow(pdf, "Created:", snap.CreatedAt.Format("January 2, 2006 at 3:04 PM"))
	pdf.Ln(5)

	// Participants section
	pdf.SetFont("Arial", "B", 12)
	pdf.Cell(0, 8, "Participants")
	pdf.Ln(8)

	pdf.SetFont("Arial", "", 10)
	for _, p := range snap.Config.Participants {
		line := core.DisplayName(p)
		if role, ok := snap.Config.Roles[p]; ok {
			line += fmt.Sprintf(" - role: %s", role)
		}
		if snap.Config.Mode == core.ModeBattle && p == snap.Config.JudgeProvider {
			line += " (judge)"
		}
		pdf.Cell(0, 5, e.sanitizeText(line))
		pdf.Ln(5)
	}
	pdf.Ln(5)

	// Transcript
	pdf.SetFont("Arial", "B", 12)
	pdf.Cell(0, 8, "Transcript")
	pdf.Ln(8)

	if len(snap.Messages) == 0 {
		pdf.SetFont("Arial", "I", 10)
		pdf.Cell(0, 6, "No messages recorded.")
		pdf.Ln(6)
	} else {
		for _, msg := range snap.Messages {
			if pdf.GetY() > 250 {
				pdf.AddPage()
			}

			switch {
			case msg.IsError():
				pdf.SetFillColor(255, 200, 200)
			case msg.Type == core.TypeJudgeEvaluation:
				pdf.SetFillColor(255, 240, 200)
			case msg.Provider == core.UserProvider:
				pdf.SetFillColor(220, 220, 220)
			default:
				pdf.SetFillColor(200, 230, 255)
			}

			pdf.SetFont("Arial", "B", 10)
			header := fmt.Sprintf("Round %d - %s (%s)", msg.Round, speakerLabel(msg), msg.Timestamp.Format("3:04 PM"))
			if msg.Type == core.TypeJudgeEvaluation {
				header += " - Judge Evaluation"
			}
			pdf.CellFormat(0, 7, e.sanitizeText(header), "", 1, "", true, 0, "")

			pdf.SetFont("Arial", "", 9)
			pdf.SetFillColor(255, 255, 255)

			body := msg.Content
			if msg.IsError() {
				body = "Turn failed: " + msg.Err
			}
			pdf.MultiCell(0, 5, e.sanitizeText(body), "", "", false)
			pdf.Ln(5)
		}
	}

	// Footer
	pdf.SetY(-15)
	pdf.SetFont("Arial", "I", 8)
	pdf.CellFormat(0, 10, "Exported from colloquy", "", 0, "C", false, 0, "")

	return pdf.Output(w)
}

// FileExtension returns the file extension for PDF.
func (e *PDFExporter) FileExtension() string {
	return "pdf"
}

// Helper to add a metadata row
func (e *PDFExporter) addMetadataRow(pdf *gofpdf.Fpdf, label, value string) {
	pdf.SetFont("Arial", "B", 10)
	pdf.Cell(30, 5, label)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 5, value)
	pdf.Ln(5)
}

// Sanitize text for PDF (gofpdf uses Windows-1252 encoding by default).
func (e *PDFExporter) sanitizeText(text string) string {
	replacer := strings.NewReplacer(
		"\u2018", "'", // Left single quote
		"\u2019", "'", // Right single quote
		"\u201C", "\"", // Left double quote
		"\u201D", "\"", // Right double quote
		"\u2013", "-", // En dash
		"\u2014", "--", // Em dash
		"\u2026", "...", // Ellipsis
		"\u2022", "*", // Bullet
		"\u00A0", " ", // Non-breaking space
	)
	return replacer.Replace(text)
}
