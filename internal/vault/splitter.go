// Package vault indexes reference documents and retrieves the passages a
// discussion should ground itself in. Indexed text is chunked, stored in
// SQLite, and searched by term match; hits are formatted into the reference
// block handed to a discussion config.
package vault

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
)

// Default chunking parameters.
const (
	DefaultChunkSize = 512
	DefaultOverlap   = 64
)

// separators is the split cascade, coarsest first. The empty string means
// a hard cut at the size limit.
var separators = []string{"\n\n", "\n", "。", ". ", " ", ""}

// Document is one reference text to index.
type Document struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Chunk is one indexed slice of a document.
type Chunk struct {
	ID      string `json:"id"`
	DocID   string `json:"doc_id"`
	Title   string `json:"title"`
	Section string `json:"section,omitempty"`
	Index   int    `json:"index"`
	Content string `json:"content"`
}

// Splitter cuts text into overlapping chunks, splitting on the coarsest
// boundary that keeps pieces under the size limit.
type Splitter struct {
	ChunkSize int
	Overlap   int
}

// NewSplitter returns a splitter with the default parameters.
func NewSplitter() *Splitter {
	return &Splitter{ChunkSize: DefaultChunkSize, Overlap: DefaultOverlap}
}

// ChunkID derives a stable id for a chunk of a document section.
func ChunkID(docID, section string, index int) string {
	sum := md5.Sum([]byte(fmt.Sprintf("%s::%s::%d", docID, section, index)))
	return hex.EncodeToString(sum[:])
}

// Split cuts raw text into chunks.
func (sp *Splitter) Split(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	return sp.recurse(text, separators)
}

// SplitDocument chunks a document, tracking the nearest preceding markdown
// heading so each chunk carries its section. Chunk ids are stable across
// re-indexing as long as the content layout is unchanged.
func (sp *Splitter) SplitDocument(doc Document) []Chunk {
	var chunks []Chunk
	for _, sec := range splitSections(doc.Content) {
		for i, text := range sp.Split(sec.body) {
			chunks = append(chunks, Chunk{
				ID:      ChunkID(doc.ID, sec.heading, i),
				DocID:   doc.ID,
				Title:   doc.Title,
				Section: sec.heading,
				Index:   i,
				Content: text,
			})
		}
	}
	return chunks
}

type section struct {
	heading string
	body    string
}

// splitSections groups content under markdown headings. Text before the
// first heading forms an unnamed section.
func splitSections(content string) []section {
	var sections []section
	var heading string
	var body strings.Builder

	flush := func() {
		if strings.TrimSpace(body.String()) != "" {
			sections = append(sections, section{heading: heading, body: body.String()})
		}
		body.Reset()
	}

	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") {
			flush()
			heading = strings.TrimSpace(strings.TrimLeft(trimmed, "#"))
			continue
		}
		body.WriteString(line)
		body.WriteString("\n")
	}
	flush()
	return sections
}

func (sp *Splitter) recurse(text string, seps []string) []string {
	if len(text) <= sp.ChunkSize {
		if strings.TrimSpace(text) == "" {
			return nil
		}
		return []string{strings.TrimSpace(text)}
	}
	for i, sep := range seps {
		if sep == "" {
			return sp.hardCut(text)
		}
		if !strings.Contains(text, sep) {
			continue
		}
		return sp.merge(strings.SplitAfter(text, sep), seps[i+1:])
	}
	return sp.hardCut(text)
}

// merge greedily packs split pieces into chunks up to the size limit,
// seeding each new chunk with the tail of the previous one for overlap.
func (sp *Splitter) merge(parts []string, deeper []string) []string {
	var out []string
	var cur strings.Builder
	seedLen := 0

	flush := func() string {
		raw := cur.String()
		if chunk := strings.TrimSpace(raw); chunk != "" && cur.Len() > seedLen {
			out = append(out, chunk)
		}
		cur.Reset()
		seedLen = 0
		return raw
	}

	for _, p := range parts {
		if len(p) > sp.ChunkSize {
			flush()
			out = append(out, sp.recurse(p, deeper)...)
			continue
		}
		// A chunk holding only its overlap seed absorbs the next piece even
		// when that overflows slightly; otherwise the seed would be emitted
		// as a duplicate chunk of its own.
		if cur.Len()+len(p) > sp.ChunkSize && cur.Len() > seedLen {
			prev := flush()
			if sp.Overlap > 0 && len(prev) > sp.Overlap {
				cur.WriteString(prev[len(prev)-sp.Overlap:])
				seedLen = cur.Len()
			}
		}
		cur.WriteString(p)
	}
	flush()
	return out
}

func (sp *Splitter) hardCut(text string) []string {
	step := sp.ChunkSize - sp.Overlap
	if step < 1 {
		step = sp.ChunkSize
	}
	var out []string
	for start := 0; start < len(text); start += step {
		end := start + sp.ChunkSize
		if end > len(text) {
			end = len(text)
		}
		out = append(out, text[start:end])
		if end == len(text) {
			break
		}
	}
	return out
}
