package vault

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// DefaultTopK is the number of hits a search returns when the caller does
// not say otherwise.
const DefaultTopK = 3

// Hit is one search result.
type Hit struct {
	DocID   string  `json:"doc_id"`
	Title   string  `json:"title"`
	Section string  `json:"section,omitempty"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// Stats summarizes the index.
type Stats struct {
	Chunks    int `json:"chunks"`
	Documents int `json:"documents"`
}

// Store is the SQLite-backed chunk index.
type Store struct {
	db       *sql.DB
	path     string
	splitter *Splitter
}

// Open opens (creating if needed) the index database at dbPath.
func Open(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create vault directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open vault database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to vault database: %w", err)
	}

	return &Store{db: db, path: dbPath, splitter: NewSplitter()}, nil
}

// Initialize creates the schema.
func (s *Store) Initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS chunks (
		id TEXT PRIMARY KEY,
		doc_id TEXT NOT NULL,
		title TEXT NOT NULL,
		section TEXT NOT NULL DEFAULT '',
		idx INTEGER NOT NULL,
		content TEXT NOT NULL,
		indexed_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_doc_id ON chunks(doc_id);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create vault schema: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SetSplitter overrides the chunking parameters.
func (s *Store) SetSplitter(sp *Splitter) {
	s.splitter = sp
}

// Index upserts one document: its previous chunks are deleted and the new
// chunks inserted in a single transaction. Returns the chunk count.
func (s *Store) Index(ctx context.Context, doc Document) (int, error) {
	chunks := s.splitter.SplitDocument(doc)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE doc_id = ?", doc.ID); err != nil {
		return 0, fmt.Errorf("failed to clear previous chunks: %w", err)
	}

	now := time.Now()
	for _, c := range chunks {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO chunks (id, doc_id, title, section, idx, content, indexed_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
			c.ID, c.DocID, c.Title, c.Section, c.Index, c.Content, now)
		if err != nil {
			return 0, fmt.Errorf("failed to insert chunk: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit index: %w", err)
	}
	return len(chunks), nil
}

// Remove deletes all chunks of a document.
func (s *Store) Remove(ctx context.Context, docID string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM chunks WHERE doc_id = ?", docID); err != nil {
		return fmt.Errorf("failed to remove document: %w", err)
	}
	return nil
}

// Search returns up to topK chunks ranked by term match. The score is the
// fraction of query terms present in the chunk, nudged by term frequency,
// normalized to 0..1.
func (s *Store) Search(ctx context.Context, query string, topK int) ([]Hit, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}
	terms := queryTerms(query)
	if len(terms) == 0 {
		return nil, nil
	}

	// Candidate rows: any term matches.
	where := make([]string, len(terms))
	args := make([]any, len(terms))
	for i, t := range terms {
		where[i] = "lower(content) LIKE ?"
		args[i] = "%" + t + "%"
	}
	q := "SELECT doc_id, title, section, content FROM chunks WHERE " + strings.Join(where, " OR ")

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search vault: %w", err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var h Hit
		if err := rows.Scan(&h.DocID, &h.Title, &h.Section, &h.Content); err != nil {
			return nil, fmt.Errorf("failed to scan search hit: %w", err)
		}
		h.Score = scoreChunk(h.Content, terms)
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read search hits: %w", err)
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// Stats returns index size counters.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	row := s.db.QueryRowContext(ctx, "SELECT COUNT(*), COUNT(DISTINCT doc_id) FROM chunks")
	if err := row.Scan(&st.Chunks, &st.Documents); err != nil {
		return Stats{}, fmt.Errorf("failed to read vault stats: %w", err)
	}
	return st, nil
}

// Clear deletes the whole index.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM chunks"); err != nil {
		return fmt.Errorf("failed to clear vault: %w", err)
	}
	return nil
}

// Ready reports whether the database answers queries.
func (s *Store) Ready() bool {
	return s.db.Ping() == nil
}

func queryTerms(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, `.,;:!?"'()[]`)
		if len(f) >= 2 {
			terms = append(terms, f)
		}
	}
	return terms
}

func scoreChunk(content string, terms []string) float64 {
	lower := strings.ToLower(content)
	matched := 0
	freq := 0
	for _, t := range terms {
		n := strings.Count(lower, t)
		if n > 0 {
			matched++
			if n > 5 {
				n = 5
			}
			freq += n
		}
	}
	if matched == 0 {
		return 0
	}
	base := float64(matched) / float64(len(terms))
	bonus := float64(freq) / float64(5*len(terms))
	score := 0.8*base + 0.2*bonus
	if score > 1 {
		score = 1
	}
	return score
}
