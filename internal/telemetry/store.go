// Package telemetry records answered questions and user feedback in
// SQLite for offline quality review.
package telemetry

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)
)

// Feedback values accepted on an interaction.
const (
	FeedbackUp   = "up"
	FeedbackDown = "down"
)

// Interaction is one answered question with its usage accounting and
// judged relevancy. Feedback is empty until the user votes.
type Interaction struct {
	ID                   int64
	CreatedAt            time.Time
	Question             string
	Answer               string
	Feedback             string
	LatencyMS            float64
	TokensIn             int
	TokensOut            int
	Cost                 float64
	Relevancy            string
	RelevancyExplanation string
}

// InteractionStore persists interactions in SQLite.
type InteractionStore struct {
	db *sql.DB
}

// NewInteractionStore opens (or creates) the interactions database at
// path. An empty path creates an in-memory database for testing.
func NewInteractionStore(path string) (*InteractionStore, error) {
	dsn := ":memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single writer to prevent lock contention
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	s := &InteractionStore{db: db}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *InteractionStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS interactions (
		id                    INTEGER PRIMARY KEY AUTOINCREMENT,
		created_at            TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		question              TEXT NOT NULL,
		answer                TEXT NOT NULL,
		feedback              TEXT NOT NULL DEFAULT '',
		latency_ms            REAL NOT NULL DEFAULT 0,
		tokens_in             INTEGER NOT NULL DEFAULT 0,
		tokens_out            INTEGER NOT NULL DEFAULT 0,
		cost                  REAL NOT NULL DEFAULT 0,
		relevancy             TEXT NOT NULL DEFAULT '',
		relevancy_explanation TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_interactions_created ON interactions(created_at DESC);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("create interactions schema: %w", err)
	}
	return nil
}

// Record inserts one interaction and returns its row ID.
func (s *InteractionStore) Record(ctx context.Context, it *Interaction) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO interactions
			(question, answer, feedback, latency_ms, tokens_in, tokens_out,
			 cost, relevancy, relevancy_explanation)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, it.Question, it.Answer, it.Feedback, it.LatencyMS, it.TokensIn,
		it.TokensOut, it.Cost, it.Relevancy, it.RelevancyExplanation)
	if err != nil {
		return 0, fmt.Errorf("insert interaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	it.ID = id
	return id, nil
}

// SetFeedback records a thumbs vote on an existing interaction.
func (s *InteractionStore) SetFeedback(ctx context.Context, id int64, feedback string) error {
	if feedback != FeedbackUp && feedback != FeedbackDown {
		return fmt.Errorf("invalid feedback %q: must be %q or %q", feedback, FeedbackUp, FeedbackDown)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE interactions SET feedback = ? WHERE id = ?`, feedback, id)
	if err != nil {
		return fmt.Errorf("update feedback: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("interaction %d not found", id)
	}
	return nil
}

// Get retrieves one interaction by row ID.
func (s *InteractionStore) Get(ctx context.Context, id int64) (*Interaction, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, created_at, question, answer, feedback, latency_ms,
		       tokens_in, tokens_out, cost, relevancy, relevancy_explanation
		FROM interactions WHERE id = ?
	`, id)
	return scanInteraction(row)
}

// Recent returns the most recent interactions, newest first.
func (s *InteractionStore) Recent(ctx context.Context, limit int) ([]*Interaction, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, created_at, question, answer, feedback, latency_ms,
		       tokens_in, tokens_out, cost, relevancy, relevancy_explanation
		FROM interactions ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query interactions: %w", err)
	}
	defer rows.Close()

	var out []*Interaction
	for rows.Next() {
		it, err := scanInteraction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// Summary aggregates usage and feedback across all interactions.
type Summary struct {
	Interactions int64
	TotalCost    float64
	ThumbsUp     int64
	ThumbsDown   int64
}

// Summarize returns aggregate counters across the whole table.
func (s *InteractionStore) Summarize(ctx context.Context) (Summary, error) {
	var sum Summary
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(cost), 0),
		       COALESCE(SUM(CASE WHEN feedback = 'up' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN feedback = 'down' THEN 1 ELSE 0 END), 0)
		FROM interactions
	`).Scan(&sum.Interactions, &sum.TotalCost, &sum.ThumbsUp, &sum.ThumbsDown)
	if err != nil {
		return Summary{}, fmt.Errorf("summarize interactions: %w", err)
	}
	return sum, nil
}

// Close releases the database handle.
func (s *InteractionStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInteraction(row rowScanner) (*Interaction, error) {
	var it Interaction
	var created string
	err := row.Scan(&it.ID, &created, &it.Question, &it.Answer, &it.Feedback,
		&it.LatencyMS, &it.TokensIn, &it.TokensOut, &it.Cost,
		&it.Relevancy, &it.RelevancyExplanation)
	if err != nil {
		return nil, fmt.Errorf("scan interaction: %w", err)
	}
	if t, perr := time.Parse("2006-01-02 15:04:05", created); perr == nil {
		it.CreatedAt = t
	}
	return &it, nil
}
