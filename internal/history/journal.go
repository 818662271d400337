// Package history keeps a SQLite journal of fetch attempts: provider,
// outcome, and duration per request. It exists for observability; the
// service itself never reads it on the fetch path.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/marcus/mailgrab/pkg/types"
)

// Journal records fetch outcomes in SQLite.
type Journal struct {
	db     *sql.DB
	logger *logrus.Logger
}

// Open opens (creating if needed) the journal database at the given path.
func Open(dbPath string, logger *logrus.Logger) (*Journal, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec(Schema); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.WithField("path", dbPath).Info("History journal initialized")
	return &Journal{db: db, logger: logger}, nil
}

// Record appends one completed fetch attempt.
func (j *Journal) Record(provider, outcome string, duration time.Duration) error {
	query := `INSERT INTO fetches (provider, outcome, duration_ms) VALUES (?, ?, ?)`
	if _, err := j.db.Exec(query, provider, outcome, duration.Milliseconds()); err != nil {
		return fmt.Errorf("failed to record fetch: %w", err)
	}
	return nil
}

// Recent returns the most recent entries, newest first.
func (j *Journal) Recent(limit int) ([]types.HistoryEntry, error) {
	if limit < 1 {
		limit = 50
	}

	rows, err := j.db.Query(
		`SELECT id, provider, outcome, duration_ms, created_at FROM fetches ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	entries := []types.HistoryEntry{}
	for rows.Next() {
		var e types.HistoryEntry
		if err := rows.Scan(&e.ID, &e.Provider, &e.Outcome, &e.DurationMS, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read history rows: %w", err)
	}

	return entries, nil
}

// Close closes the database connection.
func (j *Journal) Close() error {
	if j.db != nil {
		return j.db.Close()
	}
	return nil
}
