package history

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Outcome is the terminal result of one dequeued entry.
type Outcome string

const (
	OutcomeDelivered Outcome = "delivered"
	OutcomeFailed    Outcome = "failed"
	OutcomeSkipped   Outcome = "skipped"
)

// Record is one processed entry.
type Record struct {
	ID            int64     `json:"id"`
	RunID         string    `json:"run_id"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	Link          string    `json:"link"`
	Outcome       Outcome   `json:"outcome"`
	Reason        string    `json:"reason,omitempty"`
	SizeBytes     int64     `json:"size_bytes,omitempty"`
	Caption       string    `json:"caption,omitempty"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
}

// Stats aggregates outcomes.
type Stats struct {
	Delivered      int   `json:"delivered"`
	Failed         int   `json:"failed"`
	Skipped        int   `json:"skipped"`
	BytesDelivered int64 `json:"bytes_delivered"`
}

// Total returns the number of processed entries.
func (s Stats) Total() int {
	return s.Delivered + s.Failed + s.Skipped
}

// Store records outcomes in a private in-memory SQLite database.
type Store struct {
	db *sql.DB
}

const recordColumns = "id, run_id, correlation_id, link, outcome, reason, size_bytes, caption, started_at, finished_at"

// Open creates a fresh in-memory history database.
func Open(ctx context.Context) (*Store, error) {
	dsn := fmt.Sprintf("file:linkrelay-history-%s?mode=memory&cache=shared", uuid.NewString())
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// A memory database disappears with its last connection.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)

	store := &Store{db: db}
	if err := store.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record inserts an outcome and returns its id.
func (s *Store) Record(ctx context.Context, rec Record) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	if strings.TrimSpace(rec.Link) == "" {
		return 0, fmt.Errorf("record outcome: empty link")
	}
	finished := rec.FinishedAt
	if finished.IsZero() {
		finished = time.Now()
	}
	started := rec.StartedAt
	if started.IsZero() {
		started = finished
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO outcomes (run_id, correlation_id, link, outcome, reason, size_bytes, caption, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID,
		nullableString(rec.CorrelationID),
		rec.Link,
		string(rec.Outcome),
		nullableString(rec.Reason),
		rec.SizeBytes,
		nullableString(rec.Caption),
		started.UTC().Format(time.RFC3339Nano),
		finished.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("record outcome: %w", err)
	}
	return res.LastInsertId()
}

// Recent returns up to limit records, newest first. A limit <= 0 returns all.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := `SELECT ` + recordColumns + ` FROM outcomes ORDER BY id DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list outcomes: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Stats counts outcomes for a run. An empty runID aggregates every run.
func (s *Store) Stats(ctx context.Context, runID string) (Stats, error) {
	var stats Stats
	if s == nil || s.db == nil {
		return stats, nil
	}
	query := `SELECT outcome, COUNT(1), COALESCE(SUM(size_bytes), 0) FROM outcomes`
	var args []any
	if runID != "" {
		query += ` WHERE run_id = ?`
		args = append(args, runID)
	}
	query += ` GROUP BY outcome`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return stats, fmt.Errorf("outcome stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			outcome string
			count   int
			bytes   int64
		)
		if err := rows.Scan(&outcome, &count, &bytes); err != nil {
			return stats, err
		}
		switch Outcome(outcome) {
		case OutcomeDelivered:
			stats.Delivered = count
			stats.BytesDelivered = bytes
		case OutcomeFailed:
			stats.Failed = count
		case OutcomeSkipped:
			stats.Skipped = count
		}
	}
	return stats, rows.Err()
}

func scanRecord(scanner interface{ Scan(dest ...any) error }) (Record, error) {
	var (
		rec           Record
		outcome       string
		correlationID sql.NullString
		reason        sql.NullString
		caption       sql.NullString
		startedRaw    string
		finishedRaw   string
	)
	if err := scanner.Scan(
		&rec.ID,
		&rec.RunID,
		&correlationID,
		&rec.Link,
		&outcome,
		&reason,
		&rec.SizeBytes,
		&caption,
		&startedRaw,
		&finishedRaw,
	); err != nil {
		return Record{}, err
	}
	rec.Outcome = Outcome(outcome)
	rec.CorrelationID = correlationID.String
	rec.Reason = reason.String
	rec.Caption = caption.String
	var err error
	if rec.StartedAt, err = time.Parse(time.RFC3339Nano, startedRaw); err != nil {
		return Record{}, fmt.Errorf("parse started_at: %w", err)
	}
	if rec.FinishedAt, err = time.Parse(time.RFC3339Nano, finishedRaw); err != nil {
		return Record{}, fmt.Errorf("parse finished_at: %w", err)
	}
	return rec, nil
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}
