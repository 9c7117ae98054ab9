package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Status is the lifecycle state of a recorded run.
type Status string

const (
	StatusRunning       Status = "running"
	StatusCompleted     Status = "completed"
	StatusFailed        Status = "failed"
	StatusMisconfigured Status = "misconfigured"
	StatusTimedOut      Status = "timed_out"
	StatusInterrupted   Status = "interrupted"
)

// ErrNotFound is returned when a run ID has no record.
var ErrNotFound = errors.New("upload record not found")

// Record is one pipeline run.
type Record struct {
	ID         int64
	RunID      string
	ChatID     int64
	Title      string
	InputKind  string
	SourceName string
	Status     Status
	URL        string
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Duration returns the run time, or zero while the run is still going.
func (r Record) Duration() time.Duration {
	if r.FinishedAt.IsZero() || r.StartedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Start describes a run entering the pipeline.
type Start struct {
	RunID      string
	ChatID     int64
	Title      string
	InputKind  string
	SourceName string
	At         time.Time
}

// Finish describes a run's terminal outcome.
type Finish struct {
	RunID  string
	Status Status
	URL    string
	Error  string
	At     time.Time
}

const recordColumns = "id, run_id, chat_id, title, input_kind, source_name, status, url, error_message, started_at, finished_at"

// RecordStart inserts a running record.
func (s *Store) RecordStart(ctx context.Context, start Start) error {
	if strings.TrimSpace(start.RunID) == "" {
		return errors.New("record start: run id is empty")
	}
	at := start.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := s.execWithRetry(ctx,
		`INSERT INTO uploads (run_id, chat_id, title, input_kind, source_name, status, started_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		start.RunID, start.ChatID, start.Title,
		nullableString(start.InputKind), nullableString(start.SourceName),
		StatusRunning, at.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record start: %w", err)
	}
	return nil
}

// RecordFinish stores the terminal outcome of a run.
func (s *Store) RecordFinish(ctx context.Context, finish Finish) error {
	at := finish.At
	if at.IsZero() {
		at = time.Now()
	}
	res, err := s.execWithRetry(ctx,
		`UPDATE uploads SET status = ?, url = ?, error_message = ?, finished_at = ? WHERE run_id = ?`,
		finish.Status, nullableString(finish.URL), nullableString(finish.Error),
		at.UTC().Format(time.RFC3339Nano), finish.RunID,
	)
	if err != nil {
		return fmt.Errorf("record finish: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("record finish %s: %w", finish.RunID, ErrNotFound)
	}
	return nil
}

// MarkInterrupted closes records left running by a previous process.
func (s *Store) MarkInterrupted(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx,
		`UPDATE uploads SET status = ?, error_message = ?, finished_at = ? WHERE status = ?`,
		StatusInterrupted, "daemon stopped before the run finished",
		time.Now().UTC().Format(time.RFC3339Nano), StatusRunning,
	)
	if err != nil {
		return 0, fmt.Errorf("mark interrupted: %w", err)
	}
	return res.RowsAffected()
}

// Get returns the record for runID.
func (s *Store) Get(ctx context.Context, runID string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM uploads WHERE run_id = ?`, runID)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rec, err
}

// Recent returns up to limit records, newest first. A chatID of zero matches
// every chat.
func (s *Store) Recent(ctx context.Context, limit int, chatID int64) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT ` + recordColumns + ` FROM uploads`
	args := []any{}
	if chatID != 0 {
		query += ` WHERE chat_id = ?`
		args = append(args, chatID)
	}
	query += ` ORDER BY started_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list uploads: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

// Stats returns a count of records grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM uploads GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("upload stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// Prune deletes finished records that started before cutoff.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.execWithRetry(ctx,
		`DELETE FROM uploads WHERE status != ? AND started_at < ?`,
		StatusRunning, cutoff.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("prune uploads: %w", err)
	}
	return res.RowsAffected()
}

func scanRecord(scanner interface{ Scan(dest ...any) error }) (*Record, error) {
	var (
		rec         Record
		status      string
		inputKind   sql.NullString
		sourceName  sql.NullString
		url         sql.NullString
		errorMsg    sql.NullString
		startedRaw  string
		finishedRaw sql.NullString
	)
	if err := scanner.Scan(
		&rec.ID, &rec.RunID, &rec.ChatID, &rec.Title,
		&inputKind, &sourceName, &status, &url, &errorMsg,
		&startedRaw, &finishedRaw,
	); err != nil {
		return nil, err
	}
	rec.Status = Status(status)
	rec.InputKind = inputKind.String
	rec.SourceName = sourceName.String
	rec.URL = url.String
	rec.Error = errorMsg.String
	rec.StartedAt = parseTime(startedRaw)
	if finishedRaw.Valid {
		rec.FinishedAt = parseTime(finishedRaw.String)
	}
	return &rec, nil
}

func parseTime(raw string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullableString(value string) sql.NullString {
	value = strings.TrimSpace(value)
	return sql.NullString{String: value, Valid: value != ""}
}
