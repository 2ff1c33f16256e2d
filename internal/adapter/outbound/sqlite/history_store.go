// Package sqlite provides SQLite-backed persistence for the action history.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/opsgate/opsgate/internal/domain/action"
)

// timeLayout is a fixed-width RFC 3339 layout. RFC3339Nano trims trailing
// fractional zeros, which breaks SQLite's lexical TEXT comparison for stamps
// inside the same second; fixed-width nanoseconds keep string order equal to
// time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// HistoryStore implements action.HistoryStore on a SQLite database. Records
// survive restarts, so the executed-action trail outlives the process even
// though the engine's rate-limit bookkeeping does not.
type HistoryStore struct {
	db *sql.DB
}

// Open opens (creating if needed) the history database at path and runs
// migrations. Use ":memory:" for an ephemeral store.
func Open(path string) (*HistoryStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	// modernc's driver is single-writer; serialize through one connection.
	db.SetMaxOpenConns(1)

	s := &HistoryStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *HistoryStore) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS action_records (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		parameters JSON,
		incident_id TEXT NOT NULL DEFAULT '',
		confidence REAL NOT NULL,
		success INTEGER NOT NULL,
		error TEXT NOT NULL DEFAULT '',
		payload JSON,
		executed_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_action_records_executed_at
		ON action_records (executed_at);`
	_, err := s.db.ExecContext(context.Background(), query)
	if err != nil {
		return fmt.Errorf("migrate history db: %w", err)
	}
	return nil
}

// Append stores one executed-action record.
func (s *HistoryStore) Append(ctx context.Context, rec action.Record) error {
	params, err := json.Marshal(rec.Parameters)
	if err != nil {
		return fmt.Errorf("marshal parameters: %w", err)
	}
	payload, err := json.Marshal(rec.Result.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO action_records
			(id, kind, parameters, incident_id, confidence, success, error, payload, executed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, string(rec.Kind), string(params), rec.IncidentID, rec.Confidence,
		boolToInt(rec.Result.Success), rec.Result.Error, string(payload),
		rec.ExecutedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("insert action record: %w", err)
	}
	return nil
}

// CountSince returns the number of records with ExecutedAt at or after t.
func (s *HistoryStore) CountSince(ctx context.Context, t time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM action_records WHERE executed_at >= ?`,
		t.UTC().Format(timeLayout),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count action records: %w", err)
	}
	return n, nil
}

// Recent returns up to n records, newest first.
func (s *HistoryStore) Recent(ctx context.Context, n int) ([]action.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, parameters, incident_id, confidence, success, error, payload, executed_at
		FROM action_records
		ORDER BY executed_at DESC, id DESC
		LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("query action records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []action.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Close releases the database handle.
func (s *HistoryStore) Close() error {
	return s.db.Close()
}

func scanRecord(rows *sql.Rows) (action.Record, error) {
	var (
		rec        action.Record
		kind       string
		params     string
		success    int
		payload    string
		// The driver returns DATETIME-declared columns as time.Time; scanning
		// into a string would reformat the stored fixed-width text as
		// RFC3339Nano and break the timeLayout round-trip.
		executedAt time.Time
	)
	if err := rows.Scan(&rec.ID, &kind, &params, &rec.IncidentID, &rec.Confidence,
		&success, &rec.Result.Error, &payload, &executedAt); err != nil {
		return action.Record{}, fmt.Errorf("scan action record: %w", err)
	}

	rec.Kind = action.Kind(kind)
	rec.Result.Success = success != 0
	if params != "" && params != "null" {
		if err := json.Unmarshal([]byte(params), &rec.Parameters); err != nil {
			return action.Record{}, fmt.Errorf("unmarshal parameters: %w", err)
		}
	}
	if payload != "" && payload != "null" {
		if err := json.Unmarshal([]byte(payload), &rec.Result.Payload); err != nil {
			return action.Record{}, fmt.Errorf("unmarshal payload: %w", err)
		}
	}

	rec.ExecutedAt = executedAt.UTC()
	return rec, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Compile-time interface verification.
var _ action.HistoryStore = (*HistoryStore)(nil)
