// Package sqlitestore implements permission.AuditSink using pure-Go SQLite,
// giving deployments a queryable audit trail without a CGo dependency. It
// mirrors the flat JSONL FileAuditSink's write-before-observe guarantee:
// each Write commits before returning.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/execore/automation/permission"

	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// Sink is a permission.AuditSink backed by a local SQLite file.
type Sink struct {
	db *sql.DB
}

// Open creates (if needed) the audit table at dbPath and returns a Sink.
// It opens a single shared connection so concurrent Decide calls serialize
// through one connection rather than racing independent SQLITE_BUSY writers.
func Open(ctx context.Context, dbPath string) (*Sink, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: open: %w", err)
	}
	db.SetMaxOpenConns(1)

	const schema = `CREATE TABLE IF NOT EXISTS audit_records (
		id TEXT PRIMARY KEY,
		timestamp TEXT NOT NULL,
		action_type TEXT NOT NULL,
		action_params TEXT NOT NULL,
		decision TEXT NOT NULL,
		user_approved INTEGER NOT NULL,
		risk_level TEXT NOT NULL
	)`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlitestore: init schema: %w", err)
	}
	return &Sink{db: db}, nil
}

// Write inserts record and returns only once the insert has committed.
func (s *Sink) Write(record permission.AuditRecord) error {
	params, err := json.Marshal(record.ActionParams)
	if err != nil {
		return fmt.Errorf("sqlitestore: marshal params: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO audit_records (id, timestamp, action_type, action_params, decision, user_approved, risk_level)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.Timestamp.UTC().Format("2006-01-02T15:04:05.000000000Z"),
		record.ActionType,
		string(params),
		string(record.Decision),
		record.UserApproved,
		string(record.RiskLevel),
	)
	if err != nil {
		return fmt.Errorf("sqlitestore: insert: %w", err)
	}
	return nil
}

// CountByDecision returns the number of recorded decisions matching
// decision, for callers that want to query the audit trail relationally
// rather than re-parsing a JSONL file.
func (s *Sink) CountByDecision(ctx context.Context, decision string) (int, error) {
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_records WHERE decision = ?`, decision)
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("sqlitestore: count: %w", err)
	}
	return count, nil
}

// Close closes the underlying database handle.
func (s *Sink) Close() error {
	return s.db.Close()
}

var _ permission.AuditSink = (*Sink)(nil)
