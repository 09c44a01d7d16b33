// Package pgaudit implements permission.AuditSink using PostgreSQL, for
// deployments that already run Postgres for other application state and
// want the decision audit trail queryable alongside it. The flat JSONL
// FileAuditSink remains the default; this is an opt-in alternative.
package pgaudit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/execore/automation/permission"
)

// Sink is a permission.AuditSink backed by PostgreSQL.
//
// It accepts an externally-owned *pgxpool.Pool via constructor injection;
// the caller creates and closes the pool.
type Sink struct {
	pool *pgxpool.Pool
}

// Open returns a Sink backed by pool, creating the audit_records table if
// it does not already exist.
func Open(ctx context.Context, pool *pgxpool.Pool) (*Sink, error) {
	const schema = `CREATE TABLE IF NOT EXISTS audit_records (
		id TEXT PRIMARY KEY,
		ts TIMESTAMPTZ NOT NULL,
		action_type TEXT NOT NULL,
		action_params JSONB NOT NULL,
		decision TEXT NOT NULL,
		user_approved BOOLEAN NOT NULL,
		risk_level TEXT NOT NULL
	)`
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("pgaudit: init schema: %w", err)
	}
	return &Sink{pool: pool}, nil
}

// Write inserts record and returns only once the insert has committed,
// satisfying AuditSink's write-before-observe ordering.
func (s *Sink) Write(record permission.AuditRecord) error {
	params, err := json.Marshal(record.ActionParams)
	if err != nil {
		return fmt.Errorf("pgaudit: marshal params: %w", err)
	}
	_, err = s.pool.Exec(context.Background(),
		`INSERT INTO audit_records (id, ts, action_type, action_params, decision, user_approved, risk_level)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		record.ID, record.Timestamp, record.ActionType, params, string(record.Decision), record.UserApproved, string(record.RiskLevel),
	)
	if err != nil {
		return fmt.Errorf("pgaudit: insert: %w", err)
	}
	return nil
}

// CountByDecision returns the number of recorded decisions matching
// decision.
func (s *Sink) CountByDecision(ctx context.Context, decision string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM audit_records WHERE decision = $1`, decision).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("pgaudit: count: %w", err)
	}
	return count, nil
}

var _ permission.AuditSink = (*Sink)(nil)
