// Package rollback captures the pre-state of filesystem and environment
// mutations performed inside a transaction and restores that pre-state, in
// reverse order, on demand. It mirrors the defer-based commit/rollback idiom
// used for database transactions elsewhere in this codebase family, applied
// to operations that have no native transaction support of their own.
package rollback

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	automation "github.com/execore/automation"
)

// OpKind identifies the kind of mutation a RollbackPoint captured.
type OpKind string

const (
	OpFileCreate OpKind = "file_create"
	OpFileModify OpKind = "file_modify"
	OpFileDelete OpKind = "file_delete"
	OpFileMove   OpKind = "file_move"
	OpClipboard  OpKind = "clipboard_change"
	OpWindow     OpKind = "window_op"
)

// RollbackPoint is one captured mutation and the means to reverse it.
type RollbackPoint struct {
	ID          string
	Kind        OpKind
	CapturedAt  time.Time
	CanRollback bool

	// inverse performs the reversal; nil when CanRollback is false.
	inverse func() error

	// Detail is a human-readable description of what was captured, used
	// in logging and test assertions.
	Detail string
}

// Status is the lifecycle state of a Transaction.
type Status string

const (
	StatusOpen       Status = "open"
	StatusCommitted  Status = "committed"
	StatusRolledBack Status = "rolled_back"
)

// Transaction groups an ordered sequence of RollbackPoints captured between
// Begin and Commit/Rollback.
type Transaction struct {
	ID     string
	Name   string
	Status Status

	mu     sync.Mutex
	points []*RollbackPoint
}

func newTransaction(name string) *Transaction {
	return &Transaction{ID: automation.NewID(), Name: name, Status: StatusOpen}
}

func (tx *Transaction) addPoint(p *RollbackPoint) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	tx.points = append(tx.points, p)
}

// Points returns a snapshot of the transaction's captured rollback points in
// insertion order.
func (tx *Transaction) Points() []RollbackPoint {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	out := make([]RollbackPoint, len(tx.points))
	for i, p := range tx.points {
		out[i] = *p
	}
	return out
}

// Manager is the rollback manager: it tracks the current transaction and
// every transaction addressable by id, and executes LIFO reversal on
// request.
type Manager struct {
	backupDir string
	logger    *slog.Logger
	tracer    automation.Tracer

	mu      sync.Mutex
	current *Transaction
	all     map[string]*Transaction
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger attaches a structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithTracer attaches a Tracer used to emit a rollback.rollback span around
// every Rollback call.
func WithTracer(t automation.Tracer) Option {
	return func(m *Manager) { m.tracer = t }
}

// NewManager creates a Manager whose file-backup capture operations write
// under backupDir (created lazily on first backup).
func NewManager(backupDir string, opts ...Option) *Manager {
	m := &Manager{
		backupDir: backupDir,
		logger:    slog.New(slog.NewTextHandler(discardWriter{}, nil)),
		tracer:    automation.NoopTracer{},
		all:       make(map[string]*Transaction),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

// Begin starts a new transaction and makes it current, replacing whatever
// transaction was previously current. Transactions already open remain
// addressable by their id.
func (m *Manager) Begin(name string) string {
	tx := newTransaction(name)
	m.mu.Lock()
	m.current = tx
	m.all[tx.ID] = tx
	m.mu.Unlock()
	m.logger.Debug("rollback: transaction begun", "tx_id", tx.ID, "name", name)
	return tx.ID
}

// Current returns the id of the current transaction, or "" if none is open.
func (m *Manager) Current() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return ""
	}
	return m.current.ID
}

func (m *Manager) lookup(txID string) (*Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.all[txID]
	if !ok {
		return nil, &automation.RollbackError{PointID: txID, Kind: "lookup", Cause: fmt.Errorf("unknown transaction")}
	}
	return tx, nil
}

// Commit marks a transaction committed. Idempotent: committing an
// already-committed transaction is a no-op.
func (m *Manager) Commit(txID string) error {
	tx, err := m.lookup(txID)
	if err != nil {
		return err
	}
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.Status == StatusRolledBack {
		return &automation.RollbackError{PointID: txID, Kind: "commit", Cause: fmt.Errorf("transaction already rolled back")}
	}
	tx.Status = StatusCommitted
	m.logger.Debug("rollback: transaction committed", "tx_id", txID)
	return nil
}

// Rollback walks txID's rollback points in reverse insertion order,
// executing each point's inverse operation. Failures inside one inverse
// step are logged and do not stop subsequent inverse steps. A rolled-back
// transaction cannot be rolled back again.
func (m *Manager) Rollback(txID string) error {
	_, span := m.tracer.Start(context.Background(), "rollback.rollback", automation.Attr("tx.id", txID))
	defer span.End()

	tx, err := m.lookup(txID)
	if err != nil {
		span.Error(err)
		return err
	}
	tx.mu.Lock()
	if tx.Status == StatusRolledBack {
		tx.mu.Unlock()
		err := &automation.RollbackError{PointID: txID, Kind: "rollback", Cause: fmt.Errorf("transaction already rolled back")}
		span.Error(err)
		return err
	}
	points := append([]*RollbackPoint(nil), tx.points...)
	tx.Status = StatusRolledBack
	tx.mu.Unlock()

	for i := len(points) - 1; i >= 0; i-- {
		p := points[i]
		if !p.CanRollback || p.inverse == nil {
			m.logger.Warn("rollback: point not reversible, skipping", "tx_id", txID, "point_id", p.ID, "kind", p.Kind)
			continue
		}
		if err := p.inverse(); err != nil {
			rbErr := &automation.RollbackError{PointID: p.ID, Kind: string(p.Kind), Cause: err}
			m.logger.Error("rollback: inverse step failed", "tx_id", txID, "point_id", p.ID, "kind", p.Kind, "error", rbErr)
			continue
		}
	}
	span.SetAttr(automation.Attr("rollback.point_count", len(points)))
	m.logger.Debug("rollback: transaction rolled back", "tx_id", txID, "points", len(points))
	return nil
}

// WithRollback opens a transaction, runs fn, commits on success, and rolls
// back (returning fn's error) if fn returns an error.
func (m *Manager) WithRollback(name string, fn func(txID string) error) error {
	txID := m.Begin(name)
	if err := fn(txID); err != nil {
		if rbErr := m.Rollback(txID); rbErr != nil {
			m.logger.Error("rollback: rollback-after-failure itself failed", "tx_id", txID, "error", rbErr)
		}
		return err
	}
	return m.Commit(txID)
}
