// Package store persists meetings, applications and the audit log in Postgres.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"visa-portal/internal/models"
)

var ErrNotFound = errors.New("not found")

//go:embed schema.sql
var Schema string

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type ApplicationStore interface {
	GetByID(ctx context.Context, id string) (*models.Application, error)
	FindByPassportAndMeeting(ctx context.Context, passportNumber, meetingID string) (*models.Application, error)
	ListByMeeting(ctx context.Context, meetingID string) ([]*models.Application, error)
	ListByOwner(ctx context.Context, userID string) ([]*models.Application, error)
	Create(ctx context.Context, app *models.Application) error
	Update(ctx context.Context, app *models.Application) error
	Delete(ctx context.Context, id string) error
	MarkLetterGenerated(ctx context.Context, id string, at time.Time) error
}

type MeetingStore interface {
	GetByID(ctx context.Context, id string) (*models.Meeting, error)
	GetByName(ctx context.Context, name string) (*models.Meeting, error)
	Create(ctx context.Context, m *models.Meeting) error
	List(ctx context.Context, activeOnly bool) ([]*models.Meeting, error)
}

type AuditStore interface {
	Record(ctx context.Context, entry models.AuditEntry) error
}

// Stores groups the per-table stores bound to one connection or transaction.
type Stores interface {
	Applications() ApplicationStore
	Meetings() MeetingStore
	Audit() AuditStore
}

// TxStores is what a transaction callback receives. LockKey serialises
// concurrent transactions working on the same logical key.
type TxStores interface {
	Stores
	LockKey(ctx context.Context, key string) error
}

type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx TxStores) error) error
}

// Store is the Postgres implementation of Stores and TxRunner.
type Store struct {
	db *sql.DB
	bound
}

func New(db *sql.DB) *Store {
	return &Store{db: db, bound: bound{q: db}}
}

// Migrate applies the embedded schema. Every statement is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *Store) WithTx(ctx context.Context, fn func(tx TxStores) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(&bound{q: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type bound struct {
	q DBTX
}

func (b *bound) Applications() ApplicationStore { return &applicationStore{q: b.q} }
func (b *bound) Meetings() MeetingStore         { return &meetingStore{q: b.q} }
func (b *bound) Audit() AuditStore              { return &auditStore{q: b.q} }

// LockKey takes a transaction-scoped advisory lock. Outside a transaction
// the lock is released as soon as the statement finishes.
func (b *bound) LockKey(ctx context.Context, key string) error {
	if _, err := b.q.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key); err != nil {
		return fmt.Errorf("advisory lock: %w", err)
	}
	return nil
}

func nullTime(t *time.Time) interface{} {
	if t == nil || t.IsZero() {
		return nil
	}
	return t.UTC()
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}
