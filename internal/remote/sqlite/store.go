// Package sqlite provides the durable remote store implementation backed by
// a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"finledger/internal/core"
	"finledger/internal/remote"
)

const createdAtFormat = time.RFC3339Nano

// Store is a SQLite-backed authoritative transaction store with per-owner
// snapshot delivery.
type Store struct {
	db  *sql.DB
	hub *remote.Hub

	// mu serializes commit+publish so snapshots go out in commit order.
	mu     sync.Mutex
	closed bool

	now   func() time.Time
	newID func() string
}

func NewStore(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{
		db:    db,
		hub:   remote.NewHub(),
		now:   time.Now,
		newID: uuid.NewString,
	}, nil
}

// Watch implements remote.Store.
func (s *Store) Watch(ctx context.Context, owner string, deliver remote.SnapshotFunc) (remote.CancelFunc, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, remote.ErrClosed
	}

	initial, err := s.list(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("read initial snapshot: %w", err)
	}

	cancel := s.hub.Watch(owner, deliver)
	s.hub.Publish(owner, initial)
	return cancel, nil
}

// List implements remote.Store.
func (s *Store) List(ctx context.Context, owner string) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, remote.ErrClosed
	}
	return s.list(ctx, owner)
}

// Add implements remote.Store.
func (s *Store) Add(ctx context.Context, owner string, draft core.Draft) (core.Transaction, error) {
	if err := draft.Validate(); err != nil {
		return core.Transaction{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return core.Transaction{}, remote.ErrClosed
	}

	txn := core.Transaction{
		ID:        s.newID(),
		Owner:     owner,
		Title:     draft.Title,
		Amount:    draft.Amount,
		Type:      draft.Type,
		Category:  draft.Resolved(),
		Date:      draft.Date,
		CreatedAt: s.now().UTC(),
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transactions (id, owner, title, amount, type, category, date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		txn.ID, txn.Owner, txn.Title, txn.Amount.String(), string(txn.Type),
		txn.Category, txn.Date.Key(), txn.CreatedAt.Format(createdAtFormat))
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}

	if err := s.publish(ctx, owner); err != nil {
		return core.Transaction{}, err
	}
	return txn, nil
}

// Update implements remote.Store.
func (s *Store) Update(ctx context.Context, id string, patch core.Patch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return remote.ErrClosed
	}

	current, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	if err := patch.Validate(current.Type); err != nil {
		return err
	}

	next := patch.Apply(current)
	_, err = s.db.ExecContext(ctx, `
		UPDATE transactions
		SET title = ?, amount = ?, type = ?, category = ?, date = ?
		WHERE id = ?`,
		next.Title, next.Amount.String(), string(next.Type), next.Category, next.Date.Key(), id)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}

	return s.publish(ctx, current.Owner)
}

// Delete implements remote.Store. Deleting an unknown id is a no-op.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return remote.ErrClosed
	}

	current, err := s.get(ctx, id)
	if err == remote.ErrNotFound {
		return nil
	}
	if err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}

	return s.publish(ctx, current.Owner)
}

// Owner reports which owner a transaction id belongs to.
func (s *Store) Owner(ctx context.Context, id string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", remote.ErrClosed
	}
	txn, err := s.get(ctx, id)
	if err != nil {
		return "", err
	}
	return txn.Owner, nil
}

// Close stops watcher deliveries and closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.hub.Close()
	return s.db.Close()
}

func (s *Store) publish(ctx context.Context, owner string) error {
	snapshot, err := s.list(ctx, owner)
	if err != nil {
		return fmt.Errorf("read snapshot after commit: %w", err)
	}
	s.hub.Publish(owner, snapshot)
	return nil
}

// list reads the owner's collection in insertion order (rowid), which keeps
// same-date ordering stable across snapshots.
func (s *Store) list(ctx context.Context, owner string) ([]core.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner, title, amount, type, category, date, created_at
		FROM transactions
		WHERE owner = ?
		ORDER BY rowid`, owner)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	out := make([]core.Transaction, 0)
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, txn)
	}
	return out, rows.Err()
}

func (s *Store) get(ctx context.Context, id string) (core.Transaction, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, owner, title, amount, type, category, date, created_at
		FROM transactions
		WHERE id = ?`, id)

	txn, err := scanTransaction(row)
	if err == sql.ErrNoRows {
		return core.Transaction{}, remote.ErrNotFound
	}
	return txn, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row scanner) (core.Transaction, error) {
	var (
		txn       core.Transaction
		amount    string
		typ       string
		date      string
		createdAt string
	)
	if err := row.Scan(&txn.ID, &txn.Owner, &txn.Title, &amount, &typ, &txn.Category, &date, &createdAt); err != nil {
		return core.Transaction{}, err
	}

	parsedAmount, err := decimal.NewFromString(amount)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	txn.Amount = parsedAmount
	txn.Type = core.TransactionType(typ)

	parsedDate, err := core.ParseDate(date)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("parse date %q: %w", date, err)
	}
	txn.Date = parsedDate

	parsedCreated, err := time.Parse(createdAtFormat, createdAt)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("parse created_at %q: %w", createdAt, err)
	}
	txn.CreatedAt = parsedCreated

	return txn, nil
}
