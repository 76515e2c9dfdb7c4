// Package memory provides the in-memory remote store implementation. It is
// the default backend and the workhorse of the test suite.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"finledger/internal/core"
	"finledger/internal/remote"
)

// Store is an in-memory authoritative transaction store with per-owner
// snapshot delivery.
type Store struct {
	mu     sync.Mutex
	txns   map[string]core.Transaction
	order  []string // insertion order, keeps same-date snapshots stable
	hub    *remote.Hub
	closed bool

	now   func() time.Time
	newID func() string
}

func NewStore() *Store {
	return &Store{
		txns:  make(map[string]core.Transaction),
		hub:   remote.NewHub(),
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// Watch implements remote.Store. The initial full snapshot is queued before
// Watch returns, so it is always delivered first.
func (s *Store) Watch(ctx context.Context, owner string, deliver remote.SnapshotFunc) (remote.CancelFunc, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, remote.ErrClosed
	}

	cancel := s.hub.Watch(owner, deliver)
	s.hub.Publish(owner, s.snapshotLocked(owner))
	return cancel, nil
}

// List implements remote.Store.
func (s *Store) List(ctx context.Context, owner string) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, remote.ErrClosed
	}
	return s.snapshotLocked(owner), nil
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
	s.txns[txn.ID] = txn
	s.order = append(s.order, txn.ID)
	s.hub.Publish(owner, s.snapshotLocked(owner))
	return txn, nil
}

// Update implements remote.Store.
func (s *Store) Update(ctx context.Context, id string, patch core.Patch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return remote.ErrClosed
	}

	current, ok := s.txns[id]
	if !ok {
		return remote.ErrNotFound
	}
	if err := patch.Validate(current.Type); err != nil {
		return err
	}
	s.txns[id] = patch.Apply(current)
	s.hub.Publish(current.Owner, s.snapshotLocked(current.Owner))
	return nil
}

// Delete implements remote.Store. Deleting an unknown id is a no-op.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return remote.ErrClosed
	}

	txn, ok := s.txns[id]
	if !ok {
		return nil
	}
	delete(s.txns, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.hub.Publish(txn.Owner, s.snapshotLocked(txn.Owner))
	return nil
}

// Owner reports which owner a transaction id belongs to.
func (s *Store) Owner(ctx context.Context, id string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", remote.ErrClosed
	}
	txn, ok := s.txns[id]
	if !ok {
		return "", remote.ErrNotFound
	}
	return txn.Owner, nil
}

// Close stops all watcher deliveries and rejects further operations.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.hub.Close()
	return nil
}

// snapshotLocked copies the owner-scoped collection in insertion order.
func (s *Store) snapshotLocked(owner string) []core.Transaction {
	out := make([]core.Transaction, 0)
	for _, id := range s.order {
		if txn := s.txns[id]; txn.Owner == owner {
			out = append(out, txn)
		}
	}
	return out
}
