// Package ledger maintains a per-identity mirror of the remote transaction
// store and derives views from it.
package ledger

import (
	"context"
	"errors"
	"sort"
	"sync"

	"finledger/internal/core"
	"finledger/internal/identity"
	"finledger/internal/log"
	"finledger/internal/remote"
)

// ErrNoIdentity is returned by mutations that need an owner when no identity
// is active.
var ErrNoIdentity = errors.New("no active identity")

// Session keeps one live subscription per active identity. Full snapshots
// replace the mirror wholesale; mutations write through to the store and the
// mirror only changes when the resulting snapshot arrives.
type Session struct {
	store    remote.Store
	provider identity.Provider
	logger   *log.Logger

	mu       sync.Mutex
	epoch    uint64
	cancel   remote.CancelFunc
	owner    identity.ID
	present  bool
	txns     []core.Transaction
	loading  bool
	err      error
	revision uint64

	observers    map[int]func()
	nextObserver int

	removeOnChange func()
}

func NewSession(store remote.Store, provider identity.Provider, logger *log.Logger) *Session {
	return &Session{
		store:     store,
		provider:  provider,
		logger:    logger.WithComponent(log.ComponentLedger),
		observers: make(map[int]func()),
	}
}

// Start binds the session to identity changes and subscribes for the current
// identity, if any.
func (s *Session) Start() {
	s.removeOnChange = s.provider.OnChange(s.handleIdentity)
	id, present := s.provider.Current()
	s.handleIdentity(id, present)
}

// Close unsubscribes and stops reacting to identity changes. In-flight
// snapshots delivered after Close are discarded.
func (s *Session) Close() {
	if s.removeOnChange != nil {
		s.removeOnChange()
		s.removeOnChange = nil
	}

	s.mu.Lock()
	s.epoch++
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// handleIdentity is the single subscription lifecycle path: every identity
// transition tears down the previous watch and, when an identity is present,
// establishes a new one under a fresh epoch.
func (s *Session) handleIdentity(id identity.ID, present bool) {
	s.mu.Lock()
	s.epoch++
	epoch := s.epoch
	cancel := s.cancel
	s.cancel = nil
	s.owner = id
	s.present = present

	if !present {
		// Identity loss clears the mirror and resolves loading. A
		// previously posted subscription error stays visible.
		s.txns = nil
		s.loading = false
		s.revision++
		notify := s.snapshotObservers()
		s.mu.Unlock()

		if cancel != nil {
			cancel()
		}
		for _, fn := range notify {
			fn()
		}
		return
	}

	s.txns = nil
	s.loading = true
	s.err = nil
	s.revision++
	notify := s.snapshotObservers()
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	for _, fn := range notify {
		fn()
	}

	watchCancel, err := s.store.Watch(context.Background(), string(id), func(txns []core.Transaction, watchErr error) {
		s.applySnapshot(epoch, txns, watchErr)
	})
	if err != nil {
		s.applySnapshot(epoch, nil, err)
		return
	}

	s.mu.Lock()
	if s.epoch != epoch {
		// A newer subscribe or close won the race.
		s.mu.Unlock()
		watchCancel()
		return
	}
	s.cancel = watchCancel
	s.mu.Unlock()

	s.logger.Info("Subscribed to ledger", log.FieldOwner, string(id), log.FieldEpoch, epoch)
}

// applySnapshot is the only writer of the mirror. Deliveries from a stale
// epoch are dropped without touching state.
func (s *Session) applySnapshot(epoch uint64, txns []core.Transaction, err error) {
	s.mu.Lock()
	if epoch != s.epoch {
		s.mu.Unlock()
		return
	}

	if err != nil {
		// Terminal: the subscription is dead until the next identity
		// change triggers a fresh subscribe.
		s.err = err
		s.loading = false
		s.cancel = nil
		s.revision++
		notify := s.snapshotObservers()
		owner := s.owner
		s.mu.Unlock()

		s.logger.Error("Ledger subscription failed", "error", err, log.FieldOwner, string(owner))
		for _, fn := range notify {
			fn()
		}
		return
	}

	sorted := make([]core.Transaction, len(txns))
	copy(sorted, txns)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.After(sorted[j].Date.Time)
	})

	s.txns = sorted
	s.loading = false
	s.err = nil
	s.revision++
	notify := s.snapshotObservers()
	s.mu.Unlock()

	for _, fn := range notify {
		fn()
	}
}

// Add validates the draft locally and writes it through to the store. The
// mirror is untouched; the new record appears with the next snapshot.
func (s *Session) Add(ctx context.Context, draft core.Draft) (core.Transaction, error) {
	if err := draft.Validate(); err != nil {
		return core.Transaction{}, err
	}

	s.mu.Lock()
	owner, present := s.owner, s.present
	s.mu.Unlock()
	if !present {
		return core.Transaction{}, ErrNoIdentity
	}

	return s.store.Add(ctx, string(owner), draft)
}

// Update validates the patch locally before writing through. Category
// resolution needs the record's current type, so that part only runs when the
// record is mirrored; unknown ids are left to the store to reject.
func (s *Session) Update(ctx context.Context, id string, patch core.Patch) error {
	if err := patch.ValidateFields(); err != nil {
		return err
	}

	s.mu.Lock()
	var current *core.Transaction
	for i := range s.txns {
		if s.txns[i].ID == id {
			current = &s.txns[i]
			break
		}
	}
	if current != nil {
		typ := current.Type
		s.mu.Unlock()
		if err := patch.Validate(typ); err != nil {
			return err
		}
	} else {
		s.mu.Unlock()
	}

	return s.store.Update(ctx, id, patch)
}

// Delete writes through to the store. Deleting an unknown id is a no-op.
func (s *Session) Delete(ctx context.Context, id string) error {
	return s.store.Delete(ctx, id)
}

// Transactions returns a copy of the mirror, sorted date-descending.
func (s *Session) Transactions() []core.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Transaction, len(s.txns))
	copy(out, s.txns)
	return out
}

// Loading reports whether the first snapshot for the current subscription is
// still outstanding.
func (s *Session) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Err returns the posted subscription error, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Revision is a counter bumped on every applied state change. Derived-view
// caches key on it.
func (s *Session) Revision() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revision
}

// Owner returns the active identity and whether one is present.
func (s *Session) Owner() (identity.ID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.owner, s.present
}

// Observe registers a callback fired after each applied state change. The
// returned func removes the registration.
func (s *Session) Observe(fn func()) (remove func()) {
	s.mu.Lock()
	n := s.nextObserver
	s.nextObserver++
	s.observers[n] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.observers, n)
		s.mu.Unlock()
	}
}

func (s *Session) snapshotObservers() []func() {
	fns := make([]func(), 0, len(s.observers))
	for _, fn := range s.observers {
		fns = append(fns, fn)
	}
	return fns
}
