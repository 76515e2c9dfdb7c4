package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"finledger/internal/core"
	"finledger/internal/identity"
	"finledger/internal/log"
	"finledger/internal/remote"
	"finledger/internal/remote/memory"
)

// fakeStore hands the test direct control over snapshot delivery.
type fakeStore struct {
	mu        sync.Mutex
	deliver   remote.SnapshotFunc
	owner     string
	cancelled int
	watchErr  error

	addCalls    int
	updateCalls int
	deleteCalls int
}

func (f *fakeStore) Watch(ctx context.Context, owner string, deliver remote.SnapshotFunc) (remote.CancelFunc, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.watchErr != nil {
		return nil, f.watchErr
	}
	f.owner = owner
	f.deliver = deliver
	return func() {
		f.mu.Lock()
		f.cancelled++
		f.mu.Unlock()
	}, nil
}

func (f *fakeStore) push(txns []core.Transaction, err error) {
	f.currentDeliver()(txns, err)
}

func (f *fakeStore) currentDeliver() remote.SnapshotFunc {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.deliver
}

func (f *fakeStore) List(ctx context.Context, owner string) ([]core.Transaction, error) {
	return nil, nil
}

func (f *fakeStore) Add(ctx context.Context, owner string, draft core.Draft) (core.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.addCalls++
	return core.Transaction{ID: "new", Owner: owner}, nil
}

func (f *fakeStore) Update(ctx context.Context, id string, patch core.Patch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateCalls++
	return nil
}

func (f *fakeStore) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteCalls++
	return nil
}

func testLogger() *log.Logger {
	return log.New(log.DefaultConfig())
}

func txn(id, title string, amount int64, typ core.TransactionType, date core.Date) core.Transaction {
	return core.Transaction{
		ID:     id,
		Owner:  "alice",
		Title:  title,
		Amount: decimal.NewFromInt(amount),
		Type:   typ,
		Date:   date,
	}
}

func TestSessionAppliesSnapshotsSortedDateDescending(t *testing.T) {
	store := &fakeStore{}
	s := NewSession(store, identity.Static("alice"), testLogger())
	s.Start()
	defer s.Close()

	if !s.Loading() {
		t.Fatal("session must be loading before the first snapshot")
	}

	store.push([]core.Transaction{
		txn("a", "Lunch", 100, core.Expense, core.NewDate(2024, time.May, 1)),
		txn("b", "Salary", 500, core.Income, core.NewDate(2024, time.May, 2)),
	}, nil)

	if s.Loading() {
		t.Error("first snapshot must resolve loading")
	}
	got := s.Transactions()
	if len(got) != 2 || got[0].ID != "b" || got[1].ID != "a" {
		t.Fatalf("mirror order = %+v, want newest first", got)
	}
}

func TestSessionSortIsStableForSameDate(t *testing.T) {
	store := &fakeStore{}
	s := NewSession(store, identity.Static("alice"), testLogger())
	s.Start()
	defer s.Close()

	date := core.NewDate(2024, time.May, 1)
	store.push([]core.Transaction{
		txn("a", "First", 1, core.Expense, date),
		txn("b", "Second", 2, core.Expense, date),
		txn("c", "Third", 3, core.Expense, date),
	}, nil)

	got := s.Transactions()
	if got[0].ID != "a" || got[1].ID != "b" || got[2].ID != "c" {
		t.Fatalf("same-date order not preserved: %+v", got)
	}
}

func TestSnapshotReplacesMirrorWholesale(t *testing.T) {
	store := &fakeStore{}
	s := NewSession(store, identity.Static("alice"), testLogger())
	s.Start()
	defer s.Close()

	store.push([]core.Transaction{
		txn("a", "Lunch", 100, core.Expense, core.NewDate(2024, time.May, 1)),
	}, nil)
	store.push([]core.Transaction{
		txn("b", "Salary", 500, core.Income, core.NewDate(2024, time.May, 2)),
	}, nil)

	got := s.Transactions()
	if len(got) != 1 || got[0].ID != "b" {
		t.Fatalf("mirror = %+v, want only the latest snapshot", got)
	}
}

func TestMutationsNeverTouchMirror(t *testing.T) {
	store := &fakeStore{}
	s := NewSession(store, identity.Static("alice"), testLogger())
	s.Start()
	defer s.Close()

	store.push(nil, nil)
	before := s.Revision()

	draft := core.Draft{
		Title:    "Lunch",
		Amount:   decimal.NewFromInt(12),
		Type:     core.Expense,
		Category: core.Predefined("Food"),
		Date:     core.NewDate(2024, time.May, 1),
	}
	if _, err := s.Add(context.Background(), draft); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if err := s.Delete(context.Background(), "a"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	if len(s.Transactions()) != 0 {
		t.Error("mutations must not apply optimistically")
	}
	if s.Revision() != before {
		t.Error("mutations must not bump the revision")
	}
	if store.addCalls != 1 || store.deleteCalls != 1 {
		t.Errorf("write-through calls = %d add, %d delete", store.addCalls, store.deleteCalls)
	}
}

func TestAddRejectsInvalidAmountBeforeRemote(t *testing.T) {
	store := &fakeStore{}
	s := NewSession(store, identity.Static("alice"), testLogger())
	s.Start()
	defer s.Close()

	for _, amount := range []int64{0, -5} {
		draft := core.Draft{
			Title:    "Lunch",
			Amount:   decimal.NewFromInt(amount),
			Type:     core.Expense,
			Category: core.Predefined("Food"),
			Date:     core.NewDate(2024, time.May, 1),
		}
		_, err := s.Add(context.Background(), draft)
		if !core.IsValidation(err) {
			t.Errorf("Add(amount=%d) error = %v, want validation error", amount, err)
		}
	}
	if store.addCalls != 0 {
		t.Errorf("remote reached %d times despite invalid drafts", store.addCalls)
	}
}

func TestAddRequiresIdentity(t *testing.T) {
	store := &fakeStore{}
	provider := identity.NewSessionProvider()
	s := NewSession(store, provider, testLogger())
	s.Start()
	defer s.Close()

	draft := core.Draft{
		Title:    "Lunch",
		Amount:   decimal.NewFromInt(12),
		Type:     core.Expense,
		Category: core.Predefined("Food"),
		Date:     core.NewDate(2024, time.May, 1),
	}
	if _, err := s.Add(context.Background(), draft); err != ErrNoIdentity {
		t.Errorf("Add() without identity error = %v, want ErrNoIdentity", err)
	}
}

func TestUpdateValidatesAgainstMirroredRecord(t *testing.T) {
	store := &fakeStore{}
	s := NewSession(store, identity.Static("alice"), testLogger())
	s.Start()
	defer s.Close()

	store.push([]core.Transaction{
		txn("a", "Lunch", 100, core.Expense, core.NewDate(2024, time.May, 1)),
	}, nil)

	bad := ""
	if err := s.Update(context.Background(), "a", core.Patch{Title: &bad}); err != core.ErrEmptyTitle {
		t.Errorf("Update(empty title) error = %v, want ErrEmptyTitle", err)
	}
	if store.updateCalls != 0 {
		t.Error("invalid patch must not reach the store")
	}

	good := "Dinner"
	if err := s.Update(context.Background(), "a", core.Patch{Title: &good}); err != nil {
		t.Errorf("Update() error = %v", err)
	}
	if store.updateCalls != 1 {
		t.Error("valid patch must write through")
	}
}

func TestUpdateValidatesBeforeRecordIsMirrored(t *testing.T) {
	store := &fakeStore{}
	s := NewSession(store, identity.Static("alice"), testLogger())
	s.Start()
	defer s.Close()

	// No snapshot yet: the mirror is empty and the target id is unknown
	// locally. Type-independent fields still validate before write-through.
	bad := decimal.NewFromInt(-5)
	if err := s.Update(context.Background(), "a", core.Patch{Amount: &bad}); err != core.ErrInvalidAmount {
		t.Errorf("Update(amount=-5) error = %v, want ErrInvalidAmount", err)
	}
	if err := s.Update(context.Background(), "a", core.Patch{}); err != core.ErrEmptyPatch {
		t.Errorf("Update(empty patch) error = %v, want ErrEmptyPatch", err)
	}
	if store.updateCalls != 0 {
		t.Errorf("remote reached %d times despite invalid patches", store.updateCalls)
	}

	good := decimal.NewFromInt(25)
	if err := s.Update(context.Background(), "a", core.Patch{Amount: &good}); err != nil {
		t.Errorf("Update() error = %v", err)
	}
	if store.updateCalls != 1 {
		t.Error("valid patch must write through for unmirrored ids")
	}
}

func TestIdentityLossClearsMirrorAndKeepsError(t *testing.T) {
	store := &fakeStore{}
	provider := identity.NewSessionProvider()
	s := NewSession(store, provider, testLogger())
	s.Start()
	defer s.Close()

	provider.SignIn("alice")
	wantErr := errors.New("permission denied")
	store.push(nil, wantErr)

	if s.Err() != wantErr {
		t.Fatalf("Err() = %v, want %v", s.Err(), wantErr)
	}

	provider.SignOut()

	if len(s.Transactions()) != 0 {
		t.Error("sign-out must clear the mirror")
	}
	if s.Loading() {
		t.Error("sign-out must resolve loading")
	}
	if s.Err() != wantErr {
		t.Error("sign-out must not clear a posted subscription error")
	}
}

func TestSubscriptionErrorIsTerminal(t *testing.T) {
	store := &fakeStore{}
	provider := identity.NewSessionProvider()
	s := NewSession(store, provider, testLogger())
	s.Start()
	defer s.Close()

	provider.SignIn("alice")
	store.push(nil, errors.New("backend unavailable"))

	if s.Loading() {
		t.Error("error must resolve loading")
	}
	if s.Err() == nil {
		t.Fatal("error must be posted")
	}

	// A fresh sign-in establishes a new subscription and clears the error.
	provider.SignIn("alice")
	store.push([]core.Transaction{
		txn("a", "Lunch", 100, core.Expense, core.NewDate(2024, time.May, 1)),
	}, nil)

	if s.Err() != nil {
		t.Errorf("resubscribe must clear the error, got %v", s.Err())
	}
	if len(s.Transactions()) != 1 {
		t.Error("resubscribe must deliver snapshots again")
	}
}

func TestWatchFailurePostsError(t *testing.T) {
	store := &fakeStore{watchErr: errors.New("store closed")}
	s := NewSession(store, identity.Static("alice"), testLogger())
	s.Start()
	defer s.Close()

	if s.Loading() {
		t.Error("failed watch must resolve loading")
	}
	if s.Err() == nil {
		t.Error("failed watch must post an error")
	}
}

func TestInFlightSnapshotAfterCloseIsDiscarded(t *testing.T) {
	store := &fakeStore{}
	s := NewSession(store, identity.Static("alice"), testLogger())
	s.Start()

	store.push([]core.Transaction{
		txn("a", "Lunch", 100, core.Expense, core.NewDate(2024, time.May, 1)),
	}, nil)
	rev := s.Revision()

	s.Close()
	if store.cancelled == 0 {
		t.Error("Close() must cancel the watch")
	}

	// The delivery was already in flight when Close ran.
	store.push([]core.Transaction{
		txn("b", "Salary", 500, core.Income, core.NewDate(2024, time.May, 2)),
	}, nil)

	if got := s.Transactions(); len(got) != 1 || got[0].ID != "a" {
		t.Errorf("stale delivery applied: %+v", got)
	}
	if s.Revision() != rev {
		t.Error("stale delivery must not bump the revision")
	}
}

func TestIdentitySwitchDiscardsOldEpochSnapshots(t *testing.T) {
	store := &fakeStore{}
	provider := identity.NewSessionProvider()
	s := NewSession(store, provider, testLogger())
	s.Start()
	defer s.Close()

	provider.SignIn("alice")
	oldDeliver := store.currentDeliver()

	provider.SignIn("bob")
	store.push(nil, nil) // bob's initial snapshot

	oldDeliver([]core.Transaction{
		txn("a", "Lunch", 100, core.Expense, core.NewDate(2024, time.May, 1)),
	}, nil)

	if len(s.Transactions()) != 0 {
		t.Error("snapshot from a superseded subscription must be discarded")
	}
}

func TestObserversFireOnAppliedChanges(t *testing.T) {
	store := &fakeStore{}
	s := NewSession(store, identity.Static("alice"), testLogger())
	s.Start()
	defer s.Close()

	var mu sync.Mutex
	fired := 0
	remove := s.Observe(func() {
		mu.Lock()
		fired++
		mu.Unlock()
	})

	store.push(nil, nil)
	mu.Lock()
	after := fired
	mu.Unlock()
	if after == 0 {
		t.Fatal("observer must fire on snapshot apply")
	}

	remove()
	store.push(nil, nil)
	mu.Lock()
	defer mu.Unlock()
	if fired != after {
		t.Error("removed observer must not fire")
	}
}

func TestSessionAgainstMemoryStore(t *testing.T) {
	store := memory.NewStore()
	defer store.Close()

	provider := identity.NewSessionProvider()
	s := NewSession(store, provider, testLogger())
	s.Start()
	defer s.Close()

	applied := make(chan struct{}, 16)
	remove := s.Observe(func() { applied <- struct{}{} })
	defer remove()

	waitApplied := func() {
		t.Helper()
		select {
		case <-applied:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for applied change")
		}
	}

	provider.SignIn("alice")
	waitApplied() // subscribe transition
	for s.Loading() {
		waitApplied() // initial snapshot
	}

	draft := core.Draft{
		Title:    "Lunch",
		Amount:   decimal.NewFromInt(12),
		Type:     core.Expense,
		Category: core.Predefined("Food"),
		Date:     core.NewDate(2024, time.May, 1),
	}
	if _, err := s.Add(context.Background(), draft); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	deadline := time.After(2 * time.Second)
	for len(s.Transactions()) == 0 {
		select {
		case <-applied:
		case <-deadline:
			t.Fatal("added record never arrived via snapshot")
		}
	}

	got := s.Transactions()
	if got[0].Title != "Lunch" || got[0].Owner != "alice" {
		t.Fatalf("mirror = %+v", got)
	}
}

func TestManagerReturnsOneSessionPerIdentity(t *testing.T) {
	store := memory.NewStore()
	defer store.Close()

	m := NewManager(store, testLogger())
	defer m.Close()

	a1 := m.Session("alice")
	a2 := m.Session("alice")
	b := m.Session("bob")

	if a1 != a2 {
		t.Error("same identity must reuse the session")
	}
	if a1 == b {
		t.Error("distinct identities must get distinct sessions")
	}

	if owner, ok := a1.Owner(); !ok || owner != "alice" {
		t.Errorf("session owner = %q, %v", owner, ok)
	}
}
