// Package remote defines the contract of the authoritative transaction
// store. Implementations deliver full-collection snapshots per owner and
// accept write-through mutations; they are the single source of truth.
package remote

import (
	"context"
	"errors"

	"finledger/internal/core"
)

var (
	// ErrNotFound is returned by Update for an unknown id. Delete treats an
	// unknown id as a no-op.
	ErrNotFound = errors.New("transaction not found")

	// ErrClosed is returned when the store has been shut down.
	ErrClosed = errors.New("store closed")
)

// SnapshotFunc receives full-collection snapshots for a watched owner.
// txns is a caller-owned copy. A non-nil err is terminal: the watch is dead
// and no further delivery happens until a new Watch is established.
type SnapshotFunc func(txns []core.Transaction, err error)

// CancelFunc tears down a watch. It is idempotent; after it returns no new
// snapshot is emitted for that watch (deliveries already in flight may still
// reach the callback, callers guard with an epoch token).
type CancelFunc func()

// Store is the authoritative remote collection.
//
// Access control note: Update and Delete address records by id only. Owner
// scoping of mutations is enforced by the store deployment, not by clients.
type Store interface {
	// Watch subscribes to the owner-scoped collection. The initial full
	// snapshot is delivered asynchronously right away, then one snapshot
	// per committed change, in commit order.
	Watch(ctx context.Context, owner string, deliver SnapshotFunc) (CancelFunc, error)

	// List is a one-shot read of the owner-scoped collection.
	List(ctx context.Context, owner string) ([]core.Transaction, error)

	// Add creates a record with a store-assigned id and creation timestamp
	// and returns the stored record.
	Add(ctx context.Context, owner string, draft core.Draft) (core.Transaction, error)

	// Update merges the patch onto the record with the given id.
	Update(ctx context.Context, id string, patch core.Patch) error

	// Delete removes the record with the given id.
	Delete(ctx context.Context, id string) error
}
