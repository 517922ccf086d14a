/*
store.go - Persistence interface for the payment ledger

PURPOSE:
  Defines the interface between the ledger and the database. Different
  implementations can use SQLite or in-memory storage.

KEY INTERFACES:
  LedgerStore: Payment entry persistence plus the allocation lookup used by
               the "worker must be allocated" precondition
  TxStore:     Runs a check-and-write sequence atomically

WHY HasAllocation LIVES HERE:
  Registering a payment is two steps: verify the worker is allocated to the
  event, then insert the ledger row. Run separately, an allocation can be
  removed between the two. Exposing the check on the same store that takes
  the write lets callers do both inside one WithTx.

IDEMPOTENCY:
  Every write may include an idempotency key. If the key already exists,
  the write is rejected with ErrDuplicateIdempotencyKey.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite
  - generic/store/memory.go: In-memory for testing

SEE ALSO:
  - ledger.go: Higher-level interface using LedgerStore
*/
package generic

import "context"

// =============================================================================
// LEDGER STORE
// =============================================================================

type LedgerStore interface {
	// Append persists an entry. Returns ErrDuplicateIdempotencyKey if the key exists.
	Append(ctx context.Context, entry PaymentEntry) error

	// Delete removes an entry. Returns ErrEntryNotFound for unknown IDs.
	Delete(ctx context.Context, id EntryID) error

	// Get returns an entry, or nil if it does not exist.
	Get(ctx context.Context, id EntryID) (*PaymentEntry, error)

	// LoadByEvent returns every entry of an event, ordered by PaidAt.
	LoadByEvent(ctx context.Context, eventID EventID) ([]PaymentEntry, error)

	// LoadByWorker returns every entry of a worker across events, ordered by PaidAt.
	LoadByWorker(ctx context.Context, workerID WorkerID) ([]PaymentEntry, error)

	// Exists checks if an idempotency key was already used.
	Exists(ctx context.Context, idempotencyKey string) (bool, error)

	// HasAllocation reports whether the worker has at least one allocation
	// row in the event.
	HasAllocation(ctx context.Context, workerID WorkerID, eventID EventID) (bool, error)
}

// =============================================================================
// TRANSACTIONAL STORE
// =============================================================================

// TxStore wraps LedgerStore with transaction support.
type TxStore interface {
	LedgerStore

	// WithTx executes fn within a transaction.
	// If fn returns error, the transaction is rolled back.
	WithTx(ctx context.Context, fn func(LedgerStore) error) error
}
