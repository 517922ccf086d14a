/*
ledger.go - Payment ledger

PURPOSE:
  The Ledger records money actually disbursed to a worker for an event.
  "Paid", "partially paid" and "pending" are never stored; they are derived
  by summing the entries currently present and comparing against gross pay.

INVARIANTS:
  1. IMMUTABLE: Once written, an entry is never edited
  2. NO NEGATION: A payment is cancelled by removing its row, not by
     writing a compensating negative entry
  3. IDEMPOTENT: Same idempotency key = same entry (no duplicates)
  4. RECOMPUTE: Reconciliation always re-sums the entries that remain

EXAMPLE FLOW:
  gross = 1000
  1. Partial payment:   Append +400   ledger [400]       pending 600
  2. Final payment:     Append +600   ledger [400, 600]  pending 0
  3. Oops, wrong day:   Remove 600    ledger [400]       pending 600

SEE ALSO:
  - store.go: Persistence interface
  - payroll/reconcile.go: Derives status from the entries
*/
package generic

import (
	"context"
	"time"
)

// =============================================================================
// PAYMENT ENTRY - One disbursement
// =============================================================================

// PaymentKind records how the operator registered the payment. It is
// informational only: reconciliation treats every entry the same way.
type PaymentKind string

const (
	PaymentFull    PaymentKind = "full"
	PaymentPartial PaymentKind = "partial"
)

type PaymentEntry struct {
	ID             EntryID
	WorkerID       WorkerID
	EventID        EventID
	Amount         Amount
	Kind           PaymentKind
	PaidAt         time.Time
	Notes          string
	IdempotencyKey string
	CreatedBy      string
}

// SumPayments totals the amounts of the given entries.
func SumPayments(entries []PaymentEntry) Amount {
	total := ZeroMoney()
	for _, e := range entries {
		total = total.Add(e.Amount)
	}
	return total
}

// =============================================================================
// LEDGER
// =============================================================================

// Ledger is the source of truth for disbursements.
//
// Unlike a balance ledger, corrections here are removals: a cancelled
// payment disappears from the sum and the pending balance grows back.
type Ledger interface {
	// Append adds an entry. Fails if the idempotency key exists.
	Append(ctx context.Context, entry PaymentEntry) error

	// Remove deletes an entry. Returns ErrEntryNotFound for unknown IDs.
	Remove(ctx context.Context, id EntryID) (PaymentEntry, error)

	// Entries returns the entries of one worker in one event, ordered by PaidAt.
	Entries(ctx context.Context, workerID WorkerID, eventID EventID) ([]PaymentEntry, error)

	// TotalPaid sums Entries.
	TotalPaid(ctx context.Context, workerID WorkerID, eventID EventID) (Amount, error)
}

// =============================================================================
// DEFAULT LEDGER - Implementation using LedgerStore
// =============================================================================

type DefaultLedger struct {
	Store LedgerStore
}

func NewLedger(store LedgerStore) *DefaultLedger {
	return &DefaultLedger{Store: store}
}

func (l *DefaultLedger) Append(ctx context.Context, entry PaymentEntry) error {
	if entry.IdempotencyKey != "" {
		exists, err := l.Store.Exists(ctx, entry.IdempotencyKey)
		if err != nil {
			return err
		}
		if exists {
			return ErrDuplicateIdempotencyKey
		}
	}
	return l.Store.Append(ctx, entry)
}

func (l *DefaultLedger) Remove(ctx context.Context, id EntryID) (PaymentEntry, error) {
	entry, err := l.Store.Get(ctx, id)
	if err != nil {
		return PaymentEntry{}, err
	}
	if entry == nil {
		return PaymentEntry{}, ErrEntryNotFound
	}
	if err := l.Store.Delete(ctx, id); err != nil {
		return PaymentEntry{}, err
	}
	return *entry, nil
}

func (l *DefaultLedger) Entries(ctx context.Context, workerID WorkerID, eventID EventID) ([]PaymentEntry, error) {
	entries, err := l.Store.LoadByEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	var out []PaymentEntry
	for _, e := range entries {
		if e.WorkerID == workerID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (l *DefaultLedger) TotalPaid(ctx context.Context, workerID WorkerID, eventID EventID) (Amount, error) {
	entries, err := l.Entries(ctx, workerID, eventID)
	if err != nil {
		return Amount{}, err
	}
	return SumPayments(entries), nil
}
