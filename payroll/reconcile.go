/*
reconcile.go - Ledger reconciliation

PURPOSE:
  Compares what a worker is owed for an event (gross pay) against what the
  ledger says was disbursed, and derives the payment status.

STATE MACHINE:
  UNPAID --pay--> PARTIALLY_PAID --pay--> PAID
    ^                  |   ^                |
    +----cancel--------+   +----cancel------+

  The status is never stored. Cancelling an entry removes it from the
  ledger; the next Reconcile sees fewer entries and moves the status back.

FORMULAS:
  totalPaid  = sum(entries.amount)
  pending    = max(0, gross - totalPaid)
  isComplete = pending == 0 AND totalPaid > 0

COMMAND VALIDATION:
  ValidatePayment runs at the command boundary, before any ledger write.
  Reconcile itself never fails.
*/
package payroll

import (
	"github.com/shopspring/decimal"
	"github.com/warp/crew-payroll/generic"
)

// PaymentStatus is derived from the reconciliation.
type PaymentStatus string

const (
	StatusUnpaid        PaymentStatus = "unpaid"
	StatusPartiallyPaid PaymentStatus = "partially_paid"
	StatusPaid          PaymentStatus = "paid"
)

type Reconciliation struct {
	Gross      decimal.Decimal
	TotalPaid  decimal.Decimal
	Pending    decimal.Decimal
	IsComplete bool
	Status     PaymentStatus
}

// Reconcile sums the ledger entries currently present against gross pay.
func Reconcile(gross decimal.Decimal, entries []generic.PaymentEntry) Reconciliation {
	paid := generic.SumPayments(entries).Value
	pending := decimal.Max(decimal.Zero, gross.Sub(paid))
	complete := pending.IsZero() && paid.IsPositive()

	status := StatusUnpaid
	switch {
	case complete:
		status = StatusPaid
	case paid.IsPositive():
		status = StatusPartiallyPaid
	}

	return Reconciliation{
		Gross:      gross,
		TotalPaid:  paid,
		Pending:    pending,
		IsComplete: complete,
		Status:     status,
	}
}

// SuggestedFullPayment is the amount a "pay in full" action should register:
// the pending balance, or the whole gross when nothing has been paid yet.
func SuggestedFullPayment(rec Reconciliation) decimal.Decimal {
	if rec.TotalPaid.IsZero() {
		return rec.Gross
	}
	return rec.Pending
}

// ValidatePayment checks a payment command against the current
// reconciliation. Amounts must be positive; partial payments may not exceed
// the pending balance. Full payments are not compared to pending: the caller
// is trusted to pass the right value and Reconcile absorbs any difference.
func ValidatePayment(kind generic.PaymentKind, amount decimal.Decimal, rec Reconciliation) error {
	if !amount.IsPositive() {
		return &generic.FieldError{Field: "amount", Reason: "must be greater than zero", Err: generic.ErrInvalidAmount}
	}
	if kind == generic.PaymentPartial && amount.GreaterThan(rec.Pending) {
		return &generic.ExceedsPendingError{
			Pending:   generic.NewMoney(rec.Pending),
			Requested: generic.NewMoney(amount),
		}
	}
	return nil
}
