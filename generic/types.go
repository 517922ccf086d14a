/*
Package generic provides the domain-agnostic core of the payroll engine.

PURPOSE:
  This package contains the value types, identifiers and ledger plumbing that
  every payroll computation is built on. It knows nothing about allocations,
  overtime or rates - those live in the payroll package.

KEY CONCEPTS IN THIS FILE (types.go):
  - Amount: A quantity with a unit (money or hours)
  - Identifiers: Type-safe worker/event/allocation/entry IDs

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal to avoid floating-point errors
  2. Type Safety: Strong typing for IDs prevents mixing worker/event IDs
  3. Never negative: derived money values are clamped with ClampZero

USAGE:
  fee := generic.NewMoneyFromInt(250)
  owed := fee.Mul(decimal.NewFromInt(3))

SEE ALSO:
  - time.go: Calendar dates and date sets
  - ledger.go: Payment ledger entries and the Ledger interface
  - errors.go: Sentinel and structured errors
*/
package generic

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// AMOUNT - Quantity with unit
// =============================================================================

type Amount struct {
	Value decimal.Decimal
	Unit  Unit
}

type Unit string

const (
	UnitMoney Unit = "money"
	UnitHours Unit = "hours"
)

func NewAmountFromInt(value int64, unit Unit) Amount {
	return Amount{Value: decimal.NewFromInt(value), Unit: unit}
}

func NewMoney(value decimal.Decimal) Amount { return Amount{Value: value, Unit: UnitMoney} }
func NewMoneyFromInt(value int64) Amount    { return NewAmountFromInt(value, UnitMoney) }
func ZeroMoney() Amount                     { return Amount{Value: decimal.Zero, Unit: UnitMoney} }

// MustParseDecimal parses s, returning zero on malformed input.
func MustParseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func (a Amount) Zero() Amount                 { return Amount{Value: decimal.Zero, Unit: a.Unit} }
func (a Amount) Add(b Amount) Amount          { return Amount{Value: a.Value.Add(b.Value), Unit: a.Unit} }
func (a Amount) Sub(b Amount) Amount          { return Amount{Value: a.Value.Sub(b.Value), Unit: a.Unit} }
func (a Amount) Mul(s decimal.Decimal) Amount { return Amount{Value: a.Value.Mul(s), Unit: a.Unit} }
func (a Amount) IsNegative() bool             { return a.Value.IsNegative() }
func (a Amount) IsZero() bool                 { return a.Value.IsZero() }
func (a Amount) IsPositive() bool             { return a.Value.IsPositive() }
func (a Amount) GreaterThan(b Amount) bool    { return a.Value.GreaterThan(b.Value) }
func (a Amount) Equal(b Amount) bool          { return a.Value.Equal(b.Value) }
func (a Amount) String() string               { return a.Value.String() }

// ClampZero returns a, or zero of the same unit when a is negative.
func (a Amount) ClampZero() Amount {
	if a.IsNegative() {
		return a.Zero()
	}
	return a
}

// SumAmounts adds amounts of the given unit. An empty slice sums to zero.
func SumAmounts(unit Unit, amounts ...Amount) Amount {
	total := Amount{Value: decimal.Zero, Unit: unit}
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type WorkerID string
type EventID string
type AllocationID string
type EntryID string
