package payroll

import "github.com/shopspring/decimal"

// =============================================================================
// RATE RESOLVER
// =============================================================================

// RateSource tags where a resolved daily rate came from.
type RateSource string

const (
	RateSourceOverride RateSource = "override"
	RateSourceDefault  RateSource = "default"
)

// RateResolution is the outcome of the daily rate precedence rule.
type RateResolution struct {
	Source RateSource
	Rate   decimal.Decimal
}

func (r RateResolution) IsOverride() bool { return r.Source == RateSourceOverride }

// ResolveDailyRate applies the precedence rule:
//
//  1. the first allocation's override, when present and > 0
//  2. the worker's default daily rate
//  3. zero
//
// Only the first allocation row is consulted. Overrides are expected to be
// set consistently across a worker's rows for one event.
func ResolveDailyRate(allocs []Allocation, person Personnel) RateResolution {
	if len(allocs) > 0 {
		if o := allocs[0].RateOverride; o != nil && o.IsPositive() {
			return RateResolution{Source: RateSourceOverride, Rate: *o}
		}
	}
	return RateResolution{Source: RateSourceDefault, Rate: decimalOrZero(person.DailyRate)}
}

// FlatRatePay is worked days times the resolved daily rate. No proration
// or rounding is applied.
func FlatRatePay(allocs []Allocation, person Personnel, absences []AbsenceEntry) decimal.Decimal {
	days := decimal.NewFromInt(int64(WorkedDays(allocs, absences)))
	return days.Mul(ResolveDailyRate(allocs, person).Rate)
}
