/*
overtime.go - Overtime to flat-rate conversion

PURPOSE:
  Turns logged overtime hours into money. When the team enables conversion,
  a day whose overtime reaches the threshold earns one flat daily bonus
  (the same amount as the worker's resolved daily rate) instead of hourly pay.

PER-DAY ALGORITHM (ModePerDay, the default):
  1. Group overtime hours by calendar date, summing entries on the same date
  2. For each date with total hours h:
       h >= threshold: one bonus; hours beyond the 8h coverage cap are hourly
                       remainder = max(0, h - 8)
       h <  threshold: no bonus; remainder = h
  3. pay = bonuses x dailyBonus + remainder x hourlyRate

  At most one bonus per date, however long the day. Small overtime spread
  over many days never adds up to a bonus.

EXAMPLE (threshold 4h, bonus 500, hourly 50):
  day 1: 5h  -> bonus, remainder 0
  day 2: 1h  -> remainder 1
  day 3: 3h  -> remainder 3
  pay = 1 x 500 + 4 x 50 = 700, display hours = 9

EVENT-TOTAL VARIANT (ModeEventTotal):
  Thresholds the event-wide total instead of each day:
    bonuses = floor(total / threshold), remainder = total mod threshold
  It can award bonuses although no single day met the threshold. Kept for
  parity with payouts computed by the previous system; new teams use per-day.

SEE ALSO:
  - rate.go: Resolves the daily rate used as the bonus amount
  - detail.go: Wires the converter into the payroll pipeline
*/
package payroll

import (
	"sort"

	"github.com/shopspring/decimal"
	"github.com/warp/crew-payroll/generic"
)

// CoverageCapHours is how many overtime hours of one date a single daily
// bonus pays for.
var CoverageCapHours = decimal.NewFromInt(8)

// ConversionMode selects the overtime conversion algorithm.
type ConversionMode string

const (
	ModePerDay     ConversionMode = "per_day"
	ModeEventTotal ConversionMode = "event_total"
)

func (m ConversionMode) Valid() bool {
	return m == ModePerDay || m == ModeEventTotal
}

// =============================================================================
// CONFIG AND RESULT
// =============================================================================

type OvertimeConfig struct {
	ThresholdHours    decimal.Decimal
	ConversionEnabled bool
	DailyBonus        decimal.Decimal
	HourlyRate        decimal.Decimal
	Mode              ConversionMode
}

// OvertimeDay is the per-date breakdown of a per-day conversion.
type OvertimeDay struct {
	Date           generic.Date
	Hours          decimal.Decimal
	BonusAwarded   bool
	RemainderHours decimal.Decimal
}

type OvertimeResult struct {
	PayAmount decimal.Decimal

	// DisplayHours is always the true total of logged overtime hours.
	DisplayHours decimal.Decimal

	// ConversionApplied is true iff at least one bonus was used.
	ConversionApplied bool
	BonusesUsed       int
	RemainderHours    decimal.Decimal

	// Days is populated by the per-day algorithm only.
	Days []OvertimeDay
}

// Convert dispatches on cfg.Mode. An unset mode means ModePerDay.
func (cfg OvertimeConfig) Convert(entries []WorkLogEntry) OvertimeResult {
	if cfg.Mode == ModeEventTotal {
		return ConvertOvertimeEventTotal(entries, cfg)
	}
	return ConvertOvertime(entries, cfg)
}

// conversionActive treats a non-positive threshold as conversion disabled;
// otherwise every date, including zero-hour ones, would earn a bonus.
func (cfg OvertimeConfig) conversionActive() bool {
	return cfg.ConversionEnabled && cfg.ThresholdHours.IsPositive()
}

// =============================================================================
// PER-DAY CONVERSION
// =============================================================================

// ConvertOvertime applies the per-day algorithm.
func ConvertOvertime(entries []WorkLogEntry, cfg OvertimeConfig) OvertimeResult {
	if !cfg.conversionActive() {
		return hourlyOnly(entries, cfg.HourlyRate)
	}

	byDate := hoursByDate(entries)
	result := OvertimeResult{
		DisplayHours:   decimal.Zero,
		RemainderHours: decimal.Zero,
		Days:           make([]OvertimeDay, 0, len(byDate)),
	}

	for _, d := range byDate {
		day := OvertimeDay{Date: d.date, Hours: d.hours}
		if d.hours.GreaterThanOrEqual(cfg.ThresholdHours) {
			day.BonusAwarded = true
			day.RemainderHours = decimal.Max(decimal.Zero, d.hours.Sub(CoverageCapHours))
			result.BonusesUsed++
		} else {
			day.RemainderHours = d.hours
		}
		result.RemainderHours = result.RemainderHours.Add(day.RemainderHours)
		result.DisplayHours = result.DisplayHours.Add(d.hours)
		result.Days = append(result.Days, day)
	}

	result.ConversionApplied = result.BonusesUsed > 0
	result.PayAmount = decimal.NewFromInt(int64(result.BonusesUsed)).Mul(cfg.DailyBonus).
		Add(result.RemainderHours.Mul(cfg.HourlyRate))
	return result
}

// =============================================================================
// EVENT-TOTAL CONVERSION
// =============================================================================

// ConvertOvertimeEventTotal applies the event-total variant.
func ConvertOvertimeEventTotal(entries []WorkLogEntry, cfg OvertimeConfig) OvertimeResult {
	if !cfg.conversionActive() {
		return hourlyOnly(entries, cfg.HourlyRate)
	}

	total := totalHours(entries)
	bonuses := total.Div(cfg.ThresholdHours).Floor()
	remainder := total.Mod(cfg.ThresholdHours)

	return OvertimeResult{
		PayAmount:         bonuses.Mul(cfg.DailyBonus).Add(remainder.Mul(cfg.HourlyRate)),
		DisplayHours:      total,
		ConversionApplied: bonuses.IsPositive(),
		BonusesUsed:       int(bonuses.IntPart()),
		RemainderHours:    remainder,
	}
}

// =============================================================================
// HELPERS
// =============================================================================

func hourlyOnly(entries []WorkLogEntry, hourlyRate decimal.Decimal) OvertimeResult {
	total := totalHours(entries)
	return OvertimeResult{
		PayAmount:      total.Mul(hourlyRate),
		DisplayHours:   total,
		RemainderHours: total,
	}
}

func totalHours(entries []WorkLogEntry) decimal.Decimal {
	total := decimal.Zero
	for _, d := range hoursByDate(entries) {
		total = total.Add(d.hours)
	}
	return total
}

type dateHours struct {
	date  generic.Date
	hours decimal.Decimal
}

// hoursByDate sums overtime per calendar date, ascending by date. A date
// whose sum is negative (malformed input) contributes zero hours.
func hoursByDate(entries []WorkLogEntry) []dateHours {
	sums := make(map[string]*dateHours)
	for _, e := range entries {
		k := e.Date.Key()
		d, ok := sums[k]
		if !ok {
			d = &dateHours{date: e.Date, hours: decimal.Zero}
			sums[k] = d
		}
		d.hours = d.hours.Add(e.OvertimeHours)
	}

	out := make([]dateHours, 0, len(sums))
	for _, d := range sums {
		if d.hours.IsNegative() {
			d.hours = decimal.Zero
		}
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].date.Before(out[j].date) })
	return out
}
