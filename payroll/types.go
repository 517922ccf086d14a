// Package payroll implements the crew payroll calculation and reconciliation
// engine: worked days, rate precedence, overtime conversion, gross pay and
// ledger reconciliation.
//
// Every function in this package is a pure transformation of its inputs.
// Nothing here performs I/O or keeps state between calls, so it is safe to
// call concurrently and repeated calls on the same input yield the same output.
package payroll

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/crew-payroll/generic"
)

// =============================================================================
// PERSONNEL
// =============================================================================

// EmploymentKind distinguishes salaried staff from freelancers.
type EmploymentKind string

const (
	KindFixed     EmploymentKind = "fixed"
	KindFreelance EmploymentKind = "freelance"
)

func (k EmploymentKind) Valid() bool {
	return k == KindFixed || k == KindFreelance
}

// Personnel is a worker profile. The engine only reads it.
//
// MonthlySalary is meaningful only for KindFixed. DailyRate and OvertimeRate
// apply to both kinds and are the sole compensation basis for freelancers.
type Personnel struct {
	ID            generic.WorkerID
	Name          string
	Kind          EmploymentKind
	MonthlySalary *decimal.Decimal
	DailyRate     *decimal.Decimal
	OvertimeRate  *decimal.Decimal
}

// =============================================================================
// ALLOCATION
// =============================================================================

// Allocation assigns one worker to one event on a set of days.
// A worker may have several rows for the same event; their days are unioned.
type Allocation struct {
	ID           generic.AllocationID
	WorkerID     generic.WorkerID
	EventID      generic.EventID
	WorkDays     []generic.Date
	RateOverride *decimal.Decimal
	Team         string
}

// =============================================================================
// WORK LOG
// =============================================================================

type WorkLogEntry struct {
	ID            string
	WorkerID      generic.WorkerID
	EventID       generic.EventID
	Date          generic.Date
	RegularHours  decimal.Decimal
	OvertimeHours decimal.Decimal
}

// =============================================================================
// ABSENCE
// =============================================================================

// AbsenceEntry marks an allocated day the worker did not work.
type AbsenceEntry struct {
	ID           string
	AllocationID generic.AllocationID
	WorkerID     generic.WorkerID
	EventID      generic.EventID
	Date         generic.Date
	Notes        string
	LoggedBy     string
	CreatedAt    time.Time
}

// =============================================================================
// EVENT INPUT - Everything one event's payroll is computed from
// =============================================================================

// EventInput is the snapshot the persistence layer hands to the engine.
type EventInput struct {
	EventID     generic.EventID
	Allocations []Allocation
	WorkLogs    []WorkLogEntry
	Absences    []AbsenceEntry
	Ledger      []generic.PaymentEntry
	Personnel   []Personnel
	Settings    TeamSettings
}

// TeamSettings is the team-wide overtime configuration. It is passed
// explicitly into every computation.
type TeamSettings struct {
	ThresholdHours    decimal.Decimal
	ConversionEnabled bool
	Mode              ConversionMode
}

// DefaultTeamSettings returns conversion disabled with an 8 hour threshold.
func DefaultTeamSettings() TeamSettings {
	return TeamSettings{
		ThresholdHours:    decimal.NewFromInt(8),
		ConversionEnabled: false,
		Mode:              ModePerDay,
	}
}

func decimalOrZero(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}
