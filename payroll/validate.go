package payroll

import (
	"github.com/shopspring/decimal"
	"github.com/warp/crew-payroll/generic"
)

// =============================================================================
// RECORD VALIDATION - Runs where records enter the system, never in the math
// =============================================================================

func invalid(field, reason string) error {
	return &generic.FieldError{Field: field, Reason: reason, Err: generic.ErrInvalidRecord}
}

func ValidatePersonnel(p Personnel) error {
	if p.ID == "" {
		return invalid("id", "is required")
	}
	if p.Name == "" {
		return invalid("name", "is required")
	}
	if !p.Kind.Valid() {
		return invalid("kind", "must be fixed or freelance")
	}
	rates := []struct {
		field string
		value *decimal.Decimal
	}{
		{"monthly_salary", p.MonthlySalary},
		{"daily_rate", p.DailyRate},
		{"overtime_rate", p.OvertimeRate},
	}
	for _, r := range rates {
		if r.value != nil && r.value.IsNegative() {
			return invalid(r.field, "must not be negative")
		}
	}
	return nil
}

func ValidateAllocation(a Allocation) error {
	if a.WorkerID == "" {
		return invalid("worker_id", "is required")
	}
	if a.EventID == "" {
		return invalid("event_id", "is required")
	}
	if len(a.WorkDays) == 0 {
		return invalid("work_days", "must contain at least one day")
	}
	if a.RateOverride != nil && a.RateOverride.IsNegative() {
		return invalid("rate_override", "must not be negative")
	}
	return nil
}

func ValidateWorkLog(w WorkLogEntry) error {
	if w.WorkerID == "" || w.EventID == "" {
		return invalid("worker_id", "worker and event are required")
	}
	if w.Date.IsZero() {
		return invalid("date", "is required")
	}
	if w.RegularHours.IsNegative() {
		return invalid("regular_hours", "must not be negative")
	}
	if w.OvertimeHours.IsNegative() {
		return invalid("overtime_hours", "must not be negative")
	}
	return nil
}

func ValidateAbsence(a AbsenceEntry) error {
	if a.AllocationID == "" {
		return invalid("allocation_id", "is required")
	}
	if a.Date.IsZero() {
		return invalid("date", "is required")
	}
	return nil
}

// ValidateAbsenceDay checks that a marks one of alloc's work days and that no
// other absence in recorded already marks that day for the same allocation.
// Rows with a's own ID are ignored so an absence can be edited in place.
func ValidateAbsenceDay(alloc Allocation, recorded []AbsenceEntry, a AbsenceEntry) error {
	if !AllocatedDays([]Allocation{alloc}).Contains(a.Date) {
		return invalid("date", "is not a work day of the allocation")
	}
	for _, r := range recorded {
		if r.ID != a.ID && r.AllocationID == a.AllocationID && r.Date.Equal(a.Date) {
			return invalid("date", "absence already recorded for this day")
		}
	}
	return nil
}

// ValidateSettings rejects negative thresholds and unknown modes.
func ValidateSettings(s TeamSettings) error {
	if s.ThresholdHours.IsNegative() {
		return &generic.FieldError{Field: "threshold_hours", Reason: "must not be negative", Err: generic.ErrInvalidSettings}
	}
	if s.ConversionEnabled && !s.ThresholdHours.IsPositive() {
		return &generic.FieldError{Field: "threshold_hours", Reason: "must be positive when conversion is enabled", Err: generic.ErrInvalidSettings}
	}
	if s.Mode != "" && !s.Mode.Valid() {
		return &generic.FieldError{Field: "mode", Reason: "must be per_day or event_total", Err: generic.ErrInvalidSettings}
	}
	return nil
}
