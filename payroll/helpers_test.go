package payroll_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/warp/crew-payroll/generic"
	"github.com/warp/crew-payroll/payroll"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func day(s string) generic.Date { return generic.MustParseDate(s) }

func days(ss ...string) []generic.Date {
	out := make([]generic.Date, len(ss))
	for i, s := range ss {
		out[i] = day(s)
	}
	return out
}

func alloc(id, worker string, override *decimal.Decimal, workDays ...string) payroll.Allocation {
	return payroll.Allocation{
		ID:           generic.AllocationID(id),
		WorkerID:     generic.WorkerID(worker),
		EventID:      "evt-1",
		WorkDays:     days(workDays...),
		RateOverride: override,
	}
}

func absence(id, worker, date string) payroll.AbsenceEntry {
	return payroll.AbsenceEntry{
		ID:           id,
		AllocationID: "alloc-1",
		WorkerID:     generic.WorkerID(worker),
		EventID:      "evt-1",
		Date:         day(date),
	}
}

func overtime(worker, date, hours string) payroll.WorkLogEntry {
	return payroll.WorkLogEntry{
		ID:            worker + "-" + date,
		WorkerID:      generic.WorkerID(worker),
		EventID:       "evt-1",
		Date:          day(date),
		RegularHours:  dec("8"),
		OvertimeHours: dec(hours),
	}
}

func payment(id, worker, amount string) generic.PaymentEntry {
	return generic.PaymentEntry{
		ID:       generic.EntryID(id),
		WorkerID: generic.WorkerID(worker),
		EventID:  "evt-1",
		Amount:   generic.NewMoney(dec(amount)),
		Kind:     generic.PaymentPartial,
	}
}

func freelancer(id, name, daily, overtimeRate string) payroll.Personnel {
	return payroll.Personnel{
		ID:           generic.WorkerID(id),
		Name:         name,
		Kind:         payroll.KindFreelance,
		DailyRate:    decPtr(daily),
		OvertimeRate: decPtr(overtimeRate),
	}
}

func assertDec(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.Truef(t, dec(want).Equal(got), "expected %s, got %s", want, got.String())
}
