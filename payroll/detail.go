/*
detail.go - Per-event payroll pipeline

PURPOSE:
  Runs every calculation for every worker allocated to an event and returns
  one Detail per worker. Detail is derived data: it is recomputed on every
  read and never persisted.

PIPELINE (per worker):
  allocations ──> AllocatedDays ──┐
  absences ─────> WorkedDays ─────┼─> FlatRatePay ──┐
  personnel ───> ResolveDailyRate ┘                 │
  work logs ───> OvertimeConfig.Convert ────────────┼─> GrossPay ─> Reconcile
  personnel ───> BaseSalary ────────────────────────┘                 ^
  ledger ─────────────────────────────────────────────────────────────┘

MISSING PERSONNEL:
  An allocation whose worker has no personnel record is skipped. One
  dangling row must not break payroll for the rest of the event.

DETERMINISM:
  Output is ordered by worker name, then ID, so identical input always
  produces identical output.
*/
package payroll

import (
	"sort"

	"github.com/shopspring/decimal"
	"github.com/warp/crew-payroll/generic"
)

// Detail is the payroll of one worker for one event.
type Detail struct {
	WorkerID   generic.WorkerID
	WorkerName string
	Kind       EmploymentKind
	EventID    generic.EventID

	AllocatedDays int
	WorkedDays    int
	AbsenceCount  int
	FirstWorkDay  generic.Date
	LastWorkDay   generic.Date

	RegularHours  decimal.Decimal
	OvertimeHours decimal.Decimal

	BaseSalary   decimal.Decimal
	DailyRate    RateResolution
	OvertimeRate decimal.Decimal
	FlatRatePay  decimal.Decimal
	OvertimePay  decimal.Decimal
	Overtime     OvertimeResult
	GrossPay     decimal.Decimal

	TotalPaid  decimal.Decimal
	Pending    decimal.Decimal
	IsComplete bool
	Status     PaymentStatus

	Absences []AbsenceView
	Payments []PaymentView
}

// Reconciliation returns the ledger view of the detail.
func (d Detail) Reconciliation() Reconciliation {
	return Reconciliation{
		Gross:      d.GrossPay,
		TotalPaid:  d.TotalPaid,
		Pending:    d.Pending,
		IsComplete: d.IsComplete,
		Status:     d.Status,
	}
}

// workerRows collects one worker's share of an EventInput.
type workerRows struct {
	allocations []Allocation
	workLogs    []WorkLogEntry
	absences    []AbsenceEntry
	ledger      []generic.PaymentEntry
}

// ComputeEventPayroll returns one Detail per worker with an allocation in
// the event and a personnel record.
func ComputeEventPayroll(in EventInput, f Formatter) []Detail {
	people := make(map[generic.WorkerID]Personnel, len(in.Personnel))
	for _, p := range in.Personnel {
		people[p.ID] = p
	}

	rows := make(map[generic.WorkerID]*workerRows)
	for _, a := range in.Allocations {
		if !belongs(in.EventID, a.EventID) {
			continue
		}
		r, ok := rows[a.WorkerID]
		if !ok {
			r = &workerRows{}
			rows[a.WorkerID] = r
		}
		r.allocations = append(r.allocations, a)
	}
	for _, w := range in.WorkLogs {
		if r, ok := rows[w.WorkerID]; ok && belongs(in.EventID, w.EventID) {
			r.workLogs = append(r.workLogs, w)
		}
	}
	for _, a := range in.Absences {
		if r, ok := rows[a.WorkerID]; ok && belongs(in.EventID, a.EventID) {
			r.absences = append(r.absences, a)
		}
	}
	for _, e := range in.Ledger {
		if r, ok := rows[e.WorkerID]; ok && belongs(in.EventID, e.EventID) {
			r.ledger = append(r.ledger, e)
		}
	}

	details := make([]Detail, 0, len(rows))
	for workerID, r := range rows {
		person, ok := people[workerID]
		if !ok {
			continue
		}
		details = append(details, computeDetail(in.EventID, person, r, in.Settings, f))
	}

	sort.Slice(details, func(i, j int) bool {
		if details[i].WorkerName != details[j].WorkerName {
			return details[i].WorkerName < details[j].WorkerName
		}
		return details[i].WorkerID < details[j].WorkerID
	})
	return details
}

func computeDetail(eventID generic.EventID, person Personnel, r *workerRows, settings TeamSettings, f Formatter) Detail {
	days := AllocatedDays(r.allocations).Sorted()
	rate := ResolveDailyRate(r.allocations, person)
	overtimeRate := decimalOrZero(person.OvertimeRate)

	overtime := OvertimeConfig{
		ThresholdHours:    settings.ThresholdHours,
		ConversionEnabled: settings.ConversionEnabled,
		DailyBonus:        rate.Rate,
		HourlyRate:        overtimeRate,
		Mode:              settings.Mode,
	}.Convert(r.workLogs)

	regular := decimal.Zero
	for _, w := range r.workLogs {
		regular = regular.Add(w.RegularHours)
	}

	base := BaseSalary(person)
	flat := FlatRatePay(r.allocations, person, r.absences)
	gross := GrossPay(base, flat, overtime.PayAmount)
	rec := Reconcile(gross, r.ledger)

	d := Detail{
		WorkerID:      person.ID,
		WorkerName:    person.Name,
		Kind:          person.Kind,
		EventID:       eventID,
		AllocatedDays: len(days),
		WorkedDays:    WorkedDays(r.allocations, r.absences),
		AbsenceCount:  len(r.absences),
		RegularHours:  regular,
		OvertimeHours: overtime.DisplayHours,
		BaseSalary:    base,
		DailyRate:     rate,
		OvertimeRate:  overtimeRate,
		FlatRatePay:   flat,
		OvertimePay:   overtime.PayAmount,
		Overtime:      overtime,
		GrossPay:      gross,
		TotalPaid:     rec.TotalPaid,
		Pending:       rec.Pending,
		IsComplete:    rec.IsComplete,
		Status:        rec.Status,
		Absences:      FormatAbsences(r.absences),
		Payments:      FormatPayments(r.ledger, f),
	}
	if len(days) > 0 {
		d.FirstWorkDay = days[0]
		d.LastWorkDay = days[len(days)-1]
	}
	if d.EventID == "" && len(r.allocations) > 0 {
		d.EventID = r.allocations[0].EventID
	}
	return d
}

// belongs keeps rows of the requested event. An empty event ID accepts all
// rows, for callers that have already filtered.
func belongs(want, got generic.EventID) bool {
	return want == "" || want == got
}
