package payroll

import (
	"sort"

	"github.com/shopspring/decimal"
	"github.com/warp/crew-payroll/generic"
)

// =============================================================================
// MONTHLY SUMMARY - Cross-event view of one worker
// =============================================================================

// An event is attributed to the month of the worker's first allocated day.

type MonthlyLine struct {
	EventID    generic.EventID
	FirstDay   generic.Date
	WorkedDays int
	GrossPay   decimal.Decimal
	TotalPaid  decimal.Decimal
	Pending    decimal.Decimal
	Status     PaymentStatus
}

type MonthlySummary struct {
	WorkerID     generic.WorkerID
	WorkerName   string
	Month        generic.Month
	Events       []MonthlyLine
	WorkedDays   int
	TotalGross   decimal.Decimal
	TotalPaid    decimal.Decimal
	TotalPending decimal.Decimal
	IsComplete   bool
}

// SummarizeMonth folds the worker's per-event details that fall in month.
// Details of other workers or other months are ignored.
func SummarizeMonth(workerID generic.WorkerID, month generic.Month, details []Detail) MonthlySummary {
	s := MonthlySummary{
		WorkerID:     workerID,
		Month:        month,
		Events:       []MonthlyLine{},
		TotalGross:   decimal.Zero,
		TotalPaid:    decimal.Zero,
		TotalPending: decimal.Zero,
	}

	for _, d := range details {
		if d.WorkerID != workerID || d.FirstWorkDay.IsZero() || !d.FirstWorkDay.InMonth(month) {
			continue
		}
		s.WorkerName = d.WorkerName
		s.Events = append(s.Events, MonthlyLine{
			EventID:    d.EventID,
			FirstDay:   d.FirstWorkDay,
			WorkedDays: d.WorkedDays,
			GrossPay:   d.GrossPay,
			TotalPaid:  d.TotalPaid,
			Pending:    d.Pending,
			Status:     d.Status,
		})
		s.WorkedDays += d.WorkedDays
		s.TotalGross = s.TotalGross.Add(d.GrossPay)
		s.TotalPaid = s.TotalPaid.Add(d.TotalPaid)
		s.TotalPending = s.TotalPending.Add(d.Pending)
	}

	sort.Slice(s.Events, func(i, j int) bool {
		if !s.Events[i].FirstDay.Equal(s.Events[j].FirstDay) {
			return s.Events[i].FirstDay.Before(s.Events[j].FirstDay)
		}
		return s.Events[i].EventID < s.Events[j].EventID
	})
	s.IsComplete = len(s.Events) > 0 && s.TotalPending.IsZero() && s.TotalPaid.IsPositive()
	return s
}
