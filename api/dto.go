/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the payroll model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY AND HOURS:
  Amounts travel as decimal strings ("1250.50") so no precision is lost in
  JavaScript clients. Each money field has a *_display companion formatted
  in the configured currency.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/settings.go: TeamSettingsJSON
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/crew-payroll/generic"
	"github.com/warp/crew-payroll/payroll"
)

// =============================================================================
// PAYROLL VIEWS
// =============================================================================

// EventPayrollDTO is the response for GET /api/events/{eventID}/payroll.
type EventPayrollDTO struct {
	EventID  string             `json:"event_id"`
	Currency string             `json:"currency"`
	Workers  []WorkerPayrollDTO `json:"workers"`
}

// WorkerPayrollDTO is one worker's detail in an event.
type WorkerPayrollDTO struct {
	WorkerID      string `json:"worker_id"`
	WorkerName    string `json:"worker_name"`
	Kind          string `json:"kind"`
	AllocatedDays int    `json:"allocated_days"`
	WorkedDays    int    `json:"worked_days"`
	AbsenceCount  int    `json:"absence_count"`
	FirstWorkDay  string `json:"first_work_day,omitempty"`
	LastWorkDay   string `json:"last_work_day,omitempty"`

	RegularHours  string `json:"regular_hours"`
	OvertimeHours string `json:"overtime_hours"`

	DailyRate       string `json:"daily_rate"`
	DailyRateSource string `json:"daily_rate_source"`
	OvertimeRate    string `json:"overtime_rate"`

	BaseSalary  string      `json:"base_salary"`
	FlatRatePay string      `json:"flat_rate_pay"`
	OvertimePay string      `json:"overtime_pay"`
	Overtime    OvertimeDTO `json:"overtime"`

	GrossPay        string `json:"gross_pay"`
	GrossPayDisplay string `json:"gross_pay_display"`
	TotalPaid       string `json:"total_paid"`
	Pending         string `json:"pending"`
	PendingDisplay  string `json:"pending_display"`
	IsComplete      bool   `json:"is_complete"`
	Status          string `json:"status"`

	Absences []AbsenceDTO `json:"absences"`
	Payments []PaymentDTO `json:"payments"`
}

type AbsenceDTO struct {
	ID           string `json:"id"`
	AllocationID string `json:"allocation_id"`
	Date         string `json:"date"`
	Notes        string `json:"notes,omitempty"`
	LoggedBy     string `json:"logged_by"`
	LoggedAt     string `json:"logged_at,omitempty"`
}

type OvertimeDTO struct {
	ConversionApplied bool   `json:"conversion_applied"`
	BonusesUsed       int    `json:"bonuses_used"`
	RemainderHours    string `json:"remainder_hours"`
	DisplayHours      string `json:"display_hours"`
}

// PaymentDTO is one ledger entry.
type PaymentDTO struct {
	ID       string `json:"id"`
	WorkerID string `json:"worker_id,omitempty"`
	EventID  string `json:"event_id,omitempty"`
	Amount   string `json:"amount"`
	Display  string `json:"display,omitempty"`
	Kind     string `json:"kind"`
	PaidAt   string `json:"paid_at"`
	Notes    string `json:"notes,omitempty"`
}

// MonthlyPayrollDTO is the response for GET /api/workers/{workerID}/payroll.
type MonthlyPayrollDTO struct {
	WorkerID     string           `json:"worker_id"`
	WorkerName   string           `json:"worker_name"`
	Month        string           `json:"month"`
	WorkedDays   int              `json:"worked_days"`
	TotalGross   string           `json:"total_gross"`
	TotalPaid    string           `json:"total_paid"`
	TotalPending string           `json:"total_pending"`
	IsComplete   bool             `json:"is_complete"`
	Events       []MonthlyLineDTO `json:"events"`
}

type MonthlyLineDTO struct {
	EventID    string `json:"event_id"`
	FirstDay   string `json:"first_day"`
	WorkedDays int    `json:"worked_days"`
	GrossPay   string `json:"gross_pay"`
	TotalPaid  string `json:"total_paid"`
	Pending    string `json:"pending"`
	Status     string `json:"status"`
}

// =============================================================================
// COMMANDS
// =============================================================================

// RegisterPaymentRequest is the body of POST /api/events/{eventID}/payments.
// Kind is "full" or "partial". A full payment without amount settles
// whatever is pending.
type RegisterPaymentRequest struct {
	WorkerID       string           `json:"worker_id"`
	Kind           string           `json:"kind"`
	Amount         *decimal.Decimal `json:"amount,omitempty"`
	Notes          string           `json:"notes,omitempty"`
	IdempotencyKey string           `json:"idempotency_key,omitempty"`
	CreatedBy      string           `json:"created_by,omitempty"`
}

// =============================================================================
// DATA ENTRY
// =============================================================================

type PersonnelRequest struct {
	ID            string           `json:"id,omitempty"`
	Name          string           `json:"name"`
	Kind          string           `json:"kind"`
	MonthlySalary *decimal.Decimal `json:"monthly_salary,omitempty"`
	DailyRate     *decimal.Decimal `json:"daily_rate,omitempty"`
	OvertimeRate  *decimal.Decimal `json:"overtime_rate,omitempty"`
}

type PersonnelDTO struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Kind          string  `json:"kind"`
	MonthlySalary *string `json:"monthly_salary,omitempty"`
	DailyRate     *string `json:"daily_rate,omitempty"`
	OvertimeRate  *string `json:"overtime_rate,omitempty"`
}

type AllocationRequest struct {
	ID           string           `json:"id,omitempty"`
	WorkerID     string           `json:"worker_id"`
	EventID      string           `json:"event_id"`
	WorkDays     []string         `json:"work_days"`
	RateOverride *decimal.Decimal `json:"rate_override,omitempty"`
	Team         string           `json:"team,omitempty"`
}

type WorkLogRequest struct {
	ID            string          `json:"id,omitempty"`
	WorkerID      string          `json:"worker_id"`
	EventID       string          `json:"event_id"`
	Date          string          `json:"date"`
	RegularHours  decimal.Decimal `json:"regular_hours"`
	OvertimeHours decimal.Decimal `json:"overtime_hours"`
}

type AbsenceRequest struct {
	ID           string `json:"id,omitempty"`
	AllocationID string `json:"allocation_id"`
	Date         string `json:"date"`
	Notes        string `json:"notes,omitempty"`
	LoggedBy     string `json:"logged_by,omitempty"`
}

// CreatedDTO acknowledges a data entry write.
type CreatedDTO struct {
	ID string `json:"id"`
}

// =============================================================================
// SCENARIOS / ERRORS
// =============================================================================

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ErrorResponse is returned on errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Field   string `json:"field,omitempty"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func money(d decimal.Decimal) string { return d.StringFixed(2) }

func dateString(d generic.Date) string {
	if d.IsZero() {
		return ""
	}
	return d.Key()
}

func optionalString(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}

func toWorkerPayrollDTO(d payroll.Detail, f payroll.Formatter) WorkerPayrollDTO {
	payments := make([]PaymentDTO, len(d.Payments))
	for i, p := range d.Payments {
		payments[i] = PaymentDTO{
			ID:      string(p.ID),
			Amount:  money(p.Amount),
			Display: p.Display,
			Kind:    string(p.Kind),
			PaidAt:  p.PaidAt.UTC().Format(time.RFC3339),
			Notes:   p.Notes,
		}
	}
	absences := make([]AbsenceDTO, len(d.Absences))
	for i, a := range d.Absences {
		absences[i] = AbsenceDTO{
			ID:           a.ID,
			AllocationID: string(a.AllocationID),
			Date:         a.Date,
			Notes:        a.Notes,
			LoggedBy:     a.LoggedBy,
		}
		if !a.LoggedAt.IsZero() {
			absences[i].LoggedAt = a.LoggedAt.UTC().Format(time.RFC3339)
		}
	}

	return WorkerPayrollDTO{
		WorkerID:        string(d.WorkerID),
		WorkerName:      d.WorkerName,
		Kind:            string(d.Kind),
		AllocatedDays:   d.AllocatedDays,
		WorkedDays:      d.WorkedDays,
		AbsenceCount:    d.AbsenceCount,
		FirstWorkDay:    dateString(d.FirstWorkDay),
		LastWorkDay:     dateString(d.LastWorkDay),
		RegularHours:    d.RegularHours.String(),
		OvertimeHours:   d.OvertimeHours.String(),
		DailyRate:       money(d.DailyRate.Rate),
		DailyRateSource: string(d.DailyRate.Source),
		OvertimeRate:    money(d.OvertimeRate),
		BaseSalary:      money(d.BaseSalary),
		FlatRatePay:     money(d.FlatRatePay),
		OvertimePay:     money(d.OvertimePay),
		Overtime: OvertimeDTO{
			ConversionApplied: d.Overtime.ConversionApplied,
			BonusesUsed:       d.Overtime.BonusesUsed,
			RemainderHours:    d.Overtime.RemainderHours.String(),
			DisplayHours:      d.Overtime.DisplayHours.String(),
		},
		GrossPay:        money(d.GrossPay),
		GrossPayDisplay: f.Money(d.GrossPay),
		TotalPaid:       money(d.TotalPaid),
		Pending:         money(d.Pending),
		PendingDisplay:  f.Money(d.Pending),
		IsComplete:      d.IsComplete,
		Status:          string(d.Status),
		Absences:        absences,
		Payments:        payments,
	}
}

func toPaymentDTO(e generic.PaymentEntry, f payroll.Formatter) PaymentDTO {
	return PaymentDTO{
		ID:       string(e.ID),
		WorkerID: string(e.WorkerID),
		EventID:  string(e.EventID),
		Amount:   money(e.Amount.Value),
		Display:  f.Money(e.Amount.Value),
		Kind:     string(e.Kind),
		PaidAt:   e.PaidAt.UTC().Format(time.RFC3339),
		Notes:    e.Notes,
	}
}

func toMonthlyPayrollDTO(s payroll.MonthlySummary) MonthlyPayrollDTO {
	lines := make([]MonthlyLineDTO, len(s.Events))
	for i, l := range s.Events {
		lines[i] = MonthlyLineDTO{
			EventID:    string(l.EventID),
			FirstDay:   dateString(l.FirstDay),
			WorkedDays: l.WorkedDays,
			GrossPay:   money(l.GrossPay),
			TotalPaid:  money(l.TotalPaid),
			Pending:    money(l.Pending),
			Status:     string(l.Status),
		}
	}
	return MonthlyPayrollDTO{
		WorkerID:     string(s.WorkerID),
		WorkerName:   s.WorkerName,
		Month:        s.Month.String(),
		WorkedDays:   s.WorkedDays,
		TotalGross:   money(s.TotalGross),
		TotalPaid:    money(s.TotalPaid),
		TotalPending: money(s.TotalPending),
		IsComplete:   s.IsComplete,
		Events:       lines,
	}
}

func toPersonnelDTO(p payroll.Personnel) PersonnelDTO {
	return PersonnelDTO{
		ID:            string(p.ID),
		Name:          p.Name,
		Kind:          string(p.Kind),
		MonthlySalary: optionalString(p.MonthlySalary),
		DailyRate:     optionalString(p.DailyRate),
		OvertimeRate:  optionalString(p.OvertimeRate),
	}
}
