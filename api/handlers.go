/*
handlers.go - HTTP API handlers for the crew payroll service

PURPOSE:
  Exposes payroll closing via REST API. Handles HTTP request/response and
  JSON serialization, and delegates everything else to closing.Service.

ENDPOINTS:
  Payroll views:
    GET    /api/events/{eventID}/payroll                      Every worker of an event
    GET    /api/events/{eventID}/workers/{workerID}/payroll   One worker of an event
    GET    /api/workers/{workerID}/payroll?month=YYYY-MM      Monthly summary

  Ledger:
    POST   /api/events/{eventID}/payments   Register a full or partial payment
    DELETE /api/payments/{id}               Cancel (remove) a payment

  Settings:
    GET    /api/settings/overtime
    PUT    /api/settings/overtime

  Data entry:
    GET    /api/personnel
    POST   /api/personnel
    POST   /api/allocations
    DELETE /api/allocations/{id}
    POST   /api/worklogs
    POST   /api/absences

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors (bad amount, partial above pending, bad record)
  - 404: Event, worker or payment not found
  - 409: Duplicate idempotency key
  - 422: Worker not allocated to the event
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo data loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/shopspring/decimal"
	"github.com/warp/crew-payroll/closing"
	"github.com/warp/crew-payroll/factory"
	"github.com/warp/crew-payroll/generic"
	"github.com/warp/crew-payroll/payroll"
	"github.com/warp/crew-payroll/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service   *closing.Service
	Store     *sqlite.Store
	Formatter payroll.Formatter
	Log       zerolog.Logger

	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a new handler.
func NewHandler(svc *closing.Service, store *sqlite.Store, f payroll.Formatter, log zerolog.Logger) *Handler {
	return &Handler{
		Service:   svc,
		Store:     store,
		Formatter: f,
		Log:       log,
	}
}

// =============================================================================
// PAYROLL VIEWS
// =============================================================================

// GetEventPayroll returns one detail per allocated worker.
func (h *Handler) GetEventPayroll(w http.ResponseWriter, r *http.Request) {
	eventID := generic.EventID(chi.URLParam(r, "eventID"))

	details, err := h.Service.EventPayroll(r.Context(), eventID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	workers := make([]WorkerPayrollDTO, len(details))
	for i, d := range details {
		workers[i] = toWorkerPayrollDTO(d, h.Formatter)
	}
	writeJSON(w, http.StatusOK, EventPayrollDTO{
		EventID:  string(eventID),
		Currency: h.Formatter.Currency.String(),
		Workers:  workers,
	})
}

// GetWorkerEventPayroll returns one worker's detail in one event.
func (h *Handler) GetWorkerEventPayroll(w http.ResponseWriter, r *http.Request) {
	eventID := generic.EventID(chi.URLParam(r, "eventID"))
	workerID := generic.WorkerID(chi.URLParam(r, "workerID"))

	d, err := h.Service.WorkerEventPayroll(r.Context(), eventID, workerID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toWorkerPayrollDTO(d, h.Formatter))
}

// GetMonthlyPayroll aggregates a worker's events for a month.
// The month defaults to the current one.
func (h *Handler) GetMonthlyPayroll(w http.ResponseWriter, r *http.Request) {
	workerID := generic.WorkerID(chi.URLParam(r, "workerID"))

	month := generic.MonthOf(generic.DateOf(time.Now()))
	if q := r.URL.Query().Get("month"); q != "" {
		var err error
		month, err = generic.ParseMonth(q)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Could not parse month, use YYYY-MM", err)
			return
		}
	}

	summary, err := h.Service.MonthlyPayroll(r.Context(), workerID, month)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toMonthlyPayrollDTO(summary))
}

// =============================================================================
// LEDGER
// =============================================================================

// RegisterPayment records a full or partial payment.
// POST /api/events/{eventID}/payments
func (h *Handler) RegisterPayment(w http.ResponseWriter, r *http.Request) {
	var req RegisterPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.WorkerID == "" {
		writeError(w, http.StatusBadRequest, "worker_id is required", nil)
		return
	}

	cmd := closing.RegisterPaymentCommand{
		EventID:        generic.EventID(chi.URLParam(r, "eventID")),
		WorkerID:       generic.WorkerID(req.WorkerID),
		Notes:          req.Notes,
		IdempotencyKey: req.IdempotencyKey,
		CreatedBy:      req.CreatedBy,
	}
	if req.Amount != nil {
		cmd.Amount = *req.Amount
	}

	var (
		entry generic.PaymentEntry
		err   error
	)
	switch generic.PaymentKind(req.Kind) {
	case generic.PaymentFull:
		entry, err = h.Service.RegisterFullPayment(r.Context(), cmd)
	case generic.PaymentPartial:
		if req.Amount == nil {
			writeError(w, http.StatusBadRequest, "amount is required for partial payments", nil)
			return
		}
		entry, err = h.Service.RegisterPartialPayment(r.Context(), cmd)
	default:
		writeError(w, http.StatusBadRequest, "kind must be full or partial", nil)
		return
	}
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toPaymentDTO(entry, h.Formatter))
}

// CancelPayment removes a ledger entry.
// DELETE /api/payments/{id}
func (h *Handler) CancelPayment(w http.ResponseWriter, r *http.Request) {
	id := generic.EntryID(chi.URLParam(r, "id"))

	removed, err := h.Service.CancelPayment(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentDTO(removed, h.Formatter))
}

// =============================================================================
// SETTINGS
// =============================================================================

func (h *Handler) GetOvertimeSettings(w http.ResponseWriter, r *http.Request) {
	s, err := h.Service.Settings(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, factory.ToJSON(s))
}

func (h *Handler) UpdateOvertimeSettings(w http.ResponseWriter, r *http.Request) {
	var req factory.TeamSettingsJSON
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	s, err := factory.FromJSON(req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if err := h.Service.UpdateSettings(r.Context(), s); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, factory.ToJSON(s))
}

// =============================================================================
// DATA ENTRY
// =============================================================================

func (h *Handler) ListPersonnel(w http.ResponseWriter, r *http.Request) {
	people, err := h.Service.ListPersonnel(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	dtos := make([]PersonnelDTO, len(people))
	for i, p := range people {
		dtos[i] = toPersonnelDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreatePersonnel(w http.ResponseWriter, r *http.Request) {
	var req PersonnelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	p, err := h.Service.SavePersonnel(r.Context(), payroll.Personnel{
		ID:            generic.WorkerID(req.ID),
		Name:          req.Name,
		Kind:          payroll.EmploymentKind(req.Kind),
		MonthlySalary: req.MonthlySalary,
		DailyRate:     req.DailyRate,
		OvertimeRate:  req.OvertimeRate,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPersonnelDTO(p))
}

func (h *Handler) CreateAllocation(w http.ResponseWriter, r *http.Request) {
	var req AllocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	days := make([]generic.Date, 0, len(req.WorkDays))
	for _, s := range req.WorkDays {
		d, err := generic.ParseDate(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid work day (use YYYY-MM-DD)", err)
			return
		}
		days = append(days, d)
	}

	a, err := h.Service.SaveAllocation(r.Context(), payroll.Allocation{
		ID:           generic.AllocationID(req.ID),
		WorkerID:     generic.WorkerID(req.WorkerID),
		EventID:      generic.EventID(req.EventID),
		WorkDays:     days,
		RateOverride: req.RateOverride,
		Team:         req.Team,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, CreatedDTO{ID: string(a.ID)})
}

func (h *Handler) DeleteAllocation(w http.ResponseWriter, r *http.Request) {
	id := generic.AllocationID(chi.URLParam(r, "id"))
	if err := h.Service.DeleteAllocation(r.Context(), id); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) CreateWorkLog(w http.ResponseWriter, r *http.Request) {
	var req WorkLogRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	date, err := generic.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date (use YYYY-MM-DD)", err)
		return
	}

	wl, err := h.Service.SaveWorkLog(r.Context(), payroll.WorkLogEntry{
		ID:            req.ID,
		WorkerID:      generic.WorkerID(req.WorkerID),
		EventID:       generic.EventID(req.EventID),
		Date:          date,
		RegularHours:  req.RegularHours,
		OvertimeHours: req.OvertimeHours,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, CreatedDTO{ID: wl.ID})
}

func (h *Handler) CreateAbsence(w http.ResponseWriter, r *http.Request) {
	var req AbsenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	date, err := generic.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date (use YYYY-MM-DD)", err)
		return
	}

	a, err := h.Service.SaveAbsence(r.Context(), payroll.AbsenceEntry{
		ID:           req.ID,
		AllocationID: generic.AllocationID(req.AllocationID),
		Date:         date,
		Notes:        req.Notes,
		LoggedBy:     req.LoggedBy,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, CreatedDTO{ID: a.ID})
}

// Health reports whether the database answers.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "Database unavailable", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeServiceError maps domain errors to HTTP statuses.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	resp := ErrorResponse{Error: err.Error()}
	var fe *generic.FieldError
	if errors.As(err, &fe) {
		resp.Field = fe.Field
	}

	status := http.StatusInternalServerError
	switch {
	case generic.IsConflict(err):
		status, resp.Code = http.StatusConflict, "duplicate"
	case generic.IsPreconditionFailure(err):
		status, resp.Code = http.StatusUnprocessableEntity, "not_allocated"
	case errors.Is(err, generic.ErrExceedsPending):
		status, resp.Code = http.StatusBadRequest, "exceeds_pending"
	case errors.Is(err, generic.ErrInvalidAmount):
		status, resp.Code = http.StatusBadRequest, "invalid_amount"
	case generic.IsClientError(err):
		status, resp.Code = http.StatusBadRequest, "invalid"
	case generic.IsNotFound(err):
		status, resp.Code = http.StatusNotFound, "not_found"
	default:
		hlog.FromRequest(r).Error().Err(err).Msg("request failed")
		resp.Error = "Internal error"
	}
	writeJSON(w, status, resp)
}

// decimalOrNil is used by scenario loaders.
func decimalOrNil(s string) *decimal.Decimal {
	if s == "" {
		return nil
	}
	d := generic.MustParseDecimal(s)
	return &d
}
