/*
handlers_test.go - HTTP tests for the payroll API

Tests for:
- Event and worker payroll views
- Payment registration (full, partial, rejected) and cancellation
- Overtime settings round trip
- Monthly summaries
- Health and metrics endpoints

Every test runs the full router against an in-memory SQLite store.
*/
package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/crew-payroll/closing"
	"github.com/warp/crew-payroll/payroll"
	"github.com/warp/crew-payroll/store/sqlite"
)

type testServer struct {
	t      *testing.T
	router http.Handler
	h      *Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	reg := prometheus.NewRegistry()
	f := payroll.NewFormatter("pt-BR")
	svc := closing.NewService(store, store, closing.Options{
		Formatter: f,
		Logger:    zerolog.Nop(),
		Metrics:   closing.NewMetrics(reg),
	})
	h := NewHandler(svc, store, f, zerolog.Nop())
	return &testServer{t: t, router: NewRouter(h, reg, nil), h: h}
}

func (s *testServer) do(method, path string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// seedCrew creates Ana (freelance, 500/day) on evt-1 for two days and an
// unallocated Bruno.
func (s *testServer) seedCrew() {
	s.t.Helper()
	rec := s.do("POST", "/api/personnel", map[string]any{
		"id": "w-ana", "name": "Ana", "kind": "freelance", "daily_rate": "500", "overtime_rate": "50",
	})
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do("POST", "/api/personnel", map[string]any{
		"id": "w-bruno", "name": "Bruno", "kind": "fixed", "monthly_salary": "3000",
	})
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do("POST", "/api/allocations", map[string]any{
		"id": "a1", "worker_id": "w-ana", "event_id": "evt-1",
		"work_days": []string{"2024-03-01", "2024-03-02"},
	})
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
}

func (s *testServer) anaDetail() WorkerPayrollDTO {
	s.t.Helper()
	rec := s.do("GET", "/api/events/evt-1/workers/w-ana/payroll", nil)
	require.Equal(s.t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[WorkerPayrollDTO](s.t, rec)
}

// =============================================================================
// VIEWS
// =============================================================================

func TestEventPayroll_ListsAllocatedWorkers(t *testing.T) {
	// GIVEN: Ana allocated for two days at 500
	s := newTestServer(t)
	s.seedCrew()

	// WHEN: Reading the event payroll
	rec := s.do("GET", "/api/events/evt-1/payroll", nil)

	// THEN: Only Ana is listed, fully pending
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[EventPayrollDTO](t, rec)
	assert.Equal(t, "evt-1", resp.EventID)
	assert.Equal(t, "BRL", resp.Currency)
	require.Len(t, resp.Workers, 1)

	ana := resp.Workers[0]
	assert.Equal(t, "w-ana", ana.WorkerID)
	assert.Equal(t, 2, ana.WorkedDays)
	assert.Equal(t, "1000.00", ana.GrossPay)
	assert.Equal(t, "1000.00", ana.Pending)
	assert.Equal(t, "unpaid", ana.Status)
	assert.False(t, ana.IsComplete)
	assert.Empty(t, ana.Payments)
}

func TestEventPayroll_UnknownEvent(t *testing.T) {
	s := newTestServer(t)

	rec := s.do("GET", "/api/events/nope/payroll", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decode[ErrorResponse](t, rec).Code)
}

func TestWorkerEventPayroll_WorkerNotAllocated(t *testing.T) {
	s := newTestServer(t)
	s.seedCrew()

	rec := s.do("GET", "/api/events/evt-1/workers/w-bruno/payroll", nil)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

// =============================================================================
// PAYMENTS
// =============================================================================

func TestRegisterPayment_PartialThenFull(t *testing.T) {
	// GIVEN: Ana with 1000 pending
	s := newTestServer(t)
	s.seedCrew()

	// WHEN: Paying 400 as an advance
	rec := s.do("POST", "/api/events/evt-1/payments", map[string]any{
		"worker_id": "w-ana", "kind": "partial", "amount": "400", "notes": "advance",
	})

	// THEN: 600 remains
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	entry := decode[PaymentDTO](t, rec)
	assert.Equal(t, "400.00", entry.Amount)
	assert.Equal(t, "partial", entry.Kind)
	assert.NotEmpty(t, entry.ID)

	ana := s.anaDetail()
	assert.Equal(t, "600.00", ana.Pending)
	assert.Equal(t, "partially_paid", ana.Status)
	require.Len(t, ana.Payments, 1)

	// WHEN: Paying in full without an amount
	rec = s.do("POST", "/api/events/evt-1/payments", map[string]any{
		"worker_id": "w-ana", "kind": "full",
	})

	// THEN: The pending 600 is settled
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "600.00", decode[PaymentDTO](t, rec).Amount)

	ana = s.anaDetail()
	assert.Equal(t, "0.00", ana.Pending)
	assert.Equal(t, "1000.00", ana.TotalPaid)
	assert.Equal(t, "paid", ana.Status)
	assert.True(t, ana.IsComplete)
}

func TestRegisterPayment_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		body   map[string]any
		status int
		code   string
	}{
		{
			name:   "worker not allocated",
			path:   "/api/events/evt-1/payments",
			body:   map[string]any{"worker_id": "w-bruno", "kind": "full", "amount": "100"},
			status: http.StatusUnprocessableEntity,
			code:   "not_allocated",
		},
		{
			name:   "event without allocations",
			path:   "/api/events/evt-9/payments",
			body:   map[string]any{"worker_id": "w-ana", "kind": "partial", "amount": "100"},
			status: http.StatusUnprocessableEntity,
			code:   "not_allocated",
		},
		{
			name:   "partial above pending",
			path:   "/api/events/evt-1/payments",
			body:   map[string]any{"worker_id": "w-ana", "kind": "partial", "amount": "1000.01"},
			status: http.StatusBadRequest,
			code:   "exceeds_pending",
		},
		{
			name:   "zero amount",
			path:   "/api/events/evt-1/payments",
			body:   map[string]any{"worker_id": "w-ana", "kind": "partial", "amount": "0"},
			status: http.StatusBadRequest,
			code:   "invalid_amount",
		},
		{
			name:   "negative full payment",
			path:   "/api/events/evt-1/payments",
			body:   map[string]any{"worker_id": "w-ana", "kind": "full", "amount": "-5"},
			status: http.StatusBadRequest,
			code:   "invalid_amount",
		},
		{
			name:   "partial without amount",
			path:   "/api/events/evt-1/payments",
			body:   map[string]any{"worker_id": "w-ana", "kind": "partial"},
			status: http.StatusBadRequest,
		},
		{
			name:   "unknown kind",
			path:   "/api/events/evt-1/payments",
			body:   map[string]any{"worker_id": "w-ana", "kind": "bonus", "amount": "10"},
			status: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)
			s.seedCrew()

			rec := s.do("POST", tt.path, tt.body)

			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			if tt.code != "" {
				assert.Equal(t, tt.code, decode[ErrorResponse](t, rec).Code)
			}
			assert.Equal(t, "1000.00", s.anaDetail().Pending, "ledger must be untouched")
		})
	}
}

func TestRegisterPayment_DuplicateIdempotencyKey(t *testing.T) {
	s := newTestServer(t)
	s.seedCrew()
	body := map[string]any{"worker_id": "w-ana", "kind": "partial", "amount": "400", "idempotency_key": "k-1"}

	first := s.do("POST", "/api/events/evt-1/payments", body)
	second := s.do("POST", "/api/events/evt-1/payments", body)

	assert.Equal(t, http.StatusCreated, first.Code)
	assert.Equal(t, http.StatusConflict, second.Code)
	assert.Equal(t, "duplicate", decode[ErrorResponse](t, second).Code)
	assert.Equal(t, "600.00", s.anaDetail().Pending)
}

func TestCancelPayment_RestoresPending(t *testing.T) {
	// GIVEN: A 400 advance
	s := newTestServer(t)
	s.seedCrew()
	rec := s.do("POST", "/api/events/evt-1/payments", map[string]any{
		"worker_id": "w-ana", "kind": "partial", "amount": "400",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decode[PaymentDTO](t, rec).ID

	// WHEN: Cancelling it
	rec = s.do("DELETE", "/api/payments/"+id, nil)

	// THEN: The worker is back to unpaid
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, id, decode[PaymentDTO](t, rec).ID)

	ana := s.anaDetail()
	assert.Equal(t, "1000.00", ana.Pending)
	assert.Equal(t, "unpaid", ana.Status)
	assert.Empty(t, ana.Payments)

	// AND: Cancelling again is a 404
	rec = s.do("DELETE", "/api/payments/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// SETTINGS
// =============================================================================

func TestOvertimeSettings_RoundTrip(t *testing.T) {
	s := newTestServer(t)

	rec := s.do("GET", "/api/settings/overtime", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"threshold_hours":"8","conversion_enabled":false,"mode":"per_day"}`, rec.Body.String())

	rec = s.do("PUT", "/api/settings/overtime", map[string]any{
		"threshold_hours": 4, "conversion_enabled": true, "mode": "event_total",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do("GET", "/api/settings/overtime", nil)
	assert.JSONEq(t, `{"threshold_hours":"4","conversion_enabled":true,"mode":"event_total"}`, rec.Body.String())
}

func TestOvertimeSettings_RejectsInvalid(t *testing.T) {
	s := newTestServer(t)

	rec := s.do("PUT", "/api/settings/overtime", map[string]any{"conversion_enabled": true, "threshold_hours": 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do("PUT", "/api/settings/overtime", map[string]any{"mode": "weekly"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "mode", decode[ErrorResponse](t, rec).Field)
}

func TestOvertimeSettings_ChangeRecomputesPayroll(t *testing.T) {
	// GIVEN: Ana worked 10 overtime hours on one day, conversion disabled
	s := newTestServer(t)
	s.seedCrew()
	rec := s.do("POST", "/api/worklogs", map[string]any{
		"worker_id": "w-ana", "event_id": "evt-1", "date": "2024-03-01",
		"regular_hours": "8", "overtime_hours": "10",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// 2 x 500 + 10h x 50
	before := s.anaDetail()
	assert.Equal(t, "1500.00", before.GrossPay)
	assert.False(t, before.Overtime.ConversionApplied)

	// WHEN: Enabling conversion at 8 hours
	rec = s.do("PUT", "/api/settings/overtime", map[string]any{"threshold_hours": 8, "conversion_enabled": true})
	require.Equal(t, http.StatusOK, rec.Code)

	// THEN: The cached view is dropped and the event is recomputed
	after := s.anaDetail()
	assert.True(t, after.Overtime.ConversionApplied)
	assert.NotEqual(t, before.GrossPay, after.GrossPay)
}

// =============================================================================
// MONTHLY
// =============================================================================

func TestMonthlyPayroll(t *testing.T) {
	s := newTestServer(t)
	s.seedCrew()
	rec := s.do("POST", "/api/events/evt-1/payments", map[string]any{
		"worker_id": "w-ana", "kind": "partial", "amount": "250",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do("GET", "/api/workers/w-ana/payroll?month=2024-03", nil)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[MonthlyPayrollDTO](t, rec)
	assert.Equal(t, "2024-03", resp.Month)
	assert.Equal(t, "Ana", resp.WorkerName)
	assert.Equal(t, "1000.00", resp.TotalGross)
	assert.Equal(t, "250.00", resp.TotalPaid)
	assert.Equal(t, "750.00", resp.TotalPending)
	require.Len(t, resp.Events, 1)
	assert.Equal(t, "evt-1", resp.Events[0].EventID)

	rec = s.do("GET", "/api/workers/w-ana/payroll?month=2024-04", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[MonthlyPayrollDTO](t, rec).Events)
}

func TestMonthlyPayroll_BadInput(t *testing.T) {
	s := newTestServer(t)
	s.seedCrew()

	assert.Equal(t, http.StatusBadRequest, s.do("GET", "/api/workers/w-ana/payroll?month=March", nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do("GET", "/api/workers/ghost/payroll?month=2024-03", nil).Code)
}

// =============================================================================
// DATA ENTRY
// =============================================================================

func TestDataEntry_Validation(t *testing.T) {
	s := newTestServer(t)
	s.seedCrew()

	rec := s.do("POST", "/api/personnel", map[string]any{"id": "w-x", "name": "X", "kind": "intern"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "kind", decode[ErrorResponse](t, rec).Field)

	rec = s.do("POST", "/api/allocations", map[string]any{"worker_id": "ghost", "event_id": "evt-1", "work_days": []string{"2024-03-01"}})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do("POST", "/api/allocations", map[string]any{"worker_id": "w-ana", "event_id": "evt-1", "work_days": []string{"01/03/2024"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do("POST", "/api/absences", map[string]any{"allocation_id": "missing", "date": "2024-03-01"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAbsence_ReducesWorkedDays(t *testing.T) {
	s := newTestServer(t)
	s.seedCrew()

	rec := s.do("POST", "/api/absences", map[string]any{
		"allocation_id": "a1", "date": "2024-03-02", "notes": "sick", "logged_by": "office",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	ana := s.anaDetail()
	assert.Equal(t, 1, ana.WorkedDays)
	assert.Equal(t, 1, ana.AbsenceCount)
	assert.Equal(t, "500.00", ana.GrossPay)
	require.Len(t, ana.Absences, 1)
	assert.Equal(t, "2024-03-02", ana.Absences[0].Date)

	// Same day again, and a day outside the allocation
	for _, date := range []string{"2024-03-02", "2024-03-05"} {
		rec = s.do("POST", "/api/absences", map[string]any{"allocation_id": "a1", "date": date})
		assert.Equal(t, http.StatusBadRequest, rec.Code, date)
		assert.Equal(t, "date", decode[ErrorResponse](t, rec).Field, date)
	}
	assert.Equal(t, 1, s.anaDetail().WorkedDays)
}

func TestDeleteAllocation_BlocksPayments(t *testing.T) {
	s := newTestServer(t)
	s.seedCrew()

	rec := s.do("DELETE", "/api/allocations/a1", nil)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = s.do("POST", "/api/events/evt-1/payments", map[string]any{"worker_id": "w-ana", "kind": "full"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = s.do("DELETE", "/api/allocations/a1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListPersonnel(t *testing.T) {
	s := newTestServer(t)
	s.seedCrew()

	rec := s.do("GET", "/api/personnel", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	people := decode[[]PersonnelDTO](t, rec)
	require.Len(t, people, 2)
	assert.Equal(t, "Ana", people[0].Name)
	require.NotNil(t, people[0].DailyRate)
	assert.Equal(t, "500", *people[0].DailyRate)
	assert.Nil(t, people[0].MonthlySalary)
}

// =============================================================================
// OPERATIONS
// =============================================================================

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	rec := s.do("GET", "/healthz", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetrics_CountLedgerMutations(t *testing.T) {
	s := newTestServer(t)
	s.seedCrew()
	rec := s.do("POST", "/api/events/evt-1/payments", map[string]any{"worker_id": "w-ana", "kind": "partial", "amount": "100"})
	require.Equal(t, http.StatusCreated, rec.Code)
	s.do("POST", "/api/events/evt-1/payments", map[string]any{"worker_id": "w-bruno", "kind": "full"})

	rec = s.do("GET", "/metrics", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `payroll_payments_registered_total{kind="partial"} 1`), body)
	assert.True(t, strings.Contains(body, `payroll_payment_commands_rejected_total{reason="not_allocated"} 1`), body)
}
