/*
scenarios.go - Demo data loaders

PURPOSE:
  Seeds the database with realistic crews so the payroll screens can be
  explored without manual data entry. Loading a scenario wipes all data.

SCENARIOS:
  festival-weekend:  Three-day festival, freelancers and one salaried
                     technician, per-day overtime conversion, one absence,
                     one advance already paid
  legacy-totals:     Same crew with event-total conversion, for comparing
                     the two overtime modes
  month-close:       One freelancer across three events in two months

All data is written through closing.Service so it passes the same
validation as data entered through the API.
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/warp/crew-payroll/closing"
	"github.com/warp/crew-payroll/factory"
	"github.com/warp/crew-payroll/generic"
	"github.com/warp/crew-payroll/payroll"
)

var scenarios = []ScenarioDTO{
	{
		ID:          "festival-weekend",
		Name:        "Festival Weekend",
		Description: "Mixed crew on a three-day festival with per-day overtime conversion and an advance payment",
	},
	{
		ID:          "legacy-totals",
		Name:        "Event-Total Overtime",
		Description: "The festival crew with overtime pooled over the whole event",
	},
	{
		ID:          "month-close",
		Name:        "Month Close",
		Description: "A freelancer across three events spanning two months",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	if current == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, ScenarioDTO{ID: current, Name: current})
}

// LoadScenario wipes the database and loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ScenarioID string `json:"scenario_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var load func(context.Context) error
	switch req.ScenarioID {
	case "festival-weekend":
		load = func(ctx context.Context) error { return h.loadFestival(ctx, factory.PerDayConversionJSON(4)) }
	case "legacy-totals":
		load = func(ctx context.Context) error { return h.loadFestival(ctx, factory.EventTotalConversionJSON(4)) }
	case "month-close":
		load = h.loadMonthClose
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	ctx := r.Context()
	if err := h.reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	if err := load(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}

	h.mu.Lock()
	h.currentScenario = req.ScenarioID
	h.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// ResetDatabase wipes all data.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (h *Handler) reset(ctx context.Context) error {
	if err := h.Store.Reset(ctx); err != nil {
		return err
	}
	h.Service.Cache().Clear()

	h.mu.Lock()
	h.currentScenario = ""
	h.mu.Unlock()
	return nil
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

// seeder stops at the first error so loaders read as a flat list.
type seeder struct {
	ctx context.Context
	svc *closing.Service
	err error
}

func (s *seeder) person(id, name string, kind payroll.EmploymentKind, salary, daily, hourly string) {
	if s.err != nil {
		return
	}
	_, s.err = s.svc.SavePersonnel(s.ctx, payroll.Personnel{
		ID:            generic.WorkerID(id),
		Name:          name,
		Kind:          kind,
		MonthlySalary: decimalOrNil(salary),
		DailyRate:     decimalOrNil(daily),
		OvertimeRate:  decimalOrNil(hourly),
	})
}

func (s *seeder) allocate(id, worker, event, override string, days ...string) {
	if s.err != nil {
		return
	}
	workDays := make([]generic.Date, len(days))
	for i, d := range days {
		workDays[i] = generic.MustParseDate(d)
	}
	_, s.err = s.svc.SaveAllocation(s.ctx, payroll.Allocation{
		ID:           generic.AllocationID(id),
		WorkerID:     generic.WorkerID(worker),
		EventID:      generic.EventID(event),
		WorkDays:     workDays,
		RateOverride: decimalOrNil(override),
	})
}

func (s *seeder) overtime(worker, event, date, hours string) {
	if s.err != nil {
		return
	}
	_, s.err = s.svc.SaveWorkLog(s.ctx, payroll.WorkLogEntry{
		WorkerID:      generic.WorkerID(worker),
		EventID:       generic.EventID(event),
		Date:          generic.MustParseDate(date),
		RegularHours:  decimal.NewFromInt(8),
		OvertimeHours: generic.MustParseDecimal(hours),
	})
}

func (s *seeder) absence(allocation, date, notes, loggedBy string) {
	if s.err != nil {
		return
	}
	_, s.err = s.svc.SaveAbsence(s.ctx, payroll.AbsenceEntry{
		AllocationID: generic.AllocationID(allocation),
		Date:         generic.MustParseDate(date),
		Notes:        notes,
		LoggedBy:     loggedBy,
	})
}

func (s *seeder) settings(doc string) {
	if s.err != nil {
		return
	}
	var ts payroll.TeamSettings
	if ts, s.err = factory.ParseTeamSettings(doc); s.err != nil {
		return
	}
	s.err = s.svc.UpdateSettings(s.ctx, ts)
}

func (s *seeder) advance(worker, event, amount, key string) {
	if s.err != nil {
		return
	}
	_, s.err = s.svc.RegisterPartialPayment(s.ctx, closing.RegisterPaymentCommand{
		EventID:        generic.EventID(event),
		WorkerID:       generic.WorkerID(worker),
		Amount:         generic.MustParseDecimal(amount),
		Notes:          "Advance",
		IdempotencyKey: key,
		CreatedBy:      "scenario",
	})
}

func (h *Handler) loadFestival(ctx context.Context, settingsDoc string) error {
	s := &seeder{ctx: ctx, svc: h.Service}

	s.settings(settingsDoc)
	s.person("w-ana", "Ana Souza", payroll.KindFreelance, "", "350", "45")
	s.person("w-caio", "Caio Lima", payroll.KindFreelance, "", "300", "40")
	s.person("w-bia", "Beatriz Rocha", payroll.KindFixed, "4200", "120", "35")

	// Ana has two rows: setup days at an override, then the show days
	s.allocate("al-ana-setup", "w-ana", "festival", "400", "2025-07-10", "2025-07-11")
	s.allocate("al-ana-show", "w-ana", "festival", "400", "2025-07-11", "2025-07-12")
	s.allocate("al-caio", "w-caio", "festival", "", "2025-07-10", "2025-07-11", "2025-07-12")
	s.allocate("al-bia", "w-bia", "festival", "", "2025-07-11", "2025-07-12")

	s.overtime("w-ana", "festival", "2025-07-10", "5")
	s.overtime("w-ana", "festival", "2025-07-11", "1")
	s.overtime("w-ana", "festival", "2025-07-12", "3")
	s.overtime("w-caio", "festival", "2025-07-11", "2")
	s.overtime("w-caio", "festival", "2025-07-11", "2.5")
	s.overtime("w-bia", "festival", "2025-07-12", "6")

	s.absence("al-caio", "2025-07-12", "Sick", "Production office")

	s.advance("w-ana", "festival", "300", "festival-advance-ana")
	return s.err
}

func (h *Handler) loadMonthClose(ctx context.Context) error {
	s := &seeder{ctx: ctx, svc: h.Service}

	s.settings(factory.PerDayConversionJSON(8))
	s.person("w-davi", "Davi Nunes", payroll.KindFreelance, "", "280", "35")

	s.allocate("al-davi-1", "w-davi", "corporate-gala", "", "2025-08-02")
	s.allocate("al-davi-2", "w-davi", "trade-fair", "320", "2025-08-20", "2025-08-21", "2025-08-22")
	s.allocate("al-davi-3", "w-davi", "concert-tour", "", "2025-08-30", "2025-08-31", "2025-09-01")

	s.overtime("w-davi", "trade-fair", "2025-08-21", "9")
	s.absence("al-davi-2", "2025-08-22", "Left early", "")

	s.advance("w-davi", "corporate-gala", "280", "gala-settle-davi")
	return s.err
}
