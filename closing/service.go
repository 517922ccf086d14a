/*
service.go - Payroll closing orchestration

PURPOSE:
  The Service is the single entry point for reading payroll views and for
  mutating the payment ledger. It loads event data from a Repository, runs
  the pure payroll pipeline, and guards every ledger write.

PAYMENT FLOW:
  1. Recompute the worker's event payroll to get the current reconciliation
  2. Validate the command (amount > 0; partial <= pending)
  3. In one transaction: check the worker is allocated, then append the row
  4. Drop the cached event view and the worker's monthly views
  5. Publish LedgerChanged

  Cancellation follows steps 3-5 with a row removal instead of an append.

CONSISTENCY:
  The allocation check and the insert share a transaction, so a payment can
  never be written for a worker who stopped being allocated in between.
  The pending check in step 2 reads outside that transaction: two racing
  partial payments may together exceed pending. The reconciler clamps
  pending at zero, so the view stays well-formed.
  Cached views are versioned: a view computed from a ledger read that an
  invalidation has since overtaken is returned to its caller but not cached.

SEE ALSO:
  - payroll/detail.go: The computation pipeline
  - generic/ledger.go: Ledger semantics
  - dispatcher.go: Notification delivery
*/
package closing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/warp/crew-payroll/generic"
	"github.com/warp/crew-payroll/payroll"
)

// =============================================================================
// REPOSITORY - Source data the pipeline consumes
// =============================================================================

// Repository provides personnel, allocations, work logs, absences and team
// settings. Ledger entries come from the generic.TxStore instead.
type Repository interface {
	// LoadEvent returns the event's allocations, work logs, absences and the
	// personnel records of its allocated workers. Ledger and Settings are
	// left empty. Returns ErrEventNotFound when the event has no allocations.
	LoadEvent(ctx context.Context, eventID generic.EventID) (payroll.EventInput, error)

	// EventsForWorker lists the events the worker is allocated to.
	EventsForWorker(ctx context.Context, workerID generic.WorkerID) ([]generic.EventID, error)

	// GetPersonnel returns nil when the worker does not exist.
	GetPersonnel(ctx context.Context, workerID generic.WorkerID) (*payroll.Personnel, error)

	ListPersonnel(ctx context.Context) ([]payroll.Personnel, error)

	// GetAllocation returns nil when the allocation does not exist.
	GetAllocation(ctx context.Context, id generic.AllocationID) (*payroll.Allocation, error)
	DeleteAllocation(ctx context.Context, id generic.AllocationID) error

	LoadSettings(ctx context.Context) (payroll.TeamSettings, error)
	SaveSettings(ctx context.Context, s payroll.TeamSettings) error

	SavePersonnel(ctx context.Context, p payroll.Personnel) error
	SaveAllocation(ctx context.Context, a payroll.Allocation) error
	SaveWorkLog(ctx context.Context, w payroll.WorkLogEntry) error
	SaveAbsence(ctx context.Context, a payroll.AbsenceEntry) error
}

// =============================================================================
// SERVICE
// =============================================================================

// Options configures a Service. Zero values get sensible defaults.
type Options struct {
	Formatter  payroll.Formatter
	Logger     zerolog.Logger
	Dispatcher *Dispatcher
	Metrics    *Metrics
	Now        func() time.Time
	NewID      func() string
}

type Service struct {
	repo       Repository
	store      generic.TxStore
	cache      *Cache
	formatter  payroll.Formatter
	log        zerolog.Logger
	dispatcher *Dispatcher
	metrics    *Metrics
	now        func() time.Time
	newID      func() string
}

func NewService(repo Repository, store generic.TxStore, opts Options) *Service {
	s := &Service{
		repo:       repo,
		store:      store,
		cache:      NewCache(),
		formatter:  opts.Formatter,
		log:        opts.Logger,
		dispatcher: opts.Dispatcher,
		metrics:    opts.Metrics,
		now:        opts.Now,
		newID:      opts.NewID,
	}
	if s.metrics == nil {
		s.metrics = NewMetrics(nil)
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	return s
}

// Cache exposes the view cache, mainly for tests.
func (s *Service) Cache() *Cache { return s.cache }

// =============================================================================
// READS
// =============================================================================

// EventPayroll returns one Detail per allocated worker, sorted by name.
// The slice is the caller's own copy.
func (s *Service) EventPayroll(ctx context.Context, eventID generic.EventID) ([]payroll.Detail, error) {
	if details, ok := s.cache.Event(eventID); ok {
		return details, nil
	}

	version := s.cache.EventVersion(eventID)
	in, err := s.repo.LoadEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	ledger, err := s.store.LoadByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	settings, err := s.repo.LoadSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	in.EventID = eventID
	in.Ledger = ledger
	in.Settings = settings

	start := time.Now()
	details := payroll.ComputeEventPayroll(in, s.formatter)
	s.metrics.ComputeDuration.Observe(time.Since(start).Seconds())

	s.cache.PutEvent(eventID, details, version)
	return details, nil
}

// WorkerEventPayroll returns the Detail of one worker in one event.
func (s *Service) WorkerEventPayroll(ctx context.Context, eventID generic.EventID, workerID generic.WorkerID) (payroll.Detail, error) {
	details, err := s.EventPayroll(ctx, eventID)
	if err != nil {
		return payroll.Detail{}, err
	}
	for _, d := range details {
		if d.WorkerID == workerID {
			return d, nil
		}
	}
	return payroll.Detail{}, s.missingWorker(ctx, workerID, eventID)
}

// MonthlyPayroll aggregates the worker's events whose first allocated day
// falls in month.
func (s *Service) MonthlyPayroll(ctx context.Context, workerID generic.WorkerID, month generic.Month) (payroll.MonthlySummary, error) {
	if summary, ok := s.cache.Monthly(workerID, month); ok {
		return summary, nil
	}
	version := s.cache.WorkerVersion(workerID)

	person, err := s.repo.GetPersonnel(ctx, workerID)
	if err != nil {
		return payroll.MonthlySummary{}, err
	}
	if person == nil {
		return payroll.MonthlySummary{}, generic.ErrWorkerNotFound
	}

	eventIDs, err := s.repo.EventsForWorker(ctx, workerID)
	if err != nil {
		return payroll.MonthlySummary{}, err
	}

	var all []payroll.Detail
	for _, eventID := range eventIDs {
		details, err := s.EventPayroll(ctx, eventID)
		if err != nil {
			return payroll.MonthlySummary{}, fmt.Errorf("event %s: %w", eventID, err)
		}
		all = append(all, details...)
	}

	summary := payroll.SummarizeMonth(workerID, month, all)
	if summary.WorkerName == "" {
		summary.WorkerName = person.Name
	}
	s.cache.PutMonthly(summary, version)
	return summary, nil
}

// =============================================================================
// LEDGER COMMANDS
// =============================================================================

type RegisterPaymentCommand struct {
	EventID        generic.EventID
	WorkerID       generic.WorkerID
	Amount         decimal.Decimal
	Notes          string
	IdempotencyKey string
	CreatedBy      string
	PaidAt         time.Time
}

// RegisterFullPayment settles the worker's pending balance. A zero Amount
// means "pay whatever is pending".
func (s *Service) RegisterFullPayment(ctx context.Context, cmd RegisterPaymentCommand) (generic.PaymentEntry, error) {
	return s.register(ctx, generic.PaymentFull, cmd)
}

// RegisterPartialPayment records an advance that must not exceed pending.
func (s *Service) RegisterPartialPayment(ctx context.Context, cmd RegisterPaymentCommand) (generic.PaymentEntry, error) {
	return s.register(ctx, generic.PaymentPartial, cmd)
}

func (s *Service) register(ctx context.Context, kind generic.PaymentKind, cmd RegisterPaymentCommand) (generic.PaymentEntry, error) {
	log := s.log.With().
		Str("event_id", string(cmd.EventID)).
		Str("worker_id", string(cmd.WorkerID)).
		Str("kind", string(kind)).
		Logger()

	detail, err := s.WorkerEventPayroll(ctx, cmd.EventID, cmd.WorkerID)
	if errors.Is(err, generic.ErrEventNotFound) {
		err = &generic.NotAllocatedError{WorkerID: cmd.WorkerID, EventID: cmd.EventID}
	}
	if err != nil {
		s.reject(log, err)
		return generic.PaymentEntry{}, err
	}
	rec := detail.Reconciliation()

	amount := cmd.Amount
	if kind == generic.PaymentFull && amount.IsZero() {
		amount = payroll.SuggestedFullPayment(rec)
	}
	if err := payroll.ValidatePayment(kind, amount, rec); err != nil {
		if exceeds := (*generic.ExceedsPendingError)(nil); errors.As(err, &exceeds) {
			exceeds.WorkerID = cmd.WorkerID
			exceeds.EventID = cmd.EventID
		}
		s.reject(log, err)
		return generic.PaymentEntry{}, err
	}

	paidAt := cmd.PaidAt
	if paidAt.IsZero() {
		paidAt = s.now()
	}
	entry := generic.PaymentEntry{
		ID:             generic.EntryID(s.newID()),
		WorkerID:       cmd.WorkerID,
		EventID:        cmd.EventID,
		Amount:         generic.NewMoney(amount),
		Kind:           kind,
		PaidAt:         paidAt.UTC(),
		Notes:          cmd.Notes,
		IdempotencyKey: cmd.IdempotencyKey,
		CreatedBy:      cmd.CreatedBy,
	}

	err = s.store.WithTx(ctx, func(tx generic.LedgerStore) error {
		allocated, err := tx.HasAllocation(ctx, cmd.WorkerID, cmd.EventID)
		if err != nil {
			return err
		}
		if !allocated {
			return &generic.NotAllocatedError{WorkerID: cmd.WorkerID, EventID: cmd.EventID}
		}
		return generic.NewLedger(tx).Append(ctx, entry)
	})
	if err != nil {
		s.reject(log, err)
		return generic.PaymentEntry{}, err
	}

	s.cache.Invalidate(cmd.EventID, cmd.WorkerID)
	s.metrics.PaymentsRegistered.WithLabelValues(string(kind)).Inc()
	s.publish(LedgerChanged{
		Action:   ActionRegistered,
		EntryID:  entry.ID,
		WorkerID: entry.WorkerID,
		EventID:  entry.EventID,
		Kind:     kind,
		Amount:   amount,
		At:       s.now(),
	})

	log.Info().
		Str("entry_id", string(entry.ID)).
		Str("amount", amount.StringFixed(2)).
		Str("pending_before", rec.Pending.StringFixed(2)).
		Msg("payment registered")
	return entry, nil
}

// CancelPayment removes a ledger entry. The worker's pending balance grows
// back by the entry's amount on the next read.
func (s *Service) CancelPayment(ctx context.Context, id generic.EntryID) (generic.PaymentEntry, error) {
	var removed generic.PaymentEntry
	err := s.store.WithTx(ctx, func(tx generic.LedgerStore) error {
		var err error
		removed, err = generic.NewLedger(tx).Remove(ctx, id)
		return err
	})
	if err != nil {
		s.reject(s.log.With().Str("entry_id", string(id)).Logger(), err)
		return generic.PaymentEntry{}, err
	}

	s.cache.Invalidate(removed.EventID, removed.WorkerID)
	s.metrics.PaymentsCancelled.Inc()
	s.publish(LedgerChanged{
		Action:   ActionCancelled,
		EntryID:  removed.ID,
		WorkerID: removed.WorkerID,
		EventID:  removed.EventID,
		Kind:     removed.Kind,
		Amount:   removed.Amount.Value,
		At:       s.now(),
	})

	s.log.Info().
		Str("entry_id", string(id)).
		Str("event_id", string(removed.EventID)).
		Str("worker_id", string(removed.WorkerID)).
		Str("amount", removed.Amount.Value.StringFixed(2)).
		Msg("payment cancelled")
	return removed, nil
}

// =============================================================================
// DATA ENTRY - Writes that change computation inputs
// =============================================================================

func (s *Service) Settings(ctx context.Context) (payroll.TeamSettings, error) {
	return s.repo.LoadSettings(ctx)
}

func (s *Service) UpdateSettings(ctx context.Context, settings payroll.TeamSettings) error {
	if err := payroll.ValidateSettings(settings); err != nil {
		return err
	}
	if err := s.repo.SaveSettings(ctx, settings); err != nil {
		return err
	}
	s.cache.Clear()
	s.log.Info().
		Str("threshold_hours", settings.ThresholdHours.String()).
		Bool("conversion_enabled", settings.ConversionEnabled).
		Str("mode", string(settings.Mode)).
		Msg("overtime settings updated")
	return nil
}

func (s *Service) SavePersonnel(ctx context.Context, p payroll.Personnel) (payroll.Personnel, error) {
	if p.ID == "" {
		p.ID = generic.WorkerID(s.newID())
	}
	if err := payroll.ValidatePersonnel(p); err != nil {
		return payroll.Personnel{}, err
	}
	if err := s.repo.SavePersonnel(ctx, p); err != nil {
		return payroll.Personnel{}, err
	}
	s.cache.Clear()
	return p, nil
}

func (s *Service) SaveAllocation(ctx context.Context, a payroll.Allocation) (payroll.Allocation, error) {
	if a.ID == "" {
		a.ID = generic.AllocationID(s.newID())
	}
	if err := payroll.ValidateAllocation(a); err != nil {
		return payroll.Allocation{}, err
	}
	person, err := s.repo.GetPersonnel(ctx, a.WorkerID)
	if err != nil {
		return payroll.Allocation{}, err
	}
	if person == nil {
		return payroll.Allocation{}, generic.ErrWorkerNotFound
	}
	if err := s.repo.SaveAllocation(ctx, a); err != nil {
		return payroll.Allocation{}, err
	}
	s.cache.Invalidate(a.EventID, a.WorkerID)
	return a, nil
}

// DeleteAllocation removes an allocation. Payments already made for the
// worker stay in the ledger; further payments are rejected once the worker
// has no allocation left in the event.
func (s *Service) DeleteAllocation(ctx context.Context, id generic.AllocationID) error {
	a, err := s.repo.GetAllocation(ctx, id)
	if err != nil {
		return err
	}
	if a == nil {
		return &generic.FieldError{Field: "allocation_id", Reason: "unknown allocation", Err: generic.ErrInvalidRecord}
	}
	if err := s.repo.DeleteAllocation(ctx, id); err != nil {
		return err
	}
	s.cache.Invalidate(a.EventID, a.WorkerID)
	return nil
}

func (s *Service) ListPersonnel(ctx context.Context) ([]payroll.Personnel, error) {
	return s.repo.ListPersonnel(ctx)
}

func (s *Service) SaveWorkLog(ctx context.Context, w payroll.WorkLogEntry) (payroll.WorkLogEntry, error) {
	if w.ID == "" {
		w.ID = s.newID()
	}
	if err := payroll.ValidateWorkLog(w); err != nil {
		return payroll.WorkLogEntry{}, err
	}
	if err := s.repo.SaveWorkLog(ctx, w); err != nil {
		return payroll.WorkLogEntry{}, err
	}
	s.cache.Invalidate(w.EventID, w.WorkerID)
	return w, nil
}

// SaveAbsence links the absence to its allocation's worker and event. The
// date must be one of the allocation's work days, at most once.
func (s *Service) SaveAbsence(ctx context.Context, a payroll.AbsenceEntry) (payroll.AbsenceEntry, error) {
	alloc, err := s.repo.GetAllocation(ctx, a.AllocationID)
	if err != nil {
		return payroll.AbsenceEntry{}, err
	}
	if alloc == nil {
		return payroll.AbsenceEntry{}, &generic.FieldError{
			Field: "allocation_id", Reason: "unknown allocation", Err: generic.ErrInvalidRecord,
		}
	}
	if a.ID == "" {
		a.ID = s.newID()
	}
	a.WorkerID = alloc.WorkerID
	a.EventID = alloc.EventID
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.now().UTC()
	}
	if err := payroll.ValidateAbsence(a); err != nil {
		return payroll.AbsenceEntry{}, err
	}
	in, err := s.repo.LoadEvent(ctx, alloc.EventID)
	if err != nil {
		return payroll.AbsenceEntry{}, err
	}
	if err := payroll.ValidateAbsenceDay(*alloc, in.Absences, a); err != nil {
		return payroll.AbsenceEntry{}, err
	}
	if err := s.repo.SaveAbsence(ctx, a); err != nil {
		return payroll.AbsenceEntry{}, err
	}
	s.cache.Invalidate(a.EventID, a.WorkerID)
	return a, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func (s *Service) missingWorker(ctx context.Context, workerID generic.WorkerID, eventID generic.EventID) error {
	allocated, err := s.store.HasAllocation(ctx, workerID, eventID)
	if err != nil {
		return err
	}
	if !allocated {
		return &generic.NotAllocatedError{WorkerID: workerID, EventID: eventID}
	}
	return generic.ErrWorkerNotFound
}

func (s *Service) reject(log zerolog.Logger, err error) {
	s.metrics.CommandsRejected.WithLabelValues(rejectReason(err)).Inc()
	log.Warn().Err(err).Msg("ledger command rejected")
}

func (s *Service) publish(ev LedgerChanged) {
	if s.dispatcher == nil {
		return
	}
	s.dispatcher.Publish(ev)
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, generic.ErrNotAllocated):
		return "not_allocated"
	case errors.Is(err, generic.ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, generic.ErrExceedsPending):
		return "exceeds_pending"
	case errors.Is(err, generic.ErrDuplicateIdempotencyKey):
		return "duplicate"
	case generic.IsNotFound(err):
		return "not_found"
	default:
		return "internal"
	}
}
