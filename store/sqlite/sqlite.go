/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Persists everything the payroll engine reads (personnel, allocations,
  work logs, absences, team settings) and the payment ledger it reconciles
  against.

INTERFACES IMPLEMENTED:
  generic.LedgerStore: Payment entry persistence
  generic.TxStore:     Atomic allocation check + ledger write
  closing.Repository:  Event snapshots and data entry

LEDGER SEMANTICS:
  - No UPDATE statements on the payments table
  - Cancellation is a DELETE of the row; there are no negative entries
  - idempotency_key is UNIQUE, so a retried command cannot double-pay

KEY TABLES:
  personnel:   Worker profiles (rates as decimal text)
  allocations: Worker-to-event assignments; work_days is a JSON array
  work_logs:   Per-day regular/overtime hours
  absences:    Allocated days not worked
  payments:    The ledger
  settings:    Team overtime settings as a JSON document

CONCURRENCY:
  Uses sync.RWMutex for thread-safety and a single connection, so ":memory:"
  databases see one schema and WithTx cannot deadlock against itself.
  Everything inside WithTx goes through the *sql.Tx.

USAGE:
  store, err := sqlite.New("./data/payroll.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := closing.NewService(store, store, opts)

SEE ALSO:
  - generic/store.go: Ledger interfaces
  - closing/service.go: Repository interface
  - generic/store/memory.go: In-memory ledger for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/crew-payroll/factory"
	"github.com/warp/crew-payroll/generic"
	"github.com/warp/crew-payroll/payroll"
)

// timestampLayout is fixed width so text ordering matches time ordering.
const timestampLayout = "2006-01-02T15:04:05.000000000Z"

const settingsKey = "overtime"

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the connection, for readiness probes.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS personnel (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		kind TEXT NOT NULL,
		monthly_salary TEXT,
		daily_rate TEXT,
		overtime_rate TEXT,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS allocations (
		id TEXT PRIMARY KEY,
		worker_id TEXT NOT NULL,
		event_id TEXT NOT NULL,
		work_days TEXT NOT NULL,
		rate_override TEXT,
		team TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_allocations_event
		ON allocations(event_id);
	CREATE INDEX IF NOT EXISTS idx_allocations_worker_event
		ON allocations(worker_id, event_id);

	CREATE TABLE IF NOT EXISTS work_logs (
		id TEXT PRIMARY KEY,
		worker_id TEXT NOT NULL,
		event_id TEXT NOT NULL,
		date TEXT NOT NULL,
		regular_hours TEXT NOT NULL,
		overtime_hours TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_work_logs_event
		ON work_logs(event_id, worker_id, date);

	CREATE TABLE IF NOT EXISTS absences (
		id TEXT PRIMARY KEY,
		allocation_id TEXT NOT NULL,
		worker_id TEXT NOT NULL,
		event_id TEXT NOT NULL,
		date TEXT NOT NULL,
		notes TEXT,
		logged_by TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_absences_event
		ON absences(event_id, worker_id);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_absences_allocation_date
		ON absences(allocation_id, date);

	-- Payment ledger: rows are inserted or deleted, never updated
	CREATE TABLE IF NOT EXISTS payments (
		id TEXT PRIMARY KEY,
		worker_id TEXT NOT NULL,
		event_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		kind TEXT NOT NULL,
		paid_at TEXT NOT NULL,
		notes TEXT,
		idempotency_key TEXT UNIQUE,
		created_by TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_payments_event
		ON payments(event_id, paid_at);
	CREATE INDEX IF NOT EXISTS idx_payments_worker
		ON payments(worker_id, paid_at);

	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value_json TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// LEDGER STORE (generic.LedgerStore interface)
// =============================================================================

func (s *Store) Append(ctx context.Context, entry generic.PaymentEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ledgerOps{s.db}.Append(ctx, entry)
}

func (s *Store) Delete(ctx context.Context, id generic.EntryID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ledgerOps{s.db}.Delete(ctx, id)
}

func (s *Store) Get(ctx context.Context, id generic.EntryID) (*generic.PaymentEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ledgerOps{s.db}.Get(ctx, id)
}

func (s *Store) LoadByEvent(ctx context.Context, eventID generic.EventID) ([]generic.PaymentEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ledgerOps{s.db}.LoadByEvent(ctx, eventID)
}

func (s *Store) LoadByWorker(ctx context.Context, workerID generic.WorkerID) ([]generic.PaymentEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ledgerOps{s.db}.LoadByWorker(ctx, workerID)
}

func (s *Store) Exists(ctx context.Context, idempotencyKey string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ledgerOps{s.db}.Exists(ctx, idempotencyKey)
}

func (s *Store) HasAllocation(ctx context.Context, workerID generic.WorkerID, eventID generic.EventID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ledgerOps{s.db}.HasAllocation(ctx, workerID, eventID)
}

// =============================================================================
// TRANSACTIONAL STORE (generic.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store generic.LedgerStore) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(ledgerOps{sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// ledgerOps runs the ledger queries against whichever querier it holds.
// Locking is the caller's job.
type ledgerOps struct {
	q querier
}

const paymentColumns = `id, worker_id, event_id, amount, kind, paid_at, notes, idempotency_key, created_by`

func (o ledgerOps) Append(ctx context.Context, e generic.PaymentEntry) error {
	query := `
		INSERT INTO payments
		(id, worker_id, event_id, amount, kind, paid_at, notes, idempotency_key, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := o.q.ExecContext(ctx, query,
		e.ID,
		e.WorkerID,
		e.EventID,
		e.Amount.Value.String(),
		e.Kind,
		formatTimestamp(e.PaidAt),
		nullString(e.Notes),
		nullString(e.IdempotencyKey),
		nullString(e.CreatedBy),
		formatTimestamp(time.Now()),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return generic.ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("failed to append payment: %w", err)
	}
	return nil
}

func (o ledgerOps) Delete(ctx context.Context, id generic.EntryID) error {
	res, err := o.q.ExecContext(ctx, "DELETE FROM payments WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete payment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return generic.ErrEntryNotFound
	}
	return nil
}

func (o ledgerOps) Get(ctx context.Context, id generic.EntryID) (*generic.PaymentEntry, error) {
	entries, err := o.queryPayments(ctx,
		"SELECT "+paymentColumns+" FROM payments WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return &entries[0], nil
}

func (o ledgerOps) LoadByEvent(ctx context.Context, eventID generic.EventID) ([]generic.PaymentEntry, error) {
	return o.queryPayments(ctx,
		"SELECT "+paymentColumns+" FROM payments WHERE event_id = ? ORDER BY paid_at ASC, id ASC", eventID)
}

func (o ledgerOps) LoadByWorker(ctx context.Context, workerID generic.WorkerID) ([]generic.PaymentEntry, error) {
	return o.queryPayments(ctx,
		"SELECT "+paymentColumns+" FROM payments WHERE worker_id = ? ORDER BY paid_at ASC, id ASC", workerID)
}

func (o ledgerOps) Exists(ctx context.Context, idempotencyKey string) (bool, error) {
	var count int
	err := o.q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM payments WHERE idempotency_key = ?",
		idempotencyKey,
	).Scan(&count)
	return count > 0, err
}

func (o ledgerOps) HasAllocation(ctx context.Context, workerID generic.WorkerID, eventID generic.EventID) (bool, error) {
	var count int
	err := o.q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM allocations WHERE worker_id = ? AND event_id = ?",
		workerID, eventID,
	).Scan(&count)
	return count > 0, err
}

func (o ledgerOps) queryPayments(ctx context.Context, query string, args ...any) ([]generic.PaymentEntry, error) {
	rows, err := o.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}
	defer rows.Close()

	var entries []generic.PaymentEntry
	for rows.Next() {
		var (
			e         generic.PaymentEntry
			amount    string
			paidAt    string
			notes     sql.NullString
			idemKey   sql.NullString
			createdBy sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.WorkerID, &e.EventID, &amount, &e.Kind, &paidAt, &notes, &idemKey, &createdBy); err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		e.Amount = generic.NewMoney(generic.MustParseDecimal(amount))
		e.PaidAt = parseTimestamp(paidAt)
		e.Notes = notes.String
		e.IdempotencyKey = idemKey.String
		e.CreatedBy = createdBy.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

var (
	_ generic.TxStore     = (*Store)(nil)
	_ generic.LedgerStore = ledgerOps{}
)

// =============================================================================
// EVENT SNAPSHOT (closing.Repository reads)
// =============================================================================

// LoadEvent returns the event's source rows and the personnel records of
// its allocated workers. Returns ErrEventNotFound if nobody is allocated.
func (s *Store) LoadEvent(ctx context.Context, eventID generic.EventID) (payroll.EventInput, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	in := payroll.EventInput{EventID: eventID}

	allocs, err := s.queryAllocations(ctx,
		"SELECT "+allocationColumns+" FROM allocations WHERE event_id = ? ORDER BY created_at, id", eventID)
	if err != nil {
		return in, err
	}
	if len(allocs) == 0 {
		return in, generic.ErrEventNotFound
	}
	in.Allocations = allocs

	if in.Personnel, err = s.queryPersonnel(ctx,
		"SELECT "+personnelColumns+` FROM personnel
		 WHERE id IN (SELECT DISTINCT worker_id FROM allocations WHERE event_id = ?)
		 ORDER BY name, id`, eventID); err != nil {
		return in, err
	}
	if in.WorkLogs, err = s.queryWorkLogs(ctx, eventID); err != nil {
		return in, err
	}
	if in.Absences, err = s.queryAbsences(ctx,
		"SELECT "+absenceColumns+" FROM absences WHERE event_id = ? ORDER BY date, id", eventID); err != nil {
		return in, err
	}
	return in, nil
}

// EventsForWorker lists the events the worker is allocated to.
func (s *Store) EventsForWorker(ctx context.Context, workerID generic.WorkerID) ([]generic.EventID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT DISTINCT event_id FROM allocations WHERE worker_id = ? ORDER BY event_id", workerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []generic.EventID
	for rows.Next() {
		var id generic.EventID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		events = append(events, id)
	}
	return events, rows.Err()
}

// =============================================================================
// PERSONNEL
// =============================================================================

const personnelColumns = `id, name, kind, monthly_salary, daily_rate, overtime_rate`

// SavePersonnel inserts or updates a worker profile.
func (s *Store) SavePersonnel(ctx context.Context, p payroll.Personnel) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO personnel (id, name, kind, monthly_salary, daily_rate, overtime_rate, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			kind = excluded.kind,
			monthly_salary = excluded.monthly_salary,
			daily_rate = excluded.daily_rate,
			overtime_rate = excluded.overtime_rate
	`
	_, err := s.db.ExecContext(ctx, query,
		p.ID, p.Name, p.Kind,
		nullDecimal(p.MonthlySalary),
		nullDecimal(p.DailyRate),
		nullDecimal(p.OvertimeRate),
		formatTimestamp(time.Now()),
	)
	return err
}

// GetPersonnel returns nil when the worker does not exist.
func (s *Store) GetPersonnel(ctx context.Context, id generic.WorkerID) (*payroll.Personnel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	people, err := s.queryPersonnel(ctx, "SELECT "+personnelColumns+" FROM personnel WHERE id = ?", id)
	if err != nil || len(people) == 0 {
		return nil, err
	}
	return &people[0], nil
}

// ListPersonnel returns all workers ordered by name.
func (s *Store) ListPersonnel(ctx context.Context) ([]payroll.Personnel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryPersonnel(ctx, "SELECT "+personnelColumns+" FROM personnel ORDER BY name, id")
}

func (s *Store) queryPersonnel(ctx context.Context, query string, args ...any) ([]payroll.Personnel, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query personnel: %w", err)
	}
	defer rows.Close()

	var people []payroll.Personnel
	for rows.Next() {
		var (
			p                     payroll.Personnel
			salary, daily, hourly sql.NullString
		)
		if err := rows.Scan(&p.ID, &p.Name, &p.Kind, &salary, &daily, &hourly); err != nil {
			return nil, err
		}
		p.MonthlySalary = parseNullDecimal(salary)
		p.DailyRate = parseNullDecimal(daily)
		p.OvertimeRate = parseNullDecimal(hourly)
		people = append(people, p)
	}
	return people, rows.Err()
}

// =============================================================================
// ALLOCATIONS
// =============================================================================

const allocationColumns = `id, worker_id, event_id, work_days, rate_override, team`

// SaveAllocation inserts or replaces an allocation row.
func (s *Store) SaveAllocation(ctx context.Context, a payroll.Allocation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	days := make([]string, len(a.WorkDays))
	for i, d := range a.WorkDays {
		days[i] = d.Key()
	}
	daysJSON, err := json.Marshal(days)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO allocations (id, worker_id, event_id, work_days, rate_override, team, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			worker_id = excluded.worker_id,
			event_id = excluded.event_id,
			work_days = excluded.work_days,
			rate_override = excluded.rate_override,
			team = excluded.team
	`
	_, err = s.db.ExecContext(ctx, query,
		a.ID, a.WorkerID, a.EventID, string(daysJSON),
		nullDecimal(a.RateOverride), nullString(a.Team),
		formatTimestamp(time.Now()),
	)
	return err
}

// GetAllocation returns nil when the allocation does not exist.
func (s *Store) GetAllocation(ctx context.Context, id generic.AllocationID) (*payroll.Allocation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	allocs, err := s.queryAllocations(ctx, "SELECT "+allocationColumns+" FROM allocations WHERE id = ?", id)
	if err != nil || len(allocs) == 0 {
		return nil, err
	}
	return &allocs[0], nil
}

// DeleteAllocation removes an allocation and the absences logged against it.
// Ledger rows are left alone: paid money stays recorded.
func (s *Store) DeleteAllocation(ctx context.Context, id generic.AllocationID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, "DELETE FROM allocations WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &generic.FieldError{Field: "allocation_id", Reason: "unknown allocation", Err: generic.ErrInvalidRecord}
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM absences WHERE allocation_id = ?", id); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) queryAllocations(ctx context.Context, query string, args ...any) ([]payroll.Allocation, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query allocations: %w", err)
	}
	defer rows.Close()

	var allocs []payroll.Allocation
	for rows.Next() {
		var (
			a        payroll.Allocation
			daysJSON string
			override sql.NullString
			team     sql.NullString
		)
		if err := rows.Scan(&a.ID, &a.WorkerID, &a.EventID, &daysJSON, &override, &team); err != nil {
			return nil, err
		}
		var days []string
		if err := json.Unmarshal([]byte(daysJSON), &days); err != nil {
			return nil, fmt.Errorf("allocation %s: bad work_days: %w", a.ID, err)
		}
		for _, d := range days {
			date, err := generic.ParseDate(d)
			if err != nil {
				return nil, fmt.Errorf("allocation %s: %w", a.ID, err)
			}
			a.WorkDays = append(a.WorkDays, date)
		}
		a.RateOverride = parseNullDecimal(override)
		a.Team = team.String
		allocs = append(allocs, a)
	}
	return allocs, rows.Err()
}

// =============================================================================
// WORK LOGS
// =============================================================================

// SaveWorkLog inserts or replaces a work log row.
func (s *Store) SaveWorkLog(ctx context.Context, w payroll.WorkLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO work_logs (id, worker_id, event_id, date, regular_hours, overtime_hours, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			date = excluded.date,
			regular_hours = excluded.regular_hours,
			overtime_hours = excluded.overtime_hours
	`
	_, err := s.db.ExecContext(ctx, query,
		w.ID, w.WorkerID, w.EventID, w.Date.Key(),
		w.RegularHours.String(), w.OvertimeHours.String(),
		formatTimestamp(time.Now()),
	)
	return err
}

func (s *Store) queryWorkLogs(ctx context.Context, eventID generic.EventID) ([]payroll.WorkLogEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, worker_id, event_id, date, regular_hours, overtime_hours
		FROM work_logs WHERE event_id = ? ORDER BY date, id`, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to query work logs: %w", err)
	}
	defer rows.Close()

	var logs []payroll.WorkLogEntry
	for rows.Next() {
		var (
			w                 payroll.WorkLogEntry
			date              string
			regular, overtime string
		)
		if err := rows.Scan(&w.ID, &w.WorkerID, &w.EventID, &date, &regular, &overtime); err != nil {
			return nil, err
		}
		if w.Date, err = generic.ParseDate(date); err != nil {
			return nil, err
		}
		w.RegularHours = generic.MustParseDecimal(regular)
		w.OvertimeHours = generic.MustParseDecimal(overtime)
		logs = append(logs, w)
	}
	return logs, rows.Err()
}

// =============================================================================
// ABSENCES
// =============================================================================

const absenceColumns = `id, allocation_id, worker_id, event_id, date, notes, logged_by, created_at`

// SaveAbsence inserts or replaces an absence row.
func (s *Store) SaveAbsence(ctx context.Context, a payroll.AbsenceEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	createdAt := a.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	query := `
		INSERT INTO absences (id, allocation_id, worker_id, event_id, date, notes, logged_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			date = excluded.date,
			notes = excluded.notes,
			logged_by = excluded.logged_by
	`
	_, err := s.db.ExecContext(ctx, query,
		a.ID, a.AllocationID, a.WorkerID, a.EventID, a.Date.Key(),
		nullString(a.Notes), nullString(a.LoggedBy),
		formatTimestamp(createdAt),
	)
	if isUniqueConstraintError(err) {
		return &generic.FieldError{Field: "date", Reason: "absence already recorded for this day", Err: generic.ErrInvalidRecord}
	}
	return err
}

func (s *Store) queryAbsences(ctx context.Context, query string, args ...any) ([]payroll.AbsenceEntry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query absences: %w", err)
	}
	defer rows.Close()

	var absences []payroll.AbsenceEntry
	for rows.Next() {
		var (
			a               payroll.AbsenceEntry
			date, createdAt string
			notes, loggedBy sql.NullString
		)
		if err := rows.Scan(&a.ID, &a.AllocationID, &a.WorkerID, &a.EventID, &date, &notes, &loggedBy, &createdAt); err != nil {
			return nil, err
		}
		if a.Date, err = generic.ParseDate(date); err != nil {
			return nil, err
		}
		a.Notes = notes.String
		a.LoggedBy = loggedBy.String
		a.CreatedAt = parseTimestamp(createdAt)
		absences = append(absences, a)
	}
	return absences, rows.Err()
}

// =============================================================================
// SETTINGS
// =============================================================================

// LoadSettings returns the stored team settings, or the defaults when none
// were saved.
func (s *Store) LoadSettings(ctx context.Context) (payroll.TeamSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var doc string
	err := s.db.QueryRowContext(ctx,
		"SELECT value_json FROM settings WHERE key = ?", settingsKey,
	).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return payroll.DefaultTeamSettings(), nil
	}
	if err != nil {
		return payroll.TeamSettings{}, err
	}
	return factory.ParseTeamSettings(doc)
}

// SaveSettings stores the team settings document.
func (s *Store) SaveSettings(ctx context.Context, settings payroll.TeamSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveSettings(ctx, settings, true)
}

// SeedSettings stores settings only if none exist yet. Used at startup so
// configured defaults never override what an operator saved.
func (s *Store) SeedSettings(ctx context.Context, settings payroll.TeamSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveSettings(ctx, settings, false)
}

func (s *Store) saveSettings(ctx context.Context, settings payroll.TeamSettings, overwrite bool) error {
	doc, err := factory.Marshal(settings)
	if err != nil {
		return err
	}
	query := `INSERT INTO settings (key, value_json, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO NOTHING`
	if overwrite {
		query = `INSERT INTO settings (key, value_json, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value_json = excluded.value_json, updated_at = excluded.updated_at`
	}
	_, err = s.db.ExecContext(ctx, query, settingsKey, doc, formatTimestamp(time.Now()))
	return err
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"payments", "absences", "work_logs", "allocations", "personnel", "settings"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullDecimal(d *decimal.Decimal) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func parseNullDecimal(ns sql.NullString) *decimal.Decimal {
	if !ns.Valid {
		return nil
	}
	d := generic.MustParseDecimal(ns.String)
	return &d
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func parseTimestamp(s string) time.Time {
	t, _ := time.Parse(timestampLayout, s)
	return t
}

func isUniqueConstraintError(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique ||
			se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
