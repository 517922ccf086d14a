package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/crew-payroll/generic"
	"github.com/warp/crew-payroll/payroll"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func dec(s string) *decimal.Decimal {
	d := generic.MustParseDecimal(s)
	return &d
}

func payment(id, key string, amount int64, paidAt time.Time) generic.PaymentEntry {
	return generic.PaymentEntry{
		ID:             generic.EntryID(id),
		WorkerID:       "w1",
		EventID:        "e1",
		Amount:         generic.NewMoneyFromInt(amount),
		Kind:           generic.PaymentPartial,
		PaidAt:         paidAt,
		IdempotencyKey: key,
	}
}

func seedEvent(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.SavePersonnel(ctx, payroll.Personnel{
		ID: "w1", Name: "Ana", Kind: payroll.KindFreelance, DailyRate: dec("500"), OvertimeRate: dec("62.5"),
	}))
	require.NoError(t, s.SavePersonnel(ctx, payroll.Personnel{
		ID: "w2", Name: "Bruno", Kind: payroll.KindFixed, MonthlySalary: dec("3000"),
	}))
	require.NoError(t, s.SaveAllocation(ctx, payroll.Allocation{
		ID: "a1", WorkerID: "w1", EventID: "e1",
		WorkDays:     []generic.Date{generic.MustParseDate("2024-03-02"), generic.MustParseDate("2024-03-01")},
		RateOverride: dec("650"),
		Team:         "rigging",
	}))
}

// =============================================================================
// LEDGER
// =============================================================================

func TestLedger_AppendGetDelete(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	paidAt := time.Date(2024, 3, 5, 14, 30, 0, 0, time.UTC)

	// GIVEN: One entry with notes
	e := payment("p1", "k1", 400, paidAt)
	e.Notes = "advance"
	require.NoError(t, s.Append(ctx, e))

	// WHEN: Reading it back
	got, err := s.Get(ctx, "p1")

	// THEN: Every field survives the round trip
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Amount.Value.Equal(decimal.NewFromInt(400)))
	assert.Equal(t, generic.PaymentPartial, got.Kind)
	assert.True(t, got.PaidAt.Equal(paidAt))
	assert.Equal(t, "advance", got.Notes)
	assert.Equal(t, "k1", got.IdempotencyKey)

	// AND: Deleting removes it, twice is an error
	require.NoError(t, s.Delete(ctx, "p1"))
	got, err = s.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.ErrorIs(t, s.Delete(ctx, "p1"), generic.ErrEntryNotFound)
}

func TestLedger_DuplicateIdempotencyKey(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, s.Append(ctx, payment("p1", "k1", 100, now)))

	err := s.Append(ctx, payment("p2", "k1", 100, now))
	assert.ErrorIs(t, err, generic.ErrDuplicateIdempotencyKey)

	exists, err := s.Exists(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestLedger_EmptyKeysDoNotCollide(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, s.Append(ctx, payment("p1", "", 100, now)))
	require.NoError(t, s.Append(ctx, payment("p2", "", 100, now)))

	entries, err := s.LoadByEvent(ctx, "e1")
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestLedger_DeleteFreesIdempotencyKey(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, s.Append(ctx, payment("p1", "k1", 100, now)))
	require.NoError(t, s.Delete(ctx, "p1"))

	assert.NoError(t, s.Append(ctx, payment("p2", "k1", 100, now)))
}

func TestLedger_LoadOrderedByPaidAt(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, s.Append(ctx, payment("p-late", "", 1, base.Add(48*time.Hour))))
	require.NoError(t, s.Append(ctx, payment("p-early", "", 2, base)))
	require.NoError(t, s.Append(ctx, payment("p-mid", "", 3, base.Add(90*time.Minute))))

	entries, err := s.LoadByWorker(ctx, "w1")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, generic.EntryID("p-early"), entries[0].ID)
	assert.Equal(t, generic.EntryID("p-mid"), entries[1].ID)
	assert.Equal(t, generic.EntryID("p-late"), entries[2].ID)
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	// WHEN: The callback appends and then fails
	err := s.WithTx(ctx, func(tx generic.LedgerStore) error {
		if err := tx.Append(ctx, payment("p1", "k1", 100, time.Now())); err != nil {
			return err
		}
		return boom
	})

	// THEN: Nothing is committed
	assert.ErrorIs(t, err, boom)
	got, err := s.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestWithTx_SeesAllocations(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	seedEvent(t, s)

	err := s.WithTx(ctx, func(tx generic.LedgerStore) error {
		ok, err := tx.HasAllocation(ctx, "w1", "e1")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = tx.HasAllocation(ctx, "w2", "e1")
		require.NoError(t, err)
		assert.False(t, ok)
		return tx.Append(ctx, payment("p1", "", 100, time.Now()))
	})
	require.NoError(t, err)

	entries, err := s.LoadByEvent(ctx, "e1")
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

// =============================================================================
// REPOSITORY
// =============================================================================

func TestLoadEvent(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	seedEvent(t, s)
	require.NoError(t, s.SaveWorkLog(ctx, payroll.WorkLogEntry{
		ID: "wl1", WorkerID: "w1", EventID: "e1", Date: generic.MustParseDate("2024-03-01"),
		RegularHours: decimal.NewFromInt(8), OvertimeHours: generic.MustParseDecimal("2.5"),
	}))
	require.NoError(t, s.SaveAbsence(ctx, payroll.AbsenceEntry{
		ID: "ab1", AllocationID: "a1", WorkerID: "w1", EventID: "e1",
		Date: generic.MustParseDate("2024-03-02"), Notes: "sick",
	}))

	in, err := s.LoadEvent(ctx, "e1")
	require.NoError(t, err)

	require.Len(t, in.Allocations, 1)
	a := in.Allocations[0]
	assert.Len(t, a.WorkDays, 2)
	require.NotNil(t, a.RateOverride)
	assert.Equal(t, "650", a.RateOverride.String())
	assert.Equal(t, "rigging", a.Team)

	// Only allocated workers are loaded
	require.Len(t, in.Personnel, 1)
	assert.Equal(t, generic.WorkerID("w1"), in.Personnel[0].ID)
	assert.Nil(t, in.Personnel[0].MonthlySalary)

	require.Len(t, in.WorkLogs, 1)
	assert.Equal(t, "2.5", in.WorkLogs[0].OvertimeHours.String())

	require.Len(t, in.Absences, 1)
	assert.Equal(t, "sick", in.Absences[0].Notes)
	assert.Empty(t, in.Absences[0].LoggedBy)
	assert.False(t, in.Absences[0].CreatedAt.IsZero())
}

func TestLoadEvent_NoAllocations(t *testing.T) {
	s := newStore(t)

	_, err := s.LoadEvent(context.Background(), "missing")

	assert.ErrorIs(t, err, generic.ErrEventNotFound)
}

func TestPersonnel_UpsertAndLookup(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	seedEvent(t, s)

	require.NoError(t, s.SavePersonnel(ctx, payroll.Personnel{
		ID: "w1", Name: "Ana Souza", Kind: payroll.KindFreelance, DailyRate: dec("550"),
	}))

	p, err := s.GetPersonnel(ctx, "w1")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "Ana Souza", p.Name)
	assert.Equal(t, "550", p.DailyRate.String())
	assert.Nil(t, p.OvertimeRate)

	missing, err := s.GetPersonnel(ctx, "nobody")
	require.NoError(t, err)
	assert.Nil(t, missing)

	all, err := s.ListPersonnel(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestDeleteAllocation_RemovesAbsencesKeepsLedger(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	seedEvent(t, s)
	require.NoError(t, s.SaveAbsence(ctx, payroll.AbsenceEntry{
		ID: "ab1", AllocationID: "a1", WorkerID: "w1", EventID: "e1", Date: generic.MustParseDate("2024-03-02"),
	}))
	require.NoError(t, s.Append(ctx, payment("p1", "", 100, time.Now())))

	require.NoError(t, s.DeleteAllocation(ctx, "a1"))

	ok, err := s.HasAllocation(ctx, "w1", "e1")
	require.NoError(t, err)
	assert.False(t, ok)

	absences, err := s.queryAbsences(ctx, "SELECT "+absenceColumns+" FROM absences")
	require.NoError(t, err)
	assert.Empty(t, absences)

	entries, err := s.LoadByEvent(ctx, "e1")
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	assert.ErrorIs(t, s.DeleteAllocation(ctx, "a1"), generic.ErrInvalidRecord)
}

func TestSaveAbsence_OneRowPerAllocationDay(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	seedEvent(t, s)
	day := generic.MustParseDate("2024-03-02")
	require.NoError(t, s.SaveAbsence(ctx, payroll.AbsenceEntry{
		ID: "ab1", AllocationID: "a1", WorkerID: "w1", EventID: "e1", Date: day,
	}))

	// Same id updates in place
	require.NoError(t, s.SaveAbsence(ctx, payroll.AbsenceEntry{
		ID: "ab1", AllocationID: "a1", WorkerID: "w1", EventID: "e1", Date: day, Notes: "late",
	}))

	err := s.SaveAbsence(ctx, payroll.AbsenceEntry{
		ID: "ab2", AllocationID: "a1", WorkerID: "w1", EventID: "e1", Date: day,
	})
	assert.ErrorIs(t, err, generic.ErrInvalidRecord)

	in, err := s.LoadEvent(ctx, "e1")
	require.NoError(t, err)
	require.Len(t, in.Absences, 1)
	assert.Equal(t, "late", in.Absences[0].Notes)
}

func TestEventsForWorker(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	seedEvent(t, s)
	require.NoError(t, s.SaveAllocation(ctx, payroll.Allocation{
		ID: "a2", WorkerID: "w1", EventID: "e0", WorkDays: []generic.Date{generic.MustParseDate("2024-02-01")},
	}))

	events, err := s.EventsForWorker(ctx, "w1")

	require.NoError(t, err)
	assert.Equal(t, []generic.EventID{"e0", "e1"}, events)
}

// =============================================================================
// SETTINGS
// =============================================================================

func TestSettings_DefaultsSeedAndSave(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	// GIVEN: Nothing stored
	got, err := s.LoadSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, payroll.DefaultTeamSettings(), got)

	// WHEN: Seeding twice, the first seed wins
	first := payroll.TeamSettings{ThresholdHours: decimal.NewFromInt(6), ConversionEnabled: true, Mode: payroll.ModePerDay}
	second := payroll.TeamSettings{ThresholdHours: decimal.NewFromInt(10), ConversionEnabled: true, Mode: payroll.ModeEventTotal}
	require.NoError(t, s.SeedSettings(ctx, first))
	require.NoError(t, s.SeedSettings(ctx, second))

	got, err = s.LoadSettings(ctx)
	require.NoError(t, err)
	assert.True(t, got.ThresholdHours.Equal(decimal.NewFromInt(6)))
	assert.Equal(t, payroll.ModePerDay, got.Mode)

	// THEN: An explicit save overwrites
	require.NoError(t, s.SaveSettings(ctx, second))
	got, err = s.LoadSettings(ctx)
	require.NoError(t, err)
	assert.True(t, got.ThresholdHours.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, payroll.ModeEventTotal, got.Mode)
}

func TestReset(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	seedEvent(t, s)
	require.NoError(t, s.Append(ctx, payment("p1", "k1", 100, time.Now())))

	require.NoError(t, s.Reset(ctx))

	people, err := s.ListPersonnel(ctx)
	require.NoError(t, err)
	assert.Empty(t, people)
	exists, err := s.Exists(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, exists)
	require.NoError(t, s.Ping(ctx))
}
