package payroll_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/warp/crew-payroll/payroll"
)

// =============================================================================
// DAY AGGREGATOR
// =============================================================================

func TestUniqueWorkDays_OverlappingRows_Unioned(t *testing.T) {
	// GIVEN: Two allocation rows sharing 2024-01-16
	// WHEN: Counting unique days
	// THEN: The shared day counts once

	allocs := []payroll.Allocation{
		alloc("a1", "w1", nil, "2024-01-15", "2024-01-16"),
		alloc("a2", "w1", nil, "2024-01-16", "2024-01-17"),
	}

	assert.Equal(t, 3, payroll.UniqueWorkDays(allocs))
	assert.Equal(t, 2, payroll.WorkedDays(allocs, []payroll.AbsenceEntry{absence("ab1", "w1", "2024-01-16")}))
}

func TestUniqueWorkDays_NoAllocations(t *testing.T) {
	assert.Equal(t, 0, payroll.UniqueWorkDays(nil))
	assert.Equal(t, 0, payroll.WorkedDays(nil, nil))
}

func TestUniqueWorkDays_DuplicateDayWithinRow(t *testing.T) {
	allocs := []payroll.Allocation{alloc("a1", "w1", nil, "2024-01-15", "2024-01-15")}
	assert.Equal(t, 1, payroll.UniqueWorkDays(allocs))
}

func TestWorkedDays_AbsencesCountedByRow(t *testing.T) {
	// GIVEN: Two absence rows on the same date (logged against two rows)
	// THEN: Both are subtracted

	allocs := []payroll.Allocation{
		alloc("a1", "w1", nil, "2024-01-15", "2024-01-16", "2024-01-17"),
	}
	absences := []payroll.AbsenceEntry{
		absence("ab1", "w1", "2024-01-16"),
		absence("ab2", "w1", "2024-01-16"),
	}

	assert.Equal(t, 1, payroll.WorkedDays(allocs, absences))
}

func TestWorkedDays_ClampedAtZero(t *testing.T) {
	// GIVEN: More absences than allocated days (malformed upstream data)
	// THEN: Worked days is zero, never negative

	allocs := []payroll.Allocation{alloc("a1", "w1", nil, "2024-01-15")}
	absences := []payroll.AbsenceEntry{
		absence("ab1", "w1", "2024-01-15"),
		absence("ab2", "w1", "2024-01-16"),
		absence("ab3", "w1", "2024-01-17"),
	}

	assert.Equal(t, 0, payroll.WorkedDays(allocs, absences))
}

func TestWorkedDays_MatchesFormula(t *testing.T) {
	allocs := []payroll.Allocation{
		alloc("a1", "w1", nil, "2024-03-01", "2024-03-02", "2024-03-03"),
		alloc("a2", "w1", nil, "2024-03-03", "2024-03-04"),
		alloc("a3", "w1", nil, "2024-03-01"),
	}
	for n := 0; n <= 6; n++ {
		var absences []payroll.AbsenceEntry
		for i := 0; i < n; i++ {
			absences = append(absences, absence("ab", "w1", "2024-03-01"))
		}
		want := 4 - n
		if want < 0 {
			want = 0
		}
		assert.Equal(t, want, payroll.WorkedDays(allocs, absences), "absences=%d", n)
	}
}
