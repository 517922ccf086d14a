package payroll

import "github.com/warp/crew-payroll/generic"

// =============================================================================
// DAY AGGREGATOR
// =============================================================================

// AllocatedDays returns the union of work days across the allocation rows of
// one worker in one event. Overlapping rows never double count a date.
func AllocatedDays(allocs []Allocation) generic.DateSet {
	days := generic.NewDateSet()
	for _, a := range allocs {
		days.Add(a.WorkDays...)
	}
	return days
}

// UniqueWorkDays is the size of AllocatedDays.
func UniqueWorkDays(allocs []Allocation) int {
	return AllocatedDays(allocs).Len()
}

// WorkedDays is the allocated day count minus absences, floored at zero.
//
// Absences are counted by row: two rows on the same date both subtract.
func WorkedDays(allocs []Allocation, absences []AbsenceEntry) int {
	worked := UniqueWorkDays(allocs) - len(absences)
	if worked < 0 {
		return 0
	}
	return worked
}
