package generic

import (
	"sort"
	"time"
)

// =============================================================================
// DATE - Calendar day (payroll only ever reasons in whole days)
// =============================================================================

// Date is a calendar day in UTC. The zero value is the zero time.
type Date struct {
	Time time.Time
}

const DateLayout = "2006-01-02"

func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, err
	}
	return DateOf(t), nil
}

// MustParseDate panics on malformed input. Use in tests and fixtures.
func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func (d Date) Key() string           { return d.Time.Format(DateLayout) }
func (d Date) String() string        { return d.Key() }
func (d Date) IsZero() bool          { return d.Time.IsZero() }
func (d Date) Year() int             { return d.Time.Year() }
func (d Date) Month() time.Month     { return d.Time.Month() }
func (d Date) Before(o Date) bool    { return d.Time.Before(o.Time) }
func (d Date) Equal(o Date) bool     { return d.Key() == o.Key() }
func (d Date) AddDays(n int) Date    { return Date{Time: d.Time.AddDate(0, 0, n)} }
func (d Date) InMonth(m Month) bool  { return d.Year() == m.Year && d.Month() == m.Month }

// =============================================================================
// DATE SET - Union of days keyed by calendar date, not by row
// =============================================================================

// DateSet is a set of calendar days. Adding the same day twice is a no-op.
type DateSet map[string]Date

func NewDateSet(days ...Date) DateSet {
	s := make(DateSet, len(days))
	s.Add(days...)
	return s
}

func (s DateSet) Add(days ...Date) {
	for _, d := range days {
		s[d.Key()] = d
	}
}

func (s DateSet) Contains(d Date) bool {
	_, ok := s[d.Key()]
	return ok
}

func (s DateSet) Len() int { return len(s) }

// Sorted returns the days in ascending order.
func (s DateSet) Sorted() []Date {
	out := make([]Date, 0, len(s))
	for _, d := range s {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// =============================================================================
// MONTH - Calendar month used by cross-event views
// =============================================================================

type Month struct {
	Year  int
	Month time.Month
}

const MonthLayout = "2006-01"

func ParseMonth(s string) (Month, error) {
	t, err := time.Parse(MonthLayout, s)
	if err != nil {
		return Month{}, err
	}
	return Month{Year: t.Year(), Month: t.Month()}, nil
}

func MonthOf(d Date) Month { return Month{Year: d.Year(), Month: d.Month()} }

func (m Month) String() string {
	return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC).Format(MonthLayout)
}
