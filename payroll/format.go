package payroll

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/crew-payroll/generic"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// UnknownLogger is shown when an absence has no attribution.
const UnknownLogger = "Unknown"

// =============================================================================
// DISPLAY SHAPES
// =============================================================================

type AbsenceView struct {
	ID           string
	AllocationID generic.AllocationID
	Date         string
	Notes        string
	LoggedBy     string
	LoggedAt     time.Time
}

type PaymentView struct {
	ID      generic.EntryID
	Amount  decimal.Decimal
	Display string
	Kind    generic.PaymentKind
	PaidAt  time.Time
	Notes   string
}

// =============================================================================
// FORMATTER - Single display currency
// =============================================================================

// Formatter renders money for display. There is exactly one currency per
// deployment, resolved from a locale tag such as "pt-BR" or "en-US".
type Formatter struct {
	Currency currency.Unit
	Symbol   string
}

// NewFormatter resolves the currency of locale. Unknown locales fall back to USD.
func NewFormatter(locale string) Formatter {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.AmericanEnglish
	}
	cur, conf := currency.FromTag(tag)
	if conf == language.No {
		cur = currency.USD
	}
	symbol := message.NewPrinter(tag).Sprint(currency.Symbol(cur))
	return Formatter{Currency: cur, Symbol: symbol}
}

// Money renders amount after the currency symbol, with the currency's
// standard number of decimals (two for BRL and USD, none for JPY).
func (f Formatter) Money(amount decimal.Decimal) string {
	scale := 2
	if f.Currency != (currency.Unit{}) {
		scale, _ = currency.Standard.Rounding(f.Currency)
	}
	text := amount.StringFixed(int32(scale))
	if f.Symbol == "" {
		return text
	}
	return f.Symbol + " " + text
}

// =============================================================================
// FORMATTERS
// =============================================================================

// FormatAbsences maps absence rows to display rows, ordered by date.
func FormatAbsences(absences []AbsenceEntry) []AbsenceView {
	views := make([]AbsenceView, 0, len(absences))
	for _, a := range absences {
		loggedBy := a.LoggedBy
		if loggedBy == "" {
			loggedBy = UnknownLogger
		}
		views = append(views, AbsenceView{
			ID:           a.ID,
			AllocationID: a.AllocationID,
			Date:         a.Date.Key(),
			Notes:        a.Notes,
			LoggedBy:     loggedBy,
			LoggedAt:     a.CreatedAt,
		})
	}
	sort.SliceStable(views, func(i, j int) bool { return views[i].Date < views[j].Date })
	return views
}

// FormatPayments maps ledger entries to display rows, oldest first.
func FormatPayments(entries []generic.PaymentEntry, f Formatter) []PaymentView {
	views := make([]PaymentView, 0, len(entries))
	for _, e := range entries {
		views = append(views, PaymentView{
			ID:      e.ID,
			Amount:  e.Amount.Value,
			Display: f.Money(e.Amount.Value),
			Kind:    e.Kind,
			PaidAt:  e.PaidAt,
			Notes:   e.Notes,
		})
	}
	sort.SliceStable(views, func(i, j int) bool {
		if views[i].PaidAt.Equal(views[j].PaidAt) {
			return views[i].ID < views[j].ID
		}
		return views[i].PaidAt.Before(views[j].PaidAt)
	})
	return views
}
