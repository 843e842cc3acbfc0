package period

import (
	"strconv"
	"strings"
	"time"

	"fintrack/internal/core"
)

// View selects how a period and search overlay combine.
type View int

const (
	// LedgerView is the main transaction list. An empty period means the
	// current month, and any search term searches the whole ledger.
	LedgerView View = iota
	// DashboardView defaults to all time. An id search replaces the
	// predicate and ignores the other search terms, while the resolved
	// period still selects the view; other search terms narrow the period.
	DashboardView
)

// Search holds the independent overlay inputs.
type Search struct {
	ID          string
	Amount      string
	Description string
	Category    string
}

func (s Search) normalized() Search {
	return Search{
		ID:          strings.TrimSpace(s.ID),
		Amount:      strings.TrimSpace(s.Amount),
		Description: strings.TrimSpace(s.Description),
		Category:    strings.TrimSpace(s.Category),
	}
}

// IsEmpty reports whether no search term is set.
func (s Search) IsEmpty() bool {
	n := s.normalized()
	return n.ID == "" && n.Amount == "" && n.Description == "" && n.Category == ""
}

// Query is the fully resolved input of a ledger or dashboard request.
type Query struct {
	Window Window
	Filter core.Filter
	Label  string
}

// Build resolves expr for view and composes the search overlay with it.
func Build(view View, expr string, search Search, now time.Time) Query {
	search = search.normalized()
	window := ResolveOrFallback(expr, view == DashboardView, now)

	switch view {
	case DashboardView:
		if search.ID != "" {
			// The window still picks the view and the label; only the
			// predicate is replaced by the id.
			return Query{
				Window: window,
				Filter: core.Filter{Total: true, Conditions: []core.Condition{idCondition(search.ID)}},
				Label:  window.Label(now),
			}
		}
	default:
		if !search.IsEmpty() {
			window = Window{Total: true}
		}
	}

	filter := window.Filter()
	if search.ID != "" {
		filter = filter.With(idCondition(search.ID))
	}
	if search.Amount != "" {
		filter = filter.With(amountCondition(search.Amount))
	}
	if search.Description != "" {
		filter = filter.With(core.Condition{Column: "description", Op: core.OpLike, Value: "%" + search.Description + "%"})
	}
	if search.Category != "" {
		filter = filter.With(core.Condition{Column: "category", Op: core.OpLike, Value: "%" + search.Category + "%"})
	}

	return Query{Window: window, Filter: filter, Label: window.Label(now)}
}

func idCondition(raw string) core.Condition {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return core.Condition{Op: core.OpNone}
	}
	return core.Condition{Column: "id", Op: core.OpEq, Value: id}
}

// amountCondition matches the magnitude so a search for 12.5 finds both the
// expense -12.5 and the income 12.5.
func amountCondition(raw string) core.Condition {
	m, err := core.ParseAmount(raw)
	if err != nil {
		return core.Condition{Op: core.OpNone}
	}
	return core.Condition{Column: "amount", Op: core.OpAbsEq, Value: m.Abs().Float()}
}

// EffectiveExpr is the period expression a follow-up view (for example the
// dashboard opened from the ledger) should use to show the same data.
func EffectiveExpr(expr string, w Window, now time.Time) string {
	if strings.TrimSpace(expr) != "" {
		return expr
	}
	year, month := w.Year, w.Month
	if year == 0 {
		year = now.Year()
	}
	if month == 0 {
		month = int(now.Month())
	}
	return strconv.Itoa(year) + "-" + twoDigits(month)
}
