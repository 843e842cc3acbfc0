package services

import (
	"context"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/period"
	"fintrack/internal/storage"
)

// Dashboard views, chosen by the granularity of the resolved period.
const (
	ViewDaily        = "daily"
	ViewMonthlyByDay = "monthly_by_day"
	ViewMonthly      = "monthly"
)

const dashboardCategoryLimit = 50

// LedgerRequest holds the raw inputs of the transaction list.
type LedgerRequest struct {
	Time   string
	Order  string
	Search period.Search
}

type LedgerPage struct {
	Transactions []core.Transaction
	Total        core.Money
	Duration     string
	// EffectiveTime reproduces the same period in another view.
	EffectiveTime string
	Order         string
}

type CategoryTotal struct {
	Category string  `json:"category"`
	Total    float64 `json:"total"`
}

type DashboardTransaction struct {
	ID          int64   `json:"id"`
	Date        string  `json:"date"`
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
	Category    string  `json:"category"`
}

// Dashboard is the chart data for one period. Only the series matching View
// are set. Amounts are positive spend.
type Dashboard struct {
	View         string                 `json:"view"`
	Duration     string                 `json:"duration"`
	Transactions []DashboardTransaction `json:"transactions,omitempty"`
	Labels       []string               `json:"labels,omitempty"`
	Values       []float64              `json:"values,omitempty"`
	Months       []string               `json:"months,omitempty"`
	MonthTotals  []float64              `json:"month_totals,omitempty"`
	Categories   []CategoryTotal        `json:"categories"`
	Empty        bool                   `json:"empty"`
}

// ReportService answers the read-only ledger and dashboard queries.
type ReportService struct {
	storage *storage.SQLiteRepository
	now     func() time.Time
}

func NewReportService(storage *storage.SQLiteRepository) *ReportService {
	return &ReportService{storage: storage, now: time.Now}
}

// Ledger lists the transactions of the requested period, or of the whole
// ledger when a search term is set.
func (s *ReportService) Ledger(ctx context.Context, req LedgerRequest) (LedgerPage, error) {
	now := s.now()
	q := period.Build(period.LedgerView, req.Time, req.Search, now)
	order := core.NormalizeSort(req.Order, "")

	txs, err := s.storage.QueryTransactions(ctx, q.Filter, order)
	if err != nil {
		return LedgerPage{}, err
	}
	total, err := s.storage.SumTransactions(ctx, q.Filter)
	if err != nil {
		return LedgerPage{}, err
	}

	return LedgerPage{
		Transactions:  txs,
		Total:         total,
		Duration:      q.Label,
		EffectiveTime: period.EffectiveExpr(req.Time, q.Window, now),
		Order:         order.Column,
	}, nil
}

// Dashboard aggregates expenses only. An exact day lists the individual
// transactions, a month is broken down by day and anything wider by month.
func (s *ReportService) Dashboard(ctx context.Context, expr string, search period.Search) (Dashboard, error) {
	q := period.Build(period.DashboardView, expr, search, s.now())
	filter := q.Filter.With(core.Condition{Column: "is_expense", Op: core.OpEq, Value: 1})

	out := Dashboard{Duration: q.Label}

	cats, err := s.storage.SumByCategory(ctx, filter, dashboardCategoryLimit)
	if err != nil {
		return Dashboard{}, err
	}
	out.Categories = make([]CategoryTotal, 0, len(cats))
	for _, c := range cats {
		out.Categories = append(out.Categories, CategoryTotal{Category: c.Key, Total: spend(c.Total)})
	}

	w := q.Window
	switch {
	case !w.Total && w.Day != 0:
		out.View = ViewDaily
		txs, err := s.storage.QueryTransactions(ctx, filter, core.Sort{Column: "date", Direction: core.Asc})
		if err != nil {
			return Dashboard{}, err
		}
		out.Transactions = make([]DashboardTransaction, 0, len(txs))
		for _, t := range txs {
			out.Transactions = append(out.Transactions, DashboardTransaction{
				ID:          t.ID,
				Date:        t.Date.String(),
				Description: t.Description,
				Amount:      t.Amount.Abs().Float(),
				Category:    t.Category,
			})
		}
		out.Empty = len(out.Transactions) == 0 && len(out.Categories) == 0

	case !w.Total && w.Year != 0 && w.Month != 0:
		out.View = ViewMonthlyByDay
		days, err := s.storage.SumByDay(ctx, filter)
		if err != nil {
			return Dashboard{}, err
		}
		for _, d := range days {
			out.Labels = append(out.Labels, d.Key)
			out.Values = append(out.Values, spend(d.Total))
		}
		out.Empty = len(out.Labels) == 0 && len(out.Categories) == 0

	default:
		out.View = ViewMonthly
		months, err := s.storage.SumByMonth(ctx, filter)
		if err != nil {
			return Dashboard{}, err
		}
		for _, m := range months {
			out.Months = append(out.Months, m.Key)
			out.MonthTotals = append(out.MonthTotals, spend(m.Total))
		}
		out.Empty = len(out.Months) == 0 && len(out.Categories) == 0
	}

	return out, nil
}

// spend flips the ledger sign so expenses read as positive totals.
func spend(m core.Money) float64 {
	return core.Money{Cents: -m.Cents}.Float()
}
