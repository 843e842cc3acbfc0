package http

import (
	"net/http"

	"fintrack/internal/core"
	"fintrack/internal/period"
	"fintrack/internal/services"
)

type transactionJSON struct {
	ID          int64   `json:"id"`
	Date        string  `json:"date"`
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
	Category    string  `json:"category"`
	IsExpense   bool    `json:"is_expense"`
}

func toTransactionJSON(t core.Transaction) transactionJSON {
	return transactionJSON{
		ID:          t.ID,
		Date:        t.Date.String(),
		Description: t.Description,
		Amount:      t.Amount.Float(),
		Category:    t.Category,
		IsExpense:   t.IsExpense,
	}
}

type ledgerJSON struct {
	Transactions []transactionJSON `json:"transactions"`
	Total        float64           `json:"total"`
	Duration     string            `json:"duration"`
	Time         string            `json:"time"`
	Order        string            `json:"order"`
}

func searchFromQuery(r *http.Request) period.Search {
	q := r.URL.Query()
	return period.Search{
		ID:          q.Get("id"),
		Amount:      q.Get("amount"),
		Description: q.Get("description"),
		Category:    q.Get("category"),
	}
}

// handleLedger lists the transactions of a period, or of every period when
// a search term is given.
func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := s.svc.Reports.Ledger(r.Context(), services.LedgerRequest{
		Time:   q.Get("time"),
		Order:  q.Get("order"),
		Search: searchFromQuery(r),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := ledgerJSON{
		Transactions: make([]transactionJSON, 0, len(page.Transactions)),
		Total:        page.Total.Float(),
		Duration:     page.Duration,
		Time:         page.EffectiveTime,
		Order:        page.Order,
	}
	for _, t := range page.Transactions {
		out.Transactions = append(out.Transactions, toTransactionJSON(t))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	dash, err := s.svc.Reports.Dashboard(r.Context(), r.URL.Query().Get("time"), searchFromQuery(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dash)
}
