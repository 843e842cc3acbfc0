package http

import (
	"net/http"

	"fintrack/internal/services"
)

func transactionInput(p *RequestBodyParser) services.TransactionInput {
	return services.TransactionInput{
		Date:        p.Get("date"),
		Description: p.Get("description"),
		Amount:      p.Get("amount"),
		Category:    p.Get("category"),
		IsExpense:   p.Get("is_expense"),
		Currency:    p.Get("currency"),
	}
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	p, ok := parseBody(w, r)
	if !ok {
		return
	}

	tx, err := s.svc.Transactions.Create(r.Context(), transactionInput(p))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionJSON(tx))
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
		return
	}

	tx, err := s.svc.Transactions.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionJSON(tx))
}

// handleUpdateTransaction merges the submitted fields over the stored
// transaction; empty fields keep their value.
func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
		return
	}
	p, ok := parseBody(w, r)
	if !ok {
		return
	}

	tx, err := s.svc.Transactions.Update(r.Context(), id, transactionInput(p))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionJSON(tx))
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
		return
	}

	deleted, err := s.svc.Transactions.Delete(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !deleted {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
