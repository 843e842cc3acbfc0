package http

import (
	"net/http"

	"fintrack/internal/services"
)

func (s *Server) handleListAutomations(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.Automations.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if list == nil {
		list = []services.Automation{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleCreateAutomation(w http.ResponseWriter, r *http.Request) {
	p, ok := parseBody(w, r)
	if !ok {
		return
	}

	isExpense := "1"
	if p.Has("is_expense") {
		isExpense = p.Get("is_expense")
	}
	id, err := s.svc.Automations.Add(r.Context(), services.AutomationInput{
		Day:         p.Get("day"),
		Description: p.Get("description"),
		Amount:      p.Get("amount"),
		Category:    p.Get("category"),
		IsExpense:   isExpense,
		Start:       p.Get("start"),
		End:         p.Get("end"),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	created, err := s.svc.Automations.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetAutomation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
		return
	}

	a, err := s.svc.Automations.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// handleUpdateAutomation changes only the fields present in the body.
func (s *Server) handleUpdateAutomation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
		return
	}
	p, ok := parseBody(w, r)
	if !ok {
		return
	}

	patch := services.AutomationPatch{
		Day:         p.Optional("day"),
		Description: p.Optional("description"),
		Amount:      p.Optional("amount"),
		Category:    p.Optional("category"),
		IsExpense:   p.Optional("is_expense"),
		Start:       p.Optional("start"),
		End:         p.Optional("end"),
	}
	if err := s.svc.Automations.Update(r.Context(), id, patch); err != nil {
		writeError(w, r, err)
		return
	}

	updated, err := s.svc.Automations.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteAutomation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
		return
	}

	deleted, err := s.svc.Automations.Delete(r.Context(), id)
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

// handleRunAutomations materializes every rule up to today.
func (s *Server) handleRunAutomations(w http.ResponseWriter, r *http.Request) {
	res, err := s.svc.Materializer.Run(r.Context(), s.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
