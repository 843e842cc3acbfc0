package http

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"fintrack/internal/syncjobs"
)

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.svc.Jobs.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if jobs == nil {
		jobs = []*syncjobs.Job{}
	}
	writeJSON(w, http.StatusOK, jobs)
}

// handleStartJob launches a script from the scripts directory and returns
// immediately; poll the job for completion.
func (s *Server) handleStartJob(w http.ResponseWriter, r *http.Request) {
	p, ok := parseBody(w, r)
	if !ok {
		return
	}

	job, err := s.svc.Jobs.Start(r.Context(), p.Get("script"), p.Strings("args"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.svc.Jobs.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleJobLog(w http.ResponseWriter, r *http.Request) {
	maxBytes := syncjobs.DefaultLogBytes
	if v := r.URL.Query().Get("max_bytes"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusUnprocessableEntity, validationBody{Errors: map[string]string{"max_bytes": "must be a positive integer"}})
			return
		}
		maxBytes = n
	}

	tail, err := s.svc.Jobs.Log(r.Context(), chi.URLParam(r, "id"), maxBytes)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tail)
}
