package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"fintrack/internal/core"
	applog "fintrack/internal/log"
)

type errorBody struct {
	Error string `json:"error"`
}

type validationBody struct {
	Errors map[string]string `json:"errors"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps service errors to responses. Only validation messages
// reach the client verbatim.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		verr *core.ValidationError
		cerr *core.ConversionError
	)

	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, validationBody{Errors: verr.Fields})
	case errors.Is(err, core.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
	case errors.As(err, &cerr):
		applog.FromContext(r.Context()).WarnContext(r.Context(), "Currency conversion failed",
			"from", cerr.From, "to", cerr.To, "error", cerr.Err)
		writeJSON(w, http.StatusBadGateway, errorBody{Error: "currency conversion failed, transaction not saved"})
	default:
		fields := applog.NewFields().WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.Header.Get("User-Agent"))
		applog.LogFailure(r.Context(), applog.ComponentHTTP, operationOf(r.Method), "Request failed", err, fields)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal server error"})
	}
}

func operationOf(method string) string {
	switch method {
	case http.MethodPost:
		return applog.OpCreate
	case http.MethodPut, http.MethodPatch:
		return applog.OpUpdate
	case http.MethodDelete:
		return applog.OpDelete
	}
	return applog.OpRead
}
