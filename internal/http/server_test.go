package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	applog "fintrack/internal/log"
	"fintrack/internal/services"
	"fintrack/internal/storage"
	"fintrack/internal/syncjobs"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	root := t.TempDir()

	repo, err := storage.NewSQLiteRepository(filepath.Join(root, "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	scripts := filepath.Join(root, "scripts")
	require.NoError(t, os.MkdirAll(scripts, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(scripts, "sync.sh"), []byte("echo synced \"$@\"\n"), 0o644))
	jobs, err := syncjobs.NewRegistry(syncjobs.Config{ScriptsDir: scripts, JobsDir: filepath.Join(root, "jobs")}, nil)
	require.NoError(t, err)
	t.Cleanup(jobs.Wait)

	categorizer := services.NewCategorizer(repo)
	srv := NewServer(":0", Services{
		Reports:      services.NewReportService(repo),
		Transactions: services.NewTransactionService(repo, categorizer, nil, nil, "eur"),
		Automations:  services.NewAutomationService(repo, categorizer),
		Materializer: services.NewMaterializer(repo, categorizer, nil),
		Categories:   services.NewCategoryService(repo),
		Jobs:         jobs,
		Health:       repo,
	}, applog.New(applog.Config{Output: &strings.Builder{}}))
	t.Cleanup(func() { srv.rateLimiter.stop() })
	return srv
}

func do(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		if strings.HasPrefix(body, "{") {
			req.Header.Set("Content-Type", "application/json")
		} else {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func TestHealthAndReady(t *testing.T) {
	srv := newTestServer(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := do(t, srv, http.MethodGet, path, "")
		assert.Equal(t, http.StatusOK, rr.Code, path)
		assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	}

	rr := do(t, srv, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestTransactionsAPI(t *testing.T) {
	srv := newTestServer(t)

	rr := do(t, srv, http.MethodPost, "/api/categories", `{"name": "food"}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	cat := decode[idJSON](t, rr)
	rr = do(t, srv, http.MethodPost, "/api/categories/"+itoa(cat.ID)+"/keywords", "keyword=Coffee")
	require.Equal(t, http.StatusCreated, rr.Code)

	// Validation errors come back per field.
	rr = do(t, srv, http.MethodPost, "/api/transactions", `{"description": "", "amount": "0"}`)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	verr := decode[validationBody](t, rr)
	assert.Equal(t, "Amount must be greater than 0", verr.Errors["amount"])
	assert.Equal(t, "Description is required", verr.Errors["description"])

	rr = do(t, srv, http.MethodPost, "/api/transactions", "description=Coffee&amount=3,50")
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	created := decode[transactionJSON](t, rr)
	assert.Equal(t, -3.5, created.Amount)
	assert.Equal(t, "food", created.Category)
	assert.True(t, created.IsExpense)
	assert.Equal(t, time.Now().Format("2006-01-02"), created.Date)

	rr = do(t, srv, http.MethodGet, "/api/ledger", "")
	require.Equal(t, http.StatusOK, rr.Code)
	ledger := decode[ledgerJSON](t, rr)
	require.Len(t, ledger.Transactions, 1)
	assert.Equal(t, -3.5, ledger.Total)
	assert.Equal(t, "date", ledger.Order)

	rr = do(t, srv, http.MethodPut, "/api/transactions/"+itoa(created.ID), `{"amount": "10", "is_expense": "0"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	updated := decode[transactionJSON](t, rr)
	assert.Equal(t, 10.0, updated.Amount)
	assert.Equal(t, "Coffee", updated.Description)

	rr = do(t, srv, http.MethodGet, "/api/transactions/"+itoa(created.ID), "")
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = do(t, srv, http.MethodDelete, "/api/transactions/"+itoa(created.ID), "")
	assert.Equal(t, http.StatusNoContent, rr.Code)
	rr = do(t, srv, http.MethodDelete, "/api/transactions/"+itoa(created.ID), "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	rr = do(t, srv, http.MethodGet, "/api/transactions/abc", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestAutomationsAPI(t *testing.T) {
	srv := newTestServer(t)

	rr := do(t, srv, http.MethodPost, "/api/automations",
		`{"day": "1", "description": "Rent", "amount": "500", "category": "housing", "start": "2026-01-01", "end": "2026-03-31"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	rule := decode[services.Automation](t, rr)
	assert.True(t, rule.IsExpense)

	rr = do(t, srv, http.MethodPost, "/api/automations", `{"day": "40", "description": "Bad"}`)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Contains(t, decode[validationBody](t, rr).Errors, "day")

	rr = do(t, srv, http.MethodPut, "/api/automations/"+itoa(rule.ID), `{"description": "Flat rent"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	patched := decode[services.Automation](t, rr)
	assert.Equal(t, "Flat rent", patched.Description)
	assert.Equal(t, "2026-03-31", patched.End)

	rr = do(t, srv, http.MethodPut, "/api/automations/999", `{"description": "x"}`)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, srv, http.MethodPost, "/api/automations/run", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, services.MaterializeResult{Created: 3}, decode[services.MaterializeResult](t, rr))

	rr = do(t, srv, http.MethodPost, "/api/automations/run", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, services.MaterializeResult{Existing: 3}, decode[services.MaterializeResult](t, rr))

	rr = do(t, srv, http.MethodGet, "/api/dashboard?time=2026-02", "")
	require.Equal(t, http.StatusOK, rr.Code)
	dash := decode[services.Dashboard](t, rr)
	assert.Equal(t, services.ViewMonthlyByDay, dash.View)
	assert.Equal(t, []string{"2026-02-01"}, dash.Labels)
	assert.Equal(t, []float64{500}, dash.Values)

	rr = do(t, srv, http.MethodGet, "/api/ledger?description=rent", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[ledgerJSON](t, rr).Transactions, 3)

	rr = do(t, srv, http.MethodGet, "/api/automations", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]services.Automation](t, rr), 1)

	rr = do(t, srv, http.MethodDelete, "/api/automations/"+itoa(rule.ID), "")
	assert.Equal(t, http.StatusNoContent, rr.Code)
}

func TestCategoriesAPI(t *testing.T) {
	srv := newTestServer(t)

	rr := do(t, srv, http.MethodPost, "/api/categories", "name=")
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = do(t, srv, http.MethodPost, "/api/categories", "name=food")
	require.Equal(t, http.StatusCreated, rr.Code)
	id := itoa(decode[idJSON](t, rr).ID)

	rr = do(t, srv, http.MethodPost, "/api/categories/"+id+"/keywords", `{"keyword": "Lunch"}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	kw := itoa(decode[idJSON](t, rr).ID)

	rr = do(t, srv, http.MethodPut, "/api/categories/"+id, `{"name": "meals"}`)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = do(t, srv, http.MethodGet, "/api/categories", "")
	require.Equal(t, http.StatusOK, rr.Code)
	cats := decode[[]storage.Category](t, rr)
	require.Len(t, cats, 1)
	assert.Equal(t, "meals", cats[0].Name)
	require.Len(t, cats[0].Keywords, 1)

	assert.Equal(t, http.StatusNoContent, do(t, srv, http.MethodDelete, "/api/keywords/"+kw, "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodDelete, "/api/keywords/"+kw, "").Code)
	assert.Equal(t, http.StatusNoContent, do(t, srv, http.MethodDelete, "/api/categories/"+id, "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodPut, "/api/categories/"+id, "name=x").Code)
}

func TestSyncJobsAPI(t *testing.T) {
	if _, err := os.Stat("/bin/bash"); err != nil {
		t.Skip("/bin/bash not available")
	}
	srv := newTestServer(t)

	rr := do(t, srv, http.MethodPost, "/api/sync-jobs", `{"script": "../etc/passwd"}`)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = do(t, srv, http.MethodPost, "/api/sync-jobs", `{"script": "sync.sh", "args": ["bank"]}`)
	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())
	job := decode[syncjobs.Job](t, rr)

	srv.svc.Jobs.(*syncjobs.Registry).Wait()

	rr = do(t, srv, http.MethodGet, "/api/sync-jobs/"+job.ID, "")
	require.Equal(t, http.StatusOK, rr.Code)
	got := decode[syncjobs.Job](t, rr)
	assert.False(t, got.Running)
	require.NotNil(t, got.ReturnCode)
	assert.Equal(t, 0, *got.ReturnCode)

	rr = do(t, srv, http.MethodGet, "/api/sync-jobs/"+job.ID+"/log", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, decode[syncjobs.LogTail](t, rr).Log, "synced bank")

	rr = do(t, srv, http.MethodGet, "/api/sync-jobs/"+job.ID+"/log?max_bytes=-1", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = do(t, srv, http.MethodGet, "/api/sync-jobs", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]syncjobs.Job](t, rr), 1)

	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodGet, "/api/sync-jobs/unknown", "").Code)
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
