package services

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/storage"
)

func newTestRepo(t *testing.T) *storage.SQLiteRepository {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func date(t *testing.T, s string) core.Date {
	t.Helper()
	d, err := core.ParseISODate(s)
	require.NoError(t, err)
	return d
}

func at(s string) time.Time {
	tm, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return tm.Add(10 * time.Hour)
}

func addRule(t *testing.T, repo *storage.SQLiteRepository, day, desc string, amount float64, category, start, end string) int64 {
	t.Helper()
	id, err := repo.InsertAutomation(context.Background(), storage.Automation{
		Day:         day,
		Description: desc,
		Amount:      amount,
		Category:    category,
		IsExpense:   true,
		Start:       sql.NullString{String: start, Valid: start != ""},
		End:         sql.NullString{String: end, Valid: end != ""},
	})
	require.NoError(t, err)
	return id
}

func allTransactions(t *testing.T, repo *storage.SQLiteRepository) []core.Transaction {
	t.Helper()
	txs, err := repo.QueryTransactions(context.Background(), core.Filter{Total: true}, core.Sort{Column: "date", Direction: core.Asc})
	require.NoError(t, err)
	return txs
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*amqp.LedgerEvent
}

func (p *recordingPublisher) Publish(_ context.Context, ev *amqp.LedgerEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) types() []amqp.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]amqp.EventType, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

type staticKeywords map[string][]string

func (s staticKeywords) CategoriesWithKeywords(context.Context) (map[string][]string, error) {
	return s, nil
}
