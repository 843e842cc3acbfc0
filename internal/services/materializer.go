package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/storage"
)

// MaterializeResult counts what one run did. Existing is the number of
// occurrences already present in the ledger.
type MaterializeResult struct {
	Created  int `json:"created"`
	Existing int `json:"existing"`
	Skipped  int `json:"skipped"`
}

// Materializer projects automation rules into ledger transactions, one per
// month between each rule's start and its end (or today). Runs are
// idempotent: an occurrence already present with the same date, category
// and description is never inserted twice.
type Materializer struct {
	storage     *storage.SQLiteRepository
	categorizer *Categorizer
	publisher   EventPublisher

	// Serializes runs within the process. Two processes sharing the
	// database can still race between the existence check and the insert.
	mu sync.Mutex
}

func NewMaterializer(storage *storage.SQLiteRepository, categorizer *Categorizer, publisher EventPublisher) *Materializer {
	return &Materializer{
		storage:     storage,
		categorizer: categorizer,
		publisher:   publisher,
	}
}

// Run materializes every stored rule as of now. Malformed rules are logged
// and skipped. A rule that fails while inserting is rolled back on its own;
// the others are still committed.
func (m *Materializer) Run(ctx context.Context, now time.Time) (MaterializeResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var res MaterializeResult

	rows, err := m.storage.ListAutomations(ctx)
	if err != nil {
		return res, fmt.Errorf("list automations: %w", err)
	}
	if len(rows) == 0 {
		return res, nil
	}

	keywords, err := m.categorizer.Load(ctx)
	if err != nil {
		return res, err
	}

	batch, err := m.storage.BeginBatch(ctx)
	if err != nil {
		return res, err
	}
	defer batch.Rollback()

	today := core.DateOf(now)

	for _, row := range rows {
		rule, err := ruleFromRow(row)
		if err != nil {
			var malformed *core.MalformedRecordError
			if errors.As(err, &malformed) {
				slog.WarnContext(ctx, "Skipping malformed automation",
					"automation_id", malformed.ID,
					"reason", malformed.Reason)
			}
			res.Skipped++
			continue
		}

		created, existing, err := m.materializeRule(ctx, batch, rule, keywords, today)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to materialize automation",
				"automation_id", rule.ID,
				"description", rule.Description,
				"error", err)
			res.Skipped++
			continue
		}
		res.Created += created
		res.Existing += existing
	}

	if err := batch.Commit(); err != nil {
		return MaterializeResult{}, err
	}

	slog.InfoContext(ctx, "Automation materialization complete",
		"rules", len(rows),
		"created", res.Created,
		"existing", res.Existing,
		"skipped", res.Skipped)

	if res.Created > 0 {
		publish(ctx, m.publisher, amqp.NewMaterializedEvent(res.Created, res.Skipped))
	}

	return res, nil
}

// materializeRule inserts the missing occurrences of rule inside its own
// savepoint so a failure discards only this rule's rows.
func (m *Materializer) materializeRule(ctx context.Context, batch *storage.Batch, rule core.AutomationRule, keywords Keywords, today core.Date) (created, existing int, err error) {
	end := rule.EndDate
	if end.IsEmpty() {
		end = today
	}

	dates := occurrences(rule.DayOfMonth, rule.StartDate, end)
	if len(dates) == 0 {
		return 0, 0, nil
	}

	category := rule.Category
	if category == "" {
		category = keywords.Match(rule.Description)
	}

	savepoint := fmt.Sprintf("automation_%d", rule.ID)
	if err := batch.Savepoint(ctx, savepoint); err != nil {
		return 0, 0, err
	}

	for _, d := range dates {
		found, err := batch.TransactionExists(ctx, d, category, rule.Description)
		if err != nil {
			return 0, 0, rollbackRule(ctx, batch, savepoint, err)
		}
		if found {
			existing++
			continue
		}

		_, err = batch.InsertTransaction(ctx, core.Transaction{
			Date:        d,
			Description: rule.Description,
			Amount:      rule.Amount.Signed(rule.IsExpense),
			Category:    category,
			IsExpense:   rule.IsExpense,
		})
		if err != nil {
			return 0, 0, rollbackRule(ctx, batch, savepoint, err)
		}
		created++
	}

	if err := batch.Release(ctx, savepoint); err != nil {
		return 0, 0, err
	}

	if created > 0 {
		slog.InfoContext(ctx, "Materialized automation",
			"automation_id", rule.ID,
			"description", rule.Description,
			"created", created,
			"existing", existing)
	}
	return created, existing, nil
}

func rollbackRule(ctx context.Context, batch *storage.Batch, savepoint string, cause error) error {
	if err := batch.RollbackTo(ctx, savepoint); err != nil {
		return errors.Join(cause, err)
	}
	return cause
}

// occurrences lists the monthly dates of a rule firing on day between start
// and end inclusive. Days past the end of a month fall on its last day.
func occurrences(day int, start, end core.Date) []core.Date {
	if end.Before(start.Time) {
		return nil
	}

	year, month := start.Year(), start.Month()
	var current core.Date
	for {
		if core.FirstOfMonth(year, month).After(end.Time) {
			return nil
		}
		current = core.ClampToValidDay(year, month, day)
		if !current.Before(start.Time) {
			break
		}
		year, month = core.NextMonth(current)
	}

	var out []core.Date
	for !current.After(end.Time) {
		out = append(out, current)
		year, month = core.NextMonth(current)
		current = core.ClampToValidDay(year, month, day)
	}
	return out
}
