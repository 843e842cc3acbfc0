package services

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

// AutomationInput is a rule as entered by the user, every field as text.
type AutomationInput struct {
	Day         string
	Description string
	Amount      string
	Category    string
	IsExpense   string
	Start       string
	End         string
}

// AutomationPatch holds the fields of an update. Nil fields keep the stored
// value.
type AutomationPatch struct {
	Day         *string
	Description *string
	Amount      *string
	Category    *string
	IsExpense   *string
	Start       *string
	End         *string
}

// Apply overlays the set fields of p on base.
func (p AutomationPatch) Apply(base AutomationInput) AutomationInput {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&base.Day, p.Day)
	set(&base.Description, p.Description)
	set(&base.Amount, p.Amount)
	set(&base.Category, p.Category)
	set(&base.IsExpense, p.IsExpense)
	set(&base.Start, p.Start)
	set(&base.End, p.End)
	return base
}

// Automation is a stored rule as presented to callers.
type Automation struct {
	ID          int64   `json:"id"`
	Day         string  `json:"day"`
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
	Category    string  `json:"category"`
	IsExpense   bool    `json:"is_expense"`
	Start       string  `json:"start"`
	End         string  `json:"end"`
}

type AutomationService struct {
	storage     *storage.SQLiteRepository
	categorizer *Categorizer
}

func NewAutomationService(storage *storage.SQLiteRepository, categorizer *Categorizer) *AutomationService {
	return &AutomationService{storage: storage, categorizer: categorizer}
}

func (s *AutomationService) List(ctx context.Context) ([]Automation, error) {
	rows, err := s.storage.ListAutomations(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Automation, 0, len(rows))
	for _, r := range rows {
		out = append(out, automationFromRow(r))
	}
	return out, nil
}

func (s *AutomationService) Get(ctx context.Context, id int64) (Automation, error) {
	row, err := s.storage.GetAutomation(ctx, id)
	if err != nil {
		return Automation{}, err
	}
	return automationFromRow(row), nil
}

// Add validates in and stores it. An empty category is resolved from the
// description.
func (s *AutomationService) Add(ctx context.Context, in AutomationInput) (int64, error) {
	row, err := s.validate(ctx, in)
	if err != nil {
		return 0, err
	}

	id, err := s.storage.InsertAutomation(ctx, row)
	if err != nil {
		return 0, err
	}

	slog.InfoContext(ctx, "Automation created",
		"automation_id", id,
		"day", row.Day,
		"description", row.Description,
		"category", row.Category)

	return id, nil
}

// Update merges patch over the stored rule and validates the result as Add
// does. It returns core.ErrNotFound for an unknown id.
func (s *AutomationService) Update(ctx context.Context, id int64, patch AutomationPatch) error {
	existing, err := s.storage.GetAutomation(ctx, id)
	if err != nil {
		return err
	}

	row, err := s.validate(ctx, patch.Apply(inputFromRow(existing)))
	if err != nil {
		return err
	}
	row.ID = id

	ok, err := s.storage.UpdateAutomation(ctx, row)
	if err != nil {
		return err
	}
	if !ok {
		return core.ErrNotFound
	}

	slog.InfoContext(ctx, "Automation updated", "automation_id", id)
	return nil
}

// Delete reports whether a rule was removed.
func (s *AutomationService) Delete(ctx context.Context, id int64) (bool, error) {
	ok, err := s.storage.DeleteAutomation(ctx, id)
	if err != nil {
		return false, err
	}
	if ok {
		slog.InfoContext(ctx, "Automation deleted", "automation_id", id)
	}
	return ok, nil
}

func (s *AutomationService) validate(ctx context.Context, in AutomationInput) (storage.Automation, error) {
	verr := core.NewValidationError()

	var row storage.Automation

	day := strings.TrimSpace(in.Day)
	if day == "" {
		verr.Add("day", "day is required")
	} else if d, err := strconv.Atoi(day); err != nil || d < 1 || d > 31 {
		verr.Add("day", "day must be an integer (1-31)")
	} else {
		row.Day = strconv.Itoa(d)
	}

	row.Description = strings.TrimSpace(in.Description)
	if row.Description == "" {
		verr.Add("description", "description is required")
	}

	if strings.TrimSpace(in.Amount) == "" {
		verr.Add("amount", "amount is required")
	} else if m, err := core.ParseAmount(in.Amount); err != nil {
		verr.Add("amount", "amount must be numeric")
	} else {
		row.Amount = m.Abs().Float()
	}

	row.IsExpense = strings.TrimSpace(in.IsExpense) == "1"

	start, err := parseRuleDate(in.Start)
	switch {
	case err != nil:
		verr.Add("start", "start must be YYYY-MM-DD")
	case start.IsEmpty():
		verr.Add("start", "start is required")
	default:
		row.Start = sql.NullString{String: start.String(), Valid: true}
	}

	end, err := parseRuleDate(in.End)
	switch {
	case err != nil:
		verr.Add("end", "end must be YYYY-MM-DD")
	case !end.IsEmpty():
		if !start.IsEmpty() && end.Before(start.Time) {
			verr.Add("end", "end must not be before start")
		}
		row.End = sql.NullString{String: end.String(), Valid: true}
	}

	if err := verr.Err(); err != nil {
		return storage.Automation{}, err
	}

	row.Category = strings.TrimSpace(in.Category)
	if row.Category == "" {
		cat, err := s.categorizer.Resolve(ctx, row.Description)
		if err != nil {
			return storage.Automation{}, err
		}
		row.Category = cat
	}

	return row, nil
}

// parseRuleDate accepts an empty string (no date) or a real YYYY-MM-DD day.
func parseRuleDate(s string) (core.Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return core.Date{}, nil
	}
	if !core.IsStrictISODate(s) {
		return core.Date{}, core.ErrInvalidDateFormat
	}
	return core.ParseISODate(s)
}

func automationFromRow(r storage.Automation) Automation {
	return Automation{
		ID:          r.ID,
		Day:         r.Day,
		Description: r.Description,
		Amount:      r.Amount,
		Category:    r.Category,
		IsExpense:   r.IsExpense,
		Start:       r.Start.String,
		End:         r.End.String,
	}
}

func inputFromRow(r storage.Automation) AutomationInput {
	isExpense := "0"
	if r.IsExpense {
		isExpense = "1"
	}
	return AutomationInput{
		Day:         r.Day,
		Description: r.Description,
		Amount:      strconv.FormatFloat(r.Amount, 'f', -1, 64),
		Category:    r.Category,
		IsExpense:   isExpense,
		Start:       r.Start.String,
		End:         r.End.String,
	}
}

// ruleFromRow converts a stored row into a rule the materializer can walk.
// Rows that cannot be converted yield a *core.MalformedRecordError.
func ruleFromRow(r storage.Automation) (core.AutomationRule, error) {
	malformed := func(reason string) error {
		return &core.MalformedRecordError{ID: r.ID, Reason: reason}
	}

	day, err := strconv.Atoi(strings.TrimSpace(r.Day))
	if err != nil {
		return core.AutomationRule{}, malformed(fmt.Sprintf("day %q is not an integer", r.Day))
	}

	rule := core.AutomationRule{
		ID:          r.ID,
		DayOfMonth:  day,
		Description: r.Description,
		Amount:      core.MoneyFromFloat(r.Amount).Abs(),
		Category:    r.Category,
		IsExpense:   r.IsExpense,
	}

	if !r.Start.Valid || strings.TrimSpace(r.Start.String) == "" {
		return core.AutomationRule{}, malformed("missing start date")
	}
	if rule.StartDate, err = core.ParseISODate(r.Start.String); err != nil {
		return core.AutomationRule{}, malformed(fmt.Sprintf("start %q is not a date", r.Start.String))
	}

	if r.End.Valid && strings.TrimSpace(r.End.String) != "" {
		if rule.EndDate, err = core.ParseISODate(r.End.String); err != nil {
			return core.AutomationRule{}, malformed(fmt.Sprintf("end %q is not a date", r.End.String))
		}
	}

	if err := rule.Validate(); err != nil {
		return core.AutomationRule{}, malformed(err.Error())
	}
	return rule, nil
}
