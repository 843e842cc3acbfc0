package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"fintrack/internal/core"
)

// Automation is a stored recurring rule exactly as it sits in the table.
// Day, Start and End stay raw so that a malformed row can be reported and
// skipped by the caller rather than failing the whole listing.
type Automation struct {
	ID          int64
	Day         string
	Description string
	Amount      float64
	Category    string
	IsExpense   bool
	Start       sql.NullString
	End         sql.NullString
}

const automationColumns = `id, day, description, amount, category, is_expense, start, "end"`

// ListAutomations returns every stored rule ordered by id.
func (r *SQLiteRepository) ListAutomations(ctx context.Context) ([]Automation, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+automationColumns+` FROM automations ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list automations: %w", err)
	}
	defer rows.Close()

	var out []Automation
	for rows.Next() {
		a, err := scanAutomation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan automation: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// GetAutomation returns core.ErrNotFound when id is unknown.
func (r *SQLiteRepository) GetAutomation(ctx context.Context, id int64) (Automation, error) {
	a, err := scanAutomation(r.db.QueryRowContext(ctx, `SELECT `+automationColumns+` FROM automations WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Automation{}, core.ErrNotFound
	}
	if err != nil {
		return Automation{}, fmt.Errorf("get automation %d: %w", id, err)
	}
	return a, nil
}

// InsertAutomation stores a and returns its id.
func (r *SQLiteRepository) InsertAutomation(ctx context.Context, a Automation) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO automations (day, description, amount, category, is_expense, start, "end") VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.Day, a.Description, a.Amount, nullString(a.Category), boolToInt(a.IsExpense), a.Start, a.End)
	if err != nil {
		return 0, fmt.Errorf("insert automation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read inserted automation id: %w", err)
	}
	return id, nil
}

// UpdateAutomation overwrites the rule with a.ID, reporting whether it existed.
func (r *SQLiteRepository) UpdateAutomation(ctx context.Context, a Automation) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE automations SET day = ?, description = ?, amount = ?, category = ?, is_expense = ?, start = ?, "end" = ? WHERE id = ?`,
		a.Day, a.Description, a.Amount, nullString(a.Category), boolToInt(a.IsExpense), a.Start, a.End, a.ID)
	if err != nil {
		return false, fmt.Errorf("update automation %d: %w", a.ID, err)
	}
	return affected(res)
}

// DeleteAutomation removes the rule with id. Transactions it already
// produced are left untouched.
func (r *SQLiteRepository) DeleteAutomation(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM automations WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete automation %d: %w", id, err)
	}
	return affected(res)
}

func scanAutomation(s rowScanner) (Automation, error) {
	var (
		a           Automation
		day         sql.NullString
		description sql.NullString
		amount      sql.NullFloat64
		category    sql.NullString
		isExpense   sql.NullInt64
	)
	if err := s.Scan(&a.ID, &day, &description, &amount, &category, &isExpense, &a.Start, &a.End); err != nil {
		return Automation{}, err
	}
	a.Day = day.String
	a.Description = description.String
	a.Amount = amount.Float64
	a.Category = category.String
	a.IsExpense = !isExpense.Valid || isExpense.Int64 != 0
	return a, nil
}
