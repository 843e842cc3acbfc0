package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"fintrack/internal/core"
)

const transactionColumns = "id, date, description, amount, category, is_expense"

// InsertTransaction stores t and returns its new id. The amount is written
// with its sign, negative for expenses.
func (r *SQLiteRepository) InsertTransaction(ctx context.Context, t core.Transaction) (int64, error) {
	id, err := insertTransaction(ctx, r.db, t)
	if err != nil {
		return 0, err
	}

	slog.InfoContext(ctx, "Transaction saved",
		"id", id,
		"date", t.Date.String(),
		"description", t.Description,
		"amount", t.Amount.String(),
		"category", t.Category)

	return id, nil
}

func insertTransaction(ctx context.Context, q queryer, t core.Transaction) (int64, error) {
	res, err := q.ExecContext(ctx,
		`INSERT INTO expenses (date, description, amount, category, is_expense) VALUES (?, ?, ?, ?, ?)`,
		t.Date.String(), t.Description, t.Amount.Float(), nullString(t.Category), boolToInt(t.IsExpense))
	if err != nil {
		return 0, fmt.Errorf("insert transaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read inserted transaction id: %w", err)
	}
	return id, nil
}

// UpdateTransaction overwrites every column of the row with t.ID. It reports
// false when no such row exists.
func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, t core.Transaction) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE expenses SET date = ?, description = ?, amount = ?, category = ?, is_expense = ? WHERE id = ?`,
		t.Date.String(), t.Description, t.Amount.Float(), nullString(t.Category), boolToInt(t.IsExpense), t.ID)
	if err != nil {
		return false, fmt.Errorf("update transaction %d: %w", t.ID, err)
	}
	return affected(res)
}

// DeleteTransaction removes the row with id, reporting whether it existed.
func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM expenses WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete transaction %d: %w", id, err)
	}
	return affected(res)
}

// GetTransaction returns core.ErrNotFound when id is unknown.
func (r *SQLiteRepository) GetTransaction(ctx context.Context, id int64) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM expenses WHERE id = ?`, id)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, core.ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction %d: %w", id, err)
	}
	return t, nil
}

// QueryTransactions lists the rows matching f in the order given by s.
func (r *SQLiteRepository) QueryTransactions(ctx context.Context, f core.Filter, s core.Sort) ([]core.Transaction, error) {
	where, args, err := buildWhere(f)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `SELECT `+transactionColumns+` FROM expenses`+where+orderBy(s), args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// SumTransactions returns the signed sum of amounts matching f.
func (r *SQLiteRepository) SumTransactions(ctx context.Context, f core.Filter) (core.Money, error) {
	where, args, err := buildWhere(f)
	if err != nil {
		return core.Money{}, err
	}

	var total sql.NullFloat64
	if err := r.db.QueryRowContext(ctx, `SELECT SUM(amount) FROM expenses`+where, args...).Scan(&total); err != nil {
		return core.Money{}, fmt.Errorf("sum transactions: %w", err)
	}
	return core.MoneyFromFloat(total.Float64), nil
}

// SumByDay groups matching rows by calendar date, oldest first.
func (r *SQLiteRepository) SumByDay(ctx context.Context, f core.Filter) ([]core.Bucket, error) {
	return r.sumGrouped(ctx, f, "date(date)", " ORDER BY key ASC", 0)
}

// SumByMonth groups matching rows by YYYY-MM, oldest first.
func (r *SQLiteRepository) SumByMonth(ctx context.Context, f core.Filter) ([]core.Bucket, error) {
	return r.sumGrouped(ctx, f, "strftime('%Y-%m', date)", " ORDER BY key ASC", 0)
}

// SumByCategory groups matching rows by category, largest magnitude first.
// Rows without a category are reported under "(none)". A limit of zero
// returns every group.
func (r *SQLiteRepository) SumByCategory(ctx context.Context, f core.Filter, limit int) ([]core.Bucket, error) {
	return r.sumGrouped(ctx, f, "COALESCE(category, '(none)')", " ORDER BY ABS(SUM(amount)) DESC, key ASC", limit)
}

func (r *SQLiteRepository) sumGrouped(ctx context.Context, f core.Filter, keyExpr, order string, limit int) ([]core.Bucket, error) {
	where, args, err := buildWhere(f)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + keyExpr + ` AS key, SUM(amount) FROM expenses` + where + ` GROUP BY key` + order
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("group transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Bucket
	for rows.Next() {
		var key sql.NullString
		var total sql.NullFloat64
		if err := rows.Scan(&key, &total); err != nil {
			return nil, fmt.Errorf("scan bucket: %w", err)
		}
		out = append(out, core.Bucket{Key: key.String, Total: core.MoneyFromFloat(total.Float64)})
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(s rowScanner) (core.Transaction, error) {
	var (
		t           core.Transaction
		date        sql.NullString
		description sql.NullString
		amount      sql.NullFloat64
		category    sql.NullString
		isExpense   sql.NullInt64
	)
	if err := s.Scan(&t.ID, &date, &description, &amount, &category, &isExpense); err != nil {
		return core.Transaction{}, err
	}

	if date.Valid {
		d, err := core.ParseISODate(firstN(date.String, 10))
		if err != nil {
			slog.Warn("Transaction has unreadable date", "id", t.ID, "date", date.String)
		} else {
			t.Date = d
		}
	}
	t.Description = description.String
	t.Amount = core.MoneyFromFloat(amount.Float64)
	t.Category = category.String
	t.IsExpense = isExpense.Int64 != 0
	return t, nil
}

func firstN(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}
