package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"fintrack/internal/core"
)

type Keyword struct {
	ID      int64  `json:"id"`
	Keyword string `json:"keyword"`
}

type Category struct {
	ID       int64     `json:"id"`
	Name     string    `json:"name"`
	Keywords []Keyword `json:"keywords"`
}

// ListCategories returns every category with its keywords, ordered by name.
func (r *SQLiteRepository) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT c.id, c.name, k.id, k.keyword
		FROM categories c
		LEFT JOIN category_keywords k ON k.category_id = c.id
		ORDER BY c.name, k.keyword`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []Category
	index := make(map[int64]int)
	for rows.Next() {
		var (
			id      int64
			name    string
			kwID    sql.NullInt64
			keyword sql.NullString
		)
		if err := rows.Scan(&id, &name, &kwID, &keyword); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		i, ok := index[id]
		if !ok {
			out = append(out, Category{ID: id, Name: name, Keywords: []Keyword{}})
			i = len(out) - 1
			index[id] = i
		}
		if kwID.Valid {
			out[i].Keywords = append(out[i].Keywords, Keyword{ID: kwID.Int64, Keyword: keyword.String})
		}
	}
	return out, rows.Err()
}

// CategoriesWithKeywords maps each category name to its keywords. Categories
// without keywords are included with an empty list.
func (r *SQLiteRepository) CategoriesWithKeywords(ctx context.Context) (map[string][]string, error) {
	cats, err := r.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]string, len(cats))
	for _, c := range cats {
		kws := make([]string, 0, len(c.Keywords))
		for _, k := range c.Keywords {
			kws = append(kws, k.Keyword)
		}
		out[c.Name] = kws
	}
	return out, nil
}

// AddCategory creates name if missing and returns its id either way.
func (r *SQLiteRepository) AddCategory(ctx context.Context, name string) (int64, error) {
	if _, err := r.db.ExecContext(ctx, `INSERT OR IGNORE INTO categories (name) VALUES (?)`, name); err != nil {
		return 0, fmt.Errorf("insert category %q: %w", name, err)
	}
	var id int64
	if err := r.db.QueryRowContext(ctx, `SELECT id FROM categories WHERE name = ?`, name).Scan(&id); err != nil {
		return 0, fmt.Errorf("lookup category %q: %w", name, err)
	}
	return id, nil
}

// RenameCategory renames the category and every transaction filed under the
// old name in one transaction.
func (r *SQLiteRepository) RenameCategory(ctx context.Context, id int64, name string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin rename: %w", err)
	}
	defer tx.Rollback()

	var old string
	err = tx.QueryRowContext(ctx, `SELECT name FROM categories WHERE id = ?`, id).Scan(&old)
	if errors.Is(err, sql.ErrNoRows) {
		return core.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("lookup category %d: %w", id, err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE categories SET name = ? WHERE id = ?`, name, id); err != nil {
		return fmt.Errorf("rename category %d: %w", id, err)
	}
	res, err := tx.ExecContext(ctx, `UPDATE expenses SET category = ? WHERE category = ?`, name, old)
	if err != nil {
		return fmt.Errorf("rename category on transactions: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit rename: %w", err)
	}

	moved, _ := res.RowsAffected()
	slog.InfoContext(ctx, "Category renamed", "id", id, "from", old, "to", name, "transactions", moved)
	return nil
}

// DeleteCategory removes the category and, through the foreign key, its
// keywords. Transactions keep their category text.
func (r *SQLiteRepository) DeleteCategory(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete category %d: %w", id, err)
	}
	return affected(res)
}

// AddKeyword attaches keyword to the category. It returns core.ErrNotFound
// when the category does not exist.
func (r *SQLiteRepository) AddKeyword(ctx context.Context, categoryID int64, keyword string) (int64, error) {
	var exists int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM categories WHERE id = ?`, categoryID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, core.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("lookup category %d: %w", categoryID, err)
	}

	res, err := r.db.ExecContext(ctx, `INSERT INTO category_keywords (category_id, keyword) VALUES (?, ?)`, categoryID, keyword)
	if err != nil {
		return 0, fmt.Errorf("insert keyword: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read inserted keyword id: %w", err)
	}
	return id, nil
}

func (r *SQLiteRepository) DeleteKeyword(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM category_keywords WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete keyword %d: %w", id, err)
	}
	return affected(res)
}
