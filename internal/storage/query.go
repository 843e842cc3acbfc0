package storage

import (
	"fmt"
	"strings"

	"fintrack/internal/core"
)

// filterColumns maps filter column names to SQL expressions. Anything outside
// this set is rejected so callers can never inject raw SQL.
var filterColumns = map[string]string{
	"id":          "id",
	"date":        "date",
	"description": "description",
	"amount":      "amount",
	"category":    "category",
	"is_expense":  "is_expense",
}

// buildWhere renders a filter into a WHERE clause and its bound arguments.
// Date parts compare as zero-padded strings against strftime output.
func buildWhere(f core.Filter) (string, []any, error) {
	clauses := []string{"1 = 1"}
	var args []any

	if !f.Total {
		if f.Year != 0 {
			clauses = append(clauses, "strftime('%Y', date) = ?")
			args = append(args, fmt.Sprintf("%04d", f.Year))
		}
		if f.Month != 0 {
			clauses = append(clauses, "strftime('%m', date) = ?")
			args = append(args, fmt.Sprintf("%02d", f.Month))
		}
		if f.Day != 0 {
			clauses = append(clauses, "strftime('%d', date) = ?")
			args = append(args, fmt.Sprintf("%02d", f.Day))
		}
	}

	for _, c := range f.Conditions {
		if c.Op == core.OpNone {
			clauses = append(clauses, "0 = 1")
			continue
		}

		col, ok := filterColumns[c.Column]
		if !ok {
			return "", nil, fmt.Errorf("unsupported filter column %q", c.Column)
		}

		switch c.Op {
		case core.OpEq:
			clauses = append(clauses, col+" = ?")
		case core.OpLike:
			clauses = append(clauses, col+" LIKE ?")
		case core.OpAbsEq:
			clauses = append(clauses, "ABS("+col+") = ?")
		default:
			return "", nil, fmt.Errorf("unsupported filter operator %q", c.Op)
		}
		args = append(args, c.Value)
	}

	return " WHERE " + strings.Join(clauses, " AND "), args, nil
}

// orderBy renders a normalized sort. id is the tie breaker so pagination
// through equal dates stays stable.
func orderBy(s core.Sort) string {
	s = core.NormalizeSort(s.Column, s.Direction)
	dir := string(s.Direction)
	clause := " ORDER BY " + filterColumns[s.Column] + " " + dir
	if s.Column != "id" {
		clause += ", id " + dir
	}
	return clause
}
