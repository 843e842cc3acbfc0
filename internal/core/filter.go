package core

// Operator is a comparison allowed in a filter Condition.
type Operator string

const (
	OpEq    Operator = "="
	OpLike  Operator = "LIKE"
	OpAbsEq Operator = "ABS="
	// OpNone matches nothing; used when a search term can never match.
	OpNone Operator = "NONE"
)

// Condition is an extra predicate on a transaction column.
type Condition struct {
	Column string
	Op     Operator
	Value  any
}

// Filter scopes ledger queries. Zero Year, Month or Day means the component
// is not constrained. Total disables the calendar constraints entirely.
type Filter struct {
	Year       int
	Month      int
	Day        int
	Total      bool
	Conditions []Condition
}

// With returns a copy of f with c appended.
func (f Filter) With(c Condition) Filter {
	out := f
	out.Conditions = append(append([]Condition(nil), f.Conditions...), c)
	return out
}

type SortDirection string

const (
	Asc  SortDirection = "ASC"
	Desc SortDirection = "DESC"
)

// Sort orders ledger queries.
type Sort struct {
	Column    string
	Direction SortDirection
}

var sortColumns = map[string]struct{}{
	"date":        {},
	"amount":      {},
	"description": {},
	"category":    {},
	"id":          {},
}

// NormalizeSort restricts column to the allow-list, falling back to date.
// Without an explicit direction, date sorts newest first and every other
// column ascending.
func NormalizeSort(column string, direction SortDirection) Sort {
	if _, ok := sortColumns[column]; !ok {
		column = "date"
	}
	switch direction {
	case Asc, Desc:
	default:
		direction = Asc
		if column == "date" {
			direction = Desc
		}
	}
	return Sort{Column: column, Direction: direction}
}

// Bucket is a grouped aggregate: a day, month or category and its sum.
type Bucket struct {
	Key   string
	Total Money
}
