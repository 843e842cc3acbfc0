package core

import (
	"errors"
	"strings"
	"time"
)

const isoLayout = "2006-01-02"

type (
	Date struct {
		time.Time
	}

	// Money is a signed amount in cents. Negative values are expenses.
	Money struct {
		Cents int64
	}

	Transaction struct {
		ID          int64
		Date        Date
		Description string
		Amount      Money
		Category    string
		IsExpense   bool
	}

	// AutomationRule is a recurring transaction template fired once per month
	// on DayOfMonth between StartDate and EndDate. A zero EndDate means the
	// rule runs through today.
	AutomationRule struct {
		ID          int64
		DayOfMonth  int
		Description string
		Amount      Money // magnitude, sign is derived from IsExpense
		Category    string
		IsExpense   bool
		StartDate   Date
		EndDate     Date
	}
)

var (
	ErrInvalidDay       = errors.New("invalid day")
	ErrInvalidMonth     = errors.New("invalid month")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyDescription = errors.New("empty description")
)

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

// String formats the date as YYYY-MM-DD, the layout used for storage.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(isoLayout)
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// ParseISODate parses a YYYY-MM-DD string into a real calendar date.
// Unlike IsStrictISODate it rejects days that do not exist (2024-02-31).
func ParseISODate(s string) (Date, error) {
	t, err := time.Parse(isoLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDateFormat
	}
	return Date{Time: t}, nil
}

// IsEmpty returns true if the date is zero (for optional dates)
func (d Date) IsEmpty() bool {
	return d.IsZero()
}

// Signed returns the amount with the ledger sign convention applied:
// negative for expenses, positive for income.
func (m Money) Signed(isExpense bool) Money {
	abs := m.Abs()
	if isExpense {
		return Money{Cents: -abs.Cents}
	}
	return abs
}

func (m Money) Abs() Money {
	if m.Cents < 0 {
		return Money{Cents: -m.Cents}
	}
	return m
}

// Validate reports whether the rule can be materialized. Rules failing it are
// skipped by the materializer rather than aborting the run.
func (r AutomationRule) Validate() error {
	if r.DayOfMonth < 1 || r.DayOfMonth > 31 {
		return ErrInvalidDay
	}
	if err := r.StartDate.Validate(); err != nil {
		return errors.New("invalid start date: " + err.Error())
	}
	if !r.EndDate.IsZero() && r.EndDate.Before(r.StartDate.Time) {
		return errors.New("end date before start date")
	}
	return nil
}
