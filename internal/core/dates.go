package core

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidDateFormat is returned when free-text date input has an
// unsupported shape or an out-of-range component.
var ErrInvalidDateFormat = errors.New("invalid date format")

var strictISODate = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// DaysIn returns the number of days in the given month.
func DaysIn(year, month int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// ClampToValidDay projects day onto (year, month). A day past the end of the
// month becomes the month's last day, so day 31 in February 2024 is 2024-02-29.
func ClampToValidDay(year, month, day int) Date {
	if last := DaysIn(year, month); day > last {
		day = last
	}
	if day < 1 {
		day = 1
	}
	return NewDate(year, month, day)
}

// FirstOfMonth returns the first calendar day of (year, month).
func FirstOfMonth(year, month int) Date {
	return NewDate(year, month, 1)
}

// NextMonth returns the year and month following the month of d.
func NextMonth(d Date) (int, int) {
	next := FirstOfMonth(d.Year(), d.Month()).AddDate(0, 1, 0)
	return next.Year(), int(next.Month())
}

// IsValidCalendarDate reports whether (year, month, day) names a real day.
func IsValidCalendarDate(year, month, day int) bool {
	if month < 1 || month > 12 || day < 1 {
		return false
	}
	return day <= DaysIn(year, month)
}

// IsStrictISODate checks the YYYY-MM-DD shape only. It does not check that
// the day exists: 2024-02-31 passes.
func IsStrictISODate(s string) bool {
	return strictISODate.MatchString(s)
}

// ParseFreeformDate accepts "" (today), "D" (day of the current month),
// "D M" (current year) or "D M Y".
func ParseFreeformDate(input string, now time.Time) (Date, error) {
	fields := strings.Fields(input)
	year, month := now.Year(), int(now.Month())

	var day int
	switch len(fields) {
	case 0:
		return DateOf(now), nil
	case 1, 2, 3:
		nums := make([]int, len(fields))
		for i, f := range fields {
			n, err := strconv.Atoi(f)
			if err != nil {
				return Date{}, ErrInvalidDateFormat
			}
			nums[i] = n
		}
		day = nums[0]
		if len(nums) > 1 {
			month = nums[1]
		}
		if len(nums) > 2 {
			year = nums[2]
		}
	default:
		return Date{}, ErrInvalidDateFormat
	}

	if year < 1 || !IsValidCalendarDate(year, month, day) {
		return Date{}, ErrInvalidDateFormat
	}
	return NewDate(year, month, day), nil
}
