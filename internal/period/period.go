// Package period resolves free-text period expressions ("2024", "6 2024",
// "2024-06-15", "total") into concrete calendar windows used to scope ledger
// queries.
package period

import (
	"strconv"
	"strings"
	"time"

	"fintrack/internal/core"
)

// Window is a resolved calendar filter. Zero Year, Month or Day means the
// component is absent.
type Window struct {
	Year  int
	Month int
	Day   int
	Total bool
}

// CurrentMonth returns the window covering the month of now.
func CurrentMonth(now time.Time) Window {
	return Window{Year: now.Year(), Month: int(now.Month())}
}

// Resolve parses expr. An empty expression yields all time when emptyMeansAll
// is set and the current month otherwise. Expressions that cannot be
// understood return a *core.ParseError; see ResolveOrFallback for the
// fallback policy used by the views.
func Resolve(expr string, emptyMeansAll bool, now time.Time) (Window, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		if emptyMeansAll {
			return Window{Total: true}, nil
		}
		return CurrentMonth(now), nil
	}

	switch strings.ToLower(expr) {
	case "all", "-", "total":
		return Window{Total: true}, nil
	}

	w, err := parse(expr, now)
	if err != nil {
		return Window{}, err
	}
	return sanitize(w, now), nil
}

// ResolveOrFallback resolves expr and falls back to the current month when it
// cannot be parsed.
func ResolveOrFallback(expr string, emptyMeansAll bool, now time.Time) Window {
	w, err := Resolve(expr, emptyMeansAll, now)
	if err != nil {
		return CurrentMonth(now)
	}
	return w
}

func parse(expr string, now time.Time) (Window, error) {
	if strings.Count(expr, "-") == 2 && !strings.ContainsAny(expr, " \t") {
		nums, err := atoiAll(expr, strings.Split(expr, "-"))
		if err != nil {
			return Window{}, err
		}
		return Window{Year: nums[0], Month: clampMonth(nums[1], now), Day: nums[2]}, nil
	}

	parts := strings.Fields(expr)
	switch len(parts) {
	case 1:
		return parseSingle(expr, parts[0], now)
	case 2:
		if isDigits(parts[1]) && len(parts[1]) == 4 {
			nums, err := atoiAll(expr, parts)
			if err != nil {
				return Window{}, err
			}
			return Window{Month: clampMonth(nums[0], now), Year: nums[1]}, nil
		}
		nums, err := atoiAll(expr, parts)
		if err != nil {
			return Window{}, err
		}
		return Window{Day: nums[0], Month: clampMonth(nums[1], now), Year: now.Year()}, nil
	case 3:
		nums, err := atoiAll(expr, parts)
		if err != nil {
			return Window{}, err
		}
		return Window{Day: nums[0], Month: clampMonth(nums[1], now), Year: nums[2]}, nil
	default:
		return Window{}, &core.ParseError{Input: expr, Reason: "too many parts"}
	}
}

func parseSingle(expr, p string, now time.Time) (Window, error) {
	switch {
	case isDigits(p) && len(p) == 4:
		y, _ := strconv.Atoi(p)
		return Window{Year: y}, nil
	case isDigits(p) && len(p) <= 2:
		m, _ := strconv.Atoi(p)
		return Window{Year: now.Year(), Month: clampMonth(m, now)}, nil
	case strings.Contains(p, "-"):
		ym := strings.Split(p, "-")
		if len(ym) != 2 || !isDigits(ym[0]) || !isDigits(ym[1]) {
			return Window{}, &core.ParseError{Input: expr, Reason: "expected YYYY-MM"}
		}
		y, _ := strconv.Atoi(ym[0])
		m, _ := strconv.Atoi(ym[1])
		return Window{Year: y, Month: clampMonth(m, now)}, nil
	default:
		return Window{}, &core.ParseError{Input: expr, Reason: "unrecognized period"}
	}
}

// clampMonth replaces a parsed month outside 1..12, zero included, with the
// current month. Month 0 in a Window means "no month", so the clamp happens
// here where the token is known to exist.
func clampMonth(m int, now time.Time) int {
	if m < 1 || m > 12 {
		return int(now.Month())
	}
	return m
}

// sanitize drops a day that does not exist in the resolved month.
func sanitize(w Window, now time.Time) Window {
	if w.Day != 0 {
		year, month := w.Year, w.Month
		if year == 0 {
			year = now.Year()
		}
		if month == 0 {
			month = 1
		}
		if !core.IsValidCalendarDate(year, month, w.Day) {
			w.Day = 0
		}
	}
	return w
}

func atoiAll(expr string, parts []string) ([]int, error) {
	nums := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, &core.ParseError{Input: expr, Reason: "not a number: " + p}
		}
		nums[i] = n
	}
	return nums, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Label renders the window for display, e.g. "15 June 2024", "June 2024",
// "2024" or "total duration". A window without a year is labelled with the
// current year.
func (w Window) Label(now time.Time) string {
	if w.Total {
		return "total duration"
	}
	var parts []string
	if w.Day != 0 {
		parts = append(parts, strconv.Itoa(w.Day))
	}
	if w.Month >= 1 && w.Month <= 12 {
		parts = append(parts, time.Month(w.Month).String())
	}
	year := w.Year
	if year == 0 {
		year = now.Year()
	}
	parts = append(parts, strconv.Itoa(year))
	return strings.Join(parts, " ")
}

// Filter converts the window into a ledger filter.
func (w Window) Filter() core.Filter {
	if w.Total {
		return core.Filter{Total: true}
	}
	return core.Filter{Year: w.Year, Month: w.Month, Day: w.Day}
}

func twoDigits(n int) string {
	if n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}
