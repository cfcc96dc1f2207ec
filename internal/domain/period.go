package domain

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Period identifies a calendar month, the column axis of every
// aggregation view. The wire format is "MM/YYYY".
type Period struct {
	Month time.Month
	Year  int
}

// ParsePeriod parses a "MM/YYYY" period key. Malformed keys are a
// validation error at the boundary; the aggregation engine itself never
// sees raw strings.
func ParsePeriod(s string) (Period, error) {
	parts := strings.Split(s, "/")
	if len(parts) != 2 || len(parts[0]) != 2 || len(parts[1]) != 4 {
		return Period{}, &ErrValidation{Field: "period", Message: fmt.Sprintf("expected MM/YYYY, got %q", s)}
	}
	month, err := strconv.Atoi(parts[0])
	if err != nil || month < 1 || month > 12 {
		return Period{}, &ErrValidation{Field: "period", Message: fmt.Sprintf("invalid month in %q", s)}
	}
	year, err := strconv.Atoi(parts[1])
	if err != nil || year < 1 {
		return Period{}, &ErrValidation{Field: "period", Message: fmt.Sprintf("invalid year in %q", s)}
	}
	return Period{Month: time.Month(month), Year: year}, nil
}

// String renders the period in its "MM/YYYY" wire format.
func (p Period) String() string {
	return fmt.Sprintf("%02d/%04d", int(p.Month), p.Year)
}

// Contains reports whether d falls inside the calendar month.
func (p Period) Contains(d time.Time) bool {
	return d.Year() == p.Year && d.Month() == p.Month
}

// Before orders periods chronologically: year major, month minor.
// Lexicographic ordering of the wire format would put 12/2024 after
// 01/2025, which is wrong.
func (p Period) Before(other Period) bool {
	if p.Year != other.Year {
		return p.Year < other.Year
	}
	return p.Month < other.Month
}

// PeriodOf returns the calendar month containing d.
func PeriodOf(d time.Time) Period {
	return Period{Month: d.Month(), Year: d.Year()}
}

// SortPeriods sorts periods chronologically in place.
func SortPeriods(periods []Period) {
	sort.Slice(periods, func(i, j int) bool { return periods[i].Before(periods[j]) })
}
