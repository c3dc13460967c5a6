// Package filter holds user-selected document constraints and compiles
// them into a single boolean predicate string for the backend query layer.
package filter

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// DefaultSimilarityThreshold is the semantic ranking threshold a fresh
// filter state starts with.
const DefaultSimilarityThreshold = 0.8

// Columns names the backend columns the compiler emits predicates
// against. It is threaded explicitly so nothing hides in package state.
type Columns struct {
	Source string
	Date   string
	// SourceTerm is the token whose presence in a universe constraint
	// suppresses the selected source list. It is the logical field name
	// rather than the full column name, since stored universes refer to
	// the field both ways.
	SourceTerm string
}

// DefaultColumns returns the column set of the standard document schema.
func DefaultColumns() Columns {
	return Columns{
		Source:     "doctrove_source",
		Date:       "doctrove_primary_date",
		SourceTerm: "source",
	}
}

// State is an immutable filter snapshot. Update produces a new instance;
// existing ones are never mutated.
type State struct {
	// Universe is a free-form predicate that may subsume the structured
	// fields below. When it already references the source column, the
	// separately selected source list is suppressed during compilation.
	Universe            string
	Sources             []string
	YearRange           *[2]float64
	SearchText          string
	SimilarityThreshold float64
	LastUpdate          time.Time
}

// Update is a partial overlay for State. Nil fields leave the current
// value untouched.
type Update struct {
	Universe            *string
	Sources             *[]string
	YearRange           *[2]float64
	ClearYearRange      bool
	SearchText          *string
	SimilarityThreshold *float64
}

// New returns the default filter state: no constraints, default
// similarity threshold.
func New(now time.Time) State {
	return State{
		SimilarityThreshold: DefaultSimilarityThreshold,
		LastUpdate:          now,
	}
}

// Apply shallow-merges u over s and returns the result with a refreshed
// timestamp. s itself is left untouched.
func Apply(s State, u Update, now time.Time) State {
	next := s
	next.Sources = append([]string(nil), s.Sources...)
	if s.YearRange != nil {
		yr := *s.YearRange
		next.YearRange = &yr
	}

	if u.Universe != nil {
		next.Universe = *u.Universe
	}
	if u.Sources != nil {
		next.Sources = append([]string(nil), (*u.Sources)...)
	}
	if u.YearRange != nil {
		yr := *u.YearRange
		next.YearRange = &yr
	} else if u.ClearYearRange {
		next.YearRange = nil
	}
	if u.SearchText != nil {
		next.SearchText = *u.SearchText
	}
	if u.SimilarityThreshold != nil {
		next.SimilarityThreshold = *u.SimilarityThreshold
	}
	next.LastUpdate = now
	return next
}

// Valid reports whether s is a usable filter state: a year range, if
// present, spans start <= end, and the similarity threshold lies in
// [0, 1]. A nil state pointer is invalid.
func Valid(s *State) bool {
	if s == nil {
		return false
	}
	if s.YearRange != nil && s.YearRange[0] > s.YearRange[1] {
		return false
	}
	t := s.SimilarityThreshold
	if math.IsNaN(t) || t < 0 || t > 1 {
		return false
	}
	return true
}

// Compile builds the AND-joined boolean predicate for s against cols.
// Clause order is fixed: universe constraints first (parenthesized),
// then source inclusion, then the date interval. SearchText and
// SimilarityThreshold are semantic ranking parameters handled on the far
// side of the API boundary and never appear in the predicate. Returns
// the empty string when no clauses apply.
func Compile(s State, cols Columns) string {
	var clauses []string

	universe := strings.TrimSpace(s.Universe)
	if universe != "" {
		clauses = append(clauses, "("+universe+")")
	}

	// A universe constraint that already pins the source column silently
	// suppresses the selected source list, so the two cannot contradict.
	// The check is a case-insensitive substring match, which can
	// false-positive on unrelated text mentioning the term; kept as-is
	// for compatibility with existing stored universes.
	sourcePinned := universe != "" && cols.SourceTerm != "" &&
		strings.Contains(strings.ToLower(universe), strings.ToLower(cols.SourceTerm))
	if len(s.Sources) > 0 && !sourcePinned {
		quoted := make([]string, len(s.Sources))
		for i, src := range s.Sources {
			quoted[i] = "'" + strings.ReplaceAll(src, "'", "''") + "'"
		}
		clauses = append(clauses, fmt.Sprintf("%s IN (%s)", cols.Source, strings.Join(quoted, ", ")))
	}

	if s.YearRange != nil {
		start := yearToDate(s.YearRange[0])
		end := yearEndDate(s.YearRange[1])
		clauses = append(clauses, fmt.Sprintf("(%s >= '%s' AND %s <= '%s')",
			cols.Date, start, cols.Date, end))
	}

	return strings.Join(clauses, " AND ")
}

// yearToDate converts a possibly fractional year to an ISO date. The
// fractional part is scaled by the day count of that year (366 on leap
// years) and added to January 1.
func yearToDate(year float64) string {
	whole := math.Floor(year)
	frac := year - whole
	base := time.Date(int(whole), time.January, 1, 0, 0, 0, 0, time.UTC)
	if frac > 0 {
		days := int(frac * float64(daysInYear(int(whole))))
		base = base.AddDate(0, 0, days)
	}
	return base.Format("2006-01-02")
}

// yearEndDate maps a whole upper bound to December 31 so the interval is
// closed; fractional bounds convert the same way as the lower one.
func yearEndDate(year float64) string {
	if year == math.Floor(year) {
		return time.Date(int(year), time.December, 31, 0, 0, 0, 0, time.UTC).Format("2006-01-02")
	}
	return yearToDate(year)
}

func daysInYear(year int) int {
	if isLeapYear(year) {
		return 366
	}
	return 365
}

func isLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}
