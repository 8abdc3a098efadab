package core

import "fmt"

// TimeRange is a year or year-month span. A nil month means "whole year" on
// that boundary: the start expands to January, the end to December. Ranges
// built from user input go through Validate before they reach the index.
type TimeRange struct {
	StartYear  int
	EndYear    int
	StartMonth *int
	EndMonth   *int
}

// YearRange builds a range at year granularity.
func YearRange(start, end int) TimeRange {
	return TimeRange{StartYear: start, EndYear: end}
}

// MonthRange builds a range at year-month granularity.
func MonthRange(startYear, startMonth, endYear, endMonth int) TimeRange {
	return TimeRange{
		StartYear:  startYear,
		EndYear:    endYear,
		StartMonth: &startMonth,
		EndMonth:   &endMonth,
	}
}

// startKey and endKey flatten the range onto a month number line using the
// January/December expansion, so that overlap reduces to interval arithmetic
// and stays symmetric. A range without months covers Jan..Dec, which makes
// year-only comparison fall out of the same formula.
func (tr TimeRange) startKey() int {
	m := 1
	if tr.StartMonth != nil {
		m = *tr.StartMonth
	}
	return tr.StartYear*12 + m - 1
}

func (tr TimeRange) endKey() int {
	m := 12
	if tr.EndMonth != nil {
		m = *tr.EndMonth
	}
	return tr.EndYear*12 + m - 1
}

// Overlaps reports whether the two ranges share at least one month.
// Boundary-inclusive: [2000,2010] overlaps [2010,2020].
func (tr TimeRange) Overlaps(o TimeRange) bool {
	return tr.startKey() <= o.endKey() && tr.endKey() >= o.startKey()
}

// Validate rejects inverted or out-of-bounds ranges with ErrValidation.
func (tr TimeRange) Validate() error {
	if tr.StartYear > tr.EndYear {
		return fmt.Errorf("%w: start year %d after end year %d", ErrValidation, tr.StartYear, tr.EndYear)
	}
	for _, m := range []*int{tr.StartMonth, tr.EndMonth} {
		if m != nil && (*m < 1 || *m > 12) {
			return fmt.Errorf("%w: month %d out of range", ErrValidation, *m)
		}
	}
	if tr.startKey() > tr.endKey() {
		return fmt.Errorf("%w: range starts after it ends", ErrValidation)
	}
	return nil
}
