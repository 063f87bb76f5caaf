// Package model holds the run-scoped data types passed between the lookup,
// fetch, aggregation and sink stages.
package model

import (
	"fmt"
	"time"
)

// DateLayout is the ISO calendar date format used for PriceRow.Date.
const DateLayout = "2006-01-02"

// InstrumentRecord pairs a canonical instrument code with its market ticker.
type InstrumentRecord struct {
	Identifier string
	Symbol     string
}

// IdentifierMapping is the ordered resolver output. Order is resolution order.
type IdentifierMapping []InstrumentRecord

// PriceRow is one trading day of one symbol.
type PriceRow struct {
	Date     string
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   int64
	AdjClose float64
	Symbol   string
}

// PriceSeries is the ordered rows for a single symbol, oldest first.
type PriceSeries []PriceRow

// DateRange is a half-open [Start, End) range of calendar days.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// NewDateRange parses start as an ISO date and covers every day up to and
// including yesterday relative to now. Today is left out because providers
// do not reliably return complete same-day data. End is midnight UTC today.
func NewDateRange(start string, now time.Time) (DateRange, error) {
	s, err := time.Parse(DateLayout, start)
	if err != nil {
		return DateRange{}, fmt.Errorf("parse start date %q: %w", start, err)
	}

	y, m, d := now.UTC().Date()
	end := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	if !s.Before(end) {
		return DateRange{}, fmt.Errorf("start date %s is after yesterday (%s)", start, end.AddDate(0, 0, -1).Format(DateLayout))
	}

	return DateRange{Start: s, End: end}, nil
}

// Contains reports whether the calendar day of t falls within the range.
func (r DateRange) Contains(t time.Time) bool {
	y, m, d := t.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return !day.Before(r.Start) && day.Before(r.End)
}

// String renders the range with both ends inclusive, e.g. 2024-01-02..2024-01-05.
func (r DateRange) String() string {
	return r.Start.Format(DateLayout) + ".." + r.End.AddDate(0, 0, -1).Format(DateLayout)
}
