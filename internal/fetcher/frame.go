package fetcher

import (
	"fmt"
	"time"

	"pricefetcher/internal/model"
)

// Frame is a provider response before normalization. It is one of
// *RecordFrame, where every row carries its own date, or *IndexedFrame,
// where dates are a positional index alongside parallel value columns.
type Frame interface {
	frame()
}

// Record is one row of a RecordFrame.
type Record struct {
	Date     string // ISO date, e.g. 2024-01-02
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   int64
	AdjClose float64
}

// RecordFrame is a response shape with an explicit date field per row.
type RecordFrame struct {
	Records []Record
}

// IndexedFrame is a response shape where the date is the row index.
// Every column must have len(Index) entries.
type IndexedFrame struct {
	Index    []time.Time
	Open     []float64
	High     []float64
	Low      []float64
	Close    []float64
	Volume   []int64
	AdjClose []float64
}

func (*RecordFrame) frame()  {}
func (*IndexedFrame) frame() {}

// Len returns the number of rows in the frame.
func (f *IndexedFrame) Len() int {
	return len(f.Index)
}

// Normalize resolves either frame shape into the canonical series for
// symbol, materializing an index as the Date column. Rows falling outside r
// are dropped. A successful result is never nil, even when empty.
func Normalize(f Frame, symbol string, r model.DateRange) (model.PriceSeries, error) {
	switch f := f.(type) {
	case *RecordFrame:
		if f == nil {
			break
		}
		return normalizeRecords(f, symbol, r)
	case *IndexedFrame:
		if f == nil {
			break
		}
		return normalizeIndexed(f, symbol, r)
	case nil:
		return nil, NewValidationError("provider returned no frame")
	default:
		return nil, NewValidationError(fmt.Sprintf("unsupported frame type %T", f))
	}
	return nil, NewValidationError("provider returned no frame")
}

func normalizeRecords(f *RecordFrame, symbol string, r model.DateRange) (model.PriceSeries, error) {
	series := make(model.PriceSeries, 0, len(f.Records))

	for i, rec := range f.Records {
		day, err := time.Parse(model.DateLayout, rec.Date)
		if err != nil {
			return nil, NewValidationError(fmt.Sprintf("row %d: invalid date %q", i, rec.Date))
		}
		if !r.Contains(day) {
			continue
		}
		series = append(series, model.PriceRow{
			Date:     rec.Date,
			Open:     rec.Open,
			High:     rec.High,
			Low:      rec.Low,
			Close:    rec.Close,
			Volume:   rec.Volume,
			AdjClose: rec.AdjClose,
			Symbol:   symbol,
		})
	}

	return series, nil
}

func normalizeIndexed(f *IndexedFrame, symbol string, r model.DateRange) (model.PriceSeries, error) {
	n := f.Len()
	columns := []struct {
		name string
		len  int
	}{
		{"open", len(f.Open)},
		{"high", len(f.High)},
		{"low", len(f.Low)},
		{"close", len(f.Close)},
		{"volume", len(f.Volume)},
		{"adjclose", len(f.AdjClose)},
	}
	for _, c := range columns {
		if c.len != n {
			return nil, NewValidationError(fmt.Sprintf("column %s has %d values for %d index entries", c.name, c.len, n))
		}
	}

	series := make(model.PriceSeries, 0, n)
	for i, ts := range f.Index {
		if !r.Contains(ts) {
			continue
		}
		series = append(series, model.PriceRow{
			Date:     ts.Format(model.DateLayout),
			Open:     f.Open[i],
			High:     f.High[i],
			Low:      f.Low[i],
			Close:    f.Close[i],
			Volume:   f.Volume[i],
			AdjClose: f.AdjClose[i],
			Symbol:   symbol,
		})
	}

	return series, nil
}
