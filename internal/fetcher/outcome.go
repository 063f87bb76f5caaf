package fetcher

import "pricefetcher/internal/model"

// Outcome is the result of fetching one instrument: either a series or a
// failure cause, never both.
type Outcome struct {
	// Instrument is the record the fetch was made for.
	Instrument model.InstrumentRecord

	// Series holds the normalized rows. It may be empty on success.
	Series model.PriceSeries

	// Err is the failure cause. If Err is not nil, Series is nil.
	Err error
}

// Succeeded builds a success outcome.
func Succeeded(inst model.InstrumentRecord, series model.PriceSeries) Outcome {
	return Outcome{Instrument: inst, Series: series}
}

// Failed builds a failure outcome.
func Failed(inst model.InstrumentRecord, err error) Outcome {
	return Outcome{Instrument: inst, Err: err}
}

// OK reports whether the fetch succeeded.
func (o Outcome) OK() bool {
	return o.Err == nil
}
