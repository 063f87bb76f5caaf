package fetcher

import (
	"context"
	"fmt"

	"pricefetcher/internal/model"
)

// QuoteProvider is the interface every historical price source implements.
type QuoteProvider interface {
	// History returns the daily bars of symbol within r, in whichever
	// Frame shape the source naturally produces.
	History(ctx context.Context, symbol string, r model.DateRange) (Frame, error)

	// Key returns a hierarchical key identifying this provider for a symbol.
	// Format: fetcher:{source}:{symbol}
	// Examples:
	//   - fetcher:yahoo:AAPL
	//   - fetcher:alphavantage:MSFT
	Key(symbol string) string
}

// Fetcher retrieves and normalizes one instrument's price series.
type Fetcher struct {
	provider QuoteProvider
}

// New creates a Fetcher over the given provider.
func New(provider QuoteProvider) *Fetcher {
	return &Fetcher{provider: provider}
}

// Fetch makes a single attempt at the instrument's series. It never returns
// an error or panics; every failure is folded into the Outcome.
func (f *Fetcher) Fetch(ctx context.Context, inst model.InstrumentRecord, r model.DateRange) (out Outcome) {
	defer func() {
		if p := recover(); p != nil {
			out = Failed(inst, fmt.Errorf("%s: provider panicked: %v", f.provider.Key(inst.Symbol), p))
		}
	}()

	if inst.Symbol == "" {
		return Failed(inst, NewValidationError("empty symbol"))
	}

	frame, err := f.provider.History(ctx, inst.Symbol, r)
	if err != nil {
		return Failed(inst, fmt.Errorf("%s: %w", f.provider.Key(inst.Symbol), err))
	}

	series, err := Normalize(frame, inst.Symbol, r)
	if err != nil {
		return Failed(inst, fmt.Errorf("%s: %w", f.provider.Key(inst.Symbol), err))
	}

	return Succeeded(inst, series)
}
