package coordinator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"pricefetcher/internal/fetcher"
	"pricefetcher/internal/model"
)

// SeriesFetcher fetches one instrument's series. It must fold every failure
// into the returned Outcome.
type SeriesFetcher interface {
	Fetch(ctx context.Context, inst model.InstrumentRecord, r model.DateRange) fetcher.Outcome
}

// Summary counts what a run produced.
type Summary struct {
	Instruments int
	Succeeded   int
	Failed      int
	Rows        int
}

// Coordinator drives every instrument through the fetcher and merges the
// successful series into one table.
type Coordinator struct {
	fetcher     SeriesFetcher
	logger      *slog.Logger
	concurrency int
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger used for per-instrument notices.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// WithConcurrency allows up to n fetches in flight. Values below 1 mean 1.
func WithConcurrency(n int) Option {
	return func(c *Coordinator) {
		c.concurrency = max(n, 1)
	}
}

// New creates a new Coordinator with the given fetcher
func New(f SeriesFetcher, opts ...Option) *Coordinator {
	c := &Coordinator{
		fetcher:     f,
		logger:      slog.Default(),
		concurrency: 1,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run fetches every entry of mapping and returns the combined table.
//
// A failed instrument is logged and skipped; it never aborts the run. Rows
// are appended in mapping order whatever the concurrency, and each entry
// produces exactly one notice:
//   - Success: "price series appended" (identifier, symbol, rows)
//   - Failure: "price series fetch failed" (identifier, symbol, error)
//
// An empty mapping yields an empty table, not an error.
func (c *Coordinator) Run(ctx context.Context, mapping model.IdentifierMapping, r model.DateRange) (*model.CombinedTable, Summary) {
	start := time.Now()
	table := model.NewCombinedTable()
	summary := Summary{Instruments: len(mapping)}

	c.fetchAll(ctx, mapping, r, func(out fetcher.Outcome) {
		if !out.OK() {
			summary.Failed++
			c.logger.Warn("price series fetch failed",
				"identifier", out.Instrument.Identifier,
				"symbol", out.Instrument.Symbol,
				"retryable", fetcher.IsRetryable(out.Err),
				"error", out.Err,
			)
			return
		}

		table.Append(out.Series)
		summary.Succeeded++
		summary.Rows += len(out.Series)
		c.logger.Info("price series appended",
			"identifier", out.Instrument.Identifier,
			"symbol", out.Instrument.Symbol,
			"rows", len(out.Series),
		)
	})

	if summary.Instruments > 0 && summary.Rows == 0 {
		c.logger.Warn("no price rows fetched for any instrument",
			"instruments", summary.Instruments,
			"failed", summary.Failed,
			"range", r.String(),
		)
	}

	c.logger.Info("fetch cycle complete",
		"instruments", summary.Instruments,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"rows", summary.Rows,
		"duration", time.Since(start),
	)

	return table, summary
}

// fetchAll calls handle once per mapping entry, in mapping order, from the
// calling goroutine. With concurrency above 1 later entries may already be
// in flight while an earlier one is handled.
func (c *Coordinator) fetchAll(ctx context.Context, mapping model.IdentifierMapping, r model.DateRange, handle func(fetcher.Outcome)) {
	if c.concurrency == 1 {
		for _, inst := range mapping {
			handle(c.fetcher.Fetch(ctx, inst, r))
		}
		return
	}

	// One buffered slot per entry keeps arrival order independent of completion order.
	slots := make([]chan fetcher.Outcome, len(mapping))
	for i := range slots {
		slots[i] = make(chan fetcher.Outcome, 1)
	}

	// Semaphore for bounded concurrency.
	sem := make(chan struct{}, c.concurrency)
	var wg sync.WaitGroup

	for i, inst := range mapping {
		wg.Add(1)
		go func(slot chan<- fetcher.Outcome, inst model.InstrumentRecord) {
			defer wg.Done()

			// Acquire semaphore slot.
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				slot <- fetcher.Failed(inst, fetcher.ClassifyRequestError(ctx.Err()))
				return
			}

			slot <- c.fetcher.Fetch(ctx, inst, r)
		}(slots[i], inst)
	}

	for _, slot := range slots {
		handle(<-slot)
	}

	wg.Wait()
}
