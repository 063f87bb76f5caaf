// Package yahoo implements a quote provider over the Yahoo Finance chart API.
package yahoo

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/guregu/null/v6"
	"resty.dev/v3"

	"pricefetcher/internal/fetcher"
	"pricefetcher/internal/model"
	"pricefetcher/internal/ratelimit"
)

// ChartResponse is the top-level container
type ChartResponse struct {
	Chart struct {
		Result []ChartResult `json:"result"`
		Error  *ChartError   `json:"error"`
	} `json:"chart"`
}

// ChartError is reported in-band by the chart API.
type ChartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// ChartResult holds one symbol's bars. Timestamp is the row index; every
// indicator array runs parallel to it and may contain nulls.
type ChartResult struct {
	Meta struct {
		Symbol    string `json:"symbol"`
		GMTOffset int64  `json:"gmtoffset"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Open   []null.Float `json:"open"`
			High   []null.Float `json:"high"`
			Low    []null.Float `json:"low"`
			Close  []null.Float `json:"close"`
			Volume []null.Int   `json:"volume"`
		} `json:"quote"`
		AdjClose []struct {
			AdjClose []null.Float `json:"adjclose"`
		} `json:"adjclose"`
	} `json:"indicators"`
}

// ChartProvider fetches daily bars from the Yahoo chart endpoint
type ChartProvider struct {
	client  *resty.Client
	limiter *ratelimit.Limiter
}

// NewChartProvider creates a new Yahoo quote provider
func NewChartProvider(baseURL string, timeout time.Duration, limiter *ratelimit.Limiter) *ChartProvider {
	return &ChartProvider{
		client:  fetcher.NewHTTPClient(baseURL, timeout),
		limiter: limiter,
	}
}

// History retrieves daily bars for symbol in [r.Start, r.End). The chart API
// carries dates only as a timestamp index, so the result is an IndexedFrame.
func (p *ChartProvider) History(ctx context.Context, symbol string, r model.DateRange) (fetcher.Frame, error) {
	if err := p.limiter.Wait(ctx, ratelimit.APIYahoo); err != nil {
		return nil, fetcher.ClassifyRequestError(err)
	}

	var result ChartResponse

	resp, err := p.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"period1":              strconv.FormatInt(r.Start.Unix(), 10),
			"period2":              strconv.FormatInt(r.End.Unix(), 10),
			"interval":             "1d",
			"events":               "div,splits",
			"includeAdjustedClose": "true",
		}).
		SetResult(&result).
		Get("/v8/finance/chart/" + url.PathEscape(symbol))

	if err := fetcher.CheckResponse(resp, err); err != nil {
		return nil, err
	}

	if e := result.Chart.Error; e != nil {
		return nil, fetcher.NewValidationError(fmt.Sprintf("chart error for %s: %s: %s", symbol, e.Code, e.Description))
	}

	if len(result.Chart.Result) == 0 {
		return &fetcher.IndexedFrame{}, nil
	}

	return toIndexedFrame(result.Chart.Result[0])
}

// Key returns the hierarchical key for a symbol from this provider
func (p *ChartProvider) Key(symbol string) string {
	return fmt.Sprintf("fetcher:yahoo:%s", symbol)
}

// toIndexedFrame flattens the nested indicator arrays. Rows whose close is
// null are dropped; a missing adjusted close falls back to close and a
// missing volume to zero. Timestamps are shifted to exchange-local dates.
func toIndexedFrame(res ChartResult) (*fetcher.IndexedFrame, error) {
	n := len(res.Timestamp)
	frame := &fetcher.IndexedFrame{}
	if n == 0 {
		return frame, nil
	}

	if len(res.Indicators.Quote) == 0 {
		return nil, fetcher.NewValidationError("quote indicators missing")
	}
	q := res.Indicators.Quote[0]

	var adj []null.Float
	if len(res.Indicators.AdjClose) > 0 {
		adj = res.Indicators.AdjClose[0].AdjClose
	}

	for name, col := range map[string]int{
		"open":   len(q.Open),
		"high":   len(q.High),
		"low":    len(q.Low),
		"close":  len(q.Close),
		"volume": len(q.Volume),
	} {
		if col != n {
			return nil, fetcher.NewValidationError(fmt.Sprintf("indicator %s has %d values for %d timestamps", name, col, n))
		}
	}
	if adj != nil && len(adj) != n {
		return nil, fetcher.NewValidationError(fmt.Sprintf("indicator adjclose has %d values for %d timestamps", len(adj), n))
	}

	for i, ts := range res.Timestamp {
		if !q.Close[i].Valid {
			continue
		}
		closePrice := q.Close[i].ValueOrZero()

		adjClose := closePrice
		if adj != nil && adj[i].Valid {
			adjClose = adj[i].ValueOrZero()
		}

		frame.Index = append(frame.Index, time.Unix(ts+res.Meta.GMTOffset, 0).UTC())
		frame.Open = append(frame.Open, q.Open[i].ValueOrZero())
		frame.High = append(frame.High, q.High[i].ValueOrZero())
		frame.Low = append(frame.Low, q.Low[i].ValueOrZero())
		frame.Close = append(frame.Close, closePrice)
		frame.Volume = append(frame.Volume, q.Volume[i].ValueOrZero())
		frame.AdjClose = append(frame.AdjClose, adjClose)
	}

	return frame, nil
}
