package alphavantage

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"resty.dev/v3"

	"pricefetcher/internal/fetcher"
	"pricefetcher/internal/model"
	"pricefetcher/internal/ratelimit"
)

// DailyBar is one entry of the "Time Series (Daily)" object.
type DailyBar struct {
	Open          string `json:"1. open"`
	High          string `json:"2. high"`
	Low           string `json:"3. low"`
	Close         string `json:"4. close"`
	AdjustedClose string `json:"5. adjusted close"`
	Volume        string `json:"6. volume"`
}

// DailyAdjustedResponse represents the AlphaVantage TIME_SERIES_DAILY_ADJUSTED response
type DailyAdjustedResponse struct {
	MetaData struct {
		Symbol        string `json:"2. Symbol"`
		LastRefreshed string `json:"3. Last Refreshed"`
	} `json:"Meta Data"`
	TimeSeries map[string]DailyBar `json:"Time Series (Daily)"`

	// AlphaVantage reports errors and throttling with HTTP 200 and one of these
	ErrorMessage string `json:"Error Message"`
	Note         string `json:"Note"`
	Information  string `json:"Information"`
}

// StockProvider fetches daily adjusted prices from AlphaVantage
type StockProvider struct {
	apiKey  string
	client  *resty.Client
	limiter *ratelimit.Limiter
}

// NewStockProvider creates a new AlphaVantage quote provider
func NewStockProvider(apiKey, baseURL string, timeout time.Duration, limiter *ratelimit.Limiter) *StockProvider {
	return &StockProvider{
		apiKey:  apiKey,
		client:  fetcher.NewHTTPClient(baseURL, timeout),
		limiter: limiter,
	}
}

// History retrieves the full daily adjusted series for symbol. Every bar
// carries its date, so the result is a RecordFrame in ascending date order;
// trimming to r happens during normalization.
func (p *StockProvider) History(ctx context.Context, symbol string, r model.DateRange) (fetcher.Frame, error) {
	if err := p.limiter.Wait(ctx, ratelimit.APIAlphaVantage); err != nil {
		return nil, fetcher.ClassifyRequestError(err)
	}

	var result DailyAdjustedResponse

	resp, err := p.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"apikey":     p.apiKey,
			"function":   "TIME_SERIES_DAILY_ADJUSTED",
			"symbol":     symbol,
			"outputsize": "full",
		}).
		SetResult(&result).
		Get("")

	if err := fetcher.CheckResponse(resp, err); err != nil {
		return nil, err
	}

	switch {
	case result.ErrorMessage != "":
		return nil, fetcher.NewClientError(resp.StatusCode(), result.ErrorMessage)
	case result.Note != "":
		return nil, fetcher.NewRateLimitError(resp.StatusCode())
	case result.TimeSeries == nil && result.Information != "":
		return nil, fetcher.NewClientError(resp.StatusCode(), result.Information)
	case result.TimeSeries == nil:
		return nil, fetcher.NewValidationError(fmt.Sprintf("time series not found in response for %s", symbol))
	}

	return toRecordFrame(result.TimeSeries, r)
}

// Key returns the hierarchical key for a symbol from this provider
func (p *StockProvider) Key(symbol string) string {
	return fmt.Sprintf("fetcher:alphavantage:%s", symbol)
}

// toRecordFrame parses the bars dated within r. A full history reaches back
// decades, so bars outside r are skipped unparsed.
func toRecordFrame(series map[string]DailyBar, r model.DateRange) (*fetcher.RecordFrame, error) {
	first, end := r.Start.Format(model.DateLayout), r.End.Format(model.DateLayout)

	dates := make([]string, 0, len(series))
	for d := range series {
		// ISO dates compare lexically
		if d < first || d >= end {
			continue
		}
		dates = append(dates, d)
	}
	sort.Strings(dates)

	frame := &fetcher.RecordFrame{Records: make([]fetcher.Record, 0, len(dates))}
	for _, d := range dates {
		rec, err := parseBar(d, series[d])
		if err != nil {
			return nil, err
		}
		frame.Records = append(frame.Records, rec)
	}

	return frame, nil
}

func parseBar(date string, bar DailyBar) (fetcher.Record, error) {
	rec := fetcher.Record{Date: date}

	fields := []struct {
		name string
		raw  string
		dst  *float64
	}{
		{"open", bar.Open, &rec.Open},
		{"high", bar.High, &rec.High},
		{"low", bar.Low, &rec.Low},
		{"close", bar.Close, &rec.Close},
		{"adjusted close", bar.AdjustedClose, &rec.AdjClose},
	}
	for _, f := range fields {
		v, err := strconv.ParseFloat(f.raw, 64)
		if err != nil {
			return fetcher.Record{}, fetcher.NewValidationError(fmt.Sprintf("%s: failed to parse %s %q", date, f.name, f.raw))
		}
		*f.dst = v
	}

	volume, err := strconv.ParseInt(bar.Volume, 10, 64)
	if err != nil {
		return fetcher.Record{}, fetcher.NewValidationError(fmt.Sprintf("%s: failed to parse volume %q", date, bar.Volume))
	}
	rec.Volume = volume

	return rec, nil
}
