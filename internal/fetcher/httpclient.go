package fetcher

import (
	"log/slog"
	"time"

	"resty.dev/v3"
)

const (
	defaultTimeout = 30 * time.Second
	userAgent      = "Mozilla/5.0 (compatible; pricefetcher/1.0)"
)

// NewHTTPClient creates a client for a quote provider. Each request is a
// single attempt bounded by timeout; a zero timeout uses the default.
func NewHTTPClient(baseURL string, timeout time.Duration) *resty.Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", userAgent).
		SetRetryCount(0)
}

// CheckResponse turns a resty result into a classified FetchError, or nil
// when the request succeeded.
func CheckResponse(resp *resty.Response, err error) error {
	if err != nil {
		return ClassifyRequestError(err)
	}

	slog.Debug("quote request completed",
		"url", resp.Request.URL,
		"status_code", resp.StatusCode())

	if !resp.IsSuccess() {
		return ClassifyHTTPError(resp.StatusCode())
	}

	return nil
}
