package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// API represents the different external APIs we interact with
type API string

const (
	// APIYahoo represents the Yahoo Finance chart API
	APIYahoo API = "yahoo"
	// APIAlphaVantage represents the AlphaVantage API
	APIAlphaVantage API = "alphavantage"
)

// DefaultLimits are conservative production rates per API.
var DefaultLimits = map[API]rate.Limit{
	// Yahoo has no published limit; 2 requests per second stays well clear of throttling
	APIYahoo: rate.Limit(2),
	// AlphaVantage: 5 requests per minute on free tier = 1 request every 12 seconds
	APIAlphaVantage: rate.Limit(1.0 / 12.0),
}

// Limiter manages rate limits for different APIs
type Limiter struct {
	limiters map[API]*rate.Limiter
	mu       sync.RWMutex
}

// New creates a Limiter with a burst of 1 per API. APIs missing from limits
// are not limited.
func New(limits map[API]rate.Limit) *Limiter {
	l := &Limiter{
		limiters: make(map[API]*rate.Limiter, len(limits)),
	}
	for api, limit := range limits {
		l.limiters[api] = rate.NewLimiter(limit, 1)
	}
	return l
}

// Unlimited returns a Limiter that never blocks.
func Unlimited() *Limiter {
	return New(nil)
}

// SetLimit changes the rate for api, adding a limiter if none exists.
func (l *Limiter) SetLimit(api API, limit rate.Limit) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if limiter, ok := l.limiters[api]; ok {
		limiter.SetLimit(limit)
		return
	}
	l.limiters[api] = rate.NewLimiter(limit, 1)
}

// Wait blocks until the rate limiter permits an event for the given API
// It returns an error if the context is canceled before the event can proceed
func (l *Limiter) Wait(ctx context.Context, api API) error {
	if l == nil {
		return nil
	}

	l.mu.RLock()
	limiter, exists := l.limiters[api]
	l.mu.RUnlock()

	if !exists {
		// If no limiter exists for this API, allow the request without limiting
		return nil
	}

	return limiter.Wait(ctx)
}

// Allow reports whether an event for the given API may happen now
func (l *Limiter) Allow(api API) bool {
	if l == nil {
		return true
	}

	l.mu.RLock()
	limiter, exists := l.limiters[api]
	l.mu.RUnlock()

	if !exists {
		// If no limiter exists for this API, allow the request
		return true
	}

	return limiter.Allow()
}
