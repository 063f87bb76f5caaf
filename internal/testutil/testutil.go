package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"pricefetcher/internal/fetcher"
	"pricefetcher/internal/model"
)

// MockQuoteProvider is a mock implementation of the QuoteProvider interface for testing
type MockQuoteProvider struct {
	HistoryFunc func(ctx context.Context, symbol string, r model.DateRange) (fetcher.Frame, error)

	mu    sync.Mutex
	calls []string
}

// History implements the QuoteProvider interface
func (m *MockQuoteProvider) History(ctx context.Context, symbol string, r model.DateRange) (fetcher.Frame, error) {
	m.mu.Lock()
	m.calls = append(m.calls, symbol)
	m.mu.Unlock()

	if m.HistoryFunc != nil {
		return m.HistoryFunc(ctx, symbol, r)
	}
	return &fetcher.RecordFrame{}, nil
}

// Key implements the QuoteProvider interface
func (m *MockQuoteProvider) Key(symbol string) string {
	return "fetcher:mock:" + symbol
}

// Calls returns the symbols requested so far, in call order.
func (m *MockQuoteProvider) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// NewMockQuoteProvider creates a provider serving fixed frames per symbol.
// Symbols present in errs fail with that error; unknown symbols return an
// empty RecordFrame.
func NewMockQuoteProvider(frames map[string]fetcher.Frame, errs map[string]error) *MockQuoteProvider {
	return &MockQuoteProvider{
		HistoryFunc: func(ctx context.Context, symbol string, r model.DateRange) (fetcher.Frame, error) {
			if err, ok := errs[symbol]; ok {
				return nil, err
			}
			if f, ok := frames[symbol]; ok {
				return f, nil
			}
			return &fetcher.RecordFrame{}, nil
		},
	}
}

// Range returns a DateRange from ISO start to ISO end.
func Range(start, end string) model.DateRange {
	s, err := time.Parse(model.DateLayout, start)
	if err != nil {
		panic(err)
	}
	e, err := time.Parse(model.DateLayout, end)
	if err != nil {
		panic(err)
	}
	return model.DateRange{Start: s, End: e}
}

// Records builds a RecordFrame with one bar per date, prices derived from base.
func Records(base float64, dates ...string) *fetcher.RecordFrame {
	f := &fetcher.RecordFrame{}
	for i, d := range dates {
		p := base + float64(i)
		f.Records = append(f.Records, fetcher.Record{
			Date:     d,
			Open:     p,
			High:     p + 1,
			Low:      p - 1,
			Close:    p + 0.5,
			Volume:   int64(1000 * (i + 1)),
			AdjClose: p + 0.25,
		})
	}
	return f
}

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// LogBuffer captures JSON log records for assertions.
type LogBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *LogBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

// Logger returns a debug-level JSON logger writing into b.
func (b *LogBuffer) Logger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(b, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// Entries decodes every captured record.
func (b *LogBuffer) Entries() []map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(b.buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			panic(fmt.Sprintf("decode log line %q: %v", line, err))
		}
		out = append(out, m)
	}
	return out
}

// Messages returns entries whose msg equals msg.
func (b *LogBuffer) Messages(msg string) []map[string]any {
	var out []map[string]any
	for _, e := range b.Entries() {
		if e["msg"] == msg {
			out = append(out, e)
		}
	}
	return out
}
