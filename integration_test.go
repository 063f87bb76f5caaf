package main

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"pricefetcher/internal/config"
	"pricefetcher/internal/testutil"
)

// Run time: yesterday is 2024-01-05, so the range covers 2024-01-02..2024-01-05.
var runTime = time.Date(2024, 1, 6, 9, 0, 0, 0, time.UTC)

const instrumentsYAML = `
instruments:
  - {identifier: US0001, symbol: AAA, display_name: Alpha Inc, listed: true}
  - {identifier: US0002, symbol: BBB, display_name: Beta Inc, listed: true}
  - {identifier: US0003, symbol: CCCLOCK, display_name: Gamma Inc, listed: true}
  - {identifier: US0004, symbol: DDD, display_name: Delta PLC, listed: true}
`

// chartJSON renders a Yahoo chart response with one bar per timestamp.
func chartJSON(symbol string, timestamps ...int64) string {
	var ts, px, vol []string
	for i, t := range timestamps {
		ts = append(ts, fmt.Sprint(t))
		px = append(px, fmt.Sprintf("%d.5", 100+i))
		vol = append(vol, fmt.Sprint(1000*(i+1)))
	}
	return fmt.Sprintf(`{"chart": {"result": [{
		"meta": {"symbol": %q, "gmtoffset": -18000},
		"timestamp": [%[2]s],
		"indicators": {
			"quote": [{"open": [%[3]s], "high": [%[3]s], "low": [%[3]s], "close": [%[3]s], "volume": [%[4]s]}],
			"adjclose": [{"adjclose": [%[3]s]}]
		}
	}], "error": null}}`, symbol, strings.Join(ts, ","), strings.Join(px, ","), strings.Join(vol, ","))
}

func newYahooServer(t *testing.T, bodies map[string]string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		symbol := strings.TrimPrefix(r.URL.Path, "/v8/finance/chart/")
		body, ok := bodies[symbol]
		w.Header().Set("Content-Type", "application/json")
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"chart": {"result": null, "error": {"code": "Not Found", "description": "No data found, symbol may be delisted"}}}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func testConfig(t *testing.T, lookupFile, yahooURL string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		LookupSource: config.LookupFile,
		LookupFile:   lookupFile,
		LookupLimit:  10,
		FilterConfig: config.FilterConfig{
			ExcludeTickers: []string{"LOCK"},
			DisplayName:    "Inc",
			ListedOnly:     true,
		},
		QuoteProvider:    config.ProviderYahoo,
		YahooBaseURL:     yahooURL,
		QuoteRateLimit:   1000,
		HTTPTimeout:      5 * time.Second,
		StartDate:        "2024-01-02",
		OutputPath:       filepath.Join(dir, "stock_prices_data.csv"),
		FetchConcurrency: 1,
		LogLevel:         "debug",
	}
}

func writeInstruments(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "instruments.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write instruments: %v", err)
	}
	return path
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	return records
}

var header = []string{"", "Date", "Open", "High", "Low", "Close", "Volume", "Adj Close", "TickerSymbol"}

// TestIntegration_PartialFailure resolves two instruments; one fetch succeeds
// with two rows and the other fails.
func TestIntegration_PartialFailure(t *testing.T) {
	server := newYahooServer(t, map[string]string{
		// 2024-01-02 and 2024-01-03, 14:30 UTC
		"AAA": chartJSON("AAA", 1704205800, 1704292200),
	})
	cfg := testConfig(t, writeInstruments(t, instrumentsYAML), server.URL)
	logs := &testutil.LogBuffer{}

	if err := run(context.Background(), cfg, logs.Logger(), runTime); err != nil {
		t.Fatalf("run() returned unexpected error: %v", err)
	}

	records := readCSV(t, cfg.OutputPath)
	if len(records) != 3 {
		t.Fatalf("output has %d records, want header + 2 rows", len(records))
	}
	if strings.Join(records[0], "|") != strings.Join(header, "|") {
		t.Errorf("header = %v, want %v", records[0], header)
	}

	wantRows := [][]string{
		{"0", "2024-01-02", "100.5", "100.5", "100.5", "100.5", "1000", "100.5", "AAA"},
		{"1", "2024-01-03", "101.5", "101.5", "101.5", "101.5", "2000", "101.5", "AAA"},
	}
	for i, want := range wantRows {
		if strings.Join(records[i+1], "|") != strings.Join(want, "|") {
			t.Errorf("row %d = %v, want %v", i, records[i+1], want)
		}
	}

	failures := logs.Messages("price series fetch failed")
	if len(failures) != 1 {
		t.Fatalf("failure notices = %d, want 1", len(failures))
	}
	if failures[0]["identifier"] != "US0002" || failures[0]["symbol"] != "BBB" {
		t.Errorf("failure notice = %v, want US0002/BBB", failures[0])
	}

	if n := len(logs.Messages("data update complete")); n != 1 {
		t.Errorf("completion notices = %d, want 1", n)
	}
}

// TestIntegration_EmptyMapping writes a header-only file when nothing resolves.
func TestIntegration_EmptyMapping(t *testing.T) {
	server := newYahooServer(t, nil)
	cfg := testConfig(t, writeInstruments(t, "instruments: []\n"), server.URL)

	if err := run(context.Background(), cfg, testutil.DiscardLogger(), runTime); err != nil {
		t.Fatalf("run() returned unexpected error: %v", err)
	}

	records := readCSV(t, cfg.OutputPath)
	if len(records) != 1 {
		t.Fatalf("output has %d records, want header only", len(records))
	}
	if strings.Join(records[0], "|") != strings.Join(header, "|") {
		t.Errorf("header = %v, want %v", records[0], header)
	}
}

// TestIntegration_IndexedDates checks that dates carried only as the row
// index end up in the Date column.
func TestIntegration_IndexedDates(t *testing.T) {
	server := newYahooServer(t, map[string]string{
		// 2024-01-02, 2024-01-03, 2024-01-04 at 14:30 UTC
		"AAA": chartJSON("AAA", 1704205800, 1704292200, 1704378600),
		"BBB": chartJSON("BBB", 1704378600),
	})
	cfg := testConfig(t, writeInstruments(t, instrumentsYAML), server.URL)
	cfg.FetchConcurrency = 2

	if err := run(context.Background(), cfg, testutil.DiscardLogger(), runTime); err != nil {
		t.Fatalf("run() returned unexpected error: %v", err)
	}

	records := readCSV(t, cfg.OutputPath)
	var got []string
	for _, rec := range records[1:] {
		got = append(got, rec[0]+":"+rec[1]+":"+rec[8])
	}

	want := []string{"0:2024-01-02:AAA", "1:2024-01-03:AAA", "2:2024-01-04:AAA", "3:2024-01-04:BBB"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("rows = %v, want %v", got, want)
	}
}

// TestIntegration_IncludesYesterday fetches through the end of yesterday and
// keeps yesterday's bar.
func TestIntegration_IncludesYesterday(t *testing.T) {
	var period2 string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		period2 = r.URL.Query().Get("period2")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		// 2024-01-04 and 2024-01-05, 14:30 UTC
		w.Write([]byte(chartJSON("AAA", 1704378600, 1704465000)))
	}))
	defer server.Close()

	cfg := testConfig(t, writeInstruments(t, instrumentsYAML), server.URL)
	cfg.LookupLimit = 1

	if err := run(context.Background(), cfg, testutil.DiscardLogger(), runTime); err != nil {
		t.Fatalf("run() returned unexpected error: %v", err)
	}

	// 2024-01-06 00:00 UTC
	if period2 != "1704499200" {
		t.Errorf("period2 = %q, want 1704499200", period2)
	}

	records := readCSV(t, cfg.OutputPath)
	var dates []string
	for _, rec := range records[1:] {
		dates = append(dates, rec[1])
	}
	if strings.Join(dates, ",") != "2024-01-04,2024-01-05" {
		t.Errorf("dates = %v, want [2024-01-04 2024-01-05]", dates)
	}
}

// TestIntegration_InterruptedFetch leaves the previous output in place and
// fails the run when the context is cancelled mid-fetch.
func TestIntegration_InterruptedFetch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cancel()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(chartJSON("AAA", 1704205800)))
	}))
	defer server.Close()

	cfg := testConfig(t, writeInstruments(t, instrumentsYAML), server.URL)
	prior := []byte("full previous dataset\n")
	if err := os.WriteFile(cfg.OutputPath, prior, 0o644); err != nil {
		t.Fatal(err)
	}

	err := run(ctx, cfg, testutil.DiscardLogger(), runTime)
	if err == nil {
		t.Fatal("run() expected error, got nil")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("run() error = %v, want context.Canceled", err)
	}

	data, readErr := os.ReadFile(cfg.OutputPath)
	if readErr != nil {
		t.Fatal(readErr)
	}
	if string(data) != string(prior) {
		t.Errorf("output = %q, want unchanged %q", data, prior)
	}
}

// TestIntegration_LookupFailure aborts before any table or file exists.
func TestIntegration_LookupFailure(t *testing.T) {
	var requests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := testConfig(t, filepath.Join(t.TempDir(), "missing.yaml"), server.URL)

	err := run(context.Background(), cfg, testutil.DiscardLogger(), runTime)
	if err == nil {
		t.Fatal("run() expected error, got nil")
	}
	if !strings.Contains(err.Error(), "resolve instruments") {
		t.Errorf("run() error = %q, want it to mention resolve instruments", err.Error())
	}

	if _, statErr := os.Stat(cfg.OutputPath); !os.IsNotExist(statErr) {
		t.Errorf("output file exists after lookup failure (stat err = %v)", statErr)
	}
	if requests != 0 {
		t.Errorf("quote provider received %d requests, want 0", requests)
	}
}

// TestIntegration_LookupFailureKeepsPriorOutput leaves a previous run's file alone.
func TestIntegration_LookupFailureKeepsPriorOutput(t *testing.T) {
	cfg := testConfig(t, filepath.Join(t.TempDir(), "missing.yaml"), "http://127.0.0.1:1")
	prior := []byte("previous run\n")
	if err := os.WriteFile(cfg.OutputPath, prior, 0o644); err != nil {
		t.Fatal(err)
	}

	if err := run(context.Background(), cfg, testutil.DiscardLogger(), runTime); err == nil {
		t.Fatal("run() expected error, got nil")
	}

	data, err := os.ReadFile(cfg.OutputPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != string(prior) {
		t.Errorf("output = %q, want unchanged %q", data, prior)
	}
}

// TestIntegration_SinkFailure is fatal.
func TestIntegration_SinkFailure(t *testing.T) {
	server := newYahooServer(t, nil)
	cfg := testConfig(t, writeInstruments(t, instrumentsYAML), server.URL)
	cfg.OutputPath = filepath.Join(t.TempDir(), "no", "such", "dir", "out.csv")

	err := run(context.Background(), cfg, testutil.DiscardLogger(), runTime)
	if err == nil {
		t.Fatal("run() expected error, got nil")
	}
	if !strings.Contains(err.Error(), "write output") {
		t.Errorf("run() error = %q, want it to mention write output", err.Error())
	}
}

// TestIntegration_AlphaVantage runs the explicit-date provider end to end.
func TestIntegration_AlphaVantage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if r.URL.Query().Get("symbol") != "AAA" {
			w.Write([]byte(`{"Error Message": "Invalid API call."}`))
			return
		}
		w.Write([]byte(`{"Time Series (Daily)": {
			"2024-01-06": {"1. open": "9", "2. high": "9", "3. low": "9", "4. close": "9", "5. adjusted close": "9", "6. volume": "9"},
			"2024-01-05": {"1. open": "5", "2. high": "5.5", "3. low": "4.5", "4. close": "5.25", "5. adjusted close": "5.2", "6. volume": "500"},
			"2024-01-03": {"1. open": "3", "2. high": "3.5", "3. low": "2.5", "4. close": "3.25", "5. adjusted close": "3.2", "6. volume": "300"},
			"2024-01-02": {"1. open": "2", "2. high": "2.5", "3. low": "1.5", "4. close": "2.25", "5. adjusted close": "2.2", "6. volume": "200"}
		}}`))
	}))
	defer server.Close()

	cfg := testConfig(t, writeInstruments(t, instrumentsYAML), "")
	cfg.QuoteProvider = config.ProviderAlphaVantage
	cfg.AlphavantageAPIKey = "test_key"
	cfg.AlphavantageBaseURL = server.URL

	if err := run(context.Background(), cfg, testutil.DiscardLogger(), runTime); err != nil {
		t.Fatalf("run() returned unexpected error: %v", err)
	}

	records := readCSV(t, cfg.OutputPath)
	want := [][]string{
		header,
		{"0", "2024-01-02", "2", "2.5", "1.5", "2.25", "200", "2.2", "AAA"},
		{"1", "2024-01-03", "3", "3.5", "2.5", "3.25", "300", "3.2", "AAA"},
		{"2", "2024-01-05", "5", "5.5", "4.5", "5.25", "500", "5.2", "AAA"},
	}
	if len(records) != len(want) {
		t.Fatalf("output has %d records, want %d: %v", len(records), len(want), records)
	}
	for i := range want {
		if strings.Join(records[i], "|") != strings.Join(want[i], "|") {
			t.Errorf("record %d = %v, want %v", i, records[i], want[i])
		}
	}
}
