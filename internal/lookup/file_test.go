package lookup

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricefetcher/internal/model"
)

const instrumentsYAML = `
instruments:
  - identifier: US0378331005
    symbol: AAPL
    display_name: Apple Inc
    listed: true
  - identifier: US5949181045
    symbol: MSFT
    display_name: Microsoft Corp
    listed: true
  - identifier: US0000LOCK01
    symbol: ABCLOCK
    display_name: Locked Inc
    listed: true
  - identifier: US88160R1014
    symbol: TSLA
    display_name: Tesla Inc
    listed: false
  - symbol: NOID
    display_name: Nameless Inc
    listed: true
  - identifier: US0378331005
    symbol: AAPL
    display_name: Apple Inc
    listed: true
  - identifier: US02079K3059
    symbol: ${TEST_GOOGL_SYMBOL}
    display_name: Alphabet Inc
    listed: true
`

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "instruments.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestFileProvider_Filters(t *testing.T) {
	t.Setenv("TEST_GOOGL_SYMBOL", "GOOGL")
	p := NewFileProvider(writeFile(t, instrumentsYAML))

	filter := FilterSpec{ExcludeTickers: []string{"LOCK"}, ListedOnly: true, DisplayName: "Inc"}
	mapping, err := NewResolver(p, nil).Resolve(context.Background(), 10, filter)
	require.NoError(t, err)

	assert.Equal(t, model.IdentifierMapping{
		{Identifier: "US0378331005", Symbol: "AAPL"},
		{Identifier: "US02079K3059", Symbol: "GOOGL"},
	}, mapping)
}

func TestFileProvider_Limit(t *testing.T) {
	t.Setenv("TEST_GOOGL_SYMBOL", "GOOGL")
	p := NewFileProvider(writeFile(t, instrumentsYAML))

	mapping, err := NewResolver(p, nil).Resolve(context.Background(), 2, FilterSpec{})
	require.NoError(t, err)

	assert.Equal(t, model.IdentifierMapping{
		{Identifier: "US0378331005", Symbol: "AAPL"},
		{Identifier: "US5949181045", Symbol: "MSFT"},
	}, mapping)
}

func TestFileProvider_MissingFile(t *testing.T) {
	p := NewFileProvider(filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := p.Open(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read instrument file")
}

func TestFileProvider_InvalidYAML(t *testing.T) {
	p := NewFileProvider(writeFile(t, "instruments: [unclosed"))

	_, err := p.Open(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse instrument file")
}
