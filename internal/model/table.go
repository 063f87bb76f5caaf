package model

import "strconv"

// Columns is the fixed header of a CombinedTable, without the row index.
var Columns = []string{"Date", "Open", "High", "Low", "Close", "Volume", "Adj Close", "TickerSymbol"}

// CombinedTable accumulates price rows from many series in append order.
// Every row shares the PriceRow schema regardless of its symbol.
type CombinedTable struct {
	rows []PriceRow
}

// NewCombinedTable returns an empty table with the PriceRow schema.
func NewCombinedTable() *CombinedTable {
	return &CombinedTable{}
}

// Append adds a series to the end of the table.
func (t *CombinedTable) Append(series PriceSeries) {
	t.rows = append(t.rows, series...)
}

// Len returns the number of rows.
func (t *CombinedTable) Len() int {
	return len(t.rows)
}

// Rows returns a copy of the table's rows.
func (t *CombinedTable) Rows() []PriceRow {
	out := make([]PriceRow, len(t.rows))
	copy(out, t.rows)
	return out
}

// Records renders the table as string records: a header whose first cell is
// the empty row-index label, then one record per row prefixed by its index.
func (t *CombinedTable) Records() [][]string {
	records := make([][]string, 0, len(t.rows)+1)
	records = append(records, append([]string{""}, Columns...))

	for i, r := range t.rows {
		records = append(records, []string{
			strconv.Itoa(i),
			r.Date,
			formatFloat(r.Open),
			formatFloat(r.High),
			formatFloat(r.Low),
			formatFloat(r.Close),
			strconv.FormatInt(r.Volume, 10),
			formatFloat(r.AdjClose),
			r.Symbol,
		})
	}

	return records
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
