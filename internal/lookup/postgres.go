package lookup

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/jackc/pgx/v5"

	"pricefetcher/internal/config"
	"pricefetcher/internal/model"
)

// BuildConnString builds a PostgreSQL connection string from config.
func BuildConnString(cfg config.DBConfig) string {
	// URL-encode password to handle special characters
	escapedPassword := url.QueryEscape(cfg.Password)

	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "prefer"
	}

	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(cfg.User),
		escapedPassword,
		cfg.Host,
		cfg.Port,
		cfg.Name,
		sslMode,
	)
}

// PostgresProvider looks instruments up in a reference-data table with
// columns isin_code, ticker_symbol, listed and display_name.
type PostgresProvider struct {
	connString string
	table      pgx.Identifier
}

// NewPostgresProvider creates a provider for the given database and table.
// table may be schema-qualified ("ref.instruments").
func NewPostgresProvider(cfg config.DBConfig, table string) *PostgresProvider {
	return &PostgresProvider{
		connString: BuildConnString(cfg),
		table:      pgx.Identifier(strings.Split(table, ".")),
	}
}

// Open establishes a single connection. The caller owns it until Close.
func (p *PostgresProvider) Open(ctx context.Context) (Session, error) {
	conn, err := pgx.Connect(ctx, p.connString)
	if err != nil {
		return nil, fmt.Errorf("connect lookup database: %w", err)
	}
	return &pgSession{conn: conn, table: p.table}, nil
}

type pgSession struct {
	conn  *pgx.Conn
	table pgx.Identifier
}

func (s *pgSession) Instruments(ctx context.Context, q Query) ([]model.InstrumentRecord, error) {
	sql, args := buildQuery(s.table, q)

	rows, err := s.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}

	records, err := pgx.CollectRows(rows, pgx.RowToStructByPos[model.InstrumentRecord])
	if err != nil {
		return nil, fmt.Errorf("scan instruments: %w", err)
	}

	return records, nil
}

func (s *pgSession) Close(ctx context.Context) error {
	return s.conn.Close(ctx)
}

func buildQuery(table pgx.Identifier, q Query) (string, []any) {
	var b strings.Builder
	var args []any

	fmt.Fprintf(&b, "SELECT DISTINCT isin_code, COALESCE(ticker_symbol, '')\nFROM %s\nWHERE isin_code IS NOT NULL AND isin_code <> ''", table.Sanitize())

	for _, ex := range q.Filter.ExcludeTickers {
		if ex == "" {
			continue
		}
		args = append(args, containsPattern(ex))
		fmt.Fprintf(&b, "\n  AND ticker_symbol NOT LIKE $%d", len(args))
	}

	if q.Filter.ListedOnly {
		b.WriteString("\n  AND listed")
	}

	if q.Filter.DisplayName != "" {
		args = append(args, containsPattern(q.Filter.DisplayName))
		fmt.Fprintf(&b, "\n  AND display_name LIKE $%d", len(args))
	}

	args = append(args, q.Limit)
	fmt.Fprintf(&b, "\nORDER BY 1, 2\nLIMIT $%d", len(args))

	return b.String(), args
}
