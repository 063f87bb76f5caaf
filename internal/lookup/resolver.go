// Package lookup resolves instrument identifiers to market symbols using a
// reference-data source.
package lookup

import (
	"context"
	"fmt"
	"log/slog"

	"pricefetcher/internal/model"
)

// Query is what a Session is asked for.
type Query struct {
	Limit  int
	Filter FilterSpec
}

// Provider opens sessions against a lookup source.
type Provider interface {
	Open(ctx context.Context) (Session, error)
}

// Session is an open handle on a lookup source. It must be closed.
type Session interface {
	Instruments(ctx context.Context, q Query) ([]model.InstrumentRecord, error)
	Close(ctx context.Context) error
}

// Resolver produces the identifier mapping for a run.
type Resolver struct {
	provider Provider
	logger   *slog.Logger
}

// NewResolver creates a Resolver over the given provider.
func NewResolver(provider Provider, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		provider: provider,
		logger:   logger,
	}
}

// Resolve opens a session, runs one query and releases the session on every
// path. Any open or query error is returned as-is; there is no partial result.
// The mapping has no empty and no duplicate identifiers, first occurrence wins,
// and holds at most limit entries.
func (r *Resolver) Resolve(ctx context.Context, limit int, filter FilterSpec) (mapping model.IdentifierMapping, err error) {
	if limit < 0 {
		return nil, fmt.Errorf("limit must be >= 0, got %d", limit)
	}

	session, err := r.provider.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("open lookup session: %w", err)
	}
	defer func() {
		if cerr := session.Close(context.WithoutCancel(ctx)); cerr != nil {
			r.logger.Warn("failed to close lookup session", "error", cerr)
		}
	}()

	records, err := session.Instruments(ctx, Query{Limit: limit, Filter: filter})
	if err != nil {
		return nil, fmt.Errorf("query instruments: %w", err)
	}

	mapping = dedupe(records, limit)
	r.logger.Info("resolved instruments",
		"rows", len(records),
		"instruments", len(mapping),
	)

	return mapping, nil
}

func dedupe(records []model.InstrumentRecord, limit int) model.IdentifierMapping {
	seen := make(map[string]struct{}, len(records))
	out := make(model.IdentifierMapping, 0, min(len(records), limit))

	for _, rec := range records {
		if len(out) == limit {
			break
		}
		if rec.Identifier == "" {
			continue
		}
		if _, ok := seen[rec.Identifier]; ok {
			continue
		}
		seen[rec.Identifier] = struct{}{}
		out = append(out, rec)
	}

	return out
}
