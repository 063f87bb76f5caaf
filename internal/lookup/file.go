package lookup

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"pricefetcher/internal/model"
)

// instrumentFile is the on-disk layout read by FileProvider.
type instrumentFile struct {
	Instruments []Candidate `yaml:"instruments"`
}

// FileProvider serves instruments from a YAML file, applying the filter
// in process. Useful for offline runs.
type FileProvider struct {
	path string
}

// NewFileProvider creates a provider reading path on every Open.
func NewFileProvider(path string) *FileProvider {
	return &FileProvider{path: path}
}

// Open reads and parses the file.
func (p *FileProvider) Open(ctx context.Context) (Session, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return nil, fmt.Errorf("read instrument file: %w", err)
	}

	// Expand ${VAR} environment variables
	expanded := os.ExpandEnv(string(data))

	var f instrumentFile
	if err := yaml.Unmarshal([]byte(expanded), &f); err != nil {
		return nil, fmt.Errorf("parse instrument file: %w", err)
	}

	return &fileSession{candidates: f.Instruments}, nil
}

type fileSession struct {
	candidates []Candidate
}

func (s *fileSession) Instruments(ctx context.Context, q Query) ([]model.InstrumentRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []model.InstrumentRecord
	seen := make(map[model.InstrumentRecord]struct{})
	for _, c := range s.candidates {
		if len(out) == q.Limit {
			break
		}
		if !q.Filter.Matches(c) {
			continue
		}
		rec := model.InstrumentRecord{Identifier: c.Identifier, Symbol: c.Symbol}
		// DISTINCT over (identifier, symbol) pairs
		if _, ok := seen[rec]; ok {
			continue
		}
		seen[rec] = struct{}{}
		out = append(out, rec)
	}

	return out, nil
}

func (s *fileSession) Close(context.Context) error {
	s.candidates = nil
	return nil
}
