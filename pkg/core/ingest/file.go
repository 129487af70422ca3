package ingest

import (
	"context"
	"fmt"
	"os"

	"segmentation/pkg/models"
)

// FileProvider serves facts from a pre-scoped export file. The scope passed
// to LoadFacts is ignored: the file already covers the requested periods.
type FileProvider struct {
	Path string
}

// NewFileProvider returns a provider reading path.
func NewFileProvider(path string) *FileProvider {
	return &FileProvider{Path: path}
}

// LoadFacts reads and decodes the file.
func (p *FileProvider) LoadFacts(ctx context.Context, _ models.Scope) ([]models.RawFact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.Path == "" {
		return nil, fmt.Errorf("facts file path is not configured")
	}

	data, err := os.ReadFile(p.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read facts file: %w", err)
	}

	facts, format, err := DecodeFacts(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", p.Path, err)
	}
	if format != FormatJSON {
		fmt.Printf("[INGEST] %s decoded as %s (%d facts)\n", p.Path, format, len(facts))
	}
	return facts, nil
}
