package store

import (
	"context"
	"fmt"

	"segmentation/pkg/core/config"
	"segmentation/pkg/core/ingest"
)

// Open builds the Fact Provider selected by cfg.Driver. The returned close
// function releases its connections and is never nil.
func Open(ctx context.Context, cfg config.StoreConfig) (FactProvider, func(), error) {
	switch cfg.Driver {
	case "", "file":
		fmt.Printf("[STORE] Using facts file %s\n", cfg.FactsFile)
		return ingest.NewFileProvider(cfg.FactsFile), func() {}, nil

	case "postgres":
		if err := InitDB(ctx, cfg); err != nil {
			return nil, func() {}, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		pg, err := NewPostgresFactStore(nil, cfg.Table)
		if err != nil {
			Close()
			return nil, func() {}, err
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			Close()
			return nil, func() {}, err
		}
		fmt.Printf("[STORE] Using postgres table %s\n", pg.table)
		return pg, Close, nil

	case "sqlite":
		lite, err := OpenSQLite(cfg.SQLitePath, cfg.Table)
		if err != nil {
			return nil, func() {}, err
		}
		fmt.Printf("[STORE] Using sqlite %s (table %s)\n", cfg.SQLitePath, lite.table)
		return lite, func() { _ = lite.Close() }, nil

	default:
		return nil, func() {}, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
