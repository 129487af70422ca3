package store

import (
	"context"
	"fmt"
	"sync"

	"segmentation/pkg/core/config"

	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	pool   *pgxpool.Pool
	poolMu sync.Mutex
)

// poolConfig maps the store settings onto a pgxpool configuration.
func poolConfig(cfg config.StoreConfig) (*pgxpool.Config, error) {
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("database url is not configured")
	}
	pc, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}
	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	if cfg.ConnectTimeout > 0 {
		pc.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	}
	return pc, nil
}

// InitDB connects the shared pool and checks it with a ping. It is a no-op
// once a pool is up; a failed attempt leaves nothing behind so it can be
// retried.
func InitDB(ctx context.Context, cfg config.StoreConfig) error {
	poolMu.Lock()
	defer poolMu.Unlock()
	if pool != nil {
		return nil
	}

	pc, err := poolConfig(cfg)
	if err != nil {
		return err
	}
	p, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return fmt.Errorf("failed to create pool: %w", err)
	}

	pingCtx := ctx
	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}
	if err := p.Ping(pingCtx); err != nil {
		p.Close()
		return fmt.Errorf("failed to reach database: %w", err)
	}

	fmt.Printf("[STORE] Connected to postgres %s/%s (max %d conns)\n", pc.ConnConfig.Host, pc.ConnConfig.Database, pc.MaxConns)
	pool = p
	return nil
}

// GetPool returns the shared connection pool, or nil before InitDB.
func GetPool() *pgxpool.Pool {
	poolMu.Lock()
	defer poolMu.Unlock()
	return pool
}

// Close closes the shared pool. A later InitDB reconnects.
func Close() {
	poolMu.Lock()
	defer poolMu.Unlock()
	if pool != nil {
		pool.Close()
		pool = nil
	}
}
