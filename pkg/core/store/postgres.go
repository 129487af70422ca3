package store

import (
	"context"
	"fmt"

	"segmentation/pkg/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresFactStore reads facts from a PostgreSQL sales table.
type PostgresFactStore struct {
	pool  *pgxpool.Pool
	table string
}

// NewPostgresFactStore creates a store over pool. A nil pool uses the shared
// pool set up by InitDB.
func NewPostgresFactStore(pool *pgxpool.Pool, table string) (*PostgresFactStore, error) {
	t, err := validTable(table)
	if err != nil {
		return nil, err
	}
	return &PostgresFactStore{pool: pool, table: t}, nil
}

func (s *PostgresFactStore) db() (*pgxpool.Pool, error) {
	if s.pool != nil {
		return s.pool, nil
	}
	if p := GetPool(); p != nil {
		return p, nil
	}
	return nil, fmt.Errorf("database pool not initialized")
}

// EnsureSchema creates the sales table when missing.
func (s *PostgresFactStore) EnsureSchema(ctx context.Context) error {
	p, err := s.db()
	if err != nil {
		return err
	}
	if _, err := p.Exec(ctx, schemaSQL(s.table)); err != nil {
		return fmt.Errorf("failed to create %s: %w", s.table, err)
	}
	return nil
}

// InsertSales appends rows in a single batch.
func (s *PostgresFactStore) InsertSales(ctx context.Context, rows []SaleRow) error {
	p, err := s.db()
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (universe, category, sub_category, family, sale_date, revenue, margin, quantity)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`, s.table)

	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(query, r.Universe, r.Category, r.SubCategory, r.Family, r.SaleDate, r.Revenue, r.Margin, r.Quantity)
	}
	if err := p.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to insert sales: %w", err)
	}
	return nil
}

// LoadFacts aggregates the sales of both scope periods per category path.
func (s *PostgresFactStore) LoadFacts(ctx context.Context, scope models.Scope) ([]models.RawFact, error) {
	if err := scope.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scope: %w", err)
	}
	p, err := s.db()
	if err != nil {
		return nil, err
	}

	query := factsQuery(s.table, func(n int) string { return fmt.Sprintf("$%d", n) })
	rows, err := p.Query(ctx, query,
		scope.Current.From, scope.Current.To,
		scope.Comparison.From, scope.Comparison.To,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query facts: %w", err)
	}
	defer rows.Close()

	var facts []models.RawFact
	for rows.Next() {
		var ps pathSums
		if err := rows.Scan(ps.dest()...); err != nil {
			return nil, fmt.Errorf("failed to scan fact row: %w", err)
		}
		facts = append(facts, ps.rawFact())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read facts: %w", err)
	}

	fmt.Printf("[STORE] Loaded %d facts from postgres table %s\n", len(facts), s.table)
	return facts, nil
}
