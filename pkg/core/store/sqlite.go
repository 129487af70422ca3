package store

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"segmentation/pkg/models"

	_ "modernc.org/sqlite"
)

// SQLiteFactStore reads facts from a local SQLite sales table. Dates are
// stored as YYYY-MM-DD text so range comparisons are lexicographic.
type SQLiteFactStore struct {
	sqlDB *sql.DB
	table string
}

// OpenSQLite opens (creating if needed) the database at path and ensures the
// sales table exists.
func OpenSQLite(path, table string) (*SQLiteFactStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	t, err := validTable(table)
	if err != nil {
		return nil, err
	}

	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schemaSQL(t)); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create %s: %w", t, err)
	}
	return &SQLiteFactStore{sqlDB: sqlDB, table: t}, nil
}

// Close closes the SQLite handle.
func (s *SQLiteFactStore) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func sqliteDate(t time.Time) string {
	return t.UTC().Format(time.DateOnly)
}

// InsertSales appends rows in one transaction.
func (s *SQLiteFactStore) InsertSales(ctx context.Context, rows []SaleRow) error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (universe, category, sub_category, family, sale_date, revenue, margin, quantity)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, s.table))
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, r.Universe, r.Category, r.SubCategory, r.Family,
			sqliteDate(r.SaleDate), r.Revenue, r.Margin, r.Quantity); err != nil {
			return fmt.Errorf("insert sale: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit insert: %w", err)
	}
	return nil
}

// LoadFacts aggregates the sales of both scope periods per category path.
func (s *SQLiteFactStore) LoadFacts(ctx context.Context, scope models.Scope) ([]models.RawFact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if err := scope.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scope: %w", err)
	}

	query := factsQuery(s.table, func(n int) string { return fmt.Sprintf("?%d", n) })
	rows, err := s.sqlDB.QueryContext(ctx, query,
		sqliteDate(scope.Current.From), sqliteDate(scope.Current.To),
		sqliteDate(scope.Comparison.From), sqliteDate(scope.Comparison.To),
	)
	if err != nil {
		return nil, fmt.Errorf("query facts: %w", err)
	}
	defer rows.Close()

	var facts []models.RawFact
	for rows.Next() {
		var ps pathSums
		if err := rows.Scan(ps.dest()...); err != nil {
			return nil, fmt.Errorf("scan fact row: %w", err)
		}
		facts = append(facts, ps.rawFact())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read facts: %w", err)
	}

	fmt.Printf("[STORE] Loaded %d facts from sqlite table %s\n", len(facts), s.table)
	return facts, nil
}
