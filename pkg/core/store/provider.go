package store

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"segmentation/pkg/models"
)

// FactProvider supplies raw facts already scoped to the requested periods.
type FactProvider interface {
	LoadFacts(ctx context.Context, scope models.Scope) ([]models.RawFact, error)
}

// DefaultTable is the sales table read by the database providers.
const DefaultTable = "sales_facts"

// SaleRow is one line of the sales table.
type SaleRow struct {
	Universe    string
	Category    string
	SubCategory string
	Family      string
	SaleDate    time.Time
	Revenue     float64
	Margin      float64
	Quantity    float64
}

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func validTable(table string) (string, error) {
	if table == "" {
		return DefaultTable, nil
	}
	if !identPattern.MatchString(table) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	return table, nil
}

// schemaSQL creates the sales table. DATE and DOUBLE PRECISION are understood
// by both PostgreSQL and SQLite.
func schemaSQL(table string) string {
	return fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			universe     TEXT NOT NULL,
			category     TEXT NOT NULL DEFAULT '',
			sub_category TEXT NOT NULL DEFAULT '',
			family       TEXT NOT NULL DEFAULT '',
			sale_date    DATE NOT NULL,
			revenue      DOUBLE PRECISION NOT NULL DEFAULT 0,
			margin       DOUBLE PRECISION NOT NULL DEFAULT 0,
			quantity     DOUBLE PRECISION NOT NULL DEFAULT 0
		)`, table)
}

// factsQuery sums sales per distinct path, splitting rows into the current
// and comparison periods. ph renders the n-th (1-based) bind parameter.
// Parameters: 1/2 current [from, to), 3/4 comparison [from, to).
func factsQuery(table string, ph func(n int) string) string {
	cur := fmt.Sprintf("sale_date >= %s AND sale_date < %s", ph(1), ph(2))
	cmp := fmt.Sprintf("sale_date >= %s AND sale_date < %s", ph(3), ph(4))

	sum := func(cond, col string) string {
		return fmt.Sprintf("CAST(SUM(CASE WHEN %s THEN %s ELSE 0 END) AS DOUBLE PRECISION)", cond, col)
	}
	count := func(cond string) string {
		return fmt.Sprintf("COUNT(CASE WHEN %s THEN 1 END)", cond)
	}

	cols := []string{
		"COALESCE(universe, '')", "COALESCE(category, '')", "COALESCE(sub_category, '')", "COALESCE(family, '')",
		sum(cur, "revenue"), sum(cur, "margin"), sum(cur, "quantity"), count(cur),
		sum(cmp, "revenue"), sum(cmp, "margin"), sum(cmp, "quantity"), count(cmp),
	}

	return fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE (%s) OR (%s)
		GROUP BY 1, 2, 3, 4
		ORDER BY 1, 2, 3, 4`,
		strings.Join(cols, ",\n\t\t\t"), table, cur, cmp)
}

// pathSums is one scanned row of factsQuery.
type pathSums struct {
	path       [4]string
	current    models.Measures
	curRows    int64
	comparison models.Measures
	cmpRows    int64
}

func (p *pathSums) dest() []any {
	return []any{
		&p.path[0], &p.path[1], &p.path[2], &p.path[3],
		&p.current.Revenue, &p.current.Margin, &p.current.Quantity, &p.curRows,
		&p.comparison.Revenue, &p.comparison.Margin, &p.comparison.Quantity, &p.cmpRows,
	}
}

// rawFact converts the sums to a raw fact. A period without rows is left
// absent rather than zero so the normalizer can tell the difference.
func (p *pathSums) rawFact() models.RawFact {
	rf := models.RawFact{Path: append([]string(nil), p.path[:]...)}
	if p.curRows > 0 {
		rf.Current = measureGroup(p.current)
	}
	if p.cmpRows > 0 {
		rf.Comparison = measureGroup(p.comparison)
	}
	return rf
}

func measureGroup(m models.Measures) map[string]any {
	return map[string]any{
		models.KeyRevenue:  m.Revenue,
		models.KeyMargin:   m.Margin,
		models.KeyQuantity: m.Quantity,
	}
}
