package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"segmentation/pkg/core/config"
	"segmentation/pkg/core/ingest"
	"segmentation/pkg/core/segment"
	"segmentation/pkg/models"
)

func day(s string) time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return t
}

func seedStore(t *testing.T) *SQLiteFactStore {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "sales.db"), "")
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	rows := []SaleRow{
		{Universe: "Meds", Category: "Pain", SaleDate: day("2024-03-01"), Revenue: 60, Margin: 20, Quantity: 3},
		{Universe: "Meds", Category: "Pain", SaleDate: day("2024-03-15"), Revenue: 40, Margin: 10, Quantity: 2},
		{Universe: "Meds", Category: "Pain", SaleDate: day("2023-03-10"), Revenue: 80, Margin: 25, Quantity: 4},
		{Universe: "Meds", Category: "Cold", SaleDate: day("2024-03-20"), Revenue: 50, Margin: 15, Quantity: 5},
		{Universe: "Meds", Category: "Cold", SaleDate: day("2023-03-20"), Revenue: 50, Margin: 12, Quantity: 5},
		{Universe: "Beauty", Category: "Skin", SaleDate: day("2023-03-05"), Revenue: 30, Margin: 9, Quantity: 1},
		{Universe: "Meds", Category: "Pain", SaleDate: day("2024-06-01"), Revenue: 999},
	}
	if err := s.InsertSales(context.Background(), rows); err != nil {
		t.Fatalf("InsertSales: %v", err)
	}
	return s
}

func TestSQLiteFactStore_LoadFacts(t *testing.T) {
	s := seedStore(t)
	scope := models.YearOverYear(day("2024-03-01"), day("2024-04-01"))

	facts, err := s.LoadFacts(context.Background(), scope)
	if err != nil {
		t.Fatalf("LoadFacts: %v", err)
	}
	if len(facts) != 3 {
		t.Fatalf("Expected 3 paths, got %d: %+v", len(facts), facts)
	}

	byUniverse := map[string]models.RawFact{}
	for _, f := range facts {
		byUniverse[f.Path[0]+"/"+f.Path[1]] = f
	}

	pain := byUniverse["Meds/Pain"]
	if pain.Current["revenue"] != 100.0 || pain.Comparison["revenue"] != 80.0 {
		t.Errorf("Unexpected Meds/Pain sums: %+v", pain)
	}
	skin := byUniverse["Beauty/Skin"]
	if skin.Current != nil {
		t.Errorf("Expected no current group for Beauty/Skin, got %+v", skin.Current)
	}
	if skin.Comparison["revenue"] != 30.0 {
		t.Errorf("Expected Beauty/Skin comparison 30, got %+v", skin.Comparison)
	}
}

func TestSQLiteFactStore_FeedsEngine(t *testing.T) {
	s := seedStore(t)
	facts, err := s.LoadFacts(context.Background(), models.YearOverYear(day("2024-03-01"), day("2024-04-01")))
	if err != nil {
		t.Fatalf("LoadFacts: %v", err)
	}

	e := segment.New(segment.Options{})
	report := e.Rebuild(facts, 4)
	if report.Rejected != 0 {
		t.Errorf("Expected no rejections, got %+v", report)
	}

	meds, ok := e.Tree().Node("Meds")
	if !ok {
		t.Fatal("Expected Meds node")
	}
	if meds.CurrentValue() != 150 || meds.ComparisonValue() != 130 {
		t.Errorf("Expected Meds 150/130, got %f/%f", meds.CurrentValue(), meds.ComparisonValue())
	}
	if e.Tree().HasChildren("Meds|Pain") {
		t.Errorf("Empty sub-category must stop the path at depth 2")
	}
}

func TestSQLiteFactStore_Validation(t *testing.T) {
	if _, err := OpenSQLite("", ""); err == nil {
		t.Errorf("Expected error for empty path")
	}
	if _, err := OpenSQLite(filepath.Join(t.TempDir(), "x.db"), "sales; DROP TABLE x"); err == nil {
		t.Errorf("Expected error for invalid table name")
	}

	s := seedStore(t)
	if _, err := s.LoadFacts(context.Background(), models.Scope{}); err == nil {
		t.Errorf("Expected error for empty scope")
	}
}

func TestOpen_Drivers(t *testing.T) {
	dir := t.TempDir()

	provider, closeFn, err := Open(context.Background(), config.StoreConfig{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(dir, "open.db"),
	})
	if err != nil {
		t.Fatalf("Open sqlite failed: %v", err)
	}
	defer closeFn()
	if _, ok := provider.(*SQLiteFactStore); !ok {
		t.Errorf("Expected *SQLiteFactStore, got %T", provider)
	}

	provider, _, err = Open(context.Background(), config.StoreConfig{Driver: "file", FactsFile: "facts.json"})
	if err != nil {
		t.Fatalf("Open file failed: %v", err)
	}
	if fp, ok := provider.(*ingest.FileProvider); !ok || fp.Path != "facts.json" {
		t.Errorf("Expected file provider for facts.json, got %#v", provider)
	}

	if _, _, err := Open(context.Background(), config.StoreConfig{Driver: "mongo"}); err == nil {
		t.Errorf("Expected error for unknown driver")
	}
}
