package ingest

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"segmentation/pkg/models"
)

func TestDecodeFacts_StrictJSON(t *testing.T) {
	data := []byte(`[
		{"path": ["Meds", "Pain"], "current": {"revenue": 100, "margin": 40}, "comparison": {"revenue": 80}},
		{"path": ["Meds", "Cold"], "current": {"revenue": "50"}}
	]`)

	facts, format, err := DecodeFacts(data)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if format != FormatJSON {
		t.Errorf("Expected json format, got %s", format)
	}
	if len(facts) != 2 {
		t.Fatalf("Expected 2 facts, got %d", len(facts))
	}
	if n, ok := facts[0].Current["revenue"].(json.Number); !ok || n.String() != "100" {
		t.Errorf("Expected revenue as json.Number 100, got %#v", facts[0].Current["revenue"])
	}
	if facts[1].Current["revenue"] != "50" {
		t.Errorf("Expected string revenue to be kept for coercion, got %#v", facts[1].Current["revenue"])
	}
}

func TestDecodeFacts_Envelope(t *testing.T) {
	facts, _, err := DecodeFacts([]byte(`{"facts": [{"path": ["Beauty"], "current": {"quantity": 3}}]}`))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(facts) != 1 || facts[0].Path[0] != "Beauty" {
		t.Errorf("Unexpected facts %+v", facts)
	}
}

func TestDecodeFacts_HJSON(t *testing.T) {
	data := []byte(`
	# exported from the category sheet
	[
		{
			path: ["Meds", "Pain"]
			current: { revenue: 100 }
			comparison: { revenue: 80 }
		}
	]`)

	facts, format, err := DecodeFacts(data)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if format != FormatHJSON {
		t.Errorf("Expected hjson format, got %s", format)
	}
	if len(facts) != 1 || len(facts[0].Path) != 2 {
		t.Errorf("Unexpected facts %+v", facts)
	}
}

func TestDecodeFacts_Repaired(t *testing.T) {
	data := []byte("```json\n[{\"path\": [\"Meds\"], \"current\": {\"revenue\": 10}}, {\"path\": [\"Beauty\"], \"current\": {\"revenue\": 5}\n```")

	facts, format, err := DecodeFacts(data)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if format == FormatJSON {
		t.Errorf("Expected a lenient decoder to be used")
	}
	if len(facts) != 2 {
		t.Errorf("Expected 2 facts after repair, got %d", len(facts))
	}
}

func TestDecodeFacts_Empty(t *testing.T) {
	if _, _, err := DecodeFacts([]byte("  ")); err == nil {
		t.Errorf("Expected error for empty input")
	}
}

func TestFileProvider_LoadFacts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "facts.json")
	if err := os.WriteFile(path, []byte(`[{"path": ["Meds"], "current": {"revenue": 1}}]`), 0644); err != nil {
		t.Fatal(err)
	}

	facts, err := NewFileProvider(path).LoadFacts(context.Background(), models.Scope{})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(facts) != 1 {
		t.Errorf("Expected 1 fact, got %d", len(facts))
	}

	if _, err := NewFileProvider(filepath.Join(t.TempDir(), "missing.json")).LoadFacts(context.Background(), models.Scope{}); err == nil {
		t.Errorf("Expected error for missing file")
	}
}
