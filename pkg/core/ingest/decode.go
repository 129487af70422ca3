// Package ingest decodes raw fact exports into models.RawFact records.
//
// Exports come from spreadsheets and hand-edited files as often as from
// databases, so decoding is lenient: strict JSON first, then Hjson
// (comments, unquoted keys, optional commas), then a repaired version of the
// input for truncated or slightly broken JSON.
package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"segmentation/pkg/models"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	hjson "github.com/hjson/hjson-go/v4"
)

// Format names the decoder that accepted an input.
type Format string

const (
	FormatJSON     Format = "json"
	FormatHJSON    Format = "hjson"
	FormatRepaired Format = "repaired_json"
)

// envelope is the wrapped export shape: {"facts": [...]}.
type envelope struct {
	Facts []models.RawFact `json:"facts"`
}

// DecodeFacts parses data as a fact list, either a bare array or an object
// with a "facts" array. It returns the format that succeeded.
func DecodeFacts(data []byte) ([]models.RawFact, Format, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, "", fmt.Errorf("FACTS_EMPTY_INPUT: no data")
	}

	facts, jsonErr := decodeJSON(trimmed)
	if jsonErr == nil {
		return facts, FormatJSON, nil
	}

	if normalized, err := ParseHJSON(trimmed); err == nil {
		if facts, err := decodeJSON(normalized); err == nil {
			return facts, FormatHJSON, nil
		}
	}

	repaired, err := RepairJSON(string(trimmed))
	if err != nil {
		return nil, "", fmt.Errorf("FACTS_DECODE_ERROR: %v", jsonErr)
	}
	facts, err = decodeJSON([]byte(repaired))
	if err != nil {
		return nil, "", fmt.Errorf("FACTS_DECODE_ERROR: %v (after repair: %v)", jsonErr, err)
	}
	return facts, FormatRepaired, nil
}

// decodeJSON decodes strict JSON, keeping numbers as json.Number so large
// quantities are not rounded before coercion.
func decodeJSON(data []byte) ([]models.RawFact, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	if len(data) > 0 && data[0] == '{' {
		var env envelope
		if err := dec.Decode(&env); err != nil {
			return nil, err
		}
		if env.Facts == nil {
			return nil, fmt.Errorf("object has no \"facts\" array")
		}
		return env.Facts, nil
	}

	var facts []models.RawFact
	if err := dec.Decode(&facts); err != nil {
		return nil, err
	}
	return facts, nil
}

// ParseHJSON converts Hjson input to standard JSON.
func ParseHJSON(data []byte) ([]byte, error) {
	var result interface{}
	if err := hjson.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("HJSON_PARSE_ERROR: %v", err)
	}
	out, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("JSON_MARSHAL_ERROR: %v", err)
	}
	return out, nil
}

// RepairJSON fixes common export damage: missing quotes, single quotes,
// trailing commas, unclosed arrays and markdown code fences.
func RepairJSON(malformed string) (string, error) {
	repaired, err := jsonrepair.RepairJSON(stripFence(malformed))
	if err != nil {
		return "", fmt.Errorf("JSON_REPAIR_FAILED: %v", err)
	}
	return repaired, nil
}

func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") && strings.HasSuffix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(s, "```")
	}
	return strings.TrimSpace(s)
}
