package segment

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"

	"segmentation/pkg/models"
)

// RejectReason names why a raw fact was dropped by the normalizer.
type RejectReason string

const (
	RejectPathGap   RejectReason = "path_gap"
	RejectEmptyPath RejectReason = "empty_path"
	RejectNoMeasure RejectReason = "no_measures"
	// RejectSeparator marks a segment that contains the id separator, which
	// would make node ids ambiguous.
	RejectSeparator RejectReason = "separator_in_segment"
)

// NormalizeReport counts accepted and dropped raw facts.
type NormalizeReport struct {
	Accepted int                  `json:"accepted"`
	Rejected int                  `json:"rejected"`
	ByReason map[RejectReason]int `json:"by_reason,omitempty"`
}

func (r *NormalizeReport) reject(reason RejectReason) {
	if r.ByReason == nil {
		r.ByReason = make(map[RejectReason]int)
	}
	r.Rejected++
	r.ByReason[reason]++
}

// NormalizeFacts validates raw facts and coerces their measures.
//
// Rejected records are dropped and counted, never returned as errors.
// An empty separator falls back to DefaultSeparator.
func NormalizeFacts(raw []models.RawFact, separator string) ([]models.Fact, NormalizeReport) {
	if separator == "" {
		separator = DefaultSeparator
	}

	facts := make([]models.Fact, 0, len(raw))
	var report NormalizeReport

	for _, rf := range raw {
		path, reason := normalizePath(rf.Path, separator)
		if reason != "" {
			report.reject(reason)
			continue
		}

		current, curPresent, _ := coerceMeasures(rf.Current)
		comparison, cmpPresent, cmpRevenue := coerceMeasures(rf.Comparison)
		if !curPresent && !cmpPresent {
			report.reject(RejectNoMeasure)
			continue
		}

		facts = append(facts, models.Fact{
			Path:          path,
			Current:       current,
			Comparison:    comparison,
			HasComparison: cmpRevenue,
		})
		report.Accepted++
	}

	return facts, report
}

// normalizePath trims segments and returns the filled leading ones.
// A filled segment after an empty one is a gap.
func normalizePath(segments []string, separator string) ([]string, RejectReason) {
	filled := make([]string, 0, len(segments))
	ended := false

	for _, s := range segments {
		s = strings.TrimSpace(s)
		if s == "" {
			ended = true
			continue
		}
		if ended {
			return nil, RejectPathGap
		}
		if strings.Contains(s, separator) {
			return nil, RejectSeparator
		}
		filled = append(filled, s)
	}

	if len(filled) == 0 {
		return nil, RejectEmptyPath
	}
	return filled, ""
}

// coerceMeasures reads revenue, margin and quantity from an untyped group.
// present is false when none of the three keys carries a non-null value;
// revenue reports whether the revenue key itself did.
func coerceMeasures(group map[string]any) (ms models.Measures, present, revenue bool) {
	if len(group) == 0 {
		return ms, false, false
	}

	var ok bool
	var v float64

	if v, ok = coerceField(group, models.KeyRevenue); ok {
		ms.Revenue = v
		present = true
		revenue = true
	}
	if v, ok = coerceField(group, models.KeyMargin); ok {
		ms.Margin = v
		present = true
	}
	if v, ok = coerceField(group, models.KeyQuantity); ok {
		ms.Quantity = v
		present = true
	}
	return ms, present, revenue
}

// coerceField looks key up exactly, then case-insensitively. Providers are
// not consistent about casing ("Revenue", "REVENUE"); when several variants
// exist the first non-null one in byte order wins.
func coerceField(group map[string]any, key string) (float64, bool) {
	if raw, ok := group[key]; ok && raw != nil {
		return toNumber(raw), true
	}

	var variants []string
	for k := range group {
		if k != key && strings.EqualFold(k, key) {
			variants = append(variants, k)
		}
	}
	sort.Strings(variants)
	for _, k := range variants {
		if raw := group[k]; raw != nil {
			return toNumber(raw), true
		}
	}
	return 0, false
}

// toNumber coerces a present value to a finite float. Anything that is not a
// number or a numeric string becomes 0.
func toNumber(v any) float64 {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int8:
		f = float64(n)
	case int16:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint:
		f = float64(n)
	case uint8:
		f = float64(n)
	case uint16:
		f = float64(n)
	case uint32:
		f = float64(n)
	case uint64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0
		}
		f = parsed
	default:
		return 0
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}
