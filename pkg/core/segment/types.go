package segment

import (
	"fmt"
	"strings"

	"segmentation/pkg/models"
)

// DefaultDepth is the hierarchy depth used when a caller passes depth < 1
// (universe -> category -> sub-category -> family).
const DefaultDepth = 4

// DefaultSeparator joins path segments into node ids.
const DefaultSeparator = "|"

// Measure selects which stored figure is projected as the display value.
type Measure string

const (
	MeasureRevenue  Measure = "revenue"
	MeasureMargin   Measure = "margin"
	MeasureQuantity Measure = "quantity"
)

// ParseMeasure resolves a measure name, case-insensitively.
func ParseMeasure(s string) (Measure, error) {
	switch Measure(strings.ToLower(strings.TrimSpace(s))) {
	case MeasureRevenue:
		return MeasureRevenue, nil
	case MeasureMargin:
		return MeasureMargin, nil
	case MeasureQuantity:
		return MeasureQuantity, nil
	}
	return "", fmt.Errorf("unknown measure %q (expected revenue, margin or quantity)", s)
}

// Valid reports whether m is one of the three known measures.
func (m Measure) Valid() bool {
	_, err := ParseMeasure(string(m))
	return err == nil
}

// pick returns the figure of ms selected by m. Unknown measures read revenue.
func (m Measure) pick(ms models.Measures) float64 {
	switch m {
	case MeasureMargin:
		return ms.Margin
	case MeasureQuantity:
		return ms.Quantity
	default:
		return ms.Revenue
	}
}

// Node is one aggregated entity of the tree.
//
// EvolutionPct and MarginRatePct are kept unrounded; rounding happens only
// when a node is projected for presentation. Without a defined comparison
// revenue EvolutionPct is 0.
type Node struct {
	ID                string          `json:"id"`
	Name              string          `json:"name"`
	ParentID          string          `json:"parent_id"`
	Level             int             `json:"level"`
	Current           models.Measures `json:"current"`
	Comparison        models.Measures `json:"comparison"`
	ComparisonDefined bool            `json:"comparison_defined"`

	EvolutionPct  float64 `json:"evolution_pct"`
	MarginRatePct float64 `json:"margin_rate_pct"`
}

// CurrentValue, CurrentMargin and friends mirror the flat field names used by
// the Presentation Layer.
func (n Node) CurrentValue() float64       { return n.Current.Revenue }
func (n Node) CurrentMargin() float64      { return n.Current.Margin }
func (n Node) CurrentQuantity() float64    { return n.Current.Quantity }
func (n Node) ComparisonValue() float64    { return n.Comparison.Revenue }
func (n Node) ComparisonMargin() float64   { return n.Comparison.Margin }
func (n Node) ComparisonQuantity() float64 { return n.Comparison.Quantity }

// Trend returns the classification bucket of the node's unrounded evolution.
func (n Node) Trend() Trend {
	return Classify(n.EvolutionPct)
}

// SortMode orders the projected level view.
type SortMode string

const (
	SortNone          SortMode = "none"
	SortValueDesc     SortMode = "value_desc"
	SortEvolutionDesc SortMode = "evolution_desc"
)

// ParseSortMode resolves a sort mode name. The empty string means SortNone.
func ParseSortMode(s string) (SortMode, error) {
	switch SortMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", SortNone:
		return SortNone, nil
	case SortValueDesc:
		return SortValueDesc, nil
	case SortEvolutionDesc:
		return SortEvolutionDesc, nil
	}
	return "", fmt.Errorf("unknown sort mode %q", s)
}
