package models

// RawFact is a fact as delivered by a Fact Provider, before validation.
// Measure groups are untyped so that providers may hand over whatever their
// source produced (numbers, numeric strings, nulls).
type RawFact struct {
	Path       []string       `json:"path"`
	Current    map[string]any `json:"current,omitempty"`
	Comparison map[string]any `json:"comparison,omitempty"`
}

// Measure keys recognised inside RawFact measure groups.
const (
	KeyRevenue  = "revenue"
	KeyMargin   = "margin"
	KeyQuantity = "quantity"
)

// Measures holds one period's figures for a fact or an aggregated node.
type Measures struct {
	Revenue  float64 `json:"revenue"`
	Margin   float64 `json:"margin"`
	Quantity float64 `json:"quantity"`
}

// Add accumulates o into m.
func (m *Measures) Add(o Measures) {
	m.Revenue += o.Revenue
	m.Margin += o.Margin
	m.Quantity += o.Quantity
}

// Fact is a validated leaf record. Path holds only the filled leading
// segments, so len(Path) is the fact's filled depth.
//
// HasComparison is false when the source carried no comparison revenue at
// all. Comparison.Revenue is then 0 but must not be read as a zero baseline.
type Fact struct {
	Path          []string `json:"path"`
	Current       Measures `json:"current"`
	Comparison    Measures `json:"comparison"`
	HasComparison bool     `json:"has_comparison"`
}

// Depth returns the number of filled path segments.
func (f Fact) Depth() int {
	return len(f.Path)
}
