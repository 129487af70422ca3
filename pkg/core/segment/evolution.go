package segment

import "math"

// Evolution returns the period-over-period change of current against
// comparison, in percent:
//   - comparison > 0: (current - comparison) / comparison * 100
//   - comparison == 0 and current > 0: 100
//   - otherwise (both zero, negative or undefined baseline): 0
func Evolution(current, comparison float64) float64 {
	if math.IsNaN(current) || math.IsInf(current, 0) {
		current = 0
	}
	switch {
	case comparison > 0 && !math.IsInf(comparison, 1):
		return (current - comparison) / comparison * 100
	case comparison == 0 && current > 0:
		return 100
	default:
		return 0
	}
}

// MarginRate returns margin as a percentage of revenue, or 0 when revenue is
// not positive.
func MarginRate(margin, revenue float64) float64 {
	if !(revenue > 0) || math.IsInf(revenue, 1) || math.IsNaN(margin) || math.IsInf(margin, 0) {
		return 0
	}
	return margin / revenue * 100
}

// Round1 rounds to one decimal place for presentation.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// Trend is the classification bucket of an evolution percentage.
type Trend string

const (
	TrendStrongGrowth  Trend = "strong growth"
	TrendGrowth        Trend = "growth"
	TrendDecline       Trend = "decline"
	TrendStrongDecline Trend = "strong decline"
)

// Trends lists the buckets from most positive to most negative.
var Trends = []Trend{TrendStrongGrowth, TrendGrowth, TrendDecline, TrendStrongDecline}

// DefaultStrongThresholdPct separates "strong" buckets from the plain ones.
const DefaultStrongThresholdPct = 10.0

// Thresholds are the classification boundaries. A value sitting exactly on a
// boundary belongs to the more positive bucket.
type Thresholds struct {
	StrongPct float64 `json:"strong_pct"`
}

// DefaultThresholds returns the ±10% boundaries.
func DefaultThresholds() Thresholds {
	return Thresholds{StrongPct: DefaultStrongThresholdPct}
}

// Classify buckets an unrounded evolution percentage.
func (t Thresholds) Classify(evolutionPct float64) Trend {
	strong := t.StrongPct
	if !(strong > 0) {
		strong = DefaultStrongThresholdPct
	}
	switch {
	case evolutionPct >= strong:
		return TrendStrongGrowth
	case evolutionPct >= 0:
		return TrendGrowth
	case evolutionPct >= -strong:
		return TrendDecline
	default:
		return TrendStrongDecline
	}
}

// Classify buckets with the default ±10% thresholds.
func Classify(evolutionPct float64) Trend {
	return DefaultThresholds().Classify(evolutionPct)
}
