package segment

import "sort"

// ItemMetadata carries the rounded evolution figures of a projected node.
type ItemMetadata struct {
	EvolutionPct  float64 `json:"evolution_pct"`
	MarginRatePct float64 `json:"margin_rate_pct"`
	Quantity      float64 `json:"quantity"`
}

// LevelItem is one node of the active level as handed to the presentation
// layer. Value is the current figure of the selected measure and
// SecondaryValue the comparison figure, both clamped at zero.
type LevelItem struct {
	ID             string       `json:"id"`
	Name           string       `json:"name"`
	ParentID       string       `json:"parent_id"`
	Level          int          `json:"level"`
	Value          float64      `json:"value"`
	SecondaryValue float64      `json:"secondary_value"`
	SharePct       float64      `json:"share_pct"`
	Trend          Trend        `json:"trend"`
	Drillable      bool         `json:"drillable"`
	Metadata       ItemMetadata `json:"metadata"`

	evolution float64
}

// DisplayValue is an alias of Value.
func (it LevelItem) DisplayValue() float64 {
	return it.Value
}

// ProjectOptions tune ProjectLevel.
type ProjectOptions struct {
	Measure    Measure
	Sort       SortMode
	Thresholds Thresholds
}

// ProjectLevel returns the children of parentID annotated for display.
// The result is empty when parentID is unknown or has no children.
func ProjectLevel(tree *Tree, parentID string, opts ProjectOptions) []LevelItem {
	if parentID != "" && !tree.Has(parentID) {
		return []LevelItem{}
	}
	children := tree.Children(parentID)
	items := make([]LevelItem, 0, len(children))

	var total float64
	for _, n := range children {
		value := clampDisplay(opts.Measure.pick(n.Current))
		total += value
		items = append(items, LevelItem{
			ID:             n.ID,
			Name:           n.Name,
			ParentID:       n.ParentID,
			Level:          n.Level,
			Value:          value,
			SecondaryValue: clampDisplay(opts.Measure.pick(n.Comparison)),
			Trend:          opts.Thresholds.Classify(n.EvolutionPct),
			Drillable:      tree.HasChildren(n.ID),
			Metadata: ItemMetadata{
				EvolutionPct:  Round1(n.EvolutionPct),
				MarginRatePct: Round1(n.MarginRatePct),
				Quantity:      n.Current.Quantity,
			},
			evolution: n.EvolutionPct,
		})
	}

	if total > 0 {
		for i := range items {
			items[i].SharePct = Round1(items[i].Value / total * 100)
		}
	}

	sortItems(items, opts.Sort)
	return items
}

func sortItems(items []LevelItem, mode SortMode) {
	switch mode {
	case SortValueDesc:
		sort.SliceStable(items, func(i, j int) bool {
			return items[i].Value > items[j].Value
		})
	case SortEvolutionDesc:
		sort.SliceStable(items, func(i, j int) bool {
			return items[i].evolution > items[j].evolution
		})
	}
}

// clampDisplay reports negative figures as zero. Stored aggregates keep the
// signed value.
func clampDisplay(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
