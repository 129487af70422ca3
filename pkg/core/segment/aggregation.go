package segment

import "segmentation/pkg/models"

// Aggregate is the running current/comparison sum of one node id at one depth.
// ComparisonDefined is set once any contributing fact carried a comparison
// revenue.
type Aggregate struct {
	ID                string
	Name              string
	ParentID          string
	Level             int
	Current           models.Measures
	Comparison        models.Measures
	ComparisonDefined bool
}

// LevelAggregates holds every aggregate of one depth, with ids in order of
// first occurrence in the fact list.
type LevelAggregates struct {
	Depth int
	Order []string
	ByID  map[string]*Aggregate
}

// AggregateLevels rolls facts up into per-depth sums in a single pass.
//
// A fact with filled depth k contributes the same measures to each of its
// ancestors at depths 1..min(k, depth), so every parent's sum equals the sum
// of its children whenever all contributing facts reach the child depth.
func AggregateLevels(facts []models.Fact, depth int, separator string) []LevelAggregates {
	if depth < 1 {
		depth = DefaultDepth
	}
	if separator == "" {
		separator = DefaultSeparator
	}

	levels := make([]LevelAggregates, depth)
	for i := range levels {
		levels[i] = LevelAggregates{
			Depth: i + 1,
			ByID:  make(map[string]*Aggregate),
		}
	}

	for _, f := range facts {
		reach := min(f.Depth(), depth)
		parentID := ""
		for d := 1; d <= reach; d++ {
			name := f.Path[d-1]
			id := nodeID(parentID, name, separator)

			lvl := &levels[d-1]
			agg, ok := lvl.ByID[id]
			if !ok {
				agg = &Aggregate{
					ID:       id,
					Name:     name,
					ParentID: parentID,
					Level:    d,
				}
				lvl.ByID[id] = agg
				lvl.Order = append(lvl.Order, id)
			}
			agg.Current.Add(f.Current)
			agg.Comparison.Add(f.Comparison)
			if f.HasComparison {
				agg.ComparisonDefined = true
			}

			parentID = id
		}
	}

	return levels
}

// nodeID builds a child id from its parent id. Depth-1 ids are the bare name.
func nodeID(parentID, name, separator string) string {
	if parentID == "" {
		return name
	}
	return parentID + separator + name
}
