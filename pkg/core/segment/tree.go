package segment

import (
	"math"

	"segmentation/pkg/models"
)

// Tree is the immutable node table produced by a rebuild: an id -> Node map
// plus a parent id -> child ids index in first-occurrence order. Roots are
// indexed under the empty parent id.
type Tree struct {
	nodes     map[string]Node
	children  map[string][]string
	depth     int
	separator string
}

// AssembleTree merges per-level aggregates into a Tree, computing evolution
// and margin rate for each node. Levels are consumed in ascending depth so a
// parent is always present before its first child is indexed.
func AssembleTree(levels []LevelAggregates, separator string) *Tree {
	t := &Tree{
		nodes:     make(map[string]Node),
		children:  make(map[string][]string),
		depth:     len(levels),
		separator: separator,
	}

	for _, lvl := range levels {
		for _, id := range lvl.Order {
			agg := lvl.ByID[id]
			if agg.ParentID != "" {
				if _, ok := t.nodes[agg.ParentID]; !ok {
					continue
				}
			}
			t.nodes[id] = Node{
				ID:                agg.ID,
				Name:              agg.Name,
				ParentID:          agg.ParentID,
				Level:             agg.Level,
				Current:           agg.Current,
				Comparison:        agg.Comparison,
				ComparisonDefined: agg.ComparisonDefined,
				EvolutionPct:      Evolution(agg.Current.Revenue, baseline(agg.Comparison, agg.ComparisonDefined)),
				MarginRatePct:     MarginRate(agg.Current.Margin, agg.Current.Revenue),
			}
			t.children[agg.ParentID] = append(t.children[agg.ParentID], id)
		}
	}

	return t
}

// BuildTree runs the aggregate and assemble steps over already normalized facts.
func BuildTree(facts []models.Fact, depth int, separator string) *Tree {
	if depth < 1 {
		depth = DefaultDepth
	}
	if separator == "" {
		separator = DefaultSeparator
	}
	return AssembleTree(AggregateLevels(facts, depth, separator), separator)
}

// Len returns the number of nodes.
func (t *Tree) Len() int {
	if t == nil {
		return 0
	}
	return len(t.nodes)
}

// Depth returns the hierarchy depth the tree was built with.
func (t *Tree) Depth() int {
	if t == nil {
		return 0
	}
	return t.depth
}

// Separator returns the string joining path segments in node ids.
func (t *Tree) Separator() string {
	if t == nil {
		return DefaultSeparator
	}
	return t.separator
}

// Node looks up a node by id.
func (t *Tree) Node(id string) (Node, bool) {
	if t == nil {
		return Node{}, false
	}
	n, ok := t.nodes[id]
	return n, ok
}

// Has reports whether id names a node.
func (t *Tree) Has(id string) bool {
	_, ok := t.Node(id)
	return ok
}

// ChildIDs returns a copy of the ordered child ids of parentID. The empty
// parent id yields the roots.
func (t *Tree) ChildIDs(parentID string) []string {
	if t == nil {
		return nil
	}
	ids := t.children[parentID]
	out := make([]string, len(ids))
	copy(out, ids)
	return out
}

// Children returns the ordered child nodes of parentID.
func (t *Tree) Children(parentID string) []Node {
	if t == nil {
		return nil
	}
	ids := t.children[parentID]
	out := make([]Node, 0, len(ids))
	for _, id := range ids {
		out = append(out, t.nodes[id])
	}
	return out
}

// HasChildren reports whether id has at least one child.
func (t *Tree) HasChildren(id string) bool {
	if t == nil {
		return false
	}
	return len(t.children[id]) > 0
}

// Ancestors returns the chain from the root down to id, inclusive.
// It is empty for the root id or an unknown id.
func (t *Tree) Ancestors(id string) []Node {
	var chain []Node
	for id != "" {
		n, ok := t.Node(id)
		if !ok {
			return nil
		}
		chain = append(chain, n)
		id = n.ParentID
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}

// Walk visits every node depth-first in child order. Returning false from fn
// skips the node's subtree.
func (t *Tree) Walk(fn func(Node) bool) {
	if t == nil {
		return
	}
	var visit func(parentID string)
	visit = func(parentID string) {
		for _, id := range t.children[parentID] {
			if fn(t.nodes[id]) {
				visit(id)
			}
		}
	}
	visit("")
}

// Totals aggregates all roots into a single pseudo-node with empty id.
func (t *Tree) Totals() Node {
	total := Node{Name: "Total"}
	for _, n := range t.Children("") {
		total.Current.Add(n.Current)
		total.Comparison.Add(n.Comparison)
		total.ComparisonDefined = total.ComparisonDefined || n.ComparisonDefined
	}
	total.EvolutionPct = Evolution(total.Current.Revenue, baseline(total.Comparison, total.ComparisonDefined))
	total.MarginRatePct = MarginRate(total.Current.Margin, total.Current.Revenue)
	return total
}

// baseline returns the comparison revenue, or NaN when no contributing fact
// defined one. Evolution maps NaN to 0.
func baseline(cmp models.Measures, defined bool) float64 {
	if !defined {
		return math.NaN()
	}
	return cmp.Revenue
}
