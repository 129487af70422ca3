// Package segment builds a hierarchical segmentation of categorized sales
// facts and lets a presentation layer navigate it level by level.
//
// The pipeline is Normalize -> AggregateLevels -> AssembleTree, run to
// completion inside Engine.Rebuild before the new tree becomes visible. The
// Engine is synchronous and not safe for concurrent use; callers sharing one
// across goroutines must serialise access themselves.
package segment

import (
	"time"

	"segmentation/pkg/models"
)

// Options configure an Engine. Zero values fall back to package defaults.
type Options struct {
	Depth      int
	Separator  string
	Measure    Measure
	Sort       SortMode
	Thresholds Thresholds
}

// RebuildReport describes the outcome of one rebuild.
type RebuildReport struct {
	NormalizeReport
	Depth    int           `json:"depth"`
	Nodes    int           `json:"nodes"`
	Roots    int           `json:"roots"`
	Duration time.Duration `json:"duration_ns"`
}

// NavigationState is a snapshot of the navigator.
type NavigationState struct {
	ActiveNodeID string   `json:"active_node_id"`
	History      []string `json:"history"`
}

// Engine holds the current Tree and NavigationState for one fact scope.
type Engine struct {
	opts    Options
	tree    *Tree
	nav     *Navigator
	measure Measure
	sort    SortMode
	last    RebuildReport
}

// New returns an engine with an empty tree, positioned at the root.
func New(opts Options) *Engine {
	if opts.Depth < 1 {
		opts.Depth = DefaultDepth
	}
	if opts.Separator == "" {
		opts.Separator = DefaultSeparator
	}
	if !opts.Measure.Valid() {
		opts.Measure = MeasureRevenue
	}
	if opts.Sort == "" {
		opts.Sort = SortNone
	}
	if !(opts.Thresholds.StrongPct > 0) {
		opts.Thresholds = DefaultThresholds()
	}

	return &Engine{
		opts:    opts,
		tree:    AssembleTree(nil, opts.Separator),
		nav:     NewNavigator(),
		measure: opts.Measure,
		sort:    opts.Sort,
	}
}

// Rebuild replaces the tree with one built from raw at the given depth
// (depth < 1 uses the engine default) and resets navigation. The new tree is
// swapped in only after it is fully assembled.
func (e *Engine) Rebuild(raw []models.RawFact, depth int) RebuildReport {
	start := time.Now()
	if depth < 1 {
		depth = e.opts.Depth
	}

	facts, norm := NormalizeFacts(raw, e.opts.Separator)
	tree := BuildTree(facts, depth, e.opts.Separator)

	e.tree = tree
	e.nav.Reset()

	e.last = RebuildReport{
		NormalizeReport: norm,
		Depth:           depth,
		Nodes:           tree.Len(),
		Roots:           len(tree.ChildIDs("")),
		Duration:        time.Since(start),
	}
	return e.last
}

// LastReport returns the report of the most recent rebuild.
func (e *Engine) LastReport() RebuildReport {
	return e.last
}

// Tree returns the current tree. It is never nil.
func (e *Engine) Tree() *Tree {
	return e.tree
}

// State returns a snapshot of the navigation state.
func (e *Engine) State() NavigationState {
	return NavigationState{
		ActiveNodeID: e.nav.Active(),
		History:      e.nav.History(),
	}
}

// DrillInto makes nodeID the active level when it exists and has children.
// It reports whether navigation moved.
func (e *Engine) DrillInto(nodeID string) bool {
	return e.nav.DrillInto(e.tree, nodeID)
}

// GoBack returns to the previously active node, or to the root.
func (e *Engine) GoBack() {
	e.nav.GoBack()
}

// Reset returns to the root with an empty history.
func (e *Engine) Reset() {
	e.nav.Reset()
}

// SetPrimaryMeasure changes the projected measure without rebuilding. It
// reports false, leaving the selection unchanged, for an unknown measure.
func (e *Engine) SetPrimaryMeasure(m Measure) bool {
	if !m.Valid() {
		return false
	}
	e.measure = m
	return true
}

// PrimaryMeasure returns the projected measure.
func (e *Engine) PrimaryMeasure() Measure {
	return e.measure
}

// SetSort changes the ordering of projected levels.
func (e *Engine) SetSort(mode SortMode) {
	if _, err := ParseSortMode(string(mode)); err == nil {
		e.sort = mode
	}
}

// Thresholds returns the classification boundaries in use.
func (e *Engine) Thresholds() Thresholds {
	return e.opts.Thresholds
}

// GetChildrenOfActiveLevel projects the children of the active node.
func (e *Engine) GetChildrenOfActiveLevel() []LevelItem {
	return ProjectLevel(e.tree, e.nav.Active(), ProjectOptions{
		Measure:    e.measure,
		Sort:       e.sort,
		Thresholds: e.opts.Thresholds,
	})
}

// ActiveLevel returns the depth of the nodes currently displayed (1 at root).
func (e *Engine) ActiveLevel() int {
	if n, ok := e.tree.Node(e.nav.Active()); ok {
		return n.Level + 1
	}
	return 1
}

// Breadcrumb returns the active node and its ancestors, root-most first.
func (e *Engine) Breadcrumb() []Node {
	return e.tree.Ancestors(e.nav.Active())
}

// Totals aggregates every root node.
func (e *Engine) Totals() Node {
	return e.tree.Totals()
}

// TrendCounts counts the active level's items per classification bucket.
func (e *Engine) TrendCounts() map[Trend]int {
	counts := make(map[Trend]int, len(Trends))
	for _, t := range Trends {
		counts[t] = 0
	}
	for _, it := range e.GetChildrenOfActiveLevel() {
		counts[it.Trend]++
	}
	return counts
}
