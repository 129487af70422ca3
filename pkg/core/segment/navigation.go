package segment

// ChildLookup is the slice of the tree the navigator needs to validate a
// drill target.
type ChildLookup interface {
	Has(id string) bool
	HasChildren(id string) bool
}

// Navigator tracks the active node and a back-stack of previously active
// ids. The empty id is the root. None of its operations fail: invalid
// targets leave the state untouched.
type Navigator struct {
	active  string
	history []string
}

// NewNavigator returns a navigator at the root with an empty history.
func NewNavigator() *Navigator {
	return &Navigator{}
}

// Active returns the active node id ("" at the root).
func (n *Navigator) Active() string {
	return n.active
}

// AtRoot reports whether the root is active.
func (n *Navigator) AtRoot() bool {
	return n.active == ""
}

// History returns a copy of the back-stack, oldest first.
func (n *Navigator) History() []string {
	out := make([]string, len(n.history))
	copy(out, n.history)
	return out
}

// DrillInto makes id the active node if it exists in tree and has children.
// It reports whether the state changed.
func (n *Navigator) DrillInto(tree ChildLookup, id string) bool {
	if tree == nil || id == "" || id == n.active {
		return false
	}
	if !tree.Has(id) || !tree.HasChildren(id) {
		return false
	}
	n.history = append(n.history, n.active)
	n.active = id
	return true
}

// GoBack pops the last active id. With an empty history it returns to the root.
func (n *Navigator) GoBack() {
	if len(n.history) == 0 {
		n.active = ""
		return
	}
	last := len(n.history) - 1
	n.active = n.history[last]
	n.history = n.history[:last]
}

// Reset returns to the root and clears the history.
func (n *Navigator) Reset() {
	n.active = ""
	n.history = nil
}
