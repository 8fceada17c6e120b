// Package hierarchy implements the four-level tag tree: a consistency-checked
// store over a storage backend, pre-order sorting for display, structural
// mutators (indent, move, reparent), bulk operations, and the usage counter
// bridge to the transaction subsystem.
package hierarchy

import (
	"sort"

	"github.com/vanderheijden86/taggrove/pkg/model"
)

// Entry is one row of the pre-ordered listing: a node plus its orphan flag.
// Orphans are nodes whose declared parent cannot be resolved; they are
// appended at the end of the listing rather than dropped, because data must
// never silently disappear.
type Entry struct {
	model.Node
	Orphan bool
}

// Indent returns the display indentation for the entry, derived from level.
func (e Entry) Indent() int {
	return e.Node.Level.Indent()
}

// PreOrder converts an unordered node collection into a pre-order traversal:
// parentless nodes ordered by sibling order, each followed immediately by its
// full subtree. Orphans (unresolvable parent) come last, flagged, each
// followed by their own resolvable subtree. A visited set guards against a
// corrupted parent chain forming a cycle; any such remnant is also appended
// flagged so the output always contains every input node exactly once.
func PreOrder(nodes []model.Node) []Entry {
	if len(nodes) == 0 {
		return nil
	}

	index := make(map[string]model.Node, len(nodes))
	children := make(map[string][]model.Node)
	var roots []model.Node
	for _, n := range nodes {
		index[n.ID] = n
		if n.ParentID == "" {
			roots = append(roots, n)
		} else {
			children[n.ParentID] = append(children[n.ParentID], n)
		}
	}
	SortSiblings(roots)
	for _, group := range children {
		SortSiblings(group)
	}

	out := make([]Entry, 0, len(nodes))
	visited := make(map[string]bool, len(nodes))

	var emit func(n model.Node, orphan bool)
	emit = func(n model.Node, orphan bool) {
		if visited[n.ID] {
			return // cycle guard; invariant 3 should make this unreachable
		}
		visited[n.ID] = true
		out = append(out, Entry{Node: n, Orphan: orphan})
		for _, c := range children[n.ID] {
			emit(c, false)
		}
	}

	for _, r := range roots {
		emit(r, false)
	}

	// Orphan pass: nodes whose parent id resolves to nothing.
	var orphans []model.Node
	for _, n := range nodes {
		if visited[n.ID] {
			continue
		}
		if _, ok := index[n.ParentID]; !ok {
			orphans = append(orphans, n)
		}
	}
	SortSiblings(orphans)
	for _, o := range orphans {
		emit(o, true)
	}

	// Anything still unvisited sits on a corrupted parent cycle.
	var remnants []model.Node
	for _, n := range nodes {
		if !visited[n.ID] {
			remnants = append(remnants, n)
		}
	}
	sort.Slice(remnants, func(i, j int) bool { return remnants[i].ID < remnants[j].ID })
	for _, n := range remnants {
		visited[n.ID] = true
		out = append(out, Entry{Node: n, Orphan: true})
	}

	return out
}

// SortSiblings orders a sibling group by order value. Ties (possible after
// concurrent interpolation producing equal values) fall back to id order so
// display order stays deterministic; this is a soft guarantee, not one of the
// tree invariants.
func SortSiblings(group []model.Node) {
	sort.Slice(group, func(i, j int) bool {
		if group[i].Order != group[j].Order {
			return group[i].Order < group[j].Order
		}
		return group[i].ID < group[j].ID
	})
}

// indexOf returns the position of id in a pre-ordered listing, or -1.
func indexOf(entries []Entry, id string) int {
	for i, e := range entries {
		if e.Node.ID == id {
			return i
		}
	}
	return -1
}
