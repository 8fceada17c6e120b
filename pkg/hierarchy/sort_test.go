package hierarchy

import (
	"testing"

	"github.com/vanderheijden86/taggrove/pkg/model"
)

func node(id, parent string, level model.Level, order float64) model.Node {
	return model.Node{
		ID:       id,
		OwnerID:  "alice",
		Name:     "node " + id,
		Level:    level,
		ParentID: parent,
		Order:    order,
	}
}

func ids(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.ID
	}
	return out
}

func assertOrder(t *testing.T, entries []Entry, want []string) {
	t.Helper()
	got := ids(entries)
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("position %d: got %v, want %v", i, got, want)
		}
	}
}

func TestPreOrderEmpty(t *testing.T) {
	if got := PreOrder(nil); got != nil {
		t.Errorf("PreOrder(nil) = %v, want nil", got)
	}
}

func TestPreOrderNominal(t *testing.T) {
	nodes := []model.Node{
		node("tag-b", "grp", model.LevelTag, 2),
		node("cat", "", model.LevelCategory, 1),
		node("grp", "sub", model.LevelGroup, 1),
		node("tag-a", "grp", model.LevelTag, 1),
		node("sub", "cat", model.LevelSubcategory, 1),
		node("cat2", "", model.LevelCategory, 2),
	}
	entries := PreOrder(nodes)
	assertOrder(t, entries, []string{"cat", "sub", "grp", "tag-a", "tag-b", "cat2"})
	for _, e := range entries {
		if e.Orphan {
			t.Errorf("%s flagged orphan in a fully connected tree", e.ID)
		}
	}
}

func TestPreOrderUngroupedIsNotOrphan(t *testing.T) {
	// A deep-level node with no parent at all is ungrouped, which is a
	// legitimate state, unlike a dangling parent reference.
	nodes := []model.Node{
		node("cat", "", model.LevelCategory, 1),
		node("loose-tag", "", model.LevelTag, 2),
	}
	entries := PreOrder(nodes)
	assertOrder(t, entries, []string{"cat", "loose-tag"})
	if entries[1].Orphan {
		t.Error("ungrouped node must not be flagged as orphan")
	}
}

func TestPreOrderOrphanKeptAndFlagged(t *testing.T) {
	nodes := []model.Node{
		node("cat", "", model.LevelCategory, 1),
		node("ghost-child", "missing", model.LevelGroup, 1),
		node("grandchild", "ghost-child", model.LevelTag, 1),
	}
	entries := PreOrder(nodes)
	assertOrder(t, entries, []string{"cat", "ghost-child", "grandchild"})

	if !entries[1].Orphan {
		t.Error("node with unresolvable parent must be flagged")
	}
	if entries[2].Orphan {
		t.Error("resolvable child of an orphan keeps its normal flag")
	}
}

func TestPreOrderCycleRemnants(t *testing.T) {
	// A corrupted parent chain: a <-> b reference each other.
	nodes := []model.Node{
		node("cat", "", model.LevelCategory, 1),
		node("b", "a", model.LevelGroup, 1),
		node("a", "b", model.LevelGroup, 1),
	}
	entries := PreOrder(nodes)
	assertOrder(t, entries, []string{"cat", "a", "b"})
	if !entries[1].Orphan || !entries[2].Orphan {
		t.Error("cycle members must be flagged")
	}
}

func TestPreOrderEveryNodeExactlyOnce(t *testing.T) {
	nodes := []model.Node{
		node("cat", "", model.LevelCategory, 1),
		node("sub", "cat", model.LevelSubcategory, 1),
		node("ghost", "nope", model.LevelTag, 1),
		node("x", "y", model.LevelGroup, 1),
		node("y", "x", model.LevelGroup, 2),
	}
	entries := PreOrder(nodes)
	seen := map[string]int{}
	for _, e := range entries {
		seen[e.ID]++
	}
	if len(seen) != len(nodes) {
		t.Fatalf("expected %d distinct nodes, got %d", len(nodes), len(seen))
	}
	for id, count := range seen {
		if count != 1 {
			t.Errorf("node %s emitted %d times", id, count)
		}
	}
}

func TestSortSiblingsTieBreaksByID(t *testing.T) {
	group := []model.Node{
		node("b", "", model.LevelCategory, 1),
		node("a", "", model.LevelCategory, 1),
		node("c", "", model.LevelCategory, 0.5),
	}
	SortSiblings(group)
	if group[0].ID != "c" || group[1].ID != "a" || group[2].ID != "b" {
		t.Errorf("got %s,%s,%s; want c,a,b", group[0].ID, group[1].ID, group[2].ID)
	}
}

func TestEntryIndent(t *testing.T) {
	e := Entry{Node: node("t", "", model.LevelTag, 1)}
	if e.Indent() != 6 {
		t.Errorf("tag indent = %d, want 6", e.Indent())
	}
}
