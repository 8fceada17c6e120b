package ui

import (
	"context"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/vanderheijden86/taggrove/pkg/hierarchy"
	"github.com/vanderheijden86/taggrove/pkg/model"
	"github.com/vanderheijden86/taggrove/pkg/storage"
)

func keyMsg(s string) tea.KeyMsg {
	switch s {
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "shift+tab":
		return tea.KeyMsg{Type: tea.KeyShiftTab}
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// newTestModel builds a model over a seeded in-memory store and settles the
// initial load so the tree is populated.
func newTestModel(t *testing.T, stateDir string, nodes ...model.Node) (Model, *hierarchy.Store, *storage.Memory) {
	t.Helper()
	ctx := context.Background()
	mem := storage.NewMemory()
	for _, n := range nodes {
		if _, err := mem.Create(ctx, "alice", n); err != nil {
			t.Fatalf("seed %s: %v", n.ID, err)
		}
	}
	store := hierarchy.NewStore(mem, "alice")
	usage := hierarchy.NewUsageBridge(mem, "alice", 0, zerolog.Nop())

	m := NewModel(store, usage, stateDir, zerolog.Nop())
	m.theme = testTheme()
	m.tree = NewTreeModel(m.theme)

	m = settle(t, m, tea.WindowSizeMsg{Width: 80, Height: 24})
	m = settle(t, m, m.loadCmd()())
	return m, store, mem
}

// settle feeds a message into Update and synchronously runs every follow-up
// command until the model stops emitting messages.
func settle(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	for depth := 0; msg != nil && depth < 16; depth++ {
		next, cmd := m.Update(msg)
		m = next.(Model)
		if cmd == nil {
			return m
		}
		msg = cmd()
		if _, quit := msg.(tea.QuitMsg); quit {
			return m
		}
	}
	return m
}

func seedTree() []model.Node {
	return []model.Node{
		{ID: "cat", Name: "Spending", Level: model.LevelCategory, Order: 1},
		{ID: "sub", Name: "Daily", Level: model.LevelSubcategory, ParentID: "cat", Order: 1},
		{ID: "grp", Name: "Food", Level: model.LevelGroup, ParentID: "sub", Order: 1},
		{ID: "tag-a", Name: "Groceries", Level: model.LevelTag, ParentID: "grp", Order: 1},
		{ID: "tag-b", Name: "Takeout", Level: model.LevelTag, ParentID: "grp", Order: 2},
	}
}

func TestBrowseNavigation(t *testing.T) {
	m, _, _ := newTestModel(t, "", seedTree()...)

	m = settle(t, m, keyMsg("j"))
	m = settle(t, m, keyMsg("j"))
	if cur, _ := m.tree.Current(); cur.ID != "grp" {
		t.Errorf("after jj cursor on %s", cur.ID)
	}

	m = settle(t, m, keyMsg("G"))
	if cur, _ := m.tree.Current(); cur.ID != "tag-b" {
		t.Errorf("after G cursor on %s", cur.ID)
	}

	m = settle(t, m, keyMsg("g"))
	if cur, _ := m.tree.Current(); cur.ID != "cat" {
		t.Errorf("after g cursor on %s", cur.ID)
	}
}

func TestSpaceSelectsAndAdvances(t *testing.T) {
	m, _, _ := newTestModel(t, "", seedTree()...)

	m = settle(t, m, keyMsg(" "))
	m = settle(t, m, keyMsg(" "))
	if n := m.tree.SelectionCount(); n != 2 {
		t.Errorf("selected %d, want 2", n)
	}
	if cur, _ := m.tree.Current(); cur.ID != "grp" {
		t.Errorf("cursor should have advanced twice, on %s", cur.ID)
	}

	m = settle(t, m, keyMsg("esc"))
	if m.tree.SelectionCount() != 0 {
		t.Error("esc should clear the selection")
	}
}

func TestIndentKey(t *testing.T) {
	m, store, _ := newTestModel(t, "",
		model.Node{ID: "a", Name: "Alpha", Level: model.LevelCategory, Order: 1},
		model.Node{ID: "b", Name: "Beta", Level: model.LevelCategory, Order: 2},
	)

	m = settle(t, m, keyMsg("j")) // onto Beta
	m = settle(t, m, keyMsg("tab"))

	n, ok := store.Node("b")
	if !ok {
		t.Fatal("b disappeared")
	}
	if n.Level != model.LevelSubcategory || n.ParentID != "a" {
		t.Errorf("b after indent: level=%v parent=%q", n.Level, n.ParentID)
	}
	// Cursor follows the mutated node through the reload.
	if cur, _ := m.tree.Current(); cur.ID != "b" {
		t.Errorf("cursor on %s, want b", cur.ID)
	}

	m = settle(t, m, keyMsg("shift+tab"))
	n, _ = store.Node("b")
	if n.Level != model.LevelCategory || n.ParentID != "" {
		t.Errorf("b after outdent: level=%v parent=%q", n.Level, n.ParentID)
	}
}

func TestIndentAtTopShowsFriendlyStatus(t *testing.T) {
	m, _, _ := newTestModel(t, "",
		model.Node{ID: "a", Name: "Alpha", Level: model.LevelCategory, Order: 1},
	)

	m = settle(t, m, keyMsg("tab"))
	if !m.statusErr || m.status != "no eligible parent" {
		t.Errorf("status = %q (err=%v)", m.status, m.statusErr)
	}
}

func TestRenameFlow(t *testing.T) {
	m, store, _ := newTestModel(t, "", seedTree()...)

	m.tree.CursorTo("tag-a")
	m = settle(t, m, keyMsg("r"))
	if m.mode != modeEdit {
		t.Fatal("r should enter edit mode")
	}
	if m.input.Value() != "Groceries" {
		t.Errorf("input prefilled with %q", m.input.Value())
	}

	m.input.SetValue("Supermarket")
	m = settle(t, m, keyMsg("enter"))

	if m.mode != modeBrowse {
		t.Error("commit should return to browse")
	}
	n, _ := store.Node("tag-a")
	if n.Name != "Supermarket" {
		t.Errorf("name = %q", n.Name)
	}
}

func TestRenameEscCancels(t *testing.T) {
	m, store, _ := newTestModel(t, "", seedTree()...)

	m.tree.CursorTo("tag-a")
	m = settle(t, m, keyMsg("r"))
	m.input.SetValue("Scratch")
	m = settle(t, m, keyMsg("esc"))

	if m.mode != modeBrowse {
		t.Error("esc should return to browse")
	}
	n, _ := store.Node("tag-a")
	if n.Name != "Groceries" {
		t.Errorf("name changed to %q on cancel", n.Name)
	}
}

func TestCreateOnEmptyTree(t *testing.T) {
	m, store, _ := newTestModel(t, "")

	m = settle(t, m, keyMsg("enter"))
	if m.mode != modeEdit {
		t.Fatal("enter on empty tree should start a create")
	}
	if m.createLevel != model.LevelTag {
		t.Errorf("empty tree creates at %v, want tag", m.createLevel)
	}

	m.input.SetValue("Rent")
	m = settle(t, m, keyMsg("enter"))

	nodes := store.Nodes()
	if len(nodes) != 1 {
		t.Fatalf("got %d nodes", len(nodes))
	}
	if nodes[0].Name != "Rent" || nodes[0].Level != model.LevelTag || nodes[0].ParentID != "" {
		t.Errorf("created %+v", nodes[0])
	}
	if cur, _ := m.tree.Current(); cur.Name != "Rent" {
		t.Error("cursor should land on the new node")
	}
}

func TestCreateSiblingBetween(t *testing.T) {
	m, store, _ := newTestModel(t, "", seedTree()...)

	m.tree.CursorTo("tag-a")
	m = settle(t, m, keyMsg("enter"))
	m.input.SetValue("Cafe")
	m = settle(t, m, keyMsg("enter"))

	var created model.Node
	for _, n := range store.Nodes() {
		if n.Name == "Cafe" {
			created = n
		}
	}
	if created.ID == "" {
		t.Fatal("Cafe not created")
	}
	if created.ParentID != "grp" || created.Level != model.LevelTag {
		t.Errorf("created %+v", created)
	}
	// Ordered between the two existing tags.
	if created.Order <= 1 || created.Order >= 2 {
		t.Errorf("order = %v, want between 1 and 2", created.Order)
	}
}

func TestCreateChildOnTagFails(t *testing.T) {
	m, _, _ := newTestModel(t, "", seedTree()...)

	m.tree.CursorTo("tag-a")
	m = settle(t, m, keyMsg("n"))
	if m.mode == modeEdit {
		t.Error("a tag has no children; edit mode must not open")
	}
	if !m.statusErr {
		t.Error("expected an error status")
	}
}

func TestDiscardEmptyName(t *testing.T) {
	m, store, _ := newTestModel(t, "", seedTree()...)

	m.tree.CursorTo("tag-a")
	m = settle(t, m, keyMsg("enter"))
	m.input.SetValue("   ")
	m = settle(t, m, keyMsg("enter"))

	if len(store.Nodes()) != 5 {
		t.Error("blank name should create nothing")
	}
}

func TestDeleteConfirmFlow(t *testing.T) {
	m, store, _ := newTestModel(t, "", seedTree()...)

	m.tree.CursorTo("grp")
	m = settle(t, m, keyMsg("x"))
	if m.mode != modeConfirm {
		t.Fatal("delete should ask first")
	}
	if !strings.Contains(m.confirmPrompt, "2 descendant") {
		t.Errorf("prompt should count the subtree: %q", m.confirmPrompt)
	}

	// Decline: nothing deleted.
	m = settle(t, m, keyMsg("n"))
	if m.mode != modeBrowse || len(store.Nodes()) != 5 {
		t.Fatal("decline must not delete")
	}

	// Accept: group and both tags go.
	m = settle(t, m, keyMsg("x"))
	m = settle(t, m, keyMsg("y"))
	if got := len(store.Nodes()); got != 2 {
		t.Errorf("after delete %d nodes remain, want 2", got)
	}
	if _, ok := store.Node("tag-b"); ok {
		t.Error("descendant tag-b survived")
	}
}

func TestMoveSwapsSiblings(t *testing.T) {
	m, store, _ := newTestModel(t, "", seedTree()...)

	m.tree.CursorTo("tag-a")
	m = settle(t, m, keyMsg("J"))

	a, _ := store.Node("tag-a")
	b, _ := store.Node("tag-b")
	if !(b.Order < a.Order) {
		t.Errorf("orders after move: a=%v b=%v", a.Order, b.Order)
	}
}

func TestMoveAtBoundaryWithoutNeighborGroup(t *testing.T) {
	m, _, _ := newTestModel(t, "", seedTree()...)

	m.tree.CursorTo("tag-a")
	m = settle(t, m, keyMsg("K"))
	if m.mode == modeConfirm {
		t.Fatal("no earlier group exists, nothing to confirm")
	}
	if m.status != "already at the edge" {
		t.Errorf("status = %q", m.status)
	}
}

func TestCrossGroupMoveAsksFirst(t *testing.T) {
	nodes := append(seedTree(),
		model.Node{ID: "grp2", Name: "Drinks", Level: model.LevelGroup, ParentID: "sub", Order: 2},
		model.Node{ID: "tag-c", Name: "Coffee", Level: model.LevelTag, ParentID: "grp2", Order: 1},
	)
	m, store, _ := newTestModel(t, "", nodes...)

	m.tree.CursorTo("tag-c")
	m = settle(t, m, keyMsg("K"))
	if m.mode != modeConfirm {
		t.Fatalf("boundary move into another group must confirm, mode=%v", m.mode)
	}
	if !strings.Contains(m.confirmPrompt, "Food") {
		t.Errorf("prompt should name the destination group: %q", m.confirmPrompt)
	}

	m = settle(t, m, keyMsg("y"))
	n, _ := store.Node("tag-c")
	if n.ParentID != "grp" {
		t.Errorf("tag-c parent = %q, want grp", n.ParentID)
	}
}

func TestColorCycle(t *testing.T) {
	m, store, _ := newTestModel(t, "", seedTree()...)

	m.tree.CursorTo("tag-a")
	m = settle(t, m, keyMsg("c"))
	n, _ := store.Node("tag-a")
	if n.Color != colorPalette[1] {
		t.Errorf("first cycle gave %q, want %q", n.Color, colorPalette[1])
	}

	// Walk the rest of the palette back to the level default.
	for i := 0; i < len(colorPalette)-1; i++ {
		m.tree.CursorTo("tag-a")
		m = settle(t, m, keyMsg("c"))
	}
	n, _ = store.Node("tag-a")
	if n.Color != "" {
		t.Errorf("full cycle should reset the color, got %q", n.Color)
	}
}

func TestPickParentFlow(t *testing.T) {
	nodes := append(seedTree(),
		model.Node{ID: "grp2", Name: "Drinks", Level: model.LevelGroup, ParentID: "sub", Order: 2},
	)
	m, store, _ := newTestModel(t, "", nodes...)

	m.tree.CursorTo("tag-a")
	m = settle(t, m, keyMsg("m"))
	if m.mode != modePickParent {
		t.Fatal("m should open the parent picker")
	}
	// The current parent is not offered again.
	if len(m.parents) != 1 || m.parents[0].ID != "grp2" {
		t.Fatalf("offered %+v, want only Drinks", m.parents)
	}
	m = settle(t, m, keyMsg("enter"))

	n, _ := store.Node("tag-a")
	if n.ParentID != "grp2" {
		t.Errorf("tag-a parent = %q, want grp2", n.ParentID)
	}
}

func TestHelpToggle(t *testing.T) {
	m, _, _ := newTestModel(t, "", seedTree()...)

	m = settle(t, m, keyMsg("?"))
	if m.mode != modeHelp {
		t.Fatal("? should open help")
	}
	m = settle(t, m, keyMsg("j"))
	if m.mode != modeBrowse {
		t.Error("any key should close help")
	}
}

func TestQuitPersistsCursor(t *testing.T) {
	dir := t.TempDir()
	m, _, _ := newTestModel(t, dir, seedTree()...)

	m.tree.CursorTo("tag-b")
	m = settle(t, m, keyMsg("q"))

	if st := LoadState(dir); st.CursorID != "tag-b" {
		t.Errorf("persisted cursor = %q", st.CursorID)
	}
}

func TestExternalChangeTriggersReload(t *testing.T) {
	m, store, mem := newTestModel(t, "", seedTree()...)

	// Simulate another process writing to the same database.
	if _, err := mem.Create(context.Background(), "alice",
		model.Node{ID: "cat2", Name: "Income", Level: model.LevelCategory, Order: 2}); err != nil {
		t.Fatal(err)
	}

	m = settle(t, m, ExternalChangeMsg{})
	if m.tree.Len() != 6 {
		t.Errorf("tree shows %d rows after reload, want 6", m.tree.Len())
	}
	if len(store.Nodes()) != 6 {
		t.Errorf("store holds %d nodes", len(store.Nodes()))
	}
}

func TestViewRendersStatusAndFooter(t *testing.T) {
	m, _, _ := newTestModel(t, "", seedTree()...)

	m.setStatus("hello")
	view := m.View()
	if !strings.Contains(view, "hello") {
		t.Error("status line missing")
	}
	if !strings.Contains(view, "5 nodes") {
		t.Error("footer node count missing")
	}
	if !strings.Contains(view, "?: help") {
		t.Error("footer hints missing")
	}
}
