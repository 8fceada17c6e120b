package ui

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/vanderheijden86/taggrove/pkg/hierarchy"
	"github.com/vanderheijden86/taggrove/pkg/model"
)

// TreeModel renders the flattened hierarchy and tracks the cursor and the
// multi-select set. It is a pure view component: every mutation goes
// through the root model, which hands fresh entries back via SetEntries.
type TreeModel struct {
	entries  []hierarchy.Entry
	usage    map[string]int
	selected map[string]bool
	cursor   int
	offset   int
	width    int
	height   int
	theme    Theme
}

func NewTreeModel(theme Theme) TreeModel {
	return TreeModel{
		theme:    theme,
		usage:    map[string]int{},
		selected: map[string]bool{},
	}
}

func (t *TreeModel) SetSize(width, height int) {
	t.width = width
	t.height = height
	t.clampScroll()
}

// SetEntries replaces the visible rows, keeping the cursor on the same
// node when it survived the refresh.
func (t *TreeModel) SetEntries(entries []hierarchy.Entry) {
	var keep string
	if cur, ok := t.Current(); ok {
		keep = cur.ID
	}
	t.entries = entries
	// Drop selections for nodes that no longer exist.
	alive := make(map[string]bool, len(entries))
	for _, e := range entries {
		alive[e.ID] = true
	}
	for id := range t.selected {
		if !alive[id] {
			delete(t.selected, id)
		}
	}
	if keep != "" {
		if idx := t.indexOf(keep); idx >= 0 {
			t.cursor = idx
		}
	}
	if t.cursor >= len(entries) {
		t.cursor = len(entries) - 1
	}
	if t.cursor < 0 {
		t.cursor = 0
	}
	t.clampScroll()
}

func (t *TreeModel) SetUsage(counts map[string]int) {
	if counts == nil {
		counts = map[string]int{}
	}
	t.usage = counts
}

func (t *TreeModel) Len() int { return len(t.entries) }

// Current returns the entry under the cursor.
func (t *TreeModel) Current() (hierarchy.Entry, bool) {
	if t.cursor < 0 || t.cursor >= len(t.entries) {
		return hierarchy.Entry{}, false
	}
	return t.entries[t.cursor], true
}

// CursorTo moves the cursor onto the node with the given id, if present.
func (t *TreeModel) CursorTo(id string) {
	if idx := t.indexOf(id); idx >= 0 {
		t.cursor = idx
		t.clampScroll()
	}
}

func (t *TreeModel) indexOf(id string) int {
	for i, e := range t.entries {
		if e.ID == id {
			return i
		}
	}
	return -1
}

func (t *TreeModel) MoveUp() {
	if t.cursor > 0 {
		t.cursor--
		t.clampScroll()
	}
}

func (t *TreeModel) MoveDown() {
	if t.cursor < len(t.entries)-1 {
		t.cursor++
		t.clampScroll()
	}
}

func (t *TreeModel) JumpTop() {
	t.cursor = 0
	t.clampScroll()
}

func (t *TreeModel) JumpBottom() {
	if len(t.entries) > 0 {
		t.cursor = len(t.entries) - 1
	}
	t.clampScroll()
}

func (t *TreeModel) PageUp() {
	t.cursor -= t.pageSize()
	if t.cursor < 0 {
		t.cursor = 0
	}
	t.clampScroll()
}

func (t *TreeModel) PageDown() {
	t.cursor += t.pageSize()
	if t.cursor >= len(t.entries) {
		t.cursor = len(t.entries) - 1
	}
	if t.cursor < 0 {
		t.cursor = 0
	}
	t.clampScroll()
}

func (t *TreeModel) pageSize() int {
	if t.height > 1 {
		return t.height - 1
	}
	return 10
}

// ToggleSelect flips the node under the cursor in and out of the
// multi-select set.
func (t *TreeModel) ToggleSelect() {
	cur, ok := t.Current()
	if !ok {
		return
	}
	if t.selected[cur.ID] {
		delete(t.selected, cur.ID)
	} else {
		t.selected[cur.ID] = true
	}
}

func (t *TreeModel) ClearSelection() { t.selected = map[string]bool{} }

func (t *TreeModel) SelectionCount() int { return len(t.selected) }

// SelectedIDs returns the selection in tree order.
func (t *TreeModel) SelectedIDs() []string {
	ids := make([]string, 0, len(t.selected))
	for _, e := range t.entries {
		if t.selected[e.ID] {
			ids = append(ids, e.ID)
		}
	}
	return ids
}

func (t *TreeModel) clampScroll() {
	if t.height <= 0 {
		t.offset = 0
		return
	}
	if t.cursor < t.offset {
		t.offset = t.cursor
	}
	if t.cursor >= t.offset+t.height {
		t.offset = t.cursor - t.height + 1
	}
	if t.offset < 0 {
		t.offset = 0
	}
}

func (t *TreeModel) View() string {
	if len(t.entries) == 0 {
		return t.theme.Muted.Render("  empty — press enter to create a tag")
	}
	height := t.height
	if height <= 0 {
		height = len(t.entries)
	}
	end := t.offset + height
	if end > len(t.entries) {
		end = len(t.entries)
	}
	var b strings.Builder
	for i := t.offset; i < end; i++ {
		b.WriteString(t.renderRow(i))
		if i < end-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func (t *TreeModel) renderRow(i int) string {
	e := t.entries[i]

	mark := "  "
	if t.selected[e.ID] {
		mark = t.theme.Selected.Render("✓ ")
	}

	indent := strings.Repeat(" ", e.Indent())
	bullet := t.theme.LevelStyle(e.Level, e.Color).Render("●")

	suffix := ""
	suffixWidth := 0
	if e.Level == model.LevelTag {
		if n, ok := t.usage[e.ID]; ok && n > 0 {
			plain := fmt.Sprintf("  (%d)", n)
			suffix = t.theme.Usage.Render(plain)
			suffixWidth += runewidth.StringWidth(plain)
		}
	}
	if e.Orphan {
		suffix += t.theme.Orphan.Render("  ⚠ orphan")
		suffixWidth += runewidth.StringWidth("  ⚠ orphan")
	}

	name := e.Name
	if name == "" {
		name = "(unnamed)"
	}
	// Truncate the plain name so styling escapes never enter the width math.
	if t.width > 0 {
		avail := t.width - 2 - e.Indent() - 2 - suffixWidth
		if avail > 0 {
			name = runewidth.Truncate(name, avail, "…")
		}
	}
	if e.Name == "" {
		name = t.theme.Muted.Render(name)
	}

	line := mark + indent + bullet + " " + name + suffix
	if i == t.cursor {
		return t.theme.Cursor.Render(line)
	}
	return line
}
