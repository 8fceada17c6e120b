package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/vanderheijden86/taggrove/pkg/hierarchy"
	"github.com/vanderheijden86/taggrove/pkg/model"
	"github.com/vanderheijden86/taggrove/pkg/storage"
)

type mode int

const (
	modeBrowse mode = iota
	modeEdit
	modeConfirm
	modePickParent
	modeHelp
)

// colorPalette is what the recolor key cycles through. The leading empty
// entry means "level default".
var colorPalette = []string{"", "#e06c75", "#e5c07b", "#98c379", "#56b6c2", "#61afef", "#c678dd"}

type treeLoadedMsg struct {
	err error
}

type usageLoadedMsg struct {
	counts map[string]int
}

type mutatedMsg struct {
	err      error
	status   string
	selectID string
}

type confirmMsg struct {
	prompt string
	action tea.Cmd
}

// Model is the root bubbletea model: a small state machine over browse,
// inline edit, confirmation, parent picking and help.
type Model struct {
	store *hierarchy.Store
	usage *hierarchy.UsageBridge
	log   zerolog.Logger

	theme Theme
	tree  TreeModel
	input textinput.Model

	mode mode

	// edit context: editID set means rename, otherwise create.
	editID        string
	createLevel   model.Level
	createParent  string
	createBetween bool
	createAnchors [2]float64

	confirmPrompt string
	confirmAction tea.Cmd

	parents      []model.Node
	parentCursor int
	parentFor    string

	helpBody string

	// restoreCursor is applied by the next treeLoadedMsg, either from the
	// persisted UI state or after a mutation that should keep focus.
	restoreCursor string

	status    string
	statusErr bool

	stateDir string
	width    int
	height   int
	ready    bool
}

// NewModel builds the root model. stateDir is the project directory that
// holds the persisted cursor position; empty disables persistence.
func NewModel(store *hierarchy.Store, usage *hierarchy.UsageBridge, stateDir string, log zerolog.Logger) Model {
	theme := DefaultTheme(nil)
	input := textinput.New()
	input.CharLimit = 200
	input.Prompt = "› "

	m := Model{
		store:    store,
		usage:    usage,
		log:      log,
		theme:    theme,
		tree:     NewTreeModel(theme),
		input:    input,
		stateDir: stateDir,
	}
	if stateDir != "" {
		if st := LoadState(stateDir); st.CursorID != "" {
			m.restoreCursor = st.CursorID
		}
	}
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.loadCmd(), textinput.Blink)
}

func (m Model) loadCmd() tea.Cmd {
	store := m.store
	return func() tea.Msg {
		return treeLoadedMsg{err: store.Reload(context.Background())}
	}
}

func (m Model) usageCmd() tea.Cmd {
	store, bridge := m.store, m.usage
	return func() tea.Msg {
		return usageLoadedMsg{counts: bridge.Counts(context.Background(), store.Nodes())}
	}
}

// mutateCmd runs a mutation off the UI goroutine and reports the outcome.
func (m Model) mutateCmd(status, selectID string, fn func(context.Context) error) tea.Cmd {
	return func() tea.Msg {
		err := fn(context.Background())
		return mutatedMsg{err: err, status: status, selectID: selectID}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.tree.SetSize(msg.Width, m.bodyHeight())
		m.input.Width = msg.Width - 4
		m.ready = true
		return m, nil

	case treeLoadedMsg:
		if msg.err != nil {
			m.setError(fmt.Errorf("load: %w", msg.err))
			return m, nil
		}
		m.tree.SetEntries(m.store.Entries())
		if m.restoreCursor != "" {
			m.tree.CursorTo(m.restoreCursor)
			m.restoreCursor = ""
		}
		return m, m.usageCmd()

	case usageLoadedMsg:
		m.tree.SetUsage(msg.counts)
		return m, nil

	case mutatedMsg:
		if msg.err != nil {
			m.setError(msg.err)
		} else if msg.status != "" {
			m.setStatus(msg.status)
		}
		if msg.selectID != "" {
			m.restoreCursor = msg.selectID
		}
		return m, m.loadCmd()

	case confirmMsg:
		if msg.action == nil {
			return m, nil
		}
		m.mode = modeConfirm
		m.confirmPrompt = msg.prompt
		m.confirmAction = msg.action
		return m, nil

	case ExternalChangeMsg:
		m.setStatus("storage changed, reloading")
		return m, m.loadCmd()

	case tea.KeyMsg:
		switch m.mode {
		case modeEdit:
			return m.updateEdit(msg)
		case modeConfirm:
			return m.updateConfirm(msg)
		case modePickParent:
			return m.updatePickParent(msg)
		case modeHelp:
			m.mode = modeBrowse
			m.helpBody = ""
			return m, nil
		default:
			return m.updateBrowse(msg)
		}
	}
	return m, nil
}

func (m Model) updateBrowse(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		m.saveState()
		return m, tea.Quit

	case "j", "down":
		m.tree.MoveDown()
	case "k", "up":
		m.tree.MoveUp()
	case "g", "home":
		m.tree.JumpTop()
	case "G", "end":
		m.tree.JumpBottom()
	case "ctrl+d", "pgdown":
		m.tree.PageDown()
	case "ctrl+u", "pgup":
		m.tree.PageUp()

	case " ":
		m.tree.ToggleSelect()
		m.tree.MoveDown()

	case "esc":
		m.tree.ClearSelection()
		m.clearStatus()

	case "tab":
		return m.indent(true)
	case "shift+tab":
		return m.indent(false)

	case "K", "shift+up":
		return m.move(hierarchy.DirUp)
	case "J", "shift+down":
		return m.move(hierarchy.DirDown)

	case "enter":
		return m.beginCreateSibling()
	case "n":
		return m.beginCreateChild()
	case "r", "f2":
		return m.beginRename()

	case "c":
		return m.cycleColor()
	case "m":
		return m.beginPickParent()
	case "x", "delete", "backspace":
		return m.beginDelete()
	case "y":
		return m.yankPath()

	case "R":
		m.setStatus("reloading")
		return m, m.loadCmd()

	case "?":
		m.helpBody = renderHelp(m.width)
		m.mode = modeHelp
	}
	return m, nil
}

func (m Model) updateEdit(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mode = modeBrowse
		m.input.Reset()
		m.input.Blur()
		return m, nil
	case "enter":
		return m.commitEdit(false)
	case "tab":
		// Commit first, then indent the committed node.
		return m.commitEdit(true)
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y", "enter":
		action := m.confirmAction
		m.mode = modeBrowse
		m.confirmPrompt = ""
		m.confirmAction = nil
		return m, action
	case "n", "N", "esc", "q":
		m.mode = modeBrowse
		m.confirmPrompt = ""
		m.confirmAction = nil
		m.setStatus("cancelled")
	}
	return m, nil
}

func (m Model) updatePickParent(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "q":
		m.mode = modeBrowse
		m.parents = nil
		return m, nil
	case "j", "down":
		if m.parentCursor < len(m.parents)-1 {
			m.parentCursor++
		}
	case "k", "up":
		if m.parentCursor > 0 {
			m.parentCursor--
		}
	case "enter":
		if m.parentCursor >= len(m.parents) {
			return m, nil
		}
		target := m.parents[m.parentCursor]
		id := m.parentFor
		m.mode = modeBrowse
		m.parents = nil
		return m, m.mutateCmd(fmt.Sprintf("moved under %q", target.Name), id, func(ctx context.Context) error {
			return m.store.Reparent(ctx, id, target.ID)
		})
	}
	return m, nil
}

func (m Model) indent(in bool) (tea.Model, tea.Cmd) {
	if ids := m.tree.SelectedIDs(); len(ids) > 0 {
		m.tree.ClearSelection()
		return m, func() tea.Msg {
			var res model.BulkResult
			if in {
				res = m.store.BulkIndentIn(context.Background(), ids)
			} else {
				res = m.store.BulkIndentOut(context.Background(), ids)
			}
			return mutatedMsg{status: res.Summary("indented")}
		}
	}
	cur, ok := m.tree.Current()
	if !ok {
		return m, nil
	}
	verb := "indented in"
	fn := m.store.IndentIn
	if !in {
		verb = "indented out"
		fn = m.store.IndentOut
	}
	return m, m.mutateCmd(fmt.Sprintf("%s %q", verb, cur.Name), cur.ID, func(ctx context.Context) error {
		return fn(ctx, cur.ID)
	})
}

func (m Model) move(dir hierarchy.Direction) (tea.Model, tea.Cmd) {
	cur, ok := m.tree.Current()
	if !ok {
		return m, nil
	}
	id, name := cur.ID, cur.Name
	moveFn := m.store.MoveUp
	if dir == hierarchy.DirDown {
		moveFn = m.store.MoveDown
	}
	return m, func() tea.Msg {
		err := moveFn(context.Background(), id)
		if !errors.Is(err, model.ErrAtBoundary) {
			return mutatedMsg{err: err, status: fmt.Sprintf("moved %q", name), selectID: id}
		}
		target, found := m.store.CrossGroupCandidate(id, dir)
		if !found {
			return mutatedMsg{status: "already at the edge"}
		}
		return confirmMsg{
			prompt: fmt.Sprintf("Move %q into %q? [y/n]", name, target.Name),
			action: m.mutateCmd(fmt.Sprintf("moved %q into %q", name, target.Name), id, func(ctx context.Context) error {
				return m.store.CrossGroupMove(ctx, id, dir)
			}),
		}
	}
}

func (m Model) beginCreateSibling() (tea.Model, tea.Cmd) {
	cur, ok := m.tree.Current()
	if !ok {
		// Empty tree: start an ungrouped tag.
		return m.beginCreate(model.LevelTag, "")
	}
	if next, found := m.nextSibling(cur); found {
		// The actual order is resolved at commit time via InsertBetween.
		m.createAnchors = [2]float64{cur.Order, next.Order}
		m.createBetween = true
	} else {
		m.createBetween = false
	}
	return m.beginCreate(cur.Level, cur.ParentID)
}

func (m Model) beginCreateChild() (tea.Model, tea.Cmd) {
	cur, ok := m.tree.Current()
	if !ok {
		return m.beginCreate(model.LevelTag, "")
	}
	child, ok := cur.Level.Below()
	if !ok {
		m.setError(fmt.Errorf("%q is a tag: %w", cur.Name, model.ErrInvalidLevel))
		return m, nil
	}
	m.createBetween = false
	return m.beginCreate(child, cur.ID)
}

func (m Model) beginCreate(level model.Level, parentID string) (tea.Model, tea.Cmd) {
	m.mode = modeEdit
	m.editID = ""
	m.createLevel = level
	m.createParent = parentID
	m.input.Reset()
	m.input.Placeholder = "new " + strings.ToLower(level.Label())
	m.input.Focus()
	return m, textinput.Blink
}

func (m Model) beginRename() (tea.Model, tea.Cmd) {
	cur, ok := m.tree.Current()
	if !ok {
		return m, nil
	}
	m.mode = modeEdit
	m.editID = cur.ID
	m.input.Reset()
	m.input.SetValue(cur.Name)
	m.input.CursorEnd()
	m.input.Placeholder = ""
	m.input.Focus()
	return m, textinput.Blink
}

func (m Model) commitEdit(thenIndent bool) (tea.Model, tea.Cmd) {
	name := strings.TrimSpace(m.input.Value())
	m.mode = modeBrowse
	m.input.Blur()
	m.input.Reset()

	if name == "" {
		m.setStatus("discarded empty name")
		return m, nil
	}

	if m.editID != "" {
		id := m.editID
		m.editID = ""
		return m, m.mutateCmd(fmt.Sprintf("renamed to %q", name), id, func(ctx context.Context) error {
			if err := m.store.UpdateNode(ctx, id, storage.Patch{Name: storage.StringPtr(name)}); err != nil {
				return err
			}
			if thenIndent {
				return m.store.IndentIn(ctx, id)
			}
			return nil
		})
	}

	level, parent := m.createLevel, m.createParent
	between, anchors := m.createBetween, m.createAnchors
	m.createBetween = false
	return m, func() tea.Msg {
		ctx := context.Background()
		var order *float64
		if between {
			v, err := m.store.InsertBetween(ctx, level, parent, anchors[0], anchors[1])
			if err != nil {
				return mutatedMsg{err: err}
			}
			order = &v
		}
		id, err := m.store.CreateNode(ctx, name, level, parent, order, "")
		if err != nil {
			return mutatedMsg{err: err}
		}
		if thenIndent {
			if err := m.store.IndentIn(ctx, id); err != nil && !errors.Is(err, model.ErrNoEligibleParent) {
				return mutatedMsg{err: err, selectID: id}
			}
		}
		return mutatedMsg{status: fmt.Sprintf("created %q", name), selectID: id}
	}
}

func (m Model) cycleColor() (tea.Model, tea.Cmd) {
	cur, ok := m.tree.Current()
	if !ok {
		return m, nil
	}
	next := colorPalette[0]
	for i, c := range colorPalette {
		if c == cur.Color {
			next = colorPalette[(i+1)%len(colorPalette)]
			break
		}
	}
	status := "color reset to level default"
	if next != "" {
		status = "color set to " + next
	}
	return m, m.mutateCmd(status, cur.ID, func(ctx context.Context) error {
		return m.store.UpdateNode(ctx, cur.ID, storage.Patch{Color: storage.StringPtr(next)})
	})
}

func (m Model) beginPickParent() (tea.Model, tea.Cmd) {
	cur, ok := m.tree.Current()
	if !ok {
		return m, nil
	}
	parents := m.store.ValidParents(cur.ID)
	if len(parents) == 0 {
		m.setError(fmt.Errorf("%q: %w", cur.Name, model.ErrNoEligibleParent))
		return m, nil
	}
	m.mode = modePickParent
	m.parents = parents
	m.parentCursor = 0
	m.parentFor = cur.ID
	return m, nil
}

func (m Model) beginDelete() (tea.Model, tea.Cmd) {
	ids := m.tree.SelectedIDs()
	if len(ids) == 0 {
		cur, ok := m.tree.Current()
		if !ok {
			return m, nil
		}
		ids = []string{cur.ID}
	}
	m.tree.ClearSelection()
	return m, func() tea.Msg {
		impact := m.store.DeleteImpact(context.Background(), ids)
		prompt := fmt.Sprintf("Delete %d node(s)", impact.Selected)
		if impact.Descendants > 0 {
			prompt += fmt.Sprintf(" and %d descendant(s)", impact.Descendants)
		}
		if impact.References > 0 {
			prompt += fmt.Sprintf(", used by %d transaction(s)", impact.References)
		}
		return confirmMsg{
			prompt: prompt + "? [y/n]",
			action: func() tea.Msg {
				res := m.store.BulkDelete(context.Background(), ids)
				return mutatedMsg{status: res.Summary("deleted")}
			},
		}
	}
}

func (m Model) yankPath() (tea.Model, tea.Cmd) {
	cur, ok := m.tree.Current()
	if !ok {
		return m, nil
	}
	parts := []string{cur.Name}
	for pid := cur.ParentID; pid != ""; {
		parent, found := m.store.Node(pid)
		if !found {
			break
		}
		parts = append([]string{parent.Name}, parts...)
		pid = parent.ParentID
	}
	path := strings.Join(parts, " / ")
	if err := clipboard.WriteAll(path); err != nil {
		m.setError(fmt.Errorf("clipboard: %w", err))
		return m, nil
	}
	m.setStatus("copied " + path)
	return m, nil
}

// nextSibling finds the sibling ordered directly after e within its group.
func (m Model) nextSibling(e hierarchy.Entry) (model.Node, bool) {
	var group []model.Node
	for _, n := range m.store.Nodes() {
		if n.Level == e.Level && n.ParentID == e.ParentID {
			group = append(group, n)
		}
	}
	hierarchy.SortSiblings(group)
	for i, n := range group {
		if n.ID == e.ID && i < len(group)-1 {
			return group[i+1], true
		}
	}
	return model.Node{}, false
}

func (m *Model) setStatus(s string) {
	m.status = s
	m.statusErr = false
}

func (m *Model) setError(err error) {
	switch {
	case errors.Is(err, model.ErrAtBoundary):
		m.status = "already at the edge"
	case errors.Is(err, model.ErrNoEligibleParent):
		m.status = "no eligible parent"
	case errors.Is(err, model.ErrInvalidLevel):
		m.status = "not possible at this level"
	default:
		m.status = err.Error()
	}
	m.statusErr = true
	m.log.Warn().Err(err).Msg("ui operation failed")
}

func (m *Model) clearStatus() {
	m.status = ""
	m.statusErr = false
}

func (m *Model) saveState() {
	if m.stateDir == "" {
		return
	}
	var id string
	if cur, ok := m.tree.Current(); ok {
		id = cur.ID
	}
	if err := SaveState(m.stateDir, UIState{CursorID: id}); err != nil {
		m.log.Warn().Err(err).Msg("failed to persist ui state")
	}
}

func (m Model) bodyHeight() int {
	// Tree plus a two-line footer; the edit bar borrows a footer line.
	h := m.height - 2
	if h < 1 {
		h = 1
	}
	return h
}

func (m Model) View() string {
	if !m.ready {
		return "loading…"
	}
	if m.mode == modeHelp {
		return m.helpBody + m.theme.Footer.Render("\npress any key to close")
	}
	if m.mode == modePickParent {
		return m.viewPickParent()
	}

	var b strings.Builder
	b.WriteString(m.tree.View())
	b.WriteByte('\n')

	switch m.mode {
	case modeEdit:
		label := "rename"
		if m.editID == "" {
			label = "new " + strings.ToLower(m.createLevel.Label())
		}
		b.WriteString(m.theme.EditLabel.Render(label+" ") + m.input.View())
	case modeConfirm:
		b.WriteString(m.theme.Prompt.Render(m.confirmPrompt))
	default:
		if m.status != "" {
			style := m.theme.Status
			if m.statusErr {
				style = m.theme.StatusErr
			}
			b.WriteString(style.Render(m.status))
		}
	}
	b.WriteByte('\n')
	b.WriteString(m.footer())
	return b.String()
}

func (m Model) viewPickParent() string {
	var b strings.Builder
	b.WriteString(m.theme.Prompt.Render("move under:"))
	b.WriteByte('\n')
	for i, p := range m.parents {
		line := fmt.Sprintf("  %s  %s", p.Name, m.theme.Muted.Render(p.Level.Label()))
		if i == m.parentCursor {
			line = m.theme.Cursor.Render(line)
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteString(m.theme.Footer.Render("enter: move · esc: cancel"))
	return b.String()
}

func (m Model) footer() string {
	parts := []string{fmt.Sprintf("%d nodes", m.tree.Len())}
	if n := m.tree.SelectionCount(); n > 0 {
		parts = append(parts, fmt.Sprintf("%d selected", n))
	}
	parts = append(parts, "?: help", "q: quit")
	return m.theme.Footer.Render(strings.Join(parts, " · "))
}
