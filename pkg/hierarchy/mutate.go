package hierarchy

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/vanderheijden86/taggrove/pkg/model"
	"github.com/vanderheijden86/taggrove/pkg/storage"
)

// Direction selects which way a move or cross-group transfer goes.
type Direction int

const (
	DirUp Direction = iota
	DirDown
)

// Caps describes which structural mutations are currently possible for a
// node, computed from its position in the tree. The interaction layer uses
// these to gate keybindings and grey out menu entries.
type Caps struct {
	CanMoveUp    bool
	CanMoveDown  bool
	CanIndentIn  bool
	CanIndentOut bool
}

// IndentIn moves a node one level deeper: it becomes a child of the nearest
// preceding node at its own level, scanning backward through the pre-ordered
// listing without crossing a node at a strictly shallower level (which would
// mean leaving the current group). The node's descendants shift down a level
// with it, so the mutation is refused when any of them is already a Tag.
// Fails with ErrNoEligibleParent when no candidate exists or the node itself
// is already at the leaf level.
func (s *Store) IndentIn(ctx context.Context, id string) error {
	node, ok := s.Node(id)
	if !ok {
		return fmt.Errorf("indent %s: %w", id, model.ErrNotFound)
	}
	newLevel, ok := node.Level.Below()
	if !ok {
		return fmt.Errorf("%w: %s nodes cannot nest deeper", model.ErrNoEligibleParent, node.Level)
	}

	candidate, ok := s.eligibleIndentParent(node, nil)
	if !ok {
		return fmt.Errorf("%w for %q", model.ErrNoEligibleParent, node.Name)
	}
	if s.subtreeAtLeafDepth(id) {
		return fmt.Errorf("%w: subtree of %q already reaches %s depth",
			model.ErrInvalidLevel, node.Name, model.LevelTag)
	}

	writes := subtreeWrites(s.Subtree(id), 1, candidate.ID, s.appendOrder(newLevel, candidate.ID))
	return s.applyWrites(ctx, writes)
}

// eligibleIndentParent scans backward from the node's position for a
// same-level predecessor that can adopt it. Entries in exclude are never
// candidates; bulk indent passes its selection here, since those members are
// being demoted in the same batch.
func (s *Store) eligibleIndentParent(node model.Node, exclude map[string]bool) (model.Node, bool) {
	entries := s.Entries()
	pos := indexOf(entries, node.ID)
	if pos < 0 {
		return model.Node{}, false
	}
	for i := pos - 1; i >= 0; i-- {
		prev := entries[i].Node
		if exclude[prev.ID] {
			continue
		}
		if prev.Level < node.Level {
			return model.Node{}, false
		}
		if prev.Level == node.Level {
			return prev, true
		}
	}
	return model.Node{}, false
}

// subtreeAtLeafDepth reports whether any member of the node's subtree is
// already a Tag, which blocks indenting the subtree deeper.
func (s *Store) subtreeAtLeafDepth(id string) bool {
	for _, n := range s.Subtree(id) {
		if n.Level == model.LevelTag {
			return true
		}
	}
	return false
}

// IndentOut moves a node one level shallower, reparenting it under its
// grandparent. The grandparent may be absent, in which case the node is
// promoted to a parentless position: the write carries an explicit no-parent
// value so the store clears the field instead of keeping a stale reference.
// Descendants shift up a level with the node.
func (s *Store) IndentOut(ctx context.Context, id string) error {
	node, ok := s.Node(id)
	if !ok {
		return fmt.Errorf("outdent %s: %w", id, model.ErrNotFound)
	}
	newLevel, ok := node.Level.Above()
	if !ok {
		return fmt.Errorf("%w: %s nodes are already at the root level", model.ErrInvalidLevel, node.Level)
	}

	newParent := ""
	if node.ParentID != "" {
		if parent, ok := s.Node(node.ParentID); ok {
			newParent = parent.ParentID
		}
	}

	writes := subtreeWrites(s.Subtree(id), -1, newParent, s.appendOrder(newLevel, newParent))
	return s.applyWrites(ctx, writes)
}

// subtreeWrites plans the writes that relocate a whole subtree: the root
// takes the new placement, every descendant only shifts level by delta. The
// descendants keep their parent and order, so the parent-level rule holds for
// each member once all writes land.
func subtreeWrites(subtree []model.Node, delta int, newParentID string, newOrder float64) []plannedWrite {
	writes := make([]plannedWrite, 0, len(subtree))
	root := subtree[0]
	writes = append(writes, plannedWrite{
		id: root.ID,
		patch: storage.Patch{
			Level:    storage.LevelPtr(root.Level + model.Level(delta)),
			ParentID: storage.StringPtr(newParentID),
			Order:    storage.FloatPtr(newOrder),
		},
	})
	for _, n := range subtree[1:] {
		writes = append(writes, plannedWrite{
			id:    n.ID,
			patch: storage.Patch{Level: storage.LevelPtr(n.Level + model.Level(delta))},
		})
	}
	return writes
}

// applyWrites issues a planned write sequence directly against the backend
// and reloads once. The per-member validation of UpdateNode does not apply
// mid-sequence: a subtree shift is only consistent once all writes land.
func (s *Store) applyWrites(ctx context.Context, writes []plannedWrite) error {
	for _, w := range writes {
		cctx, cancel := s.opCtx(ctx)
		err := s.backend.Update(cctx, s.owner, w.id, w.patch)
		cancel()
		if err != nil {
			return &model.PersistenceError{Op: "update", ID: w.id, Err: err}
		}
	}
	return s.Reload(ctx)
}

// MoveUp swaps the node with its previous sibling by exchanging their order
// values. At the top of its group it returns ErrAtBoundary; the caller may
// then offer a cross-group move via CrossGroupCandidate.
func (s *Store) MoveUp(ctx context.Context, id string) error {
	return s.swapWithNeighbor(ctx, id, DirUp)
}

// MoveDown is the inverse of MoveUp.
func (s *Store) MoveDown(ctx context.Context, id string) error {
	return s.swapWithNeighbor(ctx, id, DirDown)
}

func (s *Store) swapWithNeighbor(ctx context.Context, id string, dir Direction) error {
	node, ok := s.Node(id)
	if !ok {
		return fmt.Errorf("move %s: %w", id, model.ErrNotFound)
	}
	group := s.siblings(node.Level, node.ParentID)
	idx := -1
	for i, n := range group {
		if n.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("move %s: %w", id, model.ErrNotFound)
	}

	var other model.Node
	switch dir {
	case DirUp:
		if idx == 0 {
			return fmt.Errorf("%q: %w", node.Name, model.ErrAtBoundary)
		}
		other = group[idx-1]
	case DirDown:
		if idx == len(group)-1 {
			return fmt.Errorf("%q: %w", node.Name, model.ErrAtBoundary)
		}
		other = group[idx+1]
	}

	if node.Order == other.Order {
		// A tie makes the exchange a no-op; renumber the group first.
		if err := s.normalizeSiblings(ctx, node.Level, node.ParentID); err != nil {
			return err
		}
		return s.swapWithNeighbor(ctx, id, dir)
	}

	// Exchange the two order values; no renumbering of the rest.
	for _, w := range []struct {
		id    string
		order float64
	}{
		{node.ID, other.Order},
		{other.ID, node.Order},
	} {
		cctx, cancel := s.opCtx(ctx)
		err := s.backend.Update(cctx, s.owner, w.id, storage.Patch{Order: storage.FloatPtr(w.order)})
		cancel()
		if err != nil {
			return &model.PersistenceError{Op: "update", ID: w.id, Err: err}
		}
	}
	return s.Reload(ctx)
}

// Reparent moves a node under a different parent at its current level. The
// new parent must sit exactly one level above the node; moving to the current
// parent is a no-op. The node is appended to the end of its new sibling
// group.
func (s *Store) Reparent(ctx context.Context, id, newParentID string) error {
	node, ok := s.Node(id)
	if !ok {
		return fmt.Errorf("reparent %s: %w", id, model.ErrNotFound)
	}
	if newParentID == node.ParentID {
		return nil
	}
	if newParentID == "" {
		return fmt.Errorf("%w: reparent target cannot be empty", model.ErrInvalidParent)
	}
	parent, ok := s.Node(newParentID)
	if !ok {
		return fmt.Errorf("%w: parent %s does not exist", model.ErrInvalidParent, newParentID)
	}
	if parent.Level != node.Level-1 {
		return fmt.Errorf("%w: parent %s is level %d, need %d",
			model.ErrInvalidParent, newParentID, int(parent.Level), int(node.Level)-1)
	}

	return s.UpdateNode(ctx, id, storage.Patch{
		Level:    storage.LevelPtr(node.Level),
		ParentID: storage.StringPtr(newParentID),
		Order:    storage.FloatPtr(s.appendOrder(node.Level, newParentID)),
	})
}

// CrossGroupCandidate returns the adjacent parent a boundary move would
// transfer the node to: the nearest node one level above, before (DirUp) or
// after (DirDown) the node in the pre-ordered listing, excluding the current
// parent. ok is false when no such parent exists, including for root-level
// nodes, which have nowhere to cross to.
func (s *Store) CrossGroupCandidate(id string, dir Direction) (model.Node, bool) {
	node, ok := s.Node(id)
	if !ok {
		return model.Node{}, false
	}
	parentLevel, ok := node.Level.Above()
	if !ok {
		return model.Node{}, false
	}

	entries := s.Entries()
	pos := indexOf(entries, id)
	if pos < 0 {
		return model.Node{}, false
	}

	switch dir {
	case DirUp:
		for i := pos - 1; i >= 0; i-- {
			cand := entries[i].Node
			if cand.Level == parentLevel && cand.ID != node.ParentID {
				return cand, true
			}
		}
	case DirDown:
		for i := pos + 1; i < len(entries); i++ {
			cand := entries[i].Node
			if cand.Level == parentLevel && cand.ID != node.ParentID {
				return cand, true
			}
		}
	}
	return model.Node{}, false
}

// CrossGroupMove transfers a node over its group boundary into the adjacent
// parent group: moving up lands at the end of the previous group, moving down
// at the start of the next, so the node stays visually adjacent to where it
// was. This changes parentage, not just order, so callers must confirm with
// the user first.
func (s *Store) CrossGroupMove(ctx context.Context, id string, dir Direction) error {
	node, ok := s.Node(id)
	if !ok {
		return fmt.Errorf("move %s: %w", id, model.ErrNotFound)
	}
	candidate, ok := s.CrossGroupCandidate(id, dir)
	if !ok {
		return fmt.Errorf("%q: %w", node.Name, model.ErrAtBoundary)
	}

	var order float64
	switch dir {
	case DirUp:
		order = s.appendOrder(node.Level, candidate.ID)
	case DirDown:
		order = s.prependOrder(node.Level, candidate.ID)
	}

	return s.UpdateNode(ctx, id, storage.Patch{
		Level:    storage.LevelPtr(node.Level),
		ParentID: storage.StringPtr(candidate.ID),
		Order:    storage.FloatPtr(order),
	})
}

// ValidParents returns every node that could become the given node's parent:
// all nodes one level above, excluding the current parent, sorted by name.
// Used to populate reparenting choices.
func (s *Store) ValidParents(id string) []model.Node {
	node, ok := s.Node(id)
	if !ok {
		return nil
	}
	parentLevel, ok := node.Level.Above()
	if !ok {
		return nil
	}

	var out []model.Node
	for _, n := range s.Nodes() {
		if n.Level == parentLevel && n.ID != node.ParentID {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !strings.EqualFold(out[i].Name, out[j].Name) {
			return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Capabilities computes the per-node mutation flags from current position.
func (s *Store) Capabilities(id string) Caps {
	node, ok := s.Node(id)
	if !ok {
		return Caps{}
	}

	var caps Caps
	_, caps.CanIndentOut = node.Level.Above()
	if _, deeper := node.Level.Below(); deeper && !s.subtreeAtLeafDepth(id) {
		_, caps.CanIndentIn = s.eligibleIndentParent(node, nil)
	}

	group := s.siblings(node.Level, node.ParentID)
	for i, n := range group {
		if n.ID != id {
			continue
		}
		caps.CanMoveUp = i > 0
		caps.CanMoveDown = i < len(group)-1
		break
	}
	if !caps.CanMoveUp {
		_, caps.CanMoveUp = s.CrossGroupCandidate(id, DirUp)
	}
	if !caps.CanMoveDown {
		_, caps.CanMoveDown = s.CrossGroupCandidate(id, DirDown)
	}
	return caps
}

// InsertBetween computes an order value strictly between two siblings,
// renumbering the group first when float precision is exhausted. before and
// after are sibling order values with before < after.
func (s *Store) InsertBetween(ctx context.Context, level model.Level, parentID string, before, after float64) (float64, error) {
	if after-before < minOrderGap {
		if err := s.normalizeSiblings(ctx, level, parentID); err != nil {
			return 0, err
		}
		group := s.siblings(level, parentID)
		// After renumbering the caller's anchors are stale; fall back to
		// appending, which is always safe.
		if len(group) == 0 {
			return orderStep, nil
		}
		return group[len(group)-1].Order + orderStep, nil
	}
	return before + (after-before)/2, nil
}
