package hierarchy

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/vanderheijden86/taggrove/pkg/model"
	"github.com/vanderheijden86/taggrove/pkg/storage"
)

// bulkConcurrency bounds the in-flight persistence calls of one bulk
// operation.
const bulkConcurrency = 8

// plannedWrite is a single backend patch belonging to one member's mutation.
type plannedWrite struct {
	id    string
	patch storage.Patch
}

// plannedMember is one selection member's full mutation: the root placement
// write plus the level shifts of its descendants, computed up front from a
// single snapshot of the tree so members can settle concurrently.
type plannedMember struct {
	id     string
	writes []plannedWrite
}

// BulkIndentIn applies indent-in to every selected node. Members with no
// eligible parent are skipped, not failed; a member whose write errors does
// not abort the rest. All members are planned against one pre-move snapshot:
// other selection members are never adoption candidates, since they are
// being demoted in the same batch, and a member inside another member's
// subtree moves with its ancestor rather than on its own.
func (s *Store) BulkIndentIn(ctx context.Context, ids []string) model.BulkResult {
	result := model.BulkResult{Attempted: len(ids), Failures: make(map[string]error)}

	selected := make(map[string]bool, len(ids))
	for _, id := range ids {
		selected[id] = true
	}

	// First pass: which members can move at all, and under which parent.
	type target struct {
		newLevel  model.Level
		candidate model.Node
	}
	acting := make(map[string]target, len(ids))
	for _, id := range ids {
		node, ok := s.Node(id)
		if !ok {
			continue
		}
		newLevel, ok := node.Level.Below()
		if !ok {
			continue
		}
		candidate, ok := s.eligibleIndentParent(node, selected)
		if !ok {
			continue
		}
		if s.subtreeAtLeafDepth(id) {
			continue
		}
		acting[id] = target{newLevel: newLevel, candidate: candidate}
	}
	actingSet := make(map[string]bool, len(acting))
	for id := range acting {
		actingSet[id] = true
	}

	// Second pass: plan the writes. Destination-group tails are tracked so
	// two siblings indenting under the same parent don't collide on order.
	nextOrder := make(map[string]float64)
	var members []plannedMember
	for _, id := range ids {
		node, ok := s.Node(id)
		if !ok {
			result.Failures[id] = model.ErrNotFound
			continue
		}
		if s.hasActingAncestor(node, actingSet) {
			result.Skipped++
			continue
		}
		tgt, ok := acting[id]
		if !ok {
			result.Skipped++
			continue
		}
		key := tgt.candidate.ID
		ord, seen := nextOrder[key]
		if !seen {
			ord = s.appendOrder(tgt.newLevel, tgt.candidate.ID)
		}
		nextOrder[key] = ord + orderStep
		members = append(members, plannedMember{
			id:     id,
			writes: subtreeWrites(s.Subtree(id), 1, tgt.candidate.ID, ord),
		})
	}

	s.settle(ctx, members, &result)
	return result
}

// hasActingAncestor reports whether any of the node's ancestors is itself
// about to move in this batch. Such a member moves with its ancestor's
// subtree instead of on its own.
func (s *Store) hasActingAncestor(node model.Node, acting map[string]bool) bool {
	for cur := node.ParentID; cur != ""; {
		ancestor, ok := s.Node(cur)
		if !ok {
			return false
		}
		if acting[ancestor.ID] {
			return true
		}
		cur = ancestor.ParentID
	}
	return false
}

// BulkIndentOut applies indent-out to every selected node, skipping members
// already at the root level and members covered by another selected node's
// subtree.
func (s *Store) BulkIndentOut(ctx context.Context, ids []string) model.BulkResult {
	result := model.BulkResult{Attempted: len(ids), Failures: make(map[string]error)}

	acting := make(map[string]bool, len(ids))
	for _, id := range ids {
		node, ok := s.Node(id)
		if !ok {
			continue
		}
		if _, ok := node.Level.Above(); ok {
			acting[id] = true
		}
	}

	nextOrder := make(map[string]float64)
	var members []plannedMember
	for _, id := range ids {
		node, ok := s.Node(id)
		if !ok {
			result.Failures[id] = model.ErrNotFound
			continue
		}
		if s.hasActingAncestor(node, acting) {
			result.Skipped++
			continue
		}
		newLevel, ok := node.Level.Above()
		if !ok {
			result.Skipped++
			continue
		}
		newParent := ""
		if node.ParentID != "" {
			if parent, ok := s.Node(node.ParentID); ok {
				newParent = parent.ParentID
			}
		}
		key := fmt.Sprintf("%d/%s", int(newLevel), newParent)
		ord, seen := nextOrder[key]
		if !seen {
			ord = s.appendOrder(newLevel, newParent)
		}
		nextOrder[key] = ord + orderStep
		members = append(members, plannedMember{
			id:     id,
			writes: subtreeWrites(s.Subtree(id), -1, newParent, ord),
		})
	}

	s.settle(ctx, members, &result)
	return result
}

// settle works through the planned members concurrently, waits for all of
// them, then reloads once. Each member's writes run in sequence; the member
// fails as a unit on its first write error. Individual failures land in the
// result and never cancel the remaining members.
func (s *Store) settle(ctx context.Context, members []plannedMember, result *model.BulkResult) {
	if len(members) == 0 {
		return
	}

	var mu sync.Mutex
	g := &errgroup.Group{}
	g.SetLimit(bulkConcurrency)
	for _, m := range members {
		g.Go(func() error {
			var err error
			for _, w := range m.writes {
				cctx, cancel := s.opCtx(ctx)
				err = s.backend.Update(cctx, s.owner, w.id, w.patch)
				cancel()
				if err != nil {
					break
				}
			}
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failures[m.id] = err
				s.log.Warn().Str("id", m.id).Err(err).Msg("bulk member failed")
			} else {
				result.Succeeded++
			}
			return nil
		})
	}
	_ = g.Wait() // members never return errors; accounting is in result

	if err := s.Reload(ctx); err != nil {
		s.log.Error().Err(err).Msg("reload after bulk operation failed")
	}
}

// Impact summarizes what a (bulk) delete would destroy, for the up-front
// confirmation: the selected roots, every descendant underneath them, and how
// many transaction references would be orphaned.
type Impact struct {
	Selected    int `json:"selected"`
	Descendants int `json:"descendants"`
	References  int `json:"references"`
}

// Total returns the full number of nodes a delete would remove.
func (i Impact) Total() int {
	return i.Selected + i.Descendants
}

// DeleteImpact computes the Impact of deleting the given selection. Reference
// counting failures degrade to zero for that node and are logged; the
// confirmation still shows, just with an undercount.
func (s *Store) DeleteImpact(ctx context.Context, ids []string) Impact {
	roots := s.dedupeSelection(ids)
	impact := Impact{Selected: len(roots)}

	seen := make(map[string]bool)
	for _, id := range roots {
		for _, n := range s.Subtree(id) {
			if seen[n.ID] {
				continue
			}
			seen[n.ID] = true
			if n.ID != id {
				impact.Descendants++
			}
			if n.Level == model.LevelTag {
				cctx, cancel := s.opCtx(ctx)
				count, err := s.backend.CountReferences(cctx, s.owner, n.ID)
				cancel()
				if err != nil {
					s.log.Warn().Str("id", n.ID).Err(err).Msg("reference count failed")
					continue
				}
				impact.References += count
			}
		}
	}
	return impact
}

// BulkDelete deletes every selected subtree. The confirmation (with
// DeleteImpact totals) belongs to the caller and covers the whole set; the
// deletes themselves run independently and best-effort, one goroutine per
// selected root, each cascading leaf-to-root. Attempted counts individual
// nodes, not selection entries.
func (s *Store) BulkDelete(ctx context.Context, ids []string) model.BulkResult {
	roots := s.dedupeSelection(ids)
	result := model.BulkResult{Failures: make(map[string]error)}

	type subtreeJob struct {
		members []model.Node
	}
	var jobs []subtreeJob
	for _, id := range roots {
		members := s.Subtree(id)
		if len(members) == 0 {
			result.Attempted++
			result.Failures[id] = model.ErrNotFound
			continue
		}
		result.Attempted += len(members)
		jobs = append(jobs, subtreeJob{members: members})
	}

	var mu sync.Mutex
	g := &errgroup.Group{}
	g.SetLimit(bulkConcurrency)
	for _, job := range jobs {
		g.Go(func() error {
			for i := len(job.members) - 1; i >= 0; i-- {
				target := job.members[i]
				cctx, cancel := s.opCtx(ctx)
				err := s.backend.Delete(cctx, s.owner, target.ID)
				cancel()
				mu.Lock()
				if err != nil {
					result.Failures[target.ID] = err
					s.log.Warn().Str("id", target.ID).Err(err).Msg("bulk delete member failed")
				} else {
					result.Succeeded++
				}
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := s.Reload(ctx); err != nil {
		s.log.Error().Err(err).Msg("reload after bulk delete failed")
	}
	return result
}

// dedupeSelection drops selected ids that sit inside another selected node's
// subtree, so a parent-and-child selection deletes the subtree once.
func (s *Store) dedupeSelection(ids []string) []string {
	selected := make(map[string]bool, len(ids))
	for _, id := range ids {
		selected[id] = true
	}

	var out []string
	for _, id := range ids {
		node, ok := s.Node(id)
		if !ok {
			out = append(out, id) // surfaces as NotFound downstream
			continue
		}
		covered := false
		for cur := node.ParentID; cur != ""; {
			ancestor, ok := s.Node(cur)
			if !ok {
				break
			}
			if selected[ancestor.ID] {
				covered = true
				break
			}
			cur = ancestor.ParentID
		}
		if !covered {
			out = append(out, id)
		}
	}
	return out
}
