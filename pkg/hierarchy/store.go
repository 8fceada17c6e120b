package hierarchy

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vanderheijden86/taggrove/pkg/model"
	"github.com/vanderheijden86/taggrove/pkg/storage"
)

const (
	// DefaultTimeout bounds every persistence round trip. A stuck remote
	// call fails the one operation instead of stalling the session.
	DefaultTimeout = 5 * time.Second

	// orderStep is the gap between appended sibling order values.
	orderStep = 1.0

	// minOrderGap is the interpolation floor; below it the sibling group
	// gets renumbered before the insert proceeds.
	minOrderGap = 1e-9
)

// Store holds the full node collection for one owner and provides
// consistency-checked operations over it. It never caches writes: every
// successful mutation is followed by a full reload from the backend, so the
// in-memory tree is always the store's last observed truth.
type Store struct {
	backend storage.Backend
	owner   string
	timeout time.Duration
	log     zerolog.Logger

	mu      sync.RWMutex
	nodes   map[string]model.Node
	entries []Entry
}

// Option configures a Store.
type Option func(*Store)

// WithTimeout overrides the per-operation persistence timeout.
func WithTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithLogger sets the structured logger. The default discards.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Store) { s.log = log }
}

// NewStore creates a store for one owner's tree. Call Reload before use.
func NewStore(backend storage.Backend, ownerID string, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		owner:   ownerID,
		timeout: DefaultTimeout,
		log:     zerolog.Nop(),
		nodes:   make(map[string]model.Node),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Owner returns the owner id the store is scoped to.
func (s *Store) Owner() string {
	return s.owner
}

func (s *Store) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

// Reload replaces the in-memory tree with the backend's current state and
// recomputes the pre-ordered listing.
func (s *Store) Reload(ctx context.Context) error {
	cctx, cancel := s.opCtx(ctx)
	defer cancel()

	nodes, err := s.backend.ListAll(cctx, s.owner)
	if err != nil {
		return &model.PersistenceError{Op: "list", Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes = make(map[string]model.Node, len(nodes))
	for _, n := range nodes {
		s.nodes[n.ID] = n
	}
	s.entries = PreOrder(nodes)
	s.log.Debug().Int("nodes", len(nodes)).Msg("tree reloaded")
	return nil
}

// Entries returns the pre-ordered, orphan-flagged listing from the last
// reload.
func (s *Store) Entries() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Nodes returns an unordered snapshot of the tree.
func (s *Store) Nodes() []model.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Node, 0, len(s.nodes))
	for _, n := range s.nodes {
		out = append(out, n)
	}
	return out
}

// Node looks up a single node by id.
func (s *Store) Node(id string) (model.Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[id]
	return n, ok
}

// Len returns the number of nodes in the tree.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodes)
}

// CreateNode validates and persists a new node, then reloads. A nil order
// appends to the end of the destination sibling group. Returns the new id.
func (s *Store) CreateNode(ctx context.Context, name string, level model.Level, parentID string, order *float64, color string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("node name cannot be empty")
	}
	if !level.IsValid() {
		return "", fmt.Errorf("%w: %d", model.ErrInvalidLevel, int(level))
	}
	if parentID != "" {
		parent, ok := s.Node(parentID)
		if !ok {
			return "", fmt.Errorf("%w: parent %s does not exist", model.ErrInvalidParent, parentID)
		}
		if parent.Level != level-1 {
			return "", fmt.Errorf("%w: parent %s is level %d, need %d",
				model.ErrInvalidParent, parentID, int(parent.Level), int(level)-1)
		}
	}

	ord := s.appendOrder(level, parentID)
	if order != nil {
		ord = *order
	}

	n := model.Node{
		OwnerID:  s.owner,
		Name:     name,
		Level:    level,
		ParentID: parentID,
		Order:    ord,
		Color:    color,
	}

	cctx, cancel := s.opCtx(ctx)
	defer cancel()
	id, err := s.backend.Create(cctx, s.owner, n)
	if err != nil {
		return "", &model.PersistenceError{Op: "create", Err: err}
	}
	if err := s.Reload(ctx); err != nil {
		return id, err
	}
	return id, nil
}

// UpdateNode validates and persists a partial patch, then reloads. Structural
// patches must carry level, parent, and order together; changing one without
// the others is how the parent-level invariant gets broken.
func (s *Store) UpdateNode(ctx context.Context, id string, p storage.Patch) error {
	if _, ok := s.Node(id); !ok {
		return fmt.Errorf("update %s: %w", id, model.ErrNotFound)
	}
	if p.IsZero() {
		return nil
	}
	if p.Name != nil && *p.Name == "" {
		return fmt.Errorf("node name cannot be empty")
	}

	if p.Level != nil || p.ParentID != nil {
		if p.Level == nil || p.ParentID == nil || p.Order == nil {
			return fmt.Errorf("structural update of %s must set level, parent, and order together", id)
		}
		if !p.Level.IsValid() {
			return fmt.Errorf("%w: %d", model.ErrInvalidLevel, int(*p.Level))
		}
		if *p.ParentID == "" {
			// Parentless is fine at any level; nothing more to check.
		} else {
			if *p.ParentID == id {
				return fmt.Errorf("%w: node cannot be its own parent", model.ErrInvalidParent)
			}
			parent, ok := s.Node(*p.ParentID)
			if !ok {
				return fmt.Errorf("%w: parent %s does not exist", model.ErrInvalidParent, *p.ParentID)
			}
			if parent.Level != *p.Level-1 {
				return fmt.Errorf("%w: parent %s is level %d, need %d",
					model.ErrInvalidParent, *p.ParentID, int(parent.Level), int(*p.Level)-1)
			}
		}
		// A level change must not strand the node's own children; subtree
		// moves go through the mutators, which shift every member together.
		for _, child := range s.children(id) {
			if child.Level != *p.Level+1 {
				return fmt.Errorf("%w: level %d strands child %s at level %d",
					model.ErrInvalidLevel, int(*p.Level), child.ID, int(child.Level))
			}
		}
	}

	cctx, cancel := s.opCtx(ctx)
	defer cancel()
	if err := s.backend.Update(cctx, s.owner, id, p); err != nil {
		return &model.PersistenceError{Op: "update", ID: id, Err: err}
	}
	return s.Reload(ctx)
}

// DeleteNode removes a node and its entire descendant subtree. The cascade is
// exhaustive: the full descendant set is collected up front, and a failure on
// any member is reported rather than silently leaving a dangling subtree.
func (s *Store) DeleteNode(ctx context.Context, id string) (model.BulkResult, error) {
	if _, ok := s.Node(id); !ok {
		return model.BulkResult{}, fmt.Errorf("delete %s: %w", id, model.ErrNotFound)
	}

	subtree := s.Subtree(id)
	result := model.BulkResult{
		Attempted: len(subtree),
		Failures:  make(map[string]error),
	}

	// Leaf-to-root; the order is not required by the document model, but it
	// means a partial failure never strands children of an already-deleted
	// parent.
	for i := len(subtree) - 1; i >= 0; i-- {
		target := subtree[i]
		cctx, cancel := s.opCtx(ctx)
		err := s.backend.Delete(cctx, s.owner, target.ID)
		cancel()
		if err != nil {
			result.Failures[target.ID] = err
			s.log.Warn().Str("id", target.ID).Err(err).Msg("cascade delete member failed")
			continue
		}
		result.Succeeded++
	}

	if err := s.Reload(ctx); err != nil {
		return result, err
	}
	return result, nil
}

// Subtree returns the node and all of its descendants in pre-order.
func (s *Store) Subtree(id string) []model.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()

	root, ok := s.nodes[id]
	if !ok {
		return nil
	}
	children := make(map[string][]model.Node)
	for _, n := range s.nodes {
		if n.ParentID != "" {
			children[n.ParentID] = append(children[n.ParentID], n)
		}
	}
	for _, group := range children {
		SortSiblings(group)
	}

	var out []model.Node
	seen := make(map[string]bool)
	var walk func(n model.Node)
	walk = func(n model.Node) {
		if seen[n.ID] {
			return
		}
		seen[n.ID] = true
		out = append(out, n)
		for _, c := range children[n.ID] {
			walk(c)
		}
	}
	walk(root)
	return out
}

// children returns the nodes directly under id, unsorted.
func (s *Store) children(id string) []model.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Node
	for _, n := range s.nodes {
		if n.ParentID == id {
			out = append(out, n)
		}
	}
	return out
}

// siblings returns the sorted sibling group for (level, parentID).
func (s *Store) siblings(level model.Level, parentID string) []model.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var group []model.Node
	for _, n := range s.nodes {
		if n.Level == level && n.ParentID == parentID {
			group = append(group, n)
		}
	}
	SortSiblings(group)
	return group
}

// appendOrder returns an order value past the end of a sibling group.
func (s *Store) appendOrder(level model.Level, parentID string) float64 {
	group := s.siblings(level, parentID)
	if len(group) == 0 {
		return orderStep
	}
	return group[len(group)-1].Order + orderStep
}

// prependOrder returns an order value before the start of a sibling group.
func (s *Store) prependOrder(level model.Level, parentID string) float64 {
	group := s.siblings(level, parentID)
	if len(group) == 0 {
		return orderStep
	}
	return group[0].Order - orderStep
}

// normalizeSiblings renumbers a sibling group to whole-number order values.
// Called when float interpolation has exhausted its precision between two
// neighbors.
func (s *Store) normalizeSiblings(ctx context.Context, level model.Level, parentID string) error {
	group := s.siblings(level, parentID)
	for i, n := range group {
		ord := float64(i+1) * orderStep
		if n.Order == ord {
			continue
		}
		cctx, cancel := s.opCtx(ctx)
		err := s.backend.Update(cctx, s.owner, n.ID, storage.Patch{Order: storage.FloatPtr(ord)})
		cancel()
		if err != nil {
			return &model.PersistenceError{Op: "update", ID: n.ID, Err: err}
		}
	}
	s.log.Debug().Int("level", int(level)).Str("parent", parentID).Msg("sibling orders renumbered")
	return s.Reload(ctx)
}
