package model

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Sentinel errors for tree mutations. Mutators propagate these unchanged;
// the interaction layer turns them into status-line messages.
var (
	// ErrInvalidLevel means a level outside {1..4}. Never retried.
	ErrInvalidLevel = errors.New("invalid level")

	// ErrInvalidParent means the parent is missing, at the wrong level, or
	// belongs to a different owner.
	ErrInvalidParent = errors.New("invalid parent")

	// ErrNotFound means the node id is unknown at mutation time, usually
	// stale local state after an external change. Callers should reload.
	ErrNotFound = errors.New("node not found")

	// ErrNoEligibleParent means an indent-in found no preceding node that
	// could become the parent.
	ErrNoEligibleParent = errors.New("no eligible parent")

	// ErrAtBoundary means a move-up/move-down hit the first/last sibling.
	// The caller may offer a cross-group move instead.
	ErrAtBoundary = errors.New("already at group boundary")
)

// PersistenceError wraps a failed call to the backing store. The attempted
// local change is discarded; the tree stays at its last reloaded state and
// the user may retry the same action.
type PersistenceError struct {
	Op  string // "create", "update", "delete", "list", "count"
	ID  string // node id, if the operation targeted one
	Err error
}

func (e *PersistenceError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("persistence %s %s: %v", e.Op, e.ID, e.Err)
	}
	return fmt.Sprintf("persistence %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// BulkResult accounts for a bulk operation over a selection. Bulk operations
// are best-effort: one member failing does not roll back the others, so the
// result is a tally, not an error.
type BulkResult struct {
	Attempted int              // size of the selection
	Succeeded int              // members whose mutation was written
	Skipped   int              // members that were ineligible (not an error)
	Failures  map[string]error // node id -> failure, for members that errored
}

// Failed returns the number of members whose mutation errored.
func (r BulkResult) Failed() int {
	return len(r.Failures)
}

// Partial reports whether some but not all members went through.
func (r BulkResult) Partial() bool {
	return r.Failed() > 0 && r.Succeeded > 0
}

// Summary renders a short status-line message for the result.
func (r BulkResult) Summary(verb string) string {
	if r.Failed() == 0 && r.Skipped == 0 {
		return fmt.Sprintf("%s %d node(s)", verb, r.Succeeded)
	}
	parts := []string{fmt.Sprintf("%s %d/%d", verb, r.Succeeded, r.Attempted)}
	if r.Skipped > 0 {
		parts = append(parts, fmt.Sprintf("%d skipped", r.Skipped))
	}
	if r.Failed() > 0 {
		parts = append(parts, fmt.Sprintf("%d failed", r.Failed()))
	}
	return strings.Join(parts, ", ")
}

// FailureIDs returns the ids of failed members in a stable order.
func (r BulkResult) FailureIDs() []string {
	ids := make([]string, 0, len(r.Failures))
	for id := range r.Failures {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
