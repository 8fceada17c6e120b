// Package storage provides the document persistence capability the tag
// hierarchy is built on. Backends are per-owner scoped: every call carries an
// explicit owner id and must never read or mutate another owner's nodes.
package storage

import (
	"context"
	"crypto/rand"
	"encoding/hex"

	"github.com/vanderheijden86/taggrove/pkg/model"
)

// Backend is the minimal contract the hierarchy core consumes. Reference
// counting is delegated to the transaction subsystem's records, not the tree
// itself, but rides on the same backend connection.
type Backend interface {
	// Create stores a new node and returns its assigned id. If n.ID is
	// empty the backend assigns one.
	Create(ctx context.Context, ownerID string, n model.Node) (string, error)

	// Update applies a partial patch. Fields the patch clears must be
	// written as an explicit "no value" in the store, not left stale.
	Update(ctx context.Context, ownerID, id string, p Patch) error

	// Delete removes a single node. Cascading is the caller's job.
	Delete(ctx context.Context, ownerID, id string) error

	// ListAll returns an unordered snapshot of the owner's nodes.
	ListAll(ctx context.Context, ownerID string) ([]model.Node, error)

	// CountReferences returns how many transaction records reference the
	// given (tag-level) node.
	CountReferences(ctx context.Context, ownerID, nodeID string) (int, error)

	Close() error
}

// Patch is a partial update. Nil pointer = leave the field alone. A non-nil
// pointer to the zero value clears the field: in particular ParentID pointing
// at "" writes an explicit no-parent state. Conflating "omitted" with "clear"
// is how stale parent references get left behind, so the distinction is part
// of the contract.
type Patch struct {
	Name     *string
	Color    *string
	Level    *model.Level
	ParentID *string
	Order    *float64
}

// IsZero reports whether the patch changes nothing.
func (p Patch) IsZero() bool {
	return p.Name == nil && p.Color == nil && p.Level == nil &&
		p.ParentID == nil && p.Order == nil
}

// Structural reports whether the patch touches position state. Position is
// always written as a unit (level, parent, order) since changing one without
// the others breaks the parent-level invariant.
func (p Patch) Structural() bool {
	return p.Level != nil || p.ParentID != nil || p.Order != nil
}

// StringPtr, LevelPtr and FloatPtr are small helpers for building patches.
func StringPtr(s string) *string          { return &s }
func LevelPtr(l model.Level) *model.Level { return &l }
func FloatPtr(f float64) *float64         { return &f }

// NewID returns a fresh opaque node id.
func NewID() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err) // crypto/rand failure is not recoverable
	}
	return "tg-" + hex.EncodeToString(b[:])
}
