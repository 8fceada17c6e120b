package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vanderheijden86/taggrove/pkg/model"
)

// Memory is an in-process Backend. It backs tests and the `memory` backend
// mode, and is the reference implementation of the contract: the sqlite and
// surreal backends must be observationally equivalent to it.
type Memory struct {
	mu    sync.RWMutex
	nodes map[string]model.Node // id -> node, all owners mixed
	refs  map[string][]string   // owner/tag key -> transaction ids

	// countErr lets tests inject CountReferences failures per node id.
	countErr map[string]error
}

// NewMemory creates an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{
		nodes:    make(map[string]model.Node),
		refs:     make(map[string][]string),
		countErr: make(map[string]error),
	}
}

func refKey(ownerID, nodeID string) string {
	return ownerID + "/" + nodeID
}

func (m *Memory) Create(ctx context.Context, ownerID string, n model.Node) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if n.ID == "" {
		n.ID = NewID()
	}
	if _, exists := m.nodes[n.ID]; exists {
		return "", fmt.Errorf("duplicate node id %s", n.ID)
	}
	n.OwnerID = ownerID
	now := time.Now()
	n.CreatedAt = now
	n.UpdatedAt = now
	m.nodes[n.ID] = n
	return n.ID, nil
}

func (m *Memory) Update(ctx context.Context, ownerID, id string, p Patch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	n, ok := m.nodes[id]
	if !ok || n.OwnerID != ownerID {
		return fmt.Errorf("update %s: %w", id, model.ErrNotFound)
	}
	if p.Name != nil {
		n.Name = *p.Name
	}
	if p.Color != nil {
		n.Color = *p.Color // "" clears
	}
	if p.Level != nil {
		n.Level = *p.Level
	}
	if p.ParentID != nil {
		n.ParentID = *p.ParentID // "" clears
	}
	if p.Order != nil {
		n.Order = *p.Order
	}
	n.UpdatedAt = time.Now()
	m.nodes[id] = n
	return nil
}

func (m *Memory) Delete(ctx context.Context, ownerID, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	n, ok := m.nodes[id]
	if !ok || n.OwnerID != ownerID {
		return fmt.Errorf("delete %s: %w", id, model.ErrNotFound)
	}
	delete(m.nodes, id)
	delete(m.refs, refKey(ownerID, id))
	return nil
}

func (m *Memory) ListAll(ctx context.Context, ownerID string) ([]model.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []model.Node
	for _, n := range m.nodes {
		if n.OwnerID == ownerID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (m *Memory) CountReferences(ctx context.Context, ownerID, nodeID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.countErr[nodeID]; err != nil {
		return 0, err
	}
	return len(m.refs[refKey(ownerID, nodeID)]), nil
}

func (m *Memory) Close() error {
	return nil
}

// AddReference records a transaction reference against a tag node. This
// stands in for the transaction subsystem in tests and the memory mode.
func (m *Memory) AddReference(ownerID, nodeID, txnID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := refKey(ownerID, nodeID)
	m.refs[key] = append(m.refs[key], txnID)
}

// FailCounts makes CountReferences fail for the given node id.
func (m *Memory) FailCounts(nodeID string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.countErr[nodeID] = err
}

// Len returns the total number of stored nodes across owners.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.nodes)
}
