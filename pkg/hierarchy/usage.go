package hierarchy

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/vanderheijden86/taggrove/pkg/model"
	"github.com/vanderheijden86/taggrove/pkg/storage"
)

// usageConcurrency bounds in-flight reference count queries.
const usageConcurrency = 4

// UsageBridge asks the transaction subsystem how many records reference each
// Tag-level node. It is a read-only side query invoked lazily after the tree
// loads: a failed count defaults to zero and logs, and never blocks display.
type UsageBridge struct {
	backend storage.Backend
	owner   string
	timeout time.Duration
	log     zerolog.Logger
}

// NewUsageBridge creates a bridge scoped to one owner.
func NewUsageBridge(backend storage.Backend, ownerID string, timeout time.Duration, log zerolog.Logger) *UsageBridge {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &UsageBridge{backend: backend, owner: ownerID, timeout: timeout, log: log}
}

// Counts returns a usage-count map keyed by node id, covering the Tag-level
// members of nodes. Non-tag nodes are not queried: only leaves are referenced
// by transactions.
func (b *UsageBridge) Counts(ctx context.Context, nodes []model.Node) map[string]int {
	counts := make(map[string]int)
	var mu sync.Mutex

	g := &errgroup.Group{}
	g.SetLimit(usageConcurrency)
	for _, n := range nodes {
		if n.Level != model.LevelTag {
			continue
		}
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(ctx, b.timeout)
			defer cancel()
			count, err := b.backend.CountReferences(cctx, b.owner, n.ID)
			if err != nil {
				b.log.Warn().Str("id", n.ID).Err(err).Msg("usage count failed; defaulting to zero")
				count = 0
			}
			mu.Lock()
			counts[n.ID] = count
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return counts
}

// Count returns the usage count for one node, defaulting to zero on failure.
func (b *UsageBridge) Count(ctx context.Context, nodeID string) int {
	cctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	count, err := b.backend.CountReferences(cctx, b.owner, nodeID)
	if err != nil {
		b.log.Warn().Str("id", nodeID).Err(err).Msg("usage count failed; defaulting to zero")
		return 0
	}
	return count
}
