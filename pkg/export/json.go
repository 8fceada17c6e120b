// Package export provides the robot/agent surfaces for a tag tree: JSON and
// markdown snapshots of the pre-ordered listing, an SVG diagram, and a
// create-only import for restoring a snapshot.
package export

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/vanderheijden86/taggrove/pkg/hierarchy"
	"github.com/vanderheijden86/taggrove/pkg/model"
	"github.com/vanderheijden86/taggrove/pkg/storage"
)

// TreeSnapshot is the JSON export format: the pre-ordered listing of one
// owner's tree with orphan flags and usage counts.
type TreeSnapshot struct {
	Version    int         `json:"version"`
	Owner      string      `json:"owner"`
	ExportedAt time.Time   `json:"exported_at"`
	Nodes      []TreeEntry `json:"nodes"`
}

// TreeEntry is one exported row.
type TreeEntry struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Level    string  `json:"level"`
	ParentID string  `json:"parent_id,omitempty"`
	Order    float64 `json:"order"`
	Color    string  `json:"color,omitempty"`
	Orphan   bool    `json:"orphan,omitempty"`
	Usage    int     `json:"usage,omitempty"`
}

// SnapshotVersion is the current export schema version.
const SnapshotVersion = 1

// Snapshot builds the export structure from a pre-ordered listing.
func Snapshot(owner string, entries []hierarchy.Entry, usage map[string]int) TreeSnapshot {
	snap := TreeSnapshot{
		Version:    SnapshotVersion,
		Owner:      owner,
		ExportedAt: time.Now(),
	}
	for _, e := range entries {
		snap.Nodes = append(snap.Nodes, TreeEntry{
			ID:       e.Node.ID,
			Name:     e.Node.Name,
			Level:    e.Node.Level.String(),
			ParentID: e.Node.ParentID,
			Order:    e.Node.Order,
			Color:    e.Node.Color,
			Orphan:   e.Orphan,
			Usage:    usage[e.Node.ID],
		})
	}
	return snap
}

// MarshalJSON renders the snapshot as indented JSON.
func (s TreeSnapshot) MarshalIndent() ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

// Import restores a snapshot into an empty owner tree through the storage
// contract. It refuses a non-empty tree: merging two trees has no sane
// answer for order and parent collisions, so restore is create-only.
func Import(ctx context.Context, backend storage.Backend, owner string, data []byte) (int, error) {
	var snap TreeSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return 0, fmt.Errorf("parse snapshot: %w", err)
	}
	if snap.Version != SnapshotVersion {
		return 0, fmt.Errorf("unsupported snapshot version %d", snap.Version)
	}

	existing, err := backend.ListAll(ctx, owner)
	if err != nil {
		return 0, fmt.Errorf("check target tree: %w", err)
	}
	if len(existing) > 0 {
		return 0, fmt.Errorf("owner %s already has %d nodes; import requires an empty tree", owner, len(existing))
	}

	created := 0
	for _, e := range snap.Nodes {
		level, err := model.ParseLevel(e.Level)
		if err != nil {
			return created, fmt.Errorf("node %s: %w", e.ID, err)
		}
		n := model.Node{
			ID:       e.ID,
			Name:     e.Name,
			Level:    level,
			ParentID: e.ParentID,
			Order:    e.Order,
			Color:    e.Color,
		}
		if _, err := backend.Create(ctx, owner, n); err != nil {
			return created, fmt.Errorf("create node %s: %w", e.ID, err)
		}
		created++
	}
	return created, nil
}

// Stats summarizes a tree for the robot stats surface.
type Stats struct {
	Total    int            `json:"total"`
	PerLevel map[string]int `json:"per_level"`
	Orphans  int            `json:"orphans"`
	TagRefs  int            `json:"tag_references"`
}

// ComputeStats tallies a pre-ordered listing.
func ComputeStats(entries []hierarchy.Entry, usage map[string]int) Stats {
	stats := Stats{PerLevel: make(map[string]int)}
	for _, e := range entries {
		stats.Total++
		stats.PerLevel[e.Node.Level.String()]++
		if e.Orphan {
			stats.Orphans++
		}
		stats.TagRefs += usage[e.Node.ID]
	}
	return stats
}
