// Package analysis inspects a tag tree for hygiene problems: tags nobody
// uses, containers with nothing in them, duplicate names, overcrowded
// groups. The output is structured and capped so agents can consume it
// deterministically.
package analysis

import (
	"fmt"
	"sort"
	"strings"

	"github.com/vanderheijden86/taggrove/pkg/hierarchy"
	"github.com/vanderheijden86/taggrove/pkg/model"
)

// Config holds caps and thresholds. All list outputs are bounded so the
// report stays a fixed size regardless of tree size.
type Config struct {
	// ItemLimit caps every finding list (default 10).
	ItemLimit int `json:"item_limit"`

	// CrowdedThreshold is the sibling count above which a group is
	// flagged as crowded (default 15).
	CrowdedThreshold int `json:"crowded_threshold"`
}

// DefaultConfig returns the standard caps.
func DefaultConfig() Config {
	return Config{
		ItemLimit:        10,
		CrowdedThreshold: 15,
	}
}

// Finding is one capped list of problem nodes.
type Finding struct {
	Count  int      `json:"count"`            // total matches before capping
	Capped bool     `json:"capped,omitempty"` // true when Items were truncated
	Items  []Item   `json:"items,omitempty"`
	Hint   string   `json:"hint"`
	IDs    []string `json:"-"`
}

// Item identifies one flagged node.
type Item struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Level  string `json:"level"`
	Detail string `json:"detail,omitempty"`
}

// Insights is the full hygiene report.
type Insights struct {
	UnusedTags      Finding `json:"unused_tags"`
	EmptyContainers Finding `json:"empty_containers"`
	DuplicateNames  Finding `json:"duplicate_names"`
	CrowdedGroups   Finding `json:"crowded_groups"`
	Orphans         Finding `json:"orphans"`

	Config Config `json:"config"`
}

// Inspect analyzes a pre-ordered listing with its usage counts.
func Inspect(entries []hierarchy.Entry, usage map[string]int, cfg Config) Insights {
	if cfg.ItemLimit <= 0 {
		cfg.ItemLimit = DefaultConfig().ItemLimit
	}
	if cfg.CrowdedThreshold <= 0 {
		cfg.CrowdedThreshold = DefaultConfig().CrowdedThreshold
	}

	ins := Insights{Config: cfg}
	ins.UnusedTags = findUnusedTags(entries, usage, cfg)
	ins.EmptyContainers = findEmptyContainers(entries, cfg)
	ins.DuplicateNames = findDuplicateNames(entries, cfg)
	ins.CrowdedGroups = findCrowdedGroups(entries, cfg)
	ins.Orphans = findOrphans(entries, cfg)
	return ins
}

// Clean reports whether no findings were raised.
func (i Insights) Clean() bool {
	return i.UnusedTags.Count == 0 &&
		i.EmptyContainers.Count == 0 &&
		i.DuplicateNames.Count == 0 &&
		i.CrowdedGroups.Count == 0 &&
		i.Orphans.Count == 0
}

func findUnusedTags(entries []hierarchy.Entry, usage map[string]int, cfg Config) Finding {
	f := Finding{Hint: "tags no transaction references; candidates for deletion or merging"}
	for _, e := range entries {
		if e.Level != model.LevelTag || usage[e.ID] > 0 {
			continue
		}
		f.add(cfg, Item{ID: e.ID, Name: e.Name, Level: e.Level.String()})
	}
	return f
}

func findEmptyContainers(entries []hierarchy.Entry, cfg Config) Finding {
	children := make(map[string]int)
	for _, e := range entries {
		if e.ParentID != "" {
			children[e.ParentID]++
		}
	}
	f := Finding{Hint: "categories, subcategories and groups with no children"}
	for _, e := range entries {
		if e.Level == model.LevelTag || children[e.ID] > 0 {
			continue
		}
		f.add(cfg, Item{ID: e.ID, Name: e.Name, Level: e.Level.String()})
	}
	return f
}

// findDuplicateNames flags same-named siblings. Duplicate names in different
// branches are fine; under the same parent they are almost always a mistake.
func findDuplicateNames(entries []hierarchy.Entry, cfg Config) Finding {
	byScope := make(map[string][]hierarchy.Entry)
	for _, e := range entries {
		key := fmt.Sprintf("%d/%s/%s", e.Level, e.ParentID, strings.ToLower(strings.TrimSpace(e.Name)))
		byScope[key] = append(byScope[key], e)
	}

	keys := make([]string, 0, len(byScope))
	for k, group := range byScope {
		if len(group) > 1 {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	f := Finding{Hint: "same-named nodes under the same parent"}
	for _, k := range keys {
		for _, e := range byScope[k] {
			f.add(cfg, Item{
				ID:     e.ID,
				Name:   e.Name,
				Level:  e.Level.String(),
				Detail: fmt.Sprintf("%d nodes share this name here", len(byScope[k])),
			})
		}
	}
	return f
}

func findCrowdedGroups(entries []hierarchy.Entry, cfg Config) Finding {
	children := make(map[string]int)
	name := make(map[string]hierarchy.Entry)
	for _, e := range entries {
		name[e.ID] = e
		if e.ParentID != "" {
			children[e.ParentID]++
		}
	}

	ids := make([]string, 0, len(children))
	for id, n := range children {
		if n > cfg.CrowdedThreshold {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	f := Finding{Hint: fmt.Sprintf("nodes with more than %d direct children; consider splitting", cfg.CrowdedThreshold)}
	for _, id := range ids {
		e, ok := name[id]
		if !ok {
			continue
		}
		f.add(cfg, Item{
			ID:     e.ID,
			Name:   e.Name,
			Level:  e.Level.String(),
			Detail: fmt.Sprintf("%d children", children[id]),
		})
	}
	return f
}

func findOrphans(entries []hierarchy.Entry, cfg Config) Finding {
	f := Finding{Hint: "nodes whose parent is missing; reparent or delete them"}
	for _, e := range entries {
		if !e.Orphan {
			continue
		}
		f.add(cfg, Item{ID: e.ID, Name: e.Name, Level: e.Level.String()})
	}
	return f
}

func (f *Finding) add(cfg Config, item Item) {
	f.Count++
	if len(f.Items) < cfg.ItemLimit {
		f.Items = append(f.Items, item)
	} else {
		f.Capped = true
	}
}
