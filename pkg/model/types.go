package model

import (
	"fmt"
	"time"
)

// Node is one entry in the four-level tag hierarchy.
// Every node belongs to exactly one owner; operations never cross owners.
type Node struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Name      string    `json:"name"`
	Level     Level     `json:"level"`
	ParentID  string    `json:"parent_id,omitempty"` // empty = no parent
	Order     float64   `json:"order"`
	Color     string    `json:"color,omitempty"`
	CreatedAt time.Time `json:"created_at,omitzero"`
	UpdatedAt time.Time `json:"updated_at,omitzero"`
}

// HasParent reports whether the node is grouped under a parent.
// Root-level nodes and ungrouped nodes at deeper levels have no parent.
func (n Node) HasParent() bool {
	return n.ParentID != ""
}

// DisplayColor returns the node's color, falling back to the level default.
func (n Node) DisplayColor() string {
	if n.Color != "" {
		return n.Color
	}
	return n.Level.DefaultColor()
}

// Validate checks if the node data is logically valid.
// Parent/level consistency against the rest of the tree is the hierarchy
// store's job; this only checks the node in isolation.
func (n *Node) Validate() error {
	if n.ID == "" {
		return fmt.Errorf("node ID cannot be empty")
	}
	if n.OwnerID == "" {
		return fmt.Errorf("node owner cannot be empty")
	}
	if n.Name == "" {
		return fmt.Errorf("node name cannot be empty")
	}
	if !n.Level.IsValid() {
		return fmt.Errorf("%w: %d", ErrInvalidLevel, int(n.Level))
	}
	if n.Level == LevelCategory && n.ParentID != "" {
		return fmt.Errorf("%w: category nodes cannot have a parent", ErrInvalidParent)
	}
	return nil
}

// Level is the depth class of a node. The set is closed: four levels,
// Category at the root and Tag at the leaves. Only Tag nodes are referenced
// by transactions.
type Level int

const (
	LevelCategory    Level = 1
	LevelSubcategory Level = 2
	LevelGroup       Level = 3
	LevelTag         Level = 4
)

// IsValid returns true if the level is one of the four recognized depths.
func (l Level) IsValid() bool {
	return l >= LevelCategory && l <= LevelTag
}

// String returns the lowercase identifier used on the wire and in config.
func (l Level) String() string {
	switch l {
	case LevelCategory:
		return "category"
	case LevelSubcategory:
		return "subcategory"
	case LevelGroup:
		return "group"
	case LevelTag:
		return "tag"
	}
	return fmt.Sprintf("level(%d)", int(l))
}

// Label returns the human-facing name for the level.
func (l Level) Label() string {
	switch l {
	case LevelCategory:
		return "Category"
	case LevelSubcategory:
		return "Subcategory"
	case LevelGroup:
		return "Group"
	case LevelTag:
		return "Tag"
	}
	return "Unknown"
}

// DefaultColor returns the display color used when a node has none of its own.
func (l Level) DefaultColor() string {
	switch l {
	case LevelCategory:
		return "#e05561"
	case LevelSubcategory:
		return "#d18f52"
	case LevelGroup:
		return "#8cc265"
	case LevelTag:
		return "#4aa5f0"
	}
	return "#abb2bf"
}

// Indent returns the display indentation width, in columns, for the level.
func (l Level) Indent() int {
	if !l.IsValid() {
		return 0
	}
	return (int(l) - 1) * 2
}

// Above returns the level one step shallower. ok is false at the root.
func (l Level) Above() (Level, bool) {
	if l <= LevelCategory || !l.IsValid() {
		return l, false
	}
	return l - 1, true
}

// Below returns the level one step deeper. ok is false at the leaf level.
func (l Level) Below() (Level, bool) {
	if l >= LevelTag || !l.IsValid() {
		return l, false
	}
	return l + 1, true
}

// ParseLevel converts a wire identifier back to a Level.
func ParseLevel(s string) (Level, error) {
	switch s {
	case "category":
		return LevelCategory, nil
	case "subcategory":
		return LevelSubcategory, nil
	case "group":
		return LevelGroup, nil
	case "tag":
		return LevelTag, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidLevel, s)
}

// Levels returns all levels from root to leaf, in order.
func Levels() []Level {
	return []Level{LevelCategory, LevelSubcategory, LevelGroup, LevelTag}
}
