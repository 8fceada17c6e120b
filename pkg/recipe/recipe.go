// Package recipe provides starter tree templates: named hierarchies that can
// seed an empty tree at init time instead of building one node by node. A
// template can come from the built-in set or from a YAML file.
package recipe

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/vanderheijden86/taggrove/pkg/hierarchy"
	"github.com/vanderheijden86/taggrove/pkg/model"
)

// Template is a reusable starter tree.
type Template struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Nodes are the root (category) entries. Depth in this structure maps
	// directly onto the hierarchy levels, so nesting deeper than four
	// levels is invalid.
	Nodes []Node `yaml:"nodes" json:"nodes"`
}

// Node is one entry in a template tree.
type Node struct {
	Name     string `yaml:"name" json:"name"`
	Color    string `yaml:"color,omitempty" json:"color,omitempty"`
	Children []Node `yaml:"children,omitempty" json:"children,omitempty"`
}

// BuiltIn returns the templates shipped with the tool.
func BuiltIn() []Template {
	return []Template{
		{
			Name:        "personal-finance",
			Description: "Everyday spending and income categories",
			Nodes: []Node{
				{Name: "Spending", Children: []Node{
					{Name: "Daily", Children: []Node{
						{Name: "Food", Children: []Node{
							{Name: "Groceries"}, {Name: "Takeout"}, {Name: "Coffee"},
						}},
						{Name: "Transport", Children: []Node{
							{Name: "Fuel"}, {Name: "Public transit"},
						}},
					}},
					{Name: "Monthly", Children: []Node{
						{Name: "Housing", Children: []Node{
							{Name: "Rent"}, {Name: "Utilities"}, {Name: "Internet"},
						}},
						{Name: "Subscriptions", Children: []Node{
							{Name: "Streaming"}, {Name: "Software"},
						}},
					}},
				}},
				{Name: "Income", Children: []Node{
					{Name: "Regular", Children: []Node{
						{Name: "Employment", Children: []Node{
							{Name: "Salary"},
						}},
					}},
				}},
			},
		},
		{
			Name:        "small-business",
			Description: "Basic bookkeeping buckets for a small business",
			Nodes: []Node{
				{Name: "Expenses", Children: []Node{
					{Name: "Operations", Children: []Node{
						{Name: "Office", Children: []Node{
							{Name: "Supplies"}, {Name: "Rent"},
						}},
						{Name: "Services", Children: []Node{
							{Name: "Hosting"}, {Name: "Accounting"},
						}},
					}},
				}},
				{Name: "Revenue", Children: []Node{
					{Name: "Sales", Children: []Node{
						{Name: "Products", Children: []Node{
							{Name: "Invoiced"},
						}},
					}},
				}},
			},
		},
	}
}

// Find returns the built-in template with the given name.
func Find(name string) (Template, bool) {
	for _, tpl := range BuiltIn() {
		if tpl.Name == name {
			return tpl, true
		}
	}
	return Template{}, false
}

// Load reads and validates a template from a YAML file.
func Load(path string) (Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Template{}, fmt.Errorf("read template %s: %w", path, err)
	}
	var tpl Template
	if err := yaml.Unmarshal(data, &tpl); err != nil {
		return Template{}, fmt.Errorf("parse template %s: %w", path, err)
	}
	if err := tpl.Validate(); err != nil {
		return Template{}, err
	}
	return tpl, nil
}

// Validate checks names and nesting depth.
func (t Template) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("template: name is required")
	}
	if len(t.Nodes) == 0 {
		return fmt.Errorf("template %s: no nodes", t.Name)
	}
	return validateNodes(t.Name, t.Nodes, 1)
}

func validateNodes(tpl string, nodes []Node, depth int) error {
	if len(nodes) == 0 {
		return nil
	}
	if depth > len(model.Levels()) {
		return fmt.Errorf("template %s: nesting deeper than %d levels", tpl, len(model.Levels()))
	}
	for _, n := range nodes {
		if n.Name == "" {
			return fmt.Errorf("template %s: node with empty name at depth %d", tpl, depth)
		}
		if err := validateNodes(tpl, n.Children, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// Apply seeds the template into an empty tree and returns how many nodes it
// created. A non-empty tree is refused, same as snapshot import.
func Apply(ctx context.Context, store *hierarchy.Store, tpl Template) (int, error) {
	if err := tpl.Validate(); err != nil {
		return 0, err
	}
	if store.Len() > 0 {
		return 0, fmt.Errorf("tree already has %d nodes; templates only seed empty trees", store.Len())
	}

	levels := model.Levels()
	created := 0
	var walk func(nodes []Node, depth int, parentID string) error
	walk = func(nodes []Node, depth int, parentID string) error {
		for _, n := range nodes {
			id, err := store.CreateNode(ctx, n.Name, levels[depth-1], parentID, nil, n.Color)
			if err != nil {
				return fmt.Errorf("create %q: %w", n.Name, err)
			}
			created++
			if err := walk(n.Children, depth+1, id); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(tpl.Nodes, 1, ""); err != nil {
		return created, err
	}
	return created, nil
}
