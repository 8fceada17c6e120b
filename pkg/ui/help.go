package ui

import (
	"github.com/charmbracelet/glamour"
)

const helpMarkdown = `# taggrove keys

## Browsing

| Key | Action |
|-----|--------|
| j / ↓, k / ↑ | move cursor |
| g / G | jump to top / bottom |
| ctrl+d / ctrl+u | page down / up |
| space | toggle multi-select |
| esc | clear selection and status |

## Editing

| Key | Action |
|-----|--------|
| enter | new sibling after the cursor |
| n | new child under the cursor |
| r / F2 | rename |
| tab / shift+tab | indent in / out (cursor or selection) |
| shift+↑ / K | move up, across group boundaries |
| shift+↓ / J | move down, across group boundaries |
| m | move to another parent |
| c | cycle node color |
| x / del | delete with cascade (asks first) |

## Other

| Key | Action |
|-----|--------|
| y | copy node path to clipboard |
| R | reload from storage |
| ? | this help |
| q / ctrl+c | quit |
`

// renderHelp renders the key reference through glamour, falling back to
// the raw markdown when the terminal profile defeats the renderer.
func renderHelp(width int) string {
	if width <= 0 {
		width = 80
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return helpMarkdown
	}
	out, err := r.Render(helpMarkdown)
	if err != nil {
		return helpMarkdown
	}
	return out
}
