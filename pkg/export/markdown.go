package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/vanderheijden86/taggrove/pkg/hierarchy"
	"github.com/vanderheijden86/taggrove/pkg/model"
)

// GenerateMarkdown renders the tree as a nested markdown outline, one bullet
// per node, indented by level, with usage counts on tags.
func GenerateMarkdown(owner string, entries []hierarchy.Entry, usage map[string]int) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("# Tags — %s\n\n", owner))
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", time.Now().Format(time.RFC1123)))

	stats := ComputeStats(entries, usage)
	sb.WriteString("## Summary\n\n")
	sb.WriteString(fmt.Sprintf("- **Total**: %d\n", stats.Total))
	for _, l := range model.Levels() {
		sb.WriteString(fmt.Sprintf("- **%s**: %d\n", l.Label(), stats.PerLevel[l.String()]))
	}
	if stats.Orphans > 0 {
		sb.WriteString(fmt.Sprintf("- **Orphans**: %d\n", stats.Orphans))
	}
	sb.WriteString("\n## Tree\n\n")

	for _, e := range entries {
		indent := strings.Repeat("  ", int(e.Node.Level)-1)
		line := indent + "- " + e.Node.Name
		if e.Node.Level == model.LevelTag {
			if count := usage[e.Node.ID]; count > 0 {
				line += fmt.Sprintf(" (%d)", count)
			}
		}
		if e.Orphan {
			line += " ⚠ orphan"
		}
		sb.WriteString(line + "\n")
	}

	return sb.String()
}
