// Package agents provides AGENTS.md integration for AI coding agents.
// It handles detection and content injection for automatically adding
// taggrove usage instructions to agent configuration files.
package agents

import (
	"regexp"
	"strconv"
	"strings"
)

// BlurbVersion is the current version of the agent instructions blurb.
// Increment this when making breaking changes to the blurb format.
const BlurbVersion = 1

// BlurbStartMarker marks the beginning of injected agent instructions.
const BlurbStartMarker = "<!-- tg-agent-instructions-v1 -->"

// BlurbEndMarker marks the end of injected agent instructions.
const BlurbEndMarker = "<!-- end-tg-agent-instructions -->"

// AgentBlurb contains the instructions to be appended to AGENTS.md files.
const AgentBlurb = `<!-- tg-agent-instructions-v1 -->

---

## Tag Hierarchy Integration

This project organizes transaction tags with [taggrove](https://github.com/vanderheijden86/taggrove). The tree lives in ` + "`" + `.taggrove/` + "`" + `.

### Essential Commands

` + "```" + `bash
# Interactive editor (launches TUI - avoid in automated sessions)
tg

# Machine-readable commands for agents (use these instead)
tg --robot-tree       # Full tree with levels, orphans, usage counts as JSON
tg --robot-stats      # Node counts per level, orphan count, usage totals as JSON
tg --robot-insights   # Hygiene findings: unused tags, duplicates, orphans as JSON
tg --export-json f    # Snapshot the tree to a file
tg --import-json f    # Load a snapshot into an empty tree
tg --diff f           # Diff the tree against a snapshot (exit 1 on new orphans)
` + "```" + `

### Key Concepts

- **Levels**: Category → Subcategory → Group → Tag, strictly one level apart.
- **Orphans**: Nodes whose parent is missing are kept visible and flagged, never dropped.
- **Usage**: Tags carry transaction reference counts; deleting a used tag is allowed but cascades.
- **Ordering**: Siblings use fractional sort orders; never assume integers.

<!-- end-tg-agent-instructions -->`

// SupportedAgentFiles lists the filenames that can contain agent instructions.
var SupportedAgentFiles = []string{
	"AGENTS.md",
	"CLAUDE.md",
	"agents.md",
	"claude.md",
}

// blurbVersionRegex extracts the version number from a blurb marker.
var blurbVersionRegex = regexp.MustCompile(`<!-- tg-agent-instructions-v(\d+) -->`)

// ContainsBlurb checks if the content already contains a taggrove agent blurb.
func ContainsBlurb(content string) bool {
	return strings.Contains(content, "<!-- tg-agent-instructions-v")
}

// GetBlurbVersion extracts the version number from existing blurb content.
func GetBlurbVersion(content string) int {
	matches := blurbVersionRegex.FindStringSubmatch(content)
	if len(matches) < 2 {
		return 0
	}
	version, err := strconv.Atoi(matches[1])
	if err != nil {
		return 0
	}
	return version
}

// NeedsUpdate checks if the content has an older version of the blurb that
// should be updated.
func NeedsUpdate(content string) bool {
	if !ContainsBlurb(content) {
		return false
	}
	return GetBlurbVersion(content) < BlurbVersion
}

// AppendBlurb appends the agent blurb to the given content.
func AppendBlurb(content string) string {
	if !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	content += "\n"
	content += AgentBlurb
	content += "\n"
	return content
}

// RemoveBlurb removes an existing blurb from the content.
func RemoveBlurb(content string) string {
	startIdx := strings.Index(content, "<!-- tg-agent-instructions-v")
	if startIdx == -1 {
		return content
	}
	endIdx := strings.Index(content, BlurbEndMarker)
	if endIdx == -1 {
		return content
	}
	endIdx += len(BlurbEndMarker)
	for endIdx < len(content) && (content[endIdx] == '\n' || content[endIdx] == '\r') {
		endIdx++
	}
	for startIdx > 0 && (content[startIdx-1] == '\n' || content[startIdx-1] == '\r') {
		startIdx--
	}
	return content[:startIdx] + content[endIdx:]
}

// UpdateBlurb replaces an existing blurb with the current version.
func UpdateBlurb(content string) string {
	content = RemoveBlurb(content)
	return AppendBlurb(content)
}
