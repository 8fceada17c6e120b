// Package drift compares a previously exported tree snapshot against the
// current tree and reports what changed: structural edits, renames, orphan
// regressions. It backs the --diff robot surface and is CI-friendly via
// exit codes.
package drift

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/vanderheijden86/taggrove/pkg/export"
	"github.com/vanderheijden86/taggrove/pkg/hierarchy"
	"github.com/vanderheijden86/taggrove/pkg/model"
)

// Severity ranks an alert.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// AlertType categorizes a detected change.
type AlertType string

const (
	AlertNodeAdded    AlertType = "node_added"
	AlertNodeRemoved  AlertType = "node_removed"
	AlertNodeRenamed  AlertType = "node_renamed"
	AlertNodeMoved    AlertType = "node_moved"
	AlertNodeRecolor  AlertType = "node_recolored"
	AlertNewOrphans   AlertType = "new_orphans"
	AlertUsageDropped AlertType = "usage_dropped"
)

// Alert is a single detected difference.
type Alert struct {
	Type        AlertType `json:"type"`
	Severity    Severity  `json:"severity"`
	Message     string    `json:"message"`
	NodeID      string    `json:"node_id,omitempty"`
	BaselineVal string    `json:"baseline_value,omitempty"`
	CurrentVal  string    `json:"current_value,omitempty"`
	Details     []string  `json:"details,omitempty"`
	DetectedAt  time.Time `json:"detected_at,omitempty"`
}

// Result is the complete comparison.
type Result struct {
	HasDrift bool    `json:"has_drift"`
	Alerts   []Alert `json:"alerts"`

	CriticalCount int `json:"critical_count"`
	WarningCount  int `json:"warning_count"`
	InfoCount     int `json:"info_count"`
}

// Compare diffs a snapshot baseline against the current pre-ordered listing.
// Removed subtrees and new orphans are the loud findings; renames, moves and
// recolors are informational.
func Compare(baseline export.TreeSnapshot, entries []hierarchy.Entry, usage map[string]int) *Result {
	result := &Result{Alerts: make([]Alert, 0)}
	now := time.Now().UTC()

	base := make(map[string]export.TreeEntry, len(baseline.Nodes))
	for _, e := range baseline.Nodes {
		base[e.ID] = e
	}
	cur := make(map[string]hierarchy.Entry, len(entries))
	for _, e := range entries {
		cur[e.ID] = e
	}

	var removed, added []string
	for id, e := range base {
		if _, ok := cur[id]; !ok {
			removed = append(removed, fmt.Sprintf("%s (%s)", e.Name, e.Level))
		}
	}
	for _, e := range entries {
		if _, ok := base[e.ID]; !ok {
			added = append(added, fmt.Sprintf("%s (%s)", e.Name, e.Level.String()))
		}
	}
	sort.Strings(removed)
	sort.Strings(added)

	if len(removed) > 0 {
		result.Alerts = append(result.Alerts, Alert{
			Type:       AlertNodeRemoved,
			Severity:   SeverityWarning,
			Message:    fmt.Sprintf("%d node(s) removed since baseline", len(removed)),
			Details:    removed,
			DetectedAt: now,
		})
	}
	if len(added) > 0 {
		result.Alerts = append(result.Alerts, Alert{
			Type:       AlertNodeAdded,
			Severity:   SeverityInfo,
			Message:    fmt.Sprintf("%d node(s) added since baseline", len(added)),
			Details:    added,
			DetectedAt: now,
		})
	}

	checkSurvivors(result, base, entries, now)
	checkOrphans(result, base, entries, now)
	checkUsage(result, base, usage, now)

	for _, alert := range result.Alerts {
		switch alert.Severity {
		case SeverityCritical:
			result.CriticalCount++
		case SeverityWarning:
			result.WarningCount++
		case SeverityInfo:
			result.InfoCount++
		}
	}
	result.HasDrift = len(result.Alerts) > 0
	return result
}

// checkSurvivors reports per-node edits for nodes present on both sides.
func checkSurvivors(result *Result, base map[string]export.TreeEntry, entries []hierarchy.Entry, now time.Time) {
	for _, e := range entries {
		bl, ok := base[e.ID]
		if !ok {
			continue
		}
		if bl.Name != e.Name {
			result.Alerts = append(result.Alerts, Alert{
				Type:        AlertNodeRenamed,
				Severity:    SeverityInfo,
				Message:     fmt.Sprintf("%q renamed to %q", bl.Name, e.Name),
				NodeID:      e.ID,
				BaselineVal: bl.Name,
				CurrentVal:  e.Name,
				DetectedAt:  now,
			})
		}
		if bl.ParentID != e.ParentID || bl.Level != e.Level.String() {
			result.Alerts = append(result.Alerts, Alert{
				Type:        AlertNodeMoved,
				Severity:    SeverityInfo,
				Message:     fmt.Sprintf("%q moved (%s under %q, was %s under %q)", e.Name, e.Level.String(), e.ParentID, bl.Level, bl.ParentID),
				NodeID:      e.ID,
				BaselineVal: bl.Level + "/" + bl.ParentID,
				CurrentVal:  e.Level.String() + "/" + e.ParentID,
				DetectedAt:  now,
			})
		}
		if bl.Color != e.Color {
			result.Alerts = append(result.Alerts, Alert{
				Type:        AlertNodeRecolor,
				Severity:    SeverityInfo,
				Message:     fmt.Sprintf("%q recolored", e.Name),
				NodeID:      e.ID,
				BaselineVal: bl.Color,
				CurrentVal:  e.Color,
				DetectedAt:  now,
			})
		}
	}
}

// checkOrphans flags nodes that became orphaned since the baseline. A node
// that was already orphaned stays quiet; the regression is the signal.
func checkOrphans(result *Result, base map[string]export.TreeEntry, entries []hierarchy.Entry, now time.Time) {
	var fresh []string
	for _, e := range entries {
		if !e.Orphan {
			continue
		}
		if bl, ok := base[e.ID]; ok && bl.Orphan {
			continue
		}
		fresh = append(fresh, e.Name)
	}
	if len(fresh) > 0 {
		sort.Strings(fresh)
		result.Alerts = append(result.Alerts, Alert{
			Type:       AlertNewOrphans,
			Severity:   SeverityCritical,
			Message:    fmt.Sprintf("%d node(s) became orphaned", len(fresh)),
			Details:    fresh,
			DetectedAt: now,
		})
	}
}

// checkUsage flags tags whose reference counts went to zero: usually a sign
// that transactions were retagged or deleted out from under the tree.
func checkUsage(result *Result, base map[string]export.TreeEntry, usage map[string]int, now time.Time) {
	var dropped []string
	for id, bl := range base {
		if bl.Level != model.LevelTag.String() || bl.Usage == 0 {
			continue
		}
		if usage[id] == 0 {
			dropped = append(dropped, fmt.Sprintf("%s (was %d)", bl.Name, bl.Usage))
		}
	}
	if len(dropped) > 0 {
		sort.Strings(dropped)
		result.Alerts = append(result.Alerts, Alert{
			Type:       AlertUsageDropped,
			Severity:   SeverityWarning,
			Message:    fmt.Sprintf("%d tag(s) lost all references", len(dropped)),
			Details:    dropped,
			DetectedAt: now,
		})
	}
}

// Summary returns a human-readable report.
func (r *Result) Summary() string {
	if !r.HasDrift {
		return "No drift detected. Tree matches the baseline snapshot.\n"
	}

	var sb strings.Builder
	sb.WriteString("Tree Drift Summary\n")
	sb.WriteString("==================\n\n")

	if r.CriticalCount > 0 {
		sb.WriteString(fmt.Sprintf("CRITICAL: %d finding(s)\n", r.CriticalCount))
	}
	if r.WarningCount > 0 {
		sb.WriteString(fmt.Sprintf("WARNING:  %d finding(s)\n", r.WarningCount))
	}
	if r.InfoCount > 0 {
		sb.WriteString(fmt.Sprintf("INFO:     %d finding(s)\n", r.InfoCount))
	}

	sb.WriteString("\nDetails:\n")
	for _, alert := range r.Alerts {
		sb.WriteString(fmt.Sprintf("  [%s] %s\n", alert.Type, alert.Message))
		for _, detail := range alert.Details {
			sb.WriteString(fmt.Sprintf("      - %s\n", detail))
		}
	}
	sb.WriteString("\n")
	return sb.String()
}

// HasCritical reports whether any critical alerts were raised.
func (r *Result) HasCritical() bool {
	return r.CriticalCount > 0
}

// ExitCode maps the result onto a CI exit status:
// 0 = clean or info only, 1 = critical, 2 = warning.
func (r *Result) ExitCode() int {
	if r.CriticalCount > 0 {
		return 1
	}
	if r.WarningCount > 0 {
		return 2
	}
	return 0
}
