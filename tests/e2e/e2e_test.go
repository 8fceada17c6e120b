package main_test

import (
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// buildTgBinary compiles cmd/tg once per test into a temp location.
func buildTgBinary(t *testing.T) string {
	t.Helper()
	binPath := filepath.Join(t.TempDir(), "tg")
	cmd := exec.Command("go", "build", "-o", binPath, "../../cmd/tg")
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("build failed: %v\n%s", err, out)
	}
	return binPath
}

// newProject lays down a .taggrove project with a sqlite backend and returns
// its root directory.
func newProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, ".taggrove")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	cfg := "owner: e2e\nbackend: sqlite\n"
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}
	return root
}

func runTg(t *testing.T, bin, dir string, args ...string) (string, int) {
	t.Helper()
	cmd := exec.Command(bin, args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return string(out), exitErr.ExitCode()
		}
		t.Fatalf("tg %v: %v\n%s", args, err, out)
	}
	return string(out), 0
}

func TestVersionAndRobotHelp(t *testing.T) {
	bin := buildTgBinary(t)
	dir := newProject(t)

	out, code := runTg(t, bin, dir, "--version")
	if code != 0 || !strings.HasPrefix(out, "tg ") {
		t.Errorf("--version: code=%d out=%q", code, out)
	}

	out, code = runTg(t, bin, dir, "--robot-help")
	if code != 0 {
		t.Fatalf("--robot-help exited %d", code)
	}
	for _, want := range []string{"--robot-tree", "--robot-stats", "--robot-insights", "--diff"} {
		if !strings.Contains(out, want) {
			t.Errorf("robot help missing %s", want)
		}
	}
}

func TestSnapshotWorkflow(t *testing.T) {
	bin := buildTgBinary(t)
	dir := newProject(t)

	// Fresh project: tree is empty.
	out, code := runTg(t, bin, dir, "--robot-tree")
	if code != 0 {
		t.Fatalf("--robot-tree exited %d:\n%s", code, out)
	}
	var tree struct {
		Version int    `json:"version"`
		Owner   string `json:"owner"`
		Nodes   []struct {
			ID    string `json:"id"`
			Name  string `json:"name"`
			Level string `json:"level"`
		} `json:"nodes"`
	}
	if err := json.Unmarshal([]byte(out), &tree); err != nil {
		t.Fatalf("robot-tree output is not JSON: %v\n%s", err, out)
	}
	if tree.Owner != "e2e" || len(tree.Nodes) != 0 {
		t.Errorf("fresh tree = %+v", tree)
	}

	// Import a snapshot, then read it back.
	snapshot := `{
  "version": 1,
  "owner": "e2e",
  "nodes": [
    {"id": "cat", "name": "Spending", "level": "category", "order": 1},
    {"id": "sub", "name": "Daily", "level": "subcategory", "parent_id": "cat", "order": 1},
    {"id": "grp", "name": "Food", "level": "group", "parent_id": "sub", "order": 1},
    {"id": "tag-a", "name": "Groceries", "level": "tag", "parent_id": "grp", "order": 1}
  ]
}`
	snapPath := filepath.Join(dir, "snapshot.json")
	if err := os.WriteFile(snapPath, []byte(snapshot), 0o644); err != nil {
		t.Fatal(err)
	}

	out, code = runTg(t, bin, dir, "--import-json", snapPath)
	if code != 0 || !strings.Contains(out, "Imported 4 nodes") {
		t.Fatalf("import: code=%d out=%q", code, out)
	}

	// Import refuses to run twice.
	out, code = runTg(t, bin, dir, "--import-json", snapPath)
	if code == 0 {
		t.Errorf("second import should fail: %s", out)
	}

	out, _ = runTg(t, bin, dir, "--robot-tree")
	if err := json.Unmarshal([]byte(out), &tree); err != nil {
		t.Fatalf("robot-tree after import: %v", err)
	}
	if len(tree.Nodes) != 4 {
		t.Fatalf("tree has %d nodes, want 4", len(tree.Nodes))
	}
	// Pre-order: parents before children.
	if tree.Nodes[0].ID != "cat" || tree.Nodes[3].ID != "tag-a" {
		t.Errorf("order: %+v", tree.Nodes)
	}

	// Stats reflect the imported tree.
	out, code = runTg(t, bin, dir, "--robot-stats")
	if code != 0 || !strings.Contains(out, `"total": 4`) {
		t.Errorf("stats: code=%d out=%s", code, out)
	}

	// The tree matches its own snapshot: diff is clean, exit 0.
	out, code = runTg(t, bin, dir, "--diff", snapPath)
	if code != 0 || !strings.Contains(out, "No drift") {
		t.Errorf("diff: code=%d out=%s", code, out)
	}

	// Markdown export.
	mdPath := filepath.Join(dir, "tags.md")
	_, code = runTg(t, bin, dir, "--export-md", mdPath)
	if code != 0 {
		t.Fatalf("export-md exited %d", code)
	}
	md, err := os.ReadFile(mdPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(md), "Groceries") {
		t.Errorf("markdown missing tag names:\n%s", md)
	}
}

func TestRobotInsightsFlagsUnusedTags(t *testing.T) {
	bin := buildTgBinary(t)
	dir := newProject(t)

	snapshot := `{
  "version": 1,
  "owner": "e2e",
  "nodes": [
    {"id": "grp", "name": "Food", "level": "group", "order": 1},
    {"id": "tag-a", "name": "Groceries", "level": "tag", "parent_id": "grp", "order": 1}
  ]
}`
	snapPath := filepath.Join(dir, "snap.json")
	if err := os.WriteFile(snapPath, []byte(snapshot), 0o644); err != nil {
		t.Fatal(err)
	}
	if out, code := runTg(t, bin, dir, "--import-json", snapPath); code != 0 {
		t.Fatalf("import: %s", out)
	}

	out, code := runTg(t, bin, dir, "--robot-insights")
	if code != 0 {
		t.Fatalf("insights exited %d:\n%s", code, out)
	}
	var insights struct {
		UnusedTags struct {
			Count int `json:"count"`
		} `json:"unused_tags"`
	}
	if err := json.Unmarshal([]byte(out), &insights); err != nil {
		t.Fatalf("insights output is not JSON: %v\n%s", err, out)
	}
	// No transactions reference tag-a in a fresh database.
	if insights.UnusedTags.Count != 1 {
		t.Errorf("unused tags = %d, want 1", insights.UnusedTags.Count)
	}
}

func TestNoProjectFound(t *testing.T) {
	bin := buildTgBinary(t)
	dir := t.TempDir() // no .taggrove

	out, code := runTg(t, bin, dir, "--robot-tree")
	if code == 0 {
		t.Errorf("missing project should fail: %s", out)
	}
	if !strings.Contains(out, "--init") {
		t.Errorf("error should point at --init:\n%s", out)
	}
}
