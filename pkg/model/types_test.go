package model

import (
	"errors"
	"testing"
)

func TestLevelIsValid(t *testing.T) {
	for _, l := range Levels() {
		if !l.IsValid() {
			t.Errorf("level %d should be valid", int(l))
		}
	}
	for _, l := range []Level{0, 5, -1} {
		if l.IsValid() {
			t.Errorf("level %d should be invalid", int(l))
		}
	}
}

func TestLevelStringRoundTrip(t *testing.T) {
	for _, l := range Levels() {
		got, err := ParseLevel(l.String())
		if err != nil {
			t.Fatalf("ParseLevel(%q): %v", l.String(), err)
		}
		if got != l {
			t.Errorf("ParseLevel(%q) = %v, want %v", l.String(), got, l)
		}
	}
}

func TestParseLevelUnknown(t *testing.T) {
	if _, err := ParseLevel("folder"); !errors.Is(err, ErrInvalidLevel) {
		t.Errorf("expected ErrInvalidLevel, got %v", err)
	}
}

func TestLevelAboveBelow(t *testing.T) {
	if _, ok := LevelCategory.Above(); ok {
		t.Error("category has no level above")
	}
	if _, ok := LevelTag.Below(); ok {
		t.Error("tag has no level below")
	}
	up, ok := LevelTag.Above()
	if !ok || up != LevelGroup {
		t.Errorf("LevelTag.Above() = %v, %v; want group, true", up, ok)
	}
	down, ok := LevelCategory.Below()
	if !ok || down != LevelSubcategory {
		t.Errorf("LevelCategory.Below() = %v, %v; want subcategory, true", down, ok)
	}
}

func TestLevelIndent(t *testing.T) {
	tests := []struct {
		level Level
		want  int
	}{
		{LevelCategory, 0},
		{LevelSubcategory, 2},
		{LevelGroup, 4},
		{LevelTag, 6},
		{Level(9), 0},
	}
	for _, tt := range tests {
		if got := tt.level.Indent(); got != tt.want {
			t.Errorf("Indent(%v) = %d, want %d", tt.level, got, tt.want)
		}
	}
}

func TestNodeDisplayColor(t *testing.T) {
	n := Node{Level: LevelTag}
	if n.DisplayColor() != LevelTag.DefaultColor() {
		t.Error("uncolored node should use the level default")
	}
	n.Color = "#123456"
	if n.DisplayColor() != "#123456" {
		t.Error("node color should override the level default")
	}
}

func TestNodeValidate(t *testing.T) {
	valid := Node{ID: "tg-1", OwnerID: "alice", Name: "Groceries", Level: LevelCategory}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid node rejected: %v", err)
	}

	bad := valid
	bad.Level = 0
	if err := bad.Validate(); !errors.Is(err, ErrInvalidLevel) {
		t.Errorf("expected ErrInvalidLevel, got %v", err)
	}

	parented := valid
	parented.ParentID = "tg-0"
	if err := parented.Validate(); !errors.Is(err, ErrInvalidParent) {
		t.Errorf("category with parent should fail, got %v", err)
	}

	unnamed := valid
	unnamed.Name = ""
	if err := unnamed.Validate(); err == nil {
		t.Error("empty name should fail validation")
	}
}

func TestBulkResultSummary(t *testing.T) {
	clean := BulkResult{Attempted: 3, Succeeded: 3}
	if got := clean.Summary("indented"); got != "indented 3 node(s)" {
		t.Errorf("clean summary = %q", got)
	}

	mixed := BulkResult{
		Attempted: 4,
		Succeeded: 2,
		Skipped:   1,
		Failures:  map[string]error{"tg-9": errors.New("boom")},
	}
	if !mixed.Partial() {
		t.Error("mixed result should be partial")
	}
	got := mixed.Summary("moved")
	want := "moved 2/4, 1 skipped, 1 failed"
	if got != want {
		t.Errorf("Summary() = %q, want %q", got, want)
	}
}

func TestPersistenceErrorUnwrap(t *testing.T) {
	inner := errors.New("connection reset")
	err := &PersistenceError{Op: "update", ID: "tg-1", Err: inner}
	if !errors.Is(err, inner) {
		t.Error("PersistenceError should unwrap to the inner error")
	}
	if err.Error() == "" {
		t.Error("empty error string")
	}
}
