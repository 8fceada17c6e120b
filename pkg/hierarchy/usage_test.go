package hierarchy

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/vanderheijden86/taggrove/pkg/model"
	"github.com/vanderheijden86/taggrove/pkg/storage"
)

func TestUsageCountsTagsOnly(t *testing.T) {
	s, mem := newTestStore(t, fixture()...)
	mem.AddReference(testOwner, "tag-a", "txn-1")
	mem.AddReference(testOwner, "tag-a", "txn-2")
	mem.AddReference(testOwner, "tag-c", "txn-3")

	bridge := NewUsageBridge(mem, testOwner, 0, zerolog.Nop())
	counts := bridge.Counts(context.Background(), s.Nodes())

	if counts["tag-a"] != 2 || counts["tag-b"] != 0 || counts["tag-c"] != 1 {
		t.Errorf("counts = %v", counts)
	}
	// Non-tag nodes are never queried.
	for _, id := range []string{"cat", "sub", "grp1", "grp2"} {
		if _, ok := counts[id]; ok {
			t.Errorf("%s should not appear in the usage map", id)
		}
	}
}

func TestUsageCountFailureDefaultsToZero(t *testing.T) {
	s, mem := newTestStore(t, fixture()...)
	mem.AddReference(testOwner, "tag-a", "txn-1")
	mem.FailCounts("tag-a", errors.New("transaction store down"))

	bridge := NewUsageBridge(mem, testOwner, 0, zerolog.Nop())
	counts := bridge.Counts(context.Background(), s.Nodes())
	if counts["tag-a"] != 0 {
		t.Errorf("failed count = %d, want 0", counts["tag-a"])
	}
}

func TestUsageSingleCount(t *testing.T) {
	_, mem := newTestStore(t, fixture()...)
	mem.AddReference(testOwner, "tag-c", "txn-1")

	bridge := NewUsageBridge(mem, testOwner, 0, zerolog.Nop())
	if got := bridge.Count(context.Background(), "tag-c"); got != 1 {
		t.Errorf("Count = %d, want 1", got)
	}
	if got := bridge.Count(context.Background(), "tag-b"); got != 0 {
		t.Errorf("Count = %d, want 0", got)
	}
}

func TestUsageCountsEmptyTree(t *testing.T) {
	mem := storage.NewMemory()
	bridge := NewUsageBridge(mem, testOwner, 0, zerolog.Nop())
	counts := bridge.Counts(context.Background(), []model.Node{})
	if len(counts) != 0 {
		t.Errorf("counts = %v, want empty", counts)
	}
}
