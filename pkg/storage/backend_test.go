package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/vanderheijden86/taggrove/pkg/model"
)

// runBackendContract exercises the Backend semantics every implementation
// must share; the memory backend is the reference, sqlite must match it.
func runBackendContract(t *testing.T, open func(t *testing.T) Backend) {
	ctx := context.Background()

	t.Run("create assigns id", func(t *testing.T) {
		b := open(t)
		id, err := b.Create(ctx, "alice", model.Node{Name: "Food", Level: model.LevelCategory, Order: 1})
		require.NoError(t, err)
		require.NotEmpty(t, id)

		nodes, err := b.ListAll(ctx, "alice")
		require.NoError(t, err)
		require.Len(t, nodes, 1)
		require.Equal(t, id, nodes[0].ID)
		require.Equal(t, "alice", nodes[0].OwnerID)
		require.False(t, nodes[0].CreatedAt.IsZero())
	})

	t.Run("create keeps explicit id", func(t *testing.T) {
		b := open(t)
		id, err := b.Create(ctx, "alice", model.Node{ID: "tg-fixed", Name: "Food", Level: model.LevelCategory, Order: 1})
		require.NoError(t, err)
		require.Equal(t, "tg-fixed", id)
	})

	t.Run("update patches only named fields", func(t *testing.T) {
		b := open(t)
		id, err := b.Create(ctx, "alice", model.Node{
			Name: "Food", Level: model.LevelTag, ParentID: "grp", Order: 2, Color: "#ff0000",
		})
		require.NoError(t, err)

		require.NoError(t, b.Update(ctx, "alice", id, Patch{Name: StringPtr("Drinks")}))

		nodes, err := b.ListAll(ctx, "alice")
		require.NoError(t, err)
		require.Len(t, nodes, 1)
		n := nodes[0]
		require.Equal(t, "Drinks", n.Name)
		require.Equal(t, "grp", n.ParentID, "unnamed fields must be untouched")
		require.Equal(t, "#ff0000", n.Color)
		require.Equal(t, 2.0, n.Order)
	})

	t.Run("update clears parent and color explicitly", func(t *testing.T) {
		b := open(t)
		id, err := b.Create(ctx, "alice", model.Node{
			Name: "Food", Level: model.LevelTag, ParentID: "grp", Order: 1, Color: "#ff0000",
		})
		require.NoError(t, err)

		err = b.Update(ctx, "alice", id, Patch{
			Level:    LevelPtr(model.LevelTag),
			ParentID: StringPtr(""),
			Order:    FloatPtr(1),
			Color:    StringPtr(""),
		})
		require.NoError(t, err)

		nodes, err := b.ListAll(ctx, "alice")
		require.NoError(t, err)
		require.Empty(t, nodes[0].ParentID, "cleared parent must not linger")
		require.Empty(t, nodes[0].Color)
	})

	t.Run("update unknown node", func(t *testing.T) {
		b := open(t)
		err := b.Update(ctx, "alice", "nope", Patch{Name: StringPtr("x")})
		require.ErrorIs(t, err, model.ErrNotFound)
	})

	t.Run("owner isolation", func(t *testing.T) {
		b := open(t)
		id, err := b.Create(ctx, "alice", model.Node{Name: "Food", Level: model.LevelCategory, Order: 1})
		require.NoError(t, err)

		nodes, err := b.ListAll(ctx, "bob")
		require.NoError(t, err)
		require.Empty(t, nodes)

		err = b.Update(ctx, "bob", id, Patch{Name: StringPtr("hijack")})
		require.ErrorIs(t, err, model.ErrNotFound)

		err = b.Delete(ctx, "bob", id)
		require.ErrorIs(t, err, model.ErrNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		b := open(t)
		id, err := b.Create(ctx, "alice", model.Node{Name: "Food", Level: model.LevelCategory, Order: 1})
		require.NoError(t, err)

		require.NoError(t, b.Delete(ctx, "alice", id))
		nodes, err := b.ListAll(ctx, "alice")
		require.NoError(t, err)
		require.Empty(t, nodes)

		require.ErrorIs(t, b.Delete(ctx, "alice", id), model.ErrNotFound)
	})

	t.Run("count references defaults to zero", func(t *testing.T) {
		b := open(t)
		count, err := b.CountReferences(ctx, "alice", "tg-unknown")
		require.NoError(t, err)
		require.Zero(t, count)
	})
}

func TestMemoryBackendContract(t *testing.T) {
	runBackendContract(t, func(t *testing.T) Backend {
		return NewMemory()
	})
}

func TestSQLiteBackendContract(t *testing.T) {
	runBackendContract(t, func(t *testing.T) Backend {
		path := filepath.Join(t.TempDir(), "taggrove.db")
		b, err := OpenSQLite(path, zerolog.Nop())
		require.NoError(t, err)
		t.Cleanup(func() { b.Close() })
		return b
	})
}

func TestMemoryReferences(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	m.AddReference("alice", "tg-1", "txn-1")
	m.AddReference("alice", "tg-1", "txn-2")
	m.AddReference("bob", "tg-1", "txn-3")

	count, err := m.CountReferences(ctx, "alice", "tg-1")
	require.NoError(t, err)
	require.Equal(t, 2, count)

	// Injected failures surface to the caller.
	m.FailCounts("tg-1", errors.New("down"))
	_, err = m.CountReferences(ctx, "alice", "tg-1")
	require.Error(t, err)
}

func TestMemoryDeleteDropsReferences(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	id, err := m.Create(ctx, "alice", model.Node{Name: "t", Level: model.LevelTag, Order: 1})
	require.NoError(t, err)
	m.AddReference("alice", id, "txn-1")

	require.NoError(t, m.Delete(ctx, "alice", id))
	count, err := m.CountReferences(ctx, "alice", id)
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestMemoryDuplicateID(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	_, err := m.Create(ctx, "alice", model.Node{ID: "tg-1", Name: "a", Level: model.LevelTag, Order: 1})
	require.NoError(t, err)
	_, err = m.Create(ctx, "alice", model.Node{ID: "tg-1", Name: "b", Level: model.LevelTag, Order: 2})
	require.Error(t, err)
}

func TestSQLiteReferences(t *testing.T) {
	path := filepath.Join(t.TempDir(), "taggrove.db")
	b, err := OpenSQLite(path, zerolog.Nop())
	require.NoError(t, err)
	defer b.Close()
	ctx := context.Background()

	require.NoError(t, b.AddReference(ctx, "alice", "tg-1", "txn-1"))
	require.NoError(t, b.AddReference(ctx, "alice", "tg-1", "txn-2"))
	// Idempotent on the same link.
	require.NoError(t, b.AddReference(ctx, "alice", "tg-1", "txn-2"))

	count, err := b.CountReferences(ctx, "alice", "tg-1")
	require.NoError(t, err)
	require.Equal(t, 2, count)
}

func TestSQLitePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "taggrove.db")
	ctx := context.Background()

	b, err := OpenSQLite(path, zerolog.Nop())
	require.NoError(t, err)
	id, err := b.Create(ctx, "alice", model.Node{Name: "Food", Level: model.LevelCategory, Order: 1})
	require.NoError(t, err)
	require.NoError(t, b.Close())

	b2, err := OpenSQLite(path, zerolog.Nop())
	require.NoError(t, err)
	defer b2.Close()
	nodes, err := b2.ListAll(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	require.Equal(t, id, nodes[0].ID)
}

func TestPatchPredicates(t *testing.T) {
	require.True(t, Patch{}.IsZero())
	require.False(t, Patch{Name: StringPtr("x")}.IsZero())
	require.False(t, Patch{Name: StringPtr("x")}.Structural())
	require.True(t, Patch{Order: FloatPtr(1)}.Structural())
	require.True(t, Patch{ParentID: StringPtr("")}.Structural())
	require.True(t, Patch{Level: LevelPtr(model.LevelGroup)}.Structural())
}

func TestNewIDShape(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := NewID()
		require.Regexp(t, `^tg-[0-9a-f]{16}$`, id)
		require.False(t, seen[id], "ids must not repeat")
		seen[id] = true
	}
}
