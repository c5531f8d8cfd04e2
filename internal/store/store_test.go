package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func backends(t *testing.T) map[string]Backend {
	t.Helper()
	sq, err := NewSqlite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sq.Close() })
	return map[string]Backend{
		"memory": NewMemory(),
		"sqlite": sq,
	}
}

func TestStoreRoundtrip(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := b.Namespace("todos")

			doc, err := s.Insert(ctx, Document{"title": "a", "votes": float64(3)})
			require.NoError(t, err)
			id, _ := doc["id"].(string)
			require.NotEmpty(t, id)

			got, err := s.First(ctx, Query{"id": id})
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, "a", got["title"])
			assert.Equal(t, float64(3), got["votes"])

			n, err := s.Count(ctx, Query{})
			require.NoError(t, err)
			assert.Equal(t, 1, n)
		})
	}
}

func TestStoreFindOrderAndFilter(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := b.Namespace("todos")
			for _, title := range []string{"a", "b", "c"} {
				_, err := s.Insert(ctx, Document{"title": title, "done": title == "b"})
				require.NoError(t, err)
			}

			all, err := s.Find(ctx, Query{})
			require.NoError(t, err)
			require.Len(t, all, 3)
			// порядок вставки
			assert.Equal(t, "a", all[0]["title"])
			assert.Equal(t, "c", all[2]["title"])

			done, err := s.Find(ctx, Query{"done": true})
			require.NoError(t, err)
			require.Len(t, done, 1)
			assert.Equal(t, "b", done[0]["title"])
		})
	}
}

func TestStoreQueryOptions(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := b.Namespace("todos")
			for i, title := range []string{"c", "a", "b"} {
				_, err := s.Insert(ctx, Document{"title": title, "votes": float64(i)})
				require.NoError(t, err)
			}

			sorted, err := s.Find(ctx, Query{"$sort": map[string]any{"title": float64(1)}})
			require.NoError(t, err)
			require.Len(t, sorted, 3)
			assert.Equal(t, "a", sorted[0]["title"])
			assert.Equal(t, "c", sorted[2]["title"])

			limited, err := s.Find(ctx, Query{"$limit": float64(2)})
			require.NoError(t, err)
			assert.Len(t, limited, 2)

			skipped, err := s.Find(ctx, Query{"$skip": float64(2)})
			require.NoError(t, err)
			assert.Len(t, skipped, 1)

			projected, err := s.Find(ctx, Query{"$fields": map[string]any{"title": float64(1)}})
			require.NoError(t, err)
			require.Len(t, projected, 3)
			assert.Contains(t, projected[0], "title")
			assert.Contains(t, projected[0], "id") // id не выкидываем
			assert.NotContains(t, projected[0], "votes")

			// незнакомые $-ключи игнорируются
			tolerant, err := s.Find(ctx, Query{"$weird": "x"})
			require.NoError(t, err)
			assert.Len(t, tolerant, 3)
		})
	}
}

func TestStoreUpdateAndRemove(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := b.Namespace("todos")
			doc, err := s.Insert(ctx, Document{"title": "a", "votes": float64(1)})
			require.NoError(t, err)
			id := doc["id"].(string)

			require.NoError(t, s.Update(ctx, Query{"id": id}, Document{"votes": float64(9)}))
			got, err := s.First(ctx, Query{"id": id})
			require.NoError(t, err)
			assert.Equal(t, float64(9), got["votes"])
			assert.Equal(t, "a", got["title"]) // update вливает, не замещает

			require.NoError(t, s.Remove(ctx, Query{"id": id}))
			got, err = s.First(ctx, Query{"id": id})
			require.NoError(t, err)
			assert.Nil(t, got)
		})
	}
}

func TestStoreRemoveAll(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := b.Namespace("todos")
			for i := 0; i < 3; i++ {
				_, err := s.Insert(ctx, Document{"n": float64(i)})
				require.NoError(t, err)
			}
			require.NoError(t, s.Remove(ctx, Query{}))
			n, err := s.Count(ctx, Query{})
			require.NoError(t, err)
			assert.Equal(t, 0, n)
		})
	}
}

func TestStoreRename(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := b.Namespace("todos")
			_, err := s.Insert(ctx, Document{"title": "a"})
			require.NoError(t, err)

			require.NoError(t, s.Rename(ctx, "tasks"))

			// тот же Store теперь смотрит в новый namespace
			n, err := s.Count(ctx, Query{})
			require.NoError(t, err)
			assert.Equal(t, 1, n)

			moved, err := b.Namespace("tasks").Count(ctx, Query{})
			require.NoError(t, err)
			assert.Equal(t, 1, moved)

			old, err := b.Namespace("todos").Count(ctx, Query{})
			require.NoError(t, err)
			assert.Equal(t, 0, old)
		})
	}
}

func TestStoreCopiesOnRead(t *testing.T) {
	ctx := context.Background()
	s := NewMemory().Namespace("todos")
	doc, err := s.Insert(ctx, Document{"title": "a", "tags": []any{"x"}})
	require.NoError(t, err)
	id := doc["id"].(string)

	got, err := s.First(ctx, Query{"id": id})
	require.NoError(t, err)
	got["title"] = "mutated"
	got["tags"].([]any)[0] = "mutated"

	again, err := s.First(ctx, Query{"id": id})
	require.NoError(t, err)
	assert.Equal(t, "a", again["title"])
	assert.Equal(t, "x", again["tags"].([]any)[0])
}

func TestCreateUniqueIdentifier(t *testing.T) {
	s := NewMemory().Namespace("todos")
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := s.CreateUniqueIdentifier()
		require.NotEmpty(t, id)
		require.False(t, seen[id])
		seen[id] = true
	}
}

func TestOpenFactory(t *testing.T) {
	b, err := Open("", "")
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, b)

	b, err = Open("sqlite", filepath.Join(t.TempDir(), "x.db"))
	require.NoError(t, err)
	assert.IsType(t, &Sqlite{}, b)
	_ = b.Close()

	_, err = Open("mongo", "")
	assert.Error(t, err)
}
