package docs

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRegistrySetAndPath(t *testing.T) {
	r := NewMemoryRegistry()
	ctx := context.Background()
	require.NoError(t, r.Set(ctx, " doc1 ", " /notes/a.Rmd "))

	got, err := r.Path(ctx, "doc1")
	require.NoError(t, err)
	assert.Equal(t, "/notes/a.Rmd", got)

	_, err = r.Path(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Error(t, r.Set(ctx, "  ", "/x"))
}

func TestMemoryRegistryEmptyPathIsUnsaved(t *testing.T) {
	r := NewMemoryRegistry()
	require.NoError(t, r.Set(context.Background(), "doc1", ""))
	_, err := r.Path(context.Background(), "doc1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileRegistryPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "docs.json")
	ctx := context.Background()

	first := NewFileRegistry(path)
	require.NoError(t, first.Set(ctx, "b", "/notes/b.Rmd"))
	require.NoError(t, first.Set(ctx, "a", "/notes/a.Rmd"))

	reopened := NewFileRegistry(path)
	got, err := reopened.Path(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "/notes/a.Rmd", got)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"doc_id":"a","path":"/notes/a.Rmd"},{"doc_id":"b","path":"/notes/b.Rmd"}]`, string(raw))
}

func TestFileRegistryMissingFileIsEmpty(t *testing.T) {
	r := NewFileRegistry(filepath.Join(t.TempDir(), "absent.json"))
	_, err := r.Path(context.Background(), "doc")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileRegistryCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docs.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o644))
	_, err := NewFileRegistry(path).Path(context.Background(), "doc")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

type countingRegistry struct {
	*MemoryRegistry
	lookups atomic.Int32
}

func (c *countingRegistry) Path(ctx context.Context, docID string) (string, error) {
	c.lookups.Add(1)
	return c.MemoryRegistry.Path(ctx, docID)
}

func TestCachedRegistryServesHitsFromCache(t *testing.T) {
	origin := &countingRegistry{MemoryRegistry: NewMemoryRegistry()}
	ctx := context.Background()
	require.NoError(t, origin.Set(ctx, "doc", "/a.Rmd"))

	cached, err := NewCachedRegistry(origin, 4)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		got, err := cached.Path(ctx, "doc")
		require.NoError(t, err)
		assert.Equal(t, "/a.Rmd", got)
	}
	assert.Equal(t, int32(1), origin.lookups.Load())
}

func TestCachedRegistryDoesNotCacheMisses(t *testing.T) {
	origin := &countingRegistry{MemoryRegistry: NewMemoryRegistry()}
	ctx := context.Background()
	cached, err := NewCachedRegistry(origin, 4)
	require.NoError(t, err)

	_, err = cached.Path(ctx, "doc")
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, cached.Set(ctx, "doc", "/later.Rmd"))

	got, err := cached.Path(ctx, "doc")
	require.NoError(t, err)
	assert.Equal(t, "/later.Rmd", got)
	assert.Equal(t, int32(2), origin.lookups.Load())
}

func TestCachedRegistrySetInvalidates(t *testing.T) {
	origin := NewMemoryRegistry()
	ctx := context.Background()
	require.NoError(t, origin.Set(ctx, "doc", "/old.Rmd"))
	cached, err := NewCachedRegistry(origin, 0)
	require.NoError(t, err)

	_, err = cached.Path(ctx, "doc")
	require.NoError(t, err)
	require.NoError(t, cached.Set(ctx, "doc", "/new.Rmd"))
	got, err := cached.Path(ctx, "doc")
	require.NoError(t, err)
	assert.Equal(t, "/new.Rmd", got)
}

type readOnly struct{ Registry }

func TestCachedRegistryReadOnlyOrigin(t *testing.T) {
	cached, err := NewCachedRegistry(readOnly{NewMemoryRegistry()}, 2)
	require.NoError(t, err)
	assert.Error(t, cached.Set(context.Background(), "doc", "/x"))

	_, err = NewCachedRegistry(nil, 2)
	assert.Error(t, err)
}
