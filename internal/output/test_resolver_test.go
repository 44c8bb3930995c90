package output

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveOutputDirectoryPrefersExact(t *testing.T) {
	root := t.TempDir()
	r := NewResolver(NewDirLayout(root), nil, nil, nil)
	exact := filepath.Join(root, "live", "doc", "u1")
	require.NoError(t, os.MkdirAll(exact, 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, SavedContextID, "doc", "u1"), 0o755))

	loc := r.ResolveOutputDirectory("", "doc", "u1", "live", FallbackToSaved)
	assert.Equal(t, Location{Dir: exact, ContextID: "live"}, loc)
}

func TestResolveOutputDirectoryFallsBackToSaved(t *testing.T) {
	root := t.TempDir()
	r := NewResolver(NewDirLayout(root), nil, nil, nil)

	loc := r.ResolveOutputDirectory("", "doc", "u1", "live", FallbackToSaved)
	assert.Equal(t, filepath.Join(root, SavedContextID, "doc", "u1"), loc.Dir)
	assert.Equal(t, SavedContextID, loc.ContextID)
	assert.False(t, loc.Exists(), "saved path is returned even when absent")

	loc = r.ResolveOutputDirectory("", "doc", "u1", "live", FallbackNone)
	assert.Equal(t, filepath.Join(root, "live", "doc", "u1"), loc.Dir)
	assert.Equal(t, "live", loc.ContextID)
}

type stubPaths map[string]string

func (s stubPaths) Path(_ context.Context, docID string) (string, error) {
	p, ok := s[docID]
	if !ok {
		return "", errors.New("missing")
	}
	return p, nil
}

func TestResolverDocumentPathIsBestEffort(t *testing.T) {
	r := NewResolver(NewDirLayout(t.TempDir()), stubPaths{"d1": "/notes/a.Rmd"}, nil, nil)
	assert.Equal(t, "/notes/a.Rmd", r.DocumentPath(context.Background(), "d1"))
	assert.Equal(t, "", r.DocumentPath(context.Background(), "d2"))
}
