package output

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const testContextID = "ctx1"

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	root := t.TempDir()
	resolver := NewResolver(NewDirLayout(root), nil, func() string { return testContextID }, nil)
	tracker := NewTrackerFor(resolver, nil)
	return NewStore(resolver, tracker, nil), root
}

func unitDir(root, ctxID string, key UnitKey) string {
	return filepath.Join(root, ctxID, key.DocumentID, key.UnitID)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}
