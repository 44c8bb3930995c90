package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nbcache/internal/archive"
	"nbcache/internal/docs"
	"nbcache/internal/gateway/config"
	"nbcache/internal/output"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Port:      "127.0.0.1:0",
		Root:      t.TempDir(),
		ContextID: "live",
		Mode:      config.ModeDesktop,
	}
}

func TestNewWiresMemoryRegistry(t *testing.T) {
	a, err := New(context.Background(), testConfig(t), nil)
	require.NoError(t, err)
	defer a.Close()

	_, isMemory := a.Documents.(*docs.MemoryRegistry)
	assert.True(t, isMemory)
	assert.Nil(t, a.Archive)
	assert.Equal(t, "live", a.Resolver.ContextID())
}

func TestNewWiresFileRegistryBehindCache(t *testing.T) {
	cfg := testConfig(t)
	cfg.Docs.File = filepath.Join(t.TempDir(), "docs.json")
	a, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer a.Close()

	_, isCached := a.Documents.(*docs.CachedRegistry)
	require.True(t, isCached)
	require.NoError(t, a.Documents.Set(context.Background(), "doc", "/notes/a.Rmd"))
	assert.Equal(t, "/notes/a.Rmd", a.Resolver.DocumentPath(context.Background(), "doc"))
}

func TestAppStoreWritesIntoLiveContext(t *testing.T) {
	cfg := testConfig(t)
	a, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer a.Close()

	key := output.UnitKey{DocumentID: "doc", UnitID: "u1"}
	path, err := a.Store.WriteOutput(context.Background(), key, output.KindHtml, []byte("<p/>"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cfg.Root, "live", "doc", "u1", "000001.html"), path)
}

func TestNewRejectsNilConfig(t *testing.T) {
	_, err := New(context.Background(), nil, nil)
	assert.Error(t, err)
}

func TestCloseIsIdempotent(t *testing.T) {
	a, err := New(context.Background(), testConfig(t), nil)
	require.NoError(t, err)
	assert.NoError(t, a.Close())
	assert.NoError(t, a.Close())
}

func receive(t *testing.T, ch <-chan output.Event) output.Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
		return output.Event{}
	}
}

func TestWriteOutputPublishesToSubscribers(t *testing.T) {
	a, err := New(context.Background(), testConfig(t), nil)
	require.NoError(t, err)
	defer a.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sub := a.Hub.Subscribe(ctx, "doc")

	key := output.UnitKey{DocumentID: "doc", UnitID: "u1"}
	_, err = a.WriteOutput(ctx, key, output.KindHtml, []byte("<p/>"))
	require.NoError(t, err)

	ev := receive(t, sub)
	assert.Equal(t, output.EventOutput, ev.Type)
	assert.Equal(t, "u1", ev.UnitID)
	require.NotNil(t, ev.Output)
	assert.Equal(t, "chunk_output/live/doc/u1/000001.html", ev.Output.Value)
}

func TestAppendConsolePublishesTextOutput(t *testing.T) {
	a, err := New(context.Background(), testConfig(t), nil)
	require.NoError(t, err)
	defer a.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sub := a.Hub.Subscribe(ctx, "")

	key := output.UnitKey{DocumentID: "doc", UnitID: "u1"}
	_, err = a.AppendConsole(ctx, key, output.ConsoleInput, "x <- 1")
	require.NoError(t, err)
	_, err = a.AppendConsole(ctx, key, output.ConsoleOutput, "hello")
	require.NoError(t, err)

	ev := receive(t, sub)
	require.NotNil(t, ev.Output)
	assert.Equal(t, output.KindText, ev.Output.Type)
	assert.Equal(t, [][]any{{1, "hello"}}, ev.Output.Value)
	assert.Len(t, sub, 0)
}

func TestClearOutputsPublishesEmptyListing(t *testing.T) {
	cfg := testConfig(t)
	a, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer a.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	key := output.UnitKey{DocumentID: "doc", UnitID: "u1"}
	_, err = a.Store.WriteOutput(ctx, key, output.KindHtml, []byte("<p/>"))
	require.NoError(t, err)
	sub := a.Hub.Subscribe(ctx, "doc")

	require.NoError(t, a.ClearOutputs(ctx, key, true))
	ev := receive(t, sub)
	assert.Equal(t, output.EventListing, ev.Type)
	assert.Empty(t, ev.Outputs)
	_, err = os.Stat(filepath.Join(cfg.Root, "live", "doc", "u1"))
	assert.NoError(t, err)
}

func TestRestoreArchiveDisabled(t *testing.T) {
	a, err := New(context.Background(), testConfig(t), nil)
	require.NoError(t, err)
	defer a.Close()
	_, err = a.RestoreArchive(context.Background(), "doc")
	assert.ErrorIs(t, err, archive.ErrDisabled)
}
