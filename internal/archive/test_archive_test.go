package archive

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nbcache/internal/output"
)

func TestConfigEnabled(t *testing.T) {
	assert.False(t, Config{}.Enabled())
	assert.False(t, Config{Endpoint: "localhost:9000", AccessKey: "k"}.Enabled())
	assert.True(t, Config{Endpoint: "localhost:9000", AccessKey: "k", SecretKey: "s"}.Enabled())
}

func TestNewS3ArchiveDisabled(t *testing.T) {
	_, err := NewS3Archive(Config{}, output.NewDirLayout(t.TempDir()), nil)
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestNewS3ArchiveDefaults(t *testing.T) {
	a, err := NewS3Archive(Config{Endpoint: "localhost:9000", AccessKey: "k", SecretKey: "s"}, output.NewDirLayout(t.TempDir()), nil)
	require.NoError(t, err)
	assert.Equal(t, "nbcache-outputs", a.bucketName)
	assert.Equal(t, "us-east-1", a.region)

	_, err = NewS3Archive(Config{Endpoint: "localhost:9000", AccessKey: "k", SecretKey: "s"}, nil, nil)
	assert.Error(t, err)
}

func TestObjectKey(t *testing.T) {
	assert.Equal(t, "doc/u1/000001.png", objectKey("doc", filepath.Join("u1", "000001.png")))
	assert.Equal(t, "doc/lib/jquery/jquery.js", objectKey("doc", filepath.Join("lib", "jquery", "jquery.js")))
}

func TestRelativeKey(t *testing.T) {
	rel, ok := relativeKey("doc/", "doc/u1/000001.png")
	require.True(t, ok)
	assert.Equal(t, filepath.Join("u1", "000001.png"), rel)

	for _, key := range []string{"other/u1/000001.png", "doc/", "doc/../x", "doc/u1//a", "doc/u1/.."} {
		_, ok := relativeKey("doc/", key)
		assert.False(t, ok, key)
	}
}
