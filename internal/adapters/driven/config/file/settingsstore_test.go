package file

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/regcap-labs/regcap/internal/core/domain"
)

func TestSettingsStore_Load_NoFile_ReturnsDefaults(t *testing.T) {
	store, err := NewSettingsStore(t.TempDir())
	require.NoError(t, err)

	settings, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultSettings(), settings)
}

func TestSettingsStore_SaveAndLoad_RoundTrip(t *testing.T) {
	store, err := NewSettingsStore(t.TempDir())
	require.NoError(t, err)

	settings := domain.DefaultSettings()
	settings.Embedding.APIKey = "sk-test"
	settings.Embedding.Model = "text-embedding-3-large"
	settings.Chunking.Size = 800
	settings.Retrieval.TopK = 8
	settings.RatePerSecond = 2.5

	require.NoError(t, store.Save(settings))

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, settings, loaded)
}

func TestSettingsStore_Load_PartialFileKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	store, err := NewSettingsStore(dir)
	require.NoError(t, err)

	content := "[chunking]\nsize = 500\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0600))

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, 500, loaded.Chunking.Size)
	assert.Equal(t, domain.DefaultSettings().Chunking.Overlap, loaded.Chunking.Overlap)
	assert.Equal(t, domain.DefaultSettings().Retrieval.TopK, loaded.Retrieval.TopK)
	assert.Equal(t, 60*time.Second, loaded.Embedding.Timeout)
}

func TestSettingsStore_Load_MalformedFile(t *testing.T) {
	dir := t.TempDir()
	store, err := NewSettingsStore(dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte("not [valid toml"), 0600))

	_, err = store.Load()
	assert.Error(t, err)
}

func TestSettingsStore_Save_RestrictedPermissions(t *testing.T) {
	dir := t.TempDir()
	store, err := NewSettingsStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.Save(domain.DefaultSettings()))

	info, err := os.Stat(store.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}
