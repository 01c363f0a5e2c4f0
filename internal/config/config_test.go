package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_Defaults(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, "hybrid", cfg.Collection.Mode)
	assert.Equal(t, 768, cfg.Collection.EmbedDim)
	assert.Equal(t, 60, cfg.Search.RRFConstant)
	assert.Equal(t, "gpt-4o-mini", cfg.Generation.Model)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "slack_QA", cfg.Collection.Name)
}

func TestLoad_ReadsYAML(t *testing.T) {
	dir := t.TempDir()
	content := []byte(`
version: 1
collection:
  name: course_faq
  mode: dense
  embed_dim: 384
search:
  rrf_constant: 30
  max_results: 5
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), content, 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "course_faq", cfg.Collection.Name)
	assert.Equal(t, "dense", cfg.Collection.Mode)
	assert.Equal(t, 384, cfg.Collection.EmbedDim)
	assert.Equal(t, 30, cfg.Search.RRFConstant)
	// Untouched sections keep defaults
	assert.Equal(t, "gpt-4o-mini", cfg.Generation.Model)
}

func TestLoad_InvalidModeRejected(t *testing.T) {
	dir := t.TempDir()
	content := []byte("collection:\n  mode: fuzzy\n  embed_dim: 768\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), content, 0o644))

	_, err := Load(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mode")
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := NewConfig()
	cfg.Collection.Name = "roundtrip"
	require.NoError(t, cfg.Save(dir))

	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "roundtrip", loaded.Collection.Name)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SLACKFAQ_DATA_DIR", "/tmp/elsewhere")
	t.Setenv("SLACKFAQ_EMBED_PROVIDER", "ollama")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "/tmp/elsewhere", cfg.Paths.DataDir)
	assert.Equal(t, "ollama", cfg.Embeddings.Provider)
}

func TestAPIKey_FromEnv(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	cfg := NewConfig()
	assert.Equal(t, "sk-test", cfg.APIKey())
}
