package embed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sfarag/slackfaq/internal/config"
)

func TestParseProvider(t *testing.T) {
	tests := []struct {
		in      string
		want    Provider
		wantErr bool
	}{
		{"static", ProviderStatic, false},
		{"openai", ProviderOpenAI, false},
		{"ollama", ProviderOllama, false},
		{"huggingface", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		got, err := ParseProvider(tt.in)
		if tt.wantErr {
			assert.Error(t, err, "input %q", tt.in)
		} else {
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		}
	}
}

func TestNewFromConfig_StaticIsCached(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Embeddings.Provider = "static"

	emb, err := NewFromConfig(cfg, 256)
	require.NoError(t, err)
	defer func() { _ = emb.Close() }()

	cached, ok := emb.(*CachedEmbedder)
	require.True(t, ok, "factory must wrap embedders with the LRU cache")
	assert.Equal(t, 256, cached.Dimensions())
}

func TestNewFromConfig_OpenAIRequiresKey(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Embeddings.Provider = "openai"
	cfg.Embeddings.APIKeyEnv = "SLACKFAQ_TEST_MISSING_KEY"

	_, err := NewFromConfig(cfg, 768)
	require.Error(t, err)
}

func TestNewFromConfig_UnknownProviderFails(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Embeddings.Provider = "bogus"

	_, err := NewFromConfig(cfg, 768)
	require.Error(t, err)
}
