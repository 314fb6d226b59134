package cmd

import (
	"context"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDecodeConfigDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	config, err := decodeConfig(v.AllSettings())
	require.NoError(t, err)

	assert.Equal(t, ":5000", config.Listen)
	assert.Equal(t, "uploads", config.UploadDir)
	assert.Equal(t, []string{"pdf"}, config.AllowedExtensions)
	assert.EqualValues(t, 32<<20, config.MaxUploadSize)
	assert.Equal(t, 30*time.Second, config.ReadTimeout)
	assert.Equal(t, 5*time.Minute, config.WriteTimeout)
	assert.Equal(t, 15*time.Second, config.ShutdownTimeout)

	assert.Equal(t, "gemini", config.Embedding.Provider)
	assert.Equal(t, 3, config.Embedding.MaxRetries)
	assert.Equal(t, 200, config.Embedding.MaxLogLength)
	require.NotNil(t, config.Embedding.Gemini)
	require.NotNil(t, config.Embedding.Ollama)
	assert.Equal(t, "http://localhost:11434", config.Embedding.Ollama.ServerURL)
}

func TestDecodeConfigEnvOverrides(t *testing.T) {
	t.Setenv("CV_MATCHER_LISTEN", "127.0.0.1:8080")
	t.Setenv("CV_MATCHER_ALLOWED_EXTENSIONS", "pdf,docx")
	t.Setenv("CV_MATCHER_WRITE_TIMEOUT", "90s")
	t.Setenv("CV_MATCHER_MAX_UPLOAD_SIZE", "1048576")
	t.Setenv("CV_MATCHER_EMBEDDING_PROVIDER", "ollama")
	t.Setenv("CV_MATCHER_EMBEDDING_OLLAMA_SERVER_URL", "http://ollama:11434")

	v := viper.New()
	setDefaults(v)

	config, err := decodeConfig(v.AllSettings())
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8080", config.Listen)
	assert.Equal(t, []string{"pdf", "docx"}, config.AllowedExtensions)
	assert.Equal(t, 90*time.Second, config.WriteTimeout)
	assert.EqualValues(t, 1<<20, config.MaxUploadSize)
	assert.Equal(t, "ollama", config.Embedding.Provider)
	assert.Equal(t, "http://ollama:11434", config.Embedding.Ollama.ServerURL)
}

func TestReadConfigFile(t *testing.T) {
	dir := t.TempDir()
	file := dir + "/cv-matcher.yaml"

	require.NoError(t, afero.WriteFile(afero.NewOsFs(), file, []byte(`
listen: ":7000"
allowed-extensions: [pdf]
embedding:
  provider: gemini
  model: text-embedding-004
  dimensions: 256
  gemini:
    api-key-file: /run/secrets/gemini
`), 0o600))

	v := viper.New()
	setDefaults(v)
	require.NoError(t, readConfigFile(v, file))

	config, err := decodeConfig(v.AllSettings())
	require.NoError(t, err)

	assert.Equal(t, ":7000", config.Listen)
	assert.Equal(t, "text-embedding-004", config.Embedding.Model)
	assert.Equal(t, 256, config.Embedding.Dimensions)
	assert.Equal(t, "/run/secrets/gemini", config.Embedding.Gemini.APIKeyFile)
	assert.Equal(t, "uploads", config.UploadDir, "unset keys keep defaults")
}

func TestReadConfigFileMissing(t *testing.T) {
	v := viper.New()
	assert.Error(t, readConfigFile(v, t.TempDir()+"/absent.yaml"), "explicit config must exist")
}

func TestNewEmbedder(t *testing.T) {
	t.Run("unsupported provider", func(t *testing.T) {
		_, err := newEmbedder(context.Background(), &EmbeddingConfig{Provider: "openai"}, zap.NewNop())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported embedding provider")
	})

	t.Run("gemini without key", func(t *testing.T) {
		t.Setenv("GEMINI_API_KEY", "")

		_, err := newEmbedder(context.Background(), &EmbeddingConfig{Provider: "gemini"}, zap.NewNop())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "GEMINI_API_KEY")
	})

	t.Run("ollama", func(t *testing.T) {
		e, err := newEmbedder(context.Background(), &EmbeddingConfig{
			Provider: "Ollama",
			Model:    "nomic-embed-text",
			Ollama:   &OllamaConfig{ServerURL: "http://127.0.0.1:1"},
		}, zap.NewNop())
		require.NoError(t, err)
		assert.Equal(t, "ollama", e.Provider())
		assert.Equal(t, "nomic-embed-text", e.Model())
	})
}
