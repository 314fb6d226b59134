package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/cv-matcher/internal/embedding"
	"github.com/spigell/cv-matcher/internal/embedding/gemini"
	"github.com/spigell/cv-matcher/internal/embedding/ollama"
	"github.com/spigell/cv-matcher/internal/extract"
	"github.com/spigell/cv-matcher/internal/logger"
	"github.com/spigell/cv-matcher/internal/matching"
	"github.com/spigell/cv-matcher/internal/secrets"
	"github.com/spigell/cv-matcher/internal/staging"
)

const geminiAPIKeyEnv = "GEMINI_API_KEY"

// fs backs staging and local file reads.
var fs = afero.NewOsFs()

// setup builds the logger and reads the config; it exits on failure.
func setup() (*zap.Logger, *Config) {
	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting the "+app, zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	return logger, config
}

func newMatcher(ctx context.Context, config *Config, log *zap.Logger) (*matching.Matcher, error) {
	embedder, err := newEmbedder(ctx, &config.Embedding, log)
	if err != nil {
		return nil, fmt.Errorf("building embedder: %w", err)
	}

	area, err := staging.New(fs, config.UploadDir)
	if err != nil {
		return nil, err
	}

	return matching.New(embedder, extract.PDF{}, area, matching.Config{
		AllowedExtensions: config.AllowedExtensions,
		MaxLogLength:      config.Embedding.MaxLogLength,
	}, log)
}

func newEmbedder(ctx context.Context, cfg *EmbeddingConfig, log *zap.Logger) (embedding.Embedder, error) {
	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))

	switch provider {
	case "", gemini.ProviderName:
		gc := cfg.Gemini
		if gc == nil {
			gc = &GeminiConfig{}
		}

		apiKey, err := secrets.Load(secrets.Source{
			Name:  "gemini api key",
			Value: gc.APIKey,
			File:  gc.APIKeyFile,
			Env:   geminiAPIKeyEnv,
		})
		if err != nil {
			return nil, fmt.Errorf("%w (or set embedding.gemini.api-key-file)", err)
		}

		genLogger := logger.WithFields(log, zap.Int("embedding_retry_attempts", cfg.MaxRetries))

		return gemini.New(ctx, gemini.Config{
			APIKey:       apiKey,
			Model:        cfg.Model,
			Dimensions:   cfg.Dimensions,
			MaxRetries:   cfg.MaxRetries,
			MaxLogLength: cfg.MaxLogLength,
		}, genLogger)
	case ollama.ProviderName:
		oc := cfg.Ollama
		if oc == nil {
			oc = &OllamaConfig{}
		}

		return ollama.New(ollama.Config{
			ServerURL: oc.ServerURL,
			Model:     cfg.Model,
		}, log)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}
}
