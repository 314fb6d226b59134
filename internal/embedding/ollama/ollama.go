// Package ollama embeds text with a sentence-transformer model served by a local Ollama daemon.
package ollama

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms/ollama"
	"go.uber.org/zap"

	"github.com/spigell/cv-matcher/internal/embedding"
)

const (
	ProviderName = "ollama"

	defaultModel     = "all-minilm"
	defaultServerURL = "http://localhost:11434"
)

type embeddingCreator interface {
	CreateEmbedding(ctx context.Context, inputTexts []string) ([][]float32, error)
}

// Config describes how the Ollama embedder is built.
type Config struct {
	ServerURL string
	Model     string
}

type Embedder struct {
	llm    embeddingCreator
	model  string
	logger *zap.Logger
}

func New(cfg Config, logger *zap.Logger) (*Embedder, error) {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}

	serverURL := strings.TrimSpace(cfg.ServerURL)
	if serverURL == "" {
		serverURL = defaultServerURL
	}

	llm, err := ollama.New(ollama.WithModel(model), ollama.WithServerURL(serverURL))
	if err != nil {
		return nil, fmt.Errorf("create ollama client: %w", err)
	}

	return newEmbedder(llm, model, logger), nil
}

func newEmbedder(llm embeddingCreator, model string, logger *zap.Logger) *Embedder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Embedder{llm: llm, model: model, logger: logger}
}

func (e *Embedder) Provider() string { return ProviderName }

func (e *Embedder) Model() string { return e.model }

func (e *Embedder) Embed(ctx context.Context, text string) (embedding.Vector, error) {
	if strings.TrimSpace(text) == "" {
		return nil, embedding.ErrEmptyText
	}

	vectors, err := e.llm.CreateEmbedding(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("create embedding: %w", err)
	}

	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, errors.New("ollama returned an empty embedding")
	}

	e.logger.Debug("ollama embedding created", zap.Int("dimensions", len(vectors[0])))

	return embedding.FromFloat32(vectors[0]), nil
}
