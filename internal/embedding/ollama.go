package embedding

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms/ollama"
)

// OllamaProvider generates embeddings through a local Ollama server.
type OllamaProvider struct {
	llm *ollama.LLM
}

// OllamaConfig configures the Ollama embedding transport.
type OllamaConfig struct {
	BaseURL string
	Model   string
}

// NewOllamaProvider creates the provider.
func NewOllamaProvider(cfg OllamaConfig) (*OllamaProvider, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	if cfg.Model == "" {
		cfg.Model = "nomic-embed-text"
	}

	llm, err := ollama.New(
		ollama.WithModel(cfg.Model),
		ollama.WithServerURL(cfg.BaseURL),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ollama client: %w", err)
	}
	return &OllamaProvider{llm: llm}, nil
}

// CreateEmbeddings implements Provider.
func (p *OllamaProvider) CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	return p.llm.CreateEmbedding(ctx, texts)
}
