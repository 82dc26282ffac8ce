package ai

import (
	"context"
	"fmt"
	"log/slog"

	openai "github.com/sashabaranov/go-openai"

	"github.com/mfields/digestbot/internal/config"
)

// embeddingClient is the subset of the OpenAI client used by the
// provider; it is easy to mock in tests.
type embeddingClient interface {
	CreateEmbeddings(ctx context.Context, req openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error)
}

// OpenAIProvider implements Provider on top of the OpenAI API. It is an
// embeddings-only backend: response generation fails fast with
// ErrNotSupported instead of silently returning empty output.
type OpenAIProvider struct {
	client         embeddingClient
	log            *slog.Logger
	embeddingModel string
}

// NewOpenAIProvider creates an OpenAI-backed provider.
func NewOpenAIProvider(cfg config.AIConfig, log *slog.Logger) *OpenAIProvider {
	clientCfg := openai.DefaultConfig(cfg.OpenAI.APIKey)
	if cfg.OpenAI.BaseURL != "" {
		clientCfg.BaseURL = cfg.OpenAI.BaseURL
	}

	logger := log.With("component", "openai_provider")
	logger.Info("OpenAI provider initialized", "embedding_model", cfg.OpenAI.EmbeddingModel)

	return &OpenAIProvider{
		client:         openai.NewClientWithConfig(clientCfg),
		log:            logger,
		embeddingModel: cfg.OpenAI.EmbeddingModel,
	}
}

// GenerateResponse is not supported by this backend.
func (p *OpenAIProvider) GenerateResponse(_ context.Context, _, _ string) (string, error) {
	return "", fmt.Errorf("%w: response generation", ErrNotSupported)
}

// GenerateStreamingResponse is not supported by this backend.
func (p *OpenAIProvider) GenerateStreamingResponse(_ context.Context, _ string) (<-chan string, error) {
	return nil, fmt.Errorf("%w: streaming response generation", ErrNotSupported)
}

// GenerateEmbedding turns text into a fixed-length vector.
func (p *OpenAIProvider) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(p.embeddingModel),
		Input: []string{text},
	})
	if err != nil {
		p.log.ErrorContext(ctx, "OpenAI embedding call failed", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("%w: empty embedding response", ErrGenerationFailed)
	}

	return resp.Data[0].Embedding, nil
}
