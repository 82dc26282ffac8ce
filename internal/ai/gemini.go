package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/mfields/digestbot/internal/config"
)

// GeminiProvider implements Provider on top of Google's Gemini API.
// It supports all three capabilities.
type GeminiProvider struct {
	client         *genai.Client
	log            *slog.Logger
	contentConfig  *genai.GenerateContentConfig
	model          string
	embeddingModel string
	maxRetries     int
	retryDelay     time.Duration
}

// NewGeminiProvider creates a Gemini-backed provider.
func NewGeminiProvider(ctx context.Context, cfg config.AIConfig, log *slog.Logger) (*GeminiProvider, error) {
	if cfg.Gemini.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.Gemini.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	temperature := cfg.Temperature
	contentConfig := &genai.GenerateContentConfig{
		Temperature: &temperature,
		SafetySettings: []*genai.SafetySetting{
			{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockThresholdBlockNone},
			{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockThresholdBlockNone},
			{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockThresholdBlockNone},
			{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockThresholdBlockNone},
		},
	}

	logger := log.With("component", "gemini_provider")
	logger.Info("Gemini provider initialized", "model", cfg.Gemini.Model, "embedding_model", cfg.Gemini.EmbeddingModel)

	return &GeminiProvider{
		client:         client,
		log:            logger,
		contentConfig:  contentConfig,
		model:          cfg.Gemini.Model,
		embeddingModel: cfg.Gemini.EmbeddingModel,
		maxRetries:     cfg.MaxRetries,
		retryDelay:     cfg.RetryDelay,
	}, nil
}

// GenerateResponse produces a completion for prompt, optionally grounded
// on contextText.
func (p *GeminiProvider) GenerateResponse(ctx context.Context, prompt, contextText string) (string, error) {
	fullPrompt := prompt
	if contextText != "" {
		fullPrompt = fmt.Sprintf("Context:\n%s\n\nQuestion: %s\n\nAnswer based on the context above:", contextText, prompt)
	}

	contents := []*genai.Content{genai.NewContentFromText(fullPrompt, genai.RoleUser)}

	resp, err := p.generateWithRetries(ctx, contents)
	if err != nil {
		return "", err
	}

	return p.extractText(ctx, resp)
}

// GenerateStreamingResponse streams the completion as text chunks. The
// returned channel is closed when the stream ends or fails mid-flight.
func (p *GeminiProvider) GenerateStreamingResponse(ctx context.Context, prompt string) (<-chan string, error) {
	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}

	out := make(chan string)
	go func() {
		defer close(out)
		for resp, err := range p.client.Models.GenerateContentStream(ctx, p.model, contents, p.contentConfig) {
			if err != nil {
				p.log.ErrorContext(ctx, "Gemini stream failed mid-flight", "error", err)
				return
			}
			chunk := resp.Text()
			if chunk == "" {
				continue
			}
			select {
			case out <- chunk:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

// GenerateEmbedding turns text into a fixed-length vector.
func (p *GeminiProvider) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	contents := []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}

	resp, err := p.client.Models.EmbedContent(ctx, p.embeddingModel, contents, nil)
	if err != nil {
		p.log.ErrorContext(ctx, "Gemini embedding call failed", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, fmt.Errorf("%w: empty embedding response", ErrGenerationFailed)
	}

	return resp.Embeddings[0].Values, nil
}

func (p *GeminiProvider) generateWithRetries(ctx context.Context, contents []*genai.Content) (*genai.GenerateContentResponse, error) {
	var resp *genai.GenerateContentResponse
	var err error

	for i := 0; i <= p.maxRetries; i++ {
		resp, err = p.client.Models.GenerateContent(ctx, p.model, contents, p.contentConfig)
		if err == nil {
			return resp, nil
		}

		var apiErr *genai.APIError
		if errors.As(err, &apiErr) && (apiErr.Code == 500 || apiErr.Code == 503) && i < p.maxRetries {
			p.log.WarnContext(ctx, "Retriable Gemini API error, retrying", "attempt", i+1, "code", apiErr.Code, "delay", p.retryDelay)
			select {
			case <-time.After(p.retryDelay):
				continue
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %w", ErrGenerationFailed, ctx.Err())
			}
		}

		break
	}

	p.log.ErrorContext(ctx, "Gemini API call failed", "error", err)
	return nil, fmt.Errorf("%w: %w", ErrGenerationFailed, err)
}

func (p *GeminiProvider) extractText(ctx context.Context, resp *genai.GenerateContentResponse) (string, error) {
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockedReasonUnspecified {
		reason := fmt.Sprintf("%v", resp.PromptFeedback.BlockReason)
		if resp.PromptFeedback.BlockReasonMessage != "" {
			reason = resp.PromptFeedback.BlockReasonMessage
		}
		p.log.ErrorContext(ctx, "Gemini request blocked by safety filter", "reason", reason)
		return "", fmt.Errorf("%w: blocked by safety filter: %s", ErrGenerationFailed, reason)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: empty response from model", ErrGenerationFailed)
	}
	return text, nil
}
