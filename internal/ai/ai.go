// Package ai provides the model provider abstraction used for response
// generation, streaming, and embeddings, with interchangeable Gemini and
// OpenAI backends selected by configuration.
package ai

import (
	"context"
	"errors"
)

var (
	// ErrGenerationFailed wraps any transport or API failure from the
	// underlying model service.
	ErrGenerationFailed = errors.New("generation failed")

	// ErrNotSupported is returned by backends that do not implement a
	// capability rather than silently returning empty output.
	ErrNotSupported = errors.New("operation not supported by this provider")
)

// Provider is the capability contract shared by all backends.
type Provider interface {
	// GenerateResponse produces a text completion for prompt. When
	// contextText is non-empty the answer is grounded on it.
	GenerateResponse(ctx context.Context, prompt, contextText string) (string, error)

	// GenerateStreamingResponse produces a finite, non-restartable
	// sequence of text chunks. The channel is closed when the stream
	// ends.
	GenerateStreamingResponse(ctx context.Context, prompt string) (<-chan string, error)

	// GenerateEmbedding turns text into a fixed-length vector.
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}
