package ai

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mfields/digestbot/internal/config"
)

// New resolves the active provider from configuration. Exactly one
// backend is constructed per process; callers share the returned handle.
func New(ctx context.Context, cfg config.AIConfig, log *slog.Logger) (Provider, error) {
	switch cfg.Provider {
	case "gemini":
		return NewGeminiProvider(ctx, cfg, log)
	case "openai":
		return NewOpenAIProvider(cfg, log), nil
	default:
		return nil, fmt.Errorf("unknown ai provider %q", cfg.Provider)
	}
}
