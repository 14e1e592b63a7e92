package ai

import (
	"context"
	"fmt"

	"postulamatch/internal/config"
	"postulamatch/internal/errors"
)

// Provider is the full surface of a generation backend
type Provider interface {
	Generator
	HealthReporter
}

// NewProvider creates the generation backend selected by ai.provider
func NewProvider(ctx context.Context, cfg *config.Config, logger *errors.Logger, opts ...Option) (Provider, error) {
	logger.Debug("Initializing AI service",
		"provider", cfg.AI.Provider,
		"model", cfg.AI.Model,
		"timeout", cfg.AI.Timeout,
		"max_retries", cfg.AI.MaxRetries)

	switch cfg.AI.Provider {
	case "gemini":
		provider, err := NewGeminiProvider(ctx, cfg, logger, opts...)
		if err != nil {
			return nil, errors.NewAIError(errors.ErrCodeAIServiceFailed, "Failed to create AI provider", err)
		}
		return provider, nil
	default:
		return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig,
			fmt.Sprintf("Unsupported AI provider: %s", cfg.AI.Provider), nil)
	}
}
