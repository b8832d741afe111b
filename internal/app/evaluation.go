package app

import (
	"context"
	"fmt"
	"log/slog"

	ai "github.com/fairyhunter13/ai-interview-evaluator/internal/adapter/ai"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/adapter/ai/gemini"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/adapter/ai/openrouter"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/adapter/queue/shared"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/config"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/domain"
)

// BuildGateway wires Gemini as primary and OpenRouter as secondary. A provider
// without an API key is left out and its slot fails as not configured.
func BuildGateway(ctx context.Context, cfg config.Config) (*ai.Gateway, error) {
	var primary, secondary domain.Provider
	if cfg.GeminiAPIKey != "" {
		p, err := gemini.New(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("op=app.build_gateway: %w", err)
		}
		primary = p
	} else {
		slog.Warn("GEMINI_API_KEY not set; primary provider disabled")
	}
	if cfg.OpenRouterAPIKey != "" {
		secondary = openrouter.New(cfg)
	} else {
		slog.Warn("OPENROUTER_API_KEY not set; secondary provider disabled")
	}
	if primary == nil && secondary == nil {
		return nil, fmt.Errorf("op=app.build_gateway: %w: no language model provider configured", domain.ErrInvalidArgument)
	}
	return ai.NewGateway(primary, secondary, ai.WithCircuitBreakers(cfg.AIBreakerThreshold, cfg.AIBreakerCooldown)), nil
}

// BuildOrchestrator assembles the evaluation pipeline on top of gen.
func BuildOrchestrator(cfg config.Config, repo domain.InterviewRepository, gen domain.TextGenerator) (*shared.Orchestrator, error) {
	eval, err := shared.NewEvaluator(gen, shared.WithRetryPolicy(cfg.GetRetryPolicy()))
	if err != nil {
		return nil, fmt.Errorf("op=app.build_orchestrator: %w", err)
	}
	return shared.NewOrchestrator(repo, eval), nil
}
