package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/fairyhunter13/ai-interview-evaluator/internal/adapter/observability"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/domain"
	intobs "github.com/fairyhunter13/ai-interview-evaluator/internal/observability"
)

// Gateway implements domain.TextGenerator over a primary and a secondary provider.
// It never retries; a failed primary call is followed by exactly one secondary call.
type Gateway struct {
	primary     domain.Provider
	secondary   domain.Provider
	primaryCB   *CircuitBreaker
	secondaryCB *CircuitBreaker
}

// GatewayOption configures a Gateway.
type GatewayOption func(*Gateway)

// WithCircuitBreakers guards each provider with its own breaker.
func WithCircuitBreakers(threshold int, cooldown time.Duration) GatewayOption {
	return func(g *Gateway) {
		g.primaryCB = NewCircuitBreaker(providerName(g.primary, "primary"), threshold, cooldown)
		g.secondaryCB = NewCircuitBreaker(providerName(g.secondary, "secondary"), threshold, cooldown)
	}
}

// NewGateway builds a gateway. Either provider may be nil, in which case calls to
// it fail as "not configured" and the fallback rules still apply.
func NewGateway(primary, secondary domain.Provider, opts ...GatewayOption) *Gateway {
	g := &Gateway{primary: primary, secondary: secondary}
	for _, o := range opts {
		o(g)
	}
	return g
}

var _ domain.TextGenerator = (*Gateway)(nil)

// Generate returns the text produced for prompt by the first provider that succeeds.
func (g *Gateway) Generate(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", cancelled(err)
	}
	lg := intobs.LoggerFromContext(ctx)

	out, perr := g.call(ctx, g.primary, g.primaryCB, "primary", prompt)
	if perr == nil {
		return out, nil
	}
	if err := ctx.Err(); err != nil {
		return "", cancelled(err)
	}
	lg.Warn("primary provider failed; trying secondary",
		slog.String("provider", providerName(g.primary, "primary")),
		slog.Any("error", perr))
	observability.AIFallbacksTotal.Inc()

	out, serr := g.call(ctx, g.secondary, g.secondaryCB, "secondary", prompt)
	if serr == nil {
		return out, nil
	}
	if err := ctx.Err(); err != nil {
		return "", cancelled(err)
	}
	lg.Error("all providers failed",
		slog.String("primary_error", perr.Error()),
		slog.String("secondary_error", serr.Error()))
	return "", &domain.ProviderUnavailableError{Primary: perr.Error(), Secondary: serr.Error()}
}

func (g *Gateway) call(ctx context.Context, p domain.Provider, cb *CircuitBreaker, role, prompt string) (string, error) {
	name := providerName(p, role)
	if p == nil {
		return "", fmt.Errorf("%s: provider not configured", name)
	}
	if cb != nil && !cb.Allow() {
		observability.ObserveAIRequest(name, "short_circuit", 0)
		return "", fmt.Errorf("%s: circuit open", name)
	}

	ctx, span := otel.Tracer("ai.gateway").Start(ctx, "provider.Generate")
	defer span.End()
	span.SetAttributes(
		attribute.String("ai.provider", name),
		attribute.String("ai.role", role),
		attribute.Int("ai.prompt_chars", len(prompt)),
	)

	start := time.Now()
	out, err := p.Generate(ctx, prompt)
	if err == nil && strings.TrimSpace(out) == "" {
		err = errors.New("empty response")
	}
	if err != nil {
		// a run that was cancelled says nothing about the provider's health
		if cb != nil && ctx.Err() == nil {
			cb.RecordFailure()
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		observability.ObserveAIRequest(name, "error", time.Since(start))
		return "", fmt.Errorf("%s: %w", name, err)
	}
	if cb != nil {
		cb.RecordSuccess()
	}
	observability.ObserveAIRequest(name, "success", time.Since(start))
	return out, nil
}

func providerName(p domain.Provider, fallback string) string {
	if p == nil {
		return fallback
	}
	return p.Name()
}

func cancelled(cause error) error {
	return fmt.Errorf("%w: %w", domain.ErrCancelled, cause)
}
