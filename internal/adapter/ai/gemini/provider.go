// Package gemini implements the primary language-model provider on top of the
// Google Gen AI SDK.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/fairyhunter13/ai-interview-evaluator/internal/config"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/domain"
)

const defaultModel = "gemini-2.0-flash"

// contentGenerator is the subset of *genai.Models used here.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Provider implements domain.Provider with one GenerateContent call per prompt.
type Provider struct {
	models  contentGenerator
	model   string
	timeout time.Duration
}

// New creates a provider configured for the Gemini API backend.
func New(ctx context.Context, cfg config.Config) (*Provider, error) {
	apiKey := strings.TrimSpace(cfg.GeminiAPIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("%w: GEMINI_API_KEY missing", domain.ErrInvalidArgument)
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return newProvider(client.Models, cfg.GeminiModel, cfg.AIRequestTimeout), nil
}

func newProvider(models contentGenerator, model string, timeout time.Duration) *Provider {
	if model = strings.TrimSpace(model); model == "" {
		model = defaultModel
	}
	return &Provider{models: models, model: model, timeout: timeout}
}

var _ domain.Provider = (*Provider)(nil)

// Name identifies the provider in logs and metrics.
func (p *Provider) Name() string { return "gemini" }

// Model returns the configured model id.
func (p *Provider) Model() string { return p.model }

// Generate sends prompt to Gemini and returns the text of the first candidate.
func (p *Provider) Generate(ctx context.Context, prompt string) (string, error) {
	if p == nil || p.models == nil {
		return "", errors.New("gemini provider is not initialized")
	}
	if strings.TrimSpace(prompt) == "" {
		return "", errors.New("prompt must not be empty")
	}
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	resp, err := p.models.GenerateContent(ctx, p.model, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](0.2),
	})
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil || part.Thought {
				continue
			}
			builder.WriteString(part.Text)
		}
		break
	}

	output := strings.TrimSpace(builder.String())
	if output == "" {
		return "", errors.New("gemini api returned empty response")
	}
	return output, nil
}
