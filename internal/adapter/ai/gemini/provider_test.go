package gemini

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/fairyhunter13/ai-interview-evaluator/internal/config"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/domain"
)

type fakeModels struct {
	model  string
	prompt string
	resp   *genai.GenerateContentResponse
	err    error
}

func (f *fakeModels) GenerateContent(_ context.Context, model string, contents []*genai.Content, _ *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model = model
	if len(contents) > 0 && len(contents[0].Parts) > 0 {
		f.prompt = contents[0].Parts[0].Text
	}
	return f.resp, f.err
}

func textResponse(parts ...string) *genai.GenerateContentResponse {
	var ps []*genai.Part
	for _, p := range parts {
		ps = append(ps, &genai.Part{Text: p})
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: ps}}},
	}
}

func TestGenerate_ConcatenatesFirstCandidate(t *testing.T) {
	t.Parallel()

	fm := &fakeModels{resp: textResponse(`{"evaluations":`, `[]}`)}
	p := newProvider(fm, "", time.Second)

	out, err := p.Generate(context.Background(), "evaluate")
	require.NoError(t, err)
	assert.Equal(t, `{"evaluations":[]}`, out)
	assert.Equal(t, defaultModel, fm.model)
	assert.Equal(t, "evaluate", fm.prompt)
	assert.Equal(t, "gemini", p.Name())
}

func TestGenerate_APIError(t *testing.T) {
	t.Parallel()

	fm := &fakeModels{err: genai.APIError{Code: http.StatusServiceUnavailable, Status: "UNAVAILABLE"}}
	_, err := newProvider(fm, "gemini-2.0-flash", 0).Generate(context.Background(), "x")
	require.Error(t, err)

	var apiErr genai.APIError
	assert.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.Code)
}

func TestGenerate_EmptyResponse(t *testing.T) {
	t.Parallel()

	fm := &fakeModels{resp: &genai.GenerateContentResponse{}}
	_, err := newProvider(fm, "m", 0).Generate(context.Background(), "x")
	assert.EqualError(t, err, "gemini api returned empty response")

	_, err = newProvider(fm, "m", 0).Generate(context.Background(), "  ")
	assert.Error(t, err)
}

func TestNew_RequiresKey(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), config.Config{})
	assert.True(t, errors.Is(err, domain.ErrInvalidArgument))
}
