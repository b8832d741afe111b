// Package shared holds the evaluation logic run by every queue backend: prompt
// builders, the model-facing evaluator and the orchestrator that persists results.
package shared

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/xeipuuv/gojsonschema"

	"github.com/fairyhunter13/ai-interview-evaluator/internal/adapter/ai"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/adapter/ai/tokencount"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/adapter/observability"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/domain"
	intobs "github.com/fairyhunter13/ai-interview-evaluator/internal/observability"
)

// Fallback texts written when the model cannot produce a usable answer.
const (
	FailedEvaluationFeedback = "Evaluation failed after multiple attempts. Please try again later."
	MissingFeedback          = "No feedback provided."
	FallbackTechnology       = "General Programming"
	FallbackOverallFeedback  = "Overall feedback could not be generated at this time."
)

const evaluationSchema = `{
  "type": "object",
  "required": ["evaluations"],
  "properties": {
    "evaluations": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "properties": {
          "questionFeedback": {"type": ["string", "null"]},
          "learningResources": {"type": ["array", "null"]}
        }
      }
    }
  }
}`

var evaluationSchemaLoader = gojsonschema.NewStringLoader(evaluationSchema)

// AnswerEvaluation is the normalised model verdict for one question.
type AnswerEvaluation struct {
	QuestionScore       float64
	TechnicalScore      float64
	CommunicationScore  float64
	ProblemSolvingScore float64
	QuestionFeedback    string
	LearningResources   []domain.LearningResource
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Evaluator performs the three model calls of an evaluation run.
type Evaluator struct {
	gen    domain.TextGenerator
	policy domain.RetryPolicy
	schema *gojsonschema.Schema
	sleep  SleepFunc
}

// EvaluatorOption configures an Evaluator.
type EvaluatorOption func(*Evaluator)

// WithRetryPolicy overrides the default 3 attempts with 2s/4s/8s backoff.
func WithRetryPolicy(p domain.RetryPolicy) EvaluatorOption {
	return func(e *Evaluator) { e.policy = p }
}

// WithSleep replaces the backoff wait, mainly for tests.
func WithSleep(s SleepFunc) EvaluatorOption {
	return func(e *Evaluator) { e.sleep = s }
}

// NewEvaluator builds an evaluator on top of gen.
func NewEvaluator(gen domain.TextGenerator, opts ...EvaluatorOption) (*Evaluator, error) {
	schema, err := gojsonschema.NewSchema(evaluationSchemaLoader)
	if err != nil {
		return nil, fmt.Errorf("op=evaluator.schema: %w", err)
	}
	e := &Evaluator{gen: gen, policy: domain.DefaultRetryPolicy(), schema: schema, sleep: sleepContext}
	for _, o := range opts {
		o(e)
	}
	if e.policy.MaxRetries <= 0 {
		e.policy.MaxRetries = domain.DefaultRetryPolicy().MaxRetries
	}
	return e, nil
}

func (e *Evaluator) newBackOff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = e.policy.InitialDelay
	bo.Multiplier = e.policy.Multiplier
	bo.MaxInterval = e.policy.MaxDelay
	bo.RandomizationFactor = 0
	bo.MaxElapsedTime = 0
	bo.Reset()
	return bo
}

// EvaluateAnswers scores every answer. It retries malformed or failed model calls
// with exponential backoff and, once attempts are exhausted, returns an all-zero
// verdict per question. The only error it returns wraps domain.ErrCancelled.
func (e *Evaluator) EvaluateAnswers(ctx context.Context, in EvaluationPromptInput) ([]AnswerEvaluation, error) {
	if len(in.Questions) == 0 {
		return nil, nil
	}
	lg := intobs.LoggerFromContext(ctx)
	prompt := BuildEvaluationPrompt(in)
	observability.AIPromptTokens.WithLabelValues("evaluate").Observe(float64(tokencount.EstimateDefault(prompt, "")))

	bo := e.newBackOff()
	for attempt := 1; attempt <= e.policy.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, cancelledError(err)
		}
		evals, err := e.evaluateOnce(ctx, prompt, len(in.Questions))
		if err == nil {
			observability.EvaluationAttemptsTotal.WithLabelValues("valid").Inc()
			return evals, nil
		}
		if isCancellation(ctx, err) {
			return nil, cancelledError(err)
		}
		observability.EvaluationAttemptsTotal.WithLabelValues("invalid").Inc()
		lg.Warn("answer evaluation attempt failed",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", e.policy.MaxRetries),
			slog.Any("error", err))
		if attempt == e.policy.MaxRetries {
			break
		}
		if err := e.sleep(ctx, bo.NextBackOff()); err != nil {
			return nil, cancelledError(err)
		}
	}

	lg.Error("answer evaluation exhausted retries; using fallback scores",
		slog.Int("questions", len(in.Questions)))
	return fallbackEvaluations(len(in.Questions)), nil
}

func (e *Evaluator) evaluateOnce(ctx context.Context, prompt string, want int) ([]AnswerEvaluation, error) {
	raw, err := e.gen.Generate(ctx, prompt)
	if err != nil {
		return nil, err
	}
	doc, err := ai.ParseJSON[map[string]any](raw)
	if err != nil {
		return nil, err
	}
	res, err := e.schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedResponse, err)
	}
	if !res.Valid() {
		msgs := make([]string, 0, len(res.Errors()))
		for _, re := range res.Errors() {
			msgs = append(msgs, re.String())
		}
		return nil, fmt.Errorf("%w: %s", domain.ErrMalformedResponse, strings.Join(msgs, "; "))
	}

	items, _ := doc["evaluations"].([]any)
	if len(items) != want {
		return nil, fmt.Errorf("%w: expected %d evaluations, got %d", domain.ErrMalformedResponse, want, len(items))
	}
	out := make([]AnswerEvaluation, len(items))
	for i, it := range items {
		m, _ := it.(map[string]any)
		out[i] = normalizeEvaluation(m)
	}
	return out, nil
}

// ExtractTechnologies asks once for the technologies covered by the questions.
// Any failure other than cancellation yields the one-element fallback.
func (e *Evaluator) ExtractTechnologies(ctx context.Context, questions []domain.QuestionAnswer) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, cancelledError(err)
	}
	lg := intobs.LoggerFromContext(ctx)
	prompt := BuildTechnologyExtractionPrompt(questions)
	observability.AIPromptTokens.WithLabelValues("extract").Observe(float64(tokencount.EstimateDefault(prompt, "")))

	raw, err := e.gen.Generate(ctx, prompt)
	if err != nil {
		if isCancellation(ctx, err) {
			return nil, cancelledError(err)
		}
		lg.Warn("technology extraction failed; using fallback", slog.Any("error", err))
		return []string{FallbackTechnology}, nil
	}
	items, err := ai.ParseJSONArray[any](raw)
	if err != nil {
		lg.Warn("technology extraction returned malformed output; using fallback", slog.Any("error", err))
		return []string{FallbackTechnology}, nil
	}
	techs := dedupeStrings(items)
	if len(techs) == 0 {
		return []string{FallbackTechnology}, nil
	}
	return techs, nil
}

// GenerateOverallFeedback asks once for a narrative summary and returns it verbatim.
func (e *Evaluator) GenerateOverallFeedback(ctx context.Context, results []domain.QuestionRecord, language string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", cancelledError(err)
	}
	prompt := BuildOverallFeedbackPrompt(results, language)
	observability.AIPromptTokens.WithLabelValues("feedback").Observe(float64(tokencount.EstimateDefault(prompt, "")))

	raw, err := e.gen.Generate(ctx, prompt)
	if err != nil {
		if isCancellation(ctx, err) {
			return "", cancelledError(err)
		}
		intobs.LoggerFromContext(ctx).Warn("overall feedback failed; using fallback", slog.Any("error", err))
		return FallbackOverallFeedback, nil
	}
	if text := strings.TrimSpace(raw); text != "" {
		return text, nil
	}
	return FallbackOverallFeedback, nil
}

func fallbackEvaluations(n int) []AnswerEvaluation {
	out := make([]AnswerEvaluation, n)
	for i := range out {
		out[i] = AnswerEvaluation{QuestionFeedback: FailedEvaluationFeedback, LearningResources: []domain.LearningResource{}}
	}
	return out
}

func normalizeEvaluation(m map[string]any) AnswerEvaluation {
	ev := AnswerEvaluation{
		QuestionScore:       toScore(m["questionScore"]),
		TechnicalScore:      toScore(m["technicalScore"]),
		CommunicationScore:  toScore(m["communicationScore"]),
		ProblemSolvingScore: toScore(m["problemSolvingScore"]),
		QuestionFeedback:    toText(m["questionFeedback"], MissingFeedback),
		LearningResources:   []domain.LearningResource{},
	}
	list, _ := m["learningResources"].([]any)
	for _, item := range list {
		r, ok := item.(map[string]any)
		if !ok {
			continue
		}
		title := toText(r["title"], "")
		url := toText(r["url"], "")
		if title == "" && url == "" {
			continue
		}
		ev.LearningResources = append(ev.LearningResources, domain.LearningResource{
			Title:       toText(title, url),
			URL:         url,
			Type:        domain.NormalizeResourceType(strings.ToLower(toText(r["type"], ""))),
			Description: toText(r["description"], ""),
		})
	}
	return ev
}

// toScore coerces a model-provided score to [0,100]; anything non-numeric is 0.
func toScore(v any) float64 {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(x), "%"), 64)
		if err != nil {
			return 0
		}
		f = parsed
	default:
		return 0
	}
	switch {
	case math.IsNaN(f), f < 0:
		return 0
	case f > 100:
		return 100
	}
	return f
}

func toText(v any, fallback string) string {
	if s, ok := v.(string); ok {
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return fallback
}

func dedupeStrings(items []any) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, it := range items {
		s, ok := it.(string)
		if !ok {
			continue
		}
		s = strings.TrimSpace(s)
		key := strings.ToLower(s)
		if s == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, s)
	}
	return out
}

func isCancellation(ctx context.Context, err error) bool {
	return ctx.Err() != nil ||
		errors.Is(err, domain.ErrCancelled) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

func cancelledError(err error) error {
	if errors.Is(err, domain.ErrCancelled) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrCancelled, err)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
