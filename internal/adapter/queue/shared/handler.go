package shared

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

// TimeoutMessage is stored when an evaluation run is cancelled or times out.
const TimeoutMessage = "Evaluation timed out. Please try again."

// ErrStateNotPersisted marks a run whose ERROR state could not be written.
// The dispatch boundary retries the write when it sees it.
var ErrStateNotPersisted = errors.New("terminal state not persisted")

var errAlreadyTerminal = errors.New("interview already terminal")

const failWriteTimeout = 10 * time.Second

// Orchestrator drives one interview from PROCESSING to COMPLETED or ERROR.
type Orchestrator struct {
	repo domain.InterviewRepository
	eval *Evaluator
}

// NewOrchestrator wires the repository and the evaluator.
func NewOrchestrator(repo domain.InterviewRepository, eval *Evaluator) *Orchestrator {
	return &Orchestrator{repo: repo, eval: eval}
}

// HandleEvaluate runs the whole evaluation for payload. Every failure is persisted
// as ERROR before being returned; the returned error is informational unless it
// wraps ErrStateNotPersisted.
func (o *Orchestrator) HandleEvaluate(ctx context.Context, payload domain.EvaluateTaskPayload) error {
	if o == nil || o.repo == nil || o.eval == nil {
		return fmt.Errorf("%w: orchestrator not configured", domain.ErrInternal)
	}
	ctx, span := otel.Tracer("queue.handler").Start(ctx, "HandleEvaluate")
	defer span.End()
	span.SetAttributes(
		attribute.String("interview.id", payload.InterviewID),
		attribute.Int("interview.questions", len(payload.Questions)),
	)

	lg := intobs.LoggerFromContext(ctx).With(
		slog.String("interview_id", payload.InterviewID),
		slog.String("request_id", payload.RequestID),
	)
	ctx = intobs.ContextWithLogger(ctx, lg)

	start := time.Now()
	observability.StartEvaluation()

	scores, err := o.run(ctx, payload)
	if errors.Is(err, errAlreadyTerminal) {
		observability.FinishEvaluation("skipped", time.Since(start))
		lg.Info("interview already terminal; skipping duplicate delivery")
		return nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		observability.FinishEvaluation("error", time.Since(start))
		return o.fail(ctx, payload.InterviewID, err)
	}

	observability.FinishEvaluation("completed", time.Since(start))
	observability.ObserveInterviewScore(scores.Interview)
	lg.Info("evaluation completed",
		slog.Float64("interview_score", scores.Interview),
		slog.Duration("duration", time.Since(start)))
	return nil
}

func (o *Orchestrator) run(ctx context.Context, payload domain.EvaluateTaskPayload) (Scores, error) {
	lg := intobs.LoggerFromContext(ctx)

	iv, err := o.repo.Find(ctx, payload.InterviewID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// the dispatcher already flipped this row to PROCESSING
			lg.Error("interview missing during evaluation; upstream consistency bug", slog.Any("error", err))
		}
		return Scores{}, fmt.Errorf("op=evaluate.load: %w", err)
	}
	if iv.Status.Terminal() {
		return Scores{}, errAlreadyTerminal
	}
	language := payload.Language
	if language == "" {
		language = iv.Language
	}

	evals, err := o.eval.EvaluateAnswers(ctx, EvaluationPromptInput{
		Difficulty:        payload.Difficulty,
		YearsOfExperience: payload.YearsOfExperience,
		Language:          language,
		Questions:         payload.Questions,
	})
	if err != nil {
		return Scores{}, fmt.Errorf("op=evaluate.answers: %w", err)
	}

	merged := MergeEvaluations(payload.Questions, evals)
	scores := Aggregate(merged)

	skills, err := o.eval.ExtractTechnologies(ctx, referencePairs(merged))
	if err != nil {
		return Scores{}, fmt.Errorf("op=evaluate.technologies: %w", err)
	}
	feedback, err := o.eval.GenerateOverallFeedback(ctx, merged, language)
	if err != nil {
		return Scores{}, fmt.Errorf("op=evaluate.feedback: %w", err)
	}

	if err := o.repo.Complete(ctx, payload.InterviewID, domain.Completion{
		InterviewScore:      scores.Interview,
		TechnicalScore:      scores.Technical,
		CommunicationScore:  scores.Communication,
		ProblemSolvingScore: scores.ProblemSolving,
		SkillsAssessed:      skills,
		OverallFeedback:     feedback,
		QuestionsAnswered:   len(merged),
		Duration:            payload.Duration,
		Questions:           merged,
	}); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return Scores{}, errAlreadyTerminal
		}
		return Scores{}, fmt.Errorf("op=evaluate.persist: %w", err)
	}
	return scores, nil
}

// fail records ERROR on a context detached from the (possibly cancelled) run.
func (o *Orchestrator) fail(ctx context.Context, id string, cause error) error {
	lg := intobs.LoggerFromContext(ctx)
	msg := FailureMessage(cause)
	lg.Error("evaluation failed", slog.String("error_message", msg), slog.Any("error", cause))

	wctx, cancel := context.WithTimeout(intobs.DetachedContext(ctx), failWriteTimeout)
	defer cancel()
	if err := o.repo.Fail(wctx, id, msg); err != nil {
		lg.Error("failed to persist evaluation error", slog.Any("error", err))
		return fmt.Errorf("%w: %w", ErrStateNotPersisted, errors.Join(cause, err))
	}
	return cause
}

// FailureMessage renders the user-facing error text for a failed run.
func FailureMessage(err error) string {
	if err == nil {
		return "Evaluation failed."
	}
	if errors.Is(err, domain.ErrCancelled) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {
		return TimeoutMessage
	}
	msg := err.Error()
	lower := strings.ToLower(msg)
	if strings.Contains(lower, "timeout") || strings.Contains(lower, "timed out") {
		return TimeoutMessage
	}
	return msg
}

// ForceError is the last-resort ERROR write used at the dispatch boundary.
func ForceError(ctx context.Context, repo domain.InterviewRepository, id, msg string) {
	wctx, cancel := context.WithTimeout(intobs.DetachedContext(ctx), failWriteTimeout)
	defer cancel()
	if err := repo.Fail(wctx, id, msg); err != nil {
		intobs.LoggerFromContext(ctx).Error("failed to force interview into ERROR",
			slog.String("interview_id", id), slog.Any("error", err))
	}
}
