package shared

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/fairyhunter13/ai-interview-evaluator/internal/domain"
	intobs "github.com/fairyhunter13/ai-interview-evaluator/internal/observability"
)

// CrashMessage is stored when an evaluation run panics.
const CrashMessage = "Evaluation failed unexpectedly. Please try again."

// EvaluateHandler runs one evaluation to a terminal state.
type EvaluateHandler interface {
	HandleEvaluate(ctx context.Context, payload domain.EvaluateTaskPayload) error
}

// Run executes h under timeout. Panics and failures whose ERROR state was not
// written are turned into a forced ERROR write so no run ends in PROCESSING.
func Run(ctx context.Context, repo domain.InterviewRepository, h EvaluateHandler, payload domain.EvaluateTaskPayload, timeout time.Duration) (err error) {
	if payload.RequestID != "" {
		ctx = intobs.ContextWithRequestID(ctx, payload.RequestID)
	}
	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			intobs.LoggerFromContext(ctx).Error("evaluation panicked",
				slog.String("interview_id", payload.InterviewID),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
			ForceError(ctx, repo, payload.InterviewID, CrashMessage)
			err = fmt.Errorf("%w: panic: %v", domain.ErrInternal, r)
		}
	}()

	err = h.HandleEvaluate(runCtx, payload)
	if errors.Is(err, ErrStateNotPersisted) {
		ForceError(ctx, repo, payload.InterviewID, FailureMessage(err))
	}
	return err
}
