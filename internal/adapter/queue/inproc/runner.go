// Package inproc runs evaluations on goroutines inside the API process.
package inproc

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fairyhunter13/ai-interview-evaluator/internal/adapter/observability"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/adapter/queue/shared"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/domain"
	intobs "github.com/fairyhunter13/ai-interview-evaluator/internal/observability"
)

// ErrClosed is returned by EnqueueEvaluate after Shutdown.
var ErrClosed = errors.New("runner closed")

// Runner implements domain.Queue by starting a detached goroutine per job.
type Runner struct {
	repo    domain.InterviewRepository
	handler shared.EvaluateHandler
	timeout time.Duration
	sem     chan struct{}

	base   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// New builds a runner allowing at most concurrency evaluations at a time.
func New(repo domain.InterviewRepository, handler shared.EvaluateHandler, concurrency int, timeout time.Duration) *Runner {
	if concurrency <= 0 {
		concurrency = 1
	}
	base, cancel := context.WithCancel(context.Background())
	return &Runner{
		repo:    repo,
		handler: handler,
		timeout: timeout,
		sem:     make(chan struct{}, concurrency),
		base:    base,
		cancel:  cancel,
	}
}

// EnqueueEvaluate schedules payload and returns immediately. The run is not bound
// to ctx; only its logger and request id are carried over.
func (r *Runner) EnqueueEvaluate(ctx domain.Context, payload domain.EvaluateTaskPayload) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return "", ErrClosed
	}

	taskID := uuid.NewString()
	runCtx := intobs.ContextWithLogger(r.base, intobs.LoggerFromContext(ctx))
	runCtx = intobs.ContextWithRequestID(runCtx, intobs.RequestIDFromContext(ctx))

	r.wg.Add(1)
	go r.run(runCtx, taskID, payload)
	observability.EnqueueEvaluation()
	return taskID, nil
}

func (r *Runner) run(ctx context.Context, taskID string, payload domain.EvaluateTaskPayload) {
	defer r.wg.Done()
	lg := intobs.LoggerFromContext(ctx).With(
		slog.String("task_id", taskID),
		slog.String("interview_id", payload.InterviewID))

	select {
	case r.sem <- struct{}{}:
	case <-ctx.Done():
		shared.ForceError(ctx, r.repo, payload.InterviewID, shared.TimeoutMessage)
		return
	}
	defer func() { <-r.sem }()

	if err := shared.Run(intobs.ContextWithLogger(ctx, lg), r.repo, r.handler, payload, r.timeout); err != nil {
		lg.Warn("evaluation finished with error", slog.Any("error", err))
	}
}

// Shutdown stops accepting jobs and waits for in-flight runs. When ctx expires
// first the remaining runs are cancelled and recorded as ERROR.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		r.cancel()
		return nil
	case <-ctx.Done():
		r.cancel()
		<-done
		return ctx.Err()
	}
}
