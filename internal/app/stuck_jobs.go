package app

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fairyhunter13/ai-interview-evaluator/internal/adapter/observability"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/domain"
)

// StuckMessage is stored on interviews the sweeper gives up on.
const StuckMessage = "Evaluation did not complete. Please try again."

// StuckJobSweeper fails interviews left in PROCESSING by a crashed process.
type StuckJobSweeper struct {
	interviews domain.InterviewRepository
	stuckAfter time.Duration
	interval   time.Duration
	now        func() time.Time
}

func NewStuckJobSweeper(interviews domain.InterviewRepository, stuckAfter, interval time.Duration) *StuckJobSweeper {
	if interviews == nil {
		return nil
	}
	if stuckAfter <= 0 {
		stuckAfter = 10 * time.Minute
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &StuckJobSweeper{
		interviews: interviews,
		stuckAfter: stuckAfter,
		interval:   interval,
		now:        time.Now,
	}
}

func (s *StuckJobSweeper) Run(ctx context.Context) {
	if s == nil {
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sweepOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("stuck interview sweeper stopping")
			return
		case <-ticker.C:
			s.sweepOnce(ctx)
		}
	}
}

func (s *StuckJobSweeper) sweepOnce(ctx context.Context) int {
	tracer := otel.Tracer("interviews.sweeper")
	ctx, span := tracer.Start(ctx, "StuckJobSweeper.sweepOnce")
	defer span.End()

	cutoff := s.now().Add(-s.stuckAfter)
	const pageSize = 100
	span.SetAttributes(
		attribute.Int("interviews.page_size", pageSize),
		attribute.Float64("interviews.stuck_after_seconds", s.stuckAfter.Seconds()),
	)

	total := 0
	for {
		stuck, err := s.interviews.ListStuck(ctx, cutoff, pageSize)
		if err != nil {
			span.RecordError(err)
			slog.Error("stuck interview sweep failed to list", slog.Any("error", err))
			break
		}
		marked := 0
		for _, iv := range stuck {
			if err := s.interviews.Fail(ctx, iv.ID, StuckMessage); err != nil {
				span.RecordError(err)
				slog.Error("stuck interview sweep failed to mark error", slog.String("interview_id", iv.ID), slog.Any("error", err))
				continue
			}
			slog.Warn("interview marked failed by sweeper",
				slog.String("interview_id", iv.ID),
				slog.Time("updated_at", iv.UpdatedAt))
			marked++
		}
		total += marked
		// A page with no progress would be listed again unchanged.
		if len(stuck) < pageSize || marked == 0 {
			break
		}
	}

	observability.StuckReconciled(total)
	span.SetAttributes(attribute.Int("interviews.total_marked_failed", total))
	return total
}
