package redpanda

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/plugin/kotel"
	"go.opentelemetry.io/otel/trace"

	"github.com/fairyhunter13/ai-interview-evaluator/internal/adapter/queue/shared"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/domain"
	intobs "github.com/fairyhunter13/ai-interview-evaluator/internal/observability"
)

type groupClient interface {
	PollRecords(ctx context.Context, maxPollRecords int) kgo.Fetches
	CommitRecords(ctx context.Context, rs ...*kgo.Record) error
	Close()
}

// ConsumerConfig tunes a Consumer.
type ConsumerConfig struct {
	Brokers     []string
	GroupID     string
	Topic       string
	Concurrency int
	EvalTimeout time.Duration
}

// Consumer reads evaluation payloads and runs them through the orchestrator.
// Offsets are committed only after a batch finished, so a crashed worker's
// jobs are redelivered.
type Consumer struct {
	client      groupClient
	tracer      *kotel.Tracer
	repo        domain.InterviewRepository
	handler     shared.EvaluateHandler
	concurrency int
	timeout     time.Duration
	backoff     time.Duration
}

// NewConsumer joins the consumer group described by cfg.
func NewConsumer(ctx context.Context, cfg ConsumerConfig, repo domain.InterviewRepository, handler shared.EvaluateHandler) (*Consumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("no seed brokers provided")
	}
	if cfg.GroupID == "" {
		return nil, fmt.Errorf("missing required group ID")
	}
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}

	admin, err := kgo.NewClient(kgo.SeedBrokers(cfg.Brokers...))
	if err != nil {
		return nil, fmt.Errorf("redpanda admin client: %w", err)
	}
	if err := ensureTopic(ctx, admin, cfg.Topic, 3, 1); err != nil {
		slog.Warn("failed to ensure topic", slog.String("topic", cfg.Topic), slog.Any("error", err))
	}
	admin.Close()

	tracer, k := newKotel()
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ConsumerGroup(cfg.GroupID),
		kgo.ConsumeTopics(cfg.Topic),
		kgo.DisableAutoCommit(),
		kgo.FetchIsolationLevel(kgo.ReadCommitted()),
		kgo.SessionTimeout(30*time.Second),
		kgo.RebalanceTimeout(cfg.EvalTimeout+30*time.Second),
		kgo.WithHooks(k.Hooks()...),
	)
	if err != nil {
		return nil, fmt.Errorf("redpanda consumer client: %w", err)
	}
	slog.Info("redpanda consumer ready",
		slog.String("group_id", cfg.GroupID),
		slog.String("topic", cfg.Topic),
		slog.Int("concurrency", cfg.Concurrency))
	c := newConsumer(client, repo, handler, cfg.Concurrency, cfg.EvalTimeout)
	c.tracer = tracer
	return c, nil
}

func newConsumer(client groupClient, repo domain.InterviewRepository, handler shared.EvaluateHandler, concurrency int, timeout time.Duration) *Consumer {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Consumer{
		client:      client,
		repo:        repo,
		handler:     handler,
		concurrency: concurrency,
		timeout:     timeout,
		backoff:     2 * time.Second,
	}
}

// Start polls until ctx is cancelled. In-flight batches finish before it returns.
func (c *Consumer) Start(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		fetches := c.client.PollRecords(ctx, c.concurrency)
		if fetches.IsClientClosed() {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errs := fetches.Errors(); len(errs) > 0 {
			for _, fe := range errs {
				slog.Error("fetch error",
					slog.String("topic", fe.Topic),
					slog.Int("partition", int(fe.Partition)),
					slog.Any("error", fe.Err))
			}
			sleepCtx(ctx, c.backoff)
			continue
		}

		var records []*kgo.Record
		fetches.EachRecord(func(r *kgo.Record) { records = append(records, r) })
		if len(records) == 0 {
			continue
		}
		c.processBatch(ctx, records)

		// commit on a detached context so a shutdown does not lose finished work
		commitCtx, cancel := context.WithTimeout(intobs.DetachedContext(ctx), 10*time.Second)
		if err := c.client.CommitRecords(commitCtx, records...); err != nil {
			slog.Error("failed to commit offsets", slog.Int("records", len(records)), slog.Any("error", err))
		}
		cancel()
	}
}

func (c *Consumer) processBatch(ctx context.Context, records []*kgo.Record) {
	var wg sync.WaitGroup
	sem := make(chan struct{}, c.concurrency)
	for _, r := range records {
		sem <- struct{}{}
		wg.Add(1)
		go func(r *kgo.Record) {
			defer wg.Done()
			defer func() { <-sem }()
			if err := c.processRecord(ctx, r); err != nil {
				slog.Warn("evaluation record finished with error",
					slog.Int64("offset", r.Offset),
					slog.Int("partition", int(r.Partition)),
					slog.Any("error", err))
			}
		}(r)
	}
	wg.Wait()
}

// errBadPayload marks records that can never be processed.
var errBadPayload = errors.New("bad evaluation payload")

func (c *Consumer) processRecord(ctx context.Context, record *kgo.Record) error {
	if c.tracer != nil {
		// keep ctx for cancellation; only the span links to the producer
		_, span := c.tracer.WithProcessSpan(record)
		defer span.End()
		ctx = trace.ContextWithSpan(ctx, span)
	}

	var payload domain.EvaluateTaskPayload
	if err := json.Unmarshal(record.Value, &payload); err != nil {
		return fmt.Errorf("%w: %v", errBadPayload, err)
	}
	if payload.InterviewID == "" {
		return fmt.Errorf("%w: missing interview id", errBadPayload)
	}

	lg := intobs.LoggerFromContext(ctx).With(
		slog.String("interview_id", payload.InterviewID),
		slog.Int64("offset", record.Offset))
	if payload.RequestID != "" {
		lg = lg.With(slog.String("request_id", payload.RequestID))
	}
	ctx = intobs.ContextWithLogger(ctx, lg)
	return shared.Run(ctx, c.repo, c.handler, payload, c.timeout)
}

// Close leaves the group and closes the client.
func (c *Consumer) Close() error {
	if c.client != nil {
		c.client.Close()
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
