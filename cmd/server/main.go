// Command server starts the AI Interview Evaluator HTTP server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	httpserver "github.com/fairyhunter13/ai-interview-evaluator/internal/adapter/httpserver"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/adapter/observability"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/adapter/queue/inproc"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/adapter/queue/redpanda"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/adapter/repo/postgres"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/app"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/config"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/domain"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/service/ratelimiter"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/usecase"
)

func main() {
	issueFor := flag.String("issue-token", "", "print a session token for the given owner id and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)

	sessions := httpserver.NewSessionManager(cfg.SessionSecret, cfg.SessionTTL)
	if *issueFor != "" {
		if sessions == nil {
			slog.Error("SESSION_SECRET is not set; cannot issue tokens")
			os.Exit(1)
		}
		tok, err := sessions.IssueToken(*issueFor)
		if err != nil {
			slog.Error("issue token failed", slog.Any("error", err))
			os.Exit(1)
		}
		fmt.Println(tok)
		return
	}
	if sessions == nil {
		slog.Warn("SESSION_SECRET not set; trusting " + httpserver.DevUserHeader + " header for identity")
	}

	observability.InitMetrics()

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.NewPool(ctx, cfg.DBURL)
	if err != nil {
		slog.Error("db connect failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()
	if err := postgres.Migrate(ctx, pool); err != nil {
		slog.Error("db migrate failed", slog.Any("error", err))
		os.Exit(1)
	}

	repo := postgres.NewInterviewRepo(pool)
	if cfg.SeedFile != "" {
		n, err := seedInterviews(ctx, repo, cfg.SeedFile)
		if err != nil {
			slog.Error("seeding failed", slog.Any("error", err))
		} else {
			slog.Info("seed complete", slog.Int("created", n))
		}
	}

	var (
		rdb     *redis.Client
		limiter domain.RateLimiter
	)
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			slog.Error("invalid REDIS_URL", slog.Any("error", err))
			os.Exit(1)
		}
		rdb = redis.NewClient(opts)
		defer func() { _ = rdb.Close() }()
		if sw := ratelimiter.NewSlidingWindow(rdb, cfg.RateLimitWindow, cfg.RateLimitQuota); sw != nil {
			limiter = sw
		}
	}

	var (
		queue     domain.Queue
		queuePing app.Pinger
		runner    *inproc.Runner
		producer  *redpanda.Producer
	)
	switch cfg.QueueBackend {
	case config.QueueRedpanda:
		producer, err = redpanda.NewProducer(ctx, cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			slog.Error("redpanda producer connect failed", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() {
			if err := producer.Close(); err != nil {
				slog.Error("failed to close queue client", slog.Any("error", err))
			}
		}()
		queue, queuePing = producer, producer
		slog.Info("durable queue enabled; evaluations run in the worker", slog.String("topic", cfg.KafkaTopic))
	default:
		gw, err := app.BuildGateway(ctx, cfg)
		if err != nil {
			slog.Error("language model gateway init failed", slog.Any("error", err))
			os.Exit(1)
		}
		orch, err := app.BuildOrchestrator(cfg, repo, gw)
		if err != nil {
			slog.Error("orchestrator init failed", slog.Any("error", err))
			os.Exit(1)
		}
		runner = inproc.New(repo, orch, cfg.WorkerConcurrency, cfg.EvalTimeout())
		queue = runner
		slog.Info("in-process evaluation runner enabled",
			slog.Int("concurrency", cfg.WorkerConcurrency),
			slog.Duration("eval_timeout", cfg.EvalTimeout()))
	}

	evalSvc := usecase.NewEvaluateService(repo, queue)
	statusSvc := usecase.NewStatusService(repo)

	var redisPing app.Pinger
	if rdb != nil {
		redisPing = app.RedisPinger(rdb)
	}
	checks := app.BuildReadinessChecks(pool, redisPing, queuePing)
	srv := httpserver.NewServer(cfg, evalSvc, statusSvc, checks...)
	handler := app.BuildRouter(cfg, srv, sessions, limiter)

	go app.NewStuckJobSweeper(repo, cfg.StuckAfter, cfg.SweepInterval).Run(ctx)
	cleanupSvc := postgres.NewCleanupService(repo, cfg.DataRetentionDays)
	if cleanupSvc.Enabled() {
		go cleanupSvc.RunPeriodic(ctx, cfg.CleanupInterval)
		slog.Info("cleanup service started", slog.Int("retention_days", cfg.DataRetentionDays), slog.Duration("interval", cfg.CleanupInterval))
	}

	srvHTTP := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadTimeout:       cfg.HTTPReadTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server starting", slog.Int("port", cfg.Port), slog.String("queue_backend", cfg.QueueBackend))
		errCh <- srvHTTP.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", slog.Any("error", err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ServerShutdownTimeout)
	defer cancel()
	if err := srvHTTP.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown failed", slog.Any("error", err))
	}
	if runner != nil {
		if err := runner.Shutdown(shutdownCtx); err != nil {
			slog.Warn("in-flight evaluations cancelled at shutdown", slog.Any("error", err))
		}
	}
}
