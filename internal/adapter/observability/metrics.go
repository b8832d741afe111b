package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"route", "method"},
	)

	AIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_requests_total",
			Help: "Total number of AI requests by provider and outcome",
		},
		[]string{"provider", "outcome"},
	)
	AIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ai_request_duration_seconds",
			Help:    "AI request duration in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 80},
		},
		[]string{"provider"},
	)
	AIPromptTokens = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ai_prompt_tokens",
			Help:    "Estimated prompt size in tokens",
			Buckets: prometheus.ExponentialBuckets(64, 2, 10),
		},
		[]string{"operation"},
	)
	AIFallbacksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ai_fallbacks_total",
			Help: "Number of calls served by the secondary provider",
		},
	)

	EvaluationsEnqueuedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "interview_evaluations_enqueued_total",
			Help: "Total number of evaluations dispatched",
		},
	)
	EvaluationsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "interview_evaluations_in_flight",
			Help: "Number of evaluations currently running",
		},
	)
	EvaluationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "interview_evaluations_total",
			Help: "Total number of finished evaluations by outcome",
		},
		[]string{"outcome"},
	)
	EvaluationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "interview_evaluation_duration_seconds",
			Help:    "Wall clock of one evaluation run",
			Buckets: []float64{1, 5, 10, 20, 40, 60, 120, 240, 300},
		},
	)
	EvaluationAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "interview_evaluation_attempts_total",
			Help: "Answer evaluation attempts by result",
		},
		[]string{"result"},
	)
	InterviewScoreHistogram = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "interview_score",
			Help:    "Distribution of aggregate interview scores ([0,100])",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		},
	)
	StuckInterviewsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "interview_stuck_reconciled_total",
			Help: "Interviews moved from PROCESSING to ERROR by the sweeper",
		},
	)
	RateLimitedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_rate_limited_total",
			Help: "Requests rejected by the rate limiter",
		},
		[]string{"route"},
	)

	initOnce sync.Once
)

// InitMetrics registers all collectors with the default registry. Safe to call more than once.
func InitMetrics() {
	initOnce.Do(func() {
		prometheus.MustRegister(HTTPRequestsTotal)
		prometheus.MustRegister(HTTPRequestDuration)
		prometheus.MustRegister(AIRequestsTotal)
		prometheus.MustRegister(AIRequestDuration)
		prometheus.MustRegister(AIPromptTokens)
		prometheus.MustRegister(AIFallbacksTotal)
		prometheus.MustRegister(EvaluationsEnqueuedTotal)
		prometheus.MustRegister(EvaluationsInFlight)
		prometheus.MustRegister(EvaluationsTotal)
		prometheus.MustRegister(EvaluationDuration)
		prometheus.MustRegister(EvaluationAttemptsTotal)
		prometheus.MustRegister(InterviewScoreHistogram)
		prometheus.MustRegister(StuckInterviewsTotal)
		prometheus.MustRegister(RateLimitedTotal)
	})
}

// HTTPMetricsMiddleware records Prometheus metrics for each request.
func HTTPMetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		dur := time.Since(start).Seconds()
		// Route pattern may be unavailable outside chi router; guard nil
		var route string
		if rc := chi.RouteContext(r.Context()); rc != nil {
			route = rc.RoutePattern()
		}
		if route == "" {
			route = r.URL.Path
		}
		method := r.Method
		status := ww.Status()
		HTTPRequestsTotal.WithLabelValues(route, method, http.StatusText(status)).Inc()
		HTTPRequestDuration.WithLabelValues(route, method).Observe(dur)
	})
}

// ObserveAIRequest records one provider call.
func ObserveAIRequest(provider, outcome string, d time.Duration) {
	AIRequestsTotal.WithLabelValues(provider, outcome).Inc()
	AIRequestDuration.WithLabelValues(provider).Observe(d.Seconds())
}

func EnqueueEvaluation() {
	EvaluationsEnqueuedTotal.Inc()
}

func StartEvaluation() {
	EvaluationsInFlight.Inc()
}

// FinishEvaluation records the terminal outcome ("completed" or "error") of one run.
func FinishEvaluation(outcome string, d time.Duration) {
	EvaluationsInFlight.Dec()
	EvaluationsTotal.WithLabelValues(outcome).Inc()
	EvaluationDuration.Observe(d.Seconds())
}

// ObserveInterviewScore records the aggregate score of a completed evaluation.
func ObserveInterviewScore(score float64) {
	if score >= 0 && score <= 100 {
		InterviewScoreHistogram.Observe(score)
	}
}

// RateLimited counts one rejected request on route.
func RateLimited(route string) {
	RateLimitedTotal.WithLabelValues(route).Inc()
}

// StuckReconciled counts interviews failed by the sweeper.
func StuckReconciled(n int) {
	StuckInterviewsTotal.Add(float64(n))
}
