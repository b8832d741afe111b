package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/fairyhunter13/ai-interview-evaluator/internal/config"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/domain"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/usecase"
)

// ReadinessCheck is one named dependency probe used by /readyz.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Server aggregates the HTTP handlers' dependencies.
type Server struct {
	Cfg      config.Config
	Evaluate usecase.EvaluateService
	Status   usecase.StatusService
	checks   []ReadinessCheck
}

// NewServer constructs a Server.
func NewServer(cfg config.Config, evalSvc usecase.EvaluateService, statusSvc usecase.StatusService, checks ...ReadinessCheck) *Server {
	return &Server{Cfg: cfg, Evaluate: evalSvc, Status: statusSvc, checks: checks}
}

type evaluateResponse struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	InterviewID string `json:"interviewId"`
}

type statusResponse struct {
	Success bool                   `json:"success"`
	Status  domain.InterviewStatus `json:"status"`
	Data    *domain.Interview      `json:"data"`
	Error   *string                `json:"error"`
}

// EvaluateHandler handles POST /interview/evaluate. It returns as soon as
// the evaluation is scheduled.
func (s *Server) EvaluateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "application/json") {
			writeError(w, r, fmt.Errorf("%w: content-type must be application/json", domain.ErrInvalidArgument), nil)
			return
		}
		var in usecase.EvaluateInput
		dec := json.NewDecoder(r.Body)
		if err := dec.Decode(&in); err != nil {
			var mbe *http.MaxBytesError
			if errors.As(err, &mbe) {
				writeError(w, r, fmt.Errorf("%w: request body too large", domain.ErrInvalidArgument), map[string]int64{"limitBytes": mbe.Limit})
				return
			}
			writeError(w, r, fmt.Errorf("%w: invalid json", domain.ErrInvalidArgument), nil)
			return
		}
		id, err := s.Evaluate.Dispatch(r.Context(), OwnerFromContext(r.Context()), in)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		LoggerFrom(r).Info("evaluation scheduled", slog.String("interview_id", id))
		writeJSON(w, http.StatusOK, evaluateResponse{Success: true, Message: "Evaluation started", InterviewID: id})
	}
}

// StatusHandler handles GET /interview?id=.
func (s *Server) StatusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.URL.Query().Get("id"))
		if id == "" {
			writeError(w, r, fmt.Errorf("%w: id required", domain.ErrInvalidArgument), map[string]string{"id": "required"})
			return
		}
		view, err := s.Status.Fetch(r.Context(), id, OwnerFromContext(r.Context()))
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, statusResponse{Success: true, Status: view.Status, Data: view.Data, Error: view.Error})
	}
}

// HealthzHandler reports liveness.
func (s *Server) HealthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// ReadyzHandler runs every readiness check and reports 503 if any fails.
func (s *Server) ReadyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		type result struct {
			Name    string `json:"name"`
			OK      bool   `json:"ok"`
			Details string `json:"details,omitempty"`
		}
		results := make([]result, 0, len(s.checks))
		allOK := true
		for _, c := range s.checks {
			res := result{Name: c.Name, OK: true}
			if err := c.Check(ctx); err != nil {
				res.OK = false
				res.Details = err.Error()
				allOK = false
				LoggerFrom(r).Warn("readiness check failed", slog.String("check", c.Name), slog.Any("error", err))
			}
			results = append(results, res)
		}
		code := http.StatusOK
		if !allOK {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, map[string]interface{}{"checks": results})
	}
}
