// Package usecase contains application business logic services.
package usecase

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/fairyhunter13/ai-interview-evaluator/internal/domain"
	intobs "github.com/fairyhunter13/ai-interview-evaluator/internal/observability"
)

// EnqueueFailedMessage is stored when the evaluation could not be scheduled.
const EnqueueFailedMessage = "Evaluation could not be started. Please try again."

// EvaluateInput is the evaluation request body.
type EvaluateInput struct {
	InterviewID       string                  `json:"interviewId" validate:"required,max=100"`
	InterviewData     []domain.QuestionAnswer `json:"interviewData" validate:"required,min=1,max=50,dive"`
	Difficulty        string                  `json:"difficulty" validate:"required,max=50"`
	YearsOfExperience string                  `json:"yearsOfExperience" validate:"required,max=50"`
	Duration          int                     `json:"duration" validate:"gte=0"`
}

// ValidationError lists the offending fields of a rejected request.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for f := range e.Fields {
		names = append(names, f)
	}
	sort.Strings(names)
	return "invalid argument: validation failed: " + strings.Join(names, ", ")
}

// Unwrap lets errors.Is match domain.ErrInvalidArgument.
func (e *ValidationError) Unwrap() error { return domain.ErrInvalidArgument }

var (
	vldOnce sync.Once
	vld     *validator.Validate
)

func getValidator() *validator.Validate {
	vldOnce.Do(func() {
		vld = validator.New()
		vld.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
		vld.RegisterStructValidation(questionAnswerValidation, domain.QuestionAnswer{})
	})
	return vld
}

func questionAnswerValidation(sl validator.StructLevel) {
	qa := sl.Current().Interface().(domain.QuestionAnswer)
	if strings.TrimSpace(qa.AIQuestion) == "" {
		sl.ReportError(qa.AIQuestion, "aiQuestion", "AIQuestion", "required", "")
	}
	if len(qa.AIQuestion) > 4000 || len(qa.AIAnswer) > 8000 || len(qa.UserAnswer) > 8000 {
		sl.ReportError(qa.UserAnswer, "userAnswer", "UserAnswer", "max", "")
	}
}

// Validate checks the request shape before any side effect.
func (in EvaluateInput) Validate() error {
	err := getValidator().Struct(in)
	if err == nil {
		return nil
	}
	fields := map[string]string{}
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			fields[jsonFieldName(fe.Namespace())] = fe.Tag()
		}
	} else {
		fields["body"] = err.Error()
	}
	return &ValidationError{Fields: fields}
}

// jsonFieldName drops the struct name from a validator namespace.
func jsonFieldName(ns string) string {
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

// EvaluateService validates ownership, takes the PROCESSING lease and hands the
// run to the queue without waiting for it.
type EvaluateService struct {
	Interviews domain.InterviewRepository
	Queue      domain.Queue
}

// NewEvaluateService constructs an EvaluateService with its dependencies.
func NewEvaluateService(r domain.InterviewRepository, q domain.Queue) EvaluateService {
	return EvaluateService{Interviews: r, Queue: q}
}

// Dispatch starts the evaluation of in.InterviewID on behalf of ownerID and
// returns the interview id once the interview is PROCESSING.
func (s EvaluateService) Dispatch(ctx domain.Context, ownerID string, in EvaluateInput) (string, error) {
	if err := in.Validate(); err != nil {
		return "", err
	}
	if ownerID == "" {
		return "", fmt.Errorf("%w: missing owner", domain.ErrUnauthenticated)
	}
	lg := intobs.LoggerFromContext(ctx).With(slog.String("interview_id", in.InterviewID))

	iv, err := s.Interviews.FindOwned(ctx, in.InterviewID, ownerID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", fmt.Errorf("%w: interview not found", domain.ErrNotFound)
		}
		return "", fmt.Errorf("op=evaluate.find: %w", err)
	}
	if n := len(iv.Questions); n > 0 && n != len(in.InterviewData) {
		return "", &ValidationError{Fields: map[string]string{"interviewData": fmt.Sprintf("len=%d", n)}}
	}

	if err := s.Interviews.TryMarkProcessing(ctx, iv.ID); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return "", fmt.Errorf("%w: evaluation already in progress", domain.ErrConflict)
		}
		return "", fmt.Errorf("op=evaluate.mark_processing: %w", err)
	}

	payload := domain.EvaluateTaskPayload{
		InterviewID:       iv.ID,
		OwnerID:           ownerID,
		Questions:         evaluationQuestions(iv.Questions, in.InterviewData),
		Difficulty:        in.Difficulty,
		YearsOfExperience: in.YearsOfExperience,
		Language:          iv.Language,
		Duration:          in.Duration,
		RequestID:         intobs.RequestIDFromContext(ctx),
	}
	taskID, err := s.Queue.EnqueueEvaluate(ctx, payload)
	if err != nil {
		lg.Error("failed to enqueue evaluation", slog.Any("error", err))
		if ferr := s.Interviews.Fail(intobs.DetachedContext(ctx), iv.ID, EnqueueFailedMessage); ferr != nil {
			lg.Error("failed to release processing state", slog.Any("error", ferr))
		}
		return "", fmt.Errorf("%w: enqueue: %v", domain.ErrInternal, err)
	}
	lg.Info("evaluation dispatched", slog.String("task_id", taskID), slog.Int("questions", len(in.InterviewData)))
	return iv.ID, nil
}

// evaluationQuestions takes question and reference answer from the stored records
// by position; only the candidate's answer comes from the request. Interviews
// without stored questions are evaluated as submitted.
func evaluationQuestions(stored []domain.QuestionRecord, submitted []domain.QuestionAnswer) []domain.QuestionAnswer {
	if len(stored) == 0 {
		return submitted
	}
	ordered := make([]domain.QuestionRecord, len(stored))
	copy(ordered, stored)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Position < ordered[j].Position })

	out := make([]domain.QuestionAnswer, len(ordered))
	for i, q := range ordered {
		out[i] = domain.QuestionAnswer{AIQuestion: q.AIQuestion, AIAnswer: q.AIAnswer}
		if i < len(submitted) {
			out[i].UserAnswer = submitted[i].UserAnswer
		}
	}
	return out
}
