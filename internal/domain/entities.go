package domain

import (
	"context"
	"errors"
	"time"
)

// Error taxonomy (sentinels)
var (
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrUnauthenticated     = errors.New("unauthenticated")
	ErrNotFound            = errors.New("not found")
	ErrConflict            = errors.New("conflict")
	ErrRateLimited         = errors.New("rate limited")
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrMalformedResponse   = errors.New("malformed response")
	ErrCancelled           = errors.New("cancelled")
	ErrInternal            = errors.New("internal error")
)

// ProviderUnavailableError is returned by the gateway when both the primary and the
// secondary provider failed for the same prompt.
type ProviderUnavailableError struct {
	Primary   string
	Secondary string
}

func (e *ProviderUnavailableError) Error() string {
	return "provider unavailable: primary: " + e.Primary + "; secondary: " + e.Secondary
}

// Unwrap lets errors.Is match ErrProviderUnavailable.
func (e *ProviderUnavailableError) Unwrap() error { return ErrProviderUnavailable }

// InterviewStatus is the evaluation state of an interview.
type InterviewStatus string

const (
	InterviewCreated    InterviewStatus = "CREATED"
	InterviewProcessing InterviewStatus = "PROCESSING"
	InterviewCompleted  InterviewStatus = "COMPLETED"
	InterviewError      InterviewStatus = "ERROR"
)

// Terminal reports whether no further automatic transition happens from s.
func (s InterviewStatus) Terminal() bool {
	return s == InterviewCompleted || s == InterviewError
}

// Learning resource types
const (
	ResourceDocumentation = "documentation"
	ResourceArticle       = "article"
	ResourceTutorial      = "tutorial"
	ResourceVideo         = "video"
)

// NormalizeResourceType maps unknown types to article.
func NormalizeResourceType(t string) string {
	switch t {
	case ResourceDocumentation, ResourceArticle, ResourceTutorial, ResourceVideo:
		return t
	default:
		return ResourceArticle
	}
}

type LearningResource struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

// QuestionAnswer is the immutable input part of a question record.
type QuestionAnswer struct {
	AIQuestion string `json:"aiQuestion"`
	AIAnswer   string `json:"aiAnswer"`
	UserAnswer string `json:"userAnswer"`
}

// QuestionRecord is one ordered question of an interview.
// Invariants: Position is fixed before evaluation; scores in [0,100].
type QuestionRecord struct {
	Position            int                `json:"position"`
	AIQuestion          string             `json:"aiQuestion"`
	AIAnswer            string             `json:"aiAnswer"`
	UserAnswer          string             `json:"userAnswer"`
	QuestionScore       float64            `json:"questionsScore"`
	TechnicalScore      float64            `json:"technicalScore"`
	CommunicationScore  float64            `json:"communicationScore"`
	ProblemSolvingScore float64            `json:"problemSolvingScore"`
	QuestionFeedback    string             `json:"questionFeedback"`
	LearningResources   []LearningResource `json:"learningResources"`
}

// Interview is the aggregate root of one mock-interview session.
// Invariants: aggregate scores are nil until COMPLETED; ErrorMessage is non-empty iff ERROR.
type Interview struct {
	ID                  string           `json:"id"`
	OwnerID             string           `json:"ownerId"`
	Status              InterviewStatus  `json:"status"`
	Difficulty          string           `json:"difficulty"`
	YearsOfExperience   string           `json:"yearsOfExperience"`
	Language            string           `json:"language"`
	Duration            int              `json:"duration"`
	InterviewScore      *float64         `json:"interviewScore"`
	TechnicalScore      *float64         `json:"technicalScore"`
	CommunicationScore  *float64         `json:"communicationScore"`
	ProblemSolvingScore *float64         `json:"problemSolvingScore"`
	SkillsAssessed      []string         `json:"skillsAssessed"`
	OverallFeedback     string           `json:"overAllFeedback"`
	ErrorMessage        string           `json:"errorMessage,omitempty"`
	QuestionsAnswered   int              `json:"questionsAnswered"`
	Questions           []QuestionRecord `json:"questions"`
	CreatedAt           time.Time        `json:"createdAt"`
	UpdatedAt           time.Time        `json:"updatedAt"`
}

// Completion carries everything written on the COMPLETED transition.
type Completion struct {
	InterviewScore      float64
	TechnicalScore      float64
	CommunicationScore  float64
	ProblemSolvingScore float64
	SkillsAssessed      []string
	OverallFeedback     string
	QuestionsAnswered   int
	Duration            int
	Questions           []QuestionRecord
}

// Repositories (ports)

type InterviewRepository interface {
	Find(ctx Context, id string) (Interview, error)
	// FindOwned matches id and owner in a single lookup; a mismatch is ErrNotFound.
	FindOwned(ctx Context, id, ownerID string) (Interview, error)
	// TryMarkProcessing flips the status to PROCESSING unless it already is.
	// Returns ErrConflict when another evaluation holds the interview.
	TryMarkProcessing(ctx Context, id string) error
	// Complete writes the COMPLETED state and replaces all question records atomically.
	Complete(ctx Context, id string, c Completion) error
	Fail(ctx Context, id string, message string) error
	ListStuck(ctx Context, olderThan time.Time, limit int) ([]Interview, error)
}

// Queue (port)

type Queue interface {
	EnqueueEvaluate(ctx Context, payload EvaluateTaskPayload) (string, error)
}

// TextGenerator is the uniform generate-from-prompt call of the LLM gateway.
type TextGenerator interface {
	Generate(ctx Context, prompt string) (string, error)
}

// Provider is one language-model backend behind the gateway.
type Provider interface {
	Name() string
	Generate(ctx Context, prompt string) (string, error)
}

// RateLimiter decides whether key may perform another request in the current window.
type RateLimiter interface {
	Allow(ctx Context, key string) (bool, time.Duration, error)
}

// EvaluateTaskPayload

type EvaluateTaskPayload struct {
	InterviewID       string           `json:"interview_id"`
	OwnerID           string           `json:"owner_id"`
	Questions         []QuestionAnswer `json:"questions"`
	Difficulty        string           `json:"difficulty"`
	YearsOfExperience string           `json:"years_of_experience"`
	Language          string           `json:"language"`
	Duration          int              `json:"duration"`
	RequestID         string           `json:"request_id,omitempty"`
}

// Context is an alias to allow decoupling from std context in domain.
type Context = context.Context
