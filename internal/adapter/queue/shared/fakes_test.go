package shared

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/fairyhunter13/ai-interview-evaluator/internal/domain"
)

// scriptedGen answers each Generate call with the next scripted reply.
type scriptedGen struct {
	mu      sync.Mutex
	replies []reply
	prompts []string
	// route picks a reply by prompt when set; replies is then ignored
	route func(prompt string) (string, error)
}

type reply struct {
	text string
	err  error
}

func (g *scriptedGen) Generate(ctx context.Context, prompt string) (string, error) {
	g.mu.Lock()
	g.prompts = append(g.prompts, prompt)
	route := g.route
	var r reply
	if route == nil {
		if len(g.replies) == 0 {
			g.mu.Unlock()
			return "", errors.New("no scripted reply")
		}
		r = g.replies[0]
		if len(g.replies) > 1 {
			g.replies = g.replies[1:]
		}
	}
	g.mu.Unlock()
	if route != nil {
		return route(prompt)
	}
	return r.text, r.err
}

func (g *scriptedGen) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.prompts)
}

func (g *scriptedGen) callsMatching(substr string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, p := range g.prompts {
		if strings.Contains(p, substr) {
			n++
		}
	}
	return n
}

// recordingSleep captures backoff waits without sleeping.
type recordingSleep struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (s *recordingSleep) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.waits = append(s.waits, d)
	s.mu.Unlock()
	return ctx.Err()
}

// memRepo is an in-memory InterviewRepository.
type memRepo struct {
	mu         sync.Mutex
	interviews map[string]domain.Interview
	findErr    error
	failErr    error
	completed  map[string]domain.Completion
	failed     map[string]string
}

func newMemRepo(ivs ...domain.Interview) *memRepo {
	r := &memRepo{
		interviews: map[string]domain.Interview{},
		completed:  map[string]domain.Completion{},
		failed:     map[string]string{},
	}
	for _, iv := range ivs {
		r.interviews[iv.ID] = iv
	}
	return r
}

func (r *memRepo) Find(_ context.Context, id string) (domain.Interview, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return domain.Interview{}, r.findErr
	}
	iv, ok := r.interviews[id]
	if !ok {
		return domain.Interview{}, domain.ErrNotFound
	}
	return iv, nil
}

func (r *memRepo) FindOwned(ctx context.Context, id, owner string) (domain.Interview, error) {
	iv, err := r.Find(ctx, id)
	if err != nil {
		return iv, err
	}
	if iv.OwnerID != owner {
		return domain.Interview{}, domain.ErrNotFound
	}
	return iv, nil
}

func (r *memRepo) TryMarkProcessing(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	iv, ok := r.interviews[id]
	if !ok {
		return domain.ErrNotFound
	}
	if iv.Status == domain.InterviewProcessing {
		return domain.ErrConflict
	}
	iv.Status = domain.InterviewProcessing
	r.interviews[id] = iv
	return nil
}

func (r *memRepo) Complete(_ context.Context, id string, c domain.Completion) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	iv, ok := r.interviews[id]
	if !ok {
		return domain.ErrNotFound
	}
	if iv.Status != domain.InterviewProcessing {
		return domain.ErrConflict
	}
	iv.Status = domain.InterviewCompleted
	iv.InterviewScore = &c.InterviewScore
	iv.TechnicalScore = &c.TechnicalScore
	iv.CommunicationScore = &c.CommunicationScore
	iv.ProblemSolvingScore = &c.ProblemSolvingScore
	iv.SkillsAssessed = c.SkillsAssessed
	iv.OverallFeedback = c.OverallFeedback
	iv.Questions = c.Questions
	iv.QuestionsAnswered = c.QuestionsAnswered
	iv.Duration = c.Duration
	iv.ErrorMessage = ""
	r.interviews[id] = iv
	r.completed[id] = c
	return nil
}

func (r *memRepo) Fail(ctx context.Context, id, msg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if r.failErr != nil {
		return r.failErr
	}
	iv := r.interviews[id]
	iv.Status = domain.InterviewError
	iv.ErrorMessage = msg
	r.interviews[id] = iv
	r.failed[id] = msg
	return nil
}

func (r *memRepo) ListStuck(context.Context, time.Time, int) ([]domain.Interview, error) {
	return nil, nil
}

func (r *memRepo) get(id string) domain.Interview {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.interviews[id]
}
