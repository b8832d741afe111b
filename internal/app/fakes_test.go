package app

import (
	"context"
	"sync"
	"time"

	"github.com/fairyhunter13/ai-interview-evaluator/internal/domain"
)

type memRepo struct {
	mu         sync.Mutex
	interviews map[string]domain.Interview
	listErr    error
	failErr    error
	failCalls  int
}

func newMemRepo(ivs ...domain.Interview) *memRepo {
	r := &memRepo{interviews: map[string]domain.Interview{}}
	for _, iv := range ivs {
		r.interviews[iv.ID] = iv
	}
	return r
}

func (r *memRepo) Find(_ domain.Context, id string) (domain.Interview, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	iv, ok := r.interviews[id]
	if !ok {
		return domain.Interview{}, domain.ErrNotFound
	}
	return iv, nil
}

func (r *memRepo) FindOwned(ctx domain.Context, id, owner string) (domain.Interview, error) {
	iv, err := r.Find(ctx, id)
	if err != nil || iv.OwnerID != owner {
		return domain.Interview{}, domain.ErrNotFound
	}
	return iv, nil
}

func (r *memRepo) TryMarkProcessing(_ domain.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	iv := r.interviews[id]
	if iv.Status == domain.InterviewProcessing {
		return domain.ErrConflict
	}
	iv.Status = domain.InterviewProcessing
	iv.UpdatedAt = time.Now()
	r.interviews[id] = iv
	return nil
}

func (r *memRepo) Complete(_ domain.Context, id string, c domain.Completion) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	iv := r.interviews[id]
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
	r.interviews[id] = iv
	return nil
}

func (r *memRepo) Fail(_ domain.Context, id, msg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failCalls++
	if r.failErr != nil {
		return r.failErr
	}
	iv := r.interviews[id]
	if iv.Status != domain.InterviewProcessing {
		return nil
	}
	iv.Status = domain.InterviewError
	iv.ErrorMessage = msg
	r.interviews[id] = iv
	return nil
}

func (r *memRepo) ListStuck(_ domain.Context, olderThan time.Time, limit int) ([]domain.Interview, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	var out []domain.Interview
	for _, iv := range r.interviews {
		if iv.Status == domain.InterviewProcessing && iv.UpdatedAt.Before(olderThan) {
			out = append(out, iv)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (r *memRepo) get(id string) domain.Interview {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.interviews[id]
}

// gatedGen blocks every call until release is closed.
type gatedGen struct {
	release chan struct{}
	started chan struct{}
	once    sync.Once
	reply   func(prompt string) string
}

func (g *gatedGen) Generate(ctx context.Context, prompt string) (string, error) {
	g.once.Do(func() { close(g.started) })
	select {
	case <-g.release:
		return g.reply(prompt), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
