package usecase

import (
	"errors"
	"fmt"

	"github.com/fairyhunter13/ai-interview-evaluator/internal/domain"
)

// StatusView is the polling answer for one interview.
type StatusView struct {
	Status domain.InterviewStatus
	// Data is set only when Status is COMPLETED.
	Data *domain.Interview
	// Error is set only when Status is ERROR.
	Error *string
}

// StatusService provides the non-blocking status read.
type StatusService struct {
	Interviews domain.InterviewRepository
}

// NewStatusService constructs a StatusService.
func NewStatusService(r domain.InterviewRepository) StatusService {
	return StatusService{Interviews: r}
}

// Fetch returns the current status of id. ownerID, when non-empty, must own the interview.
func (s StatusService) Fetch(ctx domain.Context, id, ownerID string) (StatusView, error) {
	if id == "" {
		return StatusView{}, fmt.Errorf("%w: id required", domain.ErrInvalidArgument)
	}
	var (
		iv  domain.Interview
		err error
	)
	if ownerID != "" {
		iv, err = s.Interviews.FindOwned(ctx, id, ownerID)
	} else {
		iv, err = s.Interviews.Find(ctx, id)
	}
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return StatusView{}, fmt.Errorf("%w: interview not found", domain.ErrNotFound)
		}
		return StatusView{}, fmt.Errorf("op=status.fetch: %w", err)
	}

	view := StatusView{Status: iv.Status}
	switch iv.Status {
	case domain.InterviewCompleted:
		view.Data = &iv
	case domain.InterviewError:
		msg := iv.ErrorMessage
		view.Error = &msg
	}
	return view, nil
}
