package shared

import (
	"math"

	"github.com/fairyhunter13/ai-interview-evaluator/internal/domain"
)

// Scores are the interview-level aggregates.
type Scores struct {
	Interview      float64
	Technical      float64
	Communication  float64
	ProblemSolving float64
}

// MergeEvaluations pairs question i with evaluation i. Order is never inferred
// from content. A missing evaluation leaves the question at zero scores.
func MergeEvaluations(questions []domain.QuestionAnswer, evals []AnswerEvaluation) []domain.QuestionRecord {
	out := make([]domain.QuestionRecord, len(questions))
	for i, q := range questions {
		ev := AnswerEvaluation{QuestionFeedback: FailedEvaluationFeedback}
		if i < len(evals) {
			ev = evals[i]
		}
		resources := ev.LearningResources
		if resources == nil {
			resources = []domain.LearningResource{}
		}
		out[i] = domain.QuestionRecord{
			Position:            i,
			AIQuestion:          q.AIQuestion,
			AIAnswer:            q.AIAnswer,
			UserAnswer:          q.UserAnswer,
			QuestionScore:       ev.QuestionScore,
			TechnicalScore:      ev.TechnicalScore,
			CommunicationScore:  ev.CommunicationScore,
			ProblemSolvingScore: ev.ProblemSolvingScore,
			QuestionFeedback:    ev.QuestionFeedback,
			LearningResources:   resources,
		}
	}
	return out
}

// Aggregate computes the unweighted mean of every score axis, rounded to two
// decimals. An empty list aggregates to zero.
func Aggregate(records []domain.QuestionRecord) Scores {
	if len(records) == 0 {
		return Scores{}
	}
	var s Scores
	for _, r := range records {
		s.Interview += r.QuestionScore
		s.Technical += r.TechnicalScore
		s.Communication += r.CommunicationScore
		s.ProblemSolving += r.ProblemSolvingScore
	}
	n := float64(len(records))
	return Scores{
		Interview:      round2(s.Interview / n),
		Technical:      round2(s.Technical / n),
		Communication:  round2(s.Communication / n),
		ProblemSolving: round2(s.ProblemSolving / n),
	}
}

// referencePairs keeps only the question and expected answer of each record.
func referencePairs(records []domain.QuestionRecord) []domain.QuestionAnswer {
	out := make([]domain.QuestionAnswer, len(records))
	for i, r := range records {
		out[i] = domain.QuestionAnswer{AIQuestion: r.AIQuestion, AIAnswer: r.AIAnswer}
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
