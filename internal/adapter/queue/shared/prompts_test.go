package shared

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fairyhunter13/ai-interview-evaluator/internal/domain"
)

func TestBuildEvaluationPrompt(t *testing.T) {
	t.Parallel()
	p := BuildEvaluationPrompt(EvaluationPromptInput{
		Difficulty:        "Senior",
		YearsOfExperience: "5",
		Language:          "Indonesian",
		Questions:         threeQuestions(),
	})
	assert.Contains(t, p, "Difficulty: Senior")
	assert.Contains(t, p, "Years of experience: 5")
	assert.Contains(t, p, "in Indonesian")
	assert.Contains(t, p, "exactly 3 items")
	assert.Contains(t, p, "Candidate answer 1: A green thread.")
	assert.Contains(t, p, "Candidate answer 2: (no answer)")
	assert.Contains(t, p, "Expected answer 3: Runs a call when the function returns.")
	// questions keep their order
	assert.Less(t, strings.Index(p, "Question 1:"), strings.Index(p, "Question 2:"))
	assert.Less(t, strings.Index(p, "Question 2:"), strings.Index(p, "Question 3:"))
}

func TestBuildEvaluationPrompt_Defaults(t *testing.T) {
	t.Parallel()
	p := BuildEvaluationPrompt(EvaluationPromptInput{Questions: threeQuestions()[:1]})
	assert.Contains(t, p, "Difficulty: unspecified")
	assert.Contains(t, p, "in English")
	assert.Contains(t, p, "exactly 1 items")
}

func TestBuildTechnologyExtractionPrompt(t *testing.T) {
	t.Parallel()
	p := BuildTechnologyExtractionPrompt(threeQuestions())
	assert.Contains(t, p, "Question 2: What is a channel?")
	assert.Contains(t, p, "Answer 2: A typed conduit between goroutines.")
	assert.NotContains(t, p, "Delays a call until return.")
	assert.Contains(t, p, "JSON array of strings")
}

func TestBuildOverallFeedbackPrompt(t *testing.T) {
	t.Parallel()
	p := BuildOverallFeedbackPrompt([]domain.QuestionRecord{
		{AIQuestion: "Q1", QuestionScore: 72.5, TechnicalScore: 80, CommunicationScore: 60, ProblemSolvingScore: 70, QuestionFeedback: "Solid."},
	}, "")
	assert.Contains(t, p, "Question 1: Q1")
	assert.Contains(t, p, "overall 72.5, technical 80, communication 60, problem solving 70")
	assert.Contains(t, p, "Feedback: Solid.")
	assert.Contains(t, p, "in English")
}
