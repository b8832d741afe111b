package shared

import (
	"fmt"
	"strings"

	"github.com/fairyhunter13/ai-interview-evaluator/internal/domain"
)

const defaultLanguage = "English"

// EvaluationPromptInput is everything the answer evaluation prompt embeds.
type EvaluationPromptInput struct {
	Difficulty        string
	YearsOfExperience string
	Language          string
	Questions         []domain.QuestionAnswer
}

const evaluationPrompt = `You are a senior technical interviewer reviewing a completed mock interview.

Candidate profile:
- Difficulty: %s
- Years of experience: %s

For every question below compare the candidate's answer with the expected answer and score it from 0 to 100 on three axes:
- technicalScore: technical accuracy and depth
- communicationScore: clarity and structure of the explanation
- problemSolvingScore: reasoning and approach
Also give an overall questionScore from 0 to 100 for the answer.

Scoring rules:
1. An empty answer, or an answer that only repeats the question, scores 0 on every axis.
2. An answer that matches the expected answer exactly or almost exactly scores 100 on every axis.
3. Judge the answer against the stated difficulty and years of experience.

Feedback rules:
- Write questionFeedback in the first person, addressed to the candidate, as if you were the interviewer.
- Use plain text only: no markdown, no bullet points, no code fences.
- Write at least four sentences per question covering what was good, what was missing and how to improve.
- Write the feedback in %s.
- Suggest up to three learningResources per question; type must be one of documentation, article, tutorial, video.

Questions:
%s
Return a single JSON object and nothing else. Use double quotes for every key and string. Do not wrap it in markdown.
The "evaluations" array must contain exactly %d items in the same order as the questions above:
{
  "evaluations": [
    {
      "questionScore": 0,
      "technicalScore": 0,
      "communicationScore": 0,
      "problemSolvingScore": 0,
      "questionFeedback": "",
      "learningResources": [
        {"title": "", "url": "", "type": "documentation", "description": ""}
      ]
    }
  ]
}`

// BuildEvaluationPrompt renders the batch answer evaluation prompt.
func BuildEvaluationPrompt(in EvaluationPromptInput) string {
	var b strings.Builder
	for i, q := range in.Questions {
		fmt.Fprintf(&b, "Question %d: %s\n", i+1, q.AIQuestion)
		fmt.Fprintf(&b, "Expected answer %d: %s\n", i+1, q.AIAnswer)
		fmt.Fprintf(&b, "Candidate answer %d: %s\n\n", i+1, orNoAnswer(q.UserAnswer))
	}
	return fmt.Sprintf(evaluationPrompt,
		orUnspecified(in.Difficulty),
		orUnspecified(in.YearsOfExperience),
		languageOrDefault(in.Language),
		b.String(),
		len(in.Questions),
	)
}

const technologyPrompt = `List the distinct technologies, tools, languages and skills referenced by the interview questions and expected answers below.

%s
Return only a JSON array of strings, for example ["Go", "PostgreSQL", "System Design"].
Use the common name of each technology, list each one once, and do not add any other text.`

// BuildTechnologyExtractionPrompt renders the skill extraction prompt. Only the
// question and the expected answer are embedded.
func BuildTechnologyExtractionPrompt(questions []domain.QuestionAnswer) string {
	var b strings.Builder
	for i, q := range questions {
		fmt.Fprintf(&b, "Question %d: %s\n", i+1, q.AIQuestion)
		fmt.Fprintf(&b, "Answer %d: %s\n\n", i+1, q.AIAnswer)
	}
	return fmt.Sprintf(technologyPrompt, b.String())
}

const overallFeedbackPrompt = `You evaluated a mock technical interview question by question. The results are below.

%s
Write a short overall assessment (one paragraph of four to six sentences) for the candidate.
Summarise their main strengths and weaknesses across all questions and the most important thing to improve next.
Write in the first person, addressed to the candidate, in %s.
Reply with plain text only: no JSON, no markdown, no headings.`

// BuildOverallFeedbackPrompt renders the narrative synthesis prompt.
func BuildOverallFeedbackPrompt(results []domain.QuestionRecord, language string) string {
	var b strings.Builder
	for i, r := range results {
		fmt.Fprintf(&b, "Question %d: %s\n", i+1, r.AIQuestion)
		fmt.Fprintf(&b, "Scores: overall %s, technical %s, communication %s, problem solving %s\n",
			formatScore(r.QuestionScore), formatScore(r.TechnicalScore),
			formatScore(r.CommunicationScore), formatScore(r.ProblemSolvingScore))
		fmt.Fprintf(&b, "Feedback: %s\n\n", r.QuestionFeedback)
	}
	return fmt.Sprintf(overallFeedbackPrompt, b.String(), languageOrDefault(language))
}

func formatScore(v float64) string {
	return fmt.Sprintf("%g", v)
}

func orNoAnswer(s string) string {
	if strings.TrimSpace(s) == "" {
		return "(no answer)"
	}
	return s
}

func orUnspecified(s string) string {
	if strings.TrimSpace(s) == "" {
		return "unspecified"
	}
	return s
}

func languageOrDefault(s string) string {
	if strings.TrimSpace(s) == "" {
		return defaultLanguage
	}
	return s
}
