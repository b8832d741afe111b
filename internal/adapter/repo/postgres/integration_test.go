//go:build integration

package postgres_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/fairyhunter13/ai-interview-evaluator/internal/adapter/repo/postgres"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/domain"
)

func startPostgres(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	req := testcontainers.ContainerRequest{
		Image:        "postgres:16",
		Env:          map[string]string{"POSTGRES_PASSWORD": "postgres", "POSTGRES_USER": "postgres", "POSTGRES_DB": "app"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).WithStartupTimeout(90 * time.Second),
	}
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{ContainerRequest: req, Started: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Terminate(ctx) })
	host, err := c.Host(ctx)
	require.NoError(t, err)
	port, err := c.MappedPort(ctx, "5432")
	require.NoError(t, err)
	return fmt.Sprintf("postgres://postgres:postgres@%s:%s/app?sslmode=disable", host, port.Port())
}

func TestInterviewRepo_Postgres(t *testing.T) {
	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, startPostgres(t))
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, postgres.Migrate(ctx, pool))

	repo := postgres.NewInterviewRepo(pool)
	require.NoError(t, repo.Create(ctx, domain.Interview{
		ID: "iv-1", OwnerID: "u1", Difficulty: "Mid", YearsOfExperience: "3", Language: "English",
		Questions: []domain.QuestionRecord{
			{Position: 0, AIQuestion: "Q1", AIAnswer: "A1", UserAnswer: "U1"},
			{Position: 1, AIQuestion: "Q2", AIAnswer: "A2"},
		},
	}))

	_, err = repo.FindOwned(ctx, "iv-1", "intruder")
	require.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, repo.TryMarkProcessing(ctx, "iv-1"))
	require.ErrorIs(t, repo.TryMarkProcessing(ctx, "iv-1"), domain.ErrConflict)
	require.ErrorIs(t, repo.TryMarkProcessing(ctx, "missing"), domain.ErrNotFound)

	stuck, err := repo.ListStuck(ctx, time.Now().Add(time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, stuck, 1)

	require.NoError(t, repo.Complete(ctx, "iv-1", domain.Completion{
		InterviewScore: 75, TechnicalScore: 65, CommunicationScore: 65, ProblemSolvingScore: 55,
		SkillsAssessed: []string{"REST", "SQL"}, OverallFeedback: "Solid.", QuestionsAnswered: 1, Duration: 900,
		Questions: []domain.QuestionRecord{
			{Position: 0, AIQuestion: "Q1", AIAnswer: "A1", UserAnswer: "U1", QuestionScore: 100, QuestionFeedback: "Great.",
				LearningResources: []domain.LearningResource{{Title: "Go Tour", URL: "https://go.dev/tour", Type: "tutorial"}}},
			{Position: 1, AIQuestion: "Q2", AIAnswer: "A2", QuestionScore: 50},
		},
	}))

	iv, err := repo.FindOwned(ctx, "iv-1", "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.InterviewCompleted, iv.Status)
	require.NotNil(t, iv.InterviewScore)
	assert.Equal(t, 75.0, *iv.InterviewScore)
	assert.Equal(t, []string{"REST", "SQL"}, iv.SkillsAssessed)
	assert.Equal(t, 900, iv.Duration)
	require.Len(t, iv.Questions, 2)
	assert.Equal(t, "Go Tour", iv.Questions[0].LearningResources[0].Title)
	assert.Empty(t, iv.Questions[1].LearningResources)

	// A COMPLETED interview is not touched by Fail.
	require.NoError(t, repo.Fail(ctx, "iv-1", "late"))
	iv, err = repo.Find(ctx, "iv-1")
	require.NoError(t, err)
	assert.Equal(t, domain.InterviewCompleted, iv.Status)

	require.NoError(t, repo.TryMarkProcessing(ctx, "iv-1"))
	iv, err = repo.Find(ctx, "iv-1")
	require.NoError(t, err)
	assert.Nil(t, iv.InterviewScore)

	require.NoError(t, repo.Fail(ctx, "iv-1", "Evaluation timed out. Please try again."))
	iv, err = repo.Find(ctx, "iv-1")
	require.NoError(t, err)
	assert.Equal(t, domain.InterviewError, iv.Status)
	assert.Equal(t, "Evaluation timed out. Please try again.", iv.ErrorMessage)

	// A late run cannot overwrite the ERROR outcome.
	require.ErrorIs(t, repo.Complete(ctx, "iv-1", domain.Completion{InterviewScore: 99}), domain.ErrConflict)
	iv, err = repo.Find(ctx, "iv-1")
	require.NoError(t, err)
	assert.Equal(t, domain.InterviewError, iv.Status)

	n, err := repo.DeleteOlderThan(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	_, err = repo.Find(ctx, "iv-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
