package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ai-interview-evaluator/internal/domain"
)

const sampleSeed = `
interviews:
  - id: iv-demo
    ownerId: demo-user
    difficulty: Mid
    yearsOfExperience: "3"
    language: English
    questions:
      - aiQuestion: What is a goroutine?
        aiAnswer: A function running concurrently, scheduled by the Go runtime.
      - aiQuestion: When would you use a buffered channel?
        aiAnswer: To decouple sender and receiver up to a fixed capacity.
`

type fakeCreator struct {
	existing map[string]bool
	created  []domain.Interview
}

func (f *fakeCreator) Find(_ domain.Context, id string) (domain.Interview, error) {
	if f.existing[id] {
		return domain.Interview{ID: id}, nil
	}
	return domain.Interview{}, domain.ErrNotFound
}

func (f *fakeCreator) Create(_ domain.Context, iv domain.Interview) error {
	f.created = append(f.created, iv)
	return nil
}

func TestParseSeed(t *testing.T) {
	t.Parallel()
	ivs, err := parseSeed([]byte(sampleSeed))
	require.NoError(t, err)
	require.Len(t, ivs, 1)
	assert.Equal(t, "demo-user", ivs[0].OwnerID)
	assert.Equal(t, domain.InterviewCreated, ivs[0].Status)
	require.Len(t, ivs[0].Questions, 2)
	assert.Equal(t, 1, ivs[0].Questions[1].Position)

	_, err = parseSeed([]byte("interviews:\n  - id: x\n"))
	assert.Error(t, err)
	_, err = parseSeed([]byte(":::"))
	assert.Error(t, err)
}

func TestSeedInterviews_SkipsExisting(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleSeed), 0o600))

	repo := &fakeCreator{existing: map[string]bool{}}
	n, err := seedInterviews(context.Background(), repo, path)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	repo = &fakeCreator{existing: map[string]bool{"iv-demo": true}}
	n, err = seedInterviews(context.Background(), repo, path)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, repo.created)
}
