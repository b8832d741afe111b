package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/fairyhunter13/ai-interview-evaluator/internal/domain"
)

type seedFile struct {
	Interviews []seedInterview `yaml:"interviews"`
}

type seedInterview struct {
	ID                string         `yaml:"id"`
	OwnerID           string         `yaml:"ownerId"`
	Difficulty        string         `yaml:"difficulty"`
	YearsOfExperience string         `yaml:"yearsOfExperience"`
	Language          string         `yaml:"language"`
	Questions         []seedQuestion `yaml:"questions"`
}

type seedQuestion struct {
	AIQuestion string `yaml:"aiQuestion"`
	AIAnswer   string `yaml:"aiAnswer"`
}

type interviewCreator interface {
	Find(ctx domain.Context, id string) (domain.Interview, error)
	Create(ctx domain.Context, iv domain.Interview) error
}

func parseSeed(b []byte) ([]domain.Interview, error) {
	var f seedFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse seed yaml: %w", err)
	}
	out := make([]domain.Interview, 0, len(f.Interviews))
	for i, si := range f.Interviews {
		if si.ID == "" || si.OwnerID == "" {
			return nil, fmt.Errorf("seed interview %d: id and ownerId are required", i)
		}
		iv := domain.Interview{
			ID:                si.ID,
			OwnerID:           si.OwnerID,
			Status:            domain.InterviewCreated,
			Difficulty:        si.Difficulty,
			YearsOfExperience: si.YearsOfExperience,
			Language:          si.Language,
		}
		for pos, q := range si.Questions {
			iv.Questions = append(iv.Questions, domain.QuestionRecord{Position: pos, AIQuestion: q.AIQuestion, AIAnswer: q.AIAnswer})
		}
		out = append(out, iv)
	}
	return out, nil
}

// seedInterviews creates interviews listed in path that do not exist yet.
func seedInterviews(ctx context.Context, repo interviewCreator, path string) (int, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read seed file: %w", err)
	}
	ivs, err := parseSeed(b)
	if err != nil {
		return 0, err
	}
	created := 0
	for _, iv := range ivs {
		if _, err := repo.Find(ctx, iv.ID); err == nil {
			continue
		} else if !errors.Is(err, domain.ErrNotFound) {
			return created, err
		}
		if err := repo.Create(ctx, iv); err != nil {
			return created, fmt.Errorf("seed %s: %w", iv.ID, err)
		}
		slog.Info("seeded interview", slog.String("interview_id", iv.ID), slog.Int("questions", len(iv.Questions)))
		created++
	}
	return created, nil
}
