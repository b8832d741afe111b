// Package postgres provides PostgreSQL database adapters.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/fairyhunter13/ai-interview-evaluator/internal/domain"
)

// PgxPool is a minimal subset of pgxpool used by the repos for easy testing.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// InterviewRepo persists interviews and their ordered question records.
type InterviewRepo struct{ Pool PgxPool }

// NewInterviewRepo constructs an InterviewRepo with the given pool.
func NewInterviewRepo(p PgxPool) *InterviewRepo { return &InterviewRepo{Pool: p} }

var _ domain.InterviewRepository = (*InterviewRepo)(nil)

const interviewColumns = `id, owner_id, status, difficulty, years_of_experience, language, duration,
	interview_score, technical_score, communication_score, problem_solving_score,
	skills_assessed, overall_feedback, error_message, questions_answered, created_at, updated_at`

func startSpan(ctx context.Context, name, op string) (context.Context, trace.Span) {
	ctx, span := otel.Tracer("repo.interviews").Start(ctx, name)
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", op),
		attribute.String("db.sql.table", "interviews"),
	)
	return ctx, span
}

// Create inserts a CREATED interview with its questions. Interviews are
// normally created by the session service; this is used for seeding.
func (r *InterviewRepo) Create(ctx domain.Context, iv domain.Interview) error {
	ctx, span := startSpan(ctx, "interviews.Create", "INSERT")
	defer span.End()
	tx, err := r.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("op=interview.create: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	status := iv.Status
	if status == "" {
		status = domain.InterviewCreated
	}
	now := time.Now().UTC()
	q := `INSERT INTO interviews (id, owner_id, status, difficulty, years_of_experience, language, duration, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$8)`
	if _, err := tx.Exec(ctx, q, iv.ID, iv.OwnerID, string(status), iv.Difficulty, iv.YearsOfExperience, iv.Language, iv.Duration, now); err != nil {
		return fmt.Errorf("op=interview.create: %w", err)
	}
	if err := insertQuestions(ctx, tx, iv.ID, iv.Questions); err != nil {
		return fmt.Errorf("op=interview.create: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("op=interview.create: %w", err)
	}
	return nil
}

// Find loads an interview and its questions ordered by position.
func (r *InterviewRepo) Find(ctx domain.Context, id string) (domain.Interview, error) {
	ctx, span := startSpan(ctx, "interviews.Find", "SELECT")
	defer span.End()
	span.SetAttributes(attribute.String("interview.id", id))
	q := `SELECT ` + interviewColumns + ` FROM interviews WHERE id=$1`
	return r.load(ctx, "op=interview.find", r.Pool.QueryRow(ctx, q, id))
}

// FindOwned loads an interview only when ownerID owns it.
func (r *InterviewRepo) FindOwned(ctx domain.Context, id, ownerID string) (domain.Interview, error) {
	ctx, span := startSpan(ctx, "interviews.FindOwned", "SELECT")
	defer span.End()
	span.SetAttributes(attribute.String("interview.id", id))
	q := `SELECT ` + interviewColumns + ` FROM interviews WHERE id=$1 AND owner_id=$2`
	return r.load(ctx, "op=interview.find_owned", r.Pool.QueryRow(ctx, q, id, ownerID))
}

func (r *InterviewRepo) load(ctx context.Context, op string, row pgx.Row) (domain.Interview, error) {
	var iv domain.Interview
	var status string
	err := row.Scan(&iv.ID, &iv.OwnerID, &status, &iv.Difficulty, &iv.YearsOfExperience, &iv.Language, &iv.Duration,
		&iv.InterviewScore, &iv.TechnicalScore, &iv.CommunicationScore, &iv.ProblemSolvingScore,
		&iv.SkillsAssessed, &iv.OverallFeedback, &iv.ErrorMessage, &iv.QuestionsAnswered, &iv.CreatedAt, &iv.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Interview{}, fmt.Errorf("%s: %w", op, domain.ErrNotFound)
		}
		return domain.Interview{}, fmt.Errorf("%s: %w", op, err)
	}
	iv.Status = domain.InterviewStatus(status)
	if iv.SkillsAssessed == nil {
		iv.SkillsAssessed = []string{}
	}
	qs, err := r.questions(ctx, iv.ID)
	if err != nil {
		return domain.Interview{}, fmt.Errorf("%s: %w", op, err)
	}
	iv.Questions = qs
	return iv, nil
}

func (r *InterviewRepo) questions(ctx context.Context, id string) ([]domain.QuestionRecord, error) {
	q := `SELECT position, ai_question, ai_answer, user_answer, question_score, technical_score,
		communication_score, problem_solving_score, question_feedback, learning_resources
		FROM interview_questions WHERE interview_id=$1 ORDER BY position`
	rows, err := r.Pool.Query(ctx, q, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []domain.QuestionRecord{}
	for rows.Next() {
		var (
			qr  domain.QuestionRecord
			raw []byte
		)
		if err := rows.Scan(&qr.Position, &qr.AIQuestion, &qr.AIAnswer, &qr.UserAnswer, &qr.QuestionScore, &qr.TechnicalScore,
			&qr.CommunicationScore, &qr.ProblemSolvingScore, &qr.QuestionFeedback, &raw); err != nil {
			return nil, err
		}
		qr.LearningResources = []domain.LearningResource{}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &qr.LearningResources); err != nil {
				return nil, fmt.Errorf("decode learning resources: %w", err)
			}
		}
		out = append(out, qr)
	}
	return out, rows.Err()
}

// TryMarkProcessing takes the PROCESSING lease and clears any previous outcome.
func (r *InterviewRepo) TryMarkProcessing(ctx domain.Context, id string) error {
	ctx, span := startSpan(ctx, "interviews.TryMarkProcessing", "UPDATE")
	defer span.End()
	span.SetAttributes(attribute.String("interview.id", id))
	q := `UPDATE interviews SET status=$2, error_message='', interview_score=NULL, technical_score=NULL,
		communication_score=NULL, problem_solving_score=NULL, updated_at=$3
		WHERE id=$1 AND status<>$2`
	tag, err := r.Pool.Exec(ctx, q, id, string(domain.InterviewProcessing), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("op=interview.mark_processing: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	if err := r.exists(ctx, id); err != nil {
		return fmt.Errorf("op=interview.mark_processing: %w", err)
	}
	return fmt.Errorf("op=interview.mark_processing: %w", domain.ErrConflict)
}

// Complete writes the aggregate and replaces every question record in one transaction.
// Only a PROCESSING interview is completed; any other state yields ErrConflict so a
// late run never overwrites an ERROR written meanwhile.
func (r *InterviewRepo) Complete(ctx domain.Context, id string, c domain.Completion) error {
	ctx, span := startSpan(ctx, "interviews.Complete", "UPDATE")
	defer span.End()
	span.SetAttributes(attribute.String("interview.id", id), attribute.Int("interview.questions", len(c.Questions)))

	tx, err := r.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("op=interview.complete: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	skills := c.SkillsAssessed
	if skills == nil {
		skills = []string{}
	}
	q := `UPDATE interviews SET status=$2, interview_score=$3, technical_score=$4, communication_score=$5,
		problem_solving_score=$6, skills_assessed=$7, overall_feedback=$8, questions_answered=$9,
		duration=$10, error_message='', updated_at=$11 WHERE id=$1 AND status=$12`
	tag, err := tx.Exec(ctx, q, id, string(domain.InterviewCompleted), c.InterviewScore, c.TechnicalScore,
		c.CommunicationScore, c.ProblemSolvingScore, skills, c.OverallFeedback, c.QuestionsAnswered,
		c.Duration, time.Now().UTC(), string(domain.InterviewProcessing))
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("op=interview.complete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if err := r.exists(ctx, id); err != nil {
			return fmt.Errorf("op=interview.complete: %w", err)
		}
		return fmt.Errorf("op=interview.complete: %w", domain.ErrConflict)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM interview_questions WHERE interview_id=$1`, id); err != nil {
		return fmt.Errorf("op=interview.complete: %w", err)
	}
	if err := insertQuestions(ctx, tx, id, c.Questions); err != nil {
		span.RecordError(err)
		return fmt.Errorf("op=interview.complete: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("op=interview.complete: %w", err)
	}
	return nil
}

func insertQuestions(ctx context.Context, tx pgx.Tx, id string, qs []domain.QuestionRecord) error {
	q := `INSERT INTO interview_questions (interview_id, position, ai_question, ai_answer, user_answer,
		question_score, technical_score, communication_score, problem_solving_score, question_feedback, learning_resources)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`
	for _, qr := range qs {
		res := qr.LearningResources
		if res == nil {
			res = []domain.LearningResource{}
		}
		raw, err := json.Marshal(res)
		if err != nil {
			return fmt.Errorf("encode learning resources: %w", err)
		}
		if _, err := tx.Exec(ctx, q, id, qr.Position, qr.AIQuestion, qr.AIAnswer, qr.UserAnswer,
			qr.QuestionScore, qr.TechnicalScore, qr.CommunicationScore, qr.ProblemSolvingScore,
			qr.QuestionFeedback, raw); err != nil {
			return fmt.Errorf("insert question %d: %w", qr.Position, err)
		}
	}
	return nil
}

// Fail moves a PROCESSING interview to ERROR. Interviews in any other state
// are left untouched.
func (r *InterviewRepo) Fail(ctx domain.Context, id string, message string) error {
	ctx, span := startSpan(ctx, "interviews.Fail", "UPDATE")
	defer span.End()
	span.SetAttributes(attribute.String("interview.id", id))
	q := `UPDATE interviews SET status=$2, error_message=$3, interview_score=NULL, technical_score=NULL,
		communication_score=NULL, problem_solving_score=NULL, updated_at=$4
		WHERE id=$1 AND status=$5`
	tag, err := r.Pool.Exec(ctx, q, id, string(domain.InterviewError), message, time.Now().UTC(), string(domain.InterviewProcessing))
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("op=interview.fail: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if err := r.exists(ctx, id); err != nil {
			return fmt.Errorf("op=interview.fail: %w", err)
		}
	}
	return nil
}

// ListStuck returns interviews that have been PROCESSING since before olderThan.
func (r *InterviewRepo) ListStuck(ctx domain.Context, olderThan time.Time, limit int) ([]domain.Interview, error) {
	ctx, span := startSpan(ctx, "interviews.ListStuck", "SELECT")
	defer span.End()
	if limit <= 0 {
		limit = 100
	}
	q := `SELECT id, owner_id, updated_at FROM interviews
		WHERE status=$1 AND updated_at < $2 ORDER BY updated_at LIMIT $3`
	rows, err := r.Pool.Query(ctx, q, string(domain.InterviewProcessing), olderThan.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("op=interview.list_stuck: %w", err)
	}
	defer rows.Close()
	var out []domain.Interview
	for rows.Next() {
		iv := domain.Interview{Status: domain.InterviewProcessing}
		if err := rows.Scan(&iv.ID, &iv.OwnerID, &iv.UpdatedAt); err != nil {
			return nil, fmt.Errorf("op=interview.list_stuck: %w", err)
		}
		out = append(out, iv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=interview.list_stuck: %w", err)
	}
	return out, nil
}

// DeleteOlderThan removes ERROR interviews last touched before cutoff.
func (r *InterviewRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx, span := startSpan(ctx, "interviews.DeleteOlderThan", "DELETE")
	defer span.End()
	tag, err := r.Pool.Exec(ctx, `DELETE FROM interviews WHERE status=$1 AND updated_at < $2`,
		string(domain.InterviewError), cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("op=interview.delete_older_than: %w", err)
	}
	span.SetAttributes(attribute.Int64("interviews.deleted", tag.RowsAffected()))
	return tag.RowsAffected(), nil
}

func (r *InterviewRepo) exists(ctx context.Context, id string) error {
	var one int
	err := r.Pool.QueryRow(ctx, `SELECT 1 FROM interviews WHERE id=$1`, id).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	return err
}
