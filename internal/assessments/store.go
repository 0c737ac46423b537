// internal/assessments/store.go
package assessments

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	apperrors "marketing-platform/internal/common/errors"
	"marketing-platform/internal/models"

	"github.com/google/uuid"
)

// Store loads assessment configuration and persists results.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// GetConfigBySlug loads one assessment config for a tenant.
func (s *Store) GetConfigBySlug(ctx context.Context, tenantID, slug string) (*models.AssessmentConfig, error) {
	query := `
		SELECT id, slug, title, COALESCE(entry_question_id, ''), scoring_method
		FROM assessment_configs
		WHERE tenant_id = $1 AND slug = $2`

	var cfg models.AssessmentConfig
	err := s.db.QueryRowContext(ctx, query, tenantID, slug).Scan(
		&cfg.ID, &cfg.Slug, &cfg.Title, &cfg.EntryQuestionID, &cfg.ScoringMethod,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewConfigNotFoundError(slug)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load assessment config: %w", err)
	}
	return &cfg, nil
}

// ListQuestions returns a config's questions ordered by display order.
func (s *Store) ListQuestions(ctx context.Context, configID string) ([]models.AssessmentQuestion, error) {
	query := `
		SELECT id, config_id, display_order, question_text,
		       COALESCE(description, ''), COALESCE(conditional_logic::text, '')
		FROM assessment_questions
		WHERE config_id = $1
		ORDER BY display_order ASC`

	rows, err := s.db.QueryContext(ctx, query, configID)
	if err != nil {
		return nil, fmt.Errorf("failed to query assessment questions: %w", err)
	}
	defer rows.Close()

	var questions []models.AssessmentQuestion
	for rows.Next() {
		var q models.AssessmentQuestion
		if err := rows.Scan(&q.ID, &q.ConfigID, &q.Order, &q.QuestionText, &q.Description, &q.ConditionalLogic); err != nil {
			return nil, fmt.Errorf("failed to scan assessment question: %w", err)
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// ListAnswers returns all answers for a config's questions in display order.
func (s *Store) ListAnswers(ctx context.Context, configID string) ([]models.AssessmentAnswer, error) {
	query := `
		SELECT a.id, a.question_id, a.display_order, a.answer_text,
		       COALESCE(a.answer_value::text, '')
		FROM assessment_answers a
		JOIN assessment_questions q ON q.id = a.question_id
		WHERE q.config_id = $1
		ORDER BY q.display_order ASC, a.display_order ASC`

	rows, err := s.db.QueryContext(ctx, query, configID)
	if err != nil {
		return nil, fmt.Errorf("failed to query assessment answers: %w", err)
	}
	defer rows.Close()

	var answers []models.AssessmentAnswer
	for rows.Next() {
		var a models.AssessmentAnswer
		if err := rows.Scan(&a.ID, &a.QuestionID, &a.Order, &a.AnswerText, &a.AnswerValue); err != nil {
			return nil, fmt.Errorf("failed to scan assessment answer: %w", err)
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}

// ListBuckets returns a config's result buckets.
func (s *Store) ListBuckets(ctx context.Context, configID string) ([]models.ResultBucket, error) {
	query := `
		SELECT bucket_key, config_id, min_score, label
		FROM assessment_result_buckets
		WHERE config_id = $1
		ORDER BY min_score ASC`

	rows, err := s.db.QueryContext(ctx, query, configID)
	if err != nil {
		return nil, fmt.Errorf("failed to query result buckets: %w", err)
	}
	defer rows.Close()

	var buckets []models.ResultBucket
	for rows.Next() {
		var b models.ResultBucket
		if err := rows.Scan(&b.Key, &b.ConfigID, &b.MinScore, &b.Label); err != nil {
			return nil, fmt.Errorf("failed to scan result bucket: %w", err)
		}
		buckets = append(buckets, b)
	}
	return buckets, rows.Err()
}

// SaveResult persists a scored submission.
func (s *Store) SaveResult(ctx context.Context, result models.AssessmentResult) error {
	answersJSON, err := json.Marshal(result.Answers)
	if err != nil {
		return fmt.Errorf("failed to marshal result answers: %w", err)
	}

	query := `
		INSERT INTO assessment_results (id, session_id, config_id, bucket_key, score, answers, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())`

	if _, err := s.db.ExecContext(ctx, query,
		uuid.New().String(), result.SessionID, result.ConfigID,
		result.BucketKey, result.Score, answersJSON,
	); err != nil {
		return fmt.Errorf("failed to save assessment result: %w", err)
	}
	return nil
}
