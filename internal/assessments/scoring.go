// internal/assessments/scoring.go
package assessments

import (
	"context"
	"sort"

	"marketing-platform/internal/common/logger"
	"marketing-platform/internal/models"
)

// ResultSaver persists a scored result.
type ResultSaver interface {
	SaveResult(ctx context.Context, result models.AssessmentResult) error
}

// CompletionHook runs after a result is saved, used for notifications.
// Hook failures never fail the submission.
type CompletionHook func(ctx context.Context, result models.AssessmentResult)

// PointsScorer implements Submitter for the points scoring method: each
// selected answer may carry a point value, the total maps to the highest
// result bucket whose threshold it clears.
type PointsScorer struct {
	config  models.AssessmentConfig
	answers map[string]models.AssessmentAnswer
	buckets []models.ResultBucket // sorted by MinScore ascending
	saver   ResultSaver
	hook    CompletionHook
	logger  logger.Logger
}

func NewPointsScorer(
	config models.AssessmentConfig,
	answers []models.AssessmentAnswer,
	buckets []models.ResultBucket,
	saver ResultSaver,
	hook CompletionHook,
	log logger.Logger,
) *PointsScorer {
	answersByID := make(map[string]models.AssessmentAnswer, len(answers))
	for _, a := range answers {
		answersByID[a.ID] = a
	}

	sorted := make([]models.ResultBucket, len(buckets))
	copy(sorted, buckets)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].MinScore < sorted[j].MinScore })

	if log == nil {
		log = logger.NewNoOpLogger()
	}

	return &PointsScorer{
		config:  config,
		answers: answersByID,
		buckets: sorted,
		saver:   saver,
		hook:    hook,
		logger:  log,
	}
}

// Score sums the point values of the selected answers. Answers without
// routing metadata contribute zero.
func (s *PointsScorer) Score(answers models.AnswerMap) int {
	total := 0
	for _, answerID := range answers {
		a, ok := s.answers[answerID]
		if !ok {
			continue
		}
		total += parseAnswerRouting(a.AnswerValue).Points
	}
	return total
}

// Bucket returns the key of the highest bucket whose MinScore the total
// clears. With no matching bucket the lowest bucket catches everything.
func (s *PointsScorer) Bucket(total int) string {
	if len(s.buckets) == 0 {
		return ""
	}
	chosen := s.buckets[0]
	for _, b := range s.buckets {
		if total >= b.MinScore {
			chosen = b
		}
	}
	return chosen.Key
}

// Submit scores the session, persists the result and fires the completion
// hook.
func (s *PointsScorer) Submit(ctx context.Context, sessionID string, answers models.AnswerMap) (string, error) {
	total := s.Score(answers)
	bucket := s.Bucket(total)

	result := models.AssessmentResult{
		SessionID: sessionID,
		ConfigID:  s.config.ID,
		BucketKey: bucket,
		Score:     total,
		Answers:   answers.Clone(),
	}

	if s.saver != nil {
		if err := s.saver.SaveResult(ctx, result); err != nil {
			return "", err
		}
	}

	s.logger.Info("assessment submitted", map[string]interface{}{
		"configSlug": s.config.Slug,
		"sessionId":  sessionID,
		"score":      total,
		"bucket":     bucket,
	})

	if s.hook != nil {
		s.hook(ctx, result)
	}
	return bucket, nil
}
