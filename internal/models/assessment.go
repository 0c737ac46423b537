// internal/models/assessment.go
package models

// Scoring methods.
const (
	ScoringPoints       = "points"
	ScoringDecisionTree = "decision-tree"
)

// AssessmentConfig drives which question starts a flow and how completion is
// finalized.
type AssessmentConfig struct {
	ID              string `json:"id"`
	Slug            string `json:"slug"`
	Title           string `json:"title"`
	EntryQuestionID string `json:"entryQuestionId,omitempty"`
	ScoringMethod   string `json:"scoringMethod"`
}

// AssessmentQuestion is a single step in the flow. ConditionalLogic is a raw
// JSON string encoding {questionId, answerId}; the question is visible only if
// the referenced prior answer was selected. Malformed logic fails open.
type AssessmentQuestion struct {
	ID               string `json:"id"`
	ConfigID         string `json:"configId"`
	Order            int    `json:"order"` // fallback linear sequence
	QuestionText     string `json:"questionText"`
	Description      string `json:"description,omitempty"`
	ConditionalLogic string `json:"conditionalLogic,omitempty"`
}

// AssessmentAnswer is a selectable option. AnswerValue is a JSON-encoded
// string that may carry nextQuestionId for explicit branching,
// resultBucketKey for terminal routing, or points for scoring.
type AssessmentAnswer struct {
	ID          string `json:"id"`
	QuestionID  string `json:"questionId"`
	Order       int    `json:"order"`
	AnswerText  string `json:"answerText"`
	AnswerValue string `json:"answerValue,omitempty"`
}

// AnswerMap accumulates selected answers per session: questionID -> answerID.
type AnswerMap map[string]string

// Clone returns a shallow copy so decision logic never mutates a caller's map.
func (m AnswerMap) Clone() AnswerMap {
	out := make(AnswerMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// ResultBucket is a terminal classification for a completed assessment.
// For points scoring, the highest MinScore not exceeding the total wins.
type ResultBucket struct {
	Key      string `json:"key"`
	ConfigID string `json:"configId"`
	MinScore int    `json:"minScore"`
	Label    string `json:"label,omitempty"`
}

// AssessmentResult is the persisted outcome of a submitted session.
type AssessmentResult struct {
	SessionID string    `json:"sessionId"`
	ConfigID  string    `json:"configId"`
	BucketKey string    `json:"bucketKey"`
	Score     int       `json:"score"`
	Answers   AnswerMap `json:"answers"`
}
