// internal/assessments/visibility.go
package assessments

import (
	"encoding/json"
	"strings"

	"marketing-platform/internal/models"
)

// visibilityCondition is the stored shape of a question's conditional logic.
type visibilityCondition struct {
	QuestionID string `json:"questionId"`
	AnswerID   string `json:"answerId"`
}

// IsQuestionVisible decides whether a question should currently be shown.
//
// Missing or malformed conditional logic fails open: the question is shown.
// A condition referencing a question that does not exist fails closed: that
// is a configuration error, not an absent condition, and the question stays
// hidden. Otherwise the question is visible exactly when the referenced
// answer was selected.
func IsQuestionVisible(q models.AssessmentQuestion, answers models.AnswerMap, allQuestions []models.AssessmentQuestion) bool {
	logic := strings.TrimSpace(q.ConditionalLogic)
	if logic == "" {
		return true
	}

	var cond visibilityCondition
	if err := json.Unmarshal([]byte(logic), &cond); err != nil {
		return true
	}
	if cond.QuestionID == "" || cond.AnswerID == "" {
		return true
	}

	if !questionExists(allQuestions, cond.QuestionID) {
		return false
	}

	return answers[cond.QuestionID] == cond.AnswerID
}

func questionExists(questions []models.AssessmentQuestion, id string) bool {
	for _, q := range questions {
		if q.ID == id {
			return true
		}
	}
	return false
}
