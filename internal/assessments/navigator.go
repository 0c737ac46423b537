// internal/assessments/navigator.go
package assessments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"

	apperrors "marketing-platform/internal/common/errors"
	"marketing-platform/internal/common/logger"
	"marketing-platform/internal/common/metrics"
	"marketing-platform/internal/models"
)

// Navigator states.
type State string

const (
	StateLoading        State = "loading"
	StateAwaitingAnswer State = "awaiting_answer"
	StateSubmitting     State = "submitting"
	StateTerminated     State = "terminated"
)

// ErrSubmissionInFlight rejects answer clicks while a submission is running.
var ErrSubmissionInFlight = errors.New("submission in flight")

// Submitter scores and persists a completed points-method session, returning
// the result bucket key.
type Submitter interface {
	Submit(ctx context.Context, sessionID string, answers models.AnswerMap) (string, error)
}

// Announcer receives accessibility announcements for screen readers.
type Announcer func(text string)

// DecisionKind classifies the outcome of one navigation step.
type DecisionKind int

const (
	DecisionNone DecisionKind = iota
	DecisionAdvance
	DecisionSubmitted
	DecisionRedirect
	DecisionReset
)

// Decision is the observable outcome of an answer click or revalidation.
type Decision struct {
	Kind      DecisionKind
	Question  *models.AssessmentQuestion // DecisionAdvance, DecisionReset (entry question)
	BucketKey string                     // DecisionSubmitted, DecisionRedirect
	RouteURL  string                     // DecisionRedirect
	Notice    string                     // DecisionReset, user-visible non-blocking notice
}

// answerRouting is the optional routing metadata inside an answer's value.
// Malformed JSON means a plain-text answer with no routing.
type answerRouting struct {
	NextQuestionID  string `json:"nextQuestionId"`
	ResultBucketKey string `json:"resultBucketKey"`
	Points          int    `json:"points"`
}

func parseAnswerRouting(raw string) answerRouting {
	var r answerRouting
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return r
	}
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return answerRouting{}
	}
	return r
}

// Navigator drives one assessment flow: entry resolution, answer-driven
// transitions, dead-end recovery and re-validation after answer changes.
// All routing decisions are pure over (questions, answers, config); the only
// side effects are session persistence, submission and announcements.
type Navigator struct {
	config      models.AssessmentConfig
	questions   []models.AssessmentQuestion // sorted by Order
	answersByID map[string]models.AssessmentAnswer
	indexByID   map[string]int

	sessions  SessionStore
	submitter Submitter
	announce  Announcer
	logger    logger.Logger

	mu        sync.Mutex
	state     State
	currentID string
}

func NewNavigator(
	config models.AssessmentConfig,
	questions []models.AssessmentQuestion,
	answers []models.AssessmentAnswer,
	sessions SessionStore,
	submitter Submitter,
	announce Announcer,
	log logger.Logger,
) *Navigator {
	sorted := make([]models.AssessmentQuestion, len(questions))
	copy(sorted, questions)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Order < sorted[j].Order })

	indexByID := make(map[string]int, len(sorted))
	for i, q := range sorted {
		indexByID[q.ID] = i
	}

	answersByID := make(map[string]models.AssessmentAnswer, len(answers))
	for _, a := range answers {
		answersByID[a.ID] = a
	}

	if announce == nil {
		announce = func(string) {}
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	return &Navigator{
		config:      config,
		questions:   sorted,
		answersByID: answersByID,
		indexByID:   indexByID,
		sessions:    sessions,
		submitter:   submitter,
		announce:    announce,
		logger:      log.WithFields(map[string]interface{}{"configSlug": config.Slug}),
		state:       StateLoading,
	}
}

// State returns the current machine state.
func (n *Navigator) State() State {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

// CurrentQuestionID returns the question being shown, empty before Start.
func (n *Navigator) CurrentQuestionID() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.currentID
}

// Start resolves the entry question for a session. The configured entry
// question wins when it exists and is visible; otherwise the first visible
// question in order. With no questions at all the config is unusable.
func (n *Navigator) Start(ctx context.Context, sessionID string) (Decision, error) {
	if len(n.questions) == 0 {
		return Decision{}, apperrors.NewConfigNotFoundError(n.config.Slug)
	}

	answers, err := n.sessions.Load(ctx, n.config.Slug, sessionID)
	if err != nil {
		return Decision{}, err
	}

	entry, ok := n.entryQuestion(answers)
	if !ok {
		return Decision{}, apperrors.NewConfigNotFoundError(n.config.Slug)
	}

	n.mu.Lock()
	n.state = StateAwaitingAnswer
	n.currentID = entry.ID
	n.mu.Unlock()

	return Decision{Kind: DecisionAdvance, Question: entry}, nil
}

func (n *Navigator) entryQuestion(answers models.AnswerMap) (*models.AssessmentQuestion, bool) {
	if n.config.EntryQuestionID != "" {
		if idx, ok := n.indexByID[n.config.EntryQuestionID]; ok {
			q := n.questions[idx]
			if IsQuestionVisible(q, answers, n.questions) {
				return &q, true
			}
		}
	}
	for _, q := range n.questions {
		if IsQuestionVisible(q, answers, n.questions) {
			q := q
			return &q, true
		}
	}
	return nil, false
}

// Resume restores the navigator to a known question. Used when the flow is
// rebuilt per request and the client reports where it currently is.
func (n *Navigator) Resume(questionID string) bool {
	if _, ok := n.indexByID[questionID]; !ok {
		return false
	}
	n.mu.Lock()
	n.state = StateAwaitingAnswer
	n.currentID = questionID
	n.mu.Unlock()
	return true
}

// HandleAnswer records an answer selection and decides what happens next:
// advance to another question, submit, redirect to a result bucket, or reset
// after a dead end.
func (n *Navigator) HandleAnswer(ctx context.Context, sessionID, questionID, answerID string) (Decision, error) {
	n.mu.Lock()
	if n.state == StateSubmitting {
		n.mu.Unlock()
		return Decision{}, ErrSubmissionInFlight
	}
	n.mu.Unlock()

	answers, err := n.sessions.Load(ctx, n.config.Slug, sessionID)
	if err != nil {
		return Decision{}, err
	}
	answers = answers.Clone()
	answers[questionID] = answerID

	if err := n.sessions.Save(ctx, n.config.Slug, sessionID, answers); err != nil {
		return Decision{}, err
	}

	selected, haveAnswer := n.answersByID[answerID]
	if haveAnswer {
		n.announce(fmt.Sprintf("Selected answer: %s.", selected.AnswerText))
	}

	routing := parseAnswerRouting(selected.AnswerValue)

	// Terminal routing wins over any next-question metadata.
	if routing.ResultBucketKey != "" {
		if n.config.ScoringMethod == models.ScoringPoints {
			return n.submit(ctx, sessionID, answers)
		}
		return n.redirect(ctx, sessionID, routing.ResultBucketKey, answers)
	}

	currentIdx := n.indexByID[questionID]
	startIdx := currentIdx + 1
	if routing.NextQuestionID != "" {
		if idx, ok := n.indexByID[routing.NextQuestionID]; ok {
			startIdx = idx
		} else {
			broken := apperrors.NewBrokenReferenceError(routing.NextQuestionID)
			n.logger.Warn("falling back to linear scan", map[string]interface{}{
				"questionId": questionID,
				"error":      broken.Error(),
			})
		}
	}

	if next, ok := n.scanForward(startIdx, answers); ok {
		n.mu.Lock()
		n.state = StateAwaitingAnswer
		n.currentID = next.ID
		n.mu.Unlock()
		n.announce(fmt.Sprintf("Navigating to question: %s", next.QuestionText))
		return Decision{Kind: DecisionAdvance, Question: next}, nil
	}

	return n.finishOrReset(ctx, sessionID, answers, "dead_end")
}

// Revalidate re-checks the currently displayed question after the answer map
// changed (for example an earlier answer was revised). A question that became
// hidden triggers the same forward-scan-or-reset logic as a normal advance.
//
// Note: this can reset a session mid-interaction by design; the reset is
// counted and logged so product can see how often users hit it.
func (n *Navigator) Revalidate(ctx context.Context, sessionID string) (Decision, error) {
	n.mu.Lock()
	currentID := n.currentID
	n.mu.Unlock()
	if currentID == "" {
		return Decision{Kind: DecisionNone}, nil
	}

	answers, err := n.sessions.Load(ctx, n.config.Slug, sessionID)
	if err != nil {
		return Decision{}, err
	}

	idx, ok := n.indexByID[currentID]
	if !ok {
		return Decision{Kind: DecisionNone}, nil
	}

	if IsQuestionVisible(n.questions[idx], answers, n.questions) {
		return Decision{Kind: DecisionNone}, nil
	}

	if next, okNext := n.scanForward(idx+1, answers); okNext {
		n.mu.Lock()
		n.currentID = next.ID
		n.mu.Unlock()
		n.announce(fmt.Sprintf("Navigating to question: %s", next.QuestionText))
		return Decision{Kind: DecisionAdvance, Question: next}, nil
	}

	return n.finishOrReset(ctx, sessionID, answers, "revalidation")
}

// scanForward walks the question list from startIdx, skipping questions that
// are not visible, visiting each index at most once and never taking more
// than len(questions)+1 steps. Tripping either bound is treated as an
// infinite-loop defense and reported as "no next question".
func (n *Navigator) scanForward(startIdx int, answers models.AnswerMap) (*models.AssessmentQuestion, bool) {
	total := len(n.questions)
	visited := make(map[int]bool, total)

	i := startIdx
	for steps := 0; steps <= total; steps++ {
		if i < 0 || i >= total {
			return nil, false
		}
		if visited[i] {
			n.logger.Warn("question scan revisited an index, aborting", map[string]interface{}{
				"index": i,
			})
			return nil, false
		}
		visited[i] = true

		q := n.questions[i]
		if IsQuestionVisible(q, answers, n.questions) {
			return &q, true
		}
		i++
	}

	n.logger.Warn("question scan exceeded question count, aborting", map[string]interface{}{
		"startIndex": startIdx,
	})
	return nil, false
}

// finishOrReset handles the end of the decision tree: points flows submit,
// decision-tree flows surface a notice and restart from the entry question so
// the user is never stranded on a dead-end path.
func (n *Navigator) finishOrReset(ctx context.Context, sessionID string, answers models.AnswerMap, reason string) (Decision, error) {
	if n.config.ScoringMethod == models.ScoringPoints {
		return n.submit(ctx, sessionID, answers)
	}

	deadEnd := apperrors.NewNavigationDeadEndError(n.config.Slug)
	n.logger.Warn(deadEnd.Message, map[string]interface{}{"reason": reason})
	metrics.AssessmentResets.WithLabelValues(reason).Inc()

	if err := n.sessions.Clear(ctx, n.config.Slug, sessionID); err != nil {
		return Decision{}, err
	}

	entry, _ := n.entryQuestion(models.AnswerMap{})
	n.mu.Lock()
	n.state = StateAwaitingAnswer
	if entry != nil {
		n.currentID = entry.ID
	} else {
		n.currentID = ""
	}
	n.mu.Unlock()

	return Decision{
		Kind:     DecisionReset,
		Question: entry,
		Notice:   "This path has no further questions. Starting over from the beginning.",
	}, nil
}

func (n *Navigator) submit(ctx context.Context, sessionID string, answers models.AnswerMap) (Decision, error) {
	n.mu.Lock()
	if n.state == StateSubmitting {
		n.mu.Unlock()
		return Decision{}, ErrSubmissionInFlight
	}
	n.state = StateSubmitting
	n.mu.Unlock()

	bucket, err := n.submitter.Submit(ctx, sessionID, answers)
	if err != nil {
		n.mu.Lock()
		n.state = StateAwaitingAnswer
		n.mu.Unlock()
		metrics.AssessmentSubmissions.WithLabelValues("error").Inc()
		return Decision{}, apperrors.NewSubmissionError(sessionID, err)
	}
	metrics.AssessmentSubmissions.WithLabelValues("ok").Inc()

	if err := n.sessions.Clear(ctx, n.config.Slug, sessionID); err != nil {
		n.logger.Warn("failed to clear session after submission", map[string]interface{}{
			"sessionId": sessionID,
			"error":     err.Error(),
		})
	}

	n.mu.Lock()
	n.state = StateTerminated
	n.mu.Unlock()

	return Decision{Kind: DecisionSubmitted, BucketKey: bucket}, nil
}

// redirect terminates a decision-tree flow client-side: the collected answers
// travel as query parameters, no network submission happens.
func (n *Navigator) redirect(ctx context.Context, sessionID, bucketKey string, answers models.AnswerMap) (Decision, error) {
	if err := n.sessions.Clear(ctx, n.config.Slug, sessionID); err != nil {
		n.logger.Warn("failed to clear session on redirect", map[string]interface{}{
			"sessionId": sessionID,
			"error":     err.Error(),
		})
	}

	n.mu.Lock()
	n.state = StateTerminated
	n.mu.Unlock()

	return Decision{
		Kind:      DecisionRedirect,
		BucketKey: bucketKey,
		RouteURL:  ResultRoute(n.config.Slug, bucketKey, answers),
	}, nil
}

// ResultRoute builds the terminal route for a decision-tree result bucket,
// encoding every collected answer as q<questionID>=<answerID>.
func ResultRoute(configSlug, bucketKey string, answers models.AnswerMap) string {
	values := url.Values{}
	for qid, aid := range answers {
		values.Set("q"+qid, aid)
	}
	route := fmt.Sprintf("/resources/%s/%s", url.PathEscape(configSlug), url.PathEscape(bucketKey))
	if encoded := values.Encode(); encoded != "" {
		route += "?" + encoded
	}
	return route
}
