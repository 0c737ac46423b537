// internal/assessments/navigator_test.go
package assessments

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	apperrors "marketing-platform/internal/common/errors"
	"marketing-platform/internal/common/logger"
	"marketing-platform/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memSessionStore is an in-memory SessionStore for navigator tests.
type memSessionStore struct {
	mu   sync.Mutex
	data map[string]models.AnswerMap
}

func newMemSessionStore() *memSessionStore {
	return &memSessionStore{data: make(map[string]models.AnswerMap)}
}

func (m *memSessionStore) key(slug, sessionID string) string { return slug + "|" + sessionID }

func (m *memSessionStore) Load(_ context.Context, slug, sessionID string) (models.AnswerMap, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if answers, ok := m.data[m.key(slug, sessionID)]; ok {
		return answers.Clone(), nil
	}
	return models.AnswerMap{}, nil
}

func (m *memSessionStore) Save(_ context.Context, slug, sessionID string, answers models.AnswerMap) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[m.key(slug, sessionID)] = answers.Clone()
	return nil
}

func (m *memSessionStore) Clear(_ context.Context, slug, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, m.key(slug, sessionID))
	return nil
}

func (m *memSessionStore) has(slug, sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[m.key(slug, sessionID)]
	return ok
}

type fakeSubmitter struct {
	mu      sync.Mutex
	bucket  string
	err     error
	block   chan struct{}
	calls   int
	answers models.AnswerMap
}

func (f *fakeSubmitter) Submit(_ context.Context, _ string, answers models.AnswerMap) (string, error) {
	f.mu.Lock()
	f.calls++
	f.answers = answers
	block := f.block
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bucket, f.err
}

type announcementLog struct {
	mu    sync.Mutex
	lines []string
}

func (a *announcementLog) record(text string) {
	a.mu.Lock()
	a.lines = append(a.lines, text)
	a.mu.Unlock()
}

func (a *announcementLog) all() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.lines...)
}

func treeConfig() models.AssessmentConfig {
	return models.AssessmentConfig{
		ID:              "cfg-1",
		Slug:            "security-checkup",
		Title:           "Security Checkup",
		EntryQuestionID: "q1",
		ScoringMethod:   models.ScoringDecisionTree,
	}
}

func newTestNavigator(t *testing.T, cfg models.AssessmentConfig, questions []models.AssessmentQuestion, answers []models.AssessmentAnswer, submitter Submitter) (*Navigator, *memSessionStore, *announcementLog) {
	t.Helper()
	sessions := newMemSessionStore()
	announcements := &announcementLog{}
	nav := NewNavigator(cfg, questions, answers, sessions, submitter, announcements.record, logger.NewTestLogger(t))
	return nav, sessions, announcements
}

func TestNavigator_StartUsesConfiguredEntry(t *testing.T) {
	questions := []models.AssessmentQuestion{
		{ID: "q1", Order: 2},
		{ID: "q0", Order: 1},
	}
	nav, _, _ := newTestNavigator(t, treeConfig(), questions, nil, nil)

	d, err := nav.Start(context.Background(), "s1")

	require.NoError(t, err)
	require.Equal(t, DecisionAdvance, d.Kind)
	assert.Equal(t, "q1", d.Question.ID)
	assert.Equal(t, StateAwaitingAnswer, nav.State())
}

func TestNavigator_StartFallsBackToFirstVisible(t *testing.T) {
	cfg := treeConfig()
	cfg.EntryQuestionID = "missing"
	questions := []models.AssessmentQuestion{
		{ID: "q1", Order: 1, ConditionalLogic: `{"questionId":"q2","answerId":"a1"}`},
		{ID: "q2", Order: 2},
	}
	nav, _, _ := newTestNavigator(t, cfg, questions, nil, nil)

	d, err := nav.Start(context.Background(), "s1")

	require.NoError(t, err)
	assert.Equal(t, "q2", d.Question.ID)
}

func TestNavigator_StartWithoutQuestions(t *testing.T) {
	nav, _, _ := newTestNavigator(t, treeConfig(), nil, nil, nil)

	_, err := nav.Start(context.Background(), "s1")

	var stdErr *apperrors.StandardError
	require.ErrorAs(t, err, &stdErr)
	assert.Equal(t, apperrors.ErrCodeConfigNotFound, stdErr.Code)
}

func TestNavigator_LinearAdvanceAnnouncesSelection(t *testing.T) {
	questions := []models.AssessmentQuestion{
		{ID: "q1", Order: 1, QuestionText: "First?"},
		{ID: "q2", Order: 2, QuestionText: "Second?"},
	}
	answers := []models.AssessmentAnswer{
		{ID: "a1", QuestionID: "q1", AnswerText: "Yes"},
	}
	nav, sessions, announcements := newTestNavigator(t, treeConfig(), questions, answers, nil)
	_, err := nav.Start(context.Background(), "s1")
	require.NoError(t, err)

	d, err := nav.HandleAnswer(context.Background(), "s1", "q1", "a1")

	require.NoError(t, err)
	require.Equal(t, DecisionAdvance, d.Kind)
	assert.Equal(t, "q2", d.Question.ID)
	assert.Contains(t, announcements.all(), "Selected answer: Yes.")
	assert.Contains(t, announcements.all(), "Navigating to question: Second?")

	stored, err := sessions.Load(context.Background(), "security-checkup", "s1")
	require.NoError(t, err)
	assert.Equal(t, "a1", stored["q1"])
}

func TestNavigator_BranchingFollowsNextQuestionID(t *testing.T) {
	questions := []models.AssessmentQuestion{
		{ID: "q1", Order: 1},
		{ID: "q2", Order: 2},
		{ID: "q3", Order: 3},
	}
	answers := []models.AssessmentAnswer{
		{ID: "a1", QuestionID: "q1", AnswerText: "Skip ahead", AnswerValue: `{"nextQuestionId":"q3"}`},
	}
	nav, _, _ := newTestNavigator(t, treeConfig(), questions, answers, nil)
	_, err := nav.Start(context.Background(), "s1")
	require.NoError(t, err)

	d, err := nav.HandleAnswer(context.Background(), "s1", "q1", "a1")

	require.NoError(t, err)
	assert.Equal(t, "q3", d.Question.ID)
}

func TestNavigator_BrokenNextReferenceFallsBackToLinear(t *testing.T) {
	questions := []models.AssessmentQuestion{
		{ID: "q1", Order: 1},
		{ID: "q2", Order: 2},
	}
	answers := []models.AssessmentAnswer{
		{ID: "a1", QuestionID: "q1", AnswerText: "Go", AnswerValue: `{"nextQuestionId":"nope"}`},
	}
	nav, _, _ := newTestNavigator(t, treeConfig(), questions, answers, nil)
	_, err := nav.Start(context.Background(), "s1")
	require.NoError(t, err)

	d, err := nav.HandleAnswer(context.Background(), "s1", "q1", "a1")

	require.NoError(t, err)
	require.Equal(t, DecisionAdvance, d.Kind)
	assert.Equal(t, "q2", d.Question.ID)
}

func TestNavigator_ScanSkipsHiddenQuestions(t *testing.T) {
	questions := []models.AssessmentQuestion{
		{ID: "q1", Order: 1},
		{ID: "q2", Order: 2, ConditionalLogic: `{"questionId":"q1","answerId":"other"}`},
		{ID: "q3", Order: 3},
	}
	answers := []models.AssessmentAnswer{
		{ID: "a1", QuestionID: "q1", AnswerText: "Yes"},
	}
	nav, _, _ := newTestNavigator(t, treeConfig(), questions, answers, nil)
	_, err := nav.Start(context.Background(), "s1")
	require.NoError(t, err)

	d, err := nav.HandleAnswer(context.Background(), "s1", "q1", "a1")

	require.NoError(t, err)
	assert.Equal(t, "q3", d.Question.ID)
}

func TestNavigator_MalformedAnswerValueIsPlainAnswer(t *testing.T) {
	questions := []models.AssessmentQuestion{
		{ID: "q1", Order: 1},
		{ID: "q2", Order: 2},
	}
	answers := []models.AssessmentAnswer{
		{ID: "a1", QuestionID: "q1", AnswerText: "Odd", AnswerValue: `{{broken`},
	}
	nav, _, _ := newTestNavigator(t, treeConfig(), questions, answers, nil)
	_, err := nav.Start(context.Background(), "s1")
	require.NoError(t, err)

	d, err := nav.HandleAnswer(context.Background(), "s1", "q1", "a1")

	require.NoError(t, err)
	require.Equal(t, DecisionAdvance, d.Kind)
	assert.Equal(t, "q2", d.Question.ID)
}

func TestNavigator_DecisionTreeRedirect(t *testing.T) {
	questions := []models.AssessmentQuestion{
		{ID: "q1", Order: 1},
	}
	answers := []models.AssessmentAnswer{
		{ID: "a1", QuestionID: "q1", AnswerText: "Done", AnswerValue: `{"resultBucketKey":"advanced"}`},
	}
	nav, sessions, _ := newTestNavigator(t, treeConfig(), questions, answers, nil)
	_, err := nav.Start(context.Background(), "s1")
	require.NoError(t, err)

	d, err := nav.HandleAnswer(context.Background(), "s1", "q1", "a1")

	require.NoError(t, err)
	require.Equal(t, DecisionRedirect, d.Kind)
	assert.Equal(t, "advanced", d.BucketKey)
	assert.Equal(t, "/resources/security-checkup/advanced?qq1=a1", d.RouteURL)
	assert.Equal(t, StateTerminated, nav.State())
	assert.False(t, sessions.has("security-checkup", "s1"))
}

func TestNavigator_DeadEndResetsDecisionTree(t *testing.T) {
	questions := []models.AssessmentQuestion{
		{ID: "q1", Order: 1, QuestionText: "Entry?"},
		{ID: "q2", Order: 2, ConditionalLogic: `{"questionId":"q1","answerId":"never"}`},
	}
	answers := []models.AssessmentAnswer{
		{ID: "a1", QuestionID: "q1", AnswerText: "Yes"},
	}
	nav, sessions, _ := newTestNavigator(t, treeConfig(), questions, answers, nil)
	_, err := nav.Start(context.Background(), "s1")
	require.NoError(t, err)

	d, err := nav.HandleAnswer(context.Background(), "s1", "q1", "a1")

	require.NoError(t, err)
	require.Equal(t, DecisionReset, d.Kind)
	require.NotNil(t, d.Question)
	assert.Equal(t, "q1", d.Question.ID)
	assert.NotEmpty(t, d.Notice)
	assert.Equal(t, StateAwaitingAnswer, nav.State())
	assert.False(t, sessions.has("security-checkup", "s1"))
}

func TestNavigator_PointsSubmitsOnDeadEnd(t *testing.T) {
	cfg := treeConfig()
	cfg.ScoringMethod = models.ScoringPoints
	questions := []models.AssessmentQuestion{
		{ID: "q1", Order: 1},
	}
	answers := []models.AssessmentAnswer{
		{ID: "a1", QuestionID: "q1", AnswerText: "Yes", AnswerValue: `{"points":5}`},
	}
	submitter := &fakeSubmitter{bucket: "intermediate"}
	nav, sessions, _ := newTestNavigator(t, cfg, questions, answers, submitter)
	_, err := nav.Start(context.Background(), "s1")
	require.NoError(t, err)

	d, err := nav.HandleAnswer(context.Background(), "s1", "q1", "a1")

	require.NoError(t, err)
	require.Equal(t, DecisionSubmitted, d.Kind)
	assert.Equal(t, "intermediate", d.BucketKey)
	assert.Equal(t, StateTerminated, nav.State())
	assert.Equal(t, "a1", submitter.answers["q1"])
	assert.False(t, sessions.has("security-checkup", "s1"))
}

func TestNavigator_PointsSubmitsOnResultBucketAnswer(t *testing.T) {
	cfg := treeConfig()
	cfg.ScoringMethod = models.ScoringPoints
	questions := []models.AssessmentQuestion{
		{ID: "q1", Order: 1},
		{ID: "q2", Order: 2},
	}
	answers := []models.AssessmentAnswer{
		{ID: "a1", QuestionID: "q1", AnswerText: "Finish now", AnswerValue: `{"resultBucketKey":"early","points":3}`},
	}
	submitter := &fakeSubmitter{bucket: "beginner"}
	nav, _, _ := newTestNavigator(t, cfg, questions, answers, submitter)
	_, err := nav.Start(context.Background(), "s1")
	require.NoError(t, err)

	d, err := nav.HandleAnswer(context.Background(), "s1", "q1", "a1")

	require.NoError(t, err)
	assert.Equal(t, DecisionSubmitted, d.Kind)
	assert.Equal(t, "beginner", d.BucketKey)
	assert.Equal(t, 1, submitter.calls)
}

func TestNavigator_SubmissionErrorRestoresState(t *testing.T) {
	cfg := treeConfig()
	cfg.ScoringMethod = models.ScoringPoints
	questions := []models.AssessmentQuestion{{ID: "q1", Order: 1}}
	answers := []models.AssessmentAnswer{
		{ID: "a1", QuestionID: "q1", AnswerText: "Yes", AnswerValue: `{"resultBucketKey":"done"}`},
	}
	submitter := &fakeSubmitter{err: errors.New("network down")}
	nav, _, _ := newTestNavigator(t, cfg, questions, answers, submitter)
	_, err := nav.Start(context.Background(), "s1")
	require.NoError(t, err)

	_, err = nav.HandleAnswer(context.Background(), "s1", "q1", "a1")

	var stdErr *apperrors.StandardError
	require.ErrorAs(t, err, &stdErr)
	assert.Equal(t, apperrors.ErrCodeSubmissionFailed, stdErr.Code)
	assert.Equal(t, StateAwaitingAnswer, nav.State())
}

func TestNavigator_RejectsAnswersWhileSubmitting(t *testing.T) {
	cfg := treeConfig()
	cfg.ScoringMethod = models.ScoringPoints
	questions := []models.AssessmentQuestion{{ID: "q1", Order: 1}}
	answers := []models.AssessmentAnswer{
		{ID: "a1", QuestionID: "q1", AnswerText: "Yes", AnswerValue: `{"resultBucketKey":"done"}`},
	}
	submitter := &fakeSubmitter{bucket: "done", block: make(chan struct{})}
	nav, _, _ := newTestNavigator(t, cfg, questions, answers, submitter)
	_, err := nav.Start(context.Background(), "s1")
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = nav.HandleAnswer(context.Background(), "s1", "q1", "a1")
	}()

	require.Eventually(t, func() bool {
		return nav.State() == StateSubmitting
	}, time.Second, 5*time.Millisecond)

	_, err = nav.HandleAnswer(context.Background(), "s1", "q1", "a1")
	assert.ErrorIs(t, err, ErrSubmissionInFlight)

	close(submitter.block)
	<-done
}

func TestNavigator_RevalidateKeepsVisibleQuestion(t *testing.T) {
	questions := []models.AssessmentQuestion{{ID: "q1", Order: 1}}
	nav, _, _ := newTestNavigator(t, treeConfig(), questions, nil, nil)
	_, err := nav.Start(context.Background(), "s1")
	require.NoError(t, err)

	d, err := nav.Revalidate(context.Background(), "s1")

	require.NoError(t, err)
	assert.Equal(t, DecisionNone, d.Kind)
}

func TestNavigator_RevalidateAdvancesPastHiddenQuestion(t *testing.T) {
	questions := []models.AssessmentQuestion{
		{ID: "q1", Order: 1},
		{ID: "q2", Order: 2, ConditionalLogic: `{"questionId":"q1","answerId":"a1"}`},
		{ID: "q3", Order: 3},
	}
	answers := []models.AssessmentAnswer{
		{ID: "a1", QuestionID: "q1", AnswerText: "Yes"},
		{ID: "a2", QuestionID: "q1", AnswerText: "No"},
	}
	nav, sessions, _ := newTestNavigator(t, treeConfig(), questions, answers, nil)
	_, err := nav.Start(context.Background(), "s1")
	require.NoError(t, err)

	// Reach q2 via a1, then revise q1 so q2's condition no longer holds.
	d, err := nav.HandleAnswer(context.Background(), "s1", "q1", "a1")
	require.NoError(t, err)
	require.Equal(t, "q2", d.Question.ID)

	require.NoError(t, sessions.Save(context.Background(), "security-checkup", "s1", models.AnswerMap{"q1": "a2"}))

	d, err = nav.Revalidate(context.Background(), "s1")
	require.NoError(t, err)
	require.Equal(t, DecisionAdvance, d.Kind)
	assert.Equal(t, "q3", d.Question.ID)
}

func TestNavigator_RevalidateResetsWhenNothingFollows(t *testing.T) {
	questions := []models.AssessmentQuestion{
		{ID: "q1", Order: 1},
		{ID: "q2", Order: 2, ConditionalLogic: `{"questionId":"q1","answerId":"a1"}`},
	}
	answers := []models.AssessmentAnswer{
		{ID: "a1", QuestionID: "q1", AnswerText: "Yes"},
		{ID: "a2", QuestionID: "q1", AnswerText: "No"},
	}
	nav, sessions, _ := newTestNavigator(t, treeConfig(), questions, answers, nil)
	_, err := nav.Start(context.Background(), "s1")
	require.NoError(t, err)

	d, err := nav.HandleAnswer(context.Background(), "s1", "q1", "a1")
	require.NoError(t, err)
	require.Equal(t, "q2", d.Question.ID)

	require.NoError(t, sessions.Save(context.Background(), "security-checkup", "s1", models.AnswerMap{"q1": "a2"}))

	d, err = nav.Revalidate(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, DecisionReset, d.Kind)
}

func TestResultRoute_EncodesAnswers(t *testing.T) {
	route := ResultRoute("quiz", "expert", models.AnswerMap{"q1": "a1"})
	assert.Equal(t, "/resources/quiz/expert?qq1=a1", route)

	empty := ResultRoute("quiz", "expert", models.AnswerMap{})
	assert.Equal(t, "/resources/quiz/expert", empty)
}

func TestPointsScorer_ScoreAndBucket(t *testing.T) {
	cfg := treeConfig()
	cfg.ScoringMethod = models.ScoringPoints
	answers := []models.AssessmentAnswer{
		{ID: "a1", AnswerValue: `{"points":5}`},
		{ID: "a2", AnswerValue: `{"points":3}`},
		{ID: "a3", AnswerValue: `plain text`},
	}
	buckets := []models.ResultBucket{
		{Key: "beginner", MinScore: 0},
		{Key: "intermediate", MinScore: 5},
		{Key: "expert", MinScore: 10},
	}
	scorer := NewPointsScorer(cfg, answers, buckets, nil, nil, logger.NewTestLogger(t))

	selected := models.AnswerMap{"q1": "a1", "q2": "a2", "q3": "a3"}
	assert.Equal(t, 8, scorer.Score(selected))
	assert.Equal(t, "intermediate", scorer.Bucket(8))
	assert.Equal(t, "expert", scorer.Bucket(10))
	assert.Equal(t, "beginner", scorer.Bucket(-1))
}

func TestPointsScorer_SubmitSavesResultAndFiresHook(t *testing.T) {
	cfg := treeConfig()
	cfg.ScoringMethod = models.ScoringPoints
	answers := []models.AssessmentAnswer{
		{ID: "a1", AnswerValue: `{"points":7}`},
	}
	buckets := []models.ResultBucket{
		{Key: "beginner", MinScore: 0},
		{Key: "intermediate", MinScore: 5},
	}

	var saved models.AssessmentResult
	saver := resultSaverFunc(func(_ context.Context, r models.AssessmentResult) error {
		saved = r
		return nil
	})

	hookFired := false
	hook := func(_ context.Context, r models.AssessmentResult) {
		hookFired = true
		assert.Equal(t, saved.BucketKey, r.BucketKey)
	}

	scorer := NewPointsScorer(cfg, answers, buckets, saver, hook, logger.NewTestLogger(t))

	bucket, err := scorer.Submit(context.Background(), "s1", models.AnswerMap{"q1": "a1"})

	require.NoError(t, err)
	assert.Equal(t, "intermediate", bucket)
	assert.Equal(t, 7, saved.Score)
	assert.Equal(t, "cfg-1", saved.ConfigID)
	assert.True(t, hookFired)
}

type resultSaverFunc func(ctx context.Context, result models.AssessmentResult) error

func (f resultSaverFunc) SaveResult(ctx context.Context, result models.AssessmentResult) error {
	return f(ctx, result)
}
