// internal/notify/notifier_test.go
package notify

import (
	"context"
	"errors"
	"testing"

	"marketing-platform/internal/common/config"
	"marketing-platform/internal/common/logger"
	"marketing-platform/internal/models"

	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockSES struct {
	calls []*ses.SendEmailInput
	err   error
}

func (m *mockSES) SendEmail(_ context.Context, params *ses.SendEmailInput, _ ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	m.calls = append(m.calls, params)
	if m.err != nil {
		return nil, m.err
	}
	return &ses.SendEmailOutput{}, nil
}

type mockSNS struct {
	calls []*sns.PublishInput
	err   error
}

func (m *mockSNS) Publish(_ context.Context, params *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	m.calls = append(m.calls, params)
	if m.err != nil {
		return nil, m.err
	}
	return &sns.PublishOutput{}, nil
}

func notifyConfig(email, sms bool) config.NotificationConfig {
	var cfg config.NotificationConfig
	cfg.Email.Enabled = email
	cfg.Email.FromEmail = "noreply@example.com"
	cfg.Email.ToEmail = "ops@example.com"
	cfg.SMS.Enabled = sms
	cfg.SMS.PhoneNumber = "+15555550100"
	return cfg
}

func testResult() models.AssessmentResult {
	return models.AssessmentResult{
		SessionID: "s1",
		ConfigID:  "cfg-1",
		BucketKey: "expert",
		Score:     12,
		Answers:   models.AnswerMap{"q1": "a1"},
	}
}

func TestNotifier_SendsEmail(t *testing.T) {
	sesMock := &mockSES{}
	snsMock := &mockSNS{}
	n := NewWithClients(notifyConfig(true, false), sesMock, snsMock, logger.NewTestLogger(t))

	delivered := n.AssessmentCompleted(context.Background(), "security-checkup", testResult())

	assert.True(t, delivered)
	require.Len(t, sesMock.calls, 1)
	assert.Equal(t, "ops@example.com", sesMock.calls[0].Destination.ToAddresses[0])
	assert.Contains(t, *sesMock.calls[0].Message.Subject.Data, "security-checkup")
	assert.Empty(t, snsMock.calls)
}

func TestNotifier_SendsSMS(t *testing.T) {
	sesMock := &mockSES{}
	snsMock := &mockSNS{}
	n := NewWithClients(notifyConfig(false, true), sesMock, snsMock, logger.NewTestLogger(t))

	delivered := n.AssessmentCompleted(context.Background(), "security-checkup", testResult())

	assert.True(t, delivered)
	require.Len(t, snsMock.calls, 1)
	assert.Equal(t, "+15555550100", *snsMock.calls[0].PhoneNumber)
	assert.Empty(t, sesMock.calls)
}

func TestNotifier_FailuresAreSwallowed(t *testing.T) {
	sesMock := &mockSES{err: errors.New("ses down")}
	snsMock := &mockSNS{err: errors.New("sns down")}
	n := NewWithClients(notifyConfig(true, true), sesMock, snsMock, logger.NewTestLogger(t))

	delivered := n.AssessmentCompleted(context.Background(), "security-checkup", testResult())

	assert.False(t, delivered)
	assert.Len(t, sesMock.calls, 1)
	assert.Len(t, snsMock.calls, 1)
}

func TestNotifier_AllChannelsDisabled(t *testing.T) {
	sesMock := &mockSES{}
	snsMock := &mockSNS{}
	n := NewWithClients(notifyConfig(false, false), sesMock, snsMock, logger.NewTestLogger(t))

	delivered := n.AssessmentCompleted(context.Background(), "security-checkup", testResult())

	assert.False(t, delivered)
	assert.Empty(t, sesMock.calls)
	assert.Empty(t, snsMock.calls)
}

func TestNotifier_CompletionHook(t *testing.T) {
	sesMock := &mockSES{}
	n := NewWithClients(notifyConfig(true, false), sesMock, &mockSNS{}, logger.NewTestLogger(t))

	hook := n.CompletionHook("security-checkup")
	hook(context.Background(), testResult())

	assert.Len(t, sesMock.calls, 1)
}
