// internal/notify/notifier.go
package notify

import (
	"context"
	"fmt"

	"marketing-platform/internal/common/config"
	"marketing-platform/internal/common/logger"
	"marketing-platform/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

// Service interfaces mirror the AWS clients so tests can stub them.
type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// Notifier sends assessment-completion notifications to the site operators.
// Delivery failures are logged and swallowed, a lost notification must never
// fail a user's submission.
type Notifier struct {
	config config.NotificationConfig
	ses    SESService
	sns    SNSService
	logger logger.Logger
}

func New(ctx context.Context, cfg config.NotificationConfig, log logger.Logger) (*Notifier, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return &Notifier{
		config: cfg,
		ses:    ses.NewFromConfig(awsCfg),
		sns:    sns.NewFromConfig(awsCfg),
		logger: log,
	}, nil
}

// NewWithClients wires explicit clients, used in tests.
func NewWithClients(cfg config.NotificationConfig, sesClient SESService, snsClient SNSService, log logger.Logger) *Notifier {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Notifier{config: cfg, ses: sesClient, sns: snsClient, logger: log}
}

// AssessmentCompleted reports a finished assessment. Returns true when at
// least one channel delivered.
func (n *Notifier) AssessmentCompleted(ctx context.Context, configSlug string, result models.AssessmentResult) bool {
	subject := fmt.Sprintf("Assessment completed: %s", configSlug)
	body := fmt.Sprintf(
		"Session %s finished the %s assessment.\nResult bucket: %s\nScore: %d\nAnswers recorded: %d",
		result.SessionID, configSlug, result.BucketKey, result.Score, len(result.Answers),
	)

	delivered := false

	if n.config.Email.Enabled && n.config.Email.ToEmail != "" {
		if err := n.sendEmail(ctx, subject, body); err != nil {
			n.logger.Error("email send failed", map[string]interface{}{
				"configSlug": configSlug,
				"error":      err.Error(),
			})
		} else {
			delivered = true
		}
	}

	if n.config.SMS.Enabled && n.config.SMS.PhoneNumber != "" {
		if err := n.sendSMS(ctx, subject); err != nil {
			n.logger.Error("SMS send failed", map[string]interface{}{
				"configSlug": configSlug,
				"error":      err.Error(),
			})
		} else {
			delivered = true
		}
	}

	return delivered
}

func (n *Notifier) sendEmail(ctx context.Context, subject, body string) error {
	_, err := n.ses.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: []string{n.config.Email.ToEmail},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(body)},
			},
		},
		Source: aws.String(n.config.Email.FromEmail),
	})
	return err
}

func (n *Notifier) sendSMS(ctx context.Context, message string) error {
	_, err := n.sns.Publish(ctx, &sns.PublishInput{
		PhoneNumber: aws.String(n.config.SMS.PhoneNumber),
		Message:     aws.String(message),
	})
	return err
}

// CompletionHook adapts the notifier to the assessments completion hook.
func (n *Notifier) CompletionHook(configSlug string) func(ctx context.Context, result models.AssessmentResult) {
	return func(ctx context.Context, result models.AssessmentResult) {
		n.AssessmentCompleted(ctx, configSlug, result)
	}
}
