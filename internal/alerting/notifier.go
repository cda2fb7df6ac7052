// internal/alerting/notifier.go
package alerting

import (
	"context"
	"fmt"

	"funding-engine/internal/common/config"
	"funding-engine/internal/common/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	sestypes "github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	awsclients "funding-engine/internal/common/aws"
)

// Notifier surfaces conditions that need an operator: refund batches stuck
// in a failed state, invariant violations, anything the engine refuses to
// work around on its own.
type Notifier interface {
	Alert(ctx context.Context, subject, message string)
}

// OpsNotifier sends operator alerts over SES email and an SNS topic.
// Delivery failure is logged and swallowed: alerting must never change the
// outcome of a ledger operation.
type OpsNotifier struct {
	cfg    config.AlertingConfig
	ses    *awsclients.SESClient
	sns    *awsclients.SNSClient
	logger logger.Logger
}

func NewOpsNotifier(ctx context.Context, cfg config.AlertingConfig, log logger.Logger) (*OpsNotifier, error) {
	n := &OpsNotifier{cfg: cfg, logger: log}
	if !cfg.Enabled {
		return n, nil
	}

	sesClient, err := awsclients.NewSESClient(ctx, cfg.AWSRegion)
	if err != nil {
		return nil, fmt.Errorf("init ses client: %w", err)
	}
	snsClient, err := awsclients.NewSNSClient(ctx, cfg.AWSRegion)
	if err != nil {
		return nil, fmt.Errorf("init sns client: %w", err)
	}
	n.ses = sesClient
	n.sns = snsClient
	return n, nil
}

func (n *OpsNotifier) Alert(ctx context.Context, subject, message string) {
	if !n.cfg.Enabled {
		n.logger.Warn("operator alert (alerting disabled)", map[string]interface{}{
			"subject": subject,
			"message": message,
		})
		return
	}

	if n.cfg.Email.ToEmail != "" {
		_, err := n.ses.SendEmail(ctx, &ses.SendEmailInput{
			Source: aws.String(n.cfg.Email.FromEmail),
			Destination: &sestypes.Destination{
				ToAddresses: []string{n.cfg.Email.ToEmail},
			},
			Message: &sestypes.Message{
				Subject: &sestypes.Content{Data: aws.String(subject)},
				Body: &sestypes.Body{
					Text: &sestypes.Content{Data: aws.String(message)},
				},
			},
		})
		if err != nil {
			n.logger.Error("failed to send alert email", map[string]interface{}{
				"subject": subject,
				"error":   err,
			})
		}
	}

	if n.cfg.SNSTopicARN != "" {
		_, err := n.sns.Publish(ctx, &sns.PublishInput{
			TopicArn: aws.String(n.cfg.SNSTopicARN),
			Subject:  aws.String(subject),
			Message:  aws.String(message),
		})
		if err != nil {
			n.logger.Error("failed to publish alert to sns", map[string]interface{}{
				"subject": subject,
				"error":   err,
			})
		}
	}
}

// NopNotifier discards alerts. Used in tests.
type NopNotifier struct{}

func (NopNotifier) Alert(context.Context, string, string) {}
