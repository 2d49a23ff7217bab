// internal/notify/notifier.go
package notify

import (
	"context"
	"errors"
	"fmt"

	"ethics-advisor/internal/common/logger"
	"ethics-advisor/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

var ErrEscalationSendFailed = errors.New("ESCALATION_SEND_FAILED")

// SESService and SNSService match the internal/common/aws wrappers so the
// real clients plug in directly and tests swap in mocks.
type SESService interface {
	SendEmail(ctx context.Context, input *ses.SendEmailInput) (*ses.SendEmailOutput, error)
}

type SNSService interface {
	Publish(ctx context.Context, input *sns.PublishInput) (*sns.PublishOutput, error)
}

// Notifier escalates serious findings to the agency ethics office. Either
// channel may be absent; a failure on one never blocks the other.
type Notifier struct {
	config *Config
	ses    SESService
	sns    SNSService
	log    logger.Logger
}

func NewNotifier(cfg *Config, sesClient SESService, snsClient SNSService, log logger.Logger) *Notifier {
	return &Notifier{
		config: cfg,
		ses:    sesClient,
		sns:    snsClient,
		log:    log.With(map[string]interface{}{"component": "notify"}),
	}
}

// ShouldEscalate reports whether a finding crosses the escalation
// threshold: a serious severity that demands immediate action.
func ShouldEscalate(assessment *models.StructuredAssessment) bool {
	return assessment != nil &&
		assessment.Severity == models.SeveritySerious &&
		assessment.ImmediateActionRequired
}

// Escalate sends the finding over every configured channel. It returns
// ErrEscalationSendFailed only when a channel was attempted and none
// delivered; callers treat that as a warning, never a consultation failure.
func (n *Notifier) Escalate(ctx context.Context, rec *models.ConsultationRecord, assessment *models.StructuredAssessment) error {
	if !n.config.Enabled {
		n.log.Debug("Escalation disabled, skipping", map[string]interface{}{
			"consultationId": rec.ID,
		})
		return nil
	}
	if !ShouldEscalate(assessment) {
		n.log.Debug("Finding below escalation threshold, skipping", map[string]interface{}{
			"consultationId": rec.ID,
		})
		return nil
	}

	subject := fmt.Sprintf("Serious ethics finding requires immediate action (%s)", agencyLabel(rec.Agency))
	body := n.buildBody(rec, assessment)

	attempted := 0
	delivered := 0

	if n.ses != nil && n.config.FromEmail != "" && n.config.EscalationEmail != "" {
		attempted++
		if err := n.sendEmail(ctx, subject, body); err != nil {
			n.log.Error("Escalation email failed", map[string]interface{}{
				"error":          err,
				"consultationId": rec.ID,
			})
		} else {
			delivered++
		}
	}

	if n.sns != nil && n.config.TopicARN != "" {
		attempted++
		if err := n.publish(ctx, subject, body); err != nil {
			n.log.Error("Escalation publish failed", map[string]interface{}{
				"error":          err,
				"consultationId": rec.ID,
			})
		} else {
			delivered++
		}
	}

	if attempted > 0 && delivered == 0 {
		return fmt.Errorf("%w: no channel delivered for consultation %s", ErrEscalationSendFailed, rec.ID)
	}

	n.log.Info("Escalation dispatched", map[string]interface{}{
		"consultationId": rec.ID,
		"agency":         rec.Agency,
		"channels":       delivered,
	})
	return nil
}

func (n *Notifier) buildBody(rec *models.ConsultationRecord, assessment *models.StructuredAssessment) string {
	return fmt.Sprintf(
		"Consultation %s was assessed as a serious violation requiring immediate action.\n\n"+
			"Agency: %s\n"+
			"Question: %s\n\n"+
			"Finding: %s\n"+
			"Next steps: %s\n",
		rec.ID,
		agencyLabel(rec.Agency),
		rec.Question,
		assessment.DirectAnswer,
		assessment.NextStepsSummary,
	)
}

func (n *Notifier) sendEmail(ctx context.Context, subject, body string) error {
	_, err := n.ses.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: []string{n.config.EscalationEmail},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(body)},
			},
		},
		Source: aws.String(n.config.FromEmail),
	})
	return err
}

func (n *Notifier) publish(ctx context.Context, subject, body string) error {
	_, err := n.sns.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(n.config.TopicARN),
		Subject:  aws.String(subject),
		Message:  aws.String(body),
	})
	return err
}

func agencyLabel(agency string) string {
	if agency == "" {
		return "agency not specified"
	}
	return agency
}
