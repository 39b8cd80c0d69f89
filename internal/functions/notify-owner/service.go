package notifyowner

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	commonaws "contact-functions/internal/common/aws"
	"contact-functions/internal/common/errors"
	"contact-functions/internal/common/logger"
	"contact-functions/internal/common/metrics"
	"contact-functions/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/google/uuid"
)

const FunctionName = "notify-owner"

// Define interfaces for mocking
type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// Service tells the site owner about new inquiries by email and SMS.
type Service struct {
	config    *Config
	logger    logger.Logger
	sesClient SESService
	snsClient SNSService
	now       func() time.Time
}

// NewService builds AWS clients for the enabled channels.
func NewService(ctx context.Context, cfg *Config, log logger.Logger) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", FunctionName, err)
	}

	var sesClient SESService
	var snsClient SNSService
	if cfg.Enabled() {
		awsCfg, err := commonaws.LoadConfig(ctx, cfg.AWSRegion)
		if err != nil {
			return nil, err
		}
		if cfg.EmailEnabled {
			sesClient = commonaws.NewSESClient(awsCfg)
		}
		if cfg.SMSEnabled {
			snsClient = commonaws.NewSNSClient(awsCfg)
		}
	}

	return NewServiceWithClients(cfg, sesClient, snsClient, log), nil
}

func NewServiceWithClients(cfg *Config, sesClient SESService, snsClient SNSService, log logger.Logger) *Service {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Service{
		config:    cfg,
		logger:    log.WithFields(map[string]interface{}{"function": FunctionName}),
		sesClient: sesClient,
		snsClient: snsClient,
		now:       time.Now,
	}
}

// Notify sends the inquiry on every enabled channel. It fails only when
// every attempted channel failed.
func (s *Service) Notify(ctx context.Context, record models.InquiryRecord) (*models.OwnerNotification, error) {
	data := map[string]interface{}{
		"name":    record.Name,
		"email":   record.Email,
		"phone":   record.Phone,
		"message": record.Message,
		"date":    record.SubmittedAt,
	}

	notification := &models.OwnerNotification{
		ID:      uuid.New().String(),
		Status:  StatusDisabled,
		Subject: renderTemplate(emailSubjectTemplate, data),
		Body:    renderTemplate(emailBodyTemplate, data),
		SentAt:  s.now().UTC().Format(time.RFC3339),
	}

	var attempted, sent int
	var failures []error

	if s.config.EmailEnabled && s.sesClient != nil {
		attempted++
		if err := s.sendEmail(ctx, notification.Subject, notification.Body); err != nil {
			failures = append(failures, s.recordFailure(ChannelEmail, err))
		} else {
			sent++
			notification.Channels = append(notification.Channels, ChannelEmail)
			metrics.NotificationsSent.WithLabelValues(ChannelEmail, "success").Inc()
		}
	}

	if s.config.SMSEnabled && s.snsClient != nil {
		attempted++
		if err := s.sendSMS(ctx, renderTemplate(smsTemplate, data)); err != nil {
			failures = append(failures, s.recordFailure(ChannelSMS, err))
		} else {
			sent++
			notification.Channels = append(notification.Channels, ChannelSMS)
			metrics.NotificationsSent.WithLabelValues(ChannelSMS, "success").Inc()
		}
	}

	switch {
	case attempted == 0:
		notification.Status = StatusDisabled
	case sent == attempted:
		notification.Status = StatusSent
	case sent > 0:
		notification.Status = StatusPartial
	default:
		notification.Status = StatusFailed
		return notification, stderrors.Join(failures...)
	}

	return notification, nil
}

func (s *Service) recordFailure(channel string, err error) error {
	metrics.NotificationsSent.WithLabelValues(channel, "error").Inc()
	stdErr := errors.NewNotificationSendFailedError(channel, err)
	s.logger.Error("Notification send failed", map[string]interface{}{
		"channel":   channel,
		"errorCode": string(stdErr.Code),
		"error":     err.Error(),
	})
	return stdErr
}

func (s *Service) sendEmail(ctx context.Context, subject, body string) error {
	_, err := s.sesClient.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: []string{s.config.ToEmail},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(body)},
			},
		},
		Source: aws.String(s.config.FromEmail),
	})
	return err
}

func (s *Service) sendSMS(ctx context.Context, message string) error {
	_, err := s.snsClient.Publish(ctx, &sns.PublishInput{
		PhoneNumber: aws.String(s.config.PhoneNumber),
		Message:     aws.String(message),
	})
	return err
}

// renderTemplate replaces {{key}} placeholders in a single pass, so
// submitted values are never expanded. Unknown keys render as empty.
func renderTemplate(tmpl string, data map[string]interface{}) string {
	var b strings.Builder
	rest := tmpl

	for {
		start := strings.Index(rest, "{{")
		if start == -1 {
			break
		}
		end := strings.Index(rest[start:], "}}")
		if end == -1 {
			break
		}
		b.WriteString(rest[:start])

		key := rest[start+2 : start+end]
		if v, ok := data[key]; ok && v != nil {
			if s, ok := v.(string); ok {
				b.WriteString(s)
			} else {
				fmt.Fprintf(&b, "%v", v)
			}
		}
		rest = rest[start+end+2:]
	}
	b.WriteString(rest)

	return b.String()
}
