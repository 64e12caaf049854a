// internal/notify/sinks.go
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	commonaws "helpdesk-workers/internal/common/aws"
	"helpdesk-workers/internal/common/logger"
	"helpdesk-workers/internal/models"
)

// UserLookup resolves a user id to a deliverable address.
type UserLookup interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// subjectByEvent maps event names to email subjects. Unknown events get a
// generic subject rather than being dropped.
var subjectByEvent = map[string]string{
	"ticket.escalated":       "Your support ticket has been escalated",
	"ticket.assigned":        "A support ticket was assigned to you",
	"ticket.needs_attention": "A support ticket needs your attention",
	"ticket.auto_closed":     "Your support ticket has been resolved",
	"ticket.resolved":        "Your support ticket has been resolved",
}

// EmailSink delivers events over SES.
type EmailSink struct {
	client *commonaws.SESClient
	users  UserLookup
}

func NewEmailSink(client *commonaws.SESClient, users UserLookup) *EmailSink {
	return &EmailSink{client: client, users: users}
}

func (s *EmailSink) Deliver(ctx context.Context, event Event) error {
	user, err := s.users.GetByID(ctx, event.UserID)
	if err != nil {
		return fmt.Errorf("resolve recipient: %w", err)
	}

	subject, ok := subjectByEvent[event.Name]
	if !ok {
		subject = "Update on your support ticket"
	}

	body := fmt.Sprintf("Hello %s,\n\nThere is an update on your support ticket.\n", user.Name)
	if ticketID, ok := event.Payload["ticketId"].(string); ok {
		body += fmt.Sprintf("Ticket: %s\n", ticketID)
	}
	if reason, ok := event.Payload["reason"].(string); ok {
		body += fmt.Sprintf("Details: %s\n", reason)
	}

	return s.client.SendEmail(ctx, user.Email, subject, body)
}

// TopicSink publishes events to an SNS topic for downstream consumers
// (websocket fan-out, SMS, integrations).
type TopicSink struct {
	client   *commonaws.SNSClient
	topicARN string
}

func NewTopicSink(client *commonaws.SNSClient, topicARN string) *TopicSink {
	return &TopicSink{client: client, topicARN: topicARN}
}

func (s *TopicSink) Deliver(ctx context.Context, event Event) error {
	message, err := json.Marshal(map[string]interface{}{
		"userId":  event.UserID,
		"event":   event.Name,
		"payload": event.Payload,
	})
	if err != nil {
		return err
	}

	return s.client.PublishMessage(ctx, s.topicARN, string(message))
}

// LogSink records deliveries instead of sending them. Used when no provider
// is configured, and in development.
type LogSink struct {
	logger logger.Logger
}

func NewLogSink(log logger.Logger) *LogSink {
	return &LogSink{logger: log.WithFields(map[string]interface{}{"component": "notify-log-sink"})}
}

func (s *LogSink) Deliver(ctx context.Context, event Event) error {
	s.logger.Info("notification", map[string]interface{}{
		"userId":  event.UserID,
		"event":   event.Name,
		"payload": event.Payload,
	})
	return nil
}
