package notifier

import (
	"fmt"
	"log/slog"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/serisow/metrodoc/config"
	"github.com/serisow/metrodoc/textutil"
)

// Notifier alerts the operations contact about terminal processing
// failures.
type Notifier interface {
	NotifyProcessingFailure(docID int64, docTitle, reason string) error
}

// SMSNotifier sends the alert through Twilio.
type SMSNotifier struct {
	client     *twilio.RestClient
	fromNumber string
	toNumber   string
	logger     *slog.Logger
}

func NewSMSNotifier(cfg config.Config, logger *slog.Logger) *SMSNotifier {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.TwilioAccountSID,
		Password: cfg.TwilioAuthToken,
	})
	return &SMSNotifier{
		client:     client,
		fromNumber: cfg.TwilioFromNumber,
		toNumber:   cfg.OpsAlertNumber,
		logger:     logger,
	}
}

func (n *SMSNotifier) NotifyProcessingFailure(docID int64, docTitle, reason string) error {
	body := fmt.Sprintf("metrodoc: document %d (%s) failed processing after all retries: %s",
		docID, docTitle, textutil.Truncate(reason, 200))

	params := &twilioApi.CreateMessageParams{
		To:   &n.toNumber,
		From: &n.fromNumber,
		Body: &body,
	}

	message, err := n.client.Api.CreateMessage(params)
	if err != nil {
		n.logger.Error("Failed to send SMS alert",
			slog.String("error", err.Error()),
			slog.String("to", n.toNumber))
		return fmt.Errorf("failed to send SMS: %w", err)
	}

	n.logger.Info("Sent processing failure alert",
		slog.Int64("doc_id", docID),
		slog.String("message_sid", *message.Sid))
	return nil
}

// NoopNotifier is used when Twilio credentials are not configured.
type NoopNotifier struct {
	Logger *slog.Logger
}

func (n *NoopNotifier) NotifyProcessingFailure(docID int64, docTitle, reason string) error {
	if n.Logger != nil {
		n.Logger.Warn("Processing failure alert suppressed, SMS not configured",
			slog.Int64("doc_id", docID),
			slog.String("reason", reason))
	}
	return nil
}
