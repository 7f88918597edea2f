package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/sla-engine/internal/config"
	"github.com/spec-kit/sla-engine/internal/events"
)

// NotificationService is the outward notification collaborator: it fans
// engine events out to each recipient. Dispatch is fire-and-forget from the
// engine's perspective; delivery failures are logged here, never retried by
// the core.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketCreated, n.handleEvent)
	n.dispatcher.Subscribe(events.EventTicketStatusChanged, n.handleEvent)
	n.dispatcher.Subscribe(events.EventTicketAssigned, n.handleEvent)
	n.dispatcher.Subscribe(events.EventTicketEscalated, n.handleEvent)
	n.dispatcher.Subscribe(events.EventSLAWarning, n.handleEvent)
	n.dispatcher.Subscribe(events.EventSLABreach, n.handleEvent)
}

func (n *NotificationService) handleEvent(ctx context.Context, event events.Event) error {
	n.logger.Info(string(event.Type),
		zap.String("ticket_id", event.TicketID),
		zap.Strings("recipients", event.Recipients),
		zap.Any("payload", event.Payload))
	for _, userID := range event.Recipients {
		n.sendEmailNotificationStub(ctx, userID, event)
		n.sendWebhookNotificationStub(ctx, userID, event)
	}
	return nil
}

func (n *NotificationService) sendEmailNotificationStub(ctx context.Context, userID string, event events.Event) {
	if strings.TrimSpace(n.cfg.EmailFrom) == "" {
		return
	}
	n.logger.Debug("sendEmailNotificationStub",
		zap.String("from", n.cfg.EmailFrom),
		zap.String("user_id", userID),
		zap.String("ticket_id", event.TicketID),
		zap.String("event_type", string(event.Type)))
}

func (n *NotificationService) sendWebhookNotificationStub(ctx context.Context, userID string, event events.Event) {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return
	}
	n.logger.Debug("sendWebhookNotificationStub",
		zap.String("url", n.cfg.WebhookURL),
		zap.String("user_id", userID),
		zap.String("ticket_id", event.TicketID),
		zap.String("event_type", string(event.Type)))
}
