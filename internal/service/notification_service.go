package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/user-service/internal/config"
	"github.com/spec-kit/user-service/internal/events"
)

// NotificationService reacts to user lifecycle events. Delivery is stubbed
// out as log lines.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger.Named("notifications"),
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventUserRegistered, n.handleWelcome)
	n.dispatcher.Subscribe(events.EventUserCreated, n.handleWelcome)
	n.dispatcher.Subscribe(events.EventUserDeactivated, n.handleDeactivated)
}

func (n *NotificationService) handleWelcome(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.UserPayload)
	if !ok {
		return nil
	}
	n.logger.Info(string(event.Type), zap.String("user_id", event.UserID))
	n.sendEmailNotificationStub(ctx, event, payload.Email, "welcome")
	return nil
}

func (n *NotificationService) handleDeactivated(_ context.Context, event events.Event) error {
	n.logger.Info(string(event.Type), zap.String("user_id", event.UserID))
	return nil
}

func (n *NotificationService) sendEmailNotificationStub(_ context.Context, event events.Event, to, template string) {
	if strings.TrimSpace(n.cfg.EmailFrom) == "" || to == "" {
		return
	}
	n.logger.Debug("sendEmailNotificationStub",
		zap.String("from", n.cfg.EmailFrom),
		zap.String("to", to),
		zap.String("template", template),
		zap.String("event_id", event.ID))
}
