package worker

import (
	"go.uber.org/zap"

	"github.com/spec-kit/user-service/internal/config"
	"github.com/spec-kit/user-service/internal/events"
	"github.com/spec-kit/user-service/internal/service"
)

// StartNotificationWorker registers notification handlers and, when
// configured, forwards every user event to RabbitMQ. The returned func
// releases the broker connection.
func StartNotificationWorker(dispatcher events.Dispatcher, cfg config.Config, logger *zap.Logger) func() {
	service.NewNotificationService(dispatcher, logger, cfg.Notification).RegisterHandlers()

	if cfg.Events.AMQPURL == "" {
		return func() {}
	}
	forwarder, err := events.NewAMQPForwarder(cfg.Events.AMQPURL, cfg.Events.AMQPQueue)
	if err != nil {
		logger.Warn("event forwarding disabled", zap.Error(err))
		return func() {}
	}
	forwarder.Attach(dispatcher)
	logger.Info("forwarding user events", zap.String("queue", cfg.Events.AMQPQueue))
	return forwarder.Close
}
