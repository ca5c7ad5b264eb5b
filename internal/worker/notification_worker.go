package worker

import (
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/service"
)

// StartNotificationWorker subscribes the notification fan-out to every event
// the engines publish on dispatcher. Without a publisher or channel events
// are only logged.
func StartNotificationWorker(dispatcher events.Dispatcher, publisher service.EventPublisher, logger *zap.Logger, cfg config.NotificationConfig) *service.NotificationService {
	if dispatcher == nil {
		return nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	notifications := service.NewNotificationService(dispatcher, publisher, logger, cfg)
	notifications.RegisterHandlers()
	if publisher != nil && cfg.RedisChannel != "" {
		logger.Debug("forwarding events", zap.String("channel", cfg.RedisChannel))
	} else {
		logger.Debug("event forwarding disabled")
	}
	return notifications
}
