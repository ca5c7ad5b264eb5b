package service

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/events"
)

// EventPublisher pushes serialized events to an external channel.
type EventPublisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// NotificationService handles emitting notifications for domain events.
type NotificationService struct {
	dispatcher events.Dispatcher
	publisher  EventPublisher
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service. A nil publisher keeps
// notifications in the log only.
func NewNotificationService(dispatcher events.Dispatcher, publisher EventPublisher, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		publisher:  publisher,
		logger:     logger,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketCreated, n.handleTicketEvent)
	n.dispatcher.Subscribe(events.EventTicketAssigned, n.handleTicketEvent)
	n.dispatcher.Subscribe(events.EventTicketStatusChanged, n.handleTicketEvent)
	n.dispatcher.Subscribe(events.EventTicketNoteAdded, n.handleTicketEvent)
	n.dispatcher.Subscribe(events.EventTicketRated, n.handleTicketEvent)
	n.dispatcher.Subscribe(events.EventTicketAgentFlagged, n.handleAgentFlagged)
	n.dispatcher.Subscribe(events.EventChangeRequestRaised, n.handleChangeEvent)
	n.dispatcher.Subscribe(events.EventChangeRequestRenewed, n.handleChangeEvent)
	n.dispatcher.Subscribe(events.EventChangeRequestDecided, n.handleChangeEvent)
	n.dispatcher.Subscribe(events.EventChangeImplemented, n.handleChangeEvent)
	n.dispatcher.Subscribe(events.EventChangeRequestRemoved, n.handleChangeEvent)
	n.dispatcher.Subscribe(events.EventChangeRequestArchived, n.handleChangeEvent)
}

func (n *NotificationService) handleTicketEvent(ctx context.Context, event events.Event) error {
	n.logger.Info(string(event.Type), zap.Int64("ticket_id", event.EntityID), zap.Any("payload", event.Payload))
	return n.forward(ctx, event)
}

func (n *NotificationService) handleAgentFlagged(ctx context.Context, event events.Event) error {
	n.logger.Warn(string(event.Type), zap.Int64("ticket_id", event.EntityID), zap.Any("payload", event.Payload))
	return n.forward(ctx, event)
}

func (n *NotificationService) handleChangeEvent(ctx context.Context, event events.Event) error {
	n.logger.Info(string(event.Type), zap.Int64("change_id", event.EntityID), zap.Any("payload", event.Payload))
	return n.forward(ctx, event)
}

func (n *NotificationService) forward(ctx context.Context, event events.Event) error {
	channel := strings.TrimSpace(n.cfg.RedisChannel)
	if n.publisher == nil || channel == "" {
		return nil
	}
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if err := n.publisher.Publish(ctx, channel, body); err != nil {
		n.logger.Warn("publish notification failed",
			zap.String("channel", channel),
			zap.String("event_type", string(event.Type)),
			zap.Error(err))
		return err
	}
	n.logger.Debug("notification published",
		zap.String("channel", channel),
		zap.String("event_id", event.ID))
	return nil
}
