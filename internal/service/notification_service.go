package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bridge/internal/events"
	"github.com/spec-kit/ticket-bridge/internal/observability"
)

// NotificationService observes lifecycle events for operational
// visibility: structured log lines plus pipeline counters.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, metrics *observability.Metrics) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		metrics:    metrics,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketCreated, n.handleTicketCreated)
	n.dispatcher.Subscribe(events.EventTicketMessageAdded, n.handleTicketMessageAdded)
	n.dispatcher.Subscribe(events.EventTicketClosed, n.handleTicketClosed)
}

func (n *NotificationService) handleTicketCreated(ctx context.Context, event events.Event) error {
	n.metrics.RecordEvent("ticket_created")
	n.logger.Info("TicketCreated",
		zap.String("ticket_id", event.TicketID),
		zap.String("origin", string(event.Origin)),
		zap.Any("payload", event.Payload))
	return nil
}

func (n *NotificationService) handleTicketMessageAdded(ctx context.Context, event events.Event) error {
	n.metrics.RecordEvent("ticket_message_added")
	n.logger.Info("TicketMessageAdded",
		zap.String("ticket_id", event.TicketID),
		zap.String("origin", string(event.Origin)),
		zap.Any("payload", event.Payload))
	return nil
}

func (n *NotificationService) handleTicketClosed(ctx context.Context, event events.Event) error {
	n.metrics.RecordEvent("ticket_closed")
	n.logger.Info("TicketClosed",
		zap.String("ticket_id", event.TicketID),
		zap.String("origin", string(event.Origin)),
		zap.Any("payload", event.Payload))
	return nil
}
