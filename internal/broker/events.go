package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"inventory-service/internal/models"
	"inventory-service/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventPublisher handles publishing domain events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

func saleKey(id int64) string  { return fmt.Sprintf("sale-%d", id) }
func orderKey(id int64) string { return fmt.Sprintf("purchase-order-%d", id) }

// PublishSaleCreated publishes SaleCreated event
func (ep *EventPublisher) PublishSaleCreated(ctx context.Context, event *models.SaleCreatedEvent) error {
	return ep.producer.PublishEvent(ctx, saleKey(event.SaleID), event)
}

// PublishSaleCancelled publishes SaleCancelled event
func (ep *EventPublisher) PublishSaleCancelled(ctx context.Context, event *models.SaleCancelledEvent) error {
	return ep.producer.PublishEvent(ctx, saleKey(event.SaleID), event)
}

// PublishCompensationPending publishes CompensationPending event
func (ep *EventPublisher) PublishCompensationPending(ctx context.Context, event *models.CompensationPendingEvent) error {
	return ep.producer.PublishEvent(ctx, saleKey(event.SaleID), event)
}

// PublishPurchaseOrderSubmitted publishes PurchaseOrderSubmitted event
func (ep *EventPublisher) PublishPurchaseOrderSubmitted(ctx context.Context, event *models.PurchaseOrderSubmittedEvent) error {
	return ep.producer.PublishEvent(ctx, orderKey(event.OrderID), event)
}

// PublishPurchaseOrderArrived publishes PurchaseOrderArrived event
func (ep *EventPublisher) PublishPurchaseOrderArrived(ctx context.Context, event *models.PurchaseOrderArrivedEvent) error {
	return ep.producer.PublishEvent(ctx, orderKey(event.OrderID), event)
}

// PublishStockAdjusted publishes StockAdjusted event
func (ep *EventPublisher) PublishStockAdjusted(ctx context.Context, event *models.StockAdjustedEvent) error {
	return ep.producer.PublishEvent(ctx, fmt.Sprintf("item-%d", event.ItemID), event)
}

// EventHandler handles incoming events
type EventHandler struct {
	onCompensationPending func(context.Context, *models.CompensationPendingEvent) error
	logger                *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{logger: util.ComponentLogger("event-handler")}
}

// OnCompensationPending registers a handler for CompensationPending events
func (eh *EventHandler) OnCompensationPending(handler func(context.Context, *models.CompensationPendingEvent) error) {
	eh.onCompensationPending = handler
}

// HandleMessage routes messages to appropriate handlers. Event types without
// a registered handler are acknowledged and skipped.
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	eh.logger.Debug("Handling event",
		zap.String("type", baseEvent.EventType),
		zap.String("event_id", baseEvent.EventID))

	switch baseEvent.EventType {
	case models.EventTypeCompensationPending:
		if eh.onCompensationPending != nil {
			var event models.CompensationPendingEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal CompensationPending event: %w", err)
			}
			return eh.onCompensationPending(ctx, &event)
		}
	}

	return nil
}
