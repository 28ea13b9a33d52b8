package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"storefront/internal/models"
	"storefront/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Publisher writes a keyed event; implemented by *Producer
type Publisher interface {
	PublishEvent(ctx context.Context, key string, event interface{}) error
}

// EventPublisher handles publishing domain events
type EventPublisher struct {
	producer Publisher
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer Publisher) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishPurchaseCreated publishes PurchaseCreated event
func (ep *EventPublisher) PublishPurchaseCreated(ctx context.Context, event *models.PurchaseCreatedEvent) error {
	key := fmt.Sprintf("purchase-%d", event.PurchaseID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishCustomerRegistered publishes CustomerRegistered event
func (ep *EventPublisher) PublishCustomerRegistered(ctx context.Context, event *models.CustomerRegisteredEvent) error {
	key := fmt.Sprintf("customer-%d", event.CustomerID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishProductCreated publishes ProductCreated event
func (ep *EventPublisher) PublishProductCreated(ctx context.Context, event *models.ProductCreatedEvent) error {
	key := fmt.Sprintf("product-%d", event.ProductID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// EventHandler handles incoming events
type EventHandler struct {
	onPurchaseCreated    func(context.Context, *models.PurchaseCreatedEvent) error
	onCustomerRegistered func(context.Context, *models.CustomerRegisteredEvent) error
	onProductCreated     func(context.Context, *models.ProductCreatedEvent) error
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{}
}

// OnPurchaseCreated registers a handler for PurchaseCreated events
func (eh *EventHandler) OnPurchaseCreated(handler func(context.Context, *models.PurchaseCreatedEvent) error) {
	eh.onPurchaseCreated = handler
}

// OnCustomerRegistered registers a handler for CustomerRegistered events
func (eh *EventHandler) OnCustomerRegistered(handler func(context.Context, *models.CustomerRegisteredEvent) error) {
	eh.onCustomerRegistered = handler
}

// OnProductCreated registers a handler for ProductCreated events
func (eh *EventHandler) OnProductCreated(handler func(context.Context, *models.ProductCreatedEvent) error) {
	eh.onProductCreated = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	util.GetLogger().Debug("Handling event",
		zap.String("type", baseEvent.EventType),
		zap.String("id", baseEvent.EventID))

	switch baseEvent.EventType {
	case models.EventTypePurchaseCreated:
		if eh.onPurchaseCreated != nil {
			var event models.PurchaseCreatedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal PurchaseCreated event: %w", err)
			}
			return eh.onPurchaseCreated(ctx, &event)
		}

	case models.EventTypeCustomerRegistered:
		if eh.onCustomerRegistered != nil {
			var event models.CustomerRegisteredEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal CustomerRegistered event: %w", err)
			}
			return eh.onCustomerRegistered(ctx, &event)
		}

	case models.EventTypeProductCreated:
		if eh.onProductCreated != nil {
			var event models.ProductCreatedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal ProductCreated event: %w", err)
			}
			return eh.onProductCreated(ctx, &event)
		}

	default:
		util.GetLogger().Warn("Unhandled event type", zap.String("type", baseEvent.EventType))
	}

	return nil
}
