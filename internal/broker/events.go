package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"provenance-service/internal/models"
	"provenance-service/internal/util"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Publisher is the part of Producer the event publisher needs.
type Publisher interface {
	PublishEvent(ctx context.Context, key string, event interface{}) error
}

// EventPublisher streams ledger-accepted provenance events.
type EventPublisher struct {
	producer Publisher
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer Publisher) *EventPublisher {
	return &EventPublisher{producer: producer}
}

func productKey(productID string) string {
	return fmt.Sprintf("product-%s", productID)
}

func newBaseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now().UTC(),
	}
}

// MirrorProduct publishes a PRODUCT_CREATED event.
func (ep *EventPublisher) MirrorProduct(ctx context.Context, p models.Product) error {
	event := &models.ProductCreatedEvent{
		BaseEvent: newBaseEvent(models.EventTypeProductCreated),
		Product:   p,
	}
	return ep.producer.PublishEvent(ctx, productKey(p.ProductID), event)
}

// MirrorStep publishes a STEP_RECORDED event. Consumers derive the status
// from the step type.
func (ep *EventPublisher) MirrorStep(ctx context.Context, s models.Step, _ models.Status) error {
	event := &models.StepRecordedEvent{
		BaseEvent: newBaseEvent(models.EventTypeStepRecorded),
		Step:      s,
	}
	return ep.producer.PublishEvent(ctx, productKey(s.ProductID), event)
}

// EventHandler handles incoming events
type EventHandler struct {
	onProductCreated func(context.Context, *models.ProductCreatedEvent) error
	onStepRecorded   func(context.Context, *models.StepRecordedEvent) error
	logger           *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{logger: util.GetLogger()}
}

// OnProductCreated registers a handler for PRODUCT_CREATED events
func (eh *EventHandler) OnProductCreated(handler func(context.Context, *models.ProductCreatedEvent) error) {
	eh.onProductCreated = handler
}

// OnStepRecorded registers a handler for STEP_RECORDED events
func (eh *EventHandler) OnStepRecorded(handler func(context.Context, *models.StepRecordedEvent) error) {
	eh.onStepRecorded = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	eh.logger.Debug("Handling event",
		zap.String("type", baseEvent.EventType),
		zap.String("id", baseEvent.EventID))

	switch baseEvent.EventType {
	case models.EventTypeProductCreated:
		if eh.onProductCreated != nil {
			var event models.ProductCreatedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal ProductCreated event: %w", err)
			}
			return eh.onProductCreated(ctx, &event)
		}

	case models.EventTypeStepRecorded:
		if eh.onStepRecorded != nil {
			var event models.StepRecordedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal StepRecorded event: %w", err)
			}
			return eh.onStepRecorded(ctx, &event)
		}

	default:
		eh.logger.Warn("Unhandled event type", zap.String("type", baseEvent.EventType))
	}

	return nil
}
