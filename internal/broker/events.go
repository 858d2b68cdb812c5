package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"inventory-service/internal/models"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// EventPublisher publishes stock lifecycle events for downstream
// consumers (order back-office, analytics).
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishReservationEvent publishes a reservation lifecycle event
func (ep *EventPublisher) PublishReservationEvent(ctx context.Context, eventType string, r *models.Reservation, reason string) error {
	event := &models.ReservationEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: eventType,
			Timestamp: time.Now(),
		},
		ReservationID: r.ID,
		OrderID:       r.OrderID,
		SKU:           r.SKU,
		Quantity:      r.Quantity,
		Reason:        reason,
	}

	key := fmt.Sprintf("order-%s", r.OrderID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishSweepCompleted publishes the result of an expiry sweep run
func (ep *EventPublisher) PublishSweepCompleted(ctx context.Context, released, quantity int) error {
	event := &models.SweepCompletedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeSweepCompleted,
			Timestamp: time.Now(),
		},
		ReservationsReleased: released,
		QuantityReleased:     quantity,
	}

	return ep.producer.PublishEvent(ctx, "sweep", event)
}

// EventHandler routes payment events delivered by provider relays
type EventHandler struct {
	onPaymentConfirmed func(context.Context, *models.PaymentEvent) error
	onPaymentFailed    func(context.Context, *models.PaymentEvent) error
	onOrderCancelled   func(context.Context, *models.PaymentEvent) error
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{}
}

// OnPaymentConfirmed registers a handler for PaymentConfirmed events
func (eh *EventHandler) OnPaymentConfirmed(handler func(context.Context, *models.PaymentEvent) error) {
	eh.onPaymentConfirmed = handler
}

// OnPaymentFailed registers a handler for PaymentFailed events
func (eh *EventHandler) OnPaymentFailed(handler func(context.Context, *models.PaymentEvent) error) {
	eh.onPaymentFailed = handler
}

// OnOrderCancelled registers a handler for OrderCancelled events
func (eh *EventHandler) OnOrderCancelled(handler func(context.Context, *models.PaymentEvent) error) {
	eh.onOrderCancelled = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var event models.PaymentEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return fmt.Errorf("failed to unmarshal payment event: %w", err)
	}

	log.Printf("Handling event: type=%s, id=%s", event.EventType, event.EventID)

	switch event.EventType {
	case models.EventTypePaymentConfirmed:
		if eh.onPaymentConfirmed != nil {
			return eh.onPaymentConfirmed(ctx, &event)
		}

	case models.EventTypePaymentFailed:
		if eh.onPaymentFailed != nil {
			return eh.onPaymentFailed(ctx, &event)
		}

	case models.EventTypeOrderCancelled:
		if eh.onOrderCancelled != nil {
			return eh.onOrderCancelled(ctx, &event)
		}

	default:
		log.Printf("Unhandled event type: %s", event.EventType)
	}

	return nil
}
