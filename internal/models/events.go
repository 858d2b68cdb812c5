package models

import "time"

// Event types consumed from payment integrations (Stripe, PayPal, COD
// relays publish these after resolving provider metadata to an order id).
const (
	EventTypePaymentConfirmed = "PAYMENT_CONFIRMED"
	EventTypePaymentFailed    = "PAYMENT_FAILED"
	EventTypeOrderCancelled   = "ORDER_CANCELLED"
)

// Event types published on the stock topic.
const (
	EventTypeReservationCreated  = "RESERVATION_CREATED"
	EventTypeReservationReleased = "RESERVATION_RELEASED"
	EventTypeReservationExpired  = "RESERVATION_EXPIRED"
	EventTypeStockCommitted      = "STOCK_COMMITTED"
	EventTypeSweepCompleted      = "SWEEP_COMPLETED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// PaymentEvent is delivered by a payment webhook relay. Provider wire
// formats are opaque to this service; the relay supplies the order id.
type PaymentEvent struct {
	BaseEvent
	OrderID  string `json:"order_id"`
	Provider string `json:"provider"`
	Reason   string `json:"reason,omitempty"`
}

// ReservationEvent published when a reservation changes state.
type ReservationEvent struct {
	BaseEvent
	ReservationID string `json:"reservation_id"`
	OrderID       string `json:"order_id"`
	SKU           string `json:"sku"`
	Quantity      int    `json:"quantity"`
	Reason        string `json:"reason,omitempty"`
}

// SweepCompletedEvent published after each expiry sweep run.
type SweepCompletedEvent struct {
	BaseEvent
	ReservationsReleased int `json:"reservations_released"`
	QuantityReleased     int `json:"quantity_released"`
}
