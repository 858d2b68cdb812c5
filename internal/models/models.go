package models

import "time"

// StockUnit tracks physical and reserved stock for one SKU.
// Available stock is always derived, never stored.
type StockUnit struct {
	SKU              string    `db:"sku" json:"sku"`
	TotalQuantity    int       `db:"total_quantity" json:"total_quantity"`
	ReservedQuantity int       `db:"reserved_quantity" json:"reserved_quantity"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}

// Available returns stock not held by any reservation.
func (s *StockUnit) Available() int {
	return s.TotalQuantity - s.ReservedQuantity
}

// Reservation is a time-bounded hold on stock for one order line.
type Reservation struct {
	ID        string    `db:"id" json:"id"`
	OrderID   string    `db:"order_id" json:"order_id"`
	SKU       string    `db:"sku" json:"sku"`
	Quantity  int       `db:"quantity" json:"quantity"`
	Status    string    `db:"status" json:"status"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	ExpiresAt time.Time `db:"expires_at" json:"expires_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Reservation statuses. ACTIVE transitions exactly once to one of the
// terminal states; terminal states are immutable.
const (
	ReservationStatusActive    = "ACTIVE"
	ReservationStatusCommitted = "COMMITTED"
	ReservationStatusReleased  = "RELEASED"
	ReservationStatusExpired   = "EXPIRED"
)

// IsTerminal reports whether a reservation status can no longer change.
func IsTerminal(status string) bool {
	return status != ReservationStatusActive
}

// Order is the settlement view of an order. The storefront owns the full
// order record; this service only drives the payment-settlement status.
type Order struct {
	ID        string    `db:"id" json:"id"`
	Status    string    `db:"status" json:"status"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Order settlement statuses
const (
	OrderStatusAwaitingPayment = "AWAITING_PAYMENT"
	OrderStatusPaid            = "PAID"
	OrderStatusFailed          = "FAILED"
	OrderStatusCancelled       = "CANCELLED"
	OrderStatusReconcile       = "NEEDS_RECONCILIATION"
)

// ReconciliationEntry records a settlement that could not complete
// automatically, e.g. a payment confirmed after its reservation was
// already swept and the stock resold.
type ReconciliationEntry struct {
	ID         string     `db:"id" json:"id"`
	OrderID    string     `db:"order_id" json:"order_id"`
	SKU        string     `db:"sku" json:"sku"`
	Quantity   int        `db:"quantity" json:"quantity"`
	Reason     string     `db:"reason" json:"reason"`
	Resolution string     `db:"resolution" json:"resolution,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	ResolvedAt *time.Time `db:"resolved_at" json:"resolved_at,omitempty"`
}

// Reconciliation resolutions chosen by an operator.
const (
	ResolutionRefund    = "REFUND"
	ResolutionReReserve = "RE_RESERVE"
)

// ProcessedEvent for idempotency
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}
