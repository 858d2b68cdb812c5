package service

import (
	"context"
	"time"

	"inventory-service/internal/models"
)

// Narrow store views consumed by each component. *store.Store satisfies
// all of them; tests substitute an in-memory implementation.

type ledgerStore interface {
	GetStockUnit(ctx context.Context, sku string) (*models.StockUnit, error)
	ListStockUnits(ctx context.Context) ([]models.StockUnit, error)
	IncreaseReserved(ctx context.Context, sku string, qty int) error
	DecreaseReserved(ctx context.Context, sku string, qty int) error
	CommitReserved(ctx context.Context, sku string, qty int) error
	SetTotal(ctx context.Context, sku string, qty int) error
}

type reservationStore interface {
	EnsureOrder(ctx context.Context, orderID string) error
	CreateReservation(ctx context.Context, r *models.Reservation) error
	GetReservation(ctx context.Context, id string) (*models.Reservation, error)
	TransitionReservation(ctx context.Context, id, toStatus string) (bool, error)
	ExtendReservation(ctx context.Context, id string, expiresAt time.Time) (bool, error)
	ListExpiredReservations(ctx context.Context, cutoff time.Time, limit int) ([]models.Reservation, error)
}

type settlementStore interface {
	GetOrder(ctx context.Context, orderID string) (*models.Order, error)
	TransitionOrder(ctx context.Context, orderID, toStatus string) (bool, error)
	GetActiveReservationsByOrder(ctx context.Context, orderID string) ([]models.Reservation, error)
	TransitionReservation(ctx context.Context, id, toStatus string) (bool, error)
	EnqueueReconciliation(ctx context.Context, entry *models.ReconciliationEntry) error
	ListOpenReconciliations(ctx context.Context) ([]models.ReconciliationEntry, error)
	ResolveReconciliation(ctx context.Context, id, resolution string) (bool, error)
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) error
}

// stockCache is the Redis fast path. A nil cache degrades to DB-only
// operation; the database stays authoritative either way.
type stockCache interface {
	ReserveStock(ctx context.Context, sku string, quantity int) (bool, error)
	ReleaseStock(ctx context.Context, sku string, quantity int) error
	CommitStock(ctx context.Context, sku string, quantity int) error
	InitStock(ctx context.Context, sku string, available, reserved int) error
	SetIdempotencyKey(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

type eventPublisher interface {
	PublishReservationEvent(ctx context.Context, eventType string, r *models.Reservation, reason string) error
	PublishSweepCompleted(ctx context.Context, released, quantity int) error
}
