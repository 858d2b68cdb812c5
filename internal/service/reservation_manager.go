package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"inventory-service/internal/models"
	"inventory-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrDuplicateRequest       = errors.New("duplicate request")
	ErrReservationNotActive   = errors.New("reservation is not active")
	ErrInvalidReservationItem = errors.New("invalid reservation item")
)

const idempotencyKeyTTL = 24 * time.Hour

// ReservationManager orchestrates creation and release of reservations
// while keeping the ledger consistent. It holds no locks of its own:
// the ledger's atomic adjustments are the sole concurrency control.
type ReservationManager struct {
	ledger     *Ledger
	store      reservationStore
	cache      stockCache
	publisher  eventPublisher
	defaultTTL time.Duration
	logger     *zap.Logger
}

// NewReservationManager creates a new reservation manager. cache may be nil.
func NewReservationManager(
	ledger *Ledger,
	store reservationStore,
	cache stockCache,
	publisher eventPublisher,
	defaultTTL time.Duration,
) *ReservationManager {
	return &ReservationManager{
		ledger:     ledger,
		store:      store,
		cache:      cache,
		publisher:  publisher,
		defaultTTL: defaultTTL,
		logger:     util.GetLogger(),
	}
}

// ReserveRequest asks for a time-bounded hold on one or more SKUs.
type ReserveRequest struct {
	OrderID        string                   `json:"order_id" binding:"required"`
	Items          []ReservationItemRequest `json:"items" binding:"required,min=1"`
	TTLSeconds     int                      `json:"ttl_seconds,omitempty"`
	IdempotencyKey string                   `json:"idempotency_key,omitempty"`
}

// ReservationItemRequest is one line of a reserve request.
type ReservationItemRequest struct {
	SKU      string `json:"sku" binding:"required"`
	Quantity int    `json:"quantity" binding:"required,min=1"`
}

// ReserveResponse returns the holds created for a checkout attempt.
type ReserveResponse struct {
	OrderID        string    `json:"order_id"`
	ReservationIDs []string  `json:"reservation_ids"`
	ExpiresAt      time.Time `json:"expires_at"`
}

// Reserve holds stock for every item or for none: when any SKU lacks
// availability, every hold already taken in this call is released before
// the failure is returned.
func (m *ReservationManager) Reserve(ctx context.Context, req *ReserveRequest) (*ReserveResponse, error) {
	ctx, span := util.StartSpan(ctx, "ReservationManager.Reserve")
	defer span.End()

	start := time.Now()
	defer func() {
		util.ReserveLatency.Observe(time.Since(start).Seconds())
	}()

	if err := validateItems(req.Items); err != nil {
		util.ReservationsFailedTotal.WithLabelValues("invalid_items").Inc()
		return nil, err
	}

	if req.IdempotencyKey != "" && m.cache != nil {
		ok, err := m.cache.SetIdempotencyKey(ctx, req.IdempotencyKey, idempotencyKeyTTL)
		if err != nil {
			m.logger.Warn("Idempotency check unavailable",
				zap.String("order_id", req.OrderID),
				zap.Error(err))
		} else if !ok {
			return nil, ErrDuplicateRequest
		}
	}

	ttl := m.defaultTTL
	if req.TTLSeconds > 0 {
		ttl = time.Duration(req.TTLSeconds) * time.Second
	}

	if err := m.store.EnsureOrder(ctx, req.OrderID); err != nil {
		return nil, err
	}

	reserved := make([]ReservationItemRequest, 0, len(req.Items))
	for _, item := range req.Items {
		if err := m.ledger.IncreaseReserved(ctx, item.SKU, item.Quantity); err != nil {
			util.ReservationsFailedTotal.WithLabelValues("insufficient_stock").Inc()
			m.rollbackHolds(ctx, req.OrderID, reserved)
			return nil, fmt.Errorf("failed to reserve sku %s: %w", item.SKU, err)
		}
		reserved = append(reserved, item)
	}

	expiresAt := time.Now().Add(ttl)
	ids := make([]string, 0, len(req.Items))
	created := make([]*models.Reservation, 0, len(req.Items))

	for _, item := range req.Items {
		reservation := &models.Reservation{
			ID:        uuid.New().String(),
			OrderID:   req.OrderID,
			SKU:       item.SKU,
			Quantity:  item.Quantity,
			Status:    models.ReservationStatusActive,
			ExpiresAt: expiresAt,
		}

		if err := m.store.CreateReservation(ctx, reservation); err != nil {
			util.ReservationsFailedTotal.WithLabelValues("db_error").Inc()
			m.rollbackHolds(ctx, req.OrderID, reserved)
			m.rollbackRows(ctx, created)
			return nil, fmt.Errorf("failed to persist reservation: %w", err)
		}

		ids = append(ids, reservation.ID)
		created = append(created, reservation)
	}

	util.ReservationsCreatedTotal.Add(float64(len(created)))

	for _, r := range created {
		if err := m.publisher.PublishReservationEvent(ctx, models.EventTypeReservationCreated, r, ""); err != nil {
			m.logger.Error("Failed to publish reservation created event",
				zap.String("reservation_id", r.ID),
				zap.Error(err))
		}
	}

	m.logger.Info("Reservations created",
		zap.String("order_id", req.OrderID),
		zap.Int("items", len(created)),
		zap.Time("expires_at", expiresAt))

	return &ReserveResponse{
		OrderID:        req.OrderID,
		ReservationIDs: ids,
		ExpiresAt:      expiresAt,
	}, nil
}

// rollbackHolds releases ledger holds taken earlier in a failed Reserve call
func (m *ReservationManager) rollbackHolds(ctx context.Context, orderID string, items []ReservationItemRequest) {
	for _, item := range items {
		if err := m.ledger.DecreaseReserved(ctx, item.SKU, item.Quantity); err != nil {
			m.logger.Error("Failed to roll back hold",
				zap.String("order_id", orderID),
				zap.String("sku", item.SKU),
				zap.Int("quantity", item.Quantity),
				zap.Error(err))
		}
	}
}

// rollbackRows marks already-persisted reservations RELEASED after a
// mid-call persistence failure
func (m *ReservationManager) rollbackRows(ctx context.Context, created []*models.Reservation) {
	for _, r := range created {
		if _, err := m.store.TransitionReservation(ctx, r.ID, models.ReservationStatusReleased); err != nil {
			m.logger.Error("Failed to roll back reservation row",
				zap.String("reservation_id", r.ID),
				zap.Error(err))
		}
	}
}

// Release returns a reservation's stock to availability. Terminal
// reservations are a no-op so webhook retries and races with settlement
// stay safe.
func (m *ReservationManager) Release(ctx context.Context, reservationID, reason string) error {
	ctx, span := util.StartSpan(ctx, "ReservationManager.Release")
	defer span.End()

	reservation, err := m.store.GetReservation(ctx, reservationID)
	if err != nil {
		return err
	}

	if models.IsTerminal(reservation.Status) {
		m.logger.Info("Release on terminal reservation ignored",
			zap.String("reservation_id", reservationID),
			zap.String("status", reservation.Status))
		return nil
	}

	claimed, err := m.store.TransitionReservation(ctx, reservationID, models.ReservationStatusReleased)
	if err != nil {
		return err
	}
	if !claimed {
		// lost the race to settlement or the sweeper
		return nil
	}

	if err := m.ledger.DecreaseReserved(ctx, reservation.SKU, reservation.Quantity); err != nil {
		m.logger.Error("Failed to return released stock to ledger",
			zap.String("reservation_id", reservationID),
			zap.String("sku", reservation.SKU),
			zap.Int("quantity", reservation.Quantity),
			zap.Error(err))
		return err
	}

	util.ReservationsReleasedTotal.WithLabelValues(reason).Inc()

	if err := m.publisher.PublishReservationEvent(ctx, models.EventTypeReservationReleased, reservation, reason); err != nil {
		m.logger.Error("Failed to publish reservation released event",
			zap.String("reservation_id", reservationID),
			zap.Error(err))
	}

	return nil
}

// Extend pushes out the expiry of an ACTIVE reservation while its
// checkout session is still in progress.
func (m *ReservationManager) Extend(ctx context.Context, reservationID string, newTTL time.Duration) (time.Time, error) {
	ctx, span := util.StartSpan(ctx, "ReservationManager.Extend")
	defer span.End()

	if newTTL <= 0 {
		newTTL = m.defaultTTL
	}

	expiresAt := time.Now().Add(newTTL)
	extended, err := m.store.ExtendReservation(ctx, reservationID, expiresAt)
	if err != nil {
		return time.Time{}, err
	}
	if !extended {
		return time.Time{}, ErrReservationNotActive
	}

	return expiresAt, nil
}

// GetReservation retrieves a reservation by ID
func (m *ReservationManager) GetReservation(ctx context.Context, reservationID string) (*models.Reservation, error) {
	return m.store.GetReservation(ctx, reservationID)
}

func validateItems(items []ReservationItemRequest) error {
	seen := make(map[string]bool, len(items))
	for _, item := range items {
		if item.SKU == "" || item.Quantity < 1 {
			return ErrInvalidReservationItem
		}
		if seen[item.SKU] {
			return fmt.Errorf("%w: duplicate sku %s", ErrInvalidReservationItem, item.SKU)
		}
		seen[item.SKU] = true
	}
	return nil
}
