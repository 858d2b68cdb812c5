package service

import (
	"context"
	"fmt"

	"inventory-service/internal/models"
	"inventory-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SettlementCoordinator drives the per-order settlement state machine:
// AWAITING_PAYMENT -> {PAID, FAILED, CANCELLED, NEEDS_RECONCILIATION}.
// Order state is checked before any reservation is touched, so duplicate
// provider notifications degrade to no-ops.
type SettlementCoordinator struct {
	store     settlementStore
	ledger    *Ledger
	publisher eventPublisher
	logger    *zap.Logger
}

// NewSettlementCoordinator creates a new settlement coordinator
func NewSettlementCoordinator(store settlementStore, ledger *Ledger, publisher eventPublisher) *SettlementCoordinator {
	return &SettlementCoordinator{
		store:     store,
		ledger:    ledger,
		publisher: publisher,
		logger:    util.GetLogger(),
	}
}

// HandlePaymentEvent is the single entry point for payment notifications,
// whether they arrive over Kafka or the HTTP webhook. Event ids are
// deduplicated in the store before any state changes.
func (sc *SettlementCoordinator) HandlePaymentEvent(ctx context.Context, event *models.PaymentEvent) error {
	ctx, span := util.StartSpan(ctx, "SettlementCoordinator.HandlePaymentEvent")
	defer span.End()

	if event.EventID != "" {
		processed, err := sc.store.IsEventProcessed(ctx, event.EventID)
		if err != nil {
			return fmt.Errorf("failed to check event processed: %w", err)
		}
		if processed {
			sc.logger.Info("Event already processed", zap.String("event_id", event.EventID))
			return nil
		}
	}

	var err error
	switch event.EventType {
	case models.EventTypePaymentConfirmed:
		err = sc.OnPaymentConfirmed(ctx, event.OrderID)
	case models.EventTypePaymentFailed:
		err = sc.OnPaymentFailed(ctx, event.OrderID, event.Reason)
	case models.EventTypeOrderCancelled:
		err = sc.OnOrderCancelled(ctx, event.OrderID)
	default:
		sc.logger.Warn("Unhandled payment event type", zap.String("event_type", event.EventType))
		return nil
	}
	if err != nil {
		return err
	}

	if event.EventID != "" {
		if markErr := sc.store.MarkEventProcessed(ctx, event.EventID, event.EventType); markErr != nil {
			sc.logger.Error("Failed to mark event processed", zap.Error(markErr))
		}
	}

	return nil
}

// OnPaymentConfirmed converts the order's reservations into permanent
// stock decrements. Each reservation is first claimed via status CAS so
// the sweeper can no longer touch it, then committed on the ledger. Any
// shortfall flags the order for manual reconciliation instead of
// silently marking it paid with missing stock.
func (sc *SettlementCoordinator) OnPaymentConfirmed(ctx context.Context, orderID string) error {
	ctx, span := util.StartSpan(ctx, "SettlementCoordinator.OnPaymentConfirmed")
	defer span.End()

	order, err := sc.store.GetOrder(ctx, orderID)
	if err != nil {
		return fmt.Errorf("failed to load order %s: %w", orderID, err)
	}
	if order.Status != models.OrderStatusAwaitingPayment {
		sc.logger.Info("Payment confirmation on settled order ignored",
			zap.String("order_id", orderID),
			zap.String("status", order.Status))
		return nil
	}

	reservations, err := sc.store.GetActiveReservationsByOrder(ctx, orderID)
	if err != nil {
		return fmt.Errorf("failed to load reservations for order %s: %w", orderID, err)
	}

	failures := 0

	if len(reservations) == 0 {
		// every hold was already swept; the stock may have been resold
		sc.enqueueReconciliation(ctx, orderID, "", 0, "payment confirmed but no active reservations remain")
		failures++
	}

	for i := range reservations {
		r := &reservations[i]

		claimed, err := sc.store.TransitionReservation(ctx, r.ID, models.ReservationStatusCommitted)
		if err != nil {
			return fmt.Errorf("failed to claim reservation %s: %w", r.ID, err)
		}
		if !claimed {
			sc.enqueueReconciliation(ctx, orderID, r.SKU, r.Quantity, "reservation already terminal at settlement")
			failures++
			continue
		}

		if err := sc.ledger.CommitReserved(ctx, r.SKU, r.Quantity); err != nil {
			sc.logger.Error("Failed to commit reserved stock",
				zap.String("order_id", orderID),
				zap.String("sku", r.SKU),
				zap.Int("quantity", r.Quantity),
				zap.Error(err))
			sc.enqueueReconciliation(ctx, orderID, r.SKU, r.Quantity, fmt.Sprintf("ledger commit failed: %v", err))
			failures++
			continue
		}

		util.ReservationsCommittedTotal.Inc()

		if err := sc.publisher.PublishReservationEvent(ctx, models.EventTypeStockCommitted, r, ""); err != nil {
			sc.logger.Error("Failed to publish stock committed event",
				zap.String("reservation_id", r.ID),
				zap.Error(err))
		}
	}

	finalStatus := models.OrderStatusPaid
	outcome := "paid"
	if failures > 0 {
		finalStatus = models.OrderStatusReconcile
		outcome = "reconciliation"
	}

	if _, err := sc.store.TransitionOrder(ctx, orderID, finalStatus); err != nil {
		return fmt.Errorf("failed to settle order %s: %w", orderID, err)
	}

	util.SettlementsTotal.WithLabelValues(outcome).Inc()
	sc.logger.Info("Order settled",
		zap.String("order_id", orderID),
		zap.String("status", finalStatus))

	return nil
}

// OnPaymentFailed releases the order's holds and marks it FAILED
func (sc *SettlementCoordinator) OnPaymentFailed(ctx context.Context, orderID, reason string) error {
	ctx, span := util.StartSpan(ctx, "SettlementCoordinator.OnPaymentFailed")
	defer span.End()

	if reason == "" {
		reason = "payment_failed"
	}
	return sc.releaseOrder(ctx, orderID, models.OrderStatusFailed, reason, "failed")
}

// OnOrderCancelled releases the order's holds and marks it CANCELLED
func (sc *SettlementCoordinator) OnOrderCancelled(ctx context.Context, orderID string) error {
	ctx, span := util.StartSpan(ctx, "SettlementCoordinator.OnOrderCancelled")
	defer span.End()

	return sc.releaseOrder(ctx, orderID, models.OrderStatusCancelled, "order_cancelled", "cancelled")
}

func (sc *SettlementCoordinator) releaseOrder(ctx context.Context, orderID, toStatus, reason, outcome string) error {
	order, err := sc.store.GetOrder(ctx, orderID)
	if err != nil {
		return fmt.Errorf("failed to load order %s: %w", orderID, err)
	}
	if order.Status != models.OrderStatusAwaitingPayment {
		sc.logger.Info("Release on settled order ignored",
			zap.String("order_id", orderID),
			zap.String("status", order.Status))
		return nil
	}

	reservations, err := sc.store.GetActiveReservationsByOrder(ctx, orderID)
	if err != nil {
		return fmt.Errorf("failed to load reservations for order %s: %w", orderID, err)
	}

	for i := range reservations {
		r := &reservations[i]

		claimed, err := sc.store.TransitionReservation(ctx, r.ID, models.ReservationStatusReleased)
		if err != nil {
			sc.logger.Error("Failed to release reservation",
				zap.String("reservation_id", r.ID),
				zap.Error(err))
			continue
		}
		if !claimed {
			continue
		}

		if err := sc.ledger.DecreaseReserved(ctx, r.SKU, r.Quantity); err != nil {
			sc.logger.Error("Failed to return stock on settlement release",
				zap.String("order_id", orderID),
				zap.String("sku", r.SKU),
				zap.Int("quantity", r.Quantity),
				zap.Error(err))
			continue
		}

		util.ReservationsReleasedTotal.WithLabelValues(reason).Inc()

		if err := sc.publisher.PublishReservationEvent(ctx, models.EventTypeReservationReleased, r, reason); err != nil {
			sc.logger.Error("Failed to publish reservation released event",
				zap.String("reservation_id", r.ID),
				zap.Error(err))
		}
	}

	if _, err := sc.store.TransitionOrder(ctx, orderID, toStatus); err != nil {
		return fmt.Errorf("failed to settle order %s: %w", orderID, err)
	}

	util.SettlementsTotal.WithLabelValues(outcome).Inc()
	sc.logger.Info("Order settled",
		zap.String("order_id", orderID),
		zap.String("status", toStatus),
		zap.String("reason", reason))

	return nil
}

func (sc *SettlementCoordinator) enqueueReconciliation(ctx context.Context, orderID, sku string, qty int, reason string) {
	entry := &models.ReconciliationEntry{
		ID:       uuid.New().String(),
		OrderID:  orderID,
		SKU:      sku,
		Quantity: qty,
		Reason:   reason,
	}

	if err := sc.store.EnqueueReconciliation(ctx, entry); err != nil {
		sc.logger.Error("Failed to enqueue reconciliation entry",
			zap.String("order_id", orderID),
			zap.String("sku", sku),
			zap.Int("quantity", qty),
			zap.String("reason", reason),
			zap.Error(err))
		return
	}

	util.ReconciliationsEnqueuedTotal.Inc()
	sc.logger.Warn("Order flagged for manual reconciliation",
		zap.String("order_id", orderID),
		zap.String("sku", sku),
		zap.Int("quantity", qty),
		zap.String("reason", reason))
}

// ListReconciliations returns unresolved reconciliation entries
func (sc *SettlementCoordinator) ListReconciliations(ctx context.Context) ([]models.ReconciliationEntry, error) {
	return sc.store.ListOpenReconciliations(ctx)
}

// ResolveReconciliation records the operator's decision for an entry.
// The chosen action (refund, or a fresh reservation through the normal
// reserve flow) is carried out by the back-office.
func (sc *SettlementCoordinator) ResolveReconciliation(ctx context.Context, id, resolution string) error {
	if resolution != models.ResolutionRefund && resolution != models.ResolutionReReserve {
		return fmt.Errorf("unknown resolution %q", resolution)
	}

	resolved, err := sc.store.ResolveReconciliation(ctx, id, resolution)
	if err != nil {
		return err
	}
	if !resolved {
		return fmt.Errorf("reconciliation entry %s not open", id)
	}

	sc.logger.Info("Reconciliation entry resolved",
		zap.String("entry_id", id),
		zap.String("resolution", resolution))
	return nil
}
