package store

import (
	"context"
	"database/sql"
	"fmt"

	"inventory-service/internal/models"
)

// EnsureOrder creates the settlement row for an order if it does not
// exist yet. Called when the first reservation for the order lands.
func (s *Store) EnsureOrder(ctx context.Context, orderID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO orders (id, status) VALUES ($1, $2)
		 ON CONFLICT (id) DO NOTHING`,
		orderID, models.OrderStatusAwaitingPayment)
	if err != nil {
		return fmt.Errorf("failed to ensure order: %w", err)
	}
	return nil
}

// GetOrder retrieves an order by ID
func (s *Store) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE id = $1", orderID)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// TransitionOrder moves an order from AWAITING_PAYMENT to a terminal
// status. A false return means the order already left AWAITING_PAYMENT,
// which callers treat as a duplicate delivery.
func (s *Store) TransitionOrder(ctx context.Context, orderID, toStatus string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE orders SET status = $1, updated_at = NOW()
		 WHERE id = $2 AND status = $3`,
		toStatus, orderID, models.OrderStatusAwaitingPayment)
	if err != nil {
		return false, fmt.Errorf("failed to transition order: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// EnqueueReconciliation records a settlement failure for manual review
func (s *Store) EnqueueReconciliation(ctx context.Context, entry *models.ReconciliationEntry) error {
	query := `
		INSERT INTO reconciliation_entries (id, order_id, sku, quantity, reason)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`

	return s.db.GetContext(ctx, &entry.CreatedAt, query,
		entry.ID, entry.OrderID, entry.SKU, entry.Quantity, entry.Reason)
}

// ListOpenReconciliations returns unresolved reconciliation entries
func (s *Store) ListOpenReconciliations(ctx context.Context) ([]models.ReconciliationEntry, error) {
	var entries []models.ReconciliationEntry
	err := s.db.SelectContext(ctx, &entries,
		`SELECT * FROM reconciliation_entries
		 WHERE resolved_at IS NULL
		 ORDER BY created_at`)
	return entries, err
}

// ResolveReconciliation marks an entry resolved with the operator's choice
func (s *Store) ResolveReconciliation(ctx context.Context, id, resolution string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE reconciliation_entries
		 SET resolution = $1, resolved_at = NOW()
		 WHERE id = $2 AND resolved_at IS NULL`,
		resolution, id)
	if err != nil {
		return false, fmt.Errorf("failed to resolve reconciliation: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// IsEventProcessed checks if an event has been processed
func (s *Store) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = $1)", eventID)
	return exists, err
}

// MarkEventProcessed marks an event as processed
func (s *Store) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO processed_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING",
		eventID, eventType)
	return err
}
