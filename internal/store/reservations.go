package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"inventory-service/internal/models"
)

// CreateReservation persists a new ACTIVE reservation
func (s *Store) CreateReservation(ctx context.Context, r *models.Reservation) error {
	query := `
		INSERT INTO reservations (id, order_id, sku, quantity, status, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`

	return s.db.GetContext(ctx, r, query,
		r.ID, r.OrderID, r.SKU, r.Quantity, r.Status, r.ExpiresAt)
}

// GetReservation retrieves a reservation by ID
func (s *Store) GetReservation(ctx context.Context, id string) (*models.Reservation, error) {
	var r models.Reservation
	err := s.db.GetContext(ctx, &r, "SELECT * FROM reservations WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// GetActiveReservationsByOrder retrieves ACTIVE reservations owned by an order
func (s *Store) GetActiveReservationsByOrder(ctx context.Context, orderID string) ([]models.Reservation, error) {
	var reservations []models.Reservation
	err := s.db.SelectContext(ctx, &reservations,
		"SELECT * FROM reservations WHERE order_id = $1 AND status = $2",
		orderID, models.ReservationStatusActive)
	return reservations, err
}

// TransitionReservation moves a reservation from ACTIVE to a terminal
// status. The status predicate makes the transition happen exactly once:
// a false return means another caller already claimed it.
func (s *Store) TransitionReservation(ctx context.Context, id, toStatus string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE reservations SET status = $1, updated_at = NOW()
		 WHERE id = $2 AND status = $3`,
		toStatus, id, models.ReservationStatusActive)
	if err != nil {
		return false, fmt.Errorf("failed to transition reservation: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// ExtendReservation pushes out the expiry of an ACTIVE reservation
func (s *Store) ExtendReservation(ctx context.Context, id string, expiresAt time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE reservations SET expires_at = $1, updated_at = NOW()
		 WHERE id = $2 AND status = $3`,
		expiresAt, id, models.ReservationStatusActive)
	if err != nil {
		return false, fmt.Errorf("failed to extend reservation: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// ListExpiredReservations returns ACTIVE reservations whose expiry lies
// before the cutoff. Served by the (status, expires_at) index.
func (s *Store) ListExpiredReservations(ctx context.Context, cutoff time.Time, limit int) ([]models.Reservation, error) {
	var reservations []models.Reservation
	err := s.db.SelectContext(ctx, &reservations,
		`SELECT * FROM reservations
		 WHERE status = $1 AND expires_at < $2
		 ORDER BY expires_at
		 LIMIT $3`,
		models.ReservationStatusActive, cutoff, limit)
	return reservations, err
}
