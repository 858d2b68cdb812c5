package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"inventory-service/internal/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Ledger error taxonomy. InsufficientStock is surfaced to callers as
// "out of stock"; the others indicate lost or duplicated events and are
// logged and tolerated upstream.
var (
	ErrInsufficientStock       = errors.New("insufficient stock")
	ErrInsufficientReservation = errors.New("insufficient reservation")
	ErrInvalidRelease          = errors.New("release exceeds reserved stock")
	ErrSKUNotFound             = errors.New("sku not found")
	ErrNotFound                = errors.New("not found")
)

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// GetStockUnit retrieves the ledger row for a SKU
func (s *Store) GetStockUnit(ctx context.Context, sku string) (*models.StockUnit, error) {
	var unit models.StockUnit
	err := s.db.GetContext(ctx, &unit, "SELECT * FROM stock_units WHERE sku = $1", sku)
	if err == sql.ErrNoRows {
		return nil, ErrSKUNotFound
	}
	if err != nil {
		return nil, err
	}
	return &unit, nil
}

// ListStockUnits retrieves all ledger rows
func (s *Store) ListStockUnits(ctx context.Context) ([]models.StockUnit, error) {
	var units []models.StockUnit
	err := s.db.SelectContext(ctx, &units, "SELECT * FROM stock_units ORDER BY sku")
	return units, err
}

// IncreaseReserved adds qty to the reserved count for a SKU. The WHERE
// predicate is the sole no-oversell enforcement point: the update applies
// only when available stock covers the request, so concurrent callers can
// never both succeed past total availability.
func (s *Store) IncreaseReserved(ctx context.Context, sku string, qty int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE stock_units
		 SET reserved_quantity = reserved_quantity + $1, updated_at = NOW()
		 WHERE sku = $2 AND total_quantity - reserved_quantity >= $1`,
		qty, sku)
	if err != nil {
		return fmt.Errorf("failed to increase reserved stock: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		if _, getErr := s.GetStockUnit(ctx, sku); getErr != nil {
			return getErr
		}
		return ErrInsufficientStock
	}
	return nil
}

// DecreaseReserved subtracts qty from the reserved count, clamping at
// zero. Returns ErrInvalidRelease when the clamp fired so callers can log
// it; a double release must not fail the caller.
func (s *Store) DecreaseReserved(ctx context.Context, sku string, qty int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE stock_units
		 SET reserved_quantity = reserved_quantity - $1, updated_at = NOW()
		 WHERE sku = $2 AND reserved_quantity >= $1`,
		qty, sku)
	if err != nil {
		return fmt.Errorf("failed to decrease reserved stock: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows > 0 {
		return nil
	}

	res, err = s.db.ExecContext(ctx,
		`UPDATE stock_units
		 SET reserved_quantity = 0, updated_at = NOW()
		 WHERE sku = $1 AND reserved_quantity < $2`,
		sku, qty)
	if err != nil {
		return fmt.Errorf("failed to clamp reserved stock: %w", err)
	}
	rows, err = res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrSKUNotFound
	}
	return ErrInvalidRelease
}

// CommitReserved converts held stock into a permanent decrement: both
// reserved and total drop by qty in one conditional update.
func (s *Store) CommitReserved(ctx context.Context, sku string, qty int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE stock_units
		 SET reserved_quantity = reserved_quantity - $1,
		     total_quantity = total_quantity - $1,
		     updated_at = NOW()
		 WHERE sku = $2 AND reserved_quantity >= $1`,
		qty, sku)
	if err != nil {
		return fmt.Errorf("failed to commit reserved stock: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		if _, getErr := s.GetStockUnit(ctx, sku); getErr != nil {
			return getErr
		}
		return ErrInsufficientReservation
	}
	return nil
}

// SetTotal is the administrative restock path. Reserved stock is clamped
// to the new total so the ledger invariant holds even when an admin sets
// total below what is currently held.
func (s *Store) SetTotal(ctx context.Context, sku string, qty int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO stock_units (sku, total_quantity, reserved_quantity, updated_at)
		 VALUES ($1, $2, 0, NOW())
		 ON CONFLICT (sku) DO UPDATE
		 SET total_quantity = EXCLUDED.total_quantity,
		     reserved_quantity = LEAST(stock_units.reserved_quantity, EXCLUDED.total_quantity),
		     updated_at = NOW()`,
		sku, qty)
	if err != nil {
		return fmt.Errorf("failed to set total stock: %w", err)
	}
	return nil
}
