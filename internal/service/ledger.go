package service

import (
	"context"
	"errors"
	"fmt"

	"inventory-service/internal/models"
	"inventory-service/internal/store"
	"inventory-service/internal/util"

	"go.uber.org/zap"
)

// Ledger is the single source of truth for per-SKU stock counters. All
// mutation funnels through its atomic adjustment operations; request
// handlers never write the counters directly. The database enforces
// ordering per SKU; Redis only pre-filters obvious rejections.
type Ledger struct {
	store  ledgerStore
	cache  stockCache
	logger *zap.Logger
}

// NewLedger creates a new inventory ledger. cache may be nil.
func NewLedger(store ledgerStore, cache stockCache) *Ledger {
	return &Ledger{
		store:  store,
		cache:  cache,
		logger: util.GetLogger(),
	}
}

// IncreaseReserved holds qty units of a SKU against a pending order.
// Returns store.ErrInsufficientStock when availability does not cover
// the request.
func (l *Ledger) IncreaseReserved(ctx context.Context, sku string, qty int) error {
	ctx, span := util.StartSpan(ctx, "Ledger.IncreaseReserved")
	defer span.End()

	gated := false
	if l.cache != nil {
		ok, err := l.cache.ReserveStock(ctx, sku, qty)
		if err != nil {
			l.logger.Warn("Cache gate unavailable, deferring to database",
				zap.String("sku", sku),
				zap.Error(err))
		} else if !ok {
			return store.ErrInsufficientStock
		} else {
			gated = true
		}
	}

	if err := l.store.IncreaseReserved(ctx, sku, qty); err != nil {
		if gated {
			if cacheErr := l.cache.ReleaseStock(ctx, sku, qty); cacheErr != nil {
				l.logger.Error("Failed to compensate cache gate",
					zap.String("sku", sku),
					zap.Int("quantity", qty),
					zap.Error(cacheErr))
			}
		}
		return err
	}

	return nil
}

// DecreaseReserved returns qty units to availability. A release beyond
// what is held is clamped and logged, never surfaced: double releases
// happen under webhook retries and must not fail the caller.
func (l *Ledger) DecreaseReserved(ctx context.Context, sku string, qty int) error {
	ctx, span := util.StartSpan(ctx, "Ledger.DecreaseReserved")
	defer span.End()

	err := l.store.DecreaseReserved(ctx, sku, qty)
	if errors.Is(err, store.ErrInvalidRelease) {
		util.InvalidReleasesTotal.Inc()
		l.logger.Warn("Release exceeded reserved stock, clamped to zero",
			zap.String("sku", sku),
			zap.Int("quantity", qty))
		err = nil
	}
	if err != nil {
		return err
	}

	if l.cache != nil {
		if cacheErr := l.cache.ReleaseStock(ctx, sku, qty); cacheErr != nil {
			l.logger.Error("Failed to release stock in cache",
				zap.String("sku", sku),
				zap.Error(cacheErr))
		}
	}

	return nil
}

// CommitReserved permanently consumes held stock: reserved and total
// drop together. Returns store.ErrInsufficientReservation when the hold
// no longer covers qty.
func (l *Ledger) CommitReserved(ctx context.Context, sku string, qty int) error {
	ctx, span := util.StartSpan(ctx, "Ledger.CommitReserved")
	defer span.End()

	if err := l.store.CommitReserved(ctx, sku, qty); err != nil {
		return err
	}

	if l.cache != nil {
		if cacheErr := l.cache.CommitStock(ctx, sku, qty); cacheErr != nil {
			l.logger.Error("Failed to commit stock in cache",
				zap.String("sku", sku),
				zap.Error(cacheErr))
		}
	}

	return nil
}

// SetTotal is the administrative restock path
func (l *Ledger) SetTotal(ctx context.Context, sku string, qty int) error {
	ctx, span := util.StartSpan(ctx, "Ledger.SetTotal")
	defer span.End()

	if err := l.store.SetTotal(ctx, sku, qty); err != nil {
		return err
	}

	if l.cache != nil {
		unit, err := l.store.GetStockUnit(ctx, sku)
		if err != nil {
			return fmt.Errorf("failed to reload stock unit: %w", err)
		}
		if cacheErr := l.cache.InitStock(ctx, sku, unit.Available(), unit.ReservedQuantity); cacheErr != nil {
			l.logger.Error("Failed to refresh cached stock",
				zap.String("sku", sku),
				zap.Error(cacheErr))
		}
	}

	return nil
}

// GetStockUnit retrieves the ledger row for a SKU
func (l *Ledger) GetStockUnit(ctx context.Context, sku string) (*models.StockUnit, error) {
	return l.store.GetStockUnit(ctx, sku)
}

// SyncToCache seeds cached counters from the ledger, run at startup
func (l *Ledger) SyncToCache(ctx context.Context) error {
	if l.cache == nil {
		return nil
	}

	l.logger.Info("Starting stock sync to cache")

	units, err := l.store.ListStockUnits(ctx)
	if err != nil {
		return fmt.Errorf("failed to list stock units: %w", err)
	}

	for _, unit := range units {
		if err := l.cache.InitStock(ctx, unit.SKU, unit.Available(), unit.ReservedQuantity); err != nil {
			l.logger.Error("Failed to seed cached stock",
				zap.String("sku", unit.SKU),
				zap.Error(err))
		}
	}

	l.logger.Info("Stock sync completed", zap.Int("count", len(units)))
	return nil
}
