package service

import (
	"context"
	"time"

	"inventory-service/internal/models"
	"inventory-service/internal/util"

	"go.uber.org/zap"
)

const sweepBatchSize = 200

// Sweeper is the safety net for reservations whose checkout was
// abandoned or whose settlement webhook never arrived. The scheduled
// run and the admin trigger call the same Sweep.
type Sweeper struct {
	store     reservationStore
	ledger    *Ledger
	publisher eventPublisher
	logger    *zap.Logger
}

// NewSweeper creates a new expiry sweeper
func NewSweeper(store reservationStore, ledger *Ledger, publisher eventPublisher) *Sweeper {
	return &Sweeper{
		store:     store,
		ledger:    ledger,
		publisher: publisher,
		logger:    util.GetLogger(),
	}
}

// SweepReport summarizes one sweep run
type SweepReport struct {
	ReservationsReleased int `json:"reservations_released"`
	QuantityReleased     int `json:"quantity_released"`
}

// Sweep releases ACTIVE reservations whose expiry passed more than
// olderThan ago. Each reservation is claimed with a status CAS before
// its stock is returned, so concurrent sweeps and settlement races
// resolve to exactly one winner. Failures on individual reservations
// are logged and skipped; holding already-expired stock longer is worse
// than a partial sweep.
func (sw *Sweeper) Sweep(ctx context.Context, olderThan time.Duration) (SweepReport, error) {
	ctx, span := util.StartSpan(ctx, "Sweeper.Sweep")
	defer span.End()

	start := time.Now()
	defer func() {
		util.SweepDuration.Observe(time.Since(start).Seconds())
	}()
	util.SweepRunsTotal.Inc()

	cutoff := time.Now().Add(-olderThan)
	report := SweepReport{}

	for {
		expired, err := sw.store.ListExpiredReservations(ctx, cutoff, sweepBatchSize)
		if err != nil {
			return report, err
		}

		for i := range expired {
			r := &expired[i]

			claimed, err := sw.store.TransitionReservation(ctx, r.ID, models.ReservationStatusExpired)
			if err != nil {
				sw.logger.Error("Failed to expire reservation",
					zap.String("reservation_id", r.ID),
					zap.String("order_id", r.OrderID),
					zap.Error(err))
				continue
			}
			if !claimed {
				continue
			}

			if err := sw.ledger.DecreaseReserved(ctx, r.SKU, r.Quantity); err != nil {
				sw.logger.Error("Failed to release expired stock",
					zap.String("reservation_id", r.ID),
					zap.String("order_id", r.OrderID),
					zap.String("sku", r.SKU),
					zap.Int("quantity", r.Quantity),
					zap.Error(err))
				continue
			}

			report.ReservationsReleased++
			report.QuantityReleased += r.Quantity
			util.SweepReleasedTotal.Inc()
			util.ReservationsReleasedTotal.WithLabelValues("expired").Inc()

			if err := sw.publisher.PublishReservationEvent(ctx, models.EventTypeReservationExpired, r, "expired"); err != nil {
				sw.logger.Error("Failed to publish reservation expired event",
					zap.String("reservation_id", r.ID),
					zap.Error(err))
			}
		}

		if len(expired) < sweepBatchSize {
			break
		}
	}

	if report.ReservationsReleased > 0 {
		if err := sw.publisher.PublishSweepCompleted(ctx, report.ReservationsReleased, report.QuantityReleased); err != nil {
			sw.logger.Error("Failed to publish sweep completed event", zap.Error(err))
		}
	}

	sw.logger.Info("Sweep completed",
		zap.Int("reservations_released", report.ReservationsReleased),
		zap.Int("quantity_released", report.QuantityReleased),
		zap.Duration("older_than", olderThan))

	return report, nil
}
