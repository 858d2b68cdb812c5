package worker

import (
	"context"
	"log"
	"time"

	"inventory-service/internal/broker"
	"inventory-service/internal/service"
)

// SettlementWorker consumes payment events from provider relays and
// feeds them into the settlement coordinator.
type SettlementWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
}

// NewSettlementWorker creates a new settlement worker
func NewSettlementWorker(
	consumer *broker.Consumer,
	coordinator *service.SettlementCoordinator,
) *SettlementWorker {
	eventHandler := broker.NewEventHandler()

	eventHandler.OnPaymentConfirmed(coordinator.HandlePaymentEvent)
	eventHandler.OnPaymentFailed(coordinator.HandlePaymentEvent)
	eventHandler.OnOrderCancelled(coordinator.HandlePaymentEvent)

	return &SettlementWorker{
		consumer:     consumer,
		eventHandler: eventHandler,
	}
}

// Start starts the worker
func (w *SettlementWorker) Start(ctx context.Context) error {
	log.Println("Starting settlement worker...")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *SettlementWorker) Stop() error {
	log.Println("Stopping settlement worker...")
	return w.consumer.Close()
}

// SweepWorker runs the expiry sweep on a schedule. Manual admin sweeps
// call the identical Sweeper.Sweep.
type SweepWorker struct {
	sweeper   *service.Sweeper
	interval  time.Duration
	olderThan time.Duration
}

// NewSweepWorker creates a new scheduled sweep worker
func NewSweepWorker(sweeper *service.Sweeper, interval, olderThan time.Duration) *SweepWorker {
	return &SweepWorker{
		sweeper:   sweeper,
		interval:  interval,
		olderThan: olderThan,
	}
}

// Start runs the sweep loop until the context is cancelled
func (w *SweepWorker) Start(ctx context.Context) error {
	log.Printf("Starting sweep worker: interval=%s", w.interval)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Sweep worker context cancelled, stopping...")
			return ctx.Err()
		case <-ticker.C:
			if _, err := w.sweeper.Sweep(ctx, w.olderThan); err != nil {
				log.Printf("Sweep run failed: %v", err)
			}
		}
	}
}
