package service

import (
	"context"
	"testing"
	"time"

	"inventory-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweepReleasesExpiredReservations(t *testing.T) {
	eng := newTestEngine()
	eng.store.setStock("SKU-A", 10, 0)
	ctx := context.Background()

	resp, err := eng.manager.Reserve(ctx, &ReserveRequest{
		OrderID: "order-1",
		Items:   []ReservationItemRequest{{SKU: "SKU-A", Quantity: 4}},
	})
	require.NoError(t, err)
	id := resp.ReservationIDs[0]

	eng.store.expireReservation(id, time.Now().Add(-time.Minute))

	report, err := eng.sweeper.Sweep(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, report.ReservationsReleased)
	assert.Equal(t, 4, report.QuantityReleased)

	r, err := eng.manager.GetReservation(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.ReservationStatusExpired, r.Status)

	unit, _ := eng.ledger.GetStockUnit(ctx, "SKU-A")
	assert.Equal(t, 0, unit.ReservedQuantity)

	assert.Len(t, eng.publisher.eventsOfType(models.EventTypeReservationExpired), 1)
}

func TestSweepIdempotent(t *testing.T) {
	eng := newTestEngine()
	eng.store.setStock("SKU-A", 10, 0)
	ctx := context.Background()

	resp, err := eng.manager.Reserve(ctx, &ReserveRequest{
		OrderID: "order-1",
		Items:   []ReservationItemRequest{{SKU: "SKU-A", Quantity: 2}},
	})
	require.NoError(t, err)
	eng.store.expireReservation(resp.ReservationIDs[0], time.Now().Add(-time.Minute))

	first, err := eng.sweeper.Sweep(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, first.ReservationsReleased)

	second, err := eng.sweeper.Sweep(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, second.ReservationsReleased)
	assert.Equal(t, 0, second.QuantityReleased)
}

func TestSweepHonorsGraceWindow(t *testing.T) {
	eng := newTestEngine()
	eng.store.setStock("SKU-A", 10, 0)
	ctx := context.Background()

	// 1h TTL, only 30 minutes "elapsed": expiry still lies in the future
	resp, err := eng.manager.Reserve(ctx, &ReserveRequest{
		OrderID:    "order-1",
		Items:      []ReservationItemRequest{{SKU: "SKU-A", Quantity: 2}},
		TTLSeconds: 3600,
	})
	require.NoError(t, err)
	id := resp.ReservationIDs[0]
	eng.store.expireReservation(id, time.Now().Add(30*time.Minute))

	report, err := eng.sweeper.Sweep(ctx, 2*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 0, report.ReservationsReleased)

	r, err := eng.manager.GetReservation(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.ReservationStatusActive, r.Status)

	// expired long enough ago to clear the grace window
	eng.store.expireReservation(id, time.Now().Add(-3*time.Hour))

	report, err = eng.sweeper.Sweep(ctx, 2*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, report.ReservationsReleased)
}

func TestSweepContinuesPastFailures(t *testing.T) {
	eng := newTestEngine()
	eng.store.setStock("SKU-A", 10, 0)
	ctx := context.Background()

	respA, err := eng.manager.Reserve(ctx, &ReserveRequest{
		OrderID: "order-1",
		Items:   []ReservationItemRequest{{SKU: "SKU-A", Quantity: 3}},
	})
	require.NoError(t, err)

	// a reservation whose SKU no longer exists in the ledger
	broken := &models.Reservation{
		ID:        "broken",
		OrderID:   "order-2",
		SKU:       "GONE",
		Quantity:  1,
		Status:    models.ReservationStatusActive,
		ExpiresAt: time.Now().Add(-time.Hour),
	}
	require.NoError(t, eng.store.CreateReservation(ctx, broken))

	eng.store.expireReservation(respA.ReservationIDs[0], time.Now().Add(-time.Hour))

	report, err := eng.sweeper.Sweep(ctx, 0)
	require.NoError(t, err)

	// the healthy reservation is still swept
	assert.Equal(t, 1, report.ReservationsReleased)
	assert.Equal(t, 3, report.QuantityReleased)

	unit, _ := eng.ledger.GetStockUnit(ctx, "SKU-A")
	assert.Equal(t, 0, unit.ReservedQuantity)
}
