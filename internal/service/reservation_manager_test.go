package service

import (
	"context"
	"testing"
	"time"

	"inventory-service/internal/models"
	"inventory-service/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReserveCreatesActiveReservations(t *testing.T) {
	eng := newTestEngine()
	eng.store.setStock("SKU-A", 10, 0)
	eng.store.setStock("SKU-B", 5, 0)
	ctx := context.Background()

	resp, err := eng.manager.Reserve(ctx, &ReserveRequest{
		OrderID: "order-1",
		Items: []ReservationItemRequest{
			{SKU: "SKU-A", Quantity: 3},
			{SKU: "SKU-B", Quantity: 2},
		},
	})
	require.NoError(t, err)
	require.Len(t, resp.ReservationIDs, 2)
	assert.True(t, resp.ExpiresAt.After(time.Now()))

	for _, id := range resp.ReservationIDs {
		r, err := eng.manager.GetReservation(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, models.ReservationStatusActive, r.Status)
		assert.Equal(t, "order-1", r.OrderID)
	}

	unitA, _ := eng.ledger.GetStockUnit(ctx, "SKU-A")
	unitB, _ := eng.ledger.GetStockUnit(ctx, "SKU-B")
	assert.Equal(t, 3, unitA.ReservedQuantity)
	assert.Equal(t, 2, unitB.ReservedQuantity)

	order, err := eng.store.GetOrder(ctx, "order-1")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusAwaitingPayment, order.Status)

	assert.Len(t, eng.publisher.eventsOfType(models.EventTypeReservationCreated), 2)
}

func TestReserveAllOrNothingRollback(t *testing.T) {
	eng := newTestEngine()
	eng.store.setStock("SKU-A", 10, 0)
	eng.store.setStock("SKU-B", 1, 0)
	ctx := context.Background()

	_, err := eng.manager.Reserve(ctx, &ReserveRequest{
		OrderID: "order-1",
		Items: []ReservationItemRequest{
			{SKU: "SKU-A", Quantity: 3},
			{SKU: "SKU-B", Quantity: 2},
		},
	})
	assert.ErrorIs(t, err, store.ErrInsufficientStock)

	// no partial reservation left live
	unitA, _ := eng.ledger.GetStockUnit(ctx, "SKU-A")
	unitB, _ := eng.ledger.GetStockUnit(ctx, "SKU-B")
	assert.Equal(t, 0, unitA.ReservedQuantity)
	assert.Equal(t, 0, unitB.ReservedQuantity)
}

func TestReservePersistFailureRollsBackHolds(t *testing.T) {
	eng := newTestEngine()
	eng.store.setStock("SKU-A", 10, 0)
	eng.store.failCreateReservation = true
	ctx := context.Background()

	_, err := eng.manager.Reserve(ctx, &ReserveRequest{
		OrderID: "order-1",
		Items:   []ReservationItemRequest{{SKU: "SKU-A", Quantity: 4}},
	})
	require.Error(t, err)

	unit, _ := eng.ledger.GetStockUnit(ctx, "SKU-A")
	assert.Equal(t, 0, unit.ReservedQuantity)
}

func TestReserveRejectsInvalidItems(t *testing.T) {
	eng := newTestEngine()
	eng.store.setStock("SKU-A", 10, 0)
	ctx := context.Background()

	_, err := eng.manager.Reserve(ctx, &ReserveRequest{
		OrderID: "order-1",
		Items: []ReservationItemRequest{
			{SKU: "SKU-A", Quantity: 1},
			{SKU: "SKU-A", Quantity: 2},
		},
	})
	assert.ErrorIs(t, err, ErrInvalidReservationItem)

	_, err = eng.manager.Reserve(ctx, &ReserveRequest{
		OrderID: "order-2",
		Items:   []ReservationItemRequest{{SKU: "", Quantity: 1}},
	})
	assert.ErrorIs(t, err, ErrInvalidReservationItem)
}

func TestReleaseRoundTrip(t *testing.T) {
	eng := newTestEngine()
	eng.store.setStock("SKU-A", 10, 2)
	ctx := context.Background()

	resp, err := eng.manager.Reserve(ctx, &ReserveRequest{
		OrderID: "order-1",
		Items:   []ReservationItemRequest{{SKU: "SKU-A", Quantity: 3}},
	})
	require.NoError(t, err)

	require.NoError(t, eng.manager.Release(ctx, resp.ReservationIDs[0], "caller_released"))

	// reserve then release restores the pre-reserve count
	unit, _ := eng.ledger.GetStockUnit(ctx, "SKU-A")
	assert.Equal(t, 2, unit.ReservedQuantity)

	r, err := eng.manager.GetReservation(ctx, resp.ReservationIDs[0])
	require.NoError(t, err)
	assert.Equal(t, models.ReservationStatusReleased, r.Status)
}

func TestReleaseIdempotent(t *testing.T) {
	eng := newTestEngine()
	eng.store.setStock("SKU-A", 10, 0)
	ctx := context.Background()

	resp, err := eng.manager.Reserve(ctx, &ReserveRequest{
		OrderID: "order-1",
		Items:   []ReservationItemRequest{{SKU: "SKU-A", Quantity: 3}},
	})
	require.NoError(t, err)

	id := resp.ReservationIDs[0]
	require.NoError(t, eng.manager.Release(ctx, id, "caller_released"))
	require.NoError(t, eng.manager.Release(ctx, id, "caller_released"))

	unit, _ := eng.ledger.GetStockUnit(ctx, "SKU-A")
	assert.Equal(t, 0, unit.ReservedQuantity)
}

func TestReleaseUnknownReservation(t *testing.T) {
	eng := newTestEngine()

	err := eng.manager.Release(context.Background(), "missing", "caller_released")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestExtendOnlyWhileActive(t *testing.T) {
	eng := newTestEngine()
	eng.store.setStock("SKU-A", 10, 0)
	ctx := context.Background()

	resp, err := eng.manager.Reserve(ctx, &ReserveRequest{
		OrderID: "order-1",
		Items:   []ReservationItemRequest{{SKU: "SKU-A", Quantity: 1}},
	})
	require.NoError(t, err)
	id := resp.ReservationIDs[0]

	newExpiry, err := eng.manager.Extend(ctx, id, time.Hour)
	require.NoError(t, err)
	assert.True(t, newExpiry.After(resp.ExpiresAt))

	require.NoError(t, eng.manager.Release(ctx, id, "caller_released"))

	_, err = eng.manager.Extend(ctx, id, time.Hour)
	assert.ErrorIs(t, err, ErrReservationNotActive)
}
