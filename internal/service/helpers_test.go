package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"inventory-service/internal/models"
	"inventory-service/internal/store"
)

// memStore is an in-memory stand-in for *store.Store with the same
// conditional-update semantics, guarded by a single mutex the way the
// database serializes per-row updates.
type memStore struct {
	mu              sync.Mutex
	stock           map[string]*models.StockUnit
	reservations    map[string]*models.Reservation
	orders          map[string]*models.Order
	reconciliations map[string]*models.ReconciliationEntry
	processed       map[string]bool

	failCreateReservation bool
}

func newMemStore() *memStore {
	return &memStore{
		stock:           make(map[string]*models.StockUnit),
		reservations:    make(map[string]*models.Reservation),
		orders:          make(map[string]*models.Order),
		reconciliations: make(map[string]*models.ReconciliationEntry),
		processed:       make(map[string]bool),
	}
}

func (m *memStore) GetStockUnit(_ context.Context, sku string) (*models.StockUnit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	unit, ok := m.stock[sku]
	if !ok {
		return nil, store.ErrSKUNotFound
	}
	cp := *unit
	return &cp, nil
}

func (m *memStore) ListStockUnits(_ context.Context) ([]models.StockUnit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	units := make([]models.StockUnit, 0, len(m.stock))
	for _, unit := range m.stock {
		units = append(units, *unit)
	}
	return units, nil
}

func (m *memStore) IncreaseReserved(_ context.Context, sku string, qty int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	unit, ok := m.stock[sku]
	if !ok {
		return store.ErrSKUNotFound
	}
	if unit.TotalQuantity-unit.ReservedQuantity < qty {
		return store.ErrInsufficientStock
	}
	unit.ReservedQuantity += qty
	return nil
}

func (m *memStore) DecreaseReserved(_ context.Context, sku string, qty int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	unit, ok := m.stock[sku]
	if !ok {
		return store.ErrSKUNotFound
	}
	if unit.ReservedQuantity < qty {
		unit.ReservedQuantity = 0
		return store.ErrInvalidRelease
	}
	unit.ReservedQuantity -= qty
	return nil
}

func (m *memStore) CommitReserved(_ context.Context, sku string, qty int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	unit, ok := m.stock[sku]
	if !ok {
		return store.ErrSKUNotFound
	}
	if unit.ReservedQuantity < qty {
		return store.ErrInsufficientReservation
	}
	unit.ReservedQuantity -= qty
	unit.TotalQuantity -= qty
	return nil
}

func (m *memStore) SetTotal(_ context.Context, sku string, qty int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	unit, ok := m.stock[sku]
	if !ok {
		m.stock[sku] = &models.StockUnit{SKU: sku, TotalQuantity: qty}
		return nil
	}
	unit.TotalQuantity = qty
	if unit.ReservedQuantity > qty {
		unit.ReservedQuantity = qty
	}
	return nil
}

func (m *memStore) EnsureOrder(_ context.Context, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.orders[orderID]; !ok {
		m.orders[orderID] = &models.Order{ID: orderID, Status: models.OrderStatusAwaitingPayment}
	}
	return nil
}

func (m *memStore) GetOrder(_ context.Context, orderID string) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	order, ok := m.orders[orderID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *order
	return &cp, nil
}

func (m *memStore) TransitionOrder(_ context.Context, orderID, toStatus string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	order, ok := m.orders[orderID]
	if !ok || order.Status != models.OrderStatusAwaitingPayment {
		return false, nil
	}
	order.Status = toStatus
	return true, nil
}

func (m *memStore) CreateReservation(_ context.Context, r *models.Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failCreateReservation {
		return errors.New("simulated insert failure")
	}
	cp := *r
	cp.CreatedAt = time.Now()
	m.reservations[r.ID] = &cp
	return nil
}

func (m *memStore) GetReservation(_ context.Context, id string) (*models.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.reservations[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memStore) TransitionReservation(_ context.Context, id, toStatus string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.reservations[id]
	if !ok || r.Status != models.ReservationStatusActive {
		return false, nil
	}
	r.Status = toStatus
	return true, nil
}

func (m *memStore) ExtendReservation(_ context.Context, id string, expiresAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.reservations[id]
	if !ok || r.Status != models.ReservationStatusActive {
		return false, nil
	}
	r.ExpiresAt = expiresAt
	return true, nil
}

func (m *memStore) ListExpiredReservations(_ context.Context, cutoff time.Time, limit int) ([]models.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var expired []models.Reservation
	for _, r := range m.reservations {
		if r.Status == models.ReservationStatusActive && r.ExpiresAt.Before(cutoff) {
			expired = append(expired, *r)
			if len(expired) == limit {
				break
			}
		}
	}
	return expired, nil
}

func (m *memStore) GetActiveReservationsByOrder(_ context.Context, orderID string) ([]models.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var active []models.Reservation
	for _, r := range m.reservations {
		if r.OrderID == orderID && r.Status == models.ReservationStatusActive {
			active = append(active, *r)
		}
	}
	return active, nil
}

func (m *memStore) EnqueueReconciliation(_ context.Context, entry *models.ReconciliationEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *entry
	cp.CreatedAt = time.Now()
	m.reconciliations[entry.ID] = &cp
	return nil
}

func (m *memStore) ListOpenReconciliations(_ context.Context) ([]models.ReconciliationEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var open []models.ReconciliationEntry
	for _, entry := range m.reconciliations {
		if entry.ResolvedAt == nil {
			open = append(open, *entry)
		}
	}
	return open, nil
}

func (m *memStore) ResolveReconciliation(_ context.Context, id, resolution string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.reconciliations[id]
	if !ok || entry.ResolvedAt != nil {
		return false, nil
	}
	now := time.Now()
	entry.Resolution = resolution
	entry.ResolvedAt = &now
	return true, nil
}

func (m *memStore) IsEventProcessed(_ context.Context, eventID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.processed[eventID], nil
}

func (m *memStore) MarkEventProcessed(_ context.Context, eventID, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.processed[eventID] = true
	return nil
}

// setStock seeds a ledger row directly
func (m *memStore) setStock(sku string, total, reserved int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stock[sku] = &models.StockUnit{SKU: sku, TotalQuantity: total, ReservedQuantity: reserved}
}

// expireReservation backdates a reservation's expiry
func (m *memStore) expireReservation(id string, expiresAt time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.reservations[id]; ok {
		r.ExpiresAt = expiresAt
	}
}

type publishedEvent struct {
	eventType     string
	reservationID string
	reason        string
}

// fakePublisher records published events in memory
type fakePublisher struct {
	mu     sync.Mutex
	events []publishedEvent
	sweeps int
}

func (p *fakePublisher) PublishReservationEvent(_ context.Context, eventType string, r *models.Reservation, reason string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{eventType: eventType, reservationID: r.ID, reason: reason})
	return nil
}

func (p *fakePublisher) PublishSweepCompleted(_ context.Context, _, _ int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sweeps++
	return nil
}

func (p *fakePublisher) eventsOfType(eventType string) []publishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []publishedEvent
	for _, e := range p.events {
		if e.eventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

type testEngine struct {
	store       *memStore
	publisher   *fakePublisher
	ledger      *Ledger
	manager     *ReservationManager
	sweeper     *Sweeper
	coordinator *SettlementCoordinator
}

func newTestEngine() *testEngine {
	ms := newMemStore()
	pub := &fakePublisher{}
	ledger := NewLedger(ms, nil)

	return &testEngine{
		store:       ms,
		publisher:   pub,
		ledger:      ledger,
		manager:     NewReservationManager(ledger, ms, nil, pub, 30*time.Minute),
		sweeper:     NewSweeper(ms, ledger, pub),
		coordinator: NewSettlementCoordinator(ms, ledger, pub),
	}
}
