package tests

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"hail/internal/domain"
	"hail/internal/repository"
)

// ──────────────────────────────────────────────
// MOCK RIDER REPOSITORY
// ──────────────────────────────────────────────

// MockRiderRepository is a mock implementation of RiderRepository.
type MockRiderRepository struct {
	mu     sync.RWMutex
	riders map[string]*domain.Rider

	// Error injection
	CreateError error
	GetError    error
}

// NewMockRiderRepository creates a new mock rider repository.
func NewMockRiderRepository() *MockRiderRepository {
	return &MockRiderRepository{
		riders: make(map[string]*domain.Rider),
	}
}

// AddRider adds a rider to the mock repository.
func (m *MockRiderRepository) AddRider(rider *domain.Rider) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.riders[rider.ID] = rider
}

func (m *MockRiderRepository) Create(ctx context.Context, rider *domain.Rider) error {
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.riders[rider.ID] = rider
	return nil
}

func (m *MockRiderRepository) GetByID(ctx context.Context, id string) (*domain.Rider, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	rider, ok := m.riders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *rider
	return &copy, nil
}

// ──────────────────────────────────────────────
// MOCK DRIVER REPOSITORY
// ──────────────────────────────────────────────

// MockDriverRepository is a mock implementation of DriverRepository.
type MockDriverRepository struct {
	mu      sync.RWMutex
	drivers map[string]*domain.Driver

	// Counters for verification
	IncrementCallCount int32

	// Error injection
	CreateError    error
	IncrementError error
}

// NewMockDriverRepository creates a new mock driver repository.
func NewMockDriverRepository() *MockDriverRepository {
	return &MockDriverRepository{
		drivers: make(map[string]*domain.Driver),
	}
}

// AddDriver adds a driver to the mock repository.
func (m *MockDriverRepository) AddDriver(driver *domain.Driver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drivers[driver.ID] = driver
}

func (m *MockDriverRepository) Create(ctx context.Context, driver *domain.Driver) error {
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drivers[driver.ID] = driver
	return nil
}

func (m *MockDriverRepository) GetByID(ctx context.Context, id string) (*domain.Driver, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	driver, ok := m.drivers[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *driver
	return &copy, nil
}

func (m *MockDriverRepository) IncrementCompletedRides(ctx context.Context, id string) error {
	atomic.AddInt32(&m.IncrementCallCount, 1)
	if m.IncrementError != nil {
		return m.IncrementError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	driver, ok := m.drivers[id]
	if !ok {
		return repository.ErrNotFound
	}
	driver.CompletedRides++
	return nil
}

// GetDriver returns driver for test assertions.
func (m *MockDriverRepository) GetDriver(id string) *domain.Driver {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.drivers[id]
}

// ──────────────────────────────────────────────
// MOCK RIDE REPOSITORY
// ──────────────────────────────────────────────

// MockRideRepository is a mock implementation of RideRepository. Conditional
// transitions are checked and applied under one lock, so concurrent callers
// see the same win-or-lose semantics the SQL conditional updates provide.
type MockRideRepository struct {
	mu    sync.Mutex
	rides map[string]*domain.Ride

	// Counters for verification
	CreateCallCount int32
	AcceptCallCount int32

	// Error injection
	CreateError error
	GetError    error
	AcceptError error
	CancelError error

	// SetPromoDenied makes SetPromo lose its conditional update, as if the
	// ride moved on between the read and the write.
	SetPromoDenied bool
}

// NewMockRideRepository creates a new mock ride repository.
func NewMockRideRepository() *MockRideRepository {
	return &MockRideRepository{
		rides: make(map[string]*domain.Ride),
	}
}

// AddRide adds a ride to the mock repository.
func (m *MockRideRepository) AddRide(ride *domain.Ride) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rides[ride.ID] = ride
}

// GetRide returns the stored ride for test assertions.
func (m *MockRideRepository) GetRide(id string) *domain.Ride {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rides[id]
}

func (m *MockRideRepository) Create(ctx context.Context, ride *domain.Ride) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rides {
		if r.RiderID == ride.RiderID && !r.Status.IsTerminal() {
			return repository.ErrActiveRideExists
		}
	}
	copy := *ride
	m.rides[ride.ID] = &copy
	return nil
}

func (m *MockRideRepository) GetByID(ctx context.Context, id string) (*domain.Ride, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ride, ok := m.rides[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *ride
	return &copy, nil
}

func (m *MockRideRepository) GetActiveByRiderID(ctx context.Context, riderID string) (*domain.Ride, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rides {
		if r.RiderID == riderID && !r.Status.IsTerminal() {
			copy := *r
			return &copy, nil
		}
	}
	return nil, nil
}

func (m *MockRideRepository) AcceptForDriver(ctx context.Context, rideID string, p repository.AcceptParams) (bool, error) {
	atomic.AddInt32(&m.AcceptCallCount, 1)
	if m.AcceptError != nil {
		return false, m.AcceptError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ride, ok := m.rides[rideID]
	if !ok {
		return false, repository.ErrNotFound
	}
	if !ride.Acceptable() {
		return false, nil
	}
	ride.Status = domain.RideStatusAccepted
	ride.DriverID = p.DriverID
	fare := p.Fare
	ride.Fare = &fare
	ride.DistanceKm = p.DistanceKm
	ride.SurgeMultiplier = p.SurgeMultiplier
	at := p.AcceptedAt
	ride.StartedAt = &at
	for _, r := range m.rides {
		if r.RiderID != ride.RiderID || r.Status != domain.RideStatusCancelled || r.PenaltySettled || r.PenaltyAmount <= 0 {
			continue
		}
		// Cancellations landing after the quote stay outstanding.
		if r.CancelledAt != nil && r.CancelledAt.After(p.PenaltiesAsOf) {
			continue
		}
		r.PenaltySettled = true
	}
	return true, nil
}

func (m *MockRideRepository) Reject(ctx context.Context, rideID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ride, ok := m.rides[rideID]
	if !ok {
		return false, repository.ErrNotFound
	}
	if ride.Status != domain.RideStatusRequested {
		return false, nil
	}
	ride.Status = domain.RideStatusRejected
	return true, nil
}

func (m *MockRideRepository) ReassignDriver(ctx context.Context, rideID, newDriverID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ride, ok := m.rides[rideID]
	if !ok {
		return false, repository.ErrNotFound
	}
	if ride.Status != domain.RideStatusAccepted {
		return false, nil
	}
	ride.DriverID = newDriverID
	ride.DriverReachedAt = nil
	return true, nil
}

func (m *MockRideRepository) MarkDriverReached(ctx context.Context, rideID, driverID string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ride, ok := m.rides[rideID]
	if !ok {
		return false, repository.ErrNotFound
	}
	if ride.Status != domain.RideStatusAccepted || ride.DriverID != driverID {
		return false, nil
	}
	ride.DriverReachedAt = &at
	return true, nil
}

func (m *MockRideRepository) Start(ctx context.Context, rideID string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ride, ok := m.rides[rideID]
	if !ok {
		return false, repository.ErrNotFound
	}
	if ride.Status != domain.RideStatusAccepted || ride.DriverReachedAt == nil {
		return false, nil
	}
	ride.Status = domain.RideStatusOngoing
	ride.OngoingAt = &at
	return true, nil
}

func (m *MockRideRepository) Complete(ctx context.Context, rideID string, method domain.PaymentMethod, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ride, ok := m.rides[rideID]
	if !ok {
		return false, repository.ErrNotFound
	}
	if ride.Status != domain.RideStatusOngoing {
		return false, nil
	}
	ride.Status = domain.RideStatusCompleted
	ride.PaymentMethod = method
	ride.CompletedAt = &at
	return true, nil
}

func (m *MockRideRepository) Cancel(ctx context.Context, rideID string, by domain.CancelActor, reason string, at time.Time) (bool, error) {
	if m.CancelError != nil {
		return false, m.CancelError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ride, ok := m.rides[rideID]
	if !ok {
		return false, repository.ErrNotFound
	}
	if !ride.Cancellable() {
		return false, nil
	}
	ride.Status = domain.RideStatusCancelled
	ride.CancelledBy = by
	ride.CancelReason = reason
	ride.PenaltyAmount = ride.FareAmount() * 0.10
	ride.CancelledAt = &at
	return true, nil
}

func (m *MockRideRepository) SetPromo(ctx context.Context, rideID string, fare float64, promo *domain.PromoApplication) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SetPromoDenied {
		return false, nil
	}
	ride, ok := m.rides[rideID]
	if !ok {
		return false, repository.ErrNotFound
	}
	if ride.Status != domain.RideStatusAccepted || ride.Promo != nil {
		return false, nil
	}
	ride.Fare = &fare
	ride.Promo = promo
	return true, nil
}

func (m *MockRideRepository) ClearPromo(ctx context.Context, rideID string, fare float64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ride, ok := m.rides[rideID]
	if !ok {
		return false, repository.ErrNotFound
	}
	if ride.Status != domain.RideStatusAccepted || ride.Promo == nil {
		return false, nil
	}
	ride.Fare = &fare
	ride.Promo = nil
	return true, nil
}

func (m *MockRideRepository) OutstandingPenalty(ctx context.Context, riderID string, asOf time.Time) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0.0
	for _, r := range m.rides {
		if r.RiderID != riderID || r.Status != domain.RideStatusCancelled || r.PenaltySettled {
			continue
		}
		if r.CancelledAt != nil && r.CancelledAt.After(asOf) {
			continue
		}
		total += r.PenaltyAmount
	}
	return total, nil
}

// ──────────────────────────────────────────────
// MOCK PROMOTION REPOSITORY
// ──────────────────────────────────────────────

// MockPromotionRepository is a mock implementation of PromotionRepository.
// RecordUsage enforces the usage caps under the same lock that appends the
// usage, matching the conditional-update semantics of the real store.
type MockPromotionRepository struct {
	mu     sync.Mutex
	promos map[string]*domain.Promotion // keyed by ID

	// Counters for verification
	RecordCallCount  int32
	ReleaseCallCount int32

	// Error injection
	RecordError  error
	ReleaseError error
}

// NewMockPromotionRepository creates a new mock promotion repository.
func NewMockPromotionRepository() *MockPromotionRepository {
	return &MockPromotionRepository{
		promos: make(map[string]*domain.Promotion),
	}
}

// AddPromotion adds a promotion to the mock repository.
func (m *MockPromotionRepository) AddPromotion(promo *domain.Promotion) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.promos[promo.ID] = promo
}

// GetPromotion returns the stored promotion for test assertions.
func (m *MockPromotionRepository) GetPromotion(id string) *domain.Promotion {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.promos[id]
}

func (m *MockPromotionRepository) Create(ctx context.Context, promo *domain.Promotion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.promos[promo.ID] = promo
	return nil
}

func (m *MockPromotionRepository) GetByCode(ctx context.Context, code string) (*domain.Promotion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	canonical := domain.NormalizeCode(code)
	for _, p := range m.promos {
		if domain.NormalizeCode(p.Code) == canonical {
			copy := *p
			copy.UsedBy = append([]string(nil), p.UsedBy...)
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *MockPromotionRepository) RecordUsage(ctx context.Context, promoID, riderID string) (bool, error) {
	atomic.AddInt32(&m.RecordCallCount, 1)
	if m.RecordError != nil {
		return false, m.RecordError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	promo, ok := m.promos[promoID]
	if !ok {
		return false, repository.ErrNotFound
	}
	if !promo.Active {
		return false, nil
	}
	if promo.UsageLimitPerUser > 0 && promo.UsageCountFor(riderID) >= promo.UsageLimitPerUser {
		return false, nil
	}
	if promo.GlobalUsageLimit > 0 && len(promo.UsedBy) >= promo.GlobalUsageLimit {
		return false, nil
	}
	promo.UsedBy = append(promo.UsedBy, riderID)
	return true, nil
}

func (m *MockPromotionRepository) ReleaseUsage(ctx context.Context, promoID, riderID string) (bool, error) {
	atomic.AddInt32(&m.ReleaseCallCount, 1)
	if m.ReleaseError != nil {
		return false, m.ReleaseError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	promo, ok := m.promos[promoID]
	if !ok {
		return false, repository.ErrNotFound
	}
	for i, id := range promo.UsedBy {
		if id == riderID {
			promo.UsedBy = append(promo.UsedBy[:i], promo.UsedBy[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

// ──────────────────────────────────────────────
// MOCK FARE CONFIG REPOSITORY
// ──────────────────────────────────────────────

// MockFareConfigRepository is a mock implementation of FareConfigRepository.
type MockFareConfigRepository struct {
	mu    sync.RWMutex
	slabs []*domain.FareSlab
	rules []*domain.SurgeRule

	// Error injection
	SlabsError error
	RulesError error
}

// NewMockFareConfigRepository creates a new mock fare config repository.
func NewMockFareConfigRepository() *MockFareConfigRepository {
	return &MockFareConfigRepository{}
}

// SetSlabs replaces the configured slabs.
func (m *MockFareConfigRepository) SetSlabs(slabs ...*domain.FareSlab) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slabs = slabs
}

// SetSurgeRules replaces the configured surge rules.
func (m *MockFareConfigRepository) SetSurgeRules(rules ...*domain.SurgeRule) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = rules
}

func (m *MockFareConfigRepository) ActiveSlabs(ctx context.Context) ([]*domain.FareSlab, error) {
	if m.SlabsError != nil {
		return nil, m.SlabsError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.slabs, nil
}

func (m *MockFareConfigRepository) ActiveSurgeRules(ctx context.Context) ([]*domain.SurgeRule, error) {
	if m.RulesError != nil {
		return nil, m.RulesError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rules, nil
}

// ──────────────────────────────────────────────
// MOCK LOCK STORE
// ──────────────────────────────────────────────

// MockLockStore is an in-memory implementation of the rider lock.
type MockLockStore struct {
	mu    sync.Mutex
	locks map[string]bool

	// Counters for verification
	AcquireCallCount int32

	// Error injection
	AcquireError error
}

// NewMockLockStore creates a new mock lock store.
func NewMockLockStore() *MockLockStore {
	return &MockLockStore{
		locks: make(map[string]bool),
	}
}

func (m *MockLockStore) AcquireRiderLock(ctx context.Context, riderID string, ttl time.Duration) (bool, error) {
	atomic.AddInt32(&m.AcquireCallCount, 1)
	if m.AcquireError != nil {
		return false, m.AcquireError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.locks[riderID] {
		return false, nil
	}
	m.locks[riderID] = true
	return true, nil
}

func (m *MockLockStore) ReleaseRiderLock(ctx context.Context, riderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locks, riderID)
	return nil
}
