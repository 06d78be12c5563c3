package tests

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"hail/internal/domain"
	"hail/internal/pricing"
	"hail/internal/repository"
	"hail/internal/service"
)

// fixture bundles the mocks behind one wired RideService.
type fixture struct {
	rideRepo   *MockRideRepository
	riderRepo  *MockRiderRepository
	driverRepo *MockDriverRepository
	fareConfig *MockFareConfigRepository
	lockStore  *MockLockStore
	service    *service.RideService
}

func newFixture() *fixture {
	f := &fixture{
		rideRepo:   NewMockRideRepository(),
		riderRepo:  NewMockRiderRepository(),
		driverRepo: NewMockDriverRepository(),
		fareConfig: NewMockFareConfigRepository(),
		lockStore:  NewMockLockStore(),
	}
	f.service = service.NewRideService(
		f.rideRepo,
		f.riderRepo,
		f.driverRepo,
		pricing.NewSlabResolver(f.fareConfig),
		pricing.NewSurgeResolver(f.fareConfig),
		f.lockStore,
		nil,
		zap.NewNop(),
	)
	f.riderRepo.AddRider(&domain.Rider{ID: "rider-1", Name: "Asha", Active: true})
	f.driverRepo.AddDriver(&domain.Driver{ID: "driver-1", Name: "Ravi", Active: true})
	return f
}

func validCreateRequest() service.CreateRideRequest {
	return service.CreateRideRequest{
		RiderID:     "rider-1",
		Pickup:      domain.Stop{Address: "MG Road", Lat: 12.9716, Lng: 77.5946},
		Drops:       []domain.Stop{{Address: "Koramangala", Lat: 12.9352, Lng: 77.6245}},
		VehicleType: domain.VehicleSedan,
	}
}

// ──────────────────────────────────────────────
// 1. RIDE CREATION
// ──────────────────────────────────────────────

func TestCreateRide_Succeeds(t *testing.T) {
	t.Parallel()

	f := newFixture()

	ride, err := f.service.CreateRide(context.Background(), validCreateRequest())
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	if ride.ID == "" {
		t.Error("expected ride ID to be set")
	}
	if ride.Status != domain.RideStatusRequested {
		t.Errorf("expected status requested, got %s", ride.Status)
	}
	if len(ride.PIN) != 6 {
		t.Errorf("expected 6-digit pin, got %q", ride.PIN)
	}
	if ride.Fare != nil {
		t.Error("expected no fare before acceptance")
	}
	if ride.SurgeMultiplier != 1.0 {
		t.Errorf("expected surge 1.0 at creation, got %v", ride.SurgeMultiplier)
	}
}

func TestCreateRide_Validation(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		mutate  func(*service.CreateRideRequest)
		wantErr error
	}{
		{
			name:    "empty rider id",
			mutate:  func(r *service.CreateRideRequest) { r.RiderID = "" },
			wantErr: service.ErrInvalidRiderID,
		},
		{
			name:    "pickup latitude out of range",
			mutate:  func(r *service.CreateRideRequest) { r.Pickup.Lat = 91 },
			wantErr: service.ErrInvalidPickup,
		},
		{
			name:    "no drops",
			mutate:  func(r *service.CreateRideRequest) { r.Drops = nil },
			wantErr: service.ErrInvalidDrops,
		},
		{
			name:    "drop longitude out of range",
			mutate:  func(r *service.CreateRideRequest) { r.Drops[0].Lng = -181 },
			wantErr: service.ErrInvalidDrops,
		},
		{
			name:    "unknown vehicle type",
			mutate:  func(r *service.CreateRideRequest) { r.VehicleType = "tractor" },
			wantErr: service.ErrInvalidVehicleType,
		},
		{
			name:    "unknown payment method",
			mutate:  func(r *service.CreateRideRequest) { r.PaymentMethod = "CHEQUE" },
			wantErr: service.ErrInvalidPaymentMethod,
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture()
			req := validCreateRequest()
			tc.mutate(&req)

			_, err := f.service.CreateRide(context.Background(), req)
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestCreateRide_InactiveRider(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.riderRepo.AddRider(&domain.Rider{ID: "rider-2", Name: "Dev", Active: false})

	req := validCreateRequest()
	req.RiderID = "rider-2"

	_, err := f.service.CreateRide(context.Background(), req)
	if !errors.Is(err, service.ErrRiderInactive) {
		t.Errorf("expected ErrRiderInactive, got %v", err)
	}
}

func TestCreateRide_SecondRideConflicts(t *testing.T) {
	t.Parallel()

	f := newFixture()

	first, err := f.service.CreateRide(context.Background(), validCreateRequest())
	if err != nil {
		t.Fatalf("first create failed: %v", err)
	}

	_, err = f.service.CreateRide(context.Background(), validCreateRequest())
	var activeErr *service.ActiveRideError
	if !errors.As(err, &activeErr) {
		t.Fatalf("expected ActiveRideError, got %v", err)
	}
	if activeErr.RideID != first.ID {
		t.Errorf("expected conflict to name ride %s, got %s", first.ID, activeErr.RideID)
	}
	if activeErr.Status != domain.RideStatusRequested {
		t.Errorf("expected conflict status requested, got %s", activeErr.Status)
	}
}

func TestCreateRide_AllowedAfterTerminal(t *testing.T) {
	t.Parallel()

	f := newFixture()

	first, err := f.service.CreateRide(context.Background(), validCreateRequest())
	if err != nil {
		t.Fatalf("first create failed: %v", err)
	}

	if _, err := f.service.CancelRide(context.Background(), first.ID, domain.CancelActorRider, "changed plans"); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	if _, err := f.service.CreateRide(context.Background(), validCreateRequest()); err != nil {
		t.Errorf("expected create after cancellation to succeed, got %v", err)
	}
}

func TestCreateRide_ConcurrentRequestsYieldOneRide(t *testing.T) {
	t.Parallel()

	f := newFixture()

	const n = 10
	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.service.CreateRide(context.Background(), validCreateRequest()); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if successes != 1 {
		t.Errorf("expected exactly 1 successful creation, got %d", successes)
	}

	active, err := f.rideRepo.GetActiveByRiderID(context.Background(), "rider-1")
	if err != nil || active == nil {
		t.Fatalf("expected one active ride, got %v %v", active, err)
	}
}

// ──────────────────────────────────────────────
// 2. ACCEPTANCE AND FARE FREEZING
// ──────────────────────────────────────────────

func TestAcceptRide_FreezesFare(t *testing.T) {
	t.Parallel()

	f := newFixture()

	created, err := f.service.CreateRide(context.Background(), validCreateRequest())
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	ride, breakdown, err := f.service.AcceptRide(context.Background(), created.ID, "driver-1")
	if err != nil {
		t.Fatalf("accept failed: %v", err)
	}

	if ride.Status != domain.RideStatusAccepted {
		t.Errorf("expected status accepted, got %s", ride.Status)
	}
	if ride.DriverID != "driver-1" {
		t.Errorf("expected driver-1, got %s", ride.DriverID)
	}
	if ride.Fare == nil {
		t.Fatal("expected fare to be frozen")
	}
	if ride.DistanceKm <= 0 {
		t.Errorf("expected positive distance, got %v", ride.DistanceKm)
	}

	// No configured slabs: sedan defaults apply, no surge, no prior penalty.
	wantSlab := math.Round(80 + 15*breakdown.DistanceKm)
	if breakdown.SlabAmount != wantSlab {
		t.Errorf("expected slab amount %v, got %v", wantSlab, breakdown.SlabAmount)
	}
	if breakdown.Total != wantSlab {
		t.Errorf("expected total %v, got %v", wantSlab, breakdown.Total)
	}
	if *ride.Fare != breakdown.Total {
		t.Errorf("frozen fare %v does not match breakdown total %v", *ride.Fare, breakdown.Total)
	}
}

func TestAcceptRide_AppliesSurge(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.fareConfig.SetSurgeRules(&domain.SurgeRule{
		ID:         "always",
		DaysOfWeek: []int{0, 1, 2, 3, 4, 5, 6},
		StartTime:  "00:00", EndTime: "23:59",
		DistanceFrom: 0, DistanceTo: 10000,
		Multiplier: 1.5,
		Active:     true,
	})

	created, err := f.service.CreateRide(context.Background(), validCreateRequest())
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	_, breakdown, err := f.service.AcceptRide(context.Background(), created.ID, "driver-1")
	if err != nil {
		t.Fatalf("accept failed: %v", err)
	}

	if breakdown.SurgeMultiplier != 1.5 {
		t.Errorf("expected surge 1.5, got %v", breakdown.SurgeMultiplier)
	}
	want := math.Round(breakdown.SlabAmount * 1.5)
	if breakdown.Total != want {
		t.Errorf("expected total %v, got %v", want, breakdown.Total)
	}
}

func TestAcceptRide_ConcurrentClaimsYieldOneWinner(t *testing.T) {
	t.Parallel()

	f := newFixture()
	for _, id := range []string{"d1", "d2", "d3", "d4", "d5"} {
		f.driverRepo.AddDriver(&domain.Driver{ID: id, Active: true})
	}

	created, err := f.service.CreateRide(context.Background(), validCreateRequest())
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := []string{}
	conflicts := 0

	for _, id := range []string{"d1", "d2", "d3", "d4", "d5"} {
		id := id
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := f.service.AcceptRide(context.Background(), created.ID, id)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				winners = append(winners, id)
				return
			}
			var conflictErr *service.StateConflictError
			if errors.As(err, &conflictErr) {
				if conflictErr.Status != domain.RideStatusAccepted {
					t.Errorf("conflict should report accepted, got %s", conflictErr.Status)
				}
				conflicts++
			} else {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if len(winners) != 1 {
		t.Fatalf("expected exactly one winning driver, got %v", winners)
	}
	if conflicts != 4 {
		t.Errorf("expected 4 conflicts, got %d", conflicts)
	}

	ride := f.rideRepo.GetRide(created.ID)
	if ride.DriverID != winners[0] {
		t.Errorf("stored driver %s does not match winner %s", ride.DriverID, winners[0])
	}
}

func TestAcceptRide_InactiveDriver(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.driverRepo.AddDriver(&domain.Driver{ID: "driver-off", Active: false})

	created, err := f.service.CreateRide(context.Background(), validCreateRequest())
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	_, _, err = f.service.AcceptRide(context.Background(), created.ID, "driver-off")
	if !errors.Is(err, service.ErrDriverInactive) {
		t.Errorf("expected ErrDriverInactive, got %v", err)
	}
}

func TestAcceptRide_AfterRejectSucceeds(t *testing.T) {
	t.Parallel()

	f := newFixture()

	created, err := f.service.CreateRide(context.Background(), validCreateRequest())
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	rejected, err := f.service.RejectRide(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("reject failed: %v", err)
	}
	if rejected.Status != domain.RideStatusRejected {
		t.Fatalf("expected rejected, got %s", rejected.Status)
	}

	ride, _, err := f.service.AcceptRide(context.Background(), created.ID, "driver-1")
	if err != nil {
		t.Fatalf("accept after reject failed: %v", err)
	}
	if ride.Status != domain.RideStatusAccepted {
		t.Errorf("expected accepted, got %s", ride.Status)
	}
}

func TestAcceptRide_CancelledRideConflicts(t *testing.T) {
	t.Parallel()

	f := newFixture()

	created, err := f.service.CreateRide(context.Background(), validCreateRequest())
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := f.service.CancelRide(context.Background(), created.ID, domain.CancelActorRider, "changed plans"); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	_, _, err = f.service.AcceptRide(context.Background(), created.ID, "driver-1")
	var conflictErr *service.StateConflictError
	if !errors.As(err, &conflictErr) {
		t.Fatalf("expected StateConflictError, got %v", err)
	}
	if conflictErr.Status != domain.RideStatusCancelled {
		t.Errorf("expected status cancelled in conflict, got %s", conflictErr.Status)
	}
}

// ──────────────────────────────────────────────
// 3. START GATES
// ──────────────────────────────────────────────

// acceptedRide creates and accepts a ride, returning the stored state.
func acceptedRide(t *testing.T, f *fixture) *domain.Ride {
	t.Helper()

	created, err := f.service.CreateRide(context.Background(), validCreateRequest())
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	ride, _, err := f.service.AcceptRide(context.Background(), created.ID, "driver-1")
	if err != nil {
		t.Fatalf("accept failed: %v", err)
	}
	return ride
}

func TestStartRide_RequiresDriverReached(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ride := acceptedRide(t, f)

	_, err := f.service.StartRide(context.Background(), ride.ID, "driver-1", ride.PIN)
	if !errors.Is(err, service.ErrDriverNotReached) {
		t.Errorf("expected ErrDriverNotReached, got %v", err)
	}
}

func TestStartRide_PinMismatchLeavesRideAccepted(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ride := acceptedRide(t, f)

	if _, err := f.service.MarkDriverReached(context.Background(), ride.ID, "driver-1"); err != nil {
		t.Fatalf("mark reached failed: %v", err)
	}

	_, err := f.service.StartRide(context.Background(), ride.ID, "driver-1", "000000x")
	if !errors.Is(err, service.ErrPinMismatch) {
		t.Fatalf("expected ErrPinMismatch, got %v", err)
	}

	stored := f.rideRepo.GetRide(ride.ID)
	if stored.Status != domain.RideStatusAccepted {
		t.Errorf("expected ride to remain accepted, got %s", stored.Status)
	}

	// The correct pin still works afterwards.
	started, err := f.service.StartRide(context.Background(), ride.ID, "driver-1", ride.PIN)
	if err != nil {
		t.Fatalf("start with correct pin failed: %v", err)
	}
	if started.Status != domain.RideStatusOngoing {
		t.Errorf("expected ongoing, got %s", started.Status)
	}
}

func TestStartRide_WrongDriver(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.driverRepo.AddDriver(&domain.Driver{ID: "driver-2", Active: true})
	ride := acceptedRide(t, f)

	if _, err := f.service.MarkDriverReached(context.Background(), ride.ID, "driver-1"); err != nil {
		t.Fatalf("mark reached failed: %v", err)
	}

	_, err := f.service.StartRide(context.Background(), ride.ID, "driver-2", ride.PIN)
	if !errors.Is(err, service.ErrDriverNotOnRide) {
		t.Errorf("expected ErrDriverNotOnRide, got %v", err)
	}
}

// ──────────────────────────────────────────────
// 4. COMPLETION
// ──────────────────────────────────────────────

// ongoingRide drives a fresh ride to ongoing.
func ongoingRide(t *testing.T, f *fixture) *domain.Ride {
	t.Helper()

	ride := acceptedRide(t, f)
	if _, err := f.service.MarkDriverReached(context.Background(), ride.ID, "driver-1"); err != nil {
		t.Fatalf("mark reached failed: %v", err)
	}
	started, err := f.service.StartRide(context.Background(), ride.ID, "driver-1", ride.PIN)
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	return started
}

func TestCompleteRide_Succeeds(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ride := ongoingRide(t, f)

	completed, err := f.service.CompleteRide(context.Background(), ride.ID, "driver-1", domain.PaymentMethodUPI)
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}

	if completed.Status != domain.RideStatusCompleted {
		t.Errorf("expected completed, got %s", completed.Status)
	}
	if completed.PaymentMethod != domain.PaymentMethodUPI {
		t.Errorf("expected UPI, got %s", completed.PaymentMethod)
	}
	if completed.Fare == nil || *completed.Fare != *ride.Fare {
		t.Error("expected frozen fare to survive completion unchanged")
	}

	driver := f.driverRepo.GetDriver("driver-1")
	if driver.CompletedRides != 1 {
		t.Errorf("expected completed rides counter 1, got %d", driver.CompletedRides)
	}
}

func TestCompleteRide_FromAcceptedConflicts(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ride := acceptedRide(t, f)

	_, err := f.service.CompleteRide(context.Background(), ride.ID, "driver-1", domain.PaymentMethodCash)
	var conflictErr *service.StateConflictError
	if !errors.As(err, &conflictErr) {
		t.Fatalf("expected StateConflictError, got %v", err)
	}
}

func TestCompleteRide_CounterFailureDoesNotUndoTransition(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ride := ongoingRide(t, f)
	f.driverRepo.IncrementError = errors.New("db down")

	completed, err := f.service.CompleteRide(context.Background(), ride.ID, "driver-1", domain.PaymentMethodCash)
	if err != nil {
		t.Fatalf("expected completion despite counter failure, got %v", err)
	}
	if completed.Status != domain.RideStatusCompleted {
		t.Errorf("expected completed, got %s", completed.Status)
	}
}

// ──────────────────────────────────────────────
// 5. CANCELLATION AND PENALTY CARRY-OVER
// ──────────────────────────────────────────────

func TestCancelRide_BeforeAcceptanceNoPenalty(t *testing.T) {
	t.Parallel()

	f := newFixture()

	created, err := f.service.CreateRide(context.Background(), validCreateRequest())
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	cancelled, err := f.service.CancelRide(context.Background(), created.ID, domain.CancelActorRider, "changed plans")
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	if cancelled.Status != domain.RideStatusCancelled {
		t.Errorf("expected cancelled, got %s", cancelled.Status)
	}
	if cancelled.PenaltyAmount != 0 {
		t.Errorf("expected no penalty before acceptance, got %v", cancelled.PenaltyAmount)
	}
}

func TestCancelRide_AfterAcceptanceRetainsTenPercent(t *testing.T) {
	t.Parallel()

	f := newFixture()
	fare := 500.0
	at := time.Now()
	f.rideRepo.AddRide(&domain.Ride{
		ID:      "ride-accepted",
		RiderID: "rider-1", DriverID: "driver-1",
		Status:    domain.RideStatusAccepted,
		Fare:      &fare,
		StartedAt: &at,
	})

	cancelled, err := f.service.CancelRide(context.Background(), "ride-accepted", domain.CancelActorRider, "waited too long")
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	if cancelled.PenaltyAmount != 50 {
		t.Errorf("expected penalty 50 on fare 500, got %v", cancelled.PenaltyAmount)
	}
	if cancelled.CancelledBy != domain.CancelActorRider {
		t.Errorf("expected cancelled by rider, got %s", cancelled.CancelledBy)
	}
}

func TestCancelRide_PenaltyTracksFareAtCancellation(t *testing.T) {
	t.Parallel()

	f := newFixture()
	fare := 300.0
	at := time.Now()
	f.rideRepo.AddRide(&domain.Ride{
		ID:      "ride-discounted",
		RiderID: "rider-1", DriverID: "driver-1",
		Status:    domain.RideStatusAccepted,
		Fare:      &fare,
		StartedAt: &at,
	})

	// A discount lands after the ride was last read; the penalty must be
	// a tenth of the fare actually on the ride when the cancel commits.
	ok, err := f.rideRepo.SetPromo(context.Background(), "ride-discounted", 250, &domain.PromoApplication{
		PromotionID: "promo-1", Code: "SAVE50", Kind: domain.PromoFlat, Value: 50, Discount: 50, AppliedAt: at,
	})
	if err != nil || !ok {
		t.Fatalf("set promo failed: ok=%v err=%v", ok, err)
	}

	cancelled, err := f.service.CancelRide(context.Background(), "ride-discounted", domain.CancelActorRider, "waited too long")
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	if cancelled.PenaltyAmount != 25 {
		t.Errorf("expected penalty 25 on fare 250, got %v", cancelled.PenaltyAmount)
	}
}

func TestCancelRide_ReasonTooShort(t *testing.T) {
	t.Parallel()

	f := newFixture()

	created, err := f.service.CreateRide(context.Background(), validCreateRequest())
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	_, err = f.service.CancelRide(context.Background(), created.ID, domain.CancelActorRider, "no")
	if !errors.Is(err, service.ErrCancelReasonTooShort) {
		t.Errorf("expected ErrCancelReasonTooShort, got %v", err)
	}
}

func TestCancelRide_CompletedRideConflicts(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ride := ongoingRide(t, f)
	if _, err := f.service.CompleteRide(context.Background(), ride.ID, "driver-1", domain.PaymentMethodCash); err != nil {
		t.Fatalf("complete failed: %v", err)
	}

	_, err := f.service.CancelRide(context.Background(), ride.ID, domain.CancelActorRider, "too late")
	var conflictErr *service.StateConflictError
	if !errors.As(err, &conflictErr) {
		t.Fatalf("expected StateConflictError, got %v", err)
	}
	if conflictErr.Status != domain.RideStatusCompleted {
		t.Errorf("expected completed in conflict, got %s", conflictErr.Status)
	}
}

func TestPenaltyCarriesIntoNextAcceptedFare(t *testing.T) {
	t.Parallel()

	f := newFixture()
	cancelledAt := time.Now().Add(-time.Hour)
	f.rideRepo.AddRide(&domain.Ride{
		ID:      "ride-old",
		RiderID: "rider-1",
		Status:  domain.RideStatusCancelled,
		PenaltyAmount: 50, PenaltySettled: false,
		CancelledAt: &cancelledAt,
	})

	created, err := f.service.CreateRide(context.Background(), validCreateRequest())
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	_, breakdown, err := f.service.AcceptRide(context.Background(), created.ID, "driver-1")
	if err != nil {
		t.Fatalf("accept failed: %v", err)
	}

	if breakdown.PriorPenalty != 50 {
		t.Errorf("expected prior penalty 50, got %v", breakdown.PriorPenalty)
	}
	want := math.Round(breakdown.SlabAmount + 50)
	if breakdown.Total != want {
		t.Errorf("expected total %v, got %v", want, breakdown.Total)
	}

	old := f.rideRepo.GetRide("ride-old")
	if !old.PenaltySettled {
		t.Error("expected prior penalty to be settled at acceptance")
	}

	// A second acceptance for the same rider must not charge it again.
	penalty, err := f.rideRepo.OutstandingPenalty(context.Background(), "rider-1", time.Now())
	if err != nil {
		t.Fatalf("outstanding penalty failed: %v", err)
	}
	if penalty != 0 {
		t.Errorf("expected no outstanding penalty after settlement, got %v", penalty)
	}
}

func TestAcceptRide_SettlesOnlyPenaltiesInTheQuote(t *testing.T) {
	t.Parallel()

	f := newFixture()
	quotedAt := time.Now()
	before := quotedAt.Add(-time.Minute)
	after := quotedAt.Add(time.Minute)
	f.rideRepo.AddRide(&domain.Ride{
		ID: "ride-quoted", RiderID: "rider-1",
		Status:        domain.RideStatusCancelled,
		PenaltyAmount: 50, CancelledAt: &before,
	})
	f.rideRepo.AddRide(&domain.Ride{
		ID: "ride-late", RiderID: "rider-1",
		Status:        domain.RideStatusCancelled,
		PenaltyAmount: 30, CancelledAt: &after,
	})
	f.rideRepo.AddRide(&domain.Ride{
		ID: "ride-next", RiderID: "rider-1",
		Status: domain.RideStatusRequested,
		Pickup: domain.Stop{Address: "MG Road", Lat: 12.9716, Lng: 77.5946},
		Drops:  []domain.Stop{{Address: "Koramangala", Lat: 12.9352, Lng: 77.6245}},
	})

	// A cancellation landing after the quote was read must not be marked
	// settled by the acceptance: it was never folded into the fare.
	ok, err := f.rideRepo.AcceptForDriver(context.Background(), "ride-next", repository.AcceptParams{
		DriverID:      "driver-1",
		Fare:          280,
		AcceptedAt:    quotedAt,
		PenaltiesAsOf: quotedAt,
	})
	if err != nil || !ok {
		t.Fatalf("accept failed: ok=%v err=%v", ok, err)
	}

	if !f.rideRepo.GetRide("ride-quoted").PenaltySettled {
		t.Error("expected quoted penalty to be settled")
	}
	if f.rideRepo.GetRide("ride-late").PenaltySettled {
		t.Error("expected late penalty to stay unsettled")
	}

	outstanding, err := f.rideRepo.OutstandingPenalty(context.Background(), "rider-1", after.Add(time.Minute))
	if err != nil {
		t.Fatalf("outstanding penalty failed: %v", err)
	}
	if outstanding != 30 {
		t.Errorf("expected the late penalty 30 to remain outstanding, got %v", outstanding)
	}
}

// ──────────────────────────────────────────────
// 6. REASSIGNMENT
// ──────────────────────────────────────────────

func TestReassignDriver_OnAcceptedKeepsFare(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.driverRepo.AddDriver(&domain.Driver{ID: "driver-2", Active: true})
	ride := acceptedRide(t, f)
	originalFare := *ride.Fare

	reassigned, err := f.service.ReassignDriver(context.Background(), ride.ID, "driver-2")
	if err != nil {
		t.Fatalf("reassign failed: %v", err)
	}

	if reassigned.DriverID != "driver-2" {
		t.Errorf("expected driver-2, got %s", reassigned.DriverID)
	}
	if reassigned.Status != domain.RideStatusAccepted {
		t.Errorf("expected accepted, got %s", reassigned.Status)
	}
	if reassigned.Fare == nil || *reassigned.Fare != originalFare {
		t.Error("expected frozen fare to survive reassignment")
	}
}

func TestReassignDriver_NewDriverMustMarkReachedBeforeStart(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.driverRepo.AddDriver(&domain.Driver{ID: "driver-2", Active: true})
	ride := acceptedRide(t, f)

	if _, err := f.service.MarkDriverReached(context.Background(), ride.ID, "driver-1"); err != nil {
		t.Fatalf("mark reached failed: %v", err)
	}

	reassigned, err := f.service.ReassignDriver(context.Background(), ride.ID, "driver-2")
	if err != nil {
		t.Fatalf("reassign failed: %v", err)
	}
	if reassigned.DriverReachedAt != nil {
		t.Error("expected reassignment to clear the arrival stamp")
	}

	// The outgoing driver's arrival says nothing about the replacement.
	_, err = f.service.StartRide(context.Background(), ride.ID, "driver-2", ride.PIN)
	if !errors.Is(err, service.ErrDriverNotReached) {
		t.Fatalf("expected ErrDriverNotReached, got %v", err)
	}

	if _, err := f.service.MarkDriverReached(context.Background(), ride.ID, "driver-2"); err != nil {
		t.Fatalf("mark reached failed: %v", err)
	}
	started, err := f.service.StartRide(context.Background(), ride.ID, "driver-2", ride.PIN)
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if started.Status != domain.RideStatusOngoing {
		t.Errorf("expected ongoing, got %s", started.Status)
	}
}

func TestReassignDriver_OnRequestedActsAsAccept(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.driverRepo.AddDriver(&domain.Driver{ID: "driver-2", Active: true})

	created, err := f.service.CreateRide(context.Background(), validCreateRequest())
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	ride, err := f.service.ReassignDriver(context.Background(), created.ID, "driver-2")
	if err != nil {
		t.Fatalf("reassign failed: %v", err)
	}

	if ride.Status != domain.RideStatusAccepted {
		t.Errorf("expected accepted, got %s", ride.Status)
	}
	if ride.Fare == nil {
		t.Error("expected fare to be frozen by reassignment acceptance")
	}
}

func TestReassignDriver_OnOngoingConflicts(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.driverRepo.AddDriver(&domain.Driver{ID: "driver-2", Active: true})
	ride := ongoingRide(t, f)

	_, err := f.service.ReassignDriver(context.Background(), ride.ID, "driver-2")
	var conflictErr *service.StateConflictError
	if !errors.As(err, &conflictErr) {
		t.Fatalf("expected StateConflictError, got %v", err)
	}
	if conflictErr.Status != domain.RideStatusOngoing {
		t.Errorf("expected ongoing in conflict, got %s", conflictErr.Status)
	}
}
