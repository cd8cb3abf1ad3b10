package lifecycle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ecoride/ecoride/pkg/common"
	"github.com/ecoride/ecoride/pkg/models"
)

// ============================================
// MOCKS
// ============================================

type mockRidePersistence struct{ mock.Mock }

func (m *mockRidePersistence) GetRide(ctx context.Context, rideID uuid.UUID) (*models.Ride, error) {
	args := m.Called(ctx, rideID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Ride), args.Error(1)
}

func (m *mockRidePersistence) UpdateRideStatus(ctx context.Context, rideID uuid.UUID, status models.RideStatus) (*models.Ride, error) {
	args := m.Called(ctx, rideID, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Ride), args.Error(1)
}

// ============================================
// HELPERS
// ============================================

func pendingRide() *models.Ride {
	return &models.Ride{
		ID:     uuid.New(),
		UserID: uuid.New(),
		Pickup: models.Location{
			Coordinate: models.Coordinate{Latitude: 12.9715, Longitude: 77.5945},
			Address:    "MG Road, Bengaluru",
		},
		Destination: models.Location{
			Coordinate: models.Coordinate{Latitude: 12.9815, Longitude: 77.6145},
			Address:    "Indiranagar, Bengaluru",
		},
		VehicleType: models.VehicleTypeCar,
		Status:      models.RideStatusPending,
		DistanceKm:  15.3,
		Fare:        260,
	}
}

func newTestTracker(t *testing.T, ride *models.Ride) (*Tracker, *mockRidePersistence) {
	t.Helper()
	persistence := new(mockRidePersistence)
	persistence.On("GetRide", mock.Anything, ride.ID).Return(ride, nil)
	tracker, err := NewTracker(context.Background(), ride.ID, persistence)
	require.NoError(t, err)
	return tracker, persistence
}

func allowStatusWrites(persistence *mockRidePersistence) {
	persistence.On("UpdateRideStatus", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, nil).Maybe()
}

// ============================================
// CONSTRUCTION TESTS
// ============================================

func TestNewTrackerRequiresLoadableRide(t *testing.T) {
	persistence := new(mockRidePersistence)
	rideID := uuid.New()
	persistence.On("GetRide", mock.Anything, rideID).
		Return(nil, common.NewNotFoundError("ride not found"))

	tracker, err := NewTracker(context.Background(), rideID, persistence)

	assert.Nil(t, tracker)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestNewTrackerRejectsCancelledRide(t *testing.T) {
	ride := pendingRide()
	ride.Status = models.RideStatusCancelled
	persistence := new(mockRidePersistence)
	persistence.On("GetRide", mock.Anything, ride.ID).Return(ride, nil)

	_, err := NewTracker(context.Background(), ride.ID, persistence)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestNewTrackerResumesFromPersistedStatus(t *testing.T) {
	ride := pendingRide()
	ride.Status = models.RideStatusInProgress
	tracker, _ := newTestTracker(t, ride)

	assert.Equal(t, StageRideStarted, tracker.Snapshot().Stage)
}

// ============================================
// ADVANCE TESTS
// ============================================

func TestAdvanceWalksEveryStageInOrder(t *testing.T) {
	tracker, persistence := newTestTracker(t, pendingRide())
	allowStatusWrites(persistence)

	want := []Stage{
		StageDriverAssigned,
		StageDriverArriving,
		StageRideStarted,
		StageRideCompleted,
	}

	previous := tracker.Snapshot().Stage
	assert.Equal(t, StageFindingDriver, previous)

	for _, expected := range want {
		tracker.Advance(context.Background())
		stage := tracker.Snapshot().Stage
		assert.Equal(t, expected, stage)
		assert.Greater(t, stage, previous, "stages never move backward")
		previous = stage
	}

	// Terminal stage: further advances change nothing
	tracker.Advance(context.Background())
	assert.Equal(t, StageRideCompleted, tracker.Snapshot().Stage)
}

func TestDriverAssignedAttachesDriverNearPickup(t *testing.T) {
	ride := pendingRide()
	tracker, persistence := newTestTracker(t, ride)
	allowStatusWrites(persistence)

	tracker.Advance(context.Background())

	snap := tracker.Snapshot()
	require.NotNil(t, snap.Driver)
	assert.Equal(t, "Rajesh Kumar", snap.Driver.Name)
	assert.Equal(t, 4.8, snap.Driver.Rating)
	assert.Equal(t, "Tata Nexon EV", snap.Driver.VehicleModel)
	assert.Equal(t, "KA 01 AB 1234", snap.Driver.LicensePlate)

	require.NotNil(t, snap.DriverLocation)
	assert.InDelta(t, ride.Pickup.Latitude-0.003, snap.DriverLocation.Latitude, 1e-9)
	assert.InDelta(t, ride.Pickup.Longitude-0.002, snap.DriverLocation.Longitude, 1e-9)
	require.NotNil(t, snap.Ride.DriverID)
}

func TestDriverArrivingMovesDriverCloser(t *testing.T) {
	ride := pendingRide()
	tracker, persistence := newTestTracker(t, ride)
	allowStatusWrites(persistence)

	tracker.Advance(context.Background())
	tracker.Advance(context.Background())

	snap := tracker.Snapshot()
	require.NotNil(t, snap.DriverLocation)
	assert.InDelta(t, ride.Pickup.Latitude-0.0005, snap.DriverLocation.Latitude, 1e-9)
	assert.InDelta(t, ride.Pickup.Longitude-0.0005, snap.DriverLocation.Longitude, 1e-9)
}

func TestRideStartedResetsCounters(t *testing.T) {
	tracker, persistence := newTestTracker(t, pendingRide())
	allowStatusWrites(persistence)

	tracker.Advance(context.Background())
	tracker.Advance(context.Background())

	// Ticks before departure must not accrue
	tracker.Tick()
	tracker.Tick()

	tracker.Advance(context.Background()) // RideStarted

	snap := tracker.Snapshot()
	assert.Equal(t, StageRideStarted, snap.Stage)
	assert.Zero(t, snap.ElapsedSeconds)
	assert.Zero(t, snap.ElapsedKm)
}

func TestRideCompletedSnapsToDestinationAndFreezesFare(t *testing.T) {
	ride := pendingRide()
	tracker, persistence := newTestTracker(t, ride)
	allowStatusWrites(persistence)

	for i := 0; i < 4; i++ {
		tracker.Advance(context.Background())
	}

	snap := tracker.Snapshot()
	assert.Equal(t, StageRideCompleted, snap.Stage)
	assert.Equal(t, ride.Destination.Coordinate, snap.UserLocation)
	require.NotNil(t, snap.DriverLocation)
	assert.Equal(t, ride.Destination.Coordinate, *snap.DriverLocation)
	// Finals come from the ride record, not the simulated accrual
	assert.Equal(t, int64(260), snap.LiveFare)
}

// ============================================
// ACCRUAL AND LIVE FARE TESTS
// ============================================

func TestTickAccrualAndLiveFare(t *testing.T) {
	tracker, persistence := newTestTracker(t, pendingRide())
	allowStatusWrites(persistence)

	for i := 0; i < 3; i++ {
		tracker.Advance(context.Background())
	}
	require.Equal(t, StageRideStarted, tracker.Snapshot().Stage)

	for i := 0; i < 10; i++ {
		tracker.Tick()
	}

	snap := tracker.Snapshot()
	assert.Equal(t, 10, snap.ElapsedSeconds)
	assert.InDelta(t, 1.0, snap.ElapsedKm, 1e-9)
	// car rates: round(30 + 1.0*15) = 45
	assert.Equal(t, int64(45), snap.LiveFare)
}

func TestLiveFareZeroBeforeDeparture(t *testing.T) {
	tracker, persistence := newTestTracker(t, pendingRide())
	allowStatusWrites(persistence)

	assert.Zero(t, tracker.LiveFare())
	tracker.Advance(context.Background())
	assert.Zero(t, tracker.LiveFare())
}

// ============================================
// APPLYSTATUS TESTS
// ============================================

func TestApplyStatusMovesForwardOnly(t *testing.T) {
	tracker, persistence := newTestTracker(t, pendingRide())
	allowStatusWrites(persistence)

	tracker.ApplyStatus(models.RideStatusInProgress)
	assert.Equal(t, StageRideStarted, tracker.Snapshot().Stage)

	// A stale push never moves the stage back
	tracker.ApplyStatus(models.RideStatusAccepted)
	assert.Equal(t, StageRideStarted, tracker.Snapshot().Stage)

	tracker.ApplyStatus(models.RideStatusCompleted)
	assert.Equal(t, StageRideCompleted, tracker.Snapshot().Stage)
}

func TestApplyStatusRunsIntermediateSideEffects(t *testing.T) {
	tracker, persistence := newTestTracker(t, pendingRide())
	allowStatusWrites(persistence)

	tracker.ApplyStatus(models.RideStatusInProgress)

	snap := tracker.Snapshot()
	assert.NotNil(t, snap.Driver, "skipped stages still attach the driver")
	assert.Zero(t, snap.ElapsedSeconds)
}

func TestApplyStatusCancelledStopsTracking(t *testing.T) {
	tracker, persistence := newTestTracker(t, pendingRide())
	allowStatusWrites(persistence)

	tracker.ApplyStatus(models.RideStatusCancelled)

	snap := tracker.Snapshot()
	assert.True(t, snap.Cancelled)
	assert.Equal(t, models.RideStatusCancelled, snap.Ride.Status)
}

func TestApplyStatusCancelledIgnoredOnceStarted(t *testing.T) {
	tracker, persistence := newTestTracker(t, pendingRide())
	allowStatusWrites(persistence)

	tracker.ApplyStatus(models.RideStatusInProgress)
	tracker.ApplyStatus(models.RideStatusCancelled)

	assert.False(t, tracker.Snapshot().Cancelled)
}

// ============================================
// CANCEL TESTS
// ============================================

func TestCancelAllowedWhileWaitingForDriver(t *testing.T) {
	ride := pendingRide()
	tracker, persistence := newTestTracker(t, ride)
	cancelled := *ride
	cancelled.Status = models.RideStatusCancelled
	persistence.On("UpdateRideStatus", mock.Anything, ride.ID, models.RideStatusCancelled).
		Return(&cancelled, nil)

	require.NoError(t, tracker.Cancel(context.Background()))

	snap := tracker.Snapshot()
	assert.True(t, snap.Cancelled)
	assert.Equal(t, models.RideStatusCancelled, snap.Ride.Status)
	assert.Zero(t, snap.LiveFare, "no fare is charged on cancellation")
}

func TestCancelRejectedOnceStarted(t *testing.T) {
	tracker, persistence := newTestTracker(t, pendingRide())
	allowStatusWrites(persistence)

	for i := 0; i < 3; i++ {
		tracker.Advance(context.Background())
	}

	err := tracker.Cancel(context.Background())
	assert.ErrorIs(t, err, common.ErrConflict)
	assert.False(t, tracker.Snapshot().Cancelled)
}

func TestCancelFailureLeavesStateIntact(t *testing.T) {
	ride := pendingRide()
	tracker, persistence := newTestTracker(t, ride)
	persistence.On("UpdateRideStatus", mock.Anything, ride.ID, models.RideStatusCancelled).
		Return(nil, common.NewNetworkError("backend unreachable", errors.New("dial timeout")))

	err := tracker.Cancel(context.Background())

	require.Error(t, err)
	snap := tracker.Snapshot()
	assert.False(t, snap.Cancelled)
	assert.Equal(t, StageFindingDriver, snap.Stage)
}

// ============================================
// RUN TESTS
// ============================================

func TestRunAdvancesAndAccrues(t *testing.T) {
	ride := pendingRide()
	persistence := new(mockRidePersistence)
	persistence.On("GetRide", mock.Anything, ride.ID).Return(ride, nil)
	allowStatusWrites(persistence)

	tracker, err := NewTracker(context.Background(), ride.ID, persistence,
		WithIntervals(20*time.Millisecond, 5*time.Millisecond))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		tracker.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		t.Fatal("run did not terminate after ride completion")
	}

	snap := tracker.Snapshot()
	assert.Equal(t, StageRideCompleted, snap.Stage)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	ride := pendingRide()
	persistence := new(mockRidePersistence)
	persistence.On("GetRide", mock.Anything, ride.ID).Return(ride, nil)
	allowStatusWrites(persistence)

	tracker, err := NewTracker(context.Background(), ride.ID, persistence,
		WithIntervals(time.Hour, time.Hour))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		tracker.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("run leaked after context cancellation")
	}
}

func TestRunFallbackWaitsFullIntervalAfterPush(t *testing.T) {
	ride := pendingRide()
	persistence := new(mockRidePersistence)
	persistence.On("GetRide", mock.Anything, ride.ID).Return(ride, nil)
	allowStatusWrites(persistence)

	const advanceEvery = 500 * time.Millisecond
	tracker, err := NewTracker(context.Background(), ride.ID, persistence,
		WithIntervals(advanceEvery, time.Hour))
	require.NoError(t, err)
	defer tracker.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go tracker.Run(ctx)

	// Live push partway through the first interval restarts the fallback
	// clock, so the simulator must stay quiet for a full interval after it.
	time.Sleep(200 * time.Millisecond)
	tracker.ApplyStatus(models.RideStatusAccepted)

	time.Sleep(400 * time.Millisecond) // past the original tick, before the restarted one
	assert.Equal(t, StageDriverAssigned, tracker.Snapshot().Stage)

	assert.Eventually(t, func() bool {
		return tracker.Snapshot().Stage >= StageDriverArriving
	}, 2*time.Second, 20*time.Millisecond)
}

func TestStopIsIdempotent(t *testing.T) {
	tracker, _ := newTestTracker(t, pendingRide())
	tracker.Stop()
	tracker.Stop()
}
