package lifecycle

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ecoride/ecoride/pkg/common"
	"github.com/ecoride/ecoride/pkg/errors"
	"github.com/ecoride/ecoride/pkg/fare"
	"github.com/ecoride/ecoride/pkg/logger"
	"github.com/ecoride/ecoride/pkg/models"
	"github.com/ecoride/ecoride/pkg/tracing"
)

// Simulation defaults. Until a real telemetry feed arrives the tracker
// stands in with a fixed-rate simulation matching the product behaviour.
const (
	DefaultStageAdvanceInterval = 10 * time.Second
	DefaultAccrualTick          = time.Second
	DefaultDistancePerTickKm    = 0.1
)

// Simulated driver profile used when no real driver event has arrived.
var simulatedDriver = models.Driver{
	Name:         "Rajesh Kumar",
	Rating:       4.8,
	Phone:        "+91 98765 43210",
	VehicleModel: "Tata Nexon EV",
	VehicleColor: "Electric Blue",
	LicensePlate: "KA 01 AB 1234",
}

// Driver approach offsets relative to the pickup point.
const (
	assignedLatOffset = -0.003
	assignedLonOffset = -0.002
	arrivingLatOffset = -0.0005
	arrivingLonOffset = -0.0005
)

// RidePersistence is the slice of the ride backend the tracker needs.
type RidePersistence interface {
	GetRide(ctx context.Context, rideID uuid.UUID) (*models.Ride, error)
	UpdateRideStatus(ctx context.Context, rideID uuid.UUID, status models.RideStatus) (*models.Ride, error)
}

// Snapshot is an immutable view of the tracked ride for the screen layer.
type Snapshot struct {
	Stage          Stage
	Ride           models.Ride
	Driver         *models.Driver
	DriverLocation *models.Coordinate
	UserLocation   models.Coordinate
	ElapsedSeconds int
	ElapsedKm      float64
	LiveFare       int64
	Cancelled      bool
}

// Tracker owns the stage machine of one in-flight ride: transitions,
// driver/user location snapshots, elapsed accrual, and the derived live
// fare. One Tracker per ride view; discard it when the view closes.
type Tracker struct {
	mu sync.Mutex

	ride           *models.Ride
	stage          Stage
	driver         *models.Driver
	driverLocation *models.Coordinate
	userLocation   models.Coordinate
	elapsedSeconds int
	elapsedKm      float64
	cancelled      bool

	persistence RidePersistence
	rates       fare.RateTable

	advanceInterval   time.Duration
	accrualTick       time.Duration
	distancePerTickKm float64

	stopOnce sync.Once
	stopCh   chan struct{}
	kickCh   chan struct{}
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithRates overrides the default fare rate table.
func WithRates(rates fare.RateTable) Option {
	return func(t *Tracker) {
		if len(rates) > 0 {
			t.rates = rates
		}
	}
}

// WithIntervals overrides the fallback-advance and accrual tick periods.
func WithIntervals(advance, accrual time.Duration) Option {
	return func(t *Tracker) {
		if advance > 0 {
			t.advanceInterval = advance
		}
		if accrual > 0 {
			t.accrualTick = accrual
		}
	}
}

// WithDistancePerTick overrides the simulated distance accrued per tick.
func WithDistancePerTick(km float64) Option {
	return func(t *Tracker) {
		if km > 0 {
			t.distancePerTickKm = km
		}
	}
}

// NewTracker loads the ride and constructs its stage machine. Without a
// loadable ride there is no lifecycle: the error is returned and no
// transitions ever happen.
func NewTracker(ctx context.Context, rideID uuid.UUID, persistence RidePersistence, opts ...Option) (*Tracker, error) {
	ctx, span := tracing.StartSpan(ctx, "lifecycle", "NewTracker")
	defer span.End()
	tracing.AddSpanAttributes(ctx, tracing.RideIDKey.String(rideID.String()))

	ride, err := persistence.GetRide(ctx, rideID)
	if err != nil {
		tracing.RecordError(ctx, err)
		return nil, err
	}
	if ride == nil || ride.Status == models.RideStatusCancelled {
		return nil, common.NewNotFoundError("ride is not trackable")
	}

	stage, ok := stageForStatus(ride.Status)
	if !ok {
		return nil, common.NewNotFoundError("ride has an unknown status")
	}

	t := &Tracker{
		ride:              ride,
		stage:             stage,
		userLocation:      ride.Pickup.Coordinate,
		persistence:       persistence,
		rates:             fare.DefaultRates(),
		advanceInterval:   DefaultStageAdvanceInterval,
		accrualTick:       DefaultAccrualTick,
		distancePerTickKm: DefaultDistancePerTickKm,
		stopCh:            make(chan struct{}),
		kickCh:            make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(t)
	}

	logger.InfoContext(ctx, "ride tracking started",
		zap.String("ride_id", ride.ID.String()),
		zap.String("stage", stage.String()),
	)
	return t, nil
}

// Advance moves the ride to the next stage, applying that transition's
// side effects. Production wiring calls this from the fallback timer or
// a push event; tests call it directly. No-op once completed or cancelled.
func (t *Tracker) Advance(ctx context.Context) {
	t.mu.Lock()
	if t.cancelled || t.stage.Terminal() {
		t.mu.Unlock()
		return
	}
	next := t.stage + 1
	t.applyTransitionLocked(next)
	rideID := t.ride.ID
	t.mu.Unlock()

	tracing.AddSpanEvent(ctx, "stage advanced", tracing.RideStageKey.String(next.String()))
	errors.AddRideBreadcrumb(rideID.String(), "stage "+next.String())
	logger.InfoContext(ctx, "ride stage advanced",
		zap.String("ride_id", rideID.String()),
		zap.String("stage", next.String()),
	)

	t.persistStage(ctx, next)

	if next.Terminal() {
		t.Stop()
	}
}

// applyTransitionLocked performs the side effects of entering a stage.
// Caller holds the mutex.
func (t *Tracker) applyTransitionLocked(next Stage) {
	switch next {
	case StageDriverAssigned:
		if t.driver == nil {
			driver := simulatedDriver
			driver.ID = uuid.New()
			driver.VehicleType = t.ride.VehicleType
			t.driver = &driver
		}
		loc := models.Coordinate{
			Latitude:  t.ride.Pickup.Latitude + assignedLatOffset,
			Longitude: t.ride.Pickup.Longitude + assignedLonOffset,
		}
		t.driver.Location = loc
		t.driverLocation = &loc
		if t.ride.DriverID == nil {
			id := t.driver.ID
			t.ride.DriverID = &id
		}

	case StageDriverArriving:
		loc := models.Coordinate{
			Latitude:  t.ride.Pickup.Latitude + arrivingLatOffset,
			Longitude: t.ride.Pickup.Longitude + arrivingLonOffset,
		}
		if t.driver != nil {
			t.driver.Location = loc
		}
		t.driverLocation = &loc

	case StageRideStarted:
		t.elapsedSeconds = 0
		t.elapsedKm = 0

	case StageRideCompleted:
		dest := t.ride.Destination.Coordinate
		t.userLocation = dest
		if t.driver != nil {
			t.driver.Location = dest
		}
		t.driverLocation = &dest
	}

	t.stage = next
}

// persistStage pushes the coarser status change to the backend. The local
// stage machine is authoritative for the screen; a failed write is logged
// and surfaced on the next backend sync rather than retried here.
func (t *Tracker) persistStage(ctx context.Context, stage Stage) {
	status, ok := statusForStage(stage)
	if !ok {
		return
	}

	t.mu.Lock()
	rideID := t.ride.ID
	t.mu.Unlock()

	updated, err := t.persistence.UpdateRideStatus(ctx, rideID, status)
	if err != nil {
		logger.WarnContext(ctx, "ride status update failed",
			zap.String("ride_id", rideID.String()),
			zap.String("status", string(status)),
			zap.Error(err),
		)
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if updated != nil && updated.ID == t.ride.ID {
		// Keep driver assignment discovered locally
		if updated.DriverID == nil {
			updated.DriverID = t.ride.DriverID
		}
		t.ride = updated
	}
}

// ApplyStatus folds a backend status push into the stage machine. Stages
// only move forward: a stale or backward status is ignored. A cancelled
// push tears the lifecycle down.
func (t *Tracker) ApplyStatus(status models.RideStatus) {
	if status == models.RideStatusCancelled {
		t.mu.Lock()
		cancelled := t.stage == StageFindingDriver || t.stage == StageDriverAssigned
		if cancelled {
			t.cancelled = true
			t.ride.Status = models.RideStatusCancelled
		}
		t.mu.Unlock()
		if cancelled {
			t.Stop()
		}
		return
	}

	target, ok := stageForStatus(status)
	if !ok {
		return
	}

	// A live event restarts the fallback clock: the simulator only steps
	// in after a full quiet interval.
	t.kick()

	t.mu.Lock()
	for !t.cancelled && t.stage < target {
		t.applyTransitionLocked(t.stage + 1)
	}
	if t.stage >= target {
		t.ride.Status = status
	}
	terminal := t.stage.Terminal()
	t.mu.Unlock()

	if terminal {
		t.Stop()
	}
}

// kick restarts the fallback-advance clock. Coalesced: at most one
// pending kick.
func (t *Tracker) kick() {
	select {
	case t.kickCh <- struct{}{}:
	default:
	}
}

// Run drives the tracker until completion, cancellation, or ctx teardown:
// a fallback timer advances the stage when no real event arrives within a
// full quiet interval, and a 1 s tick accrues elapsed time and distance
// while the ride is in progress. Run blocks; callers start it on its own
// goroutine.
func (t *Tracker) Run(ctx context.Context) {
	advance := time.NewTicker(t.advanceInterval)
	defer advance.Stop()
	accrue := time.NewTicker(t.accrualTick)
	defer accrue.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.stopCh:
			return
		case <-t.kickCh:
			advance.Reset(t.advanceInterval)
		case <-advance.C:
			t.Advance(ctx)
		case <-accrue.C:
			t.Tick()
		}

		t.mu.Lock()
		done := t.cancelled || t.stage.Terminal()
		t.mu.Unlock()
		if done {
			return
		}
	}
}

// Tick accrues one second of simulated progress. Only the in-progress
// stage accrues; other stages ignore the tick.
func (t *Tracker) Tick() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stage != StageRideStarted || t.cancelled {
		return
	}
	t.elapsedSeconds++
	t.elapsedKm += t.distancePerTickKm
}

// LiveFare returns the accruing fare while the ride is in progress, the
// frozen record fare once completed, and zero before departure.
func (t *Tracker) LiveFare() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.liveFareLocked()
}

func (t *Tracker) liveFareLocked() int64 {
	switch {
	case t.stage == StageRideStarted:
		return fare.Estimate(t.elapsedKm, t.ride.VehicleType, t.rates)
	case t.stage == StageRideCompleted:
		return t.ride.Fare
	default:
		return 0
	}
}

// Cancel aborts the ride while a driver has not yet arrived. The backend
// write must succeed before local state changes; a failed cancel leaves
// the ride exactly as it was.
func (t *Tracker) Cancel(ctx context.Context) error {
	ctx, span := tracing.StartSpan(ctx, "lifecycle", "Cancel")
	defer span.End()

	t.mu.Lock()
	if t.cancelled {
		t.mu.Unlock()
		return nil
	}
	if t.stage != StageFindingDriver && t.stage != StageDriverAssigned {
		t.mu.Unlock()
		return common.NewConflictError("ride can no longer be cancelled")
	}
	rideID := t.ride.ID
	t.mu.Unlock()

	updated, err := t.persistence.UpdateRideStatus(ctx, rideID, models.RideStatusCancelled)
	if err != nil {
		tracing.RecordError(ctx, err)
		return err
	}

	t.mu.Lock()
	t.cancelled = true
	if updated != nil {
		t.ride = updated
	} else {
		t.ride.Status = models.RideStatusCancelled
	}
	t.mu.Unlock()

	errors.AddRideBreadcrumb(rideID.String(), "cancelled by rider")
	logger.InfoContext(ctx, "ride cancelled", zap.String("ride_id", rideID.String()))
	t.Stop()
	return nil
}

// Stop halts the timers. Safe to call any number of times.
func (t *Tracker) Stop() {
	t.stopOnce.Do(func() {
		close(t.stopCh)
	})
}

// Snapshot returns a copy of the current lifecycle state.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	snap := Snapshot{
		Stage:          t.stage,
		Ride:           *t.ride,
		UserLocation:   t.userLocation,
		ElapsedSeconds: t.elapsedSeconds,
		ElapsedKm:      t.elapsedKm,
		LiveFare:       t.liveFareLocked(),
		Cancelled:      t.cancelled,
	}
	if t.driver != nil {
		driver := *t.driver
		snap.Driver = &driver
	}
	if t.driverLocation != nil {
		loc := *t.driverLocation
		snap.DriverLocation = &loc
	}
	return snap
}
