package booking

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ecoride/ecoride/pkg/common"
	"github.com/ecoride/ecoride/pkg/fare"
	"github.com/ecoride/ecoride/pkg/geo"
	"github.com/ecoride/ecoride/pkg/logger"
	"github.com/ecoride/ecoride/pkg/models"
	"github.com/ecoride/ecoride/pkg/tracing"
	"github.com/ecoride/ecoride/pkg/validation"
)

// DefaultSearchRadiusM is the nearby-driver search radius.
const DefaultSearchRadiusM = 5000.0

// Snapshot is an immutable view of the booking state for the screen layer.
type Snapshot struct {
	Pickup        *models.Location
	Destination   *models.Location
	VehicleType   models.VehicleType
	NearbyDrivers []models.Driver
	EstimatedFare *int64
	Busy          bool
	LastError     string
	CurrentRide   *models.Ride
}

// Booking holds everything the ride-request flow needs between screens:
// endpoint selection, the driver list, the fare estimate, and the ride
// submitted at the end. One Booking belongs to one rider session.
type Booking struct {
	mu sync.Mutex

	userID      uuid.UUID
	pickup      *models.Location
	destination *models.Location
	vehicleType models.VehicleType
	drivers     []models.Driver
	estimate    *int64
	busy        bool
	inFlight    bool
	lastError   string
	currentRide *models.Ride
	attemptKey  string
	closed      bool

	lookup      DriverLookup
	rides       RidePersistence
	rates       fare.RateTable
	radiusM     float64
}

// Option configures a Booking.
type Option func(*Booking)

// WithSearchRadius overrides the default nearby-driver radius in meters.
func WithSearchRadius(radiusM float64) Option {
	return func(b *Booking) {
		if radiusM > 0 {
			b.radiusM = radiusM
		}
	}
}

// WithRates overrides the default fare rate table.
func WithRates(rates fare.RateTable) Option {
	return func(b *Booking) {
		if len(rates) > 0 {
			b.rates = rates
		}
	}
}

// New creates the booking state for one rider.
func New(userID uuid.UUID, lookup DriverLookup, rides RidePersistence, opts ...Option) *Booking {
	b := &Booking{
		userID:      userID,
		vehicleType: models.VehicleTypeCar,
		lookup:      lookup,
		rides:       rides,
		rates:       fare.DefaultRates(),
		radiusM:     DefaultSearchRadiusM,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// SetPickup records the pickup location. No I/O.
func (b *Booking) SetPickup(loc models.Location) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pickup = &loc
}

// PositionProvider yields the device's current position.
type PositionProvider interface {
	CurrentPosition(ctx context.Context) (models.Coordinate, error)
}

// UsePickupFromDevice sets the pickup from the device position. The
// address comes from whatever geocoder the screen layer uses.
func (b *Booking) UsePickupFromDevice(ctx context.Context, provider PositionProvider, address string) error {
	position, err := provider.CurrentPosition(ctx)
	if err != nil {
		b.mu.Lock()
		b.lastError = err.Error()
		b.mu.Unlock()
		return err
	}

	b.SetPickup(models.Location{Coordinate: position, Address: address})
	return nil
}

// SetDestination records the destination location. No I/O.
func (b *Booking) SetDestination(loc models.Location) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.destination = &loc
}

// SetVehicleType selects the vehicle class for estimates and booking.
func (b *Booking) SetVehicleType(vt models.VehicleType) error {
	if !vt.Valid() {
		return common.NewValidationError("unsupported vehicle type")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.vehicleType = vt
	return nil
}

// FetchNearbyDrivers refreshes the driver list around the pickup point.
// Without a pickup it is a no-op. On failure the previous list survives
// so the map does not blank out on a flaky connection.
func (b *Booking) FetchNearbyDrivers(ctx context.Context) error {
	ctx, span := tracing.StartSpan(ctx, "booking", "FetchNearbyDrivers")
	defer span.End()

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return common.NewConflictError("booking state is closed")
	}
	if b.pickup == nil {
		b.mu.Unlock()
		return nil
	}
	center := b.pickup.Coordinate
	vt := b.vehicleType
	b.busy = true
	b.mu.Unlock()

	tracing.AddSpanAttributes(ctx, tracing.LocationAttributes(center.Latitude, center.Longitude)...)
	tracing.AddSpanAttributes(ctx, tracing.VehicleTypeKey.String(string(vt)))

	drivers, err := b.lookup.NearbyDrivers(ctx, center, b.radiusM, vt)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.busy = false
	if b.closed || ctx.Err() != nil {
		return nil
	}
	if err != nil {
		tracing.RecordError(ctx, err)
		logger.WarnContext(ctx, "nearby driver lookup failed", zap.Error(err))
		b.lastError = err.Error()
		return err
	}

	b.drivers = drivers
	b.lastError = ""
	logger.InfoContext(ctx, "nearby drivers refreshed", zap.Int("count", len(drivers)))
	return nil
}

// EstimateFare computes the fare for the selected endpoints. Local
// computation only; no-op unless both endpoints are set.
func (b *Booking) EstimateFare(ctx context.Context) error {
	_, span := tracing.StartSpan(ctx, "booking", "EstimateFare")
	defer span.End()

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return common.NewConflictError("booking state is closed")
	}
	if b.pickup == nil || b.destination == nil {
		return nil
	}

	b.busy = true
	defer func() { b.busy = false }()

	if err := validation.ValidateCoordinate(b.pickup.Latitude, b.pickup.Longitude); err != nil {
		b.lastError = err.Error()
		return err
	}
	if err := validation.ValidateCoordinate(b.destination.Latitude, b.destination.Longitude); err != nil {
		b.lastError = err.Error()
		return err
	}

	distance := geo.DistanceKm(b.pickup.Coordinate, b.destination.Coordinate)
	estimate := fare.Estimate(distance, b.vehicleType, b.rates)
	b.estimate = &estimate
	b.lastError = ""
	return nil
}

// BookRide submits a pending ride for the selected endpoints. The distance
// is recomputed at submission time so a stale estimate can never leak into
// the persisted record. Only one booking can be in flight, and booking is
// rejected while a non-terminal ride exists.
func (b *Booking) BookRide(ctx context.Context) (*models.Ride, error) {
	ctx, span := tracing.StartSpan(ctx, "booking", "BookRide")
	defer span.End()

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, common.NewConflictError("booking state is closed")
	}
	if b.pickup == nil || b.destination == nil {
		b.mu.Unlock()
		return nil, common.NewValidationError("pickup and destination are required")
	}
	if b.estimate == nil {
		b.mu.Unlock()
		return nil, common.NewValidationError("fare estimate is required before booking")
	}
	if b.currentRide != nil && !b.currentRide.Status.IsTerminal() {
		b.mu.Unlock()
		return nil, common.NewConflictError("a ride is already in progress")
	}
	if b.inFlight {
		b.mu.Unlock()
		return nil, common.NewConflictError("a booking is already in flight")
	}
	b.inFlight = true
	b.busy = true

	// One key per booking attempt: a resubmission after a failed create
	// reuses it, a fresh booking after success gets a new one.
	if b.attemptKey == "" {
		b.attemptKey = uuid.NewString()
	}
	attemptKey := b.attemptKey

	req := &models.RideCreate{
		UserID:      b.userID,
		Pickup:      *b.pickup,
		Destination: *b.destination,
		VehicleType: b.vehicleType,
		Status:      models.RideStatusPending,
	}
	req.DistanceKm = geo.DistanceKm(b.pickup.Coordinate, b.destination.Coordinate)
	req.Fare = fare.Estimate(req.DistanceKm, b.vehicleType, b.rates)
	b.mu.Unlock()

	tracing.AddSpanAttributes(ctx,
		tracing.UserIDKey.String(b.userID.String()),
		tracing.VehicleTypeKey.String(string(req.VehicleType)),
		tracing.DistanceKmKey.Float64(req.DistanceKm),
		tracing.FareAmountKey.Int64(req.Fare),
	)

	ride, err := b.rides.CreateRide(ctx, req, attemptKey)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.busy = false
	b.inFlight = false
	if b.closed {
		return nil, common.NewConflictError("booking state is closed")
	}
	if err != nil {
		tracing.RecordError(ctx, err)
		logger.ErrorContext(ctx, "ride booking failed", zap.Error(err))
		b.lastError = err.Error()
		return nil, err
	}

	b.currentRide = ride
	b.attemptKey = ""
	b.lastError = ""

	driverID := ""
	if ride.DriverID != nil {
		driverID = ride.DriverID.String()
	}
	tracing.AddSpanAttributes(ctx, tracing.RideAttributes(ride.ID.String(), ride.UserID.String(), driverID)...)
	logger.InfoContext(ctx, "ride booked",
		zap.String("ride_id", ride.ID.String()),
		zap.Int64("fare", ride.Fare),
	)
	return ride, nil
}

// CancelRide cancels the current ride while it is still cancellable
// (pending or accepted, i.e. before the driver starts the trip).
func (b *Booking) CancelRide(ctx context.Context) error {
	ctx, span := tracing.StartSpan(ctx, "booking", "CancelRide")
	defer span.End()

	b.mu.Lock()
	if b.currentRide == nil {
		b.mu.Unlock()
		return common.NewNotFoundError("no current ride to cancel")
	}
	status := b.currentRide.Status
	if status != models.RideStatusPending && status != models.RideStatusAccepted {
		b.mu.Unlock()
		return common.NewConflictError("ride can no longer be cancelled")
	}
	rideID := b.currentRide.ID
	b.busy = true
	b.mu.Unlock()

	updated, err := b.rides.UpdateRideStatus(ctx, rideID, models.RideStatusCancelled)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.busy = false
	if err != nil {
		tracing.RecordError(ctx, err)
		b.lastError = err.Error()
		return err
	}
	if b.currentRide != nil && b.currentRide.ID == rideID {
		b.currentRide = updated
	}
	b.lastError = ""
	logger.InfoContext(ctx, "ride cancelled", zap.String("ride_id", rideID.String()))
	return nil
}

// ApplyRide replaces the current ride with a fresher backend copy, e.g.
// from a lifecycle status push. Nil and foreign rides are ignored.
func (b *Booking) ApplyRide(ride *models.Ride) {
	if ride == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.currentRide != nil && b.currentRide.ID != ride.ID {
		return
	}
	b.currentRide = ride
}

// ClearRide resets selection, estimate, error, and the current ride.
// Safe to call repeatedly.
func (b *Booking) ClearRide() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pickup = nil
	b.destination = nil
	b.estimate = nil
	b.lastError = ""
	b.currentRide = nil
	b.attemptKey = ""
}

// Close tears the state down; late remote responses are discarded.
func (b *Booking) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.busy = false
}

// Snapshot returns a copy of the current state.
func (b *Booking) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	snap := Snapshot{
		VehicleType: b.vehicleType,
		Busy:        b.busy,
		LastError:   b.lastError,
	}
	if b.pickup != nil {
		pickup := *b.pickup
		snap.Pickup = &pickup
	}
	if b.destination != nil {
		dest := *b.destination
		snap.Destination = &dest
	}
	if b.estimate != nil {
		estimate := *b.estimate
		snap.EstimatedFare = &estimate
	}
	if len(b.drivers) > 0 {
		snap.NearbyDrivers = make([]models.Driver, len(b.drivers))
		copy(snap.NearbyDrivers, b.drivers)
	}
	if b.currentRide != nil {
		ride := *b.currentRide
		snap.CurrentRide = &ride
	}
	return snap
}
