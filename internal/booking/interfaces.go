package booking

import (
	"context"

	"github.com/google/uuid"

	"github.com/ecoride/ecoride/pkg/models"
)

// DriverLookup finds available drivers near a pickup point.
type DriverLookup interface {
	NearbyDrivers(ctx context.Context, center models.Coordinate, radiusM float64, vt models.VehicleType) ([]models.Driver, error)
}

// RidePersistence owns ride records on the backend. The idempotency key
// identifies one booking attempt: resubmissions of the same attempt
// carry the same key so the backend can dedupe them.
type RidePersistence interface {
	CreateRide(ctx context.Context, req *models.RideCreate, idempotencyKey string) (*models.Ride, error)
	GetRide(ctx context.Context, rideID uuid.UUID) (*models.Ride, error)
	UpdateRideStatus(ctx context.Context, rideID uuid.UUID, status models.RideStatus) (*models.Ride, error)
}
