package gateway

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/ecoride/ecoride/pkg/common"
	"github.com/ecoride/ecoride/pkg/models"
	"github.com/ecoride/ecoride/pkg/tracing"
)

// CreateRide submits a new ride request. The call is never retried; the
// caller's per-attempt idempotency key lets the backend dedupe a
// resubmitted attempt (a fresh key is generated when none is supplied).
func (g *Gateway) CreateRide(ctx context.Context, req *models.RideCreate, idempotencyKey string) (*models.Ride, error) {
	if req == nil {
		return nil, common.NewValidationError("ride request is required")
	}

	var payload []byte
	err := tracing.TraceBackendCall(ctx, "gateway", "backend", "create ride", func(ctx context.Context) error {
		respBody, err := g.client.PostWithIdempotency(ctx, "/v1/rides", req, g.headers(), idempotencyKey)
		if err != nil {
			return err
		}
		payload = respBody
		return nil
	})
	if err != nil {
		return nil, mapError(err, "create ride")
	}

	var ride models.Ride
	if err := decode(payload, "create ride", &ride); err != nil {
		return nil, err
	}
	return &ride, nil
}

// GetRide fetches a single ride by ID.
func (g *Gateway) GetRide(ctx context.Context, rideID uuid.UUID) (*models.Ride, error) {
	var ride models.Ride
	path := fmt.Sprintf("/v1/rides/%s", rideID)
	if err := g.getJSON(ctx, path, "get ride", &ride); err != nil {
		return nil, err
	}
	return &ride, nil
}

// UpdateRideStatus writes a status transition. Single shot: a stale or
// conflicting transition comes back as a Conflict for the caller to handle.
func (g *Gateway) UpdateRideStatus(ctx context.Context, rideID uuid.UUID, status models.RideStatus) (*models.Ride, error) {
	var ride models.Ride
	path := fmt.Sprintf("/v1/rides/%s/status", rideID)
	body := map[string]models.RideStatus{"status": status}
	if err := g.patchJSON(ctx, path, "update ride status", body, &ride); err != nil {
		return nil, err
	}
	return &ride, nil
}

// ListRides returns the rider's ride history, newest first.
func (g *Gateway) ListRides(ctx context.Context, userID uuid.UUID) ([]models.Ride, error) {
	var rides []models.Ride
	path := fmt.Sprintf("/v1/users/%s/rides", userID)
	if err := g.getJSON(ctx, path, "list rides", &rides); err != nil {
		return nil, err
	}
	return rides, nil
}

// CurrentRide returns the rider's active ride, or nil when there is none.
func (g *Gateway) CurrentRide(ctx context.Context, userID uuid.UUID) (*models.Ride, error) {
	var ride models.Ride
	path := fmt.Sprintf("/v1/users/%s/rides/current", userID)
	if err := g.getJSON(ctx, path, "current ride", &ride); err != nil {
		if kind, ok := common.KindOf(err); ok && kind == common.KindNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &ride, nil
}
