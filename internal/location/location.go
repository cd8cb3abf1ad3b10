// Package location defines the device location contract the booking flow
// consumes. The real provider lives in the host app (platform location
// services); this package ships a fixed provider for demos and tests.
package location

import (
	"context"

	"github.com/ecoride/ecoride/pkg/common"
	"github.com/ecoride/ecoride/pkg/models"
)

// Provider yields the device's current position. Implementations report
// a denied permission as KindPermissionDenied and a failed fix as
// KindPositionUnavailable so callers can distinguish "ask the user" from
// "try again".
type Provider interface {
	CurrentPosition(ctx context.Context) (models.Coordinate, error)
}

// StaticProvider always reports a fixed position.
type StaticProvider struct {
	Position models.Coordinate
}

// CurrentPosition implements Provider.
func (s StaticProvider) CurrentPosition(ctx context.Context) (models.Coordinate, error) {
	if err := ctx.Err(); err != nil {
		return models.Coordinate{}, err
	}
	return s.Position, nil
}

// DeniedProvider models a user who rejected the location permission.
type DeniedProvider struct{}

// CurrentPosition implements Provider.
func (DeniedProvider) CurrentPosition(ctx context.Context) (models.Coordinate, error) {
	return models.Coordinate{}, common.NewPermissionDeniedError("location permission denied")
}
