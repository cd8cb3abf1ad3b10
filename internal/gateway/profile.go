package gateway

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/ecoride/ecoride/pkg/common"
	"github.com/ecoride/ecoride/pkg/models"
)

// GetProfile fetches the rider's profile.
func (g *Gateway) GetProfile(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	var user models.User
	path := fmt.Sprintf("/v1/users/%s", userID)
	if err := g.getJSON(ctx, path, "get profile", &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateProfile applies a partial profile update. Single shot.
func (g *Gateway) UpdateProfile(ctx context.Context, userID uuid.UUID, update *models.ProfileUpdate) (*models.User, error) {
	if update == nil {
		return nil, common.NewValidationError("profile update is required")
	}

	var user models.User
	path := fmt.Sprintf("/v1/users/%s", userID)
	if err := g.patchJSON(ctx, path, "update profile", update, &user); err != nil {
		return nil, err
	}
	return &user, nil
}
