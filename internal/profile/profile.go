package profile

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ecoride/ecoride/pkg/common"
	"github.com/ecoride/ecoride/pkg/logger"
	"github.com/ecoride/ecoride/pkg/models"
	"github.com/ecoride/ecoride/pkg/tracing"
	"github.com/ecoride/ecoride/pkg/validation"
)

// Backend owns the user profile record.
type Backend interface {
	GetProfile(ctx context.Context, userID uuid.UUID) (*models.User, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, update *models.ProfileUpdate) (*models.User, error)
}

// Service is a thin validated pass-through to the profile backend.
type Service struct {
	backend Backend
}

// NewService creates the profile service.
func NewService(backend Backend) *Service {
	return &Service{backend: backend}
}

// Get loads the rider's profile.
func (s *Service) Get(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	ctx, span := tracing.StartSpan(ctx, "profile", "Get")
	defer span.End()

	user, err := s.backend.GetProfile(ctx, userID)
	if err != nil {
		tracing.RecordError(ctx, err)
		return nil, err
	}
	if user == nil {
		return nil, common.NewNotFoundError("profile not found")
	}
	return user, nil
}

// Update applies the non-nil fields. An update carrying nothing is a
// validation error, not a backend round trip.
func (s *Service) Update(ctx context.Context, userID uuid.UUID, update *models.ProfileUpdate) (*models.User, error) {
	ctx, span := tracing.StartSpan(ctx, "profile", "Update")
	defer span.End()

	if update == nil || (update.FullName == nil && update.PhoneNumber == nil && update.AvatarURL == nil) {
		return nil, common.NewValidationError("nothing to update")
	}
	if update.FullName != nil && strings.TrimSpace(*update.FullName) == "" {
		return nil, common.NewValidationError("name cannot be empty")
	}
	if update.PhoneNumber != nil {
		if err := validation.ValidatePhone(*update.PhoneNumber, 10); err != nil {
			return nil, err
		}
	}

	user, err := s.backend.UpdateProfile(ctx, userID, update)
	if err != nil {
		tracing.RecordError(ctx, err)
		return nil, err
	}

	logger.InfoContext(ctx, "profile updated", zap.String("user_id", userID.String()))
	return user, nil
}
