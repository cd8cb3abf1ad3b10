package subscription

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ecoride/ecoride/pkg/common"
	"github.com/ecoride/ecoride/pkg/logger"
	"github.com/ecoride/ecoride/pkg/models"
	"github.com/ecoride/ecoride/pkg/tracing"
)

// Plan is a purchasable distance bundle.
type Plan struct {
	Name        string             `json:"name"`
	PlanType    models.PlanType    `json:"plan_type"`
	VehicleType models.VehicleType `json:"vehicle_type"`
	Price       int64              `json:"price"`
	IncludedKm  float64            `json:"included_km"`
	Popular     bool               `json:"popular"`
}

// Catalog returns the fixed plan lineup.
func Catalog() []Plan {
	return []Plan{
		{Name: "Eco Bike Daily", PlanType: models.PlanTypeDaily, VehicleType: models.VehicleTypeBike, Price: 49, IncludedKm: 10},
		{Name: "Eco Bike Weekly", PlanType: models.PlanTypeWeekly, VehicleType: models.VehicleTypeBike, Price: 249, IncludedKm: 50, Popular: true},
		{Name: "Eco Bike Monthly", PlanType: models.PlanTypeMonthly, VehicleType: models.VehicleTypeBike, Price: 499, IncludedKm: 100},
		{Name: "Eco Car Daily", PlanType: models.PlanTypeDaily, VehicleType: models.VehicleTypeCar, Price: 149, IncludedKm: 20},
		{Name: "Eco Car Weekly", PlanType: models.PlanTypeWeekly, VehicleType: models.VehicleTypeCar, Price: 749, IncludedKm: 70, Popular: true},
		{Name: "Eco Car Monthly", PlanType: models.PlanTypeMonthly, VehicleType: models.VehicleTypeCar, Price: 1499, IncludedKm: 100},
	}
}

// FindPlan looks up a catalog plan by cadence and vehicle type.
func FindPlan(planType models.PlanType, vt models.VehicleType) (Plan, bool) {
	for _, plan := range Catalog() {
		if plan.PlanType == planType && plan.VehicleType == vt {
			return plan, true
		}
	}
	return Plan{}, false
}

// Backend owns subscription records.
type Backend interface {
	CurrentSubscription(ctx context.Context, userID uuid.UUID) (*models.Subscription, error)
	CreateSubscription(ctx context.Context, req *models.SubscriptionCreate) (*models.Subscription, error)
	UpdateUsage(ctx context.Context, subscriptionID uuid.UUID, distanceUsed float64) (*models.Subscription, error)
}

// Service manages the rider's prepaid distance bundle.
type Service struct {
	backend Backend
	now     func() time.Time
}

// NewService creates the subscription service.
func NewService(backend Backend) *Service {
	return &Service{backend: backend, now: time.Now}
}

// WithClock injects a time source for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// CurrentPlan returns the active subscription or nil; an expired or
// inactive record reads as no subscription.
func (s *Service) CurrentPlan(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	ctx, span := tracing.StartSpan(ctx, "subscription", "CurrentPlan")
	defer span.End()

	sub, err := s.backend.CurrentSubscription(ctx, userID)
	if err != nil {
		tracing.RecordError(ctx, err)
		return nil, err
	}
	if sub == nil || !sub.IsActive || s.now().After(sub.EndDate) {
		return nil, nil
	}
	return sub, nil
}

// Subscribe purchases a catalog plan for the rider. The bundle window is
// derived from the cadence, starting now.
func (s *Service) Subscribe(ctx context.Context, userID uuid.UUID, planType models.PlanType, vt models.VehicleType) (*models.Subscription, error) {
	ctx, span := tracing.StartSpan(ctx, "subscription", "Subscribe")
	defer span.End()

	if !planType.Valid() {
		return nil, common.NewValidationError("unsupported plan type")
	}
	if !vt.Valid() {
		return nil, common.NewValidationError("unsupported vehicle type")
	}

	plan, ok := FindPlan(planType, vt)
	if !ok {
		return nil, common.NewNotFoundError("no such plan")
	}

	existing, err := s.CurrentPlan(ctx, userID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, common.NewConflictError("an active subscription already exists")
	}

	start := s.now()
	req := &models.SubscriptionCreate{
		UserID:           userID,
		PlanType:         planType,
		VehicleType:      vt,
		DistanceIncluded: plan.IncludedKm,
		StartDate:        start,
		EndDate:          start.Add(planDuration(planType)),
	}

	sub, err := s.backend.CreateSubscription(ctx, req)
	if err != nil {
		tracing.RecordError(ctx, err)
		return nil, err
	}

	logger.InfoContext(ctx, "subscription created",
		zap.String("plan", plan.Name),
		zap.String("user_id", userID.String()),
	)
	return sub, nil
}

// RecordUsage adds a completed ride's distance to the bundle, capped at
// the included allowance.
func (s *Service) RecordUsage(ctx context.Context, sub *models.Subscription, distanceKm float64) (*models.Subscription, error) {
	ctx, span := tracing.StartSpan(ctx, "subscription", "RecordUsage")
	defer span.End()

	if sub == nil {
		return nil, common.NewNotFoundError("no active subscription")
	}
	if distanceKm < 0 {
		return nil, common.NewValidationError("distance cannot be negative")
	}

	used := sub.DistanceUsed + distanceKm
	if used > sub.DistanceIncluded {
		used = sub.DistanceIncluded
	}

	updated, err := s.backend.UpdateUsage(ctx, sub.ID, used)
	if err != nil {
		tracing.RecordError(ctx, err)
		return nil, err
	}
	return updated, nil
}

func planDuration(planType models.PlanType) time.Duration {
	switch planType {
	case models.PlanTypeDaily:
		return 24 * time.Hour
	case models.PlanTypeWeekly:
		return 7 * 24 * time.Hour
	default:
		return 30 * 24 * time.Hour
	}
}
