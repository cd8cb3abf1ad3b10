package history

import (
	"context"
	"math"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ecoride/ecoride/pkg/logger"
	"github.com/ecoride/ecoride/pkg/models"
	"github.com/ecoride/ecoride/pkg/tracing"
)

// CO2SavedPerKm is the emission saving of an EV trip versus a petrol car.
const CO2SavedPerKm = 0.12

// kg of CO2 a tree absorbs per year, for the "trees planted" equivalence.
const co2PerTreeKg = 21.0

// RideReader lists a rider's rides from the backend.
type RideReader interface {
	ListRides(ctx context.Context, userID uuid.UUID) ([]models.Ride, error)
	CurrentRide(ctx context.Context, userID uuid.UUID) (*models.Ride, error)
}

// EcoStats aggregates the rider's completed trips into the eco-impact
// figures. Currency stays integral; CO2 keeps two decimals for display.
type EcoStats struct {
	TotalRides      int     `json:"total_rides"`
	TotalDistanceKm float64 `json:"total_distance_km"`
	TotalSpend      int64   `json:"total_spend"`
	CO2SavedKg      float64 `json:"co2_saved_kg"`
	TreesEquivalent float64 `json:"trees_equivalent"`
}

// Service reads ride history and derives eco impact.
type Service struct {
	reader RideReader
}

// NewService creates the history service.
func NewService(reader RideReader) *Service {
	return &Service{reader: reader}
}

// List returns the rider's rides, newest first. Ordering comes from the
// backend; the client does not re-sort.
func (s *Service) List(ctx context.Context, userID uuid.UUID) ([]models.Ride, error) {
	ctx, span := tracing.StartSpan(ctx, "history", "List")
	defer span.End()
	tracing.AddSpanAttributes(ctx, tracing.UserIDKey.String(userID.String()))

	rides, err := s.reader.ListRides(ctx, userID)
	if err != nil {
		tracing.RecordError(ctx, err)
		return nil, err
	}

	logger.InfoContext(ctx, "ride history loaded", zap.Int("count", len(rides)))
	return rides, nil
}

// Current returns the single non-terminal ride, or nil when the rider has
// none. Having no active ride is the normal case, not an error.
func (s *Service) Current(ctx context.Context, userID uuid.UUID) (*models.Ride, error) {
	ctx, span := tracing.StartSpan(ctx, "history", "Current")
	defer span.End()

	ride, err := s.reader.CurrentRide(ctx, userID)
	if err != nil {
		tracing.RecordError(ctx, err)
		return nil, err
	}
	if ride != nil && ride.Status.IsTerminal() {
		return nil, nil
	}
	return ride, nil
}

// Stats derives the eco-impact aggregate from a ride list. Only completed
// rides count: a cancelled ride saved nothing and cost nothing.
func Stats(rides []models.Ride) EcoStats {
	var stats EcoStats
	for _, ride := range rides {
		if ride.Status != models.RideStatusCompleted {
			continue
		}
		stats.TotalRides++
		stats.TotalDistanceKm += ride.DistanceKm
		stats.TotalSpend += ride.Fare
	}

	stats.CO2SavedKg = round2(stats.TotalDistanceKm * CO2SavedPerKm)
	stats.TreesEquivalent = round1(stats.CO2SavedKg / co2PerTreeKg)
	return stats
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
