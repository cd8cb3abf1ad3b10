package models

import (
	"time"

	"github.com/google/uuid"
)

// PlanType is the billing cadence of a subscription bundle
type PlanType string

const (
	PlanTypeDaily   PlanType = "daily"
	PlanTypeWeekly  PlanType = "weekly"
	PlanTypeMonthly PlanType = "monthly"
)

// Valid reports whether the plan type is a supported cadence.
func (p PlanType) Valid() bool {
	return p == PlanTypeDaily || p == PlanTypeWeekly || p == PlanTypeMonthly
}

// Subscription is a prepaid distance bundle for one vehicle type
type Subscription struct {
	ID               uuid.UUID   `json:"id"`
	UserID           uuid.UUID   `json:"user_id"`
	PlanType         PlanType    `json:"plan_type"`
	VehicleType      VehicleType `json:"vehicle_type"`
	DistanceIncluded float64     `json:"distance_included"` // km
	DistanceUsed     float64     `json:"distance_used"`     // km
	StartDate        time.Time   `json:"start_date"`
	EndDate          time.Time   `json:"end_date"`
	IsActive         bool        `json:"is_active"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

// RemainingKm returns the unused portion of the bundle, never negative.
func (s *Subscription) RemainingKm() float64 {
	remaining := s.DistanceIncluded - s.DistanceUsed
	if remaining < 0 {
		return 0
	}
	return remaining
}

// SubscriptionCreate is the payload for purchasing a bundle
type SubscriptionCreate struct {
	UserID           uuid.UUID   `json:"user_id"`
	PlanType         PlanType    `json:"plan_type"`
	VehicleType      VehicleType `json:"vehicle_type"`
	DistanceIncluded float64     `json:"distance_included"`
	StartDate        time.Time   `json:"start_date"`
	EndDate          time.Time   `json:"end_date"`
}
