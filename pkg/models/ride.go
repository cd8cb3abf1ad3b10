package models

import (
	"time"

	"github.com/google/uuid"
)

// RideStatus represents the persisted status of a ride
type RideStatus string

const (
	RideStatusPending    RideStatus = "pending"
	RideStatusAccepted   RideStatus = "accepted"
	RideStatusInProgress RideStatus = "in_progress"
	RideStatusCompleted  RideStatus = "completed"
	RideStatusCancelled  RideStatus = "cancelled"
)

// IsTerminal reports whether the status can never change again.
func (s RideStatus) IsTerminal() bool {
	return s == RideStatusCompleted || s == RideStatusCancelled
}

// VehicleType selects the rate table and the nearby-driver filter
type VehicleType string

const (
	VehicleTypeCar  VehicleType = "car"
	VehicleTypeBike VehicleType = "bike"
)

// Valid reports whether the vehicle type is one the platform supports.
func (v VehicleType) Valid() bool {
	return v == VehicleTypeCar || v == VehicleTypeBike
}

// Coordinate is an immutable latitude/longitude pair
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Location is a coordinate plus the human-readable address the search UI produced
type Location struct {
	Coordinate
	Address string `json:"address"`
}

// Ride represents a ride record owned by the backend
type Ride struct {
	ID          uuid.UUID   `json:"id"`
	UserID      uuid.UUID   `json:"user_id"`
	DriverID    *uuid.UUID  `json:"driver_id,omitempty"`
	Pickup      Location    `json:"pickup_location"`
	Destination Location    `json:"destination_location"`
	VehicleType VehicleType `json:"vehicle_type"`
	Status      RideStatus  `json:"status"`
	DistanceKm  float64     `json:"distance"`
	Fare        int64       `json:"fare"`
	DurationMin int         `json:"duration,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// RideCreate is the payload for creating a ride; the backend assigns the ID
type RideCreate struct {
	UserID      uuid.UUID   `json:"user_id"`
	Pickup      Location    `json:"pickup_location"`
	Destination Location    `json:"destination_location"`
	VehicleType VehicleType `json:"vehicle_type"`
	Status      RideStatus  `json:"status"`
	DistanceKm  float64     `json:"distance"`
	Fare        int64       `json:"fare"`
}
