package models

import (
	"time"

	"github.com/google/uuid"
)

// Driver is a read-only snapshot of a driver as the backend reports it.
// The rider core never mutates driver records.
type Driver struct {
	ID           uuid.UUID   `json:"id"`
	Name         string      `json:"name"`
	Phone        string      `json:"phone"`
	Rating       float64     `json:"rating"` // 0..5
	VehicleType  VehicleType `json:"vehicle_type"`
	VehicleModel string      `json:"vehicle_model"`
	VehicleColor string      `json:"vehicle_color"`
	LicensePlate string      `json:"license_plate"`
	Location     Coordinate  `json:"current_location"`
	TotalRides   int         `json:"total_rides"`
	UpdatedAt    time.Time   `json:"updated_at"`
}
