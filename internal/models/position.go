package models

import "fmt"

// Position represents a single accepted GPS fix. Positions are immutable
// once stored and form the raw history that place detection runs over.
type Position struct {
	ID        int64   `json:"id" db:"id"`
	Latitude  float64 `json:"latitude" db:"latitude"`
	Longitude float64 `json:"longitude" db:"longitude"`
	Timestamp int64   `json:"timestamp" db:"timestamp"` // Unix timestamp in seconds
	Accuracy  float64 `json:"accuracy" db:"accuracy"`   // Horizontal accuracy in meters

	// Optional sensor extras, zero when the fix did not carry them
	Speed    float64 `json:"speed,omitempty" db:"speed"`       // m/s
	Altitude float64 `json:"altitude,omitempty" db:"altitude"` // meters
	Bearing  float64 `json:"bearing,omitempty" db:"bearing"`   // degrees 0-360

	// Activity label inferred upstream (e.g. "still", "walking", "in_vehicle")
	Activity string `json:"activity,omitempty" db:"activity"`

	CreatedAt int64 `json:"createdAt,omitempty" db:"created_at"`
}

// Validate checks the fix for malformed or out-of-range values.
// Input-quality problems are rejected here and never reach state logic.
func (p Position) Validate() error {
	if p.Latitude < -90 || p.Latitude > 90 {
		return fmt.Errorf("latitude out of range: %f", p.Latitude)
	}
	if p.Longitude < -180 || p.Longitude > 180 {
		return fmt.Errorf("longitude out of range: %f", p.Longitude)
	}
	if p.Timestamp <= 0 {
		return fmt.Errorf("invalid timestamp: %d", p.Timestamp)
	}
	if p.Accuracy < 0 {
		return fmt.Errorf("negative accuracy: %f", p.Accuracy)
	}
	return nil
}

// TrackingMode describes whether the device has been moving recently.
// Stationary mode relaxes filter thresholds to absorb GPS drift.
type TrackingMode string

const (
	ModeActive     TrackingMode = "ACTIVE"
	ModeStationary TrackingMode = "STATIONARY"
)

// PositionFilter represents filter parameters for querying positions
type PositionFilter struct {
	StartTime int64 `form:"startTime"` // Unix timestamp
	EndTime   int64 `form:"endTime"`   // Unix timestamp
	Page      int   `form:"page"`
	PageSize  int   `form:"pageSize"`
}
