package models

// CurrentState is the single authoritative record of what is true right now:
// whether tracking runs, which place/visit is active, and today's rollups.
// Conceptually one row with one writer at a time. The place/visit references
// are lookups, not ownership -- they must be validated against the persisted
// history and cleared when the referenced row no longer exists.
type CurrentState struct {
	TrackingActive bool  `json:"trackingActive" db:"tracking_active"`
	TrackingStart  int64 `json:"trackingStart,omitempty" db:"tracking_start"`

	CurrentPlaceID int64 `json:"currentPlaceId,omitempty" db:"current_place_id"` // 0 = none
	CurrentVisitID int64 `json:"currentVisitId,omitempty" db:"current_visit_id"` // 0 = none
	VisitEntryTime int64 `json:"visitEntryTime,omitempty" db:"visit_entry_time"`

	// Daily rollups, reset when StatsDay rolls over
	TodayLocationCount int64  `json:"todayLocationCount" db:"today_location_count"`
	TodayPlaceCount    int64  `json:"todayPlaceCount" db:"today_place_count"`
	TodayTimeSeconds   int64  `json:"todayTimeSeconds" db:"today_time_seconds"`
	StatsDay           string `json:"statsDay,omitempty" db:"stats_day"` // YYYY-MM-DD

	LastUpdated int64 `json:"lastUpdated" db:"last_updated"`
}

// HasActiveVisit reports whether the state points at an open visit.
func (s CurrentState) HasActiveVisit() bool {
	return s.CurrentVisitID != 0
}
