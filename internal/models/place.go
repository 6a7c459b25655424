package models

// Place represents a significant location discovered by clustering or
// defined by the user. The centroid and radius define its detection area;
// visit counters accumulate across the place's lifetime.
type Place struct {
	ID           int64   `json:"id" db:"id"`
	Latitude     float64 `json:"latitude" db:"latitude"`   // centroid
	Longitude    float64 `json:"longitude" db:"longitude"` // centroid
	RadiusMeters float64 `json:"radiusMeters" db:"radius_meters"`

	Category string `json:"category" db:"category"`
	Name     string `json:"name,omitempty" db:"name"`
	Address  string `json:"address,omitempty" db:"address"`

	// Cumulative visit statistics, updated on every visit close
	VisitCount       int64 `json:"visitCount" db:"visit_count"`
	TotalTimeSeconds int64 `json:"totalTimeSeconds" db:"total_time_seconds"`
	LastVisitTime    int64 `json:"lastVisitTime,omitempty" db:"last_visit_time"`

	// Confidence 0.0-1.0; detection never assigns 1.0 without user confirmation
	Confidence float64 `json:"confidence" db:"confidence"`

	CreatedAt int64 `json:"createdAt,omitempty" db:"created_at"`
	UpdatedAt int64 `json:"updatedAt,omitempty" db:"updated_at"`
}

// Place category constants
const (
	CategoryHome       = "HOME"
	CategoryWork       = "WORK"
	CategoryGym        = "GYM"
	CategoryRestaurant = "RESTAURANT"
	CategoryShopping   = "SHOPPING"
	CategoryUnknown    = "UNKNOWN"
	CategoryCustom     = "CUSTOM"
)

// ValidCategory reports whether c is a known place category.
func ValidCategory(c string) bool {
	switch c {
	case CategoryHome, CategoryWork, CategoryGym, CategoryRestaurant,
		CategoryShopping, CategoryUnknown, CategoryCustom:
		return true
	}
	return false
}

// PlaceCandidate is the advisory output of batch detection: a cluster that
// looks like a place, either matching an existing Place or proposing a new one.
type PlaceCandidate struct {
	Place          Place `json:"place"`
	MatchedPlaceID int64 `json:"matchedPlaceId,omitempty"` // 0 = new place
	MemberCount    int   `json:"memberCount"`
	FirstSeen      int64 `json:"firstSeen"`
	LastSeen       int64 `json:"lastSeen"`
	DistinctDays   int   `json:"distinctDays"`
}

// PlaceFilter represents filter parameters for querying places
type PlaceFilter struct {
	Category      string  `form:"category"`
	MinConfidence float64 `form:"minConfidence"`
	MinVisits     int64   `form:"minVisits"`
	Page          int     `form:"page"`
	PageSize      int     `form:"pageSize"`
}
