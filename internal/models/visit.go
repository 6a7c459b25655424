package models

// Visit represents a time-bounded stay at a Place. ExitTime zero means the
// visit is still open; at most one visit may be open at any instant. The
// zero ExitTime is the persistence-boundary encoding of the open state --
// in-memory code should go through Active/LiveDuration instead of reading
// ExitTime directly.
type Visit struct {
	ID              int64   `json:"id" db:"id"`
	PlaceID         int64   `json:"placeId" db:"place_id"`
	EntryTime       int64   `json:"entryTime" db:"entry_time"`
	ExitTime        int64   `json:"exitTime,omitempty" db:"exit_time"` // 0 = active
	DurationSeconds int64   `json:"durationSeconds" db:"duration_seconds"`
	Confidence      float64 `json:"confidence" db:"confidence"`
	CreatedAt       int64   `json:"createdAt,omitempty" db:"created_at"`
}

// Active reports whether the visit is still open.
func (v Visit) Active() bool {
	return v.ExitTime == 0
}

// LiveDuration returns the stored duration for completed visits, or the
// elapsed time since entry for an active visit.
func (v Visit) LiveDuration(now int64) int64 {
	if v.Active() {
		d := now - v.EntryTime
		if d < 0 {
			return 0
		}
		return d
	}
	return v.DurationSeconds
}

// VisitFilter represents filter parameters for querying visits
type VisitFilter struct {
	PlaceID   int64 `form:"placeId"`
	StartTime int64 `form:"startTime"`
	EndTime   int64 `form:"endTime"`
	Page      int   `form:"page"`
	PageSize  int   `form:"pageSize"`
}
