package models

// Validation severity constants
const (
	SeverityInfo     = "INFO"
	SeverityWarning  = "WARNING"
	SeverityCritical = "CRITICAL"
)

// Validation error codes
const (
	CodeStateMissing    = "STATE_MISSING"
	CodeDanglingPlace   = "DANGLING_PLACE_REF"
	CodeDanglingVisit   = "DANGLING_VISIT_REF"
	CodeMultipleOpen    = "MULTIPLE_OPEN_VISITS"
	CodeStuckVisit      = "STUCK_VISIT"
	CodeStaleVisitRef   = "STALE_VISIT_REF"
	CodeOrphanVisit     = "ORPHAN_OPEN_VISIT"
	CodeDataLoss        = "DATA_LOSS"
	CodeTimeCalculation = "TIME_CALCULATION"
)

// ValidationError describes a single failed check, with enough structure
// for a caller to decide whether and how to repair.
type ValidationError struct {
	Field    string `json:"field"`
	Code     string `json:"code"`
	Message  string `json:"message"`
	Severity string `json:"severity"`
	Recovery string `json:"recovery,omitempty"` // suggested recovery action
}

// ValidationReport is the transient outcome of a validator pass. It is never
// persisted; Valid is the conjunction of the individual checks.
type ValidationReport struct {
	Valid bool `json:"valid"`

	StateExists            bool `json:"stateExists"`
	ReferencesValid        bool `json:"referencesValid"`
	VisitInvariantHolds    bool `json:"visitInvariantHolds"`
	LocationDataConsistent bool `json:"locationDataConsistent"`
	TimeCalculationsValid  bool `json:"timeCalculationsValid"`

	// TodayVisitSeconds is the recomputed sum of today's visit durations,
	// with active visits contributing a live duration.
	TodayVisitSeconds int64 `json:"todayVisitSeconds"`

	Errors         []ValidationError `json:"errors,omitempty"`
	RepairsApplied []string          `json:"repairsApplied,omitempty"`
	CheckedAt      int64             `json:"checkedAt"`
}

// AddError records a failed check on the report.
func (r *ValidationReport) AddError(field, code, message, severity, recovery string) {
	r.Errors = append(r.Errors, ValidationError{
		Field:    field,
		Code:     code,
		Message:  message,
		Severity: severity,
		Recovery: recovery,
	})
}
