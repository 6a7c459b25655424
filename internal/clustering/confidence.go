package clustering

import "github.com/OkayAnshul/Voyager-sub006/internal/models"

// Confidence scoring weights. Detection is never fully certain without user
// confirmation, so the total is capped below 1.0.
const (
	BaseConfidenceHome    = 0.50
	BaseConfidenceWork    = 0.45
	BaseConfidenceUnknown = 0.30

	memberBonusPer  = 0.02
	memberBonusCap  = 0.20
	accuracyBonus   = 0.10 // granted when the average fix is tight
	goodAccuracyM   = 20.0
	dayBonusPer     = 0.05
	dayBonusCap     = 0.15
	confidenceLimit = 0.95
)

// scoreConfidence combines a category-dependent base with capped bonuses for
// member count, fix accuracy, and the cluster spanning several calendar days.
func scoreConfidence(category string, memberCount int, avgAccuracy float64, distinctDays int) float64 {
	score := BaseConfidenceUnknown
	switch category {
	case models.CategoryHome:
		score = BaseConfidenceHome
	case models.CategoryWork:
		score = BaseConfidenceWork
	}

	memberBonus := memberBonusPer * float64(memberCount)
	if memberBonus > memberBonusCap {
		memberBonus = memberBonusCap
	}
	score += memberBonus

	if avgAccuracy > 0 && avgAccuracy <= goodAccuracyM {
		score += accuracyBonus
	}

	if distinctDays > 1 {
		dayBonus := dayBonusPer * float64(distinctDays-1)
		if dayBonus > dayBonusCap {
			dayBonus = dayBonusCap
		}
		score += dayBonus
	}

	if score > confidenceLimit {
		score = confidenceLimit
	}
	return score
}

// RefineConfidence nudges a place's confidence up after a completed visit,
// staying under the same ceiling as detection.
func RefineConfidence(current float64) float64 {
	next := current + 0.02
	if next > confidenceLimit {
		next = confidenceLimit
	}
	return next
}
