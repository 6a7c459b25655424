// Package filter decides which raw GPS fixes are worth keeping. It suppresses
// drift while stationary and impossible-speed teleport artifacts, and is pure:
// the caller persists accepted positions and owns the stationary/active mode.
package filter

import (
	"github.com/OkayAnshul/Voyager-sub006/internal/config"
	"github.com/OkayAnshul/Voyager-sub006/internal/models"
	"github.com/OkayAnshul/Voyager-sub006/internal/spatial"
)

// ShouldAccept reports whether candidate is worth persisting given the last
// accepted position (nil means always accept) and the current tracking mode.
// Rules are evaluated in order, first match wins.
func ShouldAccept(candidate models.Position, last *models.Position, mode models.TrackingMode, cfg config.DetectionConfig) bool {
	if candidate.Validate() != nil {
		return false
	}

	ceiling := cfg.AccuracyCeilingMeters
	if mode == models.ModeStationary {
		ceiling = cfg.StationaryAccuracyCeilingMeters
	}
	if candidate.Accuracy > ceiling {
		return false
	}

	if last == nil {
		return true
	}

	elapsed := candidate.Timestamp - last.Timestamp
	if elapsed < 0 {
		// Non-monotonic timestamp, never reaches state logic
		return false
	}

	dist := spatial.HaversineDistance(candidate.Latitude, candidate.Longitude, last.Latitude, last.Longitude)

	// Teleport guard. Below ~1s the implied speed has no resolution, skip.
	if elapsed >= 1 {
		speed := dist / float64(elapsed)
		if speed > cfg.MaxSpeedMps {
			return false
		}
	}

	// Long GPS outage: accept unconditionally so the gap is recorded
	if elapsed > cfg.GapSeconds {
		return true
	}

	threshold := cfg.MovementThresholdMeters
	if mode == models.ModeStationary {
		threshold = cfg.StationaryMovementMeters
	}
	if dist >= threshold {
		return true
	}

	// Time-based acceptance still requires a nominal displacement,
	// otherwise an idle device spams identical fixes
	if elapsed >= cfg.MinUpdateIntervalSeconds && dist >= cfg.MinDisplacementMeters {
		return true
	}

	return false
}
