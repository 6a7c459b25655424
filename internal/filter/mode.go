package filter

import (
	"github.com/OkayAnshul/Voyager-sub006/internal/config"
	"github.com/OkayAnshul/Voyager-sub006/internal/models"
	"github.com/OkayAnshul/Voyager-sub006/internal/spatial"
)

// ModeTracker derives the stationary/active mode from accepted positions.
// The device flips to stationary after staying inside a small radius for a
// sustained period, and back to active on any real displacement.
type ModeTracker struct {
	cfg config.DetectionConfig

	mode       models.TrackingMode
	anchor     spatial.Point
	anchorTime int64
	hasAnchor  bool
}

// NewModeTracker creates a tracker starting in active mode.
func NewModeTracker(cfg config.DetectionConfig) *ModeTracker {
	return &ModeTracker{cfg: cfg, mode: models.ModeActive}
}

// Mode returns the current mode.
func (t *ModeTracker) Mode() models.TrackingMode {
	return t.mode
}

// Observe feeds an accepted position into the tracker and returns the mode
// that should apply to the next candidate.
func (t *ModeTracker) Observe(p models.Position) models.TrackingMode {
	pt := spatial.Point{Lat: p.Latitude, Lon: p.Longitude}

	if !t.hasAnchor {
		t.anchor = pt
		t.anchorTime = p.Timestamp
		t.hasAnchor = true
		return t.mode
	}

	dist := spatial.Distance(t.anchor, pt)

	if dist > t.cfg.MovementThresholdMeters {
		// Real displacement: re-anchor and wake up
		t.anchor = pt
		t.anchorTime = p.Timestamp
		t.mode = models.ModeActive
		return t.mode
	}

	if dist <= t.cfg.StationaryRadiusMeters &&
		p.Timestamp-t.anchorTime >= t.cfg.StationaryAfterSeconds {
		t.mode = models.ModeStationary
	}

	return t.mode
}
