package clustering

import (
	"github.com/OkayAnshul/Voyager-sub006/internal/models"
	"github.com/OkayAnshul/Voyager-sub006/internal/spatial"
)

// MatchPlace returns the existing place whose detection radius contains the
// position, or nil when none matches. A bounding-box check runs before the
// precise distance. When overlapping places both contain the position the
// nearer centroid wins; exact ties prefer the more established place (higher
// visit count).
func MatchPlace(p models.Position, existing []models.Place) *models.Place {
	pt := spatial.Point{Lat: p.Latitude, Lon: p.Longitude}

	var best *models.Place
	var bestDist float64

	for i := range existing {
		place := &existing[i]

		box := spatial.BoundsAround(spatial.Point{Lat: place.Latitude, Lon: place.Longitude}, place.RadiusMeters)
		if !box.Contains(p.Latitude, p.Longitude) {
			continue
		}

		dist := spatial.HaversineDistance(pt.Lat, pt.Lon, place.Latitude, place.Longitude)
		if dist > place.RadiusMeters {
			continue
		}

		if best == nil || dist < bestDist ||
			(dist == bestDist && place.VisitCount > best.VisitCount) {
			best = place
			bestDist = dist
		}
	}

	return best
}
