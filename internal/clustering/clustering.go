// Package clustering discovers candidate places from windows of accepted
// positions. Detection is advisory: insufficient data yields an empty
// candidate list, never an error.
package clustering

import (
	"time"

	"github.com/OkayAnshul/Voyager-sub006/internal/config"
	"github.com/OkayAnshul/Voyager-sub006/internal/models"
	"github.com/OkayAnshul/Voyager-sub006/internal/spatial"
)

// cluster is one spatially- and temporally-contiguous session of positions.
type cluster struct {
	members []models.Position
	center  spatial.Point
}

// DetectPlaces groups recent positions into sessions, discards noise, and
// derives a place candidate per surviving cluster. Positions must be sorted
// by timestamp ascending. Candidates matching an existing place carry its ID.
func DetectPlaces(recent []models.Position, existing []models.Place, cfg config.DetectionConfig) []models.PlaceCandidate {
	clusters := sessionize(recent, cfg)

	var candidates []models.PlaceCandidate
	for _, c := range clusters {
		span := c.members[len(c.members)-1].Timestamp - c.members[0].Timestamp
		if len(c.members) < cfg.MinClusterSize || span < cfg.MinClusterSpanSeconds {
			// Noise or transit, not a place
			continue
		}

		center := spatial.Centroid(points(c.members))
		radius := spatial.PercentileDistance(center, points(c.members), 0.9)
		if radius < cfg.MinPlaceRadiusMeters {
			radius = cfg.MinPlaceRadiusMeters
		}
		if radius > cfg.MaxPlaceRadiusMeters {
			radius = cfg.MaxPlaceRadiusMeters
		}

		category := inferCategory(c.members)
		days := distinctDays(c.members)
		confidence := scoreConfidence(category, len(c.members), avgAccuracy(c.members), days)

		cand := models.PlaceCandidate{
			Place: models.Place{
				Latitude:     center.Lat,
				Longitude:    center.Lon,
				RadiusMeters: radius,
				Category:     category,
				Confidence:   confidence,
			},
			MemberCount:  len(c.members),
			FirstSeen:    c.members[0].Timestamp,
			LastSeen:     c.members[len(c.members)-1].Timestamp,
			DistinctDays: days,
		}

		if match := MatchPlace(models.Position{Latitude: center.Lat, Longitude: center.Lon, Timestamp: cand.LastSeen, Accuracy: 1}, existing); match != nil {
			cand.MatchedPlaceID = match.ID
		}

		candidates = append(candidates, cand)
	}

	return candidates
}

// sessionize walks the window in time order and greedily groups positions
// that stay within the clustering radius of the running centroid. A time gap
// beyond the session gap starts a new cluster even at the same spot, so two
// unrelated visits weeks apart are not merged into one session.
func sessionize(positions []models.Position, cfg config.DetectionConfig) []cluster {
	var clusters []cluster
	var cur *cluster

	for _, p := range positions {
		pt := spatial.Point{Lat: p.Latitude, Lon: p.Longitude}

		if cur != nil {
			prev := cur.members[len(cur.members)-1]
			gap := p.Timestamp - prev.Timestamp
			if gap > cfg.SessionGapSeconds || spatial.Distance(cur.center, pt) > cfg.ClusterRadiusMeters {
				clusters = append(clusters, *cur)
				cur = nil
			}
		}

		if cur == nil {
			cur = &cluster{members: []models.Position{p}, center: pt}
			continue
		}

		cur.members = append(cur.members, p)
		cur.center = spatial.Centroid(points(cur.members))
	}

	if cur != nil {
		clusters = append(clusters, *cur)
	}

	return clusters
}

// inferCategory classifies a cluster from its temporal pattern: dominant
// overnight hours suggest home, dominant weekday office hours suggest work.
// Everything else stays unknown until the user or enrichment refines it.
func inferCategory(members []models.Position) string {
	var overnight, workHours int

	for _, m := range members {
		t := time.Unix(m.Timestamp, 0)
		h := t.Hour()
		if h >= 22 || h < 6 {
			overnight++
		}
		wd := t.Weekday()
		if wd >= time.Monday && wd <= time.Friday && h >= 9 && h < 17 {
			workHours++
		}
	}

	n := len(members)
	if n == 0 {
		return models.CategoryUnknown
	}
	if float64(overnight)/float64(n) >= 0.5 {
		return models.CategoryHome
	}
	if float64(workHours)/float64(n) >= 0.5 {
		return models.CategoryWork
	}
	return models.CategoryUnknown
}

func points(members []models.Position) []spatial.Point {
	pts := make([]spatial.Point, len(members))
	for i, m := range members {
		pts[i] = spatial.Point{Lat: m.Latitude, Lon: m.Longitude}
	}
	return pts
}

func avgAccuracy(members []models.Position) float64 {
	if len(members) == 0 {
		return 0
	}
	var sum float64
	for _, m := range members {
		sum += m.Accuracy
	}
	return sum / float64(len(members))
}

func distinctDays(members []models.Position) int {
	days := make(map[string]bool)
	for _, m := range members {
		days[time.Unix(m.Timestamp, 0).Format("2006-01-02")] = true
	}
	return len(days)
}
