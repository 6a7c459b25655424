package spatial

import (
	"math"
	"sort"
)

// Point represents a 2D point with latitude and longitude
type Point struct {
	Lat float64
	Lon float64
}

// Centroid calculates the geographic centroid of a set of points
func Centroid(points []Point) Point {
	if len(points) == 0 {
		return Point{}
	}

	var sumLat, sumLon float64
	for _, p := range points {
		sumLat += p.Lat
		sumLon += p.Lon
	}

	return Point{
		Lat: sumLat / float64(len(points)),
		Lon: sumLon / float64(len(points)),
	}
}

// PercentileDistance returns the p-th percentile (0-1) of the distances from
// center to each point, in meters. Used to derive a place's detection radius
// while ignoring the worst outlier fixes.
func PercentileDistance(center Point, points []Point, p float64) float64 {
	if len(points) == 0 {
		return 0
	}

	dists := make([]float64, len(points))
	for i, pt := range points {
		dists[i] = HaversineDistance(center.Lat, center.Lon, pt.Lat, pt.Lon)
	}
	sort.Float64s(dists)

	idx := int(math.Ceil(p*float64(len(dists)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(dists) {
		idx = len(dists) - 1
	}
	return dists[idx]
}

// Bounds is a latitude/longitude bounding box used as a cheap prefilter
// before precise distance checks.
type Bounds struct {
	MinLat, MinLon float64
	MaxLat, MaxLon float64
}

// Contains reports whether the point falls inside the box.
func (b Bounds) Contains(lat, lon float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lon >= b.MinLon && lon <= b.MaxLon
}

// BoundsAround builds a bounding box of roughly radius meters around a center.
// The longitude delta widens with latitude; near the poles the box degrades
// to a full longitude band, which only costs extra precise checks.
func BoundsAround(center Point, radiusMeters float64) Bounds {
	latDelta := radiusMeters / metersPerDegreeLat

	cosLat := math.Cos(center.Lat * math.Pi / 180)
	lonDelta := 180.0
	if cosLat > 1e-6 {
		lonDelta = radiusMeters / (metersPerDegreeLat * cosLat)
	}

	return Bounds{
		MinLat: center.Lat - latDelta,
		MaxLat: center.Lat + latDelta,
		MinLon: center.Lon - lonDelta,
		MaxLon: center.Lon + lonDelta,
	}
}

const metersPerDegreeLat = 111320.0
