// Package geo implements the spherical geometry used by proximity search.
//
// Distances follow the spherical law of cosines on a sphere with the mean Earth
// radius, matching the formula the storage layer historically evaluated in SQL.
// Everything here is pure and independent of any storage engine.
package geo

import (
	"math"

	"github.com/go-faster/errors"
)

// EarthRadiusKm is the mean Earth radius used for all distance calculations.
const EarthRadiusKm = 6371.0

// ErrInvalidPoint is returned when a coordinate is outside the valid range.
var ErrInvalidPoint = errors.New("invalid coordinate")

// Point is a WGS 84 coordinate in decimal degrees.
type Point struct {
	Lat float64
	Lon float64
}

// Validate reports whether p is a finite coordinate within the valid
// latitude/longitude ranges.
func (p Point) Validate() error {
	switch {
	case math.IsNaN(p.Lat) || math.IsInf(p.Lat, 0):
		return errors.Wrap(ErrInvalidPoint, "latitude is not a finite number")
	case math.IsNaN(p.Lon) || math.IsInf(p.Lon, 0):
		return errors.Wrap(ErrInvalidPoint, "longitude is not a finite number")
	case p.Lat < -90 || p.Lat > 90:
		return errors.Wrapf(ErrInvalidPoint, "latitude %g out of range [-90, 90]", p.Lat)
	case p.Lon < -180 || p.Lon > 180:
		return errors.Wrapf(ErrInvalidPoint, "longitude %g out of range [-180, 180]", p.Lon)
	}
	return nil
}

// Distance returns the great-circle distance between a and b in kilometers.
//
// The acos argument is clamped to [-1, 1]: rounding can push it slightly
// outside the domain for identical or antipodal points, which would yield NaN.
func Distance(a, b Point) float64 {
	if a == b {
		return 0
	}

	lat0, lon0 := radians(a.Lat), radians(a.Lon)
	lat1, lon1 := radians(b.Lat), radians(b.Lon)

	cosine := math.Cos(lat0)*math.Cos(lat1)*math.Cos(lon1-lon0) +
		math.Sin(lat0)*math.Sin(lat1)

	return EarthRadiusKm * math.Acos(clamp(cosine, -1, 1))
}

// Bounds is a latitude/longitude rectangle in degrees. It never wraps around
// the antimeridian: when the covered area would, the longitude range spans
// the whole globe instead.
type Bounds struct {
	MinLat float64
	MaxLat float64
	MinLon float64
	MaxLon float64
}

// Contains reports whether p lies inside the rectangle, edges included.
func (b Bounds) Contains(p Point) bool {
	return p.Lat >= b.MinLat && p.Lat <= b.MaxLat &&
		p.Lon >= b.MinLon && p.Lon <= b.MaxLon
}

// boundsPadDeg widens bounding boxes so that shops exactly on the circle are
// never dropped by the coarse pre-filter because of rounding.
const boundsPadDeg = 1e-6

// BoundingBox returns a rectangle that contains every point whose distance to
// center is at most radiusKm. It is a coarse pre-filter: callers must still
// apply Distance to the candidates.
func BoundingBox(center Point, radiusKm float64) Bounds {
	angular := radiusKm / EarthRadiusKm
	if angular >= math.Pi {
		return worldBounds()
	}

	lat := radians(center.Lat)
	minLat := lat - angular
	maxLat := lat + angular

	b := Bounds{
		MinLat: degrees(minLat) - boundsPadDeg,
		MaxLat: degrees(maxLat) + boundsPadDeg,
		MinLon: -180,
		MaxLon: 180,
	}

	// A pole inside the circle covers every meridian.
	if minLat <= -math.Pi/2 || maxLat >= math.Pi/2 {
		b.MinLat = math.Max(b.MinLat, -90)
		b.MaxLat = math.Min(b.MaxLat, 90)
		return b
	}

	deltaLon := math.Asin(math.Sin(angular) / math.Cos(lat))
	minLon := radians(center.Lon) - deltaLon
	maxLon := radians(center.Lon) + deltaLon
	if minLon < -math.Pi || maxLon > math.Pi {
		// Crosses the antimeridian.
		return b
	}

	b.MinLon = math.Max(degrees(minLon)-boundsPadDeg, -180)
	b.MaxLon = math.Min(degrees(maxLon)+boundsPadDeg, 180)
	b.MinLat = math.Max(b.MinLat, -90)
	b.MaxLat = math.Min(b.MaxLat, 90)
	return b
}

func worldBounds() Bounds {
	return Bounds{MinLat: -90, MaxLat: 90, MinLon: -180, MaxLon: 180}
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }

func degrees(rad float64) float64 { return rad * 180 / math.Pi }

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
