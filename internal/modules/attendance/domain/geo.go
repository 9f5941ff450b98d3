package domain

import (
	"fmt"
	"math"
	"time"
)

// EarthRadiusMeters is the mean Earth radius used by the haversine formula.
const EarthRadiusMeters = 6371000.0

type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func (c Coordinates) Validate() error {
	if math.IsNaN(c.Latitude) || c.Latitude < -90 || c.Latitude > 90 {
		return fmt.Errorf("latitude %v out of range", c.Latitude)
	}
	if math.IsNaN(c.Longitude) || c.Longitude < -180 || c.Longitude > 180 {
		return fmt.Errorf("longitude %v out of range", c.Longitude)
	}
	return nil
}

func (c Coordinates) String() string {
	return fmt.Sprintf("%.6f,%.6f", c.Latitude, c.Longitude)
}

// Distance returns the great-circle distance between a and b in meters.
// Callers validate ranges; the result is symmetric and zero for a == b.
func Distance(a, b Coordinates) float64 {
	phi1 := toRadians(a.Latitude)
	phi2 := toRadians(b.Latitude)
	dPhi := toRadians(b.Latitude - a.Latitude)
	dLambda := toRadians(b.Longitude - a.Longitude)

	sinPhi := math.Sin(dPhi / 2)
	sinLambda := math.Sin(dLambda / 2)
	h := sinPhi*sinPhi + math.Cos(phi1)*math.Cos(phi2)*sinLambda*sinLambda
	// rounding can push h a hair outside [0,1] for antipodal points
	h = math.Min(1, math.Max(0, h))
	return EarthRadiusMeters * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

// Position is one successful device sample.
type Position struct {
	Coordinates
	AccuracyM float64
	Provider  string
	SampledAt time.Time
}

// Office is the tracker's view of the user's assigned office.
type Office struct {
	ID            string
	Name          string
	Location      Coordinates
	CheckinRadius float64
}

// Contains reports whether d meters from the office counts as present.
func (o Office) Contains(d float64) bool {
	return d <= o.CheckinRadius
}

// OfficeUpdate is one emission of the office resolution stream. A nil Office
// with a nil Err means the user has no office.
type OfficeUpdate struct {
	Office *Office
	Err    error
}
