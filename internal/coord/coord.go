package coord

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// Scale is the fixed-point factor: 1 unit = 1e-5 degree.
// All wire values, stored paths and map projections use this representation.
const Scale = 100000

// Point is a geographic position in fixed-point degrees (1e-5 deg units).
// Values outside the valid lat/lon range are representable; they simply
// project off-map and fail the visibility test downstream.
type Point struct {
	Lat int32
	Lon int32
}

func FromDegrees(lat, lon float64) Point {
	return Point{
		Lat: int32(math.Round(lat * Scale)),
		Lon: int32(math.Round(lon * Scale)),
	}
}

func (p Point) LatDegrees() float64 { return float64(p.Lat) / Scale }
func (p Point) LonDegrees() float64 { return float64(p.Lon) / Scale }

// Orb converts to an orb.Point (lon/lat order, degrees).
func (p Point) Orb() orb.Point {
	return orb.Point{p.LonDegrees(), p.LatDegrees()}
}

func FromOrb(o orb.Point) Point {
	return FromDegrees(o.Lat(), o.Lon())
}

func (p Point) String() string {
	return fmt.Sprintf("%.5f,%.5f", p.LatDegrees(), p.LonDegrees())
}

// Distance returns the great-circle distance between a and b in meters.
func Distance(a, b Point) float64 {
	return geo.DistanceHaversine(a.Orb(), b.Orb())
}
