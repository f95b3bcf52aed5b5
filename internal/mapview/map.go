// Package mapview models the raster maps the device renders on: each map is
// a pixel grid calibrated over a geographic bounding box. Maps of the same
// area at different raster sizes act as zoom levels. The projection is the
// linear interpolation of fixed-point coordinates across the calibration,
// rounded to the nearest pixel; north is at y=0.
package mapview

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"

	"ronald-ng/internal/coord"
)

type Map struct {
	Name     string
	WidthPx  int32
	HeightPx int32
	TileSize int32

	// Bounds is the geographic calibration in degrees; Min is the
	// south-west corner.
	Bounds orb.Bound
}

// LongitudeToX projects a fixed-point longitude onto the map's x axis.
// Values outside the calibration land outside [0, WidthPx].
func (m Map) LongitudeToX(lon int32) int32 {
	west := m.Bounds.Min.Lon()
	east := m.Bounds.Max.Lon()
	deg := float64(lon) / coord.Scale
	return int32(math.Round((deg - west) / (east - west) * float64(m.WidthPx)))
}

// LatitudeToY projects a fixed-point latitude onto the map's y axis, north
// at the top.
func (m Map) LatitudeToY(lat int32) int32 {
	south := m.Bounds.Min.Lat()
	north := m.Bounds.Max.Lat()
	deg := float64(lat) / coord.Scale
	return int32(math.Round((north - deg) / (north - south) * float64(m.HeightPx)))
}

// XToLongitude is the inverse projection, used to preserve the geographic
// center across zoom-level switches and for position readouts.
func (m Map) XToLongitude(x int32) int32 {
	west := m.Bounds.Min.Lon()
	east := m.Bounds.Max.Lon()
	deg := west + float64(x)/float64(m.WidthPx)*(east-west)
	return int32(math.Round(deg * coord.Scale))
}

func (m Map) YToLatitude(y int32) int32 {
	south := m.Bounds.Min.Lat()
	north := m.Bounds.Max.Lat()
	deg := north - float64(y)/float64(m.HeightPx)*(north-south)
	return int32(math.Round(deg * coord.Scale))
}

// Project returns both pixel axes for a point.
func (m Map) Project(pt coord.Point) (x, y int32) {
	return m.LongitudeToX(pt.Lon), m.LatitudeToY(pt.Lat)
}

// Unproject returns the geographic point under a map pixel.
func (m Map) Unproject(x, y int32) coord.Point {
	return coord.Point{Lat: m.YToLatitude(y), Lon: m.XToLongitude(x)}
}

// Set is the ordered list of zoom levels from the configuration.
type Set struct {
	Maps []Map
}

func (s Set) Validate() error {
	if len(s.Maps) == 0 {
		return fmt.Errorf("no maps configured")
	}
	seen := make(map[string]bool, len(s.Maps))
	for i, m := range s.Maps {
		if m.Name == "" {
			return fmt.Errorf("map %d: name is empty", i)
		}
		if seen[m.Name] {
			return fmt.Errorf("map %d: duplicate name %q", i, m.Name)
		}
		seen[m.Name] = true
		if m.WidthPx <= 0 || m.HeightPx <= 0 {
			return fmt.Errorf("map %q: size %dx%d is not positive", m.Name, m.WidthPx, m.HeightPx)
		}
		if m.TileSize <= 0 {
			return fmt.Errorf("map %q: tile_size %d is not positive", m.Name, m.TileSize)
		}
		if !(m.Bounds.Max.Lon() > m.Bounds.Min.Lon()) {
			return fmt.Errorf("map %q: east %v must be greater than west %v", m.Name, m.Bounds.Max.Lon(), m.Bounds.Min.Lon())
		}
		if !(m.Bounds.Max.Lat() > m.Bounds.Min.Lat()) {
			return fmt.Errorf("map %q: north %v must be greater than south %v", m.Name, m.Bounds.Max.Lat(), m.Bounds.Min.Lat())
		}
	}
	return nil
}
