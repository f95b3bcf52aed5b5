package sim

import (
	"math"

	"ronald-ng/internal/coord"
	"ronald-ng/internal/navpath"
)

const metersPerDegree = 111320.0

// Generator traces a closed loop around a center point: a circle of
// RadiusM meters, which projects as an ellipse on the pixel grid. The
// loop starts due north and runs clockwise, with the first vertex
// repeated at the end so consecutive-pair rendering closes it.
type Generator struct {
	Center  coord.Point
	RadiusM float64
	Points  int
}

func (g Generator) Path() navpath.Path {
	n := g.Points
	if n < 3 {
		n = 3
	}
	r := g.RadiusM
	if r < 0 {
		r = 0
	}

	mPerDegLon := metersPerDegree * math.Cos(g.Center.LatDegrees()*math.Pi/180)
	if mPerDegLon < 1 {
		// Near the poles longitude degrees degenerate; keep the math finite.
		mPerDegLon = 1
	}

	pts := make([]coord.Point, 0, n+1)
	for i := 0; i < n; i++ {
		th := 2 * math.Pi * float64(i) / float64(n)
		dLat := r * math.Cos(th) / metersPerDegree
		dLon := r * math.Sin(th) / mPerDegLon
		pts = append(pts, coord.Point{
			Lat: g.Center.Lat + int32(math.Round(dLat*coord.Scale)),
			Lon: g.Center.Lon + int32(math.Round(dLon*coord.Scale)),
		})
	}
	pts = append(pts, pts[0])
	return navpath.Path{Points: pts}
}
