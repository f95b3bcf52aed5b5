// Package navpath holds the waypoint path model and the line-protocol
// ingestion operation that fills it from a host link.
package navpath

import (
	"ronald-ng/internal/coord"
)

// PointSize is the in-memory size of one path point in bytes (two int32
// fixed-point coordinates). The memory budget is expressed in these units.
const PointSize = 8

// Path is an ordered sequence of waypoints. The zero value is an empty,
// valid path.
type Path struct {
	Points []coord.Point
}

func (p Path) Len() int { return len(p.Points) }

// Distance returns the great-circle length of the path in meters: the sum
// over consecutive waypoint pairs. Paths with fewer than two points have
// zero length.
func (p Path) Distance() float64 {
	var total float64
	for i := 0; i+1 < len(p.Points); i++ {
		total += coord.Distance(p.Points[i], p.Points[i+1])
	}
	return total
}
