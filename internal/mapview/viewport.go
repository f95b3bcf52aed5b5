package mapview

import "ronald-ng/internal/coord"

// Viewport is the on-screen window into a map: an origin in map pixels plus
// the screen size, and the index of the zoom level it looks at.
type Viewport struct {
	MapIndex int
	X, Y     int32
	Width    int32
	Height   int32
}

// Contains reports whether a map pixel is strictly inside the viewport.
// Points on any of the four borders are outside: only pixels that survive
// the translation to screen space with room on every side count as visible.
func (v Viewport) Contains(x, y int32) bool {
	return v.X < x && x < v.X+v.Width &&
		v.Y < y && y < v.Y+v.Height
}

// CenterPx returns the viewport center in map pixels.
func (v Viewport) CenterPx() (x, y int32) {
	return v.X + v.Width/2, v.Y + v.Height/2
}

// Pan moves the viewport by a pixel delta, clamped so it stays on the map.
func Pan(m Map, v Viewport, dx, dy int32) Viewport {
	v.X += dx
	v.Y += dy
	return Clamp(m, v)
}

// Zoom switches the viewport to another zoom level, preserving the
// geographic center. An out-of-range target leaves the viewport unchanged.
func Zoom(s Set, v Viewport, to int) Viewport {
	if to < 0 || to >= len(s.Maps) || to == v.MapIndex {
		return v
	}
	cur := s.Maps[v.MapIndex]
	cx, cy := v.CenterPx()
	center := cur.Unproject(cx, cy)

	next := s.Maps[to]
	v.MapIndex = to
	return CenterOn(next, v, center)
}

// CenterOn recenters the viewport on a geographic point, clamped to the map.
func CenterOn(m Map, v Viewport, pt coord.Point) Viewport {
	x, y := m.Project(pt)
	v.X = x - v.Width/2
	v.Y = y - v.Height/2
	return Clamp(m, v)
}

// Clamp keeps the viewport origin on the map. A map smaller than the screen
// pins the origin to 0 on that axis.
func Clamp(m Map, v Viewport) Viewport {
	v.X = clampAxis(v.X, m.WidthPx-v.Width)
	v.Y = clampAxis(v.Y, m.HeightPx-v.Height)
	return v
}

func clampAxis(val, max int32) int32 {
	if max < 0 {
		max = 0
	}
	if val > max {
		val = max
	}
	if val < 0 {
		val = 0
	}
	return val
}
