// Package render turns navigation state into draw operations: the map tiles
// under the viewport, then the path segments that are fully visible, then a
// present. It owns the visibility rule; drivers just draw what they are told.
package render

import (
	"errors"
	"io/fs"

	"ronald-ng/internal/coord"
	"ronald-ng/internal/display"
	"ronald-ng/internal/mapview"
	"ronald-ng/internal/navpath"
)

// IsCoordVisible reports whether a geographic point projects strictly inside
// the viewport on the given map. Points that land on any viewport border are
// not visible.
func IsCoordVisible(m mapview.Map, v mapview.Viewport, pt coord.Point) bool {
	x, y := m.Project(pt)
	return v.Contains(x, y)
}

// DrawPath draws every consecutive path segment whose endpoints are both
// visible, translated from map to screen coordinates. A segment with either
// endpoint outside the viewport is dropped whole; nothing is clipped. It
// returns the number of segments drawn.
func DrawPath(d display.Driver, m mapview.Map, v mapview.Viewport, p navpath.Path, color uint16) (int, error) {
	segments := 0
	pts := p.Points
	for i := 0; i+1 < len(pts); i++ {
		x0, y0 := m.Project(pts[i])
		x1, y1 := m.Project(pts[i+1])
		if !v.Contains(x0, y0) || !v.Contains(x1, y1) {
			continue
		}
		err := d.DrawLine(
			int16(x0-v.X), int16(y0-v.Y),
			int16(x1-v.X), int16(y1-v.Y),
			color,
		)
		if err != nil {
			return segments, err
		}
		segments++
	}
	return segments, nil
}

// TileSource yields raw RGB565 tiles for a map. A miss is reported as a
// wrapped fs.ErrNotExist; the renderer skips those and leaves the background
// showing.
type TileSource interface {
	Tile(mapName string, tileSize, col, row int32) ([]byte, error)
}

// FrameStats counts what one full redraw produced.
type FrameStats struct {
	Segments     int
	TilesDrawn   int
	TilesMissing int
	TileErrors   int
}

// DrawFrame redraws the whole screen: clear to the background color, blit
// the tiles under the viewport, draw the visible path segments, present.
// Tile problems are counted and skipped; driver errors abort the frame.
func DrawFrame(d display.Driver, m mapview.Map, v mapview.Viewport, src TileSource, p navpath.Path, background, pathColor uint16) (FrameStats, error) {
	var stats FrameStats

	if err := d.Clear(background); err != nil {
		return stats, err
	}

	if src != nil {
		if err := drawTiles(d, m, v, src, &stats); err != nil {
			return stats, err
		}
	}

	n, err := DrawPath(d, m, v, p, pathColor)
	stats.Segments = n
	if err != nil {
		return stats, err
	}

	if err := d.Present(); err != nil {
		return stats, err
	}
	return stats, nil
}

func drawTiles(d display.Driver, m mapview.Map, v mapview.Viewport, src TileSource, stats *FrameStats) error {
	ts := m.TileSize

	maxCol := (m.WidthPx+ts-1)/ts - 1
	maxRow := (m.HeightPx+ts-1)/ts - 1

	col0 := v.X / ts
	col1 := (v.X + v.Width - 1) / ts
	row0 := v.Y / ts
	row1 := (v.Y + v.Height - 1) / ts
	if col1 > maxCol {
		col1 = maxCol
	}
	if row1 > maxRow {
		row1 = maxRow
	}

	for row := row0; row <= row1; row++ {
		for col := col0; col <= col1; col++ {
			pixels, err := src.Tile(m.Name, ts, col, row)
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					stats.TilesMissing++
				} else {
					stats.TileErrors++
				}
				continue
			}
			sx := col*ts - v.X
			sy := row*ts - v.Y
			if err := d.Blit(int16(sx), int16(sy), uint16(ts), uint16(ts), pixels); err != nil {
				return err
			}
			stats.TilesDrawn++
		}
	}
	return nil
}
