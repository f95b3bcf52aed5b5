package render

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/paulmach/orb"

	"ronald-ng/internal/coord"
	"ronald-ng/internal/display"
	"ronald-ng/internal/drawproto"
	"ronald-ng/internal/mapview"
	"ronald-ng/internal/navpath"
)

// testMap calibrates 1000x2000 px over lon -114..-113, lat 53..54, so one
// pixel is 0.001 deg in x and 0.0005 deg in y.
func testMap(tileSize int32) mapview.Map {
	return mapview.Map{
		Name:     "city-10k",
		WidthPx:  1000,
		HeightPx: 2000,
		TileSize: tileSize,
		Bounds:   orb.Bound{Min: orb.Point{-114, 53}, Max: orb.Point{-113, 54}},
	}
}

// ptAt returns the geographic point that projects onto map pixel (x, y).
func ptAt(x, y int32) coord.Point {
	return coord.Point{Lat: 5400000 - y*50, Lon: -11400000 + x*100}
}

func testViewport() mapview.Viewport {
	return mapview.Viewport{MapIndex: 0, X: 100, Y: 100, Width: 128, Height: 160}
}

func TestIsCoordVisible_StrictBorders(t *testing.T) {
	m := testMap(256)
	v := testViewport()

	cases := []struct {
		name string
		x, y int32
		want bool
	}{
		{"center", 164, 180, true},
		{"just inside origin corner", 101, 101, true},
		{"just inside far corner", 227, 259, true},
		{"left border", 100, 150, false},
		{"right border", 228, 150, false},
		{"top border", 150, 100, false},
		{"bottom border", 150, 260, false},
		{"origin corner", 100, 100, false},
		{"far corner", 228, 260, false},
		{"outside left", 40, 150, false},
		{"outside below", 150, 500, false},
	}
	for _, tc := range cases {
		if got := IsCoordVisible(m, v, ptAt(tc.x, tc.y)); got != tc.want {
			t.Fatalf("%s: visible(px %d,%d) = %v, want %v", tc.name, tc.x, tc.y, got, tc.want)
		}
	}
}

func TestDrawPath_DrawsEveryConsecutivePair(t *testing.T) {
	m := testMap(256)
	v := testViewport()
	rec := &display.Recorder{}

	p := navpath.Path{Points: []coord.Point{
		ptAt(110, 110), ptAt(120, 130), ptAt(140, 135), ptAt(200, 250),
	}}

	n, err := DrawPath(rec, m, v, p, 0xFFFF)
	if err != nil {
		t.Fatalf("DrawPath() error: %v", err)
	}
	if n != 3 {
		t.Fatalf("segments = %d, want 3", n)
	}

	ops := rec.Ops()
	if len(ops) != 3 {
		t.Fatalf("recorded %d ops, want 3", len(ops))
	}
	first, ok := ops[0].(drawproto.Line)
	if !ok {
		t.Fatalf("op[0] is %T, want Line", ops[0])
	}
	want := drawproto.Line{X0: 10, Y0: 10, X1: 20, Y1: 30, Color: 0xFFFF}
	if first != want {
		t.Fatalf("line[0] = %+v, want %+v", first, want)
	}
	last, ok := ops[2].(drawproto.Line)
	if !ok {
		t.Fatalf("op[2] is %T, want Line", ops[2])
	}
	wantLast := drawproto.Line{X0: 40, Y0: 35, X1: 100, Y1: 150, Color: 0xFFFF}
	if last != wantLast {
		t.Fatalf("line[2] = %+v, want %+v", last, wantLast)
	}
}

func TestDrawPath_EmptyAndSinglePoint(t *testing.T) {
	m := testMap(256)
	v := testViewport()

	for _, pts := range [][]coord.Point{nil, {ptAt(150, 150)}} {
		rec := &display.Recorder{}
		n, err := DrawPath(rec, m, v, navpath.Path{Points: pts}, 0xFFFF)
		if err != nil {
			t.Fatalf("DrawPath() error: %v", err)
		}
		if n != 0 {
			t.Fatalf("segments = %d, want 0", n)
		}
		if len(rec.Ops()) != 0 {
			t.Fatalf("expected no ops, got %d", len(rec.Ops()))
		}
	}
}

func TestDrawPath_DropsSegmentsWithHiddenEndpoint(t *testing.T) {
	m := testMap(256)
	v := testViewport()

	// B and C are visible; A is out to the left, D is out below. Only the
	// B-C segment survives, A-B and C-D are dropped whole.
	rec := &display.Recorder{}
	p := navpath.Path{Points: []coord.Point{
		ptAt(50, 150), ptAt(110, 150), ptAt(200, 200), ptAt(200, 500),
	}}
	n, err := DrawPath(rec, m, v, p, 0x07E0)
	if err != nil {
		t.Fatalf("DrawPath() error: %v", err)
	}
	if n != 1 {
		t.Fatalf("segments = %d, want 1", n)
	}
	ops := rec.Ops()
	if len(ops) != 1 {
		t.Fatalf("recorded %d ops, want 1", len(ops))
	}
	want := drawproto.Line{X0: 10, Y0: 50, X1: 100, Y1: 100, Color: 0x07E0}
	if ops[0].(drawproto.Line) != want {
		t.Fatalf("line = %+v, want %+v", ops[0], want)
	}
}

func TestDrawPath_BorderEndpointsNotVisible(t *testing.T) {
	m := testMap(256)
	v := testViewport()

	// One endpoint sits exactly on the right border; the segment is dropped
	// even though the other endpoint is well inside.
	rec := &display.Recorder{}
	p := navpath.Path{Points: []coord.Point{ptAt(150, 150), ptAt(228, 150)}}
	n, err := DrawPath(rec, m, v, p, 0xFFFF)
	if err != nil {
		t.Fatalf("DrawPath() error: %v", err)
	}
	if n != 0 || len(rec.Ops()) != 0 {
		t.Fatalf("segments = %d ops = %d, want 0 and 0", n, len(rec.Ops()))
	}
}

type failingDriver struct {
	display.Recorder
	failAfterLines int
	lines          int
}

func (d *failingDriver) DrawLine(x0, y0, x1, y1 int16, color uint16) error {
	d.lines++
	if d.lines > d.failAfterLines {
		return errors.New("link down")
	}
	return d.Recorder.DrawLine(x0, y0, x1, y1, color)
}

func TestDrawPath_PropagatesDriverError(t *testing.T) {
	m := testMap(256)
	v := testViewport()
	d := &failingDriver{failAfterLines: 1}

	p := navpath.Path{Points: []coord.Point{
		ptAt(110, 110), ptAt(120, 120), ptAt(130, 130), ptAt(140, 140),
	}}
	n, err := DrawPath(d, m, v, p, 0xFFFF)
	if err == nil {
		t.Fatalf("expected error")
	}
	if n != 1 {
		t.Fatalf("segments before failure = %d, want 1", n)
	}
}

type fakeTiles struct {
	missing map[[2]int32]bool
	broken  map[[2]int32]bool
	calls   int
}

func (f *fakeTiles) Tile(name string, tileSize, col, row int32) ([]byte, error) {
	f.calls++
	k := [2]int32{col, row}
	if f.missing[k] {
		return nil, fmt.Errorf("tile %d_%d: %w", col, row, fs.ErrNotExist)
	}
	if f.broken[k] {
		return nil, errors.New("tile sized wrong")
	}
	return make([]byte, int(tileSize)*int(tileSize)*2), nil
}

func TestDrawFrame_OpOrderAndStats(t *testing.T) {
	m := testMap(64)
	v := testViewport()
	rec := &display.Recorder{}
	src := &fakeTiles{}

	p := navpath.Path{Points: []coord.Point{ptAt(110, 110), ptAt(120, 120)}}

	stats, err := DrawFrame(rec, m, v, src, p, 0x0000, 0xF800)
	if err != nil {
		t.Fatalf("DrawFrame() error: %v", err)
	}

	// Viewport x 100..227 spans tile cols 1..3, y 100..259 spans rows 1..4.
	if stats.TilesDrawn != 12 || stats.TilesMissing != 0 || stats.TileErrors != 0 {
		t.Fatalf("stats = %+v, want 12 tiles drawn", stats)
	}
	if stats.Segments != 1 {
		t.Fatalf("segments = %d, want 1", stats.Segments)
	}

	ops := rec.Ops()
	if len(ops) != 1+12+1+1 {
		t.Fatalf("recorded %d ops, want 15", len(ops))
	}
	if _, ok := ops[0].(drawproto.Clear); !ok {
		t.Fatalf("op[0] is %T, want Clear", ops[0])
	}
	firstBlit, ok := ops[1].(drawproto.Blit)
	if !ok {
		t.Fatalf("op[1] is %T, want Blit", ops[1])
	}
	// First tile is col 1, row 1, partially off the top-left corner.
	if firstBlit.X != -36 || firstBlit.Y != -36 || firstBlit.W != 64 || firstBlit.H != 64 {
		t.Fatalf("first blit = %+v, want x=-36 y=-36 64x64", firstBlit)
	}
	if len(firstBlit.Pixels) != 64*64*2 {
		t.Fatalf("first blit payload %d bytes, want %d", len(firstBlit.Pixels), 64*64*2)
	}
	if _, ok := ops[13].(drawproto.Line); !ok {
		t.Fatalf("op[13] is %T, want Line", ops[13])
	}
	if _, ok := ops[14].(drawproto.Present); !ok {
		t.Fatalf("op[14] is %T, want Present", ops[14])
	}
}

func TestDrawFrame_SkipsMissingAndBrokenTiles(t *testing.T) {
	m := testMap(64)
	v := testViewport()
	rec := &display.Recorder{}
	src := &fakeTiles{
		missing: map[[2]int32]bool{{1, 1}: true, {2, 2}: true},
		broken:  map[[2]int32]bool{{3, 4}: true},
	}

	stats, err := DrawFrame(rec, m, v, src, navpath.Path{}, 0x0000, 0xF800)
	if err != nil {
		t.Fatalf("DrawFrame() error: %v", err)
	}
	if stats.TilesDrawn != 9 || stats.TilesMissing != 2 || stats.TileErrors != 1 {
		t.Fatalf("stats = %+v, want drawn=9 missing=2 errors=1", stats)
	}
}

func TestDrawFrame_NilTileSource(t *testing.T) {
	m := testMap(64)
	v := testViewport()
	rec := &display.Recorder{}

	stats, err := DrawFrame(rec, m, v, nil, navpath.Path{}, 0x001F, 0xF800)
	if err != nil {
		t.Fatalf("DrawFrame() error: %v", err)
	}
	if stats.TilesDrawn != 0 {
		t.Fatalf("stats = %+v, want no tiles", stats)
	}

	ops := rec.Ops()
	if len(ops) != 2 {
		t.Fatalf("recorded %d ops, want clear+present", len(ops))
	}
	if c, ok := ops[0].(drawproto.Clear); !ok || c.Color != 0x001F {
		t.Fatalf("op[0] = %+v, want Clear blue", ops[0])
	}
	if _, ok := ops[1].(drawproto.Present); !ok {
		t.Fatalf("op[1] is %T, want Present", ops[1])
	}
}

func TestDrawFrame_BottomRightViewportTileWindow(t *testing.T) {
	m := testMap(300)
	v := mapview.Viewport{X: 872, Y: 1840, Width: 128, Height: 160}
	rec := &display.Recorder{}
	src := &fakeTiles{}

	stats, err := DrawFrame(rec, m, v, src, navpath.Path{}, 0x0000, 0xF800)
	if err != nil {
		t.Fatalf("DrawFrame() error: %v", err)
	}

	// x 872..999 spans cols 2..3 (col 3 is the padded edge tile), y
	// 1840..1999 spans row 6 only.
	if stats.TilesDrawn != 2 {
		t.Fatalf("stats = %+v, want 2 tiles", stats)
	}
	ops := rec.Ops()
	blit, ok := ops[2].(drawproto.Blit)
	if !ok {
		t.Fatalf("op[2] is %T, want Blit", ops[2])
	}
	if blit.X != 28 || blit.Y != -40 {
		t.Fatalf("edge tile at (%d,%d), want (28,-40)", blit.X, blit.Y)
	}
}
