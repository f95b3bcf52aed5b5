package navpath

import (
	"testing"

	"ronald-ng/internal/coord"
)

func TestPathDistance(t *testing.T) {
	empty := Path{}
	if d := empty.Distance(); d != 0 {
		t.Fatalf("empty distance = %v, want 0", d)
	}

	single := Path{Points: []coord.Point{{Lat: 5300000, Lon: -11300000}}}
	if d := single.Distance(); d != 0 {
		t.Fatalf("single-point distance = %v, want 0", d)
	}

	// Out and back over one degree of latitude: ~2 x 111.2 km.
	p := Path{Points: []coord.Point{
		{Lat: 5300000, Lon: -11300000},
		{Lat: 5400000, Lon: -11300000},
		{Lat: 5300000, Lon: -11300000},
	}}
	d := p.Distance()
	if d < 222000 || d > 223000 {
		t.Fatalf("distance = %v m, want ~222.5 km", d)
	}
}
