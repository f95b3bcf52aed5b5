package main

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"

	"ronald-ng/internal/coord"
	"ronald-ng/internal/navpath"
	"ronald-ng/internal/sim"
)

// formatPath renders one transfer message: the point count on its own
// line, then one "lat lon" pair per line in 1e-5 degree units. A
// countOverride >= 0 replaces the declared count without touching the
// pairs, which makes the device's range check observable from the bench.
func formatPath(p navpath.Path, countOverride int) []byte {
	n := p.Len()
	if countOverride >= 0 {
		n = countOverride
	}
	var b bytes.Buffer
	fmt.Fprintf(&b, "%d\n", n)
	for _, pt := range p.Points {
		fmt.Fprintf(&b, "%d %d\n", pt.Lat, pt.Lon)
	}
	return b.Bytes()
}

func buildPath(waypointsPath, center string, points int, radiusM float64) (navpath.Path, error) {
	if waypointsPath != "" {
		return loadWaypoints(waypointsPath)
	}
	c, err := parseCenter(center)
	if err != nil {
		return navpath.Path{}, err
	}
	gen := sim.Generator{Center: c, RadiusM: radiusM, Points: points}
	return gen.Path(), nil
}

// loadWaypoints reads "lat lon" pairs in the wire's 1e-5 degree units, one
// per line, so a captured message pastes straight into a route file. Blank
// lines and #-comments are skipped; this end is strict where the device
// degrades, so bench mistakes surface here.
func loadWaypoints(path string) (navpath.Path, error) {
	f, err := os.Open(path)
	if err != nil {
		return navpath.Path{}, err
	}
	defer f.Close()

	var pts []coord.Point
	sc := bufio.NewScanner(f)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return navpath.Path{}, fmt.Errorf("%s:%d: want \"lat lon\", got %q", path, lineNo, line)
		}
		lat, err := parseUnits(fields[0], 90*coord.Scale)
		if err != nil {
			return navpath.Path{}, fmt.Errorf("%s:%d: latitude: %v", path, lineNo, err)
		}
		lon, err := parseUnits(fields[1], 180*coord.Scale)
		if err != nil {
			return navpath.Path{}, fmt.Errorf("%s:%d: longitude: %v", path, lineNo, err)
		}
		pts = append(pts, coord.Point{Lat: lat, Lon: lon})
	}
	if err := sc.Err(); err != nil {
		return navpath.Path{}, err
	}
	if len(pts) == 0 {
		return navpath.Path{}, fmt.Errorf("%s: no waypoints", path)
	}
	return navpath.Path{Points: pts}, nil
}

func parseUnits(s string, limit int64) (int32, error) {
	v, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("bad value %q", s)
	}
	if v < -limit || v > limit {
		return 0, fmt.Errorf("%d is out of range", v)
	}
	return int32(v), nil
}

func parseCenter(s string) (coord.Point, error) {
	parts := strings.SplitN(s, ",", 2)
	if len(parts) != 2 {
		return coord.Point{}, fmt.Errorf("center %q must be lat,lon", s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return coord.Point{}, fmt.Errorf("center latitude %q: %v", parts[0], err)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return coord.Point{}, fmt.Errorf("center longitude %q: %v", parts[1], err)
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return coord.Point{}, fmt.Errorf("center %v,%v is out of range", lat, lon)
	}
	return coord.FromDegrees(lat, lon), nil
}
