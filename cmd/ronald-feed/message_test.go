package main

import (
	"bufio"
	"context"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"ronald-ng/internal/coord"
	"ronald-ng/internal/navpath"
)

func TestFormatPath(t *testing.T) {
	p := navpath.Path{Points: []coord.Point{
		{Lat: 5339576, Lon: -11371360},
		{Lat: 5339600, Lon: -11371300},
	}}

	got := string(formatPath(p, -1))
	want := "2\n5339576 -11371360\n5339600 -11371300\n"
	if got != want {
		t.Fatalf("formatPath() = %q, want %q", got, want)
	}

	// A misdeclared count keeps the pairs untouched.
	got = string(formatPath(p, 9))
	if !strings.HasPrefix(got, "9\n5339576 ") {
		t.Fatalf("formatPath(override) = %q", got)
	}
}

func TestLoadWaypoints(t *testing.T) {
	path := filepath.Join(t.TempDir(), "route.txt")
	body := "# bench route\n\n5339576 -11371360\n  5339600 -11371300  \n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}

	p, err := loadWaypoints(path)
	if err != nil {
		t.Fatalf("loadWaypoints() error: %v", err)
	}
	if p.Len() != 2 {
		t.Fatalf("points=%d want 2", p.Len())
	}
	if p.Points[0].Lat != 5339576 || p.Points[0].Lon != -11371360 {
		t.Fatalf("first point = %v", p.Points[0])
	}
}

func TestLoadWaypoints_Rejects(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"ThreeFields", "5339576 -11371360 7\n"},
		{"Fractional", "53.4 -113.5\n"},
		{"BadNumber", "5339576 west\n"},
		{"OutOfRange", "9100000 -11371360\n"},
		{"Empty", "# nothing here\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "route.txt")
			if err := os.WriteFile(path, []byte(tc.body), 0o644); err != nil {
				t.Fatalf("WriteFile() error: %v", err)
			}
			if _, err := loadWaypoints(path); err == nil {
				t.Fatalf("loadWaypoints() accepted %q", tc.body)
			}
		})
	}
}

func TestParseCenter(t *testing.T) {
	pt, err := parseCenter("53.5461,-113.4938")
	if err != nil {
		t.Fatalf("parseCenter() error: %v", err)
	}
	if pt.Lat != 5354610 || pt.Lon != -11349380 {
		t.Fatalf("center = %v", pt)
	}

	for _, bad := range []string{"53.5", "91,-113", "a,b", ""} {
		if _, err := parseCenter(bad); err == nil {
			t.Fatalf("parseCenter(%q) accepted", bad)
		}
	}
}

func TestBuildPath_GeneratesClosedLoop(t *testing.T) {
	p, err := buildPath("", "53.5461,-113.4938", 12, 1000)
	if err != nil {
		t.Fatalf("buildPath() error: %v", err)
	}
	if p.Len() != 13 {
		t.Fatalf("points=%d want 13", p.Len())
	}
	if p.Points[0] != p.Points[p.Len()-1] {
		t.Fatalf("loop not closed: %v vs %v", p.Points[0], p.Points[p.Len()-1])
	}
}

func TestServeTCP_DeliversMessage(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	msg := []byte("1\n5339576 -11371360\n")
	done := make(chan error, 1)
	go func() { done <- serveTCP(ctx, ln, msg, 0) }()

	conn, err := net.DialTimeout("tcp", ln.Addr().String(), 2*time.Second)
	if err != nil {
		t.Fatalf("Dial() error: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	r := bufio.NewReader(conn)
	first, err := r.ReadString('\n')
	if err != nil {
		t.Fatalf("ReadString() error: %v", err)
	}
	if first != "1\n" {
		t.Fatalf("count line = %q", first)
	}
	pair, err := r.ReadString('\n')
	if err != nil {
		t.Fatalf("ReadString() error: %v", err)
	}
	if pair != "5339576 -11371360\n" {
		t.Fatalf("pair line = %q", pair)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serveTCP() error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("serveTCP did not stop")
	}
}
