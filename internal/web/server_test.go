package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"ronald-ng/internal/input"
	"ronald-ng/internal/wifi"
)

func TestAPIStatus(t *testing.T) {
	st := NewStatus()
	st.SetStatic("bench-unit", "v1.2.3", "")
	st.SetView(ViewSnapshot{MapIndex: 1, MapName: "city", Width: 128, Height: 160})
	st.SetProviders(Providers{
		Ingest: func() any { return map[string]any{"state": "connected"} },
	})
	st.MarkFrame(time.Now().UTC())

	ts := httptest.NewServer(Handler(Config{Status: st}))
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/status")
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code=%d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content-type=%q", ct)
	}

	var snap StatusSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	if snap.Service != "ronald-ng" {
		t.Fatalf("service=%q", snap.Service)
	}
	if snap.DeviceName != "bench-unit" {
		t.Fatalf("device_name=%q", snap.DeviceName)
	}
	if snap.View.MapName != "city" || snap.View.MapIndex != 1 {
		t.Fatalf("view=%+v", snap.View)
	}
	if snap.FramesDrawnTotal != 1 {
		t.Fatalf("frames_drawn_total=%d", snap.FramesDrawnTotal)
	}
	ing, ok := snap.Ingest.(map[string]any)
	if !ok || ing["state"] != "connected" {
		t.Fatalf("ingest=%v", snap.Ingest)
	}
}

func TestRootPage(t *testing.T) {
	ts := httptest.NewServer(Handler(Config{}))
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("get root: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code=%d", resp.StatusCode)
	}
}

func TestAPIMaps(t *testing.T) {
	cfg := Config{
		Maps: func() MapsResponse {
			return MapsResponse{
				Active: 1,
				Maps: []MapInfo{
					{Name: "city", WidthPx: 1000, HeightPx: 2000, TileSize: 64},
					{Name: "region", WidthPx: 500, HeightPx: 1000, TileSize: 64},
				},
			}
		},
	}
	ts := httptest.NewServer(Handler(cfg))
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/maps")
	if err != nil {
		t.Fatalf("get maps: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code=%d", resp.StatusCode)
	}

	var out MapsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	if out.Active != 1 || len(out.Maps) != 2 {
		t.Fatalf("maps=%+v", out)
	}
	if out.Maps[1].Name != "region" {
		t.Fatalf("maps[1]=%+v", out.Maps[1])
	}
}

func TestAPIMaps_NilProviderServesEmptyList(t *testing.T) {
	ts := httptest.NewServer(Handler(Config{}))
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/maps")
	if err != nil {
		t.Fatalf("get maps: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code=%d", resp.StatusCode)
	}

	var out struct {
		Maps []MapInfo `json:"maps"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	if out.Maps == nil || len(out.Maps) != 0 {
		t.Fatalf("maps=%v", out.Maps)
	}
}

func TestViewPan_FeedsControl(t *testing.T) {
	got := make(chan input.Action, 1)
	cfg := Config{
		Control: func(a input.Action) error {
			got <- a
			return nil
		},
	}
	ts := httptest.NewServer(Handler(cfg))
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/view/pan", "application/json",
		strings.NewReader(`{"direction":"left"}`))
	if err != nil {
		t.Fatalf("post pan: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code=%d", resp.StatusCode)
	}

	select {
	case a := <-got:
		if a != input.ActionPanLeft {
			t.Fatalf("action=%v", a)
		}
	case <-time.After(time.Second):
		t.Fatalf("control never called")
	}
}

func TestViewZoom_RejectsBadRequests(t *testing.T) {
	cfg := Config{Control: func(input.Action) error { return nil }}
	ts := httptest.NewServer(Handler(cfg))
	defer ts.Close()

	tests := []struct {
		name        string
		method      string
		contentType string
		body        string
		want        int
	}{
		{"UnknownDirection", http.MethodPost, "application/json", `{"direction":"sideways"}`, http.StatusBadRequest},
		{"UnknownKey", http.MethodPost, "application/json", `{"direction":"in","speed":2}`, http.StatusBadRequest},
		{"TrailingData", http.MethodPost, "application/json", `{"direction":"in"}{}`, http.StatusBadRequest},
		{"BadContentType", http.MethodPost, "text/plain", `{"direction":"in"}`, http.StatusUnsupportedMediaType},
		{"Get", http.MethodGet, "", "", http.StatusMethodNotAllowed},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req, err := http.NewRequest(tc.method, ts.URL+"/api/view/zoom", strings.NewReader(tc.body))
			if err != nil {
				t.Fatalf("NewRequest: %v", err)
			}
			if tc.contentType != "" {
				req.Header.Set("Content-Type", tc.contentType)
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatalf("do: %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != tc.want {
				t.Fatalf("status code=%d want=%d", resp.StatusCode, tc.want)
			}
		})
	}
}

func TestViewPan_NoControlIs404(t *testing.T) {
	ts := httptest.NewServer(Handler(Config{}))
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/view/pan", "application/json",
		strings.NewReader(`{"direction":"up"}`))
	if err != nil {
		t.Fatalf("post pan: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status code=%d", resp.StatusCode)
	}
}

func TestAPIWiFi(t *testing.T) {
	type applied struct {
		mode, ssid, password string
	}
	got := make(chan applied, 1)
	cfg := Config{
		WiFiStatus: func() (wifi.Status, error) {
			return wifi.Status{APSSID: "ronald-nav", APIP: "192.168.10.1"}, nil
		},
		WiFiApply: func(mode, ssid, password string) error {
			got <- applied{mode, ssid, password}
			return nil
		},
	}
	ts := httptest.NewServer(Handler(cfg))
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/wifi")
	if err != nil {
		t.Fatalf("get wifi: %v", err)
	}
	var st wifi.Status
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	resp.Body.Close()
	if st.APSSID != "ronald-nav" {
		t.Fatalf("ap_ssid=%q", st.APSSID)
	}

	resp, err = http.Post(ts.URL+"/api/wifi", "application/json",
		strings.NewReader(`{"mode":"client","ssid":"home","password":"hunter22"}`))
	if err != nil {
		t.Fatalf("post wifi: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code=%d", resp.StatusCode)
	}
	select {
	case a := <-got:
		if a.mode != "client" || a.ssid != "home" || a.password != "hunter22" {
			t.Fatalf("applied=%+v", a)
		}
	case <-time.After(time.Second):
		t.Fatalf("apply never called")
	}

	resp, err = http.Post(ts.URL+"/api/wifi", "application/json",
		strings.NewReader(`{"ssid":"home"}`))
	if err != nil {
		t.Fatalf("post wifi: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing mode: status code=%d", resp.StatusCode)
	}
}

func TestAPIScenarios_ListsYAMLFiles(t *testing.T) {
	tmp := t.TempDir()
	base := filepath.Join(tmp, "configs", "scenarios")
	if err := os.MkdirAll(base, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	for name, contents := range map[string]string{
		"a.yaml":     "x: 1\n",
		"b.yml":      "x: 2\n",
		"ignore.txt": "nope\n",
	} {
		if err := os.WriteFile(filepath.Join(base, name), []byte(contents), 0o644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}

	old, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	if err := os.Chdir(tmp); err != nil {
		t.Fatalf("Chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(old) })

	ts := httptest.NewServer(Handler(Config{}))
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/scenarios")
	if err != nil {
		t.Fatalf("get scenarios: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code=%d", resp.StatusCode)
	}

	var out struct {
		Paths []string `json:"paths"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	if len(out.Paths) != 2 {
		t.Fatalf("paths=%v", out.Paths)
	}
	if out.Paths[0] != "./configs/scenarios/a.yaml" {
		t.Fatalf("paths[0]=%q", out.Paths[0])
	}
	if out.Paths[1] != "./configs/scenarios/b.yml" {
		t.Fatalf("paths[1]=%q", out.Paths[1])
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ts := httptest.NewServer(Handler(Config{}))
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code=%d", resp.StatusCode)
	}
}
