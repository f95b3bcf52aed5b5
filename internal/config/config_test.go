package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

const mapsBody = `maps:
  - name: city
    width_px: 1000
    height_px: 2000
    tile_size: 64
    west: -113.7
    east: -113.3
    south: 53.4
    north: 53.65
`

const minimalBody = mapsBody + "display:\n  dest: \"192.168.10.255:4242\"\n"

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	return path
}

func requireErrEq(t *testing.T, err error, want string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error %q, got nil", want)
	}
	if err.Error() != want {
		t.Fatalf("error=%q want %q", err.Error(), want)
	}
}

func TestLoad_DefaultsApplied(t *testing.T) {
	cfg, err := Load(writeTempConfig(t, minimalBody))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.DeviceName != "ronald-ng" {
		t.Fatalf("device_name=%q", cfg.DeviceName)
	}
	if cfg.Serial.Baud != 115200 {
		t.Fatalf("serial.baud=%d", cfg.Serial.Baud)
	}
	if cfg.Ingest.Source != "serial" || cfg.Ingest.ReconnectSeconds != 5 {
		t.Fatalf("ingest=%+v", cfg.Ingest)
	}
	if cfg.Ingest.MaxLineBytes != 256 || cfg.Ingest.MaxFieldBytes != 20 {
		t.Fatalf("bounds=%d/%d", cfg.Ingest.MaxLineBytes, cfg.Ingest.MaxFieldBytes)
	}
	if cfg.Ingest.Memory.ReserveBytes != 256 || cfg.Ingest.Memory.FixedBudgetBytes != 0 {
		t.Fatalf("memory=%+v", cfg.Ingest.Memory)
	}
	if cfg.Viewport.Width != 128 || cfg.Viewport.Height != 160 || cfg.Viewport.PanStep != 16 {
		t.Fatalf("viewport=%+v", cfg.Viewport)
	}
	if !cfg.Viewport.CenterOnPath {
		t.Fatalf("center_on_path should default true")
	}
	if cfg.Tiles.Dir != "./tiles" || cfg.Tiles.CacheTiles != 64 || cfg.Tiles.CacheTTLSeconds != 300 {
		t.Fatalf("tiles=%+v", cfg.Tiles)
	}
	if cfg.Display.RefreshSeconds != 1 || cfg.Display.Background != "black" || cfg.Display.LineColor != "red" {
		t.Fatalf("display=%+v", cfg.Display)
	}
	if !cfg.Input.Enabled || cfg.Input.DebounceMs != 30 {
		t.Fatalf("input=%+v", cfg.Input)
	}
	if cfg.Input.Pins != (PinsConfig{Up: 5, Down: 6, Left: 13, Right: 19, ZoomIn: 26, ZoomOut: 21}) {
		t.Fatalf("pins=%+v", cfg.Input.Pins)
	}
	if cfg.WiFi.Mode != "off" || cfg.WiFi.SSID != "ronald-nav" || cfg.WiFi.APIP != "192.168.10.1" {
		t.Fatalf("wifi=%+v", cfg.WiFi)
	}
	if cfg.Web.Listen != ":8080" {
		t.Fatalf("web.listen=%q", cfg.Web.Listen)
	}
	if cfg.StartMap != 0 || len(cfg.Maps) != 1 || cfg.Maps[0].Name != "city" {
		t.Fatalf("maps=%+v start=%d", cfg.Maps, cfg.StartMap)
	}
}

func TestLoad_ExplicitFalseBeatsDefault(t *testing.T) {
	body := minimalBody + "viewport:\n  center_on_path: false\ninput:\n  enabled: false\n"
	cfg, err := Load(writeTempConfig(t, body))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Viewport.CenterOnPath {
		t.Fatalf("center_on_path should be false")
	}
	if cfg.Input.Enabled {
		t.Fatalf("input.enabled should be false")
	}
	// The rest of the partially given sections keeps its defaults.
	if cfg.Viewport.Width != 128 || cfg.Viewport.PanStep != 16 {
		t.Fatalf("viewport=%+v", cfg.Viewport)
	}
	if cfg.Input.DebounceMs != 30 {
		t.Fatalf("debounce_ms=%d", cfg.Input.DebounceMs)
	}
}

func TestLoad_RequiresMaps(t *testing.T) {
	_, err := Load(writeTempConfig(t, "display:\n  dest: \"10.0.0.2:4242\"\n"))
	requireErrEq(t, err, "maps requires at least one entry")
}

func TestLoad_RejectsUnknownField(t *testing.T) {
	_, err := Load(writeTempConfig(t, minimalBody+"speed: 2\n"))
	requireErrEq(t, err, "config contains unknown fields: field speed not found in type config.Config")
}

func TestLoad_Validation(t *testing.T) {
	cases := []struct {
		name  string
		body  string
		extra string
		want  string
	}{
		{
			name:  "BadSource",
			extra: "ingest:\n  source: pigeon\n",
			want:  `ingest.source must be one of serial, tcp, sim, got "pigeon"`,
		},
		{
			name:  "TCPNeedsAddr",
			extra: "ingest:\n  source: tcp\n",
			want:  "ingest.tcp_addr is required when ingest.source is 'tcp'",
		},
		{
			name:  "SimNeedsScenario",
			extra: "ingest:\n  source: sim\n",
			want:  "sim.scenario is required when ingest.source is 'sim'",
		},
		{
			name:  "FieldBoundBelowLineBound",
			extra: "ingest:\n  max_field_bytes: 300\n",
			want:  "ingest.max_field_bytes 300 must be smaller than ingest.max_line_bytes 256",
		},
		{
			name:  "StartMapOutOfRange",
			extra: "start_map: 5\n",
			want:  "start_map 5 is out of range (1 maps)",
		},
		{
			name: "BadLineColor",
			body: mapsBody + "display:\n  dest: \"10.0.0.2:4242\"\n  line_color: chartreuse\n",
			want: `display.line_color: unknown color "chartreuse"`,
		},
		{
			name:  "BadWiFiMode",
			extra: "wifi:\n  mode: mesh\n",
			want:  `wifi.mode must be one of off, ap, client, got "mesh"`,
		},
		{
			name:  "ClientNeedsSSID",
			extra: "wifi:\n  mode: client\n  ssid: \"\"\n",
			want:  `wifi.ssid is required when wifi.mode is "client"`,
		},
		{
			name:  "SSIDControlChars",
			extra: "wifi:\n  ssid: \"bad\\nssid\"\n",
			want:  "wifi.ssid must not contain control characters",
		},
		{
			name:  "ShortPassword",
			extra: "wifi:\n  mode: ap\n  password: \"abc\"\n",
			want:  "wifi.password must be 8-63 characters, got 3",
		},
		{
			name:  "BadAPIP",
			extra: "wifi:\n  mode: ap\n  ap_ip: \"nope\"\n",
			want:  `wifi.ap_ip "nope" is not a valid IPv4 address`,
		},
		{
			name: "BadMapBounds",
			body: "display:\n  dest: \"10.0.0.2:4242\"\nmaps:\n  - name: flip\n    width_px: 10\n    height_px: 10\n    tile_size: 8\n    west: -113.3\n    east: -113.7\n    south: 53.4\n    north: 53.65\n",
			want: "maps[0]: west -113.3 must be less than east -113.7",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			body := tc.body
			if body == "" {
				body = minimalBody + tc.extra
			}
			_, err := Load(writeTempConfig(t, body))
			requireErrEq(t, err, tc.want)
		})
	}
}

func TestLoad_DestRequiredWithoutAP(t *testing.T) {
	body := `maps:
  - name: city
    width_px: 1000
    height_px: 2000
    tile_size: 64
    west: -113.7
    east: -113.3
    south: 53.4
    north: 53.65
`
	_, err := Load(writeTempConfig(t, body))
	requireErrEq(t, err, "display.dest is required when wifi.mode is not 'ap'")

	// AP mode derives the broadcast dest, so empty dest is fine.
	cfg, err := Load(writeTempConfig(t, body+"wifi:\n  mode: ap\n"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Display.Dest != "" {
		t.Fatalf("dest=%q want empty", cfg.Display.Dest)
	}
}

func TestSave_RoundTrip(t *testing.T) {
	cfg, err := Load(writeTempConfig(t, minimalBody))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	path := filepath.Join(t.TempDir(), "saved.yaml")
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load() after Save error: %v", err)
	}
	if !reflect.DeepEqual(cfg, got) {
		t.Fatalf("round trip mismatch:\nbefore %+v\nafter  %+v", cfg, got)
	}
}
