// Package config loads and validates the device configuration. Load
// overlays the YAML file onto a defaults struct, so absent keys keep
// their defaults; unknown keys are rejected so typos fail at boot.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"ronald-ng/internal/display"
)

type Config struct {
	DeviceName string         `yaml:"device_name"`
	Serial     SerialConfig   `yaml:"serial"`
	Ingest     IngestConfig   `yaml:"ingest"`
	Feeder     FeederConfig   `yaml:"feeder"`
	Maps       []MapConfig    `yaml:"maps"`
	StartMap   int            `yaml:"start_map"`
	Viewport   ViewportConfig `yaml:"viewport"`
	Tiles      TilesConfig    `yaml:"tiles"`
	Display    DisplayConfig  `yaml:"display"`
	Input      InputConfig    `yaml:"input"`
	WiFi       WiFiConfig     `yaml:"wifi"`
	Web        WebConfig      `yaml:"web"`
	Sim        SimConfig      `yaml:"sim"`
}

type SerialConfig struct {
	Device string `yaml:"device"`
	Baud   int    `yaml:"baud"`
}

type IngestConfig struct {
	Source           string       `yaml:"source"`
	TCPAddr          string       `yaml:"tcp_addr"`
	ReconnectSeconds int          `yaml:"reconnect_seconds"`
	MaxLineBytes     int          `yaml:"max_line_bytes"`
	MaxFieldBytes    int          `yaml:"max_field_bytes"`
	Memory           MemoryConfig `yaml:"memory"`
}

type MemoryConfig struct {
	ReserveBytes     int `yaml:"reserve_bytes"`
	FixedBudgetBytes int `yaml:"fixed_budget_bytes"`
}

type FeederConfig struct {
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
}

type MapConfig struct {
	Name     string  `yaml:"name"`
	WidthPx  int32   `yaml:"width_px"`
	HeightPx int32   `yaml:"height_px"`
	TileSize int32   `yaml:"tile_size"`
	West     float64 `yaml:"west"`
	East     float64 `yaml:"east"`
	South    float64 `yaml:"south"`
	North    float64 `yaml:"north"`
}

type ViewportConfig struct {
	Width        int32 `yaml:"width"`
	Height       int32 `yaml:"height"`
	PanStep      int32 `yaml:"pan_step"`
	CenterOnPath bool  `yaml:"center_on_path"`
}

type TilesConfig struct {
	Dir             string `yaml:"dir"`
	CacheTiles      int    `yaml:"cache_tiles"`
	CacheTTLSeconds int    `yaml:"cache_ttl_seconds"`
}

type DisplayConfig struct {
	Dest           string `yaml:"dest"`
	RefreshSeconds int    `yaml:"refresh_seconds"`
	RecordPath     string `yaml:"record_path"`
	Background     string `yaml:"background"`
	LineColor      string `yaml:"line_color"`
}

type InputConfig struct {
	Enabled    bool       `yaml:"enabled"`
	DebounceMs int        `yaml:"debounce_ms"`
	Pins       PinsConfig `yaml:"pins"`
}

type PinsConfig struct {
	Up      int `yaml:"up"`
	Down    int `yaml:"down"`
	Left    int `yaml:"left"`
	Right   int `yaml:"right"`
	ZoomIn  int `yaml:"zoom_in"`
	ZoomOut int `yaml:"zoom_out"`
}

type WiFiConfig struct {
	Mode     string `yaml:"mode"`
	SSID     string `yaml:"ssid"`
	Password string `yaml:"password"`
	APIP     string `yaml:"ap_ip"`
}

type WebConfig struct {
	Listen string `yaml:"listen"`
}

type SimConfig struct {
	Scenario string `yaml:"scenario"`
}

// Defaults is the configuration of a bare device: serial ingest, buttons
// on the usual pins, AP wifi off, web UI on :8080. Maps must come from
// the file; there is no sane default map.
func Defaults() Config {
	return Config{
		DeviceName: "ronald-ng",
		Serial: SerialConfig{
			Baud: 115200,
		},
		Ingest: IngestConfig{
			Source:           "serial",
			ReconnectSeconds: 5,
			MaxLineBytes:     256,
			MaxFieldBytes:    20,
			Memory: MemoryConfig{
				ReserveBytes: 256,
			},
		},
		Viewport: ViewportConfig{
			Width:        128,
			Height:       160,
			PanStep:      16,
			CenterOnPath: true,
		},
		Tiles: TilesConfig{
			Dir:             "./tiles",
			CacheTiles:      64,
			CacheTTLSeconds: 300,
		},
		Display: DisplayConfig{
			RefreshSeconds: 1,
			Background:     "black",
			LineColor:      "red",
		},
		Input: InputConfig{
			Enabled:    true,
			DebounceMs: 30,
			Pins: PinsConfig{
				Up:      5,
				Down:    6,
				Left:    13,
				Right:   19,
				ZoomIn:  26,
				ZoomOut: 21,
			},
		},
		WiFi: WiFiConfig{
			Mode: "off",
			SSID: "ronald-nav",
			APIP: "192.168.10.1",
		},
		Web: WebConfig{
			Listen: ":8080",
		},
	}
}

func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Defaults()
	if err := decodeStrict(b, &cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decodeStrict(b []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			// An empty file is just the defaults.
			return nil
		}
		var te *yaml.TypeError
		if errors.As(err, &te) && len(te.Errors) > 0 {
			msg := te.Errors[0]
			if strings.HasPrefix(msg, "line ") {
				if i := strings.Index(msg, ": "); i >= 0 {
					msg = msg[i+2:]
				}
			}
			return fmt.Errorf("config contains unknown fields: %s", msg)
		}
		return err
	}
	return nil
}

// Save writes cfg atomically next to path: marshal, temp file, rename.
func Save(path string, cfg Config) error {
	b, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".ronald-*.yaml")
	if err != nil {
		return fmt.Errorf("create temp config: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp config: %w", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("chmod temp config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp config: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename config: %w", err)
	}
	return nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.DeviceName) == "" {
		return fmt.Errorf("device_name is required")
	}
	if c.Serial.Baud <= 0 {
		return fmt.Errorf("serial.baud must be > 0, got %d", c.Serial.Baud)
	}

	switch c.Ingest.Source {
	case "serial", "tcp", "sim":
	default:
		return fmt.Errorf("ingest.source must be one of serial, tcp, sim, got %q", c.Ingest.Source)
	}
	if c.Ingest.Source == "tcp" && strings.TrimSpace(c.Ingest.TCPAddr) == "" {
		return fmt.Errorf("ingest.tcp_addr is required when ingest.source is 'tcp'")
	}
	if c.Ingest.Source == "sim" && strings.TrimSpace(c.Sim.Scenario) == "" {
		return fmt.Errorf("sim.scenario is required when ingest.source is 'sim'")
	}
	if c.Ingest.ReconnectSeconds < 0 {
		return fmt.Errorf("ingest.reconnect_seconds must be >= 0, got %d", c.Ingest.ReconnectSeconds)
	}
	if c.Ingest.MaxLineBytes <= 0 {
		return fmt.Errorf("ingest.max_line_bytes must be > 0, got %d", c.Ingest.MaxLineBytes)
	}
	if c.Ingest.MaxFieldBytes <= 0 {
		return fmt.Errorf("ingest.max_field_bytes must be > 0, got %d", c.Ingest.MaxFieldBytes)
	}
	if c.Ingest.MaxFieldBytes >= c.Ingest.MaxLineBytes {
		return fmt.Errorf("ingest.max_field_bytes %d must be smaller than ingest.max_line_bytes %d",
			c.Ingest.MaxFieldBytes, c.Ingest.MaxLineBytes)
	}
	if c.Ingest.Memory.ReserveBytes < 0 {
		return fmt.Errorf("ingest.memory.reserve_bytes must be >= 0, got %d", c.Ingest.Memory.ReserveBytes)
	}
	if c.Ingest.Memory.FixedBudgetBytes < 0 {
		return fmt.Errorf("ingest.memory.fixed_budget_bytes must be >= 0, got %d", c.Ingest.Memory.FixedBudgetBytes)
	}

	if c.Feeder.Command == "" && len(c.Feeder.Args) > 0 {
		return fmt.Errorf("feeder.args requires feeder.command")
	}

	if len(c.Maps) == 0 {
		return fmt.Errorf("maps requires at least one entry")
	}
	seen := map[string]bool{}
	for i, m := range c.Maps {
		if strings.TrimSpace(m.Name) == "" {
			return fmt.Errorf("maps[%d].name is required", i)
		}
		if seen[m.Name] {
			return fmt.Errorf("maps[%d].name %q is duplicated", i, m.Name)
		}
		seen[m.Name] = true
		if m.WidthPx <= 0 {
			return fmt.Errorf("maps[%d].width_px must be > 0, got %d", i, m.WidthPx)
		}
		if m.HeightPx <= 0 {
			return fmt.Errorf("maps[%d].height_px must be > 0, got %d", i, m.HeightPx)
		}
		if m.TileSize <= 0 {
			return fmt.Errorf("maps[%d].tile_size must be > 0, got %d", i, m.TileSize)
		}
		if m.West >= m.East {
			return fmt.Errorf("maps[%d]: west %v must be less than east %v", i, m.West, m.East)
		}
		if m.South >= m.North {
			return fmt.Errorf("maps[%d]: south %v must be less than north %v", i, m.South, m.North)
		}
	}
	if c.StartMap < 0 || c.StartMap >= len(c.Maps) {
		return fmt.Errorf("start_map %d is out of range (%d maps)", c.StartMap, len(c.Maps))
	}

	if c.Viewport.Width <= 0 {
		return fmt.Errorf("viewport.width must be > 0, got %d", c.Viewport.Width)
	}
	if c.Viewport.Height <= 0 {
		return fmt.Errorf("viewport.height must be > 0, got %d", c.Viewport.Height)
	}
	if c.Viewport.PanStep <= 0 {
		return fmt.Errorf("viewport.pan_step must be > 0, got %d", c.Viewport.PanStep)
	}

	if c.Tiles.CacheTiles < 0 {
		return fmt.Errorf("tiles.cache_tiles must be >= 0, got %d", c.Tiles.CacheTiles)
	}
	if c.Tiles.CacheTTLSeconds < 0 {
		return fmt.Errorf("tiles.cache_ttl_seconds must be >= 0, got %d", c.Tiles.CacheTTLSeconds)
	}

	if c.Display.RefreshSeconds < 0 {
		return fmt.Errorf("display.refresh_seconds must be >= 0, got %d", c.Display.RefreshSeconds)
	}
	if _, err := display.ParseColor(c.Display.Background); err != nil {
		return fmt.Errorf("display.background: %v", err)
	}
	if _, err := display.ParseColor(c.Display.LineColor); err != nil {
		return fmt.Errorf("display.line_color: %v", err)
	}
	if c.Display.Dest != "" {
		if _, _, err := net.SplitHostPort(c.Display.Dest); err != nil {
			return fmt.Errorf("display.dest %q must be host:port", c.Display.Dest)
		}
	} else if c.WiFi.Mode != "ap" {
		return fmt.Errorf("display.dest is required when wifi.mode is not 'ap'")
	}

	if c.Input.DebounceMs < 0 {
		return fmt.Errorf("input.debounce_ms must be >= 0, got %d", c.Input.DebounceMs)
	}
	pins := []struct {
		name string
		v    int
	}{
		{"up", c.Input.Pins.Up}, {"down", c.Input.Pins.Down},
		{"left", c.Input.Pins.Left}, {"right", c.Input.Pins.Right},
		{"zoom_in", c.Input.Pins.ZoomIn}, {"zoom_out", c.Input.Pins.ZoomOut},
	}
	for _, p := range pins {
		if p.v < 0 {
			return fmt.Errorf("input.pins.%s must be >= 0, got %d", p.name, p.v)
		}
	}

	switch c.WiFi.Mode {
	case "off", "ap", "client":
	default:
		return fmt.Errorf("wifi.mode must be one of off, ap, client, got %q", c.WiFi.Mode)
	}
	if hasControlChars(c.WiFi.SSID) {
		return fmt.Errorf("wifi.ssid must not contain control characters")
	}
	if hasControlChars(c.WiFi.Password) {
		return fmt.Errorf("wifi.password must not contain control characters")
	}
	if c.WiFi.Mode != "off" {
		if strings.TrimSpace(c.WiFi.SSID) == "" {
			return fmt.Errorf("wifi.ssid is required when wifi.mode is %q", c.WiFi.Mode)
		}
		if c.WiFi.Password != "" && (len(c.WiFi.Password) < 8 || len(c.WiFi.Password) > 63) {
			return fmt.Errorf("wifi.password must be 8-63 characters, got %d", len(c.WiFi.Password))
		}
	}
	if c.WiFi.Mode == "ap" {
		ip := net.ParseIP(c.WiFi.APIP)
		if ip == nil || ip.To4() == nil {
			return fmt.Errorf("wifi.ap_ip %q is not a valid IPv4 address", c.WiFi.APIP)
		}
	}

	if strings.TrimSpace(c.Web.Listen) == "" {
		return fmt.Errorf("web.listen is required")
	}
	if _, _, err := net.SplitHostPort(c.Web.Listen); err != nil {
		return fmt.Errorf("web.listen %q must be host:port or :port", c.Web.Listen)
	}

	return nil
}

func hasControlChars(s string) bool {
	for _, r := range s {
		if r < 0x20 || r == 0x7F {
			return true
		}
	}
	return false
}
