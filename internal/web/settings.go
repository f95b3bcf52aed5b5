package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"ronald-ng/internal/config"
)

// SettingsPayload is the GET schema: the subset of the config the UI may
// edit at runtime. Everything else requires editing the YAML file.
type SettingsPayload struct {
	DisplayDest  string `json:"display_dest"`
	Background   string `json:"background"`
	LineColor    string `json:"line_color"`
	StartMap     int    `json:"start_map"`
	CenterOnPath bool   `json:"center_on_path"`
	SimScenario  string `json:"sim_scenario"`
}

// settingsIn mirrors SettingsPayload for POST. All keys are required (no
// partial updates) so a stale UI cannot silently reset fields it never saw.
type settingsIn struct {
	DisplayDest  string
	Background   string
	LineColor    string
	StartMap     int
	CenterOnPath bool
	SimScenario  string
}

var settingsPostKeys = []string{
	"display_dest",
	"background",
	"line_color",
	"start_map",
	"center_on_path",
	"sim_scenario",
}

// decodeSettingsStrict walks the JSON token stream once, rejecting unknown
// keys, duplicate keys, nulls and trailing data, then unmarshals each
// collected value into its typed field.
func decodeSettingsStrict(body []byte) (settingsIn, error) {
	var out settingsIn

	allowed := make(map[string]bool, len(settingsPostKeys))
	for _, k := range settingsPostKeys {
		allowed[k] = true
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	tok, err := dec.Token()
	if err != nil {
		return out, fmt.Errorf("invalid json: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return out, errors.New("invalid json: expected object")
	}

	raw := make(map[string]json.RawMessage, len(settingsPostKeys))
	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			return out, fmt.Errorf("invalid json: %w", err)
		}
		key, ok := kt.(string)
		if !ok {
			return out, errors.New("invalid json: expected string key")
		}
		if !allowed[key] {
			return out, fmt.Errorf("invalid json: unknown key %q", key)
		}
		if _, dup := raw[key]; dup {
			return out, fmt.Errorf("invalid json: duplicate key %q", key)
		}
		var v json.RawMessage
		if err := dec.Decode(&v); err != nil {
			return out, fmt.Errorf("invalid json: %w", err)
		}
		if string(bytes.TrimSpace(v)) == "null" {
			return out, fmt.Errorf("invalid json: %q cannot be null", key)
		}
		raw[key] = v
	}
	if _, err := dec.Token(); err != nil {
		return out, fmt.Errorf("invalid json: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return out, errors.New("invalid json: trailing data")
	}

	for _, k := range settingsPostKeys {
		if _, ok := raw[k]; !ok {
			return out, fmt.Errorf("invalid json: missing required key %q", k)
		}
	}

	fields := []struct {
		key string
		dst any
	}{
		{"display_dest", &out.DisplayDest},
		{"background", &out.Background},
		{"line_color", &out.LineColor},
		{"start_map", &out.StartMap},
		{"center_on_path", &out.CenterOnPath},
		{"sim_scenario", &out.SimScenario},
	}
	for _, f := range fields {
		if err := json.Unmarshal(raw[f.key], f.dst); err != nil {
			return out, fmt.Errorf("invalid json: key %q: %w", f.key, err)
		}
	}
	return out, nil
}

func configToSettingsPayload(cfg config.Config) SettingsPayload {
	return SettingsPayload{
		DisplayDest:  cfg.Display.Dest,
		Background:   cfg.Display.Background,
		LineColor:    cfg.Display.LineColor,
		StartMap:     cfg.StartMap,
		CenterOnPath: cfg.Viewport.CenterOnPath,
		SimScenario:  cfg.Sim.Scenario,
	}
}

// applySettings copies the payload onto cfg. Range and color checks happen
// in cfg.Validate afterwards, so bad values never reach Apply or disk.
func applySettings(cfg *config.Config, in settingsIn) {
	cfg.Display.Dest = strings.TrimSpace(in.DisplayDest)
	cfg.Display.Background = strings.TrimSpace(in.Background)
	cfg.Display.LineColor = strings.TrimSpace(in.LineColor)
	cfg.StartMap = in.StartMap
	cfg.Viewport.CenterOnPath = in.CenterOnPath
	cfg.Sim.Scenario = strings.TrimSpace(in.SimScenario)
}

// SettingsStore reads and writes the device config file for the UI.
type SettingsStore struct {
	ConfigPath string
	// Apply, when set, is called after validation and before saving so the
	// new settings take effect immediately. An Apply error aborts the save;
	// a save error rolls Apply back to the previous config.
	Apply func(cfg config.Config) error
}

func (s SettingsStore) load() (config.Config, error) {
	return config.Load(s.ConfigPath)
}

func (s SettingsStore) save(cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	return config.Save(s.ConfigPath, cfg)
}

func (s SettingsStore) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.TrimSpace(s.ConfigPath) == "" {
			http.Error(w, "settings not available (no config path)", http.StatusNotImplemented)
			return
		}

		switch r.Method {
		case http.MethodGet:
			cfg, err := s.load()
			if err != nil {
				http.Error(w, fmt.Sprintf("load failed: %v", err), http.StatusInternalServerError)
				return
			}
			writeJSON(w, configToSettingsPayload(cfg))

		case http.MethodPost:
			if ct := strings.TrimSpace(r.Header.Get("Content-Type")); ct != "application/json" {
				http.Error(w, "content-type must be application/json", http.StatusUnsupportedMediaType)
				return
			}

			// Settings are tiny; cap the body to keep reads bounded.
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
			body, err := io.ReadAll(r.Body)
			if err != nil {
				http.Error(w, fmt.Sprintf("read failed: %v", err), http.StatusBadRequest)
				return
			}
			in, err := decodeSettingsStrict(body)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}

			oldCfg, err := s.load()
			if err != nil {
				http.Error(w, fmt.Sprintf("load failed: %v", err), http.StatusInternalServerError)
				return
			}

			cfg := oldCfg
			applySettings(&cfg, in)
			if err := cfg.Validate(); err != nil {
				http.Error(w, fmt.Sprintf("invalid settings: %v", err), http.StatusBadRequest)
				return
			}

			if s.Apply != nil {
				if err := s.Apply(cfg); err != nil {
					http.Error(w, fmt.Sprintf("apply failed: %v", err), http.StatusBadRequest)
					return
				}
			}

			if err := s.save(cfg); err != nil {
				// Keep runtime consistent with disk.
				if s.Apply != nil {
					_ = s.Apply(oldCfg)
				}
				http.Error(w, fmt.Sprintf("save failed: %v", err), http.StatusInternalServerError)
				return
			}

			writeJSON(w, configToSettingsPayload(cfg))

		default:
			w.Header().Set("Allow", "GET, POST")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})
}
