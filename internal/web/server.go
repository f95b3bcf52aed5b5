package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"ronald-ng/internal/input"
	"ronald-ng/internal/metrics"
	"ronald-ng/internal/wifi"
)

//go:embed assets/*
var embeddedAssets embed.FS

// MapInfo describes one configured map for /api/maps.
type MapInfo struct {
	Name     string  `json:"name"`
	WidthPx  int32   `json:"width_px"`
	HeightPx int32   `json:"height_px"`
	TileSize int32   `json:"tile_size"`
	West     float64 `json:"west"`
	East     float64 `json:"east"`
	South    float64 `json:"south"`
	North    float64 `json:"north"`
}

type MapsResponse struct {
	Active int       `json:"active"`
	Maps   []MapInfo `json:"maps"`
}

// Config wires the web handler to the rest of the device. Nil hooks
// disable their endpoints rather than failing at startup, so a partial
// wiring (tests, headless builds) still serves the rest of the API.
type Config struct {
	Status   *Status
	Settings SettingsStore
	Logs     *LogBuffer
	// Maps backs /api/maps; nil serves an empty list.
	Maps func() MapsResponse
	// Control feeds view actions into the same queue as the hardware
	// buttons; nil disables /api/view/pan and /api/view/zoom.
	Control func(input.Action) error
	// WiFiStatus and WiFiApply back /api/wifi; nil disables each method.
	WiFiStatus func() (wifi.Status, error)
	WiFiApply  func(mode, ssid, password string) error
}

func writeJSON(w http.ResponseWriter, v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		http.Error(w, "marshal failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(b)
	_, _ = w.Write([]byte("\n"))
}

// decodeJSONBody strictly decodes a small POST body into dst. On failure
// it writes the error response itself and returns a non-nil error so the
// caller can just return.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) error {
	if ct := strings.TrimSpace(r.Header.Get("Content-Type")); ct != "application/json" {
		http.Error(w, "content-type must be application/json", http.StatusUnsupportedMediaType)
		return errors.New("bad content type")
	}
	r.Body = http.MaxBytesReader(w, r.Body, 64<<10)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		http.Error(w, fmt.Sprintf("invalid json: %v", err), http.StatusBadRequest)
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		http.Error(w, "invalid json: trailing data", http.StatusBadRequest)
		return errors.New("trailing data")
	}
	return nil
}

func panAction(dir string) (input.Action, bool) {
	switch dir {
	case "up":
		return input.ActionPanUp, true
	case "down":
		return input.ActionPanDown, true
	case "left":
		return input.ActionPanLeft, true
	case "right":
		return input.ActionPanRight, true
	}
	return 0, false
}

func zoomAction(dir string) (input.Action, bool) {
	switch dir {
	case "in":
		return input.ActionZoomIn, true
	case "out":
		return input.ActionZoomOut, true
	}
	return 0, false
}

func Handler(cfg Config) http.Handler {
	status := cfg.Status
	if status == nil {
		status = NewStatus()
	}

	mux := http.NewServeMux()

	assetsFS, err := fs.Sub(embeddedAssets, "assets")
	if err != nil {
		// Should never happen; keep the API usable without the UI.
		assetsFS = nil
	}

	mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, status.Snapshot(time.Now().UTC()))
	})

	// View control. These inject the same actions the hardware buttons
	// produce, so web and GPIO presses take one code path.
	viewHandler := func(parse func(string) (input.Action, bool)) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				w.Header().Set("Allow", http.MethodPost)
				http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
				return
			}
			if cfg.Control == nil {
				http.Error(w, "view control unavailable", http.StatusNotFound)
				return
			}
			var body struct {
				Direction string `json:"direction"`
			}
			if err := decodeJSONBody(w, r, &body); err != nil {
				return
			}
			act, ok := parse(strings.TrimSpace(body.Direction))
			if !ok {
				http.Error(w, fmt.Sprintf("unknown direction %q", body.Direction), http.StatusBadRequest)
				return
			}
			if err := cfg.Control(act); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte("{\"ok\":true}\n"))
		}
	}
	mux.HandleFunc("/api/view/pan", viewHandler(panAction))
	mux.HandleFunc("/api/view/zoom", viewHandler(zoomAction))

	mux.HandleFunc("/api/maps", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		resp := MapsResponse{Maps: []MapInfo{}}
		if cfg.Maps != nil {
			resp = cfg.Maps()
			if resp.Maps == nil {
				resp.Maps = []MapInfo{}
			}
		}
		writeJSON(w, resp)
	})

	// Scenario list for the settings UI.
	// Returns paths like "./configs/scenarios/loop.yaml".
	mux.HandleFunc("/api/scenarios", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		base := filepath.FromSlash("configs/scenarios")
		entries, err := os.ReadDir(base)
		if err != nil {
			// No scenarios directory on this install; empty list.
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte("{\"paths\":[]}\n"))
			return
		}

		paths := make([]string, 0, len(entries))
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			name := e.Name()
			lower := strings.ToLower(name)
			if !strings.HasSuffix(lower, ".yaml") && !strings.HasSuffix(lower, ".yml") {
				continue
			}
			// Keep values stable across platforms and consistent with the
			// config examples.
			paths = append(paths, "./configs/scenarios/"+name)
		}
		sort.Strings(paths)

		writeJSON(w, struct {
			Paths []string `json:"paths"`
		}{Paths: paths})
	})

	mux.Handle("/api/settings", cfg.Settings.Handler())

	if cfg.Logs != nil {
		mux.Handle("/api/logs", cfg.Logs.Handler())
	}

	mux.HandleFunc("/api/wifi", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			if cfg.WiFiStatus == nil {
				http.Error(w, "wifi status unavailable", http.StatusNotFound)
				return
			}
			st, err := cfg.WiFiStatus()
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			writeJSON(w, st)
		case http.MethodPost:
			if cfg.WiFiApply == nil {
				http.Error(w, "wifi control unavailable", http.StatusNotFound)
				return
			}
			var body struct {
				Mode     string `json:"mode"`
				SSID     string `json:"ssid"`
				Password string `json:"password"`
			}
			if err := decodeJSONBody(w, r, &body); err != nil {
				return
			}
			if strings.TrimSpace(body.Mode) == "" {
				http.Error(w, "mode is required", http.StatusBadRequest)
				return
			}
			if err := cfg.WiFiApply(body.Mode, body.SSID, body.Password); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte("{\"ok\":true}\n"))
		default:
			w.Header().Set("Allow", "GET, POST")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})

	mux.Handle("/api/wifi/scan", WiFiScanHandler())

	mux.Handle("/api/about", AboutHandler())

	mux.Handle("/metrics", metrics.Handler())

	if assetsFS != nil {
		fileServer := http.FileServer(http.FS(assetsFS))
		mux.Handle("/assets/", http.StripPrefix("/assets/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Prevent stale UI assets during development.
			w.Header().Set("Cache-Control", "no-store")
			fileServer.ServeHTTP(w, r)
		})))
	}

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		// SPA shell: serve the UI for / and unknown paths, but keep 404s
		// for misses under /api/ and /assets/.
		if r.URL.Path != "/" {
			if path.Dir(r.URL.Path) == "/api" || path.Dir(r.URL.Path) == "/assets" {
				http.NotFound(w, r)
				return
			}
		}

		if assetsFS == nil {
			snap := status.Snapshot(time.Now().UTC())
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = fmt.Fprintf(w, "<!doctype html><html><head><meta charset=\"utf-8\"><title>ronald-ng</title></head><body>")
			_, _ = fmt.Fprintf(w, "<h1>ronald-ng</h1>")
			_, _ = fmt.Fprintf(w, "<p>Web UI is unavailable. Use <a href=\"/api/status\">/api/status</a>.</p>")
			_, _ = fmt.Fprintf(w, "<pre>device=%s\nframes_drawn_total=%d\nlast_draw_utc=%s</pre>",
				snap.DeviceName, snap.FramesDrawnTotal, snap.LastDrawUTC,
			)
			_, _ = fmt.Fprintf(w, "</body></html>")
			return
		}

		b, err := fs.ReadFile(assetsFS, "index.html")
		if err != nil {
			http.Error(w, "ui unavailable", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(b)
	})

	return mux
}

func Serve(ctx context.Context, listenAddr string, cfg Config) error {
	if cfg.Status == nil {
		cfg.Status = NewStatus()
	}

	srv := &http.Server{
		Addr:              listenAddr,
		Handler:           Handler(cfg),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       30 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MiB
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
