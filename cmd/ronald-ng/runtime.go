package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/paulmach/orb"

	"ronald-ng/internal/config"
	"ronald-ng/internal/display"
	"ronald-ng/internal/drawlog"
	"ronald-ng/internal/ingest"
	"ronald-ng/internal/input"
	"ronald-ng/internal/mapview"
	"ronald-ng/internal/meminfo"
	"ronald-ng/internal/metrics"
	"ronald-ng/internal/navpath"
	"ronald-ng/internal/render"
	"ronald-ng/internal/sim"
	"ronald-ng/internal/tiles"
	"ronald-ng/internal/web"
	"ronald-ng/internal/wifi"
)

// defaultDisplayPort is appended when the display destination is derived
// from the AP network instead of configured explicitly.
const defaultDisplayPort = "4242"

// deviceRuntime owns every service and the draw loop. The web handlers
// reach into it through webConfig, so the mutable view state lives behind
// mu; the services themselves are fixed after construction and swap only
// through Apply.
type deviceRuntime struct {
	configPath string
	baseCtx    context.Context

	status *web.Status
	budget meminfo.Budget
	maps   mapview.Set
	tiles  *tiles.Store

	ingestSvc *ingest.Service
	feeder    *ingest.Feeder
	inputSvc  *input.Service

	// simPaths carries scripted deliveries; nil unless the source is sim.
	// The channel itself never changes, only the goroutine feeding it.
	simPaths  chan navpath.Path
	simCancel context.CancelFunc

	webActions chan input.Action
	ticker     *time.Ticker

	mu       sync.Mutex
	cfg      config.Config
	view     mapview.Viewport
	path     navpath.Path
	sink     *display.UDPSink
	tap      func(frame []byte)
	recorder *drawlog.Writer
	bg       uint16
	line     uint16
}

func newDeviceRuntime(ctx context.Context, cfg config.Config, configPath string, status *web.Status) (*deviceRuntime, error) {
	if status == nil {
		return nil, fmt.Errorf("status is nil")
	}

	maps := mapsFromConfig(cfg)
	if err := maps.Validate(); err != nil {
		return nil, err
	}

	bg, err := display.ParseColor(cfg.Display.Background)
	if err != nil {
		return nil, fmt.Errorf("display.background: %w", err)
	}
	line, err := display.ParseColor(cfg.Display.LineColor)
	if err != nil {
		return nil, fmt.Errorf("display.line_color: %w", err)
	}

	r := &deviceRuntime{
		configPath: configPath,
		baseCtx:    ctx,
		status:     status,
		budget: meminfo.Budget{
			Reserve: uint64(cfg.Ingest.Memory.ReserveBytes),
			Fixed:   uint64(cfg.Ingest.Memory.FixedBudgetBytes),
		},
		maps:       maps,
		webActions: make(chan input.Action, 8),
		cfg:        cfg,
		bg:         bg,
		line:       line,
	}

	// Boot on the configured map, centered.
	start := maps.Maps[cfg.StartMap]
	v := mapview.Viewport{
		MapIndex: cfg.StartMap,
		X:        (start.WidthPx - cfg.Viewport.Width) / 2,
		Y:        (start.HeightPx - cfg.Viewport.Height) / 2,
		Width:    cfg.Viewport.Width,
		Height:   cfg.Viewport.Height,
	}
	r.view = mapview.Clamp(start, v)

	// Optional draw-stream recording taps every framed datagram.
	if p := strings.TrimSpace(cfg.Display.RecordPath); p != "" {
		w, err := drawlog.CreateWriter(p)
		if err != nil {
			return nil, fmt.Errorf("record log: %w", err)
		}
		r.recorder = w
		r.tap = func(frame []byte) {
			if err := w.WriteFrame(time.Now().UTC(), frame); err != nil {
				log.Printf("record log write failed: %v", err)
			}
		}
		log.Printf("recording draw stream path=%s", p)
	}

	dest, err := displayDest(cfg)
	if err != nil {
		r.Close()
		return nil, err
	}
	sink, err := display.NewUDPSink(display.UDPSinkConfig{Dest: dest, Tap: r.tap})
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("display sink init failed: %w", err)
	}
	r.sink = sink
	log.Printf("display dest=%s", dest)

	r.tiles = tiles.NewStore(tiles.StoreConfig{
		Dir:        cfg.Tiles.Dir,
		CacheTiles: cfg.Tiles.CacheTiles,
		TTL:        time.Duration(cfg.Tiles.CacheTTLSeconds) * time.Second,
	})

	// Path source: a real link or scripted playback.
	switch cfg.Ingest.Source {
	case "sim":
		sc, err := loadScenario(cfg.Sim.Scenario)
		if err != nil {
			r.Close()
			return nil, err
		}
		r.simPaths = make(chan navpath.Path, 1)
		r.startScenario(ctx, sc)
	default:
		svc, err := ingest.New(ingest.Config{
			Enable:         true,
			Source:         cfg.Ingest.Source,
			Device:         cfg.Serial.Device,
			Baud:           cfg.Serial.Baud,
			Addr:           cfg.Ingest.TCPAddr,
			MaxLine:        cfg.Ingest.MaxLineBytes,
			MaxField:       cfg.Ingest.MaxFieldBytes,
			MaxPoints:      func() int { return r.budget.MaxPoints(navpath.PointSize) },
			ReconnectDelay: time.Duration(cfg.Ingest.ReconnectSeconds) * time.Second,
		})
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("ingest init failed: %w", err)
		}
		if err := svc.Start(ctx); err != nil {
			svc.Close()
			r.Close()
			return nil, fmt.Errorf("ingest start failed: %w", err)
		}
		r.ingestSvc = svc
	}

	// Optional feeder supervision.
	if cmd := strings.TrimSpace(cfg.Feeder.Command); cmd != "" {
		f, err := ingest.NewFeeder(ingest.FeederConfig{
			Command: cmd,
			Args:    cfg.Feeder.Args,
			Restart: true,
		})
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("feeder init failed: %w", err)
		}
		if err := f.Start(ctx); err != nil {
			// The device still draws without its feeder.
			log.Printf("feeder start failed: %v", err)
		}
		r.feeder = f
	}

	// Buttons; the web UI is the fallback when the lines are absent.
	inputSvc := input.New(input.Config{
		Enable: cfg.Input.Enabled,
		Pins: input.Pins{
			Up:      cfg.Input.Pins.Up,
			Down:    cfg.Input.Pins.Down,
			Left:    cfg.Input.Pins.Left,
			Right:   cfg.Input.Pins.Right,
			ZoomIn:  cfg.Input.Pins.ZoomIn,
			ZoomOut: cfg.Input.Pins.ZoomOut,
		},
		Debounce: time.Duration(cfg.Input.DebounceMs) * time.Millisecond,
	})
	if err := inputSvc.Start(ctx); err != nil {
		log.Printf("input init failed: %v", err)
	}
	r.inputSvc = inputSvc

	if err := wifi.Apply(cfg.WiFi.Mode, cfg.WiFi.SSID, cfg.WiFi.Password, cfg.WiFi.APIP); err != nil {
		log.Printf("wifi setup failed: %v", err)
	}

	if cfg.Display.RefreshSeconds > 0 {
		r.ticker = time.NewTicker(time.Duration(cfg.Display.RefreshSeconds) * time.Second)
	}

	r.status.SetProviders(r.providers())
	r.publishView()
	return r, nil
}

// displayDest resolves the frame destination: configured address, or the
// AP network broadcast when the device is its own access point.
func displayDest(cfg config.Config) (string, error) {
	if d := strings.TrimSpace(cfg.Display.Dest); d != "" {
		return d, nil
	}
	bcast, err := wifi.CalculateBroadcastAddress(cfg.WiFi.APIP)
	if err != nil {
		return "", fmt.Errorf("derive display dest: %w", err)
	}
	return net.JoinHostPort(bcast, defaultDisplayPort), nil
}

func loadScenario(path string) (*sim.Scenario, error) {
	script, err := sim.Load(path)
	if err != nil {
		return nil, fmt.Errorf("scenario load failed: %w", err)
	}
	sc, err := sim.NewScenario(script)
	if err != nil {
		return nil, fmt.Errorf("scenario load failed: %w", err)
	}
	return sc, nil
}

func mapsFromConfig(cfg config.Config) mapview.Set {
	out := mapview.Set{Maps: make([]mapview.Map, 0, len(cfg.Maps))}
	for _, mc := range cfg.Maps {
		out.Maps = append(out.Maps, mapview.Map{
			Name:     mc.Name,
			WidthPx:  mc.WidthPx,
			HeightPx: mc.HeightPx,
			TileSize: mc.TileSize,
			Bounds: orb.Bound{
				Min: orb.Point{mc.West, mc.South},
				Max: orb.Point{mc.East, mc.North},
			},
		})
	}
	return out
}

// startScenario feeds scripted paths into simPaths, latest-wins, until the
// scenario ends or scenarioCtx is canceled.
func (r *deviceRuntime) startScenario(ctx context.Context, sc *sim.Scenario) {
	scenarioCtx, cancel := context.WithCancel(ctx)
	r.simCancel = cancel
	ch := r.simPaths
	go func() {
		log.Printf("scenario starting name=%s duration=%s", sc.Name(), sc.Duration())
		err := sc.Run(scenarioCtx, nil, func(p navpath.Path) error {
			metrics.PathsIngested.WithLabelValues("sim").Inc()
			metrics.LastPathPoints.Set(float64(p.Len()))
			metrics.LastPathDistanceMeters.Set(p.Distance())
			for {
				select {
				case <-scenarioCtx.Done():
					return scenarioCtx.Err()
				case ch <- p:
					return nil
				default:
				}
				select {
				case <-ch:
				default:
				}
			}
		})
		if err != nil && scenarioCtx.Err() == nil {
			log.Printf("scenario stopped: %v", err)
			return
		}
		if err == nil {
			log.Printf("scenario finished name=%s", sc.Name())
		}
	}()
}

// run drives the draw loop until ctx is canceled. Every path, button, web
// action, and refresh tick redraws the frame.
func (r *deviceRuntime) run(ctx context.Context) error {
	r.redraw("startup")

	var ingestCh <-chan ingest.Transfer
	if r.ingestSvc != nil {
		ingestCh = r.ingestSvc.Paths()
	}
	var events <-chan input.Action
	if r.inputSvc != nil {
		events = r.inputSvc.Events()
	}
	var tick <-chan time.Time
	if r.ticker != nil {
		tick = r.ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case tr := <-ingestCh:
			log.Printf("path accepted id=%s points=%d", tr.ID, tr.Path.Len())
			r.handlePath(tr.Path)
		case p := <-r.simPaths:
			r.handlePath(p)
		case act := <-events:
			r.handleAction(act)
		case act := <-r.webActions:
			r.handleAction(act)
		case <-tick:
			r.redraw("tick")
		}
	}
}

func (r *deviceRuntime) handlePath(p navpath.Path) {
	r.mu.Lock()
	r.path = p
	if r.cfg.Viewport.CenterOnPath && p.Len() > 0 {
		m := r.maps.Maps[r.view.MapIndex]
		r.view = mapview.CenterOn(m, r.view, p.Points[0])
	}
	r.redrawLocked("path")
	r.mu.Unlock()
}

func (r *deviceRuntime) handleAction(act input.Action) {
	r.mu.Lock()
	m := r.maps.Maps[r.view.MapIndex]
	step := r.cfg.Viewport.PanStep
	switch act {
	case input.ActionPanUp:
		r.view = mapview.Pan(m, r.view, 0, -step)
	case input.ActionPanDown:
		r.view = mapview.Pan(m, r.view, 0, step)
	case input.ActionPanLeft:
		r.view = mapview.Pan(m, r.view, -step, 0)
	case input.ActionPanRight:
		r.view = mapview.Pan(m, r.view, step, 0)
	case input.ActionZoomIn:
		r.view = mapview.Zoom(r.maps, r.view, r.view.MapIndex+1)
	case input.ActionZoomOut:
		r.view = mapview.Zoom(r.maps, r.view, r.view.MapIndex-1)
	}
	r.redrawLocked("action")
	r.mu.Unlock()
}

func (r *deviceRuntime) redraw(reason string) {
	r.mu.Lock()
	r.redrawLocked(reason)
	r.mu.Unlock()
}

// redrawLocked repaints the frame and publishes the view. A failed frame
// is logged and dropped; the next event or tick paints again.
func (r *deviceRuntime) redrawLocked(reason string) {
	if r.sink == nil {
		return
	}
	m := r.maps.Maps[r.view.MapIndex]
	started := time.Now()
	stats, err := render.DrawFrame(r.sink, m, r.view, r.tiles, r.path, r.bg, r.line)
	metrics.RedrawDuration.Observe(time.Since(started).Seconds())
	if err != nil {
		log.Printf("redraw failed reason=%s err=%v", reason, err)
		return
	}
	metrics.FramesDrawn.Inc()
	metrics.SegmentsDrawn.Add(float64(stats.Segments))
	metrics.TilesBlitted.Add(float64(stats.TilesDrawn))
	metrics.TilesMissing.Add(float64(stats.TilesMissing))
	r.status.MarkFrame(time.Now().UTC())
	r.publishViewLocked()
}

func (r *deviceRuntime) publishView() {
	r.mu.Lock()
	r.publishViewLocked()
	r.mu.Unlock()
}

func (r *deviceRuntime) publishViewLocked() {
	m := r.maps.Maps[r.view.MapIndex]
	cx, cy := r.view.CenterPx()
	center := m.Unproject(cx, cy)
	r.status.SetView(web.ViewSnapshot{
		MapIndex:     r.view.MapIndex,
		MapName:      m.Name,
		X:            r.view.X,
		Y:            r.view.Y,
		Width:        r.view.Width,
		Height:       r.view.Height,
		CenterLatDeg: center.LatDegrees(),
		CenterLonDeg: center.LonDegrees(),
	})
}

// providers captures the service pointers directly so a status poll racing
// shutdown reads a closed service's last snapshot instead of a nil field.
func (r *deviceRuntime) providers() web.Providers {
	tilesStore := r.tiles
	inputSvc := r.inputSvc
	p := web.Providers{
		Tiles: func() any { return tilesStore.Snapshot() },
		Input: func() any { return inputSvc.Snapshot() },
		Display: func() any {
			r.mu.Lock()
			defer r.mu.Unlock()
			if r.sink == nil {
				return nil
			}
			return r.sink.Snapshot()
		},
		Memory: func() any {
			return map[string]any{
				"max_points":    r.budget.MaxPoints(navpath.PointSize),
				"reserve_bytes": r.budget.Reserve,
				"fixed_bytes":   r.budget.Fixed,
			}
		},
	}
	if svc := r.ingestSvc; svc != nil {
		p.Ingest = func() any { return svc.Snapshot() }
	}
	if f := r.feeder; f != nil {
		p.Feeder = func() any { return f.Snapshot() }
	}
	return p
}

func (r *deviceRuntime) webConfig(logBuf *web.LogBuffer) web.Config {
	return web.Config{
		Status:     r.status,
		Settings:   web.SettingsStore{ConfigPath: r.configPath, Apply: r.Apply},
		Logs:       logBuf,
		Maps:       r.mapsResponse,
		Control:    r.control,
		WiFiStatus: wifi.GetStatus,
		WiFiApply:  r.applyWiFi,
	}
}

// control feeds a web pan/zoom into the draw loop without blocking the
// handler.
func (r *deviceRuntime) control(act input.Action) error {
	select {
	case r.webActions <- act:
		return nil
	default:
		return fmt.Errorf("control queue full")
	}
}

func (r *deviceRuntime) mapsResponse() web.MapsResponse {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := web.MapsResponse{
		Active: r.view.MapIndex,
		Maps:   make([]web.MapInfo, 0, len(r.maps.Maps)),
	}
	for _, m := range r.maps.Maps {
		out.Maps = append(out.Maps, web.MapInfo{
			Name:     m.Name,
			WidthPx:  m.WidthPx,
			HeightPx: m.HeightPx,
			TileSize: m.TileSize,
			West:     m.Bounds.Min[0],
			East:     m.Bounds.Max[0],
			South:    m.Bounds.Min[1],
			North:    m.Bounds.Max[1],
		})
	}
	return out
}

// Config returns a copy of the running configuration.
func (r *deviceRuntime) Config() config.Config {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cfg
}

func (r *deviceRuntime) applyWiFi(mode, ssid, password string) error {
	r.mu.Lock()
	apIP := r.cfg.WiFi.APIP
	r.mu.Unlock()
	return wifi.Apply(mode, ssid, password, apIP)
}

// Apply takes a validated config from the settings endpoint. Live scope is
// intentionally small: colors, destination, centering, and the scenario.
// Everything structural reports a restart error instead of half-applying.
func (r *deviceRuntime) Apply(next config.Config) error {
	if err := next.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	cur := r.cfg

	if next.Web.Listen != cur.Web.Listen {
		return fmt.Errorf("web.listen requires restart")
	}
	if next.Serial != cur.Serial {
		return fmt.Errorf("serial settings require restart")
	}
	if next.Ingest != cur.Ingest {
		return fmt.Errorf("ingest settings require restart")
	}
	if next.Feeder.Command != cur.Feeder.Command || !stringSlicesEqual(next.Feeder.Args, cur.Feeder.Args) {
		return fmt.Errorf("feeder settings require restart")
	}
	if !mapsEqual(next.Maps, cur.Maps) {
		return fmt.Errorf("maps require restart")
	}
	if next.Viewport.Width != cur.Viewport.Width || next.Viewport.Height != cur.Viewport.Height {
		return fmt.Errorf("viewport size requires restart")
	}
	if next.Tiles != cur.Tiles {
		return fmt.Errorf("tiles settings require restart")
	}
	if next.Input != cur.Input {
		return fmt.Errorf("input settings require restart")
	}
	if next.WiFi != cur.WiFi {
		return fmt.Errorf("wifi settings require restart")
	}
	if next.Display.RefreshSeconds != cur.Display.RefreshSeconds {
		return fmt.Errorf("display.refresh_seconds requires restart")
	}
	if next.Display.RecordPath != cur.Display.RecordPath {
		return fmt.Errorf("display.record_path requires restart")
	}

	bg, err := display.ParseColor(next.Display.Background)
	if err != nil {
		return fmt.Errorf("display.background: %w", err)
	}
	line, err := display.ParseColor(next.Display.LineColor)
	if err != nil {
		return fmt.Errorf("display.line_color: %w", err)
	}

	// Pre-validate side effects before committing anything.
	var nextSink *display.UDPSink
	if strings.TrimSpace(next.Display.Dest) != strings.TrimSpace(cur.Display.Dest) {
		dest, err := displayDest(next)
		if err != nil {
			return err
		}
		s, err := display.NewUDPSink(display.UDPSinkConfig{Dest: dest, Tap: r.tap})
		if err != nil {
			return fmt.Errorf("display sink init failed: %w", err)
		}
		nextSink = s
		log.Printf("display dest=%s", dest)
	}

	scenarioChanged := cur.Ingest.Source == "sim" && next.Sim.Scenario != cur.Sim.Scenario
	var nextScenario *sim.Scenario
	if scenarioChanged {
		sc, err := loadScenario(next.Sim.Scenario)
		if err != nil {
			if nextSink != nil {
				_ = nextSink.Close()
			}
			return err
		}
		nextScenario = sc
	}

	// Commit: swap sink.
	if nextSink != nil {
		old := r.sink
		r.sink = nextSink
		if old != nil {
			_ = old.Close()
		}
	}

	// Commit: restart scripted playback.
	if scenarioChanged {
		if r.simCancel != nil {
			r.simCancel()
		}
		r.startScenario(r.baseCtx, nextScenario)
	}

	r.bg, r.line = bg, line
	r.cfg = next
	r.status.SetStatic(next.DeviceName, "", "")
	r.redrawLocked("apply")
	return nil
}

func stringSlicesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func mapsEqual(a, b []config.MapConfig) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Close tears services down in reverse bring-up order. Safe to call on a
// partially constructed runtime.
func (r *deviceRuntime) Close() {
	if r.inputSvc != nil {
		r.inputSvc.Close()
		r.inputSvc = nil
	}
	if r.feeder != nil {
		r.feeder.Close()
		r.feeder = nil
	}
	if r.simCancel != nil {
		r.simCancel()
		r.simCancel = nil
	}
	if r.ingestSvc != nil {
		r.ingestSvc.Close()
		r.ingestSvc = nil
	}
	if r.ticker != nil {
		r.ticker.Stop()
		r.ticker = nil
	}

	r.mu.Lock()
	if r.sink != nil {
		_ = r.sink.Close()
		r.sink = nil
	}
	if r.recorder != nil {
		_ = r.recorder.Close()
		r.recorder = nil
	}
	r.mu.Unlock()
}
