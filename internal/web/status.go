package web

import (
	"sync/atomic"
	"time"
)

// Status aggregates what /api/status reports. Scalar fields are updated
// lock-free from the render loop; service snapshots are pulled through
// provider funcs at request time so the page always shows live counters.
type Status struct {
	startUnixNano int64
	framesDrawn   uint64
	lastDrawNano  int64
	deviceName    atomic.Value // string
	version       atomic.Value // string
	tileDir       atomic.Value // string
	view          atomic.Value // ViewSnapshot
	providers     atomic.Value // Providers
}

func NewStatus() *Status {
	s := &Status{}
	now := time.Now().UTC()
	atomic.StoreInt64(&s.startUnixNano, now.UnixNano())
	atomic.StoreInt64(&s.lastDrawNano, 0)
	s.deviceName.Store("")
	s.version.Store("")
	s.tileDir.Store("")
	s.view.Store(ViewSnapshot{})
	s.providers.Store(Providers{})
	return s
}

// ViewSnapshot is the UI-facing view state: which map is shown, the
// viewport rectangle in map pixels, and the geographic center readout.
type ViewSnapshot struct {
	MapIndex     int     `json:"map_index"`
	MapName      string  `json:"map_name"`
	X            int32   `json:"x"`
	Y            int32   `json:"y"`
	Width        int32   `json:"width"`
	Height       int32   `json:"height"`
	CenterLatDeg float64 `json:"center_lat_deg"`
	CenterLonDeg float64 `json:"center_lon_deg"`
}

// Providers supplies live service snapshots for /api/status.
// Nil entries are omitted from the response.
type Providers struct {
	Ingest  func() any
	Feeder  func() any
	Display func() any
	Tiles   func() any
	Input   func() any
	Memory  func() any
}

func (s *Status) SetStatic(deviceName, version, tileDir string) {
	if deviceName != "" {
		s.deviceName.Store(deviceName)
	}
	if version != "" {
		s.version.Store(version)
	}
	if tileDir != "" {
		s.tileDir.Store(tileDir)
	}
}

func (s *Status) SetProviders(p Providers) {
	s.providers.Store(p)
}

func (s *Status) SetView(v ViewSnapshot) {
	s.view.Store(v)
}

func (s *Status) MarkFrame(nowUTC time.Time) {
	if nowUTC.IsZero() {
		nowUTC = time.Now().UTC()
	}
	atomic.StoreInt64(&s.lastDrawNano, nowUTC.UnixNano())
	atomic.AddUint64(&s.framesDrawn, 1)
}

type StatusSnapshot struct {
	Service          string          `json:"service"`
	DeviceName       string          `json:"device_name"`
	Version          string          `json:"version,omitempty"`
	NowUTC           string          `json:"now_utc"`
	UptimeSec        int64           `json:"uptime_sec"`
	FramesDrawnTotal uint64          `json:"frames_drawn_total"`
	LastDrawUTC      string          `json:"last_draw_utc,omitempty"`
	View             ViewSnapshot    `json:"view"`
	Ingest           any             `json:"ingest,omitempty"`
	Feeder           any             `json:"feeder,omitempty"`
	Display          any             `json:"display,omitempty"`
	Tiles            any             `json:"tiles,omitempty"`
	Input            any             `json:"input,omitempty"`
	Memory           any             `json:"memory,omitempty"`
	System           *SystemSnapshot `json:"system,omitempty"`
}

func (s *Status) Snapshot(nowUTC time.Time) StatusSnapshot {
	if nowUTC.IsZero() {
		nowUTC = time.Now().UTC()
	}
	start := time.Unix(0, atomic.LoadInt64(&s.startUnixNano)).UTC()
	uptime := nowUTC.Sub(start)
	lastDraw := atomic.LoadInt64(&s.lastDrawNano)

	snap := StatusSnapshot{
		Service:          "ronald-ng",
		DeviceName:       s.deviceName.Load().(string),
		Version:          s.version.Load().(string),
		NowUTC:           nowUTC.UTC().Format(time.RFC3339Nano),
		UptimeSec:        int64(uptime.Seconds()),
		FramesDrawnTotal: atomic.LoadUint64(&s.framesDrawn),
		View:             s.view.Load().(ViewSnapshot),
	}
	if lastDraw != 0 {
		snap.LastDrawUTC = time.Unix(0, lastDraw).UTC().Format(time.RFC3339Nano)
	}

	p := s.providers.Load().(Providers)
	if p.Ingest != nil {
		snap.Ingest = p.Ingest()
	}
	if p.Feeder != nil {
		snap.Feeder = p.Feeder()
	}
	if p.Display != nil {
		snap.Display = p.Display()
	}
	if p.Tiles != nil {
		snap.Tiles = p.Tiles()
	}
	if p.Input != nil {
		snap.Input = p.Input()
	}
	if p.Memory != nil {
		snap.Memory = p.Memory()
	}
	snap.System = snapshotSystem(s.tileDir.Load().(string))
	return snap
}
