// Package ingest runs the path transfer link: it keeps a serial or TCP
// connection to the feeder alive, reads path messages off it, and hands
// accepted paths to the renderer. Only the newest path matters; a slow
// consumer sees the latest transfer, never a backlog.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"ronald-ng/internal/metrics"
	"ronald-ng/internal/navpath"
	"ronald-ng/internal/serialio"
)

var openSerialFn = serialio.Open

type Config struct {
	Enable bool

	// Source selects the transport: "serial" or "tcp". Empty defaults to
	// "serial".
	Source string

	// Device is the serial device path; empty auto-detects the first
	// /dev/ttyACM* or /dev/ttyUSB* present.
	Device string
	Baud   int

	// Addr is host:port for Source=="tcp".
	Addr string

	// MaxLine and MaxField bound the wire format; zero takes the serialio
	// defaults.
	MaxLine  int
	MaxField int

	// MaxPoints is consulted once per transfer and bounds the declared
	// point count. Required; it normally closes over a meminfo.Budget.
	MaxPoints func() int

	ReconnectDelay time.Duration
	DialTimeout    time.Duration
}

// Transfer is one accepted path with its provenance.
type Transfer struct {
	ID         string
	Source     string
	Path       navpath.Path
	ReceivedAt time.Time
}

type Snapshot struct {
	Enabled bool   `json:"enabled"`
	Source  string `json:"source,omitempty"`
	Device  string `json:"device,omitempty"`
	Baud    int    `json:"baud,omitempty"`
	Addr    string `json:"addr,omitempty"`

	State string `json:"state"`

	Accepted        uint64 `json:"accepted"`
	EmptyPaths      uint64 `json:"empty_paths"`
	RejectedCount   uint64 `json:"rejected_count_out_of_range"`
	RejectedMemory  uint64 `json:"rejected_out_of_memory"`
	RejectedField   uint64 `json:"rejected_field_too_long"`
	RejectedLine    uint64 `json:"rejected_line_too_long"`
	TransportErrors uint64 `json:"transport_errors"`

	LastTransferID string  `json:"last_transfer_id,omitempty"`
	LastPathPoints int     `json:"last_path_points,omitempty"`
	LastPathMeters float64 `json:"last_path_meters,omitempty"`
	LastSeenUTC    string  `json:"last_seen_utc,omitempty"`
	LastError      string  `json:"last_error,omitempty"`
}

type Service struct {
	cfg Config

	paths chan Transfer

	started atomic.Bool
	closed  atomic.Bool
	cancel  context.CancelFunc
	done    chan struct{}

	mu       sync.RWMutex
	snap     Snapshot
	lastSeen time.Time
	conn     io.Closer
}

func New(cfg Config) (*Service, error) {
	src := strings.ToLower(strings.TrimSpace(cfg.Source))
	if src == "" {
		src = "serial"
	}
	cfg.Source = src
	switch src {
	case "serial":
		if cfg.Baud == 0 {
			cfg.Baud = 115200
		}
	case "tcp":
		if strings.TrimSpace(cfg.Addr) == "" {
			return nil, fmt.Errorf("ingest: addr is required for tcp source")
		}
	default:
		return nil, fmt.Errorf("ingest: unknown source %q", cfg.Source)
	}
	if cfg.MaxPoints == nil {
		return nil, fmt.Errorf("ingest: MaxPoints is required")
	}
	if cfg.MaxLine <= 0 {
		cfg.MaxLine = serialio.DefaultMaxLine
	}
	if cfg.MaxField <= 0 {
		cfg.MaxField = serialio.DefaultMaxField
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 1 * time.Second
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 2 * time.Second
	}

	s := &Service{
		cfg:   cfg,
		paths: make(chan Transfer, 1),
		done:  make(chan struct{}),
	}
	s.snap = Snapshot{
		Enabled: cfg.Enable,
		Source:  cfg.Source,
		Device:  cfg.Device,
		Baud:    cfg.Baud,
		Addr:    cfg.Addr,
		State:   "stopped",
	}
	return s, nil
}

// Paths yields accepted transfers. The channel holds at most one: an
// unconsumed transfer is replaced by a newer one.
func (s *Service) Paths() <-chan Transfer {
	return s.paths
}

func (s *Service) Start(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("ingest: service is nil")
	}
	if !s.cfg.Enable {
		return nil
	}
	if s.closed.Load() {
		return fmt.Errorf("ingest: service is closed")
	}
	if s.started.Swap(true) {
		return fmt.Errorf("ingest: service already started")
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.setState("connecting", "")

	go func() {
		defer close(s.done)
		s.runLoop(runCtx)
	}()
	return nil
}

func (s *Service) Close() {
	if s == nil {
		return
	}
	if s.closed.Swap(true) {
		return
	}
	if s.cancel != nil {
		s.cancel()
	}

	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}

	if s.started.Load() {
		<-s.done
	}
}

func (s *Service) Snapshot() Snapshot {
	if s == nil {
		return Snapshot{}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.snap
	if !s.lastSeen.IsZero() {
		out.LastSeenUTC = s.lastSeen.UTC().Format(time.RFC3339Nano)
	}
	return out
}

func (s *Service) runLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			s.setState("stopped", "")
			return
		default:
		}

		s.setState("connecting", "")
		conn, desc, err := s.open(ctx)
		if err != nil {
			s.setState("error", err.Error())
			if !sleepCtx(ctx, s.cfg.ReconnectDelay) {
				s.setState("stopped", "")
				return
			}
			continue
		}

		s.mu.Lock()
		// Swap the conn so Close can interrupt a blocking read.
		s.conn = conn
		s.mu.Unlock()
		s.setState("connected", "")

		s.readConn(ctx, conn, desc)

		s.mu.Lock()
		if s.conn == conn {
			s.conn = nil
		}
		s.mu.Unlock()
		_ = conn.Close()

		if !sleepCtx(ctx, s.cfg.ReconnectDelay) {
			s.setState("stopped", "")
			return
		}
	}
}

func (s *Service) open(ctx context.Context) (io.ReadWriteCloser, string, error) {
	if s.cfg.Source == "tcp" {
		dialer := &net.Dialer{Timeout: s.cfg.DialTimeout}
		conn, err := dialer.DialContext(ctx, "tcp", s.cfg.Addr)
		if err != nil {
			return nil, "", fmt.Errorf("dial %s: %w", s.cfg.Addr, err)
		}
		return conn, "tcp:" + s.cfg.Addr, nil
	}

	device := strings.TrimSpace(s.cfg.Device)
	if device == "" {
		device = autoDetectDevice()
		if device == "" {
			return nil, "", fmt.Errorf("serial auto-detect failed: no /dev/ttyACM* or /dev/ttyUSB* found")
		}
	}
	f, err := openSerialFn(device, s.cfg.Baud)
	if err != nil {
		return nil, "", fmt.Errorf("open %s baud=%d: %w", device, s.cfg.Baud, err)
	}
	return f, "serial:" + device, nil
}

// readConn consumes path messages until the transport breaks.
func (s *Service) readConn(ctx context.Context, conn io.Reader, desc string) {
	lr := serialio.NewLineReader(conn, s.cfg.MaxLine)
	rd, err := navpath.NewReader(navpath.ReaderConfig{
		Source:    lr,
		MaxPoints: s.cfg.MaxPoints,
		MaxField:  s.cfg.MaxField,
	})
	if err != nil {
		s.setState("error", err.Error())
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		p, err := rd.ReadPath()
		if err == nil {
			s.accept(p, desc)
			continue
		}

		switch {
		case errors.Is(err, navpath.ErrCountOutOfRange):
			s.reject(err, "count_out_of_range", func(sn *Snapshot) { sn.RejectedCount++ })
		case errors.Is(err, navpath.ErrOutOfMemory):
			s.reject(err, "out_of_memory", func(sn *Snapshot) { sn.RejectedMemory++ })
		case errors.Is(err, serialio.ErrFieldTooLong):
			s.reject(err, "field_too_long", func(sn *Snapshot) { sn.RejectedField++ })
		case errors.Is(err, serialio.ErrLineTooLong):
			s.reject(err, "line_too_long", func(sn *Snapshot) { sn.RejectedLine++ })
		default:
			if ctx.Err() != nil {
				// Shutdown closed the conn under us; not a link failure.
				return
			}
			metrics.IngestFailures.WithLabelValues("io").Inc()
			s.mu.Lock()
			s.snap.TransportErrors++
			s.mu.Unlock()
			s.setState("disconnected", err.Error())
			return
		}
	}
}

func (s *Service) accept(p navpath.Path, desc string) {
	tr := Transfer{
		ID:         uuid.NewString(),
		Source:     desc,
		Path:       p,
		ReceivedAt: time.Now().UTC(),
	}
	s.deliver(tr)

	meters := p.Distance()
	metrics.PathsIngested.WithLabelValues(s.cfg.Source).Inc()
	metrics.LastPathPoints.Set(float64(p.Len()))
	metrics.LastPathDistanceMeters.Set(meters)

	s.mu.Lock()
	s.snap.Accepted++
	if p.Len() == 0 {
		s.snap.EmptyPaths++
	}
	s.snap.LastTransferID = tr.ID
	s.snap.LastPathPoints = p.Len()
	s.snap.LastPathMeters = meters
	s.lastSeen = tr.ReceivedAt
	s.mu.Unlock()
}

// deliver replaces any unconsumed transfer with the newer one.
func (s *Service) deliver(tr Transfer) {
	for {
		select {
		case s.paths <- tr:
			return
		default:
		}
		select {
		case <-s.paths:
		default:
		}
	}
}

func (s *Service) reject(err error, reason string, count func(*Snapshot)) {
	metrics.IngestFailures.WithLabelValues(reason).Inc()
	s.mu.Lock()
	count(&s.snap)
	s.snap.LastError = err.Error()
	s.mu.Unlock()
}

func (s *Service) setState(state, lastErr string) {
	s.mu.Lock()
	s.snap.State = state
	if lastErr != "" {
		s.snap.LastError = lastErr
	} else if state == "connected" || state == "stopped" {
		// A healthy state clears the stale error so status output doesn't
		// look broken after a transient failure.
		s.snap.LastError = ""
	}
	s.mu.Unlock()
}

func autoDetectDevice() string {
	// Keep it intentionally tiny and predictable.
	candidates := []string{}
	for i := 0; i < 10; i++ {
		candidates = append(candidates, fmt.Sprintf("/dev/ttyACM%d", i))
	}
	for i := 0; i < 10; i++ {
		candidates = append(candidates, fmt.Sprintf("/dev/ttyUSB%d", i))
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
