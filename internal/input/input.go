// Package input turns the front-panel buttons into pan and zoom actions.
// Button edges arrive from the GPIO character device; consumers drain the
// action channel. When the channel backs up, further presses are dropped
// rather than queued stale.
package input

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

var openButtonsFn = openButtons

type Action uint8

const (
	ActionPanUp Action = iota + 1
	ActionPanDown
	ActionPanLeft
	ActionPanRight
	ActionZoomIn
	ActionZoomOut
)

func (a Action) String() string {
	switch a {
	case ActionPanUp:
		return "pan_up"
	case ActionPanDown:
		return "pan_down"
	case ActionPanLeft:
		return "pan_left"
	case ActionPanRight:
		return "pan_right"
	case ActionZoomIn:
		return "zoom_in"
	case ActionZoomOut:
		return "zoom_out"
	}
	return fmt.Sprintf("action(%d)", uint8(a))
}

// Pins maps actions to BCM GPIO numbers; 0 leaves a button unwired.
type Pins struct {
	Up      int
	Down    int
	Left    int
	Right   int
	ZoomIn  int
	ZoomOut int
}

type Config struct {
	Enable bool

	Pins Pins

	// Debounce suppresses contact chatter on the lines.
	Debounce time.Duration
}

type Snapshot struct {
	Enabled bool `json:"enabled"`

	Lines   int    `json:"lines"`
	Dropped uint64 `json:"dropped"`

	LastAction string    `json:"last_action,omitempty"`
	LastAt     time.Time `json:"last_at_utc,omitempty"`
	LastError  string    `json:"last_error,omitempty"`
}

type Service struct {
	cfg Config

	events chan Action

	mu   sync.RWMutex
	snap Snapshot

	devMu sync.Mutex
	dev   io.Closer

	stopOnce sync.Once
	stopCh   chan struct{}
}

func New(cfg Config) *Service {
	if cfg.Debounce <= 0 {
		cfg.Debounce = 20 * time.Millisecond
	}
	return &Service{
		cfg:    cfg,
		events: make(chan Action, 16),
		stopCh: make(chan struct{}),
	}
}

// Events yields button actions. The channel is never closed; it simply goes
// quiet after Close.
func (s *Service) Events() <-chan Action {
	return s.events
}

func (s *Service) Snapshot() Snapshot {
	if s == nil {
		return Snapshot{}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

func (s *Service) Start(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("input: service is nil")
	}
	if !s.cfg.Enable {
		return nil
	}

	s.setState(func(sn *Snapshot) { sn.Enabled = true })

	dev, lines, err := openButtonsFn(s.cfg.Pins, s.cfg.Debounce, s.push)
	if err != nil {
		s.setErr(err.Error())
		return err
	}
	s.devMu.Lock()
	s.dev = dev
	s.devMu.Unlock()
	s.setState(func(sn *Snapshot) { sn.Lines = lines })

	go func() {
		<-ctx.Done()
		s.Close()
	}()
	return nil
}

func (s *Service) Close() {
	if s == nil {
		return
	}
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})

	s.devMu.Lock()
	dev := s.dev
	s.dev = nil
	s.devMu.Unlock()
	if dev != nil {
		_ = dev.Close()
	}
}

// push is called from the GPIO event handler goroutine.
func (s *Service) push(a Action) {
	select {
	case <-s.stopCh:
		return
	default:
	}

	select {
	case s.events <- a:
		s.setState(func(sn *Snapshot) { sn.LastAction = a.String() })
	default:
		s.mu.Lock()
		s.snap.Dropped++
		s.mu.Unlock()
	}
}

func (s *Service) setErr(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.LastError = msg
	s.snap.LastAt = time.Now().UTC()
}

func (s *Service) setState(update func(*Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	update(&s.snap)
	s.snap.LastAt = time.Now().UTC()
}
