package display

import (
	"fmt"
	"net"
	"sync"

	"ronald-ng/internal/drawproto"
	"ronald-ng/internal/metrics"
)

type udpConn interface {
	Write(p []byte) (int, error)
	Close() error
}

// UDPSink sends one framed draw message per datagram to a panel consumer.
// Sends are fire-and-forget: the link tolerates loss because the renderer
// periodically redraws the full frame.
type UDPSink struct {
	dest string

	// Tap, when set, observes every framed datagram handed to the link,
	// whether or not the send succeeds. Used to record session logs.
	tap func(frame []byte)

	mu         sync.Mutex
	conn       udpConn
	sent       uint64
	sendErrors uint64
}

// UDPSinkConfig carries the sink settings.
type UDPSinkConfig struct {
	// Dest is the host:port the datagrams go to.
	Dest string
	// Tap observes outgoing frames; nil disables it.
	Tap func(frame []byte)
}

// NewUDPSink resolves and connects the datagram socket.
func NewUDPSink(cfg UDPSinkConfig) (*UDPSink, error) {
	return newUDPSink(cfg, net.ResolveUDPAddr, func(network string, laddr, raddr *net.UDPAddr) (udpConn, error) {
		return net.DialUDP(network, laddr, raddr)
	})
}

func newUDPSink(
	cfg UDPSinkConfig,
	resolve func(network, address string) (*net.UDPAddr, error),
	dial func(network string, laddr, raddr *net.UDPAddr) (udpConn, error),
) (*UDPSink, error) {
	addr, err := resolve("udp", cfg.Dest)
	if err != nil {
		return nil, fmt.Errorf("resolve dest: %w", err)
	}

	// DialUDP selects a suitable local address automatically.
	conn, err := dial("udp", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("dial udp: %w", err)
	}

	return &UDPSink{dest: cfg.Dest, tap: cfg.Tap, conn: conn}, nil
}

func (s *UDPSink) Clear(color uint16) error {
	return s.send(drawproto.Clear{Color: color})
}

func (s *UDPSink) DrawLine(x0, y0, x1, y1 int16, color uint16) error {
	return s.send(drawproto.Line{X0: x0, Y0: y0, X1: x1, Y1: y1, Color: color})
}

func (s *UDPSink) Blit(x, y int16, w, h uint16, pixels []byte) error {
	return s.send(drawproto.Blit{X: x, Y: y, W: w, H: h, Pixels: pixels})
}

func (s *UDPSink) Present() error {
	return s.send(drawproto.Present{})
}

func (s *UDPSink) send(op drawproto.Op) error {
	frame := drawproto.Frame(op.Encode())
	if s.tap != nil {
		s.tap(frame)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return fmt.Errorf("udp sink is closed")
	}
	if _, err := s.conn.Write(frame); err != nil {
		s.sendErrors++
		metrics.SendErrors.Inc()
		return err
	}
	s.sent++
	metrics.DatagramsSent.Inc()
	return nil
}

func (s *UDPSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}

// UDPSinkSnapshot reports link counters for status surfaces.
type UDPSinkSnapshot struct {
	Dest       string `json:"dest"`
	Sent       uint64 `json:"sent"`
	SendErrors uint64 `json:"send_errors"`
}

func (s *UDPSink) Snapshot() UDPSinkSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return UDPSinkSnapshot{Dest: s.dest, Sent: s.sent, SendErrors: s.sendErrors}
}
