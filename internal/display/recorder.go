package display

import (
	"sync"

	"ronald-ng/internal/drawproto"
)

// Recorder keeps every operation in memory. It backs renderer tests and the
// offline decode of recorded sessions.
type Recorder struct {
	mu  sync.Mutex
	ops []drawproto.Op
}

func (r *Recorder) Clear(color uint16) error {
	return r.record(drawproto.Clear{Color: color})
}

func (r *Recorder) DrawLine(x0, y0, x1, y1 int16, color uint16) error {
	return r.record(drawproto.Line{X0: x0, Y0: y0, X1: x1, Y1: y1, Color: color})
}

func (r *Recorder) Blit(x, y int16, w, h uint16, pixels []byte) error {
	cp := append([]byte(nil), pixels...)
	return r.record(drawproto.Blit{X: x, Y: y, W: w, H: h, Pixels: cp})
}

func (r *Recorder) Present() error {
	return r.record(drawproto.Present{})
}

func (r *Recorder) Close() error { return nil }

func (r *Recorder) record(op drawproto.Op) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, op)
	return nil
}

// Ops returns the recorded operations in order.
func (r *Recorder) Ops() []drawproto.Op {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]drawproto.Op(nil), r.ops...)
}

// Reset drops everything recorded so far.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = nil
}
