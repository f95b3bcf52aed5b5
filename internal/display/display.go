// Package display drives the panel at the far end of the draw link. The
// renderer talks to a Driver; the UDP sink is the production driver, the
// recorder captures operations for tests and offline decoding.
package display

// Driver consumes display operations. Coordinates are screen pixels with the
// origin at the top-left corner; colors are RGB565. A frame is a sequence of
// operations terminated by Present.
type Driver interface {
	Clear(color uint16) error
	DrawLine(x0, y0, x1, y1 int16, color uint16) error
	Blit(x, y int16, w, h uint16, pixels []byte) error
	Present() error
	Close() error
}

// Nop discards every operation. It stands in for a panel when the unit runs
// headless.
type Nop struct{}

func (Nop) Clear(uint16) error                              { return nil }
func (Nop) DrawLine(int16, int16, int16, int16, uint16) error { return nil }
func (Nop) Blit(int16, int16, uint16, uint16, []byte) error { return nil }
func (Nop) Present() error                                  { return nil }
func (Nop) Close() error                                    { return nil }
