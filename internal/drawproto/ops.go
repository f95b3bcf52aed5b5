package drawproto

import "fmt"

// Message IDs. Multi-byte fields are big-endian; coordinates are signed
// 16-bit screen pixels (operations partially off-screen carry negative or
// oversized values unchanged), colors are RGB565.
const (
	MsgClear   = 0x10
	MsgLine    = 0x11
	MsgBlit    = 0x12
	MsgPresent = 0x13
)

// Op is one display operation; Encode returns the unframed message.
type Op interface {
	Encode() []byte
}

// Clear fills the whole screen with one color.
type Clear struct {
	Color uint16
}

func (c Clear) Encode() []byte {
	return []byte{MsgClear, byte(c.Color >> 8), byte(c.Color)}
}

// Line draws a 1px segment between two screen points.
type Line struct {
	X0, Y0, X1, Y1 int16
	Color          uint16
}

func (l Line) Encode() []byte {
	out := make([]byte, 0, 11)
	out = append(out, MsgLine)
	out = appendI16(out, l.X0)
	out = appendI16(out, l.Y0)
	out = appendI16(out, l.X1)
	out = appendI16(out, l.Y1)
	return append(out, byte(l.Color>>8), byte(l.Color))
}

// Blit copies a rectangle of raw RGB565 pixels (W*H*2 bytes, row-major) to
// a screen position. Pixels length is the encoder's contract; the decoder
// rejects mismatches.
type Blit struct {
	X, Y   int16
	W, H   uint16
	Pixels []byte
}

func (b Blit) Encode() []byte {
	out := make([]byte, 0, 9+len(b.Pixels))
	out = append(out, MsgBlit)
	out = appendI16(out, b.X)
	out = appendI16(out, b.Y)
	out = append(out, byte(b.W>>8), byte(b.W), byte(b.H>>8), byte(b.H))
	return append(out, b.Pixels...)
}

// Present marks the end of a rendered frame.
type Present struct{}

func (Present) Encode() []byte {
	return []byte{MsgPresent}
}

// MsgID peeks at the ID of an unframed message.
func MsgID(msg []byte) (byte, bool) {
	if len(msg) == 0 {
		return 0, false
	}
	return msg[0], true
}

// Decode parses an unframed message into its typed operation.
func Decode(msg []byte) (Op, error) {
	if len(msg) == 0 {
		return nil, fmt.Errorf("empty message")
	}
	switch msg[0] {
	case MsgClear:
		if len(msg) != 3 {
			return nil, fmt.Errorf("clear message length %d, want 3", len(msg))
		}
		return Clear{Color: u16(msg[1:])}, nil

	case MsgLine:
		if len(msg) != 11 {
			return nil, fmt.Errorf("line message length %d, want 11", len(msg))
		}
		return Line{
			X0:    i16(msg[1:]),
			Y0:    i16(msg[3:]),
			X1:    i16(msg[5:]),
			Y1:    i16(msg[7:]),
			Color: u16(msg[9:]),
		}, nil

	case MsgBlit:
		if len(msg) < 9 {
			return nil, fmt.Errorf("blit message length %d, want at least 9", len(msg))
		}
		b := Blit{
			X: i16(msg[1:]),
			Y: i16(msg[3:]),
			W: u16(msg[5:]),
			H: u16(msg[7:]),
		}
		want := int(b.W) * int(b.H) * 2
		if len(msg)-9 != want {
			return nil, fmt.Errorf("blit %dx%d payload %d bytes, want %d", b.W, b.H, len(msg)-9, want)
		}
		b.Pixels = msg[9:]
		return b, nil

	case MsgPresent:
		if len(msg) != 1 {
			return nil, fmt.Errorf("present message length %d, want 1", len(msg))
		}
		return Present{}, nil
	}
	return nil, fmt.Errorf("unknown message id 0x%02X", msg[0])
}

func appendI16(out []byte, v int16) []byte {
	return append(out, byte(uint16(v)>>8), byte(uint16(v)))
}

func i16(b []byte) int16 {
	return int16(uint16(b[0])<<8 | uint16(b[1]))
}

func u16(b []byte) uint16 {
	return uint16(b[0])<<8 | uint16(b[1])
}
