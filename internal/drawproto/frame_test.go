package drawproto

import (
	"bytes"
	"testing"
)

func TestFrame_StartEndFlags(t *testing.T) {
	got := Frame([]byte{0x00, 0x01})
	if len(got) < 2 {
		t.Fatalf("frame too short: %d", len(got))
	}
	if got[0] != flagByte {
		t.Fatalf("missing start flag: 0x%02x", got[0])
	}
	if got[len(got)-1] != flagByte {
		t.Fatalf("missing end flag: 0x%02x", got[len(got)-1])
	}
}

func TestFrame_EscapesControlBytes(t *testing.T) {
	// Force both bytes that must be escaped.
	got := Frame([]byte{0x00, flagByte, escapeByte})
	for i := 1; i < len(got)-1; i++ {
		if got[i] == flagByte {
			t.Fatalf("unescaped flag byte found at %d", i)
		}
	}
}

func TestUnframe_RoundTripWithControlBytes(t *testing.T) {
	// Payload dense in reserved bytes so stuffing is exercised heavily.
	payload := []byte{0x42, 0x7E, 0x7D, 0x5E, 0x5D, 0x00, 0xFF, 0x7E, 0x7E, 0x7D, 0x7D}

	msg := unframeAndCheckCRC(t, Frame(payload))
	if !bytes.Equal(msg, payload) {
		t.Fatalf("round trip mismatch:\n got % X\nwant % X", msg, payload)
	}
}

func TestUnframe_DetectsCorruption(t *testing.T) {
	// Known-good frame for Clear black; flip the ID byte to another
	// non-reserved value so the structure stays valid but the CRC fails.
	frame := []byte{0x7E, 0x10, 0x00, 0x00, 0x31, 0x12, 0x7E}

	corrupted := append([]byte(nil), frame...)
	corrupted[1] = 0x11

	msg, crcOK, err := Unframe(corrupted)
	if err != nil {
		t.Fatalf("unframe: %v", err)
	}
	if crcOK {
		t.Fatalf("corrupted frame passed crc (msg=% X)", msg)
	}
}

func TestUnframe_MalformedFrames(t *testing.T) {
	cases := []struct {
		name  string
		frame []byte
	}{
		{"nil", nil},
		{"too short", []byte{0x7E, 0x7E}},
		{"missing start flag", []byte{0x10, 0x00, 0x00, 0x31, 0x12, 0x7E}},
		{"missing end flag", []byte{0x7E, 0x10, 0x00, 0x00, 0x31, 0x12}},
		{"truncated escape", []byte{0x7E, 0x10, 0x7D, 0x7E}},
		{"payload shorter than crc", []byte{0x7E, 0x10, 0x00, 0x7E}},
	}
	for _, tc := range cases {
		if _, _, err := Unframe(tc.frame); err == nil {
			t.Fatalf("%s: expected error, got none", tc.name)
		}
	}
}

func TestCRC16_EmptyAndStability(t *testing.T) {
	if got := crc16(nil); got != 0 {
		t.Fatalf("crc of empty input: got 0x%04X want 0", got)
	}
	a := crc16([]byte{0x10, 0x00, 0x00})
	b := crc16([]byte{0x10, 0x00, 0x00})
	if a != b {
		t.Fatalf("crc not deterministic: 0x%04X vs 0x%04X", a, b)
	}
	if a != 0x1231 {
		t.Fatalf("crc vector mismatch: got 0x%04X want 0x1231", a)
	}
}
