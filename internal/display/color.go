package display

import (
	"fmt"
	"strconv"
	"strings"
)

// RGB565 palette used by config defaults.
const (
	ColorBlack   = 0x0000
	ColorWhite   = 0xFFFF
	ColorRed     = 0xF800
	ColorGreen   = 0x07E0
	ColorBlue    = 0x001F
	ColorYellow  = 0xFFE0
	ColorCyan    = 0x07FF
	ColorMagenta = 0xF81F
)

var namedColors = map[string]uint16{
	"black":   ColorBlack,
	"white":   ColorWhite,
	"red":     ColorRed,
	"green":   ColorGreen,
	"blue":    ColorBlue,
	"yellow":  ColorYellow,
	"cyan":    ColorCyan,
	"magenta": ColorMagenta,
}

// RGB565 packs 8-bit channels into the panel's 5-6-5 format.
func RGB565(r, g, b uint8) uint16 {
	return uint16(r>>3)<<11 | uint16(g>>2)<<5 | uint16(b>>3)
}

// ParseColor accepts a palette name ("white") or an sRGB hex triplet
// ("#1E90FF") and returns the RGB565 value.
func ParseColor(s string) (uint16, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "" {
		return 0, fmt.Errorf("color is empty")
	}
	if c, ok := namedColors[name]; ok {
		return c, nil
	}
	if strings.HasPrefix(name, "#") {
		hex := name[1:]
		if len(hex) != 6 {
			return 0, fmt.Errorf("invalid color %q: want #RRGGBB", s)
		}
		v, err := strconv.ParseUint(hex, 16, 32)
		if err != nil {
			return 0, fmt.Errorf("invalid color %q: %w", s, err)
		}
		return RGB565(uint8(v>>16), uint8(v>>8), uint8(v)), nil
	}
	return 0, fmt.Errorf("unknown color %q", s)
}
