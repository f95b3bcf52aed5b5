//go:build !linux || (!arm && !arm64)

package input

import (
	"fmt"
	"io"
	"time"
)

// Stub implementation for non-Linux and/or non-ARM platforms.
func openButtons(pins Pins, debounce time.Duration, push func(Action)) (io.Closer, int, error) {
	return nil, 0, fmt.Errorf("input: gpio buttons unsupported on this platform")
}
