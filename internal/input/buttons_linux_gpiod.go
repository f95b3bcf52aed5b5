//go:build linux && (arm || arm64)

package input

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

// openButtons requests every wired pin as a pulled-up input and reports
// falling edges (button to ground) as actions. It returns a closer for the
// requested lines and how many were opened.
func openButtons(pins Pins, debounce time.Duration, push func(Action)) (io.Closer, int, error) {
	wired := []struct {
		pin    int
		action Action
	}{
		{pins.Up, ActionPanUp},
		{pins.Down, ActionPanDown},
		{pins.Left, ActionPanLeft},
		{pins.Right, ActionPanRight},
		{pins.ZoomIn, ActionZoomIn},
		{pins.ZoomOut, ActionZoomOut},
	}

	dev := &gpiodButtons{}
	opened := 0
	for _, w := range wired {
		if w.pin <= 0 {
			continue
		}
		if err := dev.request(w.pin, debounce, w.action, push); err != nil {
			_ = dev.Close()
			return nil, 0, err
		}
		opened++
	}
	if opened == 0 {
		return nil, 0, fmt.Errorf("input: no button pins configured")
	}
	return dev, opened, nil
}

type gpiodButtons struct {
	chips []*gpiocdev.Chip
	lines []*gpiocdev.Line
}

func (g *gpiodButtons) request(pin int, debounce time.Duration, action Action, push func(Action)) error {
	// On Pi, line names are commonly "GPIO17", etc.
	lineName := fmt.Sprintf("GPIO%d", pin)

	chipCandidates := []string{"/dev/gpiochip0", "/dev/gpiochip4"}
	entries, _ := os.ReadDir("/dev")
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, "gpiochip") {
			chipCandidates = append(chipCandidates, filepath.Join("/dev", name))
		}
	}

	for _, chipPath := range chipCandidates {
		chip, err := gpiocdev.NewChip(chipPath)
		if err != nil {
			continue
		}
		offset, err := chip.FindLine(lineName)
		if err != nil {
			_ = chip.Close()
			continue
		}
		line, err := chip.RequestLine(offset,
			gpiocdev.AsInput,
			gpiocdev.WithPullUp,
			gpiocdev.WithFallingEdge,
			gpiocdev.WithDebounce(debounce),
			gpiocdev.WithConsumer("ronald-nav-buttons"),
			gpiocdev.WithEventHandler(func(gpiocdev.LineEvent) {
				push(action)
			}),
		)
		if err != nil {
			_ = chip.Close()
			continue
		}
		g.chips = append(g.chips, chip)
		g.lines = append(g.lines, line)
		return nil
	}

	return fmt.Errorf("input: gpio line %q not found (or busy)", lineName)
}

func (g *gpiodButtons) Close() error {
	var firstErr error
	for _, l := range g.lines {
		if err := l.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	g.lines = nil
	for _, c := range g.chips {
		_ = c.Close()
	}
	g.chips = nil
	return firstErr
}
