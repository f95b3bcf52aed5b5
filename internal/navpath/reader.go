package navpath

import (
	"errors"
	"fmt"

	"ronald-ng/internal/coord"
	"ronald-ng/internal/serialio"
)

var (
	// ErrCountOutOfRange reports a declared point count that is negative or
	// above the current memory-budget ceiling.
	ErrCountOutOfRange = errors.New("point count out of range")

	// ErrOutOfMemory reports a failed path-buffer allocation.
	ErrOutOfMemory = errors.New("out of memory")
)

// LineSource yields protocol lines, one per call, without terminators.
// Implementations block until a line is available; cancellation is done by
// closing the underlying transport, which surfaces here as a read error.
type LineSource interface {
	ReadLine() ([]byte, error)
}

// ReaderConfig wires a Reader.
//
// MaxPoints is consulted once per message and bounds the declared count;
// it normally closes over a meminfo.Budget so the ceiling tracks free
// memory. Alloc obtains the path buffer (nil means make); it exists for
// arena allocators and for tests, and is the only way an ingest can fail
// with ErrOutOfMemory.
type ReaderConfig struct {
	Source    LineSource
	MaxPoints func() int
	MaxField  int
	Alloc     func(n int) ([]coord.Point, error)
}

// Reader runs the path ingestion operation over a line source.
type Reader struct {
	src       LineSource
	maxPoints func() int
	maxField  int
	alloc     func(n int) ([]coord.Point, error)
}

func NewReader(cfg ReaderConfig) (*Reader, error) {
	if cfg.Source == nil {
		return nil, fmt.Errorf("navpath: Source is required")
	}
	if cfg.MaxPoints == nil {
		return nil, fmt.Errorf("navpath: MaxPoints is required")
	}
	alloc := cfg.Alloc
	if alloc == nil {
		alloc = func(n int) ([]coord.Point, error) { return make([]coord.Point, n), nil }
	}
	return &Reader{
		src:       cfg.Source,
		maxPoints: cfg.MaxPoints,
		maxField:  cfg.MaxField,
		alloc:     alloc,
	}, nil
}

// ReadPath consumes one path message.
//
// The first line declares the point count; each of the following count
// lines carries "<lat> <lon>" in fixed-point 1e-5 degrees. On success
// exactly count+1 lines have been consumed and the buffer was obtained in
// a single allocation sized to the count. A count of zero succeeds with an
// empty path and no allocation.
//
// A count that fails validation consumes only the count line; nothing
// beyond it is touched. Malformed numeric fields decode to zero or a wrong
// value without failing the message; over-long lines or tokens reject it.
// No partially filled path is ever returned.
func (r *Reader) ReadPath() (Path, error) {
	line, err := r.src.ReadLine()
	if err != nil {
		return Path{}, fmt.Errorf("read count line: %w", err)
	}

	fs := serialio.NewFieldScanner(line, ' ', r.maxField)
	count, err := fs.NextInt32()
	if err != nil {
		return Path{}, fmt.Errorf("count field: %w", err)
	}

	max := r.maxPoints()
	if count < 0 || int64(count) > int64(max) {
		return Path{}, fmt.Errorf("count %d not in [0, %d]: %w", count, max, ErrCountOutOfRange)
	}
	if count == 0 {
		return Path{}, nil
	}

	pts, err := r.alloc(int(count))
	if err != nil {
		return Path{}, fmt.Errorf("allocate %d points (%v): %w", count, err, ErrOutOfMemory)
	}

	for i := 0; i < int(count); i++ {
		line, err := r.src.ReadLine()
		if err != nil {
			return Path{}, fmt.Errorf("read point %d/%d: %w", i+1, count, err)
		}
		fs := serialio.NewFieldScanner(line, ' ', r.maxField)
		lat, err := fs.NextInt32()
		if err != nil {
			return Path{}, fmt.Errorf("point %d/%d latitude: %w", i+1, count, err)
		}
		lon, err := fs.NextInt32()
		if err != nil {
			return Path{}, fmt.Errorf("point %d/%d longitude: %w", i+1, count, err)
		}
		pts[i] = coord.Point{Lat: lat, Lon: lon}
	}

	return Path{Points: pts}, nil
}
