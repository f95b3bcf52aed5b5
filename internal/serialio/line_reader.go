package serialio

import (
	"bufio"
	"errors"
	"fmt"
	"io"
)

// DefaultMaxLine bounds a single protocol line. A count line plus two
// 20-byte fields fits with a wide margin.
const DefaultMaxLine = 256

// ErrLineTooLong reports a line that exceeded the reader's bound. The
// offending line is consumed to its terminator; the reader stays usable.
var ErrLineTooLong = errors.New("line too long")

// LineReader reads \n-terminated lines from an io.Reader with a hard bound
// on line length. A trailing \r is stripped, so CRLF hosts work unchanged.
//
// The returned slice is only valid until the next ReadLine call.
type LineReader struct {
	r       *bufio.Reader
	buf     []byte
	maxLine int
}

func NewLineReader(r io.Reader, maxLine int) *LineReader {
	if maxLine <= 0 {
		maxLine = DefaultMaxLine
	}
	return &LineReader{
		r:       bufio.NewReaderSize(r, 512),
		buf:     make([]byte, 0, maxLine),
		maxLine: maxLine,
	}
}

func (lr *LineReader) ReadLine() ([]byte, error) {
	lr.buf = lr.buf[:0]
	for {
		b, err := lr.r.ReadByte()
		if err != nil {
			// A final unterminated line still counts as a line.
			if err == io.EOF && len(lr.buf) > 0 {
				return trimCR(lr.buf), nil
			}
			return nil, err
		}
		if b == '\n' {
			return trimCR(lr.buf), nil
		}
		if len(lr.buf) >= lr.maxLine {
			return nil, lr.discardRest()
		}
		lr.buf = append(lr.buf, b)
	}
}

// discardRest consumes the remainder of an over-long line so the next
// ReadLine starts on a fresh line.
func (lr *LineReader) discardRest() error {
	for {
		b, err := lr.r.ReadByte()
		if err != nil || b == '\n' {
			return fmt.Errorf("line exceeds %d bytes: %w", lr.maxLine, ErrLineTooLong)
		}
	}
}

func trimCR(b []byte) []byte {
	if n := len(b); n > 0 && b[n-1] == '\r' {
		return b[:n-1]
	}
	return b
}
