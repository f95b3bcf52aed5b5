package serialio

import (
	"bytes"
	"errors"
	"fmt"
)

// DefaultMaxField bounds a single numeric token. 20 bytes holds any int64
// with sign; anything longer is not a plausible coordinate.
const DefaultMaxField = 20

// ErrFieldTooLong reports a token that exceeded the scanner's bound.
var ErrFieldTooLong = errors.New("field too long")

// FieldScanner splits a line into delimiter-separated fields. Once the line
// is exhausted every further Next returns an empty field, mirroring the
// behavior of indexed field extraction in the wire protocol's lineage:
// absent fields decode as zero rather than failing.
type FieldScanner struct {
	rest     []byte
	delim    byte
	maxField int
}

func NewFieldScanner(line []byte, delim byte, maxField int) *FieldScanner {
	if maxField <= 0 {
		maxField = DefaultMaxField
	}
	return &FieldScanner{rest: line, delim: delim, maxField: maxField}
}

func (fs *FieldScanner) Next() ([]byte, error) {
	if len(fs.rest) == 0 {
		return nil, nil
	}
	var f []byte
	if i := bytes.IndexByte(fs.rest, fs.delim); i < 0 {
		f, fs.rest = fs.rest, nil
	} else {
		f, fs.rest = fs.rest[:i], fs.rest[i+1:]
	}
	if len(f) > fs.maxField {
		return nil, fmt.Errorf("field of %d bytes exceeds %d: %w", len(f), fs.maxField, ErrFieldTooLong)
	}
	return f, nil
}

func (fs *FieldScanner) NextInt32() (int32, error) {
	f, err := fs.Next()
	if err != nil {
		return 0, err
	}
	return ParseInt32(f), nil
}

// ParseInt32 decodes a decimal integer with C atol semantics: skip leading
// blanks, honor one optional sign, consume digits until the first non-digit,
// ignore the rest. No range checking: no digits yield 0 and oversized
// magnitudes wrap. Malformed input therefore degrades silently instead of
// failing; structural bounds are enforced by FieldScanner, not here.
func ParseInt32(b []byte) int32 {
	i := 0
	for i < len(b) && (b[i] == ' ' || b[i] == '\t') {
		i++
	}
	neg := false
	if i < len(b) && (b[i] == '+' || b[i] == '-') {
		neg = b[i] == '-'
		i++
	}
	var v int64
	for ; i < len(b) && b[i] >= '0' && b[i] <= '9'; i++ {
		v = v*10 + int64(b[i]-'0')
	}
	if neg {
		v = -v
	}
	return int32(v)
}
