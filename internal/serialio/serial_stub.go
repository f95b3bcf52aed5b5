//go:build !linux

package serialio

import (
	"fmt"
	"io"
)

func Open(path string, baud int) (io.ReadWriteCloser, error) {
	return nil, fmt.Errorf("serial not supported on this platform")
}
