//go:build !linux

package meminfo

import "fmt"

func Free() (uint64, error) {
	return 0, fmt.Errorf("meminfo not supported on this platform")
}

func Total() (uint64, error) {
	return 0, fmt.Errorf("meminfo not supported on this platform")
}
