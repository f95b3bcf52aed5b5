//go:build linux

package meminfo

import (
	"golang.org/x/sys/unix"
)

// Free returns the free RAM of the system in bytes.
func Free() (uint64, error) {
	var si unix.Sysinfo_t
	if err := unix.Sysinfo(&si); err != nil {
		return 0, err
	}
	// Sysinfo_t field widths differ between 32- and 64-bit platforms.
	return uint64(si.Freeram) * uint64(si.Unit), nil
}

// Total returns the total RAM of the system in bytes.
func Total() (uint64, error) {
	var si unix.Sysinfo_t
	if err := unix.Sysinfo(&si); err != nil {
		return 0, err
	}
	return uint64(si.Totalram) * uint64(si.Unit), nil
}
