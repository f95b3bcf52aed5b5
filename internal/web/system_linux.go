//go:build linux

package web

import (
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"

	"ronald-ng/internal/meminfo"
)

const cpuTempPath = "/sys/class/thermal/thermal_zone0/temp"

func snapshotSystem(tileDir string) *SystemSnapshot {
	snap := &SystemSnapshot{LocalAddrs: localInterfaceAddrs()}

	if total, err := meminfo.Total(); err == nil {
		snap.MemTotalBytes = total
	}
	if free, err := meminfo.Free(); err != nil {
		snap.LastError = err.Error()
	} else {
		snap.MemFreeBytes = free
	}

	if tileDir != "" {
		snap.Disk = snapshotDisk(tileDir)
	}

	if t, err := readCPUTempFile(cpuTempPath); err == nil {
		snap.CPUTempC = &t
	}
	return snap
}

func snapshotDisk(path string) *DiskSnapshot {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return &DiskSnapshot{Path: path, LastError: err.Error()}
	}
	bsize := uint64(st.Bsize)
	return &DiskSnapshot{
		Path:       path,
		TotalBytes: st.Blocks * bsize,
		FreeBytes:  st.Bfree * bsize,
		AvailBytes: st.Bavail * bsize,
	}
}

// readCPUTempFile parses the kernel's millidegree thermal readout.
func readCPUTempFile(path string) (float64, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	milli, err := strconv.ParseInt(strings.TrimSpace(string(b)), 10, 64)
	if err != nil {
		return 0, err
	}
	return float64(milli) / 1000.0, nil
}
