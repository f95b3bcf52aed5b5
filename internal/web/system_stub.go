//go:build !linux

package web

func snapshotSystem(_ string) *SystemSnapshot {
	return &SystemSnapshot{
		LocalAddrs: localInterfaceAddrs(),
		LastError:  "system readouts unsupported on this platform",
	}
}
