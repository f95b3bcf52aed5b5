package web

import (
	"net"
	"sort"
)

// SystemSnapshot carries host health readouts for the status page.
type SystemSnapshot struct {
	MemTotalBytes uint64        `json:"mem_total_bytes,omitempty"`
	MemFreeBytes  uint64        `json:"mem_free_bytes,omitempty"`
	Disk          *DiskSnapshot `json:"disk,omitempty"`
	CPUTempC      *float64      `json:"cpu_temp_c,omitempty"`
	LocalAddrs    []string      `json:"local_addrs,omitempty"`
	LastError     string        `json:"last_error,omitempty"`
}

// DiskSnapshot reports usage of the filesystem holding the tile store.
type DiskSnapshot struct {
	Path       string `json:"path"`
	TotalBytes uint64 `json:"total_bytes"`
	FreeBytes  uint64 `json:"free_bytes"`
	AvailBytes uint64 `json:"avail_bytes"`
	LastError  string `json:"last_error,omitempty"`
}

func localInterfaceAddrs() []string {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil
	}

	out := make([]string, 0, 8)
	for _, iface := range ifaces {
		if (iface.Flags&net.FlagUp) == 0 || (iface.Flags&net.FlagLoopback) != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			var ip net.IP
			var ipnet *net.IPNet
			switch v := a.(type) {
			case *net.IPNet:
				ip = v.IP
				ipnet = v
			case *net.IPAddr:
				ip = v.IP
			}
			if ip == nil {
				continue
			}
			ip4 := ip.To4()
			if ip4 == nil || ip4.IsLoopback() || ip4.IsLinkLocalUnicast() {
				continue
			}
			if ipnet != nil {
				out = append(out, iface.Name+": "+ipnet.String())
			} else {
				out = append(out, iface.Name+": "+ip4.String())
			}
		}
	}

	sort.Strings(out)
	return out
}
