//go:build linux

package web

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// splitNMCLIFields splits one line of `nmcli -t` output. Terse mode uses
// ':' separators and escapes ':' and '\' with a backslash, so
// "My\:SSID:70:WPA2" carries the SSID "My:SSID".
func splitNMCLIFields(line string) []string {
	fields := make([]string, 0, 3)
	var cur strings.Builder
	cur.Grow(len(line))
	for i := 0; i < len(line); i++ {
		switch c := line[i]; c {
		case '\\':
			if i+1 < len(line) {
				i++
				cur.WriteByte(line[i])
			} else {
				// Trailing backslash; keep it.
				cur.WriteByte('\\')
			}
		case ':':
			fields = append(fields, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	return append(fields, cur.String())
}

func scanWiFiNetworks(ctx context.Context, iface string) ([]WiFiNetwork, error) {
	// A full rescan can take several seconds on small chipsets; bound it
	// so a wedged driver cannot hang the request forever.
	cmdCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	args := []string{"-t", "-f", "SSID,SIGNAL,SECURITY", "dev", "wifi", "list", "--rescan", "yes"}
	if iface != "" {
		args = append(args, "ifname", iface)
	}

	out, err := exec.CommandContext(cmdCtx, "nmcli", args...).Output()
	if err != nil {
		if cmdCtx.Err() != nil {
			// exec reports "signal: killed" when the context fires.
			return nil, errors.New("nmcli scan timed out")
		}
		var ee *exec.ExitError
		if errors.As(err, &ee) {
			if stderr := bytes.TrimSpace(ee.Stderr); len(stderr) > 0 {
				return nil, fmt.Errorf("nmcli failed: %s", stderr)
			}
		}
		return nil, fmt.Errorf("nmcli failed: %v", err)
	}

	// Access points repeat per band; keep the strongest entry per SSID and
	// backfill security info from weaker siblings when it is missing.
	best := make(map[string]WiFiNetwork)
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		parts := splitNMCLIFields(line)
		ssid := strings.TrimSpace(parts[0])
		if ssid == "" {
			// Hidden network.
			continue
		}

		n := WiFiNetwork{SSID: ssid}
		if len(parts) > 1 {
			if v, err := strconv.Atoi(strings.TrimSpace(parts[1])); err == nil {
				n.Signal = v
			}
		}
		if len(parts) > 2 {
			n.Security = strings.TrimSpace(parts[2])
		}

		prev, seen := best[ssid]
		switch {
		case !seen:
			best[ssid] = n
		case n.Signal > prev.Signal:
			if n.Security == "" {
				n.Security = prev.Security
			}
			best[ssid] = n
		case prev.Security == "" && n.Security != "":
			prev.Security = n.Security
			best[ssid] = prev
		}
	}

	nets := make([]WiFiNetwork, 0, len(best))
	for _, n := range best {
		nets = append(nets, n)
	}
	return nets, nil
}
