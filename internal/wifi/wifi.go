// Package wifi brings the device network up through NetworkManager: a
// standalone AP that display hosts join, or client mode onto an existing
// network. Everything shells out to nmcli; needs root.
package wifi

import (
	"fmt"
	"net"
	"os/exec"
	"strings"
	"time"
)

const (
	apConn     = "RonaldAP"
	clientConn = "RonaldClient"
)

// Apply brings the configured mode up. Mode "off" (or empty) leaves the
// network alone.
func Apply(mode, ssid, password, apIP string) error {
	switch mode {
	case "", "off":
		return nil
	case "ap":
		return SetupAP(ssid, password, apIP)
	case "client":
		return ConnectClient(ssid, password)
	}
	return fmt.Errorf("unknown wifi mode %q", mode)
}

// EnsureAPInterface creates the uap0 AP interface on top of wlan0 if it
// does not exist yet. Requires root.
func EnsureAPInterface() error {
	// wlan0 carries uap0; power save would let the AP drop off.
	_ = exec.Command("ip", "link", "set", "wlan0", "up").Run()
	_ = exec.Command("iw", "dev", "wlan0", "set", "power_save", "off").Run()

	if err := exec.Command("iw", "dev", "uap0", "info").Run(); err == nil {
		return nil
	}

	// Derive a distinct MAC from wlan0 by flipping the locally
	// administered bit.
	wlan0, err := net.InterfaceByName("wlan0")
	if err != nil {
		return fmt.Errorf("wlan0 not found: %v", err)
	}
	mac := make(net.HardwareAddr, len(wlan0.HardwareAddr))
	copy(mac, wlan0.HardwareAddr)
	if len(mac) > 0 {
		mac[0] ^= 0x02
	}

	cmd := exec.Command("iw", "dev", "wlan0", "interface", "add", "uap0", "type", "__ap", "addr", mac.String())
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("failed to create uap0: %v, output: %s", err, string(out))
	}
	return nil
}

// SetupAP configures the access point connection on uap0.
func SetupAP(ssid, password, ip string) error {
	if err := EnsureAPInterface(); err != nil {
		return err
	}

	if ip == "" {
		ip = "192.168.10.1"
	}
	if !strings.Contains(ip, "/") {
		ip = ip + "/24"
	}

	// Recreate from scratch so stale settings never linger.
	_ = exec.Command("nmcli", "con", "delete", apConn).Run()

	args := []string{
		"con", "add", "type", "wifi", "ifname", "uap0", "con-name", apConn,
		"autoconnect", "yes", "save", "yes",
		"ssid", ssid, "mode", "ap",
		"wifi.band", "bg", "wifi.channel", "6",
	}
	if password != "" {
		args = append(args,
			"wifi-sec.key-mgmt", "wpa-psk",
			"wifi-sec.proto", "rsn",
			"wifi-sec.pairwise", "ccmp",
			"wifi-sec.group", "ccmp",
			"wifi-sec.psk", password,
		)
	}
	if out, err := exec.Command("nmcli", args...).CombinedOutput(); err != nil {
		return fmt.Errorf("failed to create AP connection: %v, output: %s", err, string(out))
	}

	cmd := exec.Command("nmcli", "con", "modify", apConn,
		"ipv4.addresses", ip,
		"ipv4.method", "shared")
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("failed to set AP IP: %v, output: %s", err, string(out))
	}

	if out, err := exec.Command("nmcli", "con", "up", apConn).CombinedOutput(); err != nil {
		return fmt.Errorf("failed to bring up AP: %v, output: %s", err, string(out))
	}
	return nil
}

// ConnectClient joins wlan0 to an external AP.
func ConnectClient(ssid, password string) error {
	// wlan0 may be configured unmanaged for AP use; hand it back first.
	_ = exec.Command("nmcli", "dev", "set", "wlan0", "managed", "yes").Run()
	time.Sleep(1 * time.Second)

	_ = exec.Command("nmcli", "con", "delete", clientConn).Run()

	// 'device wifi connect' autodetects security and handles association.
	args := []string{
		"device", "wifi", "connect", ssid,
		"ifname", "wlan0",
		"name", clientConn,
	}
	if password != "" {
		args = append(args, "password", password)
	}
	if out, err := exec.Command("nmcli", args...).CombinedOutput(); err != nil {
		return fmt.Errorf("failed to connect client: %v, output: %s", err, string(out))
	}
	return nil
}

// CalculateBroadcastAddress returns the broadcast address for ip (CIDR
// optional, /24 assumed). The display sink targets this when no explicit
// destination is configured.
func CalculateBroadcastAddress(ipStr string) (string, error) {
	if !strings.Contains(ipStr, "/") {
		ipStr = ipStr + "/24"
	}
	ip, ipNet, err := net.ParseCIDR(ipStr)
	if err != nil {
		return "", err
	}
	ip4 := ip.To4()
	if ip4 == nil {
		return "", fmt.Errorf("only IPv4 supported")
	}

	mask := ipNet.Mask
	broadcast := make(net.IP, len(ip4))
	for i := 0; i < len(ip4); i++ {
		broadcast[i] = ip4[i] | ^mask[i]
	}
	return broadcast.String(), nil
}

type Status struct {
	APSSID      string `json:"ap_ssid"`
	APIP        string `json:"ap_ip"`
	ClientSSID  string `json:"client_ssid"`
	ClientState string `json:"client_state"`
	ClientIP    string `json:"client_ip"`
}

// GetStatus snapshots both connections from nmcli. Fields stay empty for
// whatever is not up; nmcli failures are not errors here.
func GetStatus() (Status, error) {
	var st Status

	if out, err := exec.Command("nmcli", "-g", "802-11-wireless.ssid", "connection", "show", apConn).Output(); err == nil {
		st.APSSID = strings.TrimSpace(string(out))
	}
	if out, err := exec.Command("nmcli", "-g", "ipv4.addresses", "connection", "show", apConn).Output(); err == nil {
		st.APIP = strings.TrimSpace(string(out))
	}

	out, err := exec.Command("nmcli", "-t", "-f", "NAME,TYPE,DEVICE,STATE", "con", "show", "--active").Output()
	if err == nil {
		for _, line := range strings.Split(string(out), "\n") {
			parts := strings.Split(line, ":")
			if len(parts) < 4 {
				continue
			}
			if parts[2] != "wlan0" || parts[1] != "802-11-wireless" {
				continue
			}
			ssid := lookupConnectionSSID(parts[0])
			if ssid == "" {
				ssid = parts[0]
			}
			st.ClientSSID = ssid
			st.ClientState = parts[3]
			break
		}
	}

	if st.ClientState == "activated" {
		if out, err := exec.Command("nmcli", "-g", "ip4.address", "dev", "show", "wlan0").Output(); err == nil {
			st.ClientIP = strings.TrimSpace(string(out))
		}
	}
	return st, nil
}

func lookupConnectionSSID(connName string) string {
	if strings.TrimSpace(connName) == "" {
		return ""
	}
	if out, err := exec.Command("nmcli", "-g", "802-11-wireless.ssid", "connection", "show", connName).Output(); err == nil {
		return strings.TrimSpace(string(out))
	}
	return ""
}
