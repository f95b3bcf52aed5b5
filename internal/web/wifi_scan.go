package web

import (
	"context"
	"net/http"
	"sort"
	"strings"
)

type WiFiNetwork struct {
	SSID     string `json:"ssid"`
	Security string `json:"security,omitempty"`
	Signal   int    `json:"signal,omitempty"`
}

type wifiScanResponse struct {
	Networks  []WiFiNetwork `json:"networks"`
	LastError string        `json:"last_error,omitempty"`
}

type wifiScanFunc func(ctx context.Context, iface string) ([]WiFiNetwork, error)

// wifiScanFn is swapped out in tests.
var wifiScanFn wifiScanFunc = scanWiFiNetworks

func WiFiScanHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		iface := strings.TrimSpace(r.URL.Query().Get("iface"))

		nets, err := wifiScanFn(r.Context(), iface)
		resp := wifiScanResponse{Networks: nets}
		if err != nil {
			resp.LastError = err.Error()
		}

		// Stable ordering for the UI: strongest first, SSID tie-break.
		sort.Slice(resp.Networks, func(i, j int) bool {
			a, b := resp.Networks[i], resp.Networks[j]
			if a.Signal != b.Signal {
				return a.Signal > b.Signal
			}
			return a.SSID < b.SSID
		})

		writeJSON(w, resp)
	})
}
