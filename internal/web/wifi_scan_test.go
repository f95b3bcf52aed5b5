package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWiFiScanHandler_SortsStrongestFirst(t *testing.T) {
	old := wifiScanFn
	defer func() { wifiScanFn = old }()

	wifiScanFn = func(ctx context.Context, iface string) ([]WiFiNetwork, error) {
		if ctx == nil {
			t.Fatalf("expected ctx")
		}
		if iface != "wlan0" {
			t.Fatalf("iface=%q", iface)
		}
		return []WiFiNetwork{
			{SSID: "barn", Signal: 10},
			{SSID: "house", Signal: 90},
			{SSID: "attic", Signal: 90},
		}, nil
	}

	ts := httptest.NewServer(WiFiScanHandler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/?iface=wlan0")
	if err != nil {
		t.Fatalf("GET error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d", resp.StatusCode)
	}

	var got wifiScanResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.LastError != "" {
		t.Fatalf("last_error=%q", got.LastError)
	}
	want := []string{"attic", "house", "barn"}
	if len(got.Networks) != len(want) {
		t.Fatalf("len=%d", len(got.Networks))
	}
	for i, ssid := range want {
		if got.Networks[i].SSID != ssid {
			t.Fatalf("networks[%d]=%+v want ssid=%q", i, got.Networks[i], ssid)
		}
	}
}

func TestWiFiScanHandler_ReportsScanError(t *testing.T) {
	old := wifiScanFn
	defer func() { wifiScanFn = old }()

	wifiScanFn = func(context.Context, string) ([]WiFiNetwork, error) {
		return nil, errors.New("nmcli failed: no device")
	}

	ts := httptest.NewServer(WiFiScanHandler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("GET error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d", resp.StatusCode)
	}

	var got wifiScanResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.LastError != "nmcli failed: no device" {
		t.Fatalf("last_error=%q", got.LastError)
	}
}

func TestWiFiScanHandler_PostNotAllowed(t *testing.T) {
	ts := httptest.NewServer(WiFiScanHandler())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/", "application/json", nil)
	if err != nil {
		t.Fatalf("POST error: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("status=%d", resp.StatusCode)
	}
}
