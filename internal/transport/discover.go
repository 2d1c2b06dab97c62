package transport

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
)

// KnownNames are the name fragments printers advertise with, matched
// case-insensitively.
var KnownNames = []string{"P31", "POLONO", "MAKEID", "NIIMBOT", "LABEL"}

// DeviceHandle is one printer found by a scan.
type DeviceHandle struct {
	Name    string
	Address string
	RSSI    int
	// HardwareAddress is recovered from advertisement data when the platform
	// only exposes a random address or an OS specific identifier.
	HardwareAddress string
}

func (d DeviceHandle) String() string {
	return fmt.Sprintf("%s (%s, %d dBm)", d.Name, d.Address, d.RSSI)
}

// IsPrinterName reports whether name looks like a supported printer.
func IsPrinterName(name string) bool {
	upper := strings.ToUpper(name)
	for _, known := range KnownNames {
		if strings.Contains(upper, known) {
			return true
		}
	}
	return false
}

// Discover scans for timeout and returns matching printers, strongest signal
// first. An empty result is not an error.
func Discover(ctx context.Context, central Central, timeout time.Duration) ([]DeviceHandle, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var mu sync.Mutex
	found := map[string]DeviceHandle{}

	err := central.Scan(ctx, func(a Advertisement) {
		if !IsPrinterName(a.Name) {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if _, seen := found[a.Address]; !seen {
			slog.Debug("Found printer", "name", a.Name, "address", a.Address, "rssi", a.RSSI)
		}
		found[a.Address] = DeviceHandle{
			Name:            a.Name,
			Address:         a.Address,
			RSSI:            a.RSSI,
			HardwareAddress: HardwareAddressFromAdvertisement(a.ManufacturerData),
		}
	})
	if err != nil {
		return nil, fmt.Errorf("Couldn't scan for devices: %w", err)
	}

	mu.Lock()
	defer mu.Unlock()
	devices := make([]DeviceHandle, 0, len(found))
	for _, d := range found {
		devices = append(devices, d)
	}
	sort.SliceStable(devices, func(i, j int) bool {
		if devices[i].RSSI != devices[j].RSSI {
			return devices[i].RSSI > devices[j].RSSI
		}
		return devices[i].Address < devices[j].Address
	})
	return devices, nil
}

var (
	allZero = make([]byte, 6)
	allOnes = bytes.Repeat([]byte{0xFF}, 6)
)

// HardwareAddressFromAdvertisement takes the first six bytes of the first
// manufacturer payload that holds a plausible MAC.
func HardwareAddressFromAdvertisement(payloads [][]byte) string {
	for _, p := range payloads {
		if len(p) < 6 {
			continue
		}
		mac := p[:6]
		if bytes.Equal(mac, allZero) || bytes.Equal(mac, allOnes) {
			continue
		}
		return fmt.Sprintf("%02X:%02X:%02X:%02X:%02X:%02X", mac[0], mac[1], mac[2], mac[3], mac[4], mac[5])
	}
	return ""
}
