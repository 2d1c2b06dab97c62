package transport

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDiscoverFiltersAndSorts(t *testing.T) {
	central := &fakeCentral{adverts: []Advertisement{
		{Name: "P31S", Address: "11", RSSI: -80},
		{Name: "Headphones", Address: "22", RSSI: -30},
		{Name: "polono label", Address: "33", RSSI: -50},
		{Name: "P31S", Address: "11", RSSI: -70},
		{Name: "", Address: "44", RSSI: -10},
	}}

	devices, err := Discover(context.Background(), central, 10*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	if len(devices) != 2 {
		t.Fatalf("got %d devices, want 2: %v", len(devices), devices)
	}
	if devices[0].Address != "33" || devices[1].Address != "11" {
		t.Errorf("got order %s %s, want 33 11", devices[0].Address, devices[1].Address)
	}
	if devices[1].RSSI != -70 {
		t.Errorf("got RSSI %d for repeated advert, want the latest -70", devices[1].RSSI)
	}
}

func TestDiscoverEmpty(t *testing.T) {
	devices, err := Discover(context.Background(), &fakeCentral{}, time.Millisecond)
	if err != nil || len(devices) != 0 {
		t.Errorf("got %v %v, want an empty result", devices, err)
	}
}

func TestDiscoverScanError(t *testing.T) {
	central := &fakeCentral{scanErr: errors.New("adapter off")}
	if _, err := Discover(context.Background(), central, time.Millisecond); err == nil {
		t.Errorf("scan failure was not reported")
	}
}

func TestHardwareAddressFromAdvertisement(t *testing.T) {
	for _, test := range []struct {
		name     string
		payloads [][]byte
		want     string
	}{
		{"none", nil, ""},
		{"short", [][]byte{{1, 2, 3}}, ""},
		{"first six", [][]byte{{0xa1, 0xb2, 0xc3, 0xd4, 0xe5, 0xf6, 0x99}}, "A1:B2:C3:D4:E5:F6"},
		{"skips zeros", [][]byte{make([]byte, 6), {1, 2, 3, 4, 5, 6}}, "01:02:03:04:05:06"},
		{"skips ones", [][]byte{{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}}, ""},
	} {
		t.Run(test.name, func(t *testing.T) {
			if got := HardwareAddressFromAdvertisement(test.payloads); got != test.want {
				t.Errorf("got %q, want %q", got, test.want)
			}
		})
	}
}

func TestKnownProperties(t *testing.T) {
	if p := KnownProperties("0000FF02-0000-1000-8000-00805F9B34FB"); !p.CanWrite() {
		t.Errorf("ff02 not writable: %s", p)
	}
	if p := KnownProperties("6e400003-b5a3-f393-e0a9-e50e24dcca9e"); !p.CanNotify() {
		t.Errorf("nordic rx doesn't notify: %s", p)
	}
	if p := KnownProperties("00002a00-0000-1000-8000-00805f9b34fb"); p != 0 {
		t.Errorf("got %s for an unknown characteristic", p)
	}
}
