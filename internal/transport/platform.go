package transport

import (
	"context"
	"strings"
)

// Property is the set of GATT operations a characteristic supports.
type Property uint8

const (
	PropRead Property = 1 << iota
	PropWrite
	PropWriteWithoutResponse
	PropNotify
	PropIndicate
)

func (p Property) CanWrite() bool {
	return p&(PropWrite|PropWriteWithoutResponse) != 0
}

func (p Property) CanNotify() bool {
	return p&(PropNotify|PropIndicate) != 0
}

func (p Property) String() string {
	names := []string{}
	for _, f := range []struct {
		p    Property
		name string
	}{
		{PropRead, "read"},
		{PropWrite, "write"},
		{PropWriteWithoutResponse, "write-without-response"},
		{PropNotify, "notify"},
		{PropIndicate, "indicate"},
	} {
		if p&f.p != 0 {
			names = append(names, f.name)
		}
	}
	return strings.Join(names, ",")
}

// Characteristic identifies one endpoint on a connected peripheral.
type Characteristic struct {
	Service string
	UUID    string
	Props   Property
}

// Advertisement is one scan result as reported by the platform.
type Advertisement struct {
	Name    string
	Address string
	RSSI    int
	// Manufacturer specific data payloads, one per company id.
	ManufacturerData [][]byte
}

// Central is the platform side of discovery and connection setup.
type Central interface {
	// Scan reports advertisements until ctx is done. It returns nil when the
	// scan ends because of ctx.
	Scan(ctx context.Context, found func(Advertisement)) error
	Connect(ctx context.Context, address string) (Peripheral, error)
}

// Peripheral is one connected device.
type Peripheral interface {
	// Characteristics lists every characteristic of every service, in
	// service discovery order.
	Characteristics() ([]Characteristic, error)
	Write(c Characteristic, data []byte, withResponse bool) error
	// Subscribe delivers notifications to fn. fn must not block.
	Subscribe(c Characteristic, fn func([]byte)) error
	Unsubscribe(c Characteristic) error
	// MTU reports the negotiated ATT MTU, or an error if the platform hides it.
	MTU() (int, error)
	// Disconnected is closed when the link drops or Disconnect is called.
	Disconnected() <-chan struct{}
	Disconnect() error
}
