// This file adapts tinygo's bluetooth stack to the Central and Peripheral
// interfaces. The stack doesn't expose GATT properties, so endpoints are
// recognised from the UUIDs label printers are known to use.
package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"tinygo.org/x/bluetooth"
)

// targetedScanTimeout bounds the scan Connect runs for an address it hasn't seen.
const targetedScanTimeout = 10 * time.Second

// Returns the full 128 bit form of a 16 bit Bluetooth SIG UUID
func shortUUID(v uint16) bluetooth.UUID {
	return bluetooth.NewUUID([16]byte{
		0x00, 0x00, byte(v >> 8), byte(v), 0x00, 0x00, 0x10, 0x00, 0x80, 0x00, 0x00, 0x80, 0x5f, 0x9b, 0x34, 0xfb,
	})
}

const writable = PropWrite | PropWriteWithoutResponse

var knownEndpoints = map[string]Property{
	// primary vendor service 0xFF00
	shortUUID(0xff01).String(): PropRead,
	shortUUID(0xff02).String(): writable,
	shortUUID(0xff03).String(): PropNotify,
	// alternate vendor service 0xAE00 / 0xAE30
	shortUUID(0xae01).String(): writable,
	shortUUID(0xae02).String(): PropNotify,
	// Nordic UART
	"6e400002-b5a3-f393-e0a9-e50e24dcca9e": writable,
	"6e400003-b5a3-f393-e0a9-e50e24dcca9e": PropNotify,
	// Microchip transparent UART
	"49535343-8841-43f4-a8d4-ecbe34729bb3": writable,
	"49535343-1e4d-4bd9-ba61-23c647249616": PropNotify,
}

// KnownProperties returns what a characteristic UUID is known to support, or
// 0 for UUIDs outside the table.
func KnownProperties(uuid string) Property {
	return knownEndpoints[strings.ToLower(uuid)]
}

type BluetoothCentral struct {
	adapter *bluetooth.Adapter

	mu          sync.Mutex
	seen        map[string]bluetooth.Address
	peripherals map[string]*blePeripheral
}

// NewBluetoothCentral enables the default adapter. The process should only
// create one, since the adapter's connect handler is global.
func NewBluetoothCentral() (*BluetoothCentral, error) {
	adapter := bluetooth.DefaultAdapter

	if err := adapter.Enable(); err != nil {
		slog.Error("Failed to enable Bluetooth", "err", err)
		return nil, fmt.Errorf("Couldn't enable Bluetooth adapter: %w", err)
	}

	c := &BluetoothCentral{
		adapter:     adapter,
		seen:        map[string]bluetooth.Address{},
		peripherals: map[string]*blePeripheral{},
	}
	adapter.SetConnectHandler(func(d bluetooth.Device, connected bool) {
		address := d.Address.String()
		if connected {
			slog.Debug("Connected!", "address", address)
			return
		}

		c.mu.Lock()
		p := c.peripherals[address]
		delete(c.peripherals, address)
		c.mu.Unlock()

		if p != nil {
			slog.Info("Disconnected!", "address", address)
			p.markDisconnected()
		} else {
			slog.Debug("Disconnected event fired but printer is not connected or address doesn't match", "address", address)
		}
	})

	return c, nil
}

func (c *BluetoothCentral) Scan(ctx context.Context, found func(Advertisement)) error {
	done := make(chan error, 1)

	go func() {
		done <- c.adapter.Scan(func(adapter *bluetooth.Adapter, result bluetooth.ScanResult) {
			address := result.Address.String()
			c.mu.Lock()
			c.seen[address] = result.Address
			c.mu.Unlock()

			payloads := [][]byte{}
			for _, m := range result.ManufacturerData() {
				payloads = append(payloads, m.Data)
			}
			found(Advertisement{
				Name:             result.LocalName(),
				Address:          address,
				RSSI:             int(result.RSSI),
				ManufacturerData: payloads,
			})
		})
	}()

	select {
	case err := <-done:
		if err != nil {
			slog.Error("Failed to scan for devices", "err", err)
		}
		return err
	case <-ctx.Done():
		return stopScan(c.adapter.StopScan, done, stopScanInterval)
	}
}

// stopScanInterval is how often a stop is retried while the scan is still
// starting up.
const stopScanInterval = 10 * time.Millisecond

// stopScan stops a running scan and waits for it to return. StopScan fails
// until the adapter has entered Scan, so it is retried until it takes or the
// scan ends on its own.
func stopScan(stop func() error, done <-chan error, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		err := stop()
		if err == nil {
			<-done
			return nil
		}
		slog.Debug("Couldn't stop scan yet", "err", err)

		select {
		case err := <-done:
			return err
		case <-ticker.C:
		}
	}
}

// lookup returns the platform address for a previously scanned device, or
// scans until it shows up.
func (c *BluetoothCentral) lookup(ctx context.Context, address string) (bluetooth.Address, error) {
	c.mu.Lock()
	addr, ok := c.seen[address]
	c.mu.Unlock()
	if ok {
		return addr, nil
	}

	scanCtx, cancel := context.WithTimeout(ctx, targetedScanTimeout)
	defer cancel()

	err := c.Scan(scanCtx, func(a Advertisement) {
		if strings.EqualFold(a.Address, address) {
			cancel()
		}
	})
	if err != nil {
		return bluetooth.Address{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for seen, addr := range c.seen {
		if strings.EqualFold(seen, address) {
			return addr, nil
		}
	}
	return bluetooth.Address{}, fmt.Errorf("%w: %s", ErrNoDevice, address)
}

func (c *BluetoothCentral) Connect(ctx context.Context, address string) (Peripheral, error) {
	addr, err := c.lookup(ctx, address)
	if err != nil {
		return nil, err
	}

	slog.Debug("Connecting to device...", "address", address)
	device, err := c.adapter.Connect(addr, bluetooth.ConnectionParams{})
	if err != nil {
		slog.Error("Failed to connect to device", "err", err)
		return nil, err
	}

	p := &blePeripheral{
		device:  device,
		address: address,
		chars:   map[string]bluetooth.DeviceCharacteristic{},
		done:    make(chan struct{}),
	}
	if err := p.discover(); err != nil {
		device.Disconnect()
		return nil, err
	}

	c.mu.Lock()
	c.peripherals[addr.String()] = p
	c.mu.Unlock()
	return p, nil
}

type blePeripheral struct {
	device  bluetooth.Device
	address string
	chars   map[string]bluetooth.DeviceCharacteristic
	order   []Characteristic
	done    chan struct{}
	once    sync.Once
}

func (p *blePeripheral) discover() error {
	slog.Debug("Discovering services...")
	services, err := p.device.DiscoverServices(nil)
	if err != nil {
		slog.Error("Failed to discover services", "err", err)
		return fmt.Errorf("Couldn't discover services: %w", err)
	}

	for _, svc := range services {
		slog.Debug("Discovering characteristics...", "service", svc.UUID().String())
		chars, err := svc.DiscoverCharacteristics(nil)
		if err != nil {
			slog.Warn("Failed to discover characteristics", "service", svc.UUID().String(), "err", err)
			continue
		}
		for _, ch := range chars {
			uuid := strings.ToLower(ch.UUID().String())
			p.chars[uuid] = ch
			p.order = append(p.order, Characteristic{
				Service: svc.UUID().String(),
				UUID:    uuid,
				Props:   KnownProperties(uuid),
			})
		}
	}
	return nil
}

func (p *blePeripheral) Characteristics() ([]Characteristic, error) {
	return p.order, nil
}

func (p *blePeripheral) characteristic(c Characteristic) (bluetooth.DeviceCharacteristic, error) {
	ch, ok := p.chars[c.UUID]
	if !ok {
		return bluetooth.DeviceCharacteristic{}, fmt.Errorf("Unknown characteristic %s", c.UUID)
	}
	return ch, nil
}

func (p *blePeripheral) Write(c Characteristic, data []byte, withResponse bool) error {
	ch, err := p.characteristic(c)
	if err != nil {
		return err
	}
	return writeCharacteristic(ch, data, withResponse)
}

type unackedWriter interface {
	WriteWithoutResponse(p []byte) (int, error)
}

type ackedWriter interface {
	Write(p []byte) (int, error)
}

// writeCharacteristic sends an acknowledged write where the platform offers
// one. BlueZ in this stack only has WriteWithoutResponse, which is used for
// both there.
func writeCharacteristic(ch unackedWriter, data []byte, withResponse bool) error {
	if withResponse {
		if w, ok := ch.(ackedWriter); ok {
			_, err := w.Write(data)
			return err
		}
	}
	_, err := ch.WriteWithoutResponse(data)
	return err
}

func (p *blePeripheral) Subscribe(c Characteristic, fn func([]byte)) error {
	ch, err := p.characteristic(c)
	if err != nil {
		return err
	}
	return ch.EnableNotifications(fn)
}

func (p *blePeripheral) Unsubscribe(c Characteristic) error {
	ch, err := p.characteristic(c)
	if err != nil {
		return err
	}
	return ch.EnableNotifications(nil)
}

func (p *blePeripheral) MTU() (int, error) {
	for _, c := range p.order {
		if c.Props.CanWrite() {
			mtu, err := p.chars[c.UUID].GetMTU()
			return int(mtu), err
		}
	}
	return 0, errors.New("No writable characteristic to query MTU on")
}

func (p *blePeripheral) Disconnected() <-chan struct{} {
	return p.done
}

func (p *blePeripheral) markDisconnected() {
	p.once.Do(func() { close(p.done) })
}

func (p *blePeripheral) Disconnect() error {
	defer p.markDisconnected()
	return p.device.Disconnect()
}
