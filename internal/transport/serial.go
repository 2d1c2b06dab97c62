package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

const (
	DefaultBaudRate   = 115200
	serialReadTimeout = 100 * time.Millisecond
	serialReadBuffer  = 512
)

// Endpoints a serial link presents, so the rest of the stack can treat it
// like a GATT pair.
var (
	SerialTx = Characteristic{Service: "spp", UUID: "spp-tx", Props: PropWriteWithoutResponse}
	SerialRx = Characteristic{Service: "spp", UUID: "spp-rx", Props: PropNotify}
)

var errNoMTU = errors.New("Serial links have no MTU")

// SerialCentral reaches printers through a serial port, typically an RFCOMM
// device bound to the printer's SPP channel. Addresses are port names.
type SerialCentral struct {
	BaudRate int
}

func NewSerialCentral(baudRate int) *SerialCentral {
	if baudRate <= 0 {
		baudRate = DefaultBaudRate
	}
	return &SerialCentral{BaudRate: baudRate}
}

// Scan reports each serial port once, named after its product string when
// the OS provides one.
func (c *SerialCentral) Scan(ctx context.Context, found func(Advertisement)) error {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return fmt.Errorf("Couldn't list serial ports: %w", err)
	}
	for _, p := range ports {
		if ctx.Err() != nil {
			return nil
		}
		name := p.Name
		if p.Product != "" {
			name = p.Product + " " + p.Name
		}
		found(Advertisement{Name: name, Address: p.Name})
	}
	return nil
}

func (c *SerialCentral) Connect(ctx context.Context, address string) (Peripheral, error) {
	mode := &serial.Mode{
		BaudRate: c.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(address, mode)
	if err != nil {
		return nil, fmt.Errorf("Failed to open port %s: %w", address, err)
	}
	if err := port.SetReadTimeout(serialReadTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("Couldn't set read timeout on %s: %w", address, err)
	}

	return &serialPeripheral{
		port:    port,
		address: address,
		done:    make(chan struct{}),
	}, nil
}

type serialPeripheral struct {
	port    serial.Port
	address string

	mu      sync.Mutex
	stop    chan struct{}
	reading sync.WaitGroup

	done chan struct{}
	once sync.Once
}

func (p *serialPeripheral) Characteristics() ([]Characteristic, error) {
	return []Characteristic{SerialTx, SerialRx}, nil
}

func (p *serialPeripheral) Write(c Characteristic, data []byte, withResponse bool) error {
	for len(data) > 0 {
		n, err := p.port.Write(data)
		if err != nil {
			p.markDisconnected()
			return err
		}
		data = data[n:]
	}
	return nil
}

// Subscribe starts a reader goroutine that hands every read to fn.
func (p *serialPeripheral) Subscribe(c Characteristic, fn func([]byte)) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stop != nil {
		return errors.New("Already subscribed")
	}
	p.stop = make(chan struct{})

	p.reading.Add(1)
	go p.read(p.stop, fn)
	return nil
}

func (p *serialPeripheral) read(stop chan struct{}, fn func([]byte)) {
	defer p.reading.Done()
	buf := make([]byte, serialReadBuffer)
	for {
		select {
		case <-stop:
			return
		default:
		}

		n, err := p.port.Read(buf)
		if err != nil {
			slog.Debug("Serial read failed", "port", p.address, "err", err)
			p.markDisconnected()
			return
		}
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			fn(data)
		}
	}
}

func (p *serialPeripheral) Unsubscribe(c Characteristic) error {
	p.mu.Lock()
	stop := p.stop
	p.stop = nil
	p.mu.Unlock()

	if stop != nil {
		close(stop)
		p.reading.Wait()
	}
	return nil
}

func (p *serialPeripheral) MTU() (int, error) {
	return 0, errNoMTU
}

func (p *serialPeripheral) Disconnected() <-chan struct{} {
	return p.done
}

func (p *serialPeripheral) markDisconnected() {
	p.once.Do(func() { close(p.done) })
}

func (p *serialPeripheral) Disconnect() error {
	p.Unsubscribe(SerialRx)
	defer p.markDisconnected()
	return p.port.Close()
}
