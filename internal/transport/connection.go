// This package owns the link to the printer. A Connection binds one write and
// one notify endpoint on a Peripheral, buffers notifications in a bounded
// queue and paces large writes into chunks the link can carry.
//
// Callers serialise their own use of a Connection; only the notification
// queue is shared with the platform callback.
package transport

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.uber.org/atomic"
)

const (
	// DefaultChunkSize is the unit size used when the MTU is unknown or small.
	DefaultChunkSize = 100
	// DefaultChunkDelay is the pause between chunks of a paced write.
	DefaultChunkDelay = 10 * time.Millisecond
	// attOverhead is the ATT opcode and handle carried in every write.
	attOverhead = 3
)

// binding is everything learnt about a peripheral at connect time. It is
// replaced as a whole on reconnect and never mutated.
type binding struct {
	peripheral Peripheral
	address    string
	write      Characteristic
	notify     Characteristic
	hasNotify  bool
	mtu        int
}

type Connection struct {
	central Central
	logger  *slog.Logger
	queue   *NotificationQueue

	current   atomic.Pointer[binding]
	connected atomic.Bool

	hookMu   sync.RWMutex
	observer func([]byte)
	progress func(sent, total int)
}

func NewConnection(central Central, logger *slog.Logger) *Connection {
	if logger == nil {
		logger = slog.Default()
	}
	return &Connection{
		central: central,
		logger:  logger.With("src", "transport"),
		queue:   NewNotificationQueue(MaxQueueSize),
	}
}

// SetObserver registers a callback that sees a copy of every accepted
// notification. It runs on the platform callback and must not block.
func (c *Connection) SetObserver(fn func([]byte)) {
	c.hookMu.Lock()
	c.observer = fn
	c.hookMu.Unlock()
}

// SetProgress registers a callback invoked after every chunk of WriteChunked.
func (c *Connection) SetProgress(fn func(sent, total int)) {
	c.hookMu.Lock()
	c.progress = fn
	c.hookMu.Unlock()
}

// Discover scans with this connection's central. It doesn't touch the link.
func (c *Connection) Discover(ctx context.Context, timeout time.Duration) ([]DeviceHandle, error) {
	return Discover(ctx, c.central, timeout)
}

// Connect binds to address. Any previous binding is torn down first.
func (c *Connection) Connect(ctx context.Context, address string) error {
	if c.current.Load() != nil {
		c.Disconnect()
	}
	c.queue.Clear()

	c.logger.Debug("Connecting to device", "address", address)
	p, err := c.central.Connect(ctx, address)
	if err != nil {
		return fmt.Errorf("Couldn't connect to %s: %w", address, err)
	}

	b, err := bind(p, address)
	if err != nil {
		p.Disconnect()
		return err
	}

	if b.hasNotify {
		if err := p.Subscribe(b.notify, c.ingest); err != nil {
			p.Disconnect()
			return fmt.Errorf("Couldn't enable notifications on %s: %w", b.notify.UUID, err)
		}
	} else {
		c.logger.Warn("Device has no notify characteristic, replies won't be seen", "address", address)
	}

	if mtu, err := p.MTU(); err == nil {
		b.mtu = mtu
	} else {
		c.logger.Debug("MTU not available, using default unit size", "err", err)
	}

	c.current.Store(b)
	c.connected.Store(true)
	go c.watch(b)

	c.logger.Info("Connected to printer",
		"address", address,
		"write", b.write.UUID,
		"notify", b.notify.UUID,
		"unit", c.NegotiatedUnitSize(),
	)
	return nil
}

// bind picks the first writable and the first notifying characteristic.
func bind(p Peripheral, address string) (*binding, error) {
	chars, err := p.Characteristics()
	if err != nil {
		return nil, fmt.Errorf("Couldn't discover characteristics: %w", err)
	}

	b := &binding{peripheral: p, address: address}
	hasWrite := false
	for _, ch := range chars {
		if !hasWrite && ch.Props.CanWrite() {
			b.write, hasWrite = ch, true
		}
		if !b.hasNotify && ch.Props.CanNotify() {
			b.notify, b.hasNotify = ch, true
		}
	}
	if !hasWrite {
		return nil, ErrNoWriteEndpoint
	}
	return b, nil
}

// watch marks the connection down when the platform reports the link lost.
func (c *Connection) watch(b *binding) {
	<-b.peripheral.Disconnected()
	if c.current.Load() == b && c.connected.CompareAndSwap(true, false) {
		c.logger.Warn("Printer disconnected", "address", b.address)
	}
}

// Disconnect unsubscribes and releases the link. It is always safe to call.
func (c *Connection) Disconnect() {
	b := c.current.Swap(nil)
	c.connected.Store(false)
	if b == nil {
		return
	}

	if b.hasNotify {
		if err := b.peripheral.Unsubscribe(b.notify); err != nil {
			c.logger.Debug("Couldn't disable notifications", "err", err)
		}
	}
	if err := b.peripheral.Disconnect(); err != nil {
		c.logger.Debug("Couldn't disconnect cleanly", "err", err)
	}
	c.logger.Info("Disconnected from printer", "address", b.address)
}

func (c *Connection) IsConnected() bool {
	return c.connected.Load() && c.current.Load() != nil
}

// Address of the bound device, empty when disconnected.
func (c *Connection) Address() string {
	if b := c.current.Load(); b != nil {
		return b.address
	}
	return ""
}

// Endpoints returns the bound write and notify characteristics.
func (c *Connection) Endpoints() (write, notify Characteristic, ok bool) {
	b := c.current.Load()
	if b == nil {
		return Characteristic{}, Characteristic{}, false
	}
	return b.write, b.notify, true
}

// NegotiatedUnitSize is the usable payload per write: MTU minus the ATT
// header, never below DefaultChunkSize.
func (c *Connection) NegotiatedUnitSize() int {
	b := c.current.Load()
	if b == nil || b.mtu == 0 {
		return DefaultChunkSize
	}
	return max(b.mtu-attOverhead, DefaultChunkSize)
}

// Write sends data in a single write. Without requireAck the write goes out
// as write-without-response when the endpoint supports it.
func (c *Connection) Write(data []byte, requireAck bool) error {
	b := c.current.Load()
	if b == nil || !c.connected.Load() {
		return ErrNotConnected
	}

	withResponse := requireAck || b.write.Props&PropWriteWithoutResponse == 0
	if err := b.peripheral.Write(b.write, data, withResponse); err != nil {
		return fmt.Errorf("Couldn't write %d bytes: %w", len(data), err)
	}
	c.logger.Debug("Wrote data to device", "size", len(data))
	return nil
}

// WriteChunked splits data into chunks of at most chunkSize and writes them in
// order, sleeping delay between chunks. A chunkSize of 0 or less uses
// NegotiatedUnitSize. Cancelling ctx stops before the next chunk is issued.
func (c *Connection) WriteChunked(ctx context.Context, data []byte, chunkSize int, delay time.Duration) error {
	if chunkSize <= 0 {
		chunkSize = c.NegotiatedUnitSize()
	}
	total := (len(data) + chunkSize - 1) / chunkSize

	c.hookMu.RLock()
	progress := c.progress
	c.hookMu.RUnlock()

	for i := range total {
		if i > 0 && delay > 0 {
			t := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				t.Stop()
				return &ChunkError{Index: i, Total: total, Err: ctx.Err()}
			case <-t.C:
			}
		} else if err := ctx.Err(); err != nil {
			return &ChunkError{Index: i, Total: total, Err: err}
		}

		end := min((i+1)*chunkSize, len(data))
		if err := c.Write(data[i*chunkSize:end], false); err != nil {
			c.logger.Error("Couldn't write chunk", "index", i, "total", total, "err", err)
			return &ChunkError{Index: i, Total: total, Err: err}
		}
		if progress != nil {
			progress(end, len(data))
		}
	}
	return nil
}

// ReadNotification pops the oldest notification, waiting up to timeout.
// ok is false when nothing arrived in time.
func (c *Connection) ReadNotification(timeout time.Duration) (data []byte, ok bool) {
	return c.queue.Pop(timeout)
}

// DrainNotifications discards anything already queued, e.g. stale replies
// before a new query.
func (c *Connection) DrainNotifications() int {
	n := 0
	for {
		if _, ok := c.queue.Pop(0); !ok {
			return n
		}
		n++
	}
}

// ingest is the platform notification callback. It never blocks.
func (c *Connection) ingest(data []byte) {
	if len(data) > MaxResponseSize {
		c.logger.Warn("Dropping oversized notification", "size", len(data), "max", MaxResponseSize)
		return
	}

	entry := make([]byte, len(data))
	copy(entry, data)
	if c.queue.Push(entry) {
		c.logger.Debug("Notification queue full, dropped oldest entry")
	}

	c.hookMu.RLock()
	observer := c.observer
	c.hookMu.RUnlock()
	if observer != nil {
		seen := make([]byte, len(entry))
		copy(seen, entry)
		observer(seen)
	}
}
