// Package printer drives one label printer over a Transport: connecting
// with retries, turning images into jobs in the chosen protocol and sending
// them with a bounded retry budget.
//
// Every failure is returned as an *Error whose Kind says which stage broke,
// so callers can tell an unreachable printer from a rejected job or an
// oversized image.
package printer

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/atomic"

	"tomgalvin.uk/p31print/internal/bitmap"
	"tomgalvin.uk/p31print/internal/imaging"
	"tomgalvin.uk/p31print/internal/packet"
	"tomgalvin.uk/p31print/internal/tspl"
	"tomgalvin.uk/p31print/internal/transport"
)

// Transport is the link a Printer talks through. *transport.Connection
// implements it.
type Transport interface {
	Connect(ctx context.Context, address string) error
	Disconnect()
	IsConnected() bool
	Write(data []byte, requireAck bool) error
	WriteChunked(ctx context.Context, data []byte, chunkSize int, delay time.Duration) error
	ReadNotification(timeout time.Duration) ([]byte, bool)
	DrainNotifications() int
}

type Printer struct {
	transport Transport
	opts      Options
	logger    *slog.Logger

	// mu serialises operations; only one command sequence is on the wire
	// at a time.
	mu      sync.Mutex
	state   atomic.Int32
	address atomic.String
}

func New(t Transport, opts Options, logger *slog.Logger) *Printer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Printer{
		transport: t,
		opts:      opts,
		logger:    logger.With("src", "printer"),
	}
}

func (p *Printer) State() State {
	return State(p.state.Load())
}

func (p *Printer) setState(s State) {
	if old := State(p.state.Swap(int32(s))); old != s {
		p.logger.Debug("State changed", "from", old, "to", s)
	}
}

// Address of the printer last connected to.
func (p *Printer) Address() string {
	return p.address.Load()
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Connect links to address, trying up to maxRetries more times after the
// first failure. Once linked it sends a CONFIG? query and logs the reply,
// but a silent printer is still considered connected.
func (p *Printer) Connect(ctx context.Context, address string, maxRetries int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if address == "" {
		return &Error{Kind: Connection, Op: "connect", Err: transport.ErrNoDevice}
	}
	maxRetries = max(maxRetries, 0)

	p.setState(Connecting)
	var lastErr error
	attempts := 0
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			p.logger.Info("Retrying connection", "address", address, "attempt", attempt+1, "of", maxRetries+1)
			if err := sleep(ctx, p.opts.RetryDelay); err != nil {
				lastErr = err
				break
			}
		}

		attempts++
		lastErr = p.transport.Connect(ctx, address)
		if lastErr == nil {
			break
		}
		p.logger.Warn("Couldn't connect to printer", "address", address, "attempt", attempts, "err", lastErr)
	}
	if lastErr != nil {
		p.setState(Failed)
		return &Error{Kind: Connection, Op: "connect", Attempts: attempts, Err: lastErr}
	}

	p.address.Store(address)
	p.setState(AwaitingHandshake)
	p.handshake(ctx)
	p.setState(Ready)
	return nil
}

func (p *Printer) handshake(ctx context.Context) {
	data, err := p.query(ctx, tspl.ConfigQuery(), p.opts.HandshakeTimeout, isConfigReply)
	if err != nil {
		p.logger.Debug("No reply to status query, continuing", "err", err)
		return
	}
	if cfg, ok := p.opts.Decoding.ParseConfig(data); ok {
		p.logger.Info("Printer config",
			"resolution", cfg.Resolution,
			"hardware", cfg.HardwareVersion,
			"firmware", cfg.FirmwareVersion,
		)
	} else {
		p.logger.Debug("Couldn't parse handshake reply", "reply", fmt.Sprintf("% x", data))
	}
}

// Disconnect releases the link. It's safe to call at any time.
func (p *Printer) Disconnect() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.transport.Disconnect()
	p.setState(Idle)
}

// PrintImage loads src, renders it in opts.Protocol and sends it. A failed
// write is retried up to maxRetries times while the link is up; if the link
// drops the job fails at once with a Connection error.
func (p *Printer) PrintImage(ctx context.Context, src imaging.Source, opts PrintOptions, maxRetries int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	logger := p.logger.With("job", uuid.NewString())

	if p.State() != Ready || !p.transport.IsConnected() {
		return &Error{Kind: Connection, Op: "print", Err: ErrNotReady}
	}

	img, err := imaging.Load(src, opts.Limits)
	if err != nil {
		logger.Error("Couldn't load image", "err", err)
		return &Error{Kind: Image, Op: "print", Err: err}
	}

	payload, err := BuildPayload(img, opts)
	if err != nil {
		logger.Error("Couldn't build print job", "err", err)
		return &Error{Kind: Image, Op: "print", Err: err}
	}
	logger.Info("Sending print job", "protocol", opts.Protocol, "size", len(payload))

	maxRetries = max(maxRetries, 0)
	p.setState(Sending)
	var lastErr error
	attempts := 0
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			logger.Info("Retrying print", "attempt", attempt+1, "of", maxRetries+1)
			if err := sleep(ctx, p.opts.RetryDelay); err != nil {
				lastErr = err
				break
			}
		}
		if !p.transport.IsConnected() {
			return p.linkLost(logger, attempts, lastErr)
		}

		attempts++
		lastErr = p.transport.WriteChunked(ctx, payload, p.opts.ChunkSize, p.opts.ChunkDelay)
		if lastErr == nil {
			p.setState(AwaitingCompletion)
			logger.Info("Print job sent", "attempts", attempts)
			p.setState(Ready)
			return nil
		}

		if !p.transport.IsConnected() {
			return p.linkLost(logger, attempts, lastErr)
		}
		logger.Warn("Print attempt failed", "attempt", attempts, "err", lastErr)
		if ctx.Err() != nil {
			break
		}
	}

	p.setState(Ready)
	logger.Error("Print failed", "attempts", attempts, "err", lastErr)
	return &Error{Kind: Print, Op: "print", Attempts: attempts, Err: lastErr}
}

func (p *Printer) linkLost(logger *slog.Logger, attempts int, cause error) error {
	p.setState(Failed)
	err := transport.ErrLinkLost
	if cause != nil {
		err = fmt.Errorf("%w: %w", transport.ErrLinkLost, cause)
	}
	logger.Error("Link lost while printing", "attempts", attempts, "err", err)
	return &Error{Kind: Connection, Op: "print", Attempts: attempts, Err: err}
}

// BuildPayload prepares img and encodes it as one byte stream in
// opts.Protocol.
func BuildPayload(img image.Image, opts PrintOptions) ([]byte, error) {
	threshold := opts.Threshold
	if threshold == 0 {
		threshold = bitmap.DefaultThreshold
	}

	// Scaling can grow an image past what Load let through.
	b := img.Bounds()
	if err := opts.Limits.Check(opts.Prepare.Size(b.Dx(), b.Dy())); err != nil {
		return nil, fmt.Errorf("Prepared image too large: %w", err)
	}
	packed := bitmap.EncodeThreshold(imaging.Prepare(img, opts.Prepare), threshold)

	switch opts.Protocol {
	case TSPL, "":
		if opts.ThermalDither {
			dithered, err := packed.WithData(bitmap.DitherSolidBlack(packed.Data()))
			if err != nil {
				return nil, err
			}
			packed = dithered
		}
		return tspl.BuildJob(tspl.Job{
			Label:   opts.Label,
			Density: opts.Density,
			Bitmap:  packed,
			Mode:    opts.Mode,
			Copies:  opts.Copies,
		})
	case Packet:
		frames, err := packet.BuildRowJob(packet.RowJob{
			Bitmap:    packed,
			LabelType: packet.Gap,
			Density:   packetDensity(opts.Density),
			Indexed:   opts.Indexed,
			Copies:    opts.Copies,
		})
		if err != nil {
			return nil, err
		}
		return packet.Join(frames), nil
	case Cat:
		frames, err := packet.BuildCatJob(packet.CatJob{
			Bitmap:   packed,
			Energy:   opts.Energy,
			FeedRows: opts.FeedRows,
			Copies:   opts.Copies,
		})
		if err != nil {
			return nil, err
		}
		return packet.Join(frames), nil
	}
	return nil, fmt.Errorf(`Unrecognised protocol "%s"`, opts.Protocol)
}

// packetDensity maps the 0-15 TSPL scale onto the three packet levels.
func packetDensity(d int) packet.Density {
	switch {
	case d < 0:
		return packet.Normal
	case d <= 5:
		return packet.Light
	case d <= 10:
		return packet.Normal
	}
	return packet.Dark
}
