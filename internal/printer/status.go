package printer

import (
	"context"
	"fmt"
	"time"

	"tomgalvin.uk/p31print/internal/packet"
	"tomgalvin.uk/p31print/internal/response"
	"tomgalvin.uk/p31print/internal/transport"
	"tomgalvin.uk/p31print/internal/tspl"
)

func isConfigReply(data []byte) bool {
	return response.Classify(data) == response.ConfigReply
}

func isBatteryReply(data []byte) bool {
	return response.Classify(data) == response.BatteryReply
}

func isOtherReply(data []byte) bool {
	return response.Classify(data) == response.Unknown
}

// query writes cmd and returns the first notification accepted by match,
// skipping anything else until timeout. Stale notifications are discarded
// before the write.
func (p *Printer) query(ctx context.Context, cmd []byte, timeout time.Duration, match func([]byte) bool) ([]byte, error) {
	if !p.transport.IsConnected() {
		return nil, transport.ErrNotConnected
	}
	if n := p.transport.DrainNotifications(); n > 0 {
		p.logger.Debug("Discarded stale notifications", "count", n)
	}
	if err := p.transport.Write(cmd, false); err != nil {
		return nil, err
	}

	deadline := time.Now().Add(timeout)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, ErrNoReply
		}
		data, ok := p.transport.ReadNotification(remaining)
		if !ok {
			return nil, ErrNoReply
		}
		if match(data) {
			return data, nil
		}
		p.logger.Debug("Skipping unrelated notification", "data", fmt.Sprintf("% x", data))
	}
}

// ready is called with p.mu held.
func (p *Printer) ready(op string) error {
	if p.State() != Ready || !p.transport.IsConnected() {
		return &Error{Kind: Connection, Op: op, Err: ErrNotReady}
	}
	return nil
}

// ask runs a query for op, mapping failures onto the error taxonomy.
func (p *Printer) ask(ctx context.Context, op string, cmd []byte, match func([]byte) bool) ([]byte, error) {
	if err := p.ready(op); err != nil {
		return nil, err
	}
	data, err := p.query(ctx, cmd, p.opts.ReplyTimeout, match)
	if err != nil {
		kind := ProtocolErr
		if !p.transport.IsConnected() {
			kind = Connection
		}
		return nil, &Error{Kind: kind, Op: op, Err: err}
	}
	return data, nil
}

func malformed(op string, data []byte) error {
	return &Error{Kind: ProtocolErr, Op: op, Err: fmt.Errorf("Couldn't parse reply % x", data)}
}

func (p *Printer) Config(ctx context.Context) (response.Config, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	data, err := p.ask(ctx, "config", tspl.ConfigQuery(), isConfigReply)
	if err != nil {
		return response.Config{}, err
	}
	cfg, ok := p.opts.Decoding.ParseConfig(data)
	if !ok {
		return response.Config{}, malformed("config", data)
	}
	return cfg, nil
}

func (p *Printer) Battery(ctx context.Context) (response.Battery, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	data, err := p.ask(ctx, "battery", tspl.BatteryQuery(), isBatteryReply)
	if err != nil {
		return response.Battery{}, err
	}
	b, ok := p.opts.Decoding.ParseBattery(data)
	if !ok {
		return response.Battery{}, malformed("battery", data)
	}
	return b, nil
}

// Status asks a printer speaking the checksum framed protocol for its paper,
// cover and battery flags.
func (p *Printer) Status(ctx context.Context) (packet.Status, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	data, err := p.ask(ctx, "status", packet.GetInfoCmd(), packet.IsFrame)
	if err != nil {
		return packet.Status{}, err
	}
	st, ok := packet.ParseStatus(data)
	if !ok {
		return packet.Status{}, malformed("status", data)
	}
	return st, nil
}

// ChunkSize asks the printer for the transfer size it prefers.
func (p *Printer) ChunkSize(ctx context.Context) (int, error) {
	return p.number(ctx, "chunk size", tspl.ChunkSizeQuery(), response.ParseChunkSize)
}

// PrintedCount asks for the lifetime label count.
func (p *Printer) PrintedCount(ctx context.Context) (int, error) {
	return p.number(ctx, "printed count", tspl.PrintedCountQuery(), response.ParsePrintedCount)
}

func (p *Printer) number(ctx context.Context, op string, cmd []byte, parse func([]byte) (int, bool)) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	data, err := p.ask(ctx, op, cmd, isOtherReply)
	if err != nil {
		return 0, err
	}
	n, ok := parse(data)
	if !ok {
		return 0, malformed(op, data)
	}
	return n, nil
}

func (p *Printer) SelfTest(ctx context.Context) error {
	return p.send(ctx, "self test", tspl.SelfTest())
}

func (p *Printer) Initialize(ctx context.Context) error {
	return p.send(ctx, "initialize", tspl.Initialize())
}

// Feed moves the media by dots, backwards when negative. Zero advances to
// the start of the next label.
func (p *Printer) Feed(ctx context.Context, dots int) error {
	cmd := tspl.New()
	switch {
	case dots > 0:
		cmd.Feed(dots)
	case dots < 0:
		cmd.BackFeed(-dots)
	default:
		cmd.FormFeed()
	}
	return p.send(ctx, "feed", cmd.Bytes())
}

// Home feeds until the gap sensor finds the start of a label.
func (p *Printer) Home(ctx context.Context) error {
	return p.send(ctx, "home", tspl.New().Home().Bytes())
}

func (p *Printer) send(ctx context.Context, op string, cmd []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ready(op); err != nil {
		return err
	}
	if err := p.transport.WriteChunked(ctx, cmd, p.opts.ChunkSize, p.opts.ChunkDelay); err != nil {
		kind := Print
		if !p.transport.IsConnected() {
			kind = Connection
		}
		return &Error{Kind: kind, Op: op, Attempts: 1, Err: err}
	}
	return nil
}

// SendRaw writes data as is. With wait > 0 it returns the first
// notification that arrives within wait.
func (p *Printer) SendRaw(ctx context.Context, data []byte, wait time.Duration) ([]byte, error) {
	if wait <= 0 {
		return nil, p.send(ctx, "raw", data)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ready("raw"); err != nil {
		return nil, err
	}
	reply, err := p.query(ctx, data, wait, func([]byte) bool { return true })
	if err != nil {
		return nil, &Error{Kind: ProtocolErr, Op: "raw", Err: err}
	}
	return reply, nil
}
