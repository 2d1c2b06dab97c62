package printer

import (
	"fmt"
	"time"

	"tomgalvin.uk/p31print/internal/bitmap"
	"tomgalvin.uk/p31print/internal/imaging"
	"tomgalvin.uk/p31print/internal/response"
	"tomgalvin.uk/p31print/internal/tspl"
)

const (
	DefaultRetryDelay       = time.Second
	DefaultHandshakeTimeout = 2 * time.Second
	DefaultReplyTimeout     = 2 * time.Second
	DefaultDensity          = 8
	// DefaultWidth is the printable width in dots of a 12mm head at 203 dpi.
	DefaultWidth = 96
)

// Options apply to everything a Printer does.
type Options struct {
	RetryDelay time.Duration
	// ChunkSize of 0 uses the link's negotiated unit size.
	ChunkSize        int
	ChunkDelay       time.Duration
	HandshakeTimeout time.Duration
	ReplyTimeout     time.Duration
	Decoding         response.Decoding
}

func DefaultOptions() Options {
	return Options{
		RetryDelay:       DefaultRetryDelay,
		ChunkDelay:       10 * time.Millisecond,
		HandshakeTimeout: DefaultHandshakeTimeout,
		ReplyTimeout:     DefaultReplyTimeout,
	}
}

// Protocol is the command set a print job is sent in.
type Protocol string

const (
	TSPL   Protocol = "tspl"
	Packet Protocol = "packet"
	Cat    Protocol = "cat"
)

func ParseProtocol(s string) (Protocol, error) {
	switch p := Protocol(s); p {
	case TSPL, Packet, Cat:
		return p, nil
	case "":
		return TSPL, nil
	}
	return "", fmt.Errorf(`Unrecognised protocol "%s"`, s)
}

// PrintOptions describe one print job.
type PrintOptions struct {
	Protocol Protocol
	Label    tspl.LabelSize
	// Density 0-15, or tspl.NoDensity to keep the printer's setting.
	Density int
	Mode    tspl.BitmapMode
	Copies  int
	// ThermalDither breaks up solid black runs so the head doesn't overheat.
	ThermalDither bool
	Threshold     uint8
	Prepare       imaging.Options
	Limits        imaging.Limits
	// Indexed sends packet protocol jobs with empty row compression.
	Indexed bool
	// Energy for the cat protocol, 0 for the printer default.
	Energy   uint16
	FeedRows int
}

func DefaultPrintOptions() PrintOptions {
	return PrintOptions{
		Protocol:      TSPL,
		Label:         tspl.Label14x40,
		Density:       DefaultDensity,
		Mode:          tspl.Or,
		Copies:        1,
		ThermalDither: true,
		Threshold:     bitmap.DefaultThreshold,
		Prepare:       imaging.Options{MaxWidth: DefaultWidth},
		Limits:        imaging.DefaultLimits,
	}
}
