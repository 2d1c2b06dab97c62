package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"tomgalvin.uk/p31print/internal/cache"
	"tomgalvin.uk/p31print/internal/imaging"
	"tomgalvin.uk/p31print/internal/printer"
	"tomgalvin.uk/p31print/internal/response"
	"tomgalvin.uk/p31print/internal/tspl"
)

// Values describes everything a user can set in the configuration file or
// on the command line.
type Values struct {
	Address         string        `koanf:"address"`
	Transport       string        `koanf:"transport"`
	SerialPort      string        `koanf:"serial-port"`
	BaudRate        int           `koanf:"baud-rate"`
	Label           string        `koanf:"label"`
	LabelWidth      float64       `koanf:"label-width"`
	LabelHeight     float64       `koanf:"label-height"`
	LabelGap        float64       `koanf:"label-gap"`
	Density         int           `koanf:"density"`
	Copies          int           `koanf:"copies"`
	Protocol        string        `koanf:"protocol"`
	Retries         int           `koanf:"retries"`
	RetryDelay      time.Duration `koanf:"retry-delay"`
	ChunkDelay      time.Duration `koanf:"chunk-delay"`
	ScanTimeout     time.Duration `koanf:"scan-timeout"`
	CacheTTL        time.Duration `koanf:"cache-ttl"`
	CachePath       string        `koanf:"cache-path"`
	Dither          string        `koanf:"dither"`
	ThermalDither   bool          `koanf:"thermal-dither"`
	VersionEncoding string        `koanf:"version-encoding"`
	LogLevel        string        `koanf:"log-level"`
	Listen          string        `koanf:"listen"`

	LabelSize     tspl.LabelSize
	ProtocolValue printer.Protocol
	DitherValue   imaging.Dither
	Level         slog.Level
}

// DefaultValues are used for anything neither the file nor the flags set.
func DefaultValues() Values {
	return Values{
		Transport:       "ble",
		BaudRate:        115200,
		Label:           tspl.Label14x40.Name,
		Density:         printer.DefaultDensity,
		Copies:          1,
		Protocol:        string(printer.TSPL),
		Retries:         2,
		RetryDelay:      printer.DefaultRetryDelay,
		ChunkDelay:      10 * time.Millisecond,
		ScanTimeout:     10 * time.Second,
		CacheTTL:        cache.DefaultTTL,
		Dither:          "threshold",
		ThermalDither:   true,
		VersionEncoding: "raw",
		LogLevel:        "info",
		Listen:          "localhost:8031",
	}
}

// validateValues validates all configuration values.
func (v *Values) validateValues() error {
	for _, validate := range []func() error{
		v.validateTransport,
		v.validateLabel,
		v.validateDensity,
		v.validateCounts,
		v.validateProtocol,
		v.validateDither,
		v.validateVersionEncoding,
		v.validateLogLevel,
	} {
		if err := validate(); err != nil {
			return err
		}
	}

	return nil
}

func (v *Values) validateTransport() error {
	switch v.Transport {
	case "ble":
		return nil
	case "serial":
		if v.SerialPort == "" && v.Address == "" {
			return fmt.Errorf("the serial transport needs a serial-port")
		}
		return nil
	}
	return fmt.Errorf("invalid transport %q, expected ble or serial", v.Transport)
}

// validateLabel resolves the label preset, then applies any explicit sizes
// on top of it.
func (v *Values) validateLabel() error {
	size := tspl.Label14x40
	if v.Label != "" {
		preset, ok := tspl.LookupSize(v.Label)
		if !ok {
			names := []string{}
			for _, s := range tspl.AllSizes {
				names = append(names, s.Name)
			}
			return fmt.Errorf("unknown label %q, expected one of %s", v.Label, strings.Join(names, ", "))
		}
		size = preset
	}

	if v.LabelWidth < 0 || v.LabelHeight < 0 || v.LabelGap < 0 {
		return fmt.Errorf("label dimensions can't be negative")
	}
	if v.LabelWidth > 0 || v.LabelHeight > 0 {
		size.Name = "custom"
	}
	if v.LabelWidth > 0 {
		size.Width = v.LabelWidth
	}
	if v.LabelHeight > 0 {
		size.Height = v.LabelHeight
	}
	if v.LabelGap > 0 {
		size.Gap = v.LabelGap
	}
	v.LabelSize = size
	return nil
}

func (v *Values) validateDensity() error {
	if v.Density != tspl.NoDensity && (v.Density < tspl.MinDensity || v.Density > tspl.MaxDensity) {
		return fmt.Errorf("density %d out of range %d-%d", v.Density, tspl.MinDensity, tspl.MaxDensity)
	}
	return nil
}

func (v *Values) validateCounts() error {
	if v.Copies < 1 {
		return fmt.Errorf("copies must be at least 1")
	}
	if v.Retries < 0 {
		return fmt.Errorf("retries can't be negative")
	}
	return nil
}

func (v *Values) validateProtocol() error {
	p, err := printer.ParseProtocol(v.Protocol)
	v.ProtocolValue = p
	return err
}

func (v *Values) validateDither() error {
	d, err := imaging.ParseDither(v.Dither)
	v.DitherValue = d
	return err
}

func (v *Values) validateVersionEncoding() error {
	switch v.VersionEncoding {
	case "raw", "bcd":
		return nil
	}
	return fmt.Errorf("invalid version-encoding %q, expected raw or bcd", v.VersionEncoding)
}

func (v *Values) validateLogLevel() error {
	level, err := parseLogLevel(v.LogLevel)
	v.Level = level
	return err
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("invalid log-level %q", s)
}

// PrinterOptions returns the orchestrator settings.
func (v *Values) PrinterOptions() printer.Options {
	opts := printer.DefaultOptions()
	opts.RetryDelay = v.RetryDelay
	opts.ChunkDelay = v.ChunkDelay
	if v.VersionEncoding == "bcd" {
		opts.Decoding.Version = response.BCDVersion
	}
	return opts
}

// PrintOptions returns the job settings.
func (v *Values) PrintOptions() printer.PrintOptions {
	opts := printer.DefaultPrintOptions()
	opts.Protocol = v.ProtocolValue
	opts.Label = v.LabelSize
	opts.Density = v.Density
	opts.Copies = v.Copies
	opts.ThermalDither = v.ThermalDither
	opts.Prepare.Dither = v.DitherValue
	return opts
}
