package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/knadh/koanf/v2"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v2"

	"tomgalvin.uk/p31print/internal/cache"
	"tomgalvin.uk/p31print/internal/config"
	"tomgalvin.uk/p31print/internal/printer"
	"tomgalvin.uk/p31print/internal/transport"
)

// session is everything a command needs to talk to a printer.
type session struct {
	values  config.Values
	logger  *slog.Logger
	central transport.Central
	conn    *transport.Connection
	printer *printer.Printer
	cache   *cache.Store
}

func loadConfig(cliCtx *cli.Context) (*config.Config, error) {
	cfg := config.NewConfig()
	if err := cfg.Load(koanf.New("."), cliCtx); err != nil {
		return nil, err
	}
	if err := cfg.ValidateValues(); err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Values.Level}))
	slog.SetDefault(logger)
	return cfg, nil
}

func newCentral(v config.Values) (transport.Central, error) {
	if v.Transport == "serial" {
		return transport.NewSerialCentral(v.BaudRate), nil
	}
	central, err := transport.NewBluetoothCentral()
	if err != nil {
		return nil, &printer.Error{Kind: printer.Connection, Op: "enable bluetooth", Err: err}
	}
	return central, nil
}

func newSession(cliCtx *cli.Context) (*session, error) {
	cfg, err := loadConfig(cliCtx)
	if err != nil {
		return nil, err
	}
	v := cfg.Values

	central, err := newCentral(v)
	if err != nil {
		return nil, err
	}

	logger := slog.Default()
	s := &session{
		values:  v,
		logger:  logger,
		central: central,
		conn:    transport.NewConnection(central, logger),
	}
	s.printer = printer.New(s.conn, v.PrinterOptions(), logger)
	s.cache = openCache(v)

	if v.Level <= slog.LevelDebug {
		s.conn.SetObserver(func(data []byte) {
			logger.Debug("Notification", "data", fmt.Sprintf("% x", data), "text", fmt.Sprintf("%q", data))
		})
	}
	return s, nil
}

// openCache opens the printer cache. A broken cache only costs a rescan, so
// failures are reported and ignored.
func openCache(v config.Values) *cache.Store {
	path := v.CachePath
	if path == "" {
		p, err := cache.DefaultPath()
		if err != nil {
			slog.Warn("Printer cache disabled", "err", err)
			return nil
		}
		path = p
	}

	store, err := cache.Open(path)
	if err != nil {
		slog.Warn("Printer cache disabled", "err", err)
		return nil
	}
	return store
}

// resolveAddress picks the printer to use: the configured address, then
// the cached one, then the strongest printer a scan finds.
func (s *session) resolveAddress(ctx context.Context) (address, name string, err error) {
	if s.values.Transport == "serial" && s.values.SerialPort != "" {
		return s.values.SerialPort, "", nil
	}
	if s.values.Address != "" {
		return s.values.Address, "", nil
	}

	if s.cache != nil {
		cached, err := s.cache.Load(ctx, s.values.CacheTTL)
		if err != nil {
			s.logger.Warn("Couldn't read printer cache", "err", err)
		} else if cached != nil {
			s.logger.Info("Using cached printer", "name", cached.Name, "address", cached.Address)
			return cached.Address, cached.Name, nil
		}
	}

	s.logger.Info("Scanning for printers...", "timeout", s.values.ScanTimeout)
	devices, err := transport.Discover(ctx, s.central, s.values.ScanTimeout)
	if err != nil {
		return "", "", &printer.Error{Kind: printer.Connection, Op: "scan", Err: err}
	}
	if len(devices) == 0 {
		return "", "", &printer.Error{Kind: printer.Connection, Op: "scan", Err: transport.ErrNoDevice}
	}
	return devices[0].Address, devices[0].Name, nil
}

func (s *session) connect(ctx context.Context) error {
	address, name, err := s.resolveAddress(ctx)
	if err != nil {
		return err
	}

	if err := s.printer.Connect(ctx, address, s.values.Retries); err != nil {
		return err
	}

	if s.cache != nil {
		if err := s.cache.Save(ctx, address, name); err != nil {
			s.logger.Warn("Couldn't update printer cache", "err", err)
		}
	}
	return nil
}

func (s *session) close() {
	s.printer.Disconnect()
	if s.cache != nil {
		s.cache.Close()
	}
}

// showProgress draws a progress bar for chunked writes until the returned
// func is called.
func (s *session) showProgress(description string) func() {
	var bar *progressbar.ProgressBar
	s.conn.SetProgress(func(sent, total int) {
		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetDescription(description),
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionShowBytes(true),
				progressbar.OptionSetPredictTime(false),
				progressbar.OptionClearOnFinish(),
			)
		}
		bar.Set(sent)
	})

	return func() {
		s.conn.SetProgress(nil)
		if bar != nil {
			bar.Finish()
		}
	}
}

// withPrinter runs fn against a connected printer.
func withPrinter(cliCtx *cli.Context, fn func(context.Context, *session) error) error {
	s, err := newSession(cliCtx)
	if err != nil {
		return err
	}
	defer s.close()

	ctx := cliCtx.Context
	if err := s.connect(ctx); err != nil {
		return err
	}
	return fn(ctx, s)
}
