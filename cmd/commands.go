package cmd

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"tomgalvin.uk/p31print/internal/imaging"
	"tomgalvin.uk/p31print/internal/packet"
	"tomgalvin.uk/p31print/internal/printer"
	"tomgalvin.uk/p31print/internal/render"
	"tomgalvin.uk/p31print/internal/server"
	"tomgalvin.uk/p31print/internal/transport"
)

// Print head geometry at 203 dpi.
const (
	dotsPerMM  = 8
	headWidth  = 96
	labelInset = 2
)

const shutdownTimeout = 5 * time.Second

// labelLength is the printable length of the configured label in dots.
func labelLength(s *session) int {
	return max(1, int(s.values.LabelSize.Height*dotsPerMM)-2*labelInset*dotsPerMM)
}

func scanCommand() *cli.Command {
	return &cli.Command{
		Name:  "scan",
		Usage: "List nearby printers.",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "all",
				Usage: "List every device, not only known printers.",
			},
		},
		Action: func(cCtx *cli.Context) error {
			cfg, err := loadConfig(cCtx)
			if err != nil {
				return err
			}
			central, err := newCentral(cfg.Values)
			if err != nil {
				return err
			}

			if cCtx.Bool("all") || cfg.Values.Transport == "serial" {
				return listAdvertisements(cCtx.Context, central, cfg.Values.ScanTimeout)
			}

			devices, err := transport.Discover(cCtx.Context, central, cfg.Values.ScanTimeout)
			if err != nil {
				return &printer.Error{Kind: printer.Connection, Op: "scan", Err: err}
			}
			if len(devices) == 0 {
				printWarn("No printers found")
				return nil
			}

			printInfo(fmt.Sprintf("%-20s %-40s %6s  %s", "NAME", "ADDRESS", "RSSI", "HARDWARE ADDRESS"))
			for _, d := range devices {
				fmt.Printf("%-20s %-40s %6d  %s\n", d.Name, d.Address, d.RSSI, d.HardwareAddress)
			}
			return nil
		},
	}
}

func listAdvertisements(ctx context.Context, central transport.Central, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	seen := map[string]bool{}
	printInfo(fmt.Sprintf("%-20s %-40s %6s", "NAME", "ADDRESS", "RSSI"))
	err := central.Scan(ctx, func(a transport.Advertisement) {
		if seen[a.Address] {
			return
		}
		seen[a.Address] = true
		fmt.Printf("%-20s %-40s %6d\n", a.Name, a.Address, a.RSSI)
	})
	if err != nil {
		return &printer.Error{Kind: printer.Connection, Op: "scan", Err: err}
	}
	return nil
}

func servicesCommand() *cli.Command {
	return &cli.Command{
		Name:      "services",
		Usage:     "Show the endpoints a printer exposes.",
		ArgsUsage: "[address]",
		Action: func(cCtx *cli.Context) error {
			s, err := newSession(cCtx)
			if err != nil {
				return err
			}
			defer s.close()

			address := cCtx.Args().First()
			if address == "" {
				if address, _, err = s.resolveAddress(cCtx.Context); err != nil {
					return err
				}
			}

			p, err := s.central.Connect(cCtx.Context, address)
			if err != nil {
				return &printer.Error{Kind: printer.Connection, Op: "connect", Attempts: 1, Err: err}
			}
			defer p.Disconnect()

			chars, err := p.Characteristics()
			if err != nil {
				return &printer.Error{Kind: printer.Connection, Op: "discover services", Err: err}
			}

			printInfo(address)
			fmt.Printf("%-38s %-38s %s\n", "SERVICE", "CHARACTERISTIC", "PROPERTIES")
			for _, c := range chars {
				fmt.Printf("%-38s %-38s %s\n", c.Service, c.UUID, c.Props)
			}
			if mtu, err := p.MTU(); err == nil {
				fmt.Printf("MTU: %d\n", mtu)
			}
			return nil
		},
	}
}

func printCommand() *cli.Command {
	return &cli.Command{
		Name:      "print",
		Usage:     "Print an image file.",
		ArgsUsage: "<image>",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "width",
				Usage: "Scale the image to this many dots wide.",
			},
		},
		Action: func(cCtx *cli.Context) error {
			path := cCtx.Args().First()
			if path == "" {
				return cli.Exit("print needs an image path", ExitOther)
			}

			return withPrinter(cCtx, func(ctx context.Context, s *session) error {
				opts := s.values.PrintOptions()
				opts.Prepare.Width = cCtx.Int("width")
				return s.print(ctx, imaging.Path(path), opts)
			})
		},
	}
}

// print sends src with a progress bar on stderr.
func (s *session) print(ctx context.Context, src imaging.Source, opts printer.PrintOptions) error {
	done := s.showProgress("Printing")
	defer done()

	return s.printer.PrintImage(ctx, src, opts, s.values.Retries)
}

// printRendered prints an image generated by render.
func printRendered(cCtx *cli.Context, draw func(s *session) (image.Image, error)) error {
	return withPrinter(cCtx, func(ctx context.Context, s *session) error {
		img, err := draw(s)
		if err != nil {
			return &printer.Error{Kind: printer.Image, Op: "render", Err: err}
		}
		return s.print(ctx, imaging.Raster{Image: img}, s.values.PrintOptions())
	})
}

func testCommand() *cli.Command {
	return &cli.Command{
		Name:  "test",
		Usage: "Print a checkerboard.",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "square",
				Value: 8,
				Usage: "Square size in dots.",
			},
		},
		Action: func(cCtx *cli.Context) error {
			return printRendered(cCtx, func(s *session) (image.Image, error) {
				return render.Checkerboard(headWidth, labelLength(s), cCtx.Int("square")), nil
			})
		},
	}
}

func coverageCommand() *cli.Command {
	return &cli.Command{
		Name:  "coverage",
		Usage: "Print a pattern showing the printable area.",
		Action: func(cCtx *cli.Context) error {
			return printRendered(cCtx, func(*session) (image.Image, error) {
				return render.CoveragePattern(render.DefaultCoverage), nil
			})
		},
	}
}

func textCommand() *cli.Command {
	return &cli.Command{
		Name:      "text",
		Usage:     "Print a line of text.",
		ArgsUsage: "<text>",
		Flags: []cli.Flag{
			&cli.Float64Flag{
				Name:  "size",
				Value: 10,
				Usage: "Font size in points.",
			},
			&cli.BoolFlag{
				Name:  "vertical",
				Usage: "Run the text along the length of the label.",
			},
			&cli.BoolFlag{
				Name:  "invert",
				Usage: "White text on black.",
			},
		},
		Action: func(cCtx *cli.Context) error {
			text := strings.Join(cCtx.Args().Slice(), " ")
			if text == "" {
				return cli.Exit("text needs something to print", ExitOther)
			}

			opts := render.TextOptions{
				FontSize: cCtx.Float64("size"),
				Invert:   cCtx.Bool("invert"),
			}
			if cCtx.Bool("vertical") {
				opts.Orientation = render.Vertical
			}
			return printRendered(cCtx, func(s *session) (image.Image, error) {
				return render.Text(text, headWidth, labelLength(s), opts)
			})
		},
	}
}

func barcodeCommand() *cli.Command {
	return &cli.Command{
		Name:      "barcode",
		Usage:     "Print a barcode along the label.",
		ArgsUsage: "<data>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "type",
				Value: string(render.Code128),
				Usage: "Symbology: code128, code39, ean13 or upca.",
			},
			&cli.IntFlag{
				Name:  "height",
				Value: headWidth,
				Usage: "Bar height in dots.",
			},
		},
		Action: func(cCtx *cli.Context) error {
			data := cCtx.Args().First()
			if data == "" {
				return cli.Exit("barcode needs data to encode", ExitOther)
			}

			return printRendered(cCtx, func(s *session) (image.Image, error) {
				height := min(max(cCtx.Int("height"), 1), headWidth)
				img, err := render.Barcode(data, render.BarcodeType(cCtx.String("type")), labelLength(s), height)
				if err != nil {
					return nil, err
				}
				return render.Rotate(img), nil
			})
		},
	}
}

func qrCommand() *cli.Command {
	return &cli.Command{
		Name:      "qr",
		Usage:     "Print a QR code.",
		ArgsUsage: "<data>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "size",
				Value: string(render.QRMedium),
				Usage: "Module size: small, medium or large.",
			},
		},
		Action: func(cCtx *cli.Context) error {
			data := cCtx.Args().First()
			if data == "" {
				return cli.Exit("qr needs data to encode", ExitOther)
			}

			return printRendered(cCtx, func(*session) (image.Image, error) {
				return render.QR(data, render.QRSize(cCtx.String("size")))
			})
		},
	}
}

func statusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show printer configuration and battery.",
		Action: func(cCtx *cli.Context) error {
			return withPrinter(cCtx, func(ctx context.Context, s *session) error {
				conf, err := s.printer.Config(ctx)
				if err != nil {
					return err
				}
				battery, err := s.printer.Battery(ctx)
				if err != nil {
					return err
				}

				printInfo(s.printer.Address())
				fmt.Printf("Resolution:  %d dpi\n", conf.Resolution)
				fmt.Printf("Hardware:    %s\n", conf.HardwareVersion)
				fmt.Printf("Firmware:    %s\n", conf.FirmwareVersion)
				fmt.Printf("Battery:     %d%%", battery.Level)
				if battery.Charging {
					fmt.Print(" (charging)")
				}
				fmt.Println()

				if s.values.ProtocolValue == printer.Packet {
					st, err := s.printer.Status(ctx)
					if err != nil {
						printWarn("Status flags unavailable: " + err.Error())
					} else {
						fmt.Printf("Paper:       %s\n", yesNo(st.PaperPresent, "loaded", "out"))
						fmt.Printf("Cover:       %s\n", yesNo(st.CoverOpen, "open", "closed"))
						fmt.Printf("Flags:       battery-low=%t printing=%t error=%t\n", st.BatteryLow, st.Printing, st.Error)
					}
				}

				// Older firmware doesn't answer these.
				if n, err := s.printer.ChunkSize(ctx); err != nil {
					printWarn("Chunk size unavailable: " + err.Error())
				} else {
					fmt.Printf("Chunk size:  %d\n", n)
				}
				if n, err := s.printer.PrintedCount(ctx); err != nil {
					printWarn("Printed count unavailable: " + err.Error())
				} else {
					fmt.Printf("Printed:     %d\n", n)
				}
				return nil
			})
		},
	}
}

func yesNo(b bool, yes, no string) string {
	if b {
		return yes
	}
	return no
}

func rawCommand() *cli.Command {
	return &cli.Command{
		Name:      "raw",
		Usage:     "Send hex encoded bytes as is.",
		ArgsUsage: "<hex>",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "wait",
				Value: time.Second,
				Usage: "How long to wait for a reply, 0 to not wait.",
			},
		},
		Action: func(cCtx *cli.Context) error {
			input := strings.Join(cCtx.Args().Slice(), "")
			data, err := hex.DecodeString(strings.ReplaceAll(input, " ", ""))
			if err != nil || len(data) == 0 {
				return cli.Exit(fmt.Sprintf("Invalid hex %q", input), ExitOther)
			}

			return withPrinter(cCtx, func(ctx context.Context, s *session) error {
				reply, err := s.printer.SendRaw(ctx, data, cCtx.Duration("wait"))
				if err != nil {
					return err
				}
				if reply == nil {
					return nil
				}
				if r, ok := packet.ParseReply(reply); ok {
					fmt.Printf("%v ok=%t data=% x\n", r.Cmd, r.Success, r.Data)
					return nil
				}
				fmt.Print(hex.Dump(reply))
				return nil
			})
		},
	}
}

func selfTestCommand() *cli.Command {
	return &cli.Command{
		Name:  "selftest",
		Usage: "Print the printer's self test page.",
		Action: func(cCtx *cli.Context) error {
			return withPrinter(cCtx, func(ctx context.Context, s *session) error {
				return s.printer.SelfTest(ctx)
			})
		},
	}
}

func feedCommand() *cli.Command {
	return &cli.Command{
		Name:  "feed",
		Usage: "Advance to the next label.",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "dots",
				Usage: "Move the media this many dots instead, negative to pull it back.",
			},
			&cli.BoolFlag{
				Name:  "home",
				Usage: "Feed until the gap sensor finds the start of a label.",
			},
		},
		Action: func(cCtx *cli.Context) error {
			return withPrinter(cCtx, func(ctx context.Context, s *session) error {
				if cCtx.Bool("home") {
					return s.printer.Home(ctx)
				}
				return s.printer.Feed(ctx, cCtx.Int("dots"))
			})
		},
	}
}

func forgetCommand() *cli.Command {
	return &cli.Command{
		Name:  "forget",
		Usage: "Forget the cached printer.",
		Action: func(cCtx *cli.Context) error {
			cfg, err := loadConfig(cCtx)
			if err != nil {
				return err
			}
			store := openCache(cfg.Values)
			if store == nil {
				return nil
			}
			defer store.Close()

			return store.Clear(cCtx.Context)
		},
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve an HTTP print API.",
		Action: func(cCtx *cli.Context) error {
			return withPrinter(cCtx, func(ctx context.Context, s *session) error {
				srv := &http.Server{
					Addr:    s.values.Listen,
					Handler: server.NewServer(s.logger.With("src", "http"), s.printer, s.values.PrintOptions(), s.values.Retries).Handler(),
				}

				g, ctx := errgroup.WithContext(ctx)
				g.Go(func() error {
					slog.Info("Starting HTTP server", "addr", srv.Addr)
					if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
						return err
					}
					return nil
				})
				g.Go(func() error {
					<-ctx.Done()
					slog.Info("Stopping HTTP server")
					shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
					defer cancel()
					return srv.Shutdown(shutdownCtx)
				})
				return g.Wait()
			})
		},
	}
}
