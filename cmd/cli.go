package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"tomgalvin.uk/p31print/internal/config"
	"tomgalvin.uk/p31print/internal/printer"
)

// These values are set at compile-time.
var (
	Version  = "dev"
	Revision = ""
)

// Exit codes, one per stage that can fail.
const (
	ExitOK         = 0
	ExitOther      = 1
	ExitConnection = 2
	ExitImage      = 3
	ExitPrint      = 4
	ExitProtocol   = 5
)

// ExitCode maps err onto the exit code contract.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	switch printer.KindOf(err) {
	case printer.Connection:
		return ExitConnection
	case printer.Image:
		return ExitImage
	case printer.Print:
		return ExitPrint
	case printer.ProtocolErr:
		return ExitProtocol
	}
	return ExitOther
}

// Run runs the commandline application and returns the process exit code.
func Run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return ExitCode(newApp().RunContext(ctx, os.Args))
}

func newApp() *cli.App {
	cli.VersionPrinter = func(cCtx *cli.Context) {
		fmt.Fprintf(cCtx.App.Writer, "%s (%s)\n", Version, Revision)
	}

	return &cli.App{
		Name:                   "p31print",
		Usage:                  "Print labels on P31 series thermal printers.",
		Version:                Version,
		Compiled:               time.Now(),
		EnableBashCompletion:   true,
		UseShortOptionHandling: true,
		Suggest:                true,
		Flags:                  config.Flags(),
		Commands: []*cli.Command{
			scanCommand(),
			servicesCommand(),
			printCommand(),
			testCommand(),
			coverageCommand(),
			textCommand(),
			barcodeCommand(),
			qrCommand(),
			statusCommand(),
			rawCommand(),
			selfTestCommand(),
			feedCommand(),
			forgetCommand(),
			serveCommand(),
		},
		ExitErrHandler: func(_ *cli.Context, err error) {
			if err == nil {
				return
			}

			printError(err)
		},
	}
}
