// Package config layers the configuration file under command-line flags.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/knadh/koanf/parsers/hjson"
	"github.com/knadh/koanf/providers/cliflagv2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/urfave/cli/v2"
)

const (
	appName    = "p31print"
	configFile = "p31print.conf"
)

// Config describes the configuration for the app.
type Config struct {
	path string

	Values Values
}

// NewConfig returns a new configuration holding the defaults.
func NewConfig() *Config {
	return &Config{Values: DefaultValues()}
}

// Load reads the configuration file and then the global flags, which win.
func (c *Config) Load(k *koanf.Koanf, cliCtx *cli.Context) error {
	if err := c.createConfigDir(); err != nil {
		return err
	}

	cfgfile, err := c.FilePath(configFile)
	if err != nil {
		return err
	}

	if err := k.Load(file.Provider(cfgfile), hjson.Parser()); err != nil {
		return fmt.Errorf("Couldn't parse %s: %w", cfgfile, err)
	}

	// global flags live on the root context; naming it "global" makes koanf
	// merge them under the root namespace
	root := cliCtx
	for _, ctx := range cliCtx.Lineage() {
		if ctx.Command != nil {
			root = ctx
		}
	}
	root.Command.Name = "global"

	if err := k.Load(cliflagv2.Provider(root, "."), nil); err != nil {
		return err
	}

	return k.UnmarshalWithConf("", &c.Values, koanf.UnmarshalConf{Tag: "koanf"})
}

// ValidateValues validates the configuration values.
func (c *Config) ValidateValues() error {
	return c.Values.validateValues()
}

// createConfigDir finds or creates the configuration directory.
func (c *Config) createConfigDir() error {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		homedir, err := os.UserHomeDir()
		if err != nil {
			return err
		}
		base = filepath.Join(homedir, ".config")
	}

	c.path = filepath.Join(base, appName)
	if err := os.MkdirAll(c.path, os.ModePerm); err != nil {
		return fmt.Errorf("the configuration directory could not be created at %s: %w", c.path, err)
	}
	return nil
}

// FilePath returns the absolute path for the given configuration file,
// creating it empty if it doesn't exist.
func (c *Config) FilePath(configFile string) (string, error) {
	confPath := filepath.Join(c.path, configFile)

	if _, err := os.Stat(confPath); err != nil {
		fd, err := os.Create(confPath)
		if err != nil {
			return "", fmt.Errorf("Cannot create "+configFile+" file at %s", confPath)
		}
		fd.Close()
	}

	return confPath, nil
}

// Flags are the global flags that override configuration file values.
func Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "address",
			Aliases: []string{"a"},
			EnvVars: []string{"P31PRINT_ADDRESS"},
			Usage:   "Printer address, or serial port for the serial transport.",
		},
		&cli.StringFlag{
			Name:  "transport",
			Usage: "Link to use: ble or serial.",
		},
		&cli.StringFlag{
			Name:  "serial-port",
			Usage: "Serial device bound to the printer, e.g. /dev/rfcomm0.",
		},
		&cli.IntFlag{
			Name:  "baud-rate",
			Usage: "Serial baud rate.",
		},
		&cli.StringFlag{
			Name:    "label",
			Aliases: []string{"l"},
			Usage:   "Label preset, e.g. 14x40mm.",
		},
		&cli.Float64Flag{
			Name:  "label-width",
			Usage: "Label width in mm, overriding the preset.",
		},
		&cli.Float64Flag{
			Name:  "label-height",
			Usage: "Label height in mm, overriding the preset.",
		},
		&cli.Float64Flag{
			Name:  "label-gap",
			Usage: "Gap between labels in mm.",
		},
		&cli.IntFlag{
			Name:    "density",
			Aliases: []string{"d"},
			Usage:   "Print density 0-15, or -1 to keep the printer's setting.",
		},
		&cli.IntFlag{
			Name:    "copies",
			Aliases: []string{"n"},
			Usage:   "Number of copies.",
		},
		&cli.StringFlag{
			Name:  "protocol",
			Usage: "Command set: tspl, packet or cat.",
		},
		&cli.IntFlag{
			Name:  "retries",
			Usage: "Retries after a failed connect or write.",
		},
		&cli.DurationFlag{
			Name:  "retry-delay",
			Usage: "Wait between retries.",
		},
		&cli.DurationFlag{
			Name:  "chunk-delay",
			Usage: "Pause between chunks of a write.",
		},
		&cli.DurationFlag{
			Name:  "scan-timeout",
			Usage: "How long to scan for printers.",
		},
		&cli.DurationFlag{
			Name:  "cache-ttl",
			Usage: "How long the last printer is remembered.",
		},
		&cli.StringFlag{
			Name:  "cache-path",
			Usage: "Location of the printer cache.",
		},
		&cli.StringFlag{
			Name:  "dither",
			Usage: "Greyscale conversion: threshold or floyd-steinberg.",
		},
		&cli.BoolFlag{
			Name:  "thermal-dither",
			Usage: "Break up solid black to protect the print head.",
		},
		&cli.StringFlag{
			Name:  "version-encoding",
			Usage: "How firmware versions are encoded: raw or bcd.",
		},
		&cli.StringFlag{
			Name:    "log-level",
			EnvVars: []string{"P31PRINT_LOG_LEVEL"},
			Usage:   "debug, info, warn or error.",
		},
		&cli.StringFlag{
			Name:  "listen",
			Usage: "Address the HTTP server listens on.",
		},
	}
}
