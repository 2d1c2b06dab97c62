// This package decodes the fixed layout replies to the TSPL status queries.
// Every parser is total: malformed or truncated input yields ok=false so
// callers can tell "no reply yet" apart from "reply we don't understand".
package response

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
)

// VersionEncoding selects how version bytes are read. Firmware revisions
// disagree, so it is configuration rather than a constant.
type VersionEncoding int

const (
	RawVersion VersionEncoding = iota
	BCDVersion
)

// LevelEncoding selects how the battery level byte is read.
type LevelEncoding int

const (
	BCDLevel LevelEncoding = iota
	RawLevel
)

// Decoding bundles the encoding choices. The zero value is the default:
// raw version bytes and a BCD battery level.
type Decoding struct {
	Version VersionEncoding
	Battery LevelEncoding
}

var (
	configHeader  = []byte("CONFIG")
	batteryHeader = []byte("BATTERY")
)

// Offsets into a CONFIG reply after the trailing CRLF has been removed:
// "CONFIG " pad resolution pad hw(3) fw(3) settings
const (
	configResolution = 8
	configHardware   = 10
	configFirmware   = 13
	configSettings   = 16
	configMinLen     = 17
)

// Offsets into a BATTERY reply: "BATTERY " level charging
const (
	batteryLevel    = 8
	batteryCharging = 9
	batteryMinLen   = 10
)

type Version struct {
	Major, Minor, Patch int
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

type Config struct {
	Resolution      int
	HardwareVersion Version
	FirmwareVersion Version
	Settings        byte
	Raw             []byte
}

type Battery struct {
	Level    int
	Charging bool
}

// DecodeBCD reads a byte as two decimal digits, high nibble first.
func DecodeBCD(b byte) int {
	return int(b>>4)*10 + int(b&0x0F)
}

// TrimCRLF drops a single trailing CRLF, or a lone LF, if present.
func TrimCRLF(data []byte) []byte {
	if bytes.HasSuffix(data, []byte("\r\n")) {
		return data[:len(data)-2]
	}
	if bytes.HasSuffix(data, []byte("\n")) {
		return data[:len(data)-1]
	}
	return data
}

func ParseConfig(data []byte) (Config, bool) {
	return Decoding{}.ParseConfig(data)
}

func (d Decoding) ParseConfig(data []byte) (Config, bool) {
	data = TrimCRLF(data)
	if !bytes.HasPrefix(data, configHeader) || len(data) < configMinLen {
		return Config{}, false
	}

	return Config{
		Resolution:      int(data[configResolution]),
		HardwareVersion: d.version(data[configHardware : configHardware+3]),
		FirmwareVersion: d.version(data[configFirmware : configFirmware+3]),
		Settings:        data[configSettings],
		Raw:             bytes.Clone(data),
	}, true
}

func ParseBattery(data []byte) (Battery, bool) {
	return Decoding{}.ParseBattery(data)
}

func (d Decoding) ParseBattery(data []byte) (Battery, bool) {
	data = TrimCRLF(data)
	if !bytes.HasPrefix(data, batteryHeader) || len(data) < batteryMinLen {
		return Battery{}, false
	}

	level := int(data[batteryLevel])
	if d.Battery == BCDLevel {
		level = DecodeBCD(data[batteryLevel])
	}
	return Battery{
		Level:    level,
		Charging: data[batteryCharging] != 0,
	}, true
}

// ParseChunkSize reads the first run of digits in a GETCHUNKSIZE reply.
// Runs too long for an int saturate at math.MaxInt.
func ParseChunkSize(data []byte) (int, bool) {
	return firstNumber(TrimCRLF(data))
}

// ParsePrintedCount reads the first run of digits in a GETPRINTEDCOUNT reply.
func ParsePrintedCount(data []byte) (int, bool) {
	return firstNumber(TrimCRLF(data))
}

func (d Decoding) version(b []byte) Version {
	if d.Version == BCDVersion {
		return Version{DecodeBCD(b[0]), DecodeBCD(b[1]), DecodeBCD(b[2])}
	}
	return Version{int(b[0]), int(b[1]), int(b[2])}
}

func firstNumber(data []byte) (int, bool) {
	start := bytes.IndexFunc(data, isDigit)
	if start < 0 {
		return 0, false
	}
	end := start
	for end < len(data) && isDigit(rune(data[end])) {
		end++
	}
	n, err := strconv.Atoi(string(data[start:end]))
	if err != nil {
		// only overflow gets here
		return math.MaxInt, true
	}
	return n, true
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

// Kind guesses which query a reply answers from its header, so replies can
// be matched by content rather than by arrival order.
type Kind int

const (
	Unknown Kind = iota
	ConfigReply
	BatteryReply
)

func Classify(data []byte) Kind {
	switch {
	case bytes.HasPrefix(data, configHeader):
		return ConfigReply
	case bytes.HasPrefix(data, batteryHeader):
		return BatteryReply
	}
	return Unknown
}
