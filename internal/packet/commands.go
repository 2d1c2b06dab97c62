// This file implements the command byte sequences for the checksum framed
// protocol. Every builder returns one encoded frame.
package packet

import "fmt"

type Command byte

const (
	Connect   Command = 0xC1
	Heartbeat Command = 0xDC
	GetInfo   Command = 0x40

	PrintStart Command = 0x01
	PrintEnd   Command = 0xF3
	PageEnd    Command = 0xE3

	SetLabelType    Command = 0x23
	SetLabelDensity Command = 0x21
	SetPageSize     Command = 0x13

	BitmapRow        Command = 0x85
	BitmapRowIndexed Command = 0x83
	EmptyRows        Command = 0x84

	// cat printer style commands, sent with EncodeCat
	RetractPaper Command = 0xA0
	FeedPaper    Command = 0xA1
	CatBitmapRow Command = 0xA2
	CatEnergy    Command = 0xAF
)

func (c Command) String() string {
	switch c {
	case Connect:
		return "connect"
	case Heartbeat:
		return "heartbeat"
	case GetInfo:
		return "get-info"
	case PrintStart:
		return "print-start"
	case PrintEnd:
		return "print-end"
	case PageEnd:
		return "page-end"
	case SetLabelType:
		return "set-label-type"
	case SetLabelDensity:
		return "set-density"
	case SetPageSize:
		return "set-page-size"
	case BitmapRow:
		return "bitmap-row"
	case BitmapRowIndexed:
		return "bitmap-row-indexed"
	case EmptyRows:
		return "empty-rows"
	}
	return fmt.Sprintf("0x%02X", byte(c))
}

type LabelType byte

const (
	Gap        LabelType = 1
	BlackMark  LabelType = 2
	Continuous LabelType = 3
)

type Density byte

const (
	Light  Density = 1
	Normal Density = 2
	Dark   Density = 3
)

// Handshake sent right after the link comes up
func ConnectCmd() []byte {
	return Encode(Connect, []byte{0x01})
}

// Keep-alive, the printer drops idle links otherwise
func HeartbeatCmd() []byte {
	return Encode(Heartbeat, []byte{0x01})
}

func GetInfoCmd() []byte {
	return Encode(GetInfo, nil)
}

func SetLabelTypeCmd(t LabelType) []byte {
	return Encode(SetLabelType, []byte{byte(t)})
}

func SetDensityCmd(d Density) []byte {
	return Encode(SetLabelDensity, []byte{byte(d)})
}

// Sets the page size in dots, both as little endian uint16
func SetPageSizeCmd(width, height int) []byte {
	return Encode(SetPageSize, []byte{
		byte(width), byte(width >> 8),
		byte(height), byte(height >> 8),
	})
}

func PrintStartCmd() []byte {
	return Encode(PrintStart, []byte{0x01})
}

func PrintEndCmd() []byte {
	return Encode(PrintEnd, []byte{0x01})
}

func PageEndCmd() []byte {
	return Encode(PageEnd, []byte{0x01})
}

// One row of bitmap data, 1 bit per dot, MSB first, 1 = burn
func BitmapRowCmd(row []byte) []byte {
	return Encode(BitmapRow, row)
}

// A row with its 0-based index as a little endian uint16 prefix
func BitmapRowIndexedCmd(index int, row []byte) []byte {
	data := make([]byte, 0, 2+len(row))
	data = append(data, byte(index), byte(index>>8))
	return Encode(BitmapRowIndexed, append(data, row...))
}

// Skips count blank rows, count as a little endian uint16
func EmptyRowsCmd(count int) []byte {
	return Encode(EmptyRows, []byte{byte(count), byte(count >> 8)})
}

// Feeds paper forward by n dot rows
func FeedPaperCmd(rows int) []byte {
	return EncodeCat(FeedPaper, []byte{byte(rows), byte(rows >> 8)})
}

// Pulls paper back by n dot rows
func RetractPaperCmd(rows int) []byte {
	return EncodeCat(RetractPaper, []byte{byte(rows), byte(rows >> 8)})
}

// Reply is the decoded acknowledgement for a command.
type Reply struct {
	Cmd     Command
	Success bool
	Data    []byte
}

// ParseReply decodes one frame; an empty payload or a non-zero first byte is success.
func ParseReply(raw []byte) (Reply, bool) {
	f, ok := Decode(raw)
	if !ok {
		return Reply{}, false
	}
	return Reply{
		Cmd:     f.Cmd,
		Success: len(f.Data) == 0 || f.Data[0] != 0x00,
		Data:    f.Data,
	}, true
}
