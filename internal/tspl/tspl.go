// This package builds TSPL command streams. Every command is an ASCII line
// terminated with CRLF, except that BITMAP carries its raw payload between the
// parameter list and the terminator. The payload is never escaped, so the
// declared width and height are the only thing delimiting it.
package tspl

import (
	"bytes"
	"fmt"
)

const crlf = "\r\n"

// BitmapMode is the combine mode of a BITMAP command.
type BitmapMode int

const (
	Overwrite BitmapMode = 0
	Or        BitmapMode = 1
	Xor       BitmapMode = 2
	// Compressed payloads are QuickLZ blocks, which this package doesn't produce.
	Compressed BitmapMode = 3
)

const (
	MinDensity = 0
	MaxDensity = 15
)

// Command accumulates TSPL commands in order.
type Command struct {
	buf bytes.Buffer
}

func New() *Command {
	return &Command{}
}

// Size sets the label dimensions in millimetres
func (c *Command) Size(width, height float64) *Command {
	fmt.Fprintf(&c.buf, "SIZE %.1f mm,%.1f mm"+crlf, width, height)
	return c
}

// Gap sets the gap between labels and its offset in millimetres
func (c *Command) Gap(gap, offset float64) *Command {
	fmt.Fprintf(&c.buf, "GAP %.1f mm,%s mm"+crlf, gap, formatOffset(offset))
	return c
}

// Direction sets print direction (0 or 1) and mirroring
func (c *Command) Direction(dir, mirror int) *Command {
	fmt.Fprintf(&c.buf, "DIRECTION %d,%d"+crlf, dir, mirror)
	return c
}

// Density sets print darkness, clamped to 0-15
func (c *Command) Density(level int) *Command {
	fmt.Fprintf(&c.buf, "DENSITY %d"+crlf, ClampDensity(level))
	return c
}

// CLS clears the image buffer
func (c *Command) CLS() *Command {
	c.buf.WriteString("CLS" + crlf)
	return c
}

// Bitmap adds a bitmap image at (x, y) dots. widthBytes is the packed row
// stride and height the number of rows; data must be widthBytes*height bytes.
func (c *Command) Bitmap(x, y, widthBytes, height int, mode BitmapMode, data []byte) *Command {
	fmt.Fprintf(&c.buf, "BITMAP %d,%d,%d,%d,%d,", x, y, widthBytes, height, mode)
	c.buf.Write(data)
	c.buf.WriteString(crlf)
	return c
}

// Print triggers printing of the buffer
func (c *Command) Print(copies int) *Command {
	fmt.Fprintf(&c.buf, "PRINT %d"+crlf, copies)
	return c
}

// PrintSets triggers printing with an explicit set count
func (c *Command) PrintSets(copies, sets int) *Command {
	fmt.Fprintf(&c.buf, "PRINT %d,%d"+crlf, copies, sets)
	return c
}

// FormFeed advances to the start of the next label
func (c *Command) FormFeed() *Command {
	c.buf.WriteString("FORMFEED" + crlf)
	return c
}

// Home feeds until the gap sensor finds the start of a label
func (c *Command) Home() *Command {
	c.buf.WriteString("HOME" + crlf)
	return c
}

// Feed advances the media by n dots
func (c *Command) Feed(dots int) *Command {
	fmt.Fprintf(&c.buf, "FEED %d"+crlf, dots)
	return c
}

// BackFeed retracts the media by n dots
func (c *Command) BackFeed(dots int) *Command {
	fmt.Fprintf(&c.buf, "BACKFEED %d"+crlf, dots)
	return c
}

// Bytes returns the raw command bytes to send to printer
func (c *Command) Bytes() []byte {
	return bytes.Clone(c.buf.Bytes())
}

// String returns the command as a string (for debugging)
func (c *Command) String() string {
	return c.buf.String()
}

func ClampDensity(level int) int {
	return max(MinDensity, min(MaxDensity, level))
}

// offsets are usually 0, which the firmware expects written as a bare 0
func formatOffset(mm float64) string {
	if mm == 0 {
		return "0"
	}
	return fmt.Sprintf("%.1f", mm)
}
