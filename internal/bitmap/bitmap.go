// This package defines an interface for a simple bitmap structure that has a
// width, height, and can get bits from the bitmap by (x,y) coordinate.
// It also defines PixelBitmap, which stores each pixel in a byte in a 2D
// array and is used to test the PackedBitmap impl, and PackedBitmap itself,
// which is the format the printer consumes over the wire.
//
// Bits always use the TSPL wire polarity: 0 is black (burn) and 1 is white
// (no burn). Codecs that want the opposite convention call Invert.
package bitmap

import (
	"fmt"
)

const (
	Black byte = 0
	White byte = 1
)

type Bitmap interface {
	Width() int
	Height() int
	GetBit(x int, y int) byte
}

type PixelBitmap struct {
	pixels        [][]byte
	width, height int
}

// NewPixelBitmap wraps rows of 0/1 pixels. Every row must have the same length.
func NewPixelBitmap(pixels [][]byte) (*PixelBitmap, error) {
	height := len(pixels)
	width := 0
	if height > 0 {
		width = len(pixels[0])
	}
	for y, row := range pixels {
		if len(row) != width {
			return nil, fmt.Errorf("Row %d has %d pixels, expected %d", y, len(row), width)
		}
	}
	return &PixelBitmap{pixels, width, height}, nil
}

func (b *PixelBitmap) Width() int {
	return b.width
}

func (b *PixelBitmap) Height() int {
	return b.height
}

func (b *PixelBitmap) GetBit(x int, y int) byte {
	return b.pixels[y][x]
}

func (b *PixelBitmap) String() string {
	return fmt.Sprintf("PixelBitmap(%d,%d)", b.width, b.height)
}
