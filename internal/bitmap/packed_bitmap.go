// This file implements methods to pack bitmap pixel data into
// the MSB-first row structure accepted by TSPL printers.
package bitmap

import "fmt"

// a bitmap packed in memory, one byte-aligned row after another
type PackedBitmap struct {
	data                  []byte
	width, height, stride int
}

const bitsPerWord = 8

func (b *PackedBitmap) Width() int {
	return b.width
}

func (b *PackedBitmap) Height() int {
	return b.height
}

// Stride is the width of a row in bytes, ceil(width/8).
func (b *PackedBitmap) Stride() int {
	return b.stride
}

func (b *PackedBitmap) Data() []byte {
	return b.data
}

// Gets a single bit from the bitmap at the (x, y) coordinate, returns either 0 or 1
func (b *PackedBitmap) GetBit(x int, y int) byte {
	index := (y * b.stride) + (x / bitsPerWord)
	return (b.data[index] >> (bitsPerWord - 1 - x%bitsPerWord)) & 1
}

func (b *PackedBitmap) String() string {
	return fmt.Sprintf("PackedBitmap(%d,%d)", b.width, b.height)
}

// Row returns the packed bytes of row y. The slice aliases the bitmap's data.
func (b *PackedBitmap) Row(y int) []byte {
	return b.data[y*b.stride : (y+1)*b.stride]
}

// Rows splits the bitmap into its packed rows.
func (b *PackedBitmap) Rows() [][]byte {
	rows := make([][]byte, b.height)
	for y := range b.height {
		rows[y] = b.Row(y)
	}
	return rows
}

// Invert returns a copy with every bit flipped, for codecs where 1 means burn.
// Padding bits become 0, which is still "no burn" under that convention.
func (b *PackedBitmap) Invert() *PackedBitmap {
	data := make([]byte, len(b.data))
	for i, v := range b.data {
		data[i] = ^v
	}
	return &PackedBitmap{data, b.width, b.height, b.stride}
}

// WithData returns a bitmap of the same geometry over a transformed buffer,
// e.g. the output of DitherSolidBlack.
func (b *PackedBitmap) WithData(data []byte) (*PackedBitmap, error) {
	if len(data) != len(b.data) {
		return nil, fmt.Errorf("Data is %d bytes, bitmap needs %d", len(data), len(b.data))
	}
	return &PackedBitmap{data, b.width, b.height, b.stride}, nil
}

// Maps data from the generic bitmap structure and packs it MSB first.
// A partial final byte in each row is shifted up to the most significant bits
// and the remaining low bits are padded white.
func PackBitmap(b Bitmap) *PackedBitmap {
	width, height := b.Width(), b.Height()
	stride := (width + bitsPerWord - 1) / bitsPerWord
	data := make([]byte, stride*height)

	for y := range height {
		var p byte = 0
		for x := range width {
			p = (p << 1) | (b.GetBit(x, y) & 1)

			if x%bitsPerWord == bitsPerWord-1 {
				data[y*stride+(x/bitsPerWord)] = p
				p = 0
			}
		}

		if rem := width % bitsPerWord; rem != 0 {
			pad := byte(0xFF) >> rem
			data[y*stride+stride-1] = (p << (bitsPerWord - rem)) | pad
		}
	}

	return &PackedBitmap{data, width, height, stride}
}
