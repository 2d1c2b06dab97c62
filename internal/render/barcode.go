// Package render draws labels from scratch: barcodes, QR codes, text and
// calibration patterns. Every function returns a bi-level image sized in
// printer dots.
package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/code128"
	"github.com/boombuler/barcode/code39"
	"github.com/boombuler/barcode/ean"
	"github.com/boombuler/barcode/qr"
)

type BarcodeType string

const (
	Code128 BarcodeType = "code128"
	Code39  BarcodeType = "code39"
	EAN13   BarcodeType = "ean13"
	UPCA    BarcodeType = "upca"
)

var BarcodeTypes = []BarcodeType{Code128, Code39, EAN13, UPCA}

// quietZone is the white margin left of and right of the bars, in modules.
const quietZone = 2

func encodeBarcode(data string, t BarcodeType) (barcode.Barcode, error) {
	switch t {
	case Code128:
		return code128.Encode(data)
	case Code39:
		return code39.Encode(data, false, true)
	case EAN13:
		return ean.Encode(data)
	case UPCA:
		// UPC-A is EAN-13 with a leading zero
		if len(data) != 11 && len(data) != 12 {
			return nil, fmt.Errorf("UPC-A needs 11 or 12 digits, got %d", len(data))
		}
		return ean.Encode("0" + data)
	}
	return nil, fmt.Errorf(`Unrecognised barcode type "%s"`, t)
}

// Barcode renders data as a linear barcode height dots tall. With width > 0
// the bars are scaled to that width; otherwise each module is one dot.
func Barcode(data string, t BarcodeType, width, height int) (image.Image, error) {
	if data == "" {
		return nil, fmt.Errorf("No data to encode")
	}
	bc, err := encodeBarcode(data, t)
	if err != nil {
		return nil, fmt.Errorf("Couldn't encode %s barcode: %w", t, err)
	}

	modules := bc.Bounds().Dx()
	barsWidth := modules
	if width > 0 {
		barsWidth = max(modules, width-2*quietZone)
	}
	scaled, err := barcode.Scale(bc, barsWidth, max(height, 1))
	if err != nil {
		return nil, fmt.Errorf("Couldn't scale barcode: %w", err)
	}

	out := blank(barsWidth+2*quietZone, max(height, 1))
	draw.Draw(out, scaled.Bounds().Add(image.Pt(quietZone, 0)), scaled, scaled.Bounds().Min, draw.Src)
	return threshold(out), nil
}

type QRSize string

const (
	QRSmall  QRSize = "small"
	QRMedium QRSize = "medium"
	QRLarge  QRSize = "large"
)

// Module size and border, both in dots, for each preset.
var qrSizes = map[QRSize]struct{ box, border int }{
	QRSmall:  {2, 2},
	QRMedium: {4, 4},
	QRLarge:  {6, 4},
}

// QR renders data as a QR code at medium error correction.
func QR(data string, size QRSize) (image.Image, error) {
	preset, ok := qrSizes[size]
	if !ok {
		return nil, fmt.Errorf(`Unrecognised QR size "%s"`, size)
	}
	if data == "" {
		return nil, fmt.Errorf("No data to encode")
	}

	code, err := qr.Encode(data, qr.M, qr.Auto)
	if err != nil {
		return nil, fmt.Errorf("Couldn't encode QR code: %w", err)
	}

	n := code.Bounds().Dx()
	side := n * preset.box
	scaled, err := barcode.Scale(code, side, side)
	if err != nil {
		return nil, fmt.Errorf("Couldn't scale QR code: %w", err)
	}

	total := side + 2*preset.border
	out := blank(total, total)
	draw.Draw(out, scaled.Bounds().Add(image.Pt(preset.border, preset.border)), scaled, scaled.Bounds().Min, draw.Src)
	return threshold(out), nil
}

func blank(width, height int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)
	return img
}

var bilevel = color.Palette{color.Black, color.White}

// threshold cuts img at mid grey into a two colour paletted image.
func threshold(img image.Image) *image.Paletted {
	b := img.Bounds()
	out := image.NewPaletted(image.Rect(0, 0, b.Dx(), b.Dy()), bilevel)
	for y := range b.Dy() {
		for x := range b.Dx() {
			g := color.GrayModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray)
			if g.Y >= 128 {
				out.SetColorIndex(x, y, 1)
			}
		}
	}
	return out
}
