package render

import (
	"fmt"
	"image"
	"image/draw"
	"strings"

	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/math/fixed"
)

// DPI of the print head.
const DPI = 203

type Orientation int

const (
	Horizontal Orientation = iota
	// Vertical runs the text along the length of the label.
	Vertical
)

type TextOptions struct {
	// FontSize in points.
	FontSize    float64
	Orientation Orientation
	Invert      bool
}

// Text renders text centred on a width by height label, wrapping on spaces.
// Lines that don't fit vertically are dropped.
func Text(text string, width, height int, opts TextOptions) (image.Image, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("Invalid label size %dx%d", width, height)
	}
	if opts.FontSize <= 0 {
		opts.FontSize = 8
	}

	f, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("Couldn't parse font:\n%w", err)
	}

	renderW, renderH := width, height
	if opts.Orientation == Vertical {
		renderW, renderH = height, width
	}

	bg, fg := image.White, image.Black
	if opts.Invert {
		bg, fg = fg, bg
	}
	img := image.NewRGBA(image.Rect(0, 0, renderW, renderH))
	draw.Draw(img, img.Bounds(), bg, image.Point{}, draw.Src)

	c := freetype.NewContext()
	c.SetDPI(DPI)
	c.SetFont(f)
	c.SetFontSize(opts.FontSize)
	c.SetClip(img.Bounds())
	c.SetDst(img)
	c.SetSrc(fg)
	c.SetHinting(font.HintingFull)

	face := truetype.NewFace(f, &truetype.Options{Size: opts.FontSize, DPI: DPI})
	defer face.Close()
	lineHeight := face.Metrics().Height.Ceil()
	ascent := face.Metrics().Ascent.Ceil()

	lines := wrapText(text, renderW, face)
	if fit := max(1, renderH/max(lineHeight, 1)); len(lines) > fit {
		lines = lines[:fit]
	}

	y := (renderH-len(lines)*lineHeight)/2 + ascent
	for _, line := range lines {
		x := (renderW - font.MeasureString(face, line).Ceil()) / 2
		if _, err := c.DrawString(line, freetype.Pt(max(x, 0), y)); err != nil {
			return nil, fmt.Errorf("Couldn't draw text:\n%w", err)
		}
		y += lineHeight
	}

	out := threshold(img)
	if opts.Orientation == Vertical {
		return rotateClockwise(out), nil
	}
	return out, nil
}

func wrapText(text string, maxWidth int, face font.Face) []string {
	var lines []string
	for _, paragraph := range strings.Split(text, "\n") {
		words := strings.Fields(paragraph)
		if len(words) == 0 {
			lines = append(lines, "")
			continue
		}

		var line string
		for _, word := range words {
			testLine := line
			if len(line) > 0 {
				testLine += " "
			}
			testLine += word

			if width := font.MeasureString(face, testLine); width > fixed.I(maxWidth) && len(line) > 0 {
				lines = append(lines, line)
				line = word
			} else {
				line = testLine
			}
		}
		lines = append(lines, line)
	}
	return lines
}

// Rotate turns img a quarter turn clockwise, e.g. to run a barcode along
// the length of the label.
func Rotate(img image.Image) *image.Paletted {
	p, ok := img.(*image.Paletted)
	if !ok {
		p = threshold(img)
	}
	return rotateClockwise(p)
}

func rotateClockwise(src *image.Paletted) *image.Paletted {
	b := src.Bounds()
	dst := image.NewPaletted(image.Rect(0, 0, b.Dy(), b.Dx()), src.Palette)
	for y := range b.Dy() {
		for x := range b.Dx() {
			dst.SetColorIndex(b.Dy()-1-y, x, src.ColorIndexAt(b.Min.X+x, b.Min.Y+y))
		}
	}
	return dst
}
