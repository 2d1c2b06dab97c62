package imaging

import (
	"fmt"
	"image"
	"image/color"

	"github.com/makeworld-the-better-one/dither/v2"
	"golang.org/x/image/draw"
)

// Dither selects how greys become black or white.
type Dither int

const (
	// Threshold leaves the image alone and lets the encoder cut at a fixed
	// luminance.
	Threshold Dither = iota
	FloydSteinberg
)

func (d Dither) String() string {
	switch d {
	case Threshold:
		return "threshold"
	case FloydSteinberg:
		return "floyd-steinberg"
	}
	return fmt.Sprintf("Dither(%d)", int(d))
}

func ParseDither(s string) (Dither, error) {
	switch s {
	case "", "threshold":
		return Threshold, nil
	case "floyd-steinberg", "fs":
		return FloydSteinberg, nil
	}
	return Threshold, fmt.Errorf(`Unrecognised dither mode "%s"`, s)
}

type Options struct {
	// Width scales the image to exactly this many dots wide, keeping the
	// aspect ratio. Zero keeps the source size.
	Width int
	// MaxWidth shrinks anything wider, e.g. the print head width. Zero
	// means unbounded.
	MaxWidth int
	Dither   Dither
}

// Size is the size Prepare scales a width by height image to.
func (o Options) Size(width, height int) (int, int) {
	if width <= 0 {
		return width, height
	}

	target := width
	if o.Width > 0 {
		target = o.Width
	}
	if o.MaxWidth > 0 && target > o.MaxWidth {
		target = o.MaxWidth
	}
	if target == width {
		return width, height
	}
	return target, max(1, (height*target+width/2)/width)
}

var bilevel = []color.Color{color.Black, color.White}

// Prepare scales img for the printer and flattens it onto white. With
// FloydSteinberg the result is a two colour paletted image.
func Prepare(img image.Image, opts Options) image.Image {
	b := img.Bounds()
	width, height := opts.Size(b.Dx(), b.Dy())

	flat := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(flat, flat.Bounds(), image.White, image.Point{}, draw.Src)
	if width == b.Dx() && height == b.Dy() {
		draw.Draw(flat, flat.Bounds(), img, b.Min, draw.Over)
	} else {
		draw.CatmullRom.Scale(flat, flat.Bounds(), img, b, draw.Over, nil)
	}

	if opts.Dither != FloydSteinberg {
		return flat
	}
	ditherer := dither.NewDitherer(bilevel)
	ditherer.Matrix = dither.FloydSteinberg
	return ditherer.DitherPaletted(flat)
}
