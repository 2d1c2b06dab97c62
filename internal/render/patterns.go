package render

import (
	"image"
)

// Coverage pattern defaults, sized for a 12 mm by 38 mm printable area.
const (
	CoverageWidth  = 96
	CoverageHeight = 304
)

type CoverageOptions struct {
	Width, Height int
	Border        int
	GridSpacing   int
}

var DefaultCoverage = CoverageOptions{
	Width:       CoverageWidth,
	Height:      CoverageHeight,
	Border:      2,
	GridSpacing: 20,
}

const (
	cornerSize    = 8
	crosshairSize = 10
	tickLength    = 4
)

type canvas struct {
	*image.Paletted
}

func newCanvas(width, height int) canvas {
	img := image.NewPaletted(image.Rect(0, 0, width, height), bilevel)
	for i := range img.Pix {
		img.Pix[i] = 1
	}
	return canvas{img}
}

// fill blackens the inclusive rectangle (x0,y0)-(x1,y1), clipped to the canvas.
func (c canvas) fill(x0, y0, x1, y1 int) {
	r := image.Rect(x0, y0, x1+1, y1+1).Intersect(c.Rect)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			c.SetColorIndex(x, y, 0)
		}
	}
}

// CoveragePattern draws a border, filled corner squares, a centre crosshair
// and tick marks along every edge, for checking where the head can reach.
func CoveragePattern(opts CoverageOptions) image.Image {
	w, h := opts.Width, opts.Height
	if w <= 0 || h <= 0 {
		w, h = CoverageWidth, CoverageHeight
	}
	c := newCanvas(w, h)

	for i := range max(opts.Border, 0) {
		c.fill(i, i, w-1-i, i)
		c.fill(i, h-1-i, w-1-i, h-1-i)
		c.fill(i, i, i, h-1-i)
		c.fill(w-1-i, i, w-1-i, h-1-i)
	}

	for _, corner := range []image.Point{{0, 0}, {w - cornerSize, 0}, {0, h - cornerSize}, {w - cornerSize, h - cornerSize}} {
		c.fill(corner.X, corner.Y, corner.X+cornerSize-1, corner.Y+cornerSize-1)
	}

	cx, cy := w/2, h/2
	c.fill(cx-crosshairSize, cy, cx+crosshairSize, cy)
	c.fill(cx, cy-crosshairSize, cx, cy+crosshairSize)

	if spacing := opts.GridSpacing; spacing > 0 {
		for x := spacing; x < w; x += spacing {
			c.fill(x, 0, x, tickLength)
			c.fill(x, h-tickLength-1, x, h-1)
		}
		for y := spacing; y < h; y += spacing {
			c.fill(0, y, tickLength, y)
			c.fill(w-tickLength-1, y, w-1, y)
		}
	}
	return c.Paletted
}

// Checkerboard alternates black and white squares of size dots, starting
// with black in the top left.
func Checkerboard(width, height, size int) image.Image {
	size = max(size, 1)
	c := newCanvas(width, height)
	for y := range height {
		for x := range width {
			if (x/size+y/size)%2 == 0 {
				c.SetColorIndex(x, y, 0)
			}
		}
	}
	return c.Paletted
}
