package bitmap

import (
	"image"
	"image/color"
)

// DefaultThreshold is the luminance below which a pixel is printed.
const DefaultThreshold = 128

type ImageBitmap struct {
	image     image.Image
	bounds    image.Rectangle
	threshold uint8
	// colorMap[i] is the wire bit for palette index i of a two colour
	// paletted image, so already bi-level images skip the threshold.
	colorMap []byte
}

func (b *ImageBitmap) Width() int {
	return b.bounds.Dx()
}

func (b *ImageBitmap) Height() int {
	return b.bounds.Dy()
}

func (b *ImageBitmap) GetBit(x int, y int) byte {
	px, py := b.bounds.Min.X+x, b.bounds.Min.Y+y
	if b.colorMap != nil {
		return b.colorMap[b.image.(*image.Paletted).ColorIndexAt(px, py)]
	}
	if luminance(b.image.At(px, py)) < b.threshold {
		return Black
	}
	return White
}

// FromImage adapts any image to the Bitmap interface. Two colour paletted
// images map their palette directly; everything else is thresholded on
// luminance after compositing onto white.
func FromImage(i image.Image, threshold uint8) *ImageBitmap {
	b := &ImageBitmap{
		image:     i,
		bounds:    i.Bounds(),
		threshold: threshold,
	}

	if p, ok := i.(*image.Paletted); ok && len(p.Palette) == 2 {
		b.colorMap = make([]byte, 2)
		for idx, c := range p.Palette {
			if luminance(c) < threshold {
				b.colorMap[idx] = Black
			} else {
				b.colorMap[idx] = White
			}
		}
	}

	return b
}

// Encode packs an image using the default threshold.
func Encode(i image.Image) *PackedBitmap {
	return EncodeThreshold(i, DefaultThreshold)
}

func EncodeThreshold(i image.Image, threshold uint8) *PackedBitmap {
	return PackBitmap(FromImage(i, threshold))
}

// luminance uses the same weights as color.GrayModel, with transparent
// pixels treated as white paper.
func luminance(c color.Color) uint8 {
	r, g, b, a := c.RGBA()
	bg := 0xFFFF - a
	r, g, b = r+bg, g+bg, b+bg
	y := (19595*r + 38470*g + 7471*b + 1<<15) >> 24
	return uint8(y)
}
