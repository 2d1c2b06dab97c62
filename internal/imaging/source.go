// Package imaging turns the things a caller can hand us (a file, encoded
// bytes, or an image already in memory) into a raster the bitmap encoder
// accepts, enforcing size limits before any pixels are decoded.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

var (
	ErrTooLarge    = errors.New("Image exceeds size limits")
	ErrUnsupported = errors.New("Unsupported image format")
)

// Source is one of Path, Bytes or Raster.
type Source interface {
	open() (io.Reader, image.Image, error)
}

// Path is an image file on disk.
type Path string

// Bytes is an encoded image (PNG, JPEG, GIF, BMP or WebP).
type Bytes []byte

// Raster is an image that is already decoded.
type Raster struct {
	Image image.Image
}

func (p Path) open() (io.Reader, image.Image, error) {
	data, err := os.ReadFile(string(p))
	if err != nil {
		return nil, nil, fmt.Errorf("Couldn't read image %s: %w", string(p), err)
	}
	return bytes.NewReader(data), nil, nil
}

func (b Bytes) open() (io.Reader, image.Image, error) {
	if len(b) == 0 {
		return nil, nil, fmt.Errorf("%w: empty input", ErrUnsupported)
	}
	return bytes.NewReader(b), nil, nil
}

func (r Raster) open() (io.Reader, image.Image, error) {
	if r.Image == nil {
		return nil, nil, errors.New("No image supplied")
	}
	return nil, r.Image, nil
}

// Limits bound what Load accepts.
type Limits struct {
	MaxWidth  int
	MaxHeight int
	MaxPixels int
}

var DefaultLimits = Limits{
	MaxWidth:  10000,
	MaxHeight: 10000,
	MaxPixels: 10_000_000,
}

// Check reports whether a width by height image fits within l.
func (l Limits) Check(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("Image has no pixels (%dx%d)", width, height)
	}
	if l.MaxWidth > 0 && width > l.MaxWidth {
		return fmt.Errorf("%w: width %d is over %d", ErrTooLarge, width, l.MaxWidth)
	}
	if l.MaxHeight > 0 && height > l.MaxHeight {
		return fmt.Errorf("%w: height %d is over %d", ErrTooLarge, height, l.MaxHeight)
	}
	if l.MaxPixels > 0 && width*height > l.MaxPixels {
		return fmt.Errorf("%w: %d pixels is over %d", ErrTooLarge, width*height, l.MaxPixels)
	}
	return nil
}

// Load resolves src to an image. Encoded sources have their header checked
// against limits before the pixel data is decoded.
func Load(src Source, limits Limits) (image.Image, error) {
	if src == nil {
		return nil, errors.New("No image source")
	}

	r, img, err := src.open()
	if err != nil {
		return nil, err
	}
	if img != nil {
		b := img.Bounds()
		if err := limits.Check(b.Dx(), b.Dy()); err != nil {
			return nil, err
		}
		return img, nil
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("Couldn't read image data: %w", err)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, unsupported(err)
	}
	if err := limits.Check(cfg.Width, cfg.Height); err != nil {
		return nil, err
	}

	img, _, err = image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, unsupported(err)
	}
	return img, nil
}

func unsupported(err error) error {
	if errors.Is(err, image.ErrFormat) {
		return ErrUnsupported
	}
	return fmt.Errorf("Couldn't decode image: %w", err)
}
