package tspl

import (
	"fmt"

	"tomgalvin.uk/p31print/internal/bitmap"
)

// LabelSize represents a supported label dimension
type LabelSize struct {
	Name   string
	Width  float64 // mm
	Height float64 // mm
	Gap    float64 // mm
}

// Common P31 label sizes
var (
	Label14x40 = LabelSize{"14x40mm", 14.0, 40.0, 2.0}
	Label12x40 = LabelSize{"12x40mm", 12.0, 40.0, 2.0}
	Label15x30 = LabelSize{"15x30mm", 15.0, 30.0, 2.0}
	Label14x50 = LabelSize{"14x50mm", 14.0, 50.0, 2.0}
	Label14x75 = LabelSize{"14x75mm", 14.0, 75.0, 2.0}
)

var AllSizes = []LabelSize{Label14x40, Label12x40, Label15x30, Label14x50, Label14x75}

// LookupSize finds a preset by name, e.g. "14x40mm".
func LookupSize(name string) (LabelSize, bool) {
	for _, s := range AllSizes {
		if s.Name == name {
			return s, true
		}
	}
	return LabelSize{}, false
}

// NoDensity leaves the printer's current density untouched.
const NoDensity = -1

// Job describes one label. The zero value of Copies and Sets means 1.
type Job struct {
	Label   LabelSize
	Density int
	Bitmap  *bitmap.PackedBitmap
	X, Y    int
	Mode    BitmapMode
	Copies  int
	Sets    int
}

// BuildJob renders the job in the order the firmware expects:
// SIZE, GAP, DIRECTION, optional DENSITY, CLS, BITMAP, PRINT.
func BuildJob(j Job) ([]byte, error) {
	if j.Bitmap == nil {
		return nil, fmt.Errorf("Print job has no bitmap")
	}
	if j.Density > MaxDensity {
		return nil, fmt.Errorf("Density %d out of range %d-%d", j.Density, MinDensity, MaxDensity)
	}

	copies, sets := max(j.Copies, 1), max(j.Sets, 1)

	cmd := New().
		Size(j.Label.Width, j.Label.Height).
		Gap(j.Label.Gap, 0).
		Direction(0, 0)
	if j.Density >= MinDensity {
		cmd.Density(j.Density)
	}
	cmd.CLS().
		Bitmap(j.X, j.Y, j.Bitmap.Stride(), j.Bitmap.Height(), j.Mode, j.Bitmap.Data()).
		PrintSets(copies, sets)

	return cmd.Bytes(), nil
}
