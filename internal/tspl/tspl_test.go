package tspl

import (
	"bytes"
	"image"
	"image/color"
	"strings"
	"testing"

	"tomgalvin.uk/p31print/internal/bitmap"
)

func whiteBitmap(w, h int) *bitmap.PackedBitmap {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.SetGray(x, y, color.Gray{Y: 255})
		}
	}
	return bitmap.Encode(img)
}

func TestBuildJob(t *testing.T) {
	job, err := BuildJob(Job{
		Label:   LabelSize{Width: 15.0, Height: 12.0, Gap: 2.0},
		Density: 8,
		Bitmap:  whiteBitmap(8, 8),
	})
	if err != nil {
		t.Fatalf("BuildJob() error: %v", err)
	}

	prefix := []byte("SIZE 15.0 mm,12.0 mm\r\nGAP 2.0 mm,0 mm\r\nDIRECTION 0,0\r\nDENSITY 8\r\nCLS\r\nBITMAP 0,0,1,8,0,")
	if !bytes.HasPrefix(job, prefix) {
		t.Fatalf("job = %q, want prefix %q", job, prefix)
	}

	rest := job[len(prefix):]
	if !bytes.Equal(rest[:8], bytes.Repeat([]byte{0xFF}, 8)) {
		t.Errorf("bitmap payload = %x, want 8 bytes of ff", rest[:8])
	}
	if got, want := string(rest[8:]), "\r\nPRINT 1,1\r\n"; got != want {
		t.Errorf("tail = %q, want %q", got, want)
	}
}

func TestBuildJobSkipsDensity(t *testing.T) {
	job, err := BuildJob(Job{
		Label:   Label14x40,
		Density: NoDensity,
		Bitmap:  whiteBitmap(8, 1),
		Mode:    Or,
		Copies:  3,
		Sets:    2,
	})
	if err != nil {
		t.Fatalf("BuildJob() error: %v", err)
	}
	s := string(job)
	if strings.Contains(s, "DENSITY") {
		t.Errorf("job contains DENSITY: %q", s)
	}
	if !strings.Contains(s, "BITMAP 0,0,1,1,1,") {
		t.Errorf("job missing OR mode bitmap header: %q", s)
	}
	if !strings.HasSuffix(s, "PRINT 3,2\r\n") {
		t.Errorf("job = %q, want PRINT 3,2 suffix", s)
	}
}

func TestBuildJobRejects(t *testing.T) {
	if _, err := BuildJob(Job{Label: Label14x40}); err == nil {
		t.Errorf("expected error without bitmap")
	}
	if _, err := BuildJob(Job{Label: Label14x40, Density: 16, Bitmap: whiteBitmap(8, 1)}); err == nil {
		t.Errorf("expected error for density 16")
	}
}

func TestCommandOrderAndFormatting(t *testing.T) {
	got := New().
		Size(14, 40).
		Gap(2, 0.5).
		Density(99).
		Feed(16).
		Print(2).
		String()

	want := "SIZE 14.0 mm,40.0 mm\r\nGAP 2.0 mm,0.5 mm\r\nDENSITY 15\r\nFEED 16\r\nPRINT 2\r\n"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestStatusQueries(t *testing.T) {
	cases := map[string][]byte{
		"CONFIG?\r\n":         ConfigQuery(),
		"BATTERY?\r\n":        BatteryQuery(),
		"SELFTEST\r\n":        SelfTest(),
		"INITIALPRINTER\r\n":  Initialize(),
		"GETCHUNKSIZE\r\n":    ChunkSizeQuery(),
		"GETPRINTEDCOUNT\r\n": PrintedCountQuery(),
	}
	for want, got := range cases {
		if string(got) != want {
			t.Errorf("got %q, want %q", got, want)
		}
	}
}

func TestLookupSize(t *testing.T) {
	s, ok := LookupSize("14x40mm")
	if !ok || s.Width != 14 || s.Height != 40 {
		t.Errorf("LookupSize(14x40mm) = %v, %v", s, ok)
	}
	if _, ok := LookupSize("bogus"); ok {
		t.Errorf("LookupSize(bogus) found a size")
	}
}
