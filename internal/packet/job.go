package packet

import (
	"fmt"

	"tomgalvin.uk/p31print/internal/bitmap"
)

// Rows longer than this can't fit in an indexed frame alongside the index.
const maxIndexedRow = MaxDataLen - 2

// RowJob configures the frame sequence for the checksum protocol.
type RowJob struct {
	Bitmap    *bitmap.PackedBitmap
	LabelType LabelType
	Density   Density
	// Indexed sends each data row with its row number, letting the firmware
	// skip blank stretches via empty-row frames.
	Indexed bool
	// Copies repeats the page, 0 means 1.
	Copies int
}

// BuildRowJob returns the frames for a page: connect, label type, density
// and page size, then print start, the rows, page end and print end once per
// copy. The bitmap is inverted so that 1 means burn, as this protocol expects.
func BuildRowJob(j RowJob) ([][]byte, error) {
	if j.Bitmap == nil {
		return nil, fmt.Errorf("Print job has no bitmap")
	}
	if j.Bitmap.Stride() > maxIndexedRow {
		return nil, fmt.Errorf("Bitmap rows are %d bytes, frames hold at most %d", j.Bitmap.Stride(), maxIndexedRow)
	}

	labelType, density := j.LabelType, j.Density
	if labelType == 0 {
		labelType = Gap
	}
	if density == 0 {
		density = Normal
	}

	frames := [][]byte{
		ConnectCmd(),
		SetLabelTypeCmd(labelType),
		SetDensityCmd(density),
		SetPageSizeCmd(j.Bitmap.Width(), j.Bitmap.Height()),
	}

	rows := j.Bitmap.Invert().Rows()
	page := [][]byte{}
	if j.Indexed {
		for _, run := range bitmap.CompressEmptyRuns(rows) {
			if run.Kind == bitmap.EmptyRun {
				page = append(page, EmptyRowsCmd(run.Count))
			} else {
				page = append(page, BitmapRowIndexedCmd(run.Index, run.Row))
			}
		}
	} else {
		for _, row := range rows {
			page = append(page, BitmapRowCmd(row))
		}
	}

	for range max(j.Copies, 1) {
		frames = append(frames, PrintStartCmd())
		frames = append(frames, page...)
		frames = append(frames, PageEndCmd(), PrintEndCmd())
	}
	return frames, nil
}

// CatJob configures the frame sequence for the CRC8 protocol.
type CatJob struct {
	Bitmap *bitmap.PackedBitmap
	// Energy is the head energy, 0 leaves the printer default.
	Energy uint16
	// FeedRows is paper fed after each copy.
	FeedRows int
	// Copies repeats the image, 0 means 1.
	Copies int
}

// BuildCatJob returns CRC8 frames: optional energy, then one row frame per
// bitmap row and a feed for each copy. Cat printers take rows LSB first with
// 1 = burn.
func BuildCatJob(j CatJob) ([][]byte, error) {
	if j.Bitmap == nil {
		return nil, fmt.Errorf("Print job has no bitmap")
	}
	if j.Bitmap.Stride() > MaxDataLen {
		return nil, fmt.Errorf("Bitmap rows are %d bytes, frames hold at most %d", j.Bitmap.Stride(), MaxDataLen)
	}

	frames := [][]byte{}
	if j.Energy != 0 {
		frames = append(frames, EncodeCat(CatEnergy, []byte{byte(j.Energy), byte(j.Energy >> 8)}))
	}

	page := [][]byte{}
	for _, row := range j.Bitmap.Invert().Rows() {
		lsb := make([]byte, len(row))
		for i, b := range row {
			lsb[i] = reverseBits(b)
		}
		page = append(page, EncodeCat(CatBitmapRow, lsb))
	}
	if j.FeedRows > 0 {
		page = append(page, FeedPaperCmd(j.FeedRows))
	}

	for range max(j.Copies, 1) {
		frames = append(frames, page...)
	}
	return frames, nil
}

// Join concatenates frames into one stream for a chunked write.
func Join(frames [][]byte) []byte {
	n := 0
	for _, f := range frames {
		n += len(f)
	}
	out := make([]byte, 0, n)
	for _, f := range frames {
		out = append(out, f...)
	}
	return out
}

func reverseBits(b byte) byte {
	b = (b&0xF0)>>4 | (b&0x0F)<<4
	b = (b&0xCC)>>2 | (b&0x33)<<2
	b = (b&0xAA)>>1 | (b&0x55)<<1
	return b
}
