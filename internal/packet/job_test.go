package packet

import (
	"bytes"
	"fmt"
	"testing"

	"tomgalvin.uk/p31print/internal/bitmap"
)

func packed(t *testing.T, pixels [][]byte) *bitmap.PackedBitmap {
	t.Helper()
	pb, err := bitmap.NewPixelBitmap(pixels)
	if err != nil {
		t.Fatal(err)
	}
	return bitmap.PackBitmap(pb)
}

func TestBuildRowJobIndexed(t *testing.T) {
	w := []byte{1, 1, 1, 1, 1, 1, 1, 1}
	b := []byte{0, 1, 1, 1, 1, 1, 1, 1}
	pb := packed(t, [][]byte{w, w, b, w})

	frames, err := BuildRowJob(RowJob{Bitmap: pb, Indexed: true})
	if err != nil {
		t.Fatalf("BuildRowJob() error: %v", err)
	}

	var cmds []Command
	for _, f := range frames {
		d, ok := Decode(f)
		if !ok {
			t.Fatalf("frame %x doesn't decode", f)
		}
		cmds = append(cmds, d.Cmd)
	}
	want := []Command{Connect, SetLabelType, SetLabelDensity, SetPageSize, PrintStart,
		EmptyRows, BitmapRowIndexed, EmptyRows, PageEnd, PrintEnd}
	if len(cmds) != len(want) {
		t.Fatalf("got commands %v, want %v", cmds, want)
	}
	for i := range want {
		if cmds[i] != want[i] {
			t.Errorf("command %d = %v, want %v", i, cmds[i], want[i])
		}
	}

	row, _ := Decode(frames[6])
	if !bytes.Equal(row.Data, []byte{0x02, 0x00, 0x80}) {
		t.Errorf("indexed row data = %x, want 020080", row.Data)
	}
}

func TestBuildRowJobPlain(t *testing.T) {
	pb := packed(t, [][]byte{{1, 0}, {1, 1}})
	frames, err := BuildRowJob(RowJob{Bitmap: pb})
	if err != nil {
		t.Fatalf("BuildRowJob() error: %v", err)
	}
	// 5 setup frames, 2 rows, 2 trailer frames
	if len(frames) != 9 {
		t.Fatalf("got %d frames, want 9", len(frames))
	}
	row0, _ := Decode(frames[5])
	row1, _ := Decode(frames[6])
	if row0.Cmd != BitmapRow || !bytes.Equal(row0.Data, []byte{0x40}) {
		t.Errorf("row 0 = %v/%x, want bitmap-row/40", row0.Cmd, row0.Data)
	}
	if !bytes.Equal(row1.Data, []byte{0x00}) {
		t.Errorf("row 1 = %x, want 00", row1.Data)
	}
}

func TestBuildCatJob(t *testing.T) {
	pb := packed(t, [][]byte{{0, 1, 1, 1, 1, 1, 1, 1}})
	frames, err := BuildCatJob(CatJob{Bitmap: pb, Energy: 0x3000, FeedRows: 40})
	if err != nil {
		t.Fatalf("BuildCatJob() error: %v", err)
	}
	if len(frames) != 3 {
		t.Fatalf("got %d frames, want 3", len(frames))
	}
	row := frames[1]
	if row[2] != byte(CatBitmapRow) || row[6] != 0x01 {
		t.Errorf("row frame = %x, want cmd a2 with data 01", row)
	}
	if row[7] != CRC8([]byte{0x01}) || row[8] != 0xFF {
		t.Errorf("row frame trailer = %x", row[7:])
	}
}

func TestBuildRowJobCopies(t *testing.T) {
	pb := packed(t, [][]byte{{1, 0}, {0, 1}})
	frames, err := BuildRowJob(RowJob{Bitmap: pb, Copies: 3})
	if err != nil {
		t.Fatalf("BuildRowJob() error: %v", err)
	}

	counts := map[Command]int{}
	for _, f := range frames {
		d, ok := Decode(f)
		if !ok {
			t.Fatalf("frame %x doesn't decode", f)
		}
		counts[d.Cmd]++
	}
	for cmd, want := range map[Command]int{Connect: 1, SetPageSize: 1, PrintStart: 3, BitmapRow: 6, PageEnd: 3, PrintEnd: 3} {
		if counts[cmd] != want {
			t.Errorf("got %d %v frames, want %d", counts[cmd], cmd, want)
		}
	}

	last, _ := Decode(frames[len(frames)-1])
	if last.Cmd != PrintEnd {
		t.Errorf("last frame is %v, want print-end", last.Cmd)
	}
}

func TestBuildCatJobCopies(t *testing.T) {
	pb := packed(t, [][]byte{{0, 1}, {1, 0}})
	for _, copies := range []int{0, 1, 4} {
		t.Run(fmt.Sprintf("copies=%d", copies), func(t *testing.T) {
			frames, err := BuildCatJob(CatJob{Bitmap: pb, Energy: 0x2000, FeedRows: 10, Copies: copies})
			if err != nil {
				t.Fatalf("BuildCatJob() error: %v", err)
			}
			// energy once, then two rows and a feed per copy
			want := 1 + 3*max(copies, 1)
			if len(frames) != want {
				t.Fatalf("got %d frames, want %d", len(frames), want)
			}
			if frames[0][2] != byte(CatEnergy) {
				t.Errorf("first frame = %x, want energy", frames[0])
			}
		})
	}
}

func TestJoin(t *testing.T) {
	got := Join([][]byte{{1, 2}, {}, {3}})
	if !bytes.Equal(got, []byte{1, 2, 3}) {
		t.Errorf("Join() = %v", got)
	}
}
