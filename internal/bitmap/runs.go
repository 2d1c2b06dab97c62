package bitmap

type RunKind int

const (
	DataRow RunKind = iota
	EmptyRun
)

func (k RunKind) String() string {
	if k == EmptyRun {
		return "empty"
	}
	return "data"
}

// Run is either a single data row or a count of consecutive empty rows.
type Run struct {
	Kind  RunKind
	Count int
	Row   []byte
	// Index of the first source row covered by this entry.
	Index int
}

// CompressEmptyRuns collapses consecutive all-zero rows into EmptyRun entries.
// Rows are expected in print polarity (1 = burn), so all-zero means blank.
func CompressEmptyRuns(rows [][]byte) []Run {
	runs := []Run{}
	for i, row := range rows {
		if !isEmptyRow(row) {
			runs = append(runs, Run{Kind: DataRow, Count: 1, Row: row, Index: i})
			continue
		}

		if n := len(runs); n > 0 && runs[n-1].Kind == EmptyRun {
			runs[n-1].Count++
		} else {
			runs = append(runs, Run{Kind: EmptyRun, Count: 1, Index: i})
		}
	}
	return runs
}

func isEmptyRow(row []byte) bool {
	for _, b := range row {
		if b != 0 {
			return false
		}
	}
	return true
}
