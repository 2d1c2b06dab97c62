package packet

// Status is the printer state carried in the first payload byte of a
// get-info reply.
type Status struct {
	PaperPresent bool
	CoverOpen    bool
	BatteryLow   bool
	Printing     bool
	Error        bool
	Raw          byte
}

const (
	statusNoPaper    = 0x01
	statusCoverOpen  = 0x02
	statusBatteryLow = 0x04
	statusPrinting   = 0x08
	statusError      = 0x80
)

// IsFrame reports whether raw starts like a checksum frame.
func IsFrame(raw []byte) bool {
	return len(raw) >= 2 && raw[0] == head[0] && raw[1] == head[1]
}

// ParseStatus finds the get-info frame in a notification and decodes its
// status byte. If no frame is tagged get-info the first frame is used, since
// some firmware answers under a different command byte. It reports false
// when nothing decodes or the payload is empty.
func ParseStatus(raw []byte) (Status, bool) {
	frames := Split(raw)
	if len(frames) == 0 {
		return Status{}, false
	}
	f := frames[0]
	for _, candidate := range frames {
		if candidate.Cmd == GetInfo {
			f = candidate
			break
		}
	}
	if len(f.Data) == 0 {
		return Status{}, false
	}

	b := f.Data[0]
	return Status{
		PaperPresent: b&statusNoPaper == 0,
		CoverOpen:    b&statusCoverOpen != 0,
		BatteryLow:   b&statusBatteryLow != 0,
		Printing:     b&statusPrinting != 0,
		Error:        b&statusError != 0,
		Raw:          b,
	}, true
}
