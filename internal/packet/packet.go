// This package implements the two binary framings spoken by some firmware
// revisions: a checksummed frame bracketed by 0x55 0x55 / 0xAA 0xAA, and the
// CRC8 frame used by cat-printer style devices starting 0x51 0x78.
// Both are stateless; decoding never fails loudly, it reports ok=false.
package packet

var (
	head = [2]byte{0x55, 0x55}
	tail = [2]byte{0xAA, 0xAA}
)

// header, command, length, checksum and tail
const frameOverhead = 7

const MaxDataLen = 0xFF

// Frame is one decoded checksum frame.
type Frame struct {
	Cmd  Command
	Data []byte
}

// Checksum is the XOR of the command byte, the length byte and every data byte.
func Checksum(cmd byte, data []byte) byte {
	sum := cmd ^ byte(len(data))
	for _, b := range data {
		sum ^= b
	}
	return sum
}

// Encode builds HEAD | CMD | LEN | DATA | CHECKSUM | TAIL.
// It panics if data is longer than MaxDataLen since LEN is a single byte.
func Encode(cmd Command, data []byte) []byte {
	if len(data) > MaxDataLen {
		panic("packet: data longer than 255 bytes")
	}
	out := make([]byte, 0, frameOverhead+len(data))
	out = append(out, head[0], head[1], byte(cmd), byte(len(data)))
	out = append(out, data...)
	out = append(out, Checksum(byte(cmd), data), tail[0], tail[1])
	return out
}

// Decode parses exactly one frame. It reports false for short input, wrong
// head or tail, a length byte that disagrees with the buffer, or a bad checksum.
func Decode(raw []byte) (Frame, bool) {
	if len(raw) < frameOverhead {
		return Frame{}, false
	}
	if raw[0] != head[0] || raw[1] != head[1] {
		return Frame{}, false
	}
	n := len(raw)
	if raw[n-2] != tail[0] || raw[n-1] != tail[1] {
		return Frame{}, false
	}
	dataLen := int(raw[3])
	if n != frameOverhead+dataLen {
		return Frame{}, false
	}
	data := raw[4 : 4+dataLen]
	if Checksum(raw[2], data) != raw[4+dataLen] {
		return Frame{}, false
	}

	out := make([]byte, dataLen)
	copy(out, data)
	return Frame{Cmd: Command(raw[2]), Data: out}, true
}

// Split walks a notification that may hold several frames back to back and
// returns the ones that decode. Bytes that don't start a valid frame are skipped.
func Split(raw []byte) []Frame {
	frames := []Frame{}
	for i := 0; i+frameOverhead <= len(raw); {
		if raw[i] != head[0] || raw[i+1] != head[1] {
			i++
			continue
		}
		end := i + frameOverhead + int(raw[i+3])
		if end > len(raw) {
			i++
			continue
		}
		if f, ok := Decode(raw[i:end]); ok {
			frames = append(frames, f)
			i = end
			continue
		}
		i++
	}
	return frames
}
