package bitmap

// Every fourth fully black byte gets one white bit so the head never burns a
// long solid run. Output bytes at those positions are never 0x00, so applying
// this twice gives the same result as applying it once.
const (
	solidBlack   byte = 0x00
	ditheredByte byte = 0x08
	ditherStep        = 4
)

// DitherSolidBlack returns a copy of data in TSPL polarity with solid black
// bytes at positions divisible by four replaced by 0x08.
func DitherSolidBlack(data []byte) []byte {
	out := make([]byte, len(data))
	copy(out, data)
	for i := 0; i < len(out); i += ditherStep {
		if out[i] == solidBlack {
			out[i] = ditheredByte
		}
	}
	return out
}
