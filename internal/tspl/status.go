package tspl

// Status and control queries. The printer answers the ones ending in a
// question mark with a short binary blob, see the response package.

func ConfigQuery() []byte {
	return []byte("CONFIG?" + crlf)
}

func BatteryQuery() []byte {
	return []byte("BATTERY?" + crlf)
}

// SelfTest prints a test page with device info and patterns
func SelfTest() []byte {
	return []byte("SELFTEST" + crlf)
}

// Initialize resets printer state; send it after connecting
func Initialize() []byte {
	return []byte("INITIALPRINTER" + crlf)
}

// ChunkSizeQuery asks for the largest transfer the printer accepts in one write
func ChunkSizeQuery() []byte {
	return []byte("GETCHUNKSIZE" + crlf)
}

// PrintedCountQuery asks for the lifetime label counter
func PrintedCountQuery() []byte {
	return []byte("GETPRINTEDCOUNT" + crlf)
}
