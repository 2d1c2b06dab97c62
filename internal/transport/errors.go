package transport

import (
	"errors"
	"fmt"
)

var (
	ErrNotConnected    = errors.New("Not connected to a printer")
	ErrNoWriteEndpoint = errors.New("Device has no writable characteristic")
	ErrNoDevice        = errors.New("No matching device found")
	ErrLinkLost        = errors.New("Link to printer was lost")
)

// ChunkError reports which chunk of a chunked write failed. Earlier chunks
// were already delivered.
type ChunkError struct {
	Index int
	Total int
	Err   error
}

func (e *ChunkError) Error() string {
	return fmt.Sprintf("Chunk %d of %d failed: %v", e.Index+1, e.Total, e.Err)
}

func (e *ChunkError) Unwrap() error {
	return e.Err
}
