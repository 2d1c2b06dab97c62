package printer

import (
	"context"
	"errors"
	"time"
)

var errWrite = errors.New("write rejected")

type fakeTransport struct {
	connected bool

	connectErrs  []error
	connectCalls int

	// chunkedErrs[i] is returned by the i-th WriteChunked call
	chunkedErrs  []error
	chunkedCalls int
	// dropOnFail takes the link down when a chunked write fails
	dropOnFail bool

	writes  [][]byte
	replies [][]byte
}

func (f *fakeTransport) Connect(ctx context.Context, address string) error {
	f.connectCalls++
	if len(f.connectErrs) > 0 {
		err := f.connectErrs[0]
		f.connectErrs = f.connectErrs[1:]
		if err != nil {
			return err
		}
	}
	f.connected = true
	return nil
}

func (f *fakeTransport) Disconnect() {
	f.connected = false
}

func (f *fakeTransport) IsConnected() bool {
	return f.connected
}

func (f *fakeTransport) Write(data []byte, requireAck bool) error {
	f.writes = append(f.writes, data)
	return nil
}

func (f *fakeTransport) WriteChunked(ctx context.Context, data []byte, chunkSize int, delay time.Duration) error {
	f.chunkedCalls++
	var err error
	if f.chunkedCalls <= len(f.chunkedErrs) {
		err = f.chunkedErrs[f.chunkedCalls-1]
	}
	if err != nil {
		if f.dropOnFail {
			f.connected = false
		}
		return err
	}
	f.writes = append(f.writes, data)
	return nil
}

// ReadNotification never waits: tests queue their replies up front.
func (f *fakeTransport) ReadNotification(timeout time.Duration) ([]byte, bool) {
	if len(f.replies) == 0 {
		return nil, false
	}
	data := f.replies[0]
	f.replies = f.replies[1:]
	return data, true
}

func (f *fakeTransport) DrainNotifications() int {
	return 0
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.RetryDelay = 0
	opts.ChunkDelay = 0
	return opts
}
