package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func connected(t *testing.T, p *fakePeripheral) (*Connection, *fakeCentral) {
	t.Helper()
	central := &fakeCentral{peripherals: map[string]*fakePeripheral{"AA": p}}
	conn := NewConnection(central, nil)
	if err := conn.Connect(context.Background(), "AA"); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	return conn, central
}

func TestConnectBindsEndpoints(t *testing.T) {
	p := newFakePeripheral(readChar, writeChar, notifyChar)
	conn, _ := connected(t, p)

	w, n, ok := conn.Endpoints()
	if !ok || w.UUID != "ff02" || n.UUID != "ff03" {
		t.Errorf("got endpoints %v %v %v, want ff02 ff03", w, n, ok)
	}
	if !conn.IsConnected() || conn.Address() != "AA" {
		t.Errorf("connection not marked connected to AA")
	}
	if p.notify == nil {
		t.Errorf("notifications were not enabled")
	}
}

func TestConnectWithoutWriteEndpoint(t *testing.T) {
	p := newFakePeripheral(readChar, notifyChar)
	central := &fakeCentral{peripherals: map[string]*fakePeripheral{"AA": p}}
	conn := NewConnection(central, nil)

	err := conn.Connect(context.Background(), "AA")
	if !errors.Is(err, ErrNoWriteEndpoint) {
		t.Errorf("got %v, want ErrNoWriteEndpoint", err)
	}
	if conn.IsConnected() {
		t.Errorf("connection marked connected after failure")
	}
	if !p.disconnected {
		t.Errorf("peripheral left connected after failed bind")
	}
}

func TestConnectUnknownDevice(t *testing.T) {
	conn := NewConnection(&fakeCentral{}, nil)
	if err := conn.Connect(context.Background(), "BB"); !errors.Is(err, ErrNoDevice) {
		t.Errorf("got %v, want ErrNoDevice", err)
	}
}

func TestReconnectReleasesPreviousLink(t *testing.T) {
	first := newFakePeripheral(writeChar, notifyChar)
	second := newFakePeripheral(writeChar, notifyChar)
	central := &fakeCentral{peripherals: map[string]*fakePeripheral{"AA": first, "BB": second}}
	conn := NewConnection(central, nil)

	if err := conn.Connect(context.Background(), "AA"); err != nil {
		t.Fatal(err)
	}
	first.notify([]byte("stale"))

	if err := conn.Connect(context.Background(), "BB"); err != nil {
		t.Fatal(err)
	}
	if !first.unsubscribed || !first.disconnected {
		t.Errorf("first link not released: unsubscribed %v, disconnected %v", first.unsubscribed, first.disconnected)
	}
	if conn.Address() != "BB" {
		t.Errorf("got address %q, want BB", conn.Address())
	}
	if _, ok := conn.ReadNotification(0); ok {
		t.Errorf("notification from the old link survived reconnect")
	}
}

func TestWriteNotConnected(t *testing.T) {
	conn := NewConnection(&fakeCentral{}, nil)
	if err := conn.Write([]byte{1}, false); !errors.Is(err, ErrNotConnected) {
		t.Errorf("got %v, want ErrNotConnected", err)
	}
}

func TestWriteModes(t *testing.T) {
	p := newFakePeripheral(writeChar, notifyChar)
	conn, _ := connected(t, p)

	conn.Write([]byte{1}, false)
	conn.Write([]byte{2}, true)
	if p.writes[0].withResponse || !p.writes[1].withResponse {
		t.Errorf("got withResponse %v %v, want false true", p.writes[0].withResponse, p.writes[1].withResponse)
	}

	ackOnly := newFakePeripheral(Characteristic{UUID: "w", Props: PropWrite})
	conn, _ = connected(t, ackOnly)
	conn.Write([]byte{1}, false)
	if !ackOnly.writes[0].withResponse {
		t.Errorf("endpoint without write-without-response got an unacknowledged write")
	}
}

func TestNegotiatedUnitSize(t *testing.T) {
	for _, test := range []struct {
		mtu, want int
	}{
		{0, DefaultChunkSize},
		{23, DefaultChunkSize},
		{103, DefaultChunkSize},
		{185, 182},
		{512, 509},
	} {
		t.Run(fmt.Sprintf("mtu %d", test.mtu), func(t *testing.T) {
			p := newFakePeripheral(writeChar)
			p.mtu = test.mtu
			conn, _ := connected(t, p)
			if got := conn.NegotiatedUnitSize(); got != test.want {
				t.Errorf("got %d, want %d", got, test.want)
			}
		})
	}
}

func TestWriteChunked(t *testing.T) {
	p := newFakePeripheral(writeChar, notifyChar)
	conn, _ := connected(t, p)

	data := make([]byte, 250)
	for i := range data {
		data[i] = byte(i)
	}

	var progress []int
	conn.SetProgress(func(sent, total int) {
		progress = append(progress, sent)
	})

	if err := conn.WriteChunked(context.Background(), data, 100, time.Millisecond); err != nil {
		t.Fatal(err)
	}
	if len(p.writes) != 3 {
		t.Fatalf("got %d writes, want 3", len(p.writes))
	}
	joined := []byte{}
	for i, w := range p.writes {
		if want := min(100, len(data)-i*100); len(w.data) != want {
			t.Errorf("chunk %d: got %d bytes, want %d", i, len(w.data), want)
		}
		joined = append(joined, w.data...)
	}
	if !bytes.Equal(joined, data) {
		t.Errorf("chunks don't reassemble to the original data")
	}
	if fmt.Sprint(progress) != "[100 200 250]" {
		t.Errorf("got progress %v", progress)
	}
}

func TestWriteChunkedFailure(t *testing.T) {
	p := newFakePeripheral(writeChar, notifyChar)
	p.failOn = 1
	conn, _ := connected(t, p)

	err := conn.WriteChunked(context.Background(), make([]byte, 300), 100, 0)
	var chunkErr *ChunkError
	if !errors.As(err, &chunkErr) {
		t.Fatalf("got %v, want a ChunkError", err)
	}
	if chunkErr.Index != 1 || chunkErr.Total != 3 {
		t.Errorf("got chunk %d of %d, want 1 of 3", chunkErr.Index, chunkErr.Total)
	}
	if len(p.writes) != 1 {
		t.Errorf("got %d writes before failure, want 1", len(p.writes))
	}
}

func TestWriteChunkedCancelled(t *testing.T) {
	p := newFakePeripheral(writeChar, notifyChar)
	conn, _ := connected(t, p)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := conn.WriteChunked(ctx, make([]byte, 300), 100, time.Millisecond)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("got %v, want context.Canceled", err)
	}
	if len(p.writes) != 0 {
		t.Errorf("got %d writes after cancel", len(p.writes))
	}
}

func TestNotificationsAreBounded(t *testing.T) {
	p := newFakePeripheral(writeChar, notifyChar)
	conn, _ := connected(t, p)

	observed := 0
	conn.SetObserver(func([]byte) { observed++ })

	p.notify(make([]byte, MaxResponseSize+1))
	if _, ok := conn.ReadNotification(0); ok {
		t.Errorf("oversized notification was queued")
	}
	if observed != 0 {
		t.Errorf("observer saw an oversized notification")
	}

	p.notify(make([]byte, MaxResponseSize))
	data, ok := conn.ReadNotification(0)
	if !ok || len(data) != MaxResponseSize {
		t.Errorf("notification at the size limit was not queued")
	}
	if observed != 1 {
		t.Errorf("got %d observed, want 1", observed)
	}
}

func TestNotificationIsCopied(t *testing.T) {
	p := newFakePeripheral(writeChar, notifyChar)
	conn, _ := connected(t, p)

	buf := []byte("BATTERY")
	p.notify(buf)
	buf[0] = 'X'

	data, _ := conn.ReadNotification(0)
	if string(data) != "BATTERY" {
		t.Errorf("got %q, queued data aliases the callback buffer", data)
	}
}

func TestDrainNotifications(t *testing.T) {
	p := newFakePeripheral(writeChar, notifyChar)
	conn, _ := connected(t, p)

	p.notify([]byte{1})
	p.notify([]byte{2})
	if n := conn.DrainNotifications(); n != 2 {
		t.Errorf("drained %d, want 2", n)
	}
}

func TestLinkLoss(t *testing.T) {
	p := newFakePeripheral(writeChar, notifyChar)
	conn, _ := connected(t, p)

	p.drop()
	deadline := time.Now().Add(time.Second)
	for conn.IsConnected() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if conn.IsConnected() {
		t.Errorf("connection still marked connected after link loss")
	}
	if err := conn.Write([]byte{1}, false); !errors.Is(err, ErrNotConnected) {
		t.Errorf("got %v, want ErrNotConnected", err)
	}
}
