package printer

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"tomgalvin.uk/p31print/internal/packet"
)

func TestBattery(t *testing.T) {
	f := &fakeTransport{}
	p := readyPrinter(t, f)
	f.replies = [][]byte{
		[]byte("noise"),
		append([]byte("BATTERY "), 0x75, 0x01, '\r', '\n'),
	}

	b, err := p.Battery(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if b.Level != 75 || !b.Charging {
		t.Errorf("got %+v, want level 75 charging", b)
	}
	if string(f.writes[0]) != "BATTERY?\r\n" {
		t.Errorf("got query %q", f.writes[0])
	}
}

func TestBatteryNoReply(t *testing.T) {
	f := &fakeTransport{}
	p := readyPrinter(t, f)

	_, err := p.Battery(context.Background())
	if KindOf(err) != ProtocolErr || !errors.Is(err, ErrNoReply) {
		t.Errorf("got %v, want ErrNoReply", err)
	}
}

func TestConfigMalformed(t *testing.T) {
	f := &fakeTransport{}
	p := readyPrinter(t, f)
	f.replies = [][]byte{[]byte("CONFIG 1")}

	if _, err := p.Config(context.Background()); KindOf(err) != ProtocolErr {
		t.Errorf("got %v, want a protocol error", err)
	}
}

func TestConfig(t *testing.T) {
	f := &fakeTransport{}
	p := readyPrinter(t, f)
	f.replies = [][]byte{append([]byte("CONFIG "), 0, 203, 0, 1, 2, 3, 4, 5, 6, 7)}

	cfg, err := p.Config(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Resolution != 203 || cfg.HardwareVersion.String() != "1.2.3" || cfg.FirmwareVersion.String() != "4.5.6" {
		t.Errorf("got %+v", cfg)
	}
}

func TestChunkSize(t *testing.T) {
	f := &fakeTransport{}
	p := readyPrinter(t, f)
	f.replies = [][]byte{append([]byte("BATTERY "), 0x50, 0), []byte("512\r\n")}

	n, err := p.ChunkSize(context.Background())
	if err != nil || n != 512 {
		t.Errorf("got %d %v, want 512", n, err)
	}
}

func TestPrintedCountMalformed(t *testing.T) {
	f := &fakeTransport{}
	p := readyPrinter(t, f)
	f.replies = [][]byte{[]byte("none")}

	if _, err := p.PrintedCount(context.Background()); KindOf(err) != ProtocolErr {
		t.Errorf("got %v, want a protocol error", err)
	}
}

func TestStatusNotReady(t *testing.T) {
	p := New(&fakeTransport{}, testOptions(), nil)
	if _, err := p.Battery(context.Background()); !errors.Is(err, ErrNotReady) {
		t.Errorf("got %v, want ErrNotReady", err)
	}
	if err := p.Feed(context.Background(), 0); !errors.Is(err, ErrNotReady) {
		t.Errorf("got %v, want ErrNotReady", err)
	}
}

func TestCommands(t *testing.T) {
	f := &fakeTransport{}
	p := readyPrinter(t, f)

	p.SelfTest(context.Background())
	p.Initialize(context.Background())
	p.Feed(context.Background(), 0)
	p.Feed(context.Background(), 24)
	p.Feed(context.Background(), -8)
	p.Home(context.Background())

	want := []string{"SELFTEST\r\n", "INITIALPRINTER\r\n", "FORMFEED\r\n", "FEED 24\r\n", "BACKFEED 8\r\n", "HOME\r\n"}
	if len(f.writes) != len(want) {
		t.Fatalf("got %d writes, want %d", len(f.writes), len(want))
	}
	for i, w := range want {
		if string(f.writes[i]) != w {
			t.Errorf("write %d: got %q, want %q", i, f.writes[i], w)
		}
	}
}

func TestSendRaw(t *testing.T) {
	f := &fakeTransport{}
	p := readyPrinter(t, f)
	f.replies = [][]byte{[]byte("OK")}

	reply, err := p.SendRaw(context.Background(), []byte{0x1b, '!', '?'}, testOptions().ReplyTimeout)
	if err != nil || string(reply) != "OK" {
		t.Errorf("got %q %v, want OK", reply, err)
	}

	if _, err := p.SendRaw(context.Background(), []byte{1}, 0); err != nil {
		t.Errorf("got %v for a fire and forget write", err)
	}
}

func TestDisconnect(t *testing.T) {
	f := &fakeTransport{}
	p := readyPrinter(t, f)
	p.Disconnect()
	if p.State() != Idle || f.connected {
		t.Errorf("got state %s connected %v, want idle and disconnected", p.State(), f.connected)
	}
}

func TestStatus(t *testing.T) {
	f := &fakeTransport{}
	p := readyPrinter(t, f)
	f.replies = [][]byte{
		[]byte("BATTERY "),
		packet.Encode(packet.GetInfo, []byte{0x0A}),
	}

	st, err := p.Status(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !st.PaperPresent || !st.CoverOpen || !st.Printing || st.BatteryLow || st.Error {
		t.Errorf("got %+v, want paper present, cover open, printing", st)
	}
	if !bytes.Equal(f.writes[0], packet.GetInfoCmd()) {
		t.Errorf("got query % x, want get-info", f.writes[0])
	}
}

func TestStatusNoReply(t *testing.T) {
	f := &fakeTransport{}
	p := readyPrinter(t, f)
	f.replies = [][]byte{[]byte("not a frame")}

	_, err := p.Status(context.Background())
	if KindOf(err) != ProtocolErr || !errors.Is(err, ErrNoReply) {
		t.Errorf("got %v, want a protocol error wrapping ErrNoReply", err)
	}
}

func TestStatusUndecodable(t *testing.T) {
	f := &fakeTransport{}
	p := readyPrinter(t, f)
	reply := packet.Encode(packet.GetInfo, []byte{0x00})
	reply[len(reply)-3] ^= 0xFF
	f.replies = [][]byte{reply}

	_, err := p.Status(context.Background())
	if KindOf(err) != ProtocolErr || errors.Is(err, ErrNoReply) {
		t.Errorf("got %v, want a protocol error for the corrupt frame", err)
	}
}
