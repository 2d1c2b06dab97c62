package transport

import (
	"context"
	"errors"
	"sync"
)

type fakeCentral struct {
	adverts     []Advertisement
	scanErr     error
	peripherals map[string]*fakePeripheral
	connects    []string
}

func (f *fakeCentral) Scan(ctx context.Context, found func(Advertisement)) error {
	if f.scanErr != nil {
		return f.scanErr
	}
	for _, a := range f.adverts {
		found(a)
	}
	<-ctx.Done()
	return nil
}

func (f *fakeCentral) Connect(ctx context.Context, address string) (Peripheral, error) {
	f.connects = append(f.connects, address)
	p, ok := f.peripherals[address]
	if !ok {
		return nil, ErrNoDevice
	}
	return p, nil
}

type write struct {
	data         []byte
	withResponse bool
}

type fakePeripheral struct {
	chars  []Characteristic
	mtu    int
	failOn int

	mu           sync.Mutex
	writes       []write
	notify       func([]byte)
	unsubscribed bool
	disconnected bool
	done         chan struct{}
	once         sync.Once
}

func newFakePeripheral(chars ...Characteristic) *fakePeripheral {
	return &fakePeripheral{chars: chars, failOn: -1, done: make(chan struct{})}
}

var (
	writeChar  = Characteristic{Service: "ff00", UUID: "ff02", Props: PropWrite | PropWriteWithoutResponse}
	notifyChar = Characteristic{Service: "ff00", UUID: "ff03", Props: PropNotify}
	readChar   = Characteristic{Service: "ff00", UUID: "ff01", Props: PropRead}
)

func (p *fakePeripheral) Characteristics() ([]Characteristic, error) {
	return p.chars, nil
}

func (p *fakePeripheral) Write(c Characteristic, data []byte, withResponse bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failOn == len(p.writes) {
		return errors.New("write failed")
	}
	p.writes = append(p.writes, write{append([]byte{}, data...), withResponse})
	return nil
}

func (p *fakePeripheral) Subscribe(c Characteristic, fn func([]byte)) error {
	p.notify = fn
	return nil
}

func (p *fakePeripheral) Unsubscribe(c Characteristic) error {
	p.unsubscribed = true
	return nil
}

func (p *fakePeripheral) MTU() (int, error) {
	if p.mtu == 0 {
		return 0, errors.New("no mtu")
	}
	return p.mtu, nil
}

func (p *fakePeripheral) Disconnected() <-chan struct{} {
	return p.done
}

func (p *fakePeripheral) drop() {
	p.once.Do(func() { close(p.done) })
}

func (p *fakePeripheral) Disconnect() error {
	p.disconnected = true
	p.drop()
	return nil
}
