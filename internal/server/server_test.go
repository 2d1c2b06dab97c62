package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"tomgalvin.uk/p31print/internal/imaging"
	"tomgalvin.uk/p31print/internal/model"
	"tomgalvin.uk/p31print/internal/printer"
	"tomgalvin.uk/p31print/internal/response"
)

type fakeDevice struct {
	state    printer.State
	printErr error
	printed  [][]byte
	copies   int
	battery  response.Battery
	config   response.Config
}

func (f *fakeDevice) PrintImage(ctx context.Context, src imaging.Source, opts printer.PrintOptions, maxRetries int) error {
	if f.printErr != nil {
		return f.printErr
	}
	f.printed = append(f.printed, src.(imaging.Bytes))
	f.copies = opts.Copies
	return nil
}

func (f *fakeDevice) Battery(ctx context.Context) (response.Battery, error) {
	if f.state != printer.Ready {
		return response.Battery{}, &printer.Error{Kind: printer.Connection, Op: "battery", Err: printer.ErrNotReady}
	}
	return f.battery, nil
}

func (f *fakeDevice) Config(ctx context.Context) (response.Config, error) {
	return f.config, nil
}

func (f *fakeDevice) State() printer.State {
	return f.state
}

func (f *fakeDevice) Address() string {
	return "AA:BB:CC:DD:EE:FF"
}

func newTestServer(d *fakeDevice) http.Handler {
	return NewServer(slog.Default(), d, printer.DefaultPrintOptions(), 2).Handler()
}

func pngBody(t *testing.T) []byte {
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, 8, 8))); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestPrint(t *testing.T) {
	d := &fakeDevice{state: printer.Ready}
	body := pngBody(t)

	req := httptest.NewRequest(http.MethodPost, "/print?copies=3", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/octet-stream")
	rec := httptest.NewRecorder()
	newTestServer(d).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d: %s", rec.Code, rec.Body)
	}
	if len(d.printed) != 1 || !bytes.Equal(d.printed[0], body) {
		t.Errorf("device didn't receive the image")
	}
	if d.copies != 3 {
		t.Errorf("got %d copies, want 3", d.copies)
	}
}

func TestPrintRejectsRequests(t *testing.T) {
	for _, test := range []struct {
		method, path, contentType string
		want                      int
	}{
		{http.MethodGet, "/print", "application/octet-stream", http.StatusMethodNotAllowed},
		{http.MethodPost, "/print", "application/json", http.StatusUnsupportedMediaType},
		{http.MethodPost, "/print?copies=none", "image/png", http.StatusBadRequest},
	} {
		t.Run(fmt.Sprintf("%s %s %s", test.method, test.path, test.contentType), func(t *testing.T) {
			d := &fakeDevice{state: printer.Ready}
			req := httptest.NewRequest(test.method, test.path, bytes.NewReader(pngBody(t)))
			req.Header.Set("Content-Type", test.contentType)
			rec := httptest.NewRecorder()
			newTestServer(d).ServeHTTP(rec, req)

			if rec.Code != test.want {
				t.Errorf("got status %d, want %d", rec.Code, test.want)
			}
			if len(d.printed) != 0 {
				t.Errorf("rejected request was printed")
			}
		})
	}
}

func TestPrintErrorStatus(t *testing.T) {
	for _, test := range []struct {
		err  error
		want int
	}{
		{&printer.Error{Kind: printer.Image, Err: imaging.ErrUnsupported}, http.StatusBadRequest},
		{&printer.Error{Kind: printer.Image, Err: fmt.Errorf("%w: width", imaging.ErrTooLarge)}, http.StatusRequestEntityTooLarge},
		{&printer.Error{Kind: printer.Connection, Err: printer.ErrNotReady}, http.StatusServiceUnavailable},
		{&printer.Error{Kind: printer.Print, Attempts: 3, Err: errors.New("write failed")}, http.StatusBadGateway},
		{errors.New("unexpected"), http.StatusInternalServerError},
	} {
		t.Run(test.err.Error(), func(t *testing.T) {
			d := &fakeDevice{state: printer.Ready, printErr: test.err}
			req := httptest.NewRequest(http.MethodPost, "/print", bytes.NewReader(pngBody(t)))
			req.Header.Set("Content-Type", "image/png")
			rec := httptest.NewRecorder()
			newTestServer(d).ServeHTTP(rec, req)

			if rec.Code != test.want {
				t.Errorf("got status %d, want %d", rec.Code, test.want)
			}
			var e model.ErrorResponse
			if err := json.NewDecoder(rec.Body).Decode(&e); err != nil || e.Message == "" {
				t.Errorf("got %+v %v, want an error body", e, err)
			}
		})
	}
}

func TestBattery(t *testing.T) {
	d := &fakeDevice{state: printer.Ready, battery: response.Battery{Level: 75, Charging: true}}
	rec := httptest.NewRecorder()
	newTestServer(d).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/battery", nil))

	var b model.BatteryResponse
	if err := json.NewDecoder(rec.Body).Decode(&b); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusOK || b.Level != 75 || !b.Charging {
		t.Errorf("got %d %+v", rec.Code, b)
	}
}

func TestBatteryNotConnected(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestServer(&fakeDevice{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/battery", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("got status %d, want 503", rec.Code)
	}
}

func TestInfo(t *testing.T) {
	d := &fakeDevice{
		state:  printer.Ready,
		config: response.Config{Resolution: 203, FirmwareVersion: response.Version{Major: 1, Minor: 4, Patch: 2}},
	}
	rec := httptest.NewRecorder()
	newTestServer(d).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/info", nil))

	var info model.DeviceInfoResponse
	if err := json.NewDecoder(rec.Body).Decode(&info); err != nil {
		t.Fatal(err)
	}
	if info.State != "ready" || info.Resolution != 203 || info.FirmwareVersion != "1.4.2" {
		t.Errorf("got %+v", info)
	}

	rec = httptest.NewRecorder()
	newTestServer(&fakeDevice{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/info", nil))
	info = model.DeviceInfoResponse{}
	json.NewDecoder(rec.Body).Decode(&info)
	if info.State != "idle" || info.FirmwareVersion != "" {
		t.Errorf("got %+v for an idle printer", info)
	}
}
