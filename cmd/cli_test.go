package cmd

import (
	"errors"
	"fmt"
	"testing"

	"tomgalvin.uk/p31print/internal/printer"
	"tomgalvin.uk/p31print/internal/transport"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, ExitOK},
		{errors.New("usage"), ExitOther},
		{&printer.Error{Kind: printer.Connection, Err: transport.ErrNoDevice}, ExitConnection},
		{&printer.Error{Kind: printer.Image, Err: errors.New("bad png")}, ExitImage},
		{&printer.Error{Kind: printer.Print, Attempts: 3, Err: errors.New("write")}, ExitPrint},
		{&printer.Error{Kind: printer.ProtocolErr, Err: printer.ErrNoReply}, ExitProtocol},
		{fmt.Errorf("wrapped: %w", &printer.Error{Kind: printer.Print}), ExitPrint},
	}

	for i, tt := range tests {
		t.Run(fmt.Sprintf("case %d", i), func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode(%v): got %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestAppCommands(t *testing.T) {
	app := newApp()
	for _, name := range []string{"scan", "services", "print", "test", "coverage", "text", "barcode", "qr", "status", "raw", "selftest", "feed", "forget", "serve"} {
		if app.Command(name) == nil {
			t.Errorf("command %q missing", name)
		}
	}
}
