package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"tomgalvin.uk/p31print/internal/imaging"
	"tomgalvin.uk/p31print/internal/model"
	"tomgalvin.uk/p31print/internal/printer"
	"tomgalvin.uk/p31print/internal/response"
)

// maxBodySize caps uploads; the image limits apply after this.
const maxBodySize = 32 << 20

// Device is the part of *printer.Printer the server uses.
type Device interface {
	PrintImage(ctx context.Context, src imaging.Source, opts printer.PrintOptions, maxRetries int) error
	Battery(ctx context.Context) (response.Battery, error)
	Config(ctx context.Context) (response.Config, error)
	State() printer.State
	Address() string
}

type Server struct {
	logger  *slog.Logger
	device  Device
	opts    printer.PrintOptions
	retries int
}

func NewServer(logger *slog.Logger, device Device, opts printer.PrintOptions, retries int) *Server {
	return &Server{
		logger:  logger,
		device:  device,
		opts:    opts,
		retries: retries,
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /print", s.handlePrint)
	mux.HandleFunc("GET /battery", s.handleBattery)
	mux.HandleFunc("GET /info", s.handleInfo)
	return mux
}

func (s *Server) handlePrint(w http.ResponseWriter, r *http.Request) {
	contentType := r.Header.Get("Content-Type")
	if contentType != "application/octet-stream" && !strings.HasPrefix(contentType, "image/") {
		http.Error(w, "Invalid content type", http.StatusUnsupportedMediaType)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusRequestEntityTooLarge)
		return
	}
	defer r.Body.Close()

	opts := s.opts
	if copies := r.URL.Query().Get("copies"); copies != "" {
		n, err := strconv.Atoi(copies)
		if err != nil || n < 1 {
			http.Error(w, "Invalid copies", http.StatusBadRequest)
			return
		}
		opts.Copies = n
	}

	s.logger.Info("Received print request", "size", len(body), "copies", opts.Copies)
	if err := s.device.PrintImage(r.Context(), imaging.Bytes(body), opts, s.retries); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleBattery(w http.ResponseWriter, r *http.Request) {
	b, err := s.device.Battery(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, model.FromBattery(b))
}

// handleInfo reports the link state, plus the printer's config when it
// answers.
func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	var cfg *response.Config
	if s.device.State() == printer.Ready {
		if c, err := s.device.Config(r.Context()); err == nil {
			cfg = &c
		} else {
			s.logger.Warn("Couldn't read printer config", "err", err)
		}
	}
	s.writeJSON(w, http.StatusOK, model.FromDeviceInfo(s.device.Address(), s.device.State().String(), cfg))
}

func statusFor(err error) int {
	switch printer.KindOf(err) {
	case printer.Image:
		if errors.Is(err, imaging.ErrTooLarge) {
			return http.StatusRequestEntityTooLarge
		}
		return http.StatusBadRequest
	case printer.Connection:
		return http.StatusServiceUnavailable
	case printer.Print, printer.ProtocolErr:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	s.logger.Error("Request failed", "status", status, "err", err)
	s.writeJSON(w, status, model.ErrorResponse{
		Kind:    printer.KindOf(err).String(),
		Message: err.Error(),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Couldn't write response", "err", fmt.Errorf("Couldn't encode %T:\n%w", v, err))
	}
}
