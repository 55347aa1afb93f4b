// Package capture is the receiving end of the external capture
// collaborator's feed: a websocket endpoint the page hook pushes its
// intercepted traffic records and control envelopes into. Nothing here
// interprets payloads; records go straight to the dispatcher callbacks.
package capture

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// Transport kinds a capture record may carry.
const (
	KindSocket   = "socket"   // websocket message
	KindResponse = "response" // HTTP response body
	KindRequest  = "request"  // HTTP request body
	KindPush     = "push"     // server-push event
)

// EncodingBase64 marks a record whose data is a base64 string wrapping a
// binary payload. The dispatcher decodes it before routing.
const EncodingBase64 = "base64"

// Record is one intercepted traffic record. Data holds the kind-specific
// native payload; a binary payload arrives base64-inside-JSON-string with
// Encoding set so the original bytes can be recovered downstream.
type Record struct {
	Kind     string          `json:"kind"`
	Origin   string          `json:"origin"`
	Platform string          `json:"platform,omitempty"`
	Encoding string          `json:"encoding,omitempty"`
	Data     json.RawMessage `json:"data"`
}

// RecordFunc consumes capture records; EnvelopeFunc consumes raw control
// envelopes. Both must tolerate arbitrary input.
type (
	RecordFunc   func(Record)
	EnvelopeFunc func(raw []byte)
)

// Server accepts capture-feed connections.
type Server struct {
	addr       string
	logger     *slog.Logger
	onRecord   RecordFunc
	onEnvelope EnvelopeFunc
	httpServer *http.Server
	upgrader   websocket.Upgrader
}

// New creates a capture server for the given listen address.
func New(addr string, logger *slog.Logger, onRecord RecordFunc, onEnvelope EnvelopeFunc) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		addr:       addr,
		logger:     logger.With(slog.String("component", "capture")),
		onRecord:   onRecord,
		onEnvelope: onEnvelope,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The page hook connects from arbitrary origins.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/feed", s.handleFeed)
	mux.HandleFunc("/control", s.handleControl)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("capture feed listening", slog.String("addr", s.addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("capture server: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("feed upgrade failed", slog.Any("err", err))
		return
	}
	defer conn.Close()
	s.logger.Info("capture feed connected", slog.String("remote", conn.RemoteAddr().String()))

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			s.logger.Info("capture feed closed", slog.Any("err", err))
			return
		}
		var rec Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			s.logger.Debug("unreadable capture record", slog.Any("err", err))
			continue
		}
		if s.onRecord != nil {
			s.onRecord(rec)
		}
	}
}

func (s *Server) handleControl(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("control upgrade failed", slog.Any("err", err))
		return
	}
	defer conn.Close()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if s.onEnvelope != nil {
			s.onEnvelope(raw)
		}
	}
}
