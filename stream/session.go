// Package stream implements the persistent websocket session for a venue's
// streaming trade and market-data channel: connection management, the frame
// event loop, and the typed trading commands sent over the same socket.
package stream

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"tradeflow/errs"
	"tradeflow/logger"
)

// DefaultEndpoint is the venue's production websocket base URL.
const DefaultEndpoint = "wss://ws.okx.com:8443/ws/v5"

// FrameDecoder is the bound a domain-event type must satisfy: it decodes
// itself from a text frame's byte payload and rejects payloads of a
// different shape, so control responses can fall through to acknowledgement
// handling.
type FrameDecoder[T any] interface {
	*T
	DecodeFrame(data []byte) error
}

// Config is the immutable endpoint configuration of a session.
type Config struct {
	// Endpoint is the websocket base URL that Connect joins its relative
	// endpoint onto.
	Endpoint string
	// HandshakeTimeout bounds the dial. Zero means the dialer default.
	HandshakeTimeout time.Duration
	// Limiter, when set, paces outbound writes. The limiter is owned by the
	// caller; the session only waits on it.
	Limiter *rate.Limiter
}

// DefaultConfig returns the production endpoint configuration.
func DefaultConfig() Config {
	return Config{
		Endpoint:         DefaultEndpoint,
		HandshakeTimeout: 10 * time.Second,
	}
}

// Session is one logical connection to the venue, generic over the decoded
// domain-event type. A nil handle means disconnected, and every operation
// that needs a live socket fails with exactly one not-connected error in
// that state. The session provides no internal locking: one reader and one
// writer at a time, or external synchronization.
type Session[T any, PT FrameDecoder[T]] struct {
	conn   *websocket.Conn
	resp   *http.Response // handshake metadata of the current connection
	events chan<- T
	conf   Config
	log    *logger.Log
}

// NewSession returns a session with the default configuration, delivering
// decoded events to out.
func NewSession[T any, PT FrameDecoder[T]](out chan<- T) *Session[T, PT] {
	return NewSessionWithConfig[T, PT](out, DefaultConfig())
}

// NewSessionWithConfig returns a session with the provided configuration.
func NewSessionWithConfig[T any, PT FrameDecoder[T]](out chan<- T, conf Config) *Session[T, PT] {
	return &Session[T, PT]{
		events: out,
		conf:   conf,
		log:    logger.GetLogger(),
	}
}

// Connected reports whether a live connection handle is present.
func (s *Session[T, PT]) Connected() bool {
	return s.conn != nil
}

// Handshake returns the HTTP response of the current connection's handshake,
// or nil when disconnected.
func (s *Session[T, PT]) Handshake() *http.Response {
	return s.resp
}

// Connect dials endpoint relative to the configured base URL and stores the
// resulting handle, replacing (and closing) any previous one. On handshake
// failure the session stays disconnected.
func (s *Session[T, PT]) Connect(ctx context.Context, endpoint string) error {
	wss := strings.TrimSuffix(s.conf.Endpoint, "/") + "/" + strings.TrimPrefix(endpoint, "/")

	dialer := websocket.Dialer{HandshakeTimeout: s.conf.HandshakeTimeout}
	conn, resp, err := dialer.DialContext(ctx, wss, nil)
	if err != nil {
		return errs.Network(fmt.Errorf("handshake with %s failed: %w", wss, err))
	}

	if s.conn != nil {
		s.conn.Close()
	}
	s.conn = conn
	s.resp = resp
	s.log.WithComponent("stream").WithFields(logger.Fields{"url": wss}).Info("connected")
	return nil
}

// SendRaw writes one text frame. There is no internal buffering or retry;
// the caller serializes calls.
func (s *Session[T, PT]) SendRaw(ctx context.Context, payload string) error {
	if s.conn == nil {
		return errs.NotConnected("send")
	}
	if s.conf.Limiter != nil {
		if err := s.conf.Limiter.Wait(ctx); err != nil {
			return errs.From(err)
		}
	}
	if err := s.conn.WriteMessage(websocket.TextMessage, []byte(payload)); err != nil {
		return errs.Socket(err)
	}
	logger.IncrementFrameWritten(len(payload))
	return nil
}

// Disconnect sends a close frame and clears the handle. It is not
// idempotent: a second call fails with a not-connected error.
func (s *Session[T, PT]) Disconnect() error {
	if s.conn == nil {
		return errs.NotConnected("disconnect")
	}

	writeErr := s.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	closeErr := s.conn.Close()
	s.conn = nil
	s.resp = nil
	s.log.WithComponent("stream").Info("disconnected")

	if writeErr != nil {
		return errs.Socket(writeErr)
	}
	if closeErr != nil {
		return errs.IO(closeErr)
	}
	return nil
}
