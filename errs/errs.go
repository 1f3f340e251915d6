// Package errs defines the failure taxonomy shared by every component of the
// library. Each failure source maps to exactly one Kind, so callers branch on
// classification instead of matching message text.
package errs

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"strconv"

	"github.com/gorilla/websocket"
)

// Kind identifies the failure category of an Error.
type Kind uint8

const (
	// Transport failures.
	KindNetwork      Kind = iota + 1 // dial or handshake failure
	KindHeader                       // TLS or header construction failure
	KindIO                           // read/write failure on an open connection
	KindSocket                       // wire-level websocket failure, including close frames
	KindNotConnected                 // operation requires a live connection

	// Encoding failures.
	KindNumber // malformed numeric value
	KindURL    // URL construction failure
	KindJSON   // JSON (de)serialization failure
	KindQuery  // query-string encoding failure
	KindUTF8   // malformed UTF-8 payload
	KindClock  // system clock failure

	// KindDelivery means a decoded event could not be handed to the consumer.
	KindDelivery

	// KindVenue is a structured error reported by the exchange itself.
	KindVenue

	// Domain validation failures.
	KindListenKey
	KindSymbol
	KindOrder
	KindPrice
	KindPeriod
	KindUnauthorized
	KindInternal
	KindUnavailable

	// KindOther covers situations not otherwise classified.
	KindOther
)

var kindNames = map[Kind]string{
	KindNetwork:      "network",
	KindHeader:       "header",
	KindIO:           "io",
	KindSocket:       "socket",
	KindNotConnected: "not_connected",
	KindNumber:       "number",
	KindURL:          "url",
	KindJSON:         "json",
	KindQuery:        "query",
	KindUTF8:         "utf8",
	KindClock:        "clock",
	KindDelivery:     "delivery",
	KindVenue:        "venue",
	KindListenKey:    "listen_key",
	KindSymbol:       "symbol",
	KindOrder:        "order",
	KindPrice:        "price",
	KindPeriod:       "period",
	KindUnauthorized: "unauthorized",
	KindInternal:     "internal",
	KindUnavailable:  "unavailable",
	KindOther:        "other",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// Error is the single error type surfaced by the library. The wrapped cause,
// when present, is reachable through Unwrap, so no information is lost by the
// classification.
type Error struct {
	Kind    Kind
	Message string
	Venue   *VenueError // set when Kind is KindVenue
	Raw     []byte      // original payload, kept for frame parse failures
	cause   error
}

func (e *Error) Error() string {
	if e.Kind == KindVenue && e.Venue != nil {
		return e.Venue.Error()
	}
	if e.Message != "" {
		return e.Message
	}
	if e.cause != nil {
		return e.cause.Error()
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error { return e.cause }

// Is reports whether err carries a taxonomy error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

func wrap(kind Kind, err error) *Error { return &Error{Kind: kind, cause: err} }

// Transport constructors.

func Network(err error) *Error { return wrap(KindNetwork, err) }
func Header(err error) *Error  { return wrap(KindHeader, err) }
func IO(err error) *Error      { return wrap(KindIO, err) }
func Socket(err error) *Error  { return wrap(KindSocket, err) }

// NotConnected reports an operation attempted without a live handle. The
// handle being optional gives every such operation exactly this one failure
// mode for the disconnected state.
func NotConnected(op string) *Error {
	return &Error{Kind: KindNotConnected, Message: fmt.Sprintf("%s: not connected", op)}
}

// Encoding constructors.

func Number(err error) *Error { return wrap(KindNumber, err) }
func URL(err error) *Error    { return wrap(KindURL, err) }
func JSON(err error) *Error   { return wrap(KindJSON, err) }
func Query(err error) *Error  { return wrap(KindQuery, err) }
func UTF8(err error) *Error   { return wrap(KindUTF8, err) }
func Clock(err error) *Error  { return wrap(KindClock, err) }

// Parse reports an inbound frame that matched neither the domain-event shape
// nor the acknowledgement shape. The raw payload is retained for diagnosis.
func Parse(raw []byte, cause error) *Error {
	return &Error{
		Kind:    KindJSON,
		Message: fmt.Sprintf("frame parse failed: %s", raw),
		Raw:     append([]byte(nil), raw...),
		cause:   cause,
	}
}

// Delivery reports a failure to hand a decoded event to the consumer channel.
func Delivery(msg string) *Error { return &Error{Kind: KindDelivery, Message: msg} }

// Venue wraps a structured error reported by the exchange.
func Venue(v *VenueError) *Error { return &Error{Kind: KindVenue, Venue: v, cause: v} }

// Domain validation constructors.

func InvalidListenKey(key string) *Error {
	return &Error{Kind: KindListenKey, Message: "invalid listen key: " + key}
}

func UnknownSymbol(symbol string) *Error {
	return &Error{Kind: KindSymbol, Message: "unknown symbol " + symbol}
}

func InvalidOrder(msg string) *Error { return &Error{Kind: KindOrder, Message: msg} }

func InvalidPrice() *Error { return &Error{Kind: KindPrice, Message: "invalid price"} }

func InvalidPeriod(period string) *Error {
	return &Error{Kind: KindPeriod, Message: "invalid period " + period}
}

func Unauthorized() *Error { return &Error{Kind: KindUnauthorized, Message: "unauthorized"} }

func Internal() *Error { return &Error{Kind: KindInternal, Message: "internal server error"} }

func Unavailable() *Error { return &Error{Kind: KindUnavailable, Message: "service unavailable"} }

// New returns a catch-all error for situations without a dedicated kind.
func New(msg string) *Error { return &Error{Kind: KindOther, Message: msg} }

// Newf is New with formatting.
func Newf(format string, args ...interface{}) *Error {
	return &Error{Kind: KindOther, Message: fmt.Sprintf(format, args...)}
}

// From classifies an arbitrary error into the taxonomy. Already-classified
// errors pass through unchanged; each known source type maps to exactly one
// kind, and the original error stays reachable through Unwrap.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		return Socket(err)
	}
	if errors.Is(err, websocket.ErrBadHandshake) {
		return Network(err)
	}
	var numErr *strconv.NumError
	if errors.As(err, &numErr) {
		return Number(err)
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return URL(err)
	}
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return JSON(err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return Network(err)
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.ErrClosedPipe) {
		return IO(err)
	}
	return wrap(KindOther, err)
}
