package errs

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"testing"

	"github.com/gorilla/websocket"
)

func TestIsMatchesKind(t *testing.T) {
	err := NotConnected("send")
	if !Is(err, KindNotConnected) {
		t.Fatalf("expected not_connected kind, got %v", err)
	}
	if Is(err, KindNetwork) {
		t.Fatalf("kind should not match network")
	}
	wrapped := fmt.Errorf("outer: %w", err)
	if !Is(wrapped, KindNotConnected) {
		t.Fatalf("Is should see through wrapping: %v", wrapped)
	}
}

func TestFromClassification(t *testing.T) {
	var syntaxTarget struct{}
	jsonErr := json.Unmarshal([]byte("{"), &syntaxTarget)
	if jsonErr == nil {
		t.Fatal("expected json error")
	}
	_, numErr := strconv.Atoi("abc")

	cases := []struct {
		name string
		err  error
		kind Kind
	}{
		{"json", jsonErr, KindJSON},
		{"number", numErr, KindNumber},
		{"close frame", &websocket.CloseError{Code: websocket.CloseNormalClosure, Text: "bye"}, KindSocket},
		{"bad handshake", websocket.ErrBadHandshake, KindNetwork},
		{"unclassified", errors.New("boom"), KindOther},
	}
	for _, tc := range cases {
		got := From(tc.err)
		if got.Kind != tc.kind {
			t.Errorf("%s: got kind %v, want %v", tc.name, got.Kind, tc.kind)
		}
		if !errors.Is(got, tc.err) {
			t.Errorf("%s: cause not preserved", tc.name)
		}
	}
}

func TestFromPassesThroughClassified(t *testing.T) {
	orig := InvalidPrice()
	if got := From(orig); got != orig {
		t.Fatalf("classified error should pass through unchanged")
	}
}

func TestParseKeepsRawPayload(t *testing.T) {
	raw := []byte(`{"garbled"`)
	err := Parse(raw, errors.New("unexpected end"))
	if err.Kind != KindJSON {
		t.Fatalf("unexpected kind: %v", err.Kind)
	}
	if !bytes.Equal(err.Raw, raw) {
		t.Fatalf("raw payload not preserved: %q", err.Raw)
	}
}

func TestVenueErrorDecode(t *testing.T) {
	payload := []byte(`{"code":50011,"msg":"rate limit reached","ts":"1700000000000","detail":{"limit":20}}`)
	var ve VenueError
	if err := json.Unmarshal(payload, &ve); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ve.Code != 50011 || ve.Msg != "rate limit reached" {
		t.Fatalf("unexpected venue error: %+v", ve)
	}
	if _, ok := ve.Extra["ts"]; !ok {
		t.Fatalf("extra field ts dropped: %+v", ve.Extra)
	}
	if _, ok := ve.Extra["detail"]; !ok {
		t.Fatalf("extra field detail dropped: %+v", ve.Extra)
	}
}

func TestVenueErrorDecodeStringCode(t *testing.T) {
	var ve VenueError
	if err := json.Unmarshal([]byte(`{"code":"60012","msg":"invalid request"}`), &ve); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ve.Code != 60012 {
		t.Fatalf("unexpected code: %d", ve.Code)
	}
	if ve.Extra != nil {
		t.Fatalf("unexpected extra fields: %+v", ve.Extra)
	}
}

func TestVenueErrorRoundTrip(t *testing.T) {
	payload := []byte(`{"code":51000,"msg":"parameter error","connId":"abc123","data":[{"sCode":"51000"}]}`)
	var ve VenueError
	if err := json.Unmarshal(payload, &ve); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	encoded, err := json.Marshal(&ve)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var again VenueError
	if err := json.Unmarshal(encoded, &again); err != nil {
		t.Fatalf("second unmarshal: %v", err)
	}
	if again.Code != ve.Code || again.Msg != ve.Msg || !reflect.DeepEqual(again.Extra, ve.Extra) {
		t.Fatalf("round trip mismatch:\n%+v\n%+v", ve, again)
	}
}

func TestVenueErrorMessage(t *testing.T) {
	err := Venue(&VenueError{Code: 50113, Msg: "invalid sign"})
	if !Is(err, KindVenue) {
		t.Fatalf("expected venue kind")
	}
	if err.Error() != "code: 50113, msg: invalid sign" {
		t.Fatalf("unexpected message: %s", err.Error())
	}
	var ve *VenueError
	if !errors.As(err, &ve) || ve.Code != 50113 {
		t.Fatalf("venue error not reachable via errors.As")
	}
}
