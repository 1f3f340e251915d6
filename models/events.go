package models

import (
	"encoding/json"
	"fmt"
)

// SubscriptionArg names a push channel, optionally narrowed to an instrument.
type SubscriptionArg struct {
	Channel  string `json:"channel"`
	InstType string `json:"instType,omitempty"`
	InstID   string `json:"instId,omitempty"`
}

// MarketDataEvent is a decoded push message: a channel identifier plus one or
// more data items left as raw JSON for the application to interpret. It is
// the reference domain-event type for stream.Session; applications with their
// own event shapes implement DecodeFrame the same way.
type MarketDataEvent struct {
	Arg    SubscriptionArg   `json:"arg"`
	Action string            `json:"action,omitempty"`
	Data   []json.RawMessage `json:"data"`
}

// DecodeFrame decodes a text frame's payload. Payloads without a channel tag
// or data items are rejected so control responses fall through to
// acknowledgement handling.
func (e *MarketDataEvent) DecodeFrame(data []byte) error {
	var decoded MarketDataEvent
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	if decoded.Arg.Channel == "" || len(decoded.Data) == 0 {
		return fmt.Errorf("not a push payload")
	}
	*e = decoded
	return nil
}
