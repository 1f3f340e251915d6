package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"tradeflow/errs"
)

// Acknowledgement is the venue's control-plane response to a previously sent
// request: subscription confirmations and order operation results. It is
// distinct from a domain event and is never forwarded to the consumer.
type Acknowledgement struct {
	ID      string           `json:"id,omitempty"`
	Op      string           `json:"op,omitempty"`
	Event   string           `json:"event,omitempty"`
	Arg     *SubscriptionArg `json:"arg,omitempty"`
	ConnID  string           `json:"connId,omitempty"`
	Code    string           `json:"code,omitempty"`
	Msg     string           `json:"msg,omitempty"`
	Data    json.RawMessage  `json:"data,omitempty"`
	InTime  string           `json:"inTime,omitempty"`
	OutTime string           `json:"outTime,omitempty"`
}

// DecodeAcknowledgement strictly decodes an acknowledgement payload. Unknown
// keys fail the decode on purpose: a payload matching neither the event shape
// nor this one must surface as a parse error, not be swallowed here.
func DecodeAcknowledgement(data []byte) (*Acknowledgement, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var ack Acknowledgement
	if err := dec.Decode(&ack); err != nil {
		return nil, err
	}
	if ack.ID == "" && ack.Op == "" && ack.Event == "" {
		return nil, fmt.Errorf("acknowledgement missing id, op and event")
	}
	return &ack, nil
}

// Err returns the venue-reported error carried by the acknowledgement, or nil
// when the request succeeded.
func (a *Acknowledgement) Err() error {
	if a.Code == "" || a.Code == "0" {
		return nil
	}
	code, err := strconv.Atoi(a.Code)
	if err != nil {
		return errs.Number(err)
	}
	return errs.Venue(&errs.VenueError{Code: code, Msg: a.Msg})
}
