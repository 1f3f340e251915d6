package errs

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// VenueError is a structured error reported by the exchange: a numeric code,
// a human-readable message, and whatever extra fields the venue attached.
// Unrecognized fields land in Extra verbatim instead of failing the decode,
// so new venue fields never break classification.
type VenueError struct {
	Code  int
	Msg   string
	Extra map[string]json.RawMessage
}

func (e *VenueError) Error() string {
	return fmt.Sprintf("code: %d, msg: %s", e.Code, e.Msg)
}

// UnmarshalJSON accepts codes encoded as JSON numbers or as quoted decimal
// strings; venues use both.
func (e *VenueError) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	if raw, ok := fields["code"]; ok {
		var n int
		if err := json.Unmarshal(raw, &n); err == nil {
			e.Code = n
		} else {
			var s string
			if err := json.Unmarshal(raw, &s); err != nil {
				return fmt.Errorf("venue error code: %w", err)
			}
			n, err := strconv.Atoi(s)
			if err != nil {
				return fmt.Errorf("venue error code: %w", err)
			}
			e.Code = n
		}
		delete(fields, "code")
	}
	if raw, ok := fields["msg"]; ok {
		if err := json.Unmarshal(raw, &e.Msg); err != nil {
			return fmt.Errorf("venue error msg: %w", err)
		}
		delete(fields, "msg")
	}
	if len(fields) > 0 {
		e.Extra = fields
	} else {
		e.Extra = nil
	}
	return nil
}

// MarshalJSON re-emits code and msg alongside the preserved extra fields.
func (e *VenueError) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(e.Extra)+2)
	for k, v := range e.Extra {
		out[k] = v
	}
	code, err := json.Marshal(e.Code)
	if err != nil {
		return nil, err
	}
	out["code"] = code
	msg, err := json.Marshal(e.Msg)
	if err != nil {
		return nil, err
	}
	out["msg"] = msg
	return json.Marshal(out)
}
