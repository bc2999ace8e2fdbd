// ABOUTME: Wire envelope encoding/decoding for the websocket command protocol.
// ABOUTME: Defines the {cmd, status, params, request_id} message format and builders.

package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Status values carried on response envelopes.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// ErrMissingCmd indicates a decodable message without a cmd field.
var ErrMissingCmd = errors.New("missing cmd field")

// Envelope is the structured message unit exchanged over a session channel.
//
// Four shapes share this type:
//   - inbound command:          {cmd, params}
//   - server-initiated request: {cmd, params, request_id}
//   - client reply:             {cmd, status, params, request_id}
//   - server response:          {cmd, status, params}
type Envelope struct {
	Cmd       string         `json:"cmd"`
	Status    string         `json:"status,omitempty"`
	Params    map[string]any `json:"params"`
	RequestID string         `json:"request_id,omitempty"`
}

// IsReply reports whether the envelope is a client reply to a
// server-initiated request (both status and request_id present).
func (e *Envelope) IsReply() bool {
	return e.RequestID != "" && e.Status != ""
}

// Decode parses a raw wire message into an Envelope.
// Returns ErrMissingCmd when the message is valid JSON but carries no cmd;
// any other error means the payload was not decodable at all.
func Decode(raw []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decoding envelope: %w", err)
	}
	if env.Cmd == "" {
		return nil, ErrMissingCmd
	}
	if env.Params == nil {
		env.Params = map[string]any{}
	}
	return &env, nil
}

// Encode serializes an envelope for the wire. The params field is always
// emitted, as an empty object when unset; the caller's envelope is not
// modified.
func Encode(env *Envelope) ([]byte, error) {
	e := *env
	if e.Params == nil {
		e.Params = map[string]any{}
	}
	data, err := json.Marshal(&e)
	if err != nil {
		return nil, fmt.Errorf("encoding envelope: %w", err)
	}
	return data, nil
}

// NewRequest builds a server-initiated request envelope carrying a
// correlation id the client must echo back in its reply.
func NewRequest(cmd string, params map[string]any, requestID string) *Envelope {
	if params == nil {
		params = map[string]any{}
	}
	return &Envelope{Cmd: cmd, Params: params, RequestID: requestID}
}

// NewResponse builds a server response to an inbound command.
func NewResponse(cmd, status string, params map[string]any) *Envelope {
	if params == nil {
		params = map[string]any{}
	}
	return &Envelope{Cmd: cmd, Status: status, Params: params}
}

// NewErrorResponse builds an error response with a human-readable reason.
func NewErrorResponse(cmd, reason string) *Envelope {
	return &Envelope{
		Cmd:    cmd,
		Status: StatusError,
		Params: map[string]any{"reason": reason},
	}
}
