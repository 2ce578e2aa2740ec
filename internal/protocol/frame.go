// Package protocol implements the line-oriented wire format spoken on
// the duplex connection: "<verb> <id> <payload>" outbound and
// "<id> <state> <payload>" inbound. Frames are decoded once at this
// boundary; no other component parses raw strings.
package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// State tags an inbound frame.
type State string

const (
	// StateData carries a payload snapshot; more frames may follow.
	StateData State = "A"
	// StateContinue carries a partial chunk; more frames follow.
	StateContinue State = "C"
	// StateError terminates the subscription with a server error.
	StateError State = "E"
	// StateEnd marks the subscription as unsubscribed; no further
	// payloads follow.
	StateEnd State = "D"
)

// protocolVersion is the version slot of the connect handshake.
const protocolVersion = 31

// Frame is one decoded inbound protocol message.
type Frame struct {
	ID      uint64
	State   State
	Payload []byte
}

// HasPayload reports whether the frame carries data bytes.
func (f Frame) HasPayload() bool { return len(f.Payload) > 0 }

// connectedMarker is the server's reply to a successful handshake.
var connectedMarker = []byte("connected")

// IsConnected reports whether the raw message is the handshake
// confirmation, which carries no subscription id.
func IsConnected(msg []byte) bool {
	return bytes.HasPrefix(bytes.TrimSpace(msg), connectedMarker)
}

// ParseInbound decodes "<id> <state> <payload>". The payload may be
// empty for control frames.
func ParseInbound(msg []byte) (Frame, error) {
	parts := bytes.SplitN(msg, []byte(" "), 3)
	if len(parts) < 2 {
		return Frame{}, fmt.Errorf("ParseInbound: malformed frame %q", msg)
	}

	id, err := strconv.ParseUint(string(parts[0]), 10, 64)
	if err != nil {
		return Frame{}, fmt.Errorf("ParseInbound: non-numeric id in %q", msg)
	}

	state := State(parts[1])
	switch state {
	case StateData, StateContinue, StateError, StateEnd:
	default:
		return Frame{}, fmt.Errorf("ParseInbound: unknown state %q in %q", parts[1], msg)
	}

	f := Frame{ID: id, State: state}
	if len(parts) == 3 {
		f.Payload = parts[2]
	}
	return f, nil
}

// ConnectMeta is the metadata sent with the connect handshake.
type ConnectMeta struct {
	Locale          string `json:"locale"`
	PlatformID      string `json:"platformId"`
	PlatformVersion string `json:"platformVersion"`
	ClientID        string `json:"clientId"`
	ClientVersion   string `json:"clientVersion"`
}

// DefaultConnectMeta mirrors the web client identification the server
// accepts.
func DefaultConnectMeta(locale string) ConnectMeta {
	return ConnectMeta{
		Locale:          locale,
		PlatformID:      "webtrading",
		PlatformVersion: "chrome - 120.0.0",
		ClientID:        "app.traderepublic.com",
		ClientVersion:   "3.174.0",
	}
}

// EncodeConnect builds the "connect <version> <json>" handshake frame.
func EncodeConnect(meta ConnectMeta) ([]byte, error) {
	body, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("EncodeConnect: %w", err)
	}
	return []byte(fmt.Sprintf("connect %d %s", protocolVersion, body)), nil
}

// EncodeSub builds the "sub <id> <json>" subscribe frame.
func EncodeSub(id uint64, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("EncodeSub: %w", err)
	}
	return []byte(fmt.Sprintf("sub %d %s", id, body)), nil
}

// EncodeUnsub builds the "unsub <id>" frame.
func EncodeUnsub(id uint64) []byte {
	return []byte("unsub " + strconv.FormatUint(id, 10))
}

// ProtocolError is a server-reported error frame on one subscription.
// It is fatal to that subscription only.
type ProtocolError struct {
	Code    string
	Message string
}

func (e *ProtocolError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("protocol: %s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("protocol: %s", e.Code)
}

type errorPayload struct {
	Errors []struct {
		ErrorCode    string `json:"errorCode"`
		ErrorMessage string `json:"errorMessage"`
	} `json:"errors"`
}

// ParseError extracts code and message from an E-frame payload,
// falling back to the raw payload text when the shape is foreign.
func ParseError(payload []byte) *ProtocolError {
	var ep errorPayload
	if err := json.Unmarshal(payload, &ep); err == nil && len(ep.Errors) > 0 {
		return &ProtocolError{
			Code:    ep.Errors[0].ErrorCode,
			Message: ep.Errors[0].ErrorMessage,
		}
	}
	return &ProtocolError{Code: "UNKNOWN", Message: string(bytes.TrimSpace(payload))}
}
