package protocol

import (
	"encoding/json"
)

// MessageType identifies a protocol message.
type MessageType string

// HostClientID is the client id the session host answers to; it holds
// control whenever no viewer does.
const HostClientID = "host"

// Message types for the veonim session protocol.
const (
	MessageHello   MessageType = "hello"
	MessageWelcome MessageType = "welcome"
	MessageRedraw  MessageType = "redraw"
	MessageInput   MessageType = "input"
	MessageResize  MessageType = "resize"
	MessageResync  MessageType = "resync"
	MessageResolve MessageType = "resolve"
	MessageColor   MessageType = "color"
	MessageControl MessageType = "control"
	MessageError   MessageType = "error"
)

// Envelope wraps all protocol messages. Seq orders redraw envelopes
// within a session; a viewer that observes a gap asks for a resync.
type Envelope struct {
	Type      MessageType     `json:"type"`
	SessionID string          `json:"session_id,omitempty"`
	Seq       uint64          `json:"seq,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// NewEnvelope constructs an envelope with a marshaled payload.
func NewEnvelope(msgType MessageType, sessionID string, seq uint64, payload any) (Envelope, error) {
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return Envelope{}, err
		}
		raw = data
	}
	return Envelope{Type: msgType, SessionID: sessionID, Seq: seq, Payload: raw}, nil
}

// DecodePayload unmarshals the payload into the provided struct.
func (e Envelope) DecodePayload(out any) error {
	if len(e.Payload) == 0 {
		return nil
	}
	return json.Unmarshal(e.Payload, out)
}

// HelloPayload starts a connection handshake. Token carries the share
// secret for viewer connections; Title is set by hosts only.
type HelloPayload struct {
	ClientID     string `json:"client_id,omitempty"`
	Token        string `json:"token,omitempty"`
	Cols         int    `json:"cols"`
	Rows         int    `json:"rows"`
	WantsControl bool   `json:"wants_control,omitempty"`
	LastSeq      uint64 `json:"last_seq,omitempty"`
	Title        string `json:"title,omitempty"`
}

// WelcomePayload responds to a hello.
type WelcomePayload struct {
	GrantedControl bool   `json:"granted_control"`
	Cols           int    `json:"cols"`
	Rows           int    `json:"rows"`
	Title          string `json:"title,omitempty"`
}

// RedrawPayload delivers one redraw batch, encoded as the protocol's
// nested event lists.
type RedrawPayload struct {
	Batch json.RawMessage `json:"batch"`
}

// InputPayload delivers keys in editor notation from the controller.
type InputPayload struct {
	Keys string `json:"keys"`
}

// ResizePayload requests or announces a grid size.
type ResizePayload struct {
	Cols int `json:"cols"`
	Rows int `json:"rows"`
}

// ResolvePayload asks the host for highlight-group colors.
type ResolvePayload struct {
	ID int `json:"id"`
}

// ColorPayload answers a resolve request. Missing colors are -1.
type ColorPayload struct {
	ID         int `json:"id"`
	Foreground int `json:"foreground"`
	Background int `json:"background"`
}

// ControlPayload announces the current controller.
type ControlPayload struct {
	HolderClientID string `json:"holder_client_id"`
}

// ErrorPayload communicates error details.
type ErrorPayload struct {
	Message string `json:"message"`
}
