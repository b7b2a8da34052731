package ws

import (
	"coursehub/internal/constants"
	"coursehub/internal/models"
)

// Operation codes for WebSocket messages
type OpCode int

// ProtocolVersion is the exact server/client WS protocol version.
// Bump this only for breaking wire-contract changes.
const ProtocolVersion = 1

const (
	// DISPATCH - Events and commands with type field
	OpDispatch OpCode = 0

	// Lifecycle ops (Server -> Client)
	OpHello          OpCode = 1 // Sent on connection, carries the session id
	OpInvalidSession OpCode = 3 // Session closed by the server
)

// Event types (Server -> Client via DISPATCH)
const (
	EventMessageCreate         = "MESSAGE_CREATE"
	EventMessageHistoryCleared = "MESSAGE_HISTORY_CLEARED"
	EventError                 = "ERROR"
)

// Command types (Client -> Server via DISPATCH)
const (
	CmdMessageSend = "MESSAGE_SEND"
)

// Error codes sent in EventError payloads.
const (
	ErrCodeRateLimited    = constants.ErrCodeRateLimited
	ErrCodeMessageTooLong = constants.ErrCodeMessageTooLong
	ErrCodeInvalidRequest = constants.ErrCodeInvalidRequest
	ErrCodeInternal       = constants.ErrCodeInternal
)

type WSMessage struct {
	Op   OpCode      `json:"op"`
	Type string      `json:"t,omitempty"` // Event/command type (only for DISPATCH)
	Data interface{} `json:"d,omitempty"`
	Seq  *int64      `json:"s,omitempty"`
}

// Server -> Client payloads

type HelloPayload struct {
	ProtocolVersion int           `json:"protocol_version"`
	SessionID       string        `json:"session_id"`
	Sender          models.Sender `json:"sender"`
}

// MessageCreatePayload sent when a chat message is posted (via DISPATCH)
type MessageCreatePayload struct {
	ID        string        `json:"id"`
	Sender    models.Sender `json:"sender"`
	Message   string        `json:"message"`
	Timestamp string        `json:"timestamp"`
	Nonce     string        `json:"nonce,omitempty"` // Echo back for optimistic updates
}

type MessageHistoryClearedPayload struct {
	Deleted int64 `json:"deleted"`
}

// InvalidSessionPayload sent when session is invalid
type InvalidSessionPayload struct {
	Resumable bool `json:"resumable"`
}

// ErrorPayload sent when the server rejects a client action
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Nonce   string `json:"nonce,omitempty"`
}

// Client -> Server payloads (via DISPATCH)

// MessageSendPayload sent by client to send a message
type MessageSendPayload struct {
	Message string `json:"message"`
	Nonce   string `json:"nonce,omitempty"` // Client-generated ID for tracking
}
