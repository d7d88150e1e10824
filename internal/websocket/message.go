package websocket

import (
	"encoding/json"

	"github.com/SAP-F-2025/training-assessment-service/internal/models"
)

type MessageType string

const (
	// Client -> Server
	MessageTypeSignal   MessageType = "signal"
	MessageTypeAnswer   MessageType = "answer"
	MessageTypeNext     MessageType = "next"
	MessageTypeBack     MessageType = "back"
	MessageTypeGoTo     MessageType = "goto"
	MessageTypeSubmit   MessageType = "submit"
	MessageTypeRetry    MessageType = "retry"
	MessageTypeSnapshot MessageType = "snapshot"
	MessageTypePing     MessageType = "ping"

	// Server -> Client
	MessageTypeConnected    MessageType = "connected"
	MessageTypeState        MessageType = "state"
	MessageTypeSignalResult MessageType = "signal_result"
	MessageTypeStep         MessageType = "step"
	MessageTypeResult       MessageType = "result"
	MessageTypeEvent        MessageType = "event"
	MessageTypeError        MessageType = "error"
	MessageTypePong         MessageType = "pong"
)

type Message struct {
	Type    MessageType `json:"type"`
	Payload any         `json:"payload,omitempty"`
}

// inbound defers payload decoding until the type is known.
type inbound struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type AnswerPayload struct {
	Index  *int          `json:"index"`
	Answer models.Answer `json:"answer"`
}

type GoToPayload struct {
	Index int `json:"index"`
}

type RetryPayload struct {
	Force bool `json:"force"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}
