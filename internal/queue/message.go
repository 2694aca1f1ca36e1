package queue

import (
	"encoding/json"
	"time"

	"cvbot-backend/internal/transport"
)

// CurrentVersion is the payload version written by this build.
const CurrentVersion = 1

// Message carries one inbound chat event to the worker.
type Message struct {
	Event      transport.Event `json:"event"`
	RequestID  string          `json:"requestId,omitempty"`
	EnqueuedAt string          `json:"enqueuedAt"`
	Version    int             `json:"version"`
}

// NewMessage wraps ev for enqueueing.
func NewMessage(ev transport.Event, requestID string, now time.Time) Message {
	return Message{
		Event:      ev,
		RequestID:  requestID,
		EnqueuedAt: now.UTC().Format(time.RFC3339),
		Version:    CurrentVersion,
	}
}

// EncodeMessage returns the JSON representation of a message.
func EncodeMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}

// DecodeMessage parses a JSON payload into a Message.
func DecodeMessage(payload []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, err
	}
	return msg, nil
}
