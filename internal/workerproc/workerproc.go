package workerproc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"cvbot-backend/internal/queue"
)

// MessageMeta captures details useful for logging and diagnostics.
type MessageMeta struct {
	BodyLen int
	BodySHA string
}

// ComputeMeta returns the body length and SHA-256 hash.
func ComputeMeta(body string) MessageMeta {
	if body == "" {
		return MessageMeta{BodyLen: 0, BodySHA: ""}
	}
	sum := sha256.Sum256([]byte(body))
	return MessageMeta{BodyLen: len(body), BodySHA: hex.EncodeToString(sum[:])}
}

// ErrEmptyBody indicates an empty queue payload.
type ErrEmptyBody struct {
	Meta MessageMeta
}

func (e ErrEmptyBody) Error() string { return "empty message body" }

// ErrDecode indicates a JSON decode failure.
type ErrDecode struct {
	Meta MessageMeta
	Err  error
}

func (e ErrDecode) Error() string {
	if e.Err == nil {
		return "decode message"
	}
	return "decode message: " + e.Err.Error()
}

// ErrMissingSender indicates an event without a user to answer.
type ErrMissingSender struct {
	Meta      MessageMeta
	RequestID string
}

func (e ErrMissingSender) Error() string { return "missing event sender" }

// ErrUnsupportedVersion indicates a payload written by a newer build.
type ErrUnsupportedVersion struct {
	Version int
}

func (e ErrUnsupportedVersion) Error() string { return "unsupported message version" }

// EventHandler consumes one chat event. The conversation machine never
// fails an event; it answers the user instead.
type EventHandler = queue.EventHandler

// ErrNotConfigured is returned when no handler is wired.
var ErrNotConfigured = errors.New("event handler not configured")

// ParseMessage validates and decodes the queue payload.
func ParseMessage(body string) (queue.Message, MessageMeta, error) {
	meta := ComputeMeta(body)
	if strings.TrimSpace(body) == "" {
		return queue.Message{}, meta, ErrEmptyBody{Meta: meta}
	}

	msg, err := queue.DecodeMessage([]byte(body))
	if err != nil {
		return queue.Message{}, meta, ErrDecode{Meta: meta, Err: err}
	}
	if msg.Version > queue.CurrentVersion {
		return msg, meta, ErrUnsupportedVersion{Version: msg.Version}
	}
	if strings.TrimSpace(msg.Event.From) == "" {
		return msg, meta, ErrMissingSender{Meta: meta, RequestID: msg.RequestID}
	}
	return msg, meta, nil
}

type parsedMessageKey struct{}

// WithParsedMessage stores a decoded message in the context for reuse.
func WithParsedMessage(ctx context.Context, msg queue.Message) context.Context {
	return context.WithValue(ctx, parsedMessageKey{}, msg)
}

func parsedMessageFromContext(ctx context.Context) (queue.Message, bool) {
	if ctx == nil {
		return queue.Message{}, false
	}
	msg, ok := ctx.Value(parsedMessageKey{}).(queue.Message)
	return msg, ok
}

// HandleMessage parses, validates, and hands the event to h.
func HandleMessage(ctx context.Context, h EventHandler, body string) error {
	if h == nil {
		return ErrNotConfigured
	}

	msg, ok := parsedMessageFromContext(ctx)
	if !ok {
		var err error
		msg, _, err = ParseMessage(body)
		if err != nil {
			return err
		}
	}

	if strings.TrimSpace(msg.Event.From) == "" {
		return ErrMissingSender{Meta: ComputeMeta(body), RequestID: msg.RequestID}
	}

	h.Handle(ctx, msg.Event)
	return nil
}

// Unrecoverable reports whether err means the message can never succeed
// and should be deleted rather than retried.
func Unrecoverable(err error) bool {
	var (
		empty   ErrEmptyBody
		decode  ErrDecode
		sender  ErrMissingSender
		version ErrUnsupportedVersion
	)
	return errors.As(err, &empty) || errors.As(err, &decode) || errors.As(err, &sender) || errors.As(err, &version)
}
