package transport

import (
	"context"
	"errors"

	"cvbot-backend/internal/shared/telemetry"
)

// ErrNoMediaResolver is returned by LogSender for attachment lookups.
var ErrNoMediaResolver = errors.New("no media resolver configured")

// LogSender writes outbound messages to the log instead of a chat platform.
// Used in dev when no transport credentials are set.
type LogSender struct{}

func (LogSender) SendText(_ context.Context, to, text string) error {
	telemetry.Info("outbound.text", map[string]any{"to": to, "text": text})
	return nil
}

func (LogSender) SendButtons(_ context.Context, to, body string, buttons []Button) error {
	ids := make([]string, 0, len(buttons))
	for _, b := range buttons {
		ids = append(ids, b.ID)
	}
	telemetry.Info("outbound.buttons", map[string]any{"to": to, "text": body, "buttons": ids})
	return nil
}

func (LogSender) SendList(_ context.Context, to, body, _ string, rows []ListRow) error {
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	telemetry.Info("outbound.list", map[string]any{"to": to, "text": body, "rows": ids})
	return nil
}

func (LogSender) SendImage(_ context.Context, to string, image []byte, mimeType, caption string) error {
	telemetry.Info("outbound.image", map[string]any{"to": to, "mime_type": mimeType, "bytes": len(image), "caption": caption})
	return nil
}

func (LogSender) MediaURL(context.Context, string) (string, string, error) {
	return "", "", ErrNoMediaResolver
}

var (
	_ Sender        = LogSender{}
	_ MediaResolver = LogSender{}
)
