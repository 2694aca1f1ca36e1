package transport

import (
	"context"
	"errors"
	"time"
)

// Button is a quick-reply option. ID is echoed back in the button event.
type Button struct {
	ID    string
	Title string
}

// ListRow is one option in a list picker.
type ListRow struct {
	ID          string
	Title       string
	Description string
}

// Sender delivers outbound messages to a user.
type Sender interface {
	SendText(ctx context.Context, to, text string) error
	SendButtons(ctx context.Context, to, body string, buttons []Button) error
	SendList(ctx context.Context, to, body, buttonLabel string, rows []ListRow) error
	SendImage(ctx context.Context, to string, image []byte, mimeType, caption string) error
}

// MediaResolver turns a provider media id into a downloadable URL.
type MediaResolver interface {
	MediaURL(ctx context.Context, mediaID string) (url, mimeType string, err error)
}

// ErrUnsupportedEvent is returned by webhook parsers for payloads that carry
// no user message (delivery receipts, status updates).
var ErrUnsupportedEvent = errors.New("unsupported event")

// Pacer sends multi-part replies in order with a fixed delay between parts.
type Pacer struct {
	Sender Sender
	Delay  time.Duration
}

// Text sends each message in order, waiting Delay between them. It stops at
// the first send error or when ctx is done.
func (p Pacer) Text(ctx context.Context, to string, messages ...string) error {
	for i, msg := range messages {
		if i > 0 && p.Delay > 0 {
			timer := time.NewTimer(p.Delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
		if err := p.Sender.SendText(ctx, to, msg); err != nil {
			return err
		}
	}
	return nil
}
