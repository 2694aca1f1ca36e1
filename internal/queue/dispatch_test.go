package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"cvbot-backend/internal/transport"
)

type captureClient struct {
	msgs []Message
	err  error
}

func (c *captureClient) Send(_ context.Context, msg Message) error {
	if c.err != nil {
		return c.err
	}
	c.msgs = append(c.msgs, msg)
	return nil
}

type chanHandler chan transport.Event

func (h chanHandler) Handle(_ context.Context, ev transport.Event) { h <- ev }

func TestQueueDispatcherWrapsEvent(t *testing.T) {
	client := &captureClient{}
	now := time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC)
	d := QueueDispatcher{Client: client, Now: func() time.Time { return now }}
	ev := transport.NewTextEvent("whatsapp", "wamid.1", "5491100", "Ana", "hola", now)

	if err := d.Dispatch(context.Background(), ev, "req-1"); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if len(client.msgs) != 1 {
		t.Fatalf("expected one message, got %d", len(client.msgs))
	}
	msg := client.msgs[0]
	if msg.RequestID != "req-1" || msg.Event.ID != "wamid.1" || msg.Version != CurrentVersion {
		t.Fatalf("unexpected message %+v", msg)
	}
	if msg.EnqueuedAt != "2026-03-02T10:00:00Z" {
		t.Fatalf("unexpected enqueuedAt %q", msg.EnqueuedAt)
	}
}

func TestQueueDispatcherPropagatesSendError(t *testing.T) {
	d := QueueDispatcher{Client: &captureClient{err: errors.New("boom")}}
	ev := transport.NewTextEvent("whatsapp", "wamid.1", "5491100", "", "hola", time.Now())
	if err := d.Dispatch(context.Background(), ev, ""); err == nil {
		t.Fatalf("expected error")
	}
}

func TestInlineDispatcherSurvivesRequestCancel(t *testing.T) {
	h := make(chanHandler, 1)
	ctx, cancel := context.WithCancel(context.Background())
	d := InlineDispatcher{Handler: h}
	ev := transport.NewTextEvent("telegram", "42", "1001", "", "hola", time.Now())
	if err := d.Dispatch(ctx, ev, "req-2"); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	cancel()
	select {
	case got := <-h:
		if got.ID != "42" {
			t.Fatalf("unexpected event %+v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("handler was not called")
	}
}
