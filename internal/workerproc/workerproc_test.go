package workerproc

import (
	"context"
	"errors"
	"testing"
	"time"

	"cvbot-backend/internal/queue"
	"cvbot-backend/internal/transport"
)

type recordingHandler struct {
	events []transport.Event
}

func (r *recordingHandler) Handle(ctx context.Context, ev transport.Event) {
	r.events = append(r.events, ev)
}

func encode(t *testing.T, msg queue.Message) string {
	t.Helper()
	body, err := queue.EncodeMessage(msg)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return string(body)
}

func TestHandleMessageDeliversEvent(t *testing.T) {
	h := &recordingHandler{}
	ev := transport.NewTextEvent("whatsapp", "wamid.1", "u1", "Ana", "hola", time.Now())
	body := encode(t, queue.NewMessage(ev, "req-1", time.Now()))

	if err := HandleMessage(context.Background(), h, body); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if len(h.events) != 1 || h.events[0].Text != "hola" || h.events[0].From != "u1" {
		t.Fatalf("unexpected events %+v", h.events)
	}
}

func TestParseMessageErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "empty", body: "  "},
		{name: "bad json", body: "{bad"},
		{name: "no sender", body: `{"event":{"id":"x"},"version":1}`},
		{name: "future version", body: `{"event":{"from":"u1"},"version":99}`},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ParseMessage(tt.body)
			if err == nil {
				t.Fatalf("expected error")
			}
			if !Unrecoverable(err) {
				t.Fatalf("expected unrecoverable error, got %v", err)
			}
		})
	}
}

func TestHandleMessageWithoutHandler(t *testing.T) {
	err := HandleMessage(context.Background(), nil, "{}")
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	if Unrecoverable(err) {
		t.Fatalf("a missing handler is retryable")
	}
}

func TestComputeMeta(t *testing.T) {
	meta := ComputeMeta("abc")
	if meta.BodyLen != 3 || len(meta.BodySHA) != 64 {
		t.Fatalf("unexpected meta %+v", meta)
	}
	if ComputeMeta("") != (MessageMeta{}) {
		t.Fatalf("empty body must have empty meta")
	}
}
