package queue

import (
	"context"
	"time"

	"cvbot-backend/internal/shared/metrics"
	"cvbot-backend/internal/shared/telemetry"
	"cvbot-backend/internal/transport"
)

// Client sends chat events to the FIFO queue the worker reads.
type Client interface {
	Send(ctx context.Context, msg Message) error
}

// EventHandler consumes one chat event.
type EventHandler interface {
	Handle(ctx context.Context, ev transport.Event)
}

// Dispatcher hands inbound events off so webhooks can answer quickly.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev transport.Event, requestID string) error
}

// QueueDispatcher enqueues events for the worker.
type QueueDispatcher struct {
	Client Client
	Now    func() time.Time
}

func (d QueueDispatcher) Dispatch(ctx context.Context, ev transport.Event, requestID string) error {
	now := time.Now()
	if d.Now != nil {
		now = d.Now()
	}
	if err := d.Client.Send(ctx, NewMessage(ev, requestID, now)); err != nil {
		metrics.IncQueueMessage("failed")
		return err
	}
	metrics.IncQueueMessage("enqueued")
	return nil
}

// InlineDispatcher handles events in-process on a detached goroutine. Used
// when no queue is configured. Ordering is best effort: each event gets its
// own goroutine, so two events from one user that arrive together may be
// handled in either order. Deployments that need per-user order use the
// queue.
type InlineDispatcher struct {
	Handler EventHandler
}

func (d InlineDispatcher) Dispatch(ctx context.Context, ev transport.Event, requestID string) error {
	ctx = context.WithoutCancel(ctx)
	go func() {
		telemetry.Info("dispatch.inline", map[string]any{"request_id": requestID, "user_id": ev.From, "kind": string(ev.Kind)})
		d.Handler.Handle(ctx, ev)
	}()
	return nil
}
