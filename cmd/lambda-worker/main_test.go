package main

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"

	"cvbot-backend/internal/queue"
	"cvbot-backend/internal/transport"
)

type countingHandler struct{ n int }

func (c *countingHandler) Handle(context.Context, transport.Event) { c.n++ }

func record(t *testing.T, id, from string) events.SQSMessage {
	t.Helper()
	ev := transport.NewTextEvent("telegram", id, from, "", "hola", time.Now())
	body, err := queue.EncodeMessage(queue.NewMessage(ev, "", time.Now()))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return events.SQSMessage{MessageId: id, Body: string(body)}
}

func TestProcessRecordsDropsInvalidAndHandlesRest(t *testing.T) {
	h := &countingHandler{}
	records := []events.SQSMessage{
		record(t, "1", "42"),
		{MessageId: "bad", Body: "{nope"},
		record(t, "2", "42"),
	}
	resp := processRecords(context.Background(), h, records)
	if len(resp.BatchItemFailures) != 0 {
		t.Fatalf("expected no failures, got %+v", resp.BatchItemFailures)
	}
	if h.n != 2 {
		t.Fatalf("expected 2 handled events, got %d", h.n)
	}
}

func TestProcessRecordsFailsRemainderAfterFailure(t *testing.T) {
	records := []events.SQSMessage{record(t, "1", "42"), record(t, "2", "42")}
	resp := processRecords(context.Background(), nil, records)
	if len(resp.BatchItemFailures) != 2 {
		t.Fatalf("expected both records retried, got %+v", resp.BatchItemFailures)
	}
	if resp.BatchItemFailures[0].ItemIdentifier != "1" || resp.BatchItemFailures[1].ItemIdentifier != "2" {
		t.Fatalf("unexpected failure order %+v", resp.BatchItemFailures)
	}
}
