package main

// Build the Lambda handler binary:
//   GOOS=linux GOARCH=amd64 CGO_ENABLED=0 go build -o bootstrap ./cmd/lambda-worker

import (
	"context"
	"log"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"cvbot-backend/internal/bootstrap"
	"cvbot-backend/internal/shared/config"
	"cvbot-backend/internal/shared/metrics"
	"cvbot-backend/internal/shared/telemetry"
	"cvbot-backend/internal/workerproc"
)

var (
	initOnce sync.Once
	initErr  error
	app      *bootstrap.App
)

func initApp() {
	cfg := config.Load()
	built, err := bootstrap.Build(cfg)
	if err != nil {
		initErr = err
		return
	}
	app = built
}

func handler(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error) {
	initOnce.Do(initApp)
	if initErr != nil {
		log.Printf("bootstrap error: %v", initErr)
		failures := make([]events.SQSBatchItemFailure, 0, len(event.Records))
		for _, record := range event.Records {
			failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
		}
		return events.SQSEventResponse{BatchItemFailures: failures}, initErr
	}
	return processRecords(ctx, app.Machine, event.Records), nil
}

// processRecords handles a FIFO batch in order. Once a record fails, the
// rest of the batch is reported as failed too so one user's events are never
// applied out of order.
func processRecords(ctx context.Context, h workerproc.EventHandler, records []events.SQSMessage) events.SQSEventResponse {
	failures := make([]events.SQSBatchItemFailure, 0)
	failed := false
	for _, record := range records {
		if failed {
			failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
			continue
		}
		metrics.IncQueueMessage("received")
		err := workerproc.HandleMessage(ctx, h, record.Body)
		switch {
		case err == nil:
			metrics.IncQueueMessage("completed")
		case workerproc.Unrecoverable(err):
			telemetry.Error("worker.event.invalid", map[string]any{"sqs_message_id": record.MessageId, "error": err})
			metrics.IncQueueMessage("unrecoverable")
		default:
			telemetry.Error("worker.event.failed", map[string]any{"sqs_message_id": record.MessageId, "error": err})
			metrics.IncQueueMessage("failed")
			failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
			failed = true
		}
	}
	return events.SQSEventResponse{BatchItemFailures: failures}
}

func main() {
	lambda.Start(handler)
}
