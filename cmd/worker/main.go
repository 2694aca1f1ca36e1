package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"cvbot-backend/internal/bootstrap"
	"cvbot-backend/internal/shared/config"
	"cvbot-backend/internal/shared/metrics"
	"cvbot-backend/internal/shared/telemetry"
	"cvbot-backend/internal/workerproc"
)

const (
	defaultRegion             = "us-east-1"
	defaultVisibilitySeconds  = 1200
	defaultShutdownTimeoutSec = 30

	attrReceiveCount   = "ApproximateReceiveCount"
	attrMessageGroupID = "MessageGroupId"
)

var receiveAttributes = []sqstypes.QueueAttributeName{
	sqstypes.QueueAttributeName(attrReceiveCount),
	sqstypes.QueueAttributeName(attrMessageGroupID),
}

func main() {
	cfg := config.Load()
	cfg.Role = "worker"

	queueURL := strings.TrimSpace(cfg.EventsQueueURL)
	if queueURL == "" {
		log.Fatal("EVENTS_SQS_QUEUE_URL is required")
	}
	region := cfg.AWSRegion
	if region == "" {
		region = defaultRegion
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	visibilitySeconds := envInt("WORKER_VISIBILITY_TIMEOUT_SECONDS", defaultVisibilitySeconds)
	concurrency := cfg.WorkerConcurrency
	shutdownTimeout := time.Duration(envInt("WORKER_SHUTDOWN_TIMEOUT_SECONDS", defaultShutdownTimeoutSec)) * time.Second

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		log.Fatalf("load aws config: %v", err)
	}
	var sqsClient sqsAPI = sqs.NewFromConfig(awsCfg)

	app, err := bootstrap.Build(cfg)
	if err != nil {
		log.Fatalf("bootstrap build: %v", err)
	}

	sem := make(chan struct{}, max(1, concurrency))
	var wg sync.WaitGroup

	log.Printf("worker started queue=%s concurrency=%d visibility=%ds", queueURL, concurrency, visibilitySeconds)

pollLoop:
	for {
		select {
		case <-ctx.Done():
			break pollLoop
		default:
		}

		resp, err := sqsClient.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(queueURL),
			MaxNumberOfMessages: 10,
			WaitTimeSeconds:     20,
			VisibilityTimeout:   int32(visibilitySeconds),
			AttributeNames:      receiveAttributes,
		})
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
				break pollLoop
			}
			log.Printf("receive message: %v", err)
			continue
		}

		handle := func(m sqstypes.Message) bool {
			metrics.IncQueueMessage("received")
			// In-flight conversations finish even after a shutdown signal.
			return handleMessage(context.WithoutCancel(ctx), sqsClient, queueURL, app.Machine, m)
		}
		if !runBatch(ctx, resp.Messages, sem, &wg, handle) {
			break pollLoop
		}
	}

	log.Printf("shutdown requested, waiting up to %s for in-flight events", shutdownTimeout)
	waitDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(waitDone)
	}()
	select {
	case <-waitDone:
	case <-time.After(shutdownTimeout):
		log.Printf("shutdown timeout reached; exiting with in-flight events")
	}
}

// runBatch hands each message group of a batch to one goroutine that
// handles the group's messages in receive order, so a user's events never
// race each other. A group stops at its first failure; the rest is
// redelivered after the visibility timeout. It returns false once ctx is done.
func runBatch(ctx context.Context, msgs []sqstypes.Message, sem chan struct{}, wg *sync.WaitGroup, handle func(sqstypes.Message) bool) bool {
	for _, group := range batchGroups(msgs) {
		select {
		case <-ctx.Done():
			return false
		case sem <- struct{}{}:
		}
		wg.Add(1)
		go func(group []sqstypes.Message) {
			defer wg.Done()
			defer func() { <-sem }()
			for _, m := range group {
				if !handle(m) {
					return
				}
			}
		}(group)
	}
	return true
}

// batchGroups splits msgs by message group, keeping receive order within
// each group and first-seen order across groups.
func batchGroups(msgs []sqstypes.Message) [][]sqstypes.Message {
	var order []string
	byKey := make(map[string][]sqstypes.Message, len(msgs))
	for _, msg := range msgs {
		key := groupKey(msg)
		if _, ok := byKey[key]; !ok {
			order = append(order, key)
		}
		byKey[key] = append(byKey[key], msg)
	}
	groups := make([][]sqstypes.Message, 0, len(order))
	for _, key := range order {
		groups = append(groups, byKey[key])
	}
	return groups
}

// groupKey is the FIFO group when SQS reports one, else the event's sender.
func groupKey(msg sqstypes.Message) string {
	if g := msg.Attributes[attrMessageGroupID]; g != "" {
		return g
	}
	if decoded, _, err := workerproc.ParseMessage(aws.ToString(msg.Body)); err == nil {
		return decoded.Event.Transport + "-" + decoded.Event.From
	}
	return "message:" + aws.ToString(msg.MessageId)
}

type sqsAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// handleMessage reports whether the message is done with: handled, or
// dropped as unrecoverable, and deleted.
func handleMessage(ctx context.Context, client sqsAPI, queueURL string, h workerproc.EventHandler, msg sqstypes.Message) bool {
	body := aws.ToString(msg.Body)

	decoded, meta, err := workerproc.ParseMessage(body)
	if err != nil {
		fields := baseFields(msg, "", "")
		fields["body_len"] = meta.BodyLen
		if meta.BodySHA != "" {
			fields["body_sha256"] = meta.BodySHA
		}
		fields["error"] = err.Error()
		var missing workerproc.ErrMissingSender
		if errors.As(err, &missing) {
			fields["request_id"] = missing.RequestID
		}
		telemetry.Error("worker.event.invalid", fields)
		if workerproc.Unrecoverable(err) && deleteMessage(ctx, client, queueURL, msg, "", "") {
			metrics.IncQueueMessage("unrecoverable")
			return true
		}
		return false
	}

	userID := decoded.Event.Transport + ":" + decoded.Event.From
	telemetry.Info("worker.event.received", baseFields(msg, userID, decoded.RequestID))

	ctxWithParsed := workerproc.WithParsedMessage(ctx, decoded)
	if err := workerproc.HandleMessage(ctxWithParsed, h, body); err != nil {
		fields := baseFields(msg, userID, decoded.RequestID)
		fields["error"] = err.Error()
		telemetry.Error("worker.event.failed", fields)
		metrics.IncQueueMessage("failed")
		return false
	}

	if !deleteMessage(ctx, client, queueURL, msg, userID, decoded.RequestID) {
		return false
	}
	telemetry.Info("worker.event.completed", baseFields(msg, userID, decoded.RequestID))
	metrics.IncQueueMessage("completed")
	return true
}

func deleteMessage(ctx context.Context, client sqsAPI, queueURL string, msg sqstypes.Message, userID, requestID string) bool {
	receipt := aws.ToString(msg.ReceiptHandle)
	if receipt == "" {
		fields := baseFields(msg, userID, requestID)
		fields["error"] = "missing receipt handle"
		telemetry.Error("worker.event.delete_failed", fields)
		return false
	}
	if _, err := client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(queueURL),
		ReceiptHandle: aws.String(receipt),
	}); err != nil {
		fields := baseFields(msg, userID, requestID)
		fields["error"] = err.Error()
		telemetry.Error("worker.event.delete_failed", fields)
		return false
	}
	return true
}

func baseFields(msg sqstypes.Message, userID, requestID string) map[string]any {
	fields := map[string]any{
		"user_id":        userID,
		"sqs_message_id": aws.ToString(msg.MessageId),
		"receive_count":  receiveCount(msg),
	}
	if strings.TrimSpace(requestID) != "" {
		fields["request_id"] = requestID
	}
	return fields
}

func receiveCount(msg sqstypes.Message) int {
	if msg.Attributes == nil {
		return 0
	}
	raw := msg.Attributes[attrReceiveCount]
	if raw == "" {
		return 0
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return parsed
}

func envInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return val
}
