package main

// Build the Lambda handler binary:
//   GOOS=linux GOARCH=arm64 CGO_ENABLED=0 go build -o bootstrap ./cmd/lambda-http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"

	"cvbot-backend/internal/bootstrap"
	"cvbot-backend/internal/shared/config"
	"cvbot-backend/internal/shared/server/respond"
	"cvbot-backend/internal/shared/telemetry"
)

var errQueueRequired = errors.New("EVENTS_SQS_QUEUE_URL is required on Lambda")

type proxy interface {
	ProxyWithContext(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error)
}

var (
	initOnce sync.Once
	initErr  error
	router   proxy
)

// requireQueue rejects inline dispatch outside dev: the runtime freezes the
// sandbox once the response is written, stalling any event still running.
func requireQueue(cfg config.Config, hasQueue bool) error {
	if hasQueue || cfg.IsDevLike() {
		return nil
	}
	return errQueueRequired
}

func initApp() {
	cfg := config.Load()
	app, err := bootstrap.Build(cfg)
	if err != nil {
		initErr = err
		return
	}
	if err := requireQueue(cfg, app.Queue != nil); err != nil {
		initErr = err
		return
	}
	router = ginadapter.NewV2(app.Router)
}

func errorResponse(status int, code, message string) events.APIGatewayV2HTTPResponse {
	body, _ := json.Marshal(respond.ErrorResponse{Error: respond.ErrorBody{Code: code, Message: message}})
	return events.APIGatewayV2HTTPResponse{
		StatusCode: status,
		Body:       string(body),
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}

// serve answers 503 while the app cannot start so WhatsApp and Telegram keep
// retrying the webhook instead of dropping it.
func serve(ctx context.Context, p proxy, bootErr error, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	if bootErr != nil {
		telemetry.Error("lambda.bootstrap_failed", map[string]any{"error": bootErr, "path": req.RawPath})
		return errorResponse(http.StatusServiceUnavailable, "bootstrap_failed", "service starting"), nil
	}
	if p == nil {
		return errorResponse(http.StatusServiceUnavailable, "router_missing", "router not initialized"), nil
	}
	return p.ProxyWithContext(ctx, req)
}

func handler(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	initOnce.Do(initApp)
	return serve(ctx, router, initErr, req)
}

func main() {
	lambda.Start(handler)
}
