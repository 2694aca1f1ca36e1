package llm

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"time"

	"cvbot-backend/internal/shared/telemetry"
)

const retryBaseDelay = 300 * time.Millisecond

type retryingClient struct {
	base  Client
	delay time.Duration
}

// WithRetry retries transient completion and vision failures once. Audio
// transcription is not retried because the reader is consumed.
func WithRetry(base Client) Client {
	if base == nil {
		return nil
	}
	return retryingClient{base: base, delay: retryBaseDelay}
}

func (r retryingClient) Complete(ctx context.Context, messages []Message, opts Options) (string, error) {
	out, err := r.base.Complete(ctx, messages, opts)
	if err == nil || !shouldRetry(err) {
		return out, err
	}
	if err := r.wait(ctx, "complete", err); err != nil {
		return "", err
	}
	return r.base.Complete(ctx, messages, opts)
}

func (r retryingClient) DescribeImage(ctx context.Context, prompt string, image []byte, mimeType string) (string, error) {
	out, err := r.base.DescribeImage(ctx, prompt, image, mimeType)
	if err == nil || !shouldRetry(err) {
		return out, err
	}
	if err := r.wait(ctx, "describe_image", err); err != nil {
		return "", err
	}
	return r.base.DescribeImage(ctx, prompt, image, mimeType)
}

func (r retryingClient) Transcribe(ctx context.Context, audio io.Reader, fileName, mimeType string) (string, error) {
	return r.base.Transcribe(ctx, audio, fileName, mimeType)
}

func (r retryingClient) wait(ctx context.Context, op string, cause error) error {
	telemetry.Warn("llm.retry", map[string]any{"op": op, "attempt": 1, "error": cause})
	select {
	case <-time.After(r.delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func shouldRetry(err error) bool {
	if err == nil || errors.Is(err, ErrNotImplemented) || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"status 5", `": 5`, `": 429`, "server_error", "rate limit",
		"connection reset", "connection refused", "broken pipe",
		"tls handshake timeout", "unexpected eof",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
