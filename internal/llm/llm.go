package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Message is one chat turn sent to a provider.
type Message struct {
	Role    string
	Content string
}

func System(content string) Message { return Message{Role: "system", Content: content} }
func User(content string) Message   { return Message{Role: "user", Content: content} }

// Options tune a single completion.
type Options struct {
	// JSON asks the provider for a single JSON object.
	JSON        bool
	Temperature *float64
	MaxTokens   int
}

// Client abstracts the inference provider.
type Client interface {
	Complete(ctx context.Context, messages []Message, opts Options) (string, error)
	Transcribe(ctx context.Context, audio io.Reader, fileName, mimeType string) (string, error)
	DescribeImage(ctx context.Context, prompt string, image []byte, mimeType string) (string, error)
}

// ErrNotImplemented is returned by the placeholder client.
var ErrNotImplemented = errors.New("LLM not implemented")

// ErrEmptyResponse is returned when the provider answers with no content.
var ErrEmptyResponse = errors.New("empty LLM response")

// PlaceholderClient is used when no provider is configured. Every call
// fails, which drives callers onto their static fallbacks.
type PlaceholderClient struct{}

func (PlaceholderClient) Complete(context.Context, []Message, Options) (string, error) {
	return "", ErrNotImplemented
}

func (PlaceholderClient) Transcribe(context.Context, io.Reader, string, string) (string, error) {
	return "", ErrNotImplemented
}

func (PlaceholderClient) DescribeImage(context.Context, string, []byte, string) (string, error) {
	return "", ErrNotImplemented
}

// CompleteJSON requests a JSON completion and decodes it into v. It returns
// the raw text alongside so callers can inspect it when decoding fails.
func CompleteJSON(ctx context.Context, c Client, messages []Message, v any) (string, error) {
	if c == nil {
		return "", ErrNotImplemented
	}
	raw, err := c.Complete(ctx, messages, Options{JSON: true})
	if err != nil {
		return "", err
	}
	if err := DecodeJSON(raw, v); err != nil {
		return raw, err
	}
	return raw, nil
}

// DecodeJSON decodes a model reply, tolerating markdown code fences and
// text around the outermost object.
func DecodeJSON(raw string, v any) error {
	body := strings.TrimSpace(raw)
	body = strings.TrimPrefix(body, "```json")
	body = strings.TrimPrefix(body, "```")
	body = strings.TrimSuffix(body, "```")
	body = strings.TrimSpace(body)
	if start, end := strings.Index(body, "{"), strings.LastIndex(body, "}"); start >= 0 && end > start {
		body = body[start : end+1]
	}
	if body == "" {
		return ErrEmptyResponse
	}
	if err := json.Unmarshal([]byte(body), v); err != nil {
		return fmt.Errorf("decode LLM JSON: %w", err)
	}
	return nil
}
