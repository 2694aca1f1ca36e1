package llm

import (
	"context"
	"errors"
	"io"
	"testing"
)

type scriptedClient struct {
	PlaceholderClient
	errs  []error
	calls int
}

func (s *scriptedClient) Complete(ctx context.Context, messages []Message, opts Options) (string, error) {
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return "", s.errs[i]
	}
	return `{"ok":true}`, nil
}

func (s *scriptedClient) Transcribe(ctx context.Context, audio io.Reader, fileName, mimeType string) (string, error) {
	s.calls++
	return "", errors.New("connection reset by peer")
}

func TestDecodeJSONToleratesFences(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "plain", raw: `{"score":7}`},
		{name: "fenced", raw: "```json\n{\"score\":7}\n```"},
		{name: "prose", raw: `Aquí tienes: {"score":7} ¡suerte!`},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			var v struct {
				Score int `json:"score"`
			}
			if err := DecodeJSON(tt.raw, &v); err != nil {
				t.Fatalf("DecodeJSON: %v", err)
			}
			if v.Score != 7 {
				t.Fatalf("expected 7, got %d", v.Score)
			}
		})
	}
}

func TestDecodeJSONEmpty(t *testing.T) {
	var v map[string]any
	if err := DecodeJSON("   ", &v); !errors.Is(err, ErrEmptyResponse) {
		t.Fatalf("expected ErrEmptyResponse, got %v", err)
	}
}

func TestWithRetryRetriesTransientOnce(t *testing.T) {
	base := &scriptedClient{errs: []error{errors.New("openai: status 502")}}
	client := retryingClient{base: base, delay: 0}

	out, err := client.Complete(context.Background(), []Message{User("hola")}, Options{})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if out == "" || base.calls != 2 {
		t.Fatalf("expected one retry, calls=%d out=%q", base.calls, out)
	}
}

func TestWithRetrySkipsPermanentErrors(t *testing.T) {
	base := &scriptedClient{errs: []error{errors.New("invalid api key")}}
	client := retryingClient{base: base, delay: 0}

	if _, err := client.Complete(context.Background(), nil, Options{}); err == nil {
		t.Fatalf("expected error")
	}
	if base.calls != 1 {
		t.Fatalf("expected no retry, calls=%d", base.calls)
	}
}

func TestWithRetryDoesNotReplayAudio(t *testing.T) {
	base := &scriptedClient{}
	client := WithRetry(base)
	if _, err := client.Transcribe(context.Background(), nil, "a.ogg", "audio/ogg"); err == nil {
		t.Fatalf("expected error")
	}
	if base.calls != 1 {
		t.Fatalf("expected a single transcription attempt, got %d", base.calls)
	}
}

func TestPlaceholderClient(t *testing.T) {
	var c Client = PlaceholderClient{}
	if _, err := CompleteJSON(context.Background(), c, nil, &struct{}{}); !errors.Is(err, ErrNotImplemented) {
		t.Fatalf("expected ErrNotImplemented, got %v", err)
	}
}
