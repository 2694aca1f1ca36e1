package openai

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	sdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"cvbot-backend/internal/llm"
	"cvbot-backend/internal/shared/telemetry"
)

// Client implements llm.Client on the official OpenAI SDK.
type Client struct {
	sdk         sdk.Client
	model       string
	visionModel string
}

// Options configures NewClient.
type Options struct {
	APIKey      string
	Model       string
	VisionModel string
	Timeout     time.Duration
	// BaseURL overrides the API endpoint, mainly for tests.
	BaseURL string
}

// NewClient constructs a new OpenAI client.
func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.Model) == "" {
		return nil, fmt.Errorf("LLM_MODEL is required for OpenAI")
	}
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	reqOpts := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		option.WithRequestTimeout(timeout),
		// llm.WithRetry owns retries.
		option.WithMaxRetries(0),
	}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	vision := opts.VisionModel
	if strings.TrimSpace(vision) == "" {
		vision = opts.Model
	}
	return &Client{
		sdk:         sdk.NewClient(reqOpts...),
		model:       opts.Model,
		visionModel: vision,
	}, nil
}

func (c *Client) Complete(ctx context.Context, messages []llm.Message, opts llm.Options) (string, error) {
	params := sdk.ChatCompletionNewParams{
		Model:    shared.ChatModel(c.model),
		Messages: toParams(messages),
	}
	if opts.JSON {
		params.ResponseFormat = sdk.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}
	// gpt-5 models only accept the default temperature.
	if opts.Temperature != nil && !isGPT5(c.model) {
		params.Temperature = sdk.Float(*opts.Temperature)
	}
	if opts.MaxTokens > 0 {
		params.MaxCompletionTokens = sdk.Int(int64(opts.MaxTokens))
	}
	return c.chat(ctx, c.model, params, promptString(messages))
}

func (c *Client) DescribeImage(ctx context.Context, prompt string, image []byte, mimeType string) (string, error) {
	if len(image) == 0 {
		return "", errors.New("image is empty")
	}
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	dataURI := "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(image)
	params := sdk.ChatCompletionNewParams{
		Model: shared.ChatModel(c.visionModel),
		Messages: []sdk.ChatCompletionMessageParamUnion{
			sdk.UserMessage([]sdk.ChatCompletionContentPartUnionParam{
				sdk.TextContentPart(prompt),
				sdk.ImageContentPart(sdk.ChatCompletionContentPartImageImageURLParam{URL: dataURI}),
			}),
		},
		ResponseFormat: sdk.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
	}
	return c.chat(ctx, c.visionModel, params, prompt)
}

func (c *Client) Transcribe(ctx context.Context, audio io.Reader, fileName, mimeType string) (string, error) {
	if audio == nil {
		return "", errors.New("audio is empty")
	}
	if fileName == "" {
		fileName = "audio.ogg"
	}
	start := time.Now()
	res, err := c.sdk.Audio.Transcriptions.New(ctx, sdk.AudioTranscriptionNewParams{
		File:     sdk.File(audio, fileName, mimeType),
		Model:    sdk.AudioModelWhisper1,
		Language: sdk.String("es"),
	})
	if err != nil {
		return "", fmt.Errorf("openai transcription: %w", err)
	}
	text := strings.TrimSpace(res.Text)
	telemetry.Info("llm.transcription", map[string]any{
		"chars":      len(text),
		"elapsed_ms": time.Since(start).Milliseconds(),
	})
	if text == "" {
		return "", llm.ErrEmptyResponse
	}
	return text, nil
}

func (c *Client) chat(ctx context.Context, model string, params sdk.ChatCompletionNewParams, prompt string) (string, error) {
	start := time.Now()
	res, err := c.sdk.Chat.Completions.New(ctx, params)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("openai request timeout: %w", err)
		}
		return "", fmt.Errorf("openai chat: %w", err)
	}
	if len(res.Choices) == 0 {
		return "", fmt.Errorf("openai response missing choices")
	}
	content := strings.TrimSpace(res.Choices[0].Message.Content)
	telemetry.Info("llm.response", map[string]any{
		"model":             model,
		"prompt_hash":       hashPromptString(prompt),
		"prompt_tokens":     res.Usage.PromptTokens,
		"completion_tokens": res.Usage.CompletionTokens,
		"elapsed_ms":        time.Since(start).Milliseconds(),
	})
	if content == "" {
		return "", llm.ErrEmptyResponse
	}
	return content, nil
}

func toParams(messages []llm.Message) []sdk.ChatCompletionMessageParamUnion {
	out := make([]sdk.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case "system":
			out = append(out, sdk.SystemMessage(m.Content))
		case "assistant":
			out = append(out, sdk.AssistantMessage(m.Content))
		default:
			out = append(out, sdk.UserMessage(m.Content))
		}
	}
	return out
}

func isGPT5(model string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(model)), "gpt-5")
}

func promptString(messages []llm.Message) string {
	var b strings.Builder
	for i, m := range messages {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(m.Role)
		b.WriteString(": ")
		b.WriteString(m.Content)
	}
	return b.String()
}

func hashPromptString(prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return hex.EncodeToString(sum[:8])
}

var _ llm.Client = (*Client)(nil)
