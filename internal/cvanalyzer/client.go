package cvanalyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"cvbot-backend/internal/shared/telemetry"
)

const (
	defaultTimeout = 180 * time.Second
	// Larger bodies than this are not an analyzer response.
	maxResponseBytes = 2 << 20
)

// Request describes a document already reachable at FileURL.
type Request struct {
	FileURL       string
	ExtractedText string
	JobPosition   string
}

// Analyzer submits a stored document for analysis. A nil result with a nil
// error means the analysis is unavailable and the caller should fall back.
type Analyzer interface {
	Analyze(ctx context.Context, req Request) (*Result, error)
}

// Client calls the external analyzer's /analyze endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient builds a client for baseURL. timeout <= 0 uses 180s.
func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("CV_ANALYZER_URL is required")
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// Analyze never returns an error for remote failures: timeouts, non-2xx
// responses, malformed JSON and success=false all yield (nil, nil). Errors are
// reserved for requests that could not be built.
func (c *Client) Analyze(ctx context.Context, in Request) (*Result, error) {
	if strings.TrimSpace(in.FileURL) == "" {
		return nil, errors.New("file url is required")
	}
	body, contentType, err := encodeForm(in)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/analyze", body)
	if err != nil {
		return nil, fmt.Errorf("build analyzer request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		telemetry.Warn("cvanalyzer.request_failed", map[string]any{
			"error":      err,
			"elapsed_ms": time.Since(start).Milliseconds(),
		})
		return nil, nil
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		telemetry.Warn("cvanalyzer.read_failed", map[string]any{"error": err})
		return nil, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		telemetry.Warn("cvanalyzer.bad_status", map[string]any{
			"status": resp.StatusCode,
			"body":   truncate(string(raw), 200),
		})
		return nil, nil
	}

	var result Result
	if err := json.Unmarshal(raw, &result); err != nil {
		telemetry.Warn("cvanalyzer.malformed_response", map[string]any{"error": err})
		return nil, nil
	}
	if !result.Success {
		telemetry.Warn("cvanalyzer.unsuccessful", map[string]any{"error": result.Error})
		return nil, nil
	}
	result.Normalize()
	telemetry.Info("cvanalyzer.analyzed", map[string]any{
		"score":      result.Score,
		"elapsed_ms": time.Since(start).Milliseconds(),
	})
	return &result, nil
}

func encodeForm(in Request) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fields := [][2]string{
		{"file_url", in.FileURL},
		{"extracted_text", in.ExtractedText},
		{"job_position", in.JobPosition},
	}
	for _, f := range fields {
		if strings.TrimSpace(f[1]) == "" {
			continue
		}
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
