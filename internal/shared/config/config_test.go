package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ENV", "")
	t.Setenv("PORT", "9090")
	t.Setenv("INTERVIEW_QUESTIONS", "")
	t.Setenv("CV_ANALYZER_TIMEOUT", "")
	t.Setenv("PUBLIC_BASE_URL", "")
	t.Setenv("WORKER_CONCURRENCY", "")

	cfg := Load()
	if cfg.Env != "dev" {
		t.Fatalf("expected dev env, got %q", cfg.Env)
	}
	if cfg.InterviewQuestions != 4 {
		t.Fatalf("expected 4 interview questions, got %d", cfg.InterviewQuestions)
	}
	if cfg.CVAnalyzerTimeout != 180*time.Second {
		t.Fatalf("expected 180s analyzer timeout, got %s", cfg.CVAnalyzerTimeout)
	}
	if cfg.PublicBaseURL != "http://localhost:9090" {
		t.Fatalf("unexpected public base url %q", cfg.PublicBaseURL)
	}
	if cfg.Role != "api" || cfg.WorkerConcurrency != 8 {
		t.Fatalf("unexpected role %q concurrency %d", cfg.Role, cfg.WorkerConcurrency)
	}
}

func TestGetDurationForms(t *testing.T) {
	tests := []struct {
		raw  string
		want time.Duration
	}{
		{raw: "90s", want: 90 * time.Second},
		{raw: "45", want: 45 * time.Second},
		{raw: "bogus", want: time.Minute},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.raw, func(t *testing.T) {
			t.Setenv("SOME_DURATION", tt.raw)
			if got := getDuration("SOME_DURATION", time.Minute); got != tt.want {
				t.Fatalf("getDuration(%q) = %s, want %s", tt.raw, got, tt.want)
			}
		})
	}
}

func TestNormalizers(t *testing.T) {
	if normalizeEnv("PROD") != "production" {
		t.Fatalf("expected production")
	}
	if normalizeTransport("TG") != "telegram" {
		t.Fatalf("expected telegram")
	}
	if normalizeTransport("") != "whatsapp" {
		t.Fatalf("expected whatsapp default")
	}
	if normalizeStoreType("S3") != "s3" {
		t.Fatalf("expected s3")
	}
}
