package bootstrap

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"cvbot-backend/internal/queue"
	"cvbot-backend/internal/shared/config"
	"cvbot-backend/internal/transport"
)

func devConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		Env:                "dev",
		Port:               "8080",
		PublicBaseURL:      "http://localhost:8080",
		ObjectStoreType:    "local",
		LocalStoreDir:      t.TempDir(),
		LLMProvider:        "openai",
		Transport:          "whatsapp",
		InterviewQuestions: 4,
		FreeCVAnalyses:     1,
	}
}

func TestBuildDevFallbacks(t *testing.T) {
	app, err := Build(devConfig(t))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if app.DB != nil {
		t.Fatalf("expected in-memory repositories without DATABASE_URL")
	}
	if _, ok := app.Sender.(transport.LogSender); !ok {
		t.Fatalf("expected log sender without credentials, got %T", app.Sender)
	}
	if _, ok := app.Dispatcher.(queue.InlineDispatcher); !ok {
		t.Fatalf("expected inline dispatcher without a queue, got %T", app.Dispatcher)
	}
	if app.Pipeline.Analyzer != nil {
		t.Fatalf("expected no analyzer without CV_ANALYZER_URL")
	}
	if len(app.Catalog.Packages) == 0 {
		t.Fatalf("expected default catalog packages")
	}

	resp := httptest.NewRecorder()
	app.Router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected health 200, got %d", resp.Code)
	}
}

func TestBuildRequiresDatabaseOutsideDev(t *testing.T) {
	cfg := devConfig(t)
	cfg.Env = "production"
	if _, err := Build(cfg); err == nil {
		t.Fatalf("expected error without DATABASE_URL in production")
	}
}

func TestBuildRejectsUnknownCatalog(t *testing.T) {
	cfg := devConfig(t)
	cfg.CatalogFile = "/nonexistent/catalog.yaml"
	if _, err := Build(cfg); err == nil {
		t.Fatalf("expected catalog load error")
	}
}
