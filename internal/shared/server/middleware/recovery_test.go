package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"cvbot-backend/internal/shared/telemetry"
)

func TestRecoveryAnswers500AndLogsUser(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	telemetry.SetOutput(&buf)
	t.Cleanup(func() { telemetry.SetOutput(os.Stdout) })

	r := gin.New()
	r.Use(RequestID(), Recovery())
	r.POST("/webhook", func(c *gin.Context) {
		SetUserID(c, "whatsapp:51999888777")
		c.Set("eventKind", "document")
		panic("boom")
	})

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/webhook", nil))

	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), `"code":"internal"`) {
		t.Fatalf("unexpected body %s", resp.Body.String())
	}
	logs := buf.String()
	for _, want := range []string{`"http.panic"`, `"user_id":"whatsapp:51999888777"`, `"event_kind":"document"`} {
		if !strings.Contains(logs, want) {
			t.Fatalf("expected %s in logs, got %s", want, logs)
		}
	}
}
