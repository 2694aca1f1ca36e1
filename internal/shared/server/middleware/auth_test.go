package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestAdminAuthAllowsOptionsWithoutToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(AdminAuth("secret"))
	router.OPTIONS("/api/v1/admin/users/:id/credits", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/admin/users/u1/credits", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.Code)
	}
}

func TestAdminAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tests := []struct {
		name       string
		configured string
		header     string
		bearer     string
		wantStatus int
	}{
		{name: "valid header", configured: "secret", header: "secret", wantStatus: http.StatusOK},
		{name: "valid bearer", configured: "secret", bearer: "secret", wantStatus: http.StatusOK},
		{name: "wrong token", configured: "secret", header: "nope", wantStatus: http.StatusUnauthorized},
		{name: "missing token", configured: "secret", wantStatus: http.StatusUnauthorized},
		{name: "disabled", configured: "", header: "anything", wantStatus: http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			router.Use(AdminAuth(tt.configured))
			router.GET("/admin", func(c *gin.Context) {
				if PrincipalFromContext(c) != "admin" {
					t.Fatalf("expected admin principal")
				}
				c.JSON(http.StatusOK, gin.H{"ok": true})
			})

			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			if tt.header != "" {
				req.Header.Set("X-Admin-Token", tt.header)
			}
			if tt.bearer != "" {
				req.Header.Set("Authorization", "Bearer "+tt.bearer)
			}
			resp := httptest.NewRecorder()
			router.ServeHTTP(resp, req)
			if resp.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d", tt.wantStatus, resp.Code)
			}
		})
	}
}
