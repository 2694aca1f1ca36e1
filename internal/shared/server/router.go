package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"cvbot-backend/internal/documents"
	"cvbot-backend/internal/ledger"
	"cvbot-backend/internal/queue"
	"cvbot-backend/internal/services/health"
	"cvbot-backend/internal/session"
	"cvbot-backend/internal/shared/config"
	"cvbot-backend/internal/shared/metrics"
	"cvbot-backend/internal/shared/server/middleware"
	"cvbot-backend/internal/shared/server/respond"
	"cvbot-backend/internal/shared/storage/object"
)

// RouterDeps are the collaborators the HTTP surface needs. Files is set only
// for the local object store; Acker only for Telegram.
type RouterDeps struct {
	Config     config.Config
	Dispatcher queue.Dispatcher
	Ledger     *ledger.Service
	Sessions   *session.Service
	Documents  documents.DocumentsRepo
	Health     *health.Service
	Files      object.ObjectStore
	Acker      CallbackAcker
	Limiter    *middleware.RateLimiter
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	cfg := deps.Config
	limiter := deps.Limiter
	if limiter == nil {
		limiter = middleware.NewRateLimiter(time.Now)
	}
	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(originsFor(cfg)),
		middleware.RateLimit(middleware.RateLimitConfig{
			DefaultGroup: "DEFAULT",
			GroupFor:     rateGroup,
			Limiter:      limiter,
			Rules: map[string]middleware.RateLimitRule{
				"DEFAULT": {Rate: 5, Burst: 20},
				"WEBHOOK": {Rate: 50, Burst: 200},
				"ADMIN":   {Rate: 2, Burst: 10},
			},
		}),
	)

	healthSvc := deps.Health
	if healthSvc == nil {
		healthSvc = health.NewService(nil, cfg.Transport, false)
	}

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		body, ok := healthSvc.Status(c.Request.Context())
		if !ok {
			respond.JSON(c, http.StatusServiceUnavailable, body)
			return
		}
		respond.OK(c, body)
	})
	if deps.Ledger != nil && deps.Sessions != nil {
		registerAdminRoutes(api, &adminHandler{
			ledger:       deps.Ledger,
			sessions:     deps.Sessions,
			documents:    deps.Documents,
			freeAnalyses: cfg.FreeCVAnalyses,
		}, cfg.AdminToken)
	}

	r.GET("/metrics", metrics.Handler())

	if deps.Dispatcher != nil {
		hooks := &webhookHandler{
			dispatcher:  deps.Dispatcher,
			verifyToken: cfg.WhatsAppVerifyToken,
			appSecret:   cfg.WhatsAppAppSecret,
			acker:       deps.Acker,
		}
		switch cfg.Transport {
		case "telegram":
			registerTelegramRoutes(r, hooks)
		default:
			registerWhatsAppRoutes(r, hooks)
		}
	}

	if deps.Files != nil {
		registerFileRoutes(r, deps.Files)
	}

	return r
}

func rateGroup(c *gin.Context) string {
	p := c.FullPath()
	switch {
	case p == "/webhook" || p == "/telegram/webhook":
		return "WEBHOOK"
	case strings.HasPrefix(p, "/api/v1/admin/"):
		return "ADMIN"
	default:
		return "DEFAULT"
	}
}

// originsFor allows browser calls to the admin API from the public host only.
func originsFor(cfg config.Config) []string {
	if cfg.PublicBaseURL == "" {
		return nil
	}
	return []string{cfg.PublicBaseURL}
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
