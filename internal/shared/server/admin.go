package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"cvbot-backend/internal/documents"
	"cvbot-backend/internal/ledger"
	"cvbot-backend/internal/session"
	"cvbot-backend/internal/shared/server/middleware"
	"cvbot-backend/internal/shared/server/respond"
)

const (
	maxGrant        = 1000
	defaultDocLimit = 20
	maxDocLimit     = 100
)

type adminHandler struct {
	ledger       *ledger.Service
	sessions     *session.Service
	documents    documents.DocumentsRepo
	freeAnalyses int
}

type grantRequest struct {
	Credits     int    `json:"credits"`
	Description string `json:"description"`
}

// registerAdminRoutes attaches operator endpoints under /admin.
func registerAdminRoutes(rg *gin.RouterGroup, h *adminHandler, token string) {
	admin := rg.Group("/admin")
	admin.Use(middleware.AdminAuth(token))
	admin.GET("/users/:id/credits", h.getCredits)
	admin.POST("/users/:id/credits", h.grantCredits)
	admin.POST("/users/:id/session/reset", h.resetSession)
	if h.documents != nil {
		admin.GET("/users/:id/documents", h.listDocuments)
	}
}

func userParam(c *gin.Context) (string, bool) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		respond.Error(c, http.StatusBadRequest, "invalid_user", "user id is required", nil)
		return "", false
	}
	middleware.SetUserID(c, id)
	return id, true
}

func (h *adminHandler) getCredits(c *gin.Context) {
	userID, ok := userParam(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	ent, err := h.ledger.Entitlement(ctx, userID, h.freeAnalyses)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "ledger_unavailable", "could not read credits", nil)
		return
	}
	history, err := h.ledger.History(ctx, userID)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "ledger_unavailable", "could not read ledger", nil)
		return
	}
	if history == nil {
		history = []ledger.Entry{}
	}
	respond.OK(c, gin.H{
		"userId":           userID,
		"remainingCredits": ent.RemainingCredits,
		"analysesDone":     ent.AnalysesDone,
		"source":           ent.Source,
		"entries":          history,
	})
}

func (h *adminHandler) grantCredits(c *gin.Context) {
	userID, ok := userParam(c)
	if !ok {
		return
	}
	var req grantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_body", "expected {\"credits\": n}", nil)
		return
	}
	if req.Credits <= 0 || req.Credits > maxGrant {
		respond.Error(c, http.StatusBadRequest, "invalid_credits", "credits must be between 1 and 1000", gin.H{"credits": req.Credits})
		return
	}
	desc := strings.TrimSpace(req.Description)
	if desc == "" {
		desc = "admin grant"
	}
	ctx := c.Request.Context()
	if err := h.ledger.RecordTransaction(ctx, userID, req.Credits, ledger.KindGrant, desc); err != nil {
		if errors.Is(err, ledger.ErrInvalidEntry) {
			respond.Error(c, http.StatusBadRequest, "invalid_credits", err.Error(), nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "ledger_unavailable", "could not record grant", nil)
		return
	}
	remaining, err := h.ledger.GetRemainingCredits(ctx, userID)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "ledger_unavailable", "could not read credits", nil)
		return
	}
	respond.Created(c, gin.H{"userId": userID, "granted": req.Credits, "remainingCredits": remaining})
}

func (h *adminHandler) resetSession(c *gin.Context) {
	userID, ok := userParam(c)
	if !ok {
		return
	}
	sess, err := h.sessions.Reset(c.Request.Context(), userID)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "session_unavailable", "could not reset session", nil)
		return
	}
	respond.OK(c, gin.H{"userId": userID, "state": sess.State, "epoch": sess.Epoch})
}

func (h *adminHandler) listDocuments(c *gin.Context) {
	userID, ok := userParam(c)
	if !ok {
		return
	}
	limit, err := queryInt(c, "limit", defaultDocLimit)
	if err != nil || limit <= 0 || limit > maxDocLimit {
		respond.Error(c, http.StatusBadRequest, "invalid_limit", "limit must be between 1 and 100", nil)
		return
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil || offset < 0 {
		respond.Error(c, http.StatusBadRequest, "invalid_offset", "offset must be zero or positive", nil)
		return
	}
	docs, err := h.documents.ListByUser(c.Request.Context(), userID, limit, offset)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "documents_unavailable", "could not list documents", nil)
		return
	}
	respond.OK(c, gin.H{
		"userId":    userID,
		"documents": documents.ToResponses(docs),
		"limit":     limit,
		"offset":    offset,
	})
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
