package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"cvbot-backend/internal/queue"
	"cvbot-backend/internal/shared/server/middleware"
	"cvbot-backend/internal/shared/server/respond"
	"cvbot-backend/internal/shared/telemetry"
	"cvbot-backend/internal/transport"
	"cvbot-backend/internal/transport/telegram"
	"cvbot-backend/internal/transport/whatsapp"
)

const maxWebhookBody = 1 << 20

// CallbackAcker answers Telegram callback queries.
type CallbackAcker interface {
	Ack(callbackID string)
}

type webhookHandler struct {
	dispatcher  queue.Dispatcher
	verifyToken string
	appSecret   string
	acker       CallbackAcker
}

func registerWhatsAppRoutes(r gin.IRoutes, h *webhookHandler) {
	r.GET("/webhook", h.verifyWhatsApp)
	r.POST("/webhook", h.receiveWhatsApp)
}

func registerTelegramRoutes(r gin.IRoutes, h *webhookHandler) {
	r.POST("/telegram/webhook", h.receiveTelegram)
}

func (h *webhookHandler) verifyWhatsApp(c *gin.Context) {
	challenge, ok := whatsapp.VerifyChallenge(
		c.Query("hub.mode"),
		c.Query("hub.verify_token"),
		c.Query("hub.challenge"),
		h.verifyToken,
	)
	if !ok {
		respond.Error(c, http.StatusForbidden, "forbidden", "verification failed", nil)
		return
	}
	c.String(http.StatusOK, challenge)
}

func readBody(c *gin.Context) ([]byte, bool) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody+1))
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_body", "could not read body", nil)
		return nil, false
	}
	if len(body) > maxWebhookBody {
		respond.Error(c, http.StatusRequestEntityTooLarge, "body_too_large", "webhook body too large", nil)
		return nil, false
	}
	return body, true
}

func (h *webhookHandler) receiveWhatsApp(c *gin.Context) {
	body, ok := readBody(c)
	if !ok {
		return
	}
	if !whatsapp.ValidSignature(h.appSecret, body, c.GetHeader("X-Hub-Signature-256")) {
		respond.Error(c, http.StatusUnauthorized, "invalid_signature", "signature mismatch", nil)
		return
	}
	events, err := whatsapp.ParseWebhook(body)
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_payload", "could not parse webhook", nil)
		return
	}
	for _, ev := range events {
		if !h.dispatch(c, ev) {
			return
		}
	}
	respond.Received(c, len(events))
}

func (h *webhookHandler) receiveTelegram(c *gin.Context) {
	body, ok := readBody(c)
	if !ok {
		return
	}
	update, err := telegram.DecodeUpdate(body)
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_payload", "could not parse update", nil)
		return
	}
	ev, err := telegram.ToEvent(update)
	if errors.Is(err, transport.ErrUnsupportedEvent) {
		respond.Received(c, 0)
		return
	}
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_payload", err.Error(), nil)
		return
	}
	if update.CallbackQuery != nil && h.acker != nil {
		h.acker.Ack(update.CallbackQuery.ID)
	}
	if !h.dispatch(c, ev) {
		return
	}
	respond.Received(c, 1)
}

// dispatch hands one event off. A failure answers 503 so the platform
// redelivers the whole notification.
func (h *webhookHandler) dispatch(c *gin.Context, ev transport.Event) bool {
	middleware.SetUserID(c, ev.Transport+":"+ev.From)
	c.Set("eventKind", string(ev.Kind))
	if err := h.dispatcher.Dispatch(c.Request.Context(), ev, middleware.RequestIDFromContext(c)); err != nil {
		telemetry.Error("webhook.dispatch_failed", map[string]any{
			"request_id": middleware.RequestIDFromContext(c),
			"user_id":    ev.From,
			"event_id":   ev.ID,
			"error":      err,
		})
		respond.Error(c, http.StatusServiceUnavailable, "dispatch_failed", "event not accepted", nil)
		return false
	}
	return true
}
