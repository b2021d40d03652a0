package handlers

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"mines-predictor-bot/internal/logging"
	"mines-predictor-bot/internal/telegram"
)

const headerWebhookSecret = "X-Telegram-Bot-Api-Secret-Token"

type WebhookHandler struct {
	events telegram.EventHandler
	secret string
	log    logging.Logger
}

func NewWebhookHandler(events telegram.EventHandler, secret string, log logging.Logger) *WebhookHandler {
	return &WebhookHandler{events: events, secret: secret, log: log}
}

// HandleUpdate answers 200 for every authentic update, processed or not, so
// Telegram does not redeliver it.
func (h *WebhookHandler) HandleUpdate(c *gin.Context) {
	if h.secret != "" {
		got := c.GetHeader(headerWebhookSecret)
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) != 1 {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid webhook secret"})
			return
		}
	}

	var update tgbotapi.Update
	if err := c.ShouldBindJSON(&update); err != nil {
		h.log.Warn(c.Request.Context(), "malformed update", "error", err)
		c.String(http.StatusOK, "OK")
		return
	}

	telegram.Dispatch(c.Request.Context(), h.events, update, h.log)

	c.String(http.StatusOK, "OK")
}
