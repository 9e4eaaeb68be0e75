package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/dskvich/voice-relay-bot/pkg/api/response"
	"github.com/dskvich/voice-relay-bot/pkg/logger"
)

const (
	errWebhookDomainMissing   = "WEBHOOK_DOMAIN not configured"
	errUpdateQueueUnavailable = "update queue unavailable"
)

type WebhookRegistrar interface {
	SetWebhook(ctx context.Context, url string) error
}

type webhook struct {
	registrar WebhookRegistrar
	url       string
	updates   chan<- tgbotapi.Update
	stopped   <-chan struct{}
}

// NewWebhook serves the Telegram webhook endpoint and its registration. url is
// empty when no public domain is configured. Once stopped is closed updates are
// refused so Telegram redelivers them later.
func NewWebhook(registrar WebhookRegistrar, url string, updates chan<- tgbotapi.Update, stopped <-chan struct{}) *webhook {
	return &webhook{registrar: registrar, url: url, updates: updates, stopped: stopped}
}

// ReceiveUpdate queues the update for the listener and acknowledges it right away.
func (w *webhook) ReceiveUpdate(c *gin.Context) {
	var update tgbotapi.Update
	if err := c.ShouldBindJSON(&update); err != nil {
		slog.WarnContext(c.Request.Context(), "binding update", logger.Err(err))
		response.WriteError(c, http.StatusBadRequest, "invalid update")
		return
	}

	select {
	case <-w.stopped:
		response.WriteError(c, http.StatusServiceUnavailable, errUpdateQueueUnavailable)
		return
	default:
	}

	select {
	case w.updates <- update:
		response.WriteSuccess(c, http.StatusOK, gin.H{"ok": true})
	case <-w.stopped:
		response.WriteError(c, http.StatusServiceUnavailable, errUpdateQueueUnavailable)
	case <-c.Request.Context().Done():
		response.WriteError(c, http.StatusServiceUnavailable, errUpdateQueueUnavailable)
	}
}

func (w *webhook) SetWebhook(c *gin.Context) {
	if w.url == "" {
		response.WriteError(c, http.StatusBadRequest, errWebhookDomainMissing)
		return
	}

	if err := w.registrar.SetWebhook(c.Request.Context(), w.url); err != nil {
		slog.ErrorContext(c.Request.Context(), "setting webhook", logger.Err(err))
		response.WriteError(c, http.StatusInternalServerError, err.Error())
		return
	}

	response.WriteSuccess(c, http.StatusOK, gin.H{"ok": true})
}

func Health(c *gin.Context) {
	response.WriteSuccess(c, http.StatusOK, gin.H{"status": "ok"})
}
