package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dskvich/voice-relay-bot/pkg/api/handler"
	"github.com/dskvich/voice-relay-bot/pkg/api/middleware"
	"github.com/dskvich/voice-relay-bot/pkg/api/response"
)

const maxBodyBytes = 1 << 20

type Config struct {
	// Polling disables both webhook routes: a registered webhook makes getUpdates fail.
	Polling     bool
	WebhookPath string
	AdminToken  string
	RateLimit   int
	RateWindow  time.Duration
}

type Webhook interface {
	ReceiveUpdate(c *gin.Context)
	SetWebhook(c *gin.Context)
}

func NewRouter(cfg Config, webhook Webhook) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true

	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.NewRateLimiter(cfg.RateLimit, cfg.RateWindow).Handler())
	r.Use(middleware.LimitBody(maxBodyBytes))
	r.Use(middleware.Metrics())

	r.NoRoute(func(c *gin.Context) {
		response.WriteError(c, http.StatusNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		response.WriteError(c, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", handler.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if !cfg.Polling {
		r.POST("/set-webhook", middleware.AdminToken(cfg.AdminToken), webhook.SetWebhook)
		r.POST(webhookRoute(cfg.WebhookPath), webhook.ReceiveUpdate)
	}

	return r
}

func webhookRoute(path string) string {
	if strings.HasPrefix(path, "/") {
		return path
	}
	return "/" + path
}
