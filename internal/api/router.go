package api

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"

	"dilli-gateway/internal/config"
	"dilli-gateway/internal/logger"
	"dilli-gateway/internal/throttle"
	"dilli-gateway/internal/webhook"
	"dilli-gateway/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Deps is everything the router mounts. Hub and Users are optional.
type Deps struct {
	Config   *config.Config
	Log      *zap.Logger
	Webhook  *webhook.Handler
	Limiter  *throttle.Limiter
	Health   *HealthHandler
	Users    UserFinder
	Hub      *ws.Hub
	Gatherer prometheus.Gatherer
}

func NewRouter(deps Deps) (*gin.Engine, error) {
	r := gin.New()
	if err := r.SetTrustedProxies(deps.Config.TrustedProxies); err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}
	r.Use(logger.GinMiddleware(deps.Log), gin.Recovery())

	// Webhook Routes
	hook := r.Group("/webhook", deps.Limiter.Middleware())
	{
		hook.GET("", deps.Webhook.VerifyWebhook)
		hook.POST("", deps.Webhook.HandleMessage)
	}

	r.GET("/healthz", deps.Health.Healthz)
	r.GET("/readyz", deps.Health.Readyz)

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	// Operator routes exist only when a token is configured.
	if deps.Config.AdminToken != "" {
		op := r.Group("", requireToken(deps.Config.AdminToken))
		if deps.Users != nil {
			users := NewUserHandler(deps.Users, deps.Log)
			op.GET("/api/users/:hash", users.GetUser)
		}
		if deps.Hub != nil {
			op.GET("/ws", deps.Hub.Handler())
		}
	}

	return r, nil
}

func requireToken(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		got, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "unauthorized"})
			return
		}
		c.Next()
	}
}
