package api

import (
	"context"
	"net/http"
	"time"

	"dilli-gateway/internal/config"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Check reports whether one dependency is usable.
type Check func(ctx context.Context) error

type HealthHandler struct {
	cfg    *config.Config
	checks map[string]Check
	log    *zap.Logger
}

// NewHealthHandler takes named dependency checks, e.g. "database" and "redis".
func NewHealthHandler(cfg *config.Config, checks map[string]Check, log *zap.Logger) *HealthHandler {
	return &HealthHandler{cfg: cfg, checks: checks, log: log}
}

func (h *HealthHandler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Readyz fails when configuration is invalid or any dependency check fails.
// Error details go to the log, not the response.
func (h *HealthHandler) Readyz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	results := gin.H{}
	ready := true

	if err := h.cfg.Validate(); err != nil {
		h.log.Warn("readiness: configuration invalid", zap.Error(err))
		results["config"] = "invalid"
		ready = false
	} else {
		results["config"] = "ok"
	}

	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			h.log.Warn("readiness check failed", zap.String("check", name), zap.Error(err))
			results[name] = "down"
			ready = false
			continue
		}
		results[name] = "ok"
	}

	if !ready {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "checks": results})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "checks": results})
}
