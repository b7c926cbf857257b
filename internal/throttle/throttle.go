// Package throttle implements fixed-window request limits over a shared
// counting store.
package throttle

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"dilli-gateway/internal/config"
	"dilli-gateway/internal/metrics"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrRateLimited is returned when a throttle's budget is exhausted.
var ErrRateLimited = errors.New("rate limited")

// Store counts requests per key. Incr must be atomic across concurrent
// callers: it adds one to key, starts a window of the given length if the key
// is new, and returns the new count and the time left in the window.
type Store interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

// KeyFunc extracts the bucket identity for a request.
type KeyFunc func(c *gin.Context) string

type Throttle struct {
	Scope string
	Rate  config.Rate
	Key   KeyFunc
}

// Decision is the outcome of one throttle for one request.
type Decision struct {
	Scope      string
	Allowed    bool
	Count      int64
	RetryAfter time.Duration
}

// Check counts the request against ident's bucket.
func (t Throttle) Check(ctx context.Context, store Store, ident string) (Decision, error) {
	count, ttl, err := store.Incr(ctx, BucketKey(t.Scope, ident), t.Rate.Window)
	if err != nil {
		return Decision{Scope: t.Scope, Allowed: true}, err
	}
	d := Decision{Scope: t.Scope, Count: count, Allowed: count <= int64(t.Rate.Limit)}
	if !d.Allowed {
		d.RetryAfter = ttl
		if d.RetryAfter <= 0 {
			d.RetryAfter = t.Rate.Window
		}
	}
	return d, nil
}

// BucketKey namespaces ident by scope.
func BucketKey(scope, ident string) string {
	return "throttle:" + scope + ":" + ident
}

// ClientIP keys requests by the caller address gin resolved, honoring the
// engine's trusted proxies.
func ClientIP(c *gin.Context) string {
	if ip := c.ClientIP(); ip != "" {
		return ip
	}
	return "unknown"
}

// Limiter runs every throttle on each request; any one over budget rejects.
type Limiter struct {
	store     Store
	throttles []Throttle
	log       *zap.Logger
	metrics   *metrics.Metrics
}

func NewLimiter(store Store, log *zap.Logger, m *metrics.Metrics, throttles ...Throttle) *Limiter {
	return &Limiter{store: store, throttles: throttles, log: log, metrics: m}
}

// Evaluate checks all throttles independently. Store failures let the request
// through and are logged: a Redis outage must not stop ingestion.
func (l *Limiter) Evaluate(c *gin.Context) ([]Decision, error) {
	decisions := make([]Decision, 0, len(l.throttles))
	var limited bool
	for _, t := range l.throttles {
		d, err := t.Check(c.Request.Context(), l.store, t.Key(c))
		if err != nil {
			l.log.Warn("throttle store failed, allowing request",
				zap.String("scope", t.Scope), zap.Error(err))
			if l.metrics != nil {
				l.metrics.ThrottleErrors.WithLabelValues(t.Scope).Inc()
			}
		}
		if !d.Allowed {
			limited = true
			if l.metrics != nil {
				l.metrics.ThrottleRejects.WithLabelValues(t.Scope).Inc()
			}
		}
		decisions = append(decisions, d)
	}
	if limited {
		return decisions, ErrRateLimited
	}
	return decisions, nil
}

// Middleware rejects over-budget requests with 429 before any handler runs.
func (l *Limiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		decisions, err := l.Evaluate(c)
		if err == nil {
			c.Next()
			return
		}

		var wait time.Duration
		var scopes []string
		for _, d := range decisions {
			if !d.Allowed {
				scopes = append(scopes, d.Scope)
				if d.RetryAfter > wait {
					wait = d.RetryAfter
				}
			}
		}
		l.log.Warn("request throttled",
			zap.Strings("scopes", scopes),
			zap.String("client_ip", ClientIP(c)),
			zap.Duration("retry_after", wait))

		c.Header("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"detail": "rate limited"})
	}
}
