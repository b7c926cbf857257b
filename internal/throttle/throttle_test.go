package throttle

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"dilli-gateway/internal/config"
	"dilli-gateway/internal/metrics"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type failingStore struct{}

func (failingStore) Incr(context.Context, string, time.Duration) (int64, time.Duration, error) {
	return 0, 0, errors.New("connection refused")
}

func newRouter(l *Limiter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/webhook", l.Middleware(), func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	return r
}

func doRequest(r *gin.Engine, remote string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/webhook", nil)
	req.RemoteAddr = remote
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestMemoryStoreWindow(t *testing.T) {
	s := NewMemoryStore()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	ctx := context.Background()

	n, ttl, err := s.Incr(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, time.Minute, ttl)

	now = now.Add(20 * time.Second)
	n, ttl, _ = s.Incr(ctx, "k", time.Minute)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, 40*time.Second, ttl)

	n, _, _ = s.Incr(ctx, "other", time.Minute)
	assert.Equal(t, int64(1), n)

	now = now.Add(40 * time.Second)
	n, _, _ = s.Incr(ctx, "k", time.Minute)
	assert.Equal(t, int64(1), n, "window should have reset")

	now = now.Add(2 * time.Minute)
	assert.Equal(t, 0, s.Len())
}

func TestMemoryStoreConcurrentIncr(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	const workers, perWorker = 8, 50
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				_, _, _ = s.Incr(ctx, "shared", time.Minute)
			}
		}()
	}
	wg.Wait()

	n, _, err := s.Incr(ctx, "shared", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(workers*perWorker+1), n)
}

func TestRedisStoreWindow(t *testing.T) {
	mr := miniredis.RunT(t)
	client := DialRedis(RedisConfig{Addr: mr.Addr()})
	s := NewRedisStore(client)
	t.Cleanup(func() { _ = s.Close() })
	ctx := context.Background()

	require.NoError(t, s.Ping(ctx))

	for i := int64(1); i <= 3; i++ {
		n, ttl, err := s.Incr(ctx, "throttle:ip:1.2.3.4", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, i, n)
		assert.Greater(t, ttl, time.Duration(0))
		assert.LessOrEqual(t, ttl, time.Minute)
	}
	assert.Greater(t, mr.TTL("throttle:ip:1.2.3.4"), time.Duration(0))

	mr.FastForward(time.Minute + time.Second)
	n, _, err := s.Incr(ctx, "throttle:ip:1.2.3.4", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestRedisStoreRepairsMissingTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	require.NoError(t, mr.Set("throttle:ip:stale", "7"))
	s := NewRedisStore(DialRedis(RedisConfig{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = s.Close() })

	n, ttl, err := s.Incr(context.Background(), "throttle:ip:stale", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(8), n)
	assert.Equal(t, time.Minute, ttl)
	assert.Greater(t, mr.TTL("throttle:ip:stale"), time.Duration(0))
}

func TestRedisStoreError(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	s := NewRedisStore(DialRedis(RedisConfig{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = s.Close() })
	mr.Close()

	_, _, err = s.Incr(context.Background(), "k", time.Minute)
	assert.Error(t, err)
}

func TestThrottleCheck(t *testing.T) {
	s := NewMemoryStore()
	th := Throttle{Scope: "ip", Rate: config.Rate{Limit: 2, Window: time.Minute}}
	ctx := context.Background()

	d1, err := th.Check(ctx, s, "a")
	require.NoError(t, err)
	d2, _ := th.Check(ctx, s, "a")
	d3, _ := th.Check(ctx, s, "a")

	assert.True(t, d1.Allowed)
	assert.True(t, d2.Allowed)
	assert.False(t, d3.Allowed)
	assert.Equal(t, int64(3), d3.Count)
	assert.Greater(t, d3.RetryAfter, time.Duration(0))
}

func TestLimiterRejectsThe121stRequestFromOneIP(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg, "test")
	l := NewLimiter(NewMemoryStore(), zap.NewNop(), m,
		Throttle{Scope: "ip", Rate: config.Rate{Limit: 120, Window: time.Minute}, Key: ClientIP},
	)
	r := newRouter(l)

	for i := 1; i <= 120; i++ {
		rec := doRequest(r, "203.0.113.7:5555", nil)
		require.Equal(t, http.StatusOK, rec.Code, "request %d", i)
	}

	rec := doRequest(r, "203.0.113.7:5555", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.JSONEq(t, `{"detail":"rate limited"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ThrottleRejects.WithLabelValues("ip")))

	// Another caller still has its own budget.
	rec = doRequest(r, "198.51.100.1:5555", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLimiterThrottlesAreIndependent(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry(), "test")
	byHeader := func(c *gin.Context) string { return c.GetHeader("X-WA-Hash") }
	l := NewLimiter(NewMemoryStore(), zap.NewNop(), m,
		Throttle{Scope: "ip", Rate: config.Rate{Limit: 100, Window: time.Minute}, Key: ClientIP},
		Throttle{Scope: "wa_hash", Rate: config.Rate{Limit: 2, Window: time.Minute}, Key: byHeader},
	)
	r := newRouter(l)
	hdr := map[string]string{"X-WA-Hash": "abc"}

	assert.Equal(t, http.StatusOK, doRequest(r, "10.0.0.1:1", hdr).Code)
	assert.Equal(t, http.StatusOK, doRequest(r, "10.0.0.2:1", hdr).Code)
	// Fresh IP, but the identity is spent.
	assert.Equal(t, http.StatusTooManyRequests, doRequest(r, "10.0.0.3:1", hdr).Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ThrottleRejects.WithLabelValues("wa_hash")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ThrottleRejects.WithLabelValues("ip")))
}

func TestLimiterFailsOpenOnStoreError(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry(), "test")
	l := NewLimiter(failingStore{}, zap.NewNop(), m,
		Throttle{Scope: "ip", Rate: config.Rate{Limit: 1, Window: time.Minute}, Key: ClientIP},
	)
	r := newRouter(l)

	assert.Equal(t, http.StatusOK, doRequest(r, "10.0.0.1:1", nil).Code)
	assert.Equal(t, http.StatusOK, doRequest(r, "10.0.0.1:1", nil).Code)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ThrottleErrors.WithLabelValues("ip")))
}

func TestBucketKey(t *testing.T) {
	assert.Equal(t, "throttle:wa_hash:abc", BucketKey("wa_hash", "abc"))
}
