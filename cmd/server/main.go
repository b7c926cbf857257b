package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dilli-gateway/internal/api"
	"dilli-gateway/internal/automation"
	"dilli-gateway/internal/config"
	"dilli-gateway/internal/database"
	"dilli-gateway/internal/identity"
	"dilli-gateway/internal/logger"
	"dilli-gateway/internal/metrics"
	"dilli-gateway/internal/store"
	"dilli-gateway/internal/throttle"
	"dilli-gateway/internal/webhook"
	"dilli-gateway/internal/whatsapp"
	"dilli-gateway/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg := config.LoadConfig()
	log := logger.Init(cfg.AppEnv, cfg.LogLevel, cfg.LogFormat)
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := run(cfg, log); err != nil {
		log.Error("server stopped", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg, log.Named("database"))
	if err != nil {
		return err
	}
	defer database.Close(db)
	if err := database.Migrate(db); err != nil {
		return err
	}

	hasher, err := identity.NewHasher(cfg.WASalt)
	if err != nil {
		return err
	}
	ipRate, err := config.ParseRate(cfg.ThrottleIP)
	if err != nil {
		return err
	}
	hashRate, err := config.ParseRate(cfg.ThrottleWaHash)
	if err != nil {
		return err
	}

	m := metrics.New(prometheus.DefaultRegisterer, cfg.MetricsNS)
	users := store.NewUserStore(db)
	checks := map[string]api.Check{"database": users.Ping}

	var counters throttle.Store
	if cfg.RedisAddr != "" {
		rs := throttle.NewRedisStore(throttle.DialRedis(throttle.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}))
		defer rs.Close()
		if err := rs.Ping(ctx); err != nil {
			log.Warn("redis unavailable at startup, limiter fails open", zap.Error(err))
		}
		checks["redis"] = rs.Ping
		counters = rs
	} else {
		log.Info("REDIS_ADDR not set, using in-process rate limit counters")
		counters = throttle.NewMemoryStore()
	}

	limiter := throttle.NewLimiter(counters, log.Named("throttle"), m,
		throttle.Throttle{Scope: "ip", Rate: ipRate, Key: throttle.ClientIP},
		throttle.Throttle{Scope: "wa_hash", Rate: hashRate, Key: webhook.IdentityKey(hasher, cfg.MaxBodyBytes)},
	)

	hub := ws.NewHub(log.Named("ws"))
	responder := whatsapp.NewClient(cfg)
	hook := webhook.NewHandler(cfg, hasher, users, responder, hub, log.Named("webhook"), m)
	hook.SetAutoReplies(automation.NewEngine(log.Named("automation")))

	router, err := api.NewRouter(api.Deps{
		Config:  cfg,
		Log:     log.Named("http"),
		Webhook: hook,
		Limiter: limiter,
		Health:  api.NewHealthHandler(cfg, checks, log.Named("health")),
		Users:   users,
		Hub:     hub,
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return hub.Run(gctx)
	})
	g.Go(func() error {
		log.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.AppEnv))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("http shutdown", zap.Error(err))
		}
		if err := hook.Wait(shutdownCtx); err != nil {
			log.Warn("pending intro sends abandoned", zap.Error(err))
		}
		return nil
	})

	return g.Wait()
}
