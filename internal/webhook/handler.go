package webhook

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"dilli-gateway/internal/automation"
	"dilli-gateway/internal/config"
	"dilli-gateway/internal/identity"
	"dilli-gateway/internal/logger"
	"dilli-gateway/internal/metrics"
	"dilli-gateway/internal/store"
	"dilli-gateway/internal/whatsapp"
	"dilli-gateway/internal/ws"
	"dilli-gateway/pkg/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// UserStore persists senders.
type UserStore interface {
	Ingest(ctx context.Context, seed store.Seed) (store.Result, error)
}

// Responder greets new users.
type Responder interface {
	SendIntro(ctx context.Context, to, locale string) error
}

// Publisher receives ingestion events for the operator stream.
type Publisher interface {
	Publish(eventType string, data interface{})
}

// Message outcomes, also used as metric labels.
const (
	outcomeProcessed = "processed"
	outcomeDuplicate = "duplicate"
	outcomeSkipped   = "skipped"
	outcomeFailed    = "failed"
)

// Summary counts what happened to each message of one payload.
type Summary struct {
	Processed  int
	Created    int
	Skipped    int
	Duplicates int
	Failed     int
}

type Handler struct {
	cfg       *config.Config
	hasher    *identity.Hasher
	users     UserStore
	responder Responder
	events    Publisher
	replies   *automation.Engine
	log       *zap.Logger
	metrics   *metrics.Metrics

	intros sync.WaitGroup
	now    func() time.Time
}

// NewHandler wires the webhook. hasher may be nil when WA_SALT is unset, in
// which case every POST fails with ErrConfiguration. responder and events
// are optional.
func NewHandler(cfg *config.Config, hasher *identity.Hasher, users UserStore, responder Responder, events Publisher, log *zap.Logger, m *metrics.Metrics) *Handler {
	return &Handler{
		cfg:       cfg,
		hasher:    hasher,
		users:     users,
		responder: responder,
		events:    events,
		log:       log,
		metrics:   m,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SetAutoReplies enables keyword replies for returning users.
func (h *Handler) SetAutoReplies(e *automation.Engine) {
	h.replies = e
}

// VerifyWebhook answers Meta's subscription handshake.
func (h *Handler) VerifyWebhook(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	expected := h.cfg.VerifyToken
	if mode == "subscribe" && expected != "" &&
		subtle.ConstantTimeCompare([]byte(token), []byte(expected)) == 1 {
		h.log.Info("webhook verified")
		h.count(http.MethodGet, "verified")
		c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(challenge))
		return
	}

	h.log.Warn("webhook verification rejected",
		zap.String("mode", mode),
		zap.String("client_ip", c.ClientIP()))
	h.count(http.MethodGet, "forbidden")
	c.AbortWithStatus(http.StatusForbidden)
}

// HandleMessage ingests a signed delivery.
func (h *Handler) HandleMessage(c *gin.Context) {
	start := time.Now()

	body, err := ReadBody(c, h.cfg.MaxBodyBytes)
	if errors.Is(err, ErrBodyTooLarge) {
		h.reject(c, http.StatusRequestEntityTooLarge, "too_large", "payload too large")
		return
	}
	if err != nil {
		h.log.Warn("read webhook body", zap.Error(err))
		h.reject(c, http.StatusBadRequest, "bad_request", "bad request")
		return
	}

	if err := VerifySignature(body, c.GetHeader(SignatureHeader), h.cfg.AppSecret); err != nil {
		h.log.Warn("webhook signature rejected", zap.String("client_ip", c.ClientIP()))
		h.reject(c, http.StatusForbidden, "forbidden", "invalid signature")
		return
	}

	payload, err := parsePayload(body)
	if err != nil {
		h.log.Warn("webhook payload rejected", zap.Error(err))
		h.reject(c, http.StatusBadRequest, "bad_json", "bad json")
		return
	}

	summary, err := h.Process(c.Request.Context(), payload)
	if h.metrics != nil {
		h.metrics.IngestLatency.Observe(time.Since(start).Seconds())
	}
	if errors.Is(err, ErrConfiguration) {
		h.log.Error("webhook misconfigured", zap.Error(err))
		h.reject(c, http.StatusInternalServerError, "misconfigured", "server misconfigured")
		return
	}

	fields := []zap.Field{
		zap.Int("processed", summary.Processed),
		zap.Int("created", summary.Created),
		zap.Int("skipped", summary.Skipped),
		zap.Int("duplicates", summary.Duplicates),
		zap.Int("failed", summary.Failed),
	}
	if summary.Failed > 0 {
		// The platform redelivers on 5xx; already claimed messages come back
		// as duplicates.
		h.log.Error("webhook stored partially", fields...)
		h.reject(c, http.StatusInternalServerError, "store_error", "storage unavailable")
		return
	}
	h.log.Info("webhook processed", fields...)

	h.count(http.MethodPost, "ok")
	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"processed":  summary.Processed,
		"skipped":    summary.Skipped,
		"duplicates": summary.Duplicates,
	})
}

func parsePayload(body []byte) (*models.WebhookPayload, error) {
	var payload models.WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if payload.Entry == nil {
		return nil, fmt.Errorf("%w: entry is missing", ErrValidation)
	}
	return &payload, nil
}

// Process walks entry -> changes -> value -> messages. Every message is handled
// on its own; only a configuration fault stops the walk.
func (h *Handler) Process(ctx context.Context, payload *models.WebhookPayload) (Summary, error) {
	var sum Summary
	if h.hasher == nil {
		return sum, fmt.Errorf("%w: %w", ErrConfiguration, identity.ErrMissingSalt)
	}

	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			for _, msg := range change.Value.Messages {
				outcome, created, err := h.processMessage(ctx, change.Value, msg)
				if errors.Is(err, ErrConfiguration) {
					return sum, err
				}
				if h.metrics != nil {
					h.metrics.MessagesProcessed.WithLabelValues(outcome).Inc()
				}
				switch outcome {
				case outcomeProcessed:
					sum.Processed++
				case outcomeDuplicate:
					sum.Duplicates++
				case outcomeSkipped:
					sum.Skipped++
				case outcomeFailed:
					sum.Failed++
				}
				if created {
					sum.Created++
				}
			}
		}
	}
	return sum, nil
}

func (h *Handler) processMessage(ctx context.Context, value models.Value, msg models.Message) (string, bool, error) {
	if msg.From == "" {
		err := &MessageError{MessageID: msg.ID, Err: errEmptySender}
		h.log.Warn("skipping message", zap.Error(err))
		return outcomeSkipped, false, err
	}

	hash, err := h.hasher.Hash(msg.From)
	switch {
	case errors.Is(err, identity.ErrMissingSalt):
		return outcomeFailed, false, fmt.Errorf("%w: %w", ErrConfiguration, err)
	case err != nil:
		merr := &MessageError{MessageID: msg.ID, Err: err}
		h.log.Warn("skipping message", zap.Error(merr))
		return outcomeSkipped, false, merr
	}

	locale := identity.DetectLocale(msg.Body())
	res, err := h.users.Ingest(ctx, store.Seed{
		WaIDHash:    hash,
		Last4:       identity.Last4(identity.NormalizeWaID(msg.From)),
		DisplayName: value.DisplayName(msg.From),
		Locale:      locale,
		MessageID:   msg.ID,
		SeenAt:      h.now(),
	})
	if err != nil {
		h.log.Error("store message",
			logger.HashField(hash),
			zap.String("message_id", msg.ID),
			zap.Error(err))
		return outcomeFailed, false, err
	}

	if res.Duplicate {
		h.log.Debug("duplicate message", logger.HashField(hash), zap.String("message_id", msg.ID))
		return outcomeDuplicate, false, nil
	}

	event := ws.EventUserSeen
	if res.Created {
		event = ws.EventUserCreated
		h.log.Info("user created", logger.HashField(hash), zap.String("locale", locale))
		h.sendIntro(msg.From, locale)
	} else if rule, ok := h.replies.Match(msg.Type, msg.Body()); ok && rule.Action == automation.ActionSendIntro {
		h.log.Info("auto reply", zap.String("rule", rule.Name), logger.HashField(hash))
		h.sendIntro(msg.From, res.User.Locale)
	}
	h.publish(event, res)
	return outcomeProcessed, res.Created, nil
}

// sendIntro greets a new user in the background. Failures never affect the
// webhook response.
func (h *Handler) sendIntro(to, locale string) {
	if h.responder == nil {
		return
	}
	h.intros.Add(1)
	go func() {
		defer h.intros.Done()
		timeout := h.cfg.IntroSendTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		status := "sent"
		err := h.responder.SendIntro(ctx, to, locale)
		switch {
		case errors.Is(err, whatsapp.ErrNotConfigured):
			status = "not_configured"
			h.log.Warn("intro not sent, whatsapp credentials missing")
		case err != nil:
			status = "failed"
			h.log.Warn("intro send failed", zap.Error(err))
		}
		if h.metrics != nil {
			h.metrics.IntroSends.WithLabelValues(status).Inc()
		}
	}()
}

// Wait blocks until pending intro sends finish or ctx is done.
func (h *Handler) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		h.intros.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Handler) publish(event string, res store.Result) {
	user := res.User
	if h.events == nil || user == nil {
		return
	}
	at := h.now()
	if user.LastSeen != nil {
		at = *user.LastSeen
	}
	h.events.Publish(event, ws.UserEvent{
		UserID: user.ID.String(),
		Locale: user.Locale,
		At:     at,
	})
}

func (h *Handler) reject(c *gin.Context, status int, outcome, detail string) {
	h.count(c.Request.Method, outcome)
	c.AbortWithStatusJSON(status, gin.H{"detail": detail})
}

func (h *Handler) count(method, outcome string) {
	if h.metrics != nil {
		h.metrics.WebhookRequests.WithLabelValues(method, outcome).Inc()
	}
}
