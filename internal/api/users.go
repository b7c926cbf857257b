package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"dilli-gateway/internal/identity"
	"dilli-gateway/internal/logger"
	"dilli-gateway/internal/models"
	"dilli-gateway/internal/store"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// UserFinder looks users up by identity hash.
type UserFinder interface {
	FindByHash(ctx context.Context, waIDHash string) (*models.WAUser, error)
}

type UserHandler struct {
	users UserFinder
	log   *zap.Logger
}

func NewUserHandler(users UserFinder, log *zap.Logger) *UserHandler {
	return &UserHandler{users: users, log: log}
}

func (h *UserHandler) GetUser(c *gin.Context) {
	hash := strings.ToLower(c.Param("hash"))
	if len(hash) != identity.HashLength {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "hash must be 64 hex characters"})
		return
	}

	user, err := h.users.FindByHash(c.Request.Context(), hash)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"detail": "user not found"})
		return
	}
	if err != nil {
		h.log.Error("find user", logger.HashField(hash), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "lookup failed"})
		return
	}

	c.JSON(http.StatusOK, user)
}
