package webhook

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"dilli-gateway/internal/identity"
	"dilli-gateway/internal/throttle"
	"dilli-gateway/pkg/models"

	"github.com/gin-gonic/gin"
)

// HashHeader lets a trusted caller name the identity to throttle by.
const HashHeader = "X-WA-Hash"

const bodyKey = "webhook.body"

type cachedBody struct {
	data []byte
	err  error
}

// ReadBody reads the request body once, up to max bytes, and caches it on the
// context so middleware and handlers see the same bytes. The request body is
// replaced with a fresh reader over the cached copy.
func ReadBody(c *gin.Context, max int64) ([]byte, error) {
	if v, ok := c.Get(bodyKey); ok {
		cb := v.(cachedBody)
		return cb.data, cb.err
	}

	var cb cachedBody
	if c.Request.Body != nil && c.Request.Body != http.NoBody {
		data, err := io.ReadAll(io.LimitReader(c.Request.Body, max+1))
		switch {
		case err != nil:
			cb.err = err
		case int64(len(data)) > max:
			cb.err = ErrBodyTooLarge
		default:
			cb.data = data
		}
	}
	c.Set(bodyKey, cb)
	c.Request.Body = io.NopCloser(bytes.NewReader(cb.data))
	return cb.data, cb.err
}

// IdentityKey keys the per-user throttle: a well-formed X-WA-Hash header
// wins, then the hash of the first sender in the body, then the client IP.
func IdentityKey(hasher *identity.Hasher, max int64) throttle.KeyFunc {
	return func(c *gin.Context) string {
		if h := strings.ToLower(strings.TrimSpace(c.GetHeader(HashHeader))); isHashKey(h) {
			return h
		}
		if c.Request.Method == http.MethodPost && hasher != nil {
			if body, err := ReadBody(c, max); err == nil && len(body) > 0 {
				var payload models.WebhookPayload
				if json.Unmarshal(body, &payload) == nil {
					for _, from := range payload.Senders() {
						if hash, err := hasher.Hash(from); err == nil {
							return hash
						}
					}
				}
			}
		}
		return throttle.ClientIP(c)
	}
}

func isHashKey(s string) bool {
	if s == "" || len(s) > identity.HashLength {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
