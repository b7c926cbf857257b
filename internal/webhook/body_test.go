package webhook

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"dilli-gateway/internal/identity"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testContext(method, body string) *gin.Context {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(method, "/webhook", strings.NewReader(body))
	c.Request.RemoteAddr = "203.0.113.9:4000"
	return c
}

func TestReadBodyCachesAndRestores(t *testing.T) {
	c := testContext(http.MethodPost, `{"entry":[]}`)

	first, err := ReadBody(c, 1024)
	require.NoError(t, err)
	second, err := ReadBody(c, 1024)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	rest, err := io.ReadAll(c.Request.Body)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(first, rest))
}

func TestReadBodyEnforcesCap(t *testing.T) {
	c := testContext(http.MethodPost, strings.Repeat("x", 11))

	_, err := ReadBody(c, 10)
	assert.ErrorIs(t, err, ErrBodyTooLarge)
	_, err = ReadBody(c, 10)
	assert.ErrorIs(t, err, ErrBodyTooLarge)

	c = testContext(http.MethodPost, strings.Repeat("x", 10))
	body, err := ReadBody(c, 10)
	require.NoError(t, err)
	assert.Len(t, body, 10)
}

func TestIdentityKey(t *testing.T) {
	hasher, err := identity.NewHasher(testSalt)
	require.NoError(t, err)
	key := IdentityKey(hasher, 1024)
	senderHash, _ := hasher.Hash("972550001111")

	t.Run("header wins", func(t *testing.T) {
		c := testContext(http.MethodPost, `{"entry":[]}`)
		c.Request.Header.Set(HashHeader, "ABCDEF12")
		assert.Equal(t, "abcdef12", key(c))
	})

	t.Run("malformed header is ignored", func(t *testing.T) {
		c := testContext(http.MethodGet, "")
		c.Request.Header.Set(HashHeader, "not hex at all")
		assert.Equal(t, "203.0.113.9", key(c))
	})

	t.Run("first sender in body", func(t *testing.T) {
		body := `{"entry":[{"changes":[{"value":{"messages":[{"from":"","id":"a"},{"from":"972550001111","id":"b"}]}}]}]}`
		c := testContext(http.MethodPost, body)
		assert.Equal(t, senderHash, key(c))

		// Downstream handlers still see the whole body.
		rest, err := io.ReadAll(c.Request.Body)
		require.NoError(t, err)
		assert.Equal(t, body, string(rest))
	})

	t.Run("falls back to client ip", func(t *testing.T) {
		c := testContext(http.MethodPost, "garbage")
		assert.Equal(t, "203.0.113.9", key(c))
	})
}
