package webhook

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSignatureRoundTrip(t *testing.T) {
	body := []byte(`{"object":"whatsapp_business_account","entry":[]}`)
	sig := Sign(body, "s3cret")

	assert.True(t, strings.HasPrefix(sig, "sha256="))
	assert.NoError(t, VerifySignature(body, sig, "s3cret"))
	assert.NoError(t, VerifySignature(body, "sha256="+strings.ToUpper(strings.TrimPrefix(sig, "sha256=")), "s3cret"))
}

func TestSignatureRejectsTampering(t *testing.T) {
	body := []byte(`{"entry":[{"id":"1"}]}`)
	sig := Sign(body, "s3cret")

	flipped := append([]byte(nil), body...)
	flipped[3] ^= 0x01
	assert.ErrorIs(t, VerifySignature(flipped, sig, "s3cret"), ErrAuthentication)

	digest := []byte(sig)
	last := len(digest) - 1
	if digest[last] == '0' {
		digest[last] = '1'
	} else {
		digest[last] = '0'
	}
	assert.ErrorIs(t, VerifySignature(body, string(digest), "s3cret"), ErrAuthentication)
}

func TestSignatureRejectsMalformedHeaders(t *testing.T) {
	body := []byte("{}")
	good := Sign(body, "s3cret")

	cases := map[string]struct {
		header string
		secret string
	}{
		"missing header":   {"", "s3cret"},
		"no prefix":        {strings.TrimPrefix(good, "sha256="), "s3cret"},
		"sha1 prefix":      {"sha1=" + strings.TrimPrefix(good, "sha256="), "s3cret"},
		"not hex":          {"sha256=zzzz", "s3cret"},
		"short digest":     {good[:20], "s3cret"},
		"empty secret":     {Sign(body, ""), ""},
		"different secret": {good, "other"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, VerifySignature(body, tc.header, tc.secret), ErrAuthentication)
		})
	}
}
