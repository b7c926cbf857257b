// Package identity turns WhatsApp sender ids into salted, one-way user keys
// and maps locale hints onto the supported locales.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

var (
	// ErrMissingSalt means the hashing salt is not configured. It is a
	// deployment fault, never a per-message one.
	ErrMissingSalt = errors.New("WA_SALT is not configured")
	// ErrInvalidIdentity means the sender id has no digits to hash.
	ErrInvalidIdentity = errors.New("sender id has no digits")
)

// HashLength is the hex length of every identity hash.
const HashLength = sha256.Size * 2

// Hasher derives stable user keys from phone-number-like sender ids.
type Hasher struct {
	salt string
}

// NewHasher fails closed when the salt is empty.
func NewHasher(salt string) (*Hasher, error) {
	if salt == "" {
		return nil, ErrMissingSalt
	}
	return &Hasher{salt: salt}, nil
}

// NormalizeWaID keeps only the digits of raw and drops leading zeros, so
// "+972 55-000-1234", "00972550001234" and "972550001234" agree.
func NormalizeWaID(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return strings.TrimLeft(b.String(), "0")
}

// Hash returns hex(sha256(normalized id + salt)).
func (h *Hasher) Hash(raw string) (string, error) {
	if h == nil || h.salt == "" {
		return "", ErrMissingSalt
	}
	norm := NormalizeWaID(raw)
	if norm == "" {
		return "", ErrInvalidIdentity
	}
	return h.hashNormalized(norm), nil
}

func (h *Hasher) hashNormalized(norm string) string {
	sum := sha256.Sum256([]byte(norm + h.salt))
	return hex.EncodeToString(sum[:])
}

// Last4 returns the display fragment kept for support lookups, or "" when the
// normalized id is shorter than four digits.
func Last4(norm string) string {
	if len(norm) < 4 {
		return ""
	}
	return norm[len(norm)-4:]
}
