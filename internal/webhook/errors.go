package webhook

import (
	"errors"
	"fmt"

	"dilli-gateway/internal/throttle"
)

var (
	// ErrConfiguration means the deployment is missing a secret or the salt.
	// It aborts the request with 500 and fails readiness.
	ErrConfiguration = errors.New("webhook misconfigured")
	// ErrAuthentication covers every signature failure. Callers never learn
	// which check failed.
	ErrAuthentication = errors.New("invalid signature")
	// ErrValidation means the body is not a webhook payload.
	ErrValidation = errors.New("bad json")
	// ErrBodyTooLarge means the body exceeds the configured cap.
	ErrBodyTooLarge = errors.New("request body too large")
	ErrRateLimited  = throttle.ErrRateLimited

	errEmptySender = errors.New("message has no sender")
)

// MessageError is a fault confined to one message. The message is skipped
// and the rest of the payload is still processed.
type MessageError struct {
	MessageID string
	Err       error
}

func (e *MessageError) Error() string {
	return fmt.Sprintf("message %s: %v", e.MessageID, e.Err)
}

func (e *MessageError) Unwrap() error {
	return e.Err
}
