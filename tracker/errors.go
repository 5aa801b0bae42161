package tracker

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized covers every credential failure: absent, malformed,
	// expired, or revoked after detected replay. Callers surface all of
	// them identically so an attacker cannot distinguish "expired" from
	// "revoked"; the wrapped reason is for internal logs only.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden means the caller is authenticated but lacks access to
	// the entity.
	ErrForbidden = errors.New("forbidden")
	// ErrEmailTaken is returned by Register when the email is in use.
	ErrEmailTaken = errors.New("email already registered")
)

func unauthorized(reason string) error {
	return fmt.Errorf("%w: %s", ErrUnauthorized, reason)
}
