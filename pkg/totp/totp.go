// Package totp computes time-based one-time passwords (RFC 6238) from
// shared secrets stored in vault entries.
//
// The engine is pure and stateless: a Code is a function of the secret and
// the supplied clock reading only, so callers poll Compute as often as they
// need a live countdown.
package totp

import (
	"crypto/hmac"
	"crypto/sha1" //nolint:gosec // RFC 6238 mandates HMAC-SHA1 for interoperability
	"encoding/base32"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// StepSeconds is the TOTP time step.
	StepSeconds = 30

	// Digits is the length of generated codes.
	Digits = 6
)

// ErrInvalidSecret indicates the shared secret is empty or not valid base32.
var ErrInvalidSecret = errors.New("totp: invalid secret")

// Code is one generated one-time password together with its lifetime.
type Code struct {
	// Value is the zero-padded 6-digit code.
	Value string `json:"code"`

	// RemainingSeconds counts down to the next step boundary; it is
	// StepSeconds right after a boundary and 1 just before the next.
	RemainingSeconds int `json:"remaining_seconds"`
}

// Compute derives the one-time code for the given secret at the given time.
//
// Secrets are accepted in the loose forms authenticator apps export:
// upper or lower case, optional spaces or dashes as group separators, and
// optional trailing base32 padding. Anything that does not decode as RFC
// 4648 base32 after normalization fails with ErrInvalidSecret.
func Compute(secret string, now time.Time) (Code, error) {
	key, err := decodeSecret(secret)
	if err != nil {
		return Code{}, err
	}

	unix := now.Unix()
	counter := uint64(unix / StepSeconds) //nolint:gosec // vault clock is never pre-1970

	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], counter)

	mac := hmac.New(sha1.New, key)
	mac.Write(msg[:])
	sum := mac.Sum(nil)

	// Dynamic truncation per RFC 4226 §5.4.
	offset := sum[len(sum)-1] & 0x0f
	value := binary.BigEndian.Uint32(sum[offset:offset+4]) & 0x7fffffff
	code := value % 1_000_000

	remaining := StepSeconds - int(unix%StepSeconds)

	return Code{
		Value:            fmt.Sprintf("%06d", code),
		RemainingSeconds: remaining,
	}, nil
}

// Validate reports whether the secret would be accepted by Compute. It lets
// the entry store reject malformed secrets at write time instead of at the
// first code request.
func Validate(secret string) error {
	_, err := decodeSecret(secret)
	return err
}

// decodeSecret normalizes and base32-decodes a shared secret.
func decodeSecret(secret string) ([]byte, error) {
	normalized := strings.ToUpper(strings.TrimSpace(secret))
	normalized = strings.ReplaceAll(normalized, " ", "")
	normalized = strings.ReplaceAll(normalized, "-", "")
	normalized = strings.TrimRight(normalized, "=")

	if normalized == "" {
		return nil, ErrInvalidSecret
	}

	key, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(normalized)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidSecret, "not valid base32")
	}
	return key, nil
}
