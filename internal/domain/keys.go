package domain

import "time"

// KeyErrorCode enumerates Key Validator outcomes (§4.5).
type KeyErrorCode string

const (
	KeyErrInvalid            KeyErrorCode = "INVALID_KEY"
	KeyErrInsufficientPerms  KeyErrorCode = "INSUFFICIENT_PERMISSIONS"
	KeyErrRateLimited        KeyErrorCode = "RATE_LIMITED"
	KeyErrNetwork            KeyErrorCode = "NETWORK_ERROR"
	KeyErrValidationFailed   KeyErrorCode = "VALIDATION_FAILED"
)

// KeyValidation is the short-lived cache row keyed by a secure hash of the
// candidate key; the key itself is never persisted.
type KeyValidation struct {
	KeyHash     string
	IsValid     bool
	ModelCount  int
	ErrorCode   *KeyErrorCode
	ValidatedAt time.Time
	ExpiresAt   time.Time
}

// Fresh reports whether the cached verdict is still inside its 1-hour
// window, per the invariant "a lookup is a cache hit only while
// expires_at > now."
func (k KeyValidation) Fresh(now time.Time) bool {
	return now.Before(k.ExpiresAt)
}

// ValidationTTL is the fixed expiry window for a KeyValidation row.
const ValidationTTL = time.Hour

// PoolKey is in-memory-only credential state tracked by the API-Key Pool.
type PoolKey struct {
	Key             string
	Priority        int
	LastUsed        time.Time
	RateLimitedUntil *time.Time
	SuccessCount    int64
	ErrorCount      int64

	// CurrentWeight is smooth-weighted-round-robin scratch state private to
	// the key pool; never surfaced in PoolKeyStats.
	CurrentWeight int
}

// Selectable reports whether the key may be handed out by next().
func (k PoolKey) Selectable(now time.Time) bool {
	return k.RateLimitedUntil == nil || !k.RateLimitedUntil.After(now)
}

// Prefix returns a short, loggable prefix of the key, never the full
// secret (§4.4 "the raw key replaced by a short prefix").
func (k PoolKey) Prefix() string {
	const n = 8
	if len(k.Key) <= n {
		return k.Key
	}
	return k.Key[:n] + "..."
}

// PoolKeyStats is the observability view returned by stats().
type PoolKeyStats struct {
	Prefix           string
	Priority         int
	LastUsed         time.Time
	RateLimitedUntil *time.Time
	SuccessCount     int64
	ErrorCount       int64
}
