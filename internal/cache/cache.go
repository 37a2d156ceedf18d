// Package cache holds the short-lived auth and idempotency state:
// email verification OTPs, password-reset tokens and processed
// webhook event ids. Everything expires by TTL.
package cache

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("cache: key not found")

type Store interface {
	// Set stores value under key for ttl, overwriting any previous value.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// Get returns the value or ErrNotFound when missing/expired.
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	// SetNX stores the value only when the key is absent and reports
	// whether it was stored. Used for webhook event dedupe.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
}
