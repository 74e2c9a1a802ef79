package kv

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUnavailable is returned (wrapped) by every Store implementation when the
// backing engine cannot serve a call: network errors, timeouts, closed pools.
var ErrUnavailable = errors.New("storage unavailable")

// Store is the key-value capability consumed by the session registry and the
// token denylist. Values are opaque strings; TTL is re-armed on every Set.
//
// A missing or expired key is reported as found == false with a nil error.
// Delete returns the number of keys that actually existed and were removed,
// which callers may rely on as a single-use gate.
type Store interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) (int64, error)
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// Replacer is an optional capability: overwrite a key only if it still exists.
// It reports whether the write happened.
type Replacer interface {
	Replace(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
}

// Counter is an optional capability: a fixed-window counter. Incr adds one
// to key and arms ttl only on the first hit of a window.
type Counter interface {
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

func unavailable(op string, err error) error {
	if errors.Is(err, ErrUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %s: %v", ErrUnavailable, op, err)
}

// likePattern escapes a prefix for a LIKE match using ESCAPE '!'.
func likePattern(prefix string) string {
	r := strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")
	return r.Replace(prefix) + "%"
}

func expiryMillis(now time.Time, ttl time.Duration) int64 {
	return now.Add(ttl).UnixMilli()
}
