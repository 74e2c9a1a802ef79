package jwt

import (
	"context"
	"time"

	"github.com/MrEthical07/goSession/kv"
)

// Denylist records revoked token ids until the token would have expired
// anyway. Without one, signed tokens cannot be revoked early.
type Denylist interface {
	Deny(ctx context.Context, jti string, until time.Time) error
	IsDenied(ctx context.Context, jti string) (bool, error)
}

// KVDenylist stores denied ids as {prefix}denylist:{jti} in a kv.Store.
// Entries expire with the token, so the set never outgrows live tokens.
type KVDenylist struct {
	store   kv.Store
	prefix  string
	timeout time.Duration
	now     func() time.Time
}

// NewKVDenylist binds a denylist to store. timeout bounds each store call.
func NewKVDenylist(store kv.Store, prefix string, timeout time.Duration) *KVDenylist {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &KVDenylist{store: store, prefix: prefix, timeout: timeout, now: time.Now}
}

func (d *KVDenylist) key(jti string) string {
	return d.prefix + "denylist:" + jti
}

// Deny blocks jti until the given instant. Already-expired tokens are skipped.
func (d *KVDenylist) Deny(ctx context.Context, jti string, until time.Time) error {
	ttl := until.Sub(d.now())
	if jti == "" || ttl <= 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	return d.store.Set(ctx, d.key(jti), "1", ttl)
}

// IsDenied reports whether jti has been revoked.
func (d *KVDenylist) IsDenied(ctx context.Context, jti string) (bool, error) {
	if jti == "" {
		return false, nil
	}
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	_, ok, err := d.store.Get(ctx, d.key(jti))
	return ok, err
}
