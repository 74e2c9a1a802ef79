package rate

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/MrEthical07/goSession/kv"
)

// Config holds login throttle tuning parameters.
type Config struct {
	KeyPrefix        string
	MaxLoginAttempts int
	LoginCooldown    time.Duration
	EnableIPThrottle bool
	// Timeout bounds every store call. Zero leaves the caller's deadline.
	Timeout time.Duration
}

// Store is what the limiter needs from the credential store: plain reads and
// deletes plus the fixed-window counter.
type Store interface {
	kv.Store
	kv.Counter
}

// Limiter enforces per-identifier and per-IP budgets for failed logins.
type Limiter struct {
	store  Store
	config Config
}

// New creates a Limiter. A nil Limiter allows everything.
func New(store Store, cfg Config) *Limiter {
	return &Limiter{store: store, config: cfg}
}

// CheckLogin returns ErrRateLimited when the identifier or, with IP
// throttling on, the client IP has used up its budget of failed attempts.
func (l *Limiter) CheckLogin(ctx context.Context, identifier, ip string) error {
	if l == nil {
		return nil
	}
	if err := l.checkCounter(ctx, l.loginUserKey(identifier)); err != nil {
		return err
	}
	if l.config.EnableIPThrottle && ip != "" {
		return l.checkCounter(ctx, l.loginIPKey(ip))
	}
	return nil
}

// FailLogin records a failed attempt. The first failure opens a window of
// LoginCooldown; the counters reset when it closes.
func (l *Limiter) FailLogin(ctx context.Context, identifier, ip string) error {
	if l == nil {
		return nil
	}
	ctx, cancel := l.bound(ctx)
	defer cancel()
	if _, err := l.store.Incr(ctx, l.loginUserKey(identifier), l.config.LoginCooldown); err != nil {
		return err
	}
	if l.config.EnableIPThrottle && ip != "" {
		if _, err := l.store.Incr(ctx, l.loginIPKey(ip), l.config.LoginCooldown); err != nil {
			return err
		}
	}
	return nil
}

// ResetLogin clears the identifier counter after a successful login. The IP
// counter is left alone so one valid account cannot unlock an IP that is
// spraying others.
func (l *Limiter) ResetLogin(ctx context.Context, identifier string) error {
	if l == nil {
		return nil
	}
	ctx, cancel := l.bound(ctx)
	defer cancel()
	_, err := l.store.Delete(ctx, l.loginUserKey(identifier))
	return err
}

// LoginAttempts returns the failed attempts recorded for identifier in the
// current window.
func (l *Limiter) LoginAttempts(ctx context.Context, identifier string) (int, error) {
	if l == nil {
		return 0, nil
	}
	return l.count(ctx, l.loginUserKey(identifier))
}

func (l *Limiter) checkCounter(ctx context.Context, key string) error {
	n, err := l.count(ctx, key)
	if err != nil {
		return err
	}
	if n >= l.config.MaxLoginAttempts {
		return ErrRateLimited
	}
	return nil
}

func (l *Limiter) count(ctx context.Context, key string) (int, error) {
	ctx, cancel := l.bound(ctx)
	defer cancel()
	v, found, err := l.store.Get(ctx, key)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, errors.New("rate: corrupt counter")
	}
	return n, nil
}

func (l *Limiter) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if l.config.Timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, l.config.Timeout)
}

func (l *Limiter) loginUserKey(identifier string) string {
	return l.config.KeyPrefix + "ratelimit:login:" + identifier
}

func (l *Limiter) loginIPKey(ip string) string {
	return l.config.KeyPrefix + "ratelimit:ip:" + ip
}
