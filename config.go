package goSession

import (
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/session"
	"github.com/caarlos0/env/v11"
)

// Config holds every tunable of the engine. Build clones it, so mutating a
// Config after Build has no effect on the engine.
type Config struct {
	Session   SessionConfig
	Token     TokenConfig `envPrefix:"TOKEN_"`
	Cookie    CookieConfig
	Resolver  ResolverConfig
	Audit     AuditConfig     `envPrefix:"AUDIT_"`
	Metrics   MetricsConfig   `envPrefix:"METRICS_"`
	RateLimit RateLimitConfig `envPrefix:"RATE_LIMIT_"`
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls the session registry key space and lifetimes.
type SessionConfig struct {
	KeyPrefix    string        `env:"SESSION_KEY_PREFIX"`
	SessionTTL   time.Duration `env:"SESSION_TTL"`
	RefreshTTL   time.Duration `env:"REFRESH_TTL"`
	StoreTimeout time.Duration `env:"STORE_TIMEOUT"`
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig enables the signed-token strategy. Keys are never read from
// the environment; load them from a secret store and set them in code.
type TokenConfig struct {
	Enabled       bool          `env:"ENABLED"`
	TTL           time.Duration `env:"TTL"`
	SigningMethod string        `env:"SIGNING_METHOD"` // "ed25519" (default) or "hs256"
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string        `env:"ISSUER"`
	Audience      string        `env:"AUDIENCE"`
	Leeway        time.Duration `env:"LEEWAY"`
	KeyID         string        `env:"KEY_ID"`
	VerifyKeys    map[string][]byte
	// Denylist stores revoked token ids in the session store until expiry.
	Denylist bool `env:"DENYLIST"`
}

/*
====================================
COOKIE CONFIG
====================================
*/

// CookieConfig names the cookies and sets their attributes. Zero max-ages
// fall back to the session and refresh TTLs.
type CookieConfig struct {
	SessionName   string        `env:"SESSION_COOKIE_NAME"`
	RefreshName   string        `env:"REFRESH_COOKIE_NAME"`
	CSRFName      string        `env:"CSRF_COOKIE_NAME"`
	CSRFHeader    string        `env:"CSRF_HEADER_NAME"`
	Domain        string        `env:"COOKIE_DOMAIN"`
	Path          string        `env:"COOKIE_PATH"`
	Production    bool          `env:"PRODUCTION"`
	AccessMaxAge  time.Duration `env:"ACCESS_COOKIE_MAX_AGE"`
	RefreshMaxAge time.Duration `env:"REFRESH_COOKIE_MAX_AGE"`
}

/*
====================================
RESOLVER CONFIG
====================================
*/

// AuthMode selects where the resolver looks for credentials.
type AuthMode string

const (
	// ModeCookie reads the session and refresh ids from cookies.
	ModeCookie AuthMode = "cookie"
	// ModeToken reads a signed token from the Authorization header.
	ModeToken AuthMode = "token"
	// ModeHybrid tries cookies first and then the Authorization header.
	ModeHybrid AuthMode = "hybrid"
)

type ResolverConfig struct {
	Mode              AuthMode `env:"AUTH_MODE"`
	AutoRefresh       bool     `env:"AUTO_REFRESH"`
	TrustProxyHeaders bool     `env:"TRUST_PROXY_HEADERS"`
}

/*
====================================
AUDIT CONFIG
====================================
*/

type AuditConfig struct {
	Enabled    bool `env:"ENABLED"`
	BufferSize int  `env:"BUFFER_SIZE"`
	DropIfFull bool `env:"DROP_IF_FULL"`
}

/*
====================================
METRICS CONFIG
====================================
*/

type MetricsConfig struct {
	Enabled                 bool `env:"ENABLED"`
	EnableLatencyHistograms bool `env:"LATENCY_HISTOGRAMS"`
}
/*
====================================
RATE LIMIT CONFIG
====================================
*/

// RateLimitConfig throttles failed logins. It needs a store that implements
// kv.Counter (the memory and Redis stores do).
type RateLimitConfig struct {
	Enabled          bool          `env:"ENABLED"`
	MaxLoginAttempts int           `env:"MAX_LOGIN_ATTEMPTS"`
	LoginCooldown    time.Duration `env:"LOGIN_COOLDOWN"`
	EnableIPThrottle bool          `env:"IP_THROTTLE"`
}

// DefaultConfig returns the configuration Build uses when WithConfig is not
// called.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	sess := session.DefaultConfig()
	return Config{
		Session: SessionConfig{
			KeyPrefix:    sess.KeyPrefix,
			SessionTTL:   sess.SessionTTL,
			RefreshTTL:   sess.RefreshTTL,
			StoreTimeout: sess.StoreTimeout,
		},
		Token: TokenConfig{
			Enabled:       false,
			TTL:           15 * time.Minute,
			SigningMethod: "ed25519",
			Issuer:        "gosession",
		},
		Cookie: CookieConfig{
			SessionName: "sid",
			RefreshName: "rid",
			CSRFName:    "csrf-token",
			CSRFHeader:  "X-CSRF-Token",
			Path:        "/",
		},
		Resolver: ResolverConfig{
			Mode:        ModeCookie,
			AutoRefresh: true,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: false,
		},
		RateLimit: RateLimitConfig{
			Enabled:          false,
			MaxLoginAttempts: 5,
			LoginCooldown:    15 * time.Minute,
		},
	}
}

// LoadConfigFromEnv starts from the defaults and overrides fields from
// environment variables, each name prefixed with prefix (which may be empty).
func LoadConfigFromEnv(prefix string) (Config, error) {
	cfg := defaultConfig()
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: prefix}); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Token.PrivateKey = cloneBytes(cfg.Token.PrivateKey)
	out.Token.PublicKey = cloneBytes(cfg.Token.PublicKey)
	if cfg.Token.VerifyKeys != nil {
		out.Token.VerifyKeys = make(map[string][]byte, len(cfg.Token.VerifyKeys))
		for kid, key := range cfg.Token.VerifyKeys {
			out.Token.VerifyKeys[kid] = cloneBytes(key)
		}
	}
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func (c SessionConfig) registryConfig() session.Config {
	return session.Config{
		KeyPrefix:    c.KeyPrefix,
		SessionTTL:   c.SessionTTL,
		RefreshTTL:   c.RefreshTTL,
		StoreTimeout: c.StoreTimeout,
	}
}

func (c TokenConfig) managerConfig() jwt.Config {
	return jwt.Config{
		TTL:           c.TTL,
		SigningMethod: jwt.SigningMethod(strings.ToLower(c.SigningMethod)),
		PrivateKey:    cloneBytes(c.PrivateKey),
		PublicKey:     cloneBytes(c.PublicKey),
		Issuer:        c.Issuer,
		Audience:      c.Audience,
		Leeway:        c.Leeway,
		KeyID:         c.KeyID,
		VerifyKeys:    c.VerifyKeys,
	}
}

// Validate checks cross-field constraints. Build calls it; callers loading
// config from the environment may call it earlier to fail fast.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	if err := c.Session.registryConfig().Validate(); err != nil {
		return err
	}

	switch c.Resolver.Mode {
	case ModeCookie:
	case ModeToken, ModeHybrid:
		if !c.Token.Enabled {
			return errors.New("Resolver.Mode " + string(c.Resolver.Mode) + " requires Token.Enabled")
		}
	default:
		return errors.New("Resolver.Mode must be cookie, token or hybrid")
	}

	if c.Token.Enabled {
		if c.Token.TTL <= 0 {
			return errors.New("Token.TTL must be > 0")
		}
		switch strings.ToLower(c.Token.SigningMethod) {
		case "ed25519":
			if len(c.Token.PublicKey) == 0 && len(c.Token.VerifyKeys) == 0 {
				return errors.New("ed25519 requires a public key or verify key set")
			}
		case "hs256":
			if len(c.Token.PrivateKey) < 32 {
				return errors.New("hs256 requires a secret of at least 32 bytes")
			}
		default:
			return errors.New("Token.SigningMethod must be ed25519 or hs256")
		}
	}

	names := map[string]string{
		"Cookie.SessionName": c.Cookie.SessionName,
		"Cookie.RefreshName": c.Cookie.RefreshName,
		"Cookie.CSRFName":    c.Cookie.CSRFName,
	}
	seen := make(map[string]bool, len(names))
	for field, name := range names {
		if strings.TrimSpace(name) == "" {
			return errors.New(field + " must not be empty")
		}
		if seen[name] {
			return errors.New("cookie names must be distinct")
		}
		seen[name] = true
	}
	if strings.TrimSpace(c.Cookie.CSRFHeader) == "" {
		return errors.New("Cookie.CSRFHeader must not be empty")
	}
	if c.Cookie.Path == "" || !strings.HasPrefix(c.Cookie.Path, "/") {
		return errors.New("Cookie.Path must start with /")
	}
	if c.Cookie.AccessMaxAge < 0 || c.Cookie.RefreshMaxAge < 0 {
		return errors.New("cookie max-age must be >= 0")
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit.BufferSize must be > 0 when audit is enabled")
	}
	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return errors.New("Metrics.EnableLatencyHistograms requires Metrics.Enabled")
	}
	if c.RateLimit.Enabled {
		if c.RateLimit.MaxLoginAttempts <= 0 {
			return errors.New("RateLimit.MaxLoginAttempts must be > 0")
		}
		if c.RateLimit.LoginCooldown <= 0 {
			return errors.New("RateLimit.LoginCooldown must be > 0")
		}
	}

	return nil
}
