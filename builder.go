package goSession

import (
	"errors"
	"log/slog"

	"github.com/MrEthical07/goSession/device"
	internalaudit "github.com/MrEthical07/goSession/internal/audit"
	"github.com/MrEthical07/goSession/internal/flows"
	"github.com/MrEthical07/goSession/internal/rate"
	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/kv"
	"github.com/MrEthical07/goSession/session"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an Engine. Configure it during initialization, call
// Build once, and discard it.
type Builder struct {
	config Config
	store  kv.Store

	users     UserValidator
	auditSink AuditSink
	logger    *slog.Logger
	ids       session.IDGenerator
	devices   DeviceDetector

	built bool
}

// New starts a builder from DefaultConfig.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithStore sets the credential store. Any kv.Store works; Redis, SQL and
// in-memory implementations ship in package kv.
func (b *Builder) WithStore(store kv.Store) *Builder {
	b.store = store
	return b
}

// WithRedis is shorthand for WithStore(kv.NewRedisStore(client)).
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	if client != nil {
		b.store = kv.NewRedisStore(client)
	}
	return b
}

// WithUserValidator sets the login credential check. Without one, Login
// returns ErrUnsupportedOperation; resolution still works.
func (b *Builder) WithUserValidator(users UserValidator) *Builder {
	b.users = users
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithIDGenerator overrides the UUIDv4 credential id generator.
func (b *Builder) WithIDGenerator(ids session.IDGenerator) *Builder {
	b.ids = ids
	return b
}

// WithDeviceDetector overrides the default User-Agent-only detector, for
// example with one backed by a GeoIP database.
func (b *Builder) WithDeviceDetector(devices DeviceDetector) *Builder {
	b.devices = devices
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the engine. A builder can be
// built only once.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.store == nil {
		return nil, errors.New("credential store required")
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	// -------- SESSION REGISTRY --------
	regOpts := []session.Option{session.WithLogger(logger)}
	if b.ids != nil {
		regOpts = append(regOpts, session.WithIDGenerator(b.ids))
	}
	registry, err := session.NewRegistry(b.store, cfg.Session.registryConfig(), regOpts...)
	if err != nil {
		return nil, err
	}

	// -------- STRATEGIES --------
	var devices DeviceDetector = device.NewDetector(nil)
	if b.devices != nil {
		devices = b.devices
	}
	deps := StrategyDeps{Users: b.users, Devices: devices, Logger: logger}

	sessions, err := NewSessionStrategy(registry, deps)
	if err != nil {
		return nil, err
	}

	var tokens *TokenStrategy
	if cfg.Token.Enabled {
		manager, err := jwt.NewManager(cfg.Token.managerConfig())
		if err != nil {
			return nil, err
		}
		var denylist jwt.Denylist
		if cfg.Token.Denylist {
			denylist = jwt.NewKVDenylist(b.store, cfg.Session.KeyPrefix, cfg.Session.StoreTimeout)
		}
		tokens, err = NewTokenStrategy(manager, denylist, deps)
		if err != nil {
			return nil, err
		}
	}

	// -------- LOGIN THROTTLE --------
	var limiter *rate.Limiter
	if cfg.RateLimit.Enabled {
		counter, ok := b.store.(rate.Store)
		if !ok {
			return nil, errors.New("RateLimit.Enabled requires a store with counter support")
		}
		limiter = rate.New(counter, rate.Config{
			KeyPrefix:        cfg.Session.KeyPrefix,
			MaxLoginAttempts: cfg.RateLimit.MaxLoginAttempts,
			LoginCooldown:    cfg.RateLimit.LoginCooldown,
			EnableIPThrottle: cfg.RateLimit.EnableIPThrottle,
			Timeout:          cfg.Session.StoreTimeout,
		})
	}

	// -------- OBSERVABILITY --------
	metrics := NewMetrics(cfg.Metrics)
	audit := internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink)

	svc := flows.New(flowDeps(cfg, sessions, tokens))

	engine := &Engine{
		config:   cloneConfig(cfg),
		registry: registry,
		sessions: sessions,
		tokens:   tokens,
		bridge:   NewBridge(sessions, tokens),
		resolver: newResolver(cfg, svc, metrics, audit, logger),
		cookies:  NewCookiePolicy(cfg.Cookie, cfg.Session.SessionTTL, cfg.Session.RefreshTTL),
		flows:    svc,
		limiter:  limiter,
		audit:    audit,
		metrics:  metrics,
		logger:   logger,
	}

	b.built = true

	return engine, nil
}
