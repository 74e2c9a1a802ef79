package goSession

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	internalaudit "github.com/MrEthical07/goSession/internal/audit"
	"github.com/MrEthical07/goSession/internal/flows"
	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/session"
)

// Request is the transport-neutral view of an incoming call. SessionID and
// RefreshID, when set, take precedence over the cookie values; adapters
// that already parsed cookies can pass them directly.
type Request struct {
	Cookies    map[string]string
	Header     http.Header
	RemoteAddr string
	SessionID  string
	RefreshID  string
	// Mutation marks a state-changing request. Only mutations are subject to
	// the CSRF check.
	Mutation bool
}

// Decision is the resolver's verdict for a request.
type Decision int

const (
	DecisionUnauthenticated Decision = iota
	DecisionAuthenticated
	DecisionRejectedCSRF
)

func (d Decision) String() string {
	switch d {
	case DecisionAuthenticated:
		return "authenticated"
	case DecisionRejectedCSRF:
		return "rejected_csrf"
	default:
		return "unauthenticated"
	}
}

// CookieSet holds the auth cookies to write after a login or rotation.
type CookieSet struct {
	Access  *http.Cookie
	Refresh *http.Cookie
}

// Mutations are the cookie changes a caller must apply to the response.
// Set and Clear are never both set.
type Mutations struct {
	Set   *CookieSet
	Clear bool
	// Expired holds the cookies to write when Clear is set.
	Expired []*http.Cookie
}

// Cookies flattens the mutations into the cookies to write.
func (m Mutations) Cookies() []*http.Cookie {
	switch {
	case m.Set != nil:
		return []*http.Cookie{m.Set.Access, m.Set.Refresh}
	case m.Clear:
		return m.Expired
	default:
		return nil
	}
}

// Resolution is the outcome of Resolve.
type Resolution struct {
	Decision      Decision
	Authenticated bool
	Kind          Kind
	UserID        string
	User          *session.User
	Metadata      session.Metadata
	IP            string
	SessionID     string
	RefreshID     string
	Token         string
	Mutations     Mutations
}

// Resolver turns a Request into an identity decision plus cookie mutations.
// It is safe for concurrent use.
type Resolver struct {
	cfg     ResolverConfig
	cookies CookieConfig
	policy  CookiePolicy
	flows   flows.Service

	metrics *Metrics
	audit   *internalaudit.Dispatcher
	logger  *slog.Logger
	now     func() time.Time
}

// NewResolver wires a resolver over the given strategies. tokens may be nil
// in cookie mode.
func NewResolver(cfg Config, sessions *SessionStrategy, tokens *TokenStrategy) (*Resolver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if sessions == nil {
		return nil, ErrEngineNotReady
	}
	svc := flows.New(flowDeps(cfg, sessions, tokens))
	return newResolver(cfg, svc, nil, nil, nil), nil
}

func newResolver(cfg Config, svc flows.Service, metrics *Metrics, audit *internalaudit.Dispatcher, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		cfg:     cfg.Resolver,
		cookies: cfg.Cookie,
		policy:  NewCookiePolicy(cfg.Cookie, cfg.Session.SessionTTL, cfg.Session.RefreshTTL),
		flows:   svc,
		metrics: metrics,
		audit:   audit,
		logger:  logger,
		now:     time.Now,
	}
}

func flowDeps(cfg Config, sessions *SessionStrategy, tokens *TokenStrategy) flows.Deps {
	deps := flows.Deps{
		Resolve: flows.ResolveDeps{
			ValidateSession: func(ctx context.Context, id string) (*session.Session, error) {
				res, err := sessions.Validate(ctx, id)
				return res.Session, err
			},
			RefreshSession: sessions.refreshPair,
			AutoRefresh:    cfg.Resolver.AutoRefresh,
		},
		Logout: flows.LogoutDeps{
			RevokeSession: func(ctx context.Context, id string) error {
				_, err := sessions.Revoke(ctx, id)
				return err
			},
			RevokeRefresh:    sessions.registry.RevokeRefresh,
			RevokeAllForUser: sessions.registry.RevokeAllForUser,
		},
	}
	if tokens != nil {
		deps.Resolve.ValidateToken = func(ctx context.Context, token string) (*jwt.Claims, error) {
			res, err := tokens.Validate(ctx, token)
			return res.Claims, err
		}
		if tokens.Revocable() {
			deps.Logout.RevokeToken = func(ctx context.Context, token string) (bool, error) {
				out, err := tokens.Revoke(ctx, token)
				return out == RevokeApplied, err
			}
		}
	}
	return deps
}

// Resolve authenticates req. Credential problems are reported through the
// Resolution; the error is non-nil only when storage failed, in which case
// the resolution is unauthenticated and carries no cookie mutations. A
// cancelled context also yields an unauthenticated resolution without
// mutations, so a client that went away never loses its cookies.
func (r *Resolver) Resolve(ctx context.Context, req Request) (Resolution, error) {
	start := r.now()
	defer func() { r.metrics.Observe(MetricResolveLatency, r.now().Sub(start)) }()

	in := r.input(req)
	out := Resolution{IP: ClientIP(req, r.cfg.TrustProxyHeaders)}

	res := r.flows.Resolve(ctx, in)
	switch res.Failure {
	case flows.ResolveFailureCancelled:
		return out, nil
	case flows.ResolveFailureCSRF:
		r.metrics.Inc(MetricCSRFRejected)
		r.emit(ctx, AuditEvent{EventType: AuditEventCSRFRejected, IP: out.IP, Error: ErrCSRFValidationFailed.Error()})
		out.Decision = DecisionRejectedCSRF
		return out, nil
	case flows.ResolveFailureStorage:
		r.metrics.Inc(MetricStorageUnavailable)
		r.logger.Warn("goSession: credential store unavailable during resolve", "error", res.Err)
		return out, res.Err
	}

	if res.ClearCookies {
		out.Mutations = Mutations{Clear: true, Expired: r.policy.Clear()}
		r.metrics.Inc(MetricCookiesCleared)
	}

	if res.Failure == flows.ResolveFailureUnauthenticated {
		if in.SessionID != "" || in.RefreshID != "" || in.Bearer != "" {
			r.metrics.Inc(MetricValidateFailure)
		}
		return out, nil
	}

	out.Decision = DecisionAuthenticated
	out.Authenticated = true
	r.metrics.Inc(MetricValidateSuccess)

	switch {
	case res.Session != nil:
		out.Kind = KindSession
		out.UserID = res.Session.UserID
		out.User = res.Session.Metadata.User
		out.Metadata = res.Session.Metadata
		out.SessionID = res.Session.SessionID
		if res.Rotated == nil {
			out.RefreshID = in.RefreshID
		}
	case res.Claims != nil:
		out.Kind = KindSignedToken
		out.UserID = res.Claims.UUID
		out.User = res.Claims.Metadata.User
		out.Metadata = res.Claims.Metadata
		out.Token = res.Token
	}

	if res.Rotated != nil {
		out.SessionID = res.Rotated.SessionID
		out.RefreshID = res.Rotated.RefreshID
		out.Mutations = Mutations{Set: r.policy.Pair(res.Rotated.SessionID, res.Rotated.RefreshID)}
		r.metrics.Inc(MetricRefreshSuccess)
		r.emit(ctx, AuditEvent{
			EventType: AuditEventRefresh,
			Mode:      string(r.cfg.Mode),
			UserID:    out.UserID,
			SessionID: out.SessionID,
			IP:        out.IP,
			Success:   true,
		})
	}

	return out, nil
}

func (r *Resolver) input(req Request) flows.ResolveInput {
	in := flows.ResolveInput{
		Mode:      string(r.cfg.Mode),
		SessionID: req.SessionID,
		RefreshID: req.RefreshID,
		Mutation:  req.Mutation,
	}
	if in.SessionID == "" {
		in.SessionID = req.Cookies[r.cookies.SessionName]
	}
	if in.RefreshID == "" {
		in.RefreshID = req.Cookies[r.cookies.RefreshName]
	}
	in.HasAuthCookie = in.SessionID != "" || in.RefreshID != ""
	in.CSRFCookie = req.Cookies[r.cookies.CSRFName]
	if req.Header != nil {
		in.CSRFHeader = req.Header.Get(r.cookies.CSRFHeader)
		if r.cfg.Mode != ModeCookie {
			in.Bearer = BearerCredential(req.Header.Get("Authorization"))
		}
	}
	if r.cfg.Mode == ModeToken {
		in.SessionID, in.RefreshID, in.HasAuthCookie = "", "", false
	}
	return in
}

func (r *Resolver) emit(ctx context.Context, event AuditEvent) {
	if r.audit == nil {
		return
	}
	event.Timestamp = r.now().UTC()
	r.audit.Emit(ctx, event)
}

// BearerCredential extracts the credential from an Authorization header
// value. The "Bearer " scheme prefix is optional and case-insensitive.
func BearerCredential(header string) string {
	v := strings.TrimSpace(header)
	const scheme = "bearer "
	if len(v) >= len(scheme) && strings.EqualFold(v[:len(scheme)], scheme) {
		v = strings.TrimSpace(v[len(scheme):])
	}
	return v
}

// ClientIP returns the caller address. With trustProxy, the first address in
// X-Forwarded-For, then X-Real-IP, then CF-Connecting-IP wins over
// RemoteAddr. Only enable it behind a proxy that overwrites these headers.
func ClientIP(req Request, trustProxy bool) string {
	if trustProxy && req.Header != nil {
		if xff := req.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
		for _, h := range []string{"X-Real-IP", "CF-Connecting-IP"} {
			if ip := strings.TrimSpace(req.Header.Get(h)); ip != "" {
				return ip
			}
		}
	}
	if host, _, err := net.SplitHostPort(req.RemoteAddr); err == nil {
		return host
	}
	return req.RemoteAddr
}
