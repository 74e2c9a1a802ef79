package goSession

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	internalaudit "github.com/MrEthical07/goSession/internal/audit"
	"github.com/MrEthical07/goSession/internal/flows"
	"github.com/MrEthical07/goSession/internal/rate"
	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/session"
)

// Engine is the assembled subsystem. Build it with New().Build(); all
// methods are safe for concurrent use.
type Engine struct {
	config   Config
	registry *session.Registry
	sessions *SessionStrategy
	tokens   *TokenStrategy
	bridge   *Bridge
	resolver *Resolver
	cookies  CookiePolicy
	flows    flows.Service
	limiter  *rate.Limiter
	audit    *internalaudit.Dispatcher
	metrics  *Metrics
	logger   *slog.Logger
}

// AuthResponse is a login or refresh outcome plus the cookie changes that
// go with it.
type AuthResponse struct {
	Result    AuthResult
	Mutations Mutations
}

// LogoutResult reports what Logout revoked. TokenOutcome is zero when no
// signed token was presented.
type LogoutResult struct {
	SessionRevoked bool
	RefreshRevoked bool
	TokenOutcome   RevokeOutcome
	Mutations      Mutations
}

// Close flushes pending audit events. The store is owned by the caller and
// is not closed.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.audit.Close()
}

func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Config returns a copy of the configuration the engine was built with.
func (e *Engine) Config() Config { return cloneConfig(e.config) }

func (e *Engine) Bridge() *Bridge { return e.bridge }

func (e *Engine) Resolver() *Resolver { return e.resolver }

func (e *Engine) Cookies() CookiePolicy { return e.cookies }

// Strategy returns the configured strategy of the given kind.
func (e *Engine) Strategy(kind Kind) (Strategy, bool) {
	switch kind {
	case KindSession:
		return e.sessions, true
	case KindSignedToken:
		if e.tokens != nil {
			return e.tokens, true
		}
	}
	return nil, false
}

func (e *Engine) ready() error {
	if e == nil || e.sessions == nil || !e.flows.Initialized() {
		return ErrEngineNotReady
	}
	return nil
}

// Login authenticates creds with the strategy matching the configured mode.
// Cookie mode opens a session; token mode issues a signed token; hybrid mode
// does both. Client IP and User-Agent are read from ctx (see WithClientIP and
// WithUserAgent).
func (e *Engine) Login(ctx context.Context, creds Credentials) (AuthResponse, error) {
	if err := e.ready(); err != nil {
		return AuthResponse{}, err
	}

	ip := clientIPFromContext(ctx)
	event := AuditEvent{
		EventType: AuditEventLogin,
		Mode:      string(e.config.Resolver.Mode),
		IP:        ip,
	}

	if err := e.limiter.CheckLogin(ctx, creds.Identifier, ip); err != nil {
		e.metrics.Inc(MetricLoginFailure)
		if errors.Is(err, rate.ErrRateLimited) {
			event.Error = string(CodeRateLimited)
			e.emit(ctx, event)
			return AuthResponse{Result: failedResult(CodeRateLimited)}, nil
		}
		e.countStorage(err)
		event.Error = err.Error()
		e.emit(ctx, event)
		return AuthResponse{Result: failedResult(CodeAuthError)}, err
	}

	var (
		res AuthResult
		err error
	)
	switch e.config.Resolver.Mode {
	case ModeToken:
		res, err = e.tokens.Authenticate(ctx, creds)
	case ModeHybrid:
		res, err = e.sessions.Authenticate(ctx, creds)
		if err == nil && res.Success && e.tokens.CanIssue() {
			tok, _ := e.tokens.issue(res.UserID, res.Metadata)
			res.Token = tok.Token
		}
	default:
		res, err = e.sessions.Authenticate(ctx, creds)
	}

	event.UserID = res.UserID
	event.SessionID = res.SessionID
	event.Success = res.Success
	if err != nil {
		e.countStorage(err)
		e.metrics.Inc(MetricLoginFailure)
		event.Error = err.Error()
		e.emit(ctx, event)
		return AuthResponse{Result: res}, err
	}
	if !res.Success {
		e.metrics.Inc(MetricLoginFailure)
		if err := e.limiter.FailLogin(ctx, creds.Identifier, ip); err != nil {
			e.logger.Warn("goSession: record failed login", "error", err)
		}
		event.Error = string(res.Code)
		e.emit(ctx, event)
		return AuthResponse{Result: res}, nil
	}

	if err := e.limiter.ResetLogin(ctx, creds.Identifier); err != nil {
		e.logger.Warn("goSession: reset login throttle", "error", err)
	}
	e.metrics.Inc(MetricLoginSuccess)
	e.emit(ctx, event)

	resp := AuthResponse{Result: res}
	if res.SessionID != "" {
		e.metrics.Inc(MetricSessionCreated)
		resp.Mutations.Set = e.cookies.Pair(res.SessionID, res.RefreshID)
	}
	return resp, nil
}

// Resolve authenticates an incoming request. See Resolver.Resolve.
func (e *Engine) Resolve(ctx context.Context, req Request) (Resolution, error) {
	if err := e.ready(); err != nil {
		return Resolution{}, err
	}
	return e.resolver.Resolve(ctx, req)
}

// Refresh rotates a refresh id explicitly. An unusable id yields an
// INVALID_REFRESH_TOKEN result and instructions to clear the auth cookies.
func (e *Engine) Refresh(ctx context.Context, refreshID string) (AuthResponse, error) {
	if err := e.ready(); err != nil {
		return AuthResponse{}, err
	}

	res, err := e.sessions.Refresh(ctx, refreshID)
	if err != nil {
		e.countStorage(err)
		e.metrics.Inc(MetricRefreshFailure)
		return AuthResponse{Result: res}, err
	}
	event := AuditEvent{
		EventType: AuditEventRefresh,
		Mode:      string(e.config.Resolver.Mode),
		UserID:    res.UserID,
		SessionID: res.SessionID,
		Success:   res.Success,
		IP:        clientIPFromContext(ctx),
	}
	if !res.Success {
		e.metrics.Inc(MetricRefreshFailure)
		e.metrics.Inc(MetricCookiesCleared)
		event.Error = string(res.Code)
		e.emit(ctx, event)
		return AuthResponse{Result: res, Mutations: e.clearMutations()}, nil
	}

	e.metrics.Inc(MetricRefreshSuccess)
	e.emit(ctx, event)
	return AuthResponse{
		Result:    res,
		Mutations: Mutations{Set: e.cookies.Pair(res.SessionID, res.RefreshID)},
	}, nil
}

// Logout revokes every credential carried by req: the session and refresh
// cookies and a bearer credential. All revocations are attempted; errors are
// joined. The result always asks the caller to clear the auth cookies.
func (e *Engine) Logout(ctx context.Context, req Request) (LogoutResult, error) {
	if err := e.ready(); err != nil {
		return LogoutResult{}, err
	}

	in := e.resolver.input(req)
	lo := flows.LogoutInput{SessionID: in.SessionID, RefreshID: in.RefreshID}
	if jwt.HasTokenShape(in.Bearer) {
		lo.Token = in.Bearer
	} else if lo.SessionID == "" {
		lo.SessionID = in.Bearer
	}

	res := e.flows.Logout(ctx, lo)
	out := LogoutResult{
		SessionRevoked: res.SessionRevoked,
		RefreshRevoked: res.RefreshRevoked,
		Mutations:      e.clearMutations(),
	}
	switch {
	case res.TokenRevoked:
		out.TokenOutcome = RevokeApplied
	case res.TokenUnsupported:
		out.TokenOutcome = RevokeUnsupported
		e.metrics.Inc(MetricRevokeUnsupported)
		e.emit(ctx, AuditEvent{
			EventType: AuditEventRevokeUnsupported,
			Mode:      string(e.config.Resolver.Mode),
			IP:        ClientIP(req, e.config.Resolver.TrustProxyHeaders),
		})
	}

	e.metrics.Inc(MetricLogout)
	e.metrics.Inc(MetricCookiesCleared)
	event := AuditEvent{
		EventType: AuditEventLogout,
		Mode:      string(e.config.Resolver.Mode),
		SessionID: lo.SessionID,
		IP:        ClientIP(req, e.config.Resolver.TrustProxyHeaders),
		Success:   res.Err == nil,
	}
	if res.Err != nil {
		e.countStorage(res.Err)
		event.Error = res.Err.Error()
	}
	e.emit(ctx, event)
	return out, res.Err
}

// LogoutAll revokes every session and refresh id indexed for userID and
// returns the number of sessions removed. Sessions created concurrently
// with the scan may survive.
func (e *Engine) LogoutAll(ctx context.Context, userID string) (int, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	n, err := e.flows.LogoutAll(ctx, userID)
	event := AuditEvent{
		EventType: AuditEventLogoutAll,
		UserID:    userID,
		IP:        clientIPFromContext(ctx),
		Success:   err == nil,
		Metadata:  map[string]string{"revoked": strconv.Itoa(n)},
	}
	if err != nil {
		e.countStorage(err)
		event.Error = err.Error()
	} else {
		e.metrics.Inc(MetricLogoutAll)
	}
	e.emit(ctx, event)
	return n, err
}

// IssueCSRF mints a double-submit token and the cookie that carries it. The
// token must also be sent back in the CSRF header on state-changing requests.
func (e *Engine) IssueCSRF() (*http.Cookie, error) {
	token, err := NewCSRFToken()
	if err != nil {
		return nil, err
	}
	return e.cookies.CSRF(token), nil
}

// ListSessions returns the live sessions of userID, oldest first.
func (e *Engine) ListSessions(ctx context.Context, userID string) ([]*session.Session, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	return e.registry.ListForUser(ctx, userID)
}

// UpdateSessionMetadata merges patch into a live session. It reports false
// when the session does not exist.
func (e *Engine) UpdateSessionMetadata(ctx context.Context, sessionID string, patch session.Metadata) (bool, error) {
	if err := e.ready(); err != nil {
		return false, err
	}
	return e.registry.UpdateMetadata(ctx, sessionID, patch)
}

func (e *Engine) clearMutations() Mutations {
	return Mutations{Clear: true, Expired: e.cookies.Clear()}
}

func (e *Engine) countStorage(err error) {
	if errors.Is(err, ErrStorageUnavailable) {
		e.metrics.Inc(MetricStorageUnavailable)
		e.logger.Warn("goSession: credential store unavailable", "error", err)
	}
}

func (e *Engine) emit(ctx context.Context, event AuditEvent) {
	if e.audit == nil {
		return
	}
	event.Timestamp = time.Now().UTC()
	e.audit.Emit(ctx, event)
}
