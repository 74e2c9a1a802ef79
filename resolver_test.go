package goSession

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveCookieSession(t *testing.T) {
	f := newEngineFixture(t, DefaultConfig())
	ctx := context.Background()

	login, err := f.engine.Login(ctx, aliceCreds)
	require.NoError(t, err)

	res, err := f.engine.Resolve(ctx, Request{
		Cookies:    cookieMap(login.Mutations.Cookies()...),
		RemoteAddr: "203.0.113.9:51234",
	})
	require.NoError(t, err)
	assert.Equal(t, DecisionAuthenticated, res.Decision)
	assert.True(t, res.Authenticated)
	assert.Equal(t, KindSession, res.Kind)
	assert.Equal(t, "user-alice", res.UserID)
	require.NotNil(t, res.User)
	assert.Equal(t, "alice@example.com", res.User.Email)
	assert.Equal(t, login.Result.SessionID, res.SessionID)
	assert.Equal(t, login.Result.RefreshID, res.RefreshID)
	assert.Equal(t, "203.0.113.9", res.IP)
	assert.Nil(t, res.Mutations.Cookies())
}

func TestResolveAutoRefreshRotatesCookies(t *testing.T) {
	f := newEngineFixture(t, DefaultConfig())
	ctx := context.Background()

	login, err := f.engine.Login(ctx, aliceCreds)
	require.NoError(t, err)
	f.mr.Del("session:" + login.Result.SessionID)

	res, err := f.engine.Resolve(ctx, Request{Cookies: cookieMap(login.Mutations.Cookies()...)})
	require.NoError(t, err)
	require.True(t, res.Authenticated)
	assert.Equal(t, "user-alice", res.UserID)
	assert.NotEqual(t, login.Result.SessionID, res.SessionID)
	assert.NotEqual(t, login.Result.RefreshID, res.RefreshID)

	require.NotNil(t, res.Mutations.Set)
	rotated := cookieMap(res.Mutations.Cookies()...)
	assert.Equal(t, res.SessionID, rotated["sid"])
	assert.Equal(t, res.RefreshID, rotated["rid"])
	assert.True(t, res.Mutations.Set.Access.HttpOnly)

	ev := waitEvent(t, f.sink, AuditEventRefresh)
	assert.Equal(t, res.SessionID, ev.SessionID)

	// The old refresh id was consumed by the rotation.
	again, err := f.engine.Resolve(ctx, Request{Cookies: cookieMap(login.Mutations.Cookies()...)})
	require.NoError(t, err)
	assert.False(t, again.Authenticated)
	assert.True(t, again.Mutations.Clear)
}

func TestResolveWithoutAutoRefreshClears(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Resolver.AutoRefresh = false
	f := newEngineFixture(t, cfg)
	ctx := context.Background()

	login, err := f.engine.Login(ctx, aliceCreds)
	require.NoError(t, err)
	f.mr.Del("session:" + login.Result.SessionID)

	res, err := f.engine.Resolve(ctx, Request{Cookies: cookieMap(login.Mutations.Cookies()...)})
	require.NoError(t, err)
	assert.Equal(t, DecisionUnauthenticated, res.Decision)
	assert.True(t, res.Mutations.Clear)
	assert.Equal(t, uint64(1), f.engine.MetricsSnapshot().Counters[MetricCookiesCleared])

	// The refresh id is still usable explicitly.
	refreshed, err := f.engine.Refresh(ctx, login.Result.RefreshID)
	require.NoError(t, err)
	assert.True(t, refreshed.Result.Success)
}

func TestResolveNoCredentials(t *testing.T) {
	f := newEngineFixture(t, DefaultConfig())

	res, err := f.engine.Resolve(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, DecisionUnauthenticated, res.Decision)
	assert.Nil(t, res.Mutations.Cookies(), "nothing to clear")
	assert.Zero(t, f.engine.MetricsSnapshot().Counters[MetricValidateFailure])
}

func TestResolveCSRF(t *testing.T) {
	f := newEngineFixture(t, DefaultConfig())
	ctx := context.Background()

	login, err := f.engine.Login(ctx, aliceCreds)
	require.NoError(t, err)
	csrf, err := f.engine.IssueCSRF()
	require.NoError(t, err)

	withCSRF := func(header string) Request {
		cookies := cookieMap(login.Mutations.Cookies()...)
		cookies["csrf-token"] = csrf.Value
		h := http.Header{}
		if header != "" {
			h.Set("X-CSRF-Token", header)
		}
		return Request{Cookies: cookies, Header: h, Mutation: true}
	}

	tests := []struct {
		name string
		req  Request
		want Decision
	}{
		{name: "matching header", req: withCSRF(csrf.Value), want: DecisionAuthenticated},
		{name: "missing header", req: withCSRF(""), want: DecisionRejectedCSRF},
		{name: "wrong header", req: withCSRF("forged"), want: DecisionRejectedCSRF},
		{
			name: "safe request skips check",
			req:  Request{Cookies: cookieMap(login.Mutations.Cookies()...)},
			want: DecisionAuthenticated,
		},
		{
			name: "no auth cookie skips check",
			req:  Request{Mutation: true},
			want: DecisionUnauthenticated,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := f.engine.Resolve(ctx, tt.req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Decision)
			if tt.want == DecisionRejectedCSRF {
				assert.False(t, res.Authenticated)
				assert.Nil(t, res.Mutations.Cookies(), "a CSRF rejection never clears cookies")
			}
		})
	}

	assert.Equal(t, uint64(2), f.engine.MetricsSnapshot().Counters[MetricCSRFRejected])
	waitEvent(t, f.sink, AuditEventCSRFRejected)

	// The rejected requests did not touch the session.
	res, err := f.engine.Resolve(ctx, Request{SessionID: login.Result.SessionID})
	require.NoError(t, err)
	assert.True(t, res.Authenticated)
}

func TestResolveTokenMode(t *testing.T) {
	f := newEngineFixture(t, tokenTestConfig(ModeToken))
	ctx := context.Background()

	login, err := f.engine.Login(ctx, aliceCreds)
	require.NoError(t, err)

	res, err := f.engine.Resolve(ctx, Request{
		Header: http.Header{"Authorization": []string{"bearer " + login.Result.Token}},
		// Cookies are ignored in token mode, CSRF included.
		Cookies:  map[string]string{"sid": "stale"},
		Mutation: true,
	})
	require.NoError(t, err)
	assert.True(t, res.Authenticated)
	assert.Equal(t, KindSignedToken, res.Kind)
	assert.Equal(t, "user-alice", res.UserID)
	assert.Equal(t, login.Result.Token, res.Token)
	assert.Empty(t, res.SessionID)
	assert.Nil(t, res.Mutations.Cookies())

	res, err = f.engine.Resolve(ctx, Request{Header: http.Header{"Authorization": []string{"Bearer not.a.token"}}})
	require.NoError(t, err)
	assert.False(t, res.Authenticated)
	assert.Nil(t, res.Mutations.Cookies())
}

func TestResolveHybrid(t *testing.T) {
	f := newEngineFixture(t, tokenTestConfig(ModeHybrid))
	ctx := context.Background()

	login, err := f.engine.Login(ctx, aliceCreds)
	require.NoError(t, err)

	tests := []struct {
		name string
		req  Request
		kind Kind
	}{
		{name: "session cookie", req: Request{Cookies: cookieMap(login.Mutations.Cookies()...)}, kind: KindSession},
		{
			name: "bearer token",
			req:  Request{Header: http.Header{"Authorization": []string{"Bearer " + login.Result.Token}}},
			kind: KindSignedToken,
		},
		{
			name: "bearer session id",
			req:  Request{Header: http.Header{"Authorization": []string{"Bearer " + login.Result.SessionID}}},
			kind: KindSession,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := f.engine.Resolve(ctx, tt.req)
			require.NoError(t, err)
			require.True(t, res.Authenticated)
			assert.Equal(t, tt.kind, res.Kind)
			assert.Equal(t, "user-alice", res.UserID)
		})
	}
}

func TestResolveCancelledContext(t *testing.T) {
	f := newEngineFixture(t, DefaultConfig())

	login, err := f.engine.Login(context.Background(), aliceCreds)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := f.engine.Resolve(ctx, Request{Cookies: cookieMap(login.Mutations.Cookies()...)})
	require.NoError(t, err)
	assert.False(t, res.Authenticated)
	assert.Nil(t, res.Mutations.Cookies())
}

func TestNewResolverStandalone(t *testing.T) {
	reg, _ := newTestRegistry(t)
	sessions, err := NewSessionStrategy(reg, StrategyDeps{Users: staticUsers, Logger: discardLogger()})
	require.NoError(t, err)

	r, err := NewResolver(DefaultConfig(), sessions, nil)
	require.NoError(t, err)

	login, err := sessions.Authenticate(context.Background(), aliceCreds)
	require.NoError(t, err)
	res, err := r.Resolve(context.Background(), Request{Cookies: map[string]string{"sid": login.SessionID}})
	require.NoError(t, err)
	assert.True(t, res.Authenticated)

	_, err = NewResolver(DefaultConfig(), nil, nil)
	require.ErrorIs(t, err, ErrEngineNotReady)
}

func TestBearerCredential(t *testing.T) {
	assert.Equal(t, "abc", BearerCredential("Bearer abc"))
	assert.Equal(t, "abc", BearerCredential("bearer  abc "))
	assert.Equal(t, "abc", BearerCredential("abc"))
	assert.Equal(t, "", BearerCredential(""))
}

func TestClientIP(t *testing.T) {
	h := http.Header{}
	h.Set("X-Forwarded-For", "192.0.2.1, 10.0.0.1")
	h.Set("X-Real-IP", "192.0.2.2")
	req := Request{Header: h, RemoteAddr: "10.0.0.9:443"}

	assert.Equal(t, "10.0.0.9", ClientIP(req, false))
	assert.Equal(t, "192.0.2.1", ClientIP(req, true))

	h.Del("X-Forwarded-For")
	assert.Equal(t, "192.0.2.2", ClientIP(req, true))

	h.Del("X-Real-IP")
	h.Set("CF-Connecting-IP", "192.0.2.3")
	assert.Equal(t, "192.0.2.3", ClientIP(req, true))

	assert.Equal(t, "pipe", ClientIP(Request{RemoteAddr: "pipe"}, true))
}

func TestCookiePolicy(t *testing.T) {
	cfg := DefaultConfig()
	p := NewCookiePolicy(cfg.Cookie, cfg.Session.SessionTTL, cfg.Session.RefreshTTL)

	set := p.Pair("s1", "r1")
	assert.Equal(t, int(cfg.Session.SessionTTL.Seconds()), set.Access.MaxAge)
	assert.Equal(t, int(cfg.Session.RefreshTTL.Seconds()), set.Refresh.MaxAge)
	assert.True(t, set.Access.HttpOnly)
	assert.False(t, set.Access.Secure)
	assert.Equal(t, http.SameSiteLaxMode, set.Access.SameSite)

	cfg.Cookie.Production = true
	cfg.Cookie.Domain = "example.com"
	prod := NewCookiePolicy(cfg.Cookie, cfg.Session.SessionTTL, cfg.Session.RefreshTTL)
	c := prod.Access("s1")
	assert.True(t, c.Secure)
	assert.Equal(t, http.SameSiteNoneMode, c.SameSite)
	assert.Equal(t, "example.com", c.Domain)

	for _, cleared := range prod.Clear() {
		assert.Empty(t, cleared.Value)
		assert.Equal(t, -1, cleared.MaxAge)
		assert.True(t, cleared.Secure)
	}
	assert.False(t, prod.CSRF("x").HttpOnly)
}
