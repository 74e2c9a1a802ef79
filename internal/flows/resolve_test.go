package flows

import (
	"context"
	"errors"
	"testing"

	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/session"
)

var errStore = errors.New("store down")

type fakeLookups struct {
	sessions  map[string]*session.Session
	refreshes map[string]*session.Pair
	tokens    map[string]*jwt.Claims
	fail      bool
	calls     int
}

func (f *fakeLookups) deps(autoRefresh bool) ResolveDeps {
	return ResolveDeps{
		ValidateSession: func(_ context.Context, id string) (*session.Session, error) {
			f.calls++
			if f.fail {
				return nil, errStore
			}
			return f.sessions[id], nil
		},
		RefreshSession: func(_ context.Context, id string) (*session.Pair, error) {
			f.calls++
			if f.fail {
				return nil, errStore
			}
			p := f.refreshes[id]
			delete(f.refreshes, id)
			return p, nil
		},
		ValidateToken: func(_ context.Context, tok string) (*jwt.Claims, error) {
			f.calls++
			return f.tokens[tok], nil
		},
		AutoRefresh: autoRefresh,
	}
}

func newFakeLookups() *fakeLookups {
	return &fakeLookups{
		sessions:  map[string]*session.Session{"s-live": {SessionID: "s-live", UserID: "u-1"}},
		refreshes: map[string]*session.Pair{"r-live": {SessionID: "s-new", RefreshID: "r-new", UserID: "u-1"}},
		tokens:    map[string]*jwt.Claims{"a.b.c": {UUID: "u-2"}},
	}
}

func TestResolveCookieValidSession(t *testing.T) {
	f := newFakeLookups()
	res := RunResolve(context.Background(), ResolveInput{Mode: ModeCookie, SessionID: "s-live"}, f.deps(true))
	if res.Failure != ResolveFailureNone || res.Session == nil || res.Session.UserID != "u-1" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.Rotated != nil || res.ClearCookies {
		t.Fatalf("valid session must not mutate cookies: %+v", res)
	}
}

func TestResolveCookieAutoRefresh(t *testing.T) {
	f := newFakeLookups()
	res := RunResolve(context.Background(), ResolveInput{Mode: ModeCookie, SessionID: "s-dead", RefreshID: "r-live"}, f.deps(true))
	if res.Failure != ResolveFailureNone || res.Rotated == nil || res.Rotated.SessionID != "s-new" {
		t.Fatalf("expected rotation, got %+v", res)
	}
	if res.Session.SessionID != "s-new" || res.Session.UserID != "u-1" {
		t.Fatalf("session not built from rotated pair: %+v", res.Session)
	}

	// The refresh id is single use.
	res = RunResolve(context.Background(), ResolveInput{Mode: ModeCookie, RefreshID: "r-live"}, f.deps(true))
	if res.Failure != ResolveFailureUnauthenticated || !res.ClearCookies {
		t.Fatalf("expected clear after consumed refresh, got %+v", res)
	}
}

func TestResolveCookieWithoutAutoRefreshClears(t *testing.T) {
	f := newFakeLookups()
	res := RunResolve(context.Background(), ResolveInput{Mode: ModeCookie, SessionID: "s-dead", RefreshID: "r-live"}, f.deps(false))
	if res.Failure != ResolveFailureUnauthenticated || !res.ClearCookies {
		t.Fatalf("unexpected result: %+v", res)
	}
	if _, ok := f.refreshes["r-live"]; !ok {
		t.Fatal("refresh consumed while auto refresh disabled")
	}
}

func TestResolveNoCredentials(t *testing.T) {
	f := newFakeLookups()
	res := RunResolve(context.Background(), ResolveInput{Mode: ModeCookie}, f.deps(true))
	if res.Failure != ResolveFailureUnauthenticated || res.ClearCookies {
		t.Fatalf("anonymous request must not clear cookies: %+v", res)
	}
	if f.calls != 0 {
		t.Fatalf("expected no lookups, got %d", f.calls)
	}
}

func TestResolveCSRF(t *testing.T) {
	cases := []struct {
		name    string
		in      ResolveInput
		failure ResolveFailureKind
	}{
		{"mutation mismatch", ResolveInput{Mode: ModeCookie, SessionID: "s-live", HasAuthCookie: true, Mutation: true, CSRFCookie: "x", CSRFHeader: "y"}, ResolveFailureCSRF},
		{"mutation missing header", ResolveInput{Mode: ModeCookie, SessionID: "s-live", HasAuthCookie: true, Mutation: true, CSRFCookie: "x"}, ResolveFailureCSRF},
		{"mutation both missing", ResolveInput{Mode: ModeHybrid, SessionID: "s-live", HasAuthCookie: true, Mutation: true}, ResolveFailureCSRF},
		{"mutation match", ResolveInput{Mode: ModeCookie, SessionID: "s-live", HasAuthCookie: true, Mutation: true, CSRFCookie: "x", CSRFHeader: "x"}, ResolveFailureNone},
		{"query skips check", ResolveInput{Mode: ModeCookie, SessionID: "s-live", HasAuthCookie: true, CSRFCookie: "x", CSRFHeader: "y"}, ResolveFailureNone},
		{"no auth cookie skips check", ResolveInput{Mode: ModeHybrid, Bearer: "a.b.c", Mutation: true}, ResolveFailureNone},
		{"token mode skips check", ResolveInput{Mode: ModeToken, Bearer: "a.b.c", HasAuthCookie: true, Mutation: true}, ResolveFailureNone},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFakeLookups()
			res := RunResolve(context.Background(), tc.in, f.deps(true))
			if res.Failure != tc.failure {
				t.Fatalf("expected failure %v, got %+v", tc.failure, res)
			}
			if tc.failure == ResolveFailureCSRF && f.calls != 0 {
				t.Fatalf("csrf rejection must not touch the store, got %d calls", f.calls)
			}
		})
	}
}

func TestResolveTokenMode(t *testing.T) {
	f := newFakeLookups()
	res := RunResolve(context.Background(), ResolveInput{Mode: ModeToken, Bearer: "a.b.c", SessionID: "s-live"}, f.deps(true))
	if res.Failure != ResolveFailureNone || res.Claims == nil || res.Claims.UUID != "u-2" || res.Token != "a.b.c" {
		t.Fatalf("unexpected result: %+v", res)
	}

	res = RunResolve(context.Background(), ResolveInput{Mode: ModeToken, Bearer: "x.y.z"}, f.deps(true))
	if res.Failure != ResolveFailureUnauthenticated || res.ClearCookies {
		t.Fatalf("invalid token: %+v", res)
	}

	deps := f.deps(true)
	deps.ValidateToken = nil
	res = RunResolve(context.Background(), ResolveInput{Mode: ModeToken, Bearer: "a.b.c"}, deps)
	if res.Failure != ResolveFailureUnauthenticated {
		t.Fatalf("token mode without verifier must not authenticate: %+v", res)
	}
}

func TestResolveHybridRoutesBearerByShape(t *testing.T) {
	f := newFakeLookups()

	res := RunResolve(context.Background(), ResolveInput{Mode: ModeHybrid, Bearer: "a.b.c"}, f.deps(true))
	if res.Claims == nil || res.Claims.UUID != "u-2" {
		t.Fatalf("expected token identity, got %+v", res)
	}

	res = RunResolve(context.Background(), ResolveInput{Mode: ModeHybrid, Bearer: "s-live"}, f.deps(true))
	if res.Session == nil || res.Session.SessionID != "s-live" {
		t.Fatalf("expected session identity from bearer, got %+v", res)
	}

	res = RunResolve(context.Background(), ResolveInput{Mode: ModeHybrid, SessionID: "s-live", Bearer: "a.b.c"}, f.deps(true))
	if res.Session == nil || res.Claims != nil {
		t.Fatalf("cookie must win over bearer, got %+v", res)
	}

	res = RunResolve(context.Background(), ResolveInput{Mode: ModeHybrid, SessionID: "s-dead", Bearer: "a.b.c"}, f.deps(false))
	if res.Claims == nil || !res.ClearCookies {
		t.Fatalf("expected bearer fallback with stale cookie cleared, got %+v", res)
	}
}

func TestResolveStorageFailure(t *testing.T) {
	f := newFakeLookups()
	f.fail = true
	res := RunResolve(context.Background(), ResolveInput{Mode: ModeCookie, SessionID: "s-live"}, f.deps(true))
	if res.Failure != ResolveFailureStorage || !errors.Is(res.Err, errStore) {
		t.Fatalf("expected storage failure, got %+v", res)
	}
	if res.ClearCookies {
		t.Fatal("storage failure must not clear cookies")
	}
}

func TestResolveCancelled(t *testing.T) {
	f := newFakeLookups()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := RunResolve(ctx, ResolveInput{Mode: ModeCookie, SessionID: "s-live"}, f.deps(true))
	if res.Failure != ResolveFailureCancelled || f.calls != 0 {
		t.Fatalf("expected cancelled without lookups, got %+v calls=%d", res, f.calls)
	}

	ctx, cancel = context.WithCancel(context.Background())
	deps := f.deps(true)
	deps.ValidateSession = func(context.Context, string) (*session.Session, error) {
		cancel()
		return nil, nil
	}
	res = RunResolve(ctx, ResolveInput{Mode: ModeCookie, SessionID: "s-dead", RefreshID: "r-live"}, deps)
	if res.Failure != ResolveFailureCancelled || res.ClearCookies || res.Rotated != nil {
		t.Fatalf("cancellation mid-flight must not mutate cookies: %+v", res)
	}
}

func TestRunLogout(t *testing.T) {
	var revoked []string
	deps := LogoutDeps{
		RevokeSession: func(_ context.Context, id string) error { revoked = append(revoked, id); return nil },
		RevokeRefresh: func(_ context.Context, id string) error { return errStore },
	}
	res := RunLogout(context.Background(), LogoutInput{SessionID: "s", RefreshID: "r", Token: "a.b.c"}, deps)
	if !res.SessionRevoked || res.RefreshRevoked || !res.TokenUnsupported {
		t.Fatalf("unexpected result: %+v", res)
	}
	if !errors.Is(res.Err, errStore) {
		t.Fatalf("expected joined store error, got %v", res.Err)
	}
	if len(revoked) != 1 || revoked[0] != "s" {
		t.Fatalf("unexpected revocations: %v", revoked)
	}

	deps.RevokeToken = func(context.Context, string) (bool, error) { return true, nil }
	res = RunLogout(context.Background(), LogoutInput{Token: "a.b.c"}, deps)
	if !res.TokenRevoked || res.TokenUnsupported || res.Err != nil {
		t.Fatalf("unexpected token result: %+v", res)
	}

	if _, err := RunLogoutAll(context.Background(), "u", LogoutDeps{}); err == nil {
		t.Fatal("expected missing bulk hook to fail")
	}
}
