package flows

import (
	"context"
	"time"

	"github.com/MrEthical07/goSession/internal"
	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/session"
)

// Resolution modes. The root package maps its AuthMode onto these.
const (
	ModeCookie = "cookie"
	ModeToken  = "token"
	ModeHybrid = "hybrid"
)

// ResolveFailureKind classifies why a request did not resolve to an identity.
type ResolveFailureKind int

const (
	ResolveFailureNone ResolveFailureKind = iota
	ResolveFailureUnauthenticated
	ResolveFailureCSRF
	ResolveFailureCancelled
	ResolveFailureStorage
)

// ResolveInput is the credential material already pulled out of a request.
type ResolveInput struct {
	Mode          string
	SessionID     string
	RefreshID     string
	Bearer        string
	HasAuthCookie bool
	Mutation      bool
	CSRFCookie    string
	CSRFHeader    string
}

// ResolveResult carries either an identity (Session or Claims) or a failure.
// Rotated is set when an expired session was replaced using the refresh id.
type ResolveResult struct {
	Failure      ResolveFailureKind
	Err          error
	Session      *session.Session
	Claims       *jwt.Claims
	Rotated      *session.Pair
	Token        string
	ClearCookies bool
}

// ResolveDeps are the lookups RunResolve may perform. A nil ValidateToken
// means signed tokens are not accepted; a nil RefreshSession or a false
// AutoRefresh disables rotation on the cookie path.
type ResolveDeps struct {
	ValidateSession func(context.Context, string) (*session.Session, error)
	RefreshSession  func(context.Context, string) (*session.Pair, error)
	ValidateToken   func(context.Context, string) (*jwt.Claims, error)
	AutoRefresh     bool
	Now             func() time.Time
}

// RunResolve turns extracted credentials into an identity decision.
//
// The CSRF double-submit check runs before any lookup and only for state
// changing requests that carry an auth cookie. A context cancelled before or
// during resolution yields ResolveFailureCancelled with no cookie changes.
func RunResolve(ctx context.Context, in ResolveInput, deps ResolveDeps) ResolveResult {
	if ctx.Err() != nil {
		return ResolveResult{Failure: ResolveFailureCancelled}
	}

	usesCookies := in.Mode != ModeToken
	if usesCookies && in.Mutation && in.HasAuthCookie && !internal.TokensEqual(in.CSRFCookie, in.CSRFHeader) {
		return ResolveResult{Failure: ResolveFailureCSRF}
	}

	switch in.Mode {
	case ModeToken:
		return resolveToken(ctx, in.Bearer, deps)
	case ModeHybrid:
		return resolveHybrid(ctx, in, deps)
	default:
		return resolveCookie(ctx, in, deps)
	}
}

func resolveCookie(ctx context.Context, in ResolveInput, deps ResolveDeps) ResolveResult {
	if in.SessionID != "" {
		sess, err := deps.ValidateSession(ctx, in.SessionID)
		if res, stop := interrupted(ctx, err); stop {
			return res
		}
		if sess != nil {
			return ResolveResult{Session: sess}
		}
	}

	if in.RefreshID != "" && deps.AutoRefresh && deps.RefreshSession != nil {
		pair, err := deps.RefreshSession(ctx, in.RefreshID)
		if res, stop := interrupted(ctx, err); stop {
			return res
		}
		if pair != nil {
			return ResolveResult{Session: sessionFromPair(pair, deps.Now), Rotated: pair}
		}
	}

	return ResolveResult{
		Failure:      ResolveFailureUnauthenticated,
		ClearCookies: in.SessionID != "" || in.RefreshID != "",
	}
}

func resolveToken(ctx context.Context, token string, deps ResolveDeps) ResolveResult {
	if token == "" || deps.ValidateToken == nil {
		return ResolveResult{Failure: ResolveFailureUnauthenticated}
	}
	claims, err := deps.ValidateToken(ctx, token)
	if res, stop := interrupted(ctx, err); stop {
		return res
	}
	if claims == nil {
		return ResolveResult{Failure: ResolveFailureUnauthenticated}
	}
	return ResolveResult{Claims: claims, Token: token}
}

// resolveHybrid tries cookies first. When they do not authenticate, the bearer
// credential is routed by shape: three segments go to the token verifier,
// anything else is treated as a session id.
func resolveHybrid(ctx context.Context, in ResolveInput, deps ResolveDeps) ResolveResult {
	var cookieRes ResolveResult
	if in.SessionID != "" || in.RefreshID != "" {
		cookieRes = resolveCookie(ctx, in, deps)
		if cookieRes.Failure != ResolveFailureUnauthenticated || in.Bearer == "" {
			return cookieRes
		}
	}
	if in.Bearer == "" {
		return ResolveResult{Failure: ResolveFailureUnauthenticated}
	}

	var res ResolveResult
	if jwt.HasTokenShape(in.Bearer) {
		res = resolveToken(ctx, in.Bearer, deps)
	} else {
		res = resolveCookie(ctx, ResolveInput{SessionID: in.Bearer}, deps)
		// A bearer session id is not a cookie; there is nothing to clear.
		res.ClearCookies = false
	}
	if res.Failure == ResolveFailureNone || res.Failure == ResolveFailureUnauthenticated {
		res.ClearCookies = res.ClearCookies || cookieRes.ClearCookies
	}
	return res
}

func interrupted(ctx context.Context, err error) (ResolveResult, bool) {
	if ctx.Err() != nil {
		return ResolveResult{Failure: ResolveFailureCancelled}, true
	}
	if err != nil {
		return ResolveResult{Failure: ResolveFailureStorage, Err: err}, true
	}
	return ResolveResult{}, false
}

func sessionFromPair(pair *session.Pair, now func() time.Time) *session.Session {
	if now == nil {
		now = time.Now
	}
	ts := now().UTC()
	return &session.Session{
		SessionID:      pair.SessionID,
		UserID:         pair.UserID,
		Metadata:       pair.Metadata,
		CreatedAt:      ts,
		LastAccessedAt: ts,
	}
}
