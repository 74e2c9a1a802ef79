package middleware

import (
	"context"
	"errors"
	"net/http"

	goSession "github.com/MrEthical07/goSession"
)

// Resolver is the part of the engine the middleware needs.
// *goSession.Engine satisfies it.
type Resolver interface {
	Resolve(ctx context.Context, req goSession.Request) (goSession.Resolution, error)
}

type resolutionContextKey struct{}

// ContextWithResolution stores res in ctx.
func ContextWithResolution(ctx context.Context, res *goSession.Resolution) context.Context {
	return context.WithValue(ctx, resolutionContextKey{}, res)
}

// ResolutionFromContext returns the resolution stored by a guard.
func ResolutionFromContext(ctx context.Context) (*goSession.Resolution, bool) {
	res, ok := ctx.Value(resolutionContextKey{}).(*goSession.Resolution)
	return res, ok && res != nil
}

// Guard rejects requests that do not authenticate: 403 on a failed CSRF
// check, 401 otherwise, 503 when the credential store is down. Cookie
// mutations are written before the handler runs, including on 401.
func Guard(resolver Resolver) func(http.Handler) http.Handler {
	return guard(resolver, true, nil)
}

// Optional resolves the request and stores the resolution in the context,
// but lets unauthenticated requests through. CSRF rejections and store
// failures are still refused.
func Optional(resolver Resolver) func(http.Handler) http.Handler {
	return guard(resolver, false, nil)
}

func guard(resolver Resolver, required bool, allow func(*goSession.Resolution) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if resolver == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			res, err := resolver.Resolve(r.Context(), RequestFromHTTP(r))
			if err != nil {
				if errors.Is(err, goSession.ErrStorageUnavailable) {
					http.Error(w, "service unavailable", http.StatusServiceUnavailable)
					return
				}
				http.Error(w, "internal error", http.StatusInternalServerError)
				return
			}

			WriteMutations(w, res.Mutations)

			switch {
			case res.Decision == goSession.DecisionRejectedCSRF:
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			case !res.Authenticated && required:
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			case res.Authenticated && allow != nil && !allow(&res):
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}

			ctx := r.Context()
			if ip := res.IP; ip != "" {
				ctx = goSession.WithClientIP(ctx, ip)
			}
			if ua := r.UserAgent(); ua != "" {
				ctx = goSession.WithUserAgent(ctx, ua)
			}
			ctx = ContextWithResolution(ctx, &res)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestFromHTTP builds the transport-neutral request. When a cookie name
// repeats, the first value wins.
func RequestFromHTTP(r *http.Request) goSession.Request {
	cookies := make(map[string]string)
	for _, c := range r.Cookies() {
		if _, seen := cookies[c.Name]; !seen {
			cookies[c.Name] = c.Value
		}
	}
	return goSession.Request{
		Cookies:    cookies,
		Header:     r.Header,
		RemoteAddr: r.RemoteAddr,
		Mutation:   !isSafeMethod(r.Method),
	}
}

// WriteMutations applies the engine's cookie changes to w.
func WriteMutations(w http.ResponseWriter, m goSession.Mutations) {
	for _, c := range m.Cookies() {
		http.SetCookie(w, c)
	}
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	}
	return false
}
