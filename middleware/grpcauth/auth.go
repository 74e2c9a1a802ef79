package grpcauth

import (
	"context"
	"errors"
	"net/http"
	"slices"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/middleware"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/auth"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/selector"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

// Authenticator resolves gRPC calls through the engine.
type Authenticator struct {
	resolver middleware.Resolver
	readOnly []string
}

// Option configures an Authenticator.
type Option func(*Authenticator)

// WithReadOnlyMethods lists full method names that never change state.
// Calls to them skip the CSRF check even when they carry forwarded cookies.
func WithReadOnlyMethods(methods ...string) Option {
	return func(a *Authenticator) { a.readOnly = append(a.readOnly, methods...) }
}

// New creates an Authenticator. *goSession.Engine satisfies Resolver.
func New(resolver middleware.Resolver, opts ...Option) *Authenticator {
	a := &Authenticator{resolver: resolver}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// AuthFunc resolves the call's credentials and returns a context carrying
// the resolution. It is meant for the go-grpc-middleware auth interceptors.
func (a *Authenticator) AuthFunc(ctx context.Context) (context.Context, error) {
	if a == nil || a.resolver == nil {
		return nil, status.Error(codes.Unauthenticated, "missing or invalid authorization")
	}

	req := RequestFromContext(ctx)
	if method, ok := grpc.Method(ctx); ok && slices.Contains(a.readOnly, method) {
		req.Mutation = false
	}
	res, err := a.resolver.Resolve(ctx, req)
	if err != nil {
		if errors.Is(err, goSession.ErrStorageUnavailable) {
			return nil, status.Error(codes.Unavailable, "credential store unavailable")
		}
		return nil, status.Error(codes.Internal, "authentication failed")
	}

	sendMutations(ctx, res.Mutations)

	if res.Decision == goSession.DecisionRejectedCSRF {
		return nil, status.Error(codes.PermissionDenied, "csrf validation failed")
	}
	if !res.Authenticated {
		return nil, status.Error(codes.Unauthenticated, "missing or invalid authorization")
	}
	if res.IP != "" {
		ctx = goSession.WithClientIP(ctx, res.IP)
	}
	if ua := req.Header.Get("User-Agent"); ua != "" {
		ctx = goSession.WithUserAgent(ctx, ua)
	}
	return middleware.ContextWithResolution(ctx, &res), nil
}

// UnaryServerInterceptor authenticates every unary call except the listed
// public methods (full method names).
func UnaryServerInterceptor(resolver middleware.Resolver, publicMethods ...string) grpc.UnaryServerInterceptor {
	return New(resolver).UnaryServerInterceptor(publicMethods...)
}

// StreamServerInterceptor is the streaming counterpart of
// UnaryServerInterceptor.
func StreamServerInterceptor(resolver middleware.Resolver, publicMethods ...string) grpc.StreamServerInterceptor {
	return New(resolver).StreamServerInterceptor(publicMethods...)
}

func (a *Authenticator) UnaryServerInterceptor(publicMethods ...string) grpc.UnaryServerInterceptor {
	return selector.UnaryServerInterceptor(
		auth.UnaryServerInterceptor(a.AuthFunc),
		selector.MatchFunc(requiresAuth(publicMethods)),
	)
}

func (a *Authenticator) StreamServerInterceptor(publicMethods ...string) grpc.StreamServerInterceptor {
	return selector.StreamServerInterceptor(
		auth.StreamServerInterceptor(a.AuthFunc),
		selector.MatchFunc(requiresAuth(publicMethods)),
	)
}

func requiresAuth(publicMethods []string) func(context.Context, interceptors.CallMeta) bool {
	return func(_ context.Context, c interceptors.CallMeta) bool {
		return !slices.Contains(publicMethods, c.FullMethod())
	}
}

// RequestFromContext builds the transport-neutral request from incoming
// metadata and the peer address. Browser cookies forwarded by a gateway in
// the "cookie" key are honoured. A call carrying them is a mutation and must
// echo the CSRF cookie in "x-csrf-token" metadata.
func RequestFromContext(ctx context.Context) goSession.Request {
	req := goSession.Request{
		Cookies: map[string]string{},
		Header:  http.Header{},
	}
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		for k, vs := range md {
			if k == "cookie" {
				continue
			}
			req.Header[http.CanonicalHeaderKey(k)] = vs
		}
		lines := md.Get("cookie")
		req.Mutation = len(lines) > 0
		for _, line := range lines {
			cookies, err := http.ParseCookie(line)
			if err != nil {
				continue
			}
			for _, c := range cookies {
				if _, seen := req.Cookies[c.Name]; !seen {
					req.Cookies[c.Name] = c.Value
				}
			}
		}
	}
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		req.RemoteAddr = p.Addr.String()
	}
	return req
}

// sendMutations forwards cookie changes as set-cookie response headers for a
// gateway to relay. Calls without a transport stream have nowhere to send
// them; that is not an error.
func sendMutations(ctx context.Context, m goSession.Mutations) {
	cookies := m.Cookies()
	if len(cookies) == 0 {
		return
	}
	md := metadata.MD{}
	for _, c := range cookies {
		md.Append("set-cookie", c.String())
	}
	_ = grpc.SetHeader(ctx, md)
}
