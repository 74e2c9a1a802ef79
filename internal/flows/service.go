package flows

import "context"

// Service is the flow runner built once by the root engine.
type Service struct {
	deps Deps
}

// New returns a flow service with immutable dependency wiring.
func New(deps Deps) Service {
	return Service{deps: deps}
}

// Initialized reports whether the service has been wired.
func (s Service) Initialized() bool {
	return s.deps.Resolve.ValidateSession != nil
}

func (s Service) Resolve(ctx context.Context, in ResolveInput) ResolveResult {
	return RunResolve(ctx, in, s.deps.Resolve)
}

func (s Service) Logout(ctx context.Context, in LogoutInput) LogoutResult {
	return RunLogout(ctx, in, s.deps.Logout)
}

func (s Service) LogoutAll(ctx context.Context, userID string) (int, error) {
	return RunLogoutAll(ctx, userID, s.deps.Logout)
}
