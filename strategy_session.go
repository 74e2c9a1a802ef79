package goSession

import (
	"context"
	"errors"

	"github.com/MrEthical07/goSession/session"
)

// SessionStrategy authenticates with opaque server-side sessions.
type SessionStrategy struct {
	registry *session.Registry
	deps     StrategyDeps
}

// NewSessionStrategy binds the strategy to a registry.
func NewSessionStrategy(registry *session.Registry, deps StrategyDeps) (*SessionStrategy, error) {
	if registry == nil {
		return nil, errors.New("session registry required")
	}
	return &SessionStrategy{registry: registry, deps: deps}, nil
}

func (*SessionStrategy) Kind() Kind { return KindSession }

func (*SessionStrategy) sealed() {}

// Registry exposes the underlying registry for metadata updates and listing.
func (s *SessionStrategy) Registry() *session.Registry { return s.registry }

// Authenticate validates creds and opens a new session pair.
func (s *SessionStrategy) Authenticate(ctx context.Context, creds Credentials) (AuthResult, error) {
	id, md, failed, err := s.deps.identify(ctx, KindSession, creds)
	if err != nil || id == nil {
		return failed, err
	}
	return s.open(ctx, id.UserID, md)
}

func (s *SessionStrategy) open(ctx context.Context, userID string, md session.Metadata) (AuthResult, error) {
	pair, err := s.registry.Create(ctx, userID, md)
	if err != nil {
		return failedResult(CodeAuthError), err
	}
	return AuthResult{
		Success:   true,
		Code:      CodeLoginSuccess,
		Message:   CodeLoginSuccess.Message(),
		UserID:    pair.UserID,
		User:      pair.Metadata.User,
		Metadata:  pair.Metadata,
		SessionID: pair.SessionID,
		RefreshID: pair.RefreshID,
	}, nil
}

// Validate looks up the session and slides its expiry.
func (s *SessionStrategy) Validate(ctx context.Context, sessionID string) (ValidationResult, error) {
	if sessionID == "" {
		return ValidationResult{}, nil
	}
	sess, err := s.registry.Validate(ctx, sessionID)
	if err != nil {
		return ValidationResult{}, err
	}
	if sess == nil {
		s.deps.logger().Debug("goSession: session not found or expired")
		return ValidationResult{}, nil
	}
	return ValidationResult{
		Valid:    true,
		UserID:   sess.UserID,
		User:     sess.Metadata.User,
		Metadata: sess.Metadata,
		Session:  sess,
	}, nil
}

// Revoke deletes the session. Unknown ids are not an error.
func (s *SessionStrategy) Revoke(ctx context.Context, sessionID string) (RevokeOutcome, error) {
	if err := s.registry.Revoke(ctx, sessionID); err != nil {
		return 0, err
	}
	return RevokeApplied, nil
}

// Refresh consumes refreshID and returns a brand new pair. A refresh id can
// succeed at most once, even under concurrent use.
func (s *SessionStrategy) Refresh(ctx context.Context, refreshID string) (AuthResult, error) {
	if refreshID == "" {
		return failedResult(CodeInvalidRefreshToken), nil
	}
	pair, err := s.registry.Refresh(ctx, refreshID)
	if err != nil {
		return failedResult(CodeAuthError), err
	}
	if pair == nil {
		return failedResult(CodeInvalidRefreshToken), nil
	}
	return AuthResult{
		Success:   true,
		Code:      CodeRefreshSuccess,
		Message:   CodeRefreshSuccess.Message(),
		UserID:    pair.UserID,
		User:      pair.Metadata.User,
		Metadata:  pair.Metadata,
		SessionID: pair.SessionID,
		RefreshID: pair.RefreshID,
	}, nil
}

func (s *SessionStrategy) refreshPair(ctx context.Context, refreshID string) (*session.Pair, error) {
	return s.registry.Refresh(ctx, refreshID)
}

var (
	_ Strategy  = (*SessionStrategy)(nil)
	_ Refresher = (*SessionStrategy)(nil)
)
