package goSession

import (
	"context"
	"errors"

	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/session"
)

// TokenStrategy authenticates with self-contained signed tokens. Without a
// denylist, tokens cannot be revoked before they expire.
type TokenStrategy struct {
	manager  *jwt.Manager
	denylist jwt.Denylist
	deps     StrategyDeps
}

// NewTokenStrategy binds the strategy to a token manager. denylist may be nil.
func NewTokenStrategy(manager *jwt.Manager, denylist jwt.Denylist, deps StrategyDeps) (*TokenStrategy, error) {
	if manager == nil {
		return nil, errors.New("token manager required")
	}
	return &TokenStrategy{manager: manager, denylist: denylist, deps: deps}, nil
}

func (*TokenStrategy) Kind() Kind { return KindSignedToken }

func (*TokenStrategy) sealed() {}

// CanIssue reports whether the strategy holds a signing key.
func (t *TokenStrategy) CanIssue() bool { return t.manager.CanIssue() }

// Revocable reports whether a denylist is attached.
func (t *TokenStrategy) Revocable() bool { return t.denylist != nil }

// Authenticate validates creds and issues a token.
func (t *TokenStrategy) Authenticate(ctx context.Context, creds Credentials) (AuthResult, error) {
	if !t.manager.CanIssue() {
		return AuthResult{}, ErrUnsupportedOperation
	}
	id, md, failed, err := t.deps.identify(ctx, KindSignedToken, creds)
	if err != nil || id == nil {
		return failed, err
	}
	return t.issue(id.UserID, md)
}

func (t *TokenStrategy) issue(userID string, md session.Metadata) (AuthResult, error) {
	token, claims, err := t.manager.Issue(userID, md)
	if err != nil {
		t.deps.logger().Error("goSession: token issue failed", "error", err)
		return failedResult(CodeAuthError), nil
	}
	return AuthResult{
		Success:  true,
		Code:     CodeLoginSuccess,
		Message:  CodeLoginSuccess.Message(),
		UserID:   claims.UUID,
		User:     claims.Metadata.User,
		Metadata: claims.Metadata,
		Token:    token,
	}, nil
}

// Validate verifies the token signature and time claims, then consults the
// denylist when one is attached.
func (t *TokenStrategy) Validate(ctx context.Context, token string) (ValidationResult, error) {
	if token == "" {
		return ValidationResult{}, nil
	}
	claims, err := t.manager.Parse(token)
	if err != nil {
		t.deps.logger().Debug("goSession: token rejected", "reason", err.Error())
		return ValidationResult{}, nil
	}
	if t.denylist != nil {
		denied, err := t.denylist.IsDenied(ctx, claims.ID)
		if err != nil {
			return ValidationResult{}, err
		}
		if denied {
			t.deps.logger().Debug("goSession: token revoked")
			return ValidationResult{}, nil
		}
	}
	return ValidationResult{
		Valid:    true,
		UserID:   claims.UUID,
		User:     claims.Metadata.User,
		Metadata: claims.Metadata,
		Claims:   claims,
	}, nil
}

// Revoke denies the token's id until its expiry. Without a denylist, or for
// a token that carries no id, it returns RevokeUnsupported and the token
// remains usable. A token that no
// longer verifies is already unusable and counts as revoked.
func (t *TokenStrategy) Revoke(ctx context.Context, token string) (RevokeOutcome, error) {
	if t.denylist == nil {
		return RevokeUnsupported, nil
	}
	claims, err := t.manager.Parse(token)
	if err != nil || claims.ExpiresAt == nil {
		return RevokeApplied, nil
	}
	// A verified token without a jti has nothing to deny.
	if claims.ID == "" {
		return RevokeUnsupported, nil
	}
	if err := t.denylist.Deny(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return 0, err
	}
	return RevokeApplied, nil
}

var _ Strategy = (*TokenStrategy)(nil)
