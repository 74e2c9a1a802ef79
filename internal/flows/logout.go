package flows

import (
	"context"
	"errors"
)

// LogoutInput names the credentials to retire. Any of them may be empty.
type LogoutInput struct {
	SessionID string
	RefreshID string
	Token     string
}

// LogoutResult reports what was revoked. TokenUnsupported is set when a
// signed token was presented but no denylist is attached, so it stays valid
// until it expires.
type LogoutResult struct {
	SessionRevoked   bool
	RefreshRevoked   bool
	TokenRevoked     bool
	TokenUnsupported bool
	Err              error
}

// LogoutDeps holds revocation hooks. RevokeToken reports whether revocation
// was applied; a nil hook means token revocation is not available.
type LogoutDeps struct {
	RevokeSession    func(context.Context, string) error
	RevokeRefresh    func(context.Context, string) error
	RevokeToken      func(context.Context, string) (bool, error)
	RevokeAllForUser func(context.Context, string) (int, error)
}

// RunLogout revokes every credential in the input. All revocations are
// attempted even if one fails; the errors are joined.
func RunLogout(ctx context.Context, in LogoutInput, deps LogoutDeps) LogoutResult {
	var res LogoutResult
	var errs []error

	if in.SessionID != "" && deps.RevokeSession != nil {
		if err := deps.RevokeSession(ctx, in.SessionID); err != nil {
			errs = append(errs, err)
		} else {
			res.SessionRevoked = true
		}
	}
	if in.RefreshID != "" && deps.RevokeRefresh != nil {
		if err := deps.RevokeRefresh(ctx, in.RefreshID); err != nil {
			errs = append(errs, err)
		} else {
			res.RefreshRevoked = true
		}
	}
	if in.Token != "" {
		if deps.RevokeToken == nil {
			res.TokenUnsupported = true
		} else {
			applied, err := deps.RevokeToken(ctx, in.Token)
			switch {
			case err != nil:
				errs = append(errs, err)
			case applied:
				res.TokenRevoked = true
			default:
				res.TokenUnsupported = true
			}
		}
	}

	res.Err = errors.Join(errs...)
	return res
}

// RunLogoutAll revokes every session indexed for userID.
func RunLogoutAll(ctx context.Context, userID string, deps LogoutDeps) (int, error) {
	if userID == "" {
		return 0, errors.New("empty user id")
	}
	if deps.RevokeAllForUser == nil {
		return 0, errors.New("bulk revocation not configured")
	}
	return deps.RevokeAllForUser(ctx, userID)
}
