package goSession

import (
	"context"
	"time"

	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/session"
)

// sessionAudience is the audience reported by Verify for opaque sessions.
const sessionAudience = "session"

// IsSignedTokenShape reports whether s looks like a compact signed token:
// exactly three dot-separated segments. Session ids never contain dots.
func IsSignedTokenShape(s string) bool {
	return jwt.HasTokenShape(s)
}

// SessionFromClaims extracts what a session needs from verified claims.
func SessionFromClaims(claims *jwt.Claims) (string, session.Metadata) {
	if claims == nil {
		return "", session.Metadata{}
	}
	return claims.UUID, claims.Metadata
}

// ClaimsFromSession extracts what a token needs from a live session.
func ClaimsFromSession(sess *session.Session) (string, session.Metadata) {
	if sess == nil {
		return "", session.Metadata{}
	}
	return sess.UserID, sess.Metadata
}

// Payload is the unified view of a verified credential. For a session the
// audience is "session", IssuedAt is the creation time and ExpiresAt is the
// slid expiry that validation just armed.
type Payload struct {
	UUID      string           `json:"uuid"`
	Audience  string           `json:"aud"`
	IssuedAt  time.Time        `json:"iat"`
	ExpiresAt time.Time        `json:"exp"`
	Metadata  session.Metadata `json:"metadata"`
}

// Bridge converts between the two credential kinds and serves callers that
// hold a credential without knowing which kind it is. tokens may be nil.
type Bridge struct {
	sessions *SessionStrategy
	tokens   *TokenStrategy
	now      func() time.Time
}

// NewBridge wires a bridge over the configured strategies.
func NewBridge(sessions *SessionStrategy, tokens *TokenStrategy) *Bridge {
	return &Bridge{sessions: sessions, tokens: tokens, now: time.Now}
}

// SessionFromToken verifies token and opens a session for its subject.
func (b *Bridge) SessionFromToken(ctx context.Context, token string) (*session.Pair, error) {
	if b.tokens == nil {
		return nil, ErrUnsupportedOperation
	}
	res, err := b.tokens.Validate(ctx, token)
	if err != nil {
		return nil, err
	}
	if !res.Valid {
		return nil, ErrInvalidOrExpiredToken
	}
	userID, md := SessionFromClaims(res.Claims)
	return b.sessions.registry.Create(ctx, userID, md)
}

// TokenFromSession issues a token carrying the session's user and metadata.
// The session stays live.
func (b *Bridge) TokenFromSession(ctx context.Context, sessionID string) (string, error) {
	if b.tokens == nil || !b.tokens.CanIssue() {
		return "", ErrUnsupportedOperation
	}
	res, err := b.sessions.Validate(ctx, sessionID)
	if err != nil {
		return "", err
	}
	if !res.Valid {
		return "", ErrInvalidOrExpiredSession
	}
	userID, md := ClaimsFromSession(res.Session)
	token, _, err := b.tokens.manager.Issue(userID, md)
	if err != nil {
		return "", err
	}
	return token, nil
}

// Revoke routes credential to the matching strategy by shape.
func (b *Bridge) Revoke(ctx context.Context, credential string) (RevokeOutcome, error) {
	if IsSignedTokenShape(credential) {
		if b.tokens == nil {
			return RevokeUnsupported, nil
		}
		return b.tokens.Revoke(ctx, credential)
	}
	return b.sessions.Revoke(ctx, credential)
}

// Verify validates credential of either kind and returns the unified payload.
func (b *Bridge) Verify(ctx context.Context, credential string) (*Payload, error) {
	if IsSignedTokenShape(credential) {
		if b.tokens == nil {
			return nil, ErrUnsupportedOperation
		}
		res, err := b.tokens.Validate(ctx, credential)
		if err != nil {
			return nil, err
		}
		if !res.Valid {
			return nil, ErrInvalidOrExpiredToken
		}
		p := &Payload{UUID: res.Claims.UUID, Metadata: res.Claims.Metadata}
		if len(res.Claims.Audience) > 0 {
			p.Audience = res.Claims.Audience[0]
		}
		if res.Claims.IssuedAt != nil {
			p.IssuedAt = res.Claims.IssuedAt.Time
		}
		if res.Claims.ExpiresAt != nil {
			p.ExpiresAt = res.Claims.ExpiresAt.Time
		}
		return p, nil
	}

	res, err := b.sessions.Validate(ctx, credential)
	if err != nil {
		return nil, err
	}
	if !res.Valid {
		return nil, ErrInvalidOrExpiredSession
	}
	return &Payload{
		UUID:      res.Session.UserID,
		Audience:  sessionAudience,
		IssuedAt:  res.Session.CreatedAt,
		ExpiresAt: b.now().Add(b.sessions.registry.SessionTTL()),
		Metadata:  res.Session.Metadata,
	}, nil
}
