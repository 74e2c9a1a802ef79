package goSession

import (
	"net/http"
	"time"

	"github.com/MrEthical07/goSession/internal"
)

const csrfTokenBytes = 32

// CookiePolicy builds the cookies the engine asks callers to write. Auth
// cookies are always HttpOnly. Production cookies are Secure with
// SameSite=None; development cookies use SameSite=Lax over plain HTTP.
type CookiePolicy struct {
	cfg           CookieConfig
	accessMaxAge  time.Duration
	refreshMaxAge time.Duration
}

// NewCookiePolicy resolves max-ages, falling back to the credential TTLs.
func NewCookiePolicy(cfg CookieConfig, sessionTTL, refreshTTL time.Duration) CookiePolicy {
	p := CookiePolicy{cfg: cfg, accessMaxAge: cfg.AccessMaxAge, refreshMaxAge: cfg.RefreshMaxAge}
	if p.accessMaxAge <= 0 {
		p.accessMaxAge = sessionTTL
	}
	if p.refreshMaxAge <= 0 {
		p.refreshMaxAge = refreshTTL
	}
	if p.cfg.Path == "" {
		p.cfg.Path = "/"
	}
	return p
}

// Access returns the session id cookie.
func (p CookiePolicy) Access(sessionID string) *http.Cookie {
	return p.cookie(p.cfg.SessionName, sessionID, p.accessMaxAge, true)
}

// Refresh returns the refresh id cookie.
func (p CookiePolicy) Refresh(refreshID string) *http.Cookie {
	return p.cookie(p.cfg.RefreshName, refreshID, p.refreshMaxAge, true)
}

// CSRF returns the double-submit cookie. It is readable by scripts so the
// client can echo it in the CSRF header.
func (p CookiePolicy) CSRF(token string) *http.Cookie {
	return p.cookie(p.cfg.CSRFName, token, p.refreshMaxAge, false)
}

// Pair returns both auth cookies for a freshly issued pair.
func (p CookiePolicy) Pair(sessionID, refreshID string) *CookieSet {
	return &CookieSet{Access: p.Access(sessionID), Refresh: p.Refresh(refreshID)}
}

// Clear returns expired copies of both auth cookies.
func (p CookiePolicy) Clear() []*http.Cookie {
	access := p.Access("")
	refresh := p.Refresh("")
	access.MaxAge, refresh.MaxAge = -1, -1
	access.Expires, refresh.Expires = time.Unix(0, 0), time.Unix(0, 0)
	return []*http.Cookie{access, refresh}
}

func (p CookiePolicy) cookie(name, value string, maxAge time.Duration, httpOnly bool) *http.Cookie {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     p.cfg.Path,
		Domain:   p.cfg.Domain,
		MaxAge:   int(maxAge / time.Second),
		HttpOnly: httpOnly,
	}
	if p.cfg.Production {
		c.Secure = true
		c.SameSite = http.SameSiteNoneMode
	} else {
		c.SameSite = http.SameSiteLaxMode
	}
	return c
}

// NewCSRFToken returns a random URL-safe token for the double-submit cookie.
func NewCSRFToken() (string, error) {
	return internal.NewToken(csrfTokenBytes)
}
