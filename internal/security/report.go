package security

import "time"

// Report is a read-only summary of an engine's security posture.
type Report struct {
	ProductionCookies  bool
	AuthMode           string
	SigningAlgorithm   string
	SessionTTL         time.Duration
	RefreshTTL         time.Duration
	TokenTTL           time.Duration
	AutoRefresh        bool
	TokenRevocation    string
	TrustProxyHeaders  bool
	RateLimitingActive bool
	AuditEnabled       bool
	// Warnings lists settings that weaken the posture, most severe first.
	Warnings []string
}

// ReportInput is the subset of configuration the report is derived from.
type ReportInput struct {
	ProductionCookies bool
	AuthMode          string
	TokensEnabled     bool
	SigningAlgorithm  string
	SessionTTL        time.Duration
	RefreshTTL        time.Duration
	TokenTTL          time.Duration
	AutoRefresh       bool
	TokenDenylist     bool
	TrustProxyHeaders bool
	RateLimitEnabled  bool
	MaxLoginAttempts  int
	LoginCooldown     time.Duration
	AuditEnabled      bool
}

// Token revocation modes reported in Report.TokenRevocation.
const (
	RevocationNone       = "none"
	RevocationExpiryOnly = "expiry-only"
	RevocationDenylist   = "denylist"
)

func BuildReport(input ReportInput) Report {
	rateLimiting := input.RateLimitEnabled &&
		input.MaxLoginAttempts > 0 &&
		input.LoginCooldown > 0

	r := Report{
		ProductionCookies:  input.ProductionCookies,
		AuthMode:           input.AuthMode,
		SessionTTL:         input.SessionTTL,
		RefreshTTL:         input.RefreshTTL,
		AutoRefresh:        input.AutoRefresh,
		TrustProxyHeaders:  input.TrustProxyHeaders,
		RateLimitingActive: rateLimiting,
		AuditEnabled:       input.AuditEnabled,
		TokenRevocation:    RevocationNone,
	}

	if input.TokensEnabled {
		r.SigningAlgorithm = input.SigningAlgorithm
		r.TokenTTL = input.TokenTTL
		r.TokenRevocation = RevocationExpiryOnly
		if input.TokenDenylist {
			r.TokenRevocation = RevocationDenylist
		}
	}

	if !r.ProductionCookies {
		r.Warnings = append(r.Warnings, "cookies are sent without the Secure attribute")
	}
	if r.TokenRevocation == RevocationExpiryOnly {
		r.Warnings = append(r.Warnings, "signed tokens stay valid until expiry after logout")
	}
	if !r.RateLimitingActive {
		r.Warnings = append(r.Warnings, "failed logins are not throttled")
	}
	if r.TrustProxyHeaders {
		r.Warnings = append(r.Warnings, "client IP is taken from forwarding headers")
	}
	return r
}
