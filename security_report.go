package goSession

import internalsecurity "github.com/MrEthical07/goSession/internal/security"

// SecurityReport is a read-only snapshot of the engine's security posture,
// returned by [Engine.SecurityReport].
type SecurityReport = internalsecurity.Report

func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}
	c := e.config
	return internalsecurity.BuildReport(internalsecurity.ReportInput{
		ProductionCookies: c.Cookie.Production,
		AuthMode:          string(c.Resolver.Mode),
		TokensEnabled:     c.Token.Enabled,
		SigningAlgorithm:  c.Token.SigningMethod,
		SessionTTL:        c.Session.SessionTTL,
		RefreshTTL:        c.Session.RefreshTTL,
		TokenTTL:          c.Token.TTL,
		AutoRefresh:       c.Resolver.AutoRefresh,
		TokenDenylist:     c.Token.Denylist,
		TrustProxyHeaders: c.Resolver.TrustProxyHeaders,
		RateLimitEnabled:  c.RateLimit.Enabled,
		MaxLoginAttempts:  c.RateLimit.MaxLoginAttempts,
		LoginCooldown:     c.RateLimit.LoginCooldown,
		AuditEnabled:      c.Audit.Enabled,
	})
}
