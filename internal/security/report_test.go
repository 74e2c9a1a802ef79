package security

import (
	"testing"
	"time"
)

func TestBuildReportHardened(t *testing.T) {
	r := BuildReport(ReportInput{
		ProductionCookies: true,
		AuthMode:          "hybrid",
		TokensEnabled:     true,
		SigningAlgorithm:  "ed25519",
		TokenTTL:          15 * time.Minute,
		TokenDenylist:     true,
		RateLimitEnabled:  true,
		MaxLoginAttempts:  5,
		LoginCooldown:     time.Minute,
	})
	if r.TokenRevocation != RevocationDenylist {
		t.Fatalf("TokenRevocation = %q", r.TokenRevocation)
	}
	if !r.RateLimitingActive {
		t.Fatal("expected rate limiting active")
	}
	if len(r.Warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", r.Warnings)
	}
}

func TestBuildReportWarnings(t *testing.T) {
	r := BuildReport(ReportInput{
		AuthMode:          "token",
		TokensEnabled:     true,
		SigningAlgorithm:  "hs256",
		TrustProxyHeaders: true,
		RateLimitEnabled:  true,
	})
	if r.TokenRevocation != RevocationExpiryOnly {
		t.Fatalf("TokenRevocation = %q", r.TokenRevocation)
	}
	if r.RateLimitingActive {
		t.Fatal("rate limiting without a budget must not count as active")
	}
	if len(r.Warnings) != 4 {
		t.Fatalf("expected 4 warnings, got %v", r.Warnings)
	}
}

func TestBuildReportCookieOnly(t *testing.T) {
	r := BuildReport(ReportInput{AuthMode: "cookie", SigningAlgorithm: "ed25519", TokenTTL: time.Hour})
	if r.SigningAlgorithm != "" || r.TokenTTL != 0 || r.TokenRevocation != RevocationNone {
		t.Fatalf("token fields must be empty without tokens: %+v", r)
	}
}
