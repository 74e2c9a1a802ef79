package goSession

import (
	"context"
	"log/slog"

	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/session"
)

// Kind names a credential strategy.
type Kind int

const (
	// KindSession issues opaque session ids backed by the session registry.
	KindSession Kind = iota + 1
	// KindSignedToken issues self-contained signed tokens.
	KindSignedToken
)

func (k Kind) String() string {
	switch k {
	case KindSession:
		return "session"
	case KindSignedToken:
		return "signed_token"
	default:
		return "unknown"
	}
}

// Credentials is what a caller presents at login. The subsystem never looks
// inside Secret; it is passed to the UserValidator as-is.
type Credentials struct {
	Identifier string
	Secret     string
	Extra      map[string]string
}

// Identity is the authenticated principal returned by a UserValidator.
type Identity struct {
	UserID string
	User   *session.User
	Role   string
}

// UserValidator checks login credentials against the application's user
// store. It returns nil, nil for credentials that do not match; an error is
// reserved for infrastructure failures.
type UserValidator interface {
	ValidateUser(ctx context.Context, creds Credentials) (*Identity, error)
}

// UserValidatorFunc adapts a function to UserValidator.
type UserValidatorFunc func(ctx context.Context, creds Credentials) (*Identity, error)

func (f UserValidatorFunc) ValidateUser(ctx context.Context, creds Credentials) (*Identity, error) {
	return f(ctx, creds)
}

// DeviceDetector turns request attributes into a device description for
// session metadata. Implementations must not block for long; it runs on the
// login path.
type DeviceDetector interface {
	Detect(ctx context.Context, ip, userAgent string) *session.Device
}

// ResultCode is the machine-readable outcome of Authenticate and Refresh.
type ResultCode string

const (
	CodeLoginSuccess        ResultCode = "LOGIN_SUCCESS"
	CodeInvalidCredentials  ResultCode = "INVALID_CREDENTIALS"
	CodeAuthError           ResultCode = "AUTH_ERROR"
	CodeRefreshSuccess      ResultCode = "REFRESH_SUCCESS"
	CodeInvalidRefreshToken ResultCode = "INVALID_REFRESH_TOKEN"
	CodeRateLimited         ResultCode = "RATE_LIMITED"
)

var resultMessages = map[ResultCode]string{
	CodeLoginSuccess:        "Authentication successful",
	CodeInvalidCredentials:  "Invalid credentials provided",
	CodeAuthError:           "Authentication failed",
	CodeRefreshSuccess:      "Session refreshed successfully",
	CodeInvalidRefreshToken: "Invalid or expired refresh token",
	CodeRateLimited:         "Too many failed attempts, try again later",
}

// Message returns the human-readable text for c.
func (c ResultCode) Message() string {
	return resultMessages[c]
}

// AuthResult is the outcome of a login or refresh. Exactly one of SessionID
// or Token is set on success, except for hybrid logins which carry both.
type AuthResult struct {
	Success   bool
	Code      ResultCode
	Message   string
	UserID    string
	User      *session.User
	Metadata  session.Metadata
	SessionID string
	RefreshID string
	Token     string
}

func failedResult(code ResultCode) AuthResult {
	return AuthResult{Code: code, Message: code.Message()}
}

// ValidationResult is the outcome of validating one credential. Session is
// set for the session strategy, Claims for the signed-token strategy.
type ValidationResult struct {
	Valid    bool
	UserID   string
	User     *session.User
	Metadata session.Metadata
	Session  *session.Session
	Claims   *jwt.Claims
}

// RevokeOutcome reports whether a revocation took effect.
type RevokeOutcome int

const (
	// RevokeApplied means the credential can no longer be used.
	RevokeApplied RevokeOutcome = iota + 1
	// RevokeUnsupported means the credential stays valid until it expires,
	// because no denylist is configured for signed tokens.
	RevokeUnsupported
)

func (o RevokeOutcome) String() string {
	switch o {
	case RevokeApplied:
		return "applied"
	case RevokeUnsupported:
		return "unsupported"
	default:
		return "unknown"
	}
}

// Strategy is a credential scheme. The set of implementations is closed:
// SessionStrategy and TokenStrategy.
//
// Rejected credentials are reported through the result value. The only
// error returned for a credential check is one wrapping
// ErrStorageUnavailable. Strategies never guess what kind of credential a
// string is; routing by shape is the Bridge's job.
type Strategy interface {
	Kind() Kind
	Authenticate(ctx context.Context, creds Credentials) (AuthResult, error)
	Validate(ctx context.Context, credential string) (ValidationResult, error)
	Revoke(ctx context.Context, credential string) (RevokeOutcome, error)

	sealed()
}

// Refresher is implemented by strategies that support refresh rotation.
type Refresher interface {
	Refresh(ctx context.Context, refreshID string) (AuthResult, error)
}

// StrategyDeps are the collaborators shared by both strategies. Users is
// required for Authenticate; Devices and Logger are optional.
type StrategyDeps struct {
	Users   UserValidator
	Devices DeviceDetector
	Logger  *slog.Logger
}

func (d StrategyDeps) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.Default()
	}
	return d.Logger
}

// identify runs the user validator and builds login metadata. When the
// returned Identity is nil, the AuthResult holds the failure to report.
func (d StrategyDeps) identify(ctx context.Context, kind Kind, creds Credentials) (*Identity, session.Metadata, AuthResult, error) {
	if d.Users == nil {
		return nil, session.Metadata{}, AuthResult{}, ErrUnsupportedOperation
	}
	id, err := d.Users.ValidateUser(ctx, creds)
	if err != nil {
		d.logger().Error("goSession: user validation failed", "strategy", kind.String(), "error", err)
		return nil, session.Metadata{}, failedResult(CodeAuthError), nil
	}
	if id == nil || id.UserID == "" {
		return nil, session.Metadata{}, failedResult(CodeInvalidCredentials), nil
	}

	ip := clientIPFromContext(ctx)
	ua := userAgentFromContext(ctx)
	md := session.Metadata{
		User:      id.User,
		Role:      id.Role,
		IP:        ip,
		UserAgent: ua,
	}
	if d.Devices != nil && (ip != "" || ua != "") {
		md.Device = d.Devices.Detect(ctx, ip, ua)
	}
	return id, md, AuthResult{}, nil
}
