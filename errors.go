package goSession

import (
	"errors"

	"github.com/MrEthical07/goSession/session"
)

var (
	// ErrInvalidCredentials is returned when the user validator rejects a login.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidOrExpiredSession covers unknown, expired and revoked session ids.
	ErrInvalidOrExpiredSession = errors.New("invalid or expired session")
	// ErrInvalidOrExpiredRefresh covers unknown, consumed and expired refresh ids.
	ErrInvalidOrExpiredRefresh = errors.New("invalid or expired refresh token")
	// ErrInvalidOrExpiredToken covers every signed token verification failure.
	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")
	// ErrCSRFValidationFailed is reported for state-changing cookie requests
	// whose CSRF header does not match the CSRF cookie.
	ErrCSRFValidationFailed = errors.New("csrf validation failed")
	// ErrStorageUnavailable is the only error a credential check returns as an
	// error rather than as a negative result.
	ErrStorageUnavailable = session.ErrStorageUnavailable
	// ErrUnsupportedOperation is returned when the engine lacks the component
	// an operation needs, such as a signing key for token issuance.
	ErrUnsupportedOperation = errors.New("unsupported operation")
	ErrEngineNotReady       = errors.New("engine not initialized")
)
