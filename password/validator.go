package password

import (
	"context"
	"errors"
	"log/slog"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/session"
)

// Record is a stored login credential.
type Record struct {
	UserID string
	Hash   string
	User   *session.User
	Role   string
}

// Lookup fetches the credential for a login identifier. It returns
// ok=false for unknown identifiers.
type Lookup interface {
	LookupCredential(ctx context.Context, identifier string) (rec Record, ok bool, err error)
}

// LookupFunc adapts a function to Lookup.
type LookupFunc func(ctx context.Context, identifier string) (Record, bool, error)

func (f LookupFunc) LookupCredential(ctx context.Context, identifier string) (Record, bool, error) {
	return f(ctx, identifier)
}

// RehashFunc stores an upgraded hash for userID.
type RehashFunc func(ctx context.Context, userID, hash string) error

// Validator checks identifier and password credentials against a Lookup.
// It implements goSession.UserValidator.
type Validator struct {
	hasher *Argon2
	lookup Lookup
	rehash RehashFunc
	logger *slog.Logger
	// dummy is verified for unknown identifiers so both paths cost the same.
	dummy string
}

// ValidatorOption configures a Validator.
type ValidatorOption func(*Validator)

// WithRehash stores upgraded hashes after successful logins whose stored hash
// uses weaker parameters than the hasher's.
func WithRehash(fn RehashFunc) ValidatorOption {
	return func(v *Validator) { v.rehash = fn }
}

func WithLogger(logger *slog.Logger) ValidatorOption {
	return func(v *Validator) { v.logger = logger }
}

func NewValidator(hasher *Argon2, lookup Lookup, opts ...ValidatorOption) (*Validator, error) {
	if hasher == nil || lookup == nil {
		return nil, errors.New("password: hasher and lookup required")
	}
	dummy, err := hasher.Hash("dummy-password-for-timing")
	if err != nil {
		return nil, err
	}
	v := &Validator{hasher: hasher, lookup: lookup, dummy: dummy, logger: slog.Default()}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// ValidateUser returns the identity for matching credentials and nil, nil
// for anything that does not match. Errors are lookup failures or corrupt
// stored hashes.
func (v *Validator) ValidateUser(ctx context.Context, creds goSession.Credentials) (*goSession.Identity, error) {
	if creds.Identifier == "" || creds.Secret == "" {
		return nil, nil
	}

	rec, ok, err := v.lookup.LookupCredential(ctx, creds.Identifier)
	if err != nil {
		return nil, err
	}
	if !ok {
		_, _ = v.hasher.Verify(creds.Secret, v.dummy)
		return nil, nil
	}

	match, err := v.hasher.Verify(creds.Secret, rec.Hash)
	if errors.Is(err, ErrPasswordTooLong) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !match {
		return nil, nil
	}

	if v.rehash != nil {
		v.upgrade(ctx, rec, creds.Secret)
	}

	return &goSession.Identity{UserID: rec.UserID, User: rec.User, Role: rec.Role}, nil
}

func (v *Validator) upgrade(ctx context.Context, rec Record, secret string) {
	stale, err := v.hasher.NeedsUpgrade(rec.Hash)
	if err != nil || !stale {
		return
	}
	hash, err := v.hasher.Hash(secret)
	if err != nil {
		return
	}
	if err := v.rehash(ctx, rec.UserID, hash); err != nil {
		v.logger.Warn("password: rehash failed", "user_id", rec.UserID, "error", err)
	}
}

var _ goSession.UserValidator = (*Validator)(nil)
