package goSession

import (
	"context"
	"crypto/ed25519"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/kv"
	"github.com/MrEthical07/goSession/session"
	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type failingDenylist struct{}

func (failingDenylist) Deny(context.Context, string, time.Time) error {
	return kv.ErrUnavailable
}

func (failingDenylist) IsDenied(context.Context, string) (bool, error) {
	return false, kv.ErrUnavailable
}

func newTestRegistry(t *testing.T) (*session.Registry, *kv.MemoryStore) {
	t.Helper()
	store := kv.NewMemoryStore(0)
	t.Cleanup(func() { _ = store.Close() })
	reg, err := session.NewRegistry(store, session.DefaultConfig(), session.WithLogger(discardLogger()))
	require.NoError(t, err)
	return reg, store
}

func newTestManager(t *testing.T) *jwt.Manager {
	t.Helper()
	m, err := jwt.NewManager(jwt.Config{
		TTL:           time.Minute,
		SigningMethod: jwt.MethodHS256,
		PrivateKey:    testSecret,
		Issuer:        "gosession",
	})
	require.NoError(t, err)
	return m
}

func aliceIdentity() *Identity {
	return &Identity{UserID: "user-alice", User: &session.User{ID: "user-alice"}, Role: "member"}
}

func TestSessionStrategyAuthenticate(t *testing.T) {
	reg, _ := newTestRegistry(t)
	users := new(mockUsers)
	users.On("ValidateUser", mock.Anything, aliceCreds).Return(aliceIdentity(), nil).Once()

	s, err := NewSessionStrategy(reg, StrategyDeps{Users: users, Logger: discardLogger()})
	require.NoError(t, err)
	assert.Equal(t, KindSession, s.Kind())

	res, err := s.Authenticate(context.Background(), aliceCreds)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "user-alice", res.UserID)
	assert.Equal(t, "member", res.Metadata.Role)
	assert.Nil(t, res.Metadata.Device, "no device detection without ip or user agent")
	users.AssertExpectations(t)

	v, err := s.Validate(context.Background(), res.SessionID)
	require.NoError(t, err)
	assert.True(t, v.Valid)
	assert.Equal(t, "user-alice", v.UserID)
	require.NotNil(t, v.User)
	assert.Equal(t, "user-alice", v.User.ID)
}

func TestSessionStrategyAuthenticateFailures(t *testing.T) {
	tests := []struct {
		name     string
		identity *Identity
		err      error
		want     ResultCode
	}{
		{name: "unknown user", want: CodeInvalidCredentials},
		{name: "identity without id", identity: &Identity{}, want: CodeInvalidCredentials},
		{name: "validator error", err: errors.New("directory down"), want: CodeAuthError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg, store := newTestRegistry(t)
			users := new(mockUsers)
			users.On("ValidateUser", mock.Anything, mock.Anything).Return(tt.identity, tt.err)

			s, err := NewSessionStrategy(reg, StrategyDeps{Users: users, Logger: discardLogger()})
			require.NoError(t, err)

			res, err := s.Authenticate(context.Background(), Credentials{Identifier: "bob", Secret: "x"})
			require.NoError(t, err)
			assert.False(t, res.Success)
			assert.Equal(t, tt.want, res.Code)
			assert.Equal(t, tt.want.Message(), res.Message)
			assert.Zero(t, store.Len(), "failed login must not write")
		})
	}
}

func TestSessionStrategyWithoutValidator(t *testing.T) {
	reg, _ := newTestRegistry(t)
	s, err := NewSessionStrategy(reg, StrategyDeps{})
	require.NoError(t, err)
	_, err = s.Authenticate(context.Background(), aliceCreds)
	require.ErrorIs(t, err, ErrUnsupportedOperation)

	_, err = NewSessionStrategy(nil, StrategyDeps{})
	require.Error(t, err)
}

func TestSessionStrategyValidateRevokeRefresh(t *testing.T) {
	reg, _ := newTestRegistry(t)
	s, err := NewSessionStrategy(reg, StrategyDeps{Users: staticUsers, Logger: discardLogger()})
	require.NoError(t, err)
	ctx := context.Background()

	for _, id := range []string{"", "not-a-session"} {
		v, err := s.Validate(ctx, id)
		require.NoError(t, err)
		assert.False(t, v.Valid)
	}

	login, err := s.Authenticate(ctx, aliceCreds)
	require.NoError(t, err)

	refreshed, err := s.Refresh(ctx, login.RefreshID)
	require.NoError(t, err)
	assert.True(t, refreshed.Success)
	assert.Equal(t, CodeRefreshSuccess, refreshed.Code)
	assert.Equal(t, "user-alice", refreshed.UserID)

	again, err := s.Refresh(ctx, login.RefreshID)
	require.NoError(t, err)
	assert.Equal(t, CodeInvalidRefreshToken, again.Code)

	empty, err := s.Refresh(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, CodeInvalidRefreshToken, empty.Code)

	out, err := s.Revoke(ctx, refreshed.SessionID)
	require.NoError(t, err)
	assert.Equal(t, RevokeApplied, out)
	v, err := s.Validate(ctx, refreshed.SessionID)
	require.NoError(t, err)
	assert.False(t, v.Valid)

	out, err = s.Revoke(ctx, "never-existed")
	require.NoError(t, err)
	assert.Equal(t, RevokeApplied, out)
}

func TestTokenStrategyLifecycle(t *testing.T) {
	_, store := newTestRegistry(t)
	denylist := jwt.NewKVDenylist(store, "", time.Second)
	tokens, err := NewTokenStrategy(newTestManager(t), denylist, StrategyDeps{Users: staticUsers, Logger: discardLogger()})
	require.NoError(t, err)
	assert.Equal(t, KindSignedToken, tokens.Kind())
	assert.True(t, tokens.CanIssue())
	assert.True(t, tokens.Revocable())
	ctx := context.Background()

	res, err := tokens.Authenticate(ctx, aliceCreds)
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.True(t, IsSignedTokenShape(res.Token))
	assert.Empty(t, res.SessionID)

	v, err := tokens.Validate(ctx, res.Token)
	require.NoError(t, err)
	assert.True(t, v.Valid)
	assert.Equal(t, "user-alice", v.UserID)
	assert.Equal(t, "admin", v.Metadata.Role)
	require.NotNil(t, v.Claims)

	tampered := res.Token[:len(res.Token)-2] + "xx"
	v, err = tokens.Validate(ctx, tampered)
	require.NoError(t, err)
	assert.False(t, v.Valid)

	out, err := tokens.Revoke(ctx, res.Token)
	require.NoError(t, err)
	assert.Equal(t, RevokeApplied, out)

	v, err = tokens.Validate(ctx, res.Token)
	require.NoError(t, err)
	assert.False(t, v.Valid)

	out, err = tokens.Revoke(ctx, "garbage.token.value")
	require.NoError(t, err)
	assert.Equal(t, RevokeApplied, out)
}

func TestTokenStrategyRevokeWithoutDenylist(t *testing.T) {
	tokens, err := NewTokenStrategy(newTestManager(t), nil, StrategyDeps{Users: staticUsers})
	require.NoError(t, err)
	assert.False(t, tokens.Revocable())
	ctx := context.Background()

	res, err := tokens.Authenticate(ctx, aliceCreds)
	require.NoError(t, err)

	out, err := tokens.Revoke(ctx, res.Token)
	require.NoError(t, err)
	assert.Equal(t, RevokeUnsupported, out)
	assert.Equal(t, "unsupported", out.String())

	v, err := tokens.Validate(ctx, res.Token)
	require.NoError(t, err)
	assert.True(t, v.Valid)
}

func TestTokenStrategyDenylistFailure(t *testing.T) {
	tokens, err := NewTokenStrategy(newTestManager(t), failingDenylist{}, StrategyDeps{Users: staticUsers})
	require.NoError(t, err)
	ctx := context.Background()

	res, err := tokens.Authenticate(ctx, aliceCreds)
	require.NoError(t, err)

	_, err = tokens.Validate(ctx, res.Token)
	require.ErrorIs(t, err, ErrStorageUnavailable)

	_, err = tokens.Revoke(ctx, res.Token)
	require.ErrorIs(t, err, ErrStorageUnavailable)
}

func TestTokenStrategyVerifyOnly(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	m, err := jwt.NewManager(jwt.Config{TTL: time.Minute, SigningMethod: jwt.MethodEd25519, PublicKey: pub})
	require.NoError(t, err)

	tokens, err := NewTokenStrategy(m, nil, StrategyDeps{Users: staticUsers})
	require.NoError(t, err)
	assert.False(t, tokens.CanIssue())

	_, err = tokens.Authenticate(context.Background(), aliceCreds)
	require.ErrorIs(t, err, ErrUnsupportedOperation)
}

func TestKindAndOutcomeStrings(t *testing.T) {
	assert.Equal(t, "session", KindSession.String())
	assert.Equal(t, "signed_token", KindSignedToken.String())
	assert.Equal(t, "applied", RevokeApplied.String())
	assert.Equal(t, "Authentication failed", CodeAuthError.Message())
}

func TestTokenStrategyRevokeWithoutTokenID(t *testing.T) {
	_, store := newTestRegistry(t)
	denylist := jwt.NewKVDenylist(store, "", time.Second)
	tokens, err := NewTokenStrategy(newTestManager(t), denylist, StrategyDeps{Logger: discardLogger()})
	require.NoError(t, err)
	ctx := context.Background()

	token, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, gojwt.RegisteredClaims{
		Subject:   "u1",
		Issuer:    "gosession",
		IssuedAt:  gojwt.NewNumericDate(time.Now()),
		ExpiresAt: gojwt.NewNumericDate(time.Now().Add(time.Minute)),
	}).SignedString(testSecret)
	require.NoError(t, err)

	v, err := tokens.Validate(ctx, token)
	require.NoError(t, err)
	require.True(t, v.Valid)

	out, err := tokens.Revoke(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, RevokeUnsupported, out)

	keys, err := store.Keys(ctx, "denylist:")
	require.NoError(t, err)
	assert.Empty(t, keys)
}
