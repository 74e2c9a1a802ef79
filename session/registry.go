package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/MrEthical07/goSession/kv"
)

// ErrStorageUnavailable is returned when the backing store fails or times out.
// It is the same value as kv.ErrUnavailable so callers can test either.
var ErrStorageUnavailable = kv.ErrUnavailable

// ErrMalformedRecord marks a stored value that does not decode. The registry
// logs it and reports the record as absent; it never reaches callers.
var ErrMalformedRecord = errors.New("malformed session record")

const deleteBatch = 500

// Config controls key layout and lifetimes.
type Config struct {
	KeyPrefix    string
	SessionTTL   time.Duration
	RefreshTTL   time.Duration
	StoreTimeout time.Duration
}

// DefaultConfig returns the lifetimes used when nothing is configured:
// two hours for sessions, seven days for refresh ids.
func DefaultConfig() Config {
	return Config{
		SessionTTL:   2 * time.Hour,
		RefreshTTL:   7 * 24 * time.Hour,
		StoreTimeout: 2 * time.Second,
	}
}

// Validate checks lifetime policy.
func (c Config) Validate() error {
	if c.SessionTTL <= 0 {
		return errors.New("session SessionTTL must be > 0")
	}
	if c.RefreshTTL <= 0 {
		return errors.New("session RefreshTTL must be > 0")
	}
	if c.RefreshTTL < c.SessionTTL {
		return errors.New("session RefreshTTL must be >= SessionTTL")
	}
	if c.StoreTimeout <= 0 {
		return errors.New("session StoreTimeout must be > 0")
	}
	return nil
}

// Option customizes a Registry.
type Option func(*Registry)

// WithIDGenerator replaces the default UUID generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(r *Registry) {
		if g != nil {
			r.ids = g
		}
	}
}

// WithLogger sets the logger used for malformed records and partial failures.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithClock overrides time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// Registry owns the session, refresh and user-index key families:
//
//	{prefix}session:{sessionId}
//	{prefix}refresh:{refreshId}
//	{prefix}user:{userId}:sessions:{sessionId} = "1"
//	{prefix}user:{userId}:refresh:{refreshId}  = "1"
//
// No other component writes these keys. The user index is a fan-out aid for
// bulk revocation and is never consulted to decide whether a session is valid.
//
// Every store call runs under its own StoreTimeout. Registry holds no
// in-process locks; it is safe for concurrent use when the store is.
type Registry struct {
	store  kv.Store
	ids    IDGenerator
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
}

// NewRegistry validates cfg and binds the registry to store.
func NewRegistry(store kv.Store, cfg Config, opts ...Option) (*Registry, error) {
	if store == nil {
		return nil, errors.New("session: nil store")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	r := &Registry{
		store:  store,
		ids:    UUIDGenerator{},
		cfg:    cfg,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// SessionTTL returns the sliding session lifetime.
func (r *Registry) SessionTTL() time.Duration { return r.cfg.SessionTTL }

// RefreshTTL returns the refresh record lifetime.
func (r *Registry) RefreshTTL() time.Duration { return r.cfg.RefreshTTL }

func (r *Registry) sessionKey(sessionID string) string {
	return r.cfg.KeyPrefix + "session:" + sessionID
}

func (r *Registry) refreshKey(refreshID string) string {
	return r.cfg.KeyPrefix + "refresh:" + refreshID
}

func (r *Registry) userSessionPrefix(userID string) string {
	return r.cfg.KeyPrefix + "user:" + userID + ":sessions:"
}

func (r *Registry) userRefreshPrefix(userID string) string {
	return r.cfg.KeyPrefix + "user:" + userID + ":refresh:"
}

func (r *Registry) userSessionKey(userID, sessionID string) string {
	return r.userSessionPrefix(userID) + sessionID
}

func (r *Registry) userRefreshKey(userID, refreshID string) string {
	return r.userRefreshPrefix(userID) + refreshID
}

// Create mints a session id and a refresh id for userID and stores the
// session, the refresh record and both index entries. If a write fails the
// keys already written are removed on a best-effort basis.
func (r *Registry) Create(ctx context.Context, userID string, md Metadata) (*Pair, error) {
	if userID == "" {
		return nil, errors.New("session: empty user id")
	}

	sessionID, err := r.ids.Generate()
	if err != nil {
		return nil, fmt.Errorf("session: generate session id: %w", err)
	}
	refreshID, err := r.ids.Generate()
	if err != nil {
		return nil, fmt.Errorf("session: generate refresh id: %w", err)
	}

	now := r.now().UTC()
	sessData, err := json.Marshal(Session{
		SessionID:      sessionID,
		UserID:         userID,
		Metadata:       md,
		CreatedAt:      now,
		LastAccessedAt: now,
	})
	if err != nil {
		return nil, fmt.Errorf("session: encode session: %w", err)
	}
	recData, err := json.Marshal(RefreshRecord{
		RefreshID: refreshID,
		UserID:    userID,
		SessionID: sessionID,
		Metadata:  md,
		CreatedAt: now,
	})
	if err != nil {
		return nil, fmt.Errorf("session: encode refresh record: %w", err)
	}

	writes := []struct {
		key   string
		value string
		ttl   time.Duration
	}{
		{r.sessionKey(sessionID), string(sessData), r.cfg.SessionTTL},
		{r.userSessionKey(userID, sessionID), "1", r.cfg.SessionTTL},
		{r.refreshKey(refreshID), string(recData), r.cfg.RefreshTTL},
		{r.userRefreshKey(userID, refreshID), "1", r.cfg.RefreshTTL},
	}
	for i, w := range writes {
		if err := r.set(ctx, w.key, w.value, w.ttl); err != nil {
			written := make([]string, 0, i)
			for _, prev := range writes[:i] {
				written = append(written, prev.key)
			}
			r.rollback(ctx, written)
			return nil, err
		}
	}

	return &Pair{
		SessionID: sessionID,
		RefreshID: refreshID,
		UserID:    userID,
		Metadata:  md,
	}, nil
}

// Validate returns the live session for sessionID, or nil when it is missing,
// expired or unreadable. A hit stamps LastAccessedAt and re-arms the full
// SessionTTL, so every access extends the session's life.
//
// Concurrent validations of the same id are last-writer-wins on
// LastAccessedAt. When the store implements kv.Replacer the rewrite only
// lands if the key still exists, so a concurrent Revoke is never undone.
func (r *Registry) Validate(ctx context.Context, sessionID string) (*Session, error) {
	if sessionID == "" {
		return nil, nil
	}
	key := r.sessionKey(sessionID)

	sess, err := r.loadSession(ctx, key)
	if err != nil || sess == nil {
		return nil, err
	}
	sess.SessionID = sessionID
	sess.LastAccessedAt = r.now().UTC()

	data, err := json.Marshal(sess)
	if err != nil {
		return nil, fmt.Errorf("session: encode session: %w", err)
	}
	written, err := r.replace(ctx, key, string(data), r.cfg.SessionTTL)
	if err != nil {
		return nil, err
	}
	if !written {
		r.logger.Debug("session: validate lost race with revoke")
		return nil, nil
	}

	r.touchIndex(ctx, r.userSessionKey(sess.UserID, sessionID), r.cfg.SessionTTL)
	return sess, nil
}

// Refresh consumes refreshID and mints a brand-new pair for the same user and
// metadata. The old refresh record and the session it references are gone
// before the new pair exists.
//
// The read is always fresh and is immediately followed by a delete of the
// same key; only the caller whose delete removed the record proceeds.
// Concurrent calls with the same refreshID therefore yield exactly one pair,
// and every other caller gets nil.
func (r *Registry) Refresh(ctx context.Context, refreshID string) (*Pair, error) {
	if refreshID == "" {
		return nil, nil
	}
	key := r.refreshKey(refreshID)

	raw, ok, err := r.get(ctx, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		r.logger.Debug("session: refresh miss")
		return nil, nil
	}

	deleted, err := r.del(ctx, key)
	if err != nil {
		return nil, err
	}
	if deleted == 0 {
		r.logger.Debug("session: refresh id already consumed")
		return nil, nil
	}

	var rec RefreshRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil || rec.UserID == "" {
		r.logger.Warn("session: malformed refresh record", "error", malformed(err))
		return nil, nil
	}

	stale := []string{r.userRefreshKey(rec.UserID, refreshID)}
	if rec.SessionID != "" {
		stale = append(stale, r.sessionKey(rec.SessionID), r.userSessionKey(rec.UserID, rec.SessionID))
	}
	if _, err := r.del(ctx, stale...); err != nil {
		return nil, err
	}

	return r.Create(ctx, rec.UserID, rec.Metadata)
}

// Revoke deletes the session and its index entry. Missing ids are not an error.
func (r *Registry) Revoke(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	key := r.sessionKey(sessionID)
	keys := []string{key}

	sess, err := r.loadSession(ctx, key)
	if err != nil {
		return err
	}
	if sess != nil {
		keys = append(keys, r.userSessionKey(sess.UserID, sessionID))
	}

	_, err = r.del(ctx, keys...)
	return err
}

// RevokeRefresh deletes the refresh record and its index entry. Missing ids
// are not an error.
func (r *Registry) RevokeRefresh(ctx context.Context, refreshID string) error {
	if refreshID == "" {
		return nil
	}
	key := r.refreshKey(refreshID)
	keys := []string{key}

	raw, ok, err := r.get(ctx, key)
	if err != nil {
		return err
	}
	if ok {
		var rec RefreshRecord
		if err := json.Unmarshal([]byte(raw), &rec); err == nil && rec.UserID != "" {
			keys = append(keys, r.userRefreshKey(rec.UserID, refreshID))
		}
	}

	_, err = r.del(ctx, keys...)
	return err
}

// RevokeAllForUser deletes every session and refresh record indexed under
// userID and returns how many sessions were live.
//
// ATOMICITY NOTE: this is a scan-then-delete sequence, not a transaction.
// A session created after the index scan has started is not captured and
// survives the call. The user index is a best-effort fan-out, not a
// consistency boundary. Callers that need strict "log out everywhere"
// semantics must add their own per-user generation check on validation.
func (r *Registry) RevokeAllForUser(ctx context.Context, userID string) (int, error) {
	if userID == "" {
		return 0, nil
	}
	sessPrefix := r.userSessionPrefix(userID)
	refPrefix := r.userRefreshPrefix(userID)

	sessIndex, err := r.keys(ctx, sessPrefix)
	if err != nil {
		return 0, err
	}
	refIndex, err := r.keys(ctx, refPrefix)
	if err != nil {
		return 0, err
	}

	sessKeys := make([]string, 0, len(sessIndex))
	for _, k := range sessIndex {
		sessKeys = append(sessKeys, r.sessionKey(strings.TrimPrefix(k, sessPrefix)))
	}
	rest := make([]string, 0, len(refIndex)*2+len(sessIndex))
	for _, k := range refIndex {
		rest = append(rest, r.refreshKey(strings.TrimPrefix(k, refPrefix)))
	}
	rest = append(rest, sessIndex...)
	rest = append(rest, refIndex...)

	revoked, err := r.delAll(ctx, sessKeys)
	if err != nil {
		return 0, err
	}
	if _, err := r.delAll(ctx, rest); err != nil {
		return int(revoked), err
	}

	r.logger.Info("session: revoked all sessions for user", "user_id", userID, "sessions", revoked, "refresh_ids", len(refIndex))
	return int(revoked), nil
}

// UpdateMetadata merges patch into the stored metadata and re-arms the
// session TTL. It reports false when the session does not exist.
func (r *Registry) UpdateMetadata(ctx context.Context, sessionID string, patch Metadata) (bool, error) {
	if sessionID == "" {
		return false, nil
	}
	key := r.sessionKey(sessionID)

	sess, err := r.loadSession(ctx, key)
	if err != nil || sess == nil {
		return false, err
	}
	sess.Metadata = sess.Metadata.Merge(patch)

	data, err := json.Marshal(sess)
	if err != nil {
		return false, fmt.Errorf("session: encode session: %w", err)
	}
	written, err := r.replace(ctx, key, string(data), r.cfg.SessionTTL)
	if err != nil || !written {
		return false, err
	}

	r.touchIndex(ctx, r.userSessionKey(sess.UserID, sessionID), r.cfg.SessionTTL)
	return true, nil
}

// ListForUser returns the user's live sessions, oldest first, without
// touching their TTLs. Index entries whose session is gone are skipped.
func (r *Registry) ListForUser(ctx context.Context, userID string) ([]*Session, error) {
	if userID == "" {
		return []*Session{}, nil
	}
	prefix := r.userSessionPrefix(userID)
	index, err := r.keys(ctx, prefix)
	if err != nil {
		return nil, err
	}

	out := make([]*Session, 0, len(index))
	for _, k := range index {
		sid := strings.TrimPrefix(k, prefix)
		sess, err := r.loadSession(ctx, r.sessionKey(sid))
		if err != nil {
			return nil, err
		}
		if sess == nil || sess.UserID != userID {
			continue
		}
		sess.SessionID = sid
		out = append(out, sess)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// loadSession reads and decodes one session. Missing and malformed records
// both come back as nil with no error.
func (r *Registry) loadSession(ctx context.Context, key string) (*Session, error) {
	raw, ok, err := r.get(ctx, key)
	if err != nil || !ok {
		return nil, err
	}
	var sess Session
	if err := json.Unmarshal([]byte(raw), &sess); err != nil || sess.UserID == "" {
		r.logger.Warn("session: malformed session record", "error", malformed(err))
		return nil, nil
	}
	return &sess, nil
}

func (r *Registry) touchIndex(ctx context.Context, key string, ttl time.Duration) {
	if err := r.set(ctx, key, "1", ttl); err != nil {
		r.logger.Warn("session: user index refresh failed", "error", err)
	}
}

func (r *Registry) rollback(ctx context.Context, keys []string) {
	if len(keys) == 0 {
		return
	}
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.cfg.StoreTimeout)
	defer cancel()
	if _, err := r.store.Delete(cctx, keys...); err != nil {
		r.logger.Warn("session: rollback after failed create left keys behind", "keys", len(keys), "error", err)
	}
}

func (r *Registry) get(ctx context.Context, key string) (string, bool, error) {
	cctx, cancel := context.WithTimeout(ctx, r.cfg.StoreTimeout)
	defer cancel()
	v, ok, err := r.store.Get(cctx, key)
	if err != nil {
		return "", false, storageErr(err)
	}
	return v, ok, nil
}

func (r *Registry) set(ctx context.Context, key, value string, ttl time.Duration) error {
	cctx, cancel := context.WithTimeout(ctx, r.cfg.StoreTimeout)
	defer cancel()
	if err := r.store.Set(cctx, key, value, ttl); err != nil {
		return storageErr(err)
	}
	return nil
}

func (r *Registry) replace(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	rp, ok := r.store.(kv.Replacer)
	if !ok {
		return true, r.set(ctx, key, value, ttl)
	}
	cctx, cancel := context.WithTimeout(ctx, r.cfg.StoreTimeout)
	defer cancel()
	written, err := rp.Replace(cctx, key, value, ttl)
	if err != nil {
		return false, storageErr(err)
	}
	return written, nil
}

func (r *Registry) del(ctx context.Context, keys ...string) (int64, error) {
	cctx, cancel := context.WithTimeout(ctx, r.cfg.StoreTimeout)
	defer cancel()
	n, err := r.store.Delete(cctx, keys...)
	if err != nil {
		return 0, storageErr(err)
	}
	return n, nil
}

func (r *Registry) delAll(ctx context.Context, keys []string) (int64, error) {
	var total int64
	for len(keys) > 0 {
		n := deleteBatch
		if n > len(keys) {
			n = len(keys)
		}
		removed, err := r.del(ctx, keys[:n]...)
		if err != nil {
			return total, err
		}
		total += removed
		keys = keys[n:]
	}
	return total, nil
}

func (r *Registry) keys(ctx context.Context, prefix string) ([]string, error) {
	cctx, cancel := context.WithTimeout(ctx, r.cfg.StoreTimeout)
	defer cancel()
	keys, err := r.store.Keys(cctx, prefix)
	if err != nil {
		return nil, storageErr(err)
	}
	return keys, nil
}

func storageErr(err error) error {
	if errors.Is(err, ErrStorageUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
}

func malformed(err error) error {
	if err == nil {
		return ErrMalformedRecord
	}
	return fmt.Errorf("%w: %v", ErrMalformedRecord, err)
}
