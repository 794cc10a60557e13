// Package auth keeps the remote session: one bearer token with an absolute expiry,
// persisted in the local store so it survives restarts.
package auth

import (
	"context"
	"encoding/json"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/hpungsan/noteboard/internal/errors"
)

// SessionKey is the key-value entry holding the session.
const SessionKey = "session"

// Session is a bearer token and its expiry in epoch milliseconds.
type Session struct {
	AccessToken string `json:"access_token"`
	ExpiresAt   int64  `json:"expires_at"`
}

// Valid reports whether the session can still be used at now.
func (s Session) Valid(now time.Time) bool {
	return s.AccessToken != "" && now.UnixMilli() < s.ExpiresAt
}

// Store persists small values. *board.Board satisfies it.
type Store interface {
	Value(ctx context.Context, key string) (string, bool, error)
	SetValue(ctx context.Context, key, value string) error
	DeleteValue(ctx context.Context, key string) error
}

// TokenSource obtains a fresh session, e.g. by asking the user to sign in.
type TokenSource interface {
	Obtain(ctx context.Context) (Session, error)
}

// Tokens hands out a bearer token for remote calls.
type Tokens interface {
	Token(ctx context.Context) (string, error)
}

// NoToken is used with providers that carry their own credentials.
type NoToken struct{}

// Token returns "".
func (NoToken) Token(context.Context) (string, error) { return "", nil }

// Manager resolves the token for a sync cycle from the stored session or the source.
type Manager struct {
	store  Store
	source TokenSource
	now    func() time.Time
	log    *zap.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(m *Manager) { m.log = log }
}

// NewManager returns a Manager. source may be nil, in which case only a stored session
// (see Login) can satisfy Token.
func NewManager(store Store, source TokenSource, opts ...Option) *Manager {
	m := &Manager{store: store, source: source, now: time.Now, log: zap.NewNop()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Token returns a valid bearer token. A stored session is used while valid; an expired
// one is deleted. Otherwise the source is asked once and its session is persisted.
func (m *Manager) Token(ctx context.Context) (string, error) {
	s, ok, err := m.Session(ctx)
	if err != nil {
		return "", err
	}
	if ok {
		return s.AccessToken, nil
	}
	if m.source == nil {
		return "", errors.NewAuth("not signed in; run `noteboard login`", nil)
	}

	s, err = m.source.Obtain(ctx)
	if err != nil {
		if errors.Is(err, errors.ErrAuth) || errors.Is(err, errors.ErrCancelled) {
			return "", err
		}
		return "", errors.NewAuth("could not obtain an access token", err)
	}
	if !s.Valid(m.now()) {
		return "", errors.NewAuth("token source returned an expired session", nil)
	}
	if err := m.save(ctx, s); err != nil {
		return "", err
	}
	m.log.Debug("session obtained", zap.Time("expires_at", time.UnixMilli(s.ExpiresAt)))
	return s.AccessToken, nil
}

// Session returns the stored session if it is still valid. An expired or unreadable
// session is deleted and reported as absent.
func (m *Manager) Session(ctx context.Context) (Session, bool, error) {
	raw, ok, err := m.store.Value(ctx, SessionKey)
	if err != nil || !ok {
		return Session{}, false, err
	}
	var s Session
	if err := json.Unmarshal([]byte(raw), &s); err == nil && s.Valid(m.now()) {
		return s, true, nil
	}
	m.log.Debug("discarding stored session")
	if err := m.store.DeleteValue(ctx, SessionKey); err != nil {
		return Session{}, false, err
	}
	return Session{}, false, nil
}

// Login stores token as the session. The expiry is the token's exp claim when it is a
// JWT, otherwise now + ttl.
func (m *Manager) Login(ctx context.Context, token string, ttl time.Duration) (Session, error) {
	if token == "" {
		return Session{}, errors.NewValidation("token is required")
	}
	s := Session{AccessToken: token, ExpiresAt: Expiry(token, m.now().Add(ttl)).UnixMilli()}
	if !s.Valid(m.now()) {
		return Session{}, errors.NewAuth("token is already expired", nil)
	}
	if err := m.save(ctx, s); err != nil {
		return Session{}, err
	}
	return s, nil
}

// Logout forgets the stored session.
func (m *Manager) Logout(ctx context.Context) error {
	return m.store.DeleteValue(ctx, SessionKey)
}

func (m *Manager) save(ctx context.Context, s Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return errors.NewInternal(err)
	}
	return m.store.SetValue(ctx, SessionKey, string(data))
}

// StaticSource serves a pre-issued token from configuration or the environment.
type StaticSource struct {
	AccessToken string
	TTL         time.Duration
	Now         func() time.Time
}

// Obtain returns the configured token as a session.
func (s StaticSource) Obtain(ctx context.Context) (Session, error) {
	if err := ctx.Err(); err != nil {
		return Session{}, errors.NewCancelled("sign in")
	}
	if s.AccessToken == "" {
		return Session{}, errors.NewAuth("no access token configured", nil)
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	return Session{
		AccessToken: s.AccessToken,
		ExpiresAt:   Expiry(s.AccessToken, now().Add(s.TTL)).UnixMilli(),
	}, nil
}

// Expiry returns the exp claim of a JWT, or fallback for opaque tokens. The signature
// is not verified; the remote service does that.
func Expiry(token string, fallback time.Time) time.Time {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return fallback
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return fallback
	}
	return exp.Time
}
