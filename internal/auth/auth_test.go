package auth

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/noteboard/internal/board"
	"github.com/hpungsan/noteboard/internal/db"
	"github.com/hpungsan/noteboard/internal/errors"
)

type mapStore map[string]string

func (m mapStore) Value(_ context.Context, key string) (string, bool, error) {
	v, ok := m[key]
	return v, ok, nil
}

func (m mapStore) SetValue(_ context.Context, key, value string) error {
	m[key] = value
	return nil
}

func (m mapStore) DeleteValue(_ context.Context, key string) error {
	delete(m, key)
	return nil
}

type countingSource struct {
	session Session
	err     error
	calls   int
}

func (c *countingSource) Obtain(context.Context) (Session, error) {
	c.calls++
	return c.session, c.err
}

var now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return now }

func TestManager_UsesValidStoredSession(t *testing.T) {
	store := mapStore{SessionKey: fmt.Sprintf(`{"access_token":"stored","expires_at":%d}`, now.Add(time.Hour).UnixMilli())}
	src := &countingSource{}
	m := NewManager(store, src, WithClock(clock))

	tok, err := m.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "stored", tok)
	assert.Equal(t, 0, src.calls)
}

func TestManager_ExpiredSessionIsDeletedAndRefreshed(t *testing.T) {
	store := mapStore{SessionKey: fmt.Sprintf(`{"access_token":"old","expires_at":%d}`, now.Add(-time.Minute).UnixMilli())}
	src := &countingSource{session: Session{AccessToken: "fresh", ExpiresAt: now.Add(time.Hour).UnixMilli()}}
	m := NewManager(store, src, WithClock(clock))

	tok, err := m.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fresh", tok)
	assert.Equal(t, 1, src.calls)
	assert.Contains(t, store[SessionKey], `"access_token":"fresh"`)

	// The persisted session is reused.
	_, err = m.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, src.calls)
}

func TestManager_CorruptSessionIsDiscarded(t *testing.T) {
	store := mapStore{SessionKey: "{not json"}
	m := NewManager(store, nil, WithClock(clock))

	_, ok, err := m.Session(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NotContains(t, store, SessionKey)
}

func TestManager_NoSource(t *testing.T) {
	m := NewManager(mapStore{}, nil, WithClock(clock))
	_, err := m.Token(context.Background())
	assert.True(t, errors.Is(err, errors.ErrAuth))
}

func TestManager_SourceFailure(t *testing.T) {
	src := &countingSource{err: fmt.Errorf("popup closed")}
	m := NewManager(mapStore{}, src, WithClock(clock))

	_, err := m.Token(context.Background())
	assert.True(t, errors.Is(err, errors.ErrAuth))
}

func TestManager_SourceReturnsExpired(t *testing.T) {
	src := &countingSource{session: Session{AccessToken: "x", ExpiresAt: now.UnixMilli()}}
	store := mapStore{}
	m := NewManager(store, src, WithClock(clock))

	_, err := m.Token(context.Background())
	assert.True(t, errors.Is(err, errors.ErrAuth))
	assert.Empty(t, store)
}

func TestManager_LoginLogout(t *testing.T) {
	store := mapStore{}
	m := NewManager(store, nil, WithClock(clock))
	ctx := context.Background()

	s, err := m.Login(ctx, "opaque", 30*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, now.Add(30*time.Minute).UnixMilli(), s.ExpiresAt)

	tok, err := m.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "opaque", tok)

	require.NoError(t, m.Logout(ctx))
	_, err = m.Token(ctx)
	assert.True(t, errors.Is(err, errors.ErrAuth))

	_, err = m.Login(ctx, "", time.Hour)
	assert.True(t, errors.Is(err, errors.ErrValidation))
}

func signed(t *testing.T, exp time.Time) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"exp": exp.Unix()}).SignedString([]byte("k"))
	require.NoError(t, err)
	return tok
}

func TestExpiry(t *testing.T) {
	fallback := now.Add(time.Hour)
	exp := now.Add(10 * time.Minute)

	assert.Equal(t, exp.Unix(), Expiry(signed(t, exp), fallback).Unix())
	assert.Equal(t, fallback, Expiry("ya29.opaque-token", fallback))
}

func TestManager_LoginExpiredJWT(t *testing.T) {
	m := NewManager(mapStore{}, nil, WithClock(clock))
	_, err := m.Login(context.Background(), signed(t, now.Add(-time.Minute)), time.Hour)
	assert.True(t, errors.Is(err, errors.ErrAuth))
}

func TestStaticSource(t *testing.T) {
	src := StaticSource{AccessToken: "abc", TTL: time.Hour, Now: clock}
	s, err := src.Obtain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc", s.AccessToken)
	assert.Equal(t, now.Add(time.Hour).UnixMilli(), s.ExpiresAt)

	_, err = StaticSource{}.Obtain(context.Background())
	assert.True(t, errors.Is(err, errors.ErrAuth))
}

func TestNoToken(t *testing.T) {
	tok, err := NoToken{}.Token(context.Background())
	require.NoError(t, err)
	assert.Empty(t, tok)
}

func TestManager_PersistsThroughBoard(t *testing.T) {
	database, err := db.Init(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	b, err := board.Open(context.Background(), database)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = NewManager(b, nil, WithClock(clock)).Login(ctx, "persisted", time.Hour)
	require.NoError(t, err)

	tok, err := NewManager(b, nil, WithClock(clock)).Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "persisted", tok)
}
