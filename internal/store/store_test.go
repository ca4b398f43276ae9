package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SkyAle-bit/Progetto-FE/internal/contract"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "nested", "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func signed(t *testing.T, exp time.Time) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "anna@example.com",
		"exp": exp.Unix(),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return tok
}

func TestSessionRoundTripAndClear(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	_, err := s.LoadSession(ctx)
	require.ErrorIs(t, err, ErrNoSession)

	user := contract.User{ID: 7, FirstName: "Anna", Email: "anna@example.com", Role: contract.RoleClient}
	require.NoError(t, s.SaveSession(ctx, contract.Session{Token: "opaque", User: user}))

	got, err := s.LoadSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, "opaque", got.Token)
	assert.Equal(t, user, got.User)
	assert.Nil(t, got.ExpiresAt)

	require.NoError(t, s.ClearSession(ctx))
	_, err = s.LoadSession(ctx)
	assert.ErrorIs(t, err, ErrNoSession)
	_, err = s.Get(ctx, KeyUser)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSessionSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	ctx := context.Background()
	s, err := Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s.SaveSession(ctx, contract.Session{Token: "t", User: contract.User{ID: 1}}))
	require.NoError(t, s.Close())

	s, err = Open(ctx, path)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.LoadSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.User.ID)
}

func TestExpiredJWTSession(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	now := time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	require.NoError(t, s.SaveSession(ctx, contract.Session{Token: signed(t, now.Add(-time.Minute)), User: contract.User{ID: 1}}))
	got, err := s.LoadSession(ctx)
	require.ErrorIs(t, err, ErrSessionExpired)
	require.NotNil(t, got.ExpiresAt)

	require.NoError(t, s.SaveSession(ctx, contract.Session{Token: signed(t, now.Add(time.Hour)), User: contract.User{ID: 1}}))
	got, err = s.LoadSession(ctx)
	require.NoError(t, err)
	assert.True(t, got.ExpiresAt.Equal(now.Add(time.Hour).Truncate(time.Second)))
}

func TestTokenExpiryOpaque(t *testing.T) {
	_, ok := TokenExpiry("not-a-jwt")
	assert.False(t, ok)
}

func TestJournalPaging(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	base := time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Record(ctx, Activity{
			At:     base.Add(time.Duration(i) * time.Minute),
			Kind:   KindBookingCreated,
			UserID: 7,
			Ref:    string(rune('a' + i)),
		}))
	}
	assert.Error(t, s.Record(ctx, Activity{}))

	page, more, err := s.Page(ctx, 2, 0)
	require.NoError(t, err)
	assert.True(t, more)
	require.Len(t, page, 2)
	assert.Equal(t, "e", page[0].Ref)
	assert.Equal(t, "d", page[1].Ref)

	page, more, err = s.Page(ctx, 2, 4)
	require.NoError(t, err)
	assert.False(t, more)
	require.Len(t, page, 1)
	assert.Equal(t, "a", page[0].Ref)
	assert.True(t, page[0].At.Equal(base))

	_, _, err = s.Page(ctx, 2, -1)
	assert.Error(t, err)
}
