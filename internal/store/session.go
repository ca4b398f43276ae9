package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/SkyAle-bit/Progetto-FE/internal/contract"
)

// Fixed key names of the persisted session.
const (
	KeyToken = "token"
	KeyUser  = "user"
)

var (
	ErrNoSession      = errors.New("no stored session")
	ErrSessionExpired = errors.New("stored session has expired")
)

// SaveSession persists the token and the user profile together.
func (s *Store) SaveSession(ctx context.Context, sess contract.Session) error {
	if sess.Token == "" {
		return errors.New("session token is empty")
	}
	raw, err := json.Marshal(sess.User)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	now := s.now().Unix()
	for k, v := range map[string]string{KeyToken: sess.Token, KeyUser: string(raw)} {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO kv(key, value, updated_at) VALUES(?, ?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			k, v, now); err != nil {
			return fmt.Errorf("write %s: %w", k, err)
		}
	}
	return tx.Commit()
}

// LoadSession returns the stored session. A missing token or user yields
// ErrNoSession; a JWT whose exp claim has passed yields ErrSessionExpired
// together with the session.
func (s *Store) LoadSession(ctx context.Context) (contract.Session, error) {
	token, err := s.Get(ctx, KeyToken)
	if errors.Is(err, ErrNotFound) {
		return contract.Session{}, ErrNoSession
	}
	if err != nil {
		return contract.Session{}, err
	}
	raw, err := s.Get(ctx, KeyUser)
	if errors.Is(err, ErrNotFound) {
		return contract.Session{}, ErrNoSession
	}
	if err != nil {
		return contract.Session{}, err
	}
	var user contract.User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		return contract.Session{}, fmt.Errorf("decode stored user: %w", err)
	}
	sess := contract.Session{Token: token, User: user}
	if exp, ok := TokenExpiry(token); ok {
		sess.ExpiresAt = &exp
		if !exp.After(s.now()) {
			return sess, ErrSessionExpired
		}
	}
	return sess, nil
}

// ClearSession removes the token and the user profile.
func (s *Store) ClearSession(ctx context.Context) error {
	return s.Delete(ctx, KeyToken, KeyUser)
}

// TokenExpiry reads the exp claim of a JWT without verifying it. Opaque
// tokens report false.
func TokenExpiry(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
