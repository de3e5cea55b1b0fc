// Package service contains application services for sessions, linked items and aggregation.
package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"

	pkgcrypto "github.com/mehtaViraj/hackweek2-fibox-backend/internal/crypto"
	"github.com/mehtaViraj/hackweek2-fibox-backend/internal/errs"
	"github.com/mehtaViraj/hackweek2-fibox-backend/internal/model"
	"github.com/mehtaViraj/hackweek2-fibox-backend/internal/repository"
)

// AuthService defines signup, login and session verification.
type AuthService interface {
	// Register creates a new user and returns its id.
	Register(ctx context.Context, username, password string) (userID string, err error)
	// Login checks the password and issues a new session token, replacing any previous one.
	Login(ctx context.Context, username, password string) (token string, err error)
	// Verify reports whether token is the user's current session token.
	Verify(ctx context.Context, username, token string) (bool, error)
}

type AuthServiceImpl struct {
	users   repository.UserRepository
	hasher  *pkgcrypto.Hasher
	signKey []byte
	now     func() time.Time
}

// NewAuthService constructs AuthService with required dependencies.
func NewAuthService(users repository.UserRepository, hasher *pkgcrypto.Hasher, signKey []byte) *AuthServiceImpl {
	return &AuthServiceImpl{users: users, hasher: hasher, signKey: signKey, now: time.Now}
}

// Register hashes the password under a per-user salt and stores the user.
func (s *AuthServiceImpl) Register(ctx context.Context, username, password string) (string, error) {
	if username == "" || password == "" {
		return "", fmt.Errorf("%w: empty username/password", errs.ErrValidation)
	}
	uid, err := uuid.NewV4()
	if err != nil {
		return "", err
	}
	hash, salt, err := s.hasher.Hash(password)
	if err != nil {
		return "", err
	}
	u := &model.User{ID: uid, Username: username, PwdHash: hash, SaltAuth: salt}
	if err := s.users.Create(ctx, u); err != nil {
		return "", err
	}
	return uid.String(), nil
}

// Login authenticates the user and stores a freshly issued session token.
func (s *AuthServiceImpl) Login(ctx context.Context, username, password string) (string, error) {
	if username == "" || password == "" {
		return "", fmt.Errorf("%w: empty username/password", errs.ErrValidation)
	}
	u, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return "", err
	}
	if len(u.PwdHash) == 0 {
		if err := s.upgradeLegacyPassword(ctx, u, password); err != nil {
			return "", err
		}
	} else if !s.hasher.Verify(password, u.SaltAuth, u.PwdHash) {
		return "", errs.ErrBadCredentials
	}

	tok, err := s.issueSessionToken(username)
	if err != nil {
		return "", err
	}
	if err := s.users.SetSessionToken(ctx, username, tok); err != nil {
		return "", err
	}
	return tok, nil
}

// upgradeLegacyPassword checks a plaintext password carried over from the earlier schema
// and replaces it with an Argon2id hash.
func (s *AuthServiceImpl) upgradeLegacyPassword(ctx context.Context, u *model.User, password string) error {
	if u.LegacyPassword == "" || subtle.ConstantTimeCompare([]byte(u.LegacyPassword), []byte(password)) != 1 {
		return errs.ErrBadCredentials
	}
	hash, salt, err := s.hasher.Hash(password)
	if err != nil {
		return err
	}
	return s.users.UpgradePassword(ctx, u.Username, hash, salt)
}

// Verify checks the token signature first, then requires an exact match with the stored token.
func (s *AuthServiceImpl) Verify(ctx context.Context, username, token string) (bool, error) {
	if username == "" || token == "" {
		return false, nil
	}
	if sub, err := s.parseSessionToken(token); err != nil || sub != username {
		return false, nil
	}

	u, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if u.SessionToken == "" {
		return false, nil
	}
	return subtle.ConstantTimeCompare([]byte(u.SessionToken), []byte(token)) == 1, nil
}

// issueSessionToken signs an HS256 JWT naming the user; the random jti makes every login distinct.
func (s *AuthServiceImpl) issueSessionToken(username string) (string, error) {
	jti, err := uuid.NewV4()
	if err != nil {
		return "", err
	}
	claims := jwt.RegisteredClaims{
		Subject:  username,
		ID:       jti.String(),
		IssuedAt: jwt.NewNumericDate(s.now()),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signKey)
}

func (s *AuthServiceImpl) parseSessionToken(token string) (string, error) {
	var claims jwt.RegisteredClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return s.signKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid {
		return "", errors.New("invalid session token")
	}
	return claims.Subject, nil
}
