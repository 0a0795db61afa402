// Package token issues and verifies the credentials used by the auth core:
// short-lived HS256 access tokens plus opaque refresh and password-reset
// tokens that are only ever persisted as hashes.
package token

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken = errors.New("token is invalid")
	ErrExpiredToken = errors.New("token has expired")
)

type AccessClaims struct {
	UserID   uuid.UUID
	IssuedAt time.Time
}

type Codec struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	resetTTL   time.Duration
}

func NewCodec(secret string, accessTTL, refreshTTL, resetTTL time.Duration) *Codec {
	return &Codec{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		resetTTL:   resetTTL,
	}
}

func (c *Codec) IssueAccess(userID uuid.UUID) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(c.accessTTL)

	claims := jwt.MapClaims{
		"sub": userID.String(),
		"iat": now.Unix(),
		"exp": expiresAt.Unix(),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, err
	}

	return signed, expiresAt, nil
}

func (c *Codec) VerifyAccess(tokenString string) (*AccessClaims, error) {
	parsed, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return c.secret, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}

	sub, ok := claims["sub"].(string)
	if !ok {
		return nil, ErrInvalidToken
	}

	userID, err := uuid.Parse(sub)
	if err != nil {
		return nil, ErrInvalidToken
	}

	iat, ok := claims["iat"].(float64)
	if !ok {
		return nil, ErrInvalidToken
	}

	return &AccessClaims{
		UserID:   userID,
		IssuedAt: time.Unix(int64(iat), 0),
	}, nil
}

// IssueRefresh returns a new opaque refresh token. Only the hash is meant
// to be persisted; the plain value goes to the client and is never stored.
func (c *Codec) IssueRefresh() (plain, hash string, expiresAt time.Time, err error) {
	plain, hash, err = newOpaque()
	if err != nil {
		return "", "", time.Time{}, err
	}
	return plain, hash, time.Now().Add(c.refreshTTL), nil
}

func (c *Codec) IssueReset() (plain, hash string, expiresAt time.Time, err error) {
	plain, hash, err = newOpaque()
	if err != nil {
		return "", "", time.Time{}, err
	}
	return plain, hash, time.Now().Add(c.resetTTL), nil
}

func newOpaque() (plain, hash string, err error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", "", err
	}

	plain = hex.EncodeToString(buf)
	return plain, HashOpaque(plain), nil
}

// HashOpaque derives the server-side form of an opaque token.
func HashOpaque(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return hex.EncodeToString(sum[:])
}

// VerifyOpaque compares a presented token against a stored hash in
// constant time.
func VerifyOpaque(plain, storedHash string) bool {
	return subtle.ConstantTimeCompare([]byte(HashOpaque(plain)), []byte(storedHash)) == 1
}
