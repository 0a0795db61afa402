package token_test

import (
	"testing"
	"time"

	"shop-flow/internal/token"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-with-enough-entropy!"

func TestIssueAndVerifyAccess(t *testing.T) {
	c := token.NewCodec(testSecret, time.Hour, 720*time.Hour, 10*time.Minute)

	userID := uuid.New()
	signed, expiresAt, err := c.IssueAccess(userID)
	require.NoError(t, err)
	require.NotEmpty(t, signed)
	require.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	claims, err := c.VerifyAccess(signed)
	require.NoError(t, err)
	require.Equal(t, userID, claims.UserID)
	require.WithinDuration(t, time.Now(), claims.IssuedAt, 5*time.Second)
}

func TestVerifyAccess_WrongSecret(t *testing.T) {
	c := token.NewCodec(testSecret, time.Hour, 720*time.Hour, 10*time.Minute)
	other := token.NewCodec("another-secret-another-secret!!!", time.Hour, 720*time.Hour, 10*time.Minute)

	signed, _, err := c.IssueAccess(uuid.New())
	require.NoError(t, err)

	_, err = other.VerifyAccess(signed)
	require.ErrorIs(t, err, token.ErrInvalidToken)
}

func TestVerifyAccess_Malformed(t *testing.T) {
	c := token.NewCodec(testSecret, time.Hour, 720*time.Hour, 10*time.Minute)

	_, err := c.VerifyAccess("not.a.jwt")
	require.ErrorIs(t, err, token.ErrInvalidToken)

	_, err = c.VerifyAccess("")
	require.ErrorIs(t, err, token.ErrInvalidToken)
}

func TestVerifyAccess_Expired(t *testing.T) {
	c := token.NewCodec(testSecret, -time.Minute, 720*time.Hour, 10*time.Minute)

	signed, _, err := c.IssueAccess(uuid.New())
	require.NoError(t, err)

	_, err = c.VerifyAccess(signed)
	require.ErrorIs(t, err, token.ErrExpiredToken)
}

func TestIssueRefresh(t *testing.T) {
	c := token.NewCodec(testSecret, time.Hour, 720*time.Hour, 10*time.Minute)

	plain, hash, expiresAt, err := c.IssueRefresh()
	require.NoError(t, err)
	require.NotEmpty(t, plain)
	require.NotEqual(t, plain, hash)
	require.Equal(t, token.HashOpaque(plain), hash)
	require.WithinDuration(t, time.Now().Add(720*time.Hour), expiresAt, 5*time.Second)

	// two tokens must never collide
	plain2, _, _, err := c.IssueRefresh()
	require.NoError(t, err)
	require.NotEqual(t, plain, plain2)
}

func TestIssueReset_ShortLifetime(t *testing.T) {
	c := token.NewCodec(testSecret, time.Hour, 720*time.Hour, 10*time.Minute)

	_, _, expiresAt, err := c.IssueReset()
	require.NoError(t, err)
	require.WithinDuration(t, time.Now().Add(10*time.Minute), expiresAt, 5*time.Second)
}

func TestVerifyOpaque(t *testing.T) {
	c := token.NewCodec(testSecret, time.Hour, 720*time.Hour, 10*time.Minute)

	plain, hash, _, err := c.IssueRefresh()
	require.NoError(t, err)

	require.True(t, token.VerifyOpaque(plain, hash))
	require.False(t, token.VerifyOpaque("something-else", hash))
	require.False(t, token.VerifyOpaque("", hash))
}
