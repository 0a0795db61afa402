package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"shop-flow/internal/model"
)

// CredentialRepository owns the per-account refresh-session and
// password-reset slots. Rotation and redemption are single conditional
// statements so concurrent requests on the same account cannot both
// succeed.
type CredentialRepository interface {
	UpsertSession(ctx context.Context, userID uuid.UUID, tokenHash string, expiresAt time.Time) error
	FindSessionByHash(ctx context.Context, tokenHash string) (*model.Session, error)
	RotateSession(ctx context.Context, userID uuid.UUID, oldHash, newHash string, expiresAt time.Time) (bool, error)
	DeleteSession(ctx context.Context, userID uuid.UUID) error
	DeleteSessionByHash(ctx context.Context, tokenHash string) error
	UpsertReset(ctx context.Context, userID uuid.UUID, tokenHash string, expiresAt time.Time) error
	RedeemReset(ctx context.Context, tokenHash string) (uuid.UUID, bool, error)
}

type postgresCredentialRepository struct {
	db *sqlx.DB
}

func NewPostgresCredentialRepository(db *sqlx.DB) CredentialRepository {
	return &postgresCredentialRepository{db: db}
}

func (r *postgresCredentialRepository) UpsertSession(ctx context.Context, userID uuid.UUID, tokenHash string, expiresAt time.Time) error {
	query := `
		INSERT INTO sessions (user_id, token_hash, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET token_hash = EXCLUDED.token_hash, expires_at = EXCLUDED.expires_at, created_at = now()
	`
	_, err := r.db.ExecContext(ctx, query, userID, tokenHash, expiresAt)
	return err
}

func (r *postgresCredentialRepository) FindSessionByHash(ctx context.Context, tokenHash string) (*model.Session, error) {
	var session model.Session
	query := `SELECT id, user_id, token_hash, expires_at, created_at FROM sessions WHERE token_hash = $1`
	err := r.db.GetContext(ctx, &session, query, tokenHash)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &session, nil
}

// RotateSession replaces the slot only if it still holds oldHash. A false
// return means another request rotated or cleared it first.
func (r *postgresCredentialRepository) RotateSession(ctx context.Context, userID uuid.UUID, oldHash, newHash string, expiresAt time.Time) (bool, error) {
	query := `
		UPDATE sessions SET token_hash = $3, expires_at = $4
		WHERE user_id = $1 AND token_hash = $2
	`
	res, err := r.db.ExecContext(ctx, query, userID, oldHash, newHash, expiresAt)
	if err != nil {
		return false, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected == 1, nil
}

func (r *postgresCredentialRepository) DeleteSession(ctx context.Context, userID uuid.UUID) error {
	query := `DELETE FROM sessions WHERE user_id = $1`
	_, err := r.db.ExecContext(ctx, query, userID)
	return err
}

func (r *postgresCredentialRepository) DeleteSessionByHash(ctx context.Context, tokenHash string) error {
	query := `DELETE FROM sessions WHERE token_hash = $1`
	_, err := r.db.ExecContext(ctx, query, tokenHash)
	return err
}

func (r *postgresCredentialRepository) UpsertReset(ctx context.Context, userID uuid.UUID, tokenHash string, expiresAt time.Time) error {
	query := `
		INSERT INTO password_resets (user_id, token_hash, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET token_hash = EXCLUDED.token_hash, expires_at = EXCLUDED.expires_at, created_at = now()
	`
	_, err := r.db.ExecContext(ctx, query, userID, tokenHash, expiresAt)
	return err
}

// RedeemReset consumes an unexpired reset token. The DELETE doubles as the
// single-use guard: a second redemption finds no row.
func (r *postgresCredentialRepository) RedeemReset(ctx context.Context, tokenHash string) (uuid.UUID, bool, error) {
	query := `DELETE FROM password_resets WHERE token_hash = $1 AND expires_at > now() RETURNING user_id`

	var userID uuid.UUID
	err := r.db.QueryRowxContext(ctx, query, tokenHash).Scan(&userID)

	if errors.Is(err, sql.ErrNoRows) {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, err
	}

	return userID, true, nil
}
