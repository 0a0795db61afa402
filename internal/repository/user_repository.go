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

type UserRepository interface {
	Create(ctx context.Context, user *model.User) (uuid.UUID, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string, changedAt time.Time) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	List(ctx context.Context) ([]model.User, error)
	RegisterDeviceToken(ctx context.Context, userID uuid.UUID, deviceToken string) error
	DeviceTokens(ctx context.Context, userID uuid.UUID) ([]string, error)
}

type postgresUserRepository struct {
	db *sqlx.DB
}

func NewPostgresUserRepository(db *sqlx.DB) UserRepository {
	return &postgresUserRepository{db: db}
}

const userColumns = `id, name, email, password_hash, role, active, password_changed_at, created_at, updated_at`

func (r *postgresUserRepository) Create(ctx context.Context, user *model.User) (uuid.UUID, error) {
	query := `
		INSERT INTO users (name, email, password_hash, role, active, password_changed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	var newID uuid.UUID
	err := r.db.QueryRowxContext(ctx, query,
		user.Name, user.Email, user.PasswordHash, user.Role, user.Active, user.PasswordChangedAt,
	).Scan(&newID)

	if err != nil {
		return uuid.Nil, err
	}

	return newID, nil
}

func (r *postgresUserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	err := r.db.GetContext(ctx, &user, query, email)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &user, nil
}

func (r *postgresUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	var user model.User
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	err := r.db.GetContext(ctx, &user, query, id)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &user, nil
}

func (r *postgresUserRepository) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string, changedAt time.Time) error {
	query := `UPDATE users SET password_hash = $2, password_changed_at = $3, updated_at = now() WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id, passwordHash, changedAt)
	return err
}

func (r *postgresUserRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	query := `UPDATE users SET active = $2, updated_at = now() WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id, active)
	return err
}

func (r *postgresUserRepository) List(ctx context.Context) ([]model.User, error) {
	var users []model.User
	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at DESC`
	err := r.db.SelectContext(ctx, &users, query)
	return users, err
}

func (r *postgresUserRepository) RegisterDeviceToken(ctx context.Context, userID uuid.UUID, deviceToken string) error {
	query := `
		INSERT INTO user_device_tokens (user_id, device_token)
		VALUES ($1, $2)
		ON CONFLICT (device_token) DO UPDATE SET user_id = EXCLUDED.user_id
	`
	_, err := r.db.ExecContext(ctx, query, userID, deviceToken)
	return err
}

func (r *postgresUserRepository) DeviceTokens(ctx context.Context, userID uuid.UUID) ([]string, error) {
	var tokens []string
	query := `SELECT device_token FROM user_device_tokens WHERE user_id = $1`
	err := r.db.SelectContext(ctx, &tokens, query, userID)
	return tokens, err
}
