package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"

	"shop-flow/internal/apperr"
	"shop-flow/internal/events"
	"shop-flow/internal/model"
	"shop-flow/internal/repository"
	"shop-flow/internal/token"
)

// TokenPair is the access/refresh credential set handed to the client
// after any operation that establishes a session.
type TokenPair struct {
	AccessToken    string
	AccessExpires  time.Time
	RefreshToken   string
	RefreshExpires time.Time
}

type SignupInput struct {
	Name     string
	Email    string
	Password string
}

type AuthService interface {
	Signup(ctx context.Context, in SignupInput) (*model.User, *TokenPair, error)
	Login(ctx context.Context, email, password string) (*model.User, *TokenPair, error)
	Logout(ctx context.Context, refreshToken string)
	Refresh(ctx context.Context, refreshToken string) (*model.User, *TokenPair, error)
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, rawToken, newPassword string) (*model.User, *TokenPair, error)
	UpdatePassword(ctx context.Context, user *model.User, currentPassword, newPassword string) (*TokenPair, error)
	GetUser(ctx context.Context, id uuid.UUID) (*model.User, error)
	DeactivateAccount(ctx context.Context, user *model.User) error
}

type authService struct {
	users      repository.UserRepository
	creds      repository.CredentialRepository
	codec      *token.Codec
	publisher  events.EventPublisher
	baseURL    string
	bcryptCost int
}

func NewAuthService(
	users repository.UserRepository,
	creds repository.CredentialRepository,
	codec *token.Codec,
	publisher events.EventPublisher,
	baseURL string,
	bcryptCost int,
) AuthService {
	return &authService{
		users:      users,
		creds:      creds,
		codec:      codec,
		publisher:  publisher,
		baseURL:    baseURL,
		bcryptCost: bcryptCost,
	}
}

func (s *authService) Signup(ctx context.Context, in SignupInput) (*model.User, *TokenPair, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		return nil, nil, err
	}

	user := &model.User{
		Name:         in.Name,
		Email:        normalizeEmail(in.Email),
		PasswordHash: string(hashedPassword),
		Role:         model.RoleUser,
		Active:       true,
		// truncated to seconds so it never sorts after the iat of the
		// token pair issued just below
		PasswordChangedAt: time.Now().Truncate(time.Second),
	}

	newID, err := s.users.Create(ctx, user)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, nil, apperr.Conflict("email already in use")
		}
		return nil, nil, err
	}
	user.ID = newID

	pair, err := s.establishSession(ctx, user)
	if err != nil {
		return nil, nil, err
	}

	go func() {
		if err := s.publisher.PublishUserSignedUp(user); err != nil {
			slog.Error("publishing signup event failed", "user_id", user.ID, "error", err)
		}
	}()

	return user, pair, nil
}

// Login checks, in order: email existence, account active flag, password
// match. Unknown email and wrong password share one message so accounts
// cannot be enumerated; a disabled account answers distinctly.
func (s *authService) Login(ctx context.Context, email, password string) (*model.User, *TokenPair, error) {
	user, err := s.users.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, nil, err
	}
	if user == nil {
		return nil, nil, apperr.NotAuthenticated("email or password incorrect")
	}

	if !user.Active {
		return nil, nil, apperr.AccountDisabled("your account has been deactivated")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, nil, apperr.NotAuthenticated("email or password incorrect")
	}

	pair, err := s.establishSession(ctx, user)
	if err != nil {
		return nil, nil, err
	}

	return user, pair, nil
}

// Logout is best effort: it succeeds whether or not the presented refresh
// token still matches a session.
func (s *authService) Logout(ctx context.Context, refreshToken string) {
	if refreshToken == "" {
		return
	}

	if err := s.creds.DeleteSessionByHash(ctx, token.HashOpaque(refreshToken)); err != nil {
		slog.Error("clearing session on logout failed", "error", err)
	}
}

func (s *authService) Refresh(ctx context.Context, refreshToken string) (*model.User, *TokenPair, error) {
	if refreshToken == "" {
		return nil, nil, apperr.RefreshInvalid("refresh token missing")
	}

	oldHash := token.HashOpaque(refreshToken)

	session, err := s.creds.FindSessionByHash(ctx, oldHash)
	if err != nil {
		return nil, nil, err
	}
	if session == nil {
		return nil, nil, apperr.RefreshInvalid("refresh token not recognized")
	}

	if time.Now().After(session.ExpiresAt) {
		return nil, nil, apperr.RefreshInvalid("refresh token expired")
	}

	user, err := s.users.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, nil, err
	}
	if user == nil {
		return nil, nil, apperr.RefreshInvalid("user no longer exists")
	}

	if !user.Active {
		return nil, nil, apperr.AccountDisabled("your account has been deactivated")
	}

	newPlain, newHash, expiresAt, err := s.codec.IssueRefresh()
	if err != nil {
		return nil, nil, err
	}

	rotated, err := s.creds.RotateSession(ctx, user.ID, oldHash, newHash, expiresAt)
	if err != nil {
		return nil, nil, err
	}
	if !rotated {
		// lost the race against a concurrent refresh of the same slot
		return nil, nil, apperr.RefreshInvalid("refresh token already used")
	}

	accessToken, accessExpires, err := s.codec.IssueAccess(user.ID)
	if err != nil {
		return nil, nil, err
	}

	return user, &TokenPair{
		AccessToken:    accessToken,
		AccessExpires:  accessExpires,
		RefreshToken:   newPlain,
		RefreshExpires: expiresAt,
	}, nil
}

func (s *authService) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.users.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return err
	}
	if user == nil {
		return apperr.NotFound("no account found with that email")
	}

	if !user.Active {
		return apperr.AccountDisabled("your account has been deactivated")
	}

	plain, hash, expiresAt, err := s.codec.IssueReset()
	if err != nil {
		return err
	}

	if err := s.creds.UpsertReset(ctx, user.ID, hash, expiresAt); err != nil {
		return err
	}

	resetURL := s.baseURL + "/api/users/reset-password/" + plain

	// the response never waits on delivery
	go func() {
		if err := s.publisher.PublishPasswordReset(user.Email, resetURL); err != nil {
			slog.Error("publishing password reset event failed", "user_id", user.ID, "error", err)
		}
	}()

	return nil
}

func (s *authService) ResetPassword(ctx context.Context, rawToken, newPassword string) (*model.User, *TokenPair, error) {
	userID, ok, err := s.creds.RedeemReset(ctx, token.HashOpaque(rawToken))
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, apperr.BadRequest("reset token is invalid or has expired")
	}

	user, err := s.setPassword(ctx, userID, newPassword)
	if err != nil {
		return nil, nil, err
	}

	pair, err := s.establishSession(ctx, user)
	if err != nil {
		return nil, nil, err
	}

	return user, pair, nil
}

func (s *authService) UpdatePassword(ctx context.Context, user *model.User, currentPassword, newPassword string) (*TokenPair, error) {
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(currentPassword)); err != nil {
		return nil, apperr.NotAuthenticated("your current password is wrong")
	}

	if _, err := s.setPassword(ctx, user.ID, newPassword); err != nil {
		return nil, err
	}

	// re-issue the pair so the acting session survives the
	// password-changed-at check
	return s.establishSession(ctx, user)
}

func (s *authService) GetUser(ctx context.Context, id uuid.UUID) (*model.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperr.NotFound("user not found")
	}

	return user, nil
}

func (s *authService) DeactivateAccount(ctx context.Context, user *model.User) error {
	if err := s.users.SetActive(ctx, user.ID, false); err != nil {
		return err
	}

	return s.creds.DeleteSession(ctx, user.ID)
}

func (s *authService) setPassword(ctx context.Context, userID uuid.UUID, newPassword string) (*model.User, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.bcryptCost)
	if err != nil {
		return nil, err
	}

	changedAt := time.Now().Truncate(time.Second)
	if err := s.users.UpdatePassword(ctx, userID, string(hashedPassword), changedAt); err != nil {
		return nil, err
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperr.NotFound("user not found")
	}

	return user, nil
}

// establishSession issues a fresh access/refresh pair and overwrites the
// account's session slot, superseding any previous session.
func (s *authService) establishSession(ctx context.Context, user *model.User) (*TokenPair, error) {
	accessToken, accessExpires, err := s.codec.IssueAccess(user.ID)
	if err != nil {
		return nil, err
	}

	refreshPlain, refreshHash, refreshExpires, err := s.codec.IssueRefresh()
	if err != nil {
		return nil, err
	}

	if err := s.creds.UpsertSession(ctx, user.ID, refreshHash, refreshExpires); err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:    accessToken,
		AccessExpires:  accessExpires,
		RefreshToken:   refreshPlain,
		RefreshExpires: refreshExpires,
	}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
